package domain

import "forex_go/pkg/quant"

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the closing direction for the side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType distinguishes immediate from resting orders.
type OrderType string

const (
	TypeMarket OrderType = "MARKET"
	TypeLimit  OrderType = "LIMIT"
)

// Status is the lifecycle state of an order. Closed and cancelled are
// terminal.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusOpen      Status = "OPEN"
	StatusClosed    Status = "CLOSED"
	StatusCancelled Status = "CANCELLED"
)

// Order represents a trading order for the lifetime of a session.
// All monetary values are strictly int64 micros.
type Order struct {
	ID     string `json:"id"`
	Ticket int64  `json:"ticket"` // broker-style sequential number

	Symbol string    `json:"symbol"`
	Side   Side      `json:"side"`
	Type   OrderType `json:"type"`

	VolumeMilli quant.LotsMilli `json:"volume"`

	OpenPriceMicros    quant.PriceMicros `json:"open_price"`
	CurrentPriceMicros quant.PriceMicros `json:"current_price"`
	StopLossMicros     quant.PriceMicros `json:"stop_loss"`
	TakeProfitMicros   quant.PriceMicros `json:"take_profit"`
	TrailingStopMicros quant.PriceMicros `json:"trailing_stop"` // distance, 0 = off

	ProfitMicros     int64 `json:"profit"`
	CommissionMicros int64 `json:"commission"` // charged once at open
	SwapMicros       int64 `json:"swap"`       // carry cost, always zero for now

	OpenUnixM  quant.TimeStamp `json:"open_time"`
	CloseUnixM quant.TimeStamp `json:"close_time"` // set once, on close

	Status  Status `json:"status"`
	Comment string `json:"comment"` // carries the risk/reward annotation
}

// IsOpen reports whether the order is live in the market.
func (o *Order) IsOpen() bool {
	return o.Status == StatusOpen
}

// IsTerminal reports whether the order has reached a final state and must
// never be mutated again.
func (o *Order) IsTerminal() bool {
	return o.Status == StatusClosed || o.Status == StatusCancelled
}
