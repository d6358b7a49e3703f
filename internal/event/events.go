// Package event defines the closed set of inbound bridge events. Anything
// the bridge sends that does not parse into one of these is dropped.
package event

import (
	"forex_go/pkg/quant"
)

// Type defines the type of event.
type Type uint16

const (
	EvPriceUpdate Type = iota + 1
	EvPositionUpdate
	EvAccountUpdate
)

func (t Type) String() string {
	switch t {
	case EvPriceUpdate:
		return "price_update"
	case EvPositionUpdate:
		return "position_update"
	case EvAccountUpdate:
		return "account_update"
	default:
		return "unknown"
	}
}

// Event is the interface for all supervisor events.
type Event interface {
	GetTs() quant.TimeStamp
	GetType() Type
}

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	Ts quant.TimeStamp `json:"ts"`
}

func (e BaseEvent) GetTs() quant.TimeStamp { return e.Ts }

// PriceUpdateEvent carries a bid/ask tick for one symbol. This is the
// hotpath event; it is pooled.
type PriceUpdateEvent struct {
	BaseEvent
	Symbol    string            `json:"symbol"`
	BidMicros quant.PriceMicros `json:"bid"`
	AskMicros quant.PriceMicros `json:"ask"`
}

func (e *PriceUpdateEvent) GetType() Type { return EvPriceUpdate }

// PositionUpdateEvent mirrors a broker-side position change.
type PositionUpdateEvent struct {
	BaseEvent
	Ticket       int64             `json:"ticket"`
	Symbol       string            `json:"symbol"`
	Side         string            `json:"side"`
	VolumeMilli  quant.LotsMilli   `json:"volume"`
	PriceMicros  quant.PriceMicros `json:"price"`
	ProfitMicros int64             `json:"profit"`
}

func (e *PositionUpdateEvent) GetType() Type { return EvPositionUpdate }

// AccountUpdateEvent carries an account snapshot.
type AccountUpdateEvent struct {
	BaseEvent
	Login            string `json:"login"`
	BalanceMicros    int64  `json:"balance"`
	EquityMicros     int64  `json:"equity"`
	MarginMicros     int64  `json:"margin"`
	FreeMarginMicros int64  `json:"free_margin"`
}

func (e *AccountUpdateEvent) GetType() Type { return EvAccountUpdate }
