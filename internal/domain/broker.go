package domain

import (
	"context"

	"forex_go/pkg/quant"
)

// PriceOracle supplies bid/ask snapshots for a symbol. Implementations are
// the bridge REST client and the in-process paper broker.
type PriceOracle interface {
	Quote(ctx context.Context, symbol string) (Quote, error)
}

// BrokerClient is the execution venue contract. It abstracts away the
// difference between the live bridge adapter and the deterministic paper
// broker used in tests and paper mode. All calls through this interface go
// through the retry executor; nothing bypasses it.
type BrokerClient interface {
	// ExecuteOrder submits a new order to the venue.
	ExecuteOrder(ctx context.Context, order *Order) error

	// CloseOrder closes an open position at the given price.
	CloseOrder(ctx context.Context, order *Order, price quant.PriceMicros) error

	// Close releases venue resources.
	Close() error
}

// PositionSink receives order records after every create, update, and
// close so external dashboards can mirror state. Persistence is
// best-effort: a failing sink never rolls back in-memory order state.
type PositionSink interface {
	SaveOrder(ctx context.Context, order *Order) error
}

// NotifyKind enumerates the informational events pushed outward.
type NotifyKind string

const (
	NotifyOrderPlaced     NotifyKind = "order_placed"
	NotifyOrderRejected   NotifyKind = "order_rejected"
	NotifyOrderClosed     NotifyKind = "order_closed"
	NotifyStopTriggered   NotifyKind = "stop_triggered"
	NotifyTargetTriggered NotifyKind = "target_triggered"
)

// Notification is an informational event. Delivery failure is non-fatal.
type Notification struct {
	Kind    NotifyKind      `json:"kind"`
	OrderID string          `json:"order_id"`
	Ticket  int64           `json:"ticket"`
	Symbol  string          `json:"symbol"`
	Message string          `json:"message"`
	TsUnixM quant.TimeStamp `json:"ts"`
}

// Notifier pushes informational events to the outside world.
type Notifier interface {
	Notify(n Notification)
}
