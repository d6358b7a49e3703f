// Package notify delivers informational trading events: structured logs
// always, plus an optional channel feed for a UI or alerting sidecar.
package notify

import (
	"context"
	"log/slog"
	"sync"

	"forex_go/internal/domain"
)

// LogNotifier logs every notification and fans it out to subscribers.
// Delivery is fire-and-forget: a subscriber with a full buffer misses the
// event rather than stalling the trading path.
type LogNotifier struct {
	mu   sync.RWMutex
	subs []chan domain.Notification
}

// NewLogNotifier creates a notifier with no subscribers.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// Subscribe returns a channel that receives subsequent notifications.
// Slow consumers drop events, they never block trading.
func (n *LogNotifier) Subscribe(buffer int) <-chan domain.Notification {
	ch := make(chan domain.Notification, buffer)
	n.mu.Lock()
	n.subs = append(n.subs, ch)
	n.mu.Unlock()
	return ch
}

// Notify implements domain.Notifier.
func (n *LogNotifier) Notify(ev domain.Notification) {
	level := slog.LevelInfo
	if ev.Kind == domain.NotifyOrderRejected || ev.Kind == domain.NotifyStopTriggered {
		level = slog.LevelWarn
	}
	slog.Log(context.Background(), level, "Trading event",
		slog.String("kind", string(ev.Kind)),
		slog.Int64("ticket", ev.Ticket),
		slog.String("symbol", ev.Symbol),
		slog.String("message", ev.Message))

	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, ch := range n.subs {
		select {
		case ch <- ev:
		default:
			// Dropped for this subscriber.
		}
	}
}
