package notify

import (
	"testing"

	"forex_go/internal/domain"
)

func TestLogNotifier_FanOut(t *testing.T) {
	n := NewLogNotifier()
	a := n.Subscribe(4)
	b := n.Subscribe(4)

	n.Notify(domain.Notification{Kind: domain.NotifyOrderPlaced, Ticket: 1000, Symbol: "EURUSD"})

	for name, ch := range map[string]<-chan domain.Notification{"a": a, "b": b} {
		select {
		case ev := <-ch:
			if ev.Ticket != 1000 || ev.Kind != domain.NotifyOrderPlaced {
				t.Errorf("subscriber %s got %+v", name, ev)
			}
		default:
			t.Errorf("subscriber %s received nothing", name)
		}
	}
}

func TestLogNotifier_SlowSubscriberDrops(t *testing.T) {
	n := NewLogNotifier()
	ch := n.Subscribe(1)

	n.Notify(domain.Notification{Kind: domain.NotifyOrderPlaced, Ticket: 1000})
	// Buffer full: this one is dropped for the subscriber, and Notify does
	// not block.
	n.Notify(domain.Notification{Kind: domain.NotifyOrderClosed, Ticket: 1001})

	ev := <-ch
	if ev.Ticket != 1000 {
		t.Errorf("first event = %+v", ev)
	}
	select {
	case ev := <-ch:
		t.Errorf("unexpected second event %+v", ev)
	default:
	}
}

func TestLogNotifier_NoSubscribers(t *testing.T) {
	n := NewLogNotifier()
	// Must not panic or block.
	n.Notify(domain.Notification{Kind: domain.NotifyStopTriggered, Ticket: 1000})
}
