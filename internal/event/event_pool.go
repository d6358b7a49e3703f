package event

import "sync"

// priceUpdatePool recycles PriceUpdateEvent allocations. Price ticks arrive
// every second per symbol, so the hotpath avoids per-tick garbage.
var priceUpdatePool = sync.Pool{
	New: func() any {
		return &PriceUpdateEvent{}
	},
}

// AcquirePriceUpdateEvent fetches a zeroed event from the pool.
func AcquirePriceUpdateEvent() *PriceUpdateEvent {
	return priceUpdatePool.Get().(*PriceUpdateEvent)
}

// ReleasePriceUpdateEvent resets and returns an event to the pool.
// The caller must not touch the event afterwards.
func ReleasePriceUpdateEvent(e *PriceUpdateEvent) {
	*e = PriceUpdateEvent{}
	priceUpdatePool.Put(e)
}

// Warmup pre-allocates a batch of pooled events to avoid first-tick
// allocation spikes.
func Warmup() {
	const n = 64
	batch := make([]*PriceUpdateEvent, 0, n)
	for i := 0; i < n; i++ {
		batch = append(batch, AcquirePriceUpdateEvent())
	}
	for _, e := range batch {
		ReleasePriceUpdateEvent(e)
	}
}
