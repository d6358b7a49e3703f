package storage

import (
	"context"
	"path/filepath"
	"testing"

	"forex_go/internal/domain"
)

func newTestStore(t *testing.T) *PositionStore {
	t.Helper()
	store, err := NewPositionStore(filepath.Join(t.TempDir(), "positions.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleOrder(ticket int64, status domain.Status) *domain.Order {
	return &domain.Order{
		ID:                 "order-" + string(rune('a'+ticket-1000)),
		Ticket:             ticket,
		Symbol:             "EURUSD",
		Side:               domain.SideBuy,
		Type:               domain.TypeMarket,
		VolumeMilli:        10,
		OpenPriceMicros:    1085200,
		CurrentPriceMicros: 1085200,
		StopLossMicros:     1083200,
		TakeProfitMicros:   1089200,
		CommissionMicros:   70_000,
		OpenUnixM:          1700000000000000,
		Status:             status,
		Comment:            "rr=2.00",
	}
}

func TestPositionStore_SaveAndLoad(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	o1 := sampleOrder(1000, domain.StatusOpen)
	o2 := sampleOrder(1001, domain.StatusOpen)
	o2.Side = domain.SideSell

	if err := store.SaveOrder(ctx, o1); err != nil {
		t.Fatalf("SaveOrder failed: %v", err)
	}
	if err := store.SaveOrder(ctx, o2); err != nil {
		t.Fatalf("SaveOrder failed: %v", err)
	}

	loaded, err := store.LoadOrders(ctx)
	if err != nil {
		t.Fatalf("LoadOrders failed: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("Expected 2 orders, got %d", len(loaded))
	}
	if loaded[0].Ticket != 1000 || loaded[1].Ticket != 1001 {
		t.Errorf("ticket order: %d, %d", loaded[0].Ticket, loaded[1].Ticket)
	}
	if loaded[0].OpenPriceMicros != 1085200 {
		t.Errorf("OpenPriceMicros = %d", loaded[0].OpenPriceMicros)
	}
	if loaded[0].CommissionMicros != 70_000 {
		t.Errorf("CommissionMicros = %d", loaded[0].CommissionMicros)
	}
	if loaded[1].Side != domain.SideSell {
		t.Errorf("Side = %s", loaded[1].Side)
	}
}

func TestPositionStore_UpsertUpdatesInPlace(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	o := sampleOrder(1000, domain.StatusOpen)
	if err := store.SaveOrder(ctx, o); err != nil {
		t.Fatal(err)
	}

	// Close it and save again: same row, updated fields.
	o.Status = domain.StatusClosed
	o.CurrentPriceMicros = 1089200
	o.ProfitMicros = 3_930_000
	o.CloseUnixM = 1700000060000000
	if err := store.SaveOrder(ctx, o); err != nil {
		t.Fatal(err)
	}

	loaded, err := store.LoadOrders(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 1 {
		t.Fatalf("Expected 1 order after upsert, got %d", len(loaded))
	}
	if loaded[0].Status != domain.StatusClosed {
		t.Errorf("Status = %s, want CLOSED", loaded[0].Status)
	}
	if loaded[0].ProfitMicros != 3_930_000 {
		t.Errorf("ProfitMicros = %d", loaded[0].ProfitMicros)
	}
}

func TestPositionStore_LoadByStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SaveOrder(ctx, sampleOrder(1000, domain.StatusOpen)); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveOrder(ctx, sampleOrder(1001, domain.StatusClosed)); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveOrder(ctx, sampleOrder(1002, domain.StatusOpen)); err != nil {
		t.Fatal(err)
	}

	open, err := store.LoadByStatus(ctx, domain.StatusOpen)
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 2 {
		t.Fatalf("Expected 2 open orders, got %d", len(open))
	}
	for _, o := range open {
		if o.Status != domain.StatusOpen {
			t.Errorf("order %d status = %s", o.Ticket, o.Status)
		}
	}
}

func TestPositionStore_LastTicket(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	last, err := store.LastTicket(ctx)
	if err != nil {
		t.Fatalf("LastTicket failed: %v", err)
	}
	if last != 0 {
		t.Errorf("Expected 0 for empty store, got %d", last)
	}

	if err := store.SaveOrder(ctx, sampleOrder(1000, domain.StatusClosed)); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveOrder(ctx, sampleOrder(1004, domain.StatusOpen)); err != nil {
		t.Fatal(err)
	}

	last, err = store.LastTicket(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if last != 1004 {
		t.Errorf("Expected 1004, got %d", last)
	}
}

func TestPositionStore_Metadata(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Missing key yields the zero value.
	v, err := store.GetMetadata(ctx, "session_id")
	if err != nil {
		t.Fatal(err)
	}
	if v != "" {
		t.Errorf("Expected empty value, got %q", v)
	}

	if err := store.UpsertMetadata(ctx, "session_id", "abc", 1); err != nil {
		t.Fatal(err)
	}
	if err := store.UpsertMetadata(ctx, "session_id", "def", 2); err != nil {
		t.Fatal(err)
	}

	v, err = store.GetMetadata(ctx, "session_id")
	if err != nil {
		t.Fatal(err)
	}
	if v != "def" {
		t.Errorf("Expected def, got %q", v)
	}
}
