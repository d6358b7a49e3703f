package storage

import (
	"os"
	"testing"

	"forex_go/internal/domain"
)

func TestSnapshot_SaveAndLoad(t *testing.T) {
	sm := NewSnapshotManager(t.TempDir())

	account := domain.AccountInfo{
		Login:         "12345",
		Currency:      "USD",
		BalanceMicros: 10_000_000_000,
		EquityMicros:  10_004_000_000,
	}
	open := []domain.Order{
		{ID: "o1", Ticket: 1000, Symbol: "EURUSD", Side: domain.SideBuy, Status: domain.StatusOpen},
	}

	snap := NewSnapshot(account, open)
	if err := sm.Save(snap); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := sm.LoadLatest()
	if err != nil {
		t.Fatalf("LoadLatest failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("Expected snapshot, got nil")
	}
	if loaded.Account.Login != "12345" {
		t.Errorf("Login = %q", loaded.Account.Login)
	}
	if len(loaded.Open) != 1 || loaded.Open[0].Ticket != 1000 {
		t.Errorf("Open = %+v", loaded.Open)
	}
}

func TestSnapshot_LoadLatest_MultipleSnapshots(t *testing.T) {
	sm := NewSnapshotManager(t.TempDir())

	for _, ts := range []int64{10, 50, 30} {
		snap := &Snapshot{TsUnix: ts}
		if err := sm.Save(snap); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	loaded, err := sm.LoadLatest()
	if err != nil {
		t.Fatalf("LoadLatest failed: %v", err)
	}
	if loaded.TsUnix != 50 {
		t.Errorf("Expected latest ts 50, got %d", loaded.TsUnix)
	}
}

func TestSnapshot_LoadLatest_NoSnapshots(t *testing.T) {
	sm := NewSnapshotManager(t.TempDir())

	loaded, err := sm.LoadLatest()
	if err != nil {
		t.Fatalf("LoadLatest failed: %v", err)
	}
	if loaded != nil {
		t.Errorf("Expected nil for empty dir, got %v", loaded)
	}
}

func TestSnapshot_Cleanup(t *testing.T) {
	dir := t.TempDir()
	sm := NewSnapshotManager(dir)

	for ts := int64(1); ts <= 5; ts++ {
		snap := &Snapshot{TsUnix: ts}
		if err := sm.Save(snap); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	if err := sm.Cleanup(2); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 2 {
		t.Errorf("Expected 2 snapshots after cleanup, got %d", len(entries))
	}

	loaded, _ := sm.LoadLatest()
	if loaded.TsUnix != 5 {
		t.Errorf("Expected ts 5 to remain, got %d", loaded.TsUnix)
	}
}
