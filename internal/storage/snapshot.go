package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"forex_go/internal/domain"
)

// Snapshot is a point-in-time capture of a trading session: the account
// state plus every open position. Written on shutdown and on demand so an
// operator can inspect the session without touching the database.
type Snapshot struct {
	TsUnix  int64              `json:"ts"`
	Account domain.AccountInfo `json:"account"`
	Open    []domain.Order     `json:"open_positions"`
}

// SnapshotManager saves and loads session snapshots under one directory.
type SnapshotManager struct {
	dir string
}

// NewSnapshotManager creates a snapshot manager rooted at dir.
func NewSnapshotManager(dir string) *SnapshotManager {
	return &SnapshotManager{dir: dir}
}

// Save writes a snapshot to disk.
func (sm *SnapshotManager) Save(snap *Snapshot) error {
	if err := os.MkdirAll(sm.dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot dir: %w", err)
	}

	filename := fmt.Sprintf("session_%d.json", snap.TsUnix)
	path := filepath.Join(sm.dir, filename)

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	slog.Info("Session snapshot saved",
		slog.Int("open_positions", len(snap.Open)),
		slog.String("path", path))
	return nil
}

// LoadLatest loads the most recent snapshot, or nil if none exist.
func (sm *SnapshotManager) LoadLatest() (*Snapshot, error) {
	entries, err := os.ReadDir(sm.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read snapshot dir: %w", err)
	}

	var latestPath string
	var latestTs int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		var ts int64
		if _, err := fmt.Sscanf(entry.Name(), "session_%d.json", &ts); err != nil {
			continue
		}
		if ts > latestTs {
			latestTs = ts
			latestPath = filepath.Join(sm.dir, entry.Name())
		}
	}
	if latestPath == "" {
		return nil, nil
	}

	data, err := os.ReadFile(latestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	slog.Info("Session snapshot loaded", slog.String("path", latestPath))
	return &snap, nil
}

// NewSnapshot captures the given state. Orders are copied in.
func NewSnapshot(account domain.AccountInfo, open []domain.Order) *Snapshot {
	openCopy := make([]domain.Order, len(open))
	copy(openCopy, open)
	return &Snapshot{
		TsUnix:  time.Now().Unix(),
		Account: account,
		Open:    openCopy,
	}
}

// Cleanup removes old snapshots, keeping only the latest keepCount.
func (sm *SnapshotManager) Cleanup(keepCount int) error {
	entries, err := os.ReadDir(sm.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	type snapFile struct {
		path string
		ts   int64
	}
	var files []snapFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		var ts int64
		if _, err := fmt.Sscanf(entry.Name(), "session_%d.json", &ts); err == nil {
			files = append(files, snapFile{path: filepath.Join(sm.dir, entry.Name()), ts: ts})
		}
	}
	if len(files) <= keepCount {
		return nil
	}

	// Newest first; small N, a simple sort pass is enough.
	for i := 0; i < len(files); i++ {
		for j := i + 1; j < len(files); j++ {
			if files[j].ts > files[i].ts {
				files[i], files[j] = files[j], files[i]
			}
		}
	}

	for i := keepCount; i < len(files); i++ {
		if err := os.Remove(files[i].path); err != nil {
			slog.Warn("Failed to remove old snapshot", slog.String("path", files[i].path))
		}
	}
	return nil
}
