package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"forex_go/internal/event"
	"forex_go/internal/infra"
	"forex_go/internal/storage"
)

// Bootstrap performs the startup sequence and owns the process-wide
// resources: config, position store, snapshot manager, and the instance
// lock.
type Bootstrap struct {
	Config    *infra.Config
	Store     *storage.PositionStore
	Snapshots *storage.SnapshotManager
	SessionID string

	unlock func()
}

// NewBootstrap creates an uninitialized Bootstrap.
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads config, sets up logging, acquires the instance lock, and
// opens the position store. Call Shutdown when done.
func (b *Bootstrap) Initialize() error {
	slog.Info("Bootstrapping Forex Go...")

	// Pre-fill the tick event pool before the first price arrives.
	event.Warmup()

	cfg, err := infra.LoadConfig(infra.ResolveConfigPath())
	if err != nil {
		return err
	}
	b.Config = cfg

	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// Paper and live data never share a directory.
	mode := strings.ToLower(cfg.Trading.Mode)
	workDir := infra.GetWorkspaceDir()
	dataDir := filepath.Join(workDir, "data", mode)
	logDir := filepath.Join(workDir, "logs", mode)

	if err := infra.EnsureDir(dataDir); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := infra.EnsureDir(logDir); err != nil {
		return fmt.Errorf("failed to create log dir: %w", err)
	}

	unlock, err := infra.CreateLockFile(workDir)
	if err != nil {
		return err
	}
	b.unlock = unlock

	dbPath := filepath.Join(dataDir, "positions.db")
	store, err := storage.NewPositionStore(dbPath)
	if err != nil {
		b.unlock()
		return err
	}
	b.Store = store
	slog.Info("Position store initialized (WAL-mode)",
		slog.String("path", dbPath),
		slog.String("mode", mode))

	b.Snapshots = storage.NewSnapshotManager(filepath.Join(dataDir, "snapshots"))

	b.SessionID = uuid.NewString()
	if err := b.Store.UpsertMetadata(context.Background(), "last_session_id", b.SessionID, time.Now().UnixMicro()); err != nil {
		slog.Warn("Failed to record session id", slog.Any("err", err))
	}

	return nil
}

// Shutdown releases the store and the instance lock.
func (b *Bootstrap) Shutdown() {
	if b.Store != nil {
		if err := b.Store.Close(); err != nil {
			slog.Warn("Position store close failed", slog.Any("err", err))
		}
	}
	if b.unlock != nil {
		b.unlock()
	}
}
