package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/glebarez/go-sqlite"

	"forex_go/internal/domain"
	"forex_go/pkg/quant"
)

// PositionStore mirrors order state to SQLite so dashboards and the next
// session start can read it. It implements domain.PositionSink; writes are
// upserts keyed by order id, so replaying a save is harmless.
type PositionStore struct {
	db *sql.DB
}

// NewPositionStore opens (or creates) the store at dbPath with WAL mode
// enabled.
func NewPositionStore(dbPath string) (*PositionStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=-2000;", // 2MB cache
		"PRAGMA foreign_keys=ON;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS positions (
			id TEXT PRIMARY KEY,
			ticket INTEGER NOT NULL,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			type TEXT NOT NULL,
			volume_milli INTEGER NOT NULL,
			open_price_micros INTEGER NOT NULL,
			current_price_micros INTEGER NOT NULL,
			stop_loss_micros INTEGER NOT NULL,
			take_profit_micros INTEGER NOT NULL,
			trailing_stop_micros INTEGER NOT NULL,
			profit_micros INTEGER NOT NULL,
			commission_micros INTEGER NOT NULL,
			swap_micros INTEGER NOT NULL,
			open_ts INTEGER NOT NULL,
			close_ts INTEGER NOT NULL,
			status TEXT NOT NULL,
			comment TEXT NOT NULL DEFAULT ''
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create positions table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_positions_status ON positions(status);`)
	if err != nil {
		return nil, fmt.Errorf("failed to create status index: %w", err)
	}

	return &PositionStore{db: db}, nil
}

// SaveOrder upserts one order row. Called after every create, update, and
// close.
func (s *PositionStore) SaveOrder(ctx context.Context, o *domain.Order) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO positions (
			id, ticket, symbol, side, type, volume_milli,
			open_price_micros, current_price_micros,
			stop_loss_micros, take_profit_micros, trailing_stop_micros,
			profit_micros, commission_micros, swap_micros,
			open_ts, close_ts, status, comment
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			current_price_micros=excluded.current_price_micros,
			stop_loss_micros=excluded.stop_loss_micros,
			take_profit_micros=excluded.take_profit_micros,
			profit_micros=excluded.profit_micros,
			close_ts=excluded.close_ts,
			status=excluded.status,
			comment=excluded.comment`,
		o.ID, o.Ticket, o.Symbol, string(o.Side), string(o.Type), int64(o.VolumeMilli),
		int64(o.OpenPriceMicros), int64(o.CurrentPriceMicros),
		int64(o.StopLossMicros), int64(o.TakeProfitMicros), int64(o.TrailingStopMicros),
		o.ProfitMicros, o.CommissionMicros, o.SwapMicros,
		int64(o.OpenUnixM), int64(o.CloseUnixM), string(o.Status), o.Comment,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert position %s: %w", o.ID, err)
	}
	return nil
}

// LoadOrders returns every stored order, oldest first.
func (s *PositionStore) LoadOrders(ctx context.Context) ([]domain.Order, error) {
	return s.query(ctx, `SELECT * FROM positions ORDER BY ticket ASC`)
}

// LoadByStatus returns stored orders with the given status, oldest first.
func (s *PositionStore) LoadByStatus(ctx context.Context, status domain.Status) ([]domain.Order, error) {
	return s.query(ctx, `SELECT * FROM positions WHERE status = ? ORDER BY ticket ASC`, string(status))
}

func (s *PositionStore) query(ctx context.Context, q string, args ...any) ([]domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		var o domain.Order
		var side, typ, status string
		var volume, open, current, sl, tp, trailing, openTs, closeTs int64
		if err := rows.Scan(
			&o.ID, &o.Ticket, &o.Symbol, &side, &typ, &volume,
			&open, &current, &sl, &tp, &trailing,
			&o.ProfitMicros, &o.CommissionMicros, &o.SwapMicros,
			&openTs, &closeTs, &status, &o.Comment,
		); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		o.Side = domain.Side(side)
		o.Type = domain.OrderType(typ)
		o.Status = domain.Status(status)
		o.VolumeMilli = quant.LotsMilli(volume)
		o.OpenPriceMicros = quant.PriceMicros(open)
		o.CurrentPriceMicros = quant.PriceMicros(current)
		o.StopLossMicros = quant.PriceMicros(sl)
		o.TakeProfitMicros = quant.PriceMicros(tp)
		o.TrailingStopMicros = quant.PriceMicros(trailing)
		o.OpenUnixM = quant.TimeStamp(openTs)
		o.CloseUnixM = quant.TimeStamp(closeTs)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return out, nil
}

// UpsertMetadata saves a key-value pair to the metadata table.
func (s *PositionStore) UpsertMetadata(ctx context.Context, key, value string, ts int64) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO metadata (key, value, updated_at) VALUES (?, ?, ?) ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at",
		key, value, ts,
	)
	return err
}

// GetMetadata retrieves a value from the metadata table. Missing keys yield
// an empty string, not an error.
func (s *PositionStore) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// LastTicket returns the highest ticket stored, 0 when the store is empty.
// Used to continue the ticket sequence across restarts.
func (s *PositionStore) LastTicket(ctx context.Context) (int64, error) {
	var last sql.NullInt64
	err := s.db.QueryRowContext(ctx, "SELECT MAX(ticket) FROM positions").Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("failed to get last ticket: %w", err)
	}
	if !last.Valid {
		return 0, nil
	}
	return last.Int64, nil
}

// Close closes the database connection.
func (s *PositionStore) Close() error {
	return s.db.Close()
}
