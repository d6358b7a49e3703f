package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"forex_go/internal/domain"
	"forex_go/internal/infra"
	"forex_go/pkg/quant"
)

// firstTicket - 1; tickets are broker-style and start at 1000.
const ticketSeed = 999

// ManagerConfig carries the risk and fee parameters for a session.
type ManagerConfig struct {
	MinRiskRewardMilli        int64
	PipMultiplier             int64
	CommissionPerLotMicros    int64
	DefaultTrailingStopMicros int64
}

// ManagerConfigFrom extracts the manager parameters from the application
// config.
func ManagerConfigFrom(cfg *infra.Config) ManagerConfig {
	return ManagerConfig{
		MinRiskRewardMilli:        cfg.Risk.MinRiskRewardMilli,
		PipMultiplier:             cfg.Risk.PipMultiplier,
		CommissionPerLotMicros:    cfg.Risk.CommissionPerLotMicros,
		DefaultTrailingStopMicros: cfg.Risk.DefaultTrailingStopMicros,
	}
}

// Deps are the injected collaborators. Oracle, Broker, and Exec are
// required; Sink and Notifier may be nil.
type Deps struct {
	Oracle   domain.PriceOracle
	Broker   domain.BrokerClient
	Exec     *infra.RetryExecutor
	Sink     domain.PositionSink
	Notifier domain.Notifier
}

// Manager orchestrates the order lifecycle for one trading session:
// validation, price lookup, broker execution through the retry executor,
// book mutation, and stop/target trigger evaluation on every tick. One
// Manager per session; no global state.
type Manager struct {
	cfg       ManagerConfig
	validator *Validator
	book      *Book

	oracle   domain.PriceOracle
	broker   domain.BrokerClient
	exec     *infra.RetryExecutor
	sink     domain.PositionSink
	notifier domain.Notifier

	ticket atomic.Int64

	// closing serializes close attempts per order: an order id in this
	// set has a close in flight, and ticks skip it.
	closingMu sync.Mutex
	closing   map[string]struct{}

	now func() time.Time
}

// NewManager wires a manager for one session.
func NewManager(cfg ManagerConfig, deps Deps) *Manager {
	m := &Manager{
		cfg:       cfg,
		validator: NewValidator(cfg.MinRiskRewardMilli),
		book:      NewBook(),
		oracle:    deps.Oracle,
		broker:    deps.Broker,
		exec:      deps.Exec,
		sink:      deps.Sink,
		notifier:  deps.Notifier,
		closing:   make(map[string]struct{}),
		now:       time.Now,
	}
	m.ticket.Store(ticketSeed)
	return m
}

// SeedTickets continues the ticket sequence after the highest ticket a
// previous session stored. Lower seeds are ignored; tickets never go
// backwards.
func (m *Manager) SeedTickets(last int64) {
	if last > ticketSeed {
		m.ticket.Store(last)
	}
}

// PlaceOrder validates the request, quotes the execution price, and for
// market orders executes through the broker. The created order is returned;
// a market order whose broker call exhausts retries is recorded as
// cancelled and the broker error is returned.
func (m *Manager) PlaceOrder(ctx context.Context, req *OrderRequest) (domain.Order, error) {
	if err := m.validator.ValidateRequest(req); err != nil {
		return domain.Order{}, err
	}

	quote, err := m.oracle.Quote(ctx, req.Symbol)
	if err != nil {
		return domain.Order{}, &domain.BrokerError{Op: "quote", Attempts: 1, Err: err}
	}

	execPrice := quote.ExecPrice(req.Side)
	refPrice := execPrice
	if req.Type == domain.TypeLimit {
		refPrice = req.PriceMicros
	}

	if err := m.validator.ValidateRiskReward(req, refPrice); err != nil {
		return domain.Order{}, err
	}

	order := m.buildOrder(req, refPrice)

	if req.Type == domain.TypeLimit {
		// Resting order; the fill notification arrives from outside.
		order.Status = domain.StatusPending
		if err := m.book.Insert(order); err != nil {
			return domain.Order{}, err
		}
		m.persist(ctx, order)
		m.notify(domain.NotifyOrderPlaced, order, "limit order pending")
		return *order, nil
	}

	execErr := m.exec.Execute(ctx, "execute_order", func(ctx context.Context) error {
		return m.broker.ExecuteOrder(ctx, order)
	})
	if execErr != nil {
		// Never leave an order open with unknown broker state: record it
		// as cancelled for the audit trail and surface the failure.
		order.Status = domain.StatusCancelled
		order.CloseUnixM = quant.TimeStamp(m.now().UnixMicro())
		if err := m.book.Insert(order); err != nil {
			return domain.Order{}, err
		}
		m.persist(ctx, order)
		m.notify(domain.NotifyOrderRejected, order, "broker execution failed")
		return domain.Order{}, &domain.BrokerError{
			Op:       "execute_order",
			Attempts: m.exec.Config.Attempts,
			Err:      execErr,
		}
	}

	order.Status = domain.StatusOpen
	if err := m.book.Insert(order); err != nil {
		return domain.Order{}, err
	}
	m.persist(ctx, order)
	m.notify(domain.NotifyOrderPlaced, order, "order open")

	slog.Info("Order placed",
		slog.Int64("ticket", order.Ticket),
		slog.String("symbol", order.Symbol),
		slog.String("side", string(order.Side)),
		slog.String("volume", order.VolumeMilli.String()),
		slog.String("open", order.OpenPriceMicros.String()))

	return *order, nil
}

func (m *Manager) buildOrder(req *OrderRequest, openPrice quant.PriceMicros) *domain.Order {
	trailing := req.TrailingStopMicros
	if trailing == 0 {
		trailing = quant.PriceMicros(m.cfg.DefaultTrailingStopMicros)
	}

	comment := req.Comment
	rr := RiskRewardMilli(req, openPrice)
	rrNote := fmt.Sprintf("rr=%d.%02d", rr/1000, (rr%1000)/10)
	if comment == "" {
		comment = rrNote
	} else {
		comment = comment + " " + rrNote
	}

	now := quant.TimeStamp(m.now().UnixMicro())
	return &domain.Order{
		ID:                 uuid.NewString(),
		Ticket:             m.ticket.Add(1),
		Symbol:             req.Symbol,
		Side:               req.Side,
		Type:               req.Type,
		VolumeMilli:        req.VolumeMilli,
		OpenPriceMicros:    openPrice,
		CurrentPriceMicros: openPrice,
		StopLossMicros:     req.StopLossMicros,
		TakeProfitMicros:   req.TakeProfitMicros,
		TrailingStopMicros: trailing,
		CommissionMicros:   quant.Div(quant.Mul(int64(req.VolumeMilli), m.cfg.CommissionPerLotMicros), quant.LotScale),
		ProfitMicros:       0,
		SwapMicros:         0, // carried simplification: swap is never charged
		OpenUnixM:          now,
		Status:             domain.StatusPending,
		Comment:            comment,
	}
}

// ClosePosition closes an open order: opposite-side quote, broker close
// through the retry executor, then final profit and close time. On any
// error no mutation occurs; the order stays open. Calling it again on a
// closed order fails with ErrInvalidState.
func (m *Manager) ClosePosition(ctx context.Context, orderID string) (domain.Order, error) {
	order, err := m.claimClose(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	defer m.releaseClose(orderID)

	quote, err := m.oracle.Quote(ctx, order.Symbol)
	if err != nil {
		return domain.Order{}, &domain.BrokerError{Op: "quote", Attempts: 1, Err: err}
	}
	closePrice := quote.ClosePrice(order.Side)

	execErr := m.exec.Execute(ctx, "close_order", func(ctx context.Context) error {
		return m.broker.CloseOrder(ctx, &order, closePrice)
	})
	if execErr != nil {
		return domain.Order{}, &domain.BrokerError{
			Op:       "close_order",
			Attempts: m.exec.Config.Attempts,
			Err:      execErr,
		}
	}

	var closed domain.Order
	mutErr := m.book.Mutate(orderID, func(o *domain.Order) error {
		o.CurrentPriceMicros = closePrice
		o.ProfitMicros = domain.ProfitMicros(o.Symbol, o.Side, o.OpenPriceMicros, closePrice,
			o.VolumeMilli, m.cfg.PipMultiplier, o.CommissionMicros)
		o.Status = domain.StatusClosed
		o.CloseUnixM = quant.TimeStamp(m.now().UnixMicro())
		closed = *o
		return nil
	})
	if mutErr != nil {
		return domain.Order{}, mutErr
	}

	m.persist(ctx, &closed)
	m.notify(domain.NotifyOrderClosed, &closed, "position closed")

	slog.Info("Position closed",
		slog.Int64("ticket", closed.Ticket),
		slog.String("symbol", closed.Symbol),
		slog.String("close", closed.CurrentPriceMicros.String()),
		slog.Int64("profit_micros", closed.ProfitMicros))

	return closed, nil
}

// claimClose marks an order as having a close in flight. Exactly one close
// can hold the claim; ticks and duplicate calls see ErrInvalidState.
func (m *Manager) claimClose(orderID string) (domain.Order, error) {
	m.closingMu.Lock()
	defer m.closingMu.Unlock()

	order, ok := m.book.Get(orderID)
	if !ok {
		return domain.Order{}, fmt.Errorf("order %s: %w", orderID, domain.ErrOrderNotFound)
	}
	if !order.IsOpen() {
		return domain.Order{}, fmt.Errorf("order %s is %s: %w", orderID, order.Status, domain.ErrInvalidState)
	}
	if _, busy := m.closing[orderID]; busy {
		return domain.Order{}, fmt.Errorf("order %s close already in flight: %w", orderID, domain.ErrInvalidState)
	}
	m.closing[orderID] = struct{}{}
	return order, nil
}

func (m *Manager) releaseClose(orderID string) {
	m.closingMu.Lock()
	delete(m.closing, orderID)
	m.closingMu.Unlock()
}

func (m *Manager) isClosing(orderID string) bool {
	m.closingMu.Lock()
	defer m.closingMu.Unlock()
	_, busy := m.closing[orderID]
	return busy
}

// CloseResult is the outcome of one close within CloseAllPositions.
type CloseResult struct {
	OrderID string
	Ticket  int64
	Err     error
}

// CloseAllPositions snapshots all open orders and closes each one
// concurrently and independently. One failure neither blocks nor rolls
// back the others; every outcome is collected.
func (m *Manager) CloseAllPositions(ctx context.Context) []CloseResult {
	open := m.book.ByStatus(domain.StatusOpen)
	results := make([]CloseResult, len(open))

	var wg sync.WaitGroup
	for i, o := range open {
		wg.Add(1)
		go func(i int, id string, ticket int64) {
			defer wg.Done()
			_, err := m.ClosePosition(ctx, id)
			results[i] = CloseResult{OrderID: id, Ticket: ticket, Err: err}
		}(i, o.ID, o.Ticket)
	}
	wg.Wait()

	for _, r := range results {
		if r.Err != nil {
			slog.Warn("Close failed during close-all",
				slog.Int64("ticket", r.Ticket),
				slog.Any("err", r.Err))
		}
	}
	return results
}

type triggered struct {
	orderID string
	ticket  int64
	kind    domain.NotifyKind
}

// UpdateOrderPrices marks every open order on the symbol to the new price:
// it ratchets trailing stops, recomputes profit, and evaluates triggers in
// fixed order, stop-loss before take-profit. A triggered order is closed
// immediately and cannot trigger both in the same tick. Orders that are
// not open are never touched.
func (m *Manager) UpdateOrderPrices(ctx context.Context, symbol string, price quant.PriceMicros) {
	var hits []triggered

	for _, snapshot := range m.book.OpenBySymbol(symbol) {
		if m.isClosing(snapshot.ID) {
			continue
		}

		var hit *triggered
		err := m.book.Mutate(snapshot.ID, func(o *domain.Order) error {
			if !o.IsOpen() {
				return nil
			}

			m.ratchetTrailingStop(o, price)

			o.CurrentPriceMicros = price
			o.ProfitMicros = domain.ProfitMicros(o.Symbol, o.Side, o.OpenPriceMicros, price,
				o.VolumeMilli, m.cfg.PipMultiplier, o.CommissionMicros)

			// Stop-loss first, take-profit second; at most one per tick.
			switch {
			case stopHit(o, price):
				hit = &triggered{orderID: o.ID, ticket: o.Ticket, kind: domain.NotifyStopTriggered}
			case targetHit(o, price):
				hit = &triggered{orderID: o.ID, ticket: o.Ticket, kind: domain.NotifyTargetTriggered}
			}
			return nil
		})
		if err != nil {
			continue
		}

		updated, _ := m.book.Get(snapshot.ID)
		m.persist(ctx, &updated)

		if hit != nil {
			hits = append(hits, *hit)
		}
	}

	for _, h := range hits {
		// Announce the trigger only once the close went through; a failed
		// close leaves the order open and must not claim otherwise.
		if _, err := m.ClosePosition(ctx, h.orderID); err != nil {
			slog.Warn("Trigger close failed",
				slog.Int64("ticket", h.ticket),
				slog.String("kind", string(h.kind)),
				slog.Any("err", err))
			continue
		}
		o, _ := m.book.Get(h.orderID)
		m.notify(h.kind, &o, fmt.Sprintf("%s at %s", h.kind, price))
	}
}

// ratchetTrailingStop tightens the stop to maintain the trailing distance
// behind a favorable price move. The stop never loosens.
func (m *Manager) ratchetTrailingStop(o *domain.Order, price quant.PriceMicros) {
	if o.TrailingStopMicros <= 0 {
		return
	}
	if o.Side == domain.SideBuy {
		if candidate := price - o.TrailingStopMicros; candidate > o.StopLossMicros {
			o.StopLossMicros = candidate
		}
	} else {
		if candidate := price + o.TrailingStopMicros; candidate < o.StopLossMicros {
			o.StopLossMicros = candidate
		}
	}
}

func stopHit(o *domain.Order, price quant.PriceMicros) bool {
	if o.StopLossMicros <= 0 {
		return false
	}
	if o.Side == domain.SideBuy {
		return price <= o.StopLossMicros
	}
	return price >= o.StopLossMicros
}

func targetHit(o *domain.Order, price quant.PriceMicros) bool {
	if o.TakeProfitMicros <= 0 {
		return false
	}
	if o.Side == domain.SideBuy {
		return price >= o.TakeProfitMicros
	}
	return price <= o.TakeProfitMicros
}

// GetOrder returns a copy of the order with the given id.
func (m *Manager) GetOrder(id string) (domain.Order, bool) {
	return m.book.Get(id)
}

// GetOrderByTicket returns a copy of the order with the given ticket.
func (m *Manager) GetOrderByTicket(ticket int64) (domain.Order, bool) {
	return m.book.GetByTicket(ticket)
}

// Orders returns copies of every order in the session.
func (m *Manager) Orders() []domain.Order {
	return m.book.All()
}

// OpenOrders returns copies of all open orders.
func (m *Manager) OpenOrders() []domain.Order {
	return m.book.ByStatus(domain.StatusOpen)
}

// persist mirrors order state to the position sink. Best-effort: a failing
// sink is logged, never propagated.
func (m *Manager) persist(ctx context.Context, o *domain.Order) {
	if m.sink == nil {
		return
	}
	if err := m.sink.SaveOrder(ctx, o); err != nil {
		slog.Warn("Position sink save failed",
			slog.Int64("ticket", o.Ticket),
			slog.Any("err", err))
	}
}

// notify pushes an informational event. Delivery failure is non-fatal by
// contract, so the notifier interface does not return an error.
func (m *Manager) notify(kind domain.NotifyKind, o *domain.Order, msg string) {
	if m.notifier == nil {
		return
	}
	m.notifier.Notify(domain.Notification{
		Kind:    kind,
		OrderID: o.ID,
		Ticket:  o.Ticket,
		Symbol:  o.Symbol,
		Message: msg,
		TsUnixM: quant.TimeStamp(m.now().UnixMicro()),
	})
}
