package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"forex_go/internal/domain"
	"forex_go/internal/event"
	"forex_go/internal/infra"
	"forex_go/pkg/quant"
)

// ConnState is the supervisor's connection state.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateFailed
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Listener receives a decoded bridge event. Pooled events are only valid for
// the duration of the call.
type Listener func(ev event.Event)

// Supervisor owns the bridge stream socket: it dials, heartbeats, decodes
// inbound frames into typed events, and reconnects with exponential backoff.
// After the attempt budget is exhausted it parks in StateFailed and exposes
// the terminal error; it never retries silently forever.
type Supervisor struct {
	url         string
	apiKey      string
	heartbeat   time.Duration
	baseDelay   time.Duration
	maxAttempts int

	mu      sync.RWMutex
	state   ConnState
	lastErr error

	listenersMu sync.RWMutex
	listeners   map[event.Type][]Listener

	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}
}

// NewSupervisor builds a supervisor from the application config. Listeners
// must be registered before Start.
func NewSupervisor(cfg *infra.Config) *Supervisor {
	return &Supervisor{
		url:         cfg.Bridge.WSURL,
		apiKey:      cfg.Bridge.APIKey,
		heartbeat:   cfg.Supervisor.HeartbeatInterval.Std(),
		baseDelay:   cfg.Supervisor.ReconnectBaseDelay.Std(),
		maxAttempts: cfg.Supervisor.MaxReconnectAttempts,
		state:       StateDisconnected,
		listeners:   make(map[event.Type][]Listener),
		done:        make(chan struct{}),
	}
}

// On registers a listener for one event type.
func (s *Supervisor) On(t event.Type, fn Listener) {
	s.listenersMu.Lock()
	s.listeners[t] = append(s.listeners[t], fn)
	s.listenersMu.Unlock()
}

// State returns the current connection state.
func (s *Supervisor) State() ConnState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Err returns the terminal error once the supervisor is in StateFailed.
func (s *Supervisor) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Done is closed when the supervisor stops for good, either by Stop or by
// exhausting the reconnect budget.
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

func (s *Supervisor) setState(st ConnState) {
	s.mu.Lock()
	prev := s.state
	s.state = st
	s.mu.Unlock()
	if prev != st {
		slog.Info("Bridge connection state",
			slog.String("from", prev.String()),
			slog.String("to", st.String()))
	}
}

func (s *Supervisor) fail(err error) {
	s.mu.Lock()
	s.state = StateFailed
	s.lastErr = err
	s.mu.Unlock()
	slog.Error("Bridge connection failed permanently", slog.Any("err", err))
}

// Start launches the connection loop.
func (s *Supervisor) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.runLoop(ctx)
}

// Stop tears the supervisor down and waits for its goroutines.
func (s *Supervisor) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.mu.Lock()
	if s.state != StateFailed {
		s.state = StateDisconnected
	}
	s.mu.Unlock()
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

func (s *Supervisor) runLoop(ctx context.Context) {
	defer s.wg.Done()
	attempts := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if attempts == 0 {
			s.setState(StateConnecting)
		} else {
			s.setState(StateReconnecting)
		}

		conn, err := s.dial(ctx)
		if err != nil {
			attempts++
			if s.giveUp(attempts, err) {
				return
			}
			if !s.backoff(ctx, attempts, "Bridge dial failed", err) {
				return
			}
			continue
		}

		s.setState(StateConnected)
		start := time.Now()
		serveErr := s.serve(ctx, conn)
		if ctx.Err() != nil {
			return
		}

		// A connection that held long enough to exchange heartbeats earns a
		// fresh budget; a flapping endpoint that drops straight away keeps
		// burning attempts instead of dialing in a tight loop.
		if time.Since(start) >= 2*s.heartbeat {
			attempts = 0
		}
		attempts++
		if s.giveUp(attempts, serveErr) {
			return
		}
		s.setState(StateReconnecting)
		if !s.backoff(ctx, attempts, "Bridge connection dropped", serveErr) {
			return
		}
	}
}

func (s *Supervisor) giveUp(attempts int, err error) bool {
	if attempts < s.maxAttempts {
		return false
	}
	s.fail(&domain.ConnectionError{Attempts: attempts, Err: err})
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	return true
}

// backoff sleeps the exponential delay for the given attempt. Returns false
// when the context ended during the wait.
func (s *Supervisor) backoff(ctx context.Context, attempts int, msg string, err error) bool {
	delay := infra.Backoff(attempts-1, s.baseDelay, infra.ReconnectMaxDelay)
	slog.Warn(msg,
		slog.Int("attempt", attempts),
		slog.Duration("retry_in", delay),
		slog.Any("err", err))

	select {
	case <-ctx.Done():
		return false
	case <-time.After(delay):
		return true
	}
}

func (s *Supervisor) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	header := make(http.Header)
	if s.apiKey != "" {
		header.Set("X-API-Key", s.apiKey)
	}
	conn, _, err := dialer.DialContext(ctx, s.url, header)
	return conn, err
}

// serve runs one connection to completion: a ping loop and a read loop. Any
// read or ping error closes the connection; the error that ended the read
// loop is returned.
func (s *Supervisor) serve(ctx context.Context, conn *websocket.Conn) error {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer conn.Close()

	// Unblock the read loop promptly on shutdown.
	go func() {
		<-connCtx.Done()
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(2 * s.heartbeat))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * s.heartbeat))
	})

	var writeMu sync.Mutex
	go func() {
		ticker := time.NewTicker(s.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-connCtx.Done():
				return
			case <-ticker.C:
				writeMu.Lock()
				err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
				writeMu.Unlock()
				if err != nil {
					slog.Warn("Bridge ping failed", slog.Any("err", err))
					conn.Close()
					return
				}
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				slog.Warn("Bridge read error", slog.Any("err", err))
			}
			return err
		}
		conn.SetReadDeadline(time.Now().Add(2 * s.heartbeat))
		s.handleMessage(msg)
	}
}

// handleMessage decodes one inbound frame and dispatches it. Frames that do
// not parse, or name an unknown event, are logged and dropped; they never
// kill the connection.
func (s *Supervisor) handleMessage(msg []byte) {
	var env envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		slog.Warn("Bridge frame dropped: bad envelope", slog.Any("err", err))
		return
	}

	switch env.Event {
	case eventMarketData:
		s.handleMarketData(env.Data)
	case eventPositionUpdate:
		s.handlePositionUpdate(env.Data)
	case eventAccountUpdate:
		s.handleAccountUpdate(env.Data)
	default:
		slog.Debug("Bridge frame dropped: unknown event", slog.String("event", env.Event))
	}
}

func (s *Supervisor) handleMarketData(data json.RawMessage) {
	var wq wireQuote
	if err := decodeNumbers(data, &wq); err != nil {
		slog.Warn("Bridge frame dropped: bad market_data", slog.Any("err", err))
		return
	}
	bid, err := priceToMicros(wq.Bid)
	if err != nil {
		slog.Warn("Bridge frame dropped", slog.Any("err", err))
		return
	}
	ask, err := priceToMicros(wq.Ask)
	if err != nil {
		slog.Warn("Bridge frame dropped", slog.Any("err", err))
		return
	}

	ev := event.AcquirePriceUpdateEvent()
	ev.Ts = quant.TimeStamp(wq.Timestamp * 1000)
	ev.Symbol = wq.Symbol
	ev.BidMicros = bid
	ev.AskMicros = ask
	s.dispatch(ev)
	event.ReleasePriceUpdateEvent(ev)
}

func (s *Supervisor) handlePositionUpdate(data json.RawMessage) {
	// positions_update carries the full open-position list.
	var positions []wirePosition
	if err := decodeNumbers(data, &positions); err != nil {
		slog.Warn("Bridge frame dropped: bad positions_update", slog.Any("err", err))
		return
	}
	now := quant.TimeStamp(time.Now().UnixMicro())
	for _, wp := range positions {
		volume, err := volumeToMilli(wp.Volume)
		if err != nil {
			slog.Warn("Bridge position dropped", slog.Any("err", err))
			continue
		}
		price, err := priceToMicros(wp.Price)
		if err != nil {
			slog.Warn("Bridge position dropped", slog.Any("err", err))
			continue
		}
		profit, err := priceToMicros(wp.Profit)
		if err != nil {
			slog.Warn("Bridge position dropped", slog.Any("err", err))
			continue
		}
		s.dispatch(&event.PositionUpdateEvent{
			BaseEvent:    event.BaseEvent{Ts: now},
			Ticket:       wp.Ticket,
			Symbol:       wp.Symbol,
			Side:         wp.Type,
			VolumeMilli:  volume,
			PriceMicros:  price,
			ProfitMicros: int64(profit),
		})
	}
}

func (s *Supervisor) handleAccountUpdate(data json.RawMessage) {
	var wa wireAccount
	if err := decodeNumbers(data, &wa); err != nil {
		slog.Warn("Bridge frame dropped: bad account_update", slog.Any("err", err))
		return
	}
	balance, err := priceToMicros(wa.Balance)
	if err != nil {
		slog.Warn("Bridge frame dropped", slog.Any("err", err))
		return
	}
	equity, err := priceToMicros(wa.Equity)
	if err != nil {
		slog.Warn("Bridge frame dropped", slog.Any("err", err))
		return
	}
	margin, err := priceToMicros(wa.Margin)
	if err != nil {
		slog.Warn("Bridge frame dropped", slog.Any("err", err))
		return
	}
	free, err := priceToMicros(wa.MarginFree)
	if err != nil {
		slog.Warn("Bridge frame dropped", slog.Any("err", err))
		return
	}

	s.dispatch(&event.AccountUpdateEvent{
		BaseEvent:        event.BaseEvent{Ts: quant.TimeStamp(time.Now().UnixMicro())},
		Login:            strconv.FormatInt(wa.Login, 10),
		BalanceMicros:    int64(balance),
		EquityMicros:     int64(equity),
		MarginMicros:     int64(margin),
		FreeMarginMicros: int64(free),
	})
}

func (s *Supervisor) dispatch(ev event.Event) {
	s.listenersMu.RLock()
	fns := s.listeners[ev.GetType()]
	s.listenersMu.RUnlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func decodeNumbers(data json.RawMessage, out any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(out)
}
