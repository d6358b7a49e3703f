package bridge

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"forex_go/internal/domain"
	"forex_go/internal/event"
	"forex_go/internal/infra"
	"forex_go/pkg/quant"
)

func testStreamConfig(url string) *infra.Config {
	cfg := &infra.Config{}
	cfg.Bridge.WSURL = url
	cfg.Bridge.APIKey = "test-key"
	cfg.Supervisor.HeartbeatInterval = infra.Duration(200 * time.Millisecond)
	cfg.Supervisor.ReconnectBaseDelay = infra.Duration(20 * time.Millisecond)
	cfg.Supervisor.MaxReconnectAttempts = 3
	return cfg
}

func newWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
}

func httpToWS(url string) string {
	return strings.Replace(url, "http://", "ws://", 1)
}

func TestSupervisor_DispatchesMarketData(t *testing.T) {
	frame := `{"event":"market_data","data":{"symbol":"EURUSD","bid":1.0850,"ask":1.0852,"timestamp":1700000000000}}`
	server := newWSServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(frame))
		time.Sleep(300 * time.Millisecond)
	})
	defer server.Close()

	sup := NewSupervisor(testStreamConfig(httpToWS(server.URL)))

	type tick struct {
		symbol   string
		bid, ask quant.PriceMicros
	}
	got := make(chan tick, 1)
	sup.On(event.EvPriceUpdate, func(ev event.Event) {
		// Pooled event: copy the fields, never retain the pointer.
		pe := ev.(*event.PriceUpdateEvent)
		got <- tick{symbol: pe.Symbol, bid: pe.BidMicros, ask: pe.AskMicros}
	})

	sup.Start(context.Background())
	defer sup.Stop()

	select {
	case tk := <-got:
		if tk.symbol != "EURUSD" {
			t.Errorf("symbol = %q, want EURUSD", tk.symbol)
		}
		if tk.bid != 1085000 || tk.ask != 1085200 {
			t.Errorf("bid/ask = %d/%d, want 1085000/1085200", tk.bid, tk.ask)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no price update dispatched")
	}
}

func TestSupervisor_DispatchesAccountUpdate(t *testing.T) {
	frame := `{"event":"account_update","data":{"login":12345,"currency":"USD","balance":10000.50,"equity":10004.25,"margin":120,"margin_free":9884.25}}`
	server := newWSServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(frame))
		time.Sleep(300 * time.Millisecond)
	})
	defer server.Close()

	sup := NewSupervisor(testStreamConfig(httpToWS(server.URL)))
	got := make(chan event.AccountUpdateEvent, 1)
	sup.On(event.EvAccountUpdate, func(ev event.Event) {
		got <- *ev.(*event.AccountUpdateEvent)
	})

	sup.Start(context.Background())
	defer sup.Stop()

	select {
	case ae := <-got:
		if ae.Login != "12345" {
			t.Errorf("Login = %q, want 12345", ae.Login)
		}
		if ae.BalanceMicros != 10_000_500_000 {
			t.Errorf("BalanceMicros = %d, want 10000500000", ae.BalanceMicros)
		}
		if ae.EquityMicros != 10_004_250_000 {
			t.Errorf("EquityMicros = %d, want 10004250000", ae.EquityMicros)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no account update dispatched")
	}
}

func TestSupervisor_BadFramesAreDropped(t *testing.T) {
	valid := `{"event":"market_data","data":{"symbol":"EURUSD","bid":1.1,"ask":1.2,"timestamp":1}}`
	server := newWSServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(`not json at all`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"mystery","data":{}}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"market_data","data":{"bid":"bogus"}}`))
		conn.WriteMessage(websocket.TextMessage, []byte(valid))
		time.Sleep(300 * time.Millisecond)
	})
	defer server.Close()

	sup := NewSupervisor(testStreamConfig(httpToWS(server.URL)))
	got := make(chan struct{}, 1)
	sup.On(event.EvPriceUpdate, func(ev event.Event) {
		select {
		case got <- struct{}{}:
		default:
		}
	})

	sup.Start(context.Background())
	defer sup.Stop()

	// The valid frame after three bad ones still arrives: bad frames never
	// kill the connection.
	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("valid frame was not dispatched after bad frames")
	}
}

func TestSupervisor_ReconnectsAfterDrop(t *testing.T) {
	var conns int32
	server := newWSServer(t, func(conn *websocket.Conn) {
		n := atomic.AddInt32(&conns, 1)
		if n == 1 {
			// Drop the first connection immediately.
			return
		}
		time.Sleep(500 * time.Millisecond)
	})
	defer server.Close()

	sup := NewSupervisor(testStreamConfig(httpToWS(server.URL)))
	sup.Start(context.Background())
	defer sup.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if atomic.LoadInt32(&conns) >= 2 && sup.State() == StateConnected {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("no reconnect: conns=%d state=%s", atomic.LoadInt32(&conns), sup.State())
}

func TestSupervisor_FailsAfterAttemptBudget(t *testing.T) {
	// Nothing listens here; every dial fails.
	cfg := testStreamConfig("ws://127.0.0.1:1")
	sup := NewSupervisor(cfg)
	sup.Start(context.Background())
	defer sup.Stop()

	select {
	case <-sup.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not give up")
	}

	if sup.State() != StateFailed {
		t.Errorf("State = %s, want failed", sup.State())
	}

	var ce *domain.ConnectionError
	if !errors.As(sup.Err(), &ce) {
		t.Fatalf("Err() = %v, want ConnectionError", sup.Err())
	}
	if ce.Attempts != cfg.Supervisor.MaxReconnectAttempts {
		t.Errorf("Attempts = %d, want %d", ce.Attempts, cfg.Supervisor.MaxReconnectAttempts)
	}
}

func TestSupervisor_FlappingEndpointBacksOff(t *testing.T) {
	// The endpoint accepts every handshake and closes straight away. Each
	// drop must burn a reconnect attempt with backoff in between, not turn
	// into a tight dial loop.
	var conns int32
	server := newWSServer(t, func(conn *websocket.Conn) {
		atomic.AddInt32(&conns, 1)
	})
	defer server.Close()

	sup := NewSupervisor(testStreamConfig(httpToWS(server.URL)))
	start := time.Now()
	sup.Start(context.Background())
	defer sup.Stop()

	select {
	case <-sup.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor kept dialing a flapping endpoint")
	}

	if sup.State() != StateFailed {
		t.Errorf("State = %s, want failed", sup.State())
	}
	if n := atomic.LoadInt32(&conns); n != 3 {
		t.Errorf("dials = %d, want 3", n)
	}
	// Two backoff waits (20ms then 40ms) sit between the three dials.
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Errorf("gave up after %v, expected backoff between redials", elapsed)
	}
}

func TestSupervisor_AccountFrameWithBadMarginIsDropped(t *testing.T) {
	// margin carries more than micro precision; the whole frame is dropped,
	// not dispatched with a zeroed field.
	bad := `{"event":"account_update","data":{"login":1,"currency":"USD","balance":100,"equity":100,"margin":120.1234567,"margin_free":50}}`
	valid := `{"event":"account_update","data":{"login":2,"currency":"USD","balance":100,"equity":100,"margin":120,"margin_free":50}}`
	server := newWSServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(bad))
		conn.WriteMessage(websocket.TextMessage, []byte(valid))
		time.Sleep(300 * time.Millisecond)
	})
	defer server.Close()

	sup := NewSupervisor(testStreamConfig(httpToWS(server.URL)))
	got := make(chan string, 2)
	sup.On(event.EvAccountUpdate, func(ev event.Event) {
		got <- ev.(*event.AccountUpdateEvent).Login
	})

	sup.Start(context.Background())
	defer sup.Stop()

	select {
	case login := <-got:
		if login != "2" {
			t.Errorf("dispatched account login = %q, want 2", login)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("valid account frame was not dispatched")
	}
}

func TestSupervisor_SendsAPIKey(t *testing.T) {
	gotKey := make(chan string, 1)
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey <- r.Header.Get("X-API-Key")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	sup := NewSupervisor(testStreamConfig(httpToWS(server.URL)))
	sup.Start(context.Background())
	defer sup.Stop()

	select {
	case key := <-gotKey:
		if key != "test-key" {
			t.Errorf("X-API-Key = %q, want test-key", key)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no handshake seen")
	}
}

func TestSupervisor_StopDoesNotHang(t *testing.T) {
	hold := make(chan struct{})
	server := newWSServer(t, func(conn *websocket.Conn) {
		<-hold
	})
	defer server.Close()
	defer close(hold)

	sup := NewSupervisor(testStreamConfig(httpToWS(server.URL)))
	sup.Start(context.Background())
	time.Sleep(100 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		sup.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("Stop did not return")
	}
}
