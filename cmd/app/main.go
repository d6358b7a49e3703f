package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"forex_go/internal/app"
	"forex_go/internal/bridge"
	"forex_go/internal/broker"
	"forex_go/internal/domain"
	"forex_go/internal/engine"
	"forex_go/internal/event"
	"forex_go/internal/infra"
	"forex_go/internal/notify"
	"forex_go/internal/storage"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	// Pprof on localhost only.
	go func() {
		slog.Info("Pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("Pprof server failed", slog.Any("error", err))
		}
	}()

	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(); err != nil {
		slog.Error("Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Shutdown()

	cfg := bootstrap.Config
	infra.PrintBanner(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	venue, oracle, err := broker.New(cfg)
	if err != nil {
		slog.Error("Venue initialization failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer venue.Close()

	notifier := notify.NewLogNotifier()
	exec := infra.NewRetryExecutor("broker", infra.RetryConfigFrom(cfg))

	manager := engine.NewManager(engine.ManagerConfigFrom(cfg), engine.Deps{
		Oracle:   oracle,
		Broker:   venue,
		Exec:     exec,
		Sink:     bootstrap.Store,
		Notifier: notifier,
	})

	// Continue the ticket sequence from the last session.
	if last, err := bootstrap.Store.LastTicket(ctx); err != nil {
		slog.Warn("Could not read last ticket", slog.Any("err", err))
	} else {
		manager.SeedTickets(last)
	}

	live := strings.ToLower(cfg.Trading.Mode) == "live"
	if live {
		client, ok := venue.(*bridge.Client)
		if !ok {
			slog.Error("Live mode requires the bridge venue")
			os.Exit(1)
		}
		session, err := client.Connect(ctx, cfg.Bridge.Login, os.Getenv("FXGO_BRIDGE_PASSWORD"), cfg.Bridge.Server)
		if err != nil {
			slog.Error("Broker connect failed", slog.Any("error", err))
			os.Exit(1)
		}
		slog.Info("Broker session established",
			slog.String("session", session.ID),
			slog.String("server", session.Server))
	}

	// Account state, updated from the stream. Guarded because the snapshot
	// at shutdown reads it from the main goroutine.
	var accountMu sync.Mutex
	var account domain.AccountInfo

	var sup *bridge.Supervisor
	if cfg.Bridge.WSURL != "" {
		sup = bridge.NewSupervisor(cfg)

		paper, _ := venue.(*broker.Paper)
		sup.On(event.EvPriceUpdate, func(ev event.Event) {
			pe := ev.(*event.PriceUpdateEvent)
			if paper != nil {
				// Keep the paper venue's book in sync with the stream.
				paper.SetQuote(pe.Symbol, pe.BidMicros, pe.AskMicros)
			}
			manager.UpdateOrderPrices(ctx, pe.Symbol, pe.BidMicros)
		})
		sup.On(event.EvAccountUpdate, func(ev event.Event) {
			ae := ev.(*event.AccountUpdateEvent)
			accountMu.Lock()
			account = domain.AccountInfo{
				Login:            ae.Login,
				BalanceMicros:    ae.BalanceMicros,
				EquityMicros:     ae.EquityMicros,
				MarginMicros:     ae.MarginMicros,
				FreeMarginMicros: ae.FreeMarginMicros,
				UpdatedUnixM:     ae.GetTs(),
			}
			accountMu.Unlock()
		})
		sup.On(event.EvPositionUpdate, func(ev event.Event) {
			pe := ev.(*event.PositionUpdateEvent)
			slog.Debug("Broker position update",
				slog.Int64("ticket", pe.Ticket),
				slog.String("symbol", pe.Symbol),
				slog.Int64("profit_micros", pe.ProfitMicros))
		})

		sup.Start(ctx)
		defer sup.Stop()
	}

	slog.InfoContext(ctx, "Forex Go operational. Press Ctrl+C to exit.",
		slog.String("mode", cfg.Trading.Mode),
		slog.Any("symbols", cfg.Trading.Symbols))

	if sup != nil {
		select {
		case <-ctx.Done():
		case <-sup.Done():
			if err := sup.Err(); err != nil {
				slog.Error("Bridge connection lost for good", slog.Any("error", err))
			}
		}
	} else {
		<-ctx.Done()
	}

	slog.Info("Shutting down gracefully...")

	// Snapshot the session before the store closes.
	accountMu.Lock()
	acct := account
	accountMu.Unlock()
	if err := bootstrap.Snapshots.Save(storage.NewSnapshot(acct, manager.OpenOrders())); err != nil {
		slog.Warn("Session snapshot failed", slog.Any("err", err))
	}
	if err := bootstrap.Snapshots.Cleanup(5); err != nil {
		slog.Warn("Snapshot cleanup failed", slog.Any("err", err))
	}
}
