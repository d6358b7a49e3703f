// An end-to-end drill against the paper venue: place orders under the risk
// mandate, drive prices into stops and targets, exercise the retry path with
// injected venue failures, and close what remains. Run it after changes to
// the order lifecycle; it fails loudly instead of asserting quietly.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"forex_go/internal/broker"
	"forex_go/internal/domain"
	"forex_go/internal/engine"
	"forex_go/internal/infra"
	"forex_go/internal/notify"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	slog.Info("Starting paper venue drill...")

	venue := broker.NewPaper()
	venue.SetQuote("EURUSD", 1085000, 1085200)
	venue.SetQuote("USDJPY", 149800000, 149850000)

	exec := infra.NewRetryExecutor("drill", infra.RetryConfig{
		Attempts:          3,
		BaseDelay:         100 * time.Millisecond,
		MaxDelay:          time.Second,
		BackoffMultiplier: 2,
		Timeout:           5 * time.Second,
		BreakerThreshold:  5,
	})

	manager := engine.NewManager(engine.ManagerConfig{
		MinRiskRewardMilli:     1500,
		PipMultiplier:          10,
		CommissionPerLotMicros: 7_000_000,
	}, engine.Deps{
		Oracle:   venue,
		Broker:   venue,
		Exec:     exec,
		Notifier: notify.NewLogNotifier(),
	})

	ctx := context.Background()

	slog.Info("STEP 1: Mandate rejects an order without a stop")
	_, err := manager.PlaceOrder(ctx, &engine.OrderRequest{
		Symbol: "EURUSD", Side: domain.SideBuy, Type: domain.TypeMarket,
		VolumeMilli: 100, TakeProfitMicros: 1089200,
	})
	if err == nil {
		slog.Error("FAIL: stop-less order was accepted")
		os.Exit(1)
	}
	slog.Info("OK: rejected", slog.Any("reason", err))

	slog.Info("STEP 2: Place a compliant buy (20 pip stop, 40 pip target)")
	buy, err := manager.PlaceOrder(ctx, &engine.OrderRequest{
		Symbol: "EURUSD", Side: domain.SideBuy, Type: domain.TypeMarket,
		VolumeMilli: 100, StopLossMicros: 1083200, TakeProfitMicros: 1089200,
	})
	if err != nil {
		slog.Error("FAIL: compliant order rejected", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("OK: order open", slog.Int64("ticket", buy.Ticket), slog.String("open", buy.OpenPriceMicros.String()))

	slog.Info("STEP 3: Tick to the target; the engine closes the position")
	venue.SetQuote("EURUSD", 1089200, 1089400)
	manager.UpdateOrderPrices(ctx, "EURUSD", 1089200)
	closed, _ := manager.GetOrder(buy.ID)
	if closed.Status != domain.StatusClosed || closed.ProfitMicros <= 0 {
		slog.Error("FAIL: target did not close profitably", slog.String("status", string(closed.Status)), slog.Int64("profit", closed.ProfitMicros))
		os.Exit(1)
	}
	slog.Info("OK: closed at target", slog.Int64("profit_micros", closed.ProfitMicros))

	slog.Info("STEP 4: Retry path survives transient venue failures")
	venue.SetQuote("EURUSD", 1085000, 1085200)
	venue.FailNext(2)
	retried, err := manager.PlaceOrder(ctx, &engine.OrderRequest{
		Symbol: "EURUSD", Side: domain.SideSell, Type: domain.TypeMarket,
		VolumeMilli: 100, StopLossMicros: 1087000, TakeProfitMicros: 1081000,
	})
	if err != nil {
		slog.Error("FAIL: retries did not absorb two failures", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("OK: order open after retries", slog.Int64("ticket", retried.Ticket))

	slog.Info("STEP 5: Close everything that is still open")
	results := manager.CloseAllPositions(ctx)
	for _, r := range results {
		if r.Err != nil {
			slog.Error("FAIL: close-all reported a failure", slog.Int64("ticket", r.Ticket), slog.Any("error", r.Err))
			os.Exit(1)
		}
	}
	if open := manager.OpenOrders(); len(open) != 0 {
		slog.Error("FAIL: orders remain open", slog.Int("count", len(open)))
		os.Exit(1)
	}
	slog.Info("OK: all positions closed", slog.Int("closed", len(results)))

	slog.Info("STEP 6: Venue fill ledger")
	for _, f := range venue.Fills() {
		slog.Info("fill",
			slog.Int64("ticket", f.Ticket),
			slog.String("symbol", f.Symbol),
			slog.String("side", string(f.Side)),
			slog.String("price", f.PriceMicros.String()),
			slog.Bool("close", f.Close))
	}

	slog.Info("Drill passed.")
}
