package broker

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"forex_go/internal/bridge"
	"forex_go/internal/domain"
	"forex_go/internal/infra"
)

// Mode is the trading execution mode.
type Mode string

const (
	ModePaper Mode = "paper"
	ModeLive  Mode = "live"
)

// confirmLiveEnv must be "true" before the factory will hand out a live
// venue. A config typo alone can never reach real money.
const confirmLiveEnv = "FXGO_CONFIRM_LIVE"

// New builds the execution venue and price oracle for the configured mode.
// In paper mode both are the in-process simulator; in live mode both are the
// bridge REST client.
func New(cfg *infra.Config) (domain.BrokerClient, domain.PriceOracle, error) {
	mode := Mode(strings.ToLower(cfg.Trading.Mode))

	slog.Info("Initializing execution venue", slog.String("mode", string(mode)))

	switch mode {
	case ModePaper:
		p := NewPaper()
		return p, p, nil

	case ModeLive:
		if os.Getenv(confirmLiveEnv) != "true" {
			return nil, nil, fmt.Errorf("SAFETY_GUARD: live trading requires %s=true in the environment", confirmLiveEnv)
		}
		slog.Warn("LIVE trading enabled: orders will reach a real broker")
		c := bridge.NewClient(cfg)
		return c, c, nil

	default:
		return nil, nil, fmt.Errorf("unknown trading mode: %s", cfg.Trading.Mode)
	}
}
