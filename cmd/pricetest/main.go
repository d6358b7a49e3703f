// Fetches live quotes from the bridge and prints them as fixed-point
// micros, to eyeball precision end to end without running the full engine.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"forex_go/internal/bridge"
	"forex_go/internal/domain"
	"forex_go/internal/infra"
)

func main() {
	fmt.Println("=== ForexGo Fixed-Point Quote Fetcher ===")
	fmt.Println()

	cfg, err := infra.LoadConfig(infra.ResolveConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	client := bridge.NewClient(cfg)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	for _, symbol := range cfg.Trading.Symbols {
		q, err := client.Quote(ctx, symbol)
		if err != nil {
			fmt.Printf("%-8s ERROR: %v\n", symbol, err)
			continue
		}

		fmt.Printf("%-8s\n", symbol)
		fmt.Printf("   bid micros:    %d (%s)\n", q.BidMicros, q.BidMicros)
		fmt.Printf("   ask micros:    %d (%s)\n", q.AskMicros, q.AskMicros)
		fmt.Printf("   spread micros: %d\n", q.SpreadMicros())
		fmt.Printf("   pip micros:    %d\n", domain.PipMicros(symbol))
		fmt.Println()
	}

	fmt.Println("All prices carried as int64 micros; no float in the path.")
}
