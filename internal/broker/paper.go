package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"forex_go/internal/domain"
	"forex_go/pkg/quant"
)

// Fill records one simulated execution.
type Fill struct {
	OrderID     string
	Ticket      int64
	Symbol      string
	Side        domain.Side
	PriceMicros quant.PriceMicros
	VolumeMilli quant.LotsMilli
	TsUnixM     int64
	Close       bool
}

// Paper is the in-process venue for paper mode. It serves quotes it was fed
// and fills every order instantly at the requested price. It backs both the
// posted-order side (BrokerClient) and the quote side (PriceOracle), so a
// session runs against it with no bridge at all.
type Paper struct {
	mu     sync.Mutex
	quotes map[string]domain.Quote
	fills  []Fill

	// failNext makes the next n venue calls fail. Used by drills that
	// exercise the retry and breaker paths end to end.
	failNext int
}

// NewPaper creates an empty paper venue. Feed it with SetQuote before
// placing orders.
func NewPaper() *Paper {
	return &Paper{quotes: make(map[string]domain.Quote)}
}

// SetQuote updates the venue's view of one symbol. Typically wired to the
// bridge price stream, or scripted in drills.
func (p *Paper) SetQuote(symbol string, bid, ask quant.PriceMicros) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quotes[symbol] = domain.Quote{
		Symbol:    symbol,
		BidMicros: bid,
		AskMicros: ask,
		TsUnixM:   quant.TimeStamp(time.Now().UnixMicro()),
	}
}

// FailNext makes the next n venue calls return an error.
func (p *Paper) FailNext(n int) {
	p.mu.Lock()
	p.failNext = n
	p.mu.Unlock()
}

func (p *Paper) takeFailure() bool {
	if p.failNext > 0 {
		p.failNext--
		return true
	}
	return false
}

// Quote implements domain.PriceOracle.
func (p *Paper) Quote(ctx context.Context, symbol string) (domain.Quote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	q, ok := p.quotes[symbol]
	if !ok {
		return domain.Quote{}, fmt.Errorf("paper venue has no quote for %s", symbol)
	}
	return q, nil
}

// ExecuteOrder fills the order instantly at its open price.
func (p *Paper) ExecuteOrder(ctx context.Context, order *domain.Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.takeFailure() {
		return fmt.Errorf("paper venue: injected execution failure")
	}

	p.fills = append(p.fills, Fill{
		OrderID:     order.ID,
		Ticket:      order.Ticket,
		Symbol:      order.Symbol,
		Side:        order.Side,
		PriceMicros: order.OpenPriceMicros,
		VolumeMilli: order.VolumeMilli,
		TsUnixM:     time.Now().UnixMicro(),
	})

	slog.Info("PAPER: Order filled",
		slog.Int64("ticket", order.Ticket),
		slog.String("symbol", order.Symbol),
		slog.String("side", string(order.Side)),
		slog.String("price", order.OpenPriceMicros.String()),
		slog.String("volume", order.VolumeMilli.String()))
	return nil
}

// CloseOrder fills the closing side instantly at the given price.
func (p *Paper) CloseOrder(ctx context.Context, order *domain.Order, price quant.PriceMicros) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.takeFailure() {
		return fmt.Errorf("paper venue: injected close failure")
	}

	p.fills = append(p.fills, Fill{
		OrderID:     order.ID,
		Ticket:      order.Ticket,
		Symbol:      order.Symbol,
		Side:        order.Side.Opposite(),
		PriceMicros: price,
		VolumeMilli: order.VolumeMilli,
		TsUnixM:     time.Now().UnixMicro(),
		Close:       true,
	})

	slog.Info("PAPER: Position closed",
		slog.Int64("ticket", order.Ticket),
		slog.String("price", price.String()))
	return nil
}

// Fills returns a copy of every simulated execution so far.
func (p *Paper) Fills() []Fill {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Fill, len(p.fills))
	copy(out, p.fills)
	return out
}

// Close implements domain.BrokerClient.
func (p *Paper) Close() error { return nil }
