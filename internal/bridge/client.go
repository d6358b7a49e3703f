package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"forex_go/internal/domain"
	"forex_go/internal/infra"
	"forex_go/pkg/quant"
)

// Client talks to the broker bridge REST API. It implements both
// domain.PriceOracle and domain.BrokerClient; every request is gated by the
// token-bucket limiter so bursts of ticks cannot exhaust the bridge budget.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *infra.RateLimiter
}

// NewClient builds a bridge client from the application config.
func NewClient(cfg *infra.Config) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.Bridge.RestURL, "/"),
		apiKey:  cfg.Bridge.APIKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: infra.NewRateLimiter(cfg.Bridge.RateLimitBurst, cfg.Bridge.RateLimitPerSec),
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	c.limiter.Wait()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("X-API-Key", c.apiKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("bridge %s %s: %s", method, path, apiErr.Error)
		}
		return fmt.Errorf("bridge %s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(out)
}

// Quote fetches the current bid/ask for the symbol.
func (c *Client) Quote(ctx context.Context, symbol string) (domain.Quote, error) {
	var wq wireQuote
	if err := c.do(ctx, http.MethodGet, "/api/v1/market/"+symbol, nil, &wq); err != nil {
		return domain.Quote{}, err
	}

	bid, err := priceToMicros(wq.Bid)
	if err != nil {
		return domain.Quote{}, err
	}
	ask, err := priceToMicros(wq.Ask)
	if err != nil {
		return domain.Quote{}, err
	}

	return domain.Quote{
		Symbol:    symbol,
		BidMicros: bid,
		AskMicros: ask,
		// Bridge timestamps are milliseconds.
		TsUnixM: quant.TimeStamp(wq.Timestamp * 1000),
	}, nil
}

// ExecuteOrder submits the order to the bridge.
func (c *Client) ExecuteOrder(ctx context.Context, order *domain.Order) error {
	req := orderRequest{
		Symbol:  order.Symbol,
		Side:    string(order.Side),
		Type:    string(order.Type),
		Volume:  milliToVolume(order.VolumeMilli),
		SL:      microsToPrice(order.StopLossMicros),
		TP:      microsToPrice(order.TakeProfitMicros),
		Comment: order.Comment,
	}
	if order.Type == domain.TypeLimit {
		req.Price = microsToPrice(order.OpenPriceMicros)
	}

	var resp orderResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/orders", req, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("order rejected: %s", resp.Error)
	}

	slog.Debug("Bridge order accepted",
		slog.Int64("bridge_order_id", resp.OrderID),
		slog.Int64("ticket", order.Ticket))
	return nil
}

// CloseOrder closes the position on the bridge.
func (c *Client) CloseOrder(ctx context.Context, order *domain.Order, price quant.PriceMicros) error {
	path := fmt.Sprintf("/api/v1/positions/%d/close", order.Ticket)

	var resp orderResponse
	if err := c.do(ctx, http.MethodPost, path, closeRequest{Price: microsToPrice(price)}, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("close rejected: %s", resp.Error)
	}
	return nil
}

// Connect establishes the broker session behind the bridge.
func (c *Client) Connect(ctx context.Context, login, password, server string) (domain.BrokerSession, error) {
	loginNum, err := strconv.ParseInt(login, 10, 64)
	if err != nil {
		return domain.BrokerSession{}, fmt.Errorf("broker login must be numeric: %q", login)
	}

	req := connectRequest{Login: loginNum, Password: password, Server: server}
	if err := c.do(ctx, http.MethodPost, "/api/v1/connect", req, nil); err != nil {
		return domain.BrokerSession{}, err
	}

	return domain.BrokerSession{
		ID:         uuid.NewString(),
		BrokerType: "mt5-bridge",
		Login:      login,
		Server:     server,
	}, nil
}

// Connected reports whether the bridge holds a broker session.
func (c *Client) Connected(ctx context.Context) (bool, error) {
	var resp statusResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/status", nil, &resp); err != nil {
		return false, err
	}
	return resp.Connected, nil
}

// Account fetches the broker account snapshot.
func (c *Client) Account(ctx context.Context) (domain.AccountInfo, error) {
	var wa wireAccount
	if err := c.do(ctx, http.MethodGet, "/api/v1/account", nil, &wa); err != nil {
		return domain.AccountInfo{}, err
	}

	balance, err := priceToMicros(wa.Balance)
	if err != nil {
		return domain.AccountInfo{}, err
	}
	equity, err := priceToMicros(wa.Equity)
	if err != nil {
		return domain.AccountInfo{}, err
	}
	margin, err := priceToMicros(wa.Margin)
	if err != nil {
		return domain.AccountInfo{}, err
	}
	free, err := priceToMicros(wa.MarginFree)
	if err != nil {
		return domain.AccountInfo{}, err
	}

	return domain.AccountInfo{
		Login:            strconv.FormatInt(wa.Login, 10),
		Currency:         wa.Currency,
		BalanceMicros:    int64(balance),
		EquityMicros:     int64(equity),
		MarginMicros:     int64(margin),
		FreeMarginMicros: int64(free),
		UpdatedUnixM:     quant.TimeStamp(time.Now().UnixMicro()),
	}, nil
}

// Close releases idle connections. The bridge session itself stays up; other
// consoles may share it.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
