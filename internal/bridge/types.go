package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"forex_go/pkg/quant"
)

// Wire payloads carry prices as JSON numbers with broker precision. They are
// converted to fixed-point micros at the boundary; nothing past this package
// sees a float.

// envelope frames every message on the stream socket.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

const (
	eventMarketData     = "market_data"
	eventPositionUpdate = "positions_update"
	eventAccountUpdate  = "account_update"
)

type wireQuote struct {
	Symbol    string      `json:"symbol"`
	Bid       json.Number `json:"bid"`
	Ask       json.Number `json:"ask"`
	Timestamp int64       `json:"timestamp"`
}

type wirePosition struct {
	Ticket int64       `json:"ticket"`
	Symbol string      `json:"symbol"`
	Type   string      `json:"type"`
	Volume json.Number `json:"volume"`
	Price  json.Number `json:"price_current"`
	Profit json.Number `json:"profit"`
}

type wireAccount struct {
	Login      int64       `json:"login"`
	Currency   string      `json:"currency"`
	Balance    json.Number `json:"balance"`
	Equity     json.Number `json:"equity"`
	Margin     json.Number `json:"margin"`
	MarginFree json.Number `json:"margin_free"`
}

type orderRequest struct {
	Symbol  string `json:"symbol"`
	Side    string `json:"side"`
	Type    string `json:"type"`
	Volume  string `json:"volume"`
	Price   string `json:"price,omitempty"`
	SL      string `json:"sl"`
	TP      string `json:"tp"`
	Comment string `json:"comment,omitempty"`
}

type orderResponse struct {
	Success bool   `json:"success"`
	OrderID int64  `json:"order_id"`
	Retcode int    `json:"retcode"`
	Comment string `json:"comment"`
	Error   string `json:"error"`
}

type closeRequest struct {
	Price string `json:"price,omitempty"`
}

type connectRequest struct {
	Login    int64  `json:"login"`
	Password string `json:"password,omitempty"`
	Server   string `json:"server"`
}

type statusResponse struct {
	Connected bool   `json:"connected"`
	Error     string `json:"error"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// priceToMicros parses a broker decimal into micros, rejecting precision the
// fixed-point model cannot hold.
func priceToMicros(n json.Number) (quant.PriceMicros, error) {
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return 0, fmt.Errorf("bad price %q: %w", n, err)
	}
	scaled := d.Shift(6)
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("price %q exceeds micro precision", n)
	}
	return quant.PriceMicros(scaled.IntPart()), nil
}

// volumeToMilli parses broker lots into milli-lots.
func volumeToMilli(n json.Number) (quant.LotsMilli, error) {
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return 0, fmt.Errorf("bad volume %q: %w", n, err)
	}
	scaled := d.Shift(3)
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("volume %q exceeds milli-lot precision", n)
	}
	return quant.LotsMilli(scaled.IntPart()), nil
}

// microsToPrice renders micros as the broker-facing decimal string.
func microsToPrice(m quant.PriceMicros) string {
	return decimal.New(int64(m), -6).String()
}

// milliToVolume renders milli-lots as the broker-facing lot string.
func milliToVolume(v quant.LotsMilli) string {
	return decimal.New(int64(v), -3).String()
}
