package domain

import "forex_go/pkg/quant"

// AccountInfo mirrors the broker's account snapshot, refreshed from
// account_update events.
type AccountInfo struct {
	Login            string          `json:"login"`
	Currency         string          `json:"currency"`
	BalanceMicros    int64           `json:"balance"`
	EquityMicros     int64           `json:"equity"`
	MarginMicros     int64           `json:"margin"`
	FreeMarginMicros int64           `json:"free_margin"`
	UpdatedUnixM     quant.TimeStamp `json:"updated_at"`
}

// BrokerSession describes an established broker connection. Immutable once
// created; switching accounts means tearing the session down and building a
// new one.
type BrokerSession struct {
	ID         string `json:"id"`
	BrokerType string `json:"broker_type"` // e.g. "mt5-bridge"
	Login      string `json:"login"`
	Server     string `json:"server"`
}
