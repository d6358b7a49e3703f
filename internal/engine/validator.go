// Package engine implements the order lifecycle: validation, the in-memory
// order book, and the manager that orchestrates placement, price-triggered
// closes, and broker I/O.
package engine

import (
	"forex_go/internal/domain"
	"forex_go/pkg/quant"
)

// OrderRequest is the input for placing an order.
type OrderRequest struct {
	Symbol string
	Side   domain.Side
	Type   domain.OrderType

	VolumeMilli quant.LotsMilli

	// PriceMicros is the limit price. Required for limit orders, ignored
	// for market orders.
	PriceMicros quant.PriceMicros

	StopLossMicros   quant.PriceMicros
	TakeProfitMicros quant.PriceMicros

	// TrailingStopMicros is the trailing distance. 0 falls back to the
	// configured default.
	TrailingStopMicros quant.PriceMicros

	Comment string
}

// Validator enforces the mandatory risk contract before an order may be
// constructed: stop-loss and take-profit must be present and the
// reward/risk ratio must meet the configured minimum. Pure; no side
// effects.
type Validator struct {
	minRRMilli int64 // minimum reward/risk in thousandths (1500 = 1.5)
}

// NewValidator creates a validator with the given minimum risk/reward
// ratio in thousandths.
func NewValidator(minRRMilli int64) *Validator {
	return &Validator{minRRMilli: minRRMilli}
}

// ValidateRequest checks the price-independent rules, in order, first
// failure wins:
//  1. symbol/type/side present, volume > 0
//  2. limit orders carry a price
//  3. stop-loss present
//  4. take-profit present
func (v *Validator) ValidateRequest(req *OrderRequest) error {
	if req.Symbol == "" {
		return &domain.InvalidRequestError{Reason: "missing symbol"}
	}
	if req.Side != domain.SideBuy && req.Side != domain.SideSell {
		return &domain.InvalidRequestError{Reason: "invalid side"}
	}
	if req.Type != domain.TypeMarket && req.Type != domain.TypeLimit {
		return &domain.InvalidRequestError{Reason: "invalid order type"}
	}
	if req.VolumeMilli <= 0 {
		return &domain.InvalidRequestError{Reason: "volume must be positive"}
	}
	if req.Type == domain.TypeLimit && req.PriceMicros <= 0 {
		return &domain.InvalidRequestError{Reason: "limit order requires a price"}
	}
	if req.StopLossMicros <= 0 {
		return &domain.RiskMandateError{Code: domain.RiskNoStopLoss}
	}
	if req.TakeProfitMicros <= 0 {
		return &domain.RiskMandateError{Code: domain.RiskNoTakeProfit}
	}
	return nil
}

// ValidateRiskReward checks rule 5 against the reference price (the
// execution price for market orders, the limit price for limit orders):
//
//	riskReward = |takeProfit - ref| / |ref - stopLoss| >= minimum
//
// A stop placed exactly at the reference price makes the ratio undefined
// and is rejected.
func (v *Validator) ValidateRiskReward(req *OrderRequest, refMicros quant.PriceMicros) error {
	risk := quant.Abs(int64(refMicros) - int64(req.StopLossMicros))
	reward := quant.Abs(int64(req.TakeProfitMicros) - int64(refMicros))

	if risk == 0 {
		return &domain.RiskMandateError{Code: domain.RiskRRTooLow}
	}

	if quant.Mul(reward, 1000) < quant.Mul(risk, v.minRRMilli) {
		return &domain.RiskMandateError{
			Code:          domain.RiskRRTooLow,
			ActualRRMilli: RiskRewardMilli(req, refMicros),
		}
	}
	return nil
}

// RiskRewardMilli computes the reward/risk ratio in thousandths for the
// audit comment. Returns 0 when risk is zero.
func RiskRewardMilli(req *OrderRequest, refMicros quant.PriceMicros) int64 {
	risk := quant.Abs(int64(refMicros) - int64(req.StopLossMicros))
	if risk == 0 {
		return 0
	}
	reward := quant.Abs(int64(req.TakeProfitMicros) - int64(refMicros))
	return quant.Div(quant.Mul(reward, 1000), risk)
}
