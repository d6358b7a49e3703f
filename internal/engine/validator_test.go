package engine

import (
	"errors"
	"testing"

	"forex_go/internal/domain"
)

func validBuyRequest() *OrderRequest {
	return &OrderRequest{
		Symbol:           "EURUSD",
		Side:             domain.SideBuy,
		Type:             domain.TypeMarket,
		VolumeMilli:      10, // 0.01 lot
		StopLossMicros:   1083200,
		TakeProfitMicros: 1089200,
	}
}

func TestValidator_ValidateRequest(t *testing.T) {
	v := NewValidator(1500)

	tests := []struct {
		name     string
		mutate   func(*OrderRequest)
		wantErr  bool
		mandate  bool
		code     string
		invalidR bool
	}{
		{name: "valid", mutate: func(r *OrderRequest) {}},
		{
			name:     "missing symbol",
			mutate:   func(r *OrderRequest) { r.Symbol = "" },
			wantErr:  true,
			invalidR: true,
		},
		{
			name:     "bad side",
			mutate:   func(r *OrderRequest) { r.Side = "LONG" },
			wantErr:  true,
			invalidR: true,
		},
		{
			name:     "bad type",
			mutate:   func(r *OrderRequest) { r.Type = "STOP" },
			wantErr:  true,
			invalidR: true,
		},
		{
			name:     "zero volume",
			mutate:   func(r *OrderRequest) { r.VolumeMilli = 0 },
			wantErr:  true,
			invalidR: true,
		},
		{
			name:     "negative volume",
			mutate:   func(r *OrderRequest) { r.VolumeMilli = -10 },
			wantErr:  true,
			invalidR: true,
		},
		{
			name: "limit without price",
			mutate: func(r *OrderRequest) {
				r.Type = domain.TypeLimit
				r.PriceMicros = 0
			},
			wantErr:  true,
			invalidR: true,
		},
		{
			name:    "no stop loss",
			mutate:  func(r *OrderRequest) { r.StopLossMicros = 0 },
			wantErr: true,
			mandate: true,
			code:    domain.RiskNoStopLoss,
		},
		{
			name:    "no take profit",
			mutate:  func(r *OrderRequest) { r.TakeProfitMicros = 0 },
			wantErr: true,
			mandate: true,
			code:    domain.RiskNoTakeProfit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validBuyRequest()
			tt.mutate(req)

			err := v.ValidateRequest(req)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("ValidateRequest() error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.invalidR {
				var ir *domain.InvalidRequestError
				if !errors.As(err, &ir) {
					t.Errorf("expected InvalidRequestError, got %T", err)
				}
			}
			if tt.mandate {
				var rm *domain.RiskMandateError
				if !errors.As(err, &rm) {
					t.Fatalf("expected RiskMandateError, got %T", err)
				}
				if rm.Code != tt.code {
					t.Errorf("Code = %s, want %s", rm.Code, tt.code)
				}
			}
		})
	}
}

func TestValidator_FirstFailureWins(t *testing.T) {
	v := NewValidator(1500)

	// Both symbol and stop-loss missing: rule 1 must win.
	req := validBuyRequest()
	req.Symbol = ""
	req.StopLossMicros = 0

	err := v.ValidateRequest(req)
	var ir *domain.InvalidRequestError
	if !errors.As(err, &ir) {
		t.Errorf("expected InvalidRequestError to win, got %v", err)
	}
}

func TestValidator_ValidateRiskReward(t *testing.T) {
	v := NewValidator(1500)

	// Entry 1.0852, stop 1.0832 (20 pips risk), target 1.0892 (40 pips
	// reward): RR = 2.0, accepted.
	req := validBuyRequest()
	if err := v.ValidateRiskReward(req, 1085200); err != nil {
		t.Errorf("RR 2.0 should pass: %v", err)
	}

	// Stop 1.0845 (7 pips risk), target 1.0862 (10 pips reward):
	// RR = 10/7 = 1.428, below the 1.5 minimum.
	req.StopLossMicros = 1084500
	req.TakeProfitMicros = 1086200
	err := v.ValidateRiskReward(req, 1085200)
	var rm *domain.RiskMandateError
	if !errors.As(err, &rm) {
		t.Fatalf("expected RiskMandateError, got %v", err)
	}
	if rm.Code != domain.RiskRRTooLow {
		t.Errorf("Code = %s, want %s", rm.Code, domain.RiskRRTooLow)
	}
	if rm.ActualRRMilli != 1428 {
		t.Errorf("ActualRRMilli = %d, want 1428", rm.ActualRRMilli)
	}
}

func TestValidator_RiskRewardExactMinimumPasses(t *testing.T) {
	v := NewValidator(1500)

	// Risk 20 pips, reward exactly 30 pips: RR = 1.5.
	req := validBuyRequest()
	req.TakeProfitMicros = 1088200
	if err := v.ValidateRiskReward(req, 1085200); err != nil {
		t.Errorf("RR exactly at minimum should pass: %v", err)
	}
}

func TestValidator_StopAtEntryRejected(t *testing.T) {
	v := NewValidator(1500)

	req := validBuyRequest()
	req.StopLossMicros = 1085200 // zero risk distance

	err := v.ValidateRiskReward(req, 1085200)
	var rm *domain.RiskMandateError
	if !errors.As(err, &rm) {
		t.Fatalf("expected RiskMandateError, got %v", err)
	}
}

func TestRiskRewardMilli(t *testing.T) {
	req := validBuyRequest()
	if got := RiskRewardMilli(req, 1085200); got != 2000 {
		t.Errorf("RiskRewardMilli = %d, want 2000", got)
	}
}
