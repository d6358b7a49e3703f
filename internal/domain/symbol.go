package domain

import (
	"strings"

	"forex_go/pkg/quant"
)

// Pip sizes in micros. JPY-quoted pairs tick in 0.01, everything else in
// 0.0001.
const (
	PipMicrosDefault quant.PriceMicros = 100
	PipMicrosJPY     quant.PriceMicros = 10_000
)

// PipMicros returns the pip size for a symbol.
func PipMicros(symbol string) quant.PriceMicros {
	if strings.Contains(strings.ToUpper(symbol), "JPY") {
		return PipMicrosJPY
	}
	return PipMicrosDefault
}

// PriceDeltaMicros returns the signed price movement for a side: positive
// when the market moved in the order's favor.
func PriceDeltaMicros(side Side, openMicros, currentMicros quant.PriceMicros) int64 {
	if side == SideBuy {
		return int64(currentMicros) - int64(openMicros)
	}
	return int64(openMicros) - int64(currentMicros)
}

// ProfitMicros converts a price delta into currency profit in micros:
//
//	delta / pip * volume * pipMultiplier - commission
//
// pipMultiplier is the per-lot pip value (typically 10 for a standard lot).
// Swap is deliberately not part of the formula; it is modeled as zero.
func ProfitMicros(symbol string, side Side, openMicros, currentMicros quant.PriceMicros, volume quant.LotsMilli, pipMultiplier, commissionMicros int64) int64 {
	delta := PriceDeltaMicros(side, openMicros, currentMicros)

	// profitMicros = delta * volMilli * mult * 1000 / pipMicros
	// (1000 rescales milli-lots; the micros scale cancels out.)
	gross := quant.Mul(quant.Mul(delta, int64(volume)), quant.Mul(pipMultiplier, 1000))
	return quant.Div(gross, int64(PipMicros(symbol))) - commissionMicros
}
