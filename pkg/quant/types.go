// Package quant defines the fixed-point numeric types used across the
// engine. All prices and currency amounts are int64 micros and all volumes
// are int64 milli-lots. Floats appear only at the API boundary.
package quant

import (
	"fmt"
	"math"
	"strconv"
)

// PriceMicros represents a price multiplied by 1,000,000 (10^6).
// E.g. EURUSD 1.0852 = 1,085,200 PriceMicros.
type PriceMicros int64

// LotsMilli represents a trade volume in thousandths of a lot.
// E.g. 0.01 lot = 10 LotsMilli, 1.0 lot = 1000 LotsMilli.
type LotsMilli int64

// TimeStamp represents Unix microseconds.
type TimeStamp int64

const (
	PriceScale = 1_000_000
	LotScale   = 1_000
)

// ToPriceMicros converts a float64 (from an external API) to PriceMicros.
// Only used at the boundary.
func ToPriceMicros(f float64) PriceMicros {
	return PriceMicros(math.Round(f * PriceScale))
}

// ToLotsMilli converts a float64 lot size to LotsMilli.
func ToLotsMilli(f float64) LotsMilli {
	return LotsMilli(math.Round(f * LotScale))
}

func (p PriceMicros) String() string {
	return fmt.Sprintf("%.5f", float64(p)/PriceScale)
}

func (v LotsMilli) String() string {
	return fmt.Sprintf("%.2f", float64(v)/LotScale)
}

// ToPriceMicrosStr converts a numeric string to PriceMicros.
func ToPriceMicrosStr(s string) PriceMicros {
	f, _ := strconv.ParseFloat(s, 64)
	return ToPriceMicros(f)
}

// ParseTimeStamp converts a millisecond string to a TimeStamp (micros).
func ParseTimeStamp(s string) (TimeStamp, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return TimeStamp(ms * 1000), nil
}
