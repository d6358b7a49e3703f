package quant

import "math"

// Mul performs int64 multiplication and panics on overflow. Profit math
// multiplies micros by milli-lots, so silent wraparound would corrupt
// account state.
func Mul(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > 0 {
		if b > 0 {
			if a > math.MaxInt64/b {
				panic("QUANT_MUL_OVERFLOW")
			}
		} else {
			if b < math.MinInt64/a {
				panic("QUANT_MUL_OVERFLOW")
			}
		}
	} else {
		if b > 0 {
			if a < math.MinInt64/b {
				panic("QUANT_MUL_OVERFLOW")
			}
		} else {
			if a < math.MaxInt64/b {
				panic("QUANT_MUL_OVERFLOW")
			}
		}
	}
	return a * b
}

// Div performs int64 division and panics on division by zero.
func Div(a, b int64) int64 {
	if b == 0 {
		panic("QUANT_DIV_BY_ZERO")
	}
	if a == math.MinInt64 && b == -1 {
		panic("QUANT_DIV_OVERFLOW")
	}
	return a / b
}

// Abs returns |a|. MinInt64 has no positive counterpart and panics.
func Abs(a int64) int64 {
	if a == math.MinInt64 {
		panic("QUANT_ABS_OVERFLOW")
	}
	if a < 0 {
		return -a
	}
	return a
}
