package infra

import (
	"time"
)

const (
	// Standard backoff constants for the reconnect path.
	ReconnectBaseDelay = 1 * time.Second
	ReconnectMaxDelay  = 60 * time.Second
)

// Backoff returns base * 2^attempt, capped at max.
// A negative attempt returns base.
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 0 {
		return base
	}

	// 2^30 seconds already dwarfs any sane cap; bail before the shift
	// can overflow.
	if attempt > 30 {
		return max
	}

	delay := base * time.Duration(1<<attempt)
	if delay > max {
		return max
	}
	return delay
}

// RetryDelay returns the sleep before retry attempt n (1-based):
// min(base * multiplier^(n-1), max).
func RetryDelay(attempt int, base, max time.Duration, multiplier int) time.Duration {
	if attempt < 1 {
		return base
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= time.Duration(multiplier)
		if delay > max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}
