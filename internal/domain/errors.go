package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the order-mutation path. These are logic errors and
// are never retried.
var (
	ErrOrderNotFound = errors.New("order not found")
	ErrInvalidState  = errors.New("order is not in a valid state for this operation")
)

// InvalidRequestError reports a malformed order request. Surfaced
// immediately, never retried.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return "invalid order request: " + e.Reason
}

// Risk mandate violation codes.
const (
	RiskNoStopLoss   = "NO_STOP_LOSS"
	RiskNoTakeProfit = "NO_TAKE_PROFIT"
	RiskRRTooLow     = "RR_TOO_LOW"
)

// RiskMandateError reports a violation of the mandatory risk contract:
// missing stop-loss/take-profit or a risk/reward ratio below the configured
// minimum. This is a business invariant, not a transient fault; it is never
// bypassed and never retried.
type RiskMandateError struct {
	Code string
	// ActualRRMilli is the computed risk/reward ratio in thousandths,
	// populated for RR_TOO_LOW.
	ActualRRMilli int64
}

func (e *RiskMandateError) Error() string {
	if e.Code == RiskRRTooLow {
		return fmt.Sprintf("risk mandate violation: %s (rr=%d.%03d)",
			e.Code, e.ActualRRMilli/1000, e.ActualRRMilli%1000)
	}
	return "risk mandate violation: " + e.Code
}

// BrokerError wraps a failure from the broker call path after retries are
// exhausted. The last underlying failure is carried.
type BrokerError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *BrokerError) Error() string {
	return fmt.Sprintf("broker %s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *BrokerError) Unwrap() error { return e.Err }

// ConnectionError is the supervisor's terminal failure after the reconnect
// attempt cap is exceeded.
type ConnectionError struct {
	Attempts int
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("broker connection failed after %d reconnect attempts: %v", e.Attempts, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
