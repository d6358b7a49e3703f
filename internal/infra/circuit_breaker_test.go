package infra

import (
	"testing"
	"time"
)

func TestCircuitBreaker_AllowInClosed(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig("test"))

	if !cb.Allow() {
		t.Error("Expected Allow() to return true in CLOSED state")
	}

	if cb.GetState() != StateClosed {
		t.Errorf("Expected state CLOSED, got %s", cb.GetState())
	}
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cfg := CircuitBreakerConfig{
		Name:             "test",
		FailureThreshold: 3,
		Cooldown:         100 * time.Millisecond,
	}
	cb := NewCircuitBreaker(cfg)

	cb.RecordFailure()
	cb.RecordFailure()

	if cb.GetState() != StateClosed {
		t.Error("Should still be CLOSED after 2 failures")
	}

	cb.RecordFailure() // 3rd failure

	if cb.GetState() != StateOpen {
		t.Errorf("Expected OPEN after 3 failures, got %s", cb.GetState())
	}

	if cb.Allow() {
		t.Error("Expected Allow() to return false in OPEN state")
	}
}

func TestCircuitBreaker_SingleProbeAfterCooldown(t *testing.T) {
	cfg := CircuitBreakerConfig{
		Name:             "test",
		FailureThreshold: 2,
		Cooldown:         50 * time.Millisecond,
	}
	cb := NewCircuitBreaker(cfg)

	cb.RecordFailure()
	cb.RecordFailure()

	if cb.GetState() != StateOpen {
		t.Fatal("Expected OPEN state")
	}

	time.Sleep(60 * time.Millisecond)

	// First call after cooldown is the probe.
	if !cb.Allow() {
		t.Error("Expected Allow() to admit the probe after cooldown")
	}
	if cb.GetState() != StateHalfOpen {
		t.Errorf("Expected HALF_OPEN, got %s", cb.GetState())
	}

	// A second concurrent call must be rejected while the probe is out.
	if cb.Allow() {
		t.Error("Expected Allow() to reject while probe is in flight")
	}
}

func TestCircuitBreaker_ProbeSuccessCloses(t *testing.T) {
	cfg := CircuitBreakerConfig{
		Name:             "test",
		FailureThreshold: 2,
		Cooldown:         10 * time.Millisecond,
	}
	cb := NewCircuitBreaker(cfg)

	cb.RecordFailure()
	cb.RecordFailure()

	time.Sleep(15 * time.Millisecond)
	cb.Allow()

	cb.RecordSuccess()
	if cb.GetState() != StateClosed {
		t.Errorf("Expected CLOSED after probe success, got %s", cb.GetState())
	}
	if cb.FailureCount() != 0 {
		t.Errorf("Expected failure count reset, got %d", cb.FailureCount())
	}
}

func TestCircuitBreaker_ProbeFailureReopens(t *testing.T) {
	cfg := CircuitBreakerConfig{
		Name:             "test",
		FailureThreshold: 2,
		Cooldown:         10 * time.Millisecond,
	}
	cb := NewCircuitBreaker(cfg)

	cb.RecordFailure()
	cb.RecordFailure()

	time.Sleep(15 * time.Millisecond)
	cb.Allow()

	cb.RecordFailure()
	if cb.GetState() != StateOpen {
		t.Errorf("Expected OPEN after probe failure, got %s", cb.GetState())
	}

	// Fresh cooldown window: immediate calls still rejected.
	if cb.Allow() {
		t.Error("Expected rejection during fresh cooldown window")
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig("test"))

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()

	if cb.FailureCount() != 0 {
		t.Errorf("Expected failure count 0 after success, got %d", cb.FailureCount())
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cfg := DefaultCircuitBreakerConfig("test")
	cb := NewCircuitBreaker(cfg)

	for i := 0; i < 5; i++ {
		cb.RecordFailure()
	}

	if cb.GetState() != StateOpen {
		t.Fatal("Expected OPEN state")
	}

	cb.Reset()

	if cb.GetState() != StateClosed {
		t.Errorf("Expected CLOSED after Reset, got %s", cb.GetState())
	}

	if !cb.Allow() {
		t.Error("Expected Allow() to return true after Reset")
	}
}
