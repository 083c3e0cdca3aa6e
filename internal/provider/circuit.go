package provider

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quantrail/nse-scanner/internal/clock"
)

// CircuitState is the lifecycle state of the circuit breaker.
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half_open"
)

// CircuitBreaker trips after a run of consecutive provider failures and
// blocks calls until a cooldown elapses. After the cooldown one probe call
// is let through (half-open); its outcome closes or reopens the circuit.
// Cooldown timing goes through the Clock so simulated time drives the
// breaker during simulation runs.
type CircuitBreaker struct {
	clk      clock.Clock
	logger   *zap.Logger
	threshold int
	cooldown time.Duration

	mu                  sync.Mutex
	state               CircuitState
	consecutiveFailures int
	openedAt            time.Time
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(clk clock.Clock, threshold int, cooldown time.Duration, logger *zap.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		clk:       clk,
		logger:    logger,
		threshold: threshold,
		cooldown:  cooldown,
		state:     CircuitClosed,
	}
}

// Allow reports whether a provider call may proceed. An open circuit whose
// cooldown has elapsed transitions to half-open and admits the caller as
// the single probe.
func (b *CircuitBreaker) Allow(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CircuitClosed, CircuitHalfOpen:
		return true
	case CircuitOpen:
		now, err := b.clk.Now(ctx)
		if err != nil {
			b.logger.Warn("Circuit breaker could not read clock, keeping circuit open", zap.Error(err))
			return false
		}
		if now.After(b.openedAt.Add(b.cooldown)) {
			b.state = CircuitHalfOpen
			b.logger.Info("Circuit breaker entering half-open state")
			return true
		}
		b.logger.Warn("Circuit breaker open, blocking provider call")
		return false
	}
	return true
}

// RecordSuccess closes the circuit and resets the failure counter.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures = 0
	if b.state != CircuitClosed {
		b.logger.Info("Circuit breaker closed, provider recovered")
	}
	b.state = CircuitClosed
	b.openedAt = time.Time{}
}

// RecordFailure counts a failure and opens the circuit once the threshold
// is reached. A failed half-open probe reopens immediately.
func (b *CircuitBreaker) RecordFailure(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures++
	if b.consecutiveFailures < b.threshold || b.state == CircuitOpen {
		return
	}

	now, err := b.clk.Now(ctx)
	if err != nil {
		b.logger.Warn("Circuit breaker could not read clock while opening", zap.Error(err))
		now = time.Now()
	}
	b.state = CircuitOpen
	b.openedAt = now
	b.logger.Error("Circuit breaker opened",
		zap.Int("consecutive_failures", b.consecutiveFailures),
		zap.Duration("cooldown", b.cooldown),
	)
}

// State returns the current circuit state.
func (b *CircuitBreaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// ConsecutiveFailures returns the current failure run length.
func (b *CircuitBreaker) ConsecutiveFailures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consecutiveFailures
}
