package planner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/smilemakc/cadtalk/internal/domainerr"
)

// circuitState mirrors internal/application/executor/circuit_breaker.go's
// CircuitState, adapted to guard calls to an LLMBackend instead of a
// node executor.
type circuitState int

const (
	circuitClosed circuitState = iota
	circuitOpen
	circuitHalfOpen
)

// CircuitBreakerConfig configures a circuitBreakingBackend.
type CircuitBreakerConfig struct {
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
}

func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{FailureThreshold: 5, SuccessThreshold: 2, Timeout: 60 * time.Second}
}

// circuitBreakingBackend wraps an LLMBackend so that once it has failed
// FailureThreshold consecutive times, further calls fail fast with
// domainerr.LLMUnavailable until Timeout has elapsed, at which point a
// single probe call is allowed through (half-open) to test recovery.
type circuitBreakingBackend struct {
	backend LLMBackend
	config  CircuitBreakerConfig

	mu                   sync.Mutex
	state                circuitState
	consecutiveFailures  int
	consecutiveSuccesses int
	openedAt             time.Time
	halfOpenInFlight     bool
}

// WithCircuitBreaker wraps backend with a circuit breaker using config.
func WithCircuitBreaker(backend LLMBackend, config CircuitBreakerConfig) LLMBackend {
	return &circuitBreakingBackend{backend: backend, config: config}
}

func (b *circuitBreakingBackend) Name() string { return b.backend.Name() }

func (b *circuitBreakingBackend) Call(ctx context.Context, prompt string) (string, error) {
	if err := b.before(); err != nil {
		return "", err
	}
	resp, err := b.backend.Call(ctx, prompt)
	b.after(err)
	return resp, err
}

func (b *circuitBreakingBackend) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case circuitClosed:
		return nil
	case circuitOpen:
		if time.Since(b.openedAt) < b.config.Timeout {
			return domainerr.LLMUnavailable(fmt.Errorf("circuit open, retry in %v", b.config.Timeout-time.Since(b.openedAt)))
		}
		b.state = circuitHalfOpen
		b.halfOpenInFlight = true
		return nil
	case circuitHalfOpen:
		if b.halfOpenInFlight {
			return domainerr.LLMUnavailable(fmt.Errorf("circuit half-open, probe in flight"))
		}
		b.halfOpenInFlight = true
		return nil
	default:
		return nil
	}
}

func (b *circuitBreakingBackend) after(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == circuitHalfOpen {
		b.halfOpenInFlight = false
	}

	if err != nil {
		b.consecutiveFailures++
		b.consecutiveSuccesses = 0
		if b.state == circuitHalfOpen || b.consecutiveFailures >= b.config.FailureThreshold {
			b.state = circuitOpen
			b.openedAt = time.Now()
		}
		return
	}

	b.consecutiveSuccesses++
	b.consecutiveFailures = 0
	if b.state == circuitHalfOpen && b.consecutiveSuccesses >= b.config.SuccessThreshold {
		b.state = circuitClosed
	}
}
