// internal/breaker/breaker.go

// Package breaker wraps sony/gobreaker with the failure-shedding semantics
// the analysis agents rely on: trip open after a fixed run of consecutive
// failures, reject calls while open, and allow exactly one trial call once
// the recovery timeout elapses.
package breaker

import (
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrOpenCircuit is returned when a call is rejected because the breaker is
// open (or a trial call is already in flight while half-open). Callers treat
// it as "dependency currently unhealthy, don't retry synchronously".
var ErrOpenCircuit = errors.New("circuit breaker is open")

// State mirrors the breaker's lifecycle for health reporting.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Config holds per-breaker tuning. Zero values fall back to defaults.
type Config struct {
	// FailureThreshold is the number of consecutive failures that trips the
	// breaker from closed to open.
	FailureThreshold uint32
	// RecoveryTimeout is how long the breaker stays open before allowing a
	// single half-open trial call.
	RecoveryTimeout time.Duration
}

const (
	defaultFailureThreshold = 3
	defaultRecoveryTimeout  = 30 * time.Second
)

// Breaker is a per-agent circuit breaker. Each agent owns exactly one
// instance; no cross-agent sharing.
type Breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker
}

// New creates a breaker. onChange, when non-nil, observes every state
// transition for health-check reporting.
func New(name string, cfg Config, logger *zap.Logger, onChange func(from, to State)) *Breaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = defaultFailureThreshold
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = defaultRecoveryTimeout
	}
	log := logger.Named("breaker").With(zap.String("breaker", name))

	settings := gobreaker.Settings{
		Name: name,
		// Exactly one trial call in half-open; its outcome decides the next state.
		MaxRequests: 1,
		Timeout:     cfg.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(_ string, from gobreaker.State, to gobreaker.State) {
			log.Info("Circuit breaker state changed",
				zap.String("from", string(fromGobreaker(from))),
				zap.String("to", string(fromGobreaker(to))))
			if onChange != nil {
				onChange(fromGobreaker(from), fromGobreaker(to))
			}
		},
	}

	return &Breaker{name: name, cb: gobreaker.NewCircuitBreaker(settings)}
}

// Execute runs fn through the breaker. Open-state rejections come back as
// ErrOpenCircuit; fn's own error is passed through and counted as a failure.
func (b *Breaker) Execute(fn func() (any, error)) (any, error) {
	result, err := b.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%s: %w", b.name, ErrOpenCircuit)
		}
		return nil, err
	}
	return result, nil
}

// State returns the breaker's current state.
func (b *Breaker) State() State {
	return fromGobreaker(b.cb.State())
}

// Counts exposes the underlying request/failure counters. gobreaker resets
// them on every state transition, so these reflect the current generation.
func (b *Breaker) Counts() gobreaker.Counts {
	return b.cb.Counts()
}

// Name returns the breaker's identifying name.
func (b *Breaker) Name() string {
	return b.name
}

func fromGobreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}
