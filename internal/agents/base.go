// internal/agents/base.go
package agents

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vitalmesh/sentinel/api/schemas"
	"github.com/vitalmesh/sentinel/internal/breaker"
	"github.com/vitalmesh/sentinel/internal/observability"
)

// detectFunc is a single detection pass. It runs inside the circuit breaker;
// any error it returns is converted to a failed AgentResult at the boundary.
type detectFunc func(ctx context.Context, in Input) (*schemas.AgentResult, error)

// baseAgent carries the shared execution state behind every agent: status,
// run counters, the circuit breaker, and metrics. Each concrete agent embeds
// one and routes Process through run.
type baseAgent struct {
	name    string
	logger  *zap.Logger
	breaker *breaker.Breaker
	metrics *observability.Metrics

	mu         sync.Mutex
	status     schemas.AgentStatus
	lastRun    *time.Time
	runCount   int64
	errorCount int64
}

func newBaseAgent(name string, cfg breaker.Config, logger *zap.Logger, metrics *observability.Metrics) *baseAgent {
	b := &baseAgent{
		name:    name,
		logger:  logger.Named(name),
		metrics: metrics,
		status:  schemas.AgentIdle,
	}
	b.breaker = breaker.New(name, cfg, logger, func(_, to breaker.State) {
		metrics.BreakerState.WithLabelValues(name).Set(breakerStateValue(to))
	})
	return b
}

func breakerStateValue(s breaker.State) float64 {
	switch s {
	case breaker.StateOpen:
		return 2
	case breaker.StateHalfOpen:
		return 1
	default:
		return 0
	}
}

// Name returns the agent's canonical name.
func (b *baseAgent) Name() string { return b.name }

// run implements the shared execution contract around one detection pass.
// The detector runs through the circuit breaker; success fills in timing,
// failure (detector error or open-circuit rejection) is encoded in the
// returned result. run never panics through to the caller and never returns
// an error.
func (b *baseAgent) run(ctx context.Context, in Input, detect detectFunc) schemas.AgentResult {
	b.mu.Lock()
	b.status = schemas.AgentProcessing
	b.runCount++
	b.mu.Unlock()

	b.metrics.AgentRuns.WithLabelValues(b.name).Inc()
	start := time.Now()

	raw, err := b.breaker.Execute(func() (any, error) {
		return detect(ctx, in)
	})

	elapsed := time.Since(start)
	b.metrics.AgentDuration.WithLabelValues(b.name).Observe(elapsed.Seconds())
	now := time.Now()

	if err != nil {
		b.mu.Lock()
		b.errorCount++
		b.status = schemas.AgentError
		b.lastRun = &now
		b.mu.Unlock()

		b.metrics.AgentErrors.WithLabelValues(b.name).Inc()
		b.logger.Warn("Analysis pass failed",
			zap.String("user_id", in.UserID),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return schemas.FailedResult(b.name, err.Error(), elapsed)
	}

	result := raw.(*schemas.AgentResult)
	result.AgentName = b.name
	result.Success = true
	result.ProcessingTime = elapsed

	b.mu.Lock()
	b.status = schemas.AgentIdle
	b.lastRun = &now
	b.mu.Unlock()

	b.logger.Debug("Analysis pass finished",
		zap.String("user_id", in.UserID),
		zap.Int("issues", len(IssuesFromResult(*result))),
		zap.Duration("elapsed", elapsed))
	return *result
}

// HealthCheck returns a snapshot of the agent's counters and breaker state.
// It mutates nothing; repeated calls without an intervening Process return
// identical values.
func (b *baseAgent) HealthCheck() schemas.HealthReport {
	b.mu.Lock()
	defer b.mu.Unlock()

	// An agent that has not run yet has not failed either.
	successRate := 1.0
	if b.runCount > 0 {
		successRate = float64(b.runCount-b.errorCount) / float64(b.runCount)
	}
	return schemas.HealthReport{
		AgentName:           b.name,
		Status:              b.status,
		LastRun:             b.lastRun,
		RunCount:            b.runCount,
		ErrorCount:          b.errorCount,
		SuccessRate:         successRate,
		CircuitBreakerState: string(b.breaker.State()),
	}
}

// Cleanup releases agent resources. The built-in agents hold none beyond the
// injected collaborators, so the default just logs.
func (b *baseAgent) Cleanup(_ context.Context) error {
	b.logger.Debug("Agent cleanup complete")
	return nil
}
