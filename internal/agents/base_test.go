package agents

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalmesh/sentinel/api/schemas"
	"github.com/vitalmesh/sentinel/internal/breaker"
	"github.com/vitalmesh/sentinel/internal/store"
)

func TestAgent_FailureEncodedInResult(t *testing.T) {
	cfg := defaultAgentsConfig()
	agent := NewCalibrationAgent(cfg.Calibration, testBreakerConfig(),
		store.NewMemoryStore(), failingRegistry{}, testLogger(t), testMetrics())

	result := agent.Process(context.Background(), Input{UserID: testUser})

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, errStoreDown.Error())
	assert.Equal(t, NameCalibration, result.AgentName)
	assert.GreaterOrEqual(t, result.ProcessingTime, time.Duration(0))
}

func TestAgent_CircuitOpensAfterThresholdFailures(t *testing.T) {
	cfg := defaultAgentsConfig()
	breakerCfg := breaker.Config{FailureThreshold: 3, RecoveryTimeout: time.Minute}
	agent := NewCalibrationAgent(cfg.Calibration, breakerCfg,
		store.NewMemoryStore(), failingRegistry{}, testLogger(t), testMetrics())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result := agent.Process(ctx, Input{UserID: testUser})
		require.False(t, result.Success)
		require.Contains(t, result.Error, errStoreDown.Error())
	}

	health := agent.HealthCheck()
	assert.Equal(t, string(breaker.StateOpen), health.CircuitBreakerState)

	// Subsequent calls are rejected by the breaker, still encoded as data.
	result := agent.Process(ctx, Input{UserID: testUser})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "circuit breaker is open")
}

func TestAgent_HealthCheckCounters(t *testing.T) {
	cfg := defaultAgentsConfig()
	st := seededStore(t, nil, nil)
	agent := NewSyncMonitorAgent(cfg.SyncMonitor, testBreakerConfig(), st, st, testLogger(t), testMetrics())
	ctx := context.Background()

	health := agent.HealthCheck()
	assert.Equal(t, schemas.AgentIdle, health.Status)
	assert.Zero(t, health.RunCount)
	assert.Nil(t, health.LastRun)
	assert.Equal(t, 1.0, health.SuccessRate)

	result := agent.Process(ctx, Input{UserID: testUser})
	require.True(t, result.Success)

	health = agent.HealthCheck()
	assert.Equal(t, int64(1), health.RunCount)
	assert.Zero(t, health.ErrorCount)
	assert.NotNil(t, health.LastRun)
	assert.Equal(t, 1.0, health.SuccessRate)
	assert.Equal(t, string(breaker.StateClosed), health.CircuitBreakerState)
}

func TestAgent_HealthCheckIdempotent(t *testing.T) {
	cfg := defaultAgentsConfig()
	st := seededStore(t, nil, nil)
	agent := NewDataQualityAgent(cfg.DataQuality, testBreakerConfig(), st, st, testLogger(t), testMetrics())

	agent.Process(context.Background(), Input{UserID: testUser})

	first := agent.HealthCheck()
	second := agent.HealthCheck()
	assert.Equal(t, first, second)
}

func TestAgent_SuccessRateMixedRuns(t *testing.T) {
	cfg := defaultAgentsConfig()
	st := seededStore(t, nil, nil)
	good := NewDeviceAnomalyAgent(cfg.Anomaly, testBreakerConfig(), st, st, testLogger(t), testMetrics())
	bad := NewDeviceAnomalyAgent(cfg.Anomaly, testBreakerConfig(), st, failingRegistry{}, testLogger(t), testMetrics())
	ctx := context.Background()

	good.Process(ctx, Input{UserID: testUser})
	good.Process(ctx, Input{UserID: testUser})
	bad.Process(ctx, Input{UserID: testUser})

	assert.Equal(t, 1.0, good.HealthCheck().SuccessRate)
	assert.Equal(t, 0.0, bad.HealthCheck().SuccessRate)
}

func TestAgent_CleanupSucceeds(t *testing.T) {
	cfg := defaultAgentsConfig()
	st := seededStore(t, nil, nil)
	agent := NewCalibrationAgent(cfg.Calibration, testBreakerConfig(), st, st, testLogger(t), testMetrics())

	assert.NoError(t, agent.Cleanup(context.Background()))
}
