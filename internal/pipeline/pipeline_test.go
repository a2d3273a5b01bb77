// internal/pipeline/pipeline_test.go
package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/vitalmesh/sentinel/api/schemas"
	"github.com/vitalmesh/sentinel/internal/agents"
	"github.com/vitalmesh/sentinel/internal/config"
	"github.com/vitalmesh/sentinel/internal/observability"
)

// stalledStore blocks every call until the caller's context expires.
type stalledStore struct{}

func (stalledStore) Query(ctx context.Context, _, _ string, _, _ time.Time) ([]schemas.Sample, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (stalledStore) UserDevices(ctx context.Context, _, _ string) ([]schemas.Device, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (stalledStore) Close() {}

func testPipeline(t *testing.T) *Pipeline {
	t.Helper()
	cfg := config.NewDefaultConfig()
	p, err := build(context.Background(), cfg, zaptest.NewLogger(t), observability.NewTestMetrics())
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func TestBuild_WiresAllAgents(t *testing.T) {
	p := testPipeline(t)

	health := p.Orchestrator().GetHealth()
	assert.Len(t, health.Agents, 4)
	for _, name := range []string{
		agents.NameDataQuality, agents.NameDeviceAnomaly, agents.NameCalibration, agents.NameSyncMonitor,
	} {
		assert.Contains(t, health.Agents, name)
	}
}

func TestRunOnce_EmptyStoreSucceeds(t *testing.T) {
	p := testPipeline(t)

	report := p.RunOnce(context.Background(), "user-1", "")
	assert.Equal(t, schemas.StatusSuccess, report.OverallStatus)
	assert.Equal(t, 4, report.AgentsRun)
	assert.Equal(t, 4, report.SuccessfulAgents)
	assert.Zero(t, report.Summary.TotalIssuesFound)
	// Nothing to publish, so the producer never touched the broker.
	assert.Zero(t, p.Producer().Metrics().TotalPublished)
}

func TestRunOnce_BoundedByRunTimeout(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Orchestrator.RunTimeout = 50 * time.Millisecond
	p := assemble(cfg, zaptest.NewLogger(t), observability.NewTestMetrics(), stalledStore{})
	t.Cleanup(p.Close)

	start := time.Now()
	report := p.RunOnce(context.Background(), "user-1", "")
	require.Less(t, time.Since(start), 5*time.Second, "run must not outlive the configured timeout")

	assert.Equal(t, schemas.StatusPartialFailure, report.OverallStatus)
	assert.Zero(t, report.SuccessfulAgents)
	assert.Equal(t, 4, report.FailedAgents)
}

func TestWatch_RequiresConfiguredUsers(t *testing.T) {
	p := testPipeline(t)

	err := p.Watch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one configured user")
}
