package agents

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/vitalmesh/sentinel/api/schemas"
	"github.com/vitalmesh/sentinel/internal/breaker"
	"github.com/vitalmesh/sentinel/internal/config"
	"github.com/vitalmesh/sentinel/internal/observability"
	"github.com/vitalmesh/sentinel/internal/store"
)

const testUser = "user-1"

var errStoreDown = errors.New("store unavailable")

// failingRegistry simulates a dead device registry.
type failingRegistry struct{}

func (failingRegistry) UserDevices(context.Context, string, string) ([]schemas.Device, error) {
	return nil, errStoreDown
}

func testLogger(t *testing.T) *zap.Logger {
	t.Helper()
	return zaptest.NewLogger(t)
}

func testBreakerConfig() breaker.Config {
	return breaker.Config{FailureThreshold: 3, RecoveryTimeout: time.Minute}
}

func defaultAgentsConfig() config.AgentsConfig {
	return config.NewDefaultConfig().Agents
}

func seededStore(t *testing.T, devices []schemas.Device, samples []schemas.Sample) *store.MemoryStore {
	t.Helper()
	st := store.NewMemoryStore()
	st.AddDevices(testUser, devices...)
	st.AddSamples(samples...)
	return st
}

func testMetrics() *observability.Metrics {
	return observability.NewTestMetrics()
}

// hourlySamples generates count GOOD samples for one metric, spaced one hour
// apart, ending just before now.
func hourlySamples(deviceID, metric string, values []float64, now time.Time) []schemas.Sample {
	samples := make([]schemas.Sample, len(values))
	for i, v := range values {
		samples[i] = schemas.Sample{
			DeviceID:   deviceID,
			Metric:     metric,
			Value:      v,
			Quality:    schemas.QualityGood,
			RecordedAt: now.Add(-time.Duration(len(values)-i) * time.Hour),
		}
	}
	return samples
}

func issuesOfKind(issues []schemas.Issue, kind schemas.IssueKind) []schemas.Issue {
	var out []schemas.Issue
	for _, issue := range issues {
		if issue.Kind == kind {
			out = append(out, issue)
		}
	}
	return out
}

func intPtr(v int) *int { return &v }

func timePtr(v time.Time) *time.Time { return &v }
