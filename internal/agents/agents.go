// internal/agents/agents.go

// Package agents contains the autonomous analysis agents that evaluate
// device telemetry for missing data, drift, inconsistency, and sync
// problems. Every agent follows the same execution contract: failures are
// absorbed by the circuit breaker and encoded into the returned result,
// never raised to the caller.
package agents

import (
	"context"

	"github.com/vitalmesh/sentinel/api/schemas"
)

// Canonical agent names, used for dispatch and report keys.
const (
	NameDataQuality   = "data_quality"
	NameDeviceAnomaly = "device_anomaly"
	NameCalibration   = "calibration"
	NameSyncMonitor   = "sync_monitor"
)

// Input scopes one analysis pass. DeviceID is optional; when empty the agent
// analyzes every device the user has registered.
type Input struct {
	UserID   string
	DeviceID string
}

// Agent is the common execution contract. Process never returns an error:
// all failure modes, including circuit-open rejections, are encoded in the
// AgentResult.
type Agent interface {
	Name() string
	Process(ctx context.Context, in Input) schemas.AgentResult
	HealthCheck() schemas.HealthReport
	Cleanup(ctx context.Context) error
}

// DataKeyIssues is the key under which every detector stores its typed issue
// list in AgentResult.Data. The consolidation layer relies on it.
const DataKeyIssues = "issues"

// IssuesFromResult extracts the typed issue list from a result's payload.
// Results without one (failed runs, empty payloads) yield nil.
func IssuesFromResult(result schemas.AgentResult) []schemas.Issue {
	if result.Data == nil {
		return nil
	}
	issues, _ := result.Data[DataKeyIssues].([]schemas.Issue)
	return issues
}
