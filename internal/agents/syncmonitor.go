// internal/agents/syncmonitor.go
package agents

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vitalmesh/sentinel/api/schemas"
	"github.com/vitalmesh/sentinel/internal/breaker"
	"github.com/vitalmesh/sentinel/internal/config"
	"github.com/vitalmesh/sentinel/internal/observability"
	"github.com/vitalmesh/sentinel/internal/store"
)

const (
	infrequentSyncFactor = 2.0
	staleSyncFactor      = 4.0
	overSyncFactor       = 0.5
	reliabilityWindow    = 7 * 24 * time.Hour
)

// SyncMonitorAgent watches sync freshness against per-device-type cadence
// expectations and the reliability of what each sync delivers.
type SyncMonitorAgent struct {
	*baseAgent
	cfg       config.SyncMonitorConfig
	telemetry store.TelemetryStore
	registry  store.DeviceRegistry
}

// NewSyncMonitorAgent wires the sync monitoring detector.
func NewSyncMonitorAgent(
	cfg config.SyncMonitorConfig,
	breakerCfg breaker.Config,
	telemetry store.TelemetryStore,
	registry store.DeviceRegistry,
	logger *zap.Logger,
	metrics *observability.Metrics,
) *SyncMonitorAgent {
	return &SyncMonitorAgent{
		baseAgent: newBaseAgent(NameSyncMonitor, breakerCfg, logger, metrics),
		cfg:       cfg,
		telemetry: telemetry,
		registry:  registry,
	}
}

// Process implements Agent.
func (a *SyncMonitorAgent) Process(ctx context.Context, in Input) schemas.AgentResult {
	return a.run(ctx, in, a.detect)
}

func (a *SyncMonitorAgent) detect(ctx context.Context, in Input) (*schemas.AgentResult, error) {
	devices, err := a.registry.UserDevices(ctx, in.UserID, in.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	if len(devices) == 0 {
		return buildResult("Sync", nil, 0,
			[]string{"No devices registered; no sync activity to monitor."}, 0.5), nil
	}

	now := time.Now()
	var issues []schemas.Issue

	for _, device := range devices {
		if issue, ok := a.checkFreshness(device, now); ok {
			issues = append(issues, issue)
		}

		weekSamples, err := a.telemetry.Query(ctx, device.ID, "", now.Add(-reliabilityWindow), now)
		if err != nil {
			return nil, fmt.Errorf("failed to query samples for device %s: %w", device.ID, err)
		}
		if issue, ok := a.checkReliability(device, weekSamples); ok {
			issues = append(issues, issue)
		}
	}

	insights := []string{
		fmt.Sprintf("Sync checks covered %d device(s); %d issue(s) found.", len(devices), len(issues)),
	}
	return buildResult("Sync", issues, len(devices), insights, confidenceFromCoverage(len(devices), len(devices))), nil
}

// checkFreshness compares elapsed time since the last sync against the
// device type's expected cadence.
func (a *SyncMonitorAgent) checkFreshness(device schemas.Device, now time.Time) (schemas.Issue, bool) {
	cadence := cadenceHoursFor(device.Type, a.cfg.CadenceHours)

	if device.LastSyncAt == nil {
		return schemas.Issue{
			Kind:        schemas.IssueSyncFrequency,
			DeviceID:    device.ID,
			DeviceName:  device.Name,
			Severity:    schemas.SeverityHigh,
			Description: fmt.Sprintf("%s has never synced", device.Name),
			Recommendation: fmt.Sprintf("Open the companion app and complete the initial sync for %s.",
				device.Name),
			NeedsAction: true,
			Evidence:    schemas.Evidence{ExpectedCadenceHours: cadence},
		}, true
	}

	hours := now.Sub(*device.LastSyncAt).Hours()
	switch {
	case hours > staleSyncFactor*cadence:
		return schemas.Issue{
			Kind:        schemas.IssueSyncFrequency,
			DeviceID:    device.ID,
			DeviceName:  device.Name,
			Severity:    schemas.SeverityHigh,
			Description: fmt.Sprintf("%s last synced %.0f hours ago (expected every %.0f hours)", device.Name, hours, cadence),
			Recommendation: fmt.Sprintf("Reconnect %s; it has missed several sync windows.",
				device.Name),
			NeedsAction: true,
			Evidence:    schemas.Evidence{HoursSinceSync: hours, ExpectedCadenceHours: cadence},
		}, true
	case hours > infrequentSyncFactor*cadence:
		return schemas.Issue{
			Kind:        schemas.IssueSyncFrequency,
			DeviceID:    device.ID,
			DeviceName:  device.Name,
			Severity:    schemas.SeverityMedium,
			Description: fmt.Sprintf("%s syncs infrequently: %.0f hours since last sync (expected every %.0f hours)", device.Name, hours, cadence),
			Recommendation: fmt.Sprintf("Enable background sync for %s to close the gap.",
				device.Name),
			NeedsAction: false,
			Evidence:    schemas.Evidence{HoursSinceSync: hours, ExpectedCadenceHours: cadence},
		}, true
	case hours < overSyncFactor*cadence && hours >= 0:
		return schemas.Issue{
			Kind:        schemas.IssueSyncFrequency,
			DeviceID:    device.ID,
			DeviceName:  device.Name,
			Severity:    schemas.SeverityLow,
			Description: fmt.Sprintf("%s is over-syncing: %.1f hours since last sync against a %.0f hour cadence", device.Name, hours, cadence),
			Recommendation: fmt.Sprintf("Frequent syncing drains %s's battery; consider relaxing its sync schedule.",
				device.Name),
			NeedsAction: false,
			Evidence:    schemas.Evidence{HoursSinceSync: hours, ExpectedCadenceHours: cadence},
		}, true
	}
	return schemas.Issue{}, false
}

// checkReliability flags devices whose synced samples grade poorly too often.
func (a *SyncMonitorAgent) checkReliability(device schemas.Device, samples []schemas.Sample) (schemas.Issue, bool) {
	if len(samples) == 0 {
		return schemas.Issue{}, false
	}
	poor := 0
	for _, s := range samples {
		if s.Quality == schemas.QualityPoor || s.Quality == schemas.QualityUnknown {
			poor++
		}
	}
	ratio := float64(poor) / float64(len(samples))
	if ratio <= a.cfg.PoorQualityRatio {
		return schemas.Issue{}, false
	}

	return schemas.Issue{
		Kind:        schemas.IssueSyncReliability,
		DeviceID:    device.ID,
		DeviceName:  device.Name,
		Severity:    schemas.SeverityMedium,
		Description: fmt.Sprintf("%.0f%% of samples synced from %s this week graded poor or unknown", ratio*100, device.Name),
		Recommendation: fmt.Sprintf("Sync %s closer to its hub and retry; degraded payloads usually mean a weak link.",
			device.Name),
		NeedsAction: true,
		Evidence:    schemas.Evidence{PoorQualityRatio: ratio},
	}, true
}
