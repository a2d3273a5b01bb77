// internal/agents/anomaly.go
package agents

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/vitalmesh/sentinel/api/schemas"
	"github.com/vitalmesh/sentinel/internal/breaker"
	"github.com/vitalmesh/sentinel/internal/config"
	"github.com/vitalmesh/sentinel/internal/observability"
	"github.com/vitalmesh/sentinel/internal/store"
)

const volumeWindow = 24 * time.Hour

// DeviceAnomalyAgent applies status, battery, and data-volume rules per
// device.
type DeviceAnomalyAgent struct {
	*baseAgent
	cfg       config.AnomalyConfig
	telemetry store.TelemetryStore
	registry  store.DeviceRegistry
}

// NewDeviceAnomalyAgent wires the device anomaly detector.
func NewDeviceAnomalyAgent(
	cfg config.AnomalyConfig,
	breakerCfg breaker.Config,
	telemetry store.TelemetryStore,
	registry store.DeviceRegistry,
	logger *zap.Logger,
	metrics *observability.Metrics,
) *DeviceAnomalyAgent {
	return &DeviceAnomalyAgent{
		baseAgent: newBaseAgent(NameDeviceAnomaly, breakerCfg, logger, metrics),
		cfg:       cfg,
		telemetry: telemetry,
		registry:  registry,
	}
}

// Process implements Agent.
func (a *DeviceAnomalyAgent) Process(ctx context.Context, in Input) schemas.AgentResult {
	return a.run(ctx, in, a.detect)
}

func (a *DeviceAnomalyAgent) detect(ctx context.Context, in Input) (*schemas.AgentResult, error) {
	devices, err := a.registry.UserDevices(ctx, in.UserID, in.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	if len(devices) == 0 {
		return buildResult("Device", nil, 0,
			[]string{"No devices registered; no device anomalies to check."}, 0.5), nil
	}

	now := time.Now()
	var issues []schemas.Issue

	for _, device := range devices {
		if issue, ok := a.checkStatus(device); ok {
			issues = append(issues, issue)
		}
		if issue, ok := a.checkBattery(device); ok {
			issues = append(issues, issue)
		}

		issue, ok, err := a.checkVolumeChange(ctx, device, now)
		if err != nil {
			return nil, err
		}
		if ok {
			issues = append(issues, issue)
		}
	}

	insights := []string{
		fmt.Sprintf("Device anomaly checks covered %d device(s); %d issue(s) found.", len(devices), len(issues)),
	}
	return buildResult("Device", issues, len(devices), insights, confidenceFromCoverage(len(devices), len(devices))), nil
}

// checkStatus maps the registry's connection state to an issue.
func (a *DeviceAnomalyAgent) checkStatus(device schemas.Device) (schemas.Issue, bool) {
	var severity schemas.Severity
	switch device.Status {
	case schemas.DeviceDisconnected, schemas.DeviceError:
		severity = schemas.SeverityHigh
	case schemas.DeviceConnecting:
		severity = schemas.SeverityMedium
	default:
		return schemas.Issue{}, false
	}

	return schemas.Issue{
		Kind:        schemas.IssueConnection,
		DeviceID:    device.ID,
		DeviceName:  device.Name,
		Severity:    severity,
		Description: fmt.Sprintf("%s reports status %s", device.Name, device.Status),
		Recommendation: fmt.Sprintf("Check %s's connection; restart the device or re-pair it if the status persists.",
			device.Name),
		NeedsAction: severity == schemas.SeverityHigh,
		Evidence:    schemas.Evidence{DeviceStatus: string(device.Status)},
	}, true
}

// checkBattery flags devices reporting a battery level below the configured
// floor.
func (a *DeviceAnomalyAgent) checkBattery(device schemas.Device) (schemas.Issue, bool) {
	if device.BatteryLevel == nil || *device.BatteryLevel >= a.cfg.LowBatteryLevel {
		return schemas.Issue{}, false
	}
	level := *device.BatteryLevel
	return schemas.Issue{
		Kind:           schemas.IssueBattery,
		DeviceID:       device.ID,
		DeviceName:     device.Name,
		Severity:       schemas.SeverityMedium,
		Description:    fmt.Sprintf("%s battery is at %d%%", device.Name, level),
		Recommendation: fmt.Sprintf("Charge %s soon to avoid gaps in telemetry.", device.Name),
		NeedsAction:    false,
		Evidence:       schemas.Evidence{BatteryLevel: &level},
	}, true
}

// checkVolumeChange compares the last 24 hours of sample volume against the
// 24 hours before that and flags a swing beyond the configured ratio.
func (a *DeviceAnomalyAgent) checkVolumeChange(ctx context.Context, device schemas.Device, now time.Time) (schemas.Issue, bool, error) {
	current, err := a.telemetry.Query(ctx, device.ID, "", now.Add(-volumeWindow), now)
	if err != nil {
		return schemas.Issue{}, false, fmt.Errorf("failed to query current volume for device %s: %w", device.ID, err)
	}
	previous, err := a.telemetry.Query(ctx, device.ID, "", now.Add(-2*volumeWindow), now.Add(-volumeWindow))
	if err != nil {
		return schemas.Issue{}, false, fmt.Errorf("failed to query previous volume for device %s: %w", device.ID, err)
	}
	if len(previous) == 0 {
		return schemas.Issue{}, false, nil
	}

	change := (float64(len(current)) - float64(len(previous))) / float64(len(previous))
	if math.Abs(change) <= a.cfg.VolumeChangeRatio {
		return schemas.Issue{}, false, nil
	}

	direction := "dropped"
	if change > 0 {
		direction = "jumped"
	}
	return schemas.Issue{
		Kind:        schemas.IssueDataCompleteness,
		DeviceID:    device.ID,
		DeviceName:  device.Name,
		Severity:    schemas.SeverityMedium,
		Description: fmt.Sprintf("Data volume from %s %s %.0f%% day over day", device.Name, direction, math.Abs(change)*100),
		Recommendation: fmt.Sprintf("Confirm %s is worn and syncing normally; sudden volume swings usually precede sync failures.",
			device.Name),
		NeedsAction: false,
		Evidence:    schemas.Evidence{VolumeChangeRatio: change, ObservedCount: len(current), ExpectedCount: len(previous)},
	}, true, nil
}
