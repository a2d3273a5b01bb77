// internal/agents/calibration.go
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

const (
	driftWindow       = 30 * 24 * time.Hour
	driftMinSamples   = 10
	driftMinDays      = 2
	consistencyWindow = 7 * 24 * time.Hour
	consistencyMinPts = 5
	accuracyWindow    = 7 * 24 * time.Hour
	accuracyMinPts    = 3
	lowAccuracyFloor  = 0.80
)

// CalibrationAgent detects sensor drift, inconsistent readings, and
// out-of-range readings per device metric.
type CalibrationAgent struct {
	*baseAgent
	cfg       config.CalibrationConfig
	telemetry store.TelemetryStore
	registry  store.DeviceRegistry
}

// NewCalibrationAgent wires the calibration detector.
func NewCalibrationAgent(
	cfg config.CalibrationConfig,
	breakerCfg breaker.Config,
	telemetry store.TelemetryStore,
	registry store.DeviceRegistry,
	logger *zap.Logger,
	metrics *observability.Metrics,
) *CalibrationAgent {
	return &CalibrationAgent{
		baseAgent: newBaseAgent(NameCalibration, breakerCfg, logger, metrics),
		cfg:       cfg,
		telemetry: telemetry,
		registry:  registry,
	}
}

// Process implements Agent.
func (a *CalibrationAgent) Process(ctx context.Context, in Input) schemas.AgentResult {
	return a.run(ctx, in, a.detect)
}

func (a *CalibrationAgent) detect(ctx context.Context, in Input) (*schemas.AgentResult, error) {
	devices, err := a.registry.UserDevices(ctx, in.UserID, in.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	if len(devices) == 0 {
		return buildResult("Calibration", nil, 0,
			[]string{"No devices registered; nothing to calibrate."}, 0.5), nil
	}

	now := time.Now()
	var issues []schemas.Issue
	evaluated, total := 0, 0

	for _, device := range devices {
		for _, metric := range device.SupportedMetrics {
			total++

			longWindow, err := a.telemetry.Query(ctx, device.ID, metric, now.Add(-driftWindow), now)
			if err != nil {
				return nil, fmt.Errorf("failed to query %s samples for device %s: %w", metric, device.ID, err)
			}
			if issue, ok := a.checkDrift(device, metric, longWindow); ok {
				issues = append(issues, issue)
			}

			// The 7-day consistency and accuracy windows are a suffix of the
			// 30-day drift window; slice instead of re-querying.
			shortWindow := samplesSince(longWindow, now.Add(-consistencyWindow))
			if issue, ok := a.checkConsistency(device, metric, shortWindow); ok {
				issues = append(issues, issue)
			}
			if issue, ok := a.checkAccuracy(device, metric, shortWindow); ok {
				issues = append(issues, issue)
			}
			if len(longWindow) >= driftMinSamples {
				evaluated++
			}
		}
	}

	insights := []string{
		fmt.Sprintf("Calibration checks covered %d device(s); %d issue(s) found.", len(devices), len(issues)),
	}
	return buildResult("Calibration", issues, len(devices), insights, confidenceFromCoverage(evaluated, total)), nil
}

// checkDrift fits reading value against days-since-first-sample over the
// 30-day window and flags a sustained slope relative to the mean reading.
func (a *CalibrationAgent) checkDrift(device schemas.Device, metric string, samples []schemas.Sample) (schemas.Issue, bool) {
	if len(samples) < driftMinSamples || distinctDays(samples) < driftMinDays {
		return schemas.Issue{}, false
	}

	first := samples[0].RecordedAt
	xs := make([]float64, len(samples))
	ys := make([]float64, len(samples))
	for i, s := range samples {
		xs[i] = s.RecordedAt.Sub(first).Hours() / 24
		ys[i] = s.Value
	}

	m := mean(ys)
	if m == 0 {
		return schemas.Issue{}, false
	}
	driftPct := math.Abs(linearSlope(xs, ys)*30) / math.Abs(m)
	if driftPct <= a.cfg.DriftThreshold {
		return schemas.Issue{}, false
	}

	severity := schemas.SeverityMedium
	if driftPct > 2*a.cfg.DriftThreshold {
		severity = schemas.SeverityHigh
	}
	return schemas.Issue{
		Kind:        schemas.IssueDrift,
		DeviceID:    device.ID,
		DeviceName:  device.Name,
		Metric:      metric,
		Severity:    severity,
		Description: fmt.Sprintf("%s readings from %s drifted %.1f%% over 30 days", metric, device.Name, driftPct*100),
		Recommendation: fmt.Sprintf("Recalibrate the %s sensor on %s against a reference measurement.",
			metric, device.Name),
		NeedsAction: true,
		Evidence:    schemas.Evidence{DriftPercentage: driftPct},
	}, true
}

// checkConsistency flags a high coefficient of variation over the 7-day
// window.
func (a *CalibrationAgent) checkConsistency(device schemas.Device, metric string, samples []schemas.Sample) (schemas.Issue, bool) {
	if len(samples) < consistencyMinPts {
		return schemas.Issue{}, false
	}

	values := sampleValues(samples)
	m := mean(values)
	if m == 0 {
		return schemas.Issue{}, false
	}
	cv := stddev(values) / math.Abs(m)
	if cv <= a.cfg.ConsistencyThreshold {
		return schemas.Issue{}, false
	}

	return schemas.Issue{
		Kind:        schemas.IssueInconsistency,
		DeviceID:    device.ID,
		DeviceName:  device.Name,
		Metric:      metric,
		Severity:    schemas.SeverityMedium,
		Description: fmt.Sprintf("%s readings from %s vary widely (CV %.2f)", metric, device.Name, cv),
		Recommendation: fmt.Sprintf("Check the fit and placement of %s; inconsistent readings usually indicate loose contact.",
			device.Name),
		NeedsAction: true,
		Evidence:    schemas.Evidence{CoefficientOfVariation: cv},
	}, true
}

// checkAccuracy flags devices whose 7-day readings fall outside the metric's
// reference range too often.
func (a *CalibrationAgent) checkAccuracy(device schemas.Device, metric string, samples []schemas.Sample) (schemas.Issue, bool) {
	ref, ok := referenceRanges[metric]
	if !ok || len(samples) < accuracyMinPts {
		return schemas.Issue{}, false
	}

	outOfRange := 0
	for _, s := range samples {
		if s.Value < ref.Min || s.Value > ref.Max {
			outOfRange++
		}
	}
	rate := 1 - float64(outOfRange)/float64(len(samples))
	if rate >= a.cfg.AccuracyThreshold {
		return schemas.Issue{}, false
	}

	severity := schemas.SeverityMedium
	if rate < lowAccuracyFloor {
		severity = schemas.SeverityHigh
	}
	return schemas.Issue{
		Kind:        schemas.IssueAccuracy,
		DeviceID:    device.ID,
		DeviceName:  device.Name,
		Metric:      metric,
		Severity:    severity,
		Description: fmt.Sprintf("%.0f%% of %s readings from %s are outside the plausible range", (1-rate)*100, metric, device.Name),
		Recommendation: fmt.Sprintf("Inspect %s for sensor damage; repeated implausible %s readings suggest a faulty sensor.",
			device.Name, metric),
		NeedsAction: true,
		Evidence:    schemas.Evidence{AccuracyRate: rate},
	}, true
}

// samplesSince returns the suffix of the time-ordered slice recorded at or
// after cutoff.
func samplesSince(samples []schemas.Sample, cutoff time.Time) []schemas.Sample {
	for i, s := range samples {
		if !s.RecordedAt.Before(cutoff) {
			return samples[i:]
		}
	}
	return nil
}

func sampleValues(samples []schemas.Sample) []float64 {
	values := make([]float64, len(samples))
	for i, s := range samples {
		values[i] = s.Value
	}
	return values
}

func distinctDays(samples []schemas.Sample) int {
	days := make(map[string]struct{}, len(samples))
	for _, s := range samples {
		days[s.RecordedAt.Format("2006-01-02")] = struct{}{}
	}
	return len(days)
}
