// internal/agents/dataquality.go
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
	completenessWindow = 7 * 24 * time.Hour
	completenessDays   = 7
	outlierWindow      = 24 * time.Hour
	outlierMinPts      = 3
	severeMissingRatio = 0.5
)

// DataQualityAgent detects missing data, statistical outliers, and degraded
// sample quality distributions.
type DataQualityAgent struct {
	*baseAgent
	cfg       config.DataQualityConfig
	telemetry store.TelemetryStore
	registry  store.DeviceRegistry
}

// NewDataQualityAgent wires the data quality detector.
func NewDataQualityAgent(
	cfg config.DataQualityConfig,
	breakerCfg breaker.Config,
	telemetry store.TelemetryStore,
	registry store.DeviceRegistry,
	logger *zap.Logger,
	metrics *observability.Metrics,
) *DataQualityAgent {
	return &DataQualityAgent{
		baseAgent: newBaseAgent(NameDataQuality, breakerCfg, logger, metrics),
		cfg:       cfg,
		telemetry: telemetry,
		registry:  registry,
	}
}

// Process implements Agent.
func (a *DataQualityAgent) Process(ctx context.Context, in Input) schemas.AgentResult {
	return a.run(ctx, in, a.detect)
}

func (a *DataQualityAgent) detect(ctx context.Context, in Input) (*schemas.AgentResult, error) {
	devices, err := a.registry.UserDevices(ctx, in.UserID, in.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	if len(devices) == 0 {
		return buildResult("Data Quality", nil, 0,
			[]string{"No devices registered; no data quality checks performed."}, 0.5), nil
	}

	now := time.Now()
	var issues []schemas.Issue
	evaluated, total := 0, 0

	for _, device := range devices {
		weekSamples, err := a.telemetry.Query(ctx, device.ID, "", now.Add(-completenessWindow), now)
		if err != nil {
			return nil, fmt.Errorf("failed to query samples for device %s: %w", device.ID, err)
		}

		byMetric := groupByMetric(weekSamples)
		for _, metric := range device.SupportedMetrics {
			total++
			if issue, ok := a.checkMissingData(device, metric, len(byMetric[metric])); ok {
				issues = append(issues, issue)
			}
			evaluated++
		}

		daySamples := samplesSince(weekSamples, now.Add(-outlierWindow))
		issues = append(issues, a.checkOutliers(device, groupByMetric(daySamples))...)

		if issue, ok := a.checkQualityDistribution(device, weekSamples); ok {
			issues = append(issues, issue)
		}
	}

	insights := []string{
		fmt.Sprintf("Data quality checks covered %d device(s); %d issue(s) found.", len(devices), len(issues)),
	}
	return buildResult("Data Quality", issues, len(devices), insights, confidenceFromCoverage(evaluated, total)), nil
}

// checkMissingData compares the observed 7-day sample count against the
// metric's expected daily cadence.
func (a *DataQualityAgent) checkMissingData(device schemas.Device, metric string, observed int) (schemas.Issue, bool) {
	expected := dailySamplesFor(metric) * completenessDays
	if float64(observed) >= float64(expected)*(1-a.cfg.MissingThreshold) {
		return schemas.Issue{}, false
	}

	severity := schemas.SeverityMedium
	if float64(observed) < severeMissingRatio*float64(expected) {
		severity = schemas.SeverityHigh
	}
	return schemas.Issue{
		Kind:        schemas.IssueMissingData,
		DeviceID:    device.ID,
		DeviceName:  device.Name,
		Metric:      metric,
		Severity:    severity,
		Description: fmt.Sprintf("%s received %d of %d expected %s samples this week", device.Name, observed, expected, metric),
		Recommendation: fmt.Sprintf("Verify %s stays connected and is worn consistently so %s data keeps flowing.",
			device.Name, metric),
		NeedsAction: severity == schemas.SeverityHigh,
		Evidence:    schemas.Evidence{ObservedCount: observed, ExpectedCount: expected},
	}, true
}

// checkOutliers flags 24-hour readings whose z-score against the rest of the
// metric group exceeds the threshold. The candidate is excluded from the
// mean and deviation so a single extreme value cannot mask itself.
func (a *DataQualityAgent) checkOutliers(device schemas.Device, byMetric map[string][]schemas.Sample) []schemas.Issue {
	var issues []schemas.Issue
	for metric, samples := range byMetric {
		if len(samples) < outlierMinPts {
			continue
		}
		values := sampleValues(samples)
		for i, s := range samples {
			rest := append(append([]float64(nil), values[:i]...), values[i+1:]...)
			m := mean(rest)
			z := zScore(s.Value, m, stddev(rest))
			if z <= a.cfg.OutlierThreshold {
				continue
			}
			desc := fmt.Sprintf("%s reading %.1f from %s is a statistical outlier (z=%.1f)", metric, s.Value, device.Name, z)
			evidence := schemas.Evidence{ZScore: z, Value: s.Value}
			if math.IsInf(z, 1) {
				// A z-score against a zero-spread baseline is not
				// representable on the wire; the reading itself is the
				// evidence.
				desc = fmt.Sprintf("%s reading %.1f from %s deviates from an otherwise constant baseline of %.1f",
					metric, s.Value, device.Name, m)
				evidence.ZScore = 0
			}
			issues = append(issues, schemas.Issue{
				Kind:        schemas.IssueOutlier,
				DeviceID:    device.ID,
				DeviceName:  device.Name,
				Metric:      metric,
				Severity:    schemas.SeverityMedium,
				Description: desc,
				Recommendation: fmt.Sprintf("Review the %s reading of %.1f on %s; isolated spikes often indicate sensor glitches.",
					metric, s.Value, device.Name),
				NeedsAction: false,
				Evidence:    evidence,
			})
		}
	}
	return issues
}

// checkQualityDistribution flags devices whose week of samples contains too
// many POOR or UNKNOWN quality readings.
func (a *DataQualityAgent) checkQualityDistribution(device schemas.Device, samples []schemas.Sample) (schemas.Issue, bool) {
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
		Kind:        schemas.IssueDataCompleteness,
		DeviceID:    device.ID,
		DeviceName:  device.Name,
		Severity:    schemas.SeverityMedium,
		Description: fmt.Sprintf("%.0f%% of samples from %s this week are poor or unknown quality", ratio*100, device.Name),
		Recommendation: fmt.Sprintf("Update %s firmware and check its signal conditions; most samples should grade GOOD.",
			device.Name),
		NeedsAction: true,
		Evidence:    schemas.Evidence{PoorQualityRatio: ratio},
	}, true
}

func groupByMetric(samples []schemas.Sample) map[string][]schemas.Sample {
	grouped := make(map[string][]schemas.Sample)
	for _, s := range samples {
		grouped[s.Metric] = append(grouped[s.Metric], s)
	}
	return grouped
}
