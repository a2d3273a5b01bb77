package agents

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalmesh/sentinel/api/schemas"
)

func qualityDevice(metrics ...string) schemas.Device {
	return schemas.Device{
		ID:               "dev-q",
		Name:             "Glucose Patch",
		Type:             "cgm",
		SupportedMetrics: metrics,
		Status:           schemas.DeviceConnected,
	}
}

func TestDataQuality_OutlierFlagged(t *testing.T) {
	now := time.Now()
	device := qualityDevice("heart_rate")
	st := seededStore(t, []schemas.Device{device},
		hourlySamples(device.ID, "heart_rate", []float64{70, 72, 71, 69, 200}, now))

	cfg := defaultAgentsConfig()
	agent := NewDataQualityAgent(cfg.DataQuality, testBreakerConfig(), st, st, testLogger(t), testMetrics())

	result := agent.Process(context.Background(), Input{UserID: testUser})
	require.True(t, result.Success)

	outliers := issuesOfKind(IssuesFromResult(result), schemas.IssueOutlier)
	require.Len(t, outliers, 1, "only the 200 reading should be flagged")
	assert.Equal(t, schemas.SeverityMedium, outliers[0].Severity)
	assert.Equal(t, 200.0, outliers[0].Value)
	assert.Greater(t, outliers[0].ZScore, 3.0)
}

func TestDataQuality_SpikeOverConstantBaselineFlagged(t *testing.T) {
	now := time.Now()
	device := qualityDevice("heart_rate")
	// The baseline has zero spread, so the spike cannot be scored by a
	// finite z-score but must still surface as an outlier.
	st := seededStore(t, []schemas.Device{device},
		hourlySamples(device.ID, "heart_rate", []float64{70, 70, 70, 70, 200}, now))

	cfg := defaultAgentsConfig()
	agent := NewDataQualityAgent(cfg.DataQuality, testBreakerConfig(), st, st, testLogger(t), testMetrics())

	result := agent.Process(context.Background(), Input{UserID: testUser})
	require.True(t, result.Success)

	outliers := issuesOfKind(IssuesFromResult(result), schemas.IssueOutlier)
	require.Len(t, outliers, 1, "only the 200 reading should be flagged")
	assert.Equal(t, 200.0, outliers[0].Value)
	assert.Zero(t, outliers[0].ZScore, "an infinite score must not leak into evidence")
	assert.Contains(t, outliers[0].Description, "constant baseline")
}

func TestDataQuality_MissingDataSeverityScales(t *testing.T) {
	now := time.Now()
	device := qualityDevice("heart_rate")
	// heart_rate expects 24*7 samples per week; 5 is far below half.
	st := seededStore(t, []schemas.Device{device},
		hourlySamples(device.ID, "heart_rate", []float64{70, 71, 72, 70, 71}, now))

	cfg := defaultAgentsConfig()
	agent := NewDataQualityAgent(cfg.DataQuality, testBreakerConfig(), st, st, testLogger(t), testMetrics())

	result := agent.Process(context.Background(), Input{UserID: testUser})
	missing := issuesOfKind(IssuesFromResult(result), schemas.IssueMissingData)
	require.Len(t, missing, 1)
	assert.Equal(t, schemas.SeverityHigh, missing[0].Severity)
	assert.Equal(t, 5, missing[0].ObservedCount)
	assert.Equal(t, 168, missing[0].ExpectedCount)
}

func TestDataQuality_CompleteWeekPassesMissingCheck(t *testing.T) {
	now := time.Now()
	device := qualityDevice("weight")
	// weight expects one sample per day; a full week satisfies the cadence.
	var samples []schemas.Sample
	for day := 0; day < 7; day++ {
		samples = append(samples, schemas.Sample{
			DeviceID:   device.ID,
			Metric:     "weight",
			Value:      80,
			Quality:    schemas.QualityGood,
			RecordedAt: now.Add(-time.Duration(day)*24*time.Hour - time.Hour),
		})
	}
	st := seededStore(t, []schemas.Device{device}, samples)

	cfg := defaultAgentsConfig()
	agent := NewDataQualityAgent(cfg.DataQuality, testBreakerConfig(), st, st, testLogger(t), testMetrics())

	result := agent.Process(context.Background(), Input{UserID: testUser})
	assert.Empty(t, issuesOfKind(IssuesFromResult(result), schemas.IssueMissingData))
}

func TestDataQuality_PoorQualityDistributionFlagged(t *testing.T) {
	now := time.Now()
	device := qualityDevice("weight")
	var samples []schemas.Sample
	for day := 0; day < 7; day++ {
		quality := schemas.QualityGood
		if day < 3 {
			quality = schemas.QualityPoor
		}
		samples = append(samples, schemas.Sample{
			DeviceID:   device.ID,
			Metric:     "weight",
			Value:      80,
			Quality:    quality,
			RecordedAt: now.Add(-time.Duration(day)*24*time.Hour - time.Hour),
		})
	}
	st := seededStore(t, []schemas.Device{device}, samples)

	cfg := defaultAgentsConfig()
	agent := NewDataQualityAgent(cfg.DataQuality, testBreakerConfig(), st, st, testLogger(t), testMetrics())

	result := agent.Process(context.Background(), Input{UserID: testUser})
	completeness := issuesOfKind(IssuesFromResult(result), schemas.IssueDataCompleteness)
	require.Len(t, completeness, 1)
	assert.InDelta(t, 3.0/7.0, completeness[0].PoorQualityRatio, 0.01)
	assert.True(t, completeness[0].NeedsAction)
}

func TestDataQuality_StableSeriesProducesNoOutliers(t *testing.T) {
	now := time.Now()
	device := qualityDevice("heart_rate")
	st := seededStore(t, []schemas.Device{device},
		hourlySamples(device.ID, "heart_rate", []float64{70, 71, 72, 70, 71, 69, 70}, now))

	cfg := defaultAgentsConfig()
	agent := NewDataQualityAgent(cfg.DataQuality, testBreakerConfig(), st, st, testLogger(t), testMetrics())

	result := agent.Process(context.Background(), Input{UserID: testUser})
	assert.Empty(t, issuesOfKind(IssuesFromResult(result), schemas.IssueOutlier))
}
