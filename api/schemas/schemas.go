package schemas

// -- Issue Schemas --

// Severity represents the severity level of a telemetry quality issue. The
// values are lowercase to align with the wire format consumed downstream.
type Severity string

// Constants defining the standard severity levels for issues.
const (
	SeverityCritical Severity = "critical" // Immediate action required.
	SeverityHigh     Severity = "high"     // Action required soon.
	SeverityMedium   Severity = "medium"   // Worth investigating.
	SeverityLow      Severity = "low"      // Informational.
)

// IssueKind discriminates the tagged union of issue payloads. Every detector
// produces exactly one kind per finding, and the consolidation layer switches
// over the kind to build summaries.
type IssueKind string

// Constants for every issue kind the detectors can emit.
const (
	IssueDrift            IssueKind = "drift"             // Calibration drift over time.
	IssueInconsistency    IssueKind = "inconsistency"     // High reading variability.
	IssueAccuracy         IssueKind = "accuracy"          // Readings outside reference range.
	IssueMissingData      IssueKind = "missing_data"      // Fewer samples than the expected cadence.
	IssueOutlier          IssueKind = "outlier"           // Statistical outlier reading.
	IssueConnection       IssueKind = "connection"        // Device connectivity problem.
	IssueBattery          IssueKind = "battery"           // Low battery.
	IssueSyncFrequency    IssueKind = "sync_frequency"    // Syncing too rarely or too often.
	IssueSyncReliability  IssueKind = "sync_reliability"  // Poor-quality sync payloads.
	IssueDataCompleteness IssueKind = "data_completeness" // Degraded sample quality distribution.
)

// Evidence carries the kind-specific numeric backing for an issue. Only the
// fields relevant to the issue's kind are populated; the rest are omitted
// from the wire format.
type Evidence struct {
	DriftPercentage        float64 `json:"drift_percentage,omitempty"`
	CoefficientOfVariation float64 `json:"coefficient_of_variation,omitempty"`
	AccuracyRate           float64 `json:"accuracy_rate,omitempty"`
	ZScore                 float64 `json:"z_score,omitempty"`
	Value                  float64 `json:"value,omitempty"`
	ObservedCount          int     `json:"observed_count,omitempty"`
	ExpectedCount          int     `json:"expected_count,omitempty"`
	HoursSinceSync         float64 `json:"hours_since_sync,omitempty"`
	ExpectedCadenceHours   float64 `json:"expected_cadence_hours,omitempty"`
	PoorQualityRatio       float64 `json:"poor_quality_ratio,omitempty"`
	BatteryLevel           *int    `json:"battery_level,omitempty"`
	VolumeChangeRatio      float64 `json:"volume_change_ratio,omitempty"`
	DeviceStatus           string  `json:"device_status,omitempty"`
}

// Issue is a structured finding produced by a detection pass. The envelope
// fields are common to all kinds; Evidence holds the per-kind numbers. It
// marshals flat so downstream consumers see one JSON object per finding.
type Issue struct {
	Kind           IssueKind `json:"kind"`
	DeviceID       string    `json:"device_id"`
	DeviceName     string    `json:"device_name"`
	Metric         string    `json:"metric,omitempty"`
	Severity       Severity  `json:"severity"`
	Description    string    `json:"description"`
	Recommendation string    `json:"recommendation"`
	NeedsAction    bool      `json:"needs_action"`

	Evidence
}

// RequiresAlert reports whether the issue is severe enough to surface as an
// alert string on the owning agent's result.
func (i Issue) RequiresAlert() bool {
	return i.Severity == SeverityHigh || i.Severity == SeverityCritical
}
