package schemas

import "time"

// DeviceStatus mirrors the connection state reported by the device registry.
type DeviceStatus string

const (
	DeviceConnected    DeviceStatus = "CONNECTED"
	DeviceConnecting   DeviceStatus = "CONNECTING"
	DeviceDisconnected DeviceStatus = "DISCONNECTED"
	DeviceError        DeviceStatus = "ERROR"
)

// SampleQuality grades a single telemetry sample as reported by the vendor
// integration that ingested it.
type SampleQuality string

const (
	QualityGood    SampleQuality = "GOOD"
	QualityFair    SampleQuality = "FAIR"
	QualityPoor    SampleQuality = "POOR"
	QualityUnknown SampleQuality = "UNKNOWN"
)

// Device describes a registered wearable or sensor as the device registry
// exposes it to the analysis pipeline.
type Device struct {
	ID               string       `json:"id"`
	UserID           string       `json:"user_id"`
	Name             string       `json:"name"`
	Type             string       `json:"type"` // e.g. "fitness_tracker", "cgm", "smart_scale"
	SupportedMetrics []string     `json:"supported_metrics"`
	Status           DeviceStatus `json:"status"`
	BatteryLevel     *int         `json:"battery_level,omitempty"` // nil when the device does not report it
	LastSyncAt       *time.Time   `json:"last_sync_at,omitempty"`  // nil when the device has never synced
}

// Sample is one time-ordered telemetry reading pulled from the store.
type Sample struct {
	DeviceID   string        `json:"device_id"`
	Metric     string        `json:"metric"`
	Value      float64       `json:"value"`
	Quality    SampleQuality `json:"quality"`
	RecordedAt time.Time     `json:"recorded_at"`
}
