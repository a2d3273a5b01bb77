package schemas

import (
	"encoding/json"
	"time"
)

// -- Event Schemas --

// EventType identifies the category-specific payload carried by an Event.
type EventType string

const (
	EventRawData          EventType = "raw_data"
	EventProcessedData    EventType = "processed_data"
	EventAnomaly          EventType = "device_anomaly"
	EventCalibrationIssue EventType = "calibration_issue"
	EventQualityIssue     EventType = "data_quality_issue"
	EventSync             EventType = "sync_event"
)

// Event is the wire envelope for everything published onto the pipeline's
// topics. It is created at publish time and immutable in transit; consumers
// see it at-least-once per topic subscription.
type Event struct {
	ID        string          `json:"id"`
	EventType EventType       `json:"event_type"`
	Timestamp time.Time       `json:"timestamp"`
	DeviceID  string          `json:"device_id"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}
