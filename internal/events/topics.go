// internal/events/topics.go

// Package events produces and consumes the pipeline's topic-based event
// streams. Topic names are stable across deployments; messages are keyed by
// device ID so per-device ordering holds within a partition.
package events

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/vitalmesh/sentinel/api/schemas"
)

// Topic names consumed by downstream health-insight services.
const (
	TopicRawData       = "device-data-raw"
	TopicProcessedData = "device-data-processed"
	TopicAnomalies     = "device-anomalies"
	TopicCalibration   = "calibration-events"
	TopicQualityIssues = "data-quality-issues"
	TopicSyncEvents    = "sync-events"
)

// AllTopics lists every topic the pipeline publishes to, in no particular
// order.
var AllTopics = []string{
	TopicRawData,
	TopicProcessedData,
	TopicAnomalies,
	TopicCalibration,
	TopicQualityIssues,
	TopicSyncEvents,
}

// TopicFor maps an event type to the topic that carries it.
func TopicFor(eventType schemas.EventType) string {
	switch eventType {
	case schemas.EventRawData:
		return TopicRawData
	case schemas.EventProcessedData:
		return TopicProcessedData
	case schemas.EventAnomaly:
		return TopicAnomalies
	case schemas.EventCalibrationIssue:
		return TopicCalibration
	case schemas.EventQualityIssue:
		return TopicQualityIssues
	case schemas.EventSync:
		return TopicSyncEvents
	default:
		return ""
	}
}

// json is the shared codec for event envelopes. jsoniter keeps the hot
// publish/consume path cheap while staying wire-compatible with
// encoding/json.
var json = jsoniter.ConfigCompatibleWithStandardLibrary
