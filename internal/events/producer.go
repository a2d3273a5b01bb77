// internal/events/producer.go
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/vitalmesh/sentinel/api/schemas"
	"github.com/vitalmesh/sentinel/internal/config"
	"github.com/vitalmesh/sentinel/internal/observability"
)

// messageWriter is the slice of kafka.Writer the producer uses, kept narrow
// so tests can inject a fake broker.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ProducerMetrics is a snapshot of the producer's in-memory counters.
type ProducerMetrics struct {
	TotalPublished  int64            `json:"total_published"`
	PerTopic        map[string]int64 `json:"per_topic"`
	Failed          int64            `json:"failed"`
	LastPublishTime time.Time        `json:"last_publish_time"`
}

// Producer publishes events onto the pipeline's topics. Publish failures are
// logged, counted, and returned as false; they never propagate into the
// calling agent, preserving pipeline liveness. Safe for concurrent use by
// all agents.
type Producer struct {
	writer       messageWriter
	logger       *zap.Logger
	metrics      *observability.Metrics
	writeTimeout time.Duration

	mu     sync.Mutex
	counts ProducerMetrics
}

// NewProducer connects a durable writer (acks from all in-sync replicas,
// hash-balanced by message key) to the configured brokers.
func NewProducer(cfg config.BrokerConfig, logger *zap.Logger, metrics *observability.Metrics) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		RequiredAcks: kafka.RequireAll,
		Balancer:     &kafka.Hash{},
		WriteTimeout: cfg.WriteTimeout,
	}
	return newProducer(writer, cfg.WriteTimeout, logger, metrics)
}

func newProducer(writer messageWriter, writeTimeout time.Duration, logger *zap.Logger, metrics *observability.Metrics) *Producer {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &Producer{
		writer:       writer,
		logger:       logger.Named("producer"),
		metrics:      metrics,
		writeTimeout: writeTimeout,
		counts:       ProducerMetrics{PerTopic: make(map[string]int64)},
	}
}

// PublishRawData publishes an ingested telemetry sample.
func (p *Producer) PublishRawData(ctx context.Context, sample schemas.Sample) bool {
	return p.publish(ctx, TopicRawData, schemas.EventRawData, sample.DeviceID, sample)
}

// PublishProcessedData publishes a normalized telemetry sample.
func (p *Producer) PublishProcessedData(ctx context.Context, sample schemas.Sample) bool {
	return p.publish(ctx, TopicProcessedData, schemas.EventProcessedData, sample.DeviceID, sample)
}

// PublishAnomaly publishes a device anomaly finding.
func (p *Producer) PublishAnomaly(ctx context.Context, issue schemas.Issue) bool {
	return p.publish(ctx, TopicAnomalies, schemas.EventAnomaly, issue.DeviceID, issue)
}

// PublishCalibrationIssue publishes a calibration finding.
func (p *Producer) PublishCalibrationIssue(ctx context.Context, issue schemas.Issue) bool {
	return p.publish(ctx, TopicCalibration, schemas.EventCalibrationIssue, issue.DeviceID, issue)
}

// PublishQualityIssue publishes a data quality finding.
func (p *Producer) PublishQualityIssue(ctx context.Context, issue schemas.Issue) bool {
	return p.publish(ctx, TopicQualityIssues, schemas.EventQualityIssue, issue.DeviceID, issue)
}

// PublishSyncEvent publishes a sync status finding.
func (p *Producer) PublishSyncEvent(ctx context.Context, issue schemas.Issue) bool {
	return p.publish(ctx, TopicSyncEvents, schemas.EventSync, issue.DeviceID, issue)
}

// PublishIssue routes a finding to its category topic based on kind.
func (p *Producer) PublishIssue(ctx context.Context, issue schemas.Issue) bool {
	switch issue.Kind {
	case schemas.IssueDrift, schemas.IssueInconsistency, schemas.IssueAccuracy:
		return p.PublishCalibrationIssue(ctx, issue)
	case schemas.IssueMissingData, schemas.IssueOutlier, schemas.IssueDataCompleteness:
		return p.PublishQualityIssue(ctx, issue)
	case schemas.IssueSyncFrequency, schemas.IssueSyncReliability:
		return p.PublishSyncEvent(ctx, issue)
	default:
		return p.PublishAnomaly(ctx, issue)
	}
}

// PublishBatch sends multiple envelopes to one topic in a single write,
// keyed by device ID for partition affinity.
func (p *Producer) PublishBatch(ctx context.Context, topic string, events []schemas.Event) bool {
	if len(events) == 0 {
		return true
	}

	msgs := make([]kafka.Message, 0, len(events))
	for _, event := range events {
		value, err := json.Marshal(event)
		if err != nil {
			p.recordFailure(topic, err)
			return false
		}
		msgs = append(msgs, kafka.Message{
			Topic: topic,
			Key:   []byte(event.DeviceID),
			Value: value,
			Time:  event.Timestamp,
		})
	}

	writeCtx, cancel := context.WithTimeout(ctx, p.writeTimeout)
	defer cancel()
	if err := p.writer.WriteMessages(writeCtx, msgs...); err != nil {
		p.recordFailure(topic, err)
		return false
	}
	p.recordSuccess(topic, int64(len(msgs)))
	return true
}

// Metrics returns a copy of the in-memory publish counters.
func (p *Producer) Metrics() ProducerMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()

	snapshot := p.counts
	snapshot.PerTopic = make(map[string]int64, len(p.counts.PerTopic))
	for topic, n := range p.counts.PerTopic {
		snapshot.PerTopic[topic] = n
	}
	return snapshot
}

// Close flushes and releases the underlying writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}

// publish wraps payload in an envelope and writes it synchronously with a
// bounded timeout.
func (p *Producer) publish(ctx context.Context, topic string, eventType schemas.EventType, deviceID string, payload any) bool {
	raw, err := json.Marshal(payload)
	if err != nil {
		p.recordFailure(topic, err)
		return false
	}
	event := schemas.Event{
		ID:        uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		DeviceID:  deviceID,
		Payload:   raw,
	}
	value, err := json.Marshal(event)
	if err != nil {
		p.recordFailure(topic, err)
		return false
	}

	writeCtx, cancel := context.WithTimeout(ctx, p.writeTimeout)
	defer cancel()
	err = p.writer.WriteMessages(writeCtx, kafka.Message{
		Topic: topic,
		Key:   []byte(deviceID),
		Value: value,
		Time:  event.Timestamp,
	})
	if err != nil {
		p.recordFailure(topic, err)
		return false
	}
	p.recordSuccess(topic, 1)
	return true
}

func (p *Producer) recordSuccess(topic string, n int64) {
	p.mu.Lock()
	p.counts.TotalPublished += n
	p.counts.PerTopic[topic] += n
	p.counts.LastPublishTime = time.Now().UTC()
	p.mu.Unlock()
	p.metrics.EventsPublished.WithLabelValues(topic).Add(float64(n))
}

func (p *Producer) recordFailure(topic string, err error) {
	p.mu.Lock()
	p.counts.Failed++
	p.mu.Unlock()
	p.metrics.PublishFailures.WithLabelValues(topic).Inc()
	p.logger.Error("Failed to publish event", zap.String("topic", topic), zap.Error(err))
}
