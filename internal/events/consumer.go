// internal/events/consumer.go
package events

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vitalmesh/sentinel/api/schemas"
	"github.com/vitalmesh/sentinel/internal/config"
	"github.com/vitalmesh/sentinel/internal/observability"
)

// Handler processes one consumed event. Handlers are expected to absorb
// their own errors; whatever they return, the message's offset is committed
// after the handler comes back, so delivery is at-least-once for valid
// messages.
type Handler func(ctx context.Context, event schemas.Event) error

// messageFetcher is the slice of kafka.Reader the consumer uses, kept narrow
// so tests can inject a fake broker.
type messageFetcher interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// readerFactory builds one fetcher per subscribed topic.
type readerFactory func(topic string) messageFetcher

// TopicStatus reports the health of one polling loop.
type TopicStatus struct {
	Topic             string    `json:"topic"`
	Running           bool      `json:"running"`
	HandlerRegistered bool      `json:"handler_registered"`
	MessagesHandled   int64     `json:"messages_handled"`
	MessagesDropped   int64     `json:"messages_dropped"`
	LastMessageAt     time.Time `json:"last_message_at,omitempty"`
}

// Consumer subscribes to topics and dispatches events to registered
// handlers, committing each offset only after the handler returns. Malformed
// messages are logged, committed, and dropped without redelivery.
type Consumer struct {
	logger     *zap.Logger
	metrics    *observability.Metrics
	newReader  readerFactory
	commitWait time.Duration

	mu              sync.Mutex
	handlers        map[string]Handler
	defaultHandlers map[schemas.EventType]Handler
	status          map[string]*TopicStatus

	cancel  context.CancelFunc
	group   *errgroup.Group
	started bool
}

// NewConsumer builds a consumer over the configured brokers. Each subscribed
// topic gets its own group reader so per-topic loops poll independently.
func NewConsumer(cfg config.BrokerConfig, logger *zap.Logger, metrics *observability.Metrics) *Consumer {
	factory := func(topic string) messageFetcher {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			GroupID:  cfg.GroupID,
			Topic:    topic,
			MinBytes: 1,
			MaxBytes: 10e6,
			MaxWait:  cfg.PollTimeout,
		})
	}
	return newConsumer(factory, cfg.CommitTimeout, logger, metrics)
}

func newConsumer(factory readerFactory, commitWait time.Duration, logger *zap.Logger, metrics *observability.Metrics) *Consumer {
	if commitWait <= 0 {
		commitWait = 5 * time.Second
	}
	return &Consumer{
		logger:          logger.Named("consumer"),
		metrics:         metrics,
		newReader:       factory,
		commitWait:      commitWait,
		handlers:        make(map[string]Handler),
		defaultHandlers: make(map[schemas.EventType]Handler),
		status:          make(map[string]*TopicStatus),
	}
}

// RegisterHandler subscribes the consumer to a topic and routes its messages
// to fn. Must be called before Start.
func (c *Consumer) RegisterHandler(topic string, fn Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[topic] = fn
	c.status[topic] = &TopicStatus{Topic: topic, HandlerRegistered: fn != nil}
}

// RegisterDefaultHandler routes events whose topic has no dedicated handler
// by event type instead.
func (c *Consumer) RegisterDefaultHandler(eventType schemas.EventType, fn Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaultHandlers[eventType] = fn
}

// Subscribe registers a topic without a dedicated handler; its events fall
// through to the default handlers.
func (c *Consumer) Subscribe(topic string) {
	c.RegisterHandler(topic, nil)
}

// Start spawns one polling loop per subscribed topic. Loops terminate
// cooperatively when Stop is called or ctx is cancelled; one loop's failure
// never stops its siblings.
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return errors.New("consumer already started")
	}
	if len(c.handlers) == 0 {
		c.mu.Unlock()
		return errors.New("no topics registered")
	}
	c.started = true

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	group, loopCtx := errgroup.WithContext(loopCtx)
	c.group = group

	topics := make([]string, 0, len(c.handlers))
	for topic := range c.handlers {
		topics = append(topics, topic)
	}
	c.mu.Unlock()

	for _, topic := range topics {
		topic := topic
		reader := c.newReader(topic)
		c.setRunning(topic, true)
		group.Go(func() error {
			defer c.setRunning(topic, false)
			defer reader.Close()
			c.pollLoop(loopCtx, topic, reader)
			return nil
		})
	}

	c.logger.Info("Consumer started", zap.Strings("topics", topics))
	return nil
}

// Stop cancels every polling loop and waits for them to drain.
func (c *Consumer) Stop() {
	c.mu.Lock()
	cancel, group := c.cancel, c.group
	c.started = false
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if group != nil {
		_ = group.Wait()
	}
	c.logger.Info("Consumer stopped")
}

// Status reports per-topic consumer health and handler registration.
func (c *Consumer) Status() map[string]TopicStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]TopicStatus, len(c.status))
	for topic, st := range c.status {
		out[topic] = *st
	}
	return out
}

// pollLoop fetches, dispatches, and commits messages for one topic until the
// context is cancelled.
func (c *Consumer) pollLoop(ctx context.Context, topic string, reader messageFetcher) {
	log := c.logger.With(zap.String("topic", topic))
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return
			}
			log.Warn("Fetch failed; backing off", zap.Error(err))
			select {
			case <-time.After(time.Second):
				continue
			case <-ctx.Done():
				return
			}
		}

		var event schemas.Event
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			// Malformed messages are committed and dropped; the source does
			// not redeliver them.
			log.Warn("Dropping malformed message", zap.Int64("offset", msg.Offset), zap.Error(err))
			c.recordDrop(topic)
			c.commit(ctx, reader, msg, log)
			continue
		}

		if handler := c.handlerFor(topic, event.EventType); handler != nil {
			if err := handler(ctx, event); err != nil {
				log.Warn("Handler returned error; offset commits regardless",
					zap.String("event_type", string(event.EventType)), zap.Error(err))
			}
		} else {
			log.Debug("No handler for event", zap.String("event_type", string(event.EventType)))
		}

		c.recordHandled(topic)
		c.commit(ctx, reader, msg, log)
	}
}

func (c *Consumer) handlerFor(topic string, eventType schemas.EventType) Handler {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fn := c.handlers[topic]; fn != nil {
		return fn
	}
	return c.defaultHandlers[eventType]
}

// commit advances the offset. A failed commit is logged only; the message
// will be redelivered, which at-least-once delivery tolerates.
func (c *Consumer) commit(ctx context.Context, reader messageFetcher, msg kafka.Message, log *zap.Logger) {
	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.commitWait)
	defer cancel()
	if err := reader.CommitMessages(commitCtx, msg); err != nil {
		log.Warn("Offset commit failed", zap.Int64("offset", msg.Offset), zap.Error(err))
	}
}

func (c *Consumer) setRunning(topic string, running bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.status[topic]; ok {
		st.Running = running
	}
}

func (c *Consumer) recordHandled(topic string) {
	c.mu.Lock()
	if st, ok := c.status[topic]; ok {
		st.MessagesHandled++
		st.LastMessageAt = time.Now().UTC()
	}
	c.mu.Unlock()
	c.metrics.EventsConsumed.WithLabelValues(topic).Inc()
}

func (c *Consumer) recordDrop(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.status[topic]; ok {
		st.MessagesDropped++
	}
}
