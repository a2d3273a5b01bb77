// internal/events/consumer_test.go
package events

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/vitalmesh/sentinel/api/schemas"
	"github.com/vitalmesh/sentinel/internal/observability"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeFetcher feeds queued messages to one polling loop and records commits.
type fakeFetcher struct {
	msgs chan kafka.Message

	mu        sync.Mutex
	committed []kafka.Message
	commitErr error
	closed    bool
}

func newFakeFetcher(msgs ...kafka.Message) *fakeFetcher {
	ch := make(chan kafka.Message, len(msgs)+16)
	for _, msg := range msgs {
		ch <- msg
	}
	return &fakeFetcher{msgs: ch}
}

func (f *fakeFetcher) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case msg, ok := <-f.msgs:
		if !ok {
			return kafka.Message{}, io.EOF
		}
		return msg, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (f *fakeFetcher) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commitErr != nil {
		return f.commitErr
	}
	f.committed = append(f.committed, msgs...)
	return nil
}

func (f *fakeFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeFetcher) commitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.committed)
}

func testConsumer(t *testing.T, fetchers map[string]*fakeFetcher) *Consumer {
	t.Helper()
	factory := func(topic string) messageFetcher { return fetchers[topic] }
	return newConsumer(factory, time.Second, zaptest.NewLogger(t), observability.NewTestMetrics())
}

func eventMessage(t *testing.T, eventType schemas.EventType, deviceID string, offset int64) kafka.Message {
	t.Helper()
	event := schemas.Event{
		ID:        "evt-1",
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		DeviceID:  deviceID,
	}
	value, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Topic: string(eventType), Offset: offset, Value: value}
}

func TestConsumer_DispatchCommitsAfterHandler(t *testing.T) {
	fetcher := newFakeFetcher(eventMessage(t, schemas.EventAnomaly, "dev-1", 7))
	c := testConsumer(t, map[string]*fakeFetcher{TopicAnomalies: fetcher})

	var mu sync.Mutex
	var got []schemas.Event
	commitsAtHandle := -1
	c.RegisterHandler(TopicAnomalies, func(ctx context.Context, event schemas.Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, event)
		commitsAtHandle = fetcher.commitCount()
		return nil
	})

	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	require.Eventually(t, func() bool { return fetcher.commitCount() == 1 }, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, "dev-1", got[0].DeviceID)
	// The offset must not have been committed before the handler ran.
	assert.Zero(t, commitsAtHandle)
}

func TestConsumer_MalformedMessageDroppedAndCommitted(t *testing.T) {
	fetcher := newFakeFetcher(kafka.Message{Topic: TopicRawData, Offset: 3, Value: []byte("{not json")})
	c := testConsumer(t, map[string]*fakeFetcher{TopicRawData: fetcher})

	handled := make(chan struct{}, 1)
	c.RegisterHandler(TopicRawData, func(ctx context.Context, event schemas.Event) error {
		handled <- struct{}{}
		return nil
	})

	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	require.Eventually(t, func() bool { return fetcher.commitCount() == 1 }, time.Second, time.Millisecond)

	select {
	case <-handled:
		t.Fatal("handler must not see malformed messages")
	default:
	}
	st := c.Status()[TopicRawData]
	assert.EqualValues(t, 1, st.MessagesDropped)
	assert.EqualValues(t, 0, st.MessagesHandled)
}

func TestConsumer_DefaultHandlerByEventType(t *testing.T) {
	fetcher := newFakeFetcher(eventMessage(t, schemas.EventSync, "dev-2", 1))
	c := testConsumer(t, map[string]*fakeFetcher{TopicSyncEvents: fetcher})

	got := make(chan schemas.Event, 1)
	c.Subscribe(TopicSyncEvents)
	c.RegisterDefaultHandler(schemas.EventSync, func(ctx context.Context, event schemas.Event) error {
		got <- event
		return nil
	})

	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	select {
	case event := <-got:
		assert.Equal(t, "dev-2", event.DeviceID)
	case <-time.After(time.Second):
		t.Fatal("default handler never invoked")
	}
}

func TestConsumer_HandlerErrorStillCommits(t *testing.T) {
	fetcher := newFakeFetcher(eventMessage(t, schemas.EventQualityIssue, "dev-1", 2))
	c := testConsumer(t, map[string]*fakeFetcher{TopicQualityIssues: fetcher})

	c.RegisterHandler(TopicQualityIssues, func(ctx context.Context, event schemas.Event) error {
		return errors.New("downstream rejected event")
	})

	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	require.Eventually(t, func() bool { return fetcher.commitCount() == 1 }, time.Second, time.Millisecond)
	assert.EqualValues(t, 1, c.Status()[TopicQualityIssues].MessagesHandled)
}

func TestConsumer_StartValidation(t *testing.T) {
	c := testConsumer(t, nil)
	assert.Error(t, c.Start(context.Background()), "no topics registered")

	fetcher := newFakeFetcher()
	c = testConsumer(t, map[string]*fakeFetcher{TopicRawData: fetcher})
	c.Subscribe(TopicRawData)

	require.NoError(t, c.Start(context.Background()))
	assert.Error(t, c.Start(context.Background()), "second start must fail")
	c.Stop()
}

func TestConsumer_StopTerminatesLoops(t *testing.T) {
	fetcherA := newFakeFetcher()
	fetcherB := newFakeFetcher()
	c := testConsumer(t, map[string]*fakeFetcher{
		TopicRawData:   fetcherA,
		TopicAnomalies: fetcherB,
	})
	c.Subscribe(TopicRawData)
	c.Subscribe(TopicAnomalies)

	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, func() bool {
		st := c.Status()
		return st[TopicRawData].Running && st[TopicAnomalies].Running
	}, time.Second, time.Millisecond)

	c.Stop()
	st := c.Status()
	assert.False(t, st[TopicRawData].Running)
	assert.False(t, st[TopicAnomalies].Running)
}

func TestEvents_PublishConsumeRoundTrip(t *testing.T) {
	writer := &fakeWriter{}
	p := testProducer(t, writer)

	original := schemas.Issue{
		Kind:        schemas.IssueDrift,
		DeviceID:    "dev-1",
		DeviceName:  "Pulse Band",
		Metric:      "heart_rate",
		Severity:    schemas.SeverityHigh,
		Description: "calibration drift of 12% over 30 days",
		NeedsAction: true,
		Evidence:    schemas.Evidence{DriftPercentage: 0.12},
	}
	require.True(t, p.PublishCalibrationIssue(context.Background(), original))

	written := writer.written()
	require.Len(t, written, 1)

	fetcher := newFakeFetcher(kafka.Message{Topic: TopicCalibration, Offset: 1, Value: written[0].Value})
	c := testConsumer(t, map[string]*fakeFetcher{TopicCalibration: fetcher})

	got := make(chan schemas.Issue, 1)
	c.RegisterHandler(TopicCalibration, func(ctx context.Context, event schemas.Event) error {
		var issue schemas.Issue
		if err := json.Unmarshal(event.Payload, &issue); err != nil {
			return err
		}
		got <- issue
		return nil
	})

	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	select {
	case issue := <-got:
		if diff := cmp.Diff(original, issue); diff != "" {
			t.Fatalf("issue changed across the wire (-want +got):\n%s", diff)
		}
	case <-time.After(time.Second):
		t.Fatal("event never delivered")
	}
}
