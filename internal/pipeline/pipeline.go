// internal/pipeline/pipeline.go

// Package pipeline assembles the telemetry quality pipeline: store, agents,
// orchestrator, producer, and consumer are constructed explicitly and passed
// by reference, with lifecycle tied to the process. Nothing here is a
// package-level singleton.
package pipeline

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/vitalmesh/sentinel/api/schemas"
	"github.com/vitalmesh/sentinel/internal/agents"
	"github.com/vitalmesh/sentinel/internal/breaker"
	"github.com/vitalmesh/sentinel/internal/config"
	"github.com/vitalmesh/sentinel/internal/events"
	"github.com/vitalmesh/sentinel/internal/observability"
	"github.com/vitalmesh/sentinel/internal/orchestrator"
	"github.com/vitalmesh/sentinel/internal/store"
)

// Pipeline owns the wired component graph for one process.
type Pipeline struct {
	cfg          *config.Config
	logger       *zap.Logger
	store        store.Store
	orchestrator *orchestrator.Orchestrator
	producer     *events.Producer
	consumer     *events.Consumer
}

// New wires a pipeline from configuration. The returned pipeline must be
// closed to release the store and broker connections.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Pipeline, error) {
	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	return build(ctx, cfg, logger, metrics)
}

func build(ctx context.Context, cfg *config.Config, logger *zap.Logger, metrics *observability.Metrics) (*Pipeline, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Database.Type {
	case "postgres":
		st, err = store.NewPostgresStore(ctx, cfg.Database.URL, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open telemetry store: %w", err)
		}
	default:
		st = store.NewMemoryStore()
	}
	return assemble(cfg, logger, metrics, st), nil
}

func assemble(cfg *config.Config, logger *zap.Logger, metrics *observability.Metrics, st store.Store) *Pipeline {
	breakerCfg := breaker.Config{
		FailureThreshold: cfg.Agents.Breaker.FailureThreshold,
		RecoveryTimeout:  cfg.Agents.Breaker.RecoveryTimeout,
	}

	orch := orchestrator.New(logger,
		agents.NewDataQualityAgent(cfg.Agents.DataQuality, breakerCfg, st, st, logger, metrics),
		agents.NewDeviceAnomalyAgent(cfg.Agents.Anomaly, breakerCfg, st, st, logger, metrics),
		agents.NewCalibrationAgent(cfg.Agents.Calibration, breakerCfg, st, st, logger, metrics),
		agents.NewSyncMonitorAgent(cfg.Agents.SyncMonitor, breakerCfg, st, st, logger, metrics),
	)

	return &Pipeline{
		cfg:          cfg,
		logger:       logger.Named("pipeline"),
		store:        st,
		orchestrator: orch,
		producer:     events.NewProducer(cfg.Broker, logger, metrics),
		consumer:     events.NewConsumer(cfg.Broker, logger, metrics),
	}
}

// Orchestrator exposes the wired orchestrator for direct invocation.
func (p *Pipeline) Orchestrator() *orchestrator.Orchestrator {
	return p.orchestrator
}

// Producer exposes the wired event producer.
func (p *Pipeline) Producer() *events.Producer {
	return p.producer
}

// Consumer exposes the wired event consumer.
func (p *Pipeline) Consumer() *events.Consumer {
	return p.consumer
}

// RunOnce performs one comprehensive analysis and publishes every finding to
// its category topic. The analysis is bounded by the configured run timeout;
// publishing uses the caller's context so findings from a run that ran out of
// time still go out. Publish failures are best-effort and never fail the run.
func (p *Pipeline) RunOnce(ctx context.Context, userID, deviceID string) *schemas.ConsolidatedReport {
	runCtx := ctx
	if p.cfg.Orchestrator.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.cfg.Orchestrator.RunTimeout)
		defer cancel()
	}
	report := p.orchestrator.RunComprehensive(runCtx, agents.Input{UserID: userID, DeviceID: deviceID})
	p.publishFindings(ctx, report)
	return report
}

func (p *Pipeline) publishFindings(ctx context.Context, report *schemas.ConsolidatedReport) {
	published := 0
	for _, result := range report.AgentResults {
		for _, issue := range agents.IssuesFromResult(result) {
			if p.producer.PublishIssue(ctx, issue) {
				published++
			}
		}
	}
	if published > 0 {
		p.logger.Debug("Published findings", zap.String("report_id", report.ReportID), zap.Int("events", published))
	}
}

// Watch runs comprehensive analyses for every configured user at the
// configured interval until ctx is cancelled. The limiter fires immediately
// on the first cycle, then paces subsequent ones.
func (p *Pipeline) Watch(ctx context.Context) error {
	if len(p.cfg.Watch.Users) == 0 {
		return fmt.Errorf("watch requires at least one configured user")
	}

	limiter := rate.NewLimiter(rate.Every(p.cfg.Watch.Interval), 1)
	p.logger.Info("Watch loop started",
		zap.Duration("interval", p.cfg.Watch.Interval),
		zap.Int("users", len(p.cfg.Watch.Users)))

	for {
		if err := limiter.Wait(ctx); err != nil {
			return nil
		}
		for _, userID := range p.cfg.Watch.Users {
			report := p.RunOnce(ctx, userID, "")
			p.logger.Info("Watch cycle finished",
				zap.String("user_id", userID),
				zap.String("status", string(report.OverallStatus)),
				zap.Int("issues", report.Summary.TotalIssuesFound))
		}
	}
}

// StartConsumer subscribes every pipeline topic with a logging default
// handler and starts the polling loops. Callers that want real handlers
// register them on Consumer() before calling Start themselves.
func (p *Pipeline) StartConsumer(ctx context.Context) error {
	for _, topic := range events.AllTopics {
		p.consumer.Subscribe(topic)
	}
	logEvent := func(_ context.Context, event schemas.Event) error {
		p.logger.Info("Event consumed",
			zap.String("event_type", string(event.EventType)),
			zap.String("device_id", event.DeviceID))
		return nil
	}
	for _, eventType := range []schemas.EventType{
		schemas.EventRawData, schemas.EventProcessedData, schemas.EventAnomaly,
		schemas.EventCalibrationIssue, schemas.EventQualityIssue, schemas.EventSync,
	} {
		p.consumer.RegisterDefaultHandler(eventType, logEvent)
	}
	return p.consumer.Start(ctx)
}

// Close tears the pipeline down: consumer loops first, then the producer and
// the store.
func (p *Pipeline) Close() {
	p.consumer.Stop()
	if err := p.producer.Close(); err != nil {
		p.logger.Warn("Producer close failed", zap.Error(err))
	}
	p.orchestrator.Cleanup(context.Background())
	p.store.Close()
}
