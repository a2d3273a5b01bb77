// internal/orchestrator/orchestrator.go

// Package orchestrator fans a single analysis request out to every
// registered agent, waits for all of them regardless of individual failures,
// and consolidates their results into one report.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vitalmesh/sentinel/api/schemas"
	"github.com/vitalmesh/sentinel/internal/agents"
)

// ErrAlreadyRunning is reported when a comprehensive run is requested while
// a previous one has not completed. It is surfaced as data on the report,
// never raised.
var ErrAlreadyRunning = errors.New("comprehensive analysis already running")

// ErrUnknownAgent is reported when RunSpecific is given an unrecognized name.
var ErrUnknownAgent = errors.New("unknown agent")

// Status describes whether the orchestrator is accepting comprehensive runs.
type Status string

const (
	StatusHealthy Status = "healthy"
	StatusBusy    Status = "busy"
)

// Health aggregates orchestrator state with every agent's health check.
type Health struct {
	Status Status                         `json:"status"`
	Agents map[string]schemas.HealthReport `json:"agents"`
}

// Orchestrator coordinates the analysis agents. Construct it once and share
// it; the in-flight guard is a process-wide single-run invariant.
type Orchestrator struct {
	agents  []agents.Agent
	byName  map[string]agents.Agent
	logger  *zap.Logger
	running atomic.Bool
}

// New builds an orchestrator over the given agents. Order determines nothing
// but log output; agents run concurrently.
func New(logger *zap.Logger, agentList ...agents.Agent) *Orchestrator {
	byName := make(map[string]agents.Agent, len(agentList))
	for _, a := range agentList {
		byName[a.Name()] = a
	}
	return &Orchestrator{
		agents: agentList,
		byName: byName,
		logger: logger.Named("orchestrator"),
	}
}

// RunComprehensive executes every agent concurrently for the given input and
// consolidates their results. A second call while one is in flight returns a
// report carrying ErrAlreadyRunning immediately, without blocking. Agents
// run to completion; a failing agent never cancels its siblings.
func (o *Orchestrator) RunComprehensive(ctx context.Context, in agents.Input) *schemas.ConsolidatedReport {
	if !o.running.CompareAndSwap(false, true) {
		o.logger.Warn("Comprehensive run rejected: already running", zap.String("user_id", in.UserID))
		return &schemas.ConsolidatedReport{
			ReportID:      uuid.New().String(),
			UserID:        in.UserID,
			DeviceID:      in.DeviceID,
			GeneratedAt:   time.Now().UTC(),
			OverallStatus: schemas.StatusPartialFailure,
			Error:         ErrAlreadyRunning.Error(),
		}
	}
	defer o.running.Store(false)

	o.logger.Info("Starting comprehensive analysis",
		zap.String("user_id", in.UserID),
		zap.String("device_id", in.DeviceID),
		zap.Int("agents", len(o.agents)))

	results := make([]schemas.AgentResult, len(o.agents))
	var wg sync.WaitGroup
	for i, agent := range o.agents {
		wg.Add(1)
		go func(i int, agent agents.Agent) {
			defer wg.Done()
			results[i] = agent.Process(ctx, in)
		}(i, agent)
	}
	wg.Wait()

	report := o.consolidate(in, results)
	o.logger.Info("Comprehensive analysis finished",
		zap.String("report_id", report.ReportID),
		zap.String("status", string(report.OverallStatus)),
		zap.Int("issues", report.Summary.TotalIssuesFound))
	return report
}

// RunSpecific dispatches to one named agent. Unknown names come back as a
// failed result rather than an error.
func (o *Orchestrator) RunSpecific(ctx context.Context, name string, in agents.Input) schemas.AgentResult {
	agent, ok := o.byName[name]
	if !ok {
		o.logger.Warn("Specific run requested for unknown agent", zap.String("agent", name))
		return schemas.FailedResult(name, ErrUnknownAgent.Error(), 0)
	}
	return agent.Process(ctx, in)
}

// consolidate builds the report from all agent results: overall status,
// flattened insight/alert/recommendation lists, and the issue summary.
func (o *Orchestrator) consolidate(in agents.Input, results []schemas.AgentResult) *schemas.ConsolidatedReport {
	report := &schemas.ConsolidatedReport{
		ReportID:     uuid.New().String(),
		UserID:       in.UserID,
		DeviceID:     in.DeviceID,
		GeneratedAt:  time.Now().UTC(),
		AgentsRun:    len(results),
		AgentResults: make(map[string]schemas.AgentResult, len(results)),
		Summary: schemas.ReportSummary{
			IssuesBySeverity: make(map[schemas.Severity]int),
		},
	}

	attention := make(map[string]struct{})
	for _, result := range results {
		report.AgentResults[result.AgentName] = result
		if result.Success {
			report.SuccessfulAgents++
		} else {
			report.FailedAgents++
		}

		report.Insights = append(report.Insights, result.Insights...)
		report.Alerts = append(report.Alerts, result.Alerts...)
		report.Recommendations = append(report.Recommendations, result.Recommendations...)

		for _, issue := range agents.IssuesFromResult(result) {
			report.Summary.TotalIssuesFound++
			report.Summary.IssuesBySeverity[issue.Severity]++
			if issue.NeedsAction {
				attention[issue.DeviceID] = struct{}{}
			}
		}
		if n, ok := result.Data[agents.DataKeyDevicesAnalyzed].(int); ok && n > report.Summary.DevicesAnalyzed {
			report.Summary.DevicesAnalyzed = n
		}
	}
	report.Summary.DevicesNeedingAttention = len(attention)

	if report.FailedAgents == 0 {
		report.OverallStatus = schemas.StatusSuccess
	} else {
		report.OverallStatus = schemas.StatusPartialFailure
	}
	return report
}

// GetHealth aggregates orchestrator status with each agent's health check.
func (o *Orchestrator) GetHealth() Health {
	status := StatusHealthy
	if o.running.Load() {
		status = StatusBusy
	}
	health := Health{
		Status: status,
		Agents: make(map[string]schemas.HealthReport, len(o.agents)),
	}
	for _, agent := range o.agents {
		health.Agents[agent.Name()] = agent.HealthCheck()
	}
	return health
}

// Cleanup runs best-effort cleanup on every agent. Individual failures are
// logged and swallowed.
func (o *Orchestrator) Cleanup(ctx context.Context) {
	for _, agent := range o.agents {
		if err := agent.Cleanup(ctx); err != nil {
			o.logger.Warn("Agent cleanup failed", zap.String("agent", agent.Name()), zap.Error(err))
		}
	}
}
