package schemas

import "time"

// -- Agent Result Schemas --

// AgentStatus tracks the lifecycle of a single analysis agent.
type AgentStatus string

const (
	AgentIdle       AgentStatus = "idle"
	AgentProcessing AgentStatus = "processing"
	AgentError      AgentStatus = "error"
)

// AgentResult is the outcome of one agent invocation. It is constructed
// exactly once per invocation and never mutated afterwards; every failure
// mode, including circuit-open rejections, is encoded here rather than
// surfaced as an error to the caller.
type AgentResult struct {
	AgentName       string         `json:"agent_name"`
	Success         bool           `json:"success"`
	Data            map[string]any `json:"data,omitempty"`
	Insights        []string       `json:"insights,omitempty"`
	Alerts          []string       `json:"alerts,omitempty"`
	Recommendations []string       `json:"recommendations,omitempty"`
	Confidence      float64        `json:"confidence"`
	ProcessingTime  time.Duration  `json:"processing_time"`
	Error           string         `json:"error,omitempty"`
}

// FailedResult builds the canonical shape for an unsuccessful invocation.
func FailedResult(agentName, errMsg string, elapsed time.Duration) AgentResult {
	return AgentResult{
		AgentName:      agentName,
		Success:        false,
		Error:          errMsg,
		ProcessingTime: elapsed,
	}
}

// HealthReport is the snapshot returned by an agent's health check.
type HealthReport struct {
	AgentName           string      `json:"agent_name"`
	Status              AgentStatus `json:"status"`
	LastRun             *time.Time  `json:"last_run,omitempty"`
	RunCount            int64       `json:"run_count"`
	ErrorCount          int64       `json:"error_count"`
	SuccessRate         float64     `json:"success_rate"`
	CircuitBreakerState string      `json:"circuit_breaker_state"`
}

// -- Consolidated Report Schemas --

// OverallStatus summarizes a full orchestrator run.
type OverallStatus string

const (
	StatusSuccess        OverallStatus = "success"
	StatusPartialFailure OverallStatus = "partial_failure"
)

// ReportSummary aggregates issue counts across every agent in one run.
type ReportSummary struct {
	TotalIssuesFound        int              `json:"total_issues_found"`
	IssuesBySeverity        map[Severity]int `json:"issues_by_severity"`
	DevicesAnalyzed         int              `json:"devices_analyzed"`
	DevicesNeedingAttention int              `json:"devices_needing_attention"`
}

// ConsolidatedReport is the fan-in result of one comprehensive analysis run.
// The orchestrator owns exactly one report per invocation.
type ConsolidatedReport struct {
	ReportID         string                 `json:"report_id"`
	UserID           string                 `json:"user_id"`
	DeviceID         string                 `json:"device_id,omitempty"`
	GeneratedAt      time.Time              `json:"generated_at"`
	AgentsRun        int                    `json:"agents_run"`
	SuccessfulAgents int                    `json:"successful_agents"`
	FailedAgents     int                    `json:"failed_agents"`
	OverallStatus    OverallStatus          `json:"overall_status"`
	AgentResults     map[string]AgentResult `json:"agent_results"`
	Insights         []string               `json:"insights,omitempty"`
	Alerts           []string               `json:"alerts,omitempty"`
	Recommendations  []string               `json:"recommendations,omitempty"`
	Summary          ReportSummary          `json:"summary"`
	Error            string                 `json:"error,omitempty"`
}
