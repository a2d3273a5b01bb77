// internal/agents/result.go
package agents

import (
	"fmt"

	"github.com/vitalmesh/sentinel/api/schemas"
)

// DataKeyDevicesAnalyzed records how many devices a pass examined; the
// consolidation layer sums it across agents' payloads.
const DataKeyDevicesAnalyzed = "devices_analyzed"

// genericCalibrationAdvice is appended once whenever any issue in a pass
// requires action.
const genericCalibrationAdvice = "Schedule a calibration session and verify device placement to restore data quality."

// buildResult assembles the common AgentResult shape from a detection pass.
// Alert strings are derived only from high/critical issues, prefixed by the
// agent's reporting category.
func buildResult(category string, issues []schemas.Issue, devicesAnalyzed int, insights []string, confidence float64) *schemas.AgentResult {
	result := &schemas.AgentResult{
		Success: true,
		Data: map[string]any{
			DataKeyIssues:          issues,
			DataKeyDevicesAnalyzed: devicesAnalyzed,
		},
		Insights:   insights,
		Confidence: confidence,
	}

	needsAction := false
	for _, issue := range issues {
		if issue.RequiresAlert() {
			result.Alerts = append(result.Alerts,
				fmt.Sprintf("[%s] %s severity: %s", category, issue.Severity, issue.Description))
		}
		if issue.Recommendation != "" {
			result.Recommendations = append(result.Recommendations, issue.Recommendation)
		}
		if issue.NeedsAction {
			needsAction = true
		}
	}
	if needsAction {
		result.Recommendations = append(result.Recommendations, genericCalibrationAdvice)
	}
	return result
}

// confidenceFromCoverage scales confidence with how much of the intended
// analysis had sufficient data. Full coverage yields 0.95, zero coverage 0.5.
func confidenceFromCoverage(evaluated, total int) float64 {
	if total == 0 {
		return 0.5
	}
	return 0.5 + 0.45*float64(evaluated)/float64(total)
}
