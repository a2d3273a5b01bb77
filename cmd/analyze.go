// cmd/analyze.go
package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vitalmesh/sentinel/internal/observability"
	"github.com/vitalmesh/sentinel/internal/pipeline"
)

var (
	analyzeUserID   string
	analyzeDeviceID string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run one comprehensive telemetry quality analysis",
	Long: `Runs every analysis agent concurrently for the given user (optionally
narrowed to one device), publishes the findings to their event topics, and
prints the consolidated report as JSON.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := observability.GetLogger()

		p, err := pipeline.New(ctx, appCfg, logger)
		if err != nil {
			return err
		}
		defer p.Close()

		report := p.RunOnce(ctx, analyzeUserID, analyzeDeviceID)

		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to render report: %w", err)
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeUserID, "user", "u", "", "user ID to analyze (required)")
	analyzeCmd.Flags().StringVarP(&analyzeDeviceID, "device", "d", "", "restrict analysis to one device ID")
	_ = analyzeCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(analyzeCmd)
}
