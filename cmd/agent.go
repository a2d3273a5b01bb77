// cmd/agent.go
package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vitalmesh/sentinel/internal/agents"
	"github.com/vitalmesh/sentinel/internal/observability"
	"github.com/vitalmesh/sentinel/internal/pipeline"
)

var (
	agentUserID   string
	agentDeviceID string
)

var agentCmd = &cobra.Command{
	Use:   "agent [name]",
	Short: "Run a single analysis agent",
	Long: fmt.Sprintf(`Runs one named agent and prints its result as JSON.
Known agents: %s, %s, %s, %s.`,
		agents.NameDataQuality, agents.NameDeviceAnomaly, agents.NameCalibration, agents.NameSyncMonitor),
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := observability.GetLogger()

		p, err := pipeline.New(ctx, appCfg, logger)
		if err != nil {
			return err
		}
		defer p.Close()

		result := p.Orchestrator().RunSpecific(ctx, args[0], agents.Input{
			UserID:   agentUserID,
			DeviceID: agentDeviceID,
		})

		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to render result: %w", err)
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	agentCmd.Flags().StringVarP(&agentUserID, "user", "u", "", "user ID to analyze (required)")
	agentCmd.Flags().StringVarP(&agentDeviceID, "device", "d", "", "restrict analysis to one device ID")
	_ = agentCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(agentCmd)
}
