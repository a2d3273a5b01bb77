// cmd/serve.go
package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vitalmesh/sentinel/internal/observability"
	"github.com/vitalmesh/sentinel/internal/pipeline"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the full pipeline: periodic analysis plus event consumption",
	Long: `Starts the consumer's per-topic polling loops and the periodic watch
scheduler together, shutting both down cleanly on SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		logger := observability.GetLogger()
		p, err := pipeline.New(ctx, appCfg, logger)
		if err != nil {
			return err
		}
		defer p.Close()

		if err := p.StartConsumer(ctx); err != nil {
			return err
		}

		group, ctx := errgroup.WithContext(ctx)
		group.Go(func() error {
			return p.Watch(ctx)
		})
		return group.Wait()
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run periodic analyses for the configured users",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		logger := observability.GetLogger()
		p, err := pipeline.New(ctx, appCfg, logger)
		if err != nil {
			return err
		}
		defer p.Close()

		return p.Watch(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
}
