package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var enrichSource string

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Resolve canonical company IDs for a crawl's staged companies",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		jobID, err := env.ctrl.StartEnrichment(ctx, enrichSource)
		if err != nil {
			return err
		}

		zap.L().Info("enrichment started",
			zap.String("job_id", jobID), zap.String("source_job_id", enrichSource))

		return env.waitAndReport(ctx, jobID)
	},
}

func init() {
	enrichCmd.Flags().StringVar(&enrichSource, "source", "", "segmentation job ID to enrich (required)")
	_ = enrichCmd.MarkFlagRequired("source")
	rootCmd.AddCommand(enrichCmd)
}
