package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var financialsSource string

var financialsCmd = &cobra.Command{
	Use:   "financials",
	Short: "Fetch standardized financials for a crawl's resolved companies",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		jobID, err := env.ctrl.StartFinancials(ctx, financialsSource)
		if err != nil {
			return err
		}

		zap.L().Info("financial fetch started",
			zap.String("job_id", jobID), zap.String("source_job_id", financialsSource))

		return env.waitAndReport(ctx, jobID)
	},
}

func init() {
	financialsCmd.Flags().StringVar(&financialsSource, "source", "", "segmentation job ID to fetch financials for (required)")
	_ = financialsCmd.MarkFlagRequired("source")
	rootCmd.AddCommand(financialsCmd)
}
