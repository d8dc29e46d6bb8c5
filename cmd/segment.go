package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Smooother/nivo-web-sub001/internal/model"
)

var (
	segRevenueFrom int64
	segRevenueTo   int64
	segProfitFrom  int64
	segProfitTo    int64
	segCompanyType string
)

var segmentCmd = &cobra.Command{
	Use:   "segment",
	Short: "Crawl a revenue/profit segment through all three stages",
	Long:  "Starts a segmentation crawl of the registry listing, then resolves company IDs and fetches financials for everything it staged. Interrupting leaves the job resumable.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		filter := model.SegmentFilter{
			RevenueFrom: segRevenueFrom,
			RevenueTo:   segRevenueTo,
			ProfitFrom:  segProfitFrom,
			ProfitTo:    segProfitTo,
			CompanyType: segCompanyType,
		}

		jobID, existing, err := env.ctrl.StartSegmentation(ctx, filter)
		if err != nil {
			return err
		}
		if existing {
			zap.L().Info("segment already being crawled", zap.String("job_id", jobID))
			return printStatus(ctx, env.ctrl, jobID)
		}

		zap.L().Info("segmentation crawl started",
			zap.String("job_id", jobID),
			zap.Int64("revenue_from", segRevenueFrom),
			zap.Int64("revenue_to", segRevenueTo))

		return env.waitAndReport(ctx, jobID)
	},
}

func init() {
	segmentCmd.Flags().Int64Var(&segRevenueFrom, "revenue-from", 0, "minimum revenue in SEK")
	segmentCmd.Flags().Int64Var(&segRevenueTo, "revenue-to", 0, "maximum revenue in SEK")
	segmentCmd.Flags().Int64Var(&segProfitFrom, "profit-from", 0, "minimum profit in SEK")
	segmentCmd.Flags().Int64Var(&segProfitTo, "profit-to", 0, "maximum profit in SEK")
	segmentCmd.Flags().StringVar(&segCompanyType, "company-type", "", "registry company type filter (default AB)")
	rootCmd.AddCommand(segmentCmd)
}
