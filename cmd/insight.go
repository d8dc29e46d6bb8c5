package main

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Smooother/nivo-web-sub001/internal/model"
	"github.com/Smooother/nivo-web-sub001/pkg/insight"
)

var insightLimit int

var insightCmd = &cobra.Command{
	Use:   "insight <job-id>",
	Short: "Generate financial assessments for a job's fetched companies",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		jobID := args[0]

		if cfg.Anthropic.Key == "" {
			return eris.New("anthropic key is not configured")
		}

		env, err := initEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		store, err := env.mgr.Acquire(ctx, jobID)
		if err != nil {
			return err
		}
		defer env.mgr.Release(jobID) //nolint:errcheck

		companies, err := store.ListCompanies(ctx, jobID)
		if err != nil {
			return err
		}
		records, err := store.ListFinancialRecords(ctx, jobID)
		if err != nil {
			return err
		}

		byOrgnr := map[string][]model.FinancialRecord{}
		for _, r := range records {
			byOrgnr[r.OrgNumber] = append(byOrgnr[r.OrgNumber], r)
		}

		analyzer := insight.New(cfg.Anthropic.Key, cfg.Anthropic.Model)
		enc := json.NewEncoder(os.Stdout)

		analyzed := 0
		for _, c := range companies {
			recs := byOrgnr[c.OrgNumber]
			if len(recs) == 0 {
				continue
			}
			if insightLimit > 0 && analyzed >= insightLimit {
				break
			}

			finding, err := analyzer.AnalyzeCompany(ctx, insightInput(c, recs))
			if err != nil {
				zap.L().Warn("analysis failed",
					zap.String("orgnr", c.OrgNumber), zap.Error(err))
				continue
			}
			analyzed++

			if err := enc.Encode(struct {
				OrgNumber string `json:"orgnr"`
				Name      string `json:"name"`
				*insight.Finding
			}{c.OrgNumber, c.Name, finding}); err != nil {
				return err
			}
		}

		zap.L().Info("insight pass complete",
			zap.String("job_id", jobID), zap.Int("analyzed", analyzed))
		return nil
	},
	Args: cobra.ExactArgs(1),
}

// insightInput condenses a company's financial records into the headline
// per-year figures the analyzer prompts with.
func insightInput(c model.StagedCompany, recs []model.FinancialRecord) insight.CompanyInput {
	sort.Slice(recs, func(i, j int) bool { return recs[i].Year < recs[j].Year })

	years := make([]insight.YearMetrics, 0, len(recs))
	for _, r := range recs {
		y := insight.YearMetrics{Year: r.Year}
		if v, ok := r.Revenue(); ok {
			y.Revenue = &v
		}
		if v, ok := r.NetResult(); ok {
			y.Result = &v
		}
		if v, ok := r.Equity(); ok {
			y.Equity = &v
		}
		years = append(years, y)
	}

	return insight.CompanyInput{
		Name:       c.Name,
		OrgNumber:  c.OrgNumber,
		Industries: c.NACECategories,
		Years:      years,
	}
}

func init() {
	insightCmd.Flags().IntVar(&insightLimit, "limit", 0, "max companies to analyze (0 = all)")
	rootCmd.AddCommand(insightCmd)
}
