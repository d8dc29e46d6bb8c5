package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Smooother/nivo-web-sub001/internal/model"
	"github.com/Smooother/nivo-web-sub001/internal/staging"
	"github.com/Smooother/nivo-web-sub001/pkg/allabolag"
)

const (
	// financialBatchSize caps resolutions claimed per store read.
	financialBatchSize = 50
	// financialChunkSize companies are fetched concurrently per chunk.
	financialChunkSize = 3
)

// FinancialFetcher runs stage three: pull every published accounting period
// for each resolved company.
type FinancialFetcher struct {
	client     allabolag.Client
	store      staging.Store
	chunkDelay time.Duration
}

func NewFinancialFetcher(client allabolag.Client, store staging.Store, chunkDelay time.Duration) *FinancialFetcher {
	if chunkDelay <= 0 {
		chunkDelay = 500 * time.Millisecond
	}
	return &FinancialFetcher{client: client, store: store, chunkDelay: chunkDelay}
}

// Run fetches financials for all pending resolutions of the source job.
// Each resolution reaches a terminal status even when its fetch fails.
func (f *FinancialFetcher) Run(ctx context.Context, fetchJobID, sourceJobID string) error {
	log := zap.L().With(zap.String("component", "pipeline.financials"),
		zap.String("job_id", fetchJobID), zap.String("source_job_id", sourceJobID))

	job, err := f.store.GetJob(ctx, fetchJobID)
	if err != nil {
		return eris.Wrap(err, "pipeline: load financial job")
	}
	processed := job.ProcessedCount

	for {
		if err := checkInterrupt(ctx, f.store, fetchJobID); err != nil {
			return err
		}

		pending, err := f.store.GetResolutionsByStatus(ctx, sourceJobID, model.ResolutionStatusPending, financialBatchSize)
		if err != nil {
			return eris.Wrap(err, "pipeline: claim pending resolutions")
		}
		if len(pending) == 0 {
			break
		}

		for start := 0; start < len(pending); start += financialChunkSize {
			if err := checkInterrupt(ctx, f.store, fetchJobID); err != nil {
				return err
			}

			chunk := pending[start:min(start+financialChunkSize, len(pending))]

			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(financialChunkSize)
			for _, resolution := range chunk {
				g.Go(func() error {
					f.fetchOne(gctx, sourceJobID, resolution)
					return nil
				})
			}
			_ = g.Wait()

			processed += len(chunk)
			if err := f.store.UpdateJob(ctx, fetchJobID, staging.JobUpdate{
				ProcessedCount: &processed,
			}); err != nil {
				return eris.Wrap(err, "pipeline: record financial progress")
			}

			select {
			case <-ctx.Done():
				return errInterrupted
			case <-time.After(f.chunkDelay):
			}
		}
	}

	log.Info("financial fetch finished", zap.Int("processed", processed))
	return nil
}

// fetchOne handles a single resolution. Outcomes: financials_fetched,
// no_financials (registry has none), no_company_data (staged row vanished),
// or error recorded on the row.
func (f *FinancialFetcher) fetchOne(ctx context.Context, sourceJobID string, resolution model.CompanyIDResolution) {
	log := zap.L().With(zap.String("component", "pipeline.financials"),
		zap.String("orgnr", resolution.OrgNumber), zap.String("company_id", resolution.CompanyID))

	setStatus := func(status model.ResolutionStatus, errMsg string) {
		if err := f.store.UpdateResolutionStatus(ctx, sourceJobID, resolution.OrgNumber, status, errMsg); err != nil {
			log.Error("failed to record resolution status",
				zap.String("status", string(status)), zap.Error(err))
		}
	}

	company, err := f.store.GetCompanyByOrgNumber(ctx, sourceJobID, resolution.OrgNumber)
	if eris.Is(err, staging.ErrNotFound) {
		log.Warn("no staged company for resolution")
		setStatus(model.ResolutionStatusNoCompanyData, "")
		return
	}
	if err != nil {
		log.Error("failed to load staged company", zap.Error(err))
		setStatus(model.ResolutionStatusError, err.Error())
		return
	}

	lines, err := f.client.FetchFinancials(ctx, resolution.CompanyID)
	if err != nil {
		log.Warn("financial fetch failed", zap.Error(err))
		setStatus(model.ResolutionStatusError, err.Error())
		return
	}
	if len(lines) == 0 {
		log.Info("no financials published")
		setStatus(model.ResolutionStatusNoFinancials, "")
		return
	}

	records := make([]model.FinancialRecord, 0, len(lines))
	for _, line := range lines {
		records = append(records, model.FinancialRecord{
			CompanyID:   resolution.CompanyID,
			OrgNumber:   company.OrgNumber,
			Year:        line.Year,
			Period:      line.Period,
			PeriodStart: line.PeriodStart,
			PeriodEnd:   line.PeriodEnd,
			Currency:    line.Currency,
			Metrics:     line.Metrics,
			Raw:         line.Raw,
		})
	}

	if err := f.store.InsertFinancialRecords(ctx, sourceJobID, records); err != nil {
		log.Error("failed to store financial records", zap.Error(err))
		setStatus(model.ResolutionStatusError, err.Error())
		return
	}

	setStatus(model.ResolutionStatusFinancialsFetched, "")
	log.Info("financials stored", zap.Int("periods", len(records)))
}
