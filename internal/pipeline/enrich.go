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
	// enrichChunkSize companies are resolved concurrently per chunk.
	enrichChunkSize = 5
	// enrichBatchSize pending companies are claimed per store read.
	enrichBatchSize = 100
)

// Enricher runs stage two: resolve each staged company's canonical registry
// ID by searching for its org number, then falling back to its name.
type Enricher struct {
	client     allabolag.Client
	store      staging.Store
	chunkDelay time.Duration
}

func NewEnricher(client allabolag.Client, store staging.Store, chunkDelay time.Duration) *Enricher {
	if chunkDelay <= 0 {
		chunkDelay = 500 * time.Millisecond
	}
	return &Enricher{client: client, store: store, chunkDelay: chunkDelay}
}

// Run resolves IDs for every pending company of the source job, recording
// progress on the enrichment job. One company failing never stops the
// batch; its error lands on the row.
func (e *Enricher) Run(ctx context.Context, enrichJobID, sourceJobID string) error {
	log := zap.L().With(zap.String("component", "pipeline.enricher"),
		zap.String("job_id", enrichJobID), zap.String("source_job_id", sourceJobID))

	job, err := e.store.GetJob(ctx, enrichJobID)
	if err != nil {
		return eris.Wrap(err, "pipeline: load enrichment job")
	}
	processed := job.ProcessedCount

	for {
		if err := checkInterrupt(ctx, e.store, enrichJobID); err != nil {
			return err
		}

		pending, err := e.store.GetCompaniesByStatus(ctx, sourceJobID, model.CompanyStatusPending, enrichBatchSize)
		if err != nil {
			return eris.Wrap(err, "pipeline: claim pending companies")
		}
		if len(pending) == 0 {
			break
		}

		for start := 0; start < len(pending); start += enrichChunkSize {
			if err := checkInterrupt(ctx, e.store, enrichJobID); err != nil {
				return err
			}

			chunk := pending[start:min(start+enrichChunkSize, len(pending))]

			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(enrichChunkSize)
			for _, company := range chunk {
				g.Go(func() error {
					e.resolveOne(gctx, sourceJobID, company)
					return nil
				})
			}
			_ = g.Wait()

			processed += len(chunk)
			if err := e.store.UpdateJob(ctx, enrichJobID, staging.JobUpdate{
				ProcessedCount: &processed,
			}); err != nil {
				return eris.Wrap(err, "pipeline: record enrichment progress")
			}

			select {
			case <-ctx.Done():
				return errInterrupted
			case <-time.After(e.chunkDelay):
			}
		}
	}

	log.Info("enrichment finished", zap.Int("processed", processed))
	return nil
}

// resolveOne finds the canonical ID for a single company. All outcomes are
// terminal row states; errors are recorded, never returned.
func (e *Enricher) resolveOne(ctx context.Context, sourceJobID string, company model.StagedCompany) {
	log := zap.L().With(zap.String("component", "pipeline.enricher"),
		zap.String("orgnr", company.OrgNumber))

	candidate, source, err := e.search(ctx, company)
	switch {
	case err != nil:
		log.Warn("company id search failed", zap.Error(err))
		if uerr := e.store.UpdateCompanyStatus(ctx, sourceJobID, company.OrgNumber,
			model.CompanyStatusError, err.Error()); uerr != nil {
			log.Error("failed to record search error", zap.Error(uerr))
		}
	case candidate == nil:
		log.Info("no candidate found", zap.String("name", company.Name))
		if uerr := e.store.UpdateCompanyStatus(ctx, sourceJobID, company.OrgNumber,
			model.CompanyStatusIDNotFound, ""); uerr != nil {
			log.Error("failed to record id_not_found", zap.Error(uerr))
		}
	default:
		resolution := model.CompanyIDResolution{
			OrgNumber:  company.OrgNumber,
			CompanyID:  candidate.CompanyID,
			Source:     source,
			Confidence: confidenceFor(source),
		}
		if uerr := e.store.UpsertResolutions(ctx, sourceJobID, []model.CompanyIDResolution{resolution}); uerr != nil {
			log.Error("failed to store resolution", zap.Error(uerr))
			_ = e.store.UpdateCompanyStatus(ctx, sourceJobID, company.OrgNumber,
				model.CompanyStatusError, uerr.Error())
			return
		}
		if uerr := e.store.MarkCompanyResolved(ctx, sourceJobID, company.OrgNumber, candidate.CompanyID); uerr != nil {
			log.Error("failed to mark company resolved", zap.Error(uerr))
			return
		}
		log.Info("company id resolved",
			zap.String("company_id", candidate.CompanyID), zap.String("source", source))
	}
}

// search tries the org number first: an exact-identifier hit beats any name
// match. The name search is only consulted when the org number finds
// nothing.
func (e *Enricher) search(ctx context.Context, company model.StagedCompany) (*allabolag.Candidate, string, error) {
	candidates, err := e.client.Search(ctx, company.OrgNumber)
	if err != nil {
		return nil, "", eris.Wrap(err, "pipeline: orgnr search")
	}
	if match := matchCandidate(candidates, company); match != nil {
		return match, model.ResolutionSourceOrgNumber, nil
	}

	if company.Name == "" {
		return nil, "", nil
	}
	candidates, err = e.client.Search(ctx, company.Name)
	if err != nil {
		return nil, "", eris.Wrap(err, "pipeline: name search")
	}
	if match := matchCandidate(candidates, company); match != nil {
		return match, model.ResolutionSourceNameSearch, nil
	}
	return nil, "", nil
}

// matchCandidate picks the hit whose org number equals the staged one. With
// no org-number match, a hit whose normalized name equals the staged name is
// accepted.
func matchCandidate(candidates []allabolag.Candidate, company model.StagedCompany) *allabolag.Candidate {
	for i := range candidates {
		if candidates[i].OrgNumber != "" && candidates[i].OrgNumber == company.OrgNumber {
			return &candidates[i]
		}
	}
	for i := range candidates {
		if allabolag.SameCompanyName(candidates[i].Name, company.Name) {
			return &candidates[i]
		}
	}
	return nil
}

func confidenceFor(source string) float64 {
	if source == model.ResolutionSourceOrgNumber {
		return 1.0
	}
	return 0.8
}
