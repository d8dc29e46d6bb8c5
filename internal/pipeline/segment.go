// Package pipeline runs the three crawl stages against a staging store and
// drives their lifecycle: segmentation listing, company-ID enrichment, and
// financial fetch.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Smooother/nivo-web-sub001/internal/model"
	"github.com/Smooother/nivo-web-sub001/internal/staging"
	"github.com/Smooother/nivo-web-sub001/pkg/allabolag"
)

const (
	// maxSegmentPages is a hard ceiling against runaway pagination.
	maxSegmentPages = 3000
	// maxEmptyPages ends the crawl after this many consecutive empty pages.
	// A single empty page can be a listing hole, so one is tolerated.
	maxEmptyPages = 3
)

// Segmenter runs stage one: walk the paginated segmentation listing and
// stage every company it returns.
type Segmenter struct {
	client    allabolag.Client
	store     staging.Store
	pageDelay time.Duration
	maxPages  int
}

func NewSegmenter(client allabolag.Client, store staging.Store, pageDelay time.Duration) *Segmenter {
	if pageDelay <= 0 {
		pageDelay = 500 * time.Millisecond
	}
	return &Segmenter{client: client, store: store, pageDelay: pageDelay, maxPages: maxSegmentPages}
}

// Run crawls from the job's last_page cursor until the listing runs dry.
// It returns errInterrupted when the job is paused or stopped from outside;
// a page fetch failure is escalated as a stage error.
func (s *Segmenter) Run(ctx context.Context, jobID string, filter model.SegmentFilter) error {
	log := zap.L().With(zap.String("component", "pipeline.segmenter"), zap.String("job_id", jobID))

	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return eris.Wrap(err, "pipeline: load segmentation job")
	}

	apiFilter := allabolag.SegmentFilter{
		RevenueFrom: filter.RevenueFrom,
		RevenueTo:   filter.RevenueTo,
		ProfitFrom:  filter.ProfitFrom,
		ProfitTo:    filter.ProfitTo,
		CompanyType: filter.CompanyType,
	}

	page := job.LastPage + 1
	processed := job.ProcessedCount
	emptyPages := 0

	log.Info("starting segmentation crawl", zap.Int("from_page", page))

	for ; page <= s.maxPages; page++ {
		if err := checkInterrupt(ctx, s.store, jobID); err != nil {
			return err
		}

		companies, err := s.client.FetchSegment(ctx, apiFilter, page)
		if err != nil {
			return eris.Wrapf(err, "pipeline: fetch segment page %d", page)
		}

		if len(companies) == 0 {
			emptyPages++
			log.Info("empty segment page", zap.Int("page", page), zap.Int("consecutive_empty", emptyPages))
		} else {
			emptyPages = 0

			staged := make([]model.StagedCompany, 0, len(companies))
			for _, c := range companies {
				if c.OrgNumber == "" {
					log.Warn("skipping company without org number",
						zap.Int("page", page), zap.String("name", c.Name))
					continue
				}
				staged = append(staged, stagedFromListing(c))
			}

			if err := s.store.UpsertCompanies(ctx, jobID, staged); err != nil {
				return eris.Wrapf(err, "pipeline: stage page %d", page)
			}

			processed += len(staged)
			log.Info("staged segment page", zap.Int("page", page),
				zap.Int("companies", len(staged)), zap.Int("total", processed))
		}

		// The cursor advances past empty pages too, so a resumed crawl
		// never refetches a hole it already walked over.
		if err := s.store.UpdateJob(ctx, jobID, staging.JobUpdate{
			LastPage:       &page,
			ProcessedCount: &processed,
			TotalCompanies: &processed,
		}); err != nil {
			return eris.Wrapf(err, "pipeline: advance cursor past page %d", page)
		}

		if emptyPages >= maxEmptyPages {
			break
		}

		select {
		case <-ctx.Done():
			return errInterrupted
		case <-time.After(s.pageDelay):
		}
	}

	log.Info("segmentation crawl finished", zap.Int("total_companies", processed))
	return nil
}

func stagedFromListing(c allabolag.Company) model.StagedCompany {
	return model.StagedCompany{
		OrgNumber:        c.OrgNumber,
		Name:             c.Name,
		CompanyIDHint:    c.ListingID,
		Homepage:         c.Homepage,
		NACECategories:   c.NACECategories,
		SegmentName:      c.SegmentName,
		RevenueSEK:       c.RevenueSEK,
		ProfitSEK:        c.ProfitSEK,
		FoundationYear:   c.FoundationYear,
		AccountsLastYear: c.AccountsLastYear,
	}
}
