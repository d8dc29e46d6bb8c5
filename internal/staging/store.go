// Package staging provides per-job durable storage for the crawl pipeline:
// discovered companies, company ID resolutions, and financial records, each
// carrying a per-item pipeline status. The store is the sole mutation path
// for these entities; stage handlers never write anywhere else.
package staging

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/Smooother/nivo-web-sub001/internal/model"
)

// ErrNotFound is returned when a job or item does not exist in the store.
var ErrNotFound = eris.New("staging: not found")

// JobUpdate is a partial update of a job row. Nil fields are left untouched;
// UpdateJob is a merge, never a replace.
type JobUpdate struct {
	Status         *model.JobStatus
	Stage          *model.Stage
	LastPage       *int
	ProcessedCount *int
	TotalCompanies *int
	ErrorCount     *int
	LastError      *string
}

// Store is a per-job isolated staging store. All writes are durable before
// the call returns; a crash after a stage's write never re-processes a
// committed item as pending nor loses it.
//
// Upsert semantics:
//   - UpsertCompanies is idempotent by org number. On conflict it overwrites
//     the mutable snapshot fields (name, revenue, profit, homepage, industry
//     categories) but preserves Status and the resolved CompanyID unless the
//     incoming row explicitly carries them.
//   - UpsertResolutions replaces the prior mapping for the same org number
//     (last-resolved-wins).
//   - InsertFinancialRecords upserts by the (company ID, year, period)
//     composite key.
type Store interface {
	InsertJob(ctx context.Context, job *model.Job) error
	GetJob(ctx context.Context, id string) (*model.Job, error)
	UpdateJob(ctx context.Context, id string, upd JobUpdate) error
	// FindRunningJob returns the running job with the given filter hash, or
	// nil when none exists.
	FindRunningJob(ctx context.Context, filterHash string) (*model.Job, error)

	UpsertCompanies(ctx context.Context, jobID string, companies []model.StagedCompany) error
	ListCompanies(ctx context.Context, jobID string) ([]model.StagedCompany, error)
	GetCompaniesByStatus(ctx context.Context, jobID string, status model.CompanyStatus, limit int) ([]model.StagedCompany, error)
	GetCompanyByOrgNumber(ctx context.Context, jobID, orgNumber string) (*model.StagedCompany, error)
	UpdateCompanyStatus(ctx context.Context, jobID, orgNumber string, status model.CompanyStatus, errMsg string) error
	// MarkCompanyResolved sets the resolved canonical company ID and flips
	// the company to id_resolved in one write.
	MarkCompanyResolved(ctx context.Context, jobID, orgNumber, companyID string) error

	UpsertResolutions(ctx context.Context, jobID string, resolutions []model.CompanyIDResolution) error
	GetResolutionsByStatus(ctx context.Context, jobID string, status model.ResolutionStatus, limit int) ([]model.CompanyIDResolution, error)
	UpdateResolutionStatus(ctx context.Context, jobID, orgNumber string, status model.ResolutionStatus, errMsg string) error

	InsertFinancialRecords(ctx context.Context, jobID string, records []model.FinancialRecord) error
	ListFinancialRecords(ctx context.Context, jobID string) ([]model.FinancialRecord, error)

	// GetJobStatistics aggregates entity and per-status counts for the job.
	// Also feeds stage-resume inference.
	GetJobStatistics(ctx context.Context, jobID string) (*model.JobStatistics, error)

	// ResetItemErrors flips error-status companies and resolutions back to
	// pending. Operator tool; never invoked automatically.
	ResetItemErrors(ctx context.Context, jobID string) (int64, error)

	Migrate(ctx context.Context) error
	Close() error
}

// validateResolutions enforces the confidence invariant shared by both
// store implementations.
func validateResolutions(resolutions []model.CompanyIDResolution) error {
	for _, r := range resolutions {
		if r.Confidence < 0 || r.Confidence > 1 {
			return eris.Errorf("staging: confidence %v out of range [0,1] for %s", r.Confidence, r.OrgNumber)
		}
		if r.OrgNumber == "" || r.CompanyID == "" {
			return eris.New("staging: resolution requires org number and company id")
		}
	}
	return nil
}
