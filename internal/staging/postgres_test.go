package staging

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Smooother/nivo-web-sub001/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresWithPool(mock), mock
}

func TestPostgresStore_InsertJob(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO jobs").
		WithArgs("job-1", "segmentation", "deadbeef", (*string)(nil), "running", "stage1_segmentation",
			0, 0, 0, 0, (*string)(nil), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := store.InsertJob(context.Background(), &model.Job{
		ID:         "job-1",
		JobType:    model.JobTypeSegmentation,
		FilterHash: "deadbeef",
		Status:     model.JobStatusRunning,
		Stage:      model.StageSegmentation,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetJob(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT (.+) FROM jobs WHERE id").
		WithArgs("job-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "job_type", "filter_hash", "params", "status", "stage",
			"last_page", "processed_count", "total_companies", "error_count", "last_error",
			"created_at", "updated_at",
		}).AddRow("job-1", "segmentation", "deadbeef", nil, "paused", "stage2_enrichment",
			12, 340, 340, 2, nil, now, now))

	job, err := store.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPaused, job.Status)
	assert.Equal(t, model.StageEnrichment, job.Stage)
	assert.Equal(t, 12, job.LastPage)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateJob_NotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE jobs SET").
		WithArgs(pgxmock.AnyArg(), "stopped", "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	stopped := model.JobStatusStopped
	err := store.UpdateJob(context.Background(), "missing", JobUpdate{Status: &stopped})
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertResolutions_Transactional(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO staging_company_ids").
		WithArgs("job-1", "5560001234", "acme-ab-123", "orgnr_search",
			1.0, "pending", (*string)(nil), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	err := store.UpsertResolutions(context.Background(), "job-1", []model.CompanyIDResolution{
		{OrgNumber: "5560001234", CompanyID: "acme-ab-123", Source: "orgnr_search", Confidence: 1.0},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertCompanies_ExplicitStatusIsWritten(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO staging_companies").
		WithArgs("job-1", "5560001234", "Acme AB", "", "", "", pgxmock.AnyArg(), "",
			(*int64)(nil), (*int64)(nil), (*int)(nil), "",
			"pending", (*string)(nil), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE staging_companies SET status").
		WithArgs("pending", "job-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectCommit()
	mock.ExpectRollback()

	err := store.UpsertCompanies(context.Background(), "job-1", []model.StagedCompany{
		{OrgNumber: "5560001234", Name: "Acme AB", Status: model.CompanyStatusPending},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertResolutions_RejectsInvalid(t *testing.T) {
	store, mock := newMockStore(t)

	err := store.UpsertResolutions(context.Background(), "job-1", []model.CompanyIDResolution{
		{OrgNumber: "", CompanyID: "acme", Confidence: 0.5},
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
