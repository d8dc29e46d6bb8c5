package staging

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/Smooother/nivo-web-sub001/internal/model"
)

// Pool is the subset of pgxpool.Pool the store needs. pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore implements Store against a shared Postgres database. Unlike
// the per-job SQLite files, all jobs share one schema and rows are scoped by
// job_id.
type PostgresStore struct {
	pool Pool
}

func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	id              TEXT PRIMARY KEY,
	job_type        TEXT NOT NULL,
	filter_hash     TEXT NOT NULL,
	params          JSONB,
	status          TEXT NOT NULL,
	stage           TEXT NOT NULL,
	last_page       INTEGER NOT NULL DEFAULT 0,
	processed_count INTEGER NOT NULL DEFAULT 0,
	total_companies INTEGER NOT NULL DEFAULT 0,
	error_count     INTEGER NOT NULL DEFAULT 0,
	last_error      TEXT,
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS staging_companies (
	job_id                     TEXT NOT NULL,
	orgnr                      TEXT NOT NULL,
	company_name               TEXT NOT NULL,
	company_id                 TEXT,
	company_id_hint            TEXT,
	homepage                   TEXT,
	nace_categories            JSONB,
	segment_name               TEXT,
	revenue_sek                BIGINT,
	profit_sek                 BIGINT,
	foundation_year            INTEGER,
	company_accounts_last_year TEXT,
	status                     TEXT NOT NULL DEFAULT 'pending',
	last_error                 TEXT,
	scraped_at                 TIMESTAMPTZ NOT NULL,
	updated_at                 TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (job_id, orgnr)
);

CREATE TABLE IF NOT EXISTS staging_company_ids (
	job_id           TEXT NOT NULL,
	orgnr            TEXT NOT NULL,
	company_id       TEXT NOT NULL,
	source           TEXT NOT NULL,
	confidence_score DOUBLE PRECISION NOT NULL,
	status           TEXT NOT NULL DEFAULT 'pending',
	last_error       TEXT,
	scraped_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (job_id, orgnr)
);

CREATE TABLE IF NOT EXISTS staging_financials (
	job_id            TEXT NOT NULL,
	company_id        TEXT NOT NULL,
	orgnr             TEXT NOT NULL,
	year              INTEGER NOT NULL,
	period            TEXT NOT NULL,
	period_start      TEXT,
	period_end        TEXT,
	currency          TEXT NOT NULL DEFAULT 'SEK',
	metrics           JSONB NOT NULL,
	raw_data          JSONB,
	validation_status TEXT NOT NULL DEFAULT 'pending',
	scraped_at        TIMESTAMPTZ NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (job_id, company_id, year, period)
);

CREATE INDEX IF NOT EXISTS idx_jobs_filter_hash ON jobs(filter_hash, status);
CREATE INDEX IF NOT EXISTS idx_companies_status ON staging_companies(job_id, status);
CREATE INDEX IF NOT EXISTS idx_company_ids_status ON staging_company_ids(job_id, status);
CREATE INDEX IF NOT EXISTS idx_financials_orgnr ON staging_financials(job_id, orgnr);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if p, ok := s.pool.(*pgxpool.Pool); ok {
		p.Close()
	}
	return nil
}

func (s *PostgresStore) InsertJob(ctx context.Context, job *model.Job) error {
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, job_type, filter_hash, params, status, stage,
			last_page, processed_count, total_companies, error_count, last_error,
			created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		job.ID, string(job.JobType), job.FilterHash, pgNullJSON(job.Params),
		string(job.Status), string(job.Stage),
		job.LastPage, job.ProcessedCount, job.TotalCompanies, job.ErrorCount,
		pgNullString(job.LastError), job.CreatedAt, job.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: insert job %s", job.ID)
}

func (s *PostgresStore) GetJob(ctx context.Context, id string) (*model.Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	return scanPgJob(row)
}

func (s *PostgresStore) FindRunningJob(ctx context.Context, filterHash string) (*model.Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE filter_hash = $1 AND status = $2
		 ORDER BY created_at LIMIT 1`,
		filterHash, string(model.JobStatusRunning))
	job, err := scanPgJob(row)
	if eris.Is(err, ErrNotFound) {
		return nil, nil
	}
	return job, err
}

func (s *PostgresStore) UpdateJob(ctx context.Context, id string, upd JobUpdate) error {
	sets := []string{"updated_at = $1"}
	args := []any{time.Now().UTC()}

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, column+" = $"+strconv.Itoa(len(args)))
	}
	if upd.Status != nil {
		add("status", string(*upd.Status))
	}
	if upd.Stage != nil {
		add("stage", string(*upd.Stage))
	}
	if upd.LastPage != nil {
		add("last_page", *upd.LastPage)
	}
	if upd.ProcessedCount != nil {
		add("processed_count", *upd.ProcessedCount)
	}
	if upd.TotalCompanies != nil {
		add("total_companies", *upd.TotalCompanies)
	}
	if upd.ErrorCount != nil {
		add("error_count", *upd.ErrorCount)
	}
	if upd.LastError != nil {
		add("last_error", pgNullString(*upd.LastError))
	}
	args = append(args, id)

	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET `+strings.Join(sets, ", ")+` WHERE id = $`+strconv.Itoa(len(args)),
		args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: update job %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "job %s", id)
	}
	return nil
}

const pgUpsertCompanySQL = `
	INSERT INTO staging_companies (job_id, orgnr, company_name, company_id,
		company_id_hint, homepage, nace_categories, segment_name,
		revenue_sek, profit_sek, foundation_year, company_accounts_last_year,
		status, last_error, scraped_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	ON CONFLICT (job_id, orgnr) DO UPDATE SET
		company_name = excluded.company_name,
		company_id = COALESCE(NULLIF(excluded.company_id, ''), staging_companies.company_id),
		company_id_hint = excluded.company_id_hint,
		homepage = excluded.homepage,
		nace_categories = excluded.nace_categories,
		segment_name = excluded.segment_name,
		revenue_sek = excluded.revenue_sek,
		profit_sek = excluded.profit_sek,
		foundation_year = excluded.foundation_year,
		company_accounts_last_year = excluded.company_accounts_last_year,
		status = COALESCE(NULLIF(excluded.status, ''), staging_companies.status),
		scraped_at = excluded.scraped_at,
		updated_at = excluded.updated_at`

func (s *PostgresStore) UpsertCompanies(ctx context.Context, jobID string, companies []model.StagedCompany) error {
	if len(companies) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin upsert companies")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	now := time.Now().UTC()
	for _, c := range companies {
		if c.OrgNumber == "" {
			return eris.New("postgres: company without org number")
		}
		nace, err := marshalNACE(c.NACECategories)
		if err != nil {
			return err
		}
		scrapedAt := c.ScrapedAt
		if scrapedAt.IsZero() {
			scrapedAt = now
		}
		// An empty incoming status defaults to pending on first insert but
		// never clobbers an existing row's status. An explicit pending is a
		// real write.
		if _, err := tx.Exec(ctx, pgUpsertCompanySQL,
			jobID, c.OrgNumber, c.Name, c.CompanyID,
			c.CompanyIDHint, c.Homepage, nace, c.SegmentName,
			c.RevenueSEK, c.ProfitSEK, c.FoundationYear, c.AccountsLastYear,
			string(c.Status), pgNullString(c.LastError), scrapedAt, now,
		); err != nil {
			return eris.Wrapf(err, "postgres: upsert company %s", c.OrgNumber)
		}
	}

	// Backfill pending for rows inserted with an empty status.
	if _, err := tx.Exec(ctx,
		`UPDATE staging_companies SET status = $1 WHERE job_id = $2 AND status = ''`,
		string(model.CompanyStatusPending), jobID,
	); err != nil {
		return eris.Wrap(err, "postgres: default company status")
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit upsert companies")
}

func (s *PostgresStore) ListCompanies(ctx context.Context, jobID string) ([]model.StagedCompany, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+companyColumns+` FROM staging_companies
		 WHERE job_id = $1
		 ORDER BY orgnr`,
		jobID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list companies")
	}
	defer rows.Close()

	var companies []model.StagedCompany
	for rows.Next() {
		c, err := scanPgCompany(rows)
		if err != nil {
			return nil, err
		}
		companies = append(companies, *c)
	}
	return companies, eris.Wrap(rows.Err(), "postgres: iterate companies")
}

func (s *PostgresStore) GetCompaniesByStatus(ctx context.Context, jobID string, status model.CompanyStatus, limit int) ([]model.StagedCompany, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+companyColumns+` FROM staging_companies
		 WHERE job_id = $1 AND status = $2
		 ORDER BY orgnr LIMIT $3`,
		jobID, string(status), limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get companies by status")
	}
	defer rows.Close()

	var companies []model.StagedCompany
	for rows.Next() {
		c, err := scanPgCompany(rows)
		if err != nil {
			return nil, err
		}
		companies = append(companies, *c)
	}
	return companies, eris.Wrap(rows.Err(), "postgres: iterate companies")
}

func (s *PostgresStore) GetCompanyByOrgNumber(ctx context.Context, jobID, orgNumber string) (*model.StagedCompany, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+companyColumns+` FROM staging_companies
		 WHERE job_id = $1 AND orgnr = $2`,
		jobID, orgNumber)
	return scanPgCompany(row)
}

func (s *PostgresStore) UpdateCompanyStatus(ctx context.Context, jobID, orgNumber string, status model.CompanyStatus, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE staging_companies SET status = $1, last_error = $2, updated_at = $3
		 WHERE job_id = $4 AND orgnr = $5`,
		string(status), pgNullString(errMsg), time.Now().UTC(), jobID, orgNumber)
	if err != nil {
		return eris.Wrapf(err, "postgres: update company status %s", orgNumber)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "company %s", orgNumber)
	}
	return nil
}

func (s *PostgresStore) MarkCompanyResolved(ctx context.Context, jobID, orgNumber, companyID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE staging_companies SET status = $1, company_id = $2, last_error = NULL, updated_at = $3
		 WHERE job_id = $4 AND orgnr = $5`,
		string(model.CompanyStatusIDResolved), companyID, time.Now().UTC(), jobID, orgNumber)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark company resolved %s", orgNumber)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "company %s", orgNumber)
	}
	return nil
}

func (s *PostgresStore) UpsertResolutions(ctx context.Context, jobID string, resolutions []model.CompanyIDResolution) error {
	if len(resolutions) == 0 {
		return nil
	}
	if err := validateResolutions(resolutions); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin upsert resolutions")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	now := time.Now().UTC()
	for _, r := range resolutions {
		status := r.Status
		if status == "" {
			status = model.ResolutionStatusPending
		}
		scrapedAt := r.ScrapedAt
		if scrapedAt.IsZero() {
			scrapedAt = now
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO staging_company_ids (job_id, orgnr, company_id, source,
				confidence_score, status, last_error, scraped_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 ON CONFLICT (job_id, orgnr) DO UPDATE SET
				company_id = excluded.company_id,
				source = excluded.source,
				confidence_score = excluded.confidence_score,
				status = excluded.status,
				last_error = excluded.last_error,
				scraped_at = excluded.scraped_at,
				updated_at = excluded.updated_at`,
			jobID, r.OrgNumber, r.CompanyID, r.Source,
			r.Confidence, string(status), pgNullString(r.LastError), scrapedAt, now,
		); err != nil {
			return eris.Wrapf(err, "postgres: upsert resolution %s", r.OrgNumber)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit upsert resolutions")
}

func (s *PostgresStore) GetResolutionsByStatus(ctx context.Context, jobID string, status model.ResolutionStatus, limit int) ([]model.CompanyIDResolution, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.pool.Query(ctx,
		`SELECT orgnr, company_id, source, confidence_score, status, last_error,
			scraped_at, updated_at
		 FROM staging_company_ids
		 WHERE job_id = $1 AND status = $2
		 ORDER BY orgnr LIMIT $3`,
		jobID, string(status), limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get resolutions by status")
	}
	defer rows.Close()

	var resolutions []model.CompanyIDResolution
	for rows.Next() {
		var r model.CompanyIDResolution
		var lastErr *string
		if err := rows.Scan(&r.OrgNumber, &r.CompanyID, &r.Source, &r.Confidence,
			&r.Status, &lastErr, &r.ScrapedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan resolution")
		}
		if lastErr != nil {
			r.LastError = *lastErr
		}
		resolutions = append(resolutions, r)
	}
	return resolutions, eris.Wrap(rows.Err(), "postgres: iterate resolutions")
}

func (s *PostgresStore) UpdateResolutionStatus(ctx context.Context, jobID, orgNumber string, status model.ResolutionStatus, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE staging_company_ids SET status = $1, last_error = $2, updated_at = $3
		 WHERE job_id = $4 AND orgnr = $5`,
		string(status), pgNullString(errMsg), time.Now().UTC(), jobID, orgNumber)
	if err != nil {
		return eris.Wrapf(err, "postgres: update resolution status %s", orgNumber)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "resolution %s", orgNumber)
	}
	return nil
}

func (s *PostgresStore) InsertFinancialRecords(ctx context.Context, jobID string, records []model.FinancialRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin insert financials")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	now := time.Now().UTC()
	for _, rec := range records {
		metrics, err := json.Marshal(rec.Metrics)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal metrics")
		}
		currency := rec.Currency
		if currency == "" {
			currency = "SEK"
		}
		validation := rec.ValidationStatus
		if validation == "" {
			validation = model.ValidationStatusPending
		}
		scrapedAt := rec.ScrapedAt
		if scrapedAt.IsZero() {
			scrapedAt = now
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO staging_financials (job_id, company_id, orgnr, year, period,
				period_start, period_end, currency, metrics, raw_data,
				validation_status, scraped_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			 ON CONFLICT (job_id, company_id, year, period) DO UPDATE SET
				orgnr = excluded.orgnr,
				period_start = excluded.period_start,
				period_end = excluded.period_end,
				currency = excluded.currency,
				metrics = excluded.metrics,
				raw_data = excluded.raw_data,
				validation_status = excluded.validation_status,
				scraped_at = excluded.scraped_at,
				updated_at = excluded.updated_at`,
			jobID, rec.CompanyID, rec.OrgNumber, rec.Year, rec.Period,
			rec.PeriodStart, rec.PeriodEnd, currency, string(metrics),
			pgNullJSON(rec.Raw), string(validation), scrapedAt, now,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert financial %s/%d/%s", rec.CompanyID, rec.Year, rec.Period)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit insert financials")
}

func (s *PostgresStore) ListFinancialRecords(ctx context.Context, jobID string) ([]model.FinancialRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT company_id, orgnr, year, period, period_start, period_end,
			currency, metrics, raw_data, validation_status, scraped_at, updated_at
		 FROM staging_financials
		 WHERE job_id = $1
		 ORDER BY orgnr, year, period`,
		jobID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list financials")
	}
	defer rows.Close()

	var records []model.FinancialRecord
	for rows.Next() {
		var rec model.FinancialRecord
		var metrics string
		var raw *string
		if err := rows.Scan(&rec.CompanyID, &rec.OrgNumber, &rec.Year, &rec.Period,
			&rec.PeriodStart, &rec.PeriodEnd, &rec.Currency, &metrics, &raw,
			&rec.ValidationStatus, &rec.ScrapedAt, &rec.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan financial")
		}
		if err := json.Unmarshal([]byte(metrics), &rec.Metrics); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal metrics")
		}
		if raw != nil {
			rec.Raw = json.RawMessage(*raw)
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "postgres: iterate financials")
}

func (s *PostgresStore) GetJobStatistics(ctx context.Context, jobID string) (*model.JobStatistics, error) {
	stats := &model.JobStatistics{
		CompaniesByStatus:   model.StatusCounts{},
		ResolutionsByStatus: model.StatusCounts{},
		FinancialsByStatus:  model.StatusCounts{},
	}

	type grouping struct {
		table  string
		column string
		counts model.StatusCounts
		total  *int
	}
	groups := []grouping{
		{"staging_companies", "status", stats.CompaniesByStatus, &stats.Counts.Companies},
		{"staging_company_ids", "status", stats.ResolutionsByStatus, &stats.Counts.Resolutions},
		{"staging_financials", "validation_status", stats.FinancialsByStatus, &stats.Counts.Financials},
	}

	for _, g := range groups {
		rows, err := s.pool.Query(ctx,
			`SELECT `+g.column+`, COUNT(*) FROM `+g.table+` WHERE job_id = $1 GROUP BY `+g.column,
			jobID)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: statistics for %s", g.table)
		}
		for rows.Next() {
			var status string
			var n int
			if err := rows.Scan(&status, &n); err != nil {
				rows.Close()
				return nil, eris.Wrapf(err, "postgres: scan statistics for %s", g.table)
			}
			g.counts[status] = n
			*g.total += n
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, eris.Wrapf(err, "postgres: iterate statistics for %s", g.table)
		}
		rows.Close()
	}

	return stats, nil
}

func (s *PostgresStore) ResetItemErrors(ctx context.Context, jobID string) (int64, error) {
	var total int64

	tag, err := s.pool.Exec(ctx,
		`UPDATE staging_companies SET status = $1, last_error = NULL, updated_at = $2
		 WHERE job_id = $3 AND status = $4`,
		string(model.CompanyStatusPending), time.Now().UTC(), jobID, string(model.CompanyStatusError))
	if err != nil {
		return 0, eris.Wrap(err, "postgres: reset company errors")
	}
	total += tag.RowsAffected()

	tag, err = s.pool.Exec(ctx,
		`UPDATE staging_company_ids SET status = $1, last_error = NULL, updated_at = $2
		 WHERE job_id = $3 AND status = $4`,
		string(model.ResolutionStatusPending), time.Now().UTC(), jobID, string(model.ResolutionStatusError))
	if err != nil {
		return 0, eris.Wrap(err, "postgres: reset resolution errors")
	}
	total += tag.RowsAffected()

	return total, nil
}

func pgNullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func pgNullJSON(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return nil
	}
	s := string(raw)
	return &s
}

func scanPgJob(row pgx.Row) (*model.Job, error) {
	var j model.Job
	var params, lastErr *string
	err := row.Scan(&j.ID, &j.JobType, &j.FilterHash, &params, &j.Status, &j.Stage,
		&j.LastPage, &j.ProcessedCount, &j.TotalCompanies, &j.ErrorCount, &lastErr,
		&j.CreatedAt, &j.UpdatedAt)
	if eris.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan job")
	}
	if params != nil {
		j.Params = json.RawMessage(*params)
	}
	if lastErr != nil {
		j.LastError = *lastErr
	}
	return &j, nil
}

func scanPgCompany(row pgx.Row) (*model.StagedCompany, error) {
	var c model.StagedCompany
	var companyID, hint, homepage, nace, segment, accounts, lastErr *string

	err := row.Scan(&c.OrgNumber, &c.Name, &companyID, &hint,
		&homepage, &nace, &segment, &c.RevenueSEK, &c.ProfitSEK,
		&c.FoundationYear, &accounts, &c.Status, &lastErr,
		&c.ScrapedAt, &c.UpdatedAt)
	if eris.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan company")
	}

	for dst, src := range map[*string]*string{
		&c.CompanyID: companyID, &c.CompanyIDHint: hint, &c.Homepage: homepage,
		&c.SegmentName: segment, &c.AccountsLastYear: accounts, &c.LastError: lastErr,
	} {
		if src != nil {
			*dst = *src
		}
	}
	if nace != nil && *nace != "" {
		if err := json.Unmarshal([]byte(*nace), &c.NACECategories); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal nace categories")
		}
	}
	return &c, nil
}
