package staging

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/Smooother/nivo-web-sub001/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite, one database file
// per job identity.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode. Writes are committed before the call returns (no write-behind).
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	id              TEXT PRIMARY KEY,
	job_type        TEXT NOT NULL,
	filter_hash     TEXT NOT NULL,
	params          TEXT,
	status          TEXT NOT NULL,
	stage           TEXT NOT NULL,
	last_page       INTEGER NOT NULL DEFAULT 0,
	processed_count INTEGER NOT NULL DEFAULT 0,
	total_companies INTEGER NOT NULL DEFAULT 0,
	error_count     INTEGER NOT NULL DEFAULT 0,
	last_error      TEXT,
	created_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS staging_companies (
	job_id                     TEXT NOT NULL,
	orgnr                      TEXT NOT NULL,
	company_name               TEXT NOT NULL,
	company_id                 TEXT,
	company_id_hint            TEXT,
	homepage                   TEXT,
	nace_categories            TEXT,
	segment_name               TEXT,
	revenue_sek                INTEGER,
	profit_sek                 INTEGER,
	foundation_year            INTEGER,
	company_accounts_last_year TEXT,
	status                     TEXT NOT NULL DEFAULT 'pending',
	last_error                 TEXT,
	scraped_at                 DATETIME NOT NULL,
	updated_at                 DATETIME NOT NULL,
	PRIMARY KEY (job_id, orgnr)
);

CREATE TABLE IF NOT EXISTS staging_company_ids (
	job_id           TEXT NOT NULL,
	orgnr            TEXT NOT NULL,
	company_id       TEXT NOT NULL,
	source           TEXT NOT NULL,
	confidence_score REAL NOT NULL,
	status           TEXT NOT NULL DEFAULT 'pending',
	last_error       TEXT,
	scraped_at       DATETIME NOT NULL,
	updated_at       DATETIME NOT NULL,
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
	metrics           TEXT NOT NULL,
	raw_data          TEXT,
	validation_status TEXT NOT NULL DEFAULT 'pending',
	scraped_at        DATETIME NOT NULL,
	updated_at        DATETIME NOT NULL,
	PRIMARY KEY (job_id, company_id, year, period)
);

CREATE INDEX IF NOT EXISTS idx_jobs_filter_hash ON jobs(filter_hash, status);
CREATE INDEX IF NOT EXISTS idx_companies_status ON staging_companies(job_id, status);
CREATE INDEX IF NOT EXISTS idx_company_ids_status ON staging_company_ids(job_id, status);
CREATE INDEX IF NOT EXISTS idx_financials_orgnr ON staging_financials(job_id, orgnr);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertJob(ctx context.Context, job *model.Job) error {
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, job_type, filter_hash, params, status, stage,
			last_page, processed_count, total_companies, error_count, last_error,
			created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, string(job.JobType), job.FilterHash, nullString(string(job.Params)),
		string(job.Status), string(job.Stage),
		job.LastPage, job.ProcessedCount, job.TotalCompanies, job.ErrorCount,
		nullString(job.LastError), job.CreatedAt, job.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert job %s", job.ID)
}

const jobColumns = `id, job_type, filter_hash, params, status, stage,
	last_page, processed_count, total_companies, error_count, last_error,
	created_at, updated_at`

func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*model.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	return scanJob(row)
}

func (s *SQLiteStore) FindRunningJob(ctx context.Context, filterHash string) (*model.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE filter_hash = ? AND status = ?
		 ORDER BY created_at LIMIT 1`,
		filterHash, string(model.JobStatusRunning))
	job, err := scanJob(row)
	if eris.Is(err, ErrNotFound) {
		return nil, nil
	}
	return job, err
}

func (s *SQLiteStore) UpdateJob(ctx context.Context, id string, upd JobUpdate) error {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}

	if upd.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*upd.Status))
	}
	if upd.Stage != nil {
		sets = append(sets, "stage = ?")
		args = append(args, string(*upd.Stage))
	}
	if upd.LastPage != nil {
		sets = append(sets, "last_page = ?")
		args = append(args, *upd.LastPage)
	}
	if upd.ProcessedCount != nil {
		sets = append(sets, "processed_count = ?")
		args = append(args, *upd.ProcessedCount)
	}
	if upd.TotalCompanies != nil {
		sets = append(sets, "total_companies = ?")
		args = append(args, *upd.TotalCompanies)
	}
	if upd.ErrorCount != nil {
		sets = append(sets, "error_count = ?")
		args = append(args, *upd.ErrorCount)
	}
	if upd.LastError != nil {
		sets = append(sets, "last_error = ?")
		args = append(args, nullString(*upd.LastError))
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update job %s", id)
	}
	return checkRowsAffected(res, "job", id)
}

func (s *SQLiteStore) UpsertCompanies(ctx context.Context, jobID string, companies []model.StagedCompany) error {
	if len(companies) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin upsert companies")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO staging_companies (job_id, orgnr, company_name, company_id,
			company_id_hint, homepage, nace_categories, segment_name,
			revenue_sek, profit_sek, foundation_year, company_accounts_last_year,
			status, last_error, scraped_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
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
			updated_at = excluded.updated_at`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare upsert companies")
	}
	defer stmt.Close() //nolint:errcheck

	now := time.Now().UTC()
	for _, c := range companies {
		if c.OrgNumber == "" {
			return eris.New("sqlite: company without org number")
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
		// never clobbers an existing row's status.
		_, err = stmt.ExecContext(ctx,
			jobID, c.OrgNumber, c.Name, c.CompanyID,
			c.CompanyIDHint, c.Homepage, nace, c.SegmentName,
			nullInt64(c.RevenueSEK), nullInt64(c.ProfitSEK), nullInt(c.FoundationYear),
			c.AccountsLastYear, string(c.Status), nullString(c.LastError), scrapedAt, now,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: upsert company %s", c.OrgNumber)
		}
	}

	// Backfill pending for rows inserted with an empty status.
	if _, err := tx.ExecContext(ctx,
		`UPDATE staging_companies SET status = ? WHERE job_id = ? AND status = ''`,
		string(model.CompanyStatusPending), jobID,
	); err != nil {
		return eris.Wrap(err, "sqlite: default company status")
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit upsert companies")
}

const companyColumns = `orgnr, company_name, company_id, company_id_hint,
	homepage, nace_categories, segment_name, revenue_sek, profit_sek,
	foundation_year, company_accounts_last_year, status, last_error,
	scraped_at, updated_at`

func (s *SQLiteStore) ListCompanies(ctx context.Context, jobID string) ([]model.StagedCompany, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+companyColumns+` FROM staging_companies
		 WHERE job_id = ?
		 ORDER BY orgnr`,
		jobID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list companies")
	}
	defer rows.Close() //nolint:errcheck

	var companies []model.StagedCompany
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		companies = append(companies, *c)
	}
	return companies, eris.Wrap(rows.Err(), "sqlite: iterate companies")
}

func (s *SQLiteStore) GetCompaniesByStatus(ctx context.Context, jobID string, status model.CompanyStatus, limit int) ([]model.StagedCompany, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+companyColumns+` FROM staging_companies
		 WHERE job_id = ? AND status = ?
		 ORDER BY orgnr LIMIT ?`,
		jobID, string(status), limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get companies by status")
	}
	defer rows.Close() //nolint:errcheck

	var companies []model.StagedCompany
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		companies = append(companies, *c)
	}
	return companies, eris.Wrap(rows.Err(), "sqlite: iterate companies")
}

func (s *SQLiteStore) GetCompanyByOrgNumber(ctx context.Context, jobID, orgNumber string) (*model.StagedCompany, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+companyColumns+` FROM staging_companies
		 WHERE job_id = ? AND orgnr = ?`,
		jobID, orgNumber)
	return scanCompany(row)
}

func (s *SQLiteStore) UpdateCompanyStatus(ctx context.Context, jobID, orgNumber string, status model.CompanyStatus, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE staging_companies SET status = ?, last_error = ?, updated_at = ?
		 WHERE job_id = ? AND orgnr = ?`,
		string(status), nullString(errMsg), time.Now().UTC(), jobID, orgNumber)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update company status %s", orgNumber)
	}
	return checkRowsAffected(res, "company", orgNumber)
}

func (s *SQLiteStore) MarkCompanyResolved(ctx context.Context, jobID, orgNumber, companyID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE staging_companies SET status = ?, company_id = ?, last_error = NULL, updated_at = ?
		 WHERE job_id = ? AND orgnr = ?`,
		string(model.CompanyStatusIDResolved), companyID, time.Now().UTC(), jobID, orgNumber)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark company resolved %s", orgNumber)
	}
	return checkRowsAffected(res, "company", orgNumber)
}

func (s *SQLiteStore) UpsertResolutions(ctx context.Context, jobID string, resolutions []model.CompanyIDResolution) error {
	if len(resolutions) == 0 {
		return nil
	}
	if err := validateResolutions(resolutions); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin upsert resolutions")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO staging_company_ids (job_id, orgnr, company_id, source,
			confidence_score, status, last_error, scraped_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (job_id, orgnr) DO UPDATE SET
			company_id = excluded.company_id,
			source = excluded.source,
			confidence_score = excluded.confidence_score,
			status = excluded.status,
			last_error = excluded.last_error,
			scraped_at = excluded.scraped_at,
			updated_at = excluded.updated_at`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare upsert resolutions")
	}
	defer stmt.Close() //nolint:errcheck

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
		if _, err := stmt.ExecContext(ctx,
			jobID, r.OrgNumber, r.CompanyID, r.Source,
			r.Confidence, string(status), nullString(r.LastError), scrapedAt, now,
		); err != nil {
			return eris.Wrapf(err, "sqlite: upsert resolution %s", r.OrgNumber)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit upsert resolutions")
}

func (s *SQLiteStore) GetResolutionsByStatus(ctx context.Context, jobID string, status model.ResolutionStatus, limit int) ([]model.CompanyIDResolution, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT orgnr, company_id, source, confidence_score, status, last_error,
			scraped_at, updated_at
		 FROM staging_company_ids
		 WHERE job_id = ? AND status = ?
		 ORDER BY orgnr LIMIT ?`,
		jobID, string(status), limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get resolutions by status")
	}
	defer rows.Close() //nolint:errcheck

	var resolutions []model.CompanyIDResolution
	for rows.Next() {
		var r model.CompanyIDResolution
		var lastErr sql.NullString
		if err := rows.Scan(&r.OrgNumber, &r.CompanyID, &r.Source, &r.Confidence,
			&r.Status, &lastErr, &r.ScrapedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan resolution")
		}
		r.LastError = lastErr.String
		resolutions = append(resolutions, r)
	}
	return resolutions, eris.Wrap(rows.Err(), "sqlite: iterate resolutions")
}

func (s *SQLiteStore) UpdateResolutionStatus(ctx context.Context, jobID, orgNumber string, status model.ResolutionStatus, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE staging_company_ids SET status = ?, last_error = ?, updated_at = ?
		 WHERE job_id = ? AND orgnr = ?`,
		string(status), nullString(errMsg), time.Now().UTC(), jobID, orgNumber)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update resolution status %s", orgNumber)
	}
	return checkRowsAffected(res, "resolution", orgNumber)
}

func (s *SQLiteStore) InsertFinancialRecords(ctx context.Context, jobID string, records []model.FinancialRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin insert financials")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO staging_financials (job_id, company_id, orgnr, year, period,
			period_start, period_end, currency, metrics, raw_data,
			validation_status, scraped_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (job_id, company_id, year, period) DO UPDATE SET
			orgnr = excluded.orgnr,
			period_start = excluded.period_start,
			period_end = excluded.period_end,
			currency = excluded.currency,
			metrics = excluded.metrics,
			raw_data = excluded.raw_data,
			validation_status = excluded.validation_status,
			scraped_at = excluded.scraped_at,
			updated_at = excluded.updated_at`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert financials")
	}
	defer stmt.Close() //nolint:errcheck

	now := time.Now().UTC()
	for _, rec := range records {
		metrics, err := json.Marshal(rec.Metrics)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal metrics")
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
		if _, err := stmt.ExecContext(ctx,
			jobID, rec.CompanyID, rec.OrgNumber, rec.Year, rec.Period,
			rec.PeriodStart, rec.PeriodEnd, currency, string(metrics),
			nullString(string(rec.Raw)), string(validation), scrapedAt, now,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert financial %s/%d/%s", rec.CompanyID, rec.Year, rec.Period)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit insert financials")
}

func (s *SQLiteStore) ListFinancialRecords(ctx context.Context, jobID string) ([]model.FinancialRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT company_id, orgnr, year, period, period_start, period_end,
			currency, metrics, raw_data, validation_status, scraped_at, updated_at
		 FROM staging_financials
		 WHERE job_id = ?
		 ORDER BY orgnr, year, period`,
		jobID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list financials")
	}
	defer rows.Close() //nolint:errcheck

	var records []model.FinancialRecord
	for rows.Next() {
		var rec model.FinancialRecord
		var metrics string
		var raw sql.NullString
		if err := rows.Scan(&rec.CompanyID, &rec.OrgNumber, &rec.Year, &rec.Period,
			&rec.PeriodStart, &rec.PeriodEnd, &rec.Currency, &metrics, &raw,
			&rec.ValidationStatus, &rec.ScrapedAt, &rec.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan financial")
		}
		if err := json.Unmarshal([]byte(metrics), &rec.Metrics); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal metrics")
		}
		if raw.Valid {
			rec.Raw = json.RawMessage(raw.String)
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: iterate financials")
}

func (s *SQLiteStore) GetJobStatistics(ctx context.Context, jobID string) (*model.JobStatistics, error) {
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
		rows, err := s.db.QueryContext(ctx,
			`SELECT `+g.column+`, COUNT(*) FROM `+g.table+` WHERE job_id = ? GROUP BY `+g.column,
			jobID)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: statistics for %s", g.table)
		}
		for rows.Next() {
			var status string
			var n int
			if err := rows.Scan(&status, &n); err != nil {
				rows.Close()
				return nil, eris.Wrapf(err, "sqlite: scan statistics for %s", g.table)
			}
			g.counts[status] = n
			*g.total += n
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, eris.Wrapf(err, "sqlite: iterate statistics for %s", g.table)
		}
		rows.Close()
	}

	return stats, nil
}

func (s *SQLiteStore) ResetItemErrors(ctx context.Context, jobID string) (int64, error) {
	var total int64

	res, err := s.db.ExecContext(ctx,
		`UPDATE staging_companies SET status = ?, last_error = NULL, updated_at = ?
		 WHERE job_id = ? AND status = ?`,
		string(model.CompanyStatusPending), time.Now().UTC(), jobID, string(model.CompanyStatusError))
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: reset company errors")
	}
	n, _ := res.RowsAffected()
	total += n

	res, err = s.db.ExecContext(ctx,
		`UPDATE staging_company_ids SET status = ?, last_error = NULL, updated_at = ?
		 WHERE job_id = ? AND status = ?`,
		string(model.ResolutionStatusPending), time.Now().UTC(), jobID, string(model.ResolutionStatusError))
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: reset resolution errors")
	}
	n, _ = res.RowsAffected()
	total += n

	return total, nil
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func marshalNACE(categories []string) (string, error) {
	if len(categories) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(categories)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal nace categories")
	}
	return string(b), nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanJob(row scannable) (*model.Job, error) {
	var j model.Job
	var params, lastErr sql.NullString
	err := row.Scan(&j.ID, &j.JobType, &j.FilterHash, &params, &j.Status, &j.Stage,
		&j.LastPage, &j.ProcessedCount, &j.TotalCompanies, &j.ErrorCount, &lastErr,
		&j.CreatedAt, &j.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan job")
	}
	if params.Valid {
		j.Params = json.RawMessage(params.String)
	}
	j.LastError = lastErr.String
	return &j, nil
}

func scanCompany(row scannable) (*model.StagedCompany, error) {
	var c model.StagedCompany
	var companyID, hint, homepage, nace, segment, accounts, lastErr sql.NullString
	var revenue, profit sql.NullInt64
	var foundation sql.NullInt64

	err := row.Scan(&c.OrgNumber, &c.Name, &companyID, &hint,
		&homepage, &nace, &segment, &revenue, &profit,
		&foundation, &accounts, &c.Status, &lastErr,
		&c.ScrapedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan company")
	}

	c.CompanyID = companyID.String
	c.CompanyIDHint = hint.String
	c.Homepage = homepage.String
	c.SegmentName = segment.String
	c.AccountsLastYear = accounts.String
	c.LastError = lastErr.String
	if revenue.Valid {
		v := revenue.Int64
		c.RevenueSEK = &v
	}
	if profit.Valid {
		v := profit.Int64
		c.ProfitSEK = &v
	}
	if foundation.Valid {
		v := int(foundation.Int64)
		c.FoundationYear = &v
	}
	if nace.Valid && nace.String != "" {
		if err := json.Unmarshal([]byte(nace.String), &c.NACECategories); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal nace categories")
		}
	}
	return &c, nil
}
