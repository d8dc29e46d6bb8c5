// Package model defines the core entities shared by the pipeline stages and
// the staging store: jobs, staged companies, company ID resolutions, and
// financial records.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
)

// JobType identifies which pipeline stage a job drives.
type JobType string

const (
	JobTypeSegmentation JobType = "segmentation"
	JobTypeEnrichment   JobType = "enrich_company_id"
	JobTypeFinancials   JobType = "fetch_financials"
)

// JobStatus is the lifecycle status of a job.
type JobStatus string

const (
	JobStatusRunning JobStatus = "running"
	JobStatusPaused  JobStatus = "paused"
	JobStatusStopped JobStatus = "stopped"
	JobStatusError   JobStatus = "error"
	JobStatusDone    JobStatus = "done"
)

// Stage identifies one of the three pipeline stages.
type Stage string

const (
	StageSegmentation Stage = "stage1_segmentation"
	StageEnrichment   Stage = "stage2_enrichment"
	StageFinancials   Stage = "stage3_financials"
)

// Job is one run of a pipeline stage against a specific filter or source
// job. Jobs are never deleted by the pipeline; they are retained for audit
// and resume.
type Job struct {
	ID             string          `json:"id"`
	JobType        JobType         `json:"job_type"`
	FilterHash     string          `json:"filter_hash"`
	Params         json.RawMessage `json:"params,omitempty"`
	Status         JobStatus       `json:"status"`
	Stage          Stage           `json:"stage"`
	LastPage       int             `json:"last_page"`
	ProcessedCount int             `json:"processed_count"`
	TotalCompanies int             `json:"total_companies"`
	ErrorCount     int             `json:"error_count"`
	LastError      string          `json:"last_error,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// SegmentFilter holds the numeric filter bounds for a segmentation crawl.
// Revenue and profit bounds are in SEK.
type SegmentFilter struct {
	RevenueFrom int64  `json:"revenue_from"`
	RevenueTo   int64  `json:"revenue_to"`
	ProfitFrom  int64  `json:"profit_from"`
	ProfitTo    int64  `json:"profit_to"`
	CompanyType string `json:"company_type"`
}

// Validate checks that the filter bounds are usable.
func (f SegmentFilter) Validate() error {
	if f.RevenueFrom < 0 || f.RevenueTo < 0 || f.ProfitFrom < 0 || f.ProfitTo < 0 {
		return eris.New("model: filter bounds must be non-negative")
	}
	if f.RevenueTo > 0 && f.RevenueFrom > f.RevenueTo {
		return eris.New("model: revenue_from exceeds revenue_to")
	}
	if f.ProfitTo > 0 && f.ProfitFrom > f.ProfitTo {
		return eris.New("model: profit_from exceeds profit_to")
	}
	return nil
}

// Hash returns a deterministic hash of the filter, used to detect duplicate
// concurrent crawls of the same segment.
func (f SegmentFilter) Hash() string {
	// Struct field order is fixed, so json.Marshal is deterministic here.
	b, _ := json.Marshal(f)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// StageParams holds the parameters for enrichment and financial-fetch jobs,
// which operate on the output of an earlier job.
type StageParams struct {
	SourceJobID string `json:"source_job_id"`
}

// ParseSegmentFilter decodes a segmentation job's stored params.
func ParseSegmentFilter(params json.RawMessage) (SegmentFilter, error) {
	var f SegmentFilter
	if err := json.Unmarshal(params, &f); err != nil {
		return SegmentFilter{}, eris.Wrap(err, "model: parse segment filter")
	}
	return f, nil
}

// ParseStageParams decodes an enrichment or financial job's stored params.
func ParseStageParams(params json.RawMessage) (StageParams, error) {
	var p StageParams
	if err := json.Unmarshal(params, &p); err != nil {
		return StageParams{}, eris.Wrap(err, "model: parse stage params")
	}
	return p, nil
}
