package model

// EntityCounts aggregates per-entity totals for a job's staging store. It is
// the input to stage-resume inference and part of the statistics block.
type EntityCounts struct {
	Companies   int `json:"companies"`
	Resolutions int `json:"company_ids"`
	Financials  int `json:"financials"`
}

// InferStage derives the stage a job should continue from based on what the
// staging store already holds. There is no explicit stage checkpoint: stage
// identity is a view over entity counts. A job whose segmentation run
// legitimately found zero companies is therefore indistinguishable from one
// that never ran stage 1; resuming such a job re-runs segmentation, which is
// harmless because segmentation upserts.
func InferStage(counts EntityCounts) Stage {
	switch {
	case counts.Financials > 0:
		return StageFinancials
	case counts.Resolutions > 0 || counts.Companies > 0:
		return StageEnrichment
	default:
		return StageSegmentation
	}
}

// StatusCounts maps an item status to its row count.
type StatusCounts map[string]int

// JobStatistics is the per-job statistics block returned by status queries.
// It is used both for dashboards and for stage-resume inference.
type JobStatistics struct {
	Counts              EntityCounts `json:"counts"`
	CompaniesByStatus   StatusCounts `json:"companies_by_status"`
	ResolutionsByStatus StatusCounts `json:"company_ids_by_status"`
	FinancialsByStatus  StatusCounts `json:"financials_by_status"`
}
