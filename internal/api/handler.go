// Package api exposes job control over HTTP for the crawl pipeline.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"

	"github.com/Smooother/nivo-web-sub001/internal/model"
	"github.com/Smooother/nivo-web-sub001/internal/pipeline"
	"github.com/Smooother/nivo-web-sub001/internal/staging"
)

type Handler struct {
	ctrl *pipeline.Controller
}

func NewHandler(ctrl *pipeline.Controller) *Handler {
	return &Handler{ctrl: ctrl}
}

type apiError struct {
	Error string `json:"error"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, apiError{Error: msg})
}

type segmentDTO struct {
	RevenueFrom int64  `json:"revenue_from"`
	RevenueTo   int64  `json:"revenue_to"`
	ProfitFrom  int64  `json:"profit_from"`
	ProfitTo    int64  `json:"profit_to"`
	CompanyType string `json:"company_type,omitempty"`
}

type startJobResp struct {
	JobID    string `json:"job_id"`
	Existing bool   `json:"existing,omitempty"`
}

// StartSegmentation kicks off a three-stage crawl of the given segment.
func (h *Handler) StartSegmentation(w http.ResponseWriter, r *http.Request) {
	var dto segmentDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	filter := model.SegmentFilter{
		RevenueFrom: dto.RevenueFrom,
		RevenueTo:   dto.RevenueTo,
		ProfitFrom:  dto.ProfitFrom,
		ProfitTo:    dto.ProfitTo,
		CompanyType: dto.CompanyType,
	}

	jobID, existing, err := h.ctrl.StartSegmentation(r.Context(), filter)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	status := http.StatusCreated
	if existing {
		status = http.StatusOK
	}
	h.writeJSON(w, status, startJobResp{JobID: jobID, Existing: existing})
}

type stageDTO struct {
	SourceJobID string `json:"source_job_id"`
}

// StartEnrichment launches a standalone company-ID resolution pass.
func (h *Handler) StartEnrichment(w http.ResponseWriter, r *http.Request) {
	h.startStage(w, r, h.ctrl.StartEnrichment)
}

// StartFinancials launches a standalone financial fetch pass.
func (h *Handler) StartFinancials(w http.ResponseWriter, r *http.Request) {
	h.startStage(w, r, h.ctrl.StartFinancials)
}

func (h *Handler) startStage(w http.ResponseWriter, r *http.Request, start func(ctx context.Context, sourceJobID string) (string, error)) {
	var dto stageDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if dto.SourceJobID == "" {
		h.writeError(w, http.StatusBadRequest, "source_job_id is required")
		return
	}

	jobID, err := start(r.Context(), dto.SourceJobID)
	if err != nil {
		if eris.Is(err, staging.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "source job not found")
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusCreated, startJobResp{JobID: jobID})
}

type controlDTO struct {
	Action string `json:"action"`
}

type controlResp struct {
	JobID     string          `json:"job_id"`
	Action    string          `json:"action"`
	Status    model.JobStatus `json:"status"`
	Timestamp string          `json:"timestamp"`
}

// ControlJob applies stop, pause, resume, restart, or status to a job and
// reports the job's status after the action.
func (h *Handler) ControlJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	var dto controlDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	job, err := h.ctrl.Control(r.Context(), jobID, dto.Action)
	if err != nil {
		switch {
		case eris.Is(err, staging.ErrNotFound):
			h.writeError(w, http.StatusNotFound, "job not found")
		case eris.Is(err, pipeline.ErrInvalidAction):
			h.writeError(w, http.StatusConflict, err.Error())
		default:
			h.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	h.writeJSON(w, http.StatusOK, controlResp{
		JobID:     job.ID,
		Action:    dto.Action,
		Status:    job.Status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

type jobStatusResp struct {
	ID             string               `json:"id"`
	JobType        model.JobType        `json:"job_type"`
	Status         model.JobStatus      `json:"status"`
	Stage          model.Stage          `json:"stage"`
	LastPage       int                  `json:"last_page"`
	ProcessedCount int                  `json:"processed_count"`
	TotalCompanies int                  `json:"total_companies"`
	ErrorCount     int                  `json:"error_count"`
	LastError      string               `json:"last_error,omitempty"`
	CreatedAt      string               `json:"created_at"`
	UpdatedAt      string               `json:"updated_at"`
	Statistics     *model.JobStatistics `json:"statistics"`
}

// JobStatistics returns the job row and its entity counts.
func (h *Handler) JobStatistics(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	job, stats, err := h.ctrl.Status(r.Context(), jobID)
	if err != nil {
		if eris.Is(err, staging.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "job not found")
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, jobStatusResp{
		ID:             job.ID,
		JobType:        job.JobType,
		Status:         job.Status,
		Stage:          job.Stage,
		LastPage:       job.LastPage,
		ProcessedCount: job.ProcessedCount,
		TotalCompanies: job.TotalCompanies,
		ErrorCount:     job.ErrorCount,
		LastError:      job.LastError,
		CreatedAt:      job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      job.UpdatedAt.Format(time.RFC3339),
		Statistics:     stats,
	})
}

// ResetErrors flips the job's errored items back to pending.
func (h *Handler) ResetErrors(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	n, err := h.ctrl.ResetErrors(r.Context(), jobID)
	if err != nil {
		if eris.Is(err, staging.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "job not found")
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"job_id": jobID, "reset": n})
}
