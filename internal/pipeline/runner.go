package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Smooother/nivo-web-sub001/internal/model"
	"github.com/Smooother/nivo-web-sub001/internal/staging"
)

// errInterrupted signals that a stage loop observed a pause, stop or
// context cancellation. The status has already been written by whoever
// interrupted; the runner must leave it alone.
var errInterrupted = eris.New("pipeline: interrupted")

// checkInterrupt is called at every page and chunk boundary. Interruption
// latency is therefore bounded by one page or one chunk of work.
func checkInterrupt(ctx context.Context, store staging.Store, jobID string) error {
	if ctx.Err() != nil {
		return errInterrupted
	}
	job, err := store.GetJob(ctx, jobID)
	if err != nil {
		return eris.Wrap(err, "pipeline: read job status")
	}
	if job.Status == model.JobStatusPaused || job.Status == model.JobStatusStopped {
		return errInterrupted
	}
	return nil
}

// Runner executes a job's stages in order against one staging store. A
// segmentation job flows through all three stages; stage-specific jobs run
// just their own.
type Runner struct {
	segmenter  *Segmenter
	enricher   *Enricher
	financials *FinancialFetcher
	store      staging.Store
}

func NewRunner(store staging.Store, segmenter *Segmenter, enricher *Enricher, financials *FinancialFetcher) *Runner {
	return &Runner{
		store:      store,
		segmenter:  segmenter,
		enricher:   enricher,
		financials: financials,
	}
}

// Run drives the job from startStage to completion. On clean completion the
// job is marked done; on interruption the externally-written status stands;
// on stage failure the job is marked error with the cause.
func (r *Runner) Run(ctx context.Context, job *model.Job, startStage model.Stage) {
	log := zap.L().With(zap.String("component", "pipeline.runner"),
		zap.String("job_id", job.ID), zap.String("job_type", string(job.JobType)))

	err := r.runStages(ctx, job, startStage)
	switch {
	case err == nil:
		done := model.JobStatusDone
		if uerr := r.store.UpdateJob(ctx, job.ID, staging.JobUpdate{Status: &done}); uerr != nil {
			log.Error("failed to mark job done", zap.Error(uerr))
			return
		}
		log.Info("job done")
	case eris.Is(err, errInterrupted):
		log.Info("job interrupted")
	default:
		log.Error("job failed", zap.Error(err))
		// Status writes race the interrupting context; use a fresh one.
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		failed := model.JobStatusError
		msg := err.Error()
		count := job.ErrorCount + 1
		if uerr := r.store.UpdateJob(sctx, job.ID, staging.JobUpdate{
			Status:     &failed,
			LastError:  &msg,
			ErrorCount: &count,
		}); uerr != nil {
			log.Error("failed to mark job errored", zap.Error(uerr))
		}
	}
}

func (r *Runner) runStages(ctx context.Context, job *model.Job, startStage model.Stage) error {
	switch job.JobType {
	case model.JobTypeSegmentation:
		return r.runSegmentationPipeline(ctx, job, startStage)
	case model.JobTypeEnrichment:
		sourceID, err := sourceJobID(job)
		if err != nil {
			return err
		}
		return r.enricher.Run(ctx, job.ID, sourceID)
	case model.JobTypeFinancials:
		sourceID, err := sourceJobID(job)
		if err != nil {
			return err
		}
		return r.financials.Run(ctx, job.ID, sourceID)
	default:
		return eris.Errorf("pipeline: unknown job type %q", job.JobType)
	}
}

// runSegmentationPipeline walks stage 1 → 2 → 3 for a full-crawl job,
// starting at startStage when resuming.
func (r *Runner) runSegmentationPipeline(ctx context.Context, job *model.Job, startStage model.Stage) error {
	filter, err := model.ParseSegmentFilter(job.Params)
	if err != nil {
		return err
	}

	stages := []model.Stage{model.StageSegmentation, model.StageEnrichment, model.StageFinancials}
	started := false
	for _, stage := range stages {
		if !started && stage != startStage {
			continue
		}
		started = true

		if err := r.setStage(ctx, job.ID, stage); err != nil {
			return err
		}
		switch stage {
		case model.StageSegmentation:
			err = r.segmenter.Run(ctx, job.ID, filter)
		case model.StageEnrichment:
			err = r.enricher.Run(ctx, job.ID, job.ID)
		case model.StageFinancials:
			err = r.financials.Run(ctx, job.ID, job.ID)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) setStage(ctx context.Context, jobID string, stage model.Stage) error {
	return eris.Wrapf(
		r.store.UpdateJob(ctx, jobID, staging.JobUpdate{Stage: &stage}),
		"pipeline: enter %s", stage)
}

func sourceJobID(job *model.Job) (string, error) {
	params, err := model.ParseStageParams(job.Params)
	if err != nil {
		return "", err
	}
	if params.SourceJobID == "" {
		return "", eris.Errorf("pipeline: job %s has no source job", job.ID)
	}
	return params.SourceJobID, nil
}
