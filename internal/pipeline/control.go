package pipeline

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Smooother/nivo-web-sub001/internal/model"
	"github.com/Smooother/nivo-web-sub001/internal/staging"
	"github.com/Smooother/nivo-web-sub001/pkg/allabolag"
)

// Control actions accepted by Controller.Control.
const (
	ActionStop    = "stop"
	ActionPause   = "pause"
	ActionResume  = "resume"
	ActionRestart = "restart"
	ActionStatus  = "status"
)

// ErrInvalidAction is returned for unknown actions or actions that do not
// apply to the job's current status.
var ErrInvalidAction = eris.New("pipeline: invalid action")

// Delays tunes the politeness delays between registry calls.
type Delays struct {
	Page  time.Duration
	Chunk time.Duration
}

// Controller owns job lifecycles: it starts stage jobs, runs them in the
// background, and applies control actions. One Controller per process.
type Controller struct {
	mgr    *staging.Manager
	client allabolag.Client
	delays Delays

	rootCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu     sync.Mutex
	active map[string]*activeJob
}

type activeJob struct {
	identity   string
	filterHash string
	cancel     context.CancelFunc
}

func NewController(mgr *staging.Manager, client allabolag.Client, delays Delays) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		mgr:     mgr,
		client:  client,
		delays:  delays,
		rootCtx: ctx,
		cancel:  cancel,
		active:  map[string]*activeJob{},
	}
}

// StartSegmentation creates and launches a full three-stage crawl. Starting
// the same filter twice while the first crawl runs is idempotent: the
// running job's ID comes back with existing=true.
func (c *Controller) StartSegmentation(ctx context.Context, filter model.SegmentFilter) (string, bool, error) {
	if err := filter.Validate(); err != nil {
		return "", false, err
	}
	hash := filter.Hash()

	c.mu.Lock()
	for id, a := range c.active {
		if a.filterHash == hash {
			c.mu.Unlock()
			return id, true, nil
		}
	}
	c.mu.Unlock()

	jobID := uuid.NewString()
	store, err := c.mgr.Acquire(ctx, jobID)
	if err != nil {
		return "", false, err
	}

	// The shared-database driver can also see running jobs started by other
	// processes.
	if running, err := store.FindRunningJob(ctx, hash); err != nil {
		c.releaseIdentity(jobID)
		return "", false, err
	} else if running != nil {
		c.releaseIdentity(jobID)
		return running.ID, true, nil
	}

	params, err := json.Marshal(filter)
	if err != nil {
		c.releaseIdentity(jobID)
		return "", false, eris.Wrap(err, "pipeline: encode filter params")
	}

	job := &model.Job{
		ID:         jobID,
		JobType:    model.JobTypeSegmentation,
		FilterHash: hash,
		Params:     params,
		Status:     model.JobStatusRunning,
		Stage:      model.StageSegmentation,
	}
	if err := store.InsertJob(ctx, job); err != nil {
		c.releaseIdentity(jobID)
		return "", false, err
	}

	c.launch(job, jobID, hash, store, model.StageSegmentation)
	return jobID, false, nil
}

// StartEnrichment launches a standalone stage-two job over the companies
// staged by sourceJobID.
func (c *Controller) StartEnrichment(ctx context.Context, sourceJobID string) (string, error) {
	return c.startStageJob(ctx, sourceJobID, model.JobTypeEnrichment, model.StageEnrichment)
}

// StartFinancials launches a standalone stage-three job over the
// resolutions of sourceJobID.
func (c *Controller) StartFinancials(ctx context.Context, sourceJobID string) (string, error) {
	return c.startStageJob(ctx, sourceJobID, model.JobTypeFinancials, model.StageFinancials)
}

func (c *Controller) startStageJob(ctx context.Context, sourceJobID string, jobType model.JobType, stage model.Stage) (string, error) {
	store, err := c.mgr.Acquire(ctx, sourceJobID)
	if err != nil {
		return "", err
	}
	if _, err := store.GetJob(ctx, sourceJobID); err != nil {
		c.releaseIdentity(sourceJobID)
		return "", eris.Wrapf(err, "pipeline: source job %s", sourceJobID)
	}

	params, err := json.Marshal(model.StageParams{SourceJobID: sourceJobID})
	if err != nil {
		c.releaseIdentity(sourceJobID)
		return "", eris.Wrap(err, "pipeline: encode stage params")
	}

	job := &model.Job{
		ID:      uuid.NewString(),
		JobType: jobType,
		Params:  params,
		Status:  model.JobStatusRunning,
		Stage:   stage,
	}
	if err := store.InsertJob(ctx, job); err != nil {
		c.releaseIdentity(sourceJobID)
		return "", err
	}

	c.launch(job, sourceJobID, "", store, stage)
	return job.ID, nil
}

// launch runs the job in the background. The store handle is released when
// the job's goroutine exits.
func (c *Controller) launch(job *model.Job, identity, filterHash string, store staging.Store, startStage model.Stage) {
	jobCtx, cancel := context.WithCancel(c.rootCtx)
	entry := &activeJob{identity: identity, filterHash: filterHash, cancel: cancel}

	c.mu.Lock()
	c.active[job.ID] = entry
	c.mu.Unlock()

	runner := NewRunner(store,
		NewSegmenter(c.client, store, c.delays.Page),
		NewEnricher(c.client, store, c.delays.Chunk),
		NewFinancialFetcher(c.client, store, c.delays.Chunk),
	)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()
		defer func() {
			c.mu.Lock()
			// A restart may have replaced this entry already.
			if c.active[job.ID] == entry {
				delete(c.active, job.ID)
			}
			c.mu.Unlock()
			c.releaseIdentity(identity)
		}()

		runner.Run(jobCtx, job, startStage)
	}()
}

// Control applies a lifecycle action to a job and returns the job row as it
// stands after the action.
//
// stop and pause write the new status and cancel the job's context; the
// running stage observes either at its next page or chunk boundary. resume
// re-launches a paused or stopped job at the stage inferred from what the
// store already holds. restart wipes progress back to stage one. status is
// a read-only action that just returns the current row.
func (c *Controller) Control(ctx context.Context, jobID, action string) (*model.Job, error) {
	identity := c.identityFor(jobID)
	store, err := c.mgr.Acquire(ctx, identity)
	if err != nil {
		return nil, err
	}
	defer c.releaseIdentity(identity)

	job, err := store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	switch action {
	case ActionStatus:
		return job, nil
	case ActionStop:
		err = c.interrupt(ctx, store, job, model.JobStatusStopped)
	case ActionPause:
		if job.Status != model.JobStatusRunning {
			return nil, eris.Wrapf(ErrInvalidAction, "pause %s job", job.Status)
		}
		err = c.interrupt(ctx, store, job, model.JobStatusPaused)
	case ActionResume:
		if job.Status == model.JobStatusRunning || job.Status == model.JobStatusDone {
			return nil, eris.Wrapf(ErrInvalidAction, "resume %s job", job.Status)
		}
		err = c.relaunch(ctx, store, job, identity, false)
	case ActionRestart:
		err = c.relaunch(ctx, store, job, identity, true)
	default:
		return nil, eris.Wrapf(ErrInvalidAction, "%q", action)
	}
	if err != nil {
		return nil, err
	}
	return store.GetJob(ctx, jobID)
}

func (c *Controller) interrupt(ctx context.Context, store staging.Store, job *model.Job, status model.JobStatus) error {
	if err := store.UpdateJob(ctx, job.ID, staging.JobUpdate{Status: &status}); err != nil {
		return err
	}

	c.mu.Lock()
	if a, ok := c.active[job.ID]; ok {
		a.cancel()
	}
	c.mu.Unlock()

	zap.L().Info("job interrupted by control action",
		zap.String("job_id", job.ID), zap.String("status", string(status)))
	return nil
}

// relaunch brings a job back to running. With reset it starts from a blank
// stage-one cursor; otherwise the resume stage is inferred from entity
// counts, so a crawl that already staged financials picks up at stage three.
func (c *Controller) relaunch(ctx context.Context, store staging.Store, job *model.Job, identity string, reset bool) error {
	c.mu.Lock()
	if a, ok := c.active[job.ID]; ok {
		a.cancel()
	}
	c.mu.Unlock()

	startStage := job.Stage
	upd := staging.JobUpdate{}
	running := model.JobStatusRunning
	upd.Status = &running

	if reset {
		startStage = model.StageSegmentation
		zero := 0
		upd.Stage = &startStage
		upd.LastPage = &zero
		upd.ProcessedCount = &zero
		empty := ""
		upd.LastError = &empty
	} else if job.JobType == model.JobTypeSegmentation {
		stats, err := store.GetJobStatistics(ctx, job.ID)
		if err != nil {
			return err
		}
		startStage = model.InferStage(stats.Counts)
		upd.Stage = &startStage
	}

	if err := store.UpdateJob(ctx, job.ID, upd); err != nil {
		return err
	}
	job, err := store.GetJob(ctx, job.ID)
	if err != nil {
		return err
	}

	// launch acquires its own reference so the deferred release in Control
	// does not close the store under the running job.
	launchStore, err := c.mgr.Acquire(ctx, identity)
	if err != nil {
		return err
	}
	c.launch(job, identity, job.FilterHash, launchStore, startStage)

	zap.L().Info("job relaunched",
		zap.String("job_id", job.ID), zap.String("stage", string(startStage)), zap.Bool("reset", reset))
	return nil
}

// Status returns the job row and its entity statistics.
func (c *Controller) Status(ctx context.Context, jobID string) (*model.Job, *model.JobStatistics, error) {
	identity := c.identityFor(jobID)
	store, err := c.mgr.Acquire(ctx, identity)
	if err != nil {
		return nil, nil, err
	}
	defer c.releaseIdentity(identity)

	job, err := store.GetJob(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	stats, err := store.GetJobStatistics(ctx, statsIdentity(job))
	if err != nil {
		return nil, nil, err
	}
	return job, stats, nil
}

// ResetErrors flips errored items of the job's staging identity back to
// pending so a resume retries them.
func (c *Controller) ResetErrors(ctx context.Context, jobID string) (int64, error) {
	identity := c.identityFor(jobID)
	store, err := c.mgr.Acquire(ctx, identity)
	if err != nil {
		return 0, err
	}
	defer c.releaseIdentity(identity)

	job, err := store.GetJob(ctx, jobID)
	if err != nil {
		return 0, err
	}
	return store.ResetItemErrors(ctx, statsIdentity(job))
}

// Wait blocks until all background jobs have exited.
func (c *Controller) Wait() { c.wg.Wait() }

// Shutdown cancels every running job and waits for their goroutines. Job
// statuses are left as-is: an in-flight crawl stays running in the store
// and resumes cleanly on the next start.
func (c *Controller) Shutdown() {
	c.cancel()
	c.wg.Wait()
}

func (c *Controller) releaseIdentity(identity string) {
	if err := c.mgr.Release(identity); err != nil {
		zap.L().Warn("failed to release staging store",
			zap.String("identity", identity), zap.Error(err))
	}
}

// identityFor maps a job ID to its staging identity: a tracked active job
// uses its registered identity, anything else is assumed to be a
// segmentation job owning its own store.
func (c *Controller) identityFor(jobID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if a, ok := c.active[jobID]; ok {
		return a.identity
	}
	return jobID
}

// statsIdentity is the job whose entities should be counted: stage jobs
// report over their source job's rows.
func statsIdentity(job *model.Job) string {
	if job.JobType == model.JobTypeSegmentation {
		return job.ID
	}
	if params, err := model.ParseStageParams(job.Params); err == nil && params.SourceJobID != "" {
		return params.SourceJobID
	}
	return job.ID
}
