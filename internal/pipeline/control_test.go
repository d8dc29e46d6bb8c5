package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Smooother/nivo-web-sub001/internal/model"
	"github.com/Smooother/nivo-web-sub001/internal/staging"
	"github.com/Smooother/nivo-web-sub001/pkg/allabolag"
)

// blockingClient parks segmentation fetches until released, so tests can
// observe a job mid-flight.
type blockingClient struct {
	*fakeClient
	gate    chan struct{}
	started chan struct{}
}

func newBlockingClient() *blockingClient {
	return &blockingClient{
		fakeClient: newFakeClient(),
		gate:       make(chan struct{}),
		started:    make(chan struct{}, 64),
	}
}

func (b *blockingClient) FetchSegment(ctx context.Context, filter allabolag.SegmentFilter, page int) ([]allabolag.Company, error) {
	select {
	case b.started <- struct{}{}:
	default:
	}
	select {
	case <-b.gate:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return b.fakeClient.FetchSegment(ctx, filter, page)
}

func newController(t *testing.T, client allabolag.Client) *Controller {
	t.Helper()
	mgr, err := staging.NewManager(staging.DriverSQLite, t.TempDir(), "")
	require.NoError(t, err)
	ctrl := NewController(mgr, client, Delays{Page: time.Millisecond, Chunk: time.Millisecond})
	t.Cleanup(func() {
		ctrl.Shutdown()
		mgr.Close()
	})
	return ctrl
}

func waitForStatus(t *testing.T, ctrl *Controller, jobID string, want model.JobStatus) *model.Job {
	t.Helper()
	var job *model.Job
	require.Eventually(t, func() bool {
		j, _, err := ctrl.Status(context.Background(), jobID)
		if err != nil {
			return false
		}
		job = j
		return j.Status == want
	}, 5*time.Second, 10*time.Millisecond, "job %s never reached %s", jobID, want)
	return job
}

func TestController_StartSegmentation_RunsToDone(t *testing.T) {
	client := newFakeClient()
	client.segmentPages[1] = []allabolag.Company{listedCompany("5566778899", "Acme AB")}
	client.searchHits["5566778899"] = []allabolag.Candidate{
		{CompanyID: "acme-123", OrgNumber: "5566778899", Name: "Acme AB"},
	}
	client.financials["acme-123"] = []allabolag.FinancialLine{financialLine(2023, 12500)}

	ctrl := newController(t, client)

	jobID, existing, err := ctrl.StartSegmentation(context.Background(), model.SegmentFilter{RevenueFrom: 1})
	require.NoError(t, err)
	assert.False(t, existing)

	job := waitForStatus(t, ctrl, jobID, model.JobStatusDone)
	assert.Equal(t, model.StageFinancials, job.Stage)

	_, stats, err := ctrl.Status(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Counts.Companies)
	assert.Equal(t, 1, stats.Counts.Resolutions)
	assert.Equal(t, 1, stats.Counts.Financials)
}

func TestController_StartSegmentation_DedupesRunningFilter(t *testing.T) {
	client := newBlockingClient()
	ctrl := newController(t, client)

	filter := model.SegmentFilter{RevenueFrom: 5}
	first, existing, err := ctrl.StartSegmentation(context.Background(), filter)
	require.NoError(t, err)
	require.False(t, existing)
	<-client.started

	second, existing, err := ctrl.StartSegmentation(context.Background(), filter)
	require.NoError(t, err)
	assert.True(t, existing)
	assert.Equal(t, first, second, "same filter while running returns the running job")

	// A different filter is a new job.
	third, existing, err := ctrl.StartSegmentation(context.Background(), model.SegmentFilter{RevenueFrom: 99})
	require.NoError(t, err)
	assert.False(t, existing)
	assert.NotEqual(t, first, third)

	close(client.gate)
}

func TestController_StartSegmentation_RejectsInvalidFilter(t *testing.T) {
	ctrl := newController(t, newFakeClient())

	_, _, err := ctrl.StartSegmentation(context.Background(), model.SegmentFilter{RevenueFrom: 10, RevenueTo: 5})
	require.Error(t, err)
}

func TestController_PauseAndResume(t *testing.T) {
	client := newBlockingClient()
	for p := 1; p <= 200; p++ {
		client.segmentPages[p] = []allabolag.Company{listedCompany(orgnrForPage(p), "Filler AB")}
	}
	ctrl := newController(t, client)

	jobID, _, err := ctrl.StartSegmentation(context.Background(), model.SegmentFilter{})
	require.NoError(t, err)
	<-client.started
	close(client.gate)

	paused, err := ctrl.Control(context.Background(), jobID, ActionPause)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPaused, paused.Status)
	job := waitForStatus(t, ctrl, jobID, model.JobStatusPaused)
	pausedPage := job.LastPage

	// Pausing a paused job is invalid.
	_, err = ctrl.Control(context.Background(), jobID, ActionPause)
	require.ErrorIs(t, err, ErrInvalidAction)

	_, err = ctrl.Control(context.Background(), jobID, ActionResume)
	require.NoError(t, err)
	job = waitForStatus(t, ctrl, jobID, model.JobStatusDone)
	assert.GreaterOrEqual(t, job.LastPage, pausedPage, "resume continues, never rewinds")
}

func TestController_StopThenRestartResets(t *testing.T) {
	client := newFakeClient()
	client.segmentPages[1] = []allabolag.Company{listedCompany("1111111111", "One AB")}
	ctrl := newController(t, client)

	jobID, _, err := ctrl.StartSegmentation(context.Background(), model.SegmentFilter{})
	require.NoError(t, err)
	waitForStatus(t, ctrl, jobID, model.JobStatusDone)

	_, err = ctrl.Control(context.Background(), jobID, ActionRestart)
	require.NoError(t, err)
	job := waitForStatus(t, ctrl, jobID, model.JobStatusDone)

	// The restart re-crawled from a zeroed cursor.
	assert.Equal(t, 1, job.LastPage)
	assert.Equal(t, 1, job.ProcessedCount)
}

func TestController_ResumeInfersStageFromCounts(t *testing.T) {
	client := newFakeClient()
	client.searchHits["5566778899"] = []allabolag.Candidate{
		{CompanyID: "acme-123", OrgNumber: "5566778899", Name: "Acme AB"},
	}
	client.financials["acme-123"] = []allabolag.FinancialLine{financialLine(2023, 12500)}

	mgr, err := staging.NewManager(staging.DriverSQLite, t.TempDir(), "")
	require.NoError(t, err)
	ctrl := NewController(mgr, client, Delays{Page: time.Millisecond, Chunk: time.Millisecond})
	t.Cleanup(func() {
		ctrl.Shutdown()
		mgr.Close()
	})

	// Seed a paused crawl that already staged a company but no resolutions.
	ctx := context.Background()
	filter := model.SegmentFilter{RevenueFrom: 1}
	params, err := json.Marshal(filter)
	require.NoError(t, err)

	job := &model.Job{
		ID:         "seeded-job",
		JobType:    model.JobTypeSegmentation,
		FilterHash: filter.Hash(),
		Params:     params,
		Status:     model.JobStatusPaused,
		Stage:      model.StageSegmentation,
	}
	store, err := mgr.Acquire(ctx, job.ID)
	require.NoError(t, err)
	require.NoError(t, store.InsertJob(ctx, job))
	require.NoError(t, store.UpsertCompanies(ctx, job.ID, []model.StagedCompany{
		{OrgNumber: "5566778899", Name: "Acme AB"},
	}))
	require.NoError(t, mgr.Release(job.ID))

	_, err = ctrl.Control(ctx, job.ID, ActionResume)
	require.NoError(t, err)
	got := waitForStatus(t, ctrl, job.ID, model.JobStatusDone)
	assert.Equal(t, model.StageFinancials, got.Stage)

	_, stats, err := ctrl.Status(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Counts.Financials)
	assert.Empty(t, client.segmentCalls, "resume at stage two never re-crawls the listing")
}

func TestController_UnknownActionAndJob(t *testing.T) {
	ctrl := newController(t, newFakeClient())

	_, err := ctrl.Control(context.Background(), "no-such-job", ActionStop)
	require.ErrorIs(t, err, staging.ErrNotFound)

	client := newBlockingClient()
	ctrl2 := newController(t, client)
	jobID, _, err := ctrl2.StartSegmentation(context.Background(), model.SegmentFilter{})
	require.NoError(t, err)
	<-client.started

	_, err = ctrl2.Control(context.Background(), jobID, "defenestrate")
	require.ErrorIs(t, err, ErrInvalidAction)
	close(client.gate)
}

func TestController_StatusActionIsReadOnly(t *testing.T) {
	client := newFakeClient()
	client.segmentPages[1] = []allabolag.Company{listedCompany("1111111111", "One AB")}
	ctrl := newController(t, client)

	jobID, _, err := ctrl.StartSegmentation(context.Background(), model.SegmentFilter{})
	require.NoError(t, err)
	waitForStatus(t, ctrl, jobID, model.JobStatusDone)

	job, err := ctrl.Control(context.Background(), jobID, ActionStatus)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusDone, job.Status)

	// The action reads; it never touches the row.
	again, err := ctrl.Control(context.Background(), jobID, ActionStatus)
	require.NoError(t, err)
	assert.Equal(t, job.UpdatedAt, again.UpdatedAt)
	assert.Equal(t, job.LastPage, again.LastPage)
}

func TestController_ResetErrors(t *testing.T) {
	client := newFakeClient()
	client.segmentPages[1] = []allabolag.Company{listedCompany("1111111111", "Broken AB")}
	client.searchErrs["1111111111"] = errSearchDown
	client.searchErrs["Broken AB"] = errSearchDown

	ctrl := newController(t, client)
	jobID, _, err := ctrl.StartSegmentation(context.Background(), model.SegmentFilter{})
	require.NoError(t, err)
	waitForStatus(t, ctrl, jobID, model.JobStatusDone)

	_, stats, err := ctrl.Status(context.Background(), jobID)
	require.NoError(t, err)
	require.Equal(t, 1, stats.CompaniesByStatus[string(model.CompanyStatusError)])

	n, err := ctrl.ResetErrors(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, stats, err = ctrl.Status(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.CompaniesByStatus[string(model.CompanyStatusPending)])
}

var errSearchDown = eris.New("search down")

func orgnrForPage(p int) string {
	return fmt.Sprintf("55%08d", p)
}
