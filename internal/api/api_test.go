package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Smooother/nivo-web-sub001/internal/model"
	"github.com/Smooother/nivo-web-sub001/internal/pipeline"
	"github.com/Smooother/nivo-web-sub001/internal/staging"
	"github.com/Smooother/nivo-web-sub001/pkg/allabolag"
)

// stubClient serves a single segmentation page and resolves every company.
type stubClient struct {
	page []allabolag.Company
}

func (s *stubClient) FetchSegment(_ context.Context, _ allabolag.SegmentFilter, page int) ([]allabolag.Company, error) {
	if page == 1 {
		return s.page, nil
	}
	return nil, nil
}

func (s *stubClient) Search(_ context.Context, _ string) ([]allabolag.Candidate, error) {
	out := make([]allabolag.Candidate, 0, len(s.page))
	for _, c := range s.page {
		out = append(out, allabolag.Candidate{
			CompanyID: "company-" + c.OrgNumber,
			OrgNumber: c.OrgNumber,
			Name:      c.Name,
		})
	}
	return out, nil
}

func (s *stubClient) FetchFinancials(_ context.Context, _ string) ([]allabolag.FinancialLine, error) {
	return []allabolag.FinancialLine{{
		Year:    2023,
		Period:  "2023-12",
		Metrics: map[string]float64{"sdi": 1000},
	}}, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	mgr, err := staging.NewManager(staging.DriverSQLite, t.TempDir(), "")
	require.NoError(t, err)

	ctrl := pipeline.NewController(mgr, &stubClient{
		page: []allabolag.Company{{OrgNumber: "5560001234", Name: "Acme AB"}},
	}, pipeline.Delays{Page: time.Millisecond, Chunk: time.Millisecond})
	t.Cleanup(ctrl.Shutdown)

	srv := httptest.NewServer(Routes(NewHandler(ctrl)))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.Equal(t, "ok", body["status"])
}

func TestStartSegmentation(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/segment", segmentDTO{RevenueFrom: 1_000_000, RevenueTo: 50_000_000})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	started := decode[startJobResp](t, resp)
	require.NotEmpty(t, started.JobID)

	// The stub crawl finishes quickly; statistics become visible once done.
	require.Eventually(t, func() bool {
		resp, err := http.Get(srv.URL + "/api/jobs/" + started.JobID + "/statistics")
		if err != nil || resp.StatusCode != http.StatusOK {
			return false
		}
		status := decode[jobStatusResp](t, resp)
		return status.Status == "done"
	}, 5*time.Second, 20*time.Millisecond)
}

func TestStartSegmentation_InvalidFilter(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/segment", segmentDTO{RevenueFrom: 10, RevenueTo: 5})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStartEnrichment_MissingSource(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/enrich", stageDTO{SourceJobID: "no-such-job"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/api/enrich", stageDTO{})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestControlJob_Unknown(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/jobs/no-such-job/control", controlDTO{Action: "stop"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestControlJob_InvalidAction(t *testing.T) {
	srv := newTestServer(t)

	started := decode[startJobResp](t, postJSON(t, srv.URL+"/api/segment", segmentDTO{RevenueFrom: 1, RevenueTo: 2}))
	require.NotEmpty(t, started.JobID)

	resp := postJSON(t, srv.URL+"/api/jobs/"+started.JobID+"/control", controlDTO{Action: "defenestrate"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestControlJob_ReportsStatusAndTimestamp(t *testing.T) {
	srv := newTestServer(t)

	started := decode[startJobResp](t, postJSON(t, srv.URL+"/api/segment", segmentDTO{RevenueFrom: 1, RevenueTo: 2}))
	require.NotEmpty(t, started.JobID)

	require.Eventually(t, func() bool {
		resp, err := http.Get(srv.URL + "/api/jobs/" + started.JobID + "/statistics")
		if err != nil || resp.StatusCode != http.StatusOK {
			return false
		}
		return decode[jobStatusResp](t, resp).Status == "done"
	}, 5*time.Second, 20*time.Millisecond)

	// status is a read-only action reporting the current state.
	resp := postJSON(t, srv.URL+"/api/jobs/"+started.JobID+"/control", controlDTO{Action: "status"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[controlResp](t, resp)
	assert.Equal(t, started.JobID, body.JobID)
	assert.Equal(t, model.JobStatusDone, body.Status)
	_, err := time.Parse(time.RFC3339, body.Timestamp)
	assert.NoError(t, err)

	// A mutating action reports the status it produced.
	resp = postJSON(t, srv.URL+"/api/jobs/"+started.JobID+"/control", controlDTO{Action: "stop"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body = decode[controlResp](t, resp)
	assert.Equal(t, model.JobStatusStopped, body.Status)
}
