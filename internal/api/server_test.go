package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/siteloom/llmstxt-worker/internal/crawl"
	"github.com/siteloom/llmstxt-worker/internal/id/uuid"
)

type fakeJobs struct {
	result  crawl.JobResult
	err     error
	lastJob crawl.Job
	calls   int
}

func (f *fakeJobs) Execute(_ context.Context, job crawl.Job) (crawl.JobResult, error) {
	f.calls++
	f.lastJob = job
	return f.result, f.err
}

func newTestServer(jobs *fakeJobs) *httptest.Server {
	return httptest.NewServer(NewServer(jobs, uuid.New(), nil).Handler())
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&fakeJobs{})
	defer srv.Close()

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.NoError(t, resp.Body.Close())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&fakeJobs{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer func() { require.NoError(t, resp.Body.Close()) }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestExecuteJobSuccess(t *testing.T) {
	t.Parallel()

	jobs := &fakeJobs{result: crawl.JobResult{
		ArtifactURL:     "https://storage.googleapis.com/bucket/llms_job-1.txt",
		PagesCrawled:    3,
		ChangesDetected: true,
	}}
	srv := newTestServer(jobs)
	defer srv.Close()

	body := `{"id":"job-1","url":"https://example.com","projectId":"proj-1","runId":"run-1","isScheduled":false}`
	resp, err := http.Post(srv.URL+"/v1/jobs", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer func() { require.NoError(t, resp.Body.Close()) }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 1, jobs.calls)
	require.Equal(t, "job-1", jobs.lastJob.ID)
	require.Equal(t, "proj-1", jobs.lastJob.ProjectID)

	var result crawl.JobResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.Equal(t, 3, result.PagesCrawled)
	require.True(t, result.ChangesDetected)
}

func TestExecuteJobGeneratesMissingID(t *testing.T) {
	t.Parallel()

	jobs := &fakeJobs{}
	srv := newTestServer(jobs)
	defer srv.Close()

	body := `{"url":"https://example.com","projectId":"proj-1","runId":"run-1"}`
	resp, err := http.Post(srv.URL+"/v1/jobs", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, jobs.lastJob.ID)
}

func TestExecuteJobRejectsBadRequests(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{name: "invalid json", body: `{"id":`},
		{name: "missing url", body: `{"id":"job-1","projectId":"proj-1","runId":"run-1"}`},
		{name: "missing project id", body: `{"id":"job-1","url":"https://example.com","runId":"run-1"}`},
		{name: "missing run id", body: `{"id":"job-1","url":"https://example.com","projectId":"proj-1"}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			jobs := &fakeJobs{}
			srv := newTestServer(jobs)
			defer srv.Close()

			resp, err := http.Post(srv.URL+"/v1/jobs", "application/json", strings.NewReader(tc.body))
			require.NoError(t, err)
			require.NoError(t, resp.Body.Close())
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			require.Zero(t, jobs.calls)
		})
	}
}

func TestExecuteJobFailureReturns500(t *testing.T) {
	t.Parallel()

	jobs := &fakeJobs{err: errors.New("upload llms.txt: bucket unavailable")}
	srv := newTestServer(jobs)
	defer srv.Close()

	body := `{"id":"job-1","url":"https://example.com","projectId":"proj-1","runId":"run-1"}`
	resp, err := http.Post(srv.URL+"/v1/jobs", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer func() { require.NoError(t, resp.Body.Close()) }()

	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var payload map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.Contains(t, payload["error"], "bucket unavailable")
}
