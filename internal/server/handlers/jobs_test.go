package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inklift/inklift/pkg/orchestrator"
	"github.com/inklift/inklift/pkg/provider"
	"github.com/inklift/inklift/pkg/registry"
)

// fakeOrchestrator scripts the orchestration surface for handler tests.
type fakeOrchestrator struct {
	jobs map[string]registry.Job

	submittedWorkflow string
	submittedRegion   string
	submittedOverride []provider.FieldOverride
	submitRef         string
	submitErr         error

	cancelOK bool
	retryOK  bool

	waitURLs []string
	waitErr  error

	uploadRef   string
	uploadErr   error
	uploadBytes int
}

func (f *fakeOrchestrator) Submit(workflowID string, overrides []provider.FieldOverride, regionID string) (string, error) {
	f.submittedWorkflow = workflowID
	f.submittedOverride = overrides
	f.submittedRegion = regionID
	return f.submitRef, f.submitErr
}

func (f *fakeOrchestrator) GetJob(ref string) (registry.Job, error) {
	j, ok := f.jobs[ref]
	if !ok {
		return registry.Job{}, orchestrator.ErrJobNotFound
	}
	return j, nil
}

func (f *fakeOrchestrator) ListJobs(filter registry.Status) []registry.Job {
	var out []registry.Job
	for _, j := range f.jobs {
		if filter == "" || j.Status == filter {
			out = append(out, j)
		}
	}
	return out
}

func (f *fakeOrchestrator) Cancel(context.Context, string) bool { return f.cancelOK }
func (f *fakeOrchestrator) Retry(string) bool                   { return f.retryOK }

func (f *fakeOrchestrator) Wait(context.Context, string) ([]string, error) {
	return f.waitURLs, f.waitErr
}

func (f *fakeOrchestrator) Upload(_ context.Context, _ string, _ string, data []byte) (string, error) {
	f.uploadBytes = len(data)
	return f.uploadRef, f.uploadErr
}

func testRouter(orch Orchestrator) http.Handler {
	jobs := NewJobs(orch)
	r := chi.NewRouter()
	r.Post("/jobs", jobs.Submit)
	r.Get("/jobs", jobs.List)
	r.Get("/jobs/{ref}", jobs.Get)
	r.Post("/jobs/{ref}/cancel", jobs.Cancel)
	r.Post("/jobs/{ref}/retry", jobs.Retry)
	r.Get("/jobs/{ref}/wait", jobs.Wait)
	r.Post("/uploads", jobs.Upload)
	return r
}

func TestSubmitHandler_Accepted(t *testing.T) {
	orch := &fakeOrchestrator{submitRef: "ref-1"}
	router := testRouter(orch)

	body := `{"workflow_id":"wf-1","region":"cn","overrides":[{"nodeId":"3","fieldName":"seed","fieldValue":42}]}`
	req := httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var resp submitResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ref-1", resp.Ref)

	assert.Equal(t, "wf-1", orch.submittedWorkflow)
	assert.Equal(t, "cn", orch.submittedRegion)
	require.Len(t, orch.submittedOverride, 1)
	assert.Equal(t, "42", orch.submittedOverride[0].FieldValue, "numeric values coerce to strings on decode")
}

func TestSubmitHandler_MissingWorkflowID(t *testing.T) {
	router := testRouter(&fakeOrchestrator{})

	req := httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewBufferString(`{"region":"cn"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitHandler_MalformedBody(t *testing.T) {
	router := testRouter(&fakeOrchestrator{})

	req := httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewBufferString(`{not json`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetHandler(t *testing.T) {
	orch := &fakeOrchestrator{jobs: map[string]registry.Job{
		"ref-1": {Ref: "ref-1", WorkflowID: "wf-1", Status: registry.StatusRunning},
	}}
	router := testRouter(orch)

	req := httptest.NewRequest(http.MethodGet, "/jobs/ref-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var job registry.Job
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&job))
	assert.Equal(t, registry.StatusRunning, job.Status)
}

func TestGetHandler_UnknownRef(t *testing.T) {
	router := testRouter(&fakeOrchestrator{jobs: map[string]registry.Job{}})

	req := httptest.NewRequest(http.MethodGet, "/jobs/nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListHandler_StatusFilter(t *testing.T) {
	orch := &fakeOrchestrator{jobs: map[string]registry.Job{
		"ref-1": {Ref: "ref-1", Status: registry.StatusFailed},
		"ref-2": {Ref: "ref-2", Status: registry.StatusRunning},
	}}
	router := testRouter(orch)

	req := httptest.NewRequest(http.MethodGet, "/jobs?status=failed", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var jobs []registry.Job
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&jobs))
	require.Len(t, jobs, 1)
	assert.Equal(t, "ref-1", jobs[0].Ref)
}

func TestCancelHandler_TerminalJobIsOKFalse(t *testing.T) {
	orch := &fakeOrchestrator{
		jobs:     map[string]registry.Job{"ref-1": {Ref: "ref-1", Status: registry.StatusSucceeded}},
		cancelOK: false,
	}
	router := testRouter(orch)

	req := httptest.NewRequest(http.MethodPost, "/jobs/ref-1/cancel", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, "a refused cancel is not an HTTP error")

	var resp actionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.OK)
}

func TestRetryHandler(t *testing.T) {
	orch := &fakeOrchestrator{
		jobs:    map[string]registry.Job{"ref-1": {Ref: "ref-1", Status: registry.StatusFailed}},
		retryOK: true,
	}
	router := testRouter(orch)

	req := httptest.NewRequest(http.MethodPost, "/jobs/ref-1/retry", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp actionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.OK)
}

func TestWaitHandler(t *testing.T) {
	orch := &fakeOrchestrator{waitURLs: []string{"https://api.example.com/a.png"}}
	router := testRouter(orch)

	req := httptest.NewRequest(http.MethodGet, "/jobs/ref-1/wait", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp waitResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, []string{"https://api.example.com/a.png"}, resp.ResultURLs)
}

func TestUploadHandler(t *testing.T) {
	orch := &fakeOrchestrator{uploadRef: "api/photo.png"}
	router := testRouter(orch)

	req := httptest.NewRequest(http.MethodPost, "/uploads?name=photo.png&region=cn", bytes.NewReader([]byte{1, 2, 3}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp uploadResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "api/photo.png", resp.FileRef)
}

func TestUploadHandler_OversizeBodyRejected(t *testing.T) {
	orch := &fakeOrchestrator{uploadRef: "api/big.png"}
	router := testRouter(orch)

	body := bytes.NewReader(make([]byte, maxUploadBytes+1))
	req := httptest.NewRequest(http.MethodPost, "/uploads?name=big.png", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code, "over-cap bodies must be rejected, not truncated")
	assert.Equal(t, 0, orch.uploadBytes, "nothing reaches the uploader")
}

func TestUploadHandler_RequiresNameAndBody(t *testing.T) {
	router := testRouter(&fakeOrchestrator{})

	req := httptest.NewRequest(http.MethodPost, "/uploads", bytes.NewReader([]byte{1}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/uploads?name=x.png", bytes.NewReader(nil))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
