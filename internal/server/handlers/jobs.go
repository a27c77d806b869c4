// Package handlers implements the HTTP handlers for the job API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/inklift/inklift/internal/errors"
	"github.com/inklift/inklift/pkg/provider"
	"github.com/inklift/inklift/pkg/registry"
)

// maxUploadBytes caps request bodies on the upload endpoint. Offloaded
// uploads still flow through here; the strategist decides the path.
const maxUploadBytes = 256 << 20 // 256 MiB

// Orchestrator is the orchestration surface the handlers need.
// Satisfied by *orchestrator.Orchestrator.
type Orchestrator interface {
	Submit(workflowID string, overrides []provider.FieldOverride, regionID string) (string, error)
	GetJob(ref string) (registry.Job, error)
	ListJobs(filter registry.Status) []registry.Job
	Cancel(ctx context.Context, ref string) bool
	Retry(ref string) bool
	Wait(ctx context.Context, ref string) ([]string, error)
	Upload(ctx context.Context, regionID, fileName string, data []byte) (string, error)
}

// Jobs bundles the job endpoints around an orchestrator.
type Jobs struct {
	orch Orchestrator
}

// NewJobs creates the handler set.
func NewJobs(orch Orchestrator) *Jobs {
	return &Jobs{orch: orch}
}

// submitRequest is the POST /jobs body. Override field values may be any
// JSON scalar; they are coerced to strings on decode.
type submitRequest struct {
	WorkflowID string                   `json:"workflow_id"`
	Region     string                   `json:"region,omitempty"`
	Overrides  []provider.FieldOverride `json:"overrides,omitempty"`
}

type submitResponse struct {
	Ref string `json:"ref"`
}

// Submit handles POST /api/v1/jobs.
func (h *Jobs) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.RespondInvalid(w, "invalid request body: "+err.Error())
		return
	}
	if req.WorkflowID == "" {
		apperrors.RespondInvalid(w, "workflow_id is required")
		return
	}

	ref, err := h.orch.Submit(req.WorkflowID, req.Overrides, req.Region)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, submitResponse{Ref: ref})
}

// Get handles GET /api/v1/jobs/{ref}.
func (h *Jobs) Get(w http.ResponseWriter, r *http.Request) {
	job, err := h.orch.GetJob(chi.URLParam(r, "ref"))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// List handles GET /api/v1/jobs with an optional ?status= filter.
func (h *Jobs) List(w http.ResponseWriter, r *http.Request) {
	filter := registry.Status(r.URL.Query().Get("status"))
	writeJSON(w, http.StatusOK, h.orch.ListJobs(filter))
}

type actionResponse struct {
	Ref string `json:"ref"`
	OK  bool   `json:"ok"`
}

// Cancel handles POST /api/v1/jobs/{ref}/cancel. Cancelling a terminal
// job is a no-op reported as ok=false, not an error.
func (h *Jobs) Cancel(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")
	if _, err := h.orch.GetJob(ref); err != nil {
		respondWithError(w, r, err)
		return
	}
	ok := h.orch.Cancel(r.Context(), ref)
	writeJSON(w, http.StatusOK, actionResponse{Ref: ref, OK: ok})
}

// Retry handles POST /api/v1/jobs/{ref}/retry. Only failed jobs are
// retryable; anything else is reported as ok=false.
func (h *Jobs) Retry(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")
	if _, err := h.orch.GetJob(ref); err != nil {
		respondWithError(w, r, err)
		return
	}
	ok := h.orch.Retry(ref)
	writeJSON(w, http.StatusOK, actionResponse{Ref: ref, OK: ok})
}

type waitResponse struct {
	Ref        string   `json:"ref"`
	ResultURLs []string `json:"result_urls"`
}

// Wait handles GET /api/v1/jobs/{ref}/wait: the single blocking call for
// callers that want submit-and-forget semantics.
func (h *Jobs) Wait(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")
	urls, err := h.orch.Wait(r.Context(), ref)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, waitResponse{Ref: ref, ResultURLs: urls})
}

type uploadResponse struct {
	FileRef string `json:"file_ref"`
}

// Upload handles POST /api/v1/uploads?name=...&region=... with the raw
// file bytes as the body.
func (h *Jobs) Upload(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		apperrors.RespondInvalid(w, "name query parameter is required")
		return
	}
	body := http.MaxBytesReader(w, r.Body, maxUploadBytes)
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			apperrors.RespondInvalid(w, "upload body exceeds the size limit")
			return
		}
		apperrors.RespondInvalid(w, "read upload body: "+err.Error())
		return
	}
	if len(data) == 0 {
		apperrors.RespondInvalid(w, "upload body is empty")
		return
	}

	fileRef, err := h.orch.Upload(r.Context(), r.URL.Query().Get("region"), name, data)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{FileRef: fileRef})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
