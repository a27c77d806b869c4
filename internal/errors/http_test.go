package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inklift/inklift/pkg/orchestrator"
	"github.com/inklift/inklift/pkg/provider"
)

func respond(t *testing.T, err error) (int, HTTPErrorResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	RespondWithError(rec, req, err)

	var resp HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return rec.Code, resp
}

func TestRespondWithError_Taxonomy(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"job not found", orchestrator.ErrJobNotFound, http.StatusNotFound, CodeNotFound},
		{"task not found", fmt.Errorf("lookup: %w", provider.ErrTaskNotFound), http.StatusNotFound, CodeNotFound},
		{"invalid workflow", provider.ErrInvalidWorkflow, http.StatusUnprocessableEntity, CodeInvalidArgument},
		{"bad credentials", provider.ErrInvalidCredentials, http.StatusUnauthorized, CodeUnauthorized},
		{"throttled", provider.ErrThrottled, http.StatusTooManyRequests, CodeThrottled},
		{"provider down", provider.ErrProviderUnavailable, http.StatusBadGateway, CodeUnavailable},
		{"anything else", errors.New("mystery"), http.StatusInternalServerError, CodeInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, resp := respond(t, tc.err)
			assert.Equal(t, tc.wantStatus, status)
			assert.Equal(t, tc.wantCode, resp.Error.Code)
			assert.NotEmpty(t, resp.Error.Message)
		})
	}
}

func TestRespondWithError_DiagnosticsError(t *testing.T) {
	err := &provider.DiagnosticsError{
		WorkflowID:  "wf-1",
		Diagnostics: []provider.NodeDiagnostic{{NodeID: "3", Message: "missing model"}},
	}
	status, resp := respond(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, CodeInvalidArgument, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "missing model")
}

func TestRespondNotFound(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondNotFound(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, CodeNotFound, resp.Error.Code)
}

func TestRespondInvalid(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondInvalid(rec, "workflow_id is required")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, CodeInvalidArgument, resp.Error.Code)
	assert.Equal(t, "workflow_id is required", resp.Error.Message)
}
