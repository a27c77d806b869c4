// Package errors adapts domain errors to the stable HTTP error envelope
// served by the API surface.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/inklift/inklift/pkg/orchestrator"
	"github.com/inklift/inklift/pkg/provider"
)

// Stable machine-readable error codes.
const (
	CodeNotFound        = "NOT_FOUND"
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeThrottled       = "THROTTLED"
	CodeUnavailable     = "PROVIDER_UNAVAILABLE"
	CodeInternal        = "INTERNAL"
)

// HTTPErrorResponse is the JSON error envelope.
type HTTPErrorResponse struct {
	Error HTTPError `json:"error"`
}

// HTTPError carries the code and human-readable message.
type HTTPError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RespondWithError writes err as the standard envelope with a status
// derived from the domain taxonomy.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	writeError(w, status, code, err.Error())
}

// RespondNotFound writes a 404 envelope for unknown routes.
func RespondNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, CodeNotFound, "resource not found")
}

// RespondMethodNotAllowed writes a 405 envelope.
func RespondMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, CodeInvalidArgument, "method not allowed")
}

// RespondInvalid writes a 400 envelope with the given message.
func RespondInvalid(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusBadRequest, CodeInvalidArgument, msg)
}

// RespondInvalidState writes a 500 envelope for recovered panics.
func RespondInvalidState(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, CodeInternal, "internal server error")
}

func classify(err error) (int, string) {
	switch {
	case stderrors.Is(err, orchestrator.ErrJobNotFound), provider.IsTaskNotFound(err):
		return http.StatusNotFound, CodeNotFound
	case provider.IsInvalidWorkflow(err):
		return http.StatusUnprocessableEntity, CodeInvalidArgument
	case provider.IsInvalidCredentials(err):
		return http.StatusUnauthorized, CodeUnauthorized
	case provider.IsThrottled(err):
		return http.StatusTooManyRequests, CodeThrottled
	case stderrors.Is(err, provider.ErrProviderUnavailable):
		return http.StatusBadGateway, CodeUnavailable
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(HTTPErrorResponse{
		Error: HTTPError{Code: code, Message: msg},
	})
}
