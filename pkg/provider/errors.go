package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// Sentinel errors for provider operations.
var (
	// ErrTaskNotFound indicates the provider has no record of the task id.
	ErrTaskNotFound = errors.New("task not found")

	// ErrInvalidCredentials indicates the API key was rejected.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrProviderUnavailable indicates the provider returned a 5xx or was
	// unreachable.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrThrottled indicates the request was rate limited by the provider.
	ErrThrottled = errors.New("request throttled")

	// ErrInvalidWorkflow indicates the stored workflow failed the
	// provider's compile-time validation. Retrying cannot help.
	ErrInvalidWorkflow = errors.New("workflow validation failed")

	// ErrPayloadTooLarge indicates a direct upload exceeded the provider's
	// hard size limit.
	ErrPayloadTooLarge = errors.New("payload too large for direct upload")
)

// ProviderError wraps provider-specific errors with request context.
type ProviderError struct {
	// Op is the operation that failed (e.g., "SubmitJob", "QueryStatus").
	Op string

	// Region is the region selector the call was routed through.
	Region string

	// TaskID is the provider task id, if one was assigned.
	TaskID string

	// StatusCode is the HTTP status, zero for transport-level failures.
	StatusCode int

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.TaskID != "" {
		return fmt.Sprintf("%s %s: task %s: %v", e.Region, e.Op, e.TaskID, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Region, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// DiagnosticsError reports compile-time workflow diagnostics embedded in
// an otherwise successful submission response. It is terminal: the
// workflow itself is invalid, not the network call.
type DiagnosticsError struct {
	WorkflowID  string
	Diagnostics []NodeDiagnostic
}

func (e *DiagnosticsError) Error() string {
	msgs := make([]string, 0, len(e.Diagnostics))
	for _, d := range e.Diagnostics {
		msgs = append(msgs, d.String())
	}
	return fmt.Sprintf("workflow %s rejected: %s", e.WorkflowID, strings.Join(msgs, "; "))
}

// Unwrap lets callers match with errors.Is(err, ErrInvalidWorkflow).
func (e *DiagnosticsError) Unwrap() error {
	return ErrInvalidWorkflow
}

// IsTaskNotFound returns true if the error indicates an unknown task id.
func IsTaskNotFound(err error) bool {
	return errors.Is(err, ErrTaskNotFound)
}

// IsInvalidCredentials returns true if the error indicates authentication failed.
func IsInvalidCredentials(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}

// IsThrottled returns true if the error indicates provider rate limiting.
func IsThrottled(err error) bool {
	return errors.Is(err, ErrThrottled)
}

// IsInvalidWorkflow returns true if the error is a terminal workflow
// validation failure.
func IsInvalidWorkflow(err error) bool {
	return errors.Is(err, ErrInvalidWorkflow)
}

// IsTransient reports whether err is worth retrying: timeouts, connection
// resets, provider 5xx, and throttling. Validation and credential
// failures are never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrInvalidWorkflow) || errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrTaskNotFound) || errors.Is(err, ErrPayloadTooLarge) {
		return false
	}
	if errors.Is(err, ErrProviderUnavailable) || errors.Is(err, ErrThrottled) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	return false
}

// classifyStatus maps an HTTP status code onto the sentinel taxonomy.
// Returns nil for codes that are not errors.
func classifyStatus(code int) error {
	switch {
	case code < 400:
		return nil
	case code == 401 || code == 403:
		return ErrInvalidCredentials
	case code == 404:
		return ErrTaskNotFound
	case code == 413:
		return ErrPayloadTooLarge
	case code == 429:
		return ErrThrottled
	case code >= 500:
		return ErrProviderUnavailable
	default:
		return fmt.Errorf("unexpected status %d", code)
	}
}
