package registry

import (
	"time"

	"github.com/inklift/inklift/pkg/provider"
	"github.com/inklift/inklift/pkg/region"
)

// Status is the canonical job lifecycle state this layer exposes,
// independent of provider-specific vocabulary.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether s is a final state. Terminal states are
// never overwritten by later updates.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Job is the central entity the orchestration layer tracks.
//
// Ref is assigned client-side before the submission network call so the
// job is addressable (and cancellable) from the moment it exists. TaskID
// is the provider's opaque id, written once after an accepted submission.
type Job struct {
	// Ref is the registry key, a client-generated uuid.
	Ref string `json:"ref"`

	// TaskID is the provider-assigned id; empty before submission succeeds.
	TaskID string `json:"task_id,omitempty"`

	// WorkflowID names the stored remote workflow to run.
	WorkflowID string `json:"workflow_id"`

	// Region is the provider deployment the job was routed to.
	Region region.Region `json:"region"`

	// Overrides is the Advanced-mode field patch list; empty means
	// Simple mode (run the stored workflow verbatim).
	Overrides []provider.FieldOverride `json:"overrides,omitempty"`

	// Status is the canonical five-state lifecycle value.
	Status Status `json:"status"`

	// ProviderStatus is the last raw status string received, retained
	// for diagnostics.
	ProviderStatus string `json:"provider_status,omitempty"`

	// Progress is a best-effort 0-100 figure, when the provider reports one.
	Progress *int `json:"progress,omitempty"`

	// ResultURLs is populated exactly once, on the transition into
	// StatusSucceeded. Ordered as the provider returned them.
	ResultURLs []string `json:"result_urls,omitempty"`

	// ErrorMessage is populated only when Status is StatusFailed.
	ErrorMessage string `json:"error_message,omitempty"`

	// Attempts counts submission retry attempts consumed.
	Attempts int `json:"attempts"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Simple reports whether the job runs in zero-override mode.
func (j *Job) Simple() bool {
	return len(j.Overrides) == 0
}
