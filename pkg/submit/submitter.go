// Package submit builds and sends job submissions to the provider.
//
// Transient send failures are retried with exponential backoff up to a
// fixed cap. A submission that comes back with embedded compile-time
// workflow diagnostics is terminal: the workflow itself is invalid, and
// no amount of retrying the network call can fix it.
package submit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/inklift/inklift/pkg/provider"
	"github.com/inklift/inklift/pkg/region"
)

// Config is the submission retry policy.
type Config struct {
	// MaxAttempts caps total submission attempts, first included.
	MaxAttempts int

	// FirstAttemptTimeout bounds the first attempt. The provider's cold
	// path is slower than its retry path, so this is the longer of the two.
	FirstAttemptTimeout time.Duration

	// RetryTimeout bounds every attempt after the first.
	RetryTimeout time.Duration

	// BackoffBase seeds the exponential delay between attempts.
	BackoffBase time.Duration
}

// DefaultConfig is the reference policy.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:         3,
		FirstAttemptTimeout: 60 * time.Second,
		RetryTimeout:        30 * time.Second,
		BackoffBase:         2 * time.Second,
	}
}

// Error is a terminal submission failure: either a non-transient error
// or transient failures exhausting the attempt cap.
type Error struct {
	WorkflowID string
	Attempts   int
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("submit workflow %s failed after %d attempt(s): %v", e.WorkflowID, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Result reports an accepted submission.
type Result struct {
	// TaskID is the provider-assigned job id.
	TaskID string

	// RawStatus is the provider status vocabulary at acceptance time.
	RawStatus string

	// Attempts is the number of attempts consumed, including the
	// successful one.
	Attempts int
}

// Submitter sends submissions with the configured retry policy.
// Safe for concurrent use.
type Submitter struct {
	client provider.Client
	cfg    Config
	logger *zap.Logger

	// sleep is swappable in tests.
	sleep func(time.Duration)
}

// New creates a submitter. Zero-valued config fields fall back to the
// reference policy.
func New(client provider.Client, cfg Config, logger *zap.Logger) *Submitter {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.FirstAttemptTimeout <= 0 {
		cfg.FirstAttemptTimeout = def.FirstAttemptTimeout
	}
	if cfg.RetryTimeout <= 0 {
		cfg.RetryTimeout = def.RetryTimeout
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = def.BackoffBase
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Submitter{client: client, cfg: cfg, logger: logger, sleep: time.Sleep}
}

// Submit sends the workflow to the provider. An empty override list
// submits in Simple mode (the stored workflow runs verbatim); otherwise
// the override list is sent with every field already string-coerced.
//
// Idempotency is the caller's concern: the provider assigns a fresh task
// id per accepted submission, so a retry whose predecessor actually
// succeeded server-side creates a duplicate job.
func (s *Submitter) Submit(ctx context.Context, reg region.Region, workflowID string, overrides []provider.FieldOverride) (*Result, error) {
	var lastErr error

	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := s.cfg.BackoffBase * time.Duration(1<<(attempt-2))
			s.logger.Debug("backing off before resubmit",
				zap.String("workflow_id", workflowID),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay))
			s.sleep(delay)
		}
		if err := ctx.Err(); err != nil {
			return nil, &Error{WorkflowID: workflowID, Attempts: attempt - 1, Err: err}
		}

		timeout := s.cfg.RetryTimeout
		if attempt == 1 {
			timeout = s.cfg.FirstAttemptTimeout
		}
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		res, err := s.client.SubmitJob(attemptCtx, reg, workflowID, overrides)
		cancel()

		if err != nil {
			lastErr = err
			if provider.IsTransient(err) {
				s.logger.Warn("transient submission failure",
					zap.String("workflow_id", workflowID),
					zap.Int("attempt", attempt),
					zap.Error(err))
				continue
			}
			return nil, &Error{WorkflowID: workflowID, Attempts: attempt, Err: err}
		}

		// A 2xx response can still carry compile-time diagnostics.
		if len(res.Diagnostics) > 0 {
			diagErr := &provider.DiagnosticsError{WorkflowID: workflowID, Diagnostics: res.Diagnostics}
			return nil, &Error{WorkflowID: workflowID, Attempts: attempt, Err: diagErr}
		}
		if res.TaskID == "" {
			return nil, &Error{WorkflowID: workflowID, Attempts: attempt,
				Err: errors.New("provider accepted submission without a task id")}
		}

		s.logger.Info("submission accepted",
			zap.String("workflow_id", workflowID),
			zap.String("task_id", res.TaskID),
			zap.Int("attempt", attempt))
		return &Result{TaskID: res.TaskID, RawStatus: res.RawStatus, Attempts: attempt}, nil
	}

	return nil, &Error{WorkflowID: workflowID, Attempts: s.cfg.MaxAttempts, Err: lastErr}
}
