// Package poll drives a submitted job to a terminal state by querying
// provider status with bounded attempts.
//
// Polling is single-flight per job: at most one active loop exists for a
// given job at any time. A failed poll iteration is logged and the loop
// continues; only exhausting the attempt budget without reaching a
// terminal state fails the wait, and that timeout is distinct from a
// provider-reported failure.
package poll

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/inklift/inklift/pkg/provider"
	"github.com/inklift/inklift/pkg/registry"
)

// ErrPollInFlight is returned when a poll loop is already active for the job.
var ErrPollInFlight = errors.New("poll already in flight for job")

// TimeoutError reports an exhausted attempt budget: the provider never
// reached a terminal state while we were watching.
type TimeoutError struct {
	TaskID   string
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("task %s did not reach a terminal state within %d poll attempts", e.TaskID, e.Attempts)
}

// Config is the polling policy.
type Config struct {
	// Interval is the sleep between poll iterations.
	Interval time.Duration

	// MaxAttempts bounds total iterations before TimeoutError.
	MaxAttempts int

	// SettleDelay is the wait after observing success before results are
	// trusted; the provider's output storage lags its status by a few
	// seconds.
	SettleDelay time.Duration

	// RequestTimeout bounds a single status query.
	RequestTimeout time.Duration
}

// DefaultConfig is the reference policy: 5s interval, 150 attempts
// (about 12.5 minutes), 2s settle.
func DefaultConfig() Config {
	return Config{
		Interval:       5 * time.Second,
		MaxAttempts:    150,
		SettleDelay:    2 * time.Second,
		RequestTimeout: 15 * time.Second,
	}
}

// MapStatus folds the provider's status vocabulary onto the canonical
// model. Unrecognized values default to pending so an unanticipated
// provider string never crashes the loop.
func MapStatus(raw string) registry.Status {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "QUEUED", "CREATE":
		return registry.StatusPending
	case "RUNNING", "PROCESSING":
		return registry.StatusRunning
	case "SUCCESS", "COMPLETED":
		return registry.StatusSucceeded
	case "FAILED", "ERROR":
		return registry.StatusFailed
	default:
		return registry.StatusPending
	}
}

// Poller watches submitted jobs. Safe for concurrent use across jobs.
type Poller struct {
	client provider.Client
	reg    *registry.Registry
	cfg    Config
	logger *zap.Logger

	mu     sync.Mutex
	active map[string]struct{}

	// sleep is swappable in tests.
	sleep func(time.Duration)
}

// New creates a poller. Zero-valued config fields fall back to the
// reference policy.
func New(client provider.Client, reg *registry.Registry, cfg Config, logger *zap.Logger) *Poller {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.SettleDelay < 0 {
		cfg.SettleDelay = def.SettleDelay
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		client: client,
		reg:    reg,
		cfg:    cfg,
		active: make(map[string]struct{}),
		logger: logger,
		sleep:  time.Sleep,
	}
}

// PollUntilTerminal queries provider status until the job reaches a
// terminal state or the attempt budget runs out.
//
// Every iteration updates the registry (status, progress, timestamps)
// and fires the job's change callback even when the raw status is
// unchanged; callers rely on liveness, not just edges. On observing
// success the poller waits the settle delay and returns StatusSucceeded
// without writing it to the registry; result URLs are written exactly
// once, by the caller, together with the succeeded transition.
func (p *Poller) PollUntilTerminal(ctx context.Context, job registry.Job) (registry.Status, error) {
	if !p.acquire(job.Ref) {
		return "", ErrPollInFlight
	}
	defer p.release(job.Ref)

	log := p.logger.With(zap.String("ref", job.Ref), zap.String("task_id", job.TaskID))

	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			p.sleep(p.cfg.Interval)
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}

		queryCtx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
		res, err := p.client.QueryStatus(queryCtx, job.Region, job.TaskID)
		cancel()

		if err != nil {
			// One failed iteration does not abort the wait.
			log.Warn("poll iteration failed", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}

		status := MapStatus(res.RawStatus)
		log.Debug("poll iteration",
			zap.Int("attempt", attempt),
			zap.String("raw_status", res.RawStatus),
			zap.String("status", string(status)))

		switch status {
		case registry.StatusSucceeded:
			// Keep the job running locally until results are fetched; the
			// succeeded transition carries the result URLs atomically.
			if !p.reg.UpdateStatus(job.Ref, registry.Update{
				Status:         registry.StatusRunning,
				ProviderStatus: res.RawStatus,
				Progress:       res.Progress,
			}) {
				return p.localStatus(job.Ref), nil
			}
			if p.cfg.SettleDelay > 0 {
				p.sleep(p.cfg.SettleDelay)
			}
			return registry.StatusSucceeded, nil

		case registry.StatusFailed:
			p.reg.UpdateStatus(job.Ref, registry.Update{
				Status:         registry.StatusFailed,
				ProviderStatus: res.RawStatus,
				Progress:       res.Progress,
				ErrorMessage:   fmt.Sprintf("provider reported failure (%s)", res.RawStatus),
			})
			return registry.StatusFailed, nil

		default:
			if !p.reg.UpdateStatus(job.Ref, registry.Update{
				Status:         status,
				ProviderStatus: res.RawStatus,
				Progress:       res.Progress,
			}) {
				// The registry refused the write: the job went terminal
				// locally (cancelled) while this iteration was in flight.
				return p.localStatus(job.Ref), nil
			}
		}
	}

	return "", &TimeoutError{TaskID: job.TaskID, Attempts: p.cfg.MaxAttempts}
}

func (p *Poller) localStatus(ref string) registry.Status {
	if j, ok := p.reg.Get(ref); ok {
		return j.Status
	}
	return registry.StatusCancelled
}

func (p *Poller) acquire(ref string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.active[ref]; busy {
		return false
	}
	p.active[ref] = struct{}{}
	return true
}

func (p *Poller) release(ref string) {
	p.mu.Lock()
	delete(p.active, ref)
	p.mu.Unlock()
}
