// Package registry tracks the lifecycle of every submitted job.
//
// The registry is the only shared mutable state in the orchestration
// layer. Entries are sharded by job ref and mutated under per-entry
// locks so unrelated jobs never serialize on each other. Terminal
// states are final: a late poll result can never overwrite a job the
// registry has already marked cancelled or failed.
package registry

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/inklift/inklift/pkg/region"
)

const shardCount = 32

// Canceller sends a best-effort cancel request to the provider.
// Satisfied by provider.Client.
type Canceller interface {
	CancelJob(ctx context.Context, reg region.Region, taskID string) error
}

// Update carries the mutable fields of a status change. Zero-valued
// fields other than Status are left untouched.
type Update struct {
	Status         Status
	ProviderStatus string
	Progress       *int
	ErrorMessage   string

	// Results is honored only on the transition into StatusSucceeded;
	// result URLs are written exactly once.
	Results []string
}

type entry struct {
	mu         sync.Mutex
	job        Job
	onChange   func(Job)
	terminalAt time.Time
}

type shard struct {
	mu   sync.RWMutex
	jobs map[string]*entry
}

// Registry is an in-process job lifecycle store. Safe for concurrent use.
type Registry struct {
	shards    [shardCount]*shard
	canceller Canceller
	logger    *zap.Logger

	// now is swappable for retention tests.
	now func() time.Time
}

// New creates a registry. canceller may be nil, in which case Cancel
// performs only the local transition.
func New(canceller Canceller, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{canceller: canceller, logger: logger, now: time.Now}
	for i := range r.shards {
		r.shards[i] = &shard{jobs: make(map[string]*entry)}
	}
	return r
}

func (r *Registry) shardFor(ref string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(ref))
	return r.shards[h.Sum32()%shardCount]
}

func (r *Registry) lookup(ref string) (*entry, bool) {
	s := r.shardFor(ref)
	s.mu.RLock()
	e, ok := s.jobs[ref]
	s.mu.RUnlock()
	return e, ok
}

// Register adds a job. The job should be in StatusPending; registration
// happens before the submission network call so cancellation during
// submission is representable.
func (r *Registry) Register(job Job) {
	now := r.now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	if job.Status == "" {
		job.Status = StatusPending
	}

	s := r.shardFor(job.Ref)
	s.mu.Lock()
	s.jobs[job.Ref] = &entry{job: job}
	s.mu.Unlock()
}

// Get returns a copy of the job, if present.
func (r *Registry) Get(ref string) (Job, bool) {
	e, ok := r.lookup(ref)
	if !ok {
		return Job{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.job, true
}

// List returns copies of all jobs, newest first. A non-empty filter
// restricts the result to that status.
func (r *Registry) List(filter Status) []Job {
	var out []Job
	for _, s := range r.shards {
		s.mu.RLock()
		entries := make([]*entry, 0, len(s.jobs))
		for _, e := range s.jobs {
			entries = append(entries, e)
		}
		s.mu.RUnlock()
		for _, e := range entries {
			e.mu.Lock()
			if filter == "" || e.job.Status == filter {
				out = append(out, e.job)
			}
			e.mu.Unlock()
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Remove deletes a job unconditionally. Prefer Sweep for routine eviction.
func (r *Registry) Remove(ref string) bool {
	s := r.shardFor(ref)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[ref]; !ok {
		return false
	}
	delete(s.jobs, ref)
	return true
}

// OnChange registers the single observer for a job. The callback fires
// synchronously from every update, including updates that do not change
// the canonical status (callers rely on liveness, not just edges). The
// callback must not call back into the registry for the same job.
func (r *Registry) OnChange(ref string, fn func(Job)) bool {
	e, ok := r.lookup(ref)
	if !ok {
		return false
	}
	e.mu.Lock()
	e.onChange = fn
	e.mu.Unlock()
	return true
}

// UpdateStatus applies u to the job. Returns false when the job is
// unknown or already terminal; terminal states are never overwritten.
func (r *Registry) UpdateStatus(ref string, u Update) bool {
	e, ok := r.lookup(ref)
	if !ok {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.job.Status.IsTerminal() {
		r.logger.Debug("dropping update for terminal job",
			zap.String("ref", ref),
			zap.String("status", string(e.job.Status)),
			zap.String("attempted", string(u.Status)))
		return false
	}

	now := r.now().UTC()
	if u.Status != "" {
		e.job.Status = u.Status
	}
	if u.ProviderStatus != "" {
		e.job.ProviderStatus = u.ProviderStatus
	}
	if u.Progress != nil {
		e.job.Progress = u.Progress
	}
	if u.ErrorMessage != "" {
		e.job.ErrorMessage = u.ErrorMessage
	}
	if u.Status == StatusSucceeded {
		e.job.ResultURLs = u.Results
	}
	if e.job.Status.IsTerminal() {
		e.terminalAt = now
	}
	e.job.UpdatedAt = now

	if e.onChange != nil {
		e.onChange(e.job)
	}
	return true
}

// SetTaskID records the provider-assigned id. Write-once: a second call
// for the same job is ignored.
func (r *Registry) SetTaskID(ref, taskID string) bool {
	e, ok := r.lookup(ref)
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.job.TaskID != "" {
		return false
	}
	e.job.TaskID = taskID
	e.job.UpdatedAt = r.now().UTC()
	return true
}

// AddAttempts adds n consumed submission attempts to the counter.
func (r *Registry) AddAttempts(ref string, n int) {
	e, ok := r.lookup(ref)
	if !ok {
		return
	}
	e.mu.Lock()
	e.job.Attempts += n
	e.mu.Unlock()
}

// Cancel transitions a pending or running job to cancelled. The provider
// request is best effort: local state changes immediately and a failed
// remote cancel is only logged. Cancelling a terminal job is a no-op
// that returns false.
func (r *Registry) Cancel(ctx context.Context, ref string) bool {
	e, ok := r.lookup(ref)
	if !ok {
		return false
	}

	e.mu.Lock()
	if e.job.Status.IsTerminal() {
		e.mu.Unlock()
		return false
	}
	e.job.Status = StatusCancelled
	e.job.UpdatedAt = r.now().UTC()
	e.terminalAt = e.job.UpdatedAt
	job := e.job
	cb := e.onChange
	if cb != nil {
		cb(job)
	}
	e.mu.Unlock()

	if r.canceller != nil && job.TaskID != "" {
		if err := r.canceller.CancelJob(ctx, job.Region, job.TaskID); err != nil {
			r.logger.Warn("provider cancel failed",
				zap.String("ref", ref),
				zap.String("task_id", job.TaskID),
				zap.Error(err))
		}
	}
	return true
}

// ResetForRetry moves a failed job back to pending so it can be
// resubmitted with its original workflow and overrides. Only valid from
// StatusFailed; returns the refreshed job copy and true on success.
func (r *Registry) ResetForRetry(ref string) (Job, bool) {
	e, ok := r.lookup(ref)
	if !ok {
		return Job{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.job.Status != StatusFailed {
		return Job{}, false
	}

	e.job.Status = StatusPending
	e.job.TaskID = ""
	e.job.ProviderStatus = ""
	e.job.Progress = nil
	e.job.ErrorMessage = ""
	e.job.ResultURLs = nil
	e.job.UpdatedAt = r.now().UTC()
	e.terminalAt = time.Time{}

	if e.onChange != nil {
		e.onChange(e.job)
	}
	return e.job, true
}

// Sweep removes jobs that have sat in a terminal state longer than
// window. Non-terminal jobs are never removed regardless of age.
// Returns the number of jobs evicted.
func (r *Registry) Sweep(window time.Duration) int {
	cutoff := r.now().UTC().Add(-window)
	removed := 0
	for _, s := range r.shards {
		s.mu.Lock()
		for ref, e := range s.jobs {
			e.mu.Lock()
			expired := e.job.Status.IsTerminal() && !e.terminalAt.IsZero() && e.terminalAt.Before(cutoff)
			e.mu.Unlock()
			if expired {
				delete(s.jobs, ref)
				removed++
			}
		}
		s.mu.Unlock()
	}
	if removed > 0 {
		r.logger.Info("swept terminal jobs", zap.Int("removed", removed))
	}
	return removed
}

// StartSweeper runs Sweep on a ticker until ctx is done.
func (r *Registry) StartSweeper(ctx context.Context, interval, window time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.Sweep(window)
			}
		}
	}()
}
