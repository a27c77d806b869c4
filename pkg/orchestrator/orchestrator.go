// Package orchestrator composes the job pipeline: submit, poll, fetch.
//
// Each job runs as an independent goroutine; jobs share nothing but the
// registry. Admission is bounded by a semaphore on in-flight pipelines
// and a rate limiter on outbound submissions, so a burst of users cannot
// stampede the provider.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/inklift/inklift/pkg/poll"
	"github.com/inklift/inklift/pkg/provider"
	"github.com/inklift/inklift/pkg/region"
	"github.com/inklift/inklift/pkg/registry"
	"github.com/inklift/inklift/pkg/result"
	"github.com/inklift/inklift/pkg/submit"
	"github.com/inklift/inklift/pkg/upload"
)

// ErrJobNotFound is returned for refs the registry does not know.
var ErrJobNotFound = errors.New("job not found")

// Config bounds the orchestrator's concurrency.
type Config struct {
	// MaxInFlight caps concurrently running job pipelines. Zero means
	// the reference default (64).
	MaxInFlight int

	// SubmitRate limits outbound submissions per second. Zero or
	// negative disables limiting.
	SubmitRate float64

	// SubmitBurst is the limiter burst size when SubmitRate is set.
	SubmitBurst int
}

type run struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Orchestrator wires the pipeline components together and exposes the
// surface consumed by the API layer and the CLI.
type Orchestrator struct {
	regions   *region.Directory
	submitter *submit.Submitter
	poller    *poll.Poller
	fetcher   *result.Fetcher
	uploader  *upload.Uploader
	reg       *registry.Registry
	logger    *zap.Logger

	sem     chan struct{}
	limiter *rate.Limiter

	baseCtx context.Context

	mu   sync.Mutex
	runs map[string]*run
}

// New assembles an orchestrator. baseCtx scopes all pipeline goroutines;
// cancelling it stops every in-flight job.
func New(
	baseCtx context.Context,
	regions *region.Directory,
	submitter *submit.Submitter,
	poller *poll.Poller,
	fetcher *result.Fetcher,
	uploader *upload.Uploader,
	reg *registry.Registry,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 64
	}
	limit := rate.Inf
	burst := cfg.SubmitBurst
	if cfg.SubmitRate > 0 {
		limit = rate.Limit(cfg.SubmitRate)
		if burst <= 0 {
			burst = 1
		}
	} else {
		burst = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		regions:   regions,
		submitter: submitter,
		poller:    poller,
		fetcher:   fetcher,
		uploader:  uploader,
		reg:       reg,
		logger:    logger,
		sem:       make(chan struct{}, cfg.MaxInFlight),
		limiter:   rate.NewLimiter(limit, burst),
		baseCtx:   baseCtx,
		runs:      make(map[string]*run),
	}
}

// Registry exposes the lifecycle store for read-side collaborators.
func (o *Orchestrator) Registry() *registry.Registry {
	return o.reg
}

// Submit registers a job and starts its pipeline. The job exists in the
// registry before the submission network call, so it is cancellable from
// the moment the ref is returned. An empty or absent override list
// selects Simple mode.
func (o *Orchestrator) Submit(workflowID string, overrides []provider.FieldOverride, regionID string) (string, error) {
	if workflowID == "" {
		return "", fmt.Errorf("workflow id is required")
	}

	job := registry.Job{
		Ref:        uuid.New().String(),
		WorkflowID: workflowID,
		Region:     o.regions.Resolve(regionID),
		Overrides:  overrides,
		Status:     registry.StatusPending,
	}
	o.reg.Register(job)
	o.launch(job.Ref)

	o.logger.Info("job accepted",
		zap.String("ref", job.Ref),
		zap.String("workflow_id", workflowID),
		zap.String("region", job.Region.ID),
		zap.Int("overrides", len(overrides)))
	return job.Ref, nil
}

// GetJob returns the job for ref.
func (o *Orchestrator) GetJob(ref string) (registry.Job, error) {
	j, ok := o.reg.Get(ref)
	if !ok {
		return registry.Job{}, ErrJobNotFound
	}
	return j, nil
}

// ListJobs returns all tracked jobs, optionally filtered by status.
func (o *Orchestrator) ListJobs(filter registry.Status) []registry.Job {
	return o.reg.List(filter)
}

// OnJobChange registers the single change observer for a job.
func (o *Orchestrator) OnJobChange(ref string, fn func(registry.Job)) bool {
	return o.reg.OnChange(ref, fn)
}

// Cancel sends a best-effort provider cancel and transitions the job
// locally. Returns false for unknown refs and jobs already terminal.
// The in-flight pipeline is cut cooperatively: its context is cancelled
// and any late poll result is refused by the registry's terminal guard.
func (o *Orchestrator) Cancel(ctx context.Context, ref string) bool {
	if !o.reg.Cancel(ctx, ref) {
		return false
	}
	o.mu.Lock()
	r := o.runs[ref]
	o.mu.Unlock()
	if r != nil {
		r.cancel()
	}
	return true
}

// Retry resubmits a failed job with its original workflow and overrides.
// Only valid from the failed state; returns false otherwise. A failed
// resubmission moves the job back to failed with an updated message.
func (o *Orchestrator) Retry(ref string) bool {
	if _, ok := o.reg.ResetForRetry(ref); !ok {
		return false
	}
	o.launch(ref)
	o.logger.Info("job retry accepted", zap.String("ref", ref))
	return true
}

// Upload pushes an input file toward the provider using the size-derived
// plan and returns the file reference to use in overrides.
func (o *Orchestrator) Upload(ctx context.Context, regionID, fileName string, data []byte) (string, error) {
	return o.uploader.Upload(ctx, o.regions.Resolve(regionID), fileName, data)
}

// Wait blocks until the job reaches a terminal state and returns its
// result URLs. Failed jobs return an error carrying the job's message;
// cancelled jobs return an error as well. This is the single-call
// convenience over submit-level polling.
func (o *Orchestrator) Wait(ctx context.Context, ref string) ([]string, error) {
	o.mu.Lock()
	r := o.runs[ref]
	o.mu.Unlock()

	if r != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-r.done:
		}
	}
	return o.terminalOutcome(ctx, ref)
}

// terminalOutcome resolves the final answer for a job that either has no
// active pipeline or whose pipeline just finished. When the job is still
// non-terminal (e.g. Wait was called between retry scheduling and pipeline
// start) it watches the registry until it settles.
func (o *Orchestrator) terminalOutcome(ctx context.Context, ref string) ([]string, error) {
	for {
		j, ok := o.reg.Get(ref)
		if !ok {
			return nil, ErrJobNotFound
		}
		switch j.Status {
		case registry.StatusSucceeded:
			return j.ResultURLs, nil
		case registry.StatusFailed:
			return nil, fmt.Errorf("job %s failed: %s", ref, j.ErrorMessage)
		case registry.StatusCancelled:
			return nil, fmt.Errorf("job %s was cancelled", ref)
		}

		o.mu.Lock()
		r := o.runs[ref]
		o.mu.Unlock()
		if r == nil {
			return nil, fmt.Errorf("job %s is %s with no active pipeline", ref, j.Status)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-r.done:
		}
	}
}

// launch starts the pipeline goroutine for ref and tracks its run handle.
func (o *Orchestrator) launch(ref string) {
	ctx, cancel := context.WithCancel(o.baseCtx)
	r := &run{cancel: cancel, done: make(chan struct{})}

	o.mu.Lock()
	o.runs[ref] = r
	o.mu.Unlock()

	go func() {
		defer func() {
			cancel()
			o.removeRun(ref, r)
			close(r.done)
		}()
		o.pipeline(ctx, ref)
	}()
}

// removeRun drops the run handle for ref, but only when it is still r.
// A retry may install a fresh run before the old pipeline goroutine
// unwinds; the old goroutine must not remove the new handle.
func (o *Orchestrator) removeRun(ref string, r *run) {
	o.mu.Lock()
	if o.runs[ref] == r {
		delete(o.runs, ref)
	}
	o.mu.Unlock()
}

// pipeline drives one job from submission to a terminal state. The
// submit call, each poll iteration, and the result fetch are the only
// suspension points; no lock is held across any of them.
func (o *Orchestrator) pipeline(ctx context.Context, ref string) {
	log := o.logger.With(zap.String("ref", ref))

	select {
	case o.sem <- struct{}{}:
		defer func() { <-o.sem }()
	case <-ctx.Done():
		o.markCancelled(ref, "cancelled before admission")
		return
	}
	if err := o.limiter.Wait(ctx); err != nil {
		o.markCancelled(ref, "cancelled while rate limited")
		return
	}

	job, ok := o.reg.Get(ref)
	if !ok || job.Status.IsTerminal() {
		return
	}

	res, err := o.submitter.Submit(ctx, job.Region, job.WorkflowID, job.Overrides)
	if err != nil {
		var subErr *submit.Error
		if errors.As(err, &subErr) {
			o.reg.AddAttempts(ref, subErr.Attempts)
		}
		log.Warn("submission failed", zap.Error(err))
		o.markFailed(ref, err.Error())
		return
	}
	o.reg.AddAttempts(ref, res.Attempts)
	o.reg.SetTaskID(ref, res.TaskID)

	job, ok = o.reg.Get(ref)
	if !ok || job.Status.IsTerminal() {
		return
	}

	status, err := o.poller.PollUntilTerminal(ctx, job)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		var timeoutErr *poll.TimeoutError
		if errors.As(err, &timeoutErr) {
			// Distinct from a provider-reported failure: the provider
			// never finished while we were watching.
			o.markFailed(ref, "poll timeout: "+timeoutErr.Error())
			return
		}
		o.markFailed(ref, err.Error())
		return
	}

	if status != registry.StatusSucceeded {
		// Failed or cancelled; the poller and registry already hold the
		// terminal record.
		return
	}

	job, ok = o.reg.Get(ref)
	if !ok || job.Status.IsTerminal() {
		return
	}
	urls, err := o.fetcher.Fetch(ctx, job)
	if err != nil {
		log.Warn("result fetch failed", zap.Error(err))
		o.markFailed(ref, err.Error())
		return
	}

	o.reg.UpdateStatus(ref, registry.Update{
		Status:  registry.StatusSucceeded,
		Results: urls,
	})
	log.Info("job succeeded", zap.Int("results", len(urls)))
}

// markFailed records a failure unless the job already went terminal
// (a concurrent cancel wins; the guard refuses the write).
func (o *Orchestrator) markFailed(ref, msg string) {
	o.reg.UpdateStatus(ref, registry.Update{
		Status:       registry.StatusFailed,
		ErrorMessage: msg,
	})
}

func (o *Orchestrator) markCancelled(ref, msg string) {
	o.reg.UpdateStatus(ref, registry.Update{
		Status:       registry.StatusCancelled,
		ErrorMessage: msg,
	})
}
