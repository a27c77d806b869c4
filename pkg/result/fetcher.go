package result

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/inklift/inklift/pkg/provider"
	"github.com/inklift/inklift/pkg/registry"
)

// Fetcher retrieves and normalizes outputs for a job whose provider
// status has reached success.
type Fetcher struct {
	client provider.Client
	logger *zap.Logger
}

// NewFetcher creates a fetcher.
func NewFetcher(client provider.Client, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{client: client, logger: logger}
}

// Fetch returns the job's normalized result URLs. A payload whose shape
// no detector recognizes yields an empty slice and no error: the job
// succeeded with zero results, which monitoring must be able to tell
// apart from a failure.
func (f *Fetcher) Fetch(ctx context.Context, job registry.Job) ([]string, error) {
	raw, err := f.client.FetchOutputs(ctx, job.Region, job.TaskID)
	if err != nil {
		return nil, fmt.Errorf("fetch outputs for task %s: %w", job.TaskID, err)
	}

	urls := Normalize(raw, job.Region.APIBaseURL)
	if len(urls) == 0 {
		f.logger.Warn("job succeeded with zero recognizable results",
			zap.String("ref", job.Ref),
			zap.String("task_id", job.TaskID),
			zap.Int("payload_bytes", len(raw)))
	}
	return urls, nil
}
