package upload

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/inklift/inklift/pkg/provider"
	"github.com/inklift/inklift/pkg/region"
)

// Uploader executes upload plans: direct to the provider for small
// payloads, offloaded to object storage for large ones. It shapes the
// retry policy around upload errors but never swallows or reinterprets
// them; the original cause stays wrapped.
type Uploader struct {
	client     provider.Client
	store      ObjectStore
	strategist *Strategist
	logger     *zap.Logger

	// sleep is swappable in tests.
	sleep func(time.Duration)
}

// NewUploader builds an uploader. store may be nil when offloading is
// not configured; payloads over the threshold then fail fast.
func NewUploader(client provider.Client, store ObjectStore, strategist *Strategist, logger *zap.Logger) *Uploader {
	if strategist == nil {
		strategist = NewStrategist()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Uploader{
		client:     client,
		store:      store,
		strategist: strategist,
		logger:     logger,
		sleep:      time.Sleep,
	}
}

// Upload pushes data to wherever the plan says and returns the provider
// file reference: a remote file name for direct uploads, an absolute URL
// for offloaded ones.
func (u *Uploader) Upload(ctx context.Context, reg region.Region, fileName string, data []byte) (string, error) {
	plan := u.strategist.PlanFor(int64(len(data)))

	u.logger.Debug("upload plan",
		zap.String("file", fileName),
		zap.Int("size", len(data)),
		zap.Bool("direct", plan.UseDirectUpload),
		zap.Duration("timeout", plan.Timeout))

	if plan.UseDirectUpload {
		return u.uploadDirect(ctx, reg, fileName, data, plan)
	}
	return u.uploadOffloaded(ctx, fileName, data, plan)
}

func (u *Uploader) uploadDirect(ctx context.Context, reg region.Region, fileName string, data []byte, plan Plan) (string, error) {
	var lastErr error
	for attempt := 0; attempt < plan.MaxRetries; attempt++ {
		if attempt > 0 {
			u.sleep(plan.BackoffBase * time.Duration(1<<(attempt-1)))
		}

		attemptCtx, cancel := context.WithTimeout(ctx, plan.Timeout)
		name, err := u.client.UploadFile(attemptCtx, reg, fileName, data)
		cancel()
		if err == nil {
			return name, nil
		}
		lastErr = err
		if !provider.IsTransient(err) {
			return "", fmt.Errorf("direct upload %s: %w", fileName, err)
		}
		u.logger.Warn("direct upload attempt failed",
			zap.String("file", fileName),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	return "", fmt.Errorf("direct upload %s exhausted %d attempts: %w", fileName, plan.MaxRetries, lastErr)
}

func (u *Uploader) uploadOffloaded(ctx context.Context, fileName string, data []byte, plan Plan) (string, error) {
	if u.store == nil {
		return "", fmt.Errorf("payload %s exceeds direct upload threshold and no object store is configured: %w",
			fileName, provider.ErrPayloadTooLarge)
	}

	key := uuid.New().String() + "/" + fileName

	var lastErr error
	for attempt := 0; attempt < plan.MaxRetries; attempt++ {
		if attempt > 0 {
			u.sleep(plan.BackoffBase * time.Duration(1<<(attempt-1)))
		}

		attemptCtx, cancel := context.WithTimeout(ctx, plan.Timeout)
		url, err := u.store.Put(attemptCtx, key, bytes.NewReader(data), int64(len(data)), "")
		cancel()
		if err == nil {
			return url, nil
		}
		lastErr = err
		if !provider.IsTransient(err) {
			return "", fmt.Errorf("offloaded upload %s: %w", fileName, err)
		}
		u.logger.Warn("offloaded upload attempt failed",
			zap.String("file", fileName),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	return "", fmt.Errorf("offloaded upload %s exhausted %d attempts: %w", fileName, plan.MaxRetries, lastErr)
}
