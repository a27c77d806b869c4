package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/inklift/inklift/internal/config"
	"github.com/inklift/inklift/internal/observability"
	"github.com/inklift/inklift/pkg/orchestrator"
	"github.com/inklift/inklift/pkg/poll"
	"github.com/inklift/inklift/pkg/provider"
	"github.com/inklift/inklift/pkg/region"
	"github.com/inklift/inklift/pkg/registry"
	"github.com/inklift/inklift/pkg/result"
	"github.com/inklift/inklift/pkg/submit"
	"github.com/inklift/inklift/pkg/upload"
)

// app bundles the wired orchestration stack for a command invocation.
type app struct {
	cfg    *config.Config
	orch   *orchestrator.Orchestrator
	client provider.Client
}

// buildApp loads configuration and assembles the full pipeline. ctx
// scopes every pipeline goroutine and the registry sweeper.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	logger := observability.Logger

	client, err := provider.NewHTTPClient(cfg.Provider.APIKey, provider.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	var store upload.ObjectStore
	if cfg.Upload.S3.Bucket != "" {
		s3cfg := upload.S3Config{
			Bucket:          cfg.Upload.S3.Bucket,
			Region:          cfg.Upload.S3.Region,
			Endpoint:        cfg.Upload.S3.Endpoint,
			AccessKeyID:     cfg.Upload.S3.AccessKeyID,
			SecretAccessKey: cfg.Upload.S3.SecretAccessKey,
			ForcePathStyle:  cfg.Upload.S3.ForcePathStyle,
			PublicBaseURL:   cfg.Upload.S3.PublicBaseURL,
			KeyPrefix:       cfg.Upload.S3.KeyPrefix,
		}
		s3store, err := upload.NewS3Store(ctx, s3cfg)
		if err != nil {
			return nil, fmt.Errorf("configure object store: %w", err)
		}
		results, err := s3store.Preflight(ctx, upload.PreflightMode(cfg.Upload.S3.Preflight))
		for _, r := range results {
			logger.Info("offload preflight",
				zap.String("capability", r.Capability),
				zap.Bool("allowed", r.Allowed),
				zap.String("method", r.Method))
		}
		if err != nil {
			return nil, err
		}
		store = s3store
	}

	strategist := upload.NewStrategist()
	if cfg.Upload.ThresholdBytes > 0 {
		strategist.Threshold = cfg.Upload.ThresholdBytes
	}
	if cfg.Upload.BaseTimeout > 0 {
		strategist.BaseTimeout = cfg.Upload.BaseTimeout
	}
	if cfg.Upload.MaxRetries > 0 {
		strategist.MaxRetries = cfg.Upload.MaxRetries
	}

	reg := registry.New(client, logger)
	reg.StartSweeper(ctx, cfg.Registry.SweepInterval, cfg.Registry.RetentionWindow)

	submitter := submit.New(client, submit.Config{
		MaxAttempts:         cfg.Submit.MaxAttempts,
		FirstAttemptTimeout: cfg.Submit.FirstAttemptTimeout,
		RetryTimeout:        cfg.Submit.RetryTimeout,
		BackoffBase:         cfg.Submit.BackoffBase,
	}, logger)

	poller := poll.New(client, reg, poll.Config{
		Interval:       cfg.Poll.Interval,
		MaxAttempts:    cfg.Poll.MaxAttempts,
		SettleDelay:    cfg.Poll.SettleDelay,
		RequestTimeout: cfg.Poll.RequestTimeout,
	}, logger)

	orch := orchestrator.New(
		ctx,
		region.Defaults(cfg.Provider.DefaultRegion),
		submitter,
		poller,
		result.NewFetcher(client, logger),
		upload.NewUploader(client, store, strategist, logger),
		reg,
		orchestrator.Config{
			MaxInFlight: cfg.Limits.MaxInFlight,
			SubmitRate:  cfg.Limits.SubmitRate,
			SubmitBurst: cfg.Limits.SubmitBurst,
		},
		logger,
	)

	return &app{cfg: cfg, orch: orch, client: client}, nil
}
