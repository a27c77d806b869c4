package upload

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// PreflightMode defines how aggressive offload-store checks are.
type PreflightMode string

const (
	// PreflightPlanOnly skips all remote calls.
	PreflightPlanOnly PreflightMode = "plan-only"

	// PreflightReadSafe verifies the bucket is reachable without writing.
	PreflightReadSafe PreflightMode = "read-safe"

	// PreflightWriteProbe puts and deletes a marker object to verify
	// write access before any real payload depends on it.
	PreflightWriteProbe PreflightMode = "write-probe"
)

// Capability names are stable strings used in preflight results.
const (
	CapOffloadHead  = "offload.head"
	CapOffloadWrite = "offload.write"
)

// PreflightResult records the outcome of one capability check.
type PreflightResult struct {
	Capability string
	Allowed    bool
	Method     string
	Detail     string
}

// Preflight checks that the offload bucket can serve uploads. It returns
// the per-capability results alongside the first failure, so callers can
// log what was checked even on error.
func (s *S3Store) Preflight(ctx context.Context, mode PreflightMode) ([]PreflightResult, error) {
	var results []PreflightResult

	if mode == PreflightPlanOnly || mode == "" {
		return results, nil
	}

	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.cfg.Bucket),
	})
	if err != nil {
		err = s.wrapError("", err)
		results = append(results, PreflightResult{
			Capability: CapOffloadHead,
			Allowed:    false,
			Method:     fmt.Sprintf("HeadBucket(%s)", s.cfg.Bucket),
			Detail:     err.Error(),
		})
		return results, fmt.Errorf("offload bucket %s unreachable: %w", s.cfg.Bucket, err)
	}
	results = append(results, PreflightResult{
		Capability: CapOffloadHead,
		Allowed:    true,
		Method:     fmt.Sprintf("HeadBucket(%s)", s.cfg.Bucket),
	})

	if mode != PreflightWriteProbe {
		return results, nil
	}

	key := ".inklift-probe/" + uuid.New().String()
	if s.cfg.KeyPrefix != "" {
		key = strings.TrimSuffix(s.cfg.KeyPrefix, "/") + "/" + key
	}
	method := fmt.Sprintf("PutObject+DeleteObject(%s)", key)

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		Body:          strings.NewReader(""),
		ContentLength: aws.Int64(0),
	})
	if err != nil {
		err = s.wrapError(key, err)
		results = append(results, PreflightResult{
			Capability: CapOffloadWrite,
			Allowed:    false,
			Method:     method,
			Detail:     err.Error(),
		})
		return results, fmt.Errorf("offload bucket %s rejects writes: %w", s.cfg.Bucket, err)
	}

	// Best effort; a leftover zero-byte marker is harmless.
	_, _ = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})

	results = append(results, PreflightResult{
		Capability: CapOffloadWrite,
		Allowed:    true,
		Method:     method,
	})
	return results, nil
}
