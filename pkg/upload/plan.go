// Package upload decides how job input files reach the provider and
// executes that decision.
//
// Small payloads go through the provider's direct upload endpoint; large
// ones are offloaded to S3-compatible object storage because the
// provider hard-rejects large direct uploads. The timeout and backoff
// budget scales with payload size: large-but-under-threshold uploads
// still need more time, they are not less reliable.
package upload

import "time"

// DefaultDirectUploadThreshold is the provider's direct-upload size
// ceiling in the reference deployment.
const DefaultDirectUploadThreshold int64 = 10 << 20 // 10 MiB

// Plan is the derived upload strategy for one payload. Computed purely
// from byte size; never persisted.
type Plan struct {
	// UseDirectUpload selects the provider endpoint over object storage.
	UseDirectUpload bool

	// Timeout bounds a single upload attempt.
	Timeout time.Duration

	// MaxRetries caps retry attempts for transient failures.
	MaxRetries int

	// BackoffBase seeds the exponential delay between attempts.
	BackoffBase time.Duration
}

// Strategist computes upload plans. Zero-value fields fall back to the
// reference policy.
type Strategist struct {
	// Threshold is the direct-upload size ceiling in bytes.
	Threshold int64

	// BaseTimeout is the single-attempt timeout for small payloads.
	BaseTimeout time.Duration

	// MaxRetries caps attempts for every tier.
	MaxRetries int

	// BackoffBase is the small-tier backoff seed.
	BackoffBase time.Duration
}

// NewStrategist returns a strategist with the reference policy.
func NewStrategist() *Strategist {
	return &Strategist{
		Threshold:   DefaultDirectUploadThreshold,
		BaseTimeout: 30 * time.Second,
		MaxRetries:  3,
		BackoffBase: time.Second,
	}
}

// PlanFor derives the strategy for a payload of byteSize bytes.
//
// Tiers:
//   - above Threshold: offloaded, long timeout
//   - above Threshold/2: direct, doubled timeout and backoff
//   - otherwise: direct, base timeout
func (s *Strategist) PlanFor(byteSize int64) Plan {
	threshold := s.Threshold
	if threshold <= 0 {
		threshold = DefaultDirectUploadThreshold
	}
	baseTimeout := s.BaseTimeout
	if baseTimeout <= 0 {
		baseTimeout = 30 * time.Second
	}
	retries := s.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	backoff := s.BackoffBase
	if backoff <= 0 {
		backoff = time.Second
	}

	switch {
	case byteSize > threshold:
		return Plan{
			UseDirectUpload: false,
			Timeout:         4 * baseTimeout,
			MaxRetries:      retries,
			BackoffBase:     2 * backoff,
		}
	case byteSize > threshold/2:
		return Plan{
			UseDirectUpload: true,
			Timeout:         2 * baseTimeout,
			MaxRetries:      retries,
			BackoffBase:     2 * backoff,
		}
	default:
		return Plan{
			UseDirectUpload: true,
			Timeout:         baseTimeout,
			MaxRetries:      retries,
			BackoffBase:     backoff,
		}
	}
}
