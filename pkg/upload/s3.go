package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/inklift/inklift/pkg/provider"
)

// ObjectStore is the offload destination for payloads too large for the
// provider's direct endpoint. Put returns the absolute URL the provider
// will fetch the object from.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
}

// S3Config configures the S3-compatible offload bucket.
type S3Config struct {
	// Bucket is the destination bucket name (required).
	Bucket string

	// Region is the AWS region. Optional when Endpoint is set.
	Region string

	// Endpoint is a custom endpoint for S3-compatible stores (MinIO,
	// Wasabi, ...). Leave empty for AWS S3.
	Endpoint string

	// AccessKeyID / SecretAccessKey override the SDK default credential
	// chain when both are set.
	AccessKeyID     string
	SecretAccessKey string

	// ForcePathStyle puts the bucket in the path instead of the host.
	// Required for most S3-compatible stores.
	ForcePathStyle bool

	// PublicBaseURL, when set, is used to build the returned object URL
	// instead of deriving one from the endpoint. Useful behind a CDN.
	PublicBaseURL string

	// KeyPrefix namespaces uploaded objects within the bucket.
	KeyPrefix string
}

// Validate checks required configuration.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("offload bucket is required")
	}
	if (c.AccessKeyID != "") != (c.SecretAccessKey != "") {
		return fmt.Errorf("access key id and secret access key must be provided together")
	}
	return nil
}

// S3Store implements ObjectStore on AWS S3 or an S3-compatible endpoint.
type S3Store struct {
	client *s3.Client
	cfg    S3Config
}

var _ ObjectStore = (*S3Store)(nil)

// NewS3Store creates the offload store. Credentials follow the SDK v2
// default chain unless explicit keys are configured.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if awsCfg.Region == "" && cfg.Endpoint == "" {
		awsCfg.Region = "us-east-1"
	}

	s3Opts := []func(*s3.Options){
		func(o *s3.Options) {
			if cfg.ForcePathStyle {
				o.UsePathStyle = true
			}
		},
	}
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	return &S3Store{client: s3.NewFromConfig(awsCfg, s3Opts...), cfg: cfg}, nil
}

// Put implements ObjectStore.
func (s *S3Store) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	if s.cfg.KeyPrefix != "" {
		key = strings.TrimSuffix(s.cfg.KeyPrefix, "/") + "/" + key
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", s.wrapError(key, err)
	}
	return s.objectURL(key), nil
}

func (s *S3Store) objectURL(key string) string {
	if s.cfg.PublicBaseURL != "" {
		return strings.TrimSuffix(s.cfg.PublicBaseURL, "/") + "/" + key
	}
	if s.cfg.Endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(s.cfg.Endpoint, "/"), s.cfg.Bucket, key)
	}
	region := s.cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, region, key)
}

// wrapError maps SDK errors onto the shared sentinel taxonomy so the
// retry policy treats S3 throttling and outages like provider ones.
func (s *S3Store) wrapError(key string, err error) error {
	wrapped := fmt.Errorf("s3 put %s/%s: %w", s.cfg.Bucket, key, err)

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "SlowDown", "Throttling", "RequestLimitExceeded":
			return fmt.Errorf("%w: %v", provider.ErrThrottled, wrapped)
		case "ServiceUnavailable", "InternalError":
			return fmt.Errorf("%w: %v", provider.ErrProviderUnavailable, wrapped)
		case "InvalidAccessKeyId", "SignatureDoesNotMatch", "AccessDenied":
			return fmt.Errorf("%w: %v", provider.ErrInvalidCredentials, wrapped)
		}
	}
	return wrapped
}
