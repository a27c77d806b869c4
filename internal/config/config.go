// Package config loads inklift configuration from environment variables
// and an optional YAML file.
//
// Environment variables use the INKLIFT_ prefix with underscores for
// nesting (INKLIFT_PROVIDER_API_KEY, INKLIFT_POLL_INTERVAL, ...). A
// missing provider API key is fatal at load time: the orchestration
// layer must never accept submissions it cannot send.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config is the full runtime configuration.
type Config struct {
	Provider ProviderConfig `mapstructure:"provider"`
	Poll     PollConfig     `mapstructure:"poll"`
	Submit   SubmitConfig   `mapstructure:"submit"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Registry RegistryConfig `mapstructure:"registry"`
	Limits   LimitsConfig   `mapstructure:"limits"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
}

// ProviderConfig configures the remote compute provider boundary.
type ProviderConfig struct {
	// APIKey authenticates every provider call. Required.
	APIKey string `mapstructure:"api_key"`

	// DefaultRegion is the fallback region selector.
	DefaultRegion string `mapstructure:"default_region"`
}

// PollConfig is the status polling policy.
type PollConfig struct {
	Interval       time.Duration `mapstructure:"interval"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	SettleDelay    time.Duration `mapstructure:"settle_delay"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// SubmitConfig is the submission retry policy.
type SubmitConfig struct {
	MaxAttempts         int           `mapstructure:"max_attempts"`
	FirstAttemptTimeout time.Duration `mapstructure:"first_attempt_timeout"`
	RetryTimeout        time.Duration `mapstructure:"retry_timeout"`
	BackoffBase         time.Duration `mapstructure:"backoff_base"`
}

// UploadConfig is the upload strategy plus the optional S3 offload store.
type UploadConfig struct {
	ThresholdBytes int64         `mapstructure:"threshold_bytes"`
	BaseTimeout    time.Duration `mapstructure:"base_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`

	S3 S3Config `mapstructure:"s3"`
}

// S3Config configures the offload bucket. Empty bucket disables offload.
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`
	PublicBaseURL   string `mapstructure:"public_base_url"`
	KeyPrefix       string `mapstructure:"key_prefix"`

	// Preflight selects the startup bucket check:
	// plan-only, read-safe, or write-probe.
	Preflight string `mapstructure:"preflight"`
}

// RegistryConfig is the retention policy for terminal jobs.
type RegistryConfig struct {
	RetentionWindow time.Duration `mapstructure:"retention_window"`
	SweepInterval   time.Duration `mapstructure:"sweep_interval"`
}

// LimitsConfig bounds orchestrator concurrency.
type LimitsConfig struct {
	MaxInFlight int     `mapstructure:"max_in_flight"`
	SubmitRate  float64 `mapstructure:"submit_rate"`
	SubmitBurst int     `mapstructure:"submit_burst"`
}

// ServerConfig is the HTTP surface bind address.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// LogConfig selects logger level and encoding.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from the environment and, when path is
// non-empty, a YAML file. Environment values win over file values.
func Load(path string) (*Config, error) {
	cfg, err := load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultRegion reports the configured default region for read-only
// commands that must not require a complete configuration. Load errors
// fall back to the built-in default.
func DefaultRegion(path string) string {
	cfg, err := load(path)
	if err != nil {
		return "global"
	}
	return cfg.Provider.DefaultRegion
}

func load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("INKLIFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Keys without a meaningful default still need registering so
	// AutomaticEnv picks them up during Unmarshal.
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.default_region", "global")

	v.SetDefault("poll.interval", "5s")
	v.SetDefault("poll.max_attempts", 150)
	v.SetDefault("poll.settle_delay", "2s")
	v.SetDefault("poll.request_timeout", "15s")

	v.SetDefault("submit.max_attempts", 3)
	v.SetDefault("submit.first_attempt_timeout", "60s")
	v.SetDefault("submit.retry_timeout", "30s")
	v.SetDefault("submit.backoff_base", "2s")

	v.SetDefault("upload.threshold_bytes", 10<<20)
	v.SetDefault("upload.base_timeout", "30s")
	v.SetDefault("upload.max_retries", 3)
	v.SetDefault("upload.s3.preflight", "read-safe")
	v.SetDefault("upload.s3.bucket", "")
	v.SetDefault("upload.s3.region", "")
	v.SetDefault("upload.s3.endpoint", "")
	v.SetDefault("upload.s3.access_key_id", "")
	v.SetDefault("upload.s3.secret_access_key", "")
	v.SetDefault("upload.s3.force_path_style", false)
	v.SetDefault("upload.s3.public_base_url", "")
	v.SetDefault("upload.s3.key_prefix", "")

	v.SetDefault("registry.retention_window", "30m")
	v.SetDefault("registry.sweep_interval", "5m")

	v.SetDefault("limits.max_in_flight", 64)
	v.SetDefault("limits.submit_rate", 0)
	v.SetDefault("limits.submit_burst", 0)

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate enforces invariants that must hold before the orchestration
// layer accepts any submission.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Provider.APIKey) == "" {
		return fmt.Errorf("provider api key is required (set INKLIFT_PROVIDER_API_KEY)")
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.Poll.MaxAttempts <= 0 {
		return fmt.Errorf("poll max attempts must be positive")
	}
	if c.Submit.MaxAttempts <= 0 {
		return fmt.Errorf("submit max attempts must be positive")
	}
	if c.Upload.ThresholdBytes <= 0 {
		return fmt.Errorf("upload threshold must be positive")
	}
	if c.Registry.RetentionWindow <= 0 {
		return fmt.Errorf("registry retention window must be positive")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", c.Server.Port)
	}
	return nil
}
