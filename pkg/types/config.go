// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make network requests.
type HTTPConfig struct {
	// Timeout is the per-request HTTP timeout. Zero means no client timeout;
	// inference calls on large videos can legitimately take minutes.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "veragate/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// ProviderConfig holds the settings for the Gemini API client.
type ProviderConfig struct {
	HTTPConfig `yaml:",inline"`

	// APIKey is the Gemini API credential.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// BaseURL is the REST endpoint root (default "https://generativelanguage.googleapis.com").
	BaseURL string `json:"base_url" yaml:"base_url"`

	// RateLimitRetries is the number of retries on HTTP 429/503 at the transport level (default 5).
	RateLimitRetries int `json:"rate_limit_retries" yaml:"rate_limit_retries"`
}

// PollConfig controls how the upload adapter waits for the provider to
// finish processing an artifact.
type PollConfig struct {
	// Interval is the first wait between readiness checks (default 2s).
	Interval time.Duration `json:"interval" yaml:"interval"`

	// MaxInterval caps the backoff between checks (default 10s).
	MaxInterval time.Duration `json:"max_interval" yaml:"max_interval"`

	// Multiplier grows the interval after each pending check (default 1.5).
	Multiplier float64 `json:"multiplier" yaml:"multiplier"`

	// MaxWait bounds the total time spent waiting for one artifact (default 10m).
	MaxWait time.Duration `json:"max_wait" yaml:"max_wait"`
}

// StageConfig holds the settings for one inference stage.
type StageConfig struct {
	// Model is the provider model identifier (e.g. "gemini-3-flash-preview").
	Model string `json:"model" yaml:"model"`

	// MaxRetries is the number of retries for retryable provider failures
	// (default 0: a failed call aborts the run).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// RetryBackoff is the base delay between retries (default 1s, doubled each attempt).
	RetryBackoff time.Duration `json:"retry_backoff" yaml:"retry_backoff"`
}

// RateLimitConfig bounds the rate of inference calls across all runs.
type RateLimitConfig struct {
	// RequestsPerMinute of zero disables limiting.
	RequestsPerMinute int `json:"requests_per_minute" yaml:"requests_per_minute"`
	Burst             int `json:"burst" yaml:"burst"`
}

// PipelineConfig groups everything a pipeline needs to talk to the provider.
type PipelineConfig struct {
	Provider  ProviderConfig  `json:"provider" yaml:"provider"`
	Poll      PollConfig      `json:"poll" yaml:"poll"`
	Watcher   StageConfig     `json:"watcher" yaml:"watcher"`
	Auditor   StageConfig     `json:"auditor" yaml:"auditor"`
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`

	// RunTimeout bounds a whole run when positive.
	RunTimeout time.Duration `json:"run_timeout" yaml:"run_timeout"`
}

// ServerConfig holds settings for the HTTP service.
type ServerConfig struct {
	// Addr is the listen address (default ":8080").
	Addr string `json:"addr" yaml:"addr"`

	// MaxUploadBytes caps the size of one multipart submission (default 2 GiB).
	MaxUploadBytes int64 `json:"max_upload_bytes" yaml:"max_upload_bytes"`

	// ReadHeaderTimeout bounds reading request headers (default 30s).
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" yaml:"read_header_timeout"`
}

// StoreConfig configures the run history database.
type StoreConfig struct {
	// Path is the SQLite file. Empty disables run history.
	Path string `json:"path" yaml:"path"`
}

// ArchiveConfig configures the S3-compatible evidence archive.
type ArchiveConfig struct {
	// Endpoint is the object store host:port. Empty disables archiving.
	Endpoint  string `json:"endpoint" yaml:"endpoint"`
	AccessKey string `json:"access_key,omitempty" yaml:"access_key,omitempty"`
	SecretKey string `json:"secret_key,omitempty" yaml:"secret_key,omitempty"`
	Bucket    string `json:"bucket" yaml:"bucket"`
	UseSSL    bool   `json:"use_ssl" yaml:"use_ssl"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error (default info).
	Level string `json:"level" yaml:"level"`

	// File, when set, receives JSON logs instead of stderr.
	File string `json:"file" yaml:"file"`
}

// AppConfig is the full configuration tree read from veragate.yaml.
type AppConfig struct {
	Pipeline PipelineConfig `json:"pipeline" yaml:"pipeline"`
	Server   ServerConfig   `json:"server" yaml:"server"`
	Store    StoreConfig    `json:"store" yaml:"store"`
	Archive  ArchiveConfig  `json:"archive" yaml:"archive"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging"`
}

// Default values applied by WithDefaults.
const (
	DefaultBaseURL          = "https://generativelanguage.googleapis.com"
	DefaultUserAgent        = "veragate/0.1"
	DefaultWatcherModel     = "gemini-3-flash-preview"
	DefaultAuditorModel     = "gemini-3-pro-preview"
	DefaultPollInterval     = 2 * time.Second
	DefaultPollMaxInterval  = 10 * time.Second
	DefaultPollMultiplier   = 1.5
	DefaultPollMaxWait      = 10 * time.Minute
	DefaultRetryBackoff     = time.Second
	DefaultRateLimitRetries = 5
	DefaultAddr             = ":8080"
	DefaultMaxUploadBytes   = 2 << 30
	DefaultArchiveBucket    = "veragate-evidence"
)

// WithDefaults returns a copy of c with zero values replaced by defaults.
func (c PipelineConfig) WithDefaults() PipelineConfig {
	if c.Provider.BaseURL == "" {
		c.Provider.BaseURL = DefaultBaseURL
	}
	if c.Provider.UserAgent == "" {
		c.Provider.UserAgent = DefaultUserAgent
	}
	if c.Provider.RateLimitRetries <= 0 {
		c.Provider.RateLimitRetries = DefaultRateLimitRetries
	}
	if c.Poll.Interval <= 0 {
		c.Poll.Interval = DefaultPollInterval
	}
	if c.Poll.MaxInterval <= 0 {
		c.Poll.MaxInterval = DefaultPollMaxInterval
	}
	if c.Poll.MaxInterval < c.Poll.Interval {
		c.Poll.MaxInterval = c.Poll.Interval
	}
	if c.Poll.Multiplier < 1 {
		c.Poll.Multiplier = DefaultPollMultiplier
	}
	if c.Poll.MaxWait <= 0 {
		c.Poll.MaxWait = DefaultPollMaxWait
	}
	if c.Watcher.Model == "" {
		c.Watcher.Model = DefaultWatcherModel
	}
	if c.Auditor.Model == "" {
		c.Auditor.Model = DefaultAuditorModel
	}
	if c.Watcher.RetryBackoff <= 0 {
		c.Watcher.RetryBackoff = DefaultRetryBackoff
	}
	if c.Auditor.RetryBackoff <= 0 {
		c.Auditor.RetryBackoff = DefaultRetryBackoff
	}
	return c
}

// WithDefaults returns a copy of c with zero values replaced by defaults.
func (c ServerConfig) WithDefaults() ServerConfig {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if c.ReadHeaderTimeout <= 0 {
		c.ReadHeaderTimeout = 30 * time.Second
	}
	return c
}
