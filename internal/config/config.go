package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Config represents the main lineapi configuration
type Config struct {
	// LINE channel and Messaging API
	Line LineConfig `json:"line" mapstructure:"line"`

	// Webhook HTTP server
	Webhook WebhookConfig `json:"webhook" mapstructure:"webhook"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Shared processed-event store
	Redis RedisConfig `json:"redis" mapstructure:"redis"`

	// Event relay
	NATS NATSConfig `json:"nats" mapstructure:"nats"`

	// Prometheus endpoint
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// OpenTelemetry
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`
}

// LineConfig holds channel credentials and dispatch behaviour
type LineConfig struct {
	ChannelSecret        string `json:"channel_secret" mapstructure:"channel_secret"`
	ChannelAccessToken   string `json:"channel_access_token" mapstructure:"channel_access_token"`
	VerifySignature      bool   `json:"verify_signature" mapstructure:"verify_signature"`
	TrackProcessedEvents bool   `json:"track_processed_events" mapstructure:"track_processed_events"`
	DedupTTLSeconds      int    `json:"dedup_ttl_seconds" mapstructure:"dedup_ttl_seconds"`
	DedupCapacity        int    `json:"dedup_capacity" mapstructure:"dedup_capacity"`
	APIBaseURL           string `json:"api_base_url" mapstructure:"api_base_url"`
	DataAPIBaseURL       string `json:"data_api_base_url" mapstructure:"data_api_base_url"`
	TimeoutSeconds       int    `json:"timeout_seconds" mapstructure:"timeout_seconds"`
	RetryCount           int    `json:"retry_count" mapstructure:"retry_count"`
}

// WebhookConfig holds webhook server configuration
type WebhookConfig struct {
	Host                   string `json:"host" mapstructure:"host"`
	Port                   int    `json:"port" mapstructure:"port"`
	Path                   string `json:"path" mapstructure:"path"`
	RateLimitPerMinute     int    `json:"rate_limit_per_minute" mapstructure:"rate_limit_per_minute"`
	MaxBodyBytes           int64  `json:"max_body_bytes" mapstructure:"max_body_bytes"`
	ShutdownTimeoutSeconds int    `json:"shutdown_timeout_seconds" mapstructure:"shutdown_timeout_seconds"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
	// AuditFile receives security and config audit records as JSON lines
	AuditFile string `json:"audit_file" mapstructure:"audit_file"`
}

// RedisConfig selects the Redis processed-event store
type RedisConfig struct {
	Enabled   bool   `json:"enabled" mapstructure:"enabled"`
	Addr      string `json:"addr" mapstructure:"addr"`
	Password  string `json:"password" mapstructure:"password"`
	DB        int    `json:"db" mapstructure:"db"`
	KeyPrefix string `json:"key_prefix" mapstructure:"key_prefix"`
}

// NATSConfig enables relaying events to NATS
type NATSConfig struct {
	Enabled       bool   `json:"enabled" mapstructure:"enabled"`
	URL           string `json:"url" mapstructure:"url"`
	SubjectPrefix string `json:"subject_prefix" mapstructure:"subject_prefix"`
}

// MetricsConfig holds the Prometheus endpoint configuration
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Path    string `json:"path" mapstructure:"path"`
}

// TracingConfig holds OpenTelemetry configuration
type TracingConfig struct {
	Enabled      bool    `json:"enabled" mapstructure:"enabled"`
	ServiceName  string  `json:"service_name" mapstructure:"service_name"`
	OTLPEndpoint string  `json:"otlp_endpoint" mapstructure:"otlp_endpoint"`
	OTLPInsecure bool    `json:"otlp_insecure" mapstructure:"otlp_insecure"`
	SampleRatio  float64 `json:"sample_ratio" mapstructure:"sample_ratio"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Line: LineConfig{
			VerifySignature:      true,
			TrackProcessedEvents: true,
			DedupTTLSeconds:      86400,
			DedupCapacity:        10000,
			APIBaseURL:           "https://api.line.me",
			DataAPIBaseURL:       "https://api-data.line.me",
			TimeoutSeconds:       10,
			RetryCount:           0,
		},
		Webhook: WebhookConfig{
			Host:                   "0.0.0.0",
			Port:                   8000,
			Path:                   "/webhook",
			RateLimitPerMinute:     600,
			MaxBodyBytes:           1 << 20,
			ShutdownTimeoutSeconds: 30,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
		Redis: RedisConfig{
			Enabled:   false,
			Addr:      "localhost:6379",
			KeyPrefix: "line:webhook:",
		},
		NATS: NATSConfig{
			Enabled:       false,
			URL:           "nats://127.0.0.1:4222",
			SubjectPrefix: "line.events",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "lineapi",
			SampleRatio: 1,
		},
	}
}

// DedupTTL returns how long a processed event id is remembered
func (c *Config) DedupTTL() time.Duration {
	return time.Duration(c.Line.DedupTTLSeconds) * time.Second
}

// APITimeout returns the Messaging API request timeout
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.Line.TimeoutSeconds) * time.Second
}

// ShutdownTimeout returns how long the server waits for in-flight deliveries
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Webhook.ShutdownTimeoutSeconds) * time.Second
}

// String returns a JSON representation of the config with credentials masked
func (c *Config) String() string {
	masked := *c
	masked.Line.ChannelSecret = mask(c.Line.ChannelSecret)
	masked.Line.ChannelAccessToken = mask(c.Line.ChannelAccessToken)
	masked.Redis.Password = mask(c.Redis.Password)

	data, _ := json.MarshalIndent(&masked, "", "  ")
	return string(data)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}

// Validate checks the settings the webhook server cannot start without
func (c *Config) Validate() error {
	if c.Line.VerifySignature && c.Line.ChannelSecret == "" {
		return fmt.Errorf("line.channel_secret is required when signature verification is enabled")
	}
	if c.Webhook.Port < 0 || c.Webhook.Port > 65535 {
		return fmt.Errorf("invalid webhook port: %d", c.Webhook.Port)
	}
	if c.Line.TrackProcessedEvents && !c.Redis.Enabled && c.Line.DedupCapacity <= 0 {
		return fmt.Errorf("line.dedup_capacity must be positive when processed events are tracked")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required when nats is enabled")
	}
	if problems := routeProblems(c); len(problems) > 0 {
		return problems[0]
	}

	return nil
}
