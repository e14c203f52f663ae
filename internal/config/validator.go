package config

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"

	"github.com/harun/lineapi/pkg/webhook"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

var channelSecretPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

// ValidateChannelSecret validates a channel secret as shown in the LINE
// Developers console: 32 lowercase hex characters
func (v *Validator) ValidateChannelSecret(secret string) error {
	if secret == "" {
		return fmt.Errorf("channel secret cannot be empty")
	}
	if !channelSecretPattern.MatchString(secret) {
		return fmt.Errorf("invalid channel secret format (expected 32 hex characters)")
	}
	return nil
}

// ValidateChannelAccessToken validates a long-lived channel access token
func (v *Validator) ValidateChannelAccessToken(token string) error {
	if token == "" {
		return fmt.Errorf("channel access token cannot be empty")
	}
	if strings.ContainsAny(token, " \t\r\n") {
		return fmt.Errorf("channel access token must not contain whitespace")
	}
	return nil
}

// ValidatePort validates a TCP port; 0 picks a free port
func (v *Validator) ValidatePort(port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got %d", port)
	}
	return nil
}

// ValidatePath validates an HTTP route path as the webhook server will
// register it
func (v *Validator) ValidatePath(path string) error {
	return webhook.ValidateRoute(path)
}

// ValidateBaseURL validates an API base URL
func (v *Validator) ValidateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("URL %q must use http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("URL %q has no host", raw)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateRedisAddr validates a host:port address
func (v *Validator) ValidateRedisAddr(addr string) error {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("invalid redis address %q: %w", addr, err)
	}
	return nil
}

// ValidateNATSURL validates a NATS server URL
func (v *Validator) ValidateNATSURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid nats url %q: %w", raw, err)
	}
	switch u.Scheme {
	case "nats", "tls", "ws", "wss":
	default:
		return fmt.Errorf("nats url %q must use nats, tls, ws or wss", raw)
	}
	return nil
}

// ValidateSubjectPrefix validates a NATS subject prefix
func (v *Validator) ValidateSubjectPrefix(prefix string) error {
	if prefix == "" {
		return fmt.Errorf("subject prefix cannot be empty")
	}
	if strings.ContainsAny(prefix, " *>\t") {
		return fmt.Errorf("subject prefix %q must not contain spaces or wildcards", prefix)
	}
	return nil
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	// LINE channel
	if cfg.Line.VerifySignature || cfg.Line.ChannelSecret != "" {
		if err := v.ValidateChannelSecret(cfg.Line.ChannelSecret); err != nil {
			errors = append(errors, fmt.Errorf("line.channel_secret: %w", err))
		}
	}
	if cfg.Line.ChannelAccessToken != "" {
		if err := v.ValidateChannelAccessToken(cfg.Line.ChannelAccessToken); err != nil {
			errors = append(errors, fmt.Errorf("line.channel_access_token: %w", err))
		}
	}
	if cfg.Line.TrackProcessedEvents {
		if cfg.Line.DedupTTLSeconds <= 0 {
			errors = append(errors, fmt.Errorf("line.dedup_ttl_seconds must be > 0"))
		}
		if cfg.Line.DedupCapacity <= 0 {
			errors = append(errors, fmt.Errorf("line.dedup_capacity must be > 0"))
		}
	}
	if err := v.ValidateBaseURL(cfg.Line.APIBaseURL); err != nil {
		errors = append(errors, fmt.Errorf("line.api_base_url: %w", err))
	}
	if err := v.ValidateBaseURL(cfg.Line.DataAPIBaseURL); err != nil {
		errors = append(errors, fmt.Errorf("line.data_api_base_url: %w", err))
	}
	if cfg.Line.TimeoutSeconds <= 0 {
		errors = append(errors, fmt.Errorf("line.timeout_seconds must be > 0"))
	}
	if cfg.Line.RetryCount < 0 {
		errors = append(errors, fmt.Errorf("line.retry_count must be >= 0"))
	}

	// Webhook server
	if err := v.ValidatePort(cfg.Webhook.Port); err != nil {
		errors = append(errors, fmt.Errorf("webhook.port: %w", err))
	}
	if cfg.Webhook.RateLimitPerMinute < 0 {
		errors = append(errors, fmt.Errorf("webhook.rate_limit_per_minute must be >= 0"))
	}
	if cfg.Webhook.MaxBodyBytes < 0 {
		errors = append(errors, fmt.Errorf("webhook.max_body_bytes must be >= 0"))
	}

	// Optional backends
	if cfg.Redis.Enabled {
		if err := v.ValidateRedisAddr(cfg.Redis.Addr); err != nil {
			errors = append(errors, fmt.Errorf("redis.addr: %w", err))
		}
		if cfg.Redis.DB < 0 {
			errors = append(errors, fmt.Errorf("redis.db must be >= 0"))
		}
	}
	if cfg.NATS.Enabled {
		if err := v.ValidateNATSURL(cfg.NATS.URL); err != nil {
			errors = append(errors, fmt.Errorf("nats.url: %w", err))
		}
		if err := v.ValidateSubjectPrefix(cfg.NATS.SubjectPrefix); err != nil {
			errors = append(errors, fmt.Errorf("nats.subject_prefix: %w", err))
		}
	}
	errors = append(errors, routeProblems(cfg)...)
	if cfg.Tracing.Enabled && (cfg.Tracing.SampleRatio <= 0 || cfg.Tracing.SampleRatio > 1) {
		errors = append(errors, fmt.Errorf("tracing.sample_ratio must be in (0, 1], got %v", cfg.Tracing.SampleRatio))
	}

	// Logging
	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	return errors
}

// routeProblems reports webhook and metrics paths the webhook server could
// not mount side by side with its health check
func routeProblems(cfg *Config) []error {
	var errors []error

	webhookOK := true
	if err := webhook.ValidateRoute(cfg.Webhook.Path); err != nil {
		errors = append(errors, fmt.Errorf("webhook.path: %w", err))
		webhookOK = false
	} else if cfg.Webhook.Path == webhook.HealthPath {
		errors = append(errors, fmt.Errorf("webhook.path %s is reserved for the health check", webhook.HealthPath))
	}

	if !cfg.Metrics.Enabled {
		return errors
	}
	if err := webhook.ValidateRoute(cfg.Metrics.Path); err != nil {
		errors = append(errors, fmt.Errorf("metrics.path: %w", err))
	} else if cfg.Metrics.Path == webhook.HealthPath {
		errors = append(errors, fmt.Errorf("metrics.path %s is reserved for the health check", webhook.HealthPath))
	} else if webhookOK && cfg.Metrics.Path == cfg.Webhook.Path {
		errors = append(errors, fmt.Errorf("metrics.path must differ from webhook.path"))
	}
	return errors
}
