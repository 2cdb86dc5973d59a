// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - A Config is built once at startup by Load and treated as immutable.
// - New() returns the defaults that Load layers file and env values on.
// - Validation failures wrap ErrInvalidConfig; provider failures wrap ErrLoadConfig.
package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8000".
	Addr string `koanf:"addr"`

	// ReasonerAPIKey enables the remote certainty path when non-empty.
	ReasonerAPIKey string `koanf:"reasoner_api_key"`

	// ReasonerURL is the remote math-reasoning endpoint.
	ReasonerURL string `koanf:"reasoner_url"`

	// SMSWebhookURL receives alert messages. Alerts are dropped (and logged) when empty.
	SMSWebhookURL string `koanf:"sms_webhook_url"`

	// SMSSender is passed to the webhook as the "from" identifier.
	SMSSender string `koanf:"sms_sender"`

	// NotifyQueueSize bounds the in-memory notification queue.
	NotifyQueueSize int `koanf:"notify_queue_size"`

	// NotifyWorkerCount sets the number of notification workers.
	NotifyWorkerCount int `koanf:"notify_worker_count"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":8000",
		ReasonerURL:       "https://api.deepseek.com/v2/math/reason",
		SMSSender:         "+1234567890",
		NotifyQueueSize:   1024,
		NotifyWorkerCount: 4,
	}
}

// RemoteReasonerEnabled reports whether the remote certainty path should be used.
func (c *Config) RemoteReasonerEnabled() bool {
	return strings.TrimSpace(c.ReasonerAPIKey) != ""
}

// Validate checks the invariants Load relies on.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	}
	if c.NotifyQueueSize <= 0 {
		return fmt.Errorf("%w: notify_queue_size must be positive", ErrInvalidConfig)
	}
	if c.NotifyWorkerCount <= 0 {
		return fmt.Errorf("%w: notify_worker_count must be positive", ErrInvalidConfig)
	}
	if c.RemoteReasonerEnabled() {
		if err := checkURL(c.ReasonerURL); err != nil {
			return fmt.Errorf("%w: reasoner_url: %v", ErrInvalidConfig, err)
		}
	}
	if c.SMSWebhookURL != "" {
		if err := checkURL(c.SMSWebhookURL); err != nil {
			return fmt.Errorf("%w: sms_webhook_url: %v", ErrInvalidConfig, err)
		}
	}
	return nil
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}
