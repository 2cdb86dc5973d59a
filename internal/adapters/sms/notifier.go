// Package sms delivers alert messages through an HTTP messaging webhook.
package sms

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/okian/farmwatch/internal/domain/alerting"
	"github.com/okian/farmwatch/internal/domain/phone"
	"github.com/okian/farmwatch/pkg/logger"
	"github.com/okian/farmwatch/pkg/metrics"
)

// Webhook call constants.
const (
	DefaultTimeout = 15 * time.Second
	previewLength  = 50
)

// Failure reasons reported in logs and metrics.
const (
	reasonNotConfigured = "not_configured"
	reasonInvalidPhone  = "invalid_phone"
	reasonTimeout       = "timeout"
	reasonTransport     = "transport"
	reasonBadStatus     = "bad_status"
	reasonPanic         = "panic"
)

// payload is the JSON body the webhook expects.
type payload struct {
	To   string `json:"to"`
	Body string `json:"body"`
	From string `json:"from"`
}

// Notifier posts alerts to the configured webhook.
type Notifier struct {
	client     *resty.Client
	webhookURL string
	sender     string
	timeout    time.Duration
	logger     logger.Logger
}

// Option applies a configuration option to the Notifier.
type Option func(*Notifier)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(n *Notifier) {
		if l != nil {
			n.logger = l
		}
	}
}

// WithTimeout overrides the webhook timeout.
func WithTimeout(d time.Duration) Option {
	return func(n *Notifier) {
		if d > 0 {
			n.timeout = d
		}
	}
}

// NewNotifier creates a webhook notifier. An empty webhookURL yields a
// notifier that logs and reports failure for every alert.
func NewNotifier(webhookURL, sender string, opts ...Option) *Notifier {
	n := &Notifier{
		webhookURL: webhookURL,
		sender:     sender,
		timeout:    DefaultTimeout,
		logger:     logger.Named("sms"),
	}
	for _, opt := range opts {
		opt(n)
	}

	n.client = resty.New().
		SetTimeout(n.timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return n
}

// Notify normalises the destination, truncates the body and posts it once.
// It reports true only when the webhook answers 200 and never panics.
func (n *Notifier) Notify(ctx context.Context, phoneNumber, message string) (ok bool) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error(ctx, "sms sending crashed", logger.Any("panic", r))
			metrics.RecordSMSFailure(reasonPanic)
			ok = false
		}
	}()

	if n.webhookURL == "" {
		n.logger.Warn(ctx, "sms webhook not configured; dropping alert", logger.String("to", phoneNumber))
		metrics.RecordSMSFailure(reasonNotConfigured)
		return false
	}

	to := phone.Normalize(phoneNumber)
	if !phone.HasSubscriber(to) {
		n.logger.Error(ctx, "sms destination has no digits", logger.String("raw", phoneNumber))
		metrics.RecordSMSFailure(reasonInvalidPhone)
		return false
	}
	body := alerting.Truncate(message, alerting.MaxMessageLength)

	n.logger.Info(ctx, "sending sms",
		logger.String("to", to),
		logger.String("preview", alerting.Truncate(body, previewLength)),
	)

	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(payload{To: to, Body: body, From: n.sender}).
		Post(n.webhookURL)
	metrics.RecordSMSLatency(float64(time.Since(start).Milliseconds()))

	if err != nil {
		reason := classify(err)
		n.logger.Error(ctx, "sms webhook call failed",
			logger.String("to", to),
			logger.String("reason", reason),
			logger.Error(err),
		)
		metrics.RecordSMSFailure(reason)
		return false
	}

	if resp.StatusCode() != http.StatusOK {
		n.logger.Error(ctx, "sms webhook rejected alert",
			logger.String("to", to),
			logger.Int("status", resp.StatusCode()),
			logger.String("response", resp.String()),
		)
		metrics.RecordSMSFailure(reasonBadStatus)
		return false
	}

	n.logger.Info(ctx, "sms sent",
		logger.String("to", to),
		logger.Int("status", resp.StatusCode()),
		logger.Duration("took", time.Since(start)),
	)
	metrics.RecordSMSSent()
	return true
}

// String describes the notifier target for startup logs.
func (n *Notifier) String() string {
	if n.webhookURL == "" {
		return "sms(disabled)"
	}
	return fmt.Sprintf("sms(%s)", n.webhookURL)
}

// classify maps a transport error to a metrics reason.
func classify(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return reasonTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return reasonTimeout
	}
	return reasonTransport
}
