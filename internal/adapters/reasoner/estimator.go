// Package reasoner asks a remote reasoning service for a medical certainty
// and falls back to the local rules whenever the service cannot answer.
package reasoner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/okian/farmwatch/internal/domain/alerting"
	"github.com/okian/farmwatch/internal/domain/certainty"
	"github.com/okian/farmwatch/internal/domain/model"
	"github.com/okian/farmwatch/internal/domain/scoring"
	"github.com/okian/farmwatch/pkg/logger"
	"github.com/okian/farmwatch/pkg/metrics"
)

// DefaultTimeout bounds a single reasoning call.
const DefaultTimeout = 10 * time.Second

const caseContext = "rural_healthcare_emergency"

// Fallback reasons reported in logs and metrics.
const (
	reasonTimeout   = "timeout"
	reasonTransport = "transport"
	reasonBadStatus = "bad_status"
	reasonMalformed = "malformed"
	reasonMissing   = "missing_certainty"
)

type request struct {
	Problem string `json:"problem"`
	Context string `json:"context"`
}

type response struct {
	Certainty *float64 `json:"certainty"`
}

// Estimator implements certainty.Estimator against the remote service.
type Estimator struct {
	client   *resty.Client
	url      string
	timeout  time.Duration
	fallback certainty.Estimator
	logger   logger.Logger
}

// Option applies a configuration option to the Estimator.
type Option func(*Estimator)

// WithTimeout overrides the call timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Estimator) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Estimator) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithFallback replaces the local estimator used when the service fails.
func WithFallback(f certainty.Estimator) Option {
	return func(e *Estimator) {
		if f != nil {
			e.fallback = f
		}
	}
}

// NewEstimator creates a remote estimator authenticating with apiKey.
func NewEstimator(url, apiKey string, opts ...Option) *Estimator {
	e := &Estimator{
		url:      url,
		timeout:  DefaultTimeout,
		fallback: certainty.NewLocal(),
		logger:   logger.Named("reasoner"),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.client = resty.New().
		SetTimeout(e.timeout).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return e
}

// Estimate implements certainty.Estimator. Upstream failures never surface
// as errors; they produce the local value tagged as a fallback.
func (e *Estimator) Estimate(ctx context.Context, r model.Reading) (certainty.Result, error) {
	if err := ctx.Err(); err != nil {
		return certainty.Result{}, err
	}

	start := time.Now()
	value, reason, err := e.call(ctx, r)
	metrics.RecordReasonerLatency(float64(time.Since(start).Milliseconds()))

	if reason == "" {
		return certainty.Result{Value: value, Source: model.SourceRemote}, nil
	}

	e.logger.Warn(ctx, "reasoner unavailable, using local certainty",
		logger.String("farmer_id", r.FarmerID),
		logger.String("reason", reason),
		logger.Error(err),
	)
	metrics.RecordReasonerFailure(reason)

	local, lerr := e.fallback.Estimate(context.WithoutCancel(ctx), r)
	if lerr != nil {
		return certainty.Result{}, lerr
	}
	return certainty.Result{Value: local.Value, Source: model.SourceFallback}, nil
}

// call performs one POST. An empty reason means value is usable.
func (e *Estimator) call(ctx context.Context, r model.Reading) (float64, string, error) {
	resp, err := e.client.R().
		SetContext(ctx).
		SetBody(request{Problem: Problem(r), Context: caseContext}).
		Post(e.url)
	if err != nil {
		return 0, classify(err), err
	}
	if resp.StatusCode() != http.StatusOK {
		return 0, reasonBadStatus, fmt.Errorf("reasoner status %d", resp.StatusCode())
	}

	var body response
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return 0, reasonMalformed, err
	}
	if body.Certainty == nil {
		return 0, reasonMissing, errors.New("response has no certainty")
	}
	v := *body.Certainty
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, reasonMalformed, fmt.Errorf("certainty %v is not finite", v)
	}
	return scoring.Round3(certainty.Clamp(v)), "", nil
}

// Problem renders the case description sent to the reasoning service.
func Problem(r model.Reading) string {
	return fmt.Sprintf(
		"Farmer %s in %s has Plasma DHA %g%% (normal 4-8%%) and MRI volume %g (normal >0.6). "+
			"Risk score = %g*(DHA/10) + %g*volume. Alert if score < %g. "+
			"What is the medical certainty that intervention is needed?",
		r.FarmerID, r.VillageName, r.DHAPercent, r.MRIVolume,
		scoring.DHAWeight, scoring.VolumeWeight, alerting.RiskThreshold,
	)
}

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
