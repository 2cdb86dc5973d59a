// Package service provides the assessment service that implements the
// dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	alertqueue "github.com/okian/farmwatch/internal/adapters/mq/queue"
	workerpool "github.com/okian/farmwatch/internal/adapters/mq/worker"
	"github.com/okian/farmwatch/internal/domain/alerting"
	"github.com/okian/farmwatch/internal/domain/certainty"
	"github.com/okian/farmwatch/internal/domain/model"
	"github.com/okian/farmwatch/internal/domain/phone"
	"github.com/okian/farmwatch/internal/domain/scoring"
	"github.com/okian/farmwatch/pkg/logger"
	"github.com/okian/farmwatch/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultQueueSize = 1024
	statusHealthy    = "healthy"
)

// Health is the liveness snapshot served by the API.
type Health struct {
	Status            string
	ReasonerAvailable bool
	Timestamp         time.Time
}

// Service scores readings and schedules alerts for the HTTP API.
type Service struct {
	mu sync.RWMutex

	// Core components
	estimator  certainty.Estimator
	notifier   workerpool.Notifier
	alertQueue *alertqueue.InMemoryQueue
	workerPool *workerpool.Pool

	// Configuration
	workerCount       int
	queueSize         int
	reasonerAvailable bool
	now               func() time.Time

	// State
	started   bool
	startedAt time.Time

	// Counters
	assessments   atomic.Int64
	alertsNeeded  atomic.Int64
	smsScheduled  atomic.Int64
	smsRejected   atomic.Int64
	fallbackCount atomic.Int64

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of notification workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of pending alerts.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithEstimator sets the certainty estimator. The local rules are used
// when none is given.
func WithEstimator(e certainty.Estimator) Option {
	return func(s *Service) {
		if e != nil {
			s.estimator = e
		}
	}
}

// WithNotifier sets the notifier the workers deliver alerts through.
func WithNotifier(n workerpool.Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithReasonerAvailable reports a configured remote reasoner in health checks.
func WithReasonerAvailable(available bool) Option {
	return func(s *Service) {
		s.reasonerAvailable = available
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// discard is the notifier used when none is configured.
type discard struct{}

func (discard) Notify(context.Context, string, string) bool { return false }

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU() * 2,
		queueSize:   defaultQueueSize,
		estimator:   certainty.NewLocal(),
		notifier:    discard{},
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Named("service")
	}

	return s
}

// Start creates the alert queue and starts the notification workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting assessment service...")

	s.alertQueue = alertqueue.NewInMemoryQueue(alertqueue.WithCapacity(s.queueSize))
	s.workerPool = workerpool.NewPool(s.workerCount, s.alertQueue, s.notifier)
	// Workers outlive request contexts; only Stop ends them.
	s.workerPool.Start(context.WithoutCancel(ctx))

	s.started = true
	s.startedAt = s.now()

	s.logger.Info(ctx, "assessment service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Bool("reasonerAvailable", s.reasonerAvailable),
	)

	return nil
}

// Stop closes the alert queue and waits for queued alerts to be delivered
// until ctx expires.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.Info(ctx, "stopping assessment service...",
		logger.Int("pendingAlerts", s.alertQueue.Len()),
	)

	err := s.workerPool.Shutdown(ctx)
	s.started = false

	if err != nil {
		s.logger.Warn(ctx, "alerts left undelivered at shutdown", logger.Error(err))
		return err
	}
	s.logger.Info(ctx, "assessment service stopped")
	return nil
}

// Validate checks a reading before it is scored.
func Validate(r model.Reading) error {
	var problems []string
	if strings.TrimSpace(r.FarmerID) == "" {
		problems = append(problems, "farmer_id is required")
	}
	if strings.TrimSpace(r.VillageName) == "" {
		problems = append(problems, "village_name is required")
	}
	if phone.Digits(r.PhoneNumber) == "" {
		problems = append(problems, "phone_number must contain digits")
	}
	if !(r.DHAPercent >= model.MinDHAPercent && r.DHAPercent <= model.MaxDHAPercent) {
		problems = append(problems, fmt.Sprintf("plasma_dha_pct must be within [%g, %g]", model.MinDHAPercent, model.MaxDHAPercent))
	}
	if !(r.MRIVolume >= model.MinMRIVolume && r.MRIVolume <= model.MaxMRIVolume) {
		problems = append(problems, fmt.Sprintf("mri_volume_norm must be within [%g, %g]", model.MinMRIVolume, model.MaxMRIVolume))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidReading, strings.Join(problems, "; "))
	}
	return nil
}

// Assess scores a reading, estimates certainty, decides on an alert and,
// when one is needed, schedules it for background delivery. Assess never
// waits on SMS delivery.
func (s *Service) Assess(ctx context.Context, r model.Reading) (a model.Assessment, err error) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			metrics.RecordAssessmentError()
			s.logger.Error(ctx, "assessment crashed",
				logger.String("farmer_id", r.FarmerID),
				logger.Any("panic", rec),
			)
			a = model.Assessment{}
			err = fmt.Errorf("%w: %v", ErrInternal, rec)
		}
	}()

	if err := Validate(r); err != nil {
		return model.Assessment{}, err
	}

	s.mu.RLock()
	started, q := s.started, s.alertQueue
	s.mu.RUnlock()
	if !started {
		return model.Assessment{}, ErrNotStarted
	}

	a = model.Assessment{
		RequestID: uuid.NewString(),
		FarmerID:  r.FarmerID,
		RiskScore: scoring.Score(r.DHAPercent, r.MRIVolume),
		Timestamp: s.now().UTC(),
	}

	res, err := s.estimator.Estimate(ctx, r)
	if err != nil {
		metrics.RecordAssessmentError()
		return model.Assessment{}, fmt.Errorf("estimate certainty: %w", err)
	}
	a.Certainty = res.Value
	a.CertaintySource = res.Source
	a.AlertNeeded = alerting.Decide(a.RiskScore, a.Certainty)

	s.assessments.Add(1)
	if a.CertaintySource == model.SourceFallback {
		s.fallbackCount.Add(1)
	}
	if a.AlertNeeded {
		s.alertsNeeded.Add(1)
		a.SMSScheduled = s.schedule(ctx, q, r, a)
	}

	metrics.RecordAssessment(a.RiskScore, a.Certainty, string(a.CertaintySource), a.AlertNeeded,
		float64(time.Since(start).Milliseconds()))

	s.logger.Info(ctx, "risk assessed",
		logger.String("request_id", a.RequestID),
		logger.String("farmer_id", a.FarmerID),
		logger.Float64("risk_score", a.RiskScore),
		logger.Float64("certainty", a.Certainty),
		logger.String("certainty_source", string(a.CertaintySource)),
		logger.Bool("alert_needed", a.AlertNeeded),
		logger.Bool("sms_scheduled", a.SMSScheduled),
	)

	return a, nil
}

// schedule hands an alert to the workers. It reports whether the queue
// accepted it.
func (s *Service) schedule(ctx context.Context, q alertqueue.Queue, r model.Reading, a model.Assessment) bool { //nolint:gocritic // hugeParam: values are request-scoped copies
	alert := model.Alert{
		ID:        uuid.NewString(),
		RequestID: a.RequestID,
		FarmerID:  r.FarmerID,
		Phone:     r.PhoneNumber,
		Message:   alerting.Compose(r, a.RiskScore, a.Certainty),
		CreatedAt: a.Timestamp,
	}

	if err := q.Enqueue(ctx, alert); err != nil {
		s.smsRejected.Add(1)
		reason := "error"
		switch {
		case errors.Is(err, alertqueue.ErrFull):
			reason = "full"
		case errors.Is(err, alertqueue.ErrClosed):
			reason = "closed"
		}
		metrics.RecordErrorByType("alert_rejected_"+reason, "high")
		s.logger.Warn(ctx, "alert not scheduled",
			logger.String("request_id", a.RequestID),
			logger.String("farmer_id", r.FarmerID),
			logger.Error(err),
		)
		return false
	}

	s.smsScheduled.Add(1)
	return true
}

// Health reports liveness and whether a remote reasoner is configured.
func (s *Service) Health(_ context.Context) Health {
	return Health{
		Status:            statusHealthy,
		ReasonerAvailable: s.reasonerAvailable,
		Timestamp:         s.now().UTC(),
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":           s.started,
		"workerCount":       s.workerCount,
		"queueSize":         s.queueSize,
		"reasonerAvailable": s.reasonerAvailable,
		"assessments":       s.assessments.Load(),
		"alertsNeeded":      s.alertsNeeded.Load(),
		"smsScheduled":      s.smsScheduled.Load(),
		"smsRejected":       s.smsRejected.Load(),
		"fallbacks":         s.fallbackCount.Load(),
	}

	if s.started {
		stats["queueLength"] = s.alertQueue.Len()
		stats["uptimeSeconds"] = int64(s.now().Sub(s.startedAt).Seconds())
		metrics.UpdateWorkerCount(s.workerPool.Size())
	}

	return stats
}
