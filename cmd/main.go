package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/farmwatch/internal/adapters/http/api"
	"github.com/okian/farmwatch/internal/adapters/http/swagger"
	"github.com/okian/farmwatch/internal/adapters/reasoner"
	"github.com/okian/farmwatch/internal/adapters/sms"
	app "github.com/okian/farmwatch/internal/app"
	"github.com/okian/farmwatch/internal/config"
	"github.com/okian/farmwatch/internal/domain/certainty"
	"github.com/okian/farmwatch/pkg/logger"
	"github.com/okian/farmwatch/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 30 * time.Second // covers the 10s reasoner call
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second

	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Initialize logging with defaults until the configured format is known
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "farmwatch exited with error", logger.Error(err))
		os.Exit(1)
	}
}

// run serves until ctx is cancelled, then drains in-flight requests and
// queued alerts.
func run(ctx context.Context, cfg *config.Config) error {
	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc, handler := build(ctx, cfg)
	if err := svc.Start(ctx); err != nil {
		return err
	}

	go startSystemMetricsUpdater(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info(ctx, "shutting down server...")
	case runErr = <-serveErr:
		log.Error(ctx, "HTTP server failed", logger.Error(runErr))
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	if err := svc.Stop(shutdownCtx); err != nil {
		log.Error(ctx, "service shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return runErr
}

// build wires the service and the HTTP routes from configuration.
func build(ctx context.Context, cfg *config.Config) (*app.Service, http.Handler) {
	log := logger.Get()

	estimator := newEstimator(cfg)
	notifier := sms.NewNotifier(cfg.SMSWebhookURL, cfg.SMSSender)

	log.Info(ctx, "dependencies configured",
		logger.Bool("remote_reasoner", cfg.RemoteReasonerEnabled()),
		logger.String("notifier", notifier.String()),
	)

	svc := app.New(
		app.WithLogger(log.Named("service")),
		app.WithEstimator(estimator),
		app.WithNotifier(notifier),
		app.WithReasonerAvailable(cfg.RemoteReasonerEnabled()),
		app.WithWorkerCount(cfg.NotifyWorkerCount),
		app.WithQueueSize(cfg.NotifyQueueSize),
	)

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc).Register(ctx, mux)

	return svc, mux
}

// newEstimator picks the remote estimator when an API key is configured.
func newEstimator(cfg *config.Config) certainty.Estimator {
	if cfg.RemoteReasonerEnabled() {
		return reasoner.NewEstimator(cfg.ReasonerURL, cfg.ReasonerAPIKey)
	}
	return certainty.NewLocal()
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metrics.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
