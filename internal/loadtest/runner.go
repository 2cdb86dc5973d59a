package loadtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/farmwatch/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0o750
	filePermission      = 0o600
)

// ErrMismatch is returned when any response disagrees with the rules.
var ErrMismatch = errors.New("responses disagree with scoring rules")

// Run executes a complete load test and returns its statistics.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	log := logger.Named("loadtest")
	stats := &Stats{StartTime: time.Now()}

	log.Info(ctx, "starting farmwatch load test",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("readings", cfg.NumReadings),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout),
	)

	client := NewClient(cfg.BaseURL, cfg.Timeout)

	// Step 1: Check service health
	health, err := client.Health(ctx)
	if err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}
	log.Info(ctx, "service is healthy", logger.Bool("reasonerAvailable", health.ReasonerAvailable))

	// Step 2: Generate readings
	readings := NewGenerator(cfg.Seed).Generate(cfg.NumReadings)
	stats.Generated = len(readings)

	// Step 3: Submit and verify concurrently
	submit(ctx, cfg, client, readings, !health.ReasonerAvailable, stats)

	// Step 4: Save readings to file
	if cfg.OutputFile != "" {
		if err := saveReadings(cfg.OutputFile, readings); err != nil {
			log.Warn(ctx, "failed to save readings", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	logStats(ctx, log, stats)

	if stats.Mismatches > 0 {
		return stats, fmt.Errorf("%w: %d of %d", ErrMismatch, stats.Mismatches, stats.Successful)
	}
	return stats, nil
}

// submit posts readings with a pool of workers and verifies each answer.
func submit(ctx context.Context, cfg *Config, client *Client, readings []Reading, localCertainty bool, stats *Stats) {
	log := logger.Named("loadtest")

	var submitted, successful, failed, mismatches, alerts, smsSent atomic.Int64

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan Reading, workers*2)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := range jobs {
				submitted.Add(1)
				resp, err := client.Assess(ctx, r)
				if err != nil {
					failed.Add(1)
					if cfg.Verbose {
						log.Warn(ctx, "request failed", logger.String("farmer_id", r.FarmerID), logger.Error(err))
					}
					continue
				}
				successful.Add(1)
				if resp.AlertNeeded {
					alerts.Add(1)
				}
				if resp.SMSSent {
					smsSent.Add(1)
				}
				if problems := Verify(r, resp, localCertainty); len(problems) > 0 {
					mismatches.Add(1)
					if cfg.Verbose {
						log.Warn(ctx, "response mismatch",
							logger.String("farmer_id", r.FarmerID),
							logger.Any("problems", problems),
						)
					}
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, r := range readings {
			select {
			case <-ctx.Done():
				return
			case jobs <- r:
			}
		}
	}()

	wg.Wait()

	stats.Submitted = int(submitted.Load())
	stats.Successful = int(successful.Load())
	stats.Failed = int(failed.Load())
	stats.Mismatches = int(mismatches.Load())
	stats.Alerts = int(alerts.Load())
	stats.SMSSent = int(smsSent.Load())
}

// saveReadings writes the generated readings as a JSON array.
func saveReadings(filename string, readings []Reading) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(readings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal readings: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write readings: %w", err)
	}
	return nil
}

func logStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var perSecond float64
	if stats.Duration > 0 {
		perSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int("generated", stats.Generated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("successful", stats.Successful),
		logger.Int("failed", stats.Failed),
		logger.Int("mismatches", stats.Mismatches),
		logger.Int("alerts", stats.Alerts),
		logger.Int("smsSent", stats.SMSSent),
		logger.Duration("duration", stats.Duration),
		logger.Float64("requestsPerSecond", perSecond),
	)
}
