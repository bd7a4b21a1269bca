package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/pasture-weather-service/internal/models"
	"github.com/kjstillabower/pasture-weather-service/internal/observability"
)

// PresetRunner is implemented by the service layer; running a preset stores its result in the cache.
// Declared here so the cache package does not import the service.
type PresetRunner interface {
	Preset(ctx context.Context, name string) (models.SimulationResult, error)
}

// CacheWarmer pre-computes configured presets so the first request for each is a hit.
type CacheWarmer struct {
	runner PresetRunner
	logger *zap.Logger
}

// NewCacheWarmer creates a CacheWarmer. logger may be nil.
func NewCacheWarmer(runner PresetRunner, logger *zap.Logger) *CacheWarmer {
	return &CacheWarmer{runner: runner, logger: logger}
}

// Warm runs every named preset concurrently and joins the failures.
func (w *CacheWarmer) Warm(ctx context.Context, presets []string) error {
	start := time.Now()
	observability.CacheWarmingTotal.Inc()
	w.info("warming presets", zap.Int("presets", len(presets)))

	var wg sync.WaitGroup
	errCh := make(chan error, len(presets))
	for _, name := range presets {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			if _, err := w.runner.Preset(ctx, name); err != nil {
				errCh <- fmt.Errorf("warm %s: %w", name, err)
			}
		}(name)
	}
	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	duration := time.Since(start).Seconds()
	observability.CacheWarmingDurationSeconds.Observe(duration)
	w.info("preset warming complete",
		zap.Int("presets", len(presets)),
		zap.Int("errors", len(errs)),
		zap.Float64("duration_seconds", duration))
	if len(errs) > 0 {
		observability.CacheWarmingErrorsTotal.Inc()
		return errors.Join(errs...)
	}
	return nil
}

// WarmPeriodic runs Warm, calls onFirst once the initial pass ends (nil allowed),
// then refreshes at interval until ctx is done.
func (w *CacheWarmer) WarmPeriodic(ctx context.Context, presets []string, interval time.Duration, onFirst func()) error {
	if err := w.Warm(ctx, presets); err != nil {
		w.warn("initial preset warm failed", err)
	}
	if onFirst != nil {
		onFirst()
	}
	if interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Warm(ctx, presets); err != nil {
				w.warn("periodic preset warm failed", err)
			}
		}
	}
}

func (w *CacheWarmer) info(msg string, fields ...zap.Field) {
	if w.logger != nil {
		w.logger.Info(msg, fields...)
	}
}

func (w *CacheWarmer) warn(msg string, err error) {
	if w.logger != nil {
		w.logger.Warn(msg, zap.Error(err))
	}
}
