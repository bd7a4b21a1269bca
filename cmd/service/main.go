package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/pasture-weather-service/internal/cache"
	"github.com/kjstillabower/pasture-weather-service/internal/config"
	httphandler "github.com/kjstillabower/pasture-weather-service/internal/http"
	"github.com/kjstillabower/pasture-weather-service/internal/lifecycle"
	"github.com/kjstillabower/pasture-weather-service/internal/observability"
	"github.com/kjstillabower/pasture-weather-service/internal/service"
	"github.com/kjstillabower/pasture-weather-service/internal/validation"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	cacheSvc, memcached, err := newCache(cfg)
	if err != nil {
		logger.Fatal("cache", zap.Error(err))
	}
	logger.Info("cache backend", zap.String("backend", cfg.CacheBackend))

	simulations := service.NewSimulationService(cacheSvc, cfg.CacheTTL, cfg.TransitionWindow, cfg.CoalesceEnabled, cfg.CoalesceTimeout)
	presets, err := buildPresets(cfg)
	if err != nil {
		logger.Fatal("presets", zap.Error(err))
	}
	simulations.SetPresets(presets)

	healthConfig := &httphandler.HealthConfig{
		Thresholds: cfg.Thresholds(),
		StartTime:  time.Now(),
	}
	if memcached != nil {
		healthConfig.CachePing = memcached.Ping
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	observability.RegisterRateLimitGauges(cfg.OverloadWindow)

	handler := httphandler.NewHandler(simulations, cfg.Limits, healthConfig, logger)
	router := httphandler.NewRouter(handler, httphandler.RouterConfig{
		Logger:         logger,
		RequestTimeout: cfg.RequestTimeout,
		RateLimiter:    limiter,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	warmCtx, warmCancel := context.WithCancel(context.Background())
	defer warmCancel()
	if cfg.WarmCache && len(presets) > 0 {
		warmer := cache.NewCacheWarmer(simulations, logger)
		go func() {
			err := warmer.WarmPeriodic(warmCtx, cfg.PresetNames(), cfg.WarmInterval, func() {
				lifecycle.MarkServing()
				logger.Info("presets warmed; serving")
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("preset warming stopped", zap.Error(err))
			}
		}()
	} else {
		lifecycle.MarkServing()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered", zap.String("phase", lifecycle.Current().String()))
	lifecycle.BeginDraining()
	warmCancel()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.InFlightTimeout)
	defer waitCancel()
	logger.Info("waiting for in-flight requests", zap.Int64("count", httphandler.InFlightCount()))
	if err := httphandler.WaitForInFlight(waitCtx, cfg.InFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	var closers []observability.Closer
	if memcached != nil {
		closers = append(closers, memcached)
	}
	if err := observability.FlushTelemetry(context.Background(), logger, closers...); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// newCache builds the configured backend. The memcached client is also returned for
// health pings and shutdown; it is nil for the in-memory backend.
func newCache(cfg *config.Config) (cache.Cache, *cache.MemcachedCache, error) {
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			return nil, nil, fmt.Errorf("memcached: %w", err)
		}
		return mc, mc, nil
	default:
		return cache.NewInMemoryCache(cfg.CacheMaxEntries), nil, nil
	}
}

// buildPresets validates every configured preset against the request limits.
func buildPresets(cfg *config.Config) (map[string]service.Preset, error) {
	out := make(map[string]service.Preset, len(cfg.Presets))
	for name, req := range cfg.Presets {
		simCfg, err := validation.ValidateSimulation(req, cfg.Limits)
		if err != nil {
			return nil, fmt.Errorf("preset %s: %w", name, err)
		}
		out[name] = service.Preset{Config: simCfg, Seed: req.Seed}
	}
	return out, nil
}
