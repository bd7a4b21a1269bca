package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kjstillabower/pasture-weather-service/internal/cache"
	"github.com/kjstillabower/pasture-weather-service/internal/models"
	"github.com/kjstillabower/pasture-weather-service/internal/observability"
	"github.com/kjstillabower/pasture-weather-service/internal/weathergen"
)

// ErrPresetNotFound is returned when a preset name is not configured.
var ErrPresetNotFound = errors.New("preset not found")

// cacheKeyVersion changes whenever generation output for the same request changes.
const cacheKeyVersion = "v1"

// Preset is a named, already validated simulation.
type Preset struct {
	Config weathergen.SimulationConfig
	Seed   *uint64
}

// SimulationService runs the weather generator behind a cache-aside layer.
// Only reproducible requests (no randomness, or an explicit seed) touch the cache;
// concurrent identical misses are coalesced when enabled.
type SimulationService struct {
	cache           cache.Cache
	ttl             time.Duration
	window          int
	stampedeTracker *stampedeTracker
	coalescer       *requestCoalescer[models.SimulationResult] // nil when disabled

	presetsMu sync.RWMutex
	presets   map[string]Preset

	now     func() time.Time
	newID   func() string
	newSeed func() uint64
}

// NewSimulationService creates a SimulationService. window is the transition ramp in days
// (0 selects the generator default). Coalescing is disabled when coalesceTimeout is 0.
func NewSimulationService(c cache.Cache, ttl time.Duration, window int, coalesceEnabled bool, coalesceTimeout time.Duration) *SimulationService {
	var coalescer *requestCoalescer[models.SimulationResult]
	if coalesceEnabled && coalesceTimeout > 0 {
		coalescer = newRequestCoalescer[models.SimulationResult](coalesceTimeout)
	}
	if window <= 0 {
		window = weathergen.DefaultTransitionWindow
	}
	return &SimulationService{
		cache:           c,
		ttl:             ttl,
		window:          window,
		stampedeTracker: newStampedeTracker(),
		coalescer:       coalescer,
		presets:         make(map[string]Preset),
		now:             time.Now,
		newID:           uuid.NewString,
		newSeed:         drawSeed,
	}
}

// drawSeed returns a 53-bit seed so it survives a round trip through JSON numbers.
func drawSeed() uint64 {
	return rand.Uint64() >> 11
}

// TransitionWindow returns the ramp length used for every run.
func (s *SimulationService) TransitionWindow() int {
	return s.window
}

// Simulate generates the series for cfg. With randomness and no seed a fresh seed is drawn
// and returned in the result so the run can be repeated.
func (s *SimulationService) Simulate(ctx context.Context, cfg weathergen.SimulationConfig, seed *uint64) (models.SimulationResult, error) {
	logger := observability.LoggerFromContext(ctx)
	start := time.Now()

	if !reproducible(cfg, seed) {
		result, err := s.generate(cfg, s.newSeed())
		if err == nil {
			logger.Debug("simulation served", zap.Int("days", result.TotalDays), zap.Bool("cached", false), zap.Duration("duration", time.Since(start)))
		}
		return result, err
	}

	var effSeed uint64
	if seed != nil {
		effSeed = *seed
	}
	key, err := cacheKey(cfg, effSeed, s.window)
	if err != nil {
		return models.SimulationResult{}, fmt.Errorf("cache key: %w", err)
	}

	if cached, ok := s.getCached(ctx, key, logger); ok {
		cached.Cached = true
		cached.Seed = effSeed
		logger.Debug("simulation served", zap.String("key", key), zap.Bool("cached", true), zap.Duration("duration", time.Since(start)))
		return cached, nil
	}

	if n := s.stampedeTracker.RecordMiss(key); n > 1 {
		observability.CacheStampedeDetectedTotal.Inc()
		observability.CacheStampedeConcurrency.Observe(float64(n))
	}
	defer s.stampedeTracker.Resolve(key)

	run := func() (models.SimulationResult, error) {
		result, err := s.generate(cfg, effSeed)
		if err != nil {
			return models.SimulationResult{}, err
		}
		// the shared run outlives any single caller's request
		s.setCached(context.WithoutCancel(ctx), key, result, logger)
		return result, nil
	}

	var result models.SimulationResult
	if s.coalescer != nil {
		waitStart := time.Now()
		var shared bool
		result, shared, err = s.coalescer.GetOrDo(ctx, key, run)
		if err == nil && shared {
			observability.RequestCoalescingHitsTotal.Inc()
			observability.RequestCoalescingWaitSeconds.Observe(time.Since(waitStart).Seconds())
		}
	} else {
		result, err = run()
	}
	if err != nil {
		return models.SimulationResult{}, err
	}
	result.Seed = effSeed
	logger.Debug("simulation served", zap.String("key", key), zap.Bool("cached", false), zap.Duration("duration", time.Since(start)))
	return result, nil
}

// Schedule returns the day boundaries and horizon for cfg without generating weather.
func (s *SimulationService) Schedule(cfg weathergen.SimulationConfig) (models.ScheduleResult, error) {
	boundaries, err := weathergen.BuildSchedule(cfg.Segments)
	if err != nil {
		return models.ScheduleResult{}, err
	}
	for _, seg := range cfg.Segments {
		if _, err := weathergen.Lookup(seg.ClimateType); err != nil {
			return models.ScheduleResult{}, fmt.Errorf("segment %d: %w", seg.Index, err)
		}
	}
	return models.ScheduleResult{TotalDays: weathergen.TotalDays(boundaries), Boundaries: boundaries}, nil
}

// SetPresets replaces the configured presets.
func (s *SimulationService) SetPresets(presets map[string]Preset) {
	m := make(map[string]Preset, len(presets))
	for name, p := range presets {
		p.Config.Segments = append([]weathergen.Segment(nil), p.Config.Segments...)
		m[name] = p
	}
	s.presetsMu.Lock()
	s.presets = m
	s.presetsMu.Unlock()
}

// PresetNames returns the configured preset names in sorted order.
func (s *SimulationService) PresetNames() []string {
	s.presetsMu.RLock()
	defer s.presetsMu.RUnlock()
	names := make([]string, 0, len(s.presets))
	for name := range s.presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Preset runs the named preset. Implements cache.PresetRunner.
func (s *SimulationService) Preset(ctx context.Context, name string) (models.SimulationResult, error) {
	s.presetsMu.RLock()
	p, ok := s.presets[name]
	s.presetsMu.RUnlock()
	if !ok {
		return models.SimulationResult{}, fmt.Errorf("%w: %s", ErrPresetNotFound, name)
	}
	return s.Simulate(ctx, p.Config, p.Seed)
}

func (s *SimulationService) generate(cfg weathergen.SimulationConfig, seed uint64) (models.SimulationResult, error) {
	gen := weathergen.New(weathergen.Options{
		TransitionWindow: s.window,
		Noise:            weathergen.NewSeededNoise(seed),
	})
	start := time.Now()
	series, err := gen.Generate(cfg)
	observability.GenerationDurationSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		observability.GenerationsTotal.WithLabelValues(generationOutcome(err)).Inc()
		return models.SimulationResult{}, err
	}
	observability.GenerationsTotal.WithLabelValues("success").Inc()
	observability.GeneratedDaysTotal.Add(float64(series.TotalDays()))
	observability.RecordSegments(cfg.Segments)

	return models.SimulationResult{
		SimulationID: s.newID(),
		Seed:         seed,
		TotalDays:    series.TotalDays(),
		Boundaries:   series.Boundaries,
		Records:      series.Records,
		Summary:      series.Summarize(),
		GeneratedAt:  s.now().UTC(),
	}, nil
}

func (s *SimulationService) getCached(ctx context.Context, key string, logger *zap.Logger) (models.SimulationResult, bool) {
	start := time.Now()
	cached, ok, err := s.cache.Get(ctx, key)
	d := time.Since(start).Seconds()
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("get", categorizeCacheError(err)).Inc()
		observability.CacheOperationDurationSeconds.WithLabelValues("get", "error").Observe(d)
		logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return models.SimulationResult{}, false
	}
	observability.CacheOperationDurationSeconds.WithLabelValues("get", "success").Observe(d)
	if ok {
		observability.CacheHitsTotal.WithLabelValues("simulation").Inc()
	}
	return cached, ok
}

func (s *SimulationService) setCached(ctx context.Context, key string, result models.SimulationResult, logger *zap.Logger) {
	start := time.Now()
	err := s.cache.Set(ctx, key, result, s.ttl)
	d := time.Since(start).Seconds()
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("set", categorizeCacheError(err)).Inc()
		observability.CacheOperationDurationSeconds.WithLabelValues("set", "error").Observe(d)
		logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		return
	}
	observability.CacheOperationDurationSeconds.WithLabelValues("set", "success").Observe(d)
}

// reproducible reports whether the same request always yields the same series.
func reproducible(cfg weathergen.SimulationConfig, seed *uint64) bool {
	return seed != nil || !(cfg.RandomnessLevel > 0)
}

// cacheKey hashes the canonical JSON of everything that affects the output.
// The seed is dropped when there is no randomness since it cannot change the series.
func cacheKey(cfg weathergen.SimulationConfig, seed uint64, window int) (string, error) {
	if !(cfg.RandomnessLevel > 0) {
		seed = 0
	}
	segs := make([]weathergen.Segment, len(cfg.Segments))
	for i, seg := range cfg.Segments {
		segs[i] = weathergen.Segment{LengthDays: seg.LengthDays, ClimateType: seg.ClimateType}
	}
	raw, err := json.Marshal(struct {
		Altitude   float64              `json:"a"`
		Randomness float64              `json:"r"`
		Seed       uint64               `json:"s"`
		Window     int                  `json:"w"`
		Segments   []weathergen.Segment `json:"g"`
	}{cfg.AltitudeMeters, cfg.RandomnessLevel, seed, window, segs})
	if err != nil {
		return "", err
	}
	return cacheKeyVersion + ":" + strconv.FormatUint(xxhash.Sum64(raw), 16), nil
}

// generationOutcome labels a generation failure: invalid for rejected input, error otherwise.
func generationOutcome(err error) string {
	if IsInputError(err) {
		return "invalid"
	}
	return "error"
}

// IsInputError reports whether err was caused by the request rather than the service.
func IsInputError(err error) bool {
	return errors.Is(err, weathergen.ErrInvalidSegmentLength) ||
		errors.Is(err, weathergen.ErrUnknownClimateType) ||
		errors.Is(err, weathergen.ErrNoSegments)
}

// categorizeCacheError returns a stable label for cache error metrics (timeout, connection, unknown).
func categorizeCacheError(err error) string {
	switch msg := err.Error(); {
	case errors.Is(err, context.DeadlineExceeded) || strings.Contains(msg, "timeout"):
		return "timeout"
	case strings.Contains(msg, "connection") || strings.Contains(msg, "network"):
		return "connection"
	}
	return "unknown"
}
