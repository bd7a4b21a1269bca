package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kjstillabower/pasture-weather-service/internal/models"
	"github.com/kjstillabower/pasture-weather-service/internal/traffic"
	"github.com/kjstillabower/pasture-weather-service/internal/validation"
	"github.com/kjstillabower/pasture-weather-service/internal/weathergen"
)

// DefaultPresetName is the preset added when the config file declares none.
const DefaultPresetName = "basgra-default"

// Config holds service configuration loaded from YAML and env.
type Config struct {
	ServerPort string

	RequestTimeout        time.Duration
	ShutdownTimeout       time.Duration
	InFlightTimeout       time.Duration
	InFlightCheckInterval time.Duration

	TransitionWindow int
	Limits           validation.Limits

	CacheBackend          string // "in_memory" or "memcached"
	CacheTTL              time.Duration
	CacheMaxEntries       int
	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	CoalesceEnabled bool
	CoalesceTimeout time.Duration

	RateLimitRPS   int
	RateLimitBurst int

	OverloadWindow         time.Duration
	OverloadThresholdPct   int
	IdleThresholdReqPerMin int
	IdleWindow             time.Duration
	MinimumLifespan        time.Duration
	DegradedWindow         time.Duration
	DegradedErrorPct       int

	Presets      map[string]models.SimulationRequest
	WarmCache    bool
	WarmInterval time.Duration
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Shutdown struct {
		Timeout               string `yaml:"timeout"`
		InFlightTimeout       string `yaml:"in_flight_timeout"`
		InFlightCheckInterval string `yaml:"in_flight_check_interval"`
	} `yaml:"shutdown"`

	Generator struct {
		TransitionWindow int      `yaml:"transition_window"`
		MaxSegments      int      `yaml:"max_segments"`
		MaxTotalDays     int      `yaml:"max_total_days"`
		MaxRandomness    *float64 `yaml:"max_randomness"`
		MinAltitude      *float64 `yaml:"min_altitude"`
		MaxAltitude      *float64 `yaml:"max_altitude"`
	} `yaml:"generator"`

	Cache struct {
		Backend    string `yaml:"backend"`
		TTL        string `yaml:"ttl"`
		MaxEntries int    `yaml:"max_entries"`
		Memcached  struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	Coalesce struct {
		Enabled *bool  `yaml:"enabled"`
		Timeout string `yaml:"timeout"`
	} `yaml:"coalesce"`

	Reliability struct {
		RateLimitRPS   int `yaml:"rate_limit_rps"`
		RateLimitBurst int `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	Lifecycle struct {
		OverloadWindow         string `yaml:"overload_window"`
		OverloadThresholdPct   int    `yaml:"overload_threshold_pct"`
		IdleThresholdReqPerMin int    `yaml:"idle_threshold_req_per_min"`
		IdleWindow             string `yaml:"idle_window"`
		MinimumLifespan        string `yaml:"minimum_lifespan"`
		DegradedWindow         string `yaml:"degraded_window"`
		DegradedErrorPct       int    `yaml:"degraded_error_pct"`
	} `yaml:"lifecycle"`

	Presets      map[string]models.SimulationRequest `yaml:"presets"`
	WarmCache    *bool                               `yaml:"warm_cache"`
	WarmInterval string                              `yaml:"warm_interval"`
}

// Load reads config/{ENV_NAME}.yaml (default dev) relative to the working directory.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	return LoadFrom(filepath.Join(cwd, "config"))
}

// LoadFrom reads {ENV_NAME}.yaml from dir, applies env overrides and defaults, and validates.
func LoadFrom(dir string) (*Config, error) {
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}
	configPath := filepath.Join(dir, env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}
	cfg.ServerPort = fc.Server.Port
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 5*time.Second)
	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.InFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 10*time.Second)
	cfg.InFlightCheckInterval = parseDuration(fc.Shutdown.InFlightCheckInterval, 100*time.Millisecond)

	cfg.TransitionWindow = fc.Generator.TransitionWindow
	if cfg.TransitionWindow <= 0 {
		cfg.TransitionWindow = weathergen.DefaultTransitionWindow
	}
	cfg.Limits = validation.DefaultLimits()
	if fc.Generator.MaxSegments > 0 {
		cfg.Limits.MaxSegments = fc.Generator.MaxSegments
	}
	if fc.Generator.MaxTotalDays > 0 {
		cfg.Limits.MaxTotalDays = fc.Generator.MaxTotalDays
	}
	if fc.Generator.MaxRandomness != nil {
		cfg.Limits.MaxRandomness = *fc.Generator.MaxRandomness
	}
	if fc.Generator.MinAltitude != nil {
		cfg.Limits.MinAltitude = *fc.Generator.MinAltitude
	}
	if fc.Generator.MaxAltitude != nil {
		cfg.Limits.MaxAltitude = *fc.Generator.MaxAltitude
	}

	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(os.Getenv("CACHE_BACKEND")))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = strings.TrimSpace(strings.ToLower(fc.Cache.Backend))
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "in_memory"
	}
	cfg.CacheTTL = parseDuration(fc.Cache.TTL, time.Hour)
	cfg.CacheMaxEntries = fc.Cache.MaxEntries
	if cfg.CacheMaxEntries <= 0 {
		cfg.CacheMaxEntries = 1000
	}
	cfg.MemcachedAddrs = strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS"))
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = strings.TrimSpace(fc.Cache.Memcached.Addrs)
	}
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.CoalesceEnabled = true
	if fc.Coalesce.Enabled != nil {
		cfg.CoalesceEnabled = *fc.Coalesce.Enabled
	}
	cfg.CoalesceTimeout = parseDuration(fc.Coalesce.Timeout, 5*time.Second)

	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 50
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 100
	}

	cfg.OverloadWindow = parseDuration(fc.Lifecycle.OverloadWindow, 60*time.Second)
	cfg.OverloadThresholdPct = fc.Lifecycle.OverloadThresholdPct
	if cfg.OverloadThresholdPct <= 0 {
		cfg.OverloadThresholdPct = 80
	}
	cfg.IdleThresholdReqPerMin = fc.Lifecycle.IdleThresholdReqPerMin
	if cfg.IdleThresholdReqPerMin <= 0 {
		cfg.IdleThresholdReqPerMin = 1
	}
	cfg.IdleWindow = parseDuration(fc.Lifecycle.IdleWindow, 10*time.Minute)
	cfg.MinimumLifespan = parseDuration(fc.Lifecycle.MinimumLifespan, 10*time.Minute)
	cfg.DegradedWindow = parseDuration(fc.Lifecycle.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = fc.Lifecycle.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 5
	}

	cfg.Presets = fc.Presets
	if len(cfg.Presets) == 0 {
		cfg.Presets = map[string]models.SimulationRequest{DefaultPresetName: DefaultPreset()}
	}
	cfg.WarmCache = true
	if fc.WarmCache != nil {
		cfg.WarmCache = *fc.WarmCache
	}
	cfg.WarmInterval = parseDurationOrZero(fc.WarmInterval, 0)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultPreset is a year of fair weather at 2000 m with light noise and a fixed seed,
// split into three roughly four-month segments.
func DefaultPreset() models.SimulationRequest {
	seed := uint64(42)
	return models.SimulationRequest{
		AltitudeMeters:  2000,
		RandomnessLevel: 0.1,
		Seed:            &seed,
		Segments: []models.SegmentRequest{
			{LengthDays: 121, ClimateType: string(weathergen.Sunny)},
			{LengthDays: 122, ClimateType: string(weathergen.Sunny)},
			{LengthDays: 122, ClimateType: string(weathergen.Sunny)},
		},
	}
}

// PresetNames returns the configured preset names in sorted order.
func (c *Config) PresetNames() []string {
	names := make([]string, 0, len(c.Presets))
	for name := range c.Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Thresholds returns the health thresholds for traffic.Tracker.Assess.
func (c *Config) Thresholds() traffic.Thresholds {
	return traffic.Thresholds{
		OverloadWindow:         c.OverloadWindow,
		OverloadThresholdPct:   c.OverloadThresholdPct,
		RateLimitRPS:           c.RateLimitRPS,
		IdleWindow:             c.IdleWindow,
		IdleThresholdReqPerMin: c.IdleThresholdReqPerMin,
		MinimumLifespan:        c.MinimumLifespan,
		DegradedWindow:         c.DegradedWindow,
		DegradedErrorPct:       c.DegradedErrorPct,
	}
}

// parseDuration parses s, returning defaultVal when s is empty, invalid or not positive.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses s, returning defaultVal on empty or invalid input.
// Zero and negative values are returned as-is.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate checks cross-field constraints and every preset against the request limits.
func validate(cfg *Config) error {
	switch cfg.CacheBackend {
	case "in_memory", "memcached":
	default:
		return fmt.Errorf("cache.backend must be in_memory or memcached, got %q", cfg.CacheBackend)
	}
	l := cfg.Limits
	if l.MinAltitude >= l.MaxAltitude {
		return fmt.Errorf("generator.min_altitude (%v) must be below generator.max_altitude (%v)", l.MinAltitude, l.MaxAltitude)
	}
	if l.MaxRandomness < 0 {
		return fmt.Errorf("generator.max_randomness must not be negative")
	}
	if cfg.InFlightCheckInterval >= cfg.InFlightTimeout {
		cfg.InFlightCheckInterval = cfg.InFlightTimeout / 10
	}
	for _, name := range cfg.PresetNames() {
		req := cfg.Presets[name]
		if _, err := validation.ValidatePresetName(name, l.MaxPresetLength); err != nil {
			return fmt.Errorf("preset %q: %w", name, err)
		}
		if _, err := validation.ValidateSimulation(req, l); err != nil {
			return fmt.Errorf("preset %q: %w", name, err)
		}
		if req.RandomnessLevel > 0 && req.Seed == nil {
			return fmt.Errorf("preset %q: seed required when randomness_level > 0", name)
		}
	}
	return nil
}
