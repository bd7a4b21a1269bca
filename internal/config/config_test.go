package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalEnvYAML = `
server:
  port: "9090"
request:
  timeout: "5s"
cache:
  ttl: "10m"
`

func writeEnvFile(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "dev.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func loadYAML(t *testing.T, content string) (*Config, error) {
	t.Helper()
	t.Setenv("ENV_NAME", "")
	t.Setenv("CACHE_BACKEND", "")
	t.Setenv("MEMCACHED_ADDRS", "")
	dir := t.TempDir()
	writeEnvFile(t, dir, content)
	return LoadFrom(dir)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := loadYAML(t, minimalEnvYAML)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.ServerPort != "9090" {
		t.Errorf("ServerPort = %q, want 9090", cfg.ServerPort)
	}
	if cfg.CacheTTL != 10*time.Minute {
		t.Errorf("CacheTTL = %v, want 10m", cfg.CacheTTL)
	}
	if cfg.CacheBackend != "in_memory" {
		t.Errorf("CacheBackend = %q, want in_memory", cfg.CacheBackend)
	}
	if cfg.TransitionWindow != 5 {
		t.Errorf("TransitionWindow = %d, want 5", cfg.TransitionWindow)
	}
	if cfg.Limits.MaxSegments != 24 || cfg.Limits.MaxTotalDays != 3660 || cfg.Limits.MaxAltitude != 9000 {
		t.Errorf("Limits = %+v", cfg.Limits)
	}
	if !cfg.CoalesceEnabled || !cfg.WarmCache {
		t.Error("coalescing and warming should default on")
	}
	if cfg.WarmInterval != 0 {
		t.Errorf("WarmInterval = %v, want 0 (warm once)", cfg.WarmInterval)
	}
}

// TestLoad_DefaultPreset verifies the built-in preset is a 365-day seeded run at 2000 m.
func TestLoad_DefaultPreset(t *testing.T) {
	cfg, err := loadYAML(t, minimalEnvYAML)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	p, ok := cfg.Presets[DefaultPresetName]
	if !ok {
		t.Fatalf("Presets = %v, want %s", cfg.PresetNames(), DefaultPresetName)
	}
	total := 0
	for _, s := range p.Segments {
		total += s.LengthDays
	}
	if total != 365 || len(p.Segments) != 3 {
		t.Errorf("default preset has %d segments totalling %d days", len(p.Segments), total)
	}
	if p.AltitudeMeters != 2000 || p.RandomnessLevel != 0.1 || p.Seed == nil {
		t.Errorf("default preset = %+v", p)
	}
}

func TestLoad_EnvFileNotFound(t *testing.T) {
	t.Setenv("ENV_NAME", "staging")
	_, err := LoadFrom(t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("LoadFrom() error = %v, want config file not found", err)
	}
}

func TestLoad_InvalidConfigYAML(t *testing.T) {
	if _, err := loadYAML(t, "server: [unclosed"); err == nil || !strings.Contains(err.Error(), "parse config file") {
		t.Errorf("LoadFrom() error = %v, want parse error", err)
	}
}

func TestLoad_InvalidDurationFallsBackToDefault(t *testing.T) {
	cfg, err := loadYAML(t, minimalEnvYAML+`
shutdown:
  timeout: "soon"
coalesce:
  timeout: "-3s"
`)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 30s", cfg.ShutdownTimeout)
	}
	if cfg.CoalesceTimeout != 5*time.Second {
		t.Errorf("CoalesceTimeout = %v, want 5s", cfg.CoalesceTimeout)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	writeEnvFile(t, dir, "cache:\n  backend: in_memory\n")
	t.Setenv("ENV_NAME", "")
	t.Setenv("CACHE_BACKEND", "Memcached")
	t.Setenv("MEMCACHED_ADDRS", "cache-1:11211,cache-2:11211")
	cfg, err := LoadFrom(dir)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.CacheBackend != "memcached" {
		t.Errorf("CacheBackend = %q, want memcached", cfg.CacheBackend)
	}
	if cfg.MemcachedAddrs != "cache-1:11211,cache-2:11211" {
		t.Errorf("MemcachedAddrs = %q", cfg.MemcachedAddrs)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"backend", "cache:\n  backend: redis\n", "cache.backend"},
		{"altitude bounds", "generator:\n  min_altitude: 100\n  max_altitude: 50\n", "min_altitude"},
		{"unknown climate in preset", `
presets:
  bad:
    segments:
      - { length_days: 10, climate_type: Foggy }
`, `preset "bad"`},
		{"unseeded noisy preset", `
presets:
  noisy:
    randomness_level: 1
    segments:
      - { length_days: 10, climate_type: Dry }
`, "seed required"},
		{"preset name", `
presets:
  "bad name":
    segments:
      - { length_days: 10, climate_type: Dry }
`, "invalid characters"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := loadYAML(t, tc.yaml)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("LoadFrom() error = %v, want containing %q", err, tc.want)
			}
		})
	}
}

func TestLoad_LifecycleThresholds(t *testing.T) {
	cfg, err := loadYAML(t, minimalEnvYAML+`
reliability:
  rate_limit_rps: 10
lifecycle:
  overload_window: "30s"
  overload_threshold_pct: 50
  degraded_error_pct: 20
`)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	th := cfg.Thresholds()
	if th.OverloadLimit() != 150 {
		t.Errorf("OverloadLimit() = %v, want 150", th.OverloadLimit())
	}
	if th.DegradedErrorPct != 20 || th.DegradedWindow != time.Minute {
		t.Errorf("Thresholds() = %+v", th)
	}
}

// TestLoad_RepoDevConfig keeps config/dev.yaml loadable.
func TestLoad_RepoDevConfig(t *testing.T) {
	t.Setenv("ENV_NAME", "")
	t.Setenv("CACHE_BACKEND", "")
	t.Setenv("MEMCACHED_ADDRS", "")
	cfg, err := LoadFrom(filepath.Join("..", "..", "config"))
	if err != nil {
		t.Fatalf("LoadFrom(config) error = %v", err)
	}
	if _, ok := cfg.Presets[DefaultPresetName]; !ok {
		t.Errorf("dev.yaml presets = %v, want %s", cfg.PresetNames(), DefaultPresetName)
	}
}
