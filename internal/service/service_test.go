package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/pasture-weather-service/internal/models"
	"github.com/kjstillabower/pasture-weather-service/internal/observability"
	"github.com/kjstillabower/pasture-weather-service/internal/weathergen"
)

type mockCache struct {
	mu     sync.Mutex
	data   map[string]models.SimulationResult
	getErr error
	setErr error
	gets   int
	sets   int
}

func (m *mockCache) Get(ctx context.Context, key string) (models.SimulationResult, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.getErr != nil {
		return models.SimulationResult{}, false, m.getErr
	}
	val, ok := m.data[key]
	return val, ok, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value models.SimulationResult, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if m.setErr != nil {
		return m.setErr
	}
	if m.data == nil {
		m.data = make(map[string]models.SimulationResult)
	}
	m.data[key] = value
	return nil
}

func threeSeasons(level float64) weathergen.SimulationConfig {
	return weathergen.SimulationConfig{
		AltitudeMeters:  2000,
		RandomnessLevel: level,
		Segments: []weathergen.Segment{
			{Index: 0, LengthDays: 121, ClimateType: weathergen.Sunny},
			{Index: 1, LengthDays: 122, ClimateType: weathergen.Sunny},
			{Index: 2, LengthDays: 122, ClimateType: weathergen.Sunny},
		},
	}
}

func newTestService(c *mockCache) *SimulationService {
	s := NewSimulationService(c, time.Hour, 0, false, 0)
	var n atomic.Int64
	s.newID = func() string { return fmt.Sprintf("sim-%d", n.Add(1)) }
	s.newSeed = func() uint64 { return 777 }
	s.now = func() time.Time { return time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC) }
	return s
}

func seedPtr(v uint64) *uint64 { return &v }

func TestSimulationService_Simulate_CachesReproducible(t *testing.T) {
	c := &mockCache{}
	s := newTestService(c)
	ctx := context.Background()

	first, err := s.Simulate(ctx, threeSeasons(0.1), seedPtr(42))
	if err != nil {
		t.Fatalf("Simulate() error = %v", err)
	}
	if first.Cached {
		t.Error("first result marked cached")
	}
	if first.TotalDays != 365 || len(first.Records) != 365 || first.Seed != 42 {
		t.Errorf("first = days %d records %d seed %d", first.TotalDays, len(first.Records), first.Seed)
	}

	second, err := s.Simulate(ctx, threeSeasons(0.1), seedPtr(42))
	if err != nil {
		t.Fatalf("Simulate() error = %v", err)
	}
	if !second.Cached {
		t.Error("second result not served from cache")
	}
	if second.SimulationID != first.SimulationID {
		t.Errorf("cached id = %s, want %s", second.SimulationID, first.SimulationID)
	}
	if c.sets != 1 {
		t.Errorf("cache sets = %d, want 1", c.sets)
	}
}

// TestSimulationService_Simulate_RandomWithoutSeedSkipsCache verifies unseeded noisy runs
// draw a seed, report it and never touch the cache.
func TestSimulationService_Simulate_RandomWithoutSeedSkipsCache(t *testing.T) {
	c := &mockCache{}
	s := newTestService(c)

	res, err := s.Simulate(context.Background(), threeSeasons(0.5), nil)
	if err != nil {
		t.Fatalf("Simulate() error = %v", err)
	}
	if res.Seed != 777 {
		t.Errorf("Seed = %d, want drawn seed 777", res.Seed)
	}
	if c.gets != 0 || c.sets != 0 {
		t.Errorf("cache touched: gets %d sets %d", c.gets, c.sets)
	}

	// replaying with the reported seed reproduces the series
	replay, err := s.Simulate(context.Background(), threeSeasons(0.5), seedPtr(res.Seed))
	if err != nil {
		t.Fatalf("Simulate() error = %v", err)
	}
	for i := range res.Records {
		if res.Records[i] != replay.Records[i] {
			t.Fatalf("day %d differs on replay", i+1)
		}
	}
}

func TestSimulationService_Simulate_ZeroRandomnessSharesKeyAcrossSeeds(t *testing.T) {
	c := &mockCache{}
	s := newTestService(c)
	ctx := context.Background()

	if _, err := s.Simulate(ctx, threeSeasons(0), seedPtr(1)); err != nil {
		t.Fatalf("Simulate() error = %v", err)
	}
	res, err := s.Simulate(ctx, threeSeasons(0), seedPtr(2))
	if err != nil {
		t.Fatalf("Simulate() error = %v", err)
	}
	if !res.Cached {
		t.Error("seed should not split the cache when randomness is zero")
	}
	if res.Seed != 2 {
		t.Errorf("Seed = %d, want the requested 2", res.Seed)
	}
}

func TestSimulationService_Simulate_CacheErrorsFallThrough(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	ctx := observability.WithLogger(context.Background(), zap.New(core))
	c := &mockCache{getErr: errors.New("dial tcp: connection refused"), setErr: errors.New("i/o timeout")}
	s := newTestService(c)

	res, err := s.Simulate(ctx, threeSeasons(0), nil)
	if err != nil {
		t.Fatalf("Simulate() error = %v, want generation despite cache errors", err)
	}
	if len(res.Records) != 365 {
		t.Errorf("records = %d, want 365", len(res.Records))
	}
	if logs.FilterMessage("cache get failed").Len() != 1 || logs.FilterMessage("cache set failed").Len() != 1 {
		t.Errorf("expected one get and one set warning, got %v", logs.All())
	}
}

func TestSimulationService_Simulate_InputErrors(t *testing.T) {
	s := newTestService(&mockCache{})
	tests := []struct {
		name string
		cfg  weathergen.SimulationConfig
		want error
	}{
		{"unknown type", weathergen.SimulationConfig{Segments: []weathergen.Segment{{LengthDays: 3, ClimateType: "Foggy"}}}, weathergen.ErrUnknownClimateType},
		{"zero length", weathergen.SimulationConfig{Segments: []weathergen.Segment{{LengthDays: 0, ClimateType: weathergen.Dry}}}, weathergen.ErrInvalidSegmentLength},
		{"no segments", weathergen.SimulationConfig{}, weathergen.ErrNoSegments},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Simulate(context.Background(), tc.cfg, nil)
			if !errors.Is(err, tc.want) {
				t.Fatalf("error = %v, want %v", err, tc.want)
			}
			if !IsInputError(err) {
				t.Error("IsInputError() = false")
			}
		})
	}
}

func TestSimulationService_Simulate_CoalescesConcurrentMisses(t *testing.T) {
	c := &mockCache{}
	s := NewSimulationService(c, time.Hour, 0, true, 5*time.Second)

	var wg sync.WaitGroup
	results := make([]models.SimulationResult, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := s.Simulate(context.Background(), threeSeasons(1), seedPtr(9))
			if err != nil {
				t.Errorf("Simulate() error = %v", err)
			}
			results[i] = res
		}(i)
	}
	wg.Wait()
	for i := range results {
		if len(results[i].Records) != 365 {
			t.Fatalf("caller %d got %d records", i, len(results[i].Records))
		}
		if results[i].Records[100] != results[0].Records[100] {
			t.Errorf("caller %d got a different series", i)
		}
	}
}

func TestSimulationService_Schedule(t *testing.T) {
	s := newTestService(&mockCache{})
	got, err := s.Schedule(threeSeasons(0))
	if err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	if got.TotalDays != 365 {
		t.Errorf("TotalDays = %d, want 365", got.TotalDays)
	}
	want := []weathergen.SegmentBoundary{{Start: 1, End: 121}, {Start: 122, End: 243}, {Start: 244, End: 365}}
	for i, b := range want {
		if got.Boundaries[i] != b {
			t.Errorf("boundary %d = %+v, want %+v", i, got.Boundaries[i], b)
		}
	}

	bad := threeSeasons(0)
	bad.Segments[1].ClimateType = "Foggy"
	if _, err := s.Schedule(bad); !errors.Is(err, weathergen.ErrUnknownClimateType) {
		t.Errorf("Schedule(unknown) error = %v", err)
	}
}

func TestSimulationService_Presets(t *testing.T) {
	c := &mockCache{}
	s := newTestService(c)
	s.SetPresets(map[string]Preset{
		"basgra-default": {Config: threeSeasons(0.1), Seed: seedPtr(20240601)},
		"arid":           {Config: weathergen.SimulationConfig{Segments: []weathergen.Segment{{LengthDays: 30, ClimateType: weathergen.Dry}}}},
	})

	if names := s.PresetNames(); len(names) != 2 || names[0] != "arid" || names[1] != "basgra-default" {
		t.Errorf("PresetNames() = %v", names)
	}
	res, err := s.Preset(context.Background(), "basgra-default")
	if err != nil {
		t.Fatalf("Preset() error = %v", err)
	}
	if res.Seed != 20240601 || res.TotalDays != 365 {
		t.Errorf("preset result seed %d days %d", res.Seed, res.TotalDays)
	}
	if c.sets != 1 {
		t.Errorf("preset run not cached: sets = %d", c.sets)
	}
	if _, err := s.Preset(context.Background(), "missing"); !errors.Is(err, ErrPresetNotFound) {
		t.Errorf("Preset(missing) error = %v, want ErrPresetNotFound", err)
	}
}

func TestCacheKey(t *testing.T) {
	a, _ := cacheKey(threeSeasons(0.5), 1, 5)
	b, _ := cacheKey(threeSeasons(0.5), 1, 5)
	if a != b {
		t.Errorf("identical requests hash differently: %s vs %s", a, b)
	}
	differs := []struct {
		name string
		cfg  weathergen.SimulationConfig
		seed uint64
		win  int
	}{
		{"seed", threeSeasons(0.5), 2, 5},
		{"randomness", threeSeasons(0.6), 1, 5},
		{"window", threeSeasons(0.5), 1, 7},
	}
	for _, d := range differs {
		k, _ := cacheKey(d.cfg, d.seed, d.win)
		if k == a {
			t.Errorf("changing %s did not change the key", d.name)
		}
	}

	reindexed := threeSeasons(0.5)
	for i := range reindexed.Segments {
		reindexed.Segments[i].Index = 10 + i
	}
	if k, _ := cacheKey(reindexed, 1, 5); k != a {
		t.Error("segment Index should not affect the key")
	}
}

func TestCategorizeCacheError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{errors.New("read: i/o timeout"), "timeout"},
		{context.DeadlineExceeded, "timeout"},
		{errors.New("dial tcp: connection refused"), "connection"},
		{errors.New("memcache: unexpected response"), "unknown"},
	}
	for _, tc := range tests {
		if got := categorizeCacheError(tc.err); got != tc.want {
			t.Errorf("categorizeCacheError(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}
