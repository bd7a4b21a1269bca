package weathergen

import (
	"fmt"
)

// SimulationConfig is a snapshot of the user's weather settings.
type SimulationConfig struct {
	AltitudeMeters  float64   `json:"altitudeMeters"`
	RandomnessLevel float64   `json:"randomnessLevel"`
	Segments        []Segment `json:"segments"`
}

// DailyWeatherRecord is one generated day. Field names match the biomass model's input.
type DailyWeatherRecord struct {
	DayOfYear       int     `json:"dayOfYear"`
	MaxTemp         float64 `json:"maxTemp"`
	MinTemp         float64 `json:"minTemp"`
	GlobalRadiation float64 `json:"globalRadiation"`
	VapourPressure  float64 `json:"vapourPressure"`
	Rainfall        float64 `json:"rainfall"`
	WindSpeed       float64 `json:"windSpeed"`
}

// Series is the output of one generation run. Boundaries are exactly those used to
// produce Records; chart separators must be drawn from them.
type Series struct {
	Records    []DailyWeatherRecord `json:"records"`
	Boundaries []SegmentBoundary    `json:"boundaries"`
}

// TotalDays returns the horizon length of s.
func (s Series) TotalDays() int {
	return len(s.Records)
}

// Options configures a Generator. Zero values select defaults.
type Options struct {
	TransitionWindow int   // days; default DefaultTransitionWindow
	Noise            Noise // default NewNoise()
}

// Generator turns a SimulationConfig into a Series.
// It keeps no state between calls besides its Noise.
type Generator struct {
	window int
	noise  Noise
}

// New returns a Generator with opts applied over the defaults.
func New(opts Options) *Generator {
	if opts.TransitionWindow <= 0 {
		opts.TransitionWindow = DefaultTransitionWindow
	}
	if opts.Noise == nil {
		opts.Noise = NewNoise()
	}
	return &Generator{window: opts.TransitionWindow, noise: opts.Noise}
}

// TransitionWindow returns the ramp length in days.
func (g *Generator) TransitionWindow() int {
	return g.window
}

// Generate builds the full daily series for cfg. Any invalid segment or unknown
// climate type aborts the run; no partial series is returned.
func (g *Generator) Generate(cfg SimulationConfig) (Series, error) {
	segments := append([]Segment(nil), cfg.Segments...)

	boundaries, err := BuildSchedule(segments)
	if err != nil {
		return Series{}, err
	}

	// Resolve and correct every profile up front so a bad label fails before any noise is drawn.
	corrected := make([]BaseProfile, len(segments))
	for i, seg := range segments {
		base, err := Lookup(seg.ClimateType)
		if err != nil {
			return Series{}, fmt.Errorf("segment %d: %w", i, err)
		}
		corrected[i] = CorrectProfile(base, cfg.AltitudeMeters)
	}

	records := make([]DailyWeatherRecord, 0, TotalDays(boundaries))
	for i, b := range boundaries {
		var next *BaseProfile
		if i+1 < len(corrected) {
			next = &corrected[i+1]
		}
		for day := b.Start; day <= b.End; day++ {
			daysLeft := b.End - day + 1
			p := Interpolate(corrected[i], next, daysLeft, g.window)
			records = append(records, g.record(day, p, cfg.RandomnessLevel))
		}
	}

	return Series{Records: records, Boundaries: boundaries}, nil
}

func (g *Generator) record(day int, p BaseProfile, level float64) DailyWeatherRecord {
	for _, param := range Params {
		p = p.with(param, PerturbAndClamp(param, p.Value(param), level, g.noise))
	}
	return DailyWeatherRecord{
		DayOfYear:       day,
		MaxTemp:         p.MaxTemp,
		MinTemp:         p.MinTemp,
		GlobalRadiation: p.GlobalRadiation,
		VapourPressure:  p.VapourPressure,
		Rainfall:        p.Rainfall,
		WindSpeed:       p.WindSpeed,
	}
}

// Generate runs cfg through a default Generator with fresh randomness.
func Generate(cfg SimulationConfig) (Series, error) {
	return New(Options{}).Generate(cfg)
}
