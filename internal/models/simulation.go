package models

import (
	"time"

	"github.com/kjstillabower/pasture-weather-service/internal/weathergen"
)

// SegmentRequest is one segment as submitted by the configuration UI.
type SegmentRequest struct {
	LengthDays  int    `json:"lengthDays" yaml:"length_days"`
	ClimateType string `json:"climateType" yaml:"climate_type"`
}

// SimulationRequest is the body of POST /simulations and the shape of configured presets.
// Seed is optional; when absent and randomness is non-zero the service picks one.
type SimulationRequest struct {
	AltitudeMeters  float64          `json:"altitudeMeters" yaml:"altitude_meters"`
	RandomnessLevel float64          `json:"randomnessLevel" yaml:"randomness_level"`
	Seed            *uint64          `json:"seed,omitempty" yaml:"seed"`
	Segments        []SegmentRequest `json:"segments" yaml:"segments"`
}

// SimulationResult is a generated weather series plus the metadata needed to reproduce it.
type SimulationResult struct {
	SimulationID string                          `json:"simulationId"`
	Seed         uint64                          `json:"seed"`
	TotalDays    int                             `json:"totalDays"`
	Boundaries   []weathergen.SegmentBoundary    `json:"boundaries"`
	Records      []weathergen.DailyWeatherRecord `json:"records"`
	Summary      weathergen.Summary              `json:"summary"`
	GeneratedAt  time.Time                       `json:"generatedAt"`
	Cached       bool                            `json:"cached,omitempty"` // served from cache
}

// ScheduleResult is the body of POST /simulations/schedule.
type ScheduleResult struct {
	TotalDays  int                          `json:"totalDays"`
	Boundaries []weathergen.SegmentBoundary `json:"boundaries"`
}
