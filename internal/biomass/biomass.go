// Package biomass shapes generated weather for the external grass-growth model and
// maps its green/dead biomass arrays back onto simulated days. Transport is left to callers.
package biomass

import (
	"errors"
	"fmt"

	"github.com/kjstillabower/pasture-weather-service/internal/weathergen"
)

// ErrLengthMismatch is returned when the model's arrays do not line up with the weather days.
var ErrLengthMismatch = errors.New("biomass arrays not aligned with weather days")

// Payload returns the ordered flat per-day objects the biomass model accepts as its request body.
// The slice is a copy; callers may retain it after the series is discarded.
func Payload(records []weathergen.DailyWeatherRecord) []weathergen.DailyWeatherRecord {
	out := make([]weathergen.DailyWeatherRecord, len(records))
	copy(out, records)
	return out
}

// Response is the model's reply: green (gv_b) and dead (dv_b) biomass in kg DM/ha, one per day.
type Response struct {
	GreenBiomass []float64 `json:"gv_b"`
	DeadBiomass  []float64 `json:"dv_b"`
}

// Sample is one day of biomass output.
type Sample struct {
	DayOfYear    int     `json:"dayOfYear"`
	GreenBiomass float64 `json:"greenBiomass"`
	DeadBiomass  float64 `json:"deadBiomass"`
}

// Align zips resp onto records by index. Both arrays must have exactly one value per record.
func Align(records []weathergen.DailyWeatherRecord, resp Response) ([]Sample, error) {
	n := len(records)
	if len(resp.GreenBiomass) != n || len(resp.DeadBiomass) != n {
		return nil, fmt.Errorf("%w: %d days, gv_b %d, dv_b %d", ErrLengthMismatch, n, len(resp.GreenBiomass), len(resp.DeadBiomass))
	}
	out := make([]Sample, n)
	for i, r := range records {
		out[i] = Sample{
			DayOfYear:    r.DayOfYear,
			GreenBiomass: resp.GreenBiomass[i],
			DeadBiomass:  resp.DeadBiomass[i],
		}
	}
	return out, nil
}
