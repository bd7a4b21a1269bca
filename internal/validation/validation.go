package validation

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/kjstillabower/pasture-weather-service/internal/models"
	"github.com/kjstillabower/pasture-weather-service/internal/weathergen"
)

// ErrTooManySegments is returned when a request has more segments than allowed.
var ErrTooManySegments = errors.New("too many segments")

// ErrHorizonTooLong is returned when the summed segment lengths exceed the allowed horizon.
var ErrHorizonTooLong = errors.New("simulation horizon too long")

// ErrAltitudeOutOfRange is returned for non-finite or out-of-bounds altitudes.
var ErrAltitudeOutOfRange = errors.New("altitude out of range")

// ErrRandomnessOutOfRange is returned for non-finite, negative or excessive randomness levels.
var ErrRandomnessOutOfRange = errors.New("randomness level out of range")

// ErrPresetNameEmpty is returned when a preset name is empty or whitespace-only after trim.
var ErrPresetNameEmpty = errors.New("preset name is required")

// ErrPresetNameTooLong is returned when a preset name exceeds the maximum length.
var ErrPresetNameTooLong = errors.New("preset name too long")

// ErrPresetNameInvalidChars is returned when a preset name contains disallowed characters.
var ErrPresetNameInvalidChars = errors.New("preset name contains invalid characters")

// Limits bounds what a single simulation request may ask for.
type Limits struct {
	MaxSegments     int
	MaxTotalDays    int
	MinAltitude     float64
	MaxAltitude     float64
	MaxRandomness   float64
	MaxPresetLength int
}

// DefaultLimits returns the limits used when configuration leaves them unset.
func DefaultLimits() Limits {
	return Limits{
		MaxSegments:     24,
		MaxTotalDays:    3660,
		MinAltitude:     -500,
		MaxAltitude:     9000,
		MaxRandomness:   10,
		MaxPresetLength: 64,
	}
}

// ValidateSimulation checks req against limits and converts it into a generator config.
// Segment lengths below one day wrap weathergen.ErrInvalidSegmentLength; unknown climate
// names wrap weathergen.ErrUnknownClimateType. Segment indexes are assigned from order.
func ValidateSimulation(req models.SimulationRequest, limits Limits) (weathergen.SimulationConfig, error) {
	if len(req.Segments) == 0 {
		return weathergen.SimulationConfig{}, weathergen.ErrNoSegments
	}
	if limits.MaxSegments > 0 && len(req.Segments) > limits.MaxSegments {
		return weathergen.SimulationConfig{}, fmt.Errorf("%w: %d > %d", ErrTooManySegments, len(req.Segments), limits.MaxSegments)
	}
	if math.IsNaN(req.AltitudeMeters) || math.IsInf(req.AltitudeMeters, 0) ||
		req.AltitudeMeters < limits.MinAltitude || req.AltitudeMeters > limits.MaxAltitude {
		return weathergen.SimulationConfig{}, fmt.Errorf("%w: %v not in [%v, %v]", ErrAltitudeOutOfRange, req.AltitudeMeters, limits.MinAltitude, limits.MaxAltitude)
	}
	if math.IsNaN(req.RandomnessLevel) || req.RandomnessLevel < 0 || req.RandomnessLevel > limits.MaxRandomness {
		return weathergen.SimulationConfig{}, fmt.Errorf("%w: %v not in [0, %v]", ErrRandomnessOutOfRange, req.RandomnessLevel, limits.MaxRandomness)
	}

	cfg := weathergen.SimulationConfig{
		AltitudeMeters:  req.AltitudeMeters,
		RandomnessLevel: req.RandomnessLevel,
		Segments:        make([]weathergen.Segment, 0, len(req.Segments)),
	}
	total := 0
	for i, s := range req.Segments {
		if s.LengthDays < 1 {
			return weathergen.SimulationConfig{}, fmt.Errorf("segment %d: %w (got %d)", i, weathergen.ErrInvalidSegmentLength, s.LengthDays)
		}
		ct, err := weathergen.ParseClimateType(s.ClimateType)
		if err != nil {
			return weathergen.SimulationConfig{}, fmt.Errorf("segment %d: %w", i, err)
		}
		total += s.LengthDays
		if limits.MaxTotalDays > 0 && total > limits.MaxTotalDays {
			return weathergen.SimulationConfig{}, fmt.Errorf("%w: more than %d days", ErrHorizonTooLong, limits.MaxTotalDays)
		}
		cfg.Segments = append(cfg.Segments, weathergen.Segment{Index: i, LengthDays: s.LengthDays, ClimateType: ct})
	}
	return cfg, nil
}

// ValidatePresetName trims the input, enforces maxLen (in runes; 0 disables) and restricts
// to letters, digits, hyphen and underscore. Returns the trimmed name.
func ValidatePresetName(input string, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	if len(r) == 0 {
		return "", ErrPresetNameEmpty
	}
	if maxLen > 0 && len(r) > maxLen {
		return "", ErrPresetNameTooLong
	}
	for _, c := range r {
		if !isAllowedPresetRune(c) {
			return "", ErrPresetNameInvalidChars
		}
	}
	return s, nil
}

func isAllowedPresetRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) {
		return true
	}
	return r == '-' || r == '_'
}
