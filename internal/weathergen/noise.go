package weathergen

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Noise yields uniform variates in [-1, 1].
type Noise interface {
	Draw() float64
}

// unit maps a [0,1) probability onto [-1, 1].
var unit = distuv.Uniform{Min: -1, Max: 1}

type globalNoise struct{}

// NewNoise returns a Noise backed by the process-wide random source.
// It is safe for concurrent use and differs on every run.
func NewNoise() Noise {
	return globalNoise{}
}

func (globalNoise) Draw() float64 {
	return unit.Quantile(rand.Float64())
}

// SeededNoise is a reproducible Noise. Not safe for concurrent use; create one per generation.
type SeededNoise struct {
	rng *rand.Rand
}

// NewSeededNoise returns a Noise whose sequence is fully determined by seed.
func NewSeededNoise(seed uint64) *SeededNoise {
	return &SeededNoise{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Draw implements Noise.
func (n *SeededNoise) Draw() float64 {
	return unit.Quantile(n.rng.Float64())
}

// Range is an inclusive valid interval for a parameter.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

var amplitudes = map[Param]float64{
	MaxTemp:         2,
	MinTemp:         2,
	GlobalRadiation: 5,
	VapourPressure:  0.2,
	Rainfall:        5,
	WindSpeed:       1,
}

var validRanges = map[Param]Range{
	MaxTemp:         {-50, 60},
	MinTemp:         {-70, 50},
	GlobalRadiation: {0, 1361},
	VapourPressure:  {0, 10},
	Rainfall:        {0, 500},
	WindSpeed:       {0, 60},
}

// Amplitude returns the ± perturbation of param at randomness level 1.
func Amplitude(param Param) float64 {
	return amplitudes[param]
}

// ValidRange returns the clamp interval of param.
func ValidRange(param Param) Range {
	return validRanges[param]
}

// Clamp forces value into the valid range of param. NaN maps to the lower bound.
func Clamp(param Param, value float64) float64 {
	r := validRanges[param]
	if math.IsNaN(value) {
		return r.Min
	}
	return math.Min(math.Max(value, r.Min), r.Max)
}

// PerturbAndClamp adds amplitude*level*u to value, with u drawn from noise, then clamps.
// A level <= 0 adds nothing; noise is still drawn so sequences stay aligned across levels.
// The clamp is applied unconditionally.
func PerturbAndClamp(param Param, value, level float64, noise Noise) float64 {
	u := noise.Draw()
	if level > 0 {
		value += u * amplitudes[param] * level
	}
	return Clamp(param, value)
}
