package weathergen

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownClimateType is returned when a climate label is not in the closed set.
// Treat it as a configuration error; the label normally comes from a constrained selector.
var ErrUnknownClimateType = errors.New("unknown climate type")

// ClimateType is a named weather regime assigned to a segment.
type ClimateType string

const (
	Sunny        ClimateType = "Sunny"
	PartlyCloudy ClimateType = "PartlyCloudy"
	Cloudy       ClimateType = "Cloudy"
	Rainy        ClimateType = "Rainy"
	Stormy       ClimateType = "Stormy"
	Windy        ClimateType = "Windy"
	Humid        ClimateType = "Humid"
	Dry          ClimateType = "Dry"
)

// BaseProfile holds the six daily parameters of a climate type.
// Units: °C, MJ/m², kPa, mm, m/s.
type BaseProfile struct {
	MaxTemp         float64 `json:"maxTemp"`
	MinTemp         float64 `json:"minTemp"`
	GlobalRadiation float64 `json:"globalRadiation"`
	VapourPressure  float64 `json:"vapourPressure"`
	Rainfall        float64 `json:"rainfall"`
	WindSpeed       float64 `json:"windSpeed"`
}

// Value returns the field of p named by param.
func (p BaseProfile) Value(param Param) float64 {
	switch param {
	case MaxTemp:
		return p.MaxTemp
	case MinTemp:
		return p.MinTemp
	case GlobalRadiation:
		return p.GlobalRadiation
	case VapourPressure:
		return p.VapourPressure
	case Rainfall:
		return p.Rainfall
	case WindSpeed:
		return p.WindSpeed
	}
	return 0
}

// with returns a copy of p with the field named by param set to v.
func (p BaseProfile) with(param Param, v float64) BaseProfile {
	switch param {
	case MaxTemp:
		p.MaxTemp = v
	case MinTemp:
		p.MinTemp = v
	case GlobalRadiation:
		p.GlobalRadiation = v
	case VapourPressure:
		p.VapourPressure = v
	case Rainfall:
		p.Rainfall = v
	case WindSpeed:
		p.WindSpeed = v
	}
	return p
}

type climateEntry struct {
	climateType ClimateType
	label       string // selector label shown to farmers
	profile     BaseProfile
}

// climateTable is ordered as the selector lists it.
var climateTable = []climateEntry{
	{Sunny, "Soleado", BaseProfile{MaxTemp: 32, MinTemp: 20, GlobalRadiation: 25, VapourPressure: 1.0, Rainfall: 0, WindSpeed: 2}},
	{PartlyCloudy, "Parcialmente nublado", BaseProfile{MaxTemp: 28, MinTemp: 18, GlobalRadiation: 15, VapourPressure: 1.5, Rainfall: 1, WindSpeed: 3}},
	{Cloudy, "Nublado", BaseProfile{MaxTemp: 25, MinTemp: 15, GlobalRadiation: 10, VapourPressure: 2.0, Rainfall: 2, WindSpeed: 2}},
	{Rainy, "Lluvioso", BaseProfile{MaxTemp: 23, MinTemp: 16, GlobalRadiation: 8, VapourPressure: 2.5, Rainfall: 20, WindSpeed: 4}},
	{Stormy, "Tormentoso", BaseProfile{MaxTemp: 22, MinTemp: 14, GlobalRadiation: 5, VapourPressure: 2.8, Rainfall: 50, WindSpeed: 6}},
	{Windy, "Ventoso", BaseProfile{MaxTemp: 30, MinTemp: 18, GlobalRadiation: 20, VapourPressure: 1.2, Rainfall: 0, WindSpeed: 8}},
	{Humid, "Húmedo", BaseProfile{MaxTemp: 28, MinTemp: 24, GlobalRadiation: 15, VapourPressure: 3.0, Rainfall: 0, WindSpeed: 1}},
	{Dry, "Seco", BaseProfile{MaxTemp: 35, MinTemp: 22, GlobalRadiation: 25, VapourPressure: 0.8, Rainfall: 0, WindSpeed: 2}},
}

// Lookup returns the base profile for ct. Returns ErrUnknownClimateType (wrapped) if ct
// is not one of the defined climate types.
func Lookup(ct ClimateType) (BaseProfile, error) {
	for _, e := range climateTable {
		if e.climateType == ct {
			return e.profile, nil
		}
	}
	return BaseProfile{}, fmt.Errorf("%w: %q", ErrUnknownClimateType, string(ct))
}

// ParseClimateType resolves a canonical name (case-insensitive, spaces and hyphens ignored)
// or a selector label such as "Parcialmente nublado" to a ClimateType.
func ParseClimateType(s string) (ClimateType, error) {
	key := foldName(s)
	if key == "" {
		return "", fmt.Errorf("%w: empty name", ErrUnknownClimateType)
	}
	for _, e := range climateTable {
		if foldName(string(e.climateType)) == key || foldName(e.label) == key {
			return e.climateType, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownClimateType, s)
}

func foldName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "", "-", "", "_", "").Replace(s)
}

// ClimateInfo describes one entry of the climate catalogue.
type ClimateInfo struct {
	Type    ClimateType `json:"type"`
	Label   string      `json:"label"`
	Profile BaseProfile `json:"profile"`
}

// Catalogue returns every climate type with its label and base profile, in selector order.
// The returned slice is a fresh copy.
func Catalogue() []ClimateInfo {
	out := make([]ClimateInfo, 0, len(climateTable))
	for _, e := range climateTable {
		out = append(out, ClimateInfo{Type: e.climateType, Label: e.label, Profile: e.profile})
	}
	return out
}
