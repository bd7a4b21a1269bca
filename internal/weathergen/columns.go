package weathergen

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Columns is a Series split into parallel arrays, one per parameter, aligned by index
// with Dates. This is the shape chart datasets are built from.
type Columns struct {
	Dates           []int     `json:"dates"`
	MaxTemps        []float64 `json:"maxTemps"`
	MinTemps        []float64 `json:"minTemps"`
	GlobalRadiation []float64 `json:"globalRadiation"`
	VapourPressure  []float64 `json:"vapourPressure"`
	Rainfall        []float64 `json:"rainfall"`
	WindSpeed       []float64 `json:"windSpeed"`
}

// Columns returns s as parallel arrays.
func (s Series) Columns() Columns {
	n := len(s.Records)
	c := Columns{
		Dates:           make([]int, n),
		MaxTemps:        make([]float64, n),
		MinTemps:        make([]float64, n),
		GlobalRadiation: make([]float64, n),
		VapourPressure:  make([]float64, n),
		Rainfall:        make([]float64, n),
		WindSpeed:       make([]float64, n),
	}
	for i, r := range s.Records {
		c.Dates[i] = r.DayOfYear
		c.MaxTemps[i] = r.MaxTemp
		c.MinTemps[i] = r.MinTemp
		c.GlobalRadiation[i] = r.GlobalRadiation
		c.VapourPressure[i] = r.VapourPressure
		c.Rainfall[i] = r.Rainfall
		c.WindSpeed[i] = r.WindSpeed
	}
	return c
}

// Column returns the values of param in day order.
func (c Columns) Column(param Param) []float64 {
	switch param {
	case MaxTemp:
		return c.MaxTemps
	case MinTemp:
		return c.MinTemps
	case GlobalRadiation:
		return c.GlobalRadiation
	case VapourPressure:
		return c.VapourPressure
	case Rainfall:
		return c.Rainfall
	case WindSpeed:
		return c.WindSpeed
	}
	return nil
}

// ParamSummary holds descriptive statistics of one parameter over a series.
type ParamSummary struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stdDev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Total  float64 `json:"total"`
}

// Summary maps each parameter to its statistics.
type Summary map[Param]ParamSummary

// Summarize computes per-parameter statistics of s. An empty series yields an empty Summary.
// StdDev is the sample standard deviation and is 0 for single-day series.
func (s Series) Summarize() Summary {
	out := make(Summary, len(Params))
	if len(s.Records) == 0 {
		return out
	}
	cols := s.Columns()
	for _, param := range Params {
		x := cols.Column(param)
		ps := ParamSummary{
			Mean:  stat.Mean(x, nil),
			Min:   floats.Min(x),
			Max:   floats.Max(x),
			Total: floats.Sum(x),
		}
		if len(x) > 1 {
			ps.StdDev = stat.StdDev(x, nil)
		}
		out[param] = ps
	}
	return out
}
