package weathergen

// Param names one of the six daily weather parameters.
type Param string

const (
	MaxTemp         Param = "maxTemp"
	MinTemp         Param = "minTemp"
	GlobalRadiation Param = "globalRadiation"
	VapourPressure  Param = "vapourPressure"
	Rainfall        Param = "rainfall"
	WindSpeed       Param = "windSpeed"
)

// Params lists every parameter in generation order. Noise is drawn in this order.
var Params = [...]Param{MaxTemp, MinTemp, GlobalRadiation, VapourPressure, Rainfall, WindSpeed}

const (
	lapseRatePerKm          = 6.5  // °C
	radiationGainPerKm      = 0.05 // fraction
	vapourPressureLossPerKm = 0.10 // fraction
)

// Correct adjusts a base value for elevation. Any finite altitude is accepted,
// including ones that push vapour pressure negative; clamping happens later.
func Correct(param Param, baseValue, altitudeMeters float64) float64 {
	km := altitudeMeters / 1000
	switch param {
	case MaxTemp, MinTemp:
		return baseValue - km*lapseRatePerKm
	case GlobalRadiation:
		return baseValue * (1 + km*radiationGainPerKm)
	case VapourPressure:
		return baseValue * (1 - km*vapourPressureLossPerKm)
	default:
		return baseValue
	}
}

// CorrectProfile applies Correct to every field of p.
func CorrectProfile(p BaseProfile, altitudeMeters float64) BaseProfile {
	for _, param := range Params {
		p = p.with(param, Correct(param, p.Value(param), altitudeMeters))
	}
	return p
}
