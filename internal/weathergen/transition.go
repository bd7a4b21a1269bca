package weathergen

// DefaultTransitionWindow is the number of trailing days of a segment that ramp
// toward the following segment's profile.
const DefaultTransitionWindow = 5

// TransitionFraction returns the blend fraction for a day with daysLeft days remaining
// in its segment, and whether blending applies at all. Blending never applies when
// there is no next segment or the day is outside the window. On the last day of a
// segment the fraction is (window-1)/window, never 1.
func TransitionFraction(daysLeft, window int, hasNext bool) (float64, bool) {
	if !hasNext || window <= 0 || daysLeft > window {
		return 0, false
	}
	return float64(window-daysLeft) / float64(window), true
}

// Interpolate blends current toward next for a day daysLeft days before the end of
// its segment. Both profiles must already be altitude-corrected. A nil next marks the
// final segment of the horizon, for which current is returned unchanged.
func Interpolate(current BaseProfile, next *BaseProfile, daysLeft, window int) BaseProfile {
	t, ok := TransitionFraction(daysLeft, window, next != nil)
	if !ok {
		return current
	}
	out := current
	for _, param := range Params {
		start := current.Value(param)
		end := next.Value(param)
		out = out.with(param, start+(end-start)*t)
	}
	return out
}
