package traffic

import "time"

// Condition is the traffic-derived part of service health.
type Condition string

const (
	Healthy    Condition = "healthy"
	Overloaded Condition = "overloaded"
	Idle       Condition = "idle"
	Degraded   Condition = "degraded"
)

// Thresholds configures Assess. A zero window disables the corresponding check.
type Thresholds struct {
	OverloadWindow       time.Duration
	OverloadThresholdPct int
	RateLimitRPS         int

	IdleWindow             time.Duration
	IdleThresholdReqPerMin int
	MinimumLifespan        time.Duration

	DegradedWindow   time.Duration
	DegradedErrorPct int
}

// OverloadLimit is the request count within OverloadWindow above which the service is overloaded.
func (th Thresholds) OverloadLimit() float64 {
	return float64(th.RateLimitRPS) * th.OverloadWindow.Seconds() * float64(th.OverloadThresholdPct) / 100
}

// Assessment is the result of Assess with the reason that decided it.
type Assessment struct {
	Condition Condition
	Reason    string
}

// Assess evaluates overload, then idle, then degraded; the first match wins.
// Idle only applies once uptime reaches MinimumLifespan.
func (t *Tracker) Assess(th Thresholds, uptime time.Duration) Assessment {
	if th.OverloadWindow > 0 && th.RateLimitRPS > 0 && th.OverloadThresholdPct > 0 {
		if float64(t.Requests(th.OverloadWindow)) > th.OverloadLimit() {
			return Assessment{Overloaded, "overload_threshold"}
		}
	}
	if th.IdleWindow > 0 && th.MinimumLifespan > 0 && uptime >= th.MinimumLifespan {
		perMin := float64(t.Requests(th.IdleWindow)) / th.IdleWindow.Minutes()
		if perMin < float64(th.IdleThresholdReqPerMin) {
			return Assessment{Idle, "low_traffic"}
		}
	}
	if th.DegradedWindow > 0 && th.DegradedErrorPct > 0 {
		failures, total := t.FailureRate(th.DegradedWindow)
		if total > 0 && float64(failures)*100/float64(total) >= float64(th.DegradedErrorPct) {
			return Assessment{Degraded, "failure_rate_breach"}
		}
	}
	return Assessment{Healthy, ""}
}
