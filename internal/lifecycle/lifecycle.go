package lifecycle

import "sync/atomic"

// Phase is the process lifecycle phase reported by /health.
type Phase int32

const (
	// Starting holds until startup work such as preset warming completes.
	Starting Phase = iota
	// Serving accepts traffic.
	Serving
	// Draining is entered on SIGTERM/SIGINT; new traffic should go elsewhere.
	Draining
)

func (p Phase) String() string {
	switch p {
	case Starting:
		return "starting"
	case Serving:
		return "serving"
	case Draining:
		return "draining"
	}
	return "unknown"
}

var phase atomic.Int32

// Current returns the current phase.
func Current() Phase {
	return Phase(phase.Load())
}

// MarkServing moves Starting to Serving. It never leaves Draining.
func MarkServing() {
	phase.CompareAndSwap(int32(Starting), int32(Serving))
}

// BeginDraining enters Draining from any phase.
func BeginDraining() {
	phase.Store(int32(Draining))
}

// IsDraining reports whether shutdown has begun.
func IsDraining() bool {
	return Current() == Draining
}

// Reset returns to Starting. For tests only.
func Reset() {
	phase.Store(int32(Starting))
}
