package traffic

import (
	"sync"
	"time"
)

// retention bounds how long outcome timestamps are kept; windows longer than this undercount.
const retention = 30 * time.Minute

var defaultTracker Tracker

// RecordGenerated records a simulation or schedule request that produced a series.
func RecordGenerated() {
	defaultTracker.RecordGenerated()
}

// RecordFailed records a request that failed inside the service (5xx).
func RecordFailed() {
	defaultTracker.RecordFailed()
}

// RecordRejected records a request refused for bad input (4xx other than 429).
func RecordRejected() {
	defaultTracker.RecordRejected()
}

// RecordDenied records a rate-limit denial (429).
func RecordDenied() {
	defaultTracker.RecordDenied()
}

// Requests returns all outcomes recorded within the window.
func Requests(window time.Duration) int {
	return defaultTracker.Requests(window)
}

// Denials returns the number of rate-limit denials within the window.
func Denials(window time.Duration) int {
	return defaultTracker.Denials(window)
}

// FailureRate returns (failed, generated+failed) within the window.
func FailureRate(window time.Duration) (failed, total int) {
	return defaultTracker.FailureRate(window)
}

// Default returns the process-wide tracker the package functions record into.
func Default() *Tracker {
	return &defaultTracker
}

// Reset clears all recorded outcomes. For tests only.
func Reset() {
	defaultTracker.Reset()
}

type outcome int

const (
	generated outcome = iota
	failed
	rejected
	denied
	numOutcomes
)

// Tracker keeps sliding windows of outcome timestamps per kind. The zero value is ready to use.
// Overload and idle read Requests, degraded reads FailureRate; rejected input counts as
// traffic but never as failure.
type Tracker struct {
	mu    sync.Mutex
	times [numOutcomes][]time.Time
	now   func() time.Time
}

// RecordGenerated records a successful generation.
func (t *Tracker) RecordGenerated() { t.record(generated) }

// RecordFailed records an internal failure.
func (t *Tracker) RecordFailed() { t.record(failed) }

// RecordRejected records a client input rejection.
func (t *Tracker) RecordRejected() { t.record(rejected) }

// RecordDenied records a rate-limit denial.
func (t *Tracker) RecordDenied() { t.record(denied) }

func (t *Tracker) record(o outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock()
	t.times[o] = append(t.times[o], now)
	t.pruneLocked(now)
}

// Requests returns the number of outcomes of every kind within the window.
func (t *Tracker) Requests(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.clock().Add(-window)
	n := 0
	for o := outcome(0); o < numOutcomes; o++ {
		n += countSince(t.times[o], cutoff)
	}
	return n
}

// Denials returns the number of rate-limit denials within the window.
func (t *Tracker) Denials(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return countSince(t.times[denied], t.clock().Add(-window))
}

// FailureRate returns (failed, generated+failed) within the window.
func (t *Tracker) FailureRate(window time.Duration) (failures, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.clock().Add(-window)
	f := countSince(t.times[failed], cutoff)
	return f, f + countSince(t.times[generated], cutoff)
}

// Reset clears all recorded outcomes.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for o := range t.times {
		t.times[o] = nil
	}
}

func (t *Tracker) clock() time.Time {
	if t.now != nil {
		return t.now()
	}
	return time.Now()
}

// countSince counts timestamps not before cutoff. Slices are in append order.
func countSince(times []time.Time, cutoff time.Time) int {
	n := 0
	for i := len(times) - 1; i >= 0 && !times[i].Before(cutoff); i-- {
		n++
	}
	return n
}

// pruneLocked drops timestamps older than retention. Must be called with mu held.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-retention)
	for o := range t.times {
		times := t.times[o]
		i := 0
		for ; i < len(times) && times[i].Before(cutoff); i++ {
		}
		if i > 0 {
			t.times[o] = append(times[:0], times[i:]...)
		}
	}
}
