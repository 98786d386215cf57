// Package sla holds the SLA policy table and the pure timer calculator.
package sla

import (
	"math"
	"time"
)

// Timer is the computed state of an SLA clock at a given instant.
// Remaining and Percentage are nil when no allotment applies.
type Timer struct {
	ElapsedSeconds   int64  `json:"elapsed_seconds"`
	RemainingSeconds *int64 `json:"remaining_seconds"`
	Percentage       *int   `json:"percentage"`
}

// Active reports whether the timer has an allotment.
func (t Timer) Active() bool {
	return t.RemainingSeconds != nil
}

// Overdue reports whether the allotment is exhausted.
func (t Timer) Overdue() bool {
	return t.RemainingSeconds != nil && *t.RemainingSeconds <= 0
}

// Compute derives elapsed, remaining and percentage from the base fields.
// Callers must not pass held files.
func Compute(deskArrival time.Time, allottedSeconds *int64, now time.Time) Timer {
	elapsed := int64(now.Sub(deskArrival) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	t := Timer{ElapsedSeconds: elapsed}
	if allottedSeconds == nil || *allottedSeconds <= 0 {
		return t
	}

	remaining := *allottedSeconds - elapsed
	pct := percentage(remaining, *allottedSeconds)
	t.RemainingSeconds = &remaining
	t.Percentage = &pct
	return t
}

// Frozen builds the timer of a held file from the remaining time captured at hold.
func Frozen(allottedSeconds, remainingAtHold *int64) Timer {
	if allottedSeconds == nil || *allottedSeconds <= 0 || remainingAtHold == nil {
		return Timer{}
	}
	remaining := *remainingAtHold
	pct := percentage(remaining, *allottedSeconds)
	return Timer{
		ElapsedSeconds:   *allottedSeconds - remaining,
		RemainingSeconds: &remaining,
		Percentage:       &pct,
	}
}

// percentage is 0 exactly when nothing remains; any positive remainder reports at least 1.
func percentage(remaining, allotted int64) int {
	if remaining <= 0 {
		return 0
	}
	pct := int(math.Round(float64(remaining) / float64(allotted) * 100))
	return max(1, min(100, pct))
}
