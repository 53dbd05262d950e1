// Package clock provides an injectable time source.
// Every component that compares timestamps takes a Clock instead of reading
// the wall clock directly, so deadline arithmetic is deterministic in tests.
package clock

import "time"

// Clock is the single source of "now" for the application.
type Clock interface {
	Now() time.Time
}

// System reads the wall clock in UTC.
type System struct{}

// Now implements Clock.
func (System) Now() time.Time {
	return time.Now().UTC()
}

// Fixed is a Clock frozen at a given instant. Tests advance it explicitly.
type Fixed struct {
	Instant time.Time
}

// NewFixed creates a Fixed clock at the given instant.
func NewFixed(t time.Time) *Fixed {
	return &Fixed{Instant: t}
}

// Now implements Clock.
func (f *Fixed) Now() time.Time {
	return f.Instant
}

// Advance moves the fixed clock forward by d.
func (f *Fixed) Advance(d time.Duration) {
	f.Instant = f.Instant.Add(d)
}
