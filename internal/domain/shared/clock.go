package shared

import "time"

// Clock provides the current date and time. The ledger and alert engines
// take a Clock instead of calling time.Now so that due-date and overdue
// logic is deterministic under test.
type Clock interface {
	Now() time.Time
	Today() time.Time
}

// SystemClock is the production Clock backed by the wall clock.
type SystemClock struct{}

// Now returns the current time
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Today returns the current calendar day as a UTC date value
func (SystemClock) Today() time.Time {
	return Midnight(time.Now())
}

// FixedClock is a Clock pinned to a single instant, for tests.
type FixedClock struct {
	Time time.Time
}

// Now returns the pinned instant
func (c FixedClock) Now() time.Time {
	return c.Time
}

// Today returns the pinned instant truncated to midnight
func (c FixedClock) Today() time.Time {
	return Midnight(c.Time)
}

// Midnight reduces t to its calendar day, pinned to UTC. Every
// date-only value in the ledger (issue, due, payment dates, today)
// goes through this, so date comparisons never depend on the
// wall-clock location or its offset changes.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole calendar days from a to b (negative if
// b precedes a). It counts day boundaries, not 24-hour spans, so a day
// shortened by an offset change still counts as one day.
func DaysBetween(a, b time.Time) int {
	return int(Midnight(b).Sub(Midnight(a)) / (24 * time.Hour))
}
