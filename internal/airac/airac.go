// Package airac provides ICAO AIRAC cycle calculations.
//
// An AIRAC cycle is a fixed 28 day publication period. Cycles tile the
// timeline with no gaps or overlaps, so every calendar date belongs to
// exactly one cycle.
package airac

import (
	"fmt"
	"log/slog"
	"time"
)

// CycleLength is the length of every AIRAC cycle in days.
const CycleLength = 28

// anchor is a known cycle start. All boundaries are whole multiples of
// CycleLength away from it.
var anchor = time.Date(2020, time.January, 2, 0, 0, 0, 0, time.UTC)

// Cycle is a single AIRAC cycle. The zero value is not a valid cycle; use
// Locate, FromDate or Current.
type Cycle struct {
	start time.Time
}

// Locate returns the cycle effective on the given calendar date.
//
// A date equal to a cycle's start belongs to that cycle. A date equal to a
// cycle's end belongs to the next one.
func Locate(year int, month time.Month, day int) Cycle {
	target := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)

	// Unix seconds stay exact far outside the range of time.Duration.
	days := (target.Unix() - anchor.Unix()) / secondsPerDay
	offset := floorDiv(days, CycleLength) * CycleLength

	return Cycle{start: anchor.AddDate(0, 0, int(offset))}
}

// FromDate returns the cycle effective on the calendar date of t, read in
// t's own location.
func FromDate(t time.Time) Cycle {
	y, m, d := t.Date()
	return Locate(y, m, d)
}

// Current returns the cycle effective today (UTC).
func Current() Cycle {
	return CurrentAt(time.Now())
}

// CurrentAt returns the cycle effective on the UTC calendar date of now.
func CurrentAt(now time.Time) Cycle {
	return FromDate(now.UTC())
}

// Previous returns the cycle immediately before c.
func (c Cycle) Previous() Cycle {
	return c.Add(-1)
}

// Next returns the cycle immediately after c.
func (c Cycle) Next() Cycle {
	return c.Add(1)
}

// Add steps n cycles forward, or backward when n is negative.
func (c Cycle) Add(n int) Cycle {
	return Cycle{start: c.start.AddDate(0, 0, n*CycleLength)}
}

// Starts returns the date on which the cycle became effective.
func (c Cycle) Starts() time.Time {
	return c.start
}

// Ends returns the date on which the cycle stops being effective. The cycle
// is no longer in force from the start of this day; it is the next cycle's
// start, not the last effective date.
func (c Cycle) Ends() time.Time {
	return c.start.AddDate(0, 0, CycleLength)
}

// Contains reports whether the calendar date of t falls within [Starts, Ends).
func (c Cycle) Contains(t time.Time) bool {
	return FromDate(t).Equal(c)
}

// Year returns the calendar year in which the cycle starts.
func (c Cycle) Year() int {
	return c.start.Year()
}

// Sequence returns the 1-based position of the cycle among the cycles that
// start in the same calendar year.
//
// Every earlier cycle in the year sits a whole number of cycle lengths
// before this one, so counting them is a division of the day of year.
func (c Cycle) Sequence() int {
	return (c.start.YearDay()-1)/CycleLength + 1
}

// Ident returns the cycle identifier in YYSS form, e.g. "2205" for the fifth
// cycle starting in 2022.
func (c Cycle) Ident() string {
	yy := c.Year() % 100
	if yy < 0 {
		yy += 100
	}
	return fmt.Sprintf("%02d%02d", yy, c.Sequence())
}

// String implements fmt.Stringer and returns Ident.
func (c Cycle) String() string {
	return c.Ident()
}

// Compare returns -1, 0 or +1 depending on whether c starts before, on or
// after other.
func (c Cycle) Compare(other Cycle) int {
	return c.start.Compare(other.start)
}

// Before reports whether c starts before other.
func (c Cycle) Before(other Cycle) bool {
	return c.Compare(other) < 0
}

// After reports whether c starts after other.
func (c Cycle) After(other Cycle) bool {
	return c.Compare(other) > 0
}

// Equal reports whether c and other are the same cycle.
func (c Cycle) Equal(other Cycle) bool {
	return c.Compare(other) == 0
}

// IsZero reports whether c is the zero value.
func (c Cycle) IsZero() bool {
	return c.start.IsZero()
}

// LogValue implements slog.LogValuer.
func (c Cycle) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("ident", c.Ident()),
		slog.String("start", FormatDate(c.Starts())),
		slog.String("end", FormatDate(c.Ends())),
	)
}

const secondsPerDay = 24 * 60 * 60

// floorDiv divides rounding toward negative infinity.
func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
