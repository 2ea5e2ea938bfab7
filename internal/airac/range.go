package airac

import (
	"fmt"
	"time"
)

// DateLayout is the layout used for dates in identifiers, logs and the API.
const DateLayout = "2006-01-02"

// ParseDate parses a date string in YYYY-MM-DD format as a UTC calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// FormatDate formats a date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// CyclesInYear returns every cycle that starts in the given calendar year,
// in order. A year holds 13 or 14 cycle starts.
func CyclesInYear(year int) []Cycle {
	c := Locate(year, time.January, 1)
	if c.Year() != year {
		c = c.Next()
	}

	cycles := make([]Cycle, 0, 14)
	for ; c.Year() == year; c = c.Next() {
		cycles = append(cycles, c)
	}
	return cycles
}

// Between returns the cycles effective on any date in the closed range
// [from, to], in order. It returns nil when to is before from.
func Between(from, to time.Time) []Cycle {
	first, last := FromDate(from), FromDate(to)
	if last.Before(first) {
		return nil
	}

	var cycles []Cycle
	for c := first; !c.After(last); c = c.Next() {
		cycles = append(cycles, c)
	}
	return cycles
}

// Count returns the number of cycles Between would return, without
// building the slice.
func Count(from, to time.Time) int {
	first, last := FromDate(from), FromDate(to)
	if last.Before(first) {
		return 0
	}
	days := (last.start.Unix() - first.start.Unix()) / secondsPerDay
	return int(days/CycleLength) + 1
}

// Summary is the serialisable view of a cycle.
type Summary struct {
	Ident    string `json:"ident" yaml:"ident"`
	Start    string `json:"start" yaml:"start"`
	End      string `json:"end" yaml:"end"`
	Year     int    `json:"year" yaml:"year"`
	Sequence int    `json:"sequence" yaml:"sequence"`
}

// Summary returns the serialisable view of c.
func (c Cycle) Summary() Summary {
	return Summary{
		Ident:    c.Ident(),
		Start:    FormatDate(c.Starts()),
		End:      FormatDate(c.Ends()),
		Year:     c.Year(),
		Sequence: c.Sequence(),
	}
}

// Summaries converts cycles to their serialisable views.
func Summaries(cycles []Cycle) []Summary {
	out := make([]Summary, len(cycles))
	for i, c := range cycles {
		out[i] = c.Summary()
	}
	return out
}
