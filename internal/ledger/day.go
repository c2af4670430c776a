package ledger

import (
	"fmt"
	"time"
)

// dayLayout is the persisted form of a Day.
const dayLayout = "2006-01-02"

// Day is an entity-local calendar date key ("2026-10-14").
// The zero value means "never".
type Day string

// DayOf returns the calendar day of t in loc.
func DayOf(t time.Time, loc *time.Location) Day {
	if loc == nil {
		loc = time.UTC
	}
	return Day(t.In(loc).Format(dayLayout))
}

// Valid reports whether d parses as a calendar date.
func (d Day) Valid() bool {
	_, err := time.Parse(dayLayout, string(d))
	return err == nil
}

// DaysUntil returns the whole number of days from d to other. Negative values
// mean other is earlier than d. Invalid days yield an error.
func (d Day) DaysUntil(other Day) (int64, error) {
	from, err := time.Parse(dayLayout, string(d))
	if err != nil {
		return 0, fmt.Errorf("parse day %q: %w", d, err)
	}
	to, err := time.Parse(dayLayout, string(other))
	if err != nil {
		return 0, fmt.Errorf("parse day %q: %w", other, err)
	}
	return int64(to.Sub(from).Hours() / 24), nil
}
