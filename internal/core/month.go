package core

import (
	"fmt"
	"time"
)

// MonthLayout is the storage and wire format of a month.
const MonthLayout = "2006-01-02"

// Month is a calendar month, always held as its first day at 00:00 UTC.
type Month struct {
	time.Time
}

// MonthOf normalises t to the first day of its calendar month. The calendar
// month is read in t's own location before converting to UTC, so 2025-03-31
// 23:30 in Rome is March, not April.
func MonthOf(t time.Time) Month {
	y, m, _ := t.Date()
	return Month{Time: time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)}
}

// CalendarDate keeps the calendar day of t, read in t's own location, as
// midnight UTC. Stored dates go through it so reading them back in UTC gives
// the same month.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NewMonth builds a month from a year and a 1-based month number.
func NewMonth(year, month int) Month {
	return Month{Time: time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)}
}

// ParseMonth accepts "2006-01" or "2006-01-02"; the day is discarded.
func ParseMonth(s string) (Month, error) {
	for _, layout := range []string{"2006-01", MonthLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return MonthOf(t), nil
		}
	}
	return Month{}, fmt.Errorf("parse month %q: %w", s, ErrInvalidMonth)
}

// Next returns the following calendar month.
func (m Month) Next() Month {
	return Month{Time: m.Time.AddDate(0, 1, 0)}
}

func (m Month) Before(o Month) bool { return m.Time.Before(o.Time) }
func (m Month) After(o Month) bool  { return m.Time.After(o.Time) }
func (m Month) Equal(o Month) bool  { return m.Time.Equal(o.Time) }

// String formats the month as its first day, e.g. 2025-03-01.
func (m Month) String() string {
	return m.Format(MonthLayout)
}

// MonthsBetween returns every month from start to end inclusive, or nil when
// end is before start.
func MonthsBetween(start, end Month) []Month {
	var out []Month
	for m := start; !m.After(end); m = m.Next() {
		out = append(out, m)
	}
	return out
}
