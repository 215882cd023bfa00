package reports

import (
	"fmt"
	"time"
)

// Day is a civil calendar date with no time-of-day or zone attached. All
// aggregation maps are keyed by Day so counts from different zones can never
// alias through wall-clock offsets.
type Day struct {
	Year  int
	Month time.Month
	Date  int
}

// NewDay builds a Day from its components.
func NewDay(year int, month time.Month, date int) Day {
	return Day{Year: year, Month: month, Date: date}
}

// DayOf truncates t to its calendar date in loc.
func DayOf(t time.Time, loc *time.Location) Day {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return Day{Year: y, Month: m, Date: d}
}

// Time returns midnight at the start of the day in loc.
func (d Day) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Date, 0, 0, 0, 0, loc)
}

// Next returns the following calendar day.
func (d Day) Next() Day {
	// UTC arithmetic sidesteps DST transitions.
	return DayOf(d.Time(time.UTC).AddDate(0, 0, 1), time.UTC)
}

// After reports whether d falls after other.
func (d Day) After(other Day) bool {
	if d.Year != other.Year {
		return d.Year > other.Year
	}
	if d.Month != other.Month {
		return d.Month > other.Month
	}
	return d.Date > other.Date
}

// Weekday returns the day of week.
func (d Day) Weekday() time.Weekday {
	return d.Time(time.UTC).Weekday()
}

// Format renders the day using the MM/DD/YYYY convention of the report
// sheets.
func (d Day) Format() string {
	return fmt.Sprintf("%02d/%02d/%04d", d.Month, d.Date, d.Year)
}

func (d Day) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Date)
}
