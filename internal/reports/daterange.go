package reports

import "time"

// DateRange returns every calendar day from from to to inclusive, ascending.
// An inverted range yields an empty (non-nil) slice rather than an error, so
// reports over it render their structural rows only.
func DateRange(from, to Day) []Day {
	days := []Day{}
	for d := from; !d.After(to); d = d.Next() {
		days = append(days, d)
	}
	return days
}

// WeekBuckets partitions the same range into runs of consecutive days where
// every run ends on a Saturday, except the final run which may stop short at
// to. The first bucket is shorter than seven days when from falls mid-week.
// Concatenating the buckets reproduces DateRange(from, to) exactly.
func WeekBuckets(from, to Day) [][]Day {
	buckets := [][]Day{}
	var current []Day
	for d := from; !d.After(to); d = d.Next() {
		current = append(current, d)
		if d.Weekday() == time.Saturday {
			buckets = append(buckets, current)
			current = nil
		}
	}
	if len(current) > 0 {
		buckets = append(buckets, current)
	}
	return buckets
}
