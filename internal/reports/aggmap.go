package reports

import (
	"time"
)

// AggKey is the universal join key across all four fact streams.
type AggKey struct {
	Day     Day
	EventID string
}

// AggMap maps (day, event) to an aggregated count or capacity sum. Absent
// keys read as zero: a missing entry means no activity that day, never an
// error.
type AggMap map[AggKey]int64

// Get returns the aggregate for (day, eventID), zero when absent.
func (m AggMap) Get(day Day, eventID string) int64 {
	return m[AggKey{Day: day, EventID: eventID}]
}

// Add accumulates v into the entry for (day, eventID).
func (m AggMap) Add(day Day, eventID string, v int64) {
	m[AggKey{Day: day, EventID: eventID}] += v
}

// SumDay totals the aggregate across events for a single day.
func (m AggMap) SumDay(day Day, eventIDs []string) int64 {
	var total int64
	for _, id := range eventIDs {
		total += m.Get(day, id)
	}
	return total
}

// SumDays totals the aggregate across events for a run of days, used for the
// week-bucket matrix columns.
func (m AggMap) SumDays(days []Day, eventIDs []string) int64 {
	var total int64
	for _, day := range days {
		total += m.SumDay(day, eventIDs)
	}
	return total
}

// FactRow is one raw record returned by a fact provider. When is the
// effective occurrence timestamp (subevent date when the record is scoped to
// one, the event date otherwise) and Value is the record's contribution: 1
// for counted records, the quota size for capacity rows.
type FactRow struct {
	When    time.Time
	EventID string
	Value   int64
}

// BuildAggMap folds raw fact rows into a (day, event) lookup, truncating
// every timestamp to its calendar day in loc.
func BuildAggMap(rows []FactRow, loc *time.Location) AggMap {
	m := make(AggMap, len(rows))
	for _, r := range rows {
		m.Add(DayOf(r.When, loc), r.EventID, r.Value)
	}
	return m
}
