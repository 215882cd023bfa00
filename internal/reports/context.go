package reports

import (
	"sort"
	"time"

	"github.com/pretix-unofficial/pretix-capacity-reports/internal/models"
)

// Context is the immutable per-invocation state of a report run: resolved
// time zone, date bounds, the event snapshot and the selected filters. It is
// built once and threaded explicitly through every stage; generators never
// share mutable state.
type Context struct {
	Location    *time.Location
	DateFrom    Day
	DateTo      Day
	WindowStart time.Time
	WindowEnd   time.Time

	Events       []models.Event
	MetaName     string
	MetaValues   []string
	ProductToken string

	// IncludeParentless controls whether events without subevents appear in
	// the per-date sheets on days where no timeslot activity is recorded.
	IncludeParentless bool

	days  []Day
	weeks [][]Day
}

// NewContext resolves the effective time zone (first selected event's zone,
// UTC when none) and the absolute query window, and precomputes the day and
// week sequences.
func NewContext(events []models.Event, form FormData, metaName string, includeParentless bool) *Context {
	loc := time.UTC
	if len(events) > 0 {
		loc = events[0].Location()
	}

	metaValues := form.MetaValues
	if metaValues == nil {
		metaValues = distinctMetaValues(events, metaName)
	} else {
		metaValues = append([]string(nil), metaValues...)
	}
	sort.Strings(metaValues)

	return &Context{
		Location:          loc,
		DateFrom:          form.DateFrom,
		DateTo:            form.DateTo,
		WindowStart:       form.DateFrom.Time(loc),
		WindowEnd:         form.DateTo.Next().Time(loc),
		Events:            events,
		MetaName:          metaName,
		MetaValues:        metaValues,
		ProductToken:      form.ProductName,
		IncludeParentless: includeParentless,
		days:              DateRange(form.DateFrom, form.DateTo),
		weeks:             WeekBuckets(form.DateFrom, form.DateTo),
	}
}

// Days returns the full day sequence of the range.
func (rc *Context) Days() []Day {
	return rc.days
}

// Weeks returns the week buckets of the range.
func (rc *Context) Weeks() [][]Day {
	return rc.weeks
}

// GroupEvents returns the events carrying the given metadata value, sorted
// by display name. The ordering affects presentation only, never totals.
func (rc *Context) GroupEvents(metaValue string) []models.Event {
	var group []models.Event
	for _, e := range rc.Events {
		if e.MetaValue(rc.MetaName) == metaValue {
			group = append(group, e)
		}
	}
	sort.Slice(group, func(i, j int) bool {
		return group[i].Name < group[j].Name
	})
	return group
}

// EventIDs returns the IDs of all selected events, regardless of metadata
// grouping. The trailing Total matrix blocks sum over these.
func (rc *Context) EventIDs() []string {
	ids := make([]string, len(rc.Events))
	for i, e := range rc.Events {
		ids[i] = e.ID
	}
	return ids
}

// FactQuery builds the provider query for this invocation.
func (rc *Context) FactQuery() FactQuery {
	return FactQuery{
		EventIDs:     rc.EventIDs(),
		WindowStart:  rc.WindowStart,
		WindowEnd:    rc.WindowEnd,
		ProductToken: rc.ProductToken,
		MetaName:     rc.MetaName,
		MetaValues:   rc.MetaValues,
	}
}

// eventActive reports whether an event counts as occurring on day: series
// events need at least one timeslot that day, parentless events follow the
// configured inclusion policy.
func (rc *Context) eventActive(e *models.Event, day Day, timeslots AggMap) bool {
	if e.HasSubevents {
		return timeslots.Get(day, e.ID) > 0
	}
	return rc.IncludeParentless
}

func distinctMetaValues(events []models.Event, metaName string) []string {
	seen := map[string]bool{}
	var values []string
	for _, e := range events {
		v := e.MetaValue(metaName)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		values = append(values, v)
	}
	return values
}
