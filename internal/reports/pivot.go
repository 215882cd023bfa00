package reports

import (
	"github.com/pretix-unofficial/pretix-capacity-reports/internal/exporter"
	"github.com/pretix-unofficial/pretix-capacity-reports/internal/models"
)

// The pivot generators are pure functions of (context, fact set). Each emits
// a header (or header block) followed by data rows; matrix generators close
// with a Total block summed over every selected event, independent of the
// metadata values chosen for the per-agency blocks above it.

// IterateDateAgencyEvent emits one row per (date, agency value, event) on
// which the event occurs.
func IterateDateAgencyEvent(rc *Context, facts *FactSet, emit exporter.EmitFunc) error {
	if err := emit(exporter.Row{
		"Date of Event", rc.MetaName, "Event ID", "Number of Timeslots", "Sum of Quota", "Sum of Orders", "Sum of Checked in",
	}); err != nil {
		return err
	}

	// The announced total must equal the number of rows emitted below, so
	// count only the (day, event) pairs on which the event occurs.
	days := rc.Days()
	total := 0
	for _, mv := range rc.MetaValues {
		for _, e := range rc.GroupEvents(mv) {
			for _, day := range days {
				if rc.eventActive(&e, day, facts.Timeslots) {
					total++
				}
			}
		}
	}
	if err := emit(exporter.ProgressSetTotal{Total: total}); err != nil {
		return err
	}

	for _, mv := range rc.MetaValues {
		for _, e := range rc.GroupEvents(mv) {
			for _, day := range days {
				timeslots := facts.Timeslots.Get(day, e.ID)
				if !rc.eventActive(&e, day, facts.Timeslots) {
					continue
				}
				err := emit(exporter.Row{
					day.Format(),
					mv,
					e.Slug,
					timeslots,
					facts.Quotas.Get(day, e.ID),
					facts.Orders.Get(day, e.ID),
					facts.Checkins.Get(day, e.ID),
				})
				if err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// IterateDateAgency emits one row per (date, agency value) with the count of
// occurring events and the group's summed metrics. Dates where no event in
// the group occurs produce no row.
func IterateDateAgency(rc *Context, facts *FactSet, emit exporter.EmitFunc) error {
	if err := emit(exporter.Row{
		"Date of Event", rc.MetaName, "Number of Events", "Sum of Quotas", "Sum of Orders", "Sum of Checked in",
	}); err != nil {
		return err
	}

	// Count the (day, agency value) pairs that will actually produce a row;
	// pairs with no occurring event are skipped in the loop below.
	days := rc.Days()
	total := 0
	for _, mv := range rc.MetaValues {
		events := rc.GroupEvents(mv)
		for _, day := range days {
			for i := range events {
				if rc.eventActive(&events[i], day, facts.Timeslots) {
					total++
					break
				}
			}
		}
	}
	if err := emit(exporter.ProgressSetTotal{Total: total}); err != nil {
		return err
	}

	for _, mv := range rc.MetaValues {
		events := rc.GroupEvents(mv)
		ids := eventIDs(events)
		for _, day := range days {
			active := 0
			for i := range events {
				if rc.eventActive(&events[i], day, facts.Timeslots) {
					active++
				}
			}
			if active == 0 {
				continue
			}
			err := emit(exporter.Row{
				day.Format(),
				mv,
				active,
				facts.Quotas.SumDay(day, ids),
				facts.Orders.SumDay(day, ids),
				facts.Checkins.SumDay(day, ids),
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// IterateAgencyDateDay emits the day matrix: a date header, then per agency
// value a block of three metric rows with one column per day, blank
// separator rows between blocks, and a trailing Total block over all events.
func IterateAgencyDateDay(rc *Context, facts *FactSet, emit exporter.EmitFunc) error {
	days := rc.Days()

	header := exporter.Row{rc.MetaName, ""}
	for _, day := range days {
		header = append(header, day.Format())
	}
	if err := emit(header); err != nil {
		return err
	}

	for _, mv := range rc.MetaValues {
		ids := eventIDs(rc.GroupEvents(mv))
		if err := emitMetricDayRows(emit, mv, ids, days, facts); err != nil {
			return err
		}
		if err := emit(exporter.Row{}); err != nil {
			return err
		}
	}

	return emitMetricDayRows(emit, "Total", rc.EventIDs(), days, facts)
}

// IterateAgencyDateWeek is the day matrix with week-bucket columns and two
// extra header rows carrying each bucket's first and last date.
func IterateAgencyDateWeek(rc *Context, facts *FactSet, emit exporter.EmitFunc) error {
	weeks := rc.Weeks()

	header := exporter.Row{"", ""}
	firstRow := exporter.Row{"", "First day"}
	lastRow := exporter.Row{rc.MetaName, "Last day"}
	for _, w := range weeks {
		header = append(header, "Week")
		firstRow = append(firstRow, w[0].Format())
		lastRow = append(lastRow, w[len(w)-1].Format())
	}
	for _, row := range []exporter.Row{header, firstRow, lastRow} {
		if err := emit(row); err != nil {
			return err
		}
	}

	for _, mv := range rc.MetaValues {
		ids := eventIDs(rc.GroupEvents(mv))
		if err := emitMetricWeekRows(emit, mv, ids, weeks, facts); err != nil {
			return err
		}
		if err := emit(exporter.Row{}); err != nil {
			return err
		}
	}

	return emitMetricWeekRows(emit, "Total", rc.EventIDs(), weeks, facts)
}

func emitMetricDayRows(emit exporter.EmitFunc, label string, ids []string, days []Day, facts *FactSet) error {
	metrics := []struct {
		name string
		m    AggMap
	}{
		{"Sum of Quotas", facts.Quotas},
		{"Sum of Orders", facts.Orders},
		{"Sum of Checked in", facts.Checkins},
	}
	for i, metric := range metrics {
		row := exporter.Row{"", metric.name}
		if i == 0 {
			row[0] = label
		}
		for _, day := range days {
			row = append(row, metric.m.SumDay(day, ids))
		}
		if err := emit(row); err != nil {
			return err
		}
	}
	return nil
}

func emitMetricWeekRows(emit exporter.EmitFunc, label string, ids []string, weeks [][]Day, facts *FactSet) error {
	metrics := []struct {
		name string
		m    AggMap
	}{
		{"Sum of Quotas", facts.Quotas},
		{"Sum of Orders", facts.Orders},
		{"Sum of Checked in", facts.Checkins},
	}
	for i, metric := range metrics {
		row := exporter.Row{"", metric.name}
		if i == 0 {
			row[0] = label
		}
		for _, w := range weeks {
			row = append(row, metric.m.SumDays(w, ids))
		}
		if err := emit(row); err != nil {
			return err
		}
	}
	return nil
}

func eventIDs(events []models.Event) []string {
	ids := make([]string, len(events))
	for i := range events {
		ids[i] = events[i].ID
	}
	return ids
}
