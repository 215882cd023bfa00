package reports

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pretix-unofficial/pretix-capacity-reports/internal/exporter"
)

// CreationReport aggregates capacity by the day an event was created (its
// earliest log entry) rather than the day it takes place. The sums are
// per-event lifetime totals, not day-keyed maps.
type CreationReport struct {
	Store    Store
	MetaName string
}

func (r *CreationReport) Identifier() string {
	return "capacity_creation"
}

func (r *CreationReport) VerboseName() string {
	return "Capacity creation"
}

func (r *CreationReport) FormFields(ctx context.Context, organizerID string, eventIDs []string) ([]FormField, error) {
	events, err := r.Store.Events(ctx, organizerID, eventIDs)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	loc := time.UTC
	if len(events) > 0 {
		loc = events[0].Location()
	}

	fields := dateFields(time.Now(), loc)

	values, err := r.Store.MetaValues(ctx, organizerID, r.MetaName)
	if err != nil {
		return nil, fmt.Errorf("load %s values: %w", r.MetaName, err)
	}
	choices := make([]Choice, len(values))
	for i, v := range values {
		choices[i] = Choice{Value: v, Label: v}
	}
	fields = append(fields, FormField{
		Name:    "meta:" + r.MetaName,
		Type:    "multiple-choice",
		Label:   r.MetaName,
		Choices: choices,
	})
	return fields, nil
}

// Prepare runs the per-event creation query and pre-aggregates the rows by
// (creation day, metadata value).
func (r *CreationReport) Prepare(ctx context.Context, req RunRequest) (exporter.MultiSheetSource, error) {
	events, err := r.Store.Events(ctx, req.Organizer, req.EventIDs)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}

	loc := time.UTC
	if len(events) > 0 {
		loc = events[0].Location()
	}
	form, err := ParseForm(req, time.Now(), loc)
	if err != nil {
		return nil, err
	}

	metaValues := form.MetaValues
	if metaValues == nil {
		metaValues, err = r.Store.MetaValues(ctx, req.Organizer, r.MetaName)
		if err != nil {
			return nil, fmt.Errorf("load %s values: %w", r.MetaName, err)
		}
	}

	stats, err := r.Store.CreationStats(ctx, CreationQuery{
		OrganizerID: req.Organizer,
		EventIDs:    req.EventIDs,
		WindowStart: form.DateFrom.Time(loc),
		WindowEnd:   form.DateTo.Next().Time(loc),
		MetaName:    r.MetaName,
		MetaValues:  metaValues,
	})
	if err != nil {
		return nil, fmt.Errorf("creation stats: %w", err)
	}

	return &creationRun{
		report:   r,
		dateFrom: form.DateFrom,
		dateTo:   form.DateTo,
		rows:     groupCreationStats(stats, loc),
	}, nil
}

type creationGroupRow struct {
	day      Day
	value    string
	events   int64
	quotas   int64
	orders   int64
	checkins int64
}

// groupCreationStats buckets the per-event stats by (creation day, metadata
// value), ordered by day then value.
func groupCreationStats(stats []EventCreationStats, loc *time.Location) []creationGroupRow {
	type groupKey struct {
		day   Day
		value string
	}
	groups := map[groupKey]*creationGroupRow{}
	for _, s := range stats {
		key := groupKey{day: DayOf(s.CreatedAt, loc), value: s.MetaValue}
		row, ok := groups[key]
		if !ok {
			row = &creationGroupRow{day: key.day, value: key.value}
			groups[key] = row
		}
		row.events++
		row.quotas += s.QuotaSum
		row.orders += s.OrderCount
		row.checkins += s.CheckinCount
	}

	rows := make([]creationGroupRow, 0, len(groups))
	for _, row := range groups {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].day != rows[j].day {
			return rows[j].day.After(rows[i].day)
		}
		return rows[i].value < rows[j].value
	})
	return rows
}

type creationRun struct {
	report   *CreationReport
	dateFrom Day
	dateTo   Day
	rows     []creationGroupRow
}

func (run *creationRun) Filename() string {
	return fmt.Sprintf("%s_%s_%s", run.report.Identifier(), run.dateFrom, run.dateTo)
}

func (run *creationRun) Sheets() []exporter.Sheet {
	return []exporter.Sheet{
		{Key: string(SheetDateAgency), Label: "By date and agency"},
	}
}

func (run *creationRun) SheetHints(key string) exporter.Hints {
	if SheetKey(key) == SheetDateAgency {
		return exporter.Hints{
			FreezePane:   "A2",
			ColumnWidths: []float64{20, 30, 15, 15, 15, 15},
		}
	}
	return exporter.Hints{}
}

func (run *creationRun) IterateSheet(ctx context.Context, key string, emit exporter.EmitFunc) error {
	if SheetKey(key) != SheetDateAgency {
		return fmt.Errorf("sheet %q is not registered for %s", key, run.report.Identifier())
	}

	err := emit(exporter.Row{
		"Event created", run.report.MetaName, "Number of Events", "Sum of Quotas", "Sum of Orders", "Sum of Checked in",
	})
	if err != nil {
		return err
	}
	if err := emit(exporter.ProgressSetTotal{Total: len(run.rows)}); err != nil {
		return err
	}

	for _, row := range run.rows {
		err := emit(exporter.Row{
			row.day.Format(),
			row.value,
			row.events,
			row.quotas,
			row.orders,
			row.checkins,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
