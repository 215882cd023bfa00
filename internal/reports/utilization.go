package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/pretix-unofficial/pretix-capacity-reports/internal/exporter"
)

// SheetKey identifies one output sheet of a report. The set of keys is a
// closed enumeration; every key maps explicitly to its generator.
type SheetKey string

const (
	SheetDateAgencyEvent SheetKey = "date_agency_event"
	SheetDateAgency      SheetKey = "date_agency"
	SheetAgencyDateDay   SheetKey = "agency_date_day"
	SheetAgencyDateWeek  SheetKey = "agency_date_week"
)

type pivotFunc func(rc *Context, facts *FactSet, emit exporter.EmitFunc) error

// utilizationPivots binds each sheet key to its generator. Lookups against
// this map replace any name-based dispatch: an unknown key is a programming
// error and fails the run.
var utilizationPivots = map[SheetKey]pivotFunc{
	SheetDateAgencyEvent: IterateDateAgencyEvent,
	SheetDateAgency:      IterateDateAgency,
	SheetAgencyDateDay:   IterateAgencyDateDay,
	SheetAgencyDateWeek:  IterateAgencyDateWeek,
}

// UtilizationReport is the capacity & utilization exporter: four pivot
// sheets over the same four fact streams.
type UtilizationReport struct {
	Store    Store
	MetaName string
	// IncludeParentless resolves whether events without subevents appear in
	// the per-date sheets; both historical behaviors remain available.
	IncludeParentless bool
}

func (r *UtilizationReport) Identifier() string {
	return "capacity_utilization"
}

func (r *UtilizationReport) VerboseName() string {
	return "Capacity & Utilization"
}

func (r *UtilizationReport) sheets() []exporter.Sheet {
	return []exporter.Sheet{
		{Key: string(SheetDateAgencyEvent), Label: "By date, agency, and event"},
		{Key: string(SheetDateAgency), Label: "By date and agency"},
		{Key: string(SheetAgencyDateDay), Label: "By agency and day"},
		{Key: string(SheetAgencyDateWeek), Label: "By agency and week"},
	}
}

// FormFields returns the configuration surface for this report: the date
// range, the product/variation choice and the metadata value selection.
func (r *UtilizationReport) FormFields(ctx context.Context, organizerID string, eventIDs []string) ([]FormField, error) {
	events, err := r.Store.Events(ctx, organizerID, eventIDs)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	loc := time.UTC
	if len(events) > 0 {
		loc = events[0].Location()
	}

	fields := dateFields(time.Now(), loc)

	products, err := r.Store.ProductChoices(ctx, organizerID, eventIDs)
	if err != nil {
		return nil, fmt.Errorf("load product choices: %w", err)
	}
	fields = append(fields, FormField{
		Name:    "product_name",
		Type:    "choice",
		Label:   "Product and variation",
		Choices: append([]Choice{{Value: "", Label: "All"}}, products...),
	})

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

// Prepare resolves the run context and loads all four fact streams once. The
// returned source can then stream every sheet without further store reads.
func (r *UtilizationReport) Prepare(ctx context.Context, req RunRequest) (exporter.MultiSheetSource, error) {
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

	rc := NewContext(events, form, r.MetaName, r.IncludeParentless)
	facts, err := LoadFacts(ctx, r.Store, rc.FactQuery(), rc.Location)
	if err != nil {
		return nil, err
	}

	return &utilizationRun{report: r, rc: rc, facts: facts}, nil
}

// utilizationRun is one prepared invocation: immutable context plus the
// materialized fact set, shared across all four sheets.
type utilizationRun struct {
	report *UtilizationReport
	rc     *Context
	facts  *FactSet
}

func (run *utilizationRun) Filename() string {
	return fmt.Sprintf("%s_%s_%s", run.report.Identifier(), run.rc.DateFrom, run.rc.DateTo)
}

func (run *utilizationRun) Sheets() []exporter.Sheet {
	return run.report.sheets()
}

func (run *utilizationRun) SheetHints(key string) exporter.Hints {
	switch SheetKey(key) {
	case SheetDateAgencyEvent:
		return exporter.Hints{
			FreezePane:   "A2",
			ColumnWidths: []float64{20, 30, 20, 15, 15, 15, 15},
		}
	case SheetDateAgency:
		return exporter.Hints{
			FreezePane:   "A2",
			ColumnWidths: []float64{20, 30, 15, 15, 15, 15},
		}
	case SheetAgencyDateDay:
		return exporter.Hints{
			FreezePane:   "C2",
			ColumnWidths: matrixWidths(len(run.rc.Days())),
		}
	case SheetAgencyDateWeek:
		return exporter.Hints{
			FreezePane:   "C4",
			ColumnWidths: matrixWidths(len(run.rc.Weeks())),
		}
	}
	return exporter.Hints{}
}

func (run *utilizationRun) IterateSheet(ctx context.Context, key string, emit exporter.EmitFunc) error {
	pivot, ok := utilizationPivots[SheetKey(key)]
	if !ok {
		return fmt.Errorf("sheet %q is not registered for %s", key, run.report.Identifier())
	}
	return pivot(run.rc, run.facts, emit)
}

func matrixWidths(columns int) []float64 {
	widths := make([]float64, 2+columns)
	widths[0] = 30
	widths[1] = 30
	for i := 0; i < columns; i++ {
		widths[2+i] = 15
	}
	return widths
}
