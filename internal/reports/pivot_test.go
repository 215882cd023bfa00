package reports

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pretix-unofficial/pretix-capacity-reports/internal/exporter"
	"github.com/pretix-unofficial/pretix-capacity-reports/internal/models"
)

const testMetaName = "AgencyNumber"

func fixtureEvents() []models.Event {
	return []models.Event{
		{
			ID:           "event1",
			OrganizerID:  "org1",
			Name:         "Harbor Tours",
			Slug:         "harbor-tours",
			Timezone:     "UTC",
			HasSubevents: true,
			Meta:         map[string]string{testMetaName: "A1"},
		},
		{
			ID:          "event2",
			OrganizerID: "org1",
			Name:        "Museum Night",
			Slug:        "museum-night",
			Timezone:    "UTC",
			Meta:        map[string]string{testMetaName: "B2"},
		},
	}
}

// fixtureFacts places all of event1's activity on Jan 3 (two timeslots,
// quota 100, three orders, one check-in) and a single quota of 50 for the
// parentless event2 on Jan 5.
func fixtureFacts() *FactSet {
	jan3 := NewDay(2024, time.January, 3)
	jan5 := NewDay(2024, time.January, 5)

	facts := &FactSet{
		Timeslots: AggMap{},
		Quotas:    AggMap{},
		Orders:    AggMap{},
		Checkins:  AggMap{},
	}
	facts.Timeslots.Add(jan3, "event1", 2)
	facts.Quotas.Add(jan3, "event1", 100)
	facts.Orders.Add(jan3, "event1", 3)
	facts.Checkins.Add(jan3, "event1", 1)
	facts.Quotas.Add(jan5, "event2", 50)
	return facts
}

func fixtureContext(t *testing.T, includeParentless bool, metaValues []string) *Context {
	t.Helper()
	form := FormData{
		DateFrom:   NewDay(2024, time.January, 1),
		DateTo:     NewDay(2024, time.January, 7),
		MetaValues: metaValues,
	}
	return NewContext(fixtureEvents(), form, testMetaName, includeParentless)
}

// collectSheet drains one generator, separating data rows from the progress
// marker.
func collectSheet(t *testing.T, fn pivotFunc, rc *Context, facts *FactSet) ([]exporter.Row, int) {
	t.Helper()
	var rows []exporter.Row
	total := -1
	err := fn(rc, facts, func(v interface{}) error {
		switch x := v.(type) {
		case exporter.ProgressSetTotal:
			total = x.Total
		case exporter.Row:
			rows = append(rows, x)
		default:
			t.Fatalf("unexpected stream value %T", v)
		}
		return nil
	})
	require.NoError(t, err)
	return rows, total
}

func TestIterateDateAgencyEventSeriesRowsNeedTimeslots(t *testing.T) {
	rc := fixtureContext(t, false, nil)
	rows, total := collectSheet(t, IterateDateAgencyEvent, rc, fixtureFacts())

	assert.Equal(t, 1, total, "total counts only days the event occurs on")
	require.Len(t, rows, 2, "header plus the single active day")
	assert.Equal(t, exporter.Row{
		"Date of Event", testMetaName, "Event ID", "Number of Timeslots", "Sum of Quota", "Sum of Orders", "Sum of Checked in",
	}, rows[0])
	assert.Equal(t, exporter.Row{
		"01/03/2024", "A1", "harbor-tours", int64(2), int64(100), int64(3), int64(1),
	}, rows[1])
}

func TestIterateDateAgencyEventParentlessPolicy(t *testing.T) {
	rc := fixtureContext(t, true, nil)
	rows, _ := collectSheet(t, IterateDateAgencyEvent, rc, fixtureFacts())

	// event1 still contributes only its active day; the parentless event2
	// now appears on every day of the range.
	require.Len(t, rows, 1+1+7)

	var museumRows []exporter.Row
	for _, row := range rows[1:] {
		if row[2] == "museum-night" {
			museumRows = append(museumRows, row)
		}
	}
	require.Len(t, museumRows, 7)
	assert.Equal(t, exporter.Row{"01/05/2024", "B2", "museum-night", int64(0), int64(50), int64(0), int64(0)}, museumRows[4])
	assert.Equal(t, exporter.Row{"01/01/2024", "B2", "museum-night", int64(0), int64(0), int64(0), int64(0)}, museumRows[0])
}

func TestIterateDateAgencyGroupSums(t *testing.T) {
	rc := fixtureContext(t, false, nil)
	rows, total := collectSheet(t, IterateDateAgency, rc, fixtureFacts())

	assert.Equal(t, 1, total, "total counts only dates with an occurring event")
	require.Len(t, rows, 2)
	assert.Equal(t, exporter.Row{
		"Date of Event", testMetaName, "Number of Events", "Sum of Quotas", "Sum of Orders", "Sum of Checked in",
	}, rows[0])
	assert.Equal(t, exporter.Row{"01/03/2024", "A1", 1, int64(100), int64(3), int64(1)}, rows[1])
}

func TestIterateRowTotalsMatchEmittedRows(t *testing.T) {
	// The announced total drives the progress percentage, so it has to match
	// the data rows that actually follow the header.
	for _, includeParentless := range []bool{false, true} {
		rc := fixtureContext(t, includeParentless, nil)
		facts := fixtureFacts()

		rows, total := collectSheet(t, IterateDateAgencyEvent, rc, facts)
		assert.Equal(t, len(rows)-1, total, "date_agency_event, includeParentless=%v", includeParentless)

		rows, total = collectSheet(t, IterateDateAgency, rc, facts)
		assert.Equal(t, len(rows)-1, total, "date_agency, includeParentless=%v", includeParentless)
	}
}

func TestPivotsWithNoEventsEmitStructureOnly(t *testing.T) {
	form := FormData{
		DateFrom: NewDay(2024, time.January, 1),
		DateTo:   NewDay(2024, time.January, 7),
	}
	rc := NewContext(nil, form, testMetaName, true)
	assert.Equal(t, time.UTC.String(), rc.Location.String())
	assert.Empty(t, rc.MetaValues)

	empty := &FactSet{
		Timeslots: AggMap{},
		Quotas:    AggMap{},
		Orders:    AggMap{},
		Checkins:  AggMap{},
	}

	rows, total := collectSheet(t, IterateDateAgencyEvent, rc, empty)
	require.Len(t, rows, 1, "header only")
	assert.Equal(t, 0, total)

	rows, total = collectSheet(t, IterateDateAgency, rc, empty)
	require.Len(t, rows, 1, "header only")
	assert.Equal(t, 0, total)

	// The matrix sheets still carry their headers and an all-zero Total block.
	rows, _ = collectSheet(t, IterateAgencyDateDay, rc, empty)
	require.Len(t, rows, 1+3)
	require.Len(t, rows[0], 2+7)
	assert.Equal(t, testMetaName, rows[0][0])
	assert.Equal(t, "Total", rows[1][0])
	for _, row := range rows[1:] {
		for _, cell := range row[2:] {
			assert.Equal(t, int64(0), cell)
		}
	}

	rows, _ = collectSheet(t, IterateAgencyDateWeek, rc, empty)
	require.Len(t, rows, 3+3)
	assert.Equal(t, exporter.Row{"", "", "Week", "Week"}, rows[0])
	assert.Equal(t, "Total", rows[3][0])
	for _, row := range rows[3:] {
		for _, cell := range row[2:] {
			assert.Equal(t, int64(0), cell)
		}
	}
}

func TestIterateAgencyDateDayMatrix(t *testing.T) {
	rc := fixtureContext(t, false, nil)
	rows, _ := collectSheet(t, IterateAgencyDateDay, rc, fixtureFacts())

	// Header, two 3-row blocks each followed by a blank separator, and the
	// trailing Total block.
	require.Len(t, rows, 1+4+4+3)

	header := rows[0]
	require.Len(t, header, 2+7)
	assert.Equal(t, testMetaName, header[0])
	assert.Equal(t, "01/01/2024", header[2])
	assert.Equal(t, "01/07/2024", header[8])

	quotaA1 := rows[1]
	assert.Equal(t, "A1", quotaA1[0])
	assert.Equal(t, "Sum of Quotas", quotaA1[1])
	assert.Equal(t, int64(100), quotaA1[4], "Jan 3 column")
	assert.Equal(t, int64(0), quotaA1[2], "inactive day reads zero")

	assert.Empty(t, rows[4], "blank separator after each block")
	assert.Empty(t, rows[8])

	totalQuota := rows[9]
	assert.Equal(t, "Total", totalQuota[0])
	assert.Equal(t, int64(100), totalQuota[4])
	assert.Equal(t, int64(50), totalQuota[6], "Jan 5 column carries event2's quota")
}

func TestIterateAgencyDateDayTotalIgnoresMetaSelection(t *testing.T) {
	// Only agency A1 is selected, yet the Total block still sums over every
	// selected event.
	rc := fixtureContext(t, false, []string{"A1"})
	rows, _ := collectSheet(t, IterateAgencyDateDay, rc, fixtureFacts())

	require.Len(t, rows, 1+4+3)
	totalQuota := rows[5]
	require.Equal(t, "Total", totalQuota[0])
	assert.Equal(t, int64(100), totalQuota[4])
	assert.Equal(t, int64(50), totalQuota[6])
}

func TestIterateAgencyDateWeekMatrix(t *testing.T) {
	form := FormData{
		DateFrom: NewDay(2024, time.January, 1),
		DateTo:   NewDay(2024, time.January, 14),
	}
	rc := NewContext(fixtureEvents(), form, testMetaName, false)
	rows, _ := collectSheet(t, IterateAgencyDateWeek, rc, fixtureFacts())

	// Three header rows, two blocks with separators, Total block.
	require.Len(t, rows, 3+4+4+3)

	assert.Equal(t, exporter.Row{"", "", "Week", "Week", "Week"}, rows[0])
	assert.Equal(t, exporter.Row{"", "First day", "01/01/2024", "01/07/2024", "01/14/2024"}, rows[1])
	assert.Equal(t, exporter.Row{testMetaName, "Last day", "01/06/2024", "01/13/2024", "01/14/2024"}, rows[2])

	quotaA1 := rows[3]
	assert.Equal(t, "A1", quotaA1[0])
	assert.Equal(t, exporter.Row{"A1", "Sum of Quotas", int64(100), int64(0), int64(0)}, quotaA1)

	totalQuota := rows[11]
	assert.Equal(t, exporter.Row{"Total", "Sum of Quotas", int64(150), int64(0), int64(0)}, totalQuota)
}

func TestPivotEmitErrorAborts(t *testing.T) {
	rc := fixtureContext(t, false, nil)
	boom := errors.New("sink closed")

	err := IterateDateAgencyEvent(rc, fixtureFacts(), func(v interface{}) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestContextGroupEventsSortedByName(t *testing.T) {
	events := fixtureEvents()
	events = append(events, models.Event{
		ID:   "event3",
		Name: "Aquarium Visit",
		Meta: map[string]string{testMetaName: "A1"},
	})
	form := FormData{
		DateFrom: NewDay(2024, time.January, 1),
		DateTo:   NewDay(2024, time.January, 7),
	}
	rc := NewContext(events, form, testMetaName, false)

	group := rc.GroupEvents("A1")
	require.Len(t, group, 2)
	assert.Equal(t, "Aquarium Visit", group[0].Name)
	assert.Equal(t, "Harbor Tours", group[1].Name)
	assert.Equal(t, []string{"A1", "B2"}, rc.MetaValues)
}

func TestContextWindowCoversFullLastDay(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	events := []models.Event{{ID: "event1", Timezone: "Europe/Berlin"}}
	form := FormData{
		DateFrom: NewDay(2024, time.January, 1),
		DateTo:   NewDay(2024, time.January, 7),
	}
	rc := NewContext(events, form, testMetaName, false)

	assert.Equal(t, berlin.String(), rc.Location.String())
	assert.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, berlin), rc.WindowStart)
	// Half-open window: the end bound is midnight after the last day.
	assert.Equal(t, time.Date(2024, time.January, 8, 0, 0, 0, 0, berlin), rc.WindowEnd)
}
