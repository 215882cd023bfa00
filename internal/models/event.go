package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID           string    `bun:"id,pk"`
	OrganizerID  string    `bun:"organizer_id,notnull"`
	Name         string    `bun:"name,notnull"`
	Slug         string    `bun:"slug,notnull"`
	Timezone     string    `bun:"timezone,notnull"`
	DateFrom     time.Time `bun:"date_from,notnull"`
	HasSubevents bool      `bun:"has_subevents"`

	// Meta holds the organizer-defined metadata attributes for this event,
	// loaded alongside the row from event_meta_values.
	Meta map[string]string `bun:"-"`
}

// MetaValue returns the value of a metadata attribute, or "" when unset.
func (e *Event) MetaValue(name string) string {
	if e.Meta == nil {
		return ""
	}
	return e.Meta[name]
}

// Location resolves the event's IANA time zone, falling back to UTC when the
// stored name is empty or unknown.
func (e *Event) Location() *time.Location {
	if e.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(e.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SubEvent is a single timeslot of an event series. Events with
// HasSubevents=true decompose into these; plain events have none.
type SubEvent struct {
	bun.BaseModel `bun:"table:subevents"`

	ID       string    `bun:"id,pk"`
	EventID  string    `bun:"event_id,notnull"`
	DateFrom time.Time `bun:"date_from,notnull"`
}

type EventMetaValue struct {
	bun.BaseModel `bun:"table:event_meta_values"`

	ID      string `bun:"id,pk"`
	EventID string `bun:"event_id,notnull"`
	Name    string `bun:"name,notnull"`
	Value   string `bun:"value,notnull"`
}

// LogEntry records an action performed on an event. The earliest entry for an
// event marks its creation time.
type LogEntry struct {
	bun.BaseModel `bun:"table:log_entries"`

	ID       string    `bun:"id,pk"`
	EventID  string    `bun:"event_id,notnull"`
	Action   string    `bun:"action,notnull"`
	Datetime time.Time `bun:"datetime,notnull"`
}
