package reports

import (
	"context"
	"time"

	"github.com/pretix-unofficial/pretix-capacity-reports/internal/models"
)

// Store is the read-only view of the host platform's data that reports are
// generated from. A single implementation backs every registered report.
type Store interface {
	FactProvider

	// Events fetches the selected event snapshot with metadata attributes
	// loaded. An empty eventIDs slice selects every event of the organizer.
	Events(ctx context.Context, organizerID string, eventIDs []string) ([]models.Event, error)

	// ProductChoices lists the distinct product/variation tokens across the
	// selected events, sorted by label.
	ProductChoices(ctx context.Context, organizerID string, eventIDs []string) ([]Choice, error)

	// MetaValues lists the distinct values of one metadata attribute across
	// the organizer's events, sorted.
	MetaValues(ctx context.Context, organizerID, metaName string) ([]string, error)

	// CreationStats returns per-event lifetime sums for events created
	// inside the query window, for the capacity creation report.
	CreationStats(ctx context.Context, q CreationQuery) ([]EventCreationStats, error)
}

// CreationQuery constrains the capacity creation read. The window applies to
// the event's creation time (its earliest log entry), not its occurrence
// date.
type CreationQuery struct {
	OrganizerID string
	EventIDs    []string
	WindowStart time.Time
	WindowEnd   time.Time
	MetaName    string
	MetaValues  []string
}

// EventCreationStats carries one event's creation time, grouping value and
// lifetime sums, computed as direct per-event subqueries.
type EventCreationStats struct {
	EventID      string
	CreatedAt    time.Time
	MetaValue    string
	QuotaSum     int64
	OrderCount   int64
	CheckinCount int64
}
