package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/uptrace/bun"

	"github.com/pretix-unofficial/pretix-capacity-reports/internal/models"
	"github.com/pretix-unofficial/pretix-capacity-reports/internal/reports"
)

// Store implements reports.Store on the platform database. All queries are
// read-only; the report core treats the results as an immutable snapshot.
type Store struct {
	db *bun.DB
}

// New creates a new report store.
func New(db *bun.DB) *Store {
	return &Store{db: db}
}

// Events fetches the selected events with their metadata attributes loaded.
// An empty eventIDs selects every event of the organizer. Events are
// returned sorted by name.
func (s *Store) Events(ctx context.Context, organizerID string, eventIDs []string) ([]models.Event, error) {
	var events []models.Event
	query := s.db.NewSelect().
		Model(&events).
		Where("organizer_id = ?", organizerID).
		Order("name ASC")
	if len(eventIDs) > 0 {
		query = query.Where("id IN (?)", bun.In(eventIDs))
	}
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return events, nil
	}

	ids := make([]string, len(events))
	for i := range events {
		ids[i] = events[i].ID
	}
	var metaValues []models.EventMetaValue
	err := s.db.NewSelect().
		Model(&metaValues).
		Where("event_id IN (?)", bun.In(ids)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	byEvent := make(map[string]map[string]string, len(events))
	for _, mv := range metaValues {
		if byEvent[mv.EventID] == nil {
			byEvent[mv.EventID] = map[string]string{}
		}
		byEvent[mv.EventID][mv.Name] = mv.Value
	}
	for i := range events {
		events[i].Meta = byEvent[events[i].ID]
	}
	return events, nil
}

// MetaValues returns the distinct values of one metadata attribute across
// the organizer's events, sorted ascending.
func (s *Store) MetaValues(ctx context.Context, organizerID, metaName string) ([]string, error) {
	var values []string
	err := s.db.NewRaw(`
		SELECT DISTINCT emv.value
		FROM event_meta_values emv
		JOIN events e ON e.id = emv.event_id
		WHERE e.organizer_id = ? AND emv.name = ?
		ORDER BY emv.value
	`, organizerID, metaName).Scan(ctx, &values)
	if err != nil {
		return nil, err
	}
	return values, nil
}

// ProductChoices lists the distinct product/variation filter tokens across
// the selected events: one per variation-less product and one per variation,
// sorted by label.
func (s *Store) ProductChoices(ctx context.Context, organizerID string, eventIDs []string) ([]reports.Choice, error) {
	eventFilter, eventArgs := eventScope("i.event_id", organizerID, eventIDs)

	var plainNames []string
	err := s.db.NewRaw(fmt.Sprintf(`
		SELECT DISTINCT i.name
		FROM items i
		WHERE %s
		  AND NOT EXISTS (SELECT 1 FROM item_variations iv WHERE iv.item_id = i.id)
	`, eventFilter), eventArgs...).Scan(ctx, &plainNames)
	if err != nil {
		return nil, err
	}

	type variationRow struct {
		Name  string `bun:"name"`
		Value string `bun:"value"`
	}
	var variations []variationRow
	err = s.db.NewRaw(fmt.Sprintf(`
		SELECT DISTINCT i.name AS name, iv.value AS value
		FROM item_variations iv
		JOIN items i ON i.id = iv.item_id
		WHERE %s
	`, eventFilter), eventArgs...).Scan(ctx, &variations)
	if err != nil {
		return nil, err
	}

	choices := make([]reports.Choice, 0, len(plainNames)+len(variations))
	for _, name := range plainNames {
		choices = append(choices, reports.Choice{
			Value: reports.ProductToken(name, ""),
			Label: name,
		})
	}
	for _, v := range variations {
		choices = append(choices, reports.Choice{
			Value: reports.ProductToken(v.Name, v.Value),
			Label: v.Name + " – " + v.Value,
		})
	}
	sort.Slice(choices, func(i, j int) bool { return choices[i].Label < choices[j].Label })
	return choices, nil
}

type factRowRaw struct {
	WhenTS  time.Time `bun:"when_ts"`
	EventID string    `bun:"event_id"`
	Value   int64     `bun:"value"`
}

// TimeslotRows returns one row per subevent starting inside the window.
func (s *Store) TimeslotRows(ctx context.Context, q reports.FactQuery) ([]reports.FactRow, error) {
	if len(q.EventIDs) == 0 {
		return nil, nil
	}

	sqlText := `
		SELECT se.date_from AS when_ts, se.event_id AS event_id, 1 AS value
		FROM subevents se
		WHERE se.event_id IN (?)
		  AND se.date_from >= ? AND se.date_from < ?
	`
	args := []interface{}{bun.In(q.EventIDs), q.WindowStart, q.WindowEnd}

	sqlText, args = appendMetaFilter(sqlText, args, "se.event_id", q)
	if q.ProductToken != "" {
		// A subevent matches the product filter when a quota scoped to it
		// covers the product or variation.
		sqlText += `
		  AND (
		    EXISTS (
		      SELECT 1 FROM quotas q
		      JOIN quota_items qi ON qi.quota_id = q.id
		      JOIN items i ON i.id = qi.item_id
		      WHERE q.subevent_id = se.id
		        AND NOT EXISTS (SELECT 1 FROM item_variations iv WHERE iv.item_id = i.id)
		        AND i.name || '#!#-' = ?
		    )
		    OR EXISTS (
		      SELECT 1 FROM quotas q
		      JOIN quota_variations qv ON qv.quota_id = q.id
		      JOIN item_variations iv ON iv.id = qv.variation_id
		      JOIN items i ON i.id = iv.item_id
		      WHERE q.subevent_id = se.id
		        AND i.name || '#!#' || iv.value = ?
		    )
		  )
		`
		args = append(args, q.ProductToken, q.ProductToken)
	}

	return s.factRows(ctx, sqlText, args)
}

// QuotaRows returns one row per limited quota in the window; Value carries
// the quota size. Quotas with a NULL size are unlimited and excluded here,
// before any summation.
func (s *Store) QuotaRows(ctx context.Context, q reports.FactQuery) ([]reports.FactRow, error) {
	if len(q.EventIDs) == 0 {
		return nil, nil
	}

	sqlText := `
		SELECT COALESCE(se.date_from, e.date_from) AS when_ts, q.event_id AS event_id, q.size AS value
		FROM quotas q
		JOIN events e ON e.id = q.event_id
		LEFT JOIN subevents se ON se.id = q.subevent_id
		WHERE q.event_id IN (?)
		  AND q.size IS NOT NULL
		  AND COALESCE(se.date_from, e.date_from) >= ?
		  AND COALESCE(se.date_from, e.date_from) < ?
	`
	args := []interface{}{bun.In(q.EventIDs), q.WindowStart, q.WindowEnd}

	sqlText, args = appendMetaFilter(sqlText, args, "q.event_id", q)
	if q.ProductToken != "" {
		sqlText += `
		  AND (
		    EXISTS (
		      SELECT 1 FROM quota_items qi
		      JOIN items i ON i.id = qi.item_id
		      WHERE qi.quota_id = q.id
		        AND NOT EXISTS (SELECT 1 FROM item_variations iv WHERE iv.item_id = i.id)
		        AND i.name || '#!#-' = ?
		    )
		    OR EXISTS (
		      SELECT 1 FROM quota_variations qv
		      JOIN item_variations iv ON iv.id = qv.variation_id
		      JOIN items i ON i.id = iv.item_id
		      WHERE qv.quota_id = q.id
		        AND i.name || '#!#' || iv.value = ?
		    )
		  )
		`
		args = append(args, q.ProductToken, q.ProductToken)
	}

	return s.factRows(ctx, sqlText, args)
}

// OrderRows returns one row per order position whose order is paid or
// pending and whose effective date falls inside the window.
func (s *Store) OrderRows(ctx context.Context, q reports.FactQuery) ([]reports.FactRow, error) {
	return s.positionRows(ctx, q, false)
}

// CheckinRows is OrderRows restricted to positions with at least one
// check-in record.
func (s *Store) CheckinRows(ctx context.Context, q reports.FactQuery) ([]reports.FactRow, error) {
	return s.positionRows(ctx, q, true)
}

func (s *Store) positionRows(ctx context.Context, q reports.FactQuery, hasCheckin bool) ([]reports.FactRow, error) {
	if len(q.EventIDs) == 0 {
		return nil, nil
	}

	sqlText := `
		SELECT COALESCE(se.date_from, e.date_from) AS when_ts, o.event_id AS event_id, 1 AS value
		FROM order_positions op
		JOIN orders o ON o.id = op.order_id
		JOIN events e ON e.id = o.event_id
		LEFT JOIN subevents se ON se.id = op.subevent_id
		WHERE o.event_id IN (?)
		  AND o.status IN (?, ?)
		  AND COALESCE(se.date_from, e.date_from) >= ?
		  AND COALESCE(se.date_from, e.date_from) < ?
	`
	args := []interface{}{
		bun.In(q.EventIDs),
		models.OrderStatusPaid, models.OrderStatusPending,
		q.WindowStart, q.WindowEnd,
	}

	sqlText, args = appendMetaFilter(sqlText, args, "o.event_id", q)
	if hasCheckin {
		sqlText += `
		  AND EXISTS (SELECT 1 FROM checkins c WHERE c.position_id = op.id)
		`
	}
	if q.ProductToken != "" {
		sqlText += `
		  AND EXISTS (
		    SELECT 1 FROM items i
		    LEFT JOIN item_variations iv ON iv.id = op.variation_id
		    WHERE i.id = op.item_id
		      AND i.name || '#!#' || COALESCE(iv.value, '-') = ?
		  )
		`
		args = append(args, q.ProductToken)
	}

	return s.factRows(ctx, sqlText, args)
}

func (s *Store) factRows(ctx context.Context, sqlText string, args []interface{}) ([]reports.FactRow, error) {
	var raw []factRowRaw
	if err := s.db.NewRaw(sqlText, args...).Scan(ctx, &raw); err != nil {
		return nil, err
	}
	rows := make([]reports.FactRow, len(raw))
	for i, r := range raw {
		rows[i] = reports.FactRow{When: r.WhenTS, EventID: r.EventID, Value: r.Value}
	}
	return rows, nil
}

// CreationStats computes per-event lifetime sums for events whose creation
// time (earliest log entry) falls inside the window.
func (s *Store) CreationStats(ctx context.Context, q reports.CreationQuery) ([]reports.EventCreationStats, error) {
	type creationRaw struct {
		EventID      string        `bun:"event_id"`
		CreatedAt    time.Time     `bun:"created_at"`
		MetaValue    string        `bun:"meta_value"`
		QuotaSum     sql.NullInt64 `bun:"quota_sum"`
		OrderCount   int64         `bun:"order_count"`
		CheckinCount int64         `bun:"checkin_count"`
	}

	sqlText := `
		SELECT
			e.id AS event_id,
			(SELECT MIN(l.datetime) FROM log_entries l WHERE l.event_id = e.id) AS created_at,
			COALESCE((SELECT MAX(emv.value) FROM event_meta_values emv
				WHERE emv.event_id = e.id AND emv.name = ?), '') AS meta_value,
			(SELECT SUM(q.size) FROM quotas q
				WHERE q.event_id = e.id AND q.size IS NOT NULL) AS quota_sum,
			(SELECT COUNT(*) FROM order_positions op
				JOIN orders o ON o.id = op.order_id
				WHERE o.event_id = e.id AND o.status IN (?, ?)) AS order_count,
			(SELECT COUNT(*) FROM order_positions op
				JOIN orders o ON o.id = op.order_id
				WHERE o.event_id = e.id AND o.status IN (?, ?)
				  AND EXISTS (SELECT 1 FROM checkins c WHERE c.position_id = op.id)) AS checkin_count
		FROM events e
		WHERE e.organizer_id = ?
		  AND (SELECT MIN(l.datetime) FROM log_entries l WHERE l.event_id = e.id) >= ?
		  AND (SELECT MIN(l.datetime) FROM log_entries l WHERE l.event_id = e.id) < ?
	`
	args := []interface{}{
		q.MetaName,
		models.OrderStatusPaid, models.OrderStatusPending,
		models.OrderStatusPaid, models.OrderStatusPending,
		q.OrganizerID,
		q.WindowStart, q.WindowEnd,
	}

	if len(q.EventIDs) > 0 {
		sqlText += `
		  AND e.id IN (?)
		`
		args = append(args, bun.In(q.EventIDs))
	}
	if len(q.MetaValues) > 0 {
		sqlText += `
		  AND COALESCE((SELECT MAX(emv.value) FROM event_meta_values emv
			WHERE emv.event_id = e.id AND emv.name = ?), '') IN (?)
		`
		args = append(args, q.MetaName, bun.In(q.MetaValues))
	}
	sqlText += `
		ORDER BY created_at, meta_value
	`

	var raw []creationRaw
	if err := s.db.NewRaw(sqlText, args...).Scan(ctx, &raw); err != nil {
		return nil, err
	}

	stats := make([]reports.EventCreationStats, len(raw))
	for i, r := range raw {
		stats[i] = reports.EventCreationStats{
			EventID:      r.EventID,
			CreatedAt:    r.CreatedAt,
			MetaValue:    r.MetaValue,
			QuotaSum:     r.QuotaSum.Int64,
			OrderCount:   r.OrderCount,
			CheckinCount: r.CheckinCount,
		}
	}
	return stats, nil
}

// appendMetaFilter restricts a fact query to events carrying one of the
// selected metadata values. An empty selection means no filter.
func appendMetaFilter(sqlText string, args []interface{}, eventIDColumn string, q reports.FactQuery) (string, []interface{}) {
	if len(q.MetaValues) == 0 {
		return sqlText, args
	}
	sqlText += fmt.Sprintf(`
	  AND EXISTS (
	    SELECT 1 FROM event_meta_values emv
	    WHERE emv.event_id = %s AND emv.name = ? AND emv.value IN (?)
	  )
	`, eventIDColumn)
	args = append(args, q.MetaName, bun.In(q.MetaValues))
	return sqlText, args
}

func eventScope(eventIDColumn, organizerID string, eventIDs []string) (string, []interface{}) {
	if len(eventIDs) > 0 {
		return eventIDColumn + " IN (?)", []interface{}{bun.In(eventIDs)}
	}
	return eventIDColumn + " IN (SELECT id FROM events WHERE organizer_id = ?)", []interface{}{organizerID}
}
