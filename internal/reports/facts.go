package reports

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	// ProductTokenSep joins a product name with a variation value in the
	// single-choice product filter.
	ProductTokenSep = "#!#"
	// ProductTokenPlain is the variation sentinel for products without
	// variations.
	ProductTokenPlain = "-"
)

// ProductToken encodes a product/variation choice as a filter token.
func ProductToken(itemName, variationValue string) string {
	if variationValue == "" {
		variationValue = ProductTokenPlain
	}
	return itemName + ProductTokenSep + variationValue
}

// SplitProductToken is the inverse of ProductToken.
func SplitProductToken(token string) (itemName, variationValue string, err error) {
	name, value, found := strings.Cut(token, ProductTokenSep)
	if !found {
		return "", "", fmt.Errorf("malformed product token %q", token)
	}
	return name, value, nil
}

// FactQuery constrains one fact-provider read. The window is half-open:
// [WindowStart, WindowEnd). MetaValues nil means no metadata filter;
// ProductToken "" means all products.
type FactQuery struct {
	EventIDs     []string
	WindowStart  time.Time
	WindowEnd    time.Time
	ProductToken string
	MetaName     string
	MetaValues   []string
}

// FactProvider supplies the four read-only fact streams. Each method is
// called exactly once per report invocation; results are shared across all
// sheets.
type FactProvider interface {
	// TimeslotRows returns one row per subevent in the window.
	TimeslotRows(ctx context.Context, q FactQuery) ([]FactRow, error)
	// QuotaRows returns one row per quota with a non-NULL size; Value is the
	// size. Unlimited quotas are excluded before summation, they do not
	// count as zero.
	QuotaRows(ctx context.Context, q FactQuery) ([]FactRow, error)
	// OrderRows returns one row per order position whose order is paid or
	// pending.
	OrderRows(ctx context.Context, q FactQuery) ([]FactRow, error)
	// CheckinRows is OrderRows restricted to positions with at least one
	// check-in.
	CheckinRows(ctx context.Context, q FactQuery) ([]FactRow, error)
}

// FactSet holds the four fully materialized aggregation maps of one report
// invocation.
type FactSet struct {
	Timeslots AggMap
	Quotas    AggMap
	Orders    AggMap
	Checkins  AggMap
}

// LoadFacts issues the four provider reads and folds each result into its
// day-keyed map. Any provider failure aborts the whole load.
func LoadFacts(ctx context.Context, p FactProvider, q FactQuery, loc *time.Location) (*FactSet, error) {
	timeslots, err := p.TimeslotRows(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("timeslot counts: %w", err)
	}
	quotas, err := p.QuotaRows(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("quota sums: %w", err)
	}
	orders, err := p.OrderRows(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("order counts: %w", err)
	}
	checkins, err := p.CheckinRows(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("check-in counts: %w", err)
	}

	return &FactSet{
		Timeslots: BuildAggMap(timeslots, loc),
		Quotas:    BuildAggMap(quotas, loc),
		Orders:    BuildAggMap(orders, loc),
		Checkins:  BuildAggMap(checkins, loc),
	}, nil
}
