package models

import (
	"github.com/uptrace/bun"
)

// Quota caps availability for a set of products (and variations) on an event
// or one of its subevents. Size is NULL for unlimited quotas; unlimited
// quotas never contribute to capacity sums.
type Quota struct {
	bun.BaseModel `bun:"table:quotas"`

	ID         string `bun:"id,pk"`
	EventID    string `bun:"event_id,notnull"`
	SubEventID string `bun:"subevent_id,nullzero"`
	Name       string `bun:"name"`
	Size       *int64 `bun:"size"`
}

type QuotaItem struct {
	bun.BaseModel `bun:"table:quota_items"`

	QuotaID string `bun:"quota_id,notnull"`
	ItemID  string `bun:"item_id,notnull"`
}

type QuotaVariation struct {
	bun.BaseModel `bun:"table:quota_variations"`

	QuotaID     string `bun:"quota_id,notnull"`
	VariationID string `bun:"variation_id,notnull"`
}

type Item struct {
	bun.BaseModel `bun:"table:items"`

	ID      string `bun:"id,pk"`
	EventID string `bun:"event_id,notnull"`
	Name    string `bun:"name,notnull"`
}

type ItemVariation struct {
	bun.BaseModel `bun:"table:item_variations"`

	ID     string `bun:"id,pk"`
	ItemID string `bun:"item_id,notnull"`
	Value  string `bun:"value,notnull"`
}
