package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	OrderStatusPaid     = "paid"
	OrderStatusPending  = "pending"
	OrderStatusExpired  = "expired"
	OrderStatusCanceled = "canceled"
)

type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID        string    `bun:"id,pk"`
	EventID   string    `bun:"event_id,notnull"`
	Status    string    `bun:"status,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

// OrderPosition is a single line item of an order. SubEventID and VariationID
// are empty for plain (non-series, non-variation) positions.
type OrderPosition struct {
	bun.BaseModel `bun:"table:order_positions"`

	ID          string `bun:"id,pk"`
	OrderID     string `bun:"order_id,notnull"`
	ItemID      string `bun:"item_id,notnull"`
	VariationID string `bun:"variation_id,nullzero"`
	SubEventID  string `bun:"subevent_id,nullzero"`
}

type Checkin struct {
	bun.BaseModel `bun:"table:checkins"`

	ID         string    `bun:"id,pk"`
	PositionID string    `bun:"position_id,notnull"`
	Datetime   time.Time `bun:"datetime,notnull"`
}
