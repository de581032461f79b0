package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderItem is an immutable line snapshot taken when the order is created.
type OrderItem struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	ListingID      uuid.UUID `gorm:"column:listing_id;type:uuid;not null"`
	Name           string    `gorm:"column:name;not null"`
	Unit           string    `gorm:"column:unit;not null"`
	UnitPriceCents int64     `gorm:"column:unit_price_cents;not null"`
	Qty            int       `gorm:"column:qty;not null"`
	LineTotalCents int64     `gorm:"column:line_total_cents;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}
