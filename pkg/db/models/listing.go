package models

import (
	"time"

	"github.com/google/uuid"
)

// Listing is a seller's sellable item for one market session. Available and
// reserved quantities are mutated only by the reservation engine and the
// expiry sweeper, both inside single transactions.
type Listing struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerSessionID uuid.UUID `gorm:"column:seller_session_id;type:uuid;not null;index"`
	Name            string    `gorm:"column:name;not null"`
	Unit            string    `gorm:"column:unit;not null;default:'each'"`
	PriceCents      int64     `gorm:"column:price_cents;not null"`
	QtyAvailable    int       `gorm:"column:qty_available;not null;default:0"`
	QtyReserved     int       `gorm:"column:qty_reserved;not null;default:0"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
