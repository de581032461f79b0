package models

import (
	"time"

	"github.com/google/uuid"
)

// SellerSession is one seller's stall at one market date. Orders and listings
// hang off the session rather than the seller directly.
type SellerSession struct {
	ID             uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerName     string                `gorm:"column:seller_name;not null"`
	MarketName     string                `gorm:"column:market_name;not null"`
	MarketDate     time.Time             `gorm:"column:market_date;not null"`
	PaymentProfile *SellerPaymentProfile `gorm:"foreignKey:SellerSessionID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
