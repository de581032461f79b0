package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/farmstandhq/farmstand-backend/pkg/enums"
)

// Order is the central entity of the payment core. TotalCents is fixed at
// creation; Status only ever moves forward through the lifecycle.
type Order struct {
	ID               uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerSessionID  uuid.UUID             `gorm:"column:seller_session_id;type:uuid;not null;index"`
	CustomerID       *uuid.UUID            `gorm:"column:customer_id;type:uuid"`
	Status           enums.OrderStatus     `gorm:"column:status;type:text;not null;default:'PENDING_PAYMENT';index"`
	TotalCents       int64                 `gorm:"column:total_cents;not null"`
	PaymentProvider  enums.PaymentProvider `gorm:"column:payment_provider;type:text;not null;default:''"`
	PaymentSessionID *string               `gorm:"column:payment_session_id;index"`
	PaymentIntentID  *string               `gorm:"column:payment_intent_id;index"`
	ExpiresAt        *time.Time            `gorm:"column:expires_at;index"`
	PaidAt           *time.Time            `gorm:"column:paid_at"`
	Items            []OrderItem           `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// Expired reports whether the order's payment window has passed.
func (o *Order) Expired(now time.Time) bool {
	return o.ExpiresAt != nil && now.After(*o.ExpiresAt)
}
