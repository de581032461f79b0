package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/farmstandhq/farmstand-backend/pkg/enums"
)

// SellerPaymentProfile stores the payment routing for one seller session:
// which provider is active and the credentials needed to construct it.
// Token refresh is handled by an external collaborator; this row only holds
// the current values.
type SellerPaymentProfile struct {
	ID                     uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerSessionID        uuid.UUID             `gorm:"column:seller_session_id;type:uuid;not null;uniqueIndex"`
	Provider               enums.PaymentProvider `gorm:"column:provider;type:text;not null"`
	StripeAccountID        *string               `gorm:"column:stripe_account_id"`
	SquareAccessToken      *string               `gorm:"column:square_access_token"`
	SquareRefreshToken     *string               `gorm:"column:square_refresh_token"`
	SquareTokenExpiresAt   *time.Time            `gorm:"column:square_token_expires_at"`
	SquareLocationID       *string               `gorm:"column:square_location_id"`
	SquareTerminalDeviceID *string               `gorm:"column:square_terminal_device_id"`
	CreatedAt              time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// TokenExpired reports whether the Square access token needs a refresh before
// use.
func (p *SellerPaymentProfile) TokenExpired(now time.Time) bool {
	return p.SquareTokenExpiresAt != nil && now.After(*p.SquareTokenExpiresAt)
}
