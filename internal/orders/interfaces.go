package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/farmstandhq/farmstand-backend/pkg/db/models"
	"github.com/farmstandhq/farmstand-backend/pkg/enums"
)

// MarkPaidParams carries the fields written when an order transitions to
// PAID. Provider and PaymentIntentID are optional corrections learned from
// the payment signal.
type MarkPaidParams struct {
	OrderID         uuid.UUID
	Provider        enums.PaymentProvider
	PaymentIntentID string
	PaidAt          time.Time
}

// Repository defines persistence operations for orders. All status writes go
// through conditional updates so concurrent confirmations produce exactly one
// winner.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByPaymentSession(ctx context.Context, provider enums.PaymentProvider, sessionID string) (*models.Order, error)
	FindByAnyPaymentSession(ctx context.Context, sessionID string) (*models.Order, error)
	FindByPaymentIntent(ctx context.Context, intentID string) (*models.Order, error)
	ListExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
	MarkPaid(ctx context.Context, params MarkPaidParams) (bool, error)
	CompletePaid(ctx context.Context, orderID uuid.UUID) (bool, error)
	MarkExpired(ctx context.Context, orderID uuid.UUID) (bool, error)
	UpdatePaymentSession(ctx context.Context, orderID uuid.UUID, provider enums.PaymentProvider, sessionID string) error
}
