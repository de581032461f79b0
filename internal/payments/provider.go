package payments

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/farmstandhq/farmstand-backend/pkg/enums"
)

// SessionStatus is the provider-neutral state of a hosted checkout session.
type SessionStatus string

const (
	SessionStatusOpen     SessionStatus = "open"
	SessionStatusComplete SessionStatus = "complete"
	SessionStatusExpired  SessionStatus = "expired"
	SessionStatusCanceled SessionStatus = "canceled"
)

// Settled reports whether the session finished with a captured payment.
func (s SessionStatus) Settled() bool {
	return s == SessionStatusComplete
}

// CheckoutSessionInput carries everything a provider needs to host a checkout
// page for one order.
type CheckoutSessionInput struct {
	OrderID     uuid.UUID
	AmountCents int64
	Description string
	Email       string
	ExpiresAt   time.Time
	SuccessURL  string
	CancelURL   string
}

// CheckoutSession is the provider-neutral view of a hosted session.
type CheckoutSession struct {
	ID        string
	URL       string
	Status    SessionStatus
	PaymentID string
}

// Provider abstracts a hosted checkout rail. Implementations exist for the
// platform Stripe account and for seller-operated Square accounts; cash and
// terminal settle through dedicated paths instead.
type Provider interface {
	Name() enums.PaymentProvider
	CreateSession(ctx context.Context, input CheckoutSessionInput) (*CheckoutSession, error)
	GetSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
}
