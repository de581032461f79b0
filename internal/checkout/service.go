package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/farmstandhq/farmstand-backend/internal/orders"
	"github.com/farmstandhq/farmstand-backend/internal/payments"
	"github.com/farmstandhq/farmstand-backend/internal/sellers"
	"github.com/farmstandhq/farmstand-backend/pkg/config"
	"github.com/farmstandhq/farmstand-backend/pkg/db/models"
	"github.com/farmstandhq/farmstand-backend/pkg/enums"
	pkgerrors "github.com/farmstandhq/farmstand-backend/pkg/errors"
	"github.com/farmstandhq/farmstand-backend/pkg/logger"
	"github.com/farmstandhq/farmstand-backend/pkg/money"
)

type providerFactory interface {
	ProviderFor(cfg *sellers.PaymentConfig) (payments.Provider, error)
}

type sellerConfigResolver interface {
	ResolvePaymentConfig(ctx context.Context, sellerSessionID uuid.UUID) (*sellers.PaymentConfig, error)
}

type paymentConfirmer interface {
	ConfirmPaid(ctx context.Context, params orders.MarkPaidParams) error
}

// Service orchestrates checkout: hosted session creation/reuse for the two
// hosted providers, plus the synchronous cash and device-SDK confirmation
// paths that never touch a session.
type Service interface {
	CreateOrder(ctx context.Context, input ReservationInput) (*CreateOrderResponse, error)
	CreateOrGetSession(ctx context.Context, orderID uuid.UUID, email string) (*SessionResponse, error)
	PayCash(ctx context.Context, orderID uuid.UUID, cashReceivedCents int64) (*CashPaymentResponse, error)
	CompleteNativePayment(ctx context.Context, orderID uuid.UUID, providerPaymentID string) (*NativePaymentResponse, error)
}

type service struct {
	repo        orders.Repository
	reservation ReservationEngine
	confirmer   paymentConfirmer
	sellers     sellerConfigResolver
	providers   providerFactory
	site        config.SiteConfig
	logger      *logger.Logger
	now         func() time.Time
}

// ServiceParams carries the checkout service dependencies.
type ServiceParams struct {
	Repo        orders.Repository
	Reservation ReservationEngine
	Confirmer   paymentConfirmer
	Sellers     sellerConfigResolver
	Providers   providerFactory
	Site        config.SiteConfig
	Logger      *logger.Logger
}

// NewService builds the checkout service.
func NewService(p ServiceParams) (Service, error) {
	if p.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if p.Reservation == nil {
		return nil, fmt.Errorf("reservation engine required")
	}
	if p.Confirmer == nil {
		return nil, fmt.Errorf("payment confirmer required")
	}
	if p.Sellers == nil {
		return nil, fmt.Errorf("seller config resolver required")
	}
	if p.Providers == nil {
		return nil, fmt.Errorf("provider factory required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:        p.Repo,
		reservation: p.Reservation,
		confirmer:   p.Confirmer,
		sellers:     p.Sellers,
		providers:   p.Providers,
		site:        p.Site,
		logger:      p.Logger,
		now:         time.Now,
	}, nil
}

// CreateOrder reserves stock for the cart and creates the PENDING_PAYMENT
// order in one transaction.
func (s *service) CreateOrder(ctx context.Context, input ReservationInput) (*CreateOrderResponse, error) {
	order, err := s.reservation.Reserve(ctx, input)
	if err != nil {
		return nil, err
	}

	ctx = s.logger.WithOrderID(ctx, order.ID.String())
	s.logger.Info(s.logger.WithField(ctx, "total_cents", order.TotalCents), "order created with reserved stock")

	resp := &CreateOrderResponse{
		OrderID:    order.ID.String(),
		Status:     order.Status,
		TotalCents: order.TotalCents,
	}
	if order.ExpiresAt != nil {
		resp.ExpiresAt = order.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return resp, nil
}

// CreateOrGetSession creates a hosted checkout session for the order, or
// returns the stored session's URL when it is still open upstream.
func (s *service) CreateOrGetSession(ctx context.Context, orderID uuid.UUID, email string) (*SessionResponse, error) {
	order, err := s.loadPendingOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	ctx = s.logger.WithOrderID(ctx, orderID.String())

	cfg, err := s.sellers.ResolvePaymentConfig(ctx, order.SellerSessionID)
	if err != nil {
		return nil, err
	}
	provider, err := s.providers.ProviderFor(cfg)
	if err != nil {
		return nil, err
	}

	if url := s.reusableSessionURL(ctx, order, provider); url != "" {
		return &SessionResponse{URL: url}, nil
	}

	sess, err := provider.CreateSession(ctx, payments.CheckoutSessionInput{
		OrderID:     order.ID,
		AmountCents: order.TotalCents,
		Description: orderDescription(order),
		Email:       email,
		ExpiresAt:   orderExpiry(order),
		SuccessURL:  s.site.CheckoutSuccessURL(order.ID.String()),
		CancelURL:   s.site.CheckoutCancelURL(order.ID.String()),
	})
	if err != nil {
		return nil, err
	}

	// Book-keeping failure must not cost the buyer their redirect; the
	// webhook and poll paths re-derive state independently.
	if err := s.repo.UpdatePaymentSession(ctx, order.ID, provider.Name(), sess.ID); err != nil {
		s.logger.Warn(s.logger.WithField(ctx, "session_id", sess.ID), "failed to persist payment session on order")
	}

	s.logger.Info(s.logger.WithProvider(ctx, provider.Name().String()), "checkout session created")
	return &SessionResponse{URL: sess.URL}, nil
}

// reusableSessionURL returns the stored session's URL when that session is
// still open upstream, empty otherwise.
func (s *service) reusableSessionURL(ctx context.Context, order *models.Order, provider payments.Provider) string {
	if order.PaymentSessionID == nil || *order.PaymentSessionID == "" {
		return ""
	}
	if order.PaymentProvider != provider.Name() {
		return ""
	}

	sess, err := provider.GetSession(ctx, *order.PaymentSessionID)
	if err != nil {
		s.logger.Warn(s.logger.WithField(ctx, "reason", err.Error()), "stored session lookup failed, creating a new one")
		return ""
	}
	if sess.Status != payments.SessionStatusOpen || sess.URL == "" {
		return ""
	}
	return sess.URL
}

// PayCash confirms an in-person cash payment synchronously. No session object
// exists for cash; validation, change arithmetic, and the PAID transition all
// happen in this call.
func (s *service) PayCash(ctx context.Context, orderID uuid.UUID, cashReceivedCents int64) (*CashPaymentResponse, error) {
	order, err := s.loadPendingOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if cashReceivedCents < order.TotalCents {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation,
			"Cash received %s is less than order total %s.",
			money.FormatCents(cashReceivedCents), money.FormatCents(order.TotalCents))
	}

	if err := s.confirmer.ConfirmPaid(ctx, orders.MarkPaidParams{
		OrderID:  order.ID,
		Provider: enums.PaymentProviderCash,
		PaidAt:   s.now(),
	}); err != nil {
		return nil, err
	}

	return &CashPaymentResponse{
		Status:            enums.OrderStatusPaid,
		PaymentMethod:     "cash",
		CashReceivedCents: cashReceivedCents,
		ChangeCents:       cashReceivedCents - order.TotalCents,
	}, nil
}

// CompleteNativePayment records a payment the seller's device SDK already
// captured. Safe to call repeatedly; an order already PAID is a success.
func (s *service) CompleteNativePayment(ctx context.Context, orderID uuid.UUID, providerPaymentID string) (*NativePaymentResponse, error) {
	if providerPaymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "provider payment id required")
	}
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status.IsTerminal() {
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict,
			"Order is not awaiting payment (status: %s).", order.Status)
	}

	if err := s.confirmer.ConfirmPaid(ctx, orders.MarkPaidParams{
		OrderID:         order.ID,
		Provider:        enums.PaymentProviderSquare,
		PaymentIntentID: providerPaymentID,
		PaidAt:          s.now(),
	}); err != nil {
		return nil, err
	}

	return &NativePaymentResponse{Status: enums.OrderStatusPaid}, nil
}

// loadPendingOrder loads the order and enforces the shared checkout
// preconditions: it must exist, be PENDING_PAYMENT, and be unexpired.
func (s *service) loadPendingOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusPendingPayment {
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict,
			"Order is not awaiting payment (status: %s).", order.Status)
	}
	if order.Expired(s.now()) {
		return nil, pkgerrors.New(pkgerrors.CodeExpired, "Order payment window has expired.")
	}
	return order, nil
}

func (s *service) loadOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func orderDescription(order *models.Order) string {
	if len(order.Items) == 1 {
		return order.Items[0].Name
	}
	return fmt.Sprintf("Market order (%d items)", len(order.Items))
}

func orderExpiry(order *models.Order) time.Time {
	if order.ExpiresAt != nil {
		return *order.ExpiresAt
	}
	return time.Time{}
}
