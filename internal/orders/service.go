package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/farmstandhq/farmstand-backend/internal/payments"
	"github.com/farmstandhq/farmstand-backend/internal/sellers"
	"github.com/farmstandhq/farmstand-backend/pkg/config"
	"github.com/farmstandhq/farmstand-backend/pkg/db/models"
	"github.com/farmstandhq/farmstand-backend/pkg/enums"
	pkgerrors "github.com/farmstandhq/farmstand-backend/pkg/errors"
	"github.com/farmstandhq/farmstand-backend/pkg/logger"
)

var errPaymentStillPending = errors.New("payment not yet settled")

type providerFactory interface {
	ProviderFor(cfg *sellers.PaymentConfig) (payments.Provider, error)
}

type sellerConfigResolver interface {
	ResolvePaymentConfig(ctx context.Context, sellerSessionID uuid.UUID) (*sellers.PaymentConfig, error)
}

// Service exposes order lifecycle operations beyond raw persistence.
type Service interface {
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	GetStatus(ctx context.Context, orderID uuid.UUID) (*StatusResponse, error)
	Complete(ctx context.Context, orderID uuid.UUID) (*CompleteResponse, error)
	ConfirmPaid(ctx context.Context, params MarkPaidParams) error
}

type service struct {
	repo          Repository
	sellers       sellerConfigResolver
	providers     providerFactory
	confirmOnRead config.ConfirmOnReadConfig
	logger        *logger.Logger
	now           func() time.Time
}

// ServiceParams carries the order service dependencies. Sellers and Providers
// may be nil only when confirm-on-read is disabled.
type ServiceParams struct {
	Repo          Repository
	Sellers       sellerConfigResolver
	Providers     providerFactory
	ConfirmOnRead config.ConfirmOnReadConfig
	Logger        *logger.Logger
}

// NewService builds the orders service.
func NewService(p ServiceParams) (Service, error) {
	if p.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if p.ConfirmOnRead.Enabled && (p.Sellers == nil || p.Providers == nil) {
		return nil, fmt.Errorf("confirm-on-read requires sellers resolver and provider factory")
	}
	return &service{
		repo:          p.Repo,
		sellers:       p.Sellers,
		providers:     p.Providers,
		confirmOnRead: p.ConfirmOnRead,
		logger:        p.Logger,
		now:           time.Now,
	}, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
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

// GetStatus returns the order's current lifecycle state. For pending
// square-link orders it first asks the provider directly, so a buyer who paid
// moments ago sees PAID even when the webhook has not landed yet.
func (s *service) GetStatus(ctx context.Context, orderID uuid.UUID) (*StatusResponse, error) {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if s.shouldConfirmOnRead(order) {
		if confirmed := s.confirmSquarePayment(ctx, order); confirmed {
			order, err = s.Get(ctx, orderID)
			if err != nil {
				return nil, err
			}
		}
	}

	return &StatusResponse{
		OrderID:    order.ID.String(),
		Status:     order.Status,
		TotalCents: order.TotalCents,
		PaidAt:     order.PaidAt,
	}, nil
}

func (s *service) shouldConfirmOnRead(order *models.Order) bool {
	return s.confirmOnRead.Enabled &&
		order.Status == enums.OrderStatusPendingPayment &&
		order.PaymentProvider == enums.PaymentProviderSquare &&
		order.PaymentSessionID != nil && *order.PaymentSessionID != ""
}

// confirmSquarePayment polls the seller's Square account for the session
// state. Failures are logged, never surfaced: the poll is an accelerator, the
// webhook remains the source of truth.
func (s *service) confirmSquarePayment(ctx context.Context, order *models.Order) bool {
	ctx = s.logger.WithOrderID(ctx, order.ID.String())

	cfg, err := s.sellers.ResolvePaymentConfig(ctx, order.SellerSessionID)
	if err != nil {
		s.logger.Warn(s.logger.WithField(ctx, "reason", err.Error()), "confirm-on-read skipped: seller config unavailable")
		return false
	}
	if cfg.Provider != enums.PaymentProviderSquare {
		return false
	}

	provider, err := s.providers.ProviderFor(cfg)
	if err != nil {
		s.logger.Warn(s.logger.WithField(ctx, "reason", err.Error()), "confirm-on-read skipped: provider unavailable")
		return false
	}

	var settled *payments.CheckoutSession
	backoff := retry.WithMaxRetries(uint64(s.confirmOnRead.MaxRetries), retry.NewExponential(s.confirmOnRead.InitialDelay))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		sess, err := provider.GetSession(ctx, *order.PaymentSessionID)
		if err != nil {
			return retry.RetryableError(err)
		}
		// A closed session or any recorded tender means the buyer paid.
		if sess.Status.Settled() || sess.PaymentID != "" {
			settled = sess
			return nil
		}
		return retry.RetryableError(errPaymentStillPending)
	})
	if err != nil || settled == nil {
		return false
	}

	if err := s.ConfirmPaid(ctx, MarkPaidParams{
		OrderID:         order.ID,
		Provider:        enums.PaymentProviderSquare,
		PaymentIntentID: settled.PaymentID,
		PaidAt:          s.now(),
	}); err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
			// Expired or cancelled while we were polling; report the real state.
			return true
		}
		s.logger.Error(ctx, "confirm-on-read transition failed", err)
		return false
	}

	s.logger.Info(ctx, "order confirmed paid via status poll")
	return true
}

// Complete moves a PAID order to COMPLETED at pickup handoff.
func (s *service) Complete(ctx context.Context, orderID uuid.UUID) (*CompleteResponse, error) {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	won, err := s.repo.CompletePaid(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete order")
	}
	if !won {
		// Re-read for the real current status; the first read may be stale.
		order, err = s.Get(ctx, orderID)
		if err != nil {
			return nil, err
		}
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict,
			"Order must be PAID before completing (current status: %s).", order.Status)
	}

	return &CompleteResponse{
		OrderID: orderID.String(),
		Status:  enums.OrderStatusCompleted,
	}, nil
}

// ConfirmPaid applies the idempotent PENDING_PAYMENT→PAID transition. A lost
// race against another payment signal is a silent success; a signal for an
// order that already expired or was cancelled is a state conflict, so the
// synchronous payment paths never report PAID for an order whose stock was
// released.
func (s *service) ConfirmPaid(ctx context.Context, params MarkPaidParams) error {
	if params.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if params.PaidAt.IsZero() {
		params.PaidAt = s.now()
	}

	won, err := s.repo.MarkPaid(ctx, params)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
	}
	if won {
		ctx = s.logger.WithOrderID(ctx, params.OrderID.String())
		s.logger.Info(s.logger.WithProvider(ctx, params.Provider.String()), "order marked paid")
		return nil
	}

	order, err := s.repo.FindByID(ctx, params.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
	}
	if order.Status.AtLeastPaid() {
		return nil
	}

	ctx = s.logger.WithFields(ctx, map[string]any{
		"order_id": params.OrderID.String(),
		"status":   order.Status.String(),
	})
	s.logger.Warn(ctx, "payment signal for order in terminal state, not applied")
	return pkgerrors.Newf(pkgerrors.CodeStateConflict,
		"Order is no longer awaiting payment (status: %s).", order.Status)
}
