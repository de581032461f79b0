package terminal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	"gorm.io/gorm"

	"github.com/farmstandhq/farmstand-backend/internal/orders"
	"github.com/farmstandhq/farmstand-backend/internal/sellers"
	"github.com/farmstandhq/farmstand-backend/pkg/db/models"
	"github.com/farmstandhq/farmstand-backend/pkg/enums"
	pkgerrors "github.com/farmstandhq/farmstand-backend/pkg/errors"
	"github.com/farmstandhq/farmstand-backend/pkg/logger"
	pkgsquare "github.com/farmstandhq/farmstand-backend/pkg/square"
)

// checkoutStatusCompleted is Square's terminal state for a finished
// card-present checkout.
const checkoutStatusCompleted = "COMPLETED"

type terminalClient interface {
	CreateTerminalCheckout(ctx context.Context, token string, params pkgsquare.TerminalCheckoutCreateParams) (*sq.TerminalCheckout, error)
	GetTerminalCheckout(ctx context.Context, token string, checkoutID string) (*sq.TerminalCheckout, error)
}

type sellerConfigResolver interface {
	ResolvePaymentConfig(ctx context.Context, sellerSessionID uuid.UUID) (*sellers.PaymentConfig, error)
}

type paymentConfirmer interface {
	ConfirmPaid(ctx context.Context, params orders.MarkPaidParams) error
}

// Service drives the card-present flow: push a checkout to the seller's
// paired Square Terminal, then poll it until the device reports completion.
// Completion also arrives via webhook; both paths share the same idempotent
// transition.
type Service interface {
	CreateCheckout(ctx context.Context, orderID uuid.UUID) (*CheckoutResponse, error)
	GetStatus(ctx context.Context, checkoutID string, orderID uuid.UUID) (*StatusResponse, error)
}

type service struct {
	repo      orders.Repository
	confirmer paymentConfirmer
	sellers   sellerConfigResolver
	client    terminalClient
	logger    *logger.Logger
	now       func() time.Time
}

// ServiceParams carries the terminal service dependencies.
type ServiceParams struct {
	Repo      orders.Repository
	Confirmer paymentConfirmer
	Sellers   sellerConfigResolver
	Client    terminalClient
	Logger    *logger.Logger
}

// NewService builds the terminal service.
func NewService(p ServiceParams) (Service, error) {
	if p.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if p.Confirmer == nil {
		return nil, fmt.Errorf("payment confirmer required")
	}
	if p.Sellers == nil {
		return nil, fmt.Errorf("seller config resolver required")
	}
	if p.Client == nil {
		return nil, fmt.Errorf("terminal client required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:      p.Repo,
		confirmer: p.Confirmer,
		sellers:   p.Sellers,
		client:    p.Client,
		logger:    p.Logger,
		now:       time.Now,
	}, nil
}

// CreateCheckout pushes a card-present checkout to the seller's paired
// device and stores the checkout id on the order for webhook correlation.
func (s *service) CreateCheckout(ctx context.Context, orderID uuid.UUID) (*CheckoutResponse, error) {
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
	ctx = s.logger.WithOrderID(ctx, orderID.String())

	cfg, err := s.sellers.ResolvePaymentConfig(ctx, order.SellerSessionID)
	if err != nil {
		return nil, err
	}
	token, deviceID, err := terminalRoute(cfg)
	if err != nil {
		return nil, err
	}

	checkout, err := s.client.CreateTerminalCheckout(ctx, token, pkgsquare.TerminalCheckoutCreateParams{
		DeviceID:    deviceID,
		AmountCents: order.TotalCents,
		ReferenceID: order.ID.String(),
		Note:        fmt.Sprintf("order %s", order.ID),
	})
	if err != nil {
		return nil, err
	}

	checkoutID := stringValue(checkout.GetID())
	if checkoutID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeProvider, "square terminal checkout missing id")
	}

	// Unlike hosted sessions, the terminal webhook correlates solely by the
	// stored checkout id, so this write has to land.
	if err := s.repo.UpdatePaymentSession(ctx, order.ID, enums.PaymentProviderTerminal, checkoutID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist terminal checkout on order")
	}

	s.logger.Info(s.logger.WithField(ctx, "checkout_id", checkoutID), "terminal checkout pushed to device")
	return &CheckoutResponse{
		CheckoutID: checkoutID,
		Status:     stringValue(checkout.GetStatus()),
	}, nil
}

// GetStatus polls the device-side checkout. A completed checkout applies the
// same idempotent PAID transition the webhook path uses.
func (s *service) GetStatus(ctx context.Context, checkoutID string, orderID uuid.UUID) (*StatusResponse, error) {
	if checkoutID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout id required")
	}
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentSessionID != nil && *order.PaymentSessionID != "" && *order.PaymentSessionID != checkoutID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout id does not belong to this order")
	}
	ctx = s.logger.WithOrderID(ctx, orderID.String())

	cfg, err := s.sellers.ResolvePaymentConfig(ctx, order.SellerSessionID)
	if err != nil {
		return nil, err
	}
	token, _, err := terminalRoute(cfg)
	if err != nil {
		return nil, err
	}

	checkout, err := s.client.GetTerminalCheckout(ctx, token, checkoutID)
	if err != nil {
		return nil, err
	}

	status := stringValue(checkout.GetStatus())
	if status == checkoutStatusCompleted && order.Status == enums.OrderStatusPendingPayment {
		if err := s.confirmer.ConfirmPaid(ctx, orders.MarkPaidParams{
			OrderID:         order.ID,
			Provider:        enums.PaymentProviderTerminal,
			PaymentIntentID: firstPaymentID(checkout),
			PaidAt:          s.now(),
		}); err != nil {
			s.logger.Error(ctx, "terminal completion transition failed", err)
		} else {
			order, err = s.loadOrder(ctx, orderID)
			if err != nil {
				return nil, err
			}
		}
	}

	return &StatusResponse{
		Status:      status,
		OrderStatus: order.Status,
	}, nil
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

// terminalRoute extracts the Square credentials and paired device from the
// seller's payment config. A missing device is a seller configuration error,
// not a retryable fault.
func terminalRoute(cfg *sellers.PaymentConfig) (token, deviceID string, err error) {
	if cfg == nil || cfg.SquareAccessToken == "" {
		return "", "", pkgerrors.New(pkgerrors.CodeUnprocessable, "seller has no Square credentials for terminal payments")
	}
	if cfg.SquareTerminalDeviceID == "" {
		return "", "", pkgerrors.New(pkgerrors.CodeUnprocessable, "no Square Terminal is paired for this seller")
	}
	return cfg.SquareAccessToken, cfg.SquareTerminalDeviceID, nil
}

func firstPaymentID(checkout *sq.TerminalCheckout) string {
	ids := checkout.GetPaymentIDs()
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}

func stringValue(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
