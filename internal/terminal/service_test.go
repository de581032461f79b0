package terminal

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/farmstandhq/farmstand-backend/internal/orders"
	"github.com/farmstandhq/farmstand-backend/internal/sellers"
	"github.com/farmstandhq/farmstand-backend/pkg/db/models"
	"github.com/farmstandhq/farmstand-backend/pkg/enums"
	pkgerrors "github.com/farmstandhq/farmstand-backend/pkg/errors"
	"github.com/farmstandhq/farmstand-backend/pkg/logger"
	pkgsquare "github.com/farmstandhq/farmstand-backend/pkg/square"
)

type stubOrderStore struct {
	orders map[uuid.UUID]*models.Order
}

func newStubOrderStore(list ...*models.Order) *stubOrderStore {
	s := &stubOrderStore{orders: map[uuid.UUID]*models.Order{}}
	for _, o := range list {
		s.orders[o.ID] = o
	}
	return s
}

func (s *stubOrderStore) WithTx(tx *gorm.DB) orders.Repository { return s }

func (s *stubOrderStore) Create(ctx context.Context, order *models.Order) error {
	s.orders[order.ID] = order
	return nil
}

func (s *stubOrderStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if o, ok := s.orders[id]; ok {
		return o, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrderStore) FindByPaymentSession(ctx context.Context, provider enums.PaymentProvider, sessionID string) (*models.Order, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrderStore) FindByAnyPaymentSession(ctx context.Context, sessionID string) (*models.Order, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrderStore) FindByPaymentIntent(ctx context.Context, intentID string) (*models.Order, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrderStore) ListExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	return nil, nil
}

func (s *stubOrderStore) MarkPaid(ctx context.Context, params orders.MarkPaidParams) (bool, error) {
	return false, nil
}

func (s *stubOrderStore) CompletePaid(ctx context.Context, orderID uuid.UUID) (bool, error) {
	return false, nil
}

func (s *stubOrderStore) MarkExpired(ctx context.Context, orderID uuid.UUID) (bool, error) {
	return false, nil
}

func (s *stubOrderStore) UpdatePaymentSession(ctx context.Context, orderID uuid.UUID, provider enums.PaymentProvider, sessionID string) error {
	if o, ok := s.orders[orderID]; ok {
		o.PaymentProvider = provider
		o.PaymentSessionID = &sessionID
	}
	return nil
}

type stubConfirmer struct {
	params []orders.MarkPaidParams
	apply  func(orders.MarkPaidParams)
}

func (s *stubConfirmer) ConfirmPaid(ctx context.Context, params orders.MarkPaidParams) error {
	s.params = append(s.params, params)
	if s.apply != nil {
		s.apply(params)
	}
	return nil
}

type stubResolver struct {
	cfg *sellers.PaymentConfig
	err error
}

func (s *stubResolver) ResolvePaymentConfig(ctx context.Context, sellerSessionID uuid.UUID) (*sellers.PaymentConfig, error) {
	return s.cfg, s.err
}

type stubTerminalClient struct {
	created    *sq.TerminalCheckout
	createErr  error
	lastParams pkgsquare.TerminalCheckoutCreateParams
	fetched    *sq.TerminalCheckout
	getErr     error
}

func (s *stubTerminalClient) CreateTerminalCheckout(ctx context.Context, token string, params pkgsquare.TerminalCheckoutCreateParams) (*sq.TerminalCheckout, error) {
	s.lastParams = params
	if s.createErr != nil {
		return nil, s.createErr
	}
	return s.created, nil
}

func (s *stubTerminalClient) GetTerminalCheckout(ctx context.Context, token string, checkoutID string) (*sq.TerminalCheckout, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.fetched, nil
}

func terminalConfig() *sellers.PaymentConfig {
	return &sellers.PaymentConfig{
		Provider:               enums.PaymentProviderTerminal,
		SquareAccessToken:      "tok",
		SquareTerminalDeviceID: "device-1",
	}
}

func newTerminalService(t *testing.T, repo orders.Repository, confirmer paymentConfirmer, resolver sellerConfigResolver, client terminalClient) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:      repo,
		Confirmer: confirmer,
		Sellers:   resolver,
		Client:    client,
		Logger:    logger.New(logger.Options{ServiceName: "test"}),
	})
	require.NoError(t, err)
	return svc
}

func futureTime(d time.Duration) *time.Time {
	t := time.Now().Add(d)
	return &t
}

func strPtr(v string) *string { return &v }

func pendingOrder(total int64) *models.Order {
	return &models.Order{
		ID:              uuid.New(),
		SellerSessionID: uuid.New(),
		Status:          enums.OrderStatusPendingPayment,
		TotalCents:      total,
		ExpiresAt:       futureTime(10 * time.Minute),
	}
}

func TestCreateCheckoutPushesToDevice(t *testing.T) {
	order := pendingOrder(1800)
	repo := newStubOrderStore(order)
	client := &stubTerminalClient{
		created: &sq.TerminalCheckout{ID: strPtr("tc-1"), Status: strPtr("PENDING")},
	}
	svc := newTerminalService(t, repo, &stubConfirmer{}, &stubResolver{cfg: terminalConfig()}, client)

	resp, err := svc.CreateCheckout(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, "tc-1", resp.CheckoutID)
	assert.Equal(t, "PENDING", resp.Status)

	assert.Equal(t, "device-1", client.lastParams.DeviceID)
	assert.Equal(t, int64(1800), client.lastParams.AmountCents)
	assert.Equal(t, order.ID.String(), client.lastParams.ReferenceID)

	require.NotNil(t, order.PaymentSessionID)
	assert.Equal(t, "tc-1", *order.PaymentSessionID)
	assert.Equal(t, enums.PaymentProviderTerminal, order.PaymentProvider)
}

func TestCreateCheckoutRejectsNonPendingOrder(t *testing.T) {
	order := pendingOrder(1800)
	order.Status = enums.OrderStatusPaid
	svc := newTerminalService(t, newStubOrderStore(order), &stubConfirmer{}, &stubResolver{cfg: terminalConfig()}, &stubTerminalClient{})

	_, err := svc.CreateCheckout(context.Background(), order.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	assert.Equal(t, "Order is not awaiting payment (status: PAID).", pkgerrors.As(err).Message())
}

func TestCreateCheckoutRejectsExpiredOrder(t *testing.T) {
	order := pendingOrder(1800)
	order.ExpiresAt = futureTime(-time.Minute)
	svc := newTerminalService(t, newStubOrderStore(order), &stubConfirmer{}, &stubResolver{cfg: terminalConfig()}, &stubTerminalClient{})

	_, err := svc.CreateCheckout(context.Background(), order.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeExpired))
}

func TestCreateCheckoutRequiresPairedDevice(t *testing.T) {
	order := pendingOrder(1800)
	cfg := terminalConfig()
	cfg.SquareTerminalDeviceID = ""
	svc := newTerminalService(t, newStubOrderStore(order), &stubConfirmer{}, &stubResolver{cfg: cfg}, &stubTerminalClient{})

	_, err := svc.CreateCheckout(context.Background(), order.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnprocessable))
	assert.Contains(t, pkgerrors.As(err).Message(), "paired")
}

func TestCreateCheckoutRequiresSquareCredentials(t *testing.T) {
	order := pendingOrder(1800)
	svc := newTerminalService(t, newStubOrderStore(order), &stubConfirmer{},
		&stubResolver{cfg: &sellers.PaymentConfig{Provider: enums.PaymentProviderStripe}}, &stubTerminalClient{})

	_, err := svc.CreateCheckout(context.Background(), order.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnprocessable))
}

func TestGetStatusCompletedMarksOrderPaid(t *testing.T) {
	order := pendingOrder(1800)
	order.PaymentProvider = enums.PaymentProviderTerminal
	order.PaymentSessionID = strPtr("tc-1")
	repo := newStubOrderStore(order)
	confirmer := &stubConfirmer{apply: func(params orders.MarkPaidParams) {
		order.Status = enums.OrderStatusPaid
	}}
	client := &stubTerminalClient{
		fetched: &sq.TerminalCheckout{
			ID:         strPtr("tc-1"),
			Status:     strPtr("COMPLETED"),
			PaymentIDs: []string{"sq-pay-9"},
		},
	}
	svc := newTerminalService(t, repo, confirmer, &stubResolver{cfg: terminalConfig()}, client)

	resp, err := svc.GetStatus(context.Background(), "tc-1", order.ID)
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", resp.Status)
	assert.Equal(t, enums.OrderStatusPaid, resp.OrderStatus)

	require.Len(t, confirmer.params, 1)
	assert.Equal(t, "sq-pay-9", confirmer.params[0].PaymentIntentID)
	assert.Equal(t, enums.PaymentProviderTerminal, confirmer.params[0].Provider)
}

func TestGetStatusPendingLeavesOrderUntouched(t *testing.T) {
	order := pendingOrder(1800)
	order.PaymentSessionID = strPtr("tc-1")
	confirmer := &stubConfirmer{}
	client := &stubTerminalClient{
		fetched: &sq.TerminalCheckout{ID: strPtr("tc-1"), Status: strPtr("IN_PROGRESS")},
	}
	svc := newTerminalService(t, newStubOrderStore(order), confirmer, &stubResolver{cfg: terminalConfig()}, client)

	resp, err := svc.GetStatus(context.Background(), "tc-1", order.ID)
	require.NoError(t, err)
	assert.Equal(t, "IN_PROGRESS", resp.Status)
	assert.Equal(t, enums.OrderStatusPendingPayment, resp.OrderStatus)
	assert.Empty(t, confirmer.params)
}

func TestGetStatusCompletedIsIdempotentOnPaidOrder(t *testing.T) {
	order := pendingOrder(1800)
	order.Status = enums.OrderStatusPaid
	order.PaymentSessionID = strPtr("tc-1")
	confirmer := &stubConfirmer{}
	client := &stubTerminalClient{
		fetched: &sq.TerminalCheckout{ID: strPtr("tc-1"), Status: strPtr("COMPLETED")},
	}
	svc := newTerminalService(t, newStubOrderStore(order), confirmer, &stubResolver{cfg: terminalConfig()}, client)

	resp, err := svc.GetStatus(context.Background(), "tc-1", order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, resp.OrderStatus)
	assert.Empty(t, confirmer.params)
}

func TestGetStatusRejectsMismatchedCheckout(t *testing.T) {
	order := pendingOrder(1800)
	order.PaymentSessionID = strPtr("tc-1")
	svc := newTerminalService(t, newStubOrderStore(order), &stubConfirmer{}, &stubResolver{cfg: terminalConfig()}, &stubTerminalClient{})

	_, err := svc.GetStatus(context.Background(), "tc-other", order.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
