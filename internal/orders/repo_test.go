package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/farmstandhq/farmstand-backend/pkg/db/models"
	"github.com/farmstandhq/farmstand-backend/pkg/enums"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:orders_repo_test?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	ordersTable := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  seller_session_id TEXT NOT NULL,
  customer_id TEXT,
  status TEXT NOT NULL DEFAULT 'PENDING_PAYMENT',
  total_cents INTEGER NOT NULL,
  payment_provider TEXT NOT NULL DEFAULT '',
  payment_session_id TEXT,
  payment_intent_id TEXT,
  expires_at DATETIME,
  paid_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	orderItems := `
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  listing_id TEXT NOT NULL,
  name TEXT NOT NULL,
  unit TEXT NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  qty INTEGER NOT NULL,
  line_total_cents INTEGER NOT NULL,
  created_at DATETIME
);`

	require.NoError(t, db.Exec(ordersTable).Error)
	require.NoError(t, db.Exec(orderItems).Error)
	require.NoError(t, db.Exec("DELETE FROM orders").Error)
	require.NoError(t, db.Exec("DELETE FROM order_items").Error)

	return db
}

func newPendingOrder(t *testing.T, db *gorm.DB, mutate func(*models.Order)) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:              uuid.New(),
		SellerSessionID: uuid.New(),
		Status:          enums.OrderStatusPendingPayment,
		TotalCents:      2500,
	}
	if mutate != nil {
		mutate(order)
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func TestMarkPaidWinsOnce(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := newPendingOrder(t, db, nil)

	won, err := repo.MarkPaid(ctx, MarkPaidParams{
		OrderID:         order.ID,
		Provider:        enums.PaymentProviderStripe,
		PaymentIntentID: "pi_123",
		PaidAt:          time.Now(),
	})
	require.NoError(t, err)
	assert.True(t, won)

	// Second confirmation loses the race cleanly.
	won, err = repo.MarkPaid(ctx, MarkPaidParams{
		OrderID: order.ID,
		PaidAt:  time.Now(),
	})
	require.NoError(t, err)
	assert.False(t, won)

	reloaded, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, reloaded.Status)
	assert.Equal(t, enums.PaymentProviderStripe, reloaded.PaymentProvider)
	require.NotNil(t, reloaded.PaymentIntentID)
	assert.Equal(t, "pi_123", *reloaded.PaymentIntentID)
	assert.NotNil(t, reloaded.PaidAt)
}

func TestMarkPaidSkipsTerminalStates(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := newPendingOrder(t, db, func(o *models.Order) {
		o.Status = enums.OrderStatusExpired
	})

	won, err := repo.MarkPaid(ctx, MarkPaidParams{OrderID: order.ID, PaidAt: time.Now()})
	require.NoError(t, err)
	assert.False(t, won)

	reloaded, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusExpired, reloaded.Status)
	assert.Nil(t, reloaded.PaidAt)
}

func TestCompletePaidRequiresPaid(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	pending := newPendingOrder(t, db, nil)
	won, err := repo.CompletePaid(ctx, pending.ID)
	require.NoError(t, err)
	assert.False(t, won)

	paid := newPendingOrder(t, db, func(o *models.Order) {
		o.Status = enums.OrderStatusPaid
	})
	won, err = repo.CompletePaid(ctx, paid.ID)
	require.NoError(t, err)
	assert.True(t, won)

	reloaded, err := repo.FindByID(ctx, paid.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCompleted, reloaded.Status)
}

func TestListExpiredPending(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	past := time.Now().Add(-10 * time.Minute)
	future := time.Now().Add(10 * time.Minute)

	expired := newPendingOrder(t, db, func(o *models.Order) { o.ExpiresAt = &past })
	newPendingOrder(t, db, func(o *models.Order) { o.ExpiresAt = &future })
	newPendingOrder(t, db, func(o *models.Order) {
		o.Status = enums.OrderStatusPaid
		o.ExpiresAt = &past
	})

	got, err := repo.ListExpiredPending(ctx, time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, expired.ID, got[0].ID)
}

func TestFindByPaymentSession(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := newPendingOrder(t, db, nil)
	require.NoError(t, repo.UpdatePaymentSession(ctx, order.ID, enums.PaymentProviderSquare, "sq-order-1"))

	byProvider, err := repo.FindByPaymentSession(ctx, enums.PaymentProviderSquare, "sq-order-1")
	require.NoError(t, err)
	assert.Equal(t, order.ID, byProvider.ID)

	// Provider filter excludes mismatches; the any-provider lookup still hits.
	_, err = repo.FindByPaymentSession(ctx, enums.PaymentProviderStripe, "sq-order-1")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	byAny, err := repo.FindByAnyPaymentSession(ctx, "sq-order-1")
	require.NoError(t, err)
	assert.Equal(t, order.ID, byAny.ID)
}

func TestMarkExpired(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := newPendingOrder(t, db, nil)
	won, err := repo.MarkExpired(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, won)

	// A paid order never expires.
	paid := newPendingOrder(t, db, func(o *models.Order) { o.Status = enums.OrderStatusPaid })
	won, err = repo.MarkExpired(ctx, paid.ID)
	require.NoError(t, err)
	assert.False(t, won)
}
