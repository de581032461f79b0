package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/farmstandhq/farmstand-backend/pkg/db/models"
	"github.com/farmstandhq/farmstand-backend/pkg/enums"
	pkgerrors "github.com/farmstandhq/farmstand-backend/pkg/errors"
)

// DefaultPaymentWindow is how long a new order holds its reservation before
// the sweeper may expire it.
const DefaultPaymentWindow = 15 * time.Minute

// ReservationLine is one (listing, quantity) pair from the buyer's cart.
type ReservationLine struct {
	ListingID uuid.UUID
	Qty       int
}

// ReservationInput describes the cart to reserve. A zero PaymentWindow falls
// back to DefaultPaymentWindow.
type ReservationInput struct {
	SellerSessionID uuid.UUID
	CustomerID      *uuid.UUID
	Lines           []ReservationLine
	PaymentWindow   time.Duration
}

// ReservationEngine atomically converts a cart into a PENDING_PAYMENT order.
// Either every line reserves stock and the order row plus item snapshots are
// created, or nothing happens.
type ReservationEngine interface {
	Reserve(ctx context.Context, input ReservationInput) (*models.Order, error)
}

// StockReleaser returns reserved quantities to availability. The caller owns
// the transaction; the sweeper flips order status in the same tx.
type StockReleaser interface {
	Release(ctx context.Context, tx *gorm.DB, listingID uuid.UUID, qty int) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type reservationEngine struct {
	db  txRunner
	now func() time.Time
}

// NewReservationEngine builds the default reservation engine.
func NewReservationEngine(db txRunner) (ReservationEngine, error) {
	if db == nil {
		return nil, errors.New("transaction runner required")
	}
	return &reservationEngine{db: db, now: time.Now}, nil
}

func (e *reservationEngine) Reserve(ctx context.Context, input ReservationInput) (*models.Order, error) {
	if input.SellerSessionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller session id required")
	}
	if len(input.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one line item required")
	}
	for _, line := range input.Lines {
		if line.ListingID == uuid.Nil || line.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "each line needs a listing id and a positive quantity")
		}
	}

	window := input.PaymentWindow
	if window <= 0 {
		window = DefaultPaymentWindow
	}
	expiresAt := e.now().Add(window)

	order := &models.Order{
		ID:              uuid.New(),
		SellerSessionID: input.SellerSessionID,
		CustomerID:      input.CustomerID,
		Status:          enums.OrderStatusPendingPayment,
		ExpiresAt:       &expiresAt,
	}

	err := e.db.WithTx(ctx, func(tx *gorm.DB) error {
		for _, line := range input.Lines {
			var listing models.Listing
			if err := tx.WithContext(ctx).Where("id = ?", line.ListingID).First(&listing).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.Newf(pkgerrors.CodeNotFound, "listing %s not found", line.ListingID)
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
			}
			if listing.SellerSessionID != input.SellerSessionID {
				return pkgerrors.Newf(pkgerrors.CodeValidation, "listing %s belongs to a different seller session", line.ListingID)
			}

			// The availability guard in the WHERE clause makes the reserve
			// atomic under concurrent carts.
			res := tx.WithContext(ctx).Exec(`
				UPDATE listings
				SET qty_available = qty_available - ?,
					qty_reserved = qty_reserved + ?,
					updated_at = CURRENT_TIMESTAMP
				WHERE id = ? AND qty_available >= ?
			`, line.Qty, line.Qty, line.ListingID, line.Qty)
			if res.Error != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve stock")
			}
			if res.RowsAffected == 0 {
				return pkgerrors.Newf(pkgerrors.CodeConflict, "insufficient stock for %q", listing.Name)
			}

			lineTotal := listing.PriceCents * int64(line.Qty)
			order.Items = append(order.Items, models.OrderItem{
				ID:             uuid.New(),
				OrderID:        order.ID,
				ListingID:      listing.ID,
				Name:           listing.Name,
				Unit:           listing.Unit,
				UnitPriceCents: listing.PriceCents,
				Qty:            line.Qty,
				LineTotalCents: lineTotal,
			})
			order.TotalCents += lineTotal
		}

		if err := tx.WithContext(ctx).Create(order).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

type stockReleaserImpl struct{}

// NewStockReleaser exposes the default stock release implementation.
func NewStockReleaser() StockReleaser {
	return stockReleaserImpl{}
}

func (stockReleaserImpl) Release(ctx context.Context, tx *gorm.DB, listingID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock release")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE listings
		SET qty_available = qty_available + ?,
			qty_reserved = qty_reserved - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND qty_reserved >= ?
	`, qty, qty, listingID, qty)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release stock")
	}
	return nil
}
