package webhooks

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	"gorm.io/gorm"

	"github.com/farmstandhq/farmstand-backend/internal/orders"
	"github.com/farmstandhq/farmstand-backend/internal/sellers"
	"github.com/farmstandhq/farmstand-backend/pkg/enums"
	"github.com/farmstandhq/farmstand-backend/pkg/logger"
)

// Strategy resolves an event to an order id. found=false with a nil error
// means "this strategy has nothing to say, try the next one".
type Strategy struct {
	Name    string
	Resolve func(ctx context.Context, event *NormalizedPaymentEvent) (uuid.UUID, bool, error)
}

type squareOrderFetcher interface {
	GetOrder(ctx context.Context, token string, orderID string) (*sq.Order, error)
}

type squareRouteLister interface {
	ListSquareRoutes(ctx context.Context) ([]sellers.SquareRoute, error)
}

// Correlator matches normalized events to orders by trying strategies in
// order of decreasing specificity.
type Correlator struct {
	strategies []Strategy
	logger     *logger.Logger
}

// CorrelatorParams carries the lookups the strategies are built from. Square
// and Sellers may be nil, which drops the seller-scan strategy.
type CorrelatorParams struct {
	Repo    orders.Repository
	Sellers squareRouteLister
	Square  squareOrderFetcher
	Logger  *logger.Logger
}

// NewCorrelator assembles the standard strategy chain.
func NewCorrelator(p CorrelatorParams) (*Correlator, error) {
	if p.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}

	strategies := []Strategy{
		paymentIntentStrategy(p.Repo),
		metadataReferenceStrategy(p.Repo),
		sessionIDStrategy(p.Repo),
	}
	if p.Sellers != nil && p.Square != nil {
		strategies = append(strategies, sellerScanStrategy(p.Repo, p.Sellers, p.Square, p.Logger))
	}

	return &Correlator{strategies: strategies, logger: p.Logger}, nil
}

// Correlate returns the order the event belongs to. Strategy errors are
// logged and treated as misses so one failing lookup never blocks the rest of
// the chain.
func (c *Correlator) Correlate(ctx context.Context, event *NormalizedPaymentEvent) (uuid.UUID, bool) {
	for _, strategy := range c.strategies {
		orderID, found, err := strategy.Resolve(ctx, event)
		if err != nil {
			fields := c.logger.WithFields(ctx, map[string]any{
				"strategy": strategy.Name,
				"event_id": event.EventID,
			})
			c.logger.Error(fields, "correlation strategy failed", err)
			continue
		}
		if found {
			fields := c.logger.WithFields(ctx, map[string]any{
				"strategy": strategy.Name,
				"order_id": orderID.String(),
			})
			c.logger.Info(fields, "webhook event correlated")
			return orderID, true
		}
	}
	return uuid.Nil, false
}

// paymentIntentStrategy matches a previously stored provider-native payment
// id.
func paymentIntentStrategy(repo orders.Repository) Strategy {
	return Strategy{
		Name: "payment-intent-id",
		Resolve: func(ctx context.Context, event *NormalizedPaymentEvent) (uuid.UUID, bool, error) {
			if event.ProviderPaymentID == "" {
				return uuid.Nil, false, nil
			}
			order, err := repo.FindByPaymentIntent(ctx, event.ProviderPaymentID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return uuid.Nil, false, nil
				}
				return uuid.Nil, false, err
			}
			return order.ID, true, nil
		},
	}
}

// metadataReferenceStrategy reads the marketplace order id the initiating
// client attached as metadata, when the event carried it inline.
func metadataReferenceStrategy(repo orders.Repository) Strategy {
	return Strategy{
		Name: "metadata-reference",
		Resolve: func(ctx context.Context, event *NormalizedPaymentEvent) (uuid.UUID, bool, error) {
			if event.ReferenceID == "" {
				return uuid.Nil, false, nil
			}
			orderID, err := uuid.Parse(event.ReferenceID)
			if err != nil {
				return uuid.Nil, false, nil
			}
			order, err := repo.FindByID(ctx, orderID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return uuid.Nil, false, nil
				}
				return uuid.Nil, false, err
			}
			return order.ID, true, nil
		},
	}
}

// sessionIDStrategy matches the stored payment_session_id, first filtered by
// provider, then without the filter to tolerate orders whose provider field
// was recorded wrong. The provider-side order id is tried as a second handle
// for the same reason.
func sessionIDStrategy(repo orders.Repository) Strategy {
	return Strategy{
		Name: "session-id",
		Resolve: func(ctx context.Context, event *NormalizedPaymentEvent) (uuid.UUID, bool, error) {
			for _, handle := range []string{event.SessionID, event.ProviderOrderID} {
				if handle == "" {
					continue
				}
				order, err := repo.FindByPaymentSession(ctx, event.Provider, handle)
				if err == nil {
					return order.ID, true, nil
				}
				if !errors.Is(err, gorm.ErrRecordNotFound) {
					return uuid.Nil, false, err
				}
				order, err = repo.FindByAnyPaymentSession(ctx, handle)
				if err == nil {
					return order.ID, true, nil
				}
				if !errors.Is(err, gorm.ErrRecordNotFound) {
					return uuid.Nil, false, err
				}
			}
			return uuid.Nil, false, nil
		},
	}
}

// sellerScanStrategy is the last resort for square events whose payload only
// names a provider-side order: fetch that order with each credentialed
// seller's own token until one reveals the marketplace reference. O(sellers),
// rare path.
func sellerScanStrategy(repo orders.Repository, routes squareRouteLister, square squareOrderFetcher, logg *logger.Logger) Strategy {
	return Strategy{
		Name: "seller-scan",
		Resolve: func(ctx context.Context, event *NormalizedPaymentEvent) (uuid.UUID, bool, error) {
			if event.ProviderOrderID == "" {
				return uuid.Nil, false, nil
			}
			if event.Provider != enums.PaymentProviderSquare && event.Provider != enums.PaymentProviderTerminal {
				return uuid.Nil, false, nil
			}

			sellerRoutes, err := routes.ListSquareRoutes(ctx)
			if err != nil {
				return uuid.Nil, false, err
			}
			for _, route := range sellerRoutes {
				remote, err := square.GetOrder(ctx, route.AccessToken, event.ProviderOrderID)
				if err != nil {
					// Most tokens cannot see another seller's order; keep
					// scanning.
					continue
				}
				ref := remote.GetReferenceID()
				if ref == nil || *ref == "" {
					continue
				}
				orderID, err := uuid.Parse(*ref)
				if err != nil {
					continue
				}
				order, err := repo.FindByID(ctx, orderID)
				if err != nil {
					if errors.Is(err, gorm.ErrRecordNotFound) {
						continue
					}
					return uuid.Nil, false, err
				}
				fields := logg.WithField(ctx, "seller_session_id", route.SellerSessionID.String())
				logg.Info(fields, "seller-scan resolved webhook order")
				return order.ID, true, nil
			}
			return uuid.Nil, false, nil
		},
	}
}
