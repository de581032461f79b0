package payments

import (
	"context"
	"fmt"

	sq "github.com/square/square-go-sdk"

	"github.com/farmstandhq/farmstand-backend/pkg/enums"
	pkgerrors "github.com/farmstandhq/farmstand-backend/pkg/errors"
	pkgsquare "github.com/farmstandhq/farmstand-backend/pkg/square"
)

// squareClient is the slice of the Square wrapper the link provider needs.
type squareClient interface {
	CreatePaymentLink(ctx context.Context, token string, params pkgsquare.PaymentLinkCreateParams) (*sq.PaymentLink, error)
	GetPaymentLink(ctx context.Context, token string, linkID string) (*sq.PaymentLink, error)
	GetOrder(ctx context.Context, token string, orderID string) (*sq.Order, error)
	ListLocations(ctx context.Context, token string) ([]*sq.Location, error)
}

type squareLinkProvider struct {
	client     squareClient
	token      string
	locationID string
}

// NewSquareLinkProvider builds a hosted checkout provider on a seller's own
// Square account. When locationID is empty the seller's first active location
// is used.
func NewSquareLinkProvider(client squareClient, token, locationID string) (Provider, error) {
	if client == nil {
		return nil, fmt.Errorf("square client required")
	}
	if token == "" {
		return nil, fmt.Errorf("square access token required")
	}
	return &squareLinkProvider{
		client:     client,
		token:      token,
		locationID: locationID,
	}, nil
}

func (p *squareLinkProvider) Name() enums.PaymentProvider {
	return enums.PaymentProviderSquare
}

func (p *squareLinkProvider) CreateSession(ctx context.Context, input CheckoutSessionInput) (*CheckoutSession, error) {
	locationID, err := p.resolveLocation(ctx)
	if err != nil {
		return nil, err
	}

	link, err := p.client.CreatePaymentLink(ctx, p.token, pkgsquare.PaymentLinkCreateParams{
		LocationID:  locationID,
		Name:        input.Description,
		AmountCents: input.AmountCents,
		ReferenceID: input.OrderID.String(),
		RedirectURL: input.SuccessURL,
		Note:        fmt.Sprintf("order %s", input.OrderID),
	})
	if err != nil {
		return nil, err
	}

	linkID := link.GetID()
	if linkID == nil || *linkID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeProvider, "square payment link missing id")
	}

	url := ""
	if link.GetURL() != nil {
		url = *link.GetURL()
	}

	// The link id is the stored session handle; payment state is read
	// through the link's underlying order.
	return &CheckoutSession{
		ID:     *linkID,
		URL:    url,
		Status: SessionStatusOpen,
	}, nil
}

func (p *squareLinkProvider) GetSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "square payment link id required")
	}

	link, err := p.client.GetPaymentLink(ctx, p.token, sessionID)
	if err != nil {
		return nil, err
	}
	orderID := link.GetOrderID()
	if orderID == nil || *orderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeProvider, "square payment link missing order id")
	}

	order, err := p.client.GetOrder(ctx, p.token, *orderID)
	if err != nil {
		return nil, err
	}

	out := &CheckoutSession{
		ID:     sessionID,
		Status: sessionStatusFromSquareOrder(order),
	}
	if url := link.GetURL(); url != nil {
		out.URL = *url
	}
	for _, tender := range order.Tenders {
		if tender == nil {
			continue
		}
		if id := tender.GetPaymentID(); id != nil && *id != "" {
			out.PaymentID = *id
			break
		}
		if id := tender.GetID(); id != nil && *id != "" {
			out.PaymentID = *id
			break
		}
	}
	return out, nil
}

func (p *squareLinkProvider) resolveLocation(ctx context.Context) (string, error) {
	if p.locationID != "" {
		return p.locationID, nil
	}

	locations, err := p.client.ListLocations(ctx, p.token)
	if err != nil {
		return "", err
	}
	for _, loc := range locations {
		if loc == nil {
			continue
		}
		// Deactivated locations still come back from the API; a link created
		// against one is unusable.
		if status := loc.GetStatus(); status == nil || *status != sq.LocationStatusActive {
			continue
		}
		if id := loc.GetID(); id != nil && *id != "" {
			p.locationID = *id
			return p.locationID, nil
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeUnprocessable, "seller square account has no active locations")
}

func sessionStatusFromSquareOrder(order *sq.Order) SessionStatus {
	state := order.GetState()
	if state == nil {
		return SessionStatusOpen
	}
	switch *state {
	case sq.OrderStateCompleted:
		return SessionStatusComplete
	case sq.OrderStateCanceled:
		return SessionStatusCanceled
	default:
		return SessionStatusOpen
	}
}
