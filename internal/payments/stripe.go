package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/farmstandhq/farmstand-backend/pkg/enums"
	pkgerrors "github.com/farmstandhq/farmstand-backend/pkg/errors"
	pkgstripe "github.com/farmstandhq/farmstand-backend/pkg/stripe"
)

// Stripe rejects checkout sessions expiring sooner than 30 minutes out, so
// short order windows get floored to this.
const minStripeSessionWindow = 30 * time.Minute

type stripeProvider struct {
	client             *pkgstripe.Client
	destinationAccount string
	now                func() time.Time
}

// NewStripeProvider builds the hosted checkout provider backed by the
// platform Stripe account. When destinationAccount is set, funds are routed
// to the seller's connected account as a destination charge.
func NewStripeProvider(client *pkgstripe.Client, destinationAccount string) (Provider, error) {
	if client == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	return &stripeProvider{
		client:             client,
		destinationAccount: destinationAccount,
		now:                time.Now,
	}, nil
}

func (p *stripeProvider) Name() enums.PaymentProvider {
	return enums.PaymentProviderStripe
}

func (p *stripeProvider) CreateSession(ctx context.Context, input CheckoutSessionInput) (*CheckoutSession, error) {
	expiry := input.ExpiresAt
	if floor := p.now().Add(minStripeSessionWindow); expiry.Before(floor) {
		expiry = floor
	}

	params := &stripe.CheckoutSessionCreateParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(input.OrderID.String()),
		SuccessURL:        stripe.String(input.SuccessURL),
		CancelURL:         stripe.String(input.CancelURL),
		ExpiresAt:         stripe.Int64(expiry.Unix()),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
					Currency:   stripe.String(string(stripe.CurrencyUSD)),
					UnitAmount: stripe.Int64(input.AmountCents),
					ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
						Name: stripe.String(input.Description),
					},
				},
			},
		},
		Metadata: map[string]string{"order_id": input.OrderID.String()},
	}

	if input.Email != "" {
		params.CustomerEmail = stripe.String(input.Email)
	}

	if p.destinationAccount != "" {
		params.PaymentIntentData = &stripe.CheckoutSessionCreatePaymentIntentDataParams{
			TransferData: &stripe.CheckoutSessionCreatePaymentIntentDataTransferDataParams{
				Destination: stripe.String(p.destinationAccount),
			},
		}
	}

	sess, err := p.client.API().V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		return nil, mapStripeError(err, "create checkout session")
	}
	return fromStripeSession(sess), nil
}

func (p *stripeProvider) GetSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stripe session id required")
	}

	sess, err := p.client.API().V1CheckoutSessions.Retrieve(ctx, sessionID, nil)
	if err != nil {
		return nil, mapStripeError(err, "retrieve checkout session")
	}
	return fromStripeSession(sess), nil
}

func fromStripeSession(sess *stripe.CheckoutSession) *CheckoutSession {
	if sess == nil {
		return nil
	}
	out := &CheckoutSession{
		ID:     sess.ID,
		URL:    sess.URL,
		Status: sessionStatusFromStripe(sess),
	}
	if sess.PaymentIntent != nil {
		out.PaymentID = sess.PaymentIntent.ID
	}
	return out
}

func sessionStatusFromStripe(sess *stripe.CheckoutSession) SessionStatus {
	switch sess.Status {
	case stripe.CheckoutSessionStatusComplete:
		// A session can complete without settling (e.g. delayed payment
		// methods); only a paid session counts.
		if sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
			return SessionStatusOpen
		}
		return SessionStatusComplete
	case stripe.CheckoutSessionStatusExpired:
		return SessionStatusExpired
	default:
		return SessionStatusOpen
	}
}

func mapStripeError(err error, op string) error {
	if err == nil {
		return nil
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		code := pkgerrors.CodeProvider
		switch stripeErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			code = pkgerrors.CodeUnauthorized
		case http.StatusNotFound:
			code = pkgerrors.CodeNotFound
		case http.StatusBadRequest:
			code = pkgerrors.CodeValidation
		case http.StatusConflict:
			code = pkgerrors.CodeConflict
		}
		return pkgerrors.Wrap(code, err, fmt.Sprintf("stripe %s failed", op))
	}
	return pkgerrors.Wrap(pkgerrors.CodeProvider, err, fmt.Sprintf("stripe %s failed", op))
}
