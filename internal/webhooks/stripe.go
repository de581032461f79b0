package webhooks

import (
	"encoding/json"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/farmstandhq/farmstand-backend/pkg/enums"
	pkgerrors "github.com/farmstandhq/farmstand-backend/pkg/errors"
)

// StripeParser verifies and normalizes Stripe webhook deliveries.
type StripeParser struct {
	signingSecret string
}

// NewStripeParser builds a parser bound to the endpoint's signing secret.
func NewStripeParser(signingSecret string) *StripeParser {
	return &StripeParser{signingSecret: signingSecret}
}

// Parse verifies the Stripe-Signature header and normalizes the payload.
// Verification happens before anything else; a missing secret rejects every
// delivery.
func (p *StripeParser) Parse(payload []byte, sigHeader string) (*NormalizedPaymentEvent, error) {
	if p.signingSecret == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stripe webhook secret not configured")
	}

	// The endpoint's pinned Stripe API version can trail the SDK's; a version
	// mismatch must not reject an otherwise authentic delivery.
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, p.signingSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "stripe webhook signature verification failed")
	}

	out := &NormalizedPaymentEvent{
		Provider: enums.PaymentProviderStripe,
		EventID:  event.ID,
		Type:     string(event.Type),
		Kind:     KindIgnored,
		Raw:      json.RawMessage(payload),
	}

	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
	default:
		return out, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode stripe checkout session payload")
	}

	// A completed session that never settled (delayed payment methods) is
	// not a payment signal.
	if event.Type == "checkout.session.completed" && sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
		return out, nil
	}

	out.Kind = KindPaymentCompleted
	out.SessionID = sess.ID
	out.Status = string(sess.PaymentStatus)
	out.ReferenceID = sess.ClientReferenceID
	if out.ReferenceID == "" {
		out.ReferenceID = sess.Metadata["order_id"]
	}
	if sess.PaymentIntent != nil {
		out.ProviderPaymentID = sess.PaymentIntent.ID
	}
	return out, nil
}
