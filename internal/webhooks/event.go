package webhooks

import (
	"encoding/json"

	"github.com/farmstandhq/farmstand-backend/pkg/enums"
)

// EventKind classifies a provider notification after normalization.
type EventKind string

const (
	// KindPaymentCompleted is any provider event that means "this payment
	// settled" for a hosted checkout.
	KindPaymentCompleted EventKind = "payment.completed"
	// KindTerminalCompleted is the card-present device reporting a finished
	// checkout.
	KindTerminalCompleted EventKind = "terminal.completed"
	// KindIgnored covers every other event type: acknowledged so the
	// provider stops retrying, never processed.
	KindIgnored EventKind = "ignored"
)

// NormalizedPaymentEvent is the single internal shape every provider payload
// is parsed into at the boundary. Downstream logic never re-inspects raw
// provider JSON; whichever correlation fields the payload carried are filled
// in and the rest stay empty.
type NormalizedPaymentEvent struct {
	Provider enums.PaymentProvider
	EventID  string
	Kind     EventKind
	// Type is the provider's own event type string, kept for the ledger.
	Type string
	// ProviderPaymentID is the provider-native payment id, when present.
	ProviderPaymentID string
	// ProviderOrderID is the provider-side order behind the payment.
	ProviderOrderID string
	// ReferenceID is the marketplace order id the initiating client attached
	// as metadata on the provider object, when delivered inline.
	ReferenceID string
	// SessionID is the stored correlation handle: the checkout session id,
	// payment link id, or terminal checkout id, depending on the flow.
	SessionID string
	Status    string
	Raw       json.RawMessage
}
