package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/farmstandhq/farmstand-backend/pkg/enums"
	pkgerrors "github.com/farmstandhq/farmstand-backend/pkg/errors"
)

const (
	squareEventPaymentUpdated  = "payment.updated"
	squareEventTerminalUpdated = "terminal.checkout.updated"

	squarePaymentCompleted = "COMPLETED"
)

// SquareParser verifies and normalizes Square webhook deliveries. Square
// signs the notification URL concatenated with the raw body, so the parser
// has to know the exact URL Square was configured to call.
type SquareParser struct {
	signatureKey    string
	notificationURL string
}

// NewSquareParser builds a parser bound to the webhook signature key and the
// registered notification URL.
func NewSquareParser(signatureKey, notificationURL string) *SquareParser {
	return &SquareParser{
		signatureKey:    signatureKey,
		notificationURL: notificationURL,
	}
}

// squareEnvelope is the subset of Square's webhook payload the core reads.
// Fields are optional in the wire format; absent ones normalize to empty.
type squareEnvelope struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
	Data    struct {
		ID     string `json:"id"`
		Object struct {
			Payment struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Status  string `json:"status"`
			} `json:"payment"`
			Checkout struct {
				ID          string   `json:"id"`
				Status      string   `json:"status"`
				ReferenceID string   `json:"reference_id"`
				PaymentIDs  []string `json:"payment_ids"`
			} `json:"checkout"`
		} `json:"object"`
	} `json:"data"`
}

// Parse verifies the x-square-hmacsha256-signature header and normalizes the
// payload.
func (p *SquareParser) Parse(payload []byte, signature string) (*NormalizedPaymentEvent, error) {
	if err := p.verify(payload, signature); err != nil {
		return nil, err
	}

	var envelope squareEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode square webhook payload")
	}
	if envelope.EventID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "square webhook payload missing event id")
	}

	out := &NormalizedPaymentEvent{
		Provider: enums.PaymentProviderSquare,
		EventID:  envelope.EventID,
		Type:     envelope.Type,
		Kind:     KindIgnored,
		Raw:      json.RawMessage(payload),
	}

	switch envelope.Type {
	case squareEventPaymentUpdated:
		payment := envelope.Data.Object.Payment
		out.Status = payment.Status
		out.ProviderPaymentID = payment.ID
		out.ProviderOrderID = payment.OrderID
		if payment.Status == squarePaymentCompleted {
			out.Kind = KindPaymentCompleted
		}
	case squareEventTerminalUpdated:
		checkout := envelope.Data.Object.Checkout
		out.Provider = enums.PaymentProviderTerminal
		out.Status = checkout.Status
		out.SessionID = checkout.ID
		out.ReferenceID = checkout.ReferenceID
		if len(checkout.PaymentIDs) > 0 {
			out.ProviderPaymentID = checkout.PaymentIDs[0]
		}
		if checkout.Status == squarePaymentCompleted {
			out.Kind = KindTerminalCompleted
		}
	}
	return out, nil
}

// verify recomputes Square's HMAC-SHA256 over notification URL + body and
// compares in constant time.
func (p *SquareParser) verify(payload []byte, signature string) error {
	if p.signatureKey == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "square webhook signature key not configured")
	}
	if strings.TrimSpace(signature) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "square webhook signature missing")
	}

	mac := hmac.New(sha256.New, []byte(p.signatureKey))
	mac.Write([]byte(p.notificationURL))
	mac.Write(payload)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "square webhook signature verification failed")
	}
	return nil
}
