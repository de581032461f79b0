package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmstandhq/farmstand-backend/pkg/enums"
	pkgerrors "github.com/farmstandhq/farmstand-backend/pkg/errors"
)

const stripeTestSecret = "whsec_test_secret"

// signStripe builds a valid Stripe-Signature header for the payload: a v1
// HMAC-SHA256 over "<timestamp>.<payload>".
func signStripe(t *testing.T, payload []byte) string {
	t.Helper()
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(stripeTestSecret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func stripeCheckoutCompletedPayload(paymentStatus string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_1",
		"object": "event",
		"api_version": "2024-06-20",
		"type": "checkout.session.completed",
		"data": {
			"object": {
				"id": "cs_123",
				"object": "checkout.session",
				"client_reference_id": "7f9c24e8-3b3d-4b5d-a0b5-3f4de1a84f0e",
				"payment_status": %q,
				"payment_intent": "pi_456",
				"metadata": {"order_id": "7f9c24e8-3b3d-4b5d-a0b5-3f4de1a84f0e"}
			}
		}
	}`, paymentStatus))
}

func TestStripeParseCheckoutCompleted(t *testing.T) {
	payload := stripeCheckoutCompletedPayload("paid")
	parser := NewStripeParser(stripeTestSecret)

	event, err := parser.Parse(payload, signStripe(t, payload))
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.EventID)
	assert.Equal(t, KindPaymentCompleted, event.Kind)
	assert.Equal(t, enums.PaymentProviderStripe, event.Provider)
	assert.Equal(t, "cs_123", event.SessionID)
	assert.Equal(t, "7f9c24e8-3b3d-4b5d-a0b5-3f4de1a84f0e", event.ReferenceID)
	assert.Equal(t, "pi_456", event.ProviderPaymentID)
}

func TestStripeParseUnpaidSessionIsIgnored(t *testing.T) {
	payload := stripeCheckoutCompletedPayload("unpaid")
	parser := NewStripeParser(stripeTestSecret)

	event, err := parser.Parse(payload, signStripe(t, payload))
	require.NoError(t, err)
	assert.Equal(t, KindIgnored, event.Kind)
}

func TestStripeParseOtherEventTypesIgnored(t *testing.T) {
	payload := []byte(`{"id": "evt_2", "object": "event", "api_version": "2024-06-20", "type": "invoice.created", "data": {"object": {}}}`)
	parser := NewStripeParser(stripeTestSecret)

	event, err := parser.Parse(payload, signStripe(t, payload))
	require.NoError(t, err)
	assert.Equal(t, KindIgnored, event.Kind)
	assert.Equal(t, "evt_2", event.EventID)
}

func TestStripeParseRejectsBadSignature(t *testing.T) {
	payload := stripeCheckoutCompletedPayload("paid")
	parser := NewStripeParser(stripeTestSecret)

	_, err := parser.Parse(payload, "t=1,v1=deadbeef")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestStripeParseRejectsWhenSecretUnconfigured(t *testing.T) {
	payload := stripeCheckoutCompletedPayload("paid")
	parser := NewStripeParser("")

	_, err := parser.Parse(payload, signStripe(t, payload))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
