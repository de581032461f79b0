package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmstandhq/farmstand-backend/pkg/enums"
	pkgerrors "github.com/farmstandhq/farmstand-backend/pkg/errors"
)

const (
	testSignatureKey    = "sig-key-123"
	testNotificationURL = "https://market.example.com/api/v1/webhooks/square"
)

func signSquare(t *testing.T, payload []byte) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(testSignatureKey))
	mac.Write([]byte(testNotificationURL))
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestSquareParsePaymentCompleted(t *testing.T) {
	payload := []byte(`{
		"event_id": "evt-1",
		"type": "payment.updated",
		"data": {
			"id": "pay-1",
			"object": {
				"payment": {"id": "pay-1", "order_id": "sq-order-1", "status": "COMPLETED"}
			}
		}
	}`)
	parser := NewSquareParser(testSignatureKey, testNotificationURL)

	event, err := parser.Parse(payload, signSquare(t, payload))
	require.NoError(t, err)
	assert.Equal(t, "evt-1", event.EventID)
	assert.Equal(t, KindPaymentCompleted, event.Kind)
	assert.Equal(t, enums.PaymentProviderSquare, event.Provider)
	assert.Equal(t, "pay-1", event.ProviderPaymentID)
	assert.Equal(t, "sq-order-1", event.ProviderOrderID)
}

func TestSquareParsePaymentNotYetCompleted(t *testing.T) {
	payload := []byte(`{
		"event_id": "evt-2",
		"type": "payment.updated",
		"data": {"object": {"payment": {"id": "pay-2", "status": "APPROVED"}}}
	}`)
	parser := NewSquareParser(testSignatureKey, testNotificationURL)

	event, err := parser.Parse(payload, signSquare(t, payload))
	require.NoError(t, err)
	assert.Equal(t, KindIgnored, event.Kind)
}

func TestSquareParseTerminalCompleted(t *testing.T) {
	payload := []byte(`{
		"event_id": "evt-3",
		"type": "terminal.checkout.updated",
		"data": {
			"object": {
				"checkout": {
					"id": "tc-1",
					"status": "COMPLETED",
					"reference_id": "7f9c24e8-3b3d-4b5d-a0b5-3f4de1a84f0e",
					"payment_ids": ["sq-pay-9"]
				}
			}
		}
	}`)
	parser := NewSquareParser(testSignatureKey, testNotificationURL)

	event, err := parser.Parse(payload, signSquare(t, payload))
	require.NoError(t, err)
	assert.Equal(t, KindTerminalCompleted, event.Kind)
	assert.Equal(t, enums.PaymentProviderTerminal, event.Provider)
	assert.Equal(t, "tc-1", event.SessionID)
	assert.Equal(t, "7f9c24e8-3b3d-4b5d-a0b5-3f4de1a84f0e", event.ReferenceID)
	assert.Equal(t, "sq-pay-9", event.ProviderPaymentID)
}

func TestSquareParseIgnoresOtherEventTypes(t *testing.T) {
	payload := []byte(`{"event_id": "evt-4", "type": "refund.created", "data": {}}`)
	parser := NewSquareParser(testSignatureKey, testNotificationURL)

	event, err := parser.Parse(payload, signSquare(t, payload))
	require.NoError(t, err)
	assert.Equal(t, KindIgnored, event.Kind)
	assert.Equal(t, "refund.created", event.Type)
}

func TestSquareParseRejectsBadSignature(t *testing.T) {
	payload := []byte(`{"event_id": "evt-5", "type": "payment.updated", "data": {}}`)
	parser := NewSquareParser(testSignatureKey, testNotificationURL)

	_, err := parser.Parse(payload, "not-the-signature")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestSquareParseRejectsMissingSignature(t *testing.T) {
	parser := NewSquareParser(testSignatureKey, testNotificationURL)
	_, err := parser.Parse([]byte(`{}`), "")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestSquareParseRejectsWhenKeyUnconfigured(t *testing.T) {
	payload := []byte(`{"event_id": "evt-6", "type": "payment.updated"}`)
	parser := NewSquareParser("", testNotificationURL)
	_, err := parser.Parse(payload, signSquare(t, payload))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestSquareParseTamperedBodyFailsVerification(t *testing.T) {
	payload := []byte(`{"event_id": "evt-7", "type": "payment.updated", "data": {}}`)
	sig := signSquare(t, payload)
	tampered := []byte(`{"event_id": "evt-7", "type": "payment.updated", "data": {"x":1}}`)

	parser := NewSquareParser(testSignatureKey, testNotificationURL)
	_, err := parser.Parse(tampered, sig)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
