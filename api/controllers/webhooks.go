package controllers

import (
	"io"
	"net/http"

	"github.com/farmstandhq/farmstand-backend/api/responses"
	"github.com/farmstandhq/farmstand-backend/internal/webhooks"
	pkgerrors "github.com/farmstandhq/farmstand-backend/pkg/errors"
	"github.com/farmstandhq/farmstand-backend/pkg/logger"
)

const (
	stripeSignatureHeader = "Stripe-Signature"
	squareSignatureHeader = "x-square-hmacsha256-signature"

	maxWebhookBodyBytes = 1 << 20
)

// StripeWebhook receives Stripe checkout events. Acks use the raw shape the
// reconciliation contract documents, not the success envelope.
func StripeWebhook(svc webhooks.Service, logg *logger.Logger) http.HandlerFunc {
	return webhookHandler(logg, stripeSignatureHeader, func(r *http.Request, payload []byte, signature string) (*webhooks.Ack, error) {
		if svc == nil {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable")
		}
		return svc.HandleStripe(r.Context(), payload, signature)
	})
}

// SquareWebhook receives Square payment and terminal events.
func SquareWebhook(svc webhooks.Service, logg *logger.Logger) http.HandlerFunc {
	return webhookHandler(logg, squareSignatureHeader, func(r *http.Request, payload []byte, signature string) (*webhooks.Ack, error) {
		if svc == nil {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable")
		}
		return svc.HandleSquare(r.Context(), payload, signature)
	})
}

func webhookHandler(logg *logger.Logger, header string, handle func(r *http.Request, payload []byte, signature string) (*webhooks.Ack, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		signature := r.Header.Get(header)
		if signature == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.Newf(pkgerrors.CodeValidation, "%s header missing", header))
			return
		}

		ack, err := handle(r, payload, signature)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteJSON(w, http.StatusOK, ack)
	}
}
