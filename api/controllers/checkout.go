package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/farmstandhq/farmstand-backend/api/responses"
	"github.com/farmstandhq/farmstand-backend/api/validators"
	checkoutsvc "github.com/farmstandhq/farmstand-backend/internal/checkout"
	pkgerrors "github.com/farmstandhq/farmstand-backend/pkg/errors"
	"github.com/farmstandhq/farmstand-backend/pkg/logger"
)

type createOrderRequest struct {
	SellerSessionID uuid.UUID          `json:"sellerSessionId" validate:"required"`
	CustomerID      *uuid.UUID         `json:"customerId,omitempty" validate:"omitempty"`
	Items           []orderLineRequest `json:"items" validate:"required,min=1,dive"`
}

type orderLineRequest struct {
	ListingID uuid.UUID `json:"listingId" validate:"required"`
	Qty       int       `json:"qty" validate:"required,min=1"`
}

type sessionRequest struct {
	OrderID uuid.UUID `json:"orderId" validate:"required"`
	Email   string    `json:"email,omitempty" validate:"omitempty,email"`
}

type cashPaymentRequest struct {
	OrderID           uuid.UUID `json:"orderId" validate:"required"`
	CashReceivedCents int64     `json:"cashReceivedCents" validate:"required,min=1"`
}

type nativePaymentRequest struct {
	OrderID   uuid.UUID `json:"orderId" validate:"required"`
	PaymentID string    `json:"paymentId" validate:"required"`
}

// CheckoutCreateOrder reserves stock for the cart and opens a pending order.
func CheckoutCreateOrder(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload createOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lines := make([]checkoutsvc.ReservationLine, 0, len(payload.Items))
		for _, item := range payload.Items {
			lines = append(lines, checkoutsvc.ReservationLine{ListingID: item.ListingID, Qty: item.Qty})
		}

		resp, err := svc.CreateOrder(r.Context(), checkoutsvc.ReservationInput{
			SellerSessionID: payload.SellerSessionID,
			CustomerID:      payload.CustomerID,
			Lines:           lines,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, resp)
	}
}

// CheckoutSession returns a hosted payment page URL for the order, reusing
// the stored session when it is still open.
func CheckoutSession(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload sessionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp, err := svc.CreateOrGetSession(r.Context(), payload.OrderID, payload.Email)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, resp)
	}
}

// CheckoutCash confirms an in-person cash payment.
func CheckoutCash(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload cashPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp, err := svc.PayCash(r.Context(), payload.OrderID, payload.CashReceivedCents)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, resp)
	}
}

// CheckoutNative records a payment captured by the seller's device SDK.
func CheckoutNative(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload nativePaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp, err := svc.CompleteNativePayment(r.Context(), payload.OrderID, payload.PaymentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, resp)
	}
}
