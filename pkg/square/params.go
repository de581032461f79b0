package square

import (
	"strings"

	sq "github.com/square/square-go-sdk"
	sqcheckout "github.com/square/square-go-sdk/checkout"
	sqterminal "github.com/square/square-go-sdk/terminal"
)

// PaymentLinkCreateParams contains the fields required to create a hosted
// payment link through Square's quick pay flow.
type PaymentLinkCreateParams struct {
	LocationID     string
	Name           string
	AmountCents    int64
	Currency       string
	ReferenceID    string
	RedirectURL    string
	Note           string
	IdempotencyKey string
}

func (p PaymentLinkCreateParams) toSquareRequest(idempotencyKey string) *sqcheckout.CreatePaymentLinkRequest {
	req := &sqcheckout.CreatePaymentLinkRequest{
		IdempotencyKey: ptrString(idempotencyKey),
		// A full order (not quick pay) so the marketplace order id rides
		// along as the Square order's reference id.
		Order: &sq.Order{
			LocationID:  p.LocationID,
			ReferenceID: ptrString(p.ReferenceID),
			LineItems: []*sq.OrderLineItem{
				{
					Name:           ptrString(p.Name),
					Quantity:       "1",
					BasePriceMoney: moneyPtr(p.AmountCents, p.Currency),
				},
			},
		},
	}
	if trimmed := strings.TrimSpace(p.RedirectURL); trimmed != "" {
		req.CheckoutOptions = &sq.CheckoutOptions{RedirectURL: ptrString(trimmed)}
	}
	if trimmed := strings.TrimSpace(p.Note); trimmed != "" {
		req.PaymentNote = ptrString(trimmed)
	}
	return req
}

// TerminalCheckoutCreateParams groups the inputs for a card-present checkout
// pushed to a paired Square Terminal device.
type TerminalCheckoutCreateParams struct {
	DeviceID       string
	AmountCents    int64
	Currency       string
	ReferenceID    string
	Note           string
	IdempotencyKey string
}

func (p TerminalCheckoutCreateParams) toSquareRequest(idempotencyKey string) *sqterminal.CreateTerminalCheckoutRequest {
	checkout := &sq.TerminalCheckout{
		AmountMoney: moneyPtr(p.AmountCents, p.Currency),
		DeviceOptions: &sq.DeviceCheckoutOptions{
			DeviceID: p.DeviceID,
		},
	}
	if trimmed := strings.TrimSpace(p.ReferenceID); trimmed != "" {
		checkout.ReferenceID = ptrString(trimmed)
	}
	if trimmed := strings.TrimSpace(p.Note); trimmed != "" {
		checkout.Note = ptrString(trimmed)
	}
	return &sqterminal.CreateTerminalCheckoutRequest{
		IdempotencyKey: idempotencyKey,
		Checkout:       checkout,
	}
}

func ptrString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func int64Ptr(value int64) *int64 {
	return &value
}

func currencyPtr(code string) *sq.Currency {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if trimmed == "" {
		trimmed = "USD"
	}
	c := sq.Currency(trimmed)
	return &c
}

func moneyPtr(amount int64, currency string) *sq.Money {
	if amount == 0 {
		return nil
	}
	return &sq.Money{
		Amount:   int64Ptr(amount),
		Currency: currencyPtr(currency),
	}
}
