package checkout

import "github.com/farmstandhq/farmstand-backend/pkg/enums"

// SessionResponse carries the hosted checkout redirect URL.
type SessionResponse struct {
	URL string `json:"url"`
}

// CashPaymentResponse is the synchronous cash confirmation result.
type CashPaymentResponse struct {
	Status            enums.OrderStatus `json:"status"`
	PaymentMethod     string            `json:"paymentMethod"`
	CashReceivedCents int64             `json:"cashReceivedCents"`
	ChangeCents       int64             `json:"changeCents"`
}

// NativePaymentResponse acknowledges a device-side SDK payment confirmation.
type NativePaymentResponse struct {
	Status enums.OrderStatus `json:"status"`
}

// CreateOrderResponse is returned after the reservation engine creates an
// order from a cart.
type CreateOrderResponse struct {
	OrderID    string            `json:"orderId"`
	Status     enums.OrderStatus `json:"status"`
	TotalCents int64             `json:"totalCents"`
	ExpiresAt  string            `json:"expiresAt,omitempty"`
}
