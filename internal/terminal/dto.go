package terminal

import "github.com/farmstandhq/farmstand-backend/pkg/enums"

// CheckoutResponse identifies the checkout pushed to the device.
type CheckoutResponse struct {
	CheckoutID string `json:"checkoutId"`
	Status     string `json:"status"`
}

// StatusResponse pairs the device-side checkout status with the order's own
// lifecycle state.
type StatusResponse struct {
	Status      string            `json:"status"`
	OrderStatus enums.OrderStatus `json:"orderStatus"`
}
