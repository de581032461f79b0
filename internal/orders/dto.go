package orders

import (
	"time"

	"github.com/farmstandhq/farmstand-backend/pkg/enums"
)

// StatusResponse is the buyer-facing status poll payload.
type StatusResponse struct {
	OrderID    string            `json:"orderId"`
	Status     enums.OrderStatus `json:"status"`
	TotalCents int64             `json:"totalCents"`
	PaidAt     *time.Time        `json:"paidAt,omitempty"`
}

// CompleteResponse acknowledges a pickup handoff.
type CompleteResponse struct {
	OrderID string            `json:"orderId"`
	Status  enums.OrderStatus `json:"status"`
}
