package enums

import "fmt"

// OrderStatus tracks an order through its lifecycle. Transitions only move
// forward: PENDING_PAYMENT -> PAID -> COMPLETED, with PENDING_PAYMENT also
// terminating in EXPIRED (sweeper only) or CANCELLED.
type OrderStatus string

const (
	OrderStatusPendingPayment OrderStatus = "PENDING_PAYMENT"
	OrderStatusPaid           OrderStatus = "PAID"
	OrderStatusCompleted      OrderStatus = "COMPLETED"
	OrderStatusExpired        OrderStatus = "EXPIRED"
	OrderStatusCancelled      OrderStatus = "CANCELLED"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPendingPayment,
	OrderStatusPaid,
	OrderStatusCompleted,
	OrderStatusExpired,
	OrderStatusCancelled,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusExpired, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// AtLeastPaid reports whether payment has already been confirmed. Handlers
// racing to mark an order paid treat this as "someone else won, no-op".
func (s OrderStatus) AtLeastPaid() bool {
	return s == OrderStatusPaid || s == OrderStatusCompleted
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
