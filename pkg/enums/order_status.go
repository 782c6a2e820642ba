package enums

import "fmt"

// OrderStatus tracks the lifecycle of a settled order.
type OrderStatus string

const (
	OrderStatusPendingDelivery OrderStatus = "pending_delivery"
	OrderStatusDelivered       OrderStatus = "delivered"
	OrderStatusCancelled       OrderStatus = "cancelled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPendingDelivery,
	OrderStatusDelivered,
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

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}

// CompletionVia records who moved an order to delivered.
type CompletionVia string

const (
	CompletionViaBuyer     CompletionVia = "buyer"
	CompletionViaScheduler CompletionVia = "scheduler"
)

// IsValid reports whether the value is a known CompletionVia.
func (c CompletionVia) IsValid() bool {
	return c == CompletionViaBuyer || c == CompletionViaScheduler
}
