package enums

import "fmt"

// OrderStatus tracks the dine-in order lifecycle.
type OrderStatus string

const (
	OrderStatusOpen             OrderStatus = "open"
	OrderStatusPaymentRequested OrderStatus = "payment_requested"
	OrderStatusPaid             OrderStatus = "paid"
	OrderStatusClosed           OrderStatus = "closed"
	OrderStatusCancelled        OrderStatus = "cancelled"
	OrderStatusRefundPending    OrderStatus = "refund_pending"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusOpen,
	OrderStatusPaymentRequested,
	OrderStatusPaid,
	OrderStatusClosed,
	OrderStatusCancelled,
	OrderStatusRefundPending,
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

// IsTerminal reports whether no further transitions are allowed.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusClosed || s == OrderStatusCancelled || s == OrderStatusRefundPending
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
