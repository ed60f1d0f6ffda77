package enums

import "fmt"

// OrderItemStatus tracks a single line through the kitchen.
type OrderItemStatus string

const (
	OrderItemStatusPending   OrderItemStatus = "pending"
	OrderItemStatusPreparing OrderItemStatus = "preparing"
	OrderItemStatusReady     OrderItemStatus = "ready"
	OrderItemStatusDelivered OrderItemStatus = "delivered"
	OrderItemStatusRemoved   OrderItemStatus = "removed"
)

var validOrderItemStatuses = []OrderItemStatus{
	OrderItemStatusPending,
	OrderItemStatusPreparing,
	OrderItemStatusReady,
	OrderItemStatusDelivered,
	OrderItemStatusRemoved,
}

// IsValid reports whether the value is a known OrderItemStatus.
func (s OrderItemStatus) IsValid() bool {
	for _, candidate := range validOrderItemStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsActive reports whether the line still counts toward order totals.
func (s OrderItemStatus) IsActive() bool {
	return s != OrderItemStatusRemoved
}

// ParseOrderItemStatus converts raw input into an OrderItemStatus.
func ParseOrderItemStatus(value string) (OrderItemStatus, error) {
	for _, candidate := range validOrderItemStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order item status %q", value)
}
