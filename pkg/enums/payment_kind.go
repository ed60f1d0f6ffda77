package enums

import "fmt"

// PaymentKind distinguishes what a payment attempt settles.
type PaymentKind string

const (
	PaymentKindOrder              PaymentKind = "order"
	PaymentKindOrderDeposit       PaymentKind = "deposit_order"
	PaymentKindReservationDeposit PaymentKind = "deposit_reservation"
)

var validPaymentKinds = []PaymentKind{
	PaymentKindOrder,
	PaymentKindOrderDeposit,
	PaymentKindReservationDeposit,
}

// IsValid reports whether the value is a known PaymentKind.
func (k PaymentKind) IsValid() bool {
	for _, candidate := range validPaymentKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParsePaymentKind converts raw input into a PaymentKind.
func ParsePaymentKind(value string) (PaymentKind, error) {
	for _, candidate := range validPaymentKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment kind %q", value)
}
