package enums

import "fmt"

// VoucherDiscountType selects how a voucher value is interpreted.
type VoucherDiscountType string

const (
	VoucherDiscountPercentage VoucherDiscountType = "percentage"
	VoucherDiscountFixed      VoucherDiscountType = "fixed"
)

var validVoucherDiscountTypes = []VoucherDiscountType{
	VoucherDiscountPercentage,
	VoucherDiscountFixed,
}

// IsValid reports whether the value is a known VoucherDiscountType.
func (t VoucherDiscountType) IsValid() bool {
	for _, candidate := range validVoucherDiscountTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseVoucherDiscountType converts raw input into a VoucherDiscountType.
func ParseVoucherDiscountType(value string) (VoucherDiscountType, error) {
	for _, candidate := range validVoucherDiscountTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid voucher discount type %q", value)
}
