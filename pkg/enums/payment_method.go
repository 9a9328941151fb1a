package enums

import "fmt"

// PaymentMethod records which settlement path the customer chose. It starts
// unset and may change while the order is still unpaid (a customer can
// switch methods after a failed attempt), never after.
type PaymentMethod string

const (
	PaymentMethodUnset   PaymentMethod = "unset"
	PaymentMethodPayTabs PaymentMethod = "paytabs"
	PaymentMethodTabby   PaymentMethod = "tabby"
	PaymentMethodTamara  PaymentMethod = "tamara"
	PaymentMethodBank    PaymentMethod = "bank"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodUnset,
	PaymentMethodPayTabs,
	PaymentMethodTabby,
	PaymentMethodTamara,
	PaymentMethodBank,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// MethodForProvider maps a gateway to the payment method it settles.
func MethodForProvider(provider PaymentProvider) PaymentMethod {
	switch provider {
	case ProviderPayTabs:
		return PaymentMethodPayTabs
	case ProviderTabby:
		return PaymentMethodTabby
	case ProviderTamara:
		return PaymentMethodTamara
	default:
		return PaymentMethodUnset
	}
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	for _, candidate := range validPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
