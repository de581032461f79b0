package enums

import "fmt"

// PaymentProvider identifies which payment rail an order settles through.
type PaymentProvider string

const (
	// PaymentProviderStripe is the platform-operated hosted checkout.
	PaymentProviderStripe PaymentProvider = "stripe"
	// PaymentProviderSquare is a seller-operated Square payment link.
	PaymentProviderSquare PaymentProvider = "square"
	// PaymentProviderTerminal is a Square Terminal card-present checkout.
	PaymentProviderTerminal PaymentProvider = "terminal"
	// PaymentProviderCash is an in-person cash payment.
	PaymentProviderCash PaymentProvider = "cash"
	// PaymentProviderUnset means no provider has been selected yet.
	PaymentProviderUnset PaymentProvider = ""
)

var validPaymentProviders = []PaymentProvider{
	PaymentProviderStripe,
	PaymentProviderSquare,
	PaymentProviderTerminal,
	PaymentProviderCash,
}

// String implements fmt.Stringer.
func (p PaymentProvider) String() string {
	return string(p)
}

// IsValid reports whether the value is a known, concrete PaymentProvider.
func (p PaymentProvider) IsValid() bool {
	for _, candidate := range validPaymentProviders {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsHosted reports whether checkout happens on a provider-hosted page that can
// be created and reused through the common Provider interface.
func (p PaymentProvider) IsHosted() bool {
	return p == PaymentProviderStripe || p == PaymentProviderSquare
}

// ParsePaymentProvider converts raw input into a PaymentProvider.
func ParsePaymentProvider(value string) (PaymentProvider, error) {
	for _, candidate := range validPaymentProviders {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment provider %q", value)
}
