package enums

import "fmt"

// PaymentOutcome is the result observed from the gateway for a reference.
type PaymentOutcome string

const (
	PaymentOutcomeSuccess PaymentOutcome = "success"
	PaymentOutcomeFailed  PaymentOutcome = "failed"
	PaymentOutcomePending PaymentOutcome = "pending"
)

var validPaymentOutcomes = []PaymentOutcome{
	PaymentOutcomeSuccess,
	PaymentOutcomeFailed,
	PaymentOutcomePending,
}

// String implements fmt.Stringer.
func (o PaymentOutcome) String() string {
	return string(o)
}

// IsValid reports whether the value is a known PaymentOutcome.
func (o PaymentOutcome) IsValid() bool {
	for _, candidate := range validPaymentOutcomes {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParsePaymentOutcome converts raw input into a PaymentOutcome.
func ParsePaymentOutcome(value string) (PaymentOutcome, error) {
	for _, candidate := range validPaymentOutcomes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment outcome %q", value)
}

// ResolveSource names the entry point that observed an outcome.
type ResolveSource string

const (
	ResolveSourceWebhook ResolveSource = "webhook"
	ResolveSourceVerify  ResolveSource = "verify"
)

// IsValid reports whether the value is a known ResolveSource.
func (s ResolveSource) IsValid() bool {
	return s == ResolveSourceWebhook || s == ResolveSourceVerify
}
