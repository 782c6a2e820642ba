package enums

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency is an ISO 4217 code. Amounts are stored as integer minor units.
type Currency string

const (
	CurrencyNGN Currency = "NGN"
	CurrencyGHS Currency = "GHS"
	CurrencyUSD Currency = "USD"
)

// minorDigits is the number of decimal places per supported currency.
var minorDigits = map[Currency]int32{
	CurrencyNGN: 2,
	CurrencyGHS: 2,
	CurrencyUSD: 2,
}

func (c Currency) String() string { return string(c) }

func (c Currency) IsValid() bool {
	_, ok := minorDigits[c]
	return ok
}

// ParseCurrency accepts a code in any case, e.g. "ngn".
func ParseCurrency(value string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(value)))
	if !c.IsValid() {
		return "", fmt.Errorf("unsupported currency %q", value)
	}
	return c, nil
}

// FormatMinor renders an amount in minor units as a fixed-point major amount,
// e.g. 12345 NGN -> "123.45". Unknown currencies assume two digits.
func (c Currency) FormatMinor(minor int64) string {
	digits, ok := minorDigits[c]
	if !ok {
		digits = 2
	}
	return decimal.NewFromInt(minor).Shift(-digits).StringFixed(digits)
}
