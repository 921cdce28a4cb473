package widget

import (
	"regexp"
	"strings"

	companion "currency-companion"

	"github.com/shopspring/decimal"
)

// amountPattern an optional integer part, an optional point, an optional fraction.
var amountPattern = regexp.MustCompile(`^\d*\.?\d*$`)

// ValidAmount reports whether s may be held as the amount being edited, including
// half-typed values such as "" or "12.".
func ValidAmount(s string) bool {
	return amountPattern.MatchString(s)
}

// ParseAmount reads a valid amount string. "" and "." read as zero.
func ParseAmount(s string) decimal.Decimal {
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	if strings.HasSuffix(s, ".") {
		s += "0"
	}
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Convert multiplies amount by rate.
func Convert(amount decimal.Decimal, rate companion.Rate) decimal.Decimal {
	return amount.Mul(decimal.NewFromFloat(float64(rate)))
}
