package companion

import (
	"errors"
	"fmt"
	"sort"

	"github.com/samber/lo"
)

// Currency a currency code
type Currency string

// Rate an exchange rate
type Rate float64

// Rates maps a target currency to the rate of one unit of some base currency.
// A Rates value is always scoped to a single base.
type Rates map[Currency]Rate

// ErrUnsupportedCurrency is returned for codes outside the supported set.
var ErrUnsupportedCurrency = errors.New("unsupported currency")

// supported is the closed set of currencies offered for both base and target selection.
var supported = []Currency{"JPY", "USD", "EUR", "GBP"}

// Currencies returns the supported currency codes in display order.
func Currencies() []Currency {
	out := make([]Currency, len(supported))
	copy(out, supported)
	return out
}

// Supported reports whether c is one of the supported currencies.
func Supported(c Currency) bool {
	return lo.Contains(supported, c)
}

// Validate returns ErrUnsupportedCurrency wrapped with the offending code
func Validate(c Currency) error {
	if !Supported(c) {
		return fmt.Errorf("%w: %q", ErrUnsupportedCurrency, c)
	}
	return nil
}

// Clone returns an independent copy of r.
func (r Rates) Clone() Rates {
	if r == nil {
		return Rates{}
	}
	out := make(Rates, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Codes returns the currencies present in r, sorted.
func (r Rates) Codes() []Currency {
	codes := lo.Keys(r)
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}
