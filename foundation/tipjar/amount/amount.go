// Package amount converts user entered currency strings into the ledger's
// base units and back.
package amount

import (
	"math/big"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Decimals is the number of fractional digits of precision the ledger's
// currency carries. One whole coin is 10^Decimals base units.
const Decimals = 18

// pattern is the only accepted shape of an amount: digits with an optional
// fraction of at most Decimals digits. No sign, exponent or separators.
var pattern = regexp.MustCompile(`^\d+(\.\d{1,18})?$`)

// Parse converts the decimal string into base units. The second return value
// is false when the string is malformed, carries too many fractional digits,
// or represents zero. The conversion is exact, no floating point is involved.
func Parse(s string) (*big.Int, bool) {
	s = strings.TrimSpace(s)
	if !pattern.MatchString(s) {
		return nil, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, false
	}

	// Shifting by the precision leaves an integer since the pattern bounds
	// the fraction length.
	units := d.Shift(Decimals)
	if !units.IsInteger() {
		return nil, false
	}

	v := units.BigInt()
	if v.Sign() <= 0 {
		return nil, false
	}

	return v, true
}

// MustParse is Parse for constants in programs and tests. It panics when the
// string is rejected.
func MustParse(s string) *big.Int {
	v, ok := Parse(s)
	if !ok {
		panic("amount: invalid amount " + s)
	}
	return v
}

// Format renders the base units as a decimal string in whole coins with no
// trailing zeros. A nil value formats as "0".
func Format(v *big.Int) string {
	if v == nil {
		return "0"
	}

	return decimal.NewFromBigInt(v, -Decimals).String()
}

// FormatFixed renders the base units in whole coins rounded to the number of
// places specified.
func FormatFixed(v *big.Int, places int32) string {
	if v == nil {
		v = new(big.Int)
	}

	return decimal.NewFromBigInt(v, -Decimals).StringFixed(places)
}
