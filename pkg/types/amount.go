package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Token amounts cross the API as fixed-point decimal strings ("50.0000") and
// live in storage as int64 minor units. Precision is the number of decimal
// places the platform asset carries.

// ParseAmount converts a decimal string into minor units at the given
// precision. Inputs with more fractional digits than the precision allows are
// rejected rather than rounded.
func ParseAmount(value string, precision int) (int64, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	if d.Exponent() < int32(-precision) {
		return 0, fmt.Errorf("amount %q exceeds precision %d", value, precision)
	}
	scaled := d.Shift(int32(precision))
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("amount %q exceeds precision %d", value, precision)
	}
	return scaled.IntPart(), nil
}

// FormatAmount renders minor units as a fixed-point decimal string with
// exactly precision fractional digits.
func FormatAmount(minorUnits int64, precision int) string {
	return decimal.New(minorUnits, int32(-precision)).StringFixed(int32(precision))
}
