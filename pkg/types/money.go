package types

import "github.com/shopspring/decimal"

// FormatCents renders an integer cent amount as a fixed two-decimal string.
func FormatCents(cents int) string {
	return decimal.NewFromInt(int64(cents)).Shift(-2).StringFixed(2)
}

// ParseCents converts a decimal amount string into cents, rejecting sub-cent precision.
func ParseCents(amount string) (int, bool) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return 0, false
	}
	shifted := d.Shift(2)
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, false
	}
	return int(shifted.IntPart()), true
}
