package utils

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// maxDecimalExponent bounds exponent notation; "1e999999999" would otherwise render as
// a gigabyte of digits.
const maxDecimalExponent = 100

// ParseDecimal parses decimal or 0x-prefixed hex strings. ok is false when s is not a number
// or its exponent is beyond ±maxDecimalExponent.
func ParseDecimal(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		n, ok := new(big.Int).SetString(s[2:], 16)
		if !ok {
			return decimal.Zero, false
		}
		return decimal.NewFromBigInt(n, 0), true
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return decimal.Zero, false
	}
	if exp := d.Exponent(); exp > maxDecimalExponent || exp < -maxDecimalExponent {
		return decimal.Zero, false
	}
	return d, true
}

// ParseAmount parses an amount that must not be negative. Anything unparseable or
// negative becomes zero.
func ParseAmount(s string) decimal.Decimal {
	d, ok := ParseDecimal(s)
	if !ok || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// ScaleUnits converts base units into whole units.
// Example: raw=1500000000000000000, decimals=18 => 1.5
func ScaleUnits(raw decimal.Decimal, decimals int32) decimal.Decimal {
	if decimals <= 0 {
		return raw
	}
	return raw.Shift(-decimals)
}

// FormatAmount renders a whole-unit amount without trailing zeros.
func FormatAmount(d decimal.Decimal) string {
	if d.IsZero() {
		return "0"
	}
	return d.String()
}

// FormatFiat renders a fiat value with two decimals.
func FormatFiat(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// FormatPrice renders a unit price. Sub-unit prices keep up to eight decimals.
func FormatPrice(d decimal.Decimal) string {
	if d.IsZero() || d.Abs().GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return d.StringFixed(2)
	}
	return d.Round(8).String()
}

// WeiToGwei converts a wei amount into gwei.
func WeiToGwei(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -9).Round(4).String()
}
