package models

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidCurrency = errors.New("currency must be a 3-letter ISO 4217 code")
	ErrTooPrecise      = errors.New("amount has more decimal places than the currency allows")
	ErrAmountRange     = errors.New("amount is out of range")
)

// minorUnits lists ISO 4217 currencies whose minor unit exponent is not 2.
var minorUnits = map[string]int32{
	"BIF": 0, "CLP": 0, "DJF": 0, "GNF": 0, "ISK": 0, "JPY": 0, "KMF": 0, "KRW": 0,
	"PYG": 0, "RWF": 0, "UGX": 0, "UYI": 0, "VND": 0, "VUV": 0, "XAF": 0, "XOF": 0, "XPF": 0,
	"BHD": 3, "IQD": 3, "JOD": 3, "KWD": 3, "LYD": 3, "OMR": 3, "TND": 3,
}

// NormalizeCurrency upper-cases and validates a currency code.
func NormalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return "", ErrInvalidCurrency
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return "", ErrInvalidCurrency
		}
	}
	return code, nil
}

// MinorUnitExponent returns the number of decimal places of the currency's minor unit.
func MinorUnitExponent(currency string) int32 {
	if exp, ok := minorUnits[currency]; ok {
		return exp
	}
	return 2
}

// ToMinor converts a decimal amount into minor units of currency.
// Amounts finer than the minor unit are rejected rather than rounded.
func ToMinor(amount decimal.Decimal, currency string) (int64, error) {
	shifted := amount.Shift(MinorUnitExponent(currency))
	if !shifted.IsInteger() {
		return 0, ErrTooPrecise
	}
	bi := shifted.BigInt()
	if !bi.IsInt64() {
		return 0, ErrAmountRange
	}
	return bi.Int64(), nil
}

// FromMinor converts minor units of currency back into a decimal amount.
func FromMinor(minor int64, currency string) decimal.Decimal {
	return decimal.New(minor, -MinorUnitExponent(currency))
}

// FormatMinor renders minor units with exactly the currency's number of decimals,
// e.g. 9000 INR -> "90.00", -150 JPY -> "-150".
func FormatMinor(minor int64, currency string) string {
	return FromMinor(minor, currency).StringFixed(MinorUnitExponent(currency))
}
