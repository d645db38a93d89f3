// Package core provides money parsing and handling utilities.
//
// All monetary values are exact decimals. Amounts are never carried as
// float64 so that accumulating many months of entries cannot drift.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// Money is an exact decimal amount in the account currency.
type Money = decimal.Decimal

// Zero is the zero amount.
var Zero = decimal.Zero

// ParseAmount converts a decimal string to Money.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Signs,
// exponents and thousands separators are rejected; zero is allowed, since a
// source may legitimately be declared at 0 while it is being set up.
//
// Examples:
//
//	ParseAmount("12.34") -> 12.34, nil
//	ParseAmount("12,34") -> 12.34, nil
//	ParseAmount("-1")    -> 0, ErrInvalidAmount
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return Zero, ErrInvalidAmount
	}
	if parts[0] == "" && (len(parts) == 1 || parts[1] == "") {
		return Zero, ErrInvalidAmount
	}
	for _, p := range parts {
		for _, r := range p {
			if !unicode.IsDigit(r) {
				return Zero, ErrInvalidAmount
			}
		}
	}
	if parts[0] == "" {
		s = "0" + s
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, ErrInvalidAmount
	}
	return d, nil
}

// MustAmount parses s and panics on failure. Intended for constants and tests.
func MustAmount(s string) Money {
	m, err := ParseAmount(s)
	if err != nil {
		panic("core: invalid amount " + s)
	}
	return m
}

// SumAmounts adds every amount exactly.
func SumAmounts(amounts ...Money) Money {
	return decimal.Sum(Zero, amounts...)
}
