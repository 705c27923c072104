// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing signed monetary amounts from
// spreadsheet cells and formatting them for display.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a spreadsheet amount cell into a decimal.
//
// It tolerates currency symbols, thousands separators, surrounding whitespace
// and accounting-style negatives. The sign is preserved as written.
//
// Examples:
//
//	ParseAmount("4.50")      -> 4.50
//	ParseAmount("$1,234.56") -> 1234.56
//	ParseAmount("(12.00)")   -> -12.00
//	ParseAmount("-3")        -> -3
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.Map(func(r rune) rune {
		switch r {
		case '$', '€', '£', ',', ' ':
			return -1
		}
		return r
	}, s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// FormatMoney formats an amount for display (e.g. "$1,234.50", "-$4.00").
func FormatMoney(d decimal.Decimal) string {
	neg := d.IsNegative()
	s := d.Abs().StringFixed(2)

	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	out := "$" + b.String() + frac
	if neg {
		return "-" + out
	}
	return out
}
