// Package util holds small formatting and parsing helpers shared by the chat and HTTP layers.
package util

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned by ParseAmount for malformed input.
var ErrInvalidAmount = errors.New("invalid amount")

// Money formats an amount as BRL with two decimals.
func Money(amount decimal.Decimal) string {
	return "R$ " + amount.StringFixed(2)
}

// ParseAmount parses user input such as "10", "10.5", "10,50" or "R$ 10,50".
// Amounts with more than two decimals are rejected.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "R$"), "r$")
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.Contains(s, ",") {
		if strings.Contains(s, ".") {
			// 1.234,56
			s = strings.ReplaceAll(s, ".", "")
		}
		s = strings.ReplaceAll(s, ",", ".")
	}
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if amount.Exponent() < -2 && !amount.Equal(amount.Round(2)) {
		return decimal.Zero, ErrInvalidAmount
	}
	return amount, nil
}

// HideSecret obscures a credential for logging, keeping only its ends.
func HideSecret(secret string) string {
	switch {
	case len(secret) > 8:
		return secret[:4] + "..." + secret[len(secret)-4:]
	case len(secret) > 4:
		return secret[:2] + "..." + secret[len(secret)-2:]
	case len(secret) > 2:
		return secret[:1] + "..." + secret[len(secret)-1:]
	}
	return secret
}
