package canonical

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Direction token sets. Anything not listed normalizes to debit, never to an
// error.
var creditTokens = map[string]bool{
	"credit": true, "cr": true, "c": true, "in": true, "inflow": true, "income": true,
}

var debitTokens = map[string]bool{
	"debit": true, "dr": true, "d": true, "out": true, "outflow": true, "expense": true,
}

// NormalizeDirection maps a raw direction/type token to a Direction.
func NormalizeDirection(token string) Direction {
	t := strings.ToLower(strings.TrimSpace(token))
	switch {
	case creditTokens[t]:
		return Credit
	case debitTokens[t]:
		return Debit
	default:
		return Debit
	}
}

// DirectionFromSign classifies a signed amount: zero or positive is credit,
// negative is debit.
func DirectionFromSign(amount decimal.Decimal) Direction {
	if amount.Sign() < 0 {
		return Debit
	}
	return Credit
}

// DefaultCategory is the deterministic category assigned when none was
// detected: credit means revenue, debit means expense. Applied exactly once,
// during normalization.
func DefaultCategory(d Direction) string {
	if d == Credit {
		return CategoryRevenue
	}
	return CategoryExpense
}

// dateFormats tried in fixed order: ISO first, then day-first, then US
// month-first. The order is the policy: an ambiguous "01/02/2024" parses
// day-first as 1 February.
var dateFormats = []string{
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
	"01/02/2006",
}

// ParseDate parses a raw date string against the fixed format list. The
// returned time has no clock component.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// ParseAmount converts strings like "1,234.56", "-£500" or "₹2 500.00" into a
// decimal. Currency symbols, thousands separators and whitespace are
// stripped. Empty input is zero, not an error.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	for _, sym := range []string{"£", "$", "€", "₹", ",", " ", " "} {
		s = strings.ReplaceAll(s, sym, "")
	}
	if s == "" || s == "-" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unparseable amount %q", s)
	}
	return d, nil
}
