package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency formats amounts with a fixed symbol and two decimal places
type Currency struct {
	Symbol string
}

// DefaultCurrency renders Indian rupees
var DefaultCurrency = Currency{Symbol: "₹"}

// Signed formats an amount with an explicit sign, e.g. "+₹40.00" or "-₹5.00"
func (c Currency) Signed(amount decimal.Decimal) string {
	sign := "+"
	if amount.IsNegative() {
		sign = "-"
	}
	return sign + c.Symbol + amount.Abs().StringFixed(2)
}

// Plain formats an amount with a sign only when negative, e.g. "₹60.00"
func (c Currency) Plain(amount decimal.Decimal) string {
	if amount.IsNegative() {
		return "-" + c.Symbol + amount.Abs().StringFixed(2)
	}
	return c.Symbol + amount.StringFixed(2)
}

// ParseAmount reads a user-entered amount. It accepts an optional sign,
// the currency symbol, thousands separators and surrounding space.
func (c Currency) ParseAmount(text string) (decimal.Decimal, error) {
	s := strings.TrimSpace(text)
	negative := false
	switch {
	case strings.HasPrefix(s, "-"):
		negative = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	if c.Symbol != "" {
		s = strings.TrimPrefix(strings.TrimSpace(s), c.Symbol)
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}

	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing amount %q: %w", text, err)
	}
	if negative {
		amount = amount.Neg()
	}
	return amount, nil
}
