// Package money parses and formats BRL amounts typed in chat and splits
// totals into installments.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Parse reads an amount the way people type it: "50", "50,5", "R$ 1.234,56",
// "1,234.56". The right-most separator followed by one or two digits is the
// decimal separator; three trailing digits mean a thousands separator.
func Parse(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "R$"), "r$")
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if s == "" {
		return decimal.Zero, errors.New("money: empty amount")
	}

	last := strings.LastIndexAny(s, ".,")
	if last >= 0 {
		frac := s[last+1:]
		intPart := strings.NewReplacer(".", "", ",", "").Replace(s[:last])
		switch {
		case len(frac) == 3 && !strings.ContainsAny(frac, ".,"):
			s = intPart + frac
		case len(frac) == 1 || len(frac) == 2:
			s = intPart + "." + frac
		default:
			return decimal.Zero, fmt.Errorf("money: malformed amount %q", s)
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("money: parse %q: %w", s, err)
	}
	return d.Round(2), nil
}

// Format renders an amount with the locale's separators, always in reais:
// "R$ 1.234,56" for pt-BR, "R$ 1,234.56" otherwise.
func Format(amount decimal.Decimal, locale string) string {
	thousands, decimals := ".", ","
	if !strings.HasPrefix(strings.ToLower(locale), "pt") {
		thousands, decimals = ",", "."
	}

	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}
	fixed := amount.StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteString(thousands)
		}
		b.WriteRune(r)
	}
	return sign + "R$ " + b.String() + decimals + frac
}

// Split divides total into n installments rounded down to cents; the last
// installment absorbs the remainder so the parts always sum to total.
func Split(total decimal.Decimal, n int) ([]decimal.Decimal, error) {
	if n < 1 {
		return nil, fmt.Errorf("money: installments must be positive, got %d", n)
	}
	if !total.IsPositive() {
		return nil, errors.New("money: total must be positive")
	}
	cents := total.Mul(hundred).Round(0)
	base := cents.Div(decimal.NewFromInt(int64(n))).Floor()

	parts := make([]decimal.Decimal, n)
	for i := 0; i < n-1; i++ {
		parts[i] = base.Div(hundred)
	}
	rest := cents.Sub(base.Mul(decimal.NewFromInt(int64(n - 1))))
	parts[n-1] = rest.Div(hundred)
	return parts, nil
}
