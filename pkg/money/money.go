// Package money holds the currency helpers shared by the package and
// financial code. Amounts are decimals; importing this package makes decimals
// encode as JSON numbers, which is what the backend speaks.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// brl groups thousands the pt-BR way.
var brl = message.NewPrinter(language.BrazilianPortuguese)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// Format renders an amount as Brazilian reais, e.g. "R$ 1.234,56" or "-R$ 100,00".
func Format(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	d = d.Round(2)
	_, cents, _ := strings.Cut(d.StringFixed(2), ".")
	return fmt.Sprintf("%sR$ %s,%s", sign, brl.Sprintf("%d", d.IntPart()), cents)
}

// Parse reads "1234.56", "1.234,56" or "R$ 1.234,56".
func Parse(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "R$"))
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}
