package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatMoney renders an amount the way customers read prices:
// "$54.000", or "$1.234,50" when there are cents.
func FormatMoney(d decimal.Decimal) string {
	neg := d.IsNegative()
	d = d.Abs().Round(2)

	whole := d.Truncate(0)
	frac := d.Sub(whole)

	digits := whole.String()
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}

	out := "$" + b.String()
	if !frac.IsZero() {
		cents := frac.Shift(2).Round(0).IntPart()
		out += fmt.Sprintf(",%02d", cents)
	}
	if neg {
		out = "-" + out
	}
	return out
}
