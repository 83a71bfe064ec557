// Package pricing computes order totals from quantity-tiered unit prices.
//
// Tier selection per cart line:
//
//	quantity >= 20  -> Top
//	quantity >= 10  -> Mid
//	otherwise       -> Base
//
// A missing tier falls back to the next lower defined tier, and to zero
// when none is defined. There is no delivery surcharge.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/roach88/pamperito/internal/domain"
)

const (
	// MidTierMin is the first quantity priced at the middle tier.
	MidTierMin = 10
	// TopTierMin is the first quantity priced at the top tier.
	TopTierMin = 20
)

// UnitPrice returns the unit price of p for the given quantity.
func UnitPrice(p domain.Product, quantity int) decimal.Decimal {
	tiers := []decimal.NullDecimal{p.Pricing.Base}
	switch {
	case quantity >= TopTierMin:
		tiers = []decimal.NullDecimal{p.Pricing.Top, p.Pricing.Mid, p.Pricing.Base}
	case quantity >= MidTierMin:
		tiers = []decimal.NullDecimal{p.Pricing.Mid, p.Pricing.Base}
	}
	for _, t := range tiers {
		if t.Valid {
			return t.Decimal
		}
	}
	return decimal.Zero
}

// LineTotal returns unit price times quantity for one cart line, and
// whether the product exists in the catalog.
func LineTotal(item domain.CartItem, catalog domain.Catalog) (decimal.Decimal, bool) {
	p, ok := catalog.Lookup(item.ProductID)
	if !ok {
		return decimal.Zero, false
	}
	return UnitPrice(p, item.Quantity).Mul(decimal.NewFromInt(int64(item.Quantity))), true
}

// ComputeTotal sums every line of the cart. Lines referencing products
// missing from the catalog contribute zero instead of failing the order.
func ComputeTotal(items []domain.CartItem, catalog domain.Catalog) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		line, _ := LineTotal(item, catalog)
		total = total.Add(line)
	}
	return total
}
