package domain

import "github.com/shopspring/decimal"

// Pricing holds quantity-tiered unit prices. Any tier may be absent.
//
//	Base: 1-9 units
//	Mid:  10-19 units
//	Top:  20+ units
type Pricing struct {
	Base decimal.NullDecimal
	Mid  decimal.NullDecimal
	Top  decimal.NullDecimal
}

// Product is a sellable catalog entry.
type Product struct {
	ID          string
	Label       string
	Unit        string
	Section     string
	Description string
	Pricing     Pricing
}

// Catalog is the set of active products in display order.
type Catalog struct {
	Products []Product
}

// Lookup returns the product with the given id.
func (c Catalog) Lookup(id string) (Product, bool) {
	for _, p := range c.Products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

// Len returns the number of products.
func (c Catalog) Len() int { return len(c.Products) }

// Price is a convenience constructor for a defined tier price.
func Price(v int64) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.NewFromInt(v), Valid: true}
}
