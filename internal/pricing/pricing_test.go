package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/roach88/pamperito/internal/domain"
)

func testCatalog() domain.Catalog {
	return domain.Catalog{Products: []domain.Product{
		{
			ID: "lenia_10kg", Label: "Leña - bolsa 10kg", Unit: "bolsa",
			Pricing: domain.Pricing{Base: domain.Price(6000), Mid: domain.Price(5000), Top: domain.Price(4000)},
		},
		{
			ID: "carbon_5kg", Label: "Carbón - bolsa 5kg", Unit: "bolsa",
			Pricing: domain.Pricing{Base: domain.Price(5000), Mid: domain.Price(4700), Top: domain.Price(3500)},
		},
		{
			// Only the base tier is defined.
			ID: "pack_alamo", Label: "Pack Álamo", Unit: "unidad",
			Pricing: domain.Pricing{Base: domain.Price(1500)},
		},
		{
			// Base and top, no middle tier.
			ID: "gap", Label: "Gap", Unit: "unidad",
			Pricing: domain.Pricing{Base: domain.Price(100), Top: domain.Price(50)},
		},
		{ID: "free", Label: "Sin precio", Unit: "unidad"},
	}}
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestUnitPrice_Tiers(t *testing.T) {
	p, _ := testCatalog().Lookup("lenia_10kg")

	tests := []struct {
		qty  int
		want int64
	}{
		{1, 6000}, {9, 6000}, {10, 5000}, {19, 5000}, {20, 4000}, {50, 4000},
	}
	for _, tt := range tests {
		assert.True(t, dec(tt.want).Equal(UnitPrice(p, tt.qty)), "qty=%d", tt.qty)
	}
}

func TestUnitPrice_MissingTierFallsBack(t *testing.T) {
	cat := testCatalog()

	alamo, _ := cat.Lookup("pack_alamo")
	assert.True(t, dec(1500).Equal(UnitPrice(alamo, 25)), "top falls back to base")
	assert.True(t, dec(1500).Equal(UnitPrice(alamo, 12)), "mid falls back to base")

	gap, _ := cat.Lookup("gap")
	assert.True(t, dec(100).Equal(UnitPrice(gap, 15)), "mid falls back to base, not up to top")
	assert.True(t, dec(50).Equal(UnitPrice(gap, 20)))

	free, _ := cat.Lookup("free")
	assert.True(t, UnitPrice(free, 3).IsZero())
}

func TestComputeTotal_SumsLines(t *testing.T) {
	items := []domain.CartItem{
		{ProductID: "lenia_10kg", Quantity: 5},
		{ProductID: "carbon_5kg", Quantity: 10},
	}

	got := ComputeTotal(items, testCatalog())

	assert.True(t, dec(5*6000+10*4700).Equal(got), "got %s", got)
}

func TestComputeTotal_Additive(t *testing.T) {
	cat := testCatalog()
	lines := []domain.CartItem{
		{ProductID: "lenia_10kg", Quantity: 3},
		{ProductID: "carbon_5kg", Quantity: 21},
		{ProductID: "pack_alamo", Quantity: 11},
	}

	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(ComputeTotal([]domain.CartItem{l}, cat))
	}

	assert.True(t, sum.Equal(ComputeTotal(lines, cat)))
}

func TestComputeTotal_MonotonicWithinTier(t *testing.T) {
	cat := testCatalog()
	ranges := [][2]int{{1, 9}, {10, 19}, {20, 40}}

	for _, r := range ranges {
		prev := decimal.Zero
		for q := r[0]; q <= r[1]; q++ {
			got := ComputeTotal([]domain.CartItem{{ProductID: "lenia_10kg", Quantity: q}}, cat)
			assert.True(t, got.GreaterThanOrEqual(prev), "qty=%d total=%s prev=%s", q, got, prev)
			prev = got
		}
	}
}

func TestComputeTotal_UnitPriceDropsAtTierBoundaries(t *testing.T) {
	p, _ := testCatalog().Lookup("lenia_10kg")

	assert.True(t, UnitPrice(p, 10).LessThan(UnitPrice(p, 9)))
	assert.True(t, UnitPrice(p, 20).LessThan(UnitPrice(p, 19)))

	// Line totals at the boundary reflect the cheaper tier.
	total := func(q int) decimal.Decimal {
		return ComputeTotal([]domain.CartItem{{ProductID: "lenia_10kg", Quantity: q}}, testCatalog())
	}
	assert.True(t, dec(54000).Equal(total(9)))
	assert.True(t, dec(50000).Equal(total(10)))
	assert.True(t, dec(95000).Equal(total(19)))
	assert.True(t, dec(80000).Equal(total(20)))
}

func TestComputeTotal_UnknownProductContributesZero(t *testing.T) {
	cat := testCatalog()
	known := []domain.CartItem{{ProductID: "carbon_5kg", Quantity: 2}}
	withUnknown := append(known, domain.CartItem{ProductID: "does_not_exist", Quantity: 7})

	assert.NotPanics(t, func() { ComputeTotal(withUnknown, cat) })
	assert.True(t, ComputeTotal(known, cat).Equal(ComputeTotal(withUnknown, cat)))

	line, ok := LineTotal(domain.CartItem{ProductID: "does_not_exist", Quantity: 7}, cat)
	assert.False(t, ok)
	assert.True(t, line.IsZero())
}

func TestComputeTotal_EmptyCart(t *testing.T) {
	assert.True(t, ComputeTotal(nil, testCatalog()).IsZero())
}
