package store

import (
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/roach88/pamperito/internal/domain"
	"github.com/roach88/pamperito/internal/testutil"
)

// createTestStore creates a store in a temp dir with a fake clock and
// predetermined order ids.
func createTestStore(t *testing.T, ids ...string) (*Store, *testutil.FakeClock) {
	t.Helper()
	clk := testutil.NewFakeClock()
	path := filepath.Join(t.TempDir(), "test.db")

	opts := []Option{WithClock(clk)}
	if len(ids) > 0 {
		opts = append(opts, WithIDGenerator(domain.NewFixedIDs(ids...)))
	}
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, clk
}

// createTestOrder builds a minimal order input for phone.
func createTestOrder(phone string, total int64) domain.NewOrder {
	return domain.NewOrder{
		From: phone,
		Parsed: domain.Parsed{
			Items: []domain.CartItem{{ProductID: "lenia_10kg", Label: "Leña 10kg", Quantity: 2, Unit: "bolsa"}},
			Zone:  "venado_tuerto",
		},
		Total: decimal.NewFromInt(total),
	}
}
