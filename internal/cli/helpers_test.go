package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pamperito/internal/domain"
	"github.com/roach88/pamperito/internal/store"
	"github.com/roach88/pamperito/internal/testutil"
)

// execute runs the root command with args and returns stdout, stderr and
// the command error.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// seedOrder creates a database holding one customer and order PAM-1.
func seedOrder(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orders.db")
	st, err := store.Open(path,
		store.WithClock(testutil.NewFakeClock()),
		store.WithIDGenerator(domain.NewFixedIDs("PAM-1")))
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	_, err = st.UpsertCustomer(ctx, domain.CustomerPatch{Phone: "5493462111111", Name: "Carlos"})
	require.NoError(t, err)
	_, err = st.PersistOrder(ctx, domain.NewOrder{
		From: "5493462111111",
		Parsed: domain.Parsed{
			Items:   []domain.CartItem{{ProductID: "lenia_10kg", Label: "Leña - bolsa 10kg", Quantity: 3, Unit: "bolsa"}},
			Zone:    "venado_tuerto",
			Address: "Belgrano 123",
		},
		Total: decimal.NewFromInt(18000),
		Meta:  domain.Meta{"channel": "whatsapp"},
	})
	require.NoError(t, err)
	return path
}
