package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormatMoney(t *testing.T) {
	cases := []struct {
		in   decimal.Decimal
		want string
	}{
		{decimal.Zero, "$0"},
		{decimal.NewFromInt(950), "$950"},
		{decimal.NewFromInt(1000), "$1.000"},
		{decimal.NewFromInt(54000), "$54.000"},
		{decimal.NewFromInt(1234567), "$1.234.567"},
		{decimal.RequireFromString("1234.5"), "$1.234,50"},
		{decimal.RequireFromString("10.05"), "$10,05"},
		{decimal.NewFromInt(-1500), "-$1.500"},
	}
	for _, tc := range cases {
		t.Run(tc.want, func(t *testing.T) {
			assert.Equal(t, tc.want, FormatMoney(tc.in))
		})
	}
}
