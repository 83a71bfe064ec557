package payment

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNotification(t *testing.T) {
	cases := []struct {
		name      string
		query     string
		body      string
		wantTopic string
		wantID    string
	}{
		{"query topic and data.id", "topic=payment&data.id=987", "", "payment", "987"},
		{"query type and id", "type=payment&id=55", "", "payment", "55"},
		{"body numeric id", "", `{"type":"payment","data":{"id":123}}`, "payment", "123"},
		{"body string id", "", `{"topic":"payment","data":{"id":"abc"}}`, "payment", "abc"},
		{"body nested payment id", "", `{"type":"payment","data":{"payment":{"id":77}}}`, "payment", "77"},
		{"query wins over body", "topic=merchant_order", `{"type":"payment","data":{"id":1}}`, "merchant_order", "1"},
		{"garbage body", "", `not json`, "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q, err := url.ParseQuery(tc.query)
			require.NoError(t, err)

			n := ParseNotification(q, []byte(tc.body))
			assert.Equal(t, tc.wantTopic, n.Topic)
			assert.Equal(t, tc.wantID, n.PaymentID)
			assert.Equal(t, tc.body, string(n.Raw))
		})
	}
}

func TestMemoryDeduper(t *testing.T) {
	d := NewMemoryDeduper()
	ctx := context.Background()

	first, err := d.MarkProcessed(ctx, "1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := d.MarkProcessed(ctx, "1")
	require.NoError(t, err)
	assert.False(t, again)

	other, err := d.MarkProcessed(ctx, "2")
	require.NoError(t, err)
	assert.True(t, other)
}
