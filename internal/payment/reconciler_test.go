package payment

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pamperito/internal/domain"
	"github.com/roach88/pamperito/internal/mercadopago"
	"github.com/roach88/pamperito/internal/store"
	"github.com/roach88/pamperito/internal/testutil"
)

const (
	admin    = "5493460000000"
	customer = "5493462111111"
)

type fakeFetcher struct {
	calls    atomic.Int32
	payments map[string]mercadopago.Payment
	err      error
}

func (f *fakeFetcher) FetchPayment(_ context.Context, id string) (mercadopago.Payment, error) {
	f.calls.Add(1)
	if f.err != nil {
		return mercadopago.Payment{}, f.err
	}
	p, ok := f.payments[id]
	if !ok {
		return mercadopago.Payment{}, &mercadopago.APIError{Status: 404}
	}
	return p, nil
}

type countingOrders struct {
	OrderStore
	markPaid atomic.Int32
}

func (c *countingOrders) MarkPaid(ctx context.Context, id string, meta domain.Meta) (*domain.Order, error) {
	c.markPaid.Add(1)
	return c.OrderStore.MarkPaid(ctx, id, meta)
}

type fixture struct {
	rec      *Reconciler
	store    *store.Store
	orders   *countingOrders
	fetcher  *fakeFetcher
	messages *testutil.RecordingMessenger
}

func newFixture(t *testing.T, dedup Deduper) *fixture {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"),
		store.WithClock(testutil.NewFakeClock()),
		store.WithIDGenerator(domain.NewFixedIDs("PAM-1")))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.PersistOrder(context.Background(), domain.NewOrder{
		From:   customer,
		Parsed: domain.Parsed{Items: []domain.CartItem{{ProductID: "carbon_5kg", Quantity: 5}}},
		Total:  decimal.NewFromInt(22500),
	})
	require.NoError(t, err)

	f := &fixture{
		store:    s,
		orders:   &countingOrders{OrderStore: s},
		messages: &testutil.RecordingMessenger{},
		fetcher: &fakeFetcher{payments: map[string]mercadopago.Payment{
			"987": {ID: "987", Status: mercadopago.StatusApproved, ExternalReference: "PAM-1"},
			"111": {ID: "111", Status: "pending", ExternalReference: "PAM-1"},
			"222": {ID: "222", Status: mercadopago.StatusApproved},
			"333": {ID: "333", Status: mercadopago.StatusApproved, ExternalReference: "PAM-404"},
		}},
	}
	f.rec = NewReconciler(Config{
		Dedup:      dedup,
		Fetcher:    f.fetcher,
		Orders:     f.orders,
		Messenger:  f.messages,
		AdminPhone: admin,
	})
	return f
}

func TestHandle_ApprovedMarksPaidAndNotifies(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.rec.Handle(ctx, Notification{Topic: "payment", PaymentID: "987"})

	o, err := f.store.GetOrder(ctx, "PAM-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, o.Status)
	assert.Equal(t, "987", o.Meta["mpPaymentId"])

	toCustomer := f.messages.To(customer)
	require.Len(t, toCustomer, 1)
	assert.Contains(t, toCustomer[0].Text, "*Pago aprobado*")
	toAdmin := f.messages.To(admin)
	require.Len(t, toAdmin, 1)
	assert.Contains(t, toAdmin[0].Text, "Total: $22.500")
}

func TestHandle_DuplicateProcessedOnce(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.rec.Handle(ctx, Notification{Topic: "payment", PaymentID: "987"})
	f.rec.Handle(ctx, Notification{Topic: "payment", PaymentID: "987"})

	assert.Equal(t, int32(1), f.orders.markPaid.Load())
	assert.Equal(t, int32(1), f.fetcher.calls.Load())
	assert.Len(t, f.messages.To(customer), 1)
}

func TestHandle_ConcurrentDuplicates(t *testing.T) {
	f := newFixture(t, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.rec.Handle(context.Background(), Notification{Topic: "payment", PaymentID: "987"})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), f.orders.markPaid.Load())
	assert.Len(t, f.messages.To(customer), 1)
}

func TestHandle_DurableDedupWithStore(t *testing.T) {
	f := newFixture(t, nil)
	durable := DeduperFunc(f.store.MarkPaymentProcessed)
	f.rec = NewReconciler(Config{Dedup: durable, Fetcher: f.fetcher, Orders: f.orders, Messenger: f.messages})

	f.rec.Handle(context.Background(), Notification{Topic: "payment", PaymentID: "987"})

	// A fresh reconciler over the same store simulates a restart.
	restarted := NewReconciler(Config{Dedup: durable, Fetcher: f.fetcher, Orders: f.orders, Messenger: f.messages})
	restarted.Handle(context.Background(), Notification{Topic: "payment", PaymentID: "987"})

	assert.Equal(t, int32(1), f.orders.markPaid.Load())
}

func TestHandle_NonPaymentTopicNeverFetches(t *testing.T) {
	f := newFixture(t, nil)

	for _, topic := range []string{"merchant_order", "", "chargebacks"} {
		f.rec.Handle(context.Background(), Notification{Topic: topic, PaymentID: "987"})
	}

	assert.Zero(t, f.fetcher.calls.Load())
	assert.Zero(t, f.orders.markPaid.Load())
	assert.Empty(t, f.messages.Sent())
}

func TestHandle_MissingIDIgnored(t *testing.T) {
	f := newFixture(t, nil)

	f.rec.Handle(context.Background(), Notification{Topic: "payment"})

	assert.Zero(t, f.fetcher.calls.Load())
}

func TestHandle_NotActionable(t *testing.T) {
	cases := map[string]string{
		"not approved":      "111",
		"no reference":      "222",
		"unknown order":     "333",
		"provider rejected": "404",
	}
	for name, id := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, nil)
			f.rec.Handle(context.Background(), Notification{Topic: "payment", PaymentID: id})

			o, err := f.store.GetOrder(context.Background(), "PAM-1")
			require.NoError(t, err)
			assert.Equal(t, domain.StatusPending, o.Status)
			assert.Empty(t, f.messages.Sent())
		})
	}
}

func TestHandle_FetchFailureNotRetried(t *testing.T) {
	f := newFixture(t, nil)
	f.fetcher.err = errors.New("timeout")

	f.rec.Handle(context.Background(), Notification{Topic: "payment", PaymentID: "987"})
	f.fetcher.err = nil
	f.rec.Handle(context.Background(), Notification{Topic: "payment", PaymentID: "987"})

	assert.Equal(t, int32(1), f.fetcher.calls.Load())
	assert.Zero(t, f.orders.markPaid.Load())
}

func TestHandle_AlreadyPaidStillNotifies(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.store.MarkPaid(ctx, "PAM-1", nil)
	require.NoError(t, err)

	f.rec.Handle(ctx, Notification{Topic: "payment", PaymentID: "987"})

	assert.Len(t, f.messages.To(customer), 1)
}

func TestHandle_NoAdminConfigured(t *testing.T) {
	f := newFixture(t, nil)
	f.rec.adminPhone = ""

	f.rec.Handle(context.Background(), Notification{Topic: "payment", PaymentID: "987"})

	assert.Len(t, f.messages.Sent(), 1)
	assert.Equal(t, customer, f.messages.Last().To)
}

func TestHandle_SendFailureIsAbsorbed(t *testing.T) {
	f := newFixture(t, nil)
	f.messages.Err = errors.New("whatsapp down")

	f.rec.Handle(context.Background(), Notification{Topic: "payment", PaymentID: "987"})

	o, err := f.store.GetOrder(context.Background(), "PAM-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, o.Status)
}
