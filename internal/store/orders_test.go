package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/pamperito/internal/domain"
)

func TestPersistOrder_DefaultsAndRoundTrip(t *testing.T) {
	s, clk := createTestStore(t, "PAM-1")
	ctx := context.Background()

	in := createTestOrder("5493462", 12000)
	in.Parsed.Address = "Belgrano 123"
	in.Parsed.Delivery = &domain.DeliveryWindow{DayKey: "day_today", DayLabel: "Hoy", SlotKey: "slot_morning", SlotLabel: "08 a 12 hs"}
	in.Meta = domain.Meta{"source": "whatsapp"}

	o, err := s.PersistOrder(ctx, in)
	if err != nil {
		t.Fatalf("PersistOrder() failed: %v", err)
	}

	if o.ID != "PAM-1" {
		t.Errorf("ID = %q, want PAM-1", o.ID)
	}
	if o.Status != domain.StatusPending {
		t.Errorf("Status = %q, want PENDING", o.Status)
	}
	if o.DeliveryStatus != domain.DeliveryPending {
		t.Errorf("DeliveryStatus = %q, want PENDING", o.DeliveryStatus)
	}
	if !o.Total.Equal(decimal.NewFromInt(12000)) {
		t.Errorf("Total = %s, want 12000", o.Total)
	}
	if !o.CreatedAt.Equal(clk.Now()) {
		t.Errorf("CreatedAt = %v, want %v", o.CreatedAt, clk.Now())
	}
	if o.PaidAt != nil || o.DeliveredAt != nil {
		t.Error("new pending order should have no paid/delivered stamps")
	}
	if o.Parsed.Address != "Belgrano 123" || o.Parsed.Delivery == nil || o.Parsed.Delivery.SlotKey != "slot_morning" {
		t.Errorf("Parsed not round-tripped: %+v", o.Parsed)
	}
	if len(o.Parsed.Items) != 1 || o.Parsed.Items[0].Quantity != 2 {
		t.Errorf("Items not round-tripped: %+v", o.Parsed.Items)
	}
	if o.Meta["source"] != "whatsapp" {
		t.Errorf("Meta = %v", o.Meta)
	}
}

func TestPersistOrder_PaidSetsPaidAt(t *testing.T) {
	s, _ := createTestStore(t, "PAM-1")

	in := createTestOrder("549", 5000)
	in.Status = domain.StatusPaid
	o, err := s.PersistOrder(context.Background(), in)
	if err != nil {
		t.Fatalf("PersistOrder() failed: %v", err)
	}
	if o.PaidAt == nil {
		t.Error("PaidAt should be set for an order created PAID")
	}
}

func TestPersistOrder_RequiresCustomer(t *testing.T) {
	s, _ := createTestStore(t)

	_, err := s.PersistOrder(context.Background(), createTestOrder("", 1))
	if err == nil {
		t.Error("expected error for empty customer")
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	s, _ := createTestStore(t)

	_, err := s.GetOrder(context.Background(), "PAM-404")
	if !errors.Is(err, domain.ErrOrderNotFound) {
		t.Errorf("err = %v, want ErrOrderNotFound", err)
	}
}

func TestGetLastOrderByCustomer(t *testing.T) {
	s, clk := createTestStore(t, "PAM-1", "PAM-2", "PAM-3")
	ctx := context.Background()

	if _, err := s.GetLastOrderByCustomer(ctx, "549"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Errorf("err = %v, want ErrOrderNotFound", err)
	}

	mustPersist(t, s, createTestOrder("549", 1000))
	clk.Advance(time.Minute)
	mustPersist(t, s, createTestOrder("other", 2000))
	clk.Advance(time.Minute)
	mustPersist(t, s, createTestOrder("549", 3000))

	last, err := s.GetLastOrderByCustomer(ctx, "549")
	if err != nil {
		t.Fatalf("GetLastOrderByCustomer() failed: %v", err)
	}
	if last.ID != "PAM-3" {
		t.Errorf("last.ID = %q, want PAM-3", last.ID)
	}

	list, err := s.ListOrdersByCustomer(ctx, "549", 0)
	if err != nil {
		t.Fatalf("ListOrdersByCustomer() failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != "PAM-3" || list[1].ID != "PAM-1" {
		t.Errorf("list = %+v, want PAM-3 then PAM-1", list)
	}
}

func TestUpdateDeliveryStatus_InDelivery(t *testing.T) {
	s, _ := createTestStore(t, "PAM-1")
	mustPersist(t, s, createTestOrder("549", 1000))

	o, err := s.UpdateDeliveryStatus(context.Background(), "PAM-1", domain.DeliveryInDelivery)
	if err != nil {
		t.Fatalf("UpdateDeliveryStatus() failed: %v", err)
	}
	if o.DeliveryStatus != domain.DeliveryInDelivery {
		t.Errorf("DeliveryStatus = %q", o.DeliveryStatus)
	}
	if o.Status != domain.StatusPending {
		t.Errorf("Status = %q, IN_DELIVERY must not settle payment", o.Status)
	}
}

func TestUpdateDeliveryStatus_DeliveredSettlesPayment(t *testing.T) {
	s, clk := createTestStore(t, "PAM-1")
	ctx := context.Background()
	mustPersist(t, s, createTestOrder("549", 1000))

	clk.Advance(time.Hour)
	first := clk.Now()
	o, err := s.UpdateDeliveryStatus(ctx, "PAM-1", domain.DeliveryDelivered)
	if err != nil {
		t.Fatalf("UpdateDeliveryStatus() failed: %v", err)
	}
	if o.Status != domain.StatusPaid {
		t.Errorf("Status = %q, want PAID", o.Status)
	}
	if o.PaidAt == nil || !o.PaidAt.Equal(first) {
		t.Errorf("PaidAt = %v, want %v", o.PaidAt, first)
	}
	if o.DeliveredAt == nil || !o.DeliveredAt.Equal(first) {
		t.Errorf("DeliveredAt = %v, want %v", o.DeliveredAt, first)
	}

	// A second DELIVERED keeps the first stamps.
	clk.Advance(time.Hour)
	o, err = s.UpdateDeliveryStatus(ctx, "PAM-1", domain.DeliveryDelivered)
	if err != nil {
		t.Fatalf("second UpdateDeliveryStatus() failed: %v", err)
	}
	if !o.DeliveredAt.Equal(first) || !o.PaidAt.Equal(first) {
		t.Errorf("stamps moved on repeat: paid=%v delivered=%v", o.PaidAt, o.DeliveredAt)
	}
}

func TestUpdateDeliveryStatus_UnknownOrder(t *testing.T) {
	s, _ := createTestStore(t)

	_, err := s.UpdateDeliveryStatus(context.Background(), "PAM-404", domain.DeliveryDelivered)
	if !errors.Is(err, domain.ErrOrderNotFound) {
		t.Errorf("err = %v, want ErrOrderNotFound", err)
	}
}

func TestUpdateDeliveryStatus_InvalidStatus(t *testing.T) {
	s, _ := createTestStore(t, "PAM-1")
	mustPersist(t, s, createTestOrder("549", 1000))

	_, err := s.UpdateDeliveryStatus(context.Background(), "PAM-1", domain.DeliveryStatus("LOST"))
	if !errors.Is(err, domain.ErrInvalidStatus) {
		t.Errorf("err = %v, want ErrInvalidStatus", err)
	}
}

func TestMarkPaid_MergesMeta(t *testing.T) {
	s, clk := createTestStore(t, "PAM-1")
	ctx := context.Background()

	in := createTestOrder("549", 1000)
	in.Meta = domain.Meta{"paymentMethod": "mercadopago", "mpInitPoint": "https://mp/x"}
	mustPersist(t, s, in)

	clk.Advance(time.Minute)
	paidAt := clk.Now()
	o, err := s.MarkPaid(ctx, "PAM-1", domain.Meta{"mpPaymentId": "987"})
	if err != nil {
		t.Fatalf("MarkPaid() failed: %v", err)
	}
	if o.Status != domain.StatusPaid {
		t.Errorf("Status = %q, want PAID", o.Status)
	}
	if o.Meta["paymentMethod"] != "mercadopago" || o.Meta["mpPaymentId"] != "987" {
		t.Errorf("Meta = %v, want merged keys", o.Meta)
	}

	clk.Advance(time.Minute)
	o, err = s.MarkPaid(ctx, "PAM-1", nil)
	if err != nil {
		t.Fatalf("second MarkPaid() failed: %v", err)
	}
	if !o.PaidAt.Equal(paidAt) {
		t.Errorf("PaidAt = %v, want first value %v", o.PaidAt, paidAt)
	}
}

func TestMergeMeta_KeepsStatus(t *testing.T) {
	s, _ := createTestStore(t, "PAM-1")
	mustPersist(t, s, createTestOrder("549", 1000))

	o, err := s.MergeMeta(context.Background(), "PAM-1", domain.Meta{"paymentMethod": "cash"})
	if err != nil {
		t.Fatalf("MergeMeta() failed: %v", err)
	}
	if o.Status != domain.StatusPending {
		t.Errorf("Status = %q, want PENDING", o.Status)
	}
	if o.Meta["paymentMethod"] != "cash" {
		t.Errorf("Meta = %v", o.Meta)
	}
}

func TestMarkPaid_UnknownOrder(t *testing.T) {
	s, _ := createTestStore(t)

	_, err := s.MarkPaid(context.Background(), "PAM-404", nil)
	if !errors.Is(err, domain.ErrOrderNotFound) {
		t.Errorf("err = %v, want ErrOrderNotFound", err)
	}
}

func mustPersist(t *testing.T, s *Store, in domain.NewOrder) *domain.Order {
	t.Helper()
	o, err := s.PersistOrder(context.Background(), in)
	if err != nil {
		t.Fatalf("PersistOrder() failed: %v", err)
	}
	return o
}
