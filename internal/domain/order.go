package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the payment state of an order.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusPaid    Status = "PAID"
)

// DeliveryStatus is the logistics state of an order.
type DeliveryStatus string

const (
	DeliveryPending    DeliveryStatus = "PENDING"
	DeliveryInDelivery DeliveryStatus = "IN_DELIVERY"
	DeliveryDelivered  DeliveryStatus = "DELIVERED"
)

// ParseDeliveryStatus accepts the canonical names and the lower-case forms
// used by CLI arguments and admin buttons ("in_delivery", "delivered").
func ParseDeliveryStatus(s string) (DeliveryStatus, error) {
	switch DeliveryStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case DeliveryPending:
		return DeliveryPending, nil
	case DeliveryInDelivery:
		return DeliveryInDelivery, nil
	case DeliveryDelivered:
		return DeliveryDelivered, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// CartItem is one line of a cart or of an order snapshot.
type CartItem struct {
	ProductID string `json:"id"`
	Label     string `json:"label"`
	Quantity  int    `json:"quantity"`
	Unit      string `json:"unit"`
}

// DeliveryWindow is the customer's preferred day and time range. Both are
// orientative; the business may reschedule.
type DeliveryWindow struct {
	DayKey    string `json:"dayKey"`
	DayLabel  string `json:"dayLabel"`
	SlotKey   string `json:"slotKey"`
	SlotLabel string `json:"slotLabel"`
}

// Parsed is the cart, zone, address and delivery window captured for an
// order. It is immutable once the order is created.
type Parsed struct {
	Items    []CartItem      `json:"items"`
	Zone     string          `json:"zone"`
	Address  string          `json:"address,omitempty"`
	Delivery *DeliveryWindow `json:"delivery,omitempty"`
}

// Clone returns a deep copy so session drafts never alias stored snapshots.
func (p Parsed) Clone() Parsed {
	out := p
	out.Items = append([]CartItem(nil), p.Items...)
	if p.Delivery != nil {
		d := *p.Delivery
		out.Delivery = &d
	}
	return out
}

// Meta is the open bag of side annotations on an order (payment method,
// preference URL, provider payment id). Writes merge keys; they never
// replace the whole map.
type Meta map[string]any

// Merge returns a new Meta holding m overlaid with other.
func (m Meta) Merge(other Meta) Meta {
	out := make(Meta, len(m)+len(other))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Order is a persisted customer order.
type Order struct {
	ID             string
	From           string
	Parsed         Parsed
	Total          decimal.Decimal
	Status         Status
	DeliveryStatus DeliveryStatus
	Meta           Meta
	CreatedAt      time.Time
	UpdatedAt      time.Time
	PaidAt         *time.Time
	DeliveredAt    *time.Time
}

// NewOrder is the input to order creation. The store assigns ID and
// timestamps.
type NewOrder struct {
	From   string
	Parsed Parsed
	Total  decimal.Decimal
	Status Status
	Meta   Meta
}
