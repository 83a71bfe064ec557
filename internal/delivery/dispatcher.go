// Package delivery moves orders through their logistics states on the
// administrator's request and records manual payment confirmations.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/pamperito/internal/domain"
	"github.com/roach88/pamperito/internal/messenger"
)

// Admin button id prefixes. A button id is "<prefix><orderID>".
const (
	ButtonInDelivery = "admin:in_delivery:"
	ButtonDelivered  = "admin:delivered:"
	ButtonPaid       = "admin:paid:"
)

// OrderStore is the order persistence the dispatcher needs.
type OrderStore interface {
	UpdateDeliveryStatus(ctx context.Context, id string, status domain.DeliveryStatus) (*domain.Order, error)
	MarkPaid(ctx context.Context, id string, meta domain.Meta) (*domain.Order, error)
}

// CustomerStore resolves customer names for admin summaries.
type CustomerStore interface {
	GetCustomer(ctx context.Context, phone string) (*domain.Customer, error)
}

// Dispatcher applies administrator delivery and payment commands.
type Dispatcher struct {
	orders     OrderStore
	customers  CustomerStore
	messenger  messenger.Messenger
	adminPhone string
	logger     *slog.Logger
}

// NewDispatcher creates a dispatcher. adminPhone may be empty, in which case
// admin confirmations are skipped.
func NewDispatcher(orders OrderStore, customers CustomerStore, m messenger.Messenger, adminPhone string, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		orders:     orders,
		customers:  customers,
		messenger:  m,
		adminPhone: adminPhone,
		logger:     logger.With("component", "delivery"),
	}
}

// SetStatus moves an order to IN_DELIVERY or DELIVERED, notifies the
// customer and confirms to the administrator.
//
// An unknown order id is reported to the administrator and returned as
// domain.ErrOrderNotFound; nothing is mutated.
func (d *Dispatcher) SetStatus(ctx context.Context, orderID string, target domain.DeliveryStatus) (*domain.Order, error) {
	if target != domain.DeliveryInDelivery && target != domain.DeliveryDelivered {
		return nil, fmt.Errorf("set delivery status %q: %w", target, domain.ErrInvalidStatus)
	}

	order, err := d.orders.UpdateDeliveryStatus(ctx, orderID, target)
	if err != nil {
		d.reportFailure(ctx, orderID, err)
		return nil, fmt.Errorf("set delivery status: %w", err)
	}
	d.logger.Info("delivery status updated", "order", order.ID, "status", order.DeliveryStatus)

	d.send(ctx, messenger.Text(order.From, customerStatusText(order)))

	if d.adminPhone != "" {
		msg := messenger.Message{
			To:   d.adminPhone,
			Text: d.adminSummary(ctx, order, adminStatusTitle(order.DeliveryStatus)),
		}
		if order.DeliveryStatus == domain.DeliveryInDelivery {
			msg.Buttons = []messenger.Button{{ID: ButtonDelivered + order.ID, Title: "✅ Entregado"}}
		}
		d.send(ctx, msg)
	}
	return order, nil
}

// ConfirmPayment marks an order PAID by hand, for cash payments and for
// demo mode where no payment link was generated.
func (d *Dispatcher) ConfirmPayment(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := d.orders.MarkPaid(ctx, orderID, domain.Meta{"paymentConfirmedBy": "admin"})
	if err != nil {
		d.reportFailure(ctx, orderID, err)
		return nil, fmt.Errorf("confirm payment: %w", err)
	}
	d.logger.Info("payment confirmed manually", "order", order.ID)

	d.send(ctx, messenger.Text(order.From,
		fmt.Sprintf("✔️ Pago aprobado. Pedido *%s* confirmado.\nTe escribimos en breve para coordinar la entrega. 🔥", order.ID)))

	if d.adminPhone != "" {
		d.send(ctx, messenger.Message{
			To:      d.adminPhone,
			Text:    d.adminSummary(ctx, order, "💵 *Pago registrado*"),
			Buttons: []messenger.Button{{ID: ButtonInDelivery + order.ID, Title: "🚚 En reparto"}},
		})
	}
	return order, nil
}

func (d *Dispatcher) reportFailure(ctx context.Context, orderID string, err error) {
	if errors.Is(err, domain.ErrOrderNotFound) {
		d.logger.Warn("admin command for unknown order", "order", orderID)
		if d.adminPhone != "" {
			d.send(ctx, messenger.Text(d.adminPhone,
				fmt.Sprintf("No encontré el pedido *%s*. Revisá el ID del resumen.", orderID)))
		}
		return
	}
	d.logger.Error("admin command failed", "order", orderID, "error", err)
	if d.adminPhone != "" {
		d.send(ctx, messenger.Text(d.adminPhone,
			fmt.Sprintf("No pude actualizar el pedido *%s*. Probá de nuevo en un rato.", orderID)))
	}
}

func (d *Dispatcher) adminSummary(ctx context.Context, order *domain.Order, title string) string {
	customer := order.From
	if c, err := d.customers.GetCustomer(ctx, order.From); err == nil && c.Name != "" {
		customer = fmt.Sprintf("%s (%s)", c.Name, order.From)
	} else if err != nil && !errors.Is(err, domain.ErrCustomerNotFound) {
		d.logger.Warn("customer lookup failed", "customer", order.From, "error", err)
	}

	return fmt.Sprintf("%s\n\nPedido: *%s*\nCliente: %s\nTotal: %s\nPago: %s\nEntrega: %s",
		title, order.ID, customer, domain.FormatMoney(order.Total),
		paymentLabel(order.Status), deliveryLabel(order.DeliveryStatus))
}

func (d *Dispatcher) send(ctx context.Context, m messenger.Message) {
	if err := d.messenger.Send(ctx, m); err != nil {
		d.logger.Warn("send failed", "to", m.To, "error", err)
	}
}

func customerStatusText(o *domain.Order) string {
	if o.DeliveryStatus == domain.DeliveryDelivered {
		return fmt.Sprintf("✅ Tu pedido *%s* fue entregado.\n¡Gracias por elegir Pamperito! 🔥", o.ID)
	}
	return fmt.Sprintf("🚚 Tu pedido *%s* ya salió para entrega.\nEn breve lo tenés en tu casa 🔥", o.ID)
}

func adminStatusTitle(s domain.DeliveryStatus) string {
	if s == domain.DeliveryDelivered {
		return "📦 *Pedido entregado*"
	}
	return "🚚 *Pedido en reparto*"
}

func paymentLabel(s domain.Status) string {
	if s == domain.StatusPaid {
		return "PAGADO"
	}
	return "PENDIENTE"
}

func deliveryLabel(s domain.DeliveryStatus) string {
	switch s {
	case domain.DeliveryInDelivery:
		return "EN REPARTO"
	case domain.DeliveryDelivered:
		return "ENTREGADO"
	default:
		return "PENDIENTE"
	}
}
