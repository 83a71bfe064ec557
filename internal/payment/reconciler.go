// Package payment reconciles payment-provider notifications with orders.
//
// Notifications arrive in any order, may be duplicated and may concern
// topics other than payments. Each approved payment that references a
// known order marks it PAID once and notifies the customer and the
// administrator.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/pamperito/internal/delivery"
	"github.com/roach88/pamperito/internal/domain"
	"github.com/roach88/pamperito/internal/mercadopago"
	"github.com/roach88/pamperito/internal/messenger"
)

// TopicPayment is the only notification topic acted upon.
const TopicPayment = "payment"

// PaymentFetcher looks up payment status by id.
type PaymentFetcher interface {
	FetchPayment(ctx context.Context, paymentID string) (mercadopago.Payment, error)
}

// OrderStore is the order persistence the reconciler needs.
type OrderStore interface {
	MarkPaid(ctx context.Context, id string, meta domain.Meta) (*domain.Order, error)
}

// Reconciler processes payment notifications.
type Reconciler struct {
	dedup      Deduper
	fetcher    PaymentFetcher
	orders     OrderStore
	messenger  messenger.Messenger
	adminPhone string
	logger     *slog.Logger
}

// Config wires a Reconciler. Dedup defaults to a MemoryDeduper.
type Config struct {
	Dedup      Deduper
	Fetcher    PaymentFetcher
	Orders     OrderStore
	Messenger  messenger.Messenger
	AdminPhone string
	Logger     *slog.Logger
}

func NewReconciler(cfg Config) *Reconciler {
	if cfg.Dedup == nil {
		cfg.Dedup = NewMemoryDeduper()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Reconciler{
		dedup:      cfg.Dedup,
		fetcher:    cfg.Fetcher,
		orders:     cfg.Orders,
		messenger:  cfg.Messenger,
		adminPhone: cfg.AdminPhone,
		logger:     cfg.Logger.With("component", "payment"),
	}
}

// Handle processes one notification. It never fails: the caller always
// acknowledges the provider, and every internal problem is logged.
func (r *Reconciler) Handle(ctx context.Context, n Notification) {
	logger := r.logger.With("topic", n.Topic, "payment", n.PaymentID, "event", domain.NewCorrelationID())

	if n.Topic != TopicPayment {
		logger.Debug("notification ignored: not a payment")
		return
	}
	if n.PaymentID == "" {
		logger.Warn("payment notification without id")
		return
	}

	// The id is recorded before the provider lookup so a failure below is
	// never retried by a duplicate delivery.
	first, err := r.dedup.MarkProcessed(ctx, n.PaymentID)
	if err != nil {
		logger.Error("dedup failed", "error", err)
		return
	}
	if !first {
		logger.Info("duplicate payment notification ignored")
		return
	}

	if r.fetcher == nil {
		logger.Warn("no payment provider configured, payment not checked")
		return
	}
	p, err := r.fetcher.FetchPayment(ctx, n.PaymentID)
	if err != nil {
		if errors.Is(err, mercadopago.ErrNotConfigured) {
			logger.Warn("no payment provider configured, payment not checked")
		} else {
			logger.Error("fetch payment failed", "error", err)
		}
		return
	}
	logger = logger.With("status", p.Status, "order", p.ExternalReference)
	if !p.Approved() || p.ExternalReference == "" {
		logger.Info("payment not actionable")
		return
	}

	order, err := r.orders.MarkPaid(ctx, p.ExternalReference, domain.Meta{
		"mpPaymentId": n.PaymentID,
		"mpStatus":    p.Status,
	})
	if errors.Is(err, domain.ErrOrderNotFound) {
		logger.Warn("approved payment for unknown order")
		return
	}
	if err != nil {
		logger.Error("mark paid failed", "error", err)
		return
	}
	logger.Info("order paid")

	r.send(ctx, logger, messenger.Text(order.From, fmt.Sprintf(
		"✅ *Pago aprobado*\n\nTu pedido *%s* quedó confirmado 🔥\n"+
			"Lo vamos a entregar en la dirección y rango horario que elegiste.\n\n"+
			"Gracias por confiar en Pamperito. Cualquier cosa, escribinos por acá 😉",
		order.ID)))

	if r.adminPhone != "" {
		r.send(ctx, logger, messenger.Message{
			To: r.adminPhone,
			Text: fmt.Sprintf("✅ *Pago aprobado por MercadoPago*\n\nPedido: *%s*\nCliente: %s\nTotal: %s\nEstado: PAGADO",
				order.ID, order.From, domain.FormatMoney(order.Total)),
			Buttons: []messenger.Button{{ID: delivery.ButtonInDelivery + order.ID, Title: "🚚 En reparto"}},
		})
	}
}

func (r *Reconciler) send(ctx context.Context, logger *slog.Logger, m messenger.Message) {
	if err := r.messenger.Send(ctx, m); err != nil {
		logger.Warn("send failed", "to", m.To, "error", err)
	}
}
