// Package bot is the conversation state machine of the order bot.
//
// Every inbound chat event is evaluated in a fixed order: administrator
// commands, cancel, repeat-last-order, the handler of the customer's
// current step, idle menu handling and finally the not-understood
// fallback. HandleEvent never returns an error; collaborator failures
// become apologetic replies and log lines.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/roach88/pamperito/internal/catalog"
	"github.com/roach88/pamperito/internal/delivery"
	"github.com/roach88/pamperito/internal/domain"
	"github.com/roach88/pamperito/internal/messenger"
	"github.com/roach88/pamperito/internal/session"
)

// DefaultTroubleThreshold is the number of consecutive not-understood
// messages that escalates a conversation to a person.
const DefaultTroubleThreshold = 3

// OrderStore is the order persistence the bot needs.
type OrderStore interface {
	PersistOrder(ctx context.Context, in domain.NewOrder) (*domain.Order, error)
	GetLastOrderByCustomer(ctx context.Context, phone string) (*domain.Order, error)
	MergeMeta(ctx context.Context, id string, meta domain.Meta) (*domain.Order, error)
}

// CustomerStore is the customer persistence the bot needs.
type CustomerStore interface {
	GetCustomer(ctx context.Context, phone string) (*domain.Customer, error)
	UpsertCustomer(ctx context.Context, p domain.CustomerPatch) (*domain.Customer, error)
}

// PaymentLinker creates online payment links. An empty link with a nil
// error means no link is available.
type PaymentLinker interface {
	CreatePreference(ctx context.Context, orderID string, total decimal.Decimal) (string, error)
}

// AdminDispatcher applies administrator order commands.
type AdminDispatcher interface {
	SetStatus(ctx context.Context, orderID string, target domain.DeliveryStatus) (*domain.Order, error)
	ConfirmPayment(ctx context.Context, orderID string) (*domain.Order, error)
}

// Config holds business settings.
type Config struct {
	AdminPhone       string
	Zone             string
	EnableMP         bool
	EnableCash       bool
	TroubleThreshold int
}

// Deps are the bot's collaborators. All are required.
type Deps struct {
	Sessions   session.Store
	Catalog    catalog.Source
	Orders     OrderStore
	Customers  CustomerStore
	Payments   PaymentLinker
	Dispatcher AdminDispatcher
	Messenger  messenger.Messenger
	Logger     *slog.Logger
}

// Bot drives customer conversations.
type Bot struct {
	cfg        Config
	sessions   session.Store
	catalog    catalog.Source
	orders     OrderStore
	customers  CustomerStore
	payments   PaymentLinker
	dispatcher AdminDispatcher
	messenger  messenger.Messenger
	logger     *slog.Logger

	troubleMu sync.Mutex
	trouble   map[string]int
}

// New creates a bot.
func New(cfg Config, deps Deps) *Bot {
	if cfg.TroubleThreshold < 1 {
		cfg.TroubleThreshold = DefaultTroubleThreshold
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		cfg:        cfg,
		sessions:   deps.Sessions,
		catalog:    deps.Catalog,
		orders:     deps.Orders,
		customers:  deps.Customers,
		payments:   deps.Payments,
		dispatcher: deps.Dispatcher,
		messenger:  deps.Messenger,
		logger:     logger.With("component", "bot"),
		trouble:    make(map[string]int),
	}
}

// Kind is the shape of an inbound event.
type Kind string

const (
	KindText   Kind = "text"
	KindButton Kind = "button"
	KindList   Kind = "list"
	KindOther  Kind = "other"
)

// Event is one inbound chat event.
type Event struct {
	ID          string
	From        string
	ProfileName string
	Kind        Kind
	Text        string
	ReplyID     string
	ReplyTitle  string
}

// EventFromInbound converts a parsed webhook message.
func EventFromInbound(in messenger.Inbound) Event {
	ev := Event{
		ID:          in.ID,
		From:        in.From,
		ProfileName: in.ProfileName,
		Text:        in.Text,
		ReplyID:     in.ReplyID,
		ReplyTitle:  in.ReplyTitle,
	}
	switch {
	case in.Type == "text":
		ev.Kind = KindText
	case strings.HasPrefix(in.ReplyID, productPrefix):
		ev.Kind = KindList
	case in.ReplyID != "":
		ev.Kind = KindButton
	default:
		ev.Kind = KindOther
	}
	return ev
}

// turn carries one event through the handlers.
type turn struct {
	ctx    context.Context
	ev     Event
	from   string
	folded string
	reply  string
	logger *slog.Logger
	missed bool
}

// text is the free-text content of the event. Buttons contribute their
// title so typed and tapped answers share matching rules.
func (t *turn) text() string {
	if t.ev.Text != "" {
		return t.ev.Text
	}
	return t.ev.ReplyTitle
}

// HandleEvent processes one inbound event. It never panics out and never
// returns an error.
func (b *Bot) HandleEvent(ctx context.Context, ev Event) {
	if ev.From == "" {
		return
	}
	t := &turn{
		ctx:    ctx,
		ev:     ev,
		from:   ev.From,
		folded: fold(ev.Text),
		reply:  ev.ReplyID,
		logger: b.logger.With("event", domain.NewCorrelationID(), "customer", ev.From),
	}
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("panic handling event", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	t.logger.Debug("inbound event", "kind", ev.Kind, "text", ev.Text, "reply", ev.ReplyID)

	b.route(t)
	if !t.missed {
		b.resetTrouble(t.from)
	}
}

func (b *Bot) route(t *turn) {
	if b.isAdmin(t.from) && b.handleAdmin(t) {
		return
	}
	if t.reply == BtnCancel || isCancel(t.folded) {
		b.cancel(t)
		return
	}
	if t.reply == BtnRepeatLast || (t.reply == "" && hasWord(t.folded, repeatWords)) {
		b.repeatLast(t)
		return
	}
	if s, ok := b.sessions.Get(t.from); ok && !isMenuReply(t.reply) {
		t.logger = t.logger.With("session", s.ID, "step", s.State.Step())
		b.handleStep(t, s)
		return
	}
	if b.handleIdle(t) {
		return
	}
	b.fallback(t)
}

// isMenuReply reports main menu buttons, which restart from the idle
// handlers whatever the current step.
func isMenuReply(id string) bool {
	return id == BtnMakeOrder || id == BtnPrices
}

func (b *Bot) isAdmin(from string) bool {
	return b.cfg.AdminPhone != "" && from == b.cfg.AdminPhone
}

// handleAdmin runs administrator commands. Reports whether the event was
// one.
func (b *Bot) handleAdmin(t *turn) bool {
	var (
		orderID string
		run     func(context.Context, string) (*domain.Order, error)
	)
	setStatus := func(target domain.DeliveryStatus) func(context.Context, string) (*domain.Order, error) {
		return func(ctx context.Context, id string) (*domain.Order, error) {
			return b.dispatcher.SetStatus(ctx, id, target)
		}
	}

	switch {
	case strings.HasPrefix(t.reply, delivery.ButtonInDelivery):
		orderID, run = strings.TrimPrefix(t.reply, delivery.ButtonInDelivery), setStatus(domain.DeliveryInDelivery)
	case strings.HasPrefix(t.reply, delivery.ButtonDelivered):
		orderID, run = strings.TrimPrefix(t.reply, delivery.ButtonDelivered), setStatus(domain.DeliveryDelivered)
	case strings.HasPrefix(t.reply, delivery.ButtonPaid):
		orderID, run = strings.TrimPrefix(t.reply, delivery.ButtonPaid), b.dispatcher.ConfirmPayment
	default:
		verb, id, ok := parseAdminCommand(t.ev.Text)
		if !ok {
			return false
		}
		orderID = id
		switch verb {
		case "envio":
			run = setStatus(domain.DeliveryInDelivery)
		case "entregado":
			run = setStatus(domain.DeliveryDelivered)
		default:
			run = b.dispatcher.ConfirmPayment
		}
	}

	t.logger.Info("admin command", "order", orderID, "text", t.ev.Text, "reply", t.reply)
	if _, err := run(t.ctx, orderID); err != nil {
		t.logger.Debug("admin command not applied", "order", orderID, "error", err)
	}
	return true
}

func (b *Bot) cancel(t *turn) {
	b.sessions.Delete(t.from)
	t.logger.Info("conversation cancelled")
	b.send(t, messenger.Text(t.from, textCancelled))
	b.send(t, mainMenu(t.from, "", b.hasPreviousOrder(t)))
}

// handleIdle handles events with no session in progress. Reports whether
// the event matched.
func (b *Bot) handleIdle(t *turn) bool {
	switch {
	case t.reply == BtnMakeOrder || (t.reply == "" && hasWord(t.folded, orderWords)):
		b.startOrder(t, nil)
		return true
	case t.reply == BtnPrices || (t.reply == "" && hasWord(t.folded, priceWords)):
		b.showPrices(t)
		return true
	case t.reply == "" && hasWord(t.folded, greetingWords):
		b.greet(t)
		return true
	}
	return false
}

func (b *Bot) greet(t *turn) {
	c, err := b.customers.GetCustomer(t.ctx, t.from)
	if err != nil && !errors.Is(err, domain.ErrCustomerNotFound) {
		t.logger.Error("customer lookup failed", "error", err)
		b.send(t, messenger.Text(t.from, textApology))
		return
	}
	if c == nil || c.Name == "" {
		b.sessions.Set(t.from, session.AskName{})
		b.send(t, messenger.Text(t.from, textAskName))
		return
	}
	b.send(t, mainMenu(t.from, "¡Hola *"+c.Name+"*! 👋", b.hasPreviousOrder(t)))
}

func (b *Bot) hasPreviousOrder(t *turn) bool {
	_, err := b.orders.GetLastOrderByCustomer(t.ctx, t.from)
	if err != nil && !errors.Is(err, domain.ErrOrderNotFound) {
		t.logger.Warn("last order lookup failed", "error", err)
	}
	return err == nil
}

func (b *Bot) showPrices(t *turn) {
	cat, ok := b.loadCatalog(t)
	if !ok {
		return
	}
	if cat.Len() == 0 {
		b.send(t, messenger.Text(t.from, textEmptyCatalog))
		return
	}
	b.send(t, priceList(t.from, cat))
}

// fallback answers events nothing understood and escalates repeated
// misunderstandings to the administrator.
func (b *Bot) fallback(t *turn) {
	t.missed = true
	b.troubleMu.Lock()
	b.trouble[t.from]++
	count := b.trouble[t.from]
	escalate := count >= b.cfg.TroubleThreshold
	if escalate {
		delete(b.trouble, t.from)
	}
	b.troubleMu.Unlock()

	t.logger.Info("message not understood", "text", t.text(), "trouble", count)
	if !escalate {
		b.send(t, messenger.Text(t.from, textNotUnderstood))
		return
	}

	b.send(t, messenger.Text(t.from, textTrouble))
	if b.cfg.AdminPhone != "" {
		b.send(t, messenger.Text(b.cfg.AdminPhone,
			"⚠️ *Cliente con problemas*\n\nCliente: "+t.from+"\nÚltimo mensaje: \""+t.text()+"\""))
	}
}

// resetTrouble forgets a customer's misunderstandings once a message is
// understood.
func (b *Bot) resetTrouble(from string) {
	b.troubleMu.Lock()
	delete(b.trouble, from)
	b.troubleMu.Unlock()
}

func (b *Bot) loadCatalog(t *turn) (domain.Catalog, bool) {
	cat, err := b.catalog.LoadCatalog(t.ctx)
	if err != nil {
		t.logger.Error("catalog load failed", "error", err)
		b.send(t, messenger.Text(t.from, textApology))
		return domain.Catalog{}, false
	}
	return cat, true
}

func (b *Bot) send(t *turn, m messenger.Message) {
	if err := b.messenger.Send(t.ctx, m); err != nil {
		t.logger.Warn("send failed", "to", m.To, "kind", m.Kind(), "error", err)
	}
}
