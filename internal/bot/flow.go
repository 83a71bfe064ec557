package bot

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/roach88/pamperito/internal/delivery"
	"github.com/roach88/pamperito/internal/domain"
	"github.com/roach88/pamperito/internal/messenger"
	"github.com/roach88/pamperito/internal/pricing"
	"github.com/roach88/pamperito/internal/session"
)

// minAddressLen is the shortest free-text address accepted, in runes.
const minAddressLen = 3

// Meta keys written on orders.
const (
	MetaChannel       = "channel"
	MetaPaymentMethod = "paymentMethod"
	MetaInitPoint     = "mpInitPoint"

	PaymentMercadoPago = "mercadopago"
	PaymentCash        = "cash"
)

// handleStep dispatches on the current step. Unrecognised input inside a
// step re-prompts for that step and never counts as trouble.
func (b *Bot) handleStep(t *turn, s session.Session) {
	switch st := s.State.(type) {
	case session.AskName:
		b.stepAskName(t)
	case session.ConfirmName:
		b.stepConfirmName(t, st)
	case session.CartIdle:
		b.stepCartIdle(t, st)
	case session.AskQuantity:
		b.stepAskQuantity(t, st)
	case session.AskMore:
		b.stepAskMore(t, st)
	case session.AskAddress:
		b.stepAskAddress(t, st)
	case session.ConfirmAddress:
		b.stepConfirmAddress(t, st)
	case session.AskDeliveryDay:
		b.stepAskDeliveryDay(t, st)
	case session.AskDeliverySlot:
		b.stepAskDeliverySlot(t, st)
	case session.AskPaymentMethod:
		b.stepAskPaymentMethod(t, st)
	default:
		t.logger.Warn("unknown session state, clearing", "state", fmt.Sprintf("%T", s.State))
		b.sessions.Delete(t.from)
		b.fallback(t)
	}
}

func (b *Bot) stepAskName(t *turn) {
	name := extractName(t.text())
	if name == "" {
		b.send(t, messenger.Text(t.from, textNameNotFound))
		return
	}
	b.sessions.Set(t.from, session.ConfirmName{Name: name})
	b.send(t, confirmName(t.from, name))
}

func (b *Bot) stepConfirmName(t *turn, st session.ConfirmName) {
	switch {
	case t.reply == BtnNameYes || (t.reply == "" && hasWord(t.folded, yesWords)):
		if _, err := b.customers.UpsertCustomer(t.ctx, domain.CustomerPatch{
			Phone: t.from,
			Name:  st.Name,
			Zone:  b.cfg.Zone,
		}); err != nil {
			t.logger.Error("customer upsert failed", "error", err)
			b.send(t, messenger.Text(t.from, textApology))
			return
		}
		b.sessions.Delete(t.from)
		t.logger.Info("customer registered", "name", st.Name)
		b.send(t, mainMenu(t.from, "¡Genial, *"+st.Name+"*! Ya te agendé 🙌", b.hasPreviousOrder(t)))
	case t.reply == BtnNameNo || (t.reply == "" && hasWord(t.folded, noWords)):
		b.sessions.Set(t.from, session.AskName{})
		b.send(t, messenger.Text(t.from, textAskNameAgain))
	default:
		b.send(t, confirmName(t.from, st.Name))
	}
}

// startOrder opens a cart, keeping the given lines, and shows the products.
func (b *Bot) startOrder(t *turn, cart []domain.CartItem) {
	cat, ok := b.loadCatalog(t)
	if !ok {
		return
	}
	if cat.Len() == 0 {
		b.sessions.Delete(t.from)
		b.send(t, messenger.Text(t.from, textEmptyCatalog))
		return
	}
	b.sessions.Set(t.from, session.CartIdle{Cart: cart})
	b.send(t, productMenu(t.from, cat))
}

func (b *Bot) stepCartIdle(t *turn, st session.CartIdle) {
	cat, ok := b.loadCatalog(t)
	if !ok {
		return
	}

	var (
		p     domain.Product
		found bool
	)
	if id, isRow := strings.CutPrefix(t.reply, productPrefix); isRow {
		p, found = cat.Lookup(id)
	} else {
		p, found = detectProduct(t.text(), cat)
	}
	if !found {
		b.send(t, productMenu(t.from, cat))
		return
	}

	b.sessions.Set(t.from, session.AskQuantity{Cart: st.Cart, ProductID: p.ID})
	b.send(t, askQuantity(t.from, p))
}

func (b *Bot) stepAskQuantity(t *turn, st session.AskQuantity) {
	cat, ok := b.loadCatalog(t)
	if !ok {
		return
	}
	p, found := cat.Lookup(st.ProductID)
	if !found {
		// Product left the catalog mid-conversation.
		b.sessions.Set(t.from, session.CartIdle{Cart: st.Cart})
		b.send(t, productMenu(t.from, cat))
		return
	}

	qty, ok := firstInt(t.text())
	if !ok || qty <= 0 {
		b.send(t, quantityNotUnderstood(t.from, p))
		return
	}

	item := domain.CartItem{ProductID: p.ID, Label: p.Label, Quantity: qty, Unit: p.Unit}
	cart := append(append([]domain.CartItem(nil), st.Cart...), item)
	b.sessions.Set(t.from, session.AskMore{Cart: cart})
	b.send(t, askMore(t.from, item, cart, cat))
}

func (b *Bot) stepAskMore(t *turn, st session.AskMore) {
	more := t.reply == BtnOrderMore || (t.reply == "" && hasWord(t.folded, moreWords) && !hasWord(t.folded, finishWords))
	finish := t.reply == BtnOrderFinish || (t.reply == "" && hasWord(t.folded, finishWords))

	switch {
	case more:
		b.startOrder(t, st.Cart)
	case finish:
		cat, ok := b.loadCatalog(t)
		if !ok {
			return
		}
		d := session.Draft{
			Parsed: domain.Parsed{Items: st.Cart, Zone: b.cfg.Zone},
			Total:  pricing.ComputeTotal(st.Cart, cat),
		}
		b.sessions.Set(t.from, session.AskAddress{Draft: d})
		b.send(t, messenger.Text(t.from, draftSummary("🧾 *Resumen de tu pedido:*", d, cat)))
		b.send(t, askAddress(t.from, b.savedAddress(t)))
	default:
		b.send(t, askMoreAgain(t.from))
	}
}

// savedAddress is the customer's stored address, or "".
func (b *Bot) savedAddress(t *turn) string {
	c, err := b.customers.GetCustomer(t.ctx, t.from)
	if err != nil {
		if !errors.Is(err, domain.ErrCustomerNotFound) {
			t.logger.Warn("customer lookup failed", "error", err)
		}
		return ""
	}
	return c.Address
}

func (b *Bot) stepAskAddress(t *turn, st session.AskAddress) {
	if t.reply == BtnAddrSaved {
		addr := b.savedAddress(t)
		if addr == "" {
			if last, err := b.orders.GetLastOrderByCustomer(t.ctx, t.from); err == nil {
				addr = last.Parsed.Address
			}
		}
		if addr == "" {
			b.send(t, askAddress(t.from, ""))
			return
		}
		b.acceptAddress(t, st.Draft, addr)
		return
	}

	addr := strings.TrimSpace(t.ev.Text)
	if utf8.RuneCountInString(addr) < minAddressLen {
		b.send(t, messenger.Text(t.from, textAddressTooThin))
		return
	}
	b.sessions.Set(t.from, session.ConfirmAddress{Draft: st.Draft, Address: addr})
	b.send(t, confirmAddress(t.from, addr))
}

func (b *Bot) acceptAddress(t *turn, d session.Draft, addr string) {
	d.Parsed = d.Parsed.Clone()
	d.Parsed.Address = addr
	b.sessions.Set(t.from, session.AskDeliveryDay{Draft: d})
	b.send(t, askDeliveryDay(t.from))
}

func (b *Bot) stepConfirmAddress(t *turn, st session.ConfirmAddress) {
	switch {
	case t.reply == BtnAddrYes || (t.reply == "" && hasWord(t.folded, yesWords)):
		b.acceptAddress(t, st.Draft, st.Address)
	case t.reply == BtnAddrNo || (t.reply == "" && hasWord(t.folded, noWords)):
		b.sessions.Set(t.from, session.AskAddress{Draft: st.Draft})
		b.send(t, messenger.Text(t.from, textAskAddress))
	default:
		b.send(t, confirmAddress(t.from, st.Address))
	}
}

// pickChoice matches a reply id first, then the typed keywords of each
// choice.
func pickChoice(t *turn, choices []session.Choice, keywords map[string][]string) (session.Choice, bool) {
	for _, c := range choices {
		if t.reply == c.Key {
			return c, true
		}
	}
	if t.reply != "" {
		return session.Choice{}, false
	}
	ws := words(t.folded)
	for _, c := range choices {
		for _, kw := range keywords[c.Key] {
			for _, w := range ws {
				if w == kw {
					return c, true
				}
			}
		}
	}
	return session.Choice{}, false
}

var dayKeywords = map[string][]string{
	"day_today":    {"hoy"},
	"day_tomorrow": {"manana"},
	"day_flexible": {"proximos", "proximo", "cualquiera", "flexible", "semana"},
}

var slotKeywords = map[string][]string{
	"slot_morning":   {"8", "08", "9", "10", "11", "manana"},
	"slot_afternoon": {"12", "13", "14", "15", "tarde", "mediodia"},
	"slot_late":      {"16", "17", "18"},
}

func (b *Bot) stepAskDeliveryDay(t *turn, st session.AskDeliveryDay) {
	day, ok := pickChoice(t, deliveryDays, dayKeywords)
	if !ok {
		b.send(t, askDeliveryDay(t.from))
		return
	}
	b.sessions.Set(t.from, session.AskDeliverySlot{Draft: st.Draft, Day: day})
	b.send(t, askDeliverySlot(t.from, day))
}

func (b *Bot) stepAskDeliverySlot(t *turn, st session.AskDeliverySlot) {
	slot, ok := pickChoice(t, deliverySlots, slotKeywords)
	if !ok {
		b.send(t, askDeliverySlot(t.from, st.Day))
		return
	}

	parsed := st.Draft.Parsed.Clone()
	parsed.Delivery = &domain.DeliveryWindow{
		DayKey:    st.Day.Key,
		DayLabel:  st.Day.Label,
		SlotKey:   slot.Key,
		SlotLabel: slot.Label,
	}
	order, err := b.orders.PersistOrder(t.ctx, domain.NewOrder{
		From:   t.from,
		Parsed: parsed,
		Total:  st.Draft.Total,
		Status: domain.StatusPending,
		Meta:   domain.Meta{MetaChannel: "whatsapp"},
	})
	if err != nil {
		t.logger.Error("order persist failed", "error", err)
		b.send(t, messenger.Text(t.from, textApology))
		return
	}
	t.logger.Info("order created", "order", order.ID, "total", order.Total.String())

	if _, err := b.customers.UpsertCustomer(t.ctx, domain.CustomerPatch{
		Phone:   t.from,
		Address: parsed.Address,
		Zone:    parsed.Zone,
	}); err != nil {
		t.logger.Warn("customer address refresh failed", "order", order.ID, "error", err)
	}

	b.sessions.Set(t.from, session.AskPaymentMethod{OrderID: order.ID, Total: order.Total, Parsed: order.Parsed})

	cat, err := b.catalog.LoadCatalog(t.ctx)
	if err != nil {
		t.logger.Warn("catalog load failed, summary without line totals", "error", err)
	}
	b.send(t, askPayment(t.from, orderSummary(order, cat), b.cfg.EnableMP, b.cfg.EnableCash))
}

func (b *Bot) stepAskPaymentMethod(t *turn, st session.AskPaymentMethod) {
	offered := paymentButtons(b.cfg.EnableMP, b.cfg.EnableCash)
	offers := func(id string) bool {
		for _, btn := range offered {
			if btn.ID == id {
				return true
			}
		}
		return false
	}

	switch {
	case offers(BtnPayMP) && (t.reply == BtnPayMP || (t.reply == "" && hasWord(t.folded, mpWords))):
		b.payOnline(t, st)
	case offers(BtnPayCash) && (t.reply == BtnPayCash || (t.reply == "" && hasWord(t.folded, cashWords))):
		b.payCash(t, st)
	default:
		b.send(t, messenger.Message{
			To:      t.from,
			Text:    "¿Cómo querés pagar el pedido *" + st.OrderID + "*?",
			Buttons: offered,
		})
	}
}

func (b *Bot) payOnline(t *turn, st session.AskPaymentMethod) {
	link, err := b.payments.CreatePreference(t.ctx, st.OrderID, st.Total)
	meta := domain.Meta{MetaPaymentMethod: PaymentMercadoPago}
	switch {
	case err != nil:
		t.logger.Error("payment link failed", "order", st.OrderID, "error", err)
		b.send(t, messenger.Text(t.from, fmt.Sprintf(textLinkFailed, st.OrderID)))
	case link == "":
		t.logger.Info("payment link unavailable, demo mode", "order", st.OrderID)
		b.send(t, messenger.Text(t.from, fmt.Sprintf(textDemoPayment, st.OrderID)))
	default:
		meta[MetaInitPoint] = link
		b.send(t, messenger.Text(t.from, fmt.Sprintf(textPaymentLink, st.OrderID, link)))
	}

	if _, err := b.orders.MergeMeta(t.ctx, st.OrderID, meta); err != nil {
		t.logger.Warn("order meta update failed", "order", st.OrderID, "error", err)
	}
	b.sessions.Delete(t.from)
	b.notifyNewOrder(t, st, "💳 MercadoPago", []messenger.Button{
		{ID: delivery.ButtonPaid + st.OrderID, Title: "💰 Pago recibido"},
		{ID: delivery.ButtonInDelivery + st.OrderID, Title: "🚚 En reparto"},
	})
}

func (b *Bot) payCash(t *turn, st session.AskPaymentMethod) {
	if _, err := b.orders.MergeMeta(t.ctx, st.OrderID, domain.Meta{MetaPaymentMethod: PaymentCash}); err != nil {
		t.logger.Warn("order meta update failed", "order", st.OrderID, "error", err)
	}
	b.sessions.Delete(t.from)
	b.send(t, messenger.Text(t.from, fmt.Sprintf(textCashChosen, st.OrderID)))
	b.notifyNewOrder(t, st, "💵 Efectivo", []messenger.Button{
		{ID: delivery.ButtonInDelivery + st.OrderID, Title: "🚚 En reparto"},
	})
}

// notifyNewOrder tells the administrator about a confirmed order. Without
// an administrator phone nothing is sent.
func (b *Bot) notifyNewOrder(t *turn, st session.AskPaymentMethod, method string, buttons []messenger.Button) {
	if b.cfg.AdminPhone == "" {
		return
	}
	customer := t.from
	if c, err := b.customers.GetCustomer(t.ctx, t.from); err == nil && c.Name != "" {
		customer = c.Name + " (" + t.from + ")"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🆕 *Nuevo pedido %s*\n\nCliente: %s\n", st.OrderID, customer)
	for _, it := range st.Parsed.Items {
		fmt.Fprintf(&sb, "• %d x %s\n", it.Quantity, it.Label)
	}
	if st.Parsed.Address != "" {
		fmt.Fprintf(&sb, "📍 %s\n", st.Parsed.Address)
	}
	if d := st.Parsed.Delivery; d != nil {
		fmt.Fprintf(&sb, "🗓️ %s, %s\n", d.DayLabel, d.SlotLabel)
	}
	fmt.Fprintf(&sb, "💰 Total: %s\nPago: %s", domain.FormatMoney(st.Total), method)

	b.send(t, messenger.Message{To: b.cfg.AdminPhone, Text: sb.String(), Buttons: buttons})
}

// repeatLast rebuilds the customer's last order on current prices and asks
// for the delivery address.
func (b *Bot) repeatLast(t *turn) {
	last, err := b.orders.GetLastOrderByCustomer(t.ctx, t.from)
	if errors.Is(err, domain.ErrOrderNotFound) {
		b.send(t, messenger.Text(t.from, textNoPrevious))
		b.send(t, mainMenu(t.from, "", false))
		return
	}
	if err != nil {
		t.logger.Error("last order lookup failed", "error", err)
		b.send(t, messenger.Text(t.from, textApology))
		return
	}

	cat, ok := b.loadCatalog(t)
	if !ok {
		return
	}
	zone := last.Parsed.Zone
	if zone == "" {
		zone = b.cfg.Zone
	}
	items := append([]domain.CartItem(nil), last.Parsed.Items...)
	d := session.Draft{
		Parsed: domain.Parsed{Items: items, Zone: zone},
		Total:  pricing.ComputeTotal(items, cat),
	}
	b.sessions.Set(t.from, session.AskAddress{Draft: d})
	t.logger.Info("repeating order", "previous", last.ID, "total", d.Total.String())

	saved := b.savedAddress(t)
	if saved == "" {
		saved = last.Parsed.Address
	}
	b.send(t, messenger.Text(t.from, draftSummary("🔁 *Repetimos tu último pedido* (precios actualizados):", d, cat)))
	b.send(t, askAddress(t.from, saved))
}
