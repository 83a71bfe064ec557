package bot

import (
	"fmt"
	"strings"

	"github.com/roach88/pamperito/internal/domain"
	"github.com/roach88/pamperito/internal/messenger"
	"github.com/roach88/pamperito/internal/pricing"
	"github.com/roach88/pamperito/internal/session"
)

// Reply ids of interactive buttons and list rows.
const (
	BtnMakeOrder   = "make_order"
	BtnPrices      = "prices"
	BtnRepeatLast  = "repeat_last"
	BtnCancel      = "cancel"
	BtnNameYes     = "name_yes"
	BtnNameNo      = "name_no"
	BtnOrderMore   = "order_more"
	BtnOrderFinish = "order_finish"
	BtnAddrYes     = "addr_yes"
	BtnAddrNo      = "addr_no"
	BtnAddrSaved   = "addr_saved"
	BtnPayMP       = "pay_mp"
	BtnPayCash     = "pay_cash"

	productPrefix = "product_"
)

var deliveryDays = []session.Choice{
	{Key: "day_today", Label: "Hoy"},
	{Key: "day_tomorrow", Label: "Mañana"},
	{Key: "day_flexible", Label: "Próximos días"},
}

var deliverySlots = []session.Choice{
	{Key: "slot_morning", Label: "08 a 12 hs"},
	{Key: "slot_afternoon", Label: "12 a 16 hs"},
	{Key: "slot_late", Label: "16 a 18 hs"},
}

const (
	textAskName        = "¡Hola! 👋 Soy el asistente de *Pamperito* 🔥\nAntes de arrancar, ¿cómo te llamás?"
	textNameNotFound   = "No llegué a entender tu nombre 🙈. ¿Me lo escribís de nuevo?"
	textAskNameAgain   = "Dale, ¿cómo te llamás entonces?"
	textApology        = "Uy, tuvimos un problema de nuestro lado 😓. Probá de nuevo en un ratito."
	textCancelled      = "Listo, cancelé el pedido en curso 👍."
	textNoPrevious     = "Todavía no tenés pedidos anteriores para repetir 🙂."
	textEmptyCatalog   = "Por ahora no hay productos cargados 😓. Probá de nuevo más tarde."
	textAskAddress     = "¿A qué dirección te lo llevamos? 📍\nEscribí calle, número y alguna referencia."
	textAddressTooThin = "Necesito la dirección completa (calle y número) para poder llevarte el pedido 📍."
	textNotUnderstood  = "No te entendí 🤔. Decime *hola* para ver el menú o *cancelar* para empezar de nuevo."
	textTrouble        = "Perdón, parece que no me estoy explicando bien 😅.\nYa le avisé a una persona del equipo para que te escriba por acá."
	textDemoPayment    = "Por ahora estamos en *modo demo*, así que no se generó un link de pago automático para el pedido *%s*.\n\nAvisale al vendedor que el pedido está listo para pagar y coordinan el pago por acá 🔥."
	textPaymentLink    = "Te dejo el link de pago para el pedido *%s*:\n\n%s\n\nUna vez acreditado el pago, coordinamos la entrega 🔥."
	textLinkFailed     = "No pude generar el link de pago para el pedido *%s* 😓.\nTe escribimos en breve para coordinar el pago por acá."
	textCashChosen     = "💵 Perfecto, pagás en efectivo al recibir el pedido *%s*.\n¡Gracias por elegir Pamperito! 🔥"
)

func mainMenu(to, greeting string, hasPrevious bool) messenger.Message {
	body := "¿Qué querés hacer? 👇"
	if greeting != "" {
		body = greeting + "\n\n" + body
	}
	buttons := []messenger.Button{{ID: BtnMakeOrder, Title: "🛒 Hacer pedido"}}
	if hasPrevious {
		buttons = append(buttons, messenger.Button{ID: BtnRepeatLast, Title: "🔁 Repetir pedido"})
	}
	buttons = append(buttons, messenger.Button{ID: BtnPrices, Title: "💸 Lista de precios"})
	return messenger.Message{To: to, Text: body, Buttons: buttons}
}

func productMenu(to string, cat domain.Catalog) messenger.Message {
	var sections []messenger.Section
	index := map[string]int{}
	for _, p := range cat.Products {
		title := p.Section
		if title == "" {
			title = "Productos"
		}
		i, ok := index[title]
		if !ok {
			i = len(sections)
			index[title] = i
			sections = append(sections, messenger.Section{Title: title})
		}
		desc := p.Description
		if desc == "" {
			desc = "Desde " + domain.FormatMoney(pricing.UnitPrice(p, 1)) + " por " + p.Unit
		}
		sections[i].Rows = append(sections[i].Rows, messenger.Row{
			ID:          productPrefix + p.ID,
			Title:       p.Label,
			Description: desc,
		})
	}

	return messenger.Message{
		To:     to,
		Text:   "Elegí qué querés pedir y después te pregunto la cantidad 😉",
		Footer: "Podés agregar más de un producto en el mismo pedido.",
		List: &messenger.List{
			Header:   "🔥 Productos Pamperito",
			Button:   "📋 Ver productos",
			Sections: sections,
		},
	}
}

func priceList(to string, cat domain.Catalog) messenger.Message {
	var b strings.Builder
	b.WriteString("💰 *Lista de precios*\n")
	section := "\x00"
	for _, p := range cat.Products {
		if p.Section != section {
			section = p.Section
			if section != "" {
				fmt.Fprintf(&b, "\n*%s*\n", section)
			} else {
				b.WriteString("\n")
			}
		}
		fmt.Fprintf(&b, "• %s: %s", p.Label, domain.FormatMoney(pricing.UnitPrice(p, 1)))
		var tiers []string
		if p.Pricing.Mid.Valid {
			tiers = append(tiers, fmt.Sprintf("%d+: %s", pricing.MidTierMin, domain.FormatMoney(p.Pricing.Mid.Decimal)))
		}
		if p.Pricing.Top.Valid {
			tiers = append(tiers, fmt.Sprintf("%d+: %s", pricing.TopTierMin, domain.FormatMoney(p.Pricing.Top.Decimal)))
		}
		if len(tiers) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(tiers, " · "))
		}
		b.WriteString("\n")
	}
	b.WriteString("\nPrecios por unidad de venta. Pedí 10 o más y baja el precio 😉")

	return messenger.Message{
		To:      to,
		Text:    b.String(),
		Buttons: []messenger.Button{{ID: BtnMakeOrder, Title: "🛒 Hacer pedido"}},
	}
}

func askQuantity(to string, p domain.Product) messenger.Message {
	return messenger.Text(to, fmt.Sprintf(
		"¿Cuántas unidades de *%s* querés? (se vende por %s)\nEscribí solo el número, por ejemplo *3*.", p.Label, p.Unit))
}

func quantityNotUnderstood(to string, p domain.Product) messenger.Message {
	return messenger.Text(to, fmt.Sprintf(
		"Necesito un número mayor a cero 🙂. ¿Cuántas unidades de *%s* querés?", p.Label))
}

// cartLines renders one bullet per cart line with its line total when the
// product is still in the catalog.
func cartLines(items []domain.CartItem, cat domain.Catalog) string {
	var b strings.Builder
	for _, it := range items {
		fmt.Fprintf(&b, "• %d x %s", it.Quantity, it.Label)
		if total, ok := pricing.LineTotal(it, cat); ok {
			fmt.Fprintf(&b, ": %s", domain.FormatMoney(total))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func askMore(to string, added domain.CartItem, cart []domain.CartItem, cat domain.Catalog) messenger.Message {
	text := fmt.Sprintf("Agregué *%d x %s* ✅\n\n🧾 *Tu pedido hasta ahora:*\n%s\n*Total parcial:* %s\n\n¿Querés agregar otro producto al pedido?",
		added.Quantity, added.Label, cartLines(cart, cat), domain.FormatMoney(pricing.ComputeTotal(cart, cat)))
	return messenger.Message{To: to, Text: text, Buttons: []messenger.Button{
		{ID: BtnOrderMore, Title: "Sí, algo más"},
		{ID: BtnOrderFinish, Title: "No, cerrar pedido"},
	}}
}

func askMoreAgain(to string) messenger.Message {
	return messenger.Message{To: to, Text: "¿Querés agregar otro producto al pedido?", Buttons: []messenger.Button{
		{ID: BtnOrderMore, Title: "Sí, algo más"},
		{ID: BtnOrderFinish, Title: "No, cerrar pedido"},
	}}
}

func draftSummary(title string, d session.Draft, cat domain.Catalog) string {
	return fmt.Sprintf("%s\n\n%s\n💰 *Total:* %s", title, cartLines(d.Parsed.Items, cat), domain.FormatMoney(d.Total))
}

func askAddress(to, savedAddress string) messenger.Message {
	if savedAddress == "" {
		return messenger.Text(to, textAskAddress)
	}
	return messenger.Message{
		To:      to,
		Text:    fmt.Sprintf("%s\n\nLa última vez lo llevamos a *%s*.", textAskAddress, savedAddress),
		Buttons: []messenger.Button{{ID: BtnAddrSaved, Title: "📍 Usar esa dirección"}},
	}
}

func confirmName(to, name string) messenger.Message {
	return messenger.Message{To: to, Text: fmt.Sprintf("¿Te llamás *%s*?", name), Buttons: []messenger.Button{
		{ID: BtnNameYes, Title: "Sí 👍"},
		{ID: BtnNameNo, Title: "No, cambiar"},
	}}
}

func confirmAddress(to, address string) messenger.Message {
	return messenger.Message{
		To:     to,
		Text:   fmt.Sprintf("¿Confirmás esta dirección de entrega?\n\n📍 *%s*", address),
		Footer: "Si no es correcta, podés volver a escribirla.",
		Buttons: []messenger.Button{
			{ID: BtnAddrYes, Title: "Sí, es correcta"},
			{ID: BtnAddrNo, Title: "No, cambiar"},
		},
	}
}

func choiceButtons(choices []session.Choice) []messenger.Button {
	out := make([]messenger.Button, 0, len(choices))
	for _, c := range choices {
		out = append(out, messenger.Button{ID: c.Key, Title: c.Label})
	}
	return out
}

func askDeliveryDay(to string) messenger.Message {
	return messenger.Message{
		To:      to,
		Text:    "¿Para qué día te gustaría recibir el pedido? (Es orientativo y puede ajustarse según el reparto) 🗓️",
		Buttons: choiceButtons(deliveryDays),
	}
}

func askDeliverySlot(to string, day session.Choice) messenger.Message {
	return messenger.Message{
		To:      to,
		Text:    fmt.Sprintf("Para *%s*, ¿qué rango horario te viene mejor? (Es a modo sugerido) ⏰", day.Label),
		Buttons: choiceButtons(deliverySlots),
	}
}

func orderSummary(o *domain.Order, cat domain.Catalog) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🧾 *Pedido %s*\n\n", o.ID)
	b.WriteString(cartLines(o.Parsed.Items, cat))
	if o.Parsed.Address != "" {
		fmt.Fprintf(&b, "\n📍 %s", o.Parsed.Address)
	}
	if d := o.Parsed.Delivery; d != nil {
		fmt.Fprintf(&b, "\n🗓️ %s, %s (orientativo)", d.DayLabel, d.SlotLabel)
	}
	fmt.Fprintf(&b, "\n💰 *Total:* %s", domain.FormatMoney(o.Total))
	return b.String()
}

// paymentButtons offers the enabled methods; with none enabled both are
// offered.
func paymentButtons(enableMP, enableCash bool) []messenger.Button {
	if !enableMP && !enableCash {
		enableMP, enableCash = true, true
	}
	var buttons []messenger.Button
	if enableMP {
		buttons = append(buttons, messenger.Button{ID: BtnPayMP, Title: "💳 MercadoPago"})
	}
	if enableCash {
		buttons = append(buttons, messenger.Button{ID: BtnPayCash, Title: "💵 Efectivo"})
	}
	return buttons
}

func askPayment(to, summary string, enableMP, enableCash bool) messenger.Message {
	return messenger.Message{
		To:      to,
		Text:    summary + "\n\n¿Cómo querés pagar este pedido?",
		Buttons: paymentButtons(enableMP, enableCash),
	}
}
