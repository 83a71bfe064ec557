package bot

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/pamperito/internal/domain"
)

// fold lowercases s and strips diacritics so "Leña", "LENA" and "lena"
// compare equal.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// words splits s on anything that is not a letter or digit.
func words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func hasWord(folded string, set map[string]bool) bool {
	for _, w := range words(folded) {
		if set[w] {
			return true
		}
	}
	return false
}

func setOf(ws ...string) map[string]bool {
	m := make(map[string]bool, len(ws))
	for _, w := range ws {
		m[w] = true
	}
	return m
}

var (
	greetingWords = setOf("hola", "holis", "buenas", "buen", "buenos", "menu", "inicio", "empezar", "hi", "hello")
	orderWords    = setOf("pedido", "pedir", "comprar", "encargar")
	priceWords    = setOf("precio", "precios", "lista", "cuanto", "sale", "salen")
	cancelWords   = setOf("cancelar", "cancel")
	cancelFiller  = setOf("quiero", "mejor", "el", "mi", "pedido", "todo", "por", "favor", "porfa")
	repeatWords   = setOf("repetir", "repeti", "repite")
	yesWords      = setOf("si", "s", "dale", "ok", "okey", "oka", "correcto", "claro", "obvio", "yes", "bueno", "perfecto")
	noWords       = setOf("no", "n", "cambiar", "otra", "otro")
	moreWords     = setOf("si", "mas", "otro", "agregar", "sumar", "dale")
	finishWords   = setOf("no", "listo", "terminar", "cerrar", "finalizar", "nada", "eso", "fin")
	mpWords       = setOf("mercadopago", "mp", "tarjeta", "link", "transferencia", "online", "mercado")
	cashWords     = setOf("efectivo", "cash", "contado", "billete", "billetes")

	// nameStopWords are dropped when extracting a name from free text.
	nameStopWords = setOf(
		"hola", "holis", "buenas", "buen", "buenos", "buena", "dia", "dias", "tarde", "tardes", "noche", "noches",
		"que", "tal", "como", "estas", "andas", "va", "todo", "bien", "hi", "hello", "hey",
		"soy", "me", "llamo", "llaman", "dicen", "mi", "nombre", "es", "el", "la", "yo", "aca", "habla",
		"te", "saluda", "ok", "si", "no", "gracias", "quiero", "hacer", "un", "una", "pedido", "menu",
		"senor", "senora", "sr", "sra", "de", "y",
	)
)

// isCancel reports a message that is only a cancel request, such as
// "cancelar" or "quiero cancelar el pedido". Any other word keeps the
// message for the current step, so "cancelo en efectivo" is a payment
// answer and "Cancela 450" an address.
func isCancel(folded string) bool {
	found := false
	for _, w := range words(folded) {
		switch {
		case cancelWords[w]:
			found = true
		case !cancelFiller[w]:
			return false
		}
	}
	return found
}

// extractName proposes a display name from free text: the first token
// that is not a greeting or filler word, capitalised. Returns "" when
// nothing survives.
func extractName(text string) string {
	for _, w := range words(strings.ToLower(text)) {
		f := fold(w)
		if nameStopWords[f] || len([]rune(w)) < 2 {
			continue
		}
		if strings.IndexFunc(w, unicode.IsDigit) >= 0 {
			continue
		}
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		return string(r)
	}
	return ""
}

var intRe = regexp.MustCompile(`\d+`)

// firstInt returns the first integer in text.
func firstInt(text string) (int, bool) {
	m := intRe.FindString(text)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}

var unitRe = regexp.MustCompile(`(\d+)\s+(kg|kilo|kilos)\b`)

// productTokens splits a product id into its match tokens, e.g.
// "lenia_10kg" -> ["lenia", "10kg"].
func productTokens(id string) []string {
	return strings.FieldsFunc(strings.ToLower(id), func(r rune) bool { return r == '_' || r == '-' })
}

// tokenAliases lists spellings customers use for id tokens.
var tokenAliases = map[string][]string{
	"lenia": {"lena", "lenia", "lenas"},
}

func tokenMatches(idToken string, textWords []string) bool {
	candidates := tokenAliases[idToken]
	if candidates == nil {
		candidates = []string{idToken}
	}
	for _, w := range textWords {
		for _, c := range candidates {
			if w == c || (len(c) >= 4 && strings.HasPrefix(w, c)) {
				return true
			}
		}
	}
	return false
}

func isNumericToken(tok string) bool {
	return tok != "" && unicode.IsDigit(rune(tok[0]))
}

// detectProduct finds the product a free-text message refers to. A
// product whose id tokens all appear wins; otherwise a product is picked
// only when it is the single one matching any word token.
func detectProduct(text string, cat domain.Catalog) (domain.Product, bool) {
	folded := unitRe.ReplaceAllString(fold(text), "${1}kg")
	ws := words(folded)
	if len(ws) == 0 {
		return domain.Product{}, false
	}

	var full, partial []domain.Product
	for _, p := range cat.Products {
		toks := productTokens(p.ID)
		all, some := true, false
		for _, tok := range toks {
			if tokenMatches(tok, ws) {
				if !isNumericToken(tok) {
					some = true
				}
			} else {
				all = false
			}
		}
		if all && len(toks) > 0 {
			full = append(full, p)
		} else if some {
			partial = append(partial, p)
		}
	}

	switch {
	case len(full) == 1:
		return full[0], true
	case len(full) == 0 && len(partial) == 1:
		return partial[0], true
	}
	return domain.Product{}, false
}

var adminCommandRe = regexp.MustCompile(`^(envio|entregado|pago ok)\s+(pam-\d+)\s*$`)

// parseAdminCommand recognises "envio PAM-1", "envío PAM-1",
// "entregado PAM-1" and "pago ok PAM-1".
func parseAdminCommand(text string) (verb, orderID string, ok bool) {
	folded := strings.Join(strings.Fields(fold(text)), " ")
	m := adminCommandRe.FindStringSubmatch(folded)
	if m == nil {
		return "", "", false
	}
	return m[1], strings.ToUpper(m[2]), true
}
