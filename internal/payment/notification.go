package payment

import (
	"encoding/json"
	"net/url"
	"strings"
)

// Notification is one inbound payment-provider callback.
type Notification struct {
	Topic     string
	PaymentID string
	Raw       []byte
}

type notificationBody struct {
	Topic string `json:"topic"`
	Type  string `json:"type"`
	Data  struct {
		ID      json.RawMessage `json:"id"`
		Payment struct {
			ID json.RawMessage `json:"id"`
		} `json:"payment"`
	} `json:"data"`
}

// ParseNotification extracts topic and payment id from a MercadoPago
// webhook. The provider sends them either as query parameters (topic or
// type, data.id or id) or in the JSON body; query values win. A body that
// is not JSON is tolerated and only the query is used.
func ParseNotification(query url.Values, body []byte) Notification {
	n := Notification{Raw: body}

	var b notificationBody
	_ = json.Unmarshal(body, &b)

	n.Topic = firstNonEmpty(query.Get("topic"), query.Get("type"), b.Topic, b.Type)
	n.PaymentID = firstNonEmpty(
		query.Get("data.id"),
		query.Get("id"),
		rawID(b.Data.ID),
		rawID(b.Data.Payment.ID),
	)
	return n
}

// rawID accepts both numeric and string JSON ids.
func rawID(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	return strings.Trim(s, `"`)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
