package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// WhatsApp Cloud API limits on interactive payloads.
const (
	maxButtons          = 3
	maxButtonTitle      = 20
	maxRowTitle         = 24
	maxRowDescription   = 72
	maxListButton       = 20
	maxListHeader       = 60
	maxSectionTitle     = 24
	maxRowsAcrossList   = 10
	defaultGraphBase    = "https://graph.facebook.com"
	defaultGraphVersion = "v18.0"
)

// APIError is returned when the Graph API answers with a non-2xx status.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("whatsapp api: status %d: %s", e.Status, e.Body)
}

// Config configures a WhatsApp Cloud API client.
type Config struct {
	GraphBase     string
	Version       string
	PhoneID       string
	Token         string
	RatePerSecond float64
	Burst         int
	HTTPClient    *http.Client
}

// WhatsApp sends messages through the Cloud API messages endpoint.
// Outbound requests are throttled by a token bucket so bursts of replies
// stay under the platform's per-number throughput.
type WhatsApp struct {
	endpoint string
	token    string
	http     *http.Client
	limiter  *rate.Limiter
}

// NewWhatsApp creates a client. Zero rate settings mean 20 msg/s, burst 20.
func NewWhatsApp(cfg Config) *WhatsApp {
	base := strings.TrimRight(cfg.GraphBase, "/")
	if base == "" {
		base = defaultGraphBase
	}
	version := cfg.Version
	if version == "" {
		version = defaultGraphVersion
	}
	rps := cfg.RatePerSecond
	if rps <= 0 {
		rps = 20
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = int(rps)
		if burst < 1 {
			burst = 1
		}
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}

	return &WhatsApp{
		endpoint: fmt.Sprintf("%s/%s/%s/messages", base, version, cfg.PhoneID),
		token:    cfg.Token,
		http:     hc,
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Send posts one message.
func (w *WhatsApp) Send(ctx context.Context, m Message) error {
	if m.To == "" {
		return fmt.Errorf("whatsapp send: empty recipient")
	}
	if err := w.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("whatsapp send: %w", err)
	}

	body, err := json.Marshal(buildPayload(m))
	if err != nil {
		return fmt.Errorf("whatsapp send: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("whatsapp send: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+w.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.http.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Status: resp.StatusCode, Body: string(b)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type payload struct {
	MessagingProduct string       `json:"messaging_product"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             *textBody    `json:"text,omitempty"`
	Interactive      *interactive `json:"interactive,omitempty"`
}

type textBody struct {
	Body string `json:"body"`
}

type interactive struct {
	Type   string      `json:"type"`
	Header *header     `json:"header,omitempty"`
	Body   textField   `json:"body"`
	Footer *textField  `json:"footer,omitempty"`
	Action interAction `json:"action"`
}

type header struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type textField struct {
	Text string `json:"text"`
}

type interAction struct {
	Button   string        `json:"button,omitempty"`
	Buttons  []replyButton `json:"buttons,omitempty"`
	Sections []listSection `json:"sections,omitempty"`
}

type replyButton struct {
	Type  string `json:"type"`
	Reply reply  `json:"reply"`
}

type reply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type listSection struct {
	Title string    `json:"title"`
	Rows  []listRow `json:"rows"`
}

type listRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// buildPayload converts a Message into the Cloud API shape, trimming
// titles to the platform limits so a long product label never gets the
// whole message rejected.
func buildPayload(m Message) payload {
	p := payload{MessagingProduct: "whatsapp", To: m.To}

	var footer *textField
	if m.Footer != "" {
		footer = &textField{Text: m.Footer}
	}

	switch m.Kind() {
	case "buttons":
		buttons := m.Buttons
		if len(buttons) > maxButtons {
			buttons = buttons[:maxButtons]
		}
		rb := make([]replyButton, 0, len(buttons))
		for _, b := range buttons {
			rb = append(rb, replyButton{Type: "reply", Reply: reply{ID: b.ID, Title: truncate(b.Title, maxButtonTitle)}})
		}
		p.Type = "interactive"
		p.Interactive = &interactive{
			Type:   "button",
			Body:   textField{Text: m.Text},
			Footer: footer,
			Action: interAction{Buttons: rb},
		}

	case "list":
		var hdr *header
		if m.List.Header != "" {
			hdr = &header{Type: "text", Text: truncate(m.List.Header, maxListHeader)}
		}
		remaining := maxRowsAcrossList
		sections := make([]listSection, 0, len(m.List.Sections))
		for _, s := range m.List.Sections {
			if remaining == 0 {
				break
			}
			rows := make([]listRow, 0, len(s.Rows))
			for _, r := range s.Rows {
				if remaining == 0 {
					break
				}
				rows = append(rows, listRow{
					ID:          r.ID,
					Title:       truncate(r.Title, maxRowTitle),
					Description: truncate(r.Description, maxRowDescription),
				})
				remaining--
			}
			sections = append(sections, listSection{Title: truncate(s.Title, maxSectionTitle), Rows: rows})
		}
		p.Type = "interactive"
		p.Interactive = &interactive{
			Type:   "list",
			Header: hdr,
			Body:   textField{Text: m.Text},
			Footer: footer,
			Action: interAction{Button: truncate(m.List.Button, maxListButton), Sections: sections},
		}

	default:
		p.Type = "text"
		p.Text = &textBody{Body: m.Text}
	}
	return p
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
