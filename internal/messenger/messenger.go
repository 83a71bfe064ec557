// Package messenger models outbound chat messages and delivers them
// through the WhatsApp Cloud API.
//
// Sends are fire-and-forget from the bot's point of view: a failed send is
// logged by the caller and never retried. Messages to one customer are sent
// in the order the handler issues them, but nothing orders sends issued by
// different concurrent handlers.
package messenger

import (
	"context"
	"log/slog"
)

// Button is a quick-reply button. WhatsApp allows at most three per message.
type Button struct {
	ID    string
	Title string
}

// Row is one selectable entry of a list message.
type Row struct {
	ID          string
	Title       string
	Description string
}

// Section groups list rows under a title.
type Section struct {
	Title string
	Rows  []Row
}

// List is an interactive list message body.
type List struct {
	Header   string
	Button   string
	Sections []Section
}

// Message is one outbound chat message. Exactly one of plain text, Buttons
// or List shapes the payload; Text is the body in every case.
type Message struct {
	To      string
	Text    string
	Footer  string
	Buttons []Button
	List    *List
}

// Kind reports the payload shape: "text", "buttons" or "list".
func (m Message) Kind() string {
	switch {
	case m.List != nil:
		return "list"
	case len(m.Buttons) > 0:
		return "buttons"
	default:
		return "text"
	}
}

// Text builds a plain text message.
func Text(to, body string) Message {
	return Message{To: to, Text: body}
}

// Messenger delivers outbound messages.
type Messenger interface {
	Send(ctx context.Context, m Message) error
}

// LogOnly logs messages instead of sending them. Used when no WhatsApp
// credentials are configured.
type LogOnly struct {
	Logger *slog.Logger
}

// Send logs the message and never fails.
func (l LogOnly) Send(_ context.Context, m Message) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("outbound message (not sent)", "to", m.To, "kind", m.Kind(), "text", m.Text)
	return nil
}
