package testutil

import (
	"context"
	"sync"

	"github.com/roach88/pamperito/internal/messenger"
)

// RecordingMessenger captures sent messages instead of delivering them.
// Set Err to make every Send fail after recording the attempt.
type RecordingMessenger struct {
	mu   sync.Mutex
	sent []messenger.Message
	Err  error
}

// Send records m.
func (r *RecordingMessenger) Send(_ context.Context, m messenger.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, m)
	return r.Err
}

// Sent returns a copy of all recorded messages in send order.
func (r *RecordingMessenger) Sent() []messenger.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]messenger.Message, len(r.sent))
	copy(out, r.sent)
	return out
}

// To returns the messages sent to one recipient.
func (r *RecordingMessenger) To(phone string) []messenger.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []messenger.Message
	for _, m := range r.sent {
		if m.To == phone {
			out = append(out, m)
		}
	}
	return out
}

// Last returns the most recent message, or the zero Message if none.
func (r *RecordingMessenger) Last() messenger.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return messenger.Message{}
	}
	return r.sent[len(r.sent)-1]
}

// Reset drops every recorded message.
func (r *RecordingMessenger) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}
