package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pamperito/internal/bot"
	"github.com/roach88/pamperito/internal/payment"
)

type recordingBot struct {
	mu     sync.Mutex
	events []bot.Event
}

func (r *recordingBot) HandleEvent(_ context.Context, ev bot.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

type recordingPayments struct {
	notifications []payment.Notification
}

func (r *recordingPayments) Handle(_ context.Context, n payment.Notification) {
	r.notifications = append(r.notifications, n)
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func newTestServer(health Pinger) (*Server, *recordingBot, *recordingPayments) {
	b := &recordingBot{}
	p := &recordingPayments{}
	return New(Config{VerifyToken: "secret", Bot: b, Payments: p, Health: health}), b, p
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer(pinger{})
	rr := httptest.NewRecorder()

	s.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok","service":"pamperito"}`, rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get("Content-Type"))
}

func TestHealth_StoreDown(t *testing.T) {
	s, _, _ := newTestServer(pinger{err: errors.New("database is locked")})
	rr := httptest.NewRecorder()

	s.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "unavailable")
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		wantCode int
		wantBody string
	}{
		{"valid", "hub.mode=subscribe&hub.verify_token=secret&hub.challenge=12345", http.StatusOK, "12345"},
		{"wrong token", "hub.mode=subscribe&hub.verify_token=nope&hub.challenge=12345", http.StatusForbidden, ""},
		{"wrong mode", "hub.mode=unsubscribe&hub.verify_token=secret&hub.challenge=12345", http.StatusForbidden, ""},
		{"missing", "", http.StatusForbidden, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, _ := newTestServer(nil)
			rr := httptest.NewRecorder()

			s.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/webhook/whatsapp?"+tt.query, nil))

			assert.Equal(t, tt.wantCode, rr.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rr.Body.String())
			}
		})
	}
}

func TestVerify_NoTokenConfigured(t *testing.T) {
	s := New(Config{Bot: &recordingBot{}, Payments: &recordingPayments{}})
	rr := httptest.NewRecorder()

	s.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/webhook/whatsapp?hub.mode=subscribe&hub.verify_token=&hub.challenge=1", nil))

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestWhatsAppWebhook_DispatchesEveryMessage(t *testing.T) {
	s, b, _ := newTestServer(nil)
	body := `{"entry":[{"changes":[{"value":{
		"contacts":[{"wa_id":"5493462","profile":{"name":"Carlos"}}],
		"messages":[
			{"id":"1","from":"5493462","type":"text","text":{"body":"hola"}},
			{"id":"2","from":"5493462","type":"interactive","interactive":{"type":"list_reply","list_reply":{"id":"product_carbon_3kg","title":"Carbón 3kg"}}}
		]
	}}]}]}`
	rr := httptest.NewRecorder()

	s.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader(body)))

	assert.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, b.events, 2)
	assert.Equal(t, bot.KindText, b.events[0].Kind)
	assert.Equal(t, "hola", b.events[0].Text)
	assert.Equal(t, "5493462", b.events[0].From)
	assert.Equal(t, bot.KindList, b.events[1].Kind)
	assert.Equal(t, "product_carbon_3kg", b.events[1].ReplyID)
}

func TestWhatsAppWebhook_MalformedStillOK(t *testing.T) {
	s, b, _ := newTestServer(nil)
	rr := httptest.NewRecorder()

	s.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader("{oops")))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, b.events)
}

func TestMercadoPagoWebhook(t *testing.T) {
	tests := []struct {
		name      string
		target    string
		body      string
		wantTopic string
		wantID    string
	}{
		{"query", "/webhook/mp?topic=payment&id=123", "", "payment", "123"},
		{"body", "/webhook/mp", `{"type":"payment","data":{"id":"456"}}`, "payment", "456"},
		{"numeric body id", "/webhook/mp", `{"type":"payment","data":{"id":789}}`, "payment", "789"},
		{"merchant order", "/webhook/mp?topic=merchant_order&id=1", "", "merchant_order", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, p := newTestServer(nil)
			rr := httptest.NewRecorder()

			s.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, tt.target, strings.NewReader(tt.body)))

			assert.Equal(t, http.StatusOK, rr.Code)
			require.Len(t, p.notifications, 1)
			assert.Equal(t, tt.wantTopic, p.notifications[0].Topic)
			assert.Equal(t, tt.wantID, p.notifications[0].PaymentID)
		})
	}
}

func TestUnknownRoute(t *testing.T) {
	s, _, _ := newTestServer(nil)
	rr := httptest.NewRecorder()

	s.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRecoversPanic(t *testing.T) {
	s := New(Config{Bot: panicBot{}, Payments: &recordingPayments{}})
	body := `{"entry":[{"changes":[{"value":{"messages":[{"id":"1","from":"5","type":"text","text":{"body":"hola"}}]}}]}]}`
	rr := httptest.NewRecorder()

	s.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader(body)))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

type panicBot struct{}

func (panicBot) HandleEvent(context.Context, bot.Event) { panic("boom") }
