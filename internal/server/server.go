// Package server is the HTTP transport: health check, the WhatsApp
// webhook and the MercadoPago notification webhook.
package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/roach88/pamperito/internal/bot"
	"github.com/roach88/pamperito/internal/messenger"
	"github.com/roach88/pamperito/internal/payment"
)

// maxBodyBytes caps webhook payloads.
const maxBodyBytes = 1 << 20

// EventHandler consumes inbound chat events.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev bot.Event)
}

// PaymentHandler consumes payment notifications.
type PaymentHandler interface {
	Handle(ctx context.Context, n payment.Notification)
}

// Pinger reports storage health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config wires a Server.
type Config struct {
	// VerifyToken answers Meta's webhook verification handshake.
	VerifyToken string
	Bot         EventHandler
	Payments    PaymentHandler
	Health      Pinger
	Logger      *slog.Logger
}

// Server routes webhook traffic to the bot and the payment reconciler.
type Server struct {
	verifyToken string
	bot         EventHandler
	payments    PaymentHandler
	health      Pinger
	logger      *slog.Logger
	router      chi.Router
}

// New builds the router.
func New(cfg Config) *Server {
	s := &Server{
		verifyToken: cfg.VerifyToken,
		bot:         cfg.Bot,
		payments:    cfg.Payments,
		health:      cfg.Health,
		logger:      cfg.Logger,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "server")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleHealth)
	r.Get("/webhook/whatsapp", s.handleVerify)
	r.Post("/webhook/whatsapp", s.handleWhatsApp)
	r.Post("/webhook/mp", s.handleMercadoPago)
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.logger.Debug("http request",
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if s.health != nil {
		if err := s.health.Ping(r.Context()); err != nil {
			s.logger.Error("health check failed", "error", err)
			status, code = "unavailable", http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, map[string]string{"status": status, "service": "pamperito"})
}

// handleVerify answers the subscription handshake: hub.mode=subscribe with
// the configured token echoes hub.challenge.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if s.verifyToken != "" && q.Get("hub.mode") == "subscribe" && q.Get("hub.verify_token") == s.verifyToken {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, q.Get("hub.challenge"))
		return
	}
	s.logger.Warn("webhook verification rejected", "mode", q.Get("hub.mode"))
	http.Error(w, "forbidden", http.StatusForbidden)
}

// handleWhatsApp always answers 200 so the platform does not redeliver;
// malformed payloads are logged and dropped.
func (s *Server) handleWhatsApp(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.logger.Warn("whatsapp webhook unreadable", "error", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	msgs, err := messenger.ParseWebhook(body)
	if err != nil {
		s.logger.Warn("whatsapp webhook malformed", "error", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	// Replies must go out even if the platform hangs up first.
	ctx := context.WithoutCancel(r.Context())
	for _, in := range msgs {
		s.bot.HandleEvent(ctx, bot.EventFromInbound(in))
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleMercadoPago(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.logger.Warn("payment webhook unreadable", "error", err)
	}

	n := payment.ParseNotification(r.URL.Query(), body)
	s.payments.Handle(context.WithoutCancel(r.Context()), n)
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
