// Package watcher reminds customers about abandoned conversations and
// expires the ones left alone too long.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/pamperito/internal/clock"
	"github.com/roach88/pamperito/internal/domain"
	"github.com/roach88/pamperito/internal/messenger"
	"github.com/roach88/pamperito/internal/session"
)

// Defaults.
const (
	DefaultTick        = 60 * time.Second
	DefaultNudgeAfter  = 5 * time.Minute
	DefaultExpireAfter = 30 * time.Minute
	defaultParallelism = 8
)

const expiredText = "El pedido anterior quedó vencido porque pasó mucho tiempo sin respuesta 😊.\n" +
	"Si querés hacer un nuevo pedido, podés decirme *hola* y arrancamos de cero."

// CustomerStore resolves names for reminder messages.
type CustomerStore interface {
	GetCustomer(ctx context.Context, phone string) (*domain.Customer, error)
}

// Config wires a Watcher. Zero durations take the defaults.
type Config struct {
	Sessions    session.Store
	Customers   CustomerStore
	Messenger   messenger.Messenger
	Clock       clock.Clock
	Tick        time.Duration
	NudgeAfter  time.Duration
	ExpireAfter time.Duration
	// Parallelism bounds concurrent per-session actions within one tick.
	Parallelism int
	Logger      *slog.Logger
}

// Watcher scans sessions on a fixed interval.
type Watcher struct {
	sessions    session.Store
	customers   CustomerStore
	messenger   messenger.Messenger
	clock       clock.Clock
	tick        time.Duration
	nudgeAfter  time.Duration
	expireAfter time.Duration
	parallelism int
	logger      *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(cfg Config) *Watcher {
	w := &Watcher{
		sessions:    cfg.Sessions,
		customers:   cfg.Customers,
		messenger:   cfg.Messenger,
		clock:       cfg.Clock,
		tick:        cfg.Tick,
		nudgeAfter:  cfg.NudgeAfter,
		expireAfter: cfg.ExpireAfter,
		parallelism: cfg.Parallelism,
		logger:      cfg.Logger,
	}
	if w.clock == nil {
		w.clock = clock.System{}
	}
	if w.tick <= 0 {
		w.tick = DefaultTick
	}
	if w.nudgeAfter <= 0 {
		w.nudgeAfter = DefaultNudgeAfter
	}
	if w.expireAfter <= 0 {
		w.expireAfter = DefaultExpireAfter
	}
	if w.parallelism <= 0 {
		w.parallelism = defaultParallelism
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	w.logger = w.logger.With("component", "watcher")
	return w
}

// Run ticks until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	w.logger.Info("watcher started", "tick", w.tick, "nudge_after", w.nudgeAfter, "expire_after", w.expireAfter)
	t := time.NewTicker(w.tick)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher stopped")
			return
		case <-t.C:
			w.Tick(ctx)
		}
	}
}

// Start runs the watcher in the background. Calling Start twice without
// Stop is a no-op.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		w.Run(ctx)
	}(w.done)
}

// Stop halts a started watcher and waits for the current tick to finish.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Tick scans a snapshot of the session keys once. Expiry takes priority
// over a reminder; sessions changed or removed since the snapshot are
// left alone.
//
// Tick returns only after every send has returned. At most Parallelism
// sessions are handled at once and sends carry no timeout of their own,
// so a hung messenger delays the remaining sessions and the next tick;
// bound it through ctx or the messenger's HTTP client.
func (w *Watcher) Tick(ctx context.Context) {
	keys := w.sessions.Keys()
	if len(keys) == 0 {
		return
	}
	now := w.clock.Now()

	var g errgroup.Group
	g.SetLimit(w.parallelism)
	for _, key := range keys {
		g.Go(func() error {
			w.check(ctx, key, now)
			return nil
		})
	}
	_ = g.Wait()
}

func (w *Watcher) check(ctx context.Context, key string, now time.Time) {
	s, ok := w.sessions.Get(key)
	if !ok {
		return
	}
	age := now.Sub(s.LastUpdated)
	logger := w.logger.With("customer", key, "session", s.ID, "step", s.State.Step())

	switch {
	case age >= w.expireAfter:
		if !w.sessions.CompareAndDelete(key, s.LastUpdated) {
			return
		}
		logger.Info("session expired", "age", age.Round(time.Second))
		w.send(ctx, logger, messenger.Text(key, expiredText))

	case age >= w.nudgeAfter && !s.Nudged:
		if !w.sessions.MarkNudged(key, s.LastUpdated) {
			return
		}
		logger.Info("session nudged", "age", age.Round(time.Second))
		w.send(ctx, logger, messenger.Text(key, w.nudgeText(ctx, logger, key)))
	}
}

func (w *Watcher) nudgeText(ctx context.Context, logger *slog.Logger, phone string) string {
	hi := "Hola"
	if w.customers != nil {
		c, err := w.customers.GetCustomer(ctx, phone)
		switch {
		case err == nil && c.Name != "":
			hi = fmt.Sprintf("Hola *%s*", c.Name)
		case err != nil && !errors.Is(err, domain.ErrCustomerNotFound):
			logger.Warn("customer lookup failed", "error", err)
		}
	}
	return hi + ", noté que dejaste un pedido a medias 🧾.\n" +
		"Si querés seguirlo, podés responder donde lo dejaste.\n" +
		"Si preferís cancelarlo y empezar de nuevo, escribí *cancelar* en cualquier momento."
}

func (w *Watcher) send(ctx context.Context, logger *slog.Logger, m messenger.Message) {
	if err := w.messenger.Send(ctx, m); err != nil {
		logger.Warn("send failed", "error", err)
	}
}
