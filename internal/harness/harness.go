package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/pamperito/internal/bot"
	"github.com/roach88/pamperito/internal/catalog"
	"github.com/roach88/pamperito/internal/delivery"
	"github.com/roach88/pamperito/internal/domain"
	"github.com/roach88/pamperito/internal/messenger"
	"github.com/roach88/pamperito/internal/pricing"
	"github.com/roach88/pamperito/internal/session"
	"github.com/roach88/pamperito/internal/store"
	"github.com/roach88/pamperito/internal/testutil"
	"github.com/roach88/pamperito/internal/watcher"
)

// maxOrderIDs bounds the fixed order ids handed to the store.
const maxOrderIDs = 20

// Harness holds one scenario's wiring.
type Harness struct {
	store    *store.Store
	sessions *session.MemoryStore
	clock    *testutil.FakeClock
	rec      *testutil.RecordingMessenger
	bot      *bot.Bot
	watcher  *watcher.Watcher
	catalog  domain.Catalog
	logger   *slog.Logger
}

// fixedLinker returns the same payment link for every order.
type fixedLinker string

func (l fixedLinker) CreatePreference(context.Context, string, decimal.Decimal) (string, error) {
	return string(l), nil
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Execution flow:
// 1. Create fresh in-memory database and fakes
// 2. Seed setup customers and orders
// 3. Play flow steps, checking expect clauses
// 4. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	h, err := newHarness(scenario)
	if err != nil {
		return nil, err
	}
	defer h.store.Close()

	ctx := context.Background()
	if err := h.executeSetup(ctx, scenario.Setup); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	result := NewResult()
	h.executeFlow(ctx, scenario.Flow, result)

	actx := &AssertionContext{
		Ctx:      ctx,
		Store:    h.store,
		Sessions: h.sessions,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}
	return result, nil
}

func newHarness(scenario *Scenario) (*Harness, error) {
	ids := make([]string, maxOrderIDs)
	for i := range ids {
		ids[i] = fmt.Sprintf("%s%d", domain.OrderIDPrefix, i+1)
	}
	clk := testutil.NewFakeClock()
	st, err := store.Open(":memory:", store.WithClock(clk), store.WithIDGenerator(domain.NewFixedIDs(ids...)))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}

	h := &Harness{
		store:    st,
		sessions: session.NewMemoryStore(clk),
		clock:    clk,
		rec:      &testutil.RecordingMessenger{},
		catalog:  catalog.Seed(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	o := scenario.Config
	cfg := bot.Config{AdminPhone: DefaultAdmin, Zone: "venado_tuerto", EnableMP: true, EnableCash: true, TroubleThreshold: o.TroubleThreshold}
	if o.AdminPhone != nil {
		cfg.AdminPhone = *o.AdminPhone
	}
	if o.Zone != "" {
		cfg.Zone = o.Zone
	}
	if o.EnableMP != nil {
		cfg.EnableMP = *o.EnableMP
	}
	if o.EnableCash != nil {
		cfg.EnableCash = *o.EnableCash
	}

	h.bot = bot.New(cfg, bot.Deps{
		Sessions:   h.sessions,
		Catalog:    catalog.Static(h.catalog),
		Orders:     st,
		Customers:  st,
		Payments:   fixedLinker(o.PaymentLink),
		Dispatcher: delivery.NewDispatcher(st, st, h.rec, cfg.AdminPhone, h.logger),
		Messenger:  h.rec,
		Logger:     h.logger,
	})
	h.watcher = watcher.New(watcher.Config{
		Sessions:    h.sessions,
		Customers:   st,
		Messenger:   h.rec,
		Clock:       clk,
		Parallelism: 1,
		Logger:      h.logger,
	})
	return h, nil
}

// executeSetup seeds customers and orders. Orders take ids in setup order.
func (h *Harness) executeSetup(ctx context.Context, setup Setup) error {
	for i, c := range setup.Customers {
		if _, err := h.store.UpsertCustomer(ctx, domain.CustomerPatch{
			Phone:   c.Phone,
			Name:    c.Name,
			Address: c.Address,
			Zone:    c.Zone,
		}); err != nil {
			return fmt.Errorf("setup customer %d: %w", i, err)
		}
	}

	for i, o := range setup.Orders {
		items := make([]domain.CartItem, 0, len(o.Items))
		for _, it := range o.Items {
			p, ok := h.catalog.Lookup(it.ID)
			if !ok {
				return fmt.Errorf("setup order %d: unknown product %q", i, it.ID)
			}
			items = append(items, domain.CartItem{ProductID: p.ID, Label: p.Label, Quantity: it.Quantity, Unit: p.Unit})
		}

		total := pricing.ComputeTotal(items, h.catalog)
		if o.Total != "" {
			d, err := decimal.NewFromString(o.Total)
			if err != nil {
				return fmt.Errorf("setup order %d: total: %w", i, err)
			}
			total = d
		}

		if _, err := h.store.PersistOrder(ctx, domain.NewOrder{
			From:   o.From,
			Parsed: domain.Parsed{Items: items, Zone: "venado_tuerto", Address: o.Address},
			Total:  total,
			Status: domain.StatusPending,
		}); err != nil {
			return fmt.Errorf("setup order %d: %w", i, err)
		}
		// Distinct creation times keep "last order" unambiguous.
		h.clock.Advance(time.Second)
	}
	return nil
}

// executeFlow plays every step, recording the transcript and checking
// expect clauses. A failed expectation does not stop the flow.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) {
	for i, step := range flow {
		before := len(h.rec.Sent())
		from := step.sender()

		if step.Advance != "" {
			d, _ := time.ParseDuration(step.Advance)
			h.clock.Advance(d)
			h.watcher.Tick(ctx)
		} else {
			ev := h.event(step)
			result.add(inboundTrace(ev))
			h.bot.HandleEvent(ctx, ev)
		}

		sent := h.rec.Sent()[before:]
		for _, m := range sent {
			result.add(outboundTrace(m))
		}

		if step.Expect != nil {
			for _, msg := range h.checkExpect(step.Expect, from, sent) {
				result.AddError(fmt.Sprintf("flow[%d]: %s", i, msg))
			}
		}
	}
}

func (h *Harness) event(step FlowStep) bot.Event {
	ev := bot.Event{From: step.sender()}
	switch {
	case step.Text != "":
		ev.Kind, ev.Text = bot.KindText, step.Text
	case step.List != "":
		ev.Kind, ev.ReplyID = bot.KindList, step.List
	default:
		ev.Kind, ev.ReplyID = bot.KindButton, step.Button
	}
	return ev
}

func (h *Harness) checkExpect(e *ExpectClause, from string, sent []messenger.Message) []string {
	var errs []string

	var mine []messenger.Message
	for _, m := range sent {
		if m.To == from {
			mine = append(mine, m)
		}
	}

	if e.Step != "" {
		if got := currentStep(h.sessions, from); got != e.Step {
			errs = append(errs, fmt.Sprintf("step: expected %s, got %s", e.Step, got))
		}
	}
	if e.Replies != nil && len(mine) != *e.Replies {
		errs = append(errs, fmt.Sprintf("replies: expected %d, got %d", *e.Replies, len(mine)))
	}
	if e.ReplyContains == "" && e.Buttons == nil {
		return errs
	}
	if len(mine) == 0 {
		return append(errs, "expected a reply, none was sent")
	}

	last := mine[len(mine)-1]
	if e.ReplyContains != "" && !containsText(last.Text, e.ReplyContains) {
		errs = append(errs, fmt.Sprintf("reply: expected to contain %q, got %q", e.ReplyContains, last.Text))
	}
	if e.Buttons != nil {
		got := make([]string, 0, len(last.Buttons))
		for _, b := range last.Buttons {
			got = append(got, b.ID)
		}
		if !equalStrings(got, e.Buttons) {
			errs = append(errs, fmt.Sprintf("buttons: expected %v, got %v", e.Buttons, got))
		}
	}
	return errs
}

// currentStep returns the session step for phone, or StepIdle.
func currentStep(sessions session.Store, phone string) string {
	s, ok := sessions.Get(phone)
	if !ok {
		return StepIdle
	}
	return string(s.State.Step())
}

func inboundTrace(ev bot.Event) TraceEvent {
	return TraceEvent{
		Direction: DirInbound,
		Peer:      ev.From,
		Kind:      string(ev.Kind),
		Text:      ev.Text,
		Reply:     ev.ReplyID,
	}
}

func outboundTrace(m messenger.Message) TraceEvent {
	te := TraceEvent{
		Direction: DirOutbound,
		Peer:      m.To,
		Kind:      m.Kind(),
		Text:      m.Text,
		Footer:    m.Footer,
	}
	for _, b := range m.Buttons {
		te.Buttons = append(te.Buttons, Choice{ID: b.ID, Title: b.Title})
	}
	if m.List != nil {
		for _, s := range m.List.Sections {
			for _, r := range s.Rows {
				te.List = append(te.List, Choice{ID: r.ID, Title: r.Title})
			}
		}
	}
	return te
}
