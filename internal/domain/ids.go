package domain

import (
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/pamperito/internal/clock"
)

// OrderIDPrefix prefixes every generated order id.
const OrderIDPrefix = "PAM-"

// IDGenerator produces unique order ids.
// Implemented by TimestampIDs (production) and FixedIDs (tests).
type IDGenerator interface {
	Generate() string
}

// TimestampIDs generates "PAM-<unix millis>" ids.
//
// Ids are strictly increasing within the process: when two orders land in
// the same millisecond the second one takes the next free millisecond.
type TimestampIDs struct {
	Clock clock.Clock

	mu   sync.Mutex
	last int64
}

// Generate returns the next order id.
func (g *TimestampIDs) Generate() string {
	c := g.Clock
	if c == nil {
		c = clock.System{}
	}
	ms := c.Now().UnixMilli()

	g.mu.Lock()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	g.mu.Unlock()

	return OrderIDPrefix + strconv.FormatInt(ms, 10)
}

// FixedIDs returns predetermined ids in order.
//
// Panics if all ids have been consumed, which flags a test that created
// more orders than it expected.
type FixedIDs struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedIDs creates a generator that returns ids in order.
func NewFixedIDs(ids ...string) *FixedIDs {
	return &FixedIDs{ids: ids}
}

// Generate returns the next predetermined id.
func (g *FixedIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedIDs: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}

// NewCorrelationID returns a time-sortable UUIDv7 used to correlate log
// lines of one conversation or one inbound event.
func NewCorrelationID() string {
	return uuid.Must(uuid.NewV7()).String()
}
