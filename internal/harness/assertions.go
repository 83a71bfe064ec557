package harness

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/roach88/pamperito/internal/domain"
	"github.com/roach88/pamperito/internal/session"
	"github.com/roach88/pamperito/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes the transcript to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full transcript for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nTranscript:\n")
		for _, ev := range e.Trace {
			arrow := "<"
			if ev.Direction == DirInbound {
				arrow = ">"
			}
			fmt.Fprintf(&buf, "  [%d] %s %s %s\n", ev.Seq, arrow, ev.Peer, firstLine(ev.Text+ev.Reply))
		}
	}
	return buf.String()
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

// AssertionContext provides state access for assertions.
type AssertionContext struct {
	Ctx      context.Context
	Store    *store.Store
	Sessions session.Store
}

// EvaluateAssertions runs every assertion and returns failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertOrderState:
		return assertOrderState(actx, a)
	case AssertCustomerState:
		return assertCustomerState(actx, a)
	case AssertSessionStep:
		if got := currentStep(actx.Sessions, a.Phone); got != a.Step {
			return &AssertionError{Type: a.Type, Expected: a.Step, Actual: got, Trace: result.Trace}
		}
		return nil
	case AssertSentCount:
		if got := len(result.Outbound(a.Phone)); got != a.Count {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%d messages to %s", a.Count, a.Phone),
				Actual:   strconv.Itoa(got),
				Trace:    result.Trace,
			}
		}
		return nil
	case AssertSentContains:
		for _, ev := range result.Outbound(a.Phone) {
			if containsText(ev.Text, a.Text) {
				return nil
			}
		}
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("a message to %s containing %q", a.Phone, a.Text),
			Actual:   "not found",
			Trace:    result.Trace,
		}
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

func assertOrderState(actx *AssertionContext, a Assertion) error {
	o, err := actx.Store.GetOrder(actx.Ctx, a.Order)
	if errors.Is(err, domain.ErrOrderNotFound) {
		if exists, ok := a.Expect["exists"]; ok && fmt.Sprint(exists) == "false" {
			return nil
		}
	}
	if err != nil {
		return &AssertionError{Type: a.Type, Expected: "order " + a.Order, Actual: err.Error()}
	}
	return compareFields(a.Type, orderFields(o), a.Expect)
}

func orderFields(o *domain.Order) map[string]string {
	f := map[string]string{
		"exists":          "true",
		"from":            o.From,
		"status":          string(o.Status),
		"delivery_status": string(o.DeliveryStatus),
		"total":           o.Total.String(),
		"items":           strconv.Itoa(len(o.Parsed.Items)),
		"address":         o.Parsed.Address,
		"zone":            o.Parsed.Zone,
		"paid":            strconv.FormatBool(o.PaidAt != nil),
		"delivered":       strconv.FormatBool(o.DeliveredAt != nil),
	}
	if d := o.Parsed.Delivery; d != nil {
		f["day"] = d.DayKey
		f["slot"] = d.SlotKey
	}
	for k, v := range o.Meta {
		f["meta."+k] = fmt.Sprint(v)
	}
	return f
}

func assertCustomerState(actx *AssertionContext, a Assertion) error {
	c, err := actx.Store.GetCustomer(actx.Ctx, a.Phone)
	if errors.Is(err, domain.ErrCustomerNotFound) {
		if exists, ok := a.Expect["exists"]; ok && fmt.Sprint(exists) == "false" {
			return nil
		}
	}
	if err != nil {
		return &AssertionError{Type: a.Type, Expected: "customer " + a.Phone, Actual: err.Error()}
	}
	return compareFields(a.Type, map[string]string{
		"exists":  "true",
		"name":    c.Name,
		"address": c.Address,
		"zone":    c.Zone,
	}, a.Expect)
}

// compareFields checks expected values against actual string fields.
// Totals compare as decimals so "18000" matches "18000.00".
func compareFields(kind string, actual map[string]string, expect map[string]any) error {
	keys := make([]string, 0, len(expect))
	for k := range expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var mismatches []string
	for _, k := range keys {
		want := fmt.Sprint(expect[k])
		got, ok := actual[k]
		switch {
		case !ok:
			mismatches = append(mismatches, fmt.Sprintf("%s: missing (want %q)", k, want))
		case k == "total":
			if !decimalEqual(got, want) {
				mismatches = append(mismatches, fmt.Sprintf("%s: got %s, want %s", k, got, want))
			}
		case got != want:
			mismatches = append(mismatches, fmt.Sprintf("%s: got %q, want %q", k, got, want))
		}
	}
	if len(mismatches) > 0 {
		return &AssertionError{Type: kind, Expected: "matching fields", Actual: strings.Join(mismatches, "; ")}
	}
	return nil
}

func decimalEqual(a, b string) bool {
	da, err := decimal.NewFromString(a)
	if err != nil {
		return false
	}
	db, err := decimal.NewFromString(b)
	if err != nil {
		return false
	}
	return da.Equal(db)
}

func containsText(haystack, needle string) bool {
	return strings.Contains(haystack, needle)
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
