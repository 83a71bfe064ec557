package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// RenderTranscript renders a trace as plain text, one block per message.
// Inbound events take one line; outbound messages list their text, footer,
// buttons and list rows indented below a header line.
func RenderTranscript(name string, trace []TraceEvent) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", name)
	for _, ev := range trace {
		if ev.Direction == DirInbound {
			content := ev.Text
			if ev.Reply != "" {
				content = ev.Reply
			}
			fmt.Fprintf(&b, "> %s %s: %s\n", ev.Peer, ev.Kind, content)
			continue
		}

		fmt.Fprintf(&b, "< %s %s\n", ev.Peer, ev.Kind)
		writeIndented(&b, ev.Text)
		if ev.Footer != "" {
			writeIndented(&b, "("+ev.Footer+")")
		}
		for _, c := range ev.Buttons {
			fmt.Fprintf(&b, "    [%s] %s\n", c.ID, c.Title)
		}
		for _, c := range ev.List {
			fmt.Fprintf(&b, "    - %s: %s\n", c.ID, c.Title)
		}
	}
	return []byte(b.String())
}

func writeIndented(b *strings.Builder, text string) {
	for _, line := range strings.Split(text, "\n") {
		if line == "" {
			b.WriteString("\n")
			continue
		}
		b.WriteString("    " + line + "\n")
	}
}

// RunWithGolden executes a scenario and compares its transcript against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check Pass.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an existing result's transcript against a golden
// file.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, RenderTranscript(name, result.Trace))
}
