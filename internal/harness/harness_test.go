package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(strings.TrimSuffix(filepath.Base(path), ".yaml"), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "scenario failed:\n%s", strings.Join(result.Errors, "\n"))
		})
	}
}

func TestGreetingTranscriptGolden(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/greeting_name_capture.yaml")
	require.NoError(t, err)

	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, strings.Join(result.Errors, "\n"))
}

func TestRun_ExpectMismatchReported(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: wrong_step
description: "expects the wrong step"
flow:
  - text: "hola"
    expect:
      step: CART_IDLE
      reply_contains: "no such text"
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "flow[0]: step: expected CART_IDLE, got ASK_NAME")
	assert.Contains(t, result.Errors[1], "no such text")
}

func TestRun_AssertionFailureReported(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: missing_order
description: "asserts an order nobody created"
flow:
  - text: "hola"
assertions:
  - type: order_state
    order: PAM-1
    expect: { status: PENDING }
  - type: sent_count
    phone: "5493462111111"
    count: 5
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "order not found")
	assert.Contains(t, result.Errors[1], "5 messages to 5493462111111")
}

func TestRun_SetupUnknownProduct(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: bad_setup
description: "seeds an order for a product not in the catalog"
setup:
  orders:
    - from: "5493462111111"
      items:
        - { id: no_such_product, quantity: 1 }
flow:
  - text: "hola"
`))
	require.NoError(t, err)

	_, err = Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown product "no_such_product"`)
}

func TestRun_TraceRecordsBothDirections(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: trace
description: "one greeting"
flow:
  - text: "hola"
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.Len(t, result.Trace, 2)
	assert.Equal(t, TraceEvent{Seq: 1, Direction: DirInbound, Peer: DefaultCustomer, Kind: "text", Text: "hola"}, result.Trace[0])
	assert.Equal(t, DirOutbound, result.Trace[1].Direction)
	assert.Equal(t, 2, result.Trace[1].Seq)
}

func TestRenderTranscript(t *testing.T) {
	trace := []TraceEvent{
		{Seq: 1, Direction: DirInbound, Peer: "1", Kind: "list", Reply: "product_x"},
		{Seq: 2, Direction: DirOutbound, Peer: "1", Kind: "list", Text: "a\n\nb", Footer: "f",
			List: []Choice{{ID: "product_x", Title: "X"}}},
	}

	got := string(RenderTranscript("demo", trace))

	assert.Equal(t, "# demo\n"+
		"> 1 list: product_x\n"+
		"< 1 list\n"+
		"    a\n"+
		"\n"+
		"    b\n"+
		"    (f)\n"+
		"    - product_x: X\n", got)
}
