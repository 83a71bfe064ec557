package harness

// Trace directions.
const (
	DirInbound  = "in"
	DirOutbound = "out"
)

// TraceEvent is one chat message seen during a scenario, in either
// direction.
type TraceEvent struct {
	Seq       int      `json:"seq"`
	Direction string   `json:"direction"`
	Peer      string   `json:"peer"`
	Kind      string   `json:"kind"`
	Text      string   `json:"text,omitempty"`
	Footer    string   `json:"footer,omitempty"`
	Reply     string   `json:"reply,omitempty"`
	Buttons   []Choice `json:"buttons,omitempty"`
	List      []Choice `json:"list,omitempty"`
}

// Choice is a rendered button or list row.
type Choice struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace holds inbound and outbound messages in order.
	Trace []TraceEvent `json:"trace"`

	// Errors holds failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) add(ev TraceEvent) {
	ev.Seq = len(r.Trace) + 1
	r.Trace = append(r.Trace, ev)
}

// Outbound returns the messages sent to peer, in order.
func (r *Result) Outbound(peer string) []TraceEvent {
	var out []TraceEvent
	for _, ev := range r.Trace {
		if ev.Direction == DirOutbound && ev.Peer == peer {
			out = append(out, ev)
		}
	}
	return out
}
