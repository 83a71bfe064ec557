package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultCustomer is the sender of flow steps that leave From empty.
const DefaultCustomer = "5493462111111"

// DefaultAdmin is the administrator phone unless the scenario config
// overrides it.
const DefaultAdmin = "5493460000000"

// Scenario defines a conversation test.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config overrides bot settings. Omitted fields keep the defaults.
	Config ConfigOverrides `yaml:"config,omitempty"`

	// Setup seeds state before the flow.
	Setup Setup `yaml:"setup,omitempty"`

	// Flow contains the inbound events, in order.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final state and the outbound messages.
	Assertions []Assertion `yaml:"assertions"`
}

// ConfigOverrides are the bot settings a scenario may change.
type ConfigOverrides struct {
	AdminPhone       *string `yaml:"admin_phone,omitempty"`
	Zone             string  `yaml:"zone,omitempty"`
	EnableMP         *bool   `yaml:"enable_mp,omitempty"`
	EnableCash       *bool   `yaml:"enable_cash,omitempty"`
	TroubleThreshold int     `yaml:"trouble_threshold,omitempty"`

	// PaymentLink is what the fake payment provider returns. Empty means
	// demo mode.
	PaymentLink string `yaml:"payment_link,omitempty"`
}

// Setup seeds customers and orders.
type Setup struct {
	Customers []CustomerSeed `yaml:"customers,omitempty"`
	Orders    []OrderSeed    `yaml:"orders,omitempty"`
}

// CustomerSeed is a customer created before the flow.
type CustomerSeed struct {
	Phone   string `yaml:"phone"`
	Name    string `yaml:"name"`
	Address string `yaml:"address,omitempty"`
	Zone    string `yaml:"zone,omitempty"`
}

// OrderSeed is an order created before the flow. It consumes the next
// order id.
type OrderSeed struct {
	From    string     `yaml:"from"`
	Items   []ItemSeed `yaml:"items"`
	Total   string     `yaml:"total"`
	Address string     `yaml:"address,omitempty"`
}

// ItemSeed is one order line. Label and unit come from the catalog.
type ItemSeed struct {
	ID       string `yaml:"id"`
	Quantity int    `yaml:"quantity"`
}

// FlowStep is one inbound event or a clock advance.
type FlowStep struct {
	// From is the sender. Defaults to DefaultCustomer.
	From string `yaml:"from,omitempty"`

	Text   string `yaml:"text,omitempty"`
	Button string `yaml:"button,omitempty"`
	List   string `yaml:"list,omitempty"`

	// Advance moves the clock by a duration ("6m") and runs one watcher
	// tick.
	Advance string `yaml:"advance,omitempty"`

	// Expect is checked after the step. If nil nothing is checked.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// sender returns the event sender.
func (f FlowStep) sender() string {
	if f.From == "" {
		return DefaultCustomer
	}
	return f.From
}

// ExpectClause checks the replies to one flow step.
type ExpectClause struct {
	// Step is the sender's session step after the event; IDLE when no
	// session exists.
	Step string `yaml:"step,omitempty"`

	// ReplyContains must appear in the last message sent to the sender.
	ReplyContains string `yaml:"reply_contains,omitempty"`

	// Buttons are the reply ids of the last message sent to the sender.
	Buttons []string `yaml:"buttons,omitempty"`

	// Replies is the number of messages sent to the sender by this step.
	Replies *int `yaml:"replies,omitempty"`
}

// Assertion validates final state or outbound messages.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Order is the order id (order_state).
	Order string `yaml:"order,omitempty"`

	// Phone selects a customer, a session or a message recipient.
	Phone string `yaml:"phone,omitempty"`

	// Expect holds expected field values (order_state, customer_state).
	// Subset match.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Step is the expected session step (session_step).
	Step string `yaml:"step,omitempty"`

	// Count is the expected number of messages (sent_count).
	Count int `yaml:"count,omitempty"`

	// Text must appear in some message (sent_contains).
	Text string `yaml:"text,omitempty"`
}

// Assertion type constants.
const (
	AssertOrderState    = "order_state"
	AssertCustomerState = "customer_state"
	AssertSessionStep   = "session_step"
	AssertSentCount     = "sent_count"
	AssertSentContains  = "sent_contains"
)

// StepIdle names the absence of a session in expectations.
const StepIdle = "IDLE"

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for i, c := range s.Setup.Customers {
		if c.Phone == "" {
			return fmt.Errorf("setup.customers[%d]: phone is required", i)
		}
	}
	for i, o := range s.Setup.Orders {
		if o.From == "" {
			return fmt.Errorf("setup.orders[%d]: from is required", i)
		}
		if len(o.Items) == 0 {
			return fmt.Errorf("setup.orders[%d]: items is required", i)
		}
	}

	for i, step := range s.Flow {
		set := 0
		for _, v := range []string{step.Text, step.Button, step.List, step.Advance} {
			if v != "" {
				set++
			}
		}
		if set != 1 {
			return fmt.Errorf("flow[%d]: exactly one of text, button, list or advance is required", i)
		}
		if step.Advance != "" {
			if d, err := time.ParseDuration(step.Advance); err != nil || d <= 0 {
				return fmt.Errorf("flow[%d]: advance must be a positive duration, got %q", i, step.Advance)
			}
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertOrderState:
		if a.Order == "" {
			return fmt.Errorf("assertions[%d]: order is required for order_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for order_state", index)
		}
	case AssertCustomerState:
		if a.Phone == "" {
			return fmt.Errorf("assertions[%d]: phone is required for customer_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for customer_state", index)
		}
	case AssertSessionStep:
		if a.Phone == "" || a.Step == "" {
			return fmt.Errorf("assertions[%d]: phone and step are required for session_step", index)
		}
	case AssertSentCount:
		if a.Phone == "" {
			return fmt.Errorf("assertions[%d]: phone is required for sent_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for sent_count", index)
		}
	case AssertSentContains:
		if a.Phone == "" || a.Text == "" {
			return fmt.Errorf("assertions[%d]: phone and text are required for sent_contains", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
