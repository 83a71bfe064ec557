// Package harness runs conversation scenarios against the order bot.
//
// A scenario seeds customers and orders, plays a flow of inbound chat
// events and checks the bot's replies, the session step after each turn
// and the final state of orders and customers.
//
// # Scenario Format
//
//	name: full_order_cash
//	description: "A known customer orders firewood and pays cash"
//	config:
//	  enable_mp: true
//	  enable_cash: true
//	setup:
//	  customers:
//	    - { phone: "5493462111111", name: Carlos }
//	flow:
//	  - text: "hola"
//	    expect:
//	      step: IDLE
//	      reply_contains: "¿Qué querés hacer?"
//	  - button: make_order
//	  - list: product_lenia_10kg
//	  - advance: 31m
//	assertions:
//	  - type: order_state
//	    order: PAM-1
//	    expect: { status: PENDING, total: "18000" }
//	  - type: sent_count
//	    phone: "5493460000000"
//	    count: 1
//
// A flow step carries exactly one of text, button, list or advance.
// advance moves the clock and runs one session watcher tick.
//
// # Assertion Types
//
//   - order_state: compares fields of a stored order
//   - customer_state: compares fields of a stored customer
//   - session_step: checks the customer's current step (IDLE when none)
//   - sent_count: counts messages sent to a phone
//   - sent_contains: a message sent to a phone contains the text
//
// # Deterministic Testing
//
// Every scenario runs against a fresh in-memory SQLite database, a fake
// clock starting at testutil.Epoch and fixed order ids PAM-1, PAM-2, ...
// so transcripts compare byte for byte with golden files.
package harness
