// Package session holds per-customer conversation state.
//
// A conversation is a Session whose State is one of the step variants
// below. Each variant carries only the fields its step needs, so a session
// waiting for a delivery slot cannot also hold a half-typed name.
//
// Sessions live in memory and are lost on restart.
package session

import (
	"github.com/shopspring/decimal"

	"github.com/roach88/pamperito/internal/domain"
)

// Step names a conversation step.
type Step string

const (
	StepAskName          Step = "ASK_NAME"
	StepConfirmName      Step = "CONFIRM_NAME"
	StepCartIdle         Step = "CART_IDLE"
	StepAskQuantity      Step = "ASK_QTY_PRODUCT"
	StepAskMore          Step = "ASK_MORE"
	StepAskAddress       Step = "ASK_ADDRESS"
	StepConfirmAddress   Step = "CONFIRM_ADDRESS"
	StepAskDeliveryDay   Step = "ASK_DELIVERY_DAY"
	StepAskDeliverySlot  Step = "ASK_DELIVERY_SLOT"
	StepAskPaymentMethod Step = "ASK_PAYMENT_METHOD"
)

// State is the tagged union of conversation steps.
type State interface {
	Step() Step
}

// Draft is a cart snapshot with its computed total, carried from the end
// of cart building until the order is persisted.
type Draft struct {
	Parsed domain.Parsed
	Total  decimal.Decimal
}

// Choice is a key with its customer-facing label (delivery day or slot).
type Choice struct {
	Key   string
	Label string
}

type AskName struct{}

type ConfirmName struct {
	Name string
}

type CartIdle struct {
	Cart []domain.CartItem
}

type AskQuantity struct {
	Cart      []domain.CartItem
	ProductID string
}

type AskMore struct {
	Cart []domain.CartItem
}

type AskAddress struct {
	Draft Draft
}

type ConfirmAddress struct {
	Draft   Draft
	Address string
}

type AskDeliveryDay struct {
	Draft Draft
}

type AskDeliverySlot struct {
	Draft Draft
	Day   Choice
}

// AskPaymentMethod references the order just created and waiting for the
// customer to pick how to pay.
type AskPaymentMethod struct {
	OrderID string
	Total   decimal.Decimal
	Parsed  domain.Parsed
}

func (AskName) Step() Step          { return StepAskName }
func (ConfirmName) Step() Step      { return StepConfirmName }
func (CartIdle) Step() Step         { return StepCartIdle }
func (AskQuantity) Step() Step      { return StepAskQuantity }
func (AskMore) Step() Step          { return StepAskMore }
func (AskAddress) Step() Step       { return StepAskAddress }
func (ConfirmAddress) Step() Step   { return StepConfirmAddress }
func (AskDeliveryDay) Step() Step   { return StepAskDeliveryDay }
func (AskDeliverySlot) Step() Step  { return StepAskDeliverySlot }
func (AskPaymentMethod) Step() Step { return StepAskPaymentMethod }
