// Package gateway talks to the external card and e-wallet payment provider.
package gateway

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"bikerental/internal/domain"
)

// IntentStatus is the provider-side state of a payment intent.
type IntentStatus string

const (
	StatusSucceeded             IntentStatus = "succeeded"
	StatusAwaitingNextAction    IntentStatus = "awaiting_next_action"
	StatusAwaitingPaymentMethod IntentStatus = "awaiting_payment_method"
	StatusProcessing            IntentStatus = "processing"
	StatusPaymentFailed         IntentStatus = "payment_failed"
	StatusUnknown               IntentStatus = "unknown"
)

// Terminal reports whether the status will not change any more.
func (s IntentStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusPaymentFailed
}

// ParseStatus maps a provider status string to an IntentStatus. Anything
// unrecognized is StatusUnknown.
func ParseStatus(s string) IntentStatus {
	switch st := IntentStatus(s); st {
	case StatusSucceeded, StatusAwaitingNextAction, StatusAwaitingPaymentMethod, StatusProcessing, StatusPaymentFailed:
		return st
	}
	return StatusUnknown
}

// Intent is a freshly created payment intent.
type Intent struct {
	ID        string
	ClientKey string
	Status    IntentStatus
}

// Result is the typed outcome of an attach or status call.
type Result struct {
	Success         bool
	Status          IntentStatus
	PaymentMethodID string
	RedirectURL     string
	ErrorMessage    string
}

// IntentRequest describes the intent to create.
type IntentRequest struct {
	Amount      decimal.Decimal
	Currency    string
	Description string
	Method      domain.PaymentMethod
}

// AttachRequest binds a payment method to an intent. PaymentMethodID is
// required for cards, which are tokenized client-side; e-wallet methods are
// created on the fly when it is empty.
type AttachRequest struct {
	IntentID        string
	Method          domain.PaymentMethod
	PaymentMethodID string
	ReturnURL       string
}

// Client is the payment provider contract consumed by the payment service.
type Client interface {
	CreatePaymentIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	AttachPaymentMethod(ctx context.Context, req AttachRequest) (*Result, error)
	GetIntentStatus(ctx context.Context, intentID string) (*Result, error)
}

var (
	// ErrUnsupportedMethod is returned for methods the provider does not settle.
	ErrUnsupportedMethod = errors.New("payment method not supported by gateway")

	// ErrCardTokenRequired is returned when attaching a card without a tokenized method id.
	ErrCardTokenRequired = errors.New("card payments require a payment method id")

	// ErrIntentNotFound is returned when the provider does not know an intent.
	ErrIntentNotFound = errors.New("payment intent not found")
)

// providerType maps a payment method to the provider's method type.
func providerType(m domain.PaymentMethod) (string, error) {
	switch m {
	case domain.PaymentMethodCard:
		return "card", nil
	case domain.PaymentMethodGCash:
		return "gcash", nil
	case domain.PaymentMethodPayMaya:
		return "paymaya", nil
	case domain.PaymentMethodGrabPay:
		return "grab_pay", nil
	}
	return "", ErrUnsupportedMethod
}

// minorUnits converts an amount to the provider's integer minor units.
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

var (
	_ Client = (*HTTPClient)(nil)
	_ Client = (*Sandbox)(nil)
)
