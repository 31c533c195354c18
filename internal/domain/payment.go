package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus represents the current status of a payment.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
)

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed,
		PaymentStatusRefunded, PaymentStatusCancelled:
		return true
	}
	return false
}

// Supersedable reports whether a payment in this state is cancelled when the
// payer starts a new attempt for the same target.
func (s PaymentStatus) Supersedable() bool {
	return s == PaymentStatusPending || s == PaymentStatusFailed
}

// PaymentMethod represents how a payment is settled.
type PaymentMethod string

const (
	PaymentMethodWallet  PaymentMethod = "WALLET"
	PaymentMethodCash    PaymentMethod = "CASH"
	PaymentMethodCard    PaymentMethod = "CARD"
	PaymentMethodGCash   PaymentMethod = "GCASH"
	PaymentMethodPayMaya PaymentMethod = "PAYMAYA"
	PaymentMethodGrabPay PaymentMethod = "GRAB_PAY"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodWallet, PaymentMethodCash:
		return true
	}
	return m.IsGateway()
}

// IsGateway reports whether the method settles through the external gateway.
func (m PaymentMethod) IsGateway() bool {
	switch m {
	case PaymentMethodCard, PaymentMethodGCash, PaymentMethodPayMaya, PaymentMethodGrabPay:
		return true
	}
	return false
}

// PaymentTarget names the kind of entity a payment settles.
type PaymentTarget string

const (
	PaymentTargetBooking     PaymentTarget = "BOOKING"
	PaymentTargetDamage      PaymentTarget = "DAMAGE"
	PaymentTargetWalletTopUp PaymentTarget = "WALLET_TOPUP"
)

// Valid reports whether t is a known payment target.
func (t PaymentTarget) Valid() bool {
	switch t {
	case PaymentTargetBooking, PaymentTargetDamage, PaymentTargetWalletTopUp:
		return true
	}
	return false
}

// Payment is one settlement attempt against a booking, a damage record or a
// wallet top-up. A target may have many attempts but at most one COMPLETED.
type Payment struct {
	ID                   string
	TargetType           PaymentTarget
	TargetID             string
	PayerID              string
	Method               PaymentMethod
	Amount               decimal.Decimal
	Status               PaymentStatus
	TransactionReference string // gateway payment-intent id
	FailureReason        string
	RefundAmount         decimal.Decimal
	RefundedAt           time.Time
	CompletedAt          time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}
