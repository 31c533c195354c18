package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a wallet ledger entry.
type TransactionType string

const (
	TxLoad             TransactionType = "LOAD"
	TxDebit            TransactionType = "DEBIT"
	TxRentalPayment    TransactionType = "RENTAL_PAYMENT"
	TxRefund           TransactionType = "REFUND"
	TxEscrowHold       TransactionType = "ESCROW_HOLD"
	TxEscrowRelease    TransactionType = "ESCROW_RELEASE"
	TxRentalEarning    TransactionType = "RENTAL_EARNING"
	TxDamagePayment    TransactionType = "DAMAGE_PAYMENT"
	TxDamageSettlement TransactionType = "DAMAGE_SETTLEMENT"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TxLoad, TxDebit, TxRentalPayment, TxRefund, TxEscrowHold, TxEscrowRelease,
		TxRentalEarning, TxDamagePayment, TxDamageSettlement:
		return true
	}
	return false
}

// Wallet holds a user's money balance. Balance only changes through
// CreditTransaction appends.
type Wallet struct {
	ID        string
	UserID    string
	Balance   decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreditTransaction is an immutable wallet ledger entry. Amount is signed.
type CreditTransaction struct {
	ID            string
	WalletID      string
	UserID        string
	Amount        decimal.Decimal
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	Type          TransactionType
	ReferenceID   string
	CreatedAt     time.Time
}

// PointsReason classifies a loyalty points entry.
type PointsReason string

const (
	PointsRentalCompleted PointsReason = "RENTAL_COMPLETED"
	PointsRedemption      PointsReason = "REDEMPTION"
	PointsAdjustment      PointsReason = "ADJUSTMENT"
)

// Valid reports whether r is a known points reason.
func (r PointsReason) Valid() bool {
	switch r {
	case PointsRentalCompleted, PointsRedemption, PointsAdjustment:
		return true
	}
	return false
}

// Points is a user's loyalty balance.
type Points struct {
	ID        string
	UserID    string
	Balance   int64
	UpdatedAt time.Time
}

// PointsHistory is an immutable points ledger entry. Amount is signed.
type PointsHistory struct {
	ID            string
	PointsID      string
	UserID        string
	Amount        int64
	BalanceBefore int64
	BalanceAfter  int64
	Reason        PointsReason
	ReferenceID   string
	CreatedAt     time.Time
}
