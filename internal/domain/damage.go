package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DamageStatus represents the settlement state of a damage claim.
type DamageStatus string

const (
	DamageStatusPending  DamageStatus = "PENDING"
	DamageStatusPaid     DamageStatus = "PAID"
	DamageStatusDisputed DamageStatus = "DISPUTED"
	DamageStatusWaived   DamageStatus = "WAIVED"
)

// Valid reports whether s is a known damage status.
func (s DamageStatus) Valid() bool {
	switch s {
	case DamageStatusPending, DamageStatusPaid, DamageStatusDisputed, DamageStatusWaived:
		return true
	}
	return false
}

// CanTransitionTo reports whether moving from s to next is allowed.
// Only DISPUTED may be resolved; PAID and WAIVED are terminal.
func (s DamageStatus) CanTransitionTo(next DamageStatus) bool {
	switch s {
	case DamageStatusPending:
		return next == DamageStatusPaid || next == DamageStatusDisputed || next == DamageStatusWaived
	case DamageStatusDisputed:
		return next == DamageStatusPaid || next == DamageStatusWaived
	}
	return false
}

// BikeDamage is an owner-reported charge against the renter of a completed booking.
type BikeDamage struct {
	ID             string
	BookingID      string
	BikeID         string
	OwnerID        string
	RenterID       string
	Cost           decimal.Decimal
	Description    string
	PhotoURLs      []string
	Status         DamageStatus
	PaymentMethod  PaymentMethod
	DisputeReason  string
	ResolutionNote string
	ResolvedBy     string
	PaidAt         time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
