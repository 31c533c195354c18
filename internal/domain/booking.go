package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BookingStatus represents the lifecycle state of a booking.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusActive    BookingStatus = "ACTIVE"
	BookingStatusCompleted BookingStatus = "COMPLETED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

// Valid reports whether s is a known booking status.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusPending, BookingStatusActive, BookingStatusCompleted, BookingStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether moving from s to next is a legal lifecycle step.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	switch s {
	case BookingStatusPending:
		return next == BookingStatusActive || next == BookingStatusCancelled
	case BookingStatusActive:
		return next == BookingStatusCompleted
	}
	return false
}

// Reserving reports whether a booking in this state holds inventory.
func (s BookingStatus) Reserving() bool {
	return s == BookingStatusPending || s == BookingStatusActive
}

// RateType selects the pricing unit of a booking.
type RateType string

const (
	RateHourly RateType = "HOURLY"
	RateDaily  RateType = "DAILY"
)

// Valid reports whether t is a known rate type.
func (t RateType) Valid() bool {
	return t == RateHourly || t == RateDaily
}

// Booking is a reservation of Quantity units of a bike for a time window.
type Booking struct {
	ID               string
	RenterID         string
	BikeID           string
	OwnerID          string // copied from the bike at creation
	Quantity         int
	StartDate        time.Time
	EndDate          time.Time
	RateType         RateType
	Hours            int
	BaseRate         decimal.Decimal
	ServiceFee       decimal.Decimal
	TotalAmount      decimal.Decimal
	Status           BookingStatus
	AcceptedAt       time.Time
	ActualReturnDate time.Time
	IsReportedLost   bool
	ReportedLostAt   time.Time
	CancelledAt      time.Time
	CancelledBy      string
	CancelReason     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Accepted reports whether the owner has accepted the booking.
func (b *Booking) Accepted() bool {
	return !b.AcceptedAt.IsZero()
}

// IsParty reports whether userID is the renter or the owner of the booking.
func (b *Booking) IsParty(userID string) bool {
	return userID == b.RenterID || userID == b.OwnerID
}
