package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BookingDraft is a quoted but unreserved booking request. It lives only
// until ExpiresAt and is addressed by an opaque token.
type BookingDraft struct {
	Token       string
	RenterID    string
	BikeID      string
	Quantity    int
	StartDate   time.Time
	EndDate     time.Time
	RateType    RateType
	Hours       int
	BaseRate    decimal.Decimal
	ServiceFee  decimal.Decimal
	TotalAmount decimal.Decimal
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Expired reports whether the draft is no longer usable at now.
func (d *BookingDraft) Expired(now time.Time) bool {
	return !now.Before(d.ExpiresAt)
}
