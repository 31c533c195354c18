package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Receipt summarizes the financial outcome of a booking.
type Receipt struct {
	BookingID        string
	RenterID         string
	OwnerID          string
	BikeID           string
	BikeName         string
	Quantity         int
	RateType         RateType
	Hours            int
	BaseRate         decimal.Decimal
	ServiceFee       decimal.Decimal
	TotalAmount      decimal.Decimal
	AmountPaid       decimal.Decimal
	AmountRefunded   decimal.Decimal
	DamageCharges    decimal.Decimal
	Payments         []Payment
	Damages          []BikeDamage
	Status           BookingStatus
	StartDate        time.Time
	EndDate          time.Time
	ActualReturnDate time.Time
	GeneratedAt      time.Time
}
