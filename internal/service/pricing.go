package service

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"bikerental/internal/domain"
)

// Policy holds the rental business rules.
type Policy struct {
	ServiceFeeRate decimal.Decimal // fraction of the base rate charged as platform fee
	MinQuantity    int
	MaxQuantity    int
	MinHours       int
	MaxHours       int
	StartGrace     time.Duration // tolerated clock skew for "start is not in the past"

	DraftTTL time.Duration

	// PointsUnit is the base-rate amount that earns one loyalty point.
	PointsUnit decimal.Decimal

	// EscrowUserID owns the platform wallet that holds rental payments
	// between confirmation and return.
	EscrowUserID string

	BikeLockTTL        time.Duration
	BikeLockRetries    int
	BikeLockRetryDelay time.Duration

	Currency  string
	ReturnURL string // where the gateway sends the payer after authorization
}

// DefaultPolicy returns the default rental policy.
func DefaultPolicy() Policy {
	return Policy{
		ServiceFeeRate:     decimal.RequireFromString("0.10"),
		MinQuantity:        1,
		MaxQuantity:        10,
		MinHours:           1,
		MaxHours:           168, // one week
		StartGrace:         5 * time.Minute,
		DraftTTL:           30 * time.Minute,
		PointsUnit:         decimal.NewFromInt(100),
		EscrowUserID:       "platform-escrow",
		BikeLockTTL:        5 * time.Second,
		BikeLockRetries:    3,
		BikeLockRetryDelay: 50 * time.Millisecond,
		Currency:           "PHP",
		ReturnURL:          "http://localhost:8080/v1/payments/return",
	}
}

// Quote is the price of a prospective booking.
type Quote struct {
	Hours       int
	Units       int // billable hours or days, per RateType
	RateType    domain.RateType
	BaseRate    decimal.Decimal
	ServiceFee  decimal.Decimal
	TotalAmount decimal.Decimal
}

// RentalHours returns the billable hours of a window, rounding partial hours up.
func RentalHours(start, end time.Time) int {
	return int(math.Ceil(end.Sub(start).Hours()))
}

// Quote validates a booking request against the bike and prices it.
func (p Policy) Quote(bike *domain.Bike, quantity int, start, end, now time.Time, rateType domain.RateType) (Quote, error) {
	if quantity < p.MinQuantity || quantity > p.MaxQuantity || quantity > bike.Quantity {
		return Quote{}, ErrInvalidQuantity
	}

	if !end.After(start) {
		return Quote{}, ErrInvalidDuration
	}
	if start.Before(now.Add(-p.StartGrace)) {
		return Quote{}, ErrStartInPast
	}

	hours := RentalHours(start, end)
	if hours < p.MinHours || hours > p.MaxHours {
		return Quote{}, ErrInvalidDuration
	}

	if rateType == "" {
		rateType = domain.RateHourly
	}

	var rate decimal.Decimal
	var units int
	switch rateType {
	case domain.RateHourly:
		rate, units = bike.HourlyRate, hours
	case domain.RateDaily:
		if !bike.DailyRate.IsPositive() {
			return Quote{}, ErrInvalidRateType
		}
		rate, units = bike.DailyRate, (hours+23)/24
	default:
		return Quote{}, ErrInvalidRateType
	}

	base := rate.Mul(decimal.NewFromInt(int64(units))).Mul(decimal.NewFromInt(int64(quantity))).Round(2)
	fee := p.ServiceFee(base)

	return Quote{
		Hours:       hours,
		Units:       units,
		RateType:    rateType,
		BaseRate:    base,
		ServiceFee:  fee,
		TotalAmount: base.Add(fee),
	}, nil
}

// ServiceFee returns the platform fee for a base rate, rounded to cents.
func (p Policy) ServiceFee(base decimal.Decimal) decimal.Decimal {
	return base.Mul(p.ServiceFeeRate).Round(2)
}

// LoyaltyPoints returns the points earned by a completed booking.
func (p Policy) LoyaltyPoints(base decimal.Decimal) int64 {
	if !p.PointsUnit.IsPositive() {
		return 0
	}
	return base.Div(p.PointsUnit).IntPart()
}
