package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"bikerental/internal/domain"
)

func testBike(quantity int, hourly, daily string) *domain.Bike {
	return &domain.Bike{
		ID:         "bike-1",
		OwnerID:    "owner-1",
		HourlyRate: decimal.RequireFromString(hourly),
		DailyRate:  decimal.RequireFromString(daily),
		Quantity:   quantity,
		Status:     domain.ListingListed,
	}
}

func TestQuote_HourlyRate(t *testing.T) {
	p := DefaultPolicy()
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	start := now.Add(time.Hour)

	q, err := p.Quote(testBike(3, "100", "0"), 2, start, start.Add(3*time.Hour), now, "")
	require.NoError(t, err)
	require.Equal(t, domain.RateHourly, q.RateType)
	require.Equal(t, 3, q.Hours)
	require.True(t, q.BaseRate.Equal(decimal.NewFromInt(600)))
	require.True(t, q.ServiceFee.Equal(decimal.NewFromInt(60)))
	require.True(t, q.TotalAmount.Equal(decimal.NewFromInt(660)))
}

func TestQuote_DailyRateRoundsUpToWholeDays(t *testing.T) {
	p := DefaultPolicy()
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	start := now.Add(time.Hour)

	q, err := p.Quote(testBike(1, "50", "400"), 1, start, start.Add(25*time.Hour), now, domain.RateDaily)
	require.NoError(t, err)
	require.Equal(t, 2, q.Units)
	require.True(t, q.BaseRate.Equal(decimal.NewFromInt(800)))

	_, err = p.Quote(testBike(1, "50", "0"), 1, start, start.Add(25*time.Hour), now, domain.RateDaily)
	require.ErrorIs(t, err, ErrInvalidRateType)
}

func TestQuote_Boundaries(t *testing.T) {
	p := DefaultPolicy()
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	bike := testBike(10, "10", "0")

	tests := []struct {
		name     string
		quantity int
		start    time.Time
		end      time.Time
		wantErr  error
	}{
		{"minimum window", 1, now, now.Add(time.Hour), nil},
		{"one week", 10, now, now.Add(168 * time.Hour), nil},
		{"within start grace", 1, now.Add(-4 * time.Minute), now.Add(time.Hour), nil},
		{"past start grace", 1, now.Add(-6 * time.Minute), now.Add(time.Hour), ErrStartInPast},
		{"eleven units", 11, now, now.Add(time.Hour), ErrInvalidQuantity},
		{"just over a week", 1, now, now.Add(168*time.Hour + time.Minute), ErrInvalidDuration},
		{"empty window", 1, now, now, ErrInvalidDuration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Quote(bike, tt.quantity, tt.start, tt.end, now, domain.RateHourly)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestServiceFee_RoundsHalfAwayFromZero(t *testing.T) {
	p := DefaultPolicy()
	require.True(t, p.ServiceFee(decimal.RequireFromString("12.35")).Equal(decimal.RequireFromString("1.24")))
	require.True(t, p.ServiceFee(decimal.RequireFromString("0.04")).IsZero())
}

func TestLoyaltyPoints(t *testing.T) {
	p := DefaultPolicy()
	require.EqualValues(t, 6, p.LoyaltyPoints(decimal.NewFromInt(660)))
	require.EqualValues(t, 0, p.LoyaltyPoints(decimal.NewFromInt(99)))

	p.PointsUnit = decimal.Zero
	require.EqualValues(t, 0, p.LoyaltyPoints(decimal.NewFromInt(1000)))
}

func TestAvailableUnitsClamped(t *testing.T) {
	require.Equal(t, 0, availableUnits(2, repositoryReservation(3, 0)))
	require.Equal(t, 1, availableUnits(3, repositoryReservation(1, 1)))
	require.Equal(t, 2, availableUnits(2, repositoryReservation(0, 0)))
}
