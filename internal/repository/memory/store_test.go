package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"bikerental/internal/domain"
	"bikerental/internal/repository"
)

func seedBike(t *testing.T, s *Store, quantity int) *domain.Bike {
	t.Helper()
	bike := &domain.Bike{
		ID:         "bike-1",
		OwnerID:    "owner-1",
		Name:       "City cruiser",
		HourlyRate: decimal.NewFromInt(50),
		Quantity:   quantity,
		Status:     domain.ListingListed,
	}
	require.NoError(t, s.Repos().Bikes.Create(context.Background(), bike))
	return bike
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	t.Parallel()

	s := NewStore()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		w, err := repos.Wallets.GetOrCreateForUpdate(ctx, "user-1")
		require.NoError(t, err)
		w.Balance = decimal.NewFromInt(100)
		require.NoError(t, repos.Wallets.UpdateBalance(ctx, w))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.Repos().Wallets.GetByUserID(ctx, "user-1")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestWithinTx_CommitsOnSuccess(t *testing.T) {
	t.Parallel()

	s := NewStore()
	ctx := context.Background()

	err := s.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		w, err := repos.Wallets.GetOrCreateForUpdate(ctx, "user-1")
		if err != nil {
			return err
		}
		w.Balance = decimal.NewFromInt(40)
		if err := repos.Wallets.UpdateBalance(ctx, w); err != nil {
			return err
		}
		return repos.Wallets.AppendTransaction(ctx, &domain.CreditTransaction{
			ID:            "tx-1",
			WalletID:      w.ID,
			UserID:        "user-1",
			Amount:        decimal.NewFromInt(40),
			BalanceBefore: decimal.Zero,
			BalanceAfter:  decimal.NewFromInt(40),
			Type:          domain.TxLoad,
			ReferenceID:   "pay-1",
		})
	})
	require.NoError(t, err)

	w, err := s.Repos().Wallets.GetByUserID(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, w.Balance.Equal(decimal.NewFromInt(40)))

	txs, err := s.Repos().Wallets.ListTransactions(ctx, w.ID, 0)
	require.NoError(t, err)
	require.Len(t, txs, 1)
}

func TestWithinTx_CancelledContext(t *testing.T) {
	t.Parallel()

	s := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, called)
}

func TestWallet_RejectsNegativeBalanceAndDuplicateReference(t *testing.T) {
	t.Parallel()

	s := NewStore()
	ctx := context.Background()
	repos := s.Repos()

	w, err := repos.Wallets.GetOrCreateForUpdate(ctx, "user-1")
	require.NoError(t, err)

	w.Balance = decimal.NewFromInt(-1)
	require.ErrorIs(t, repos.Wallets.UpdateBalance(ctx, w), repository.ErrConstraint)

	entry := &domain.CreditTransaction{
		ID:            "tx-1",
		WalletID:      w.ID,
		Amount:        decimal.NewFromInt(10),
		BalanceBefore: decimal.Zero,
		BalanceAfter:  decimal.NewFromInt(10),
		Type:          domain.TxLoad,
		ReferenceID:   "ref-1",
	}
	require.NoError(t, repos.Wallets.AppendTransaction(ctx, entry))
	require.ErrorIs(t, repos.Wallets.AppendTransaction(ctx, entry), repository.ErrConstraint)

	found, err := repos.Wallets.FindTransaction(ctx, w.ID, domain.TxLoad, "ref-1")
	require.NoError(t, err)
	require.NotNil(t, found)

	missing, err := repos.Wallets.FindTransaction(ctx, w.ID, domain.TxRefund, "ref-1")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestBookings_ReservationFor(t *testing.T) {
	t.Parallel()

	s := NewStore()
	ctx := context.Background()
	bike := seedBike(t, s, 5)
	now := time.Now()

	add := func(id string, qty int, status domain.BookingStatus, lost bool) {
		require.NoError(t, s.Repos().Bookings.Create(ctx, &domain.Booking{
			ID:             id,
			RenterID:       "renter-1",
			BikeID:         bike.ID,
			OwnerID:        bike.OwnerID,
			Quantity:       qty,
			StartDate:      now,
			EndDate:        now.Add(time.Hour),
			Status:         status,
			IsReportedLost: lost,
		}))
	}
	add("b-pending", 1, domain.BookingStatusPending, false)
	add("b-active", 2, domain.BookingStatusActive, false)
	add("b-done", 3, domain.BookingStatusCompleted, false)
	add("b-cancelled", 1, domain.BookingStatusCancelled, false)
	add("b-lost", 1, domain.BookingStatusActive, true)

	res, err := s.Repos().Bookings.ReservationFor(ctx, bike.ID)
	require.NoError(t, err)
	require.Equal(t, 3, res.Reserved)
	require.Equal(t, 1, res.Lost)

	ok, err := s.Repos().Bookings.HasCompletedBooking(ctx, "renter-1")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestPayments_SingleCompletedPerTarget(t *testing.T) {
	t.Parallel()

	s := NewStore()
	ctx := context.Background()
	repos := s.Repos()

	first := &domain.Payment{
		ID:         "pay-1",
		TargetType: domain.PaymentTargetBooking,
		TargetID:   "booking-1",
		Status:     domain.PaymentStatusCompleted,
		Amount:     decimal.NewFromInt(55),
	}
	require.NoError(t, repos.Payments.Create(ctx, first))

	second := *first
	second.ID = "pay-2"
	require.ErrorIs(t, repos.Payments.Create(ctx, &second), repository.ErrConstraint)

	second.Status = domain.PaymentStatusPending
	require.NoError(t, repos.Payments.Create(ctx, &second))

	list, err := repos.Payments.ListByTarget(ctx, domain.PaymentTargetBooking, "booking-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "pay-1", list[0].ID)
}

func TestSoftDeletedBikeIsInvisible(t *testing.T) {
	t.Parallel()

	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.Repos().Bikes.Create(ctx, &domain.Bike{ID: "gone", Quantity: 1, IsDeleted: true}))

	_, err := s.Repos().Bikes.GetByID(ctx, "gone")
	require.ErrorIs(t, err, repository.ErrNotFound)
}
