package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bikerental/internal/domain"
	"bikerental/internal/redis"
	"bikerental/internal/repository"
)

// BookingService runs the booking state machine.
type BookingService struct {
	store     repository.Store
	locker    redis.LockStoreInterface
	liveIndex redis.LocationStoreInterface
	notifier  *NotificationService
	policy    Policy
	logger    *zap.Logger
	clock     func() time.Time
}

// NewBookingService creates a new BookingService. locker and liveIndex may be
// nil; the row lock taken in the booking transaction is authoritative.
func NewBookingService(
	store repository.Store,
	locker redis.LockStoreInterface,
	liveIndex redis.LocationStoreInterface,
	notifier *NotificationService,
	policy Policy,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		store:     store,
		locker:    locker,
		liveIndex: liveIndex,
		notifier:  notifier,
		policy:    policy,
		logger:    logger,
		clock:     time.Now,
	}
}

// WithClock replaces the time source.
func (s *BookingService) WithClock(clock func() time.Time) *BookingService {
	s.clock = clock
	return s
}

// CreateBookingRequest contains the parameters for creating a booking.
type CreateBookingRequest struct {
	BikeID    string
	Quantity  int
	StartDate time.Time
	EndDate   time.Time
	RateType  domain.RateType
}

// CreateBooking places a PENDING booking. The availability check and the
// insert run in one transaction holding the bike row lock, so concurrent
// requests for the last unit cannot both succeed.
func (s *BookingService) CreateBooking(ctx context.Context, actor domain.Actor, req CreateBookingRequest) (*domain.Booking, error) {
	if req.BikeID == "" {
		return nil, ErrBikeNotFound
	}

	release, err := s.lockBike(ctx, req.BikeID)
	if err != nil {
		return nil, err
	}
	defer release()

	var booking *domain.Booking
	err = s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		now := s.clock()

		renter, bike, err := s.loadBookingParties(ctx, repos, actor.UserID, req.BikeID)
		if err != nil {
			return err
		}

		quote, err := s.policy.Quote(bike, req.Quantity, req.StartDate, req.EndDate, now, req.RateType)
		if err != nil {
			return err
		}

		if err := requirePhoneForFirstBooking(ctx, repos, renter); err != nil {
			return err
		}

		avail, err := describe(ctx, repos, bike)
		if err != nil {
			return err
		}
		if avail.Available < req.Quantity {
			return fmt.Errorf("%w: requested %d, available %d", ErrInsufficientInventory, req.Quantity, avail.Available)
		}

		booking = &domain.Booking{
			ID:          uuid.New().String(),
			RenterID:    renter.ID,
			BikeID:      bike.ID,
			OwnerID:     bike.OwnerID,
			Quantity:    req.Quantity,
			StartDate:   req.StartDate,
			EndDate:     req.EndDate,
			RateType:    quote.RateType,
			Hours:       quote.Hours,
			BaseRate:    quote.BaseRate,
			ServiceFee:  quote.ServiceFee,
			TotalAmount: quote.TotalAmount,
			Status:      domain.BookingStatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return repos.Bookings.Create(ctx, booking)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking created",
		zap.String("booking_id", booking.ID),
		zap.String("bike_id", booking.BikeID),
		zap.Int("quantity", booking.Quantity),
		zap.String("total", booking.TotalAmount.StringFixed(2)),
	)
	s.notifier.NotifyBookingCreated(ctx, booking)

	return booking, nil
}

// loadBookingParties loads and checks the renter and the locked bike.
func (s *BookingService) loadBookingParties(ctx context.Context, repos repository.Repositories, renterID, bikeID string) (*domain.User, *domain.Bike, error) {
	renter, err := repos.Users.GetByID(ctx, renterID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrUserNotFound
		}
		return nil, nil, err
	}
	if renter.IsSuspended {
		return nil, nil, ErrRenterSuspended
	}

	bike, err := repos.Bikes.GetForUpdate(ctx, bikeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrBikeNotFound
		}
		return nil, nil, err
	}
	if bike.OwnerID == renter.ID {
		return nil, nil, ErrOwnBike
	}
	if !bike.Bookable() {
		return nil, nil, ErrBikeNotBookable
	}

	return renter, bike, nil
}

// requirePhoneForFirstBooking defers renters without a completed booking
// until their phone is verified.
func requirePhoneForFirstBooking(ctx context.Context, repos repository.Repositories, renter *domain.User) error {
	if renter.PhoneVerified {
		return nil
	}
	returning, err := repos.Bookings.HasCompletedBooking(ctx, renter.ID)
	if err != nil {
		return err
	}
	if !returning {
		return ErrPhoneVerificationRequired
	}
	return nil
}

// lockBike takes the cross-instance bike lock with bounded retries. A Redis
// outage degrades to the database row lock alone.
func (s *BookingService) lockBike(ctx context.Context, bikeID string) (func(), error) {
	noop := func() {}
	if s.locker == nil {
		return noop, nil
	}

	for attempt := 0; attempt <= s.policy.BikeLockRetries; attempt++ {
		token, ok, err := s.locker.AcquireBikeLock(ctx, bikeID, s.policy.BikeLockTTL)
		if err != nil {
			s.logger.Warn("bike lock unavailable, relying on row lock", zap.String("bike_id", bikeID), zap.Error(err))
			return noop, nil
		}
		if ok {
			return func() {
				if err := s.locker.ReleaseBikeLock(context.WithoutCancel(ctx), bikeID, token); err != nil {
					s.logger.Warn("failed to release bike lock", zap.String("bike_id", bikeID), zap.Error(err))
				}
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.policy.BikeLockRetryDelay):
		}
	}

	return nil, ErrBikeBusy
}

// AcceptBooking records the owner's acceptance. The booking turns ACTIVE now
// if it is already paid, otherwise when the payment completes.
func (s *BookingService) AcceptBooking(ctx context.Context, actor domain.Actor, bookingID string) (*domain.Booking, error) {
	var booking *domain.Booking
	var activated bool

	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		b, err := getBookingForUpdate(ctx, repos, bookingID)
		if err != nil {
			return err
		}
		if b.OwnerID != actor.UserID {
			return ErrNotOwner
		}
		if b.Status != domain.BookingStatusPending {
			return ErrWrongState
		}
		if b.Accepted() {
			return ErrAlreadyAccepted
		}

		now := s.clock()
		b.AcceptedAt = now
		b.UpdatedAt = now

		paid, err := hasCompletedPayment(ctx, repos, domain.PaymentTargetBooking, b.ID)
		if err != nil {
			return err
		}
		if paid {
			b.Status = domain.BookingStatusActive
			activated = true
		}

		booking = b
		return repos.Bookings.Update(ctx, b)
	})
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyBookingAccepted(ctx, booking)
	if activated {
		s.notifier.NotifyBookingActive(ctx, booking)
	}
	return booking, nil
}

// RejectBooking lets the owner decline a PENDING booking. Completed payments
// are refunded and open attempts cancelled in the same transaction.
func (s *BookingService) RejectBooking(ctx context.Context, actor domain.Actor, bookingID, reason string) (*domain.Booking, error) {
	booking, refunds, err := s.cancel(ctx, bookingID, reason, func(b *domain.Booking) error {
		if b.OwnerID != actor.UserID {
			return ErrNotOwner
		}
		return nil
	}, actor.UserID)
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyBookingRejected(ctx, booking)
	s.notifyRefunds(ctx, refunds)
	return booking, nil
}

// CancelBooking lets the renter withdraw a PENDING booking with a reason.
func (s *BookingService) CancelBooking(ctx context.Context, actor domain.Actor, bookingID, reason string) (*domain.Booking, error) {
	if reason == "" {
		return nil, ErrReasonRequired
	}

	booking, refunds, err := s.cancel(ctx, bookingID, reason, func(b *domain.Booking) error {
		if b.RenterID != actor.UserID {
			return ErrNotRenter
		}
		return nil
	}, actor.UserID)
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyBookingCancelled(ctx, booking)
	s.notifyRefunds(ctx, refunds)
	return booking, nil
}

func (s *BookingService) cancel(ctx context.Context, bookingID, reason string, authorize func(*domain.Booking) error, cancelledBy string) (*domain.Booking, []*domain.Payment, error) {
	var booking *domain.Booking
	var refunds []*domain.Payment

	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		b, err := getBookingForUpdate(ctx, repos, bookingID)
		if err != nil {
			return err
		}
		if err := authorize(b); err != nil {
			return err
		}
		if !b.Status.CanTransitionTo(domain.BookingStatusCancelled) {
			return ErrWrongState
		}

		now := s.clock()
		refunds, err = refundBookingPayments(ctx, repos, now, s.policy.EscrowUserID, b.ID)
		if err != nil {
			return err
		}

		b.Status = domain.BookingStatusCancelled
		b.CancelledAt = now
		b.CancelledBy = cancelledBy
		b.CancelReason = reason
		b.UpdatedAt = now

		booking = b
		return repos.Bookings.Update(ctx, b)
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("booking cancelled",
		zap.String("booking_id", booking.ID),
		zap.String("cancelled_by", cancelledBy),
		zap.Int("refunds", len(refunds)),
	)
	return booking, refunds, nil
}

func (s *BookingService) notifyRefunds(ctx context.Context, refunds []*domain.Payment) {
	for _, p := range refunds {
		if p.Method != domain.PaymentMethodCash {
			s.notifier.NotifyRefundIssued(ctx, p)
		}
	}
}

// ConfirmReturn completes an ACTIVE booking, pays the owner out of escrow and
// awards the renter loyalty points.
func (s *BookingService) ConfirmReturn(ctx context.Context, actor domain.Actor, bookingID string) (*domain.Booking, error) {
	var booking *domain.Booking
	var points int64

	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		b, err := getBookingForUpdate(ctx, repos, bookingID)
		if err != nil {
			return err
		}
		if b.OwnerID != actor.UserID {
			return ErrNotOwner
		}
		if b.Status != domain.BookingStatusActive {
			return ErrWrongState
		}
		if b.IsReportedLost {
			return ErrBookingReportedLost
		}

		points, err = completeBooking(ctx, repos, s.clock(), s.policy, b)
		if err != nil {
			return err
		}

		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dropLivePosition(ctx, booking.ID)
	s.notifier.NotifyBookingReturned(ctx, booking, points)
	return booking, nil
}

// ReportLost flags an ACTIVE booking as lost. The status does not change and
// the units stay unavailable until the bike is found.
func (s *BookingService) ReportLost(ctx context.Context, actor domain.Actor, bookingID string) (*domain.Booking, error) {
	var booking *domain.Booking

	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		b, err := getBookingForUpdate(ctx, repos, bookingID)
		if err != nil {
			return err
		}
		if b.OwnerID != actor.UserID {
			return ErrNotOwner
		}
		if b.Status != domain.BookingStatusActive {
			return ErrWrongState
		}
		if b.IsReportedLost {
			return ErrBookingReportedLost
		}

		now := s.clock()
		b.IsReportedLost = true
		b.ReportedLostAt = now
		b.UpdatedAt = now

		booking = b
		return repos.Bookings.Update(ctx, b)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Warn("bike reported lost", zap.String("booking_id", booking.ID), zap.String("bike_id", booking.BikeID))
	s.notifier.NotifyBikeReportedLost(ctx, booking)
	return booking, nil
}

// MarkFound clears the lost flag and completes the booking the same way a
// confirmed return does.
func (s *BookingService) MarkFound(ctx context.Context, actor domain.Actor, bookingID string) (*domain.Booking, error) {
	var booking *domain.Booking
	var points int64

	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		b, err := getBookingForUpdate(ctx, repos, bookingID)
		if err != nil {
			return err
		}
		if b.OwnerID != actor.UserID {
			return ErrNotOwner
		}
		if !b.IsReportedLost {
			return ErrBookingNotLost
		}

		b.IsReportedLost = false
		points, err = completeBooking(ctx, repos, s.clock(), s.policy, b)
		if err != nil {
			return err
		}

		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dropLivePosition(ctx, booking.ID)
	s.notifier.NotifyBikeFound(ctx, booking, points)
	return booking, nil
}

// completeBooking moves b to COMPLETED, releases the base rate held in
// escrow to the owner and awards the renter loyalty points on it. The service
// fee stays with the platform.
func completeBooking(ctx context.Context, repos repository.Repositories, now time.Time, policy Policy, b *domain.Booking) (int64, error) {
	b.Status = domain.BookingStatusCompleted
	b.ActualReturnDate = now
	b.UpdatedAt = now

	payment, err := completedPayment(ctx, repos, domain.PaymentTargetBooking, b.ID)
	if err != nil {
		return 0, err
	}
	if payment != nil && payment.Method != domain.PaymentMethodCash {
		err := transfer(ctx, repos, now, policy.EscrowUserID, b.OwnerID, b.BaseRate,
			domain.TxEscrowRelease, domain.TxRentalEarning, b.ID)
		if err != nil {
			return 0, err
		}
	}

	if err := repos.Bookings.Update(ctx, b); err != nil {
		return 0, err
	}

	points := policy.LoyaltyPoints(b.BaseRate)
	if points > 0 {
		if _, err := postPoints(ctx, repos, now, b.RenterID, points, domain.PointsRentalCompleted, b.ID); err != nil {
			return 0, err
		}
	}
	return points, nil
}

func (s *BookingService) dropLivePosition(ctx context.Context, bookingID string) {
	if s.liveIndex == nil {
		return
	}
	if err := s.liveIndex.RemoveRental(ctx, bookingID); err != nil {
		s.logger.Warn("failed to remove live position", zap.String("booking_id", bookingID), zap.Error(err))
	}
}

// GetBooking returns a booking visible to its renter, its owner or an admin.
func (s *BookingService) GetBooking(ctx context.Context, actor domain.Actor, bookingID string) (*domain.Booking, error) {
	b, err := getBooking(ctx, s.store.Repos(), bookingID)
	if err != nil {
		return nil, err
	}
	if !b.IsParty(actor.UserID) && !actor.IsAdmin() {
		return nil, ErrNotParty
	}
	return b, nil
}

// ListRenterBookings returns the caller's bookings as renter, newest first.
func (s *BookingService) ListRenterBookings(ctx context.Context, actor domain.Actor, limit int) ([]*domain.Booking, error) {
	return s.store.Repos().Bookings.ListByRenter(ctx, actor.UserID, limit)
}

// ListOwnerBookings returns bookings of the caller's bikes, newest first.
func (s *BookingService) ListOwnerBookings(ctx context.Context, actor domain.Actor, limit int) ([]*domain.Booking, error) {
	return s.store.Repos().Bookings.ListByOwner(ctx, actor.UserID, limit)
}

func getBooking(ctx context.Context, repos repository.Repositories, id string) (*domain.Booking, error) {
	b, err := repos.Bookings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return b, nil
}

func getBookingForUpdate(ctx context.Context, repos repository.Repositories, id string) (*domain.Booking, error) {
	b, err := repos.Bookings.GetForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return b, nil
}
