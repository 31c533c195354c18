package service

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bikerental/internal/domain"
	"bikerental/internal/redis"
	"bikerental/internal/repository"
)

const earthRadiusKm = 6371.0

// LocationService records GPS samples for active rentals and checks them
// against the bike's geofence.
type LocationService struct {
	store     repository.Store
	liveIndex redis.LocationStoreInterface
	notifier  *NotificationService
	logger    *zap.Logger
	clock     func() time.Time
}

// NewLocationService creates a new LocationService. liveIndex may be nil.
func NewLocationService(
	store repository.Store,
	liveIndex redis.LocationStoreInterface,
	notifier *NotificationService,
	logger *zap.Logger,
) *LocationService {
	return &LocationService{
		store:     store,
		liveIndex: liveIndex,
		notifier:  notifier,
		logger:    logger,
		clock:     time.Now,
	}
}

// WithClock replaces the time source.
func (s *LocationService) WithClock(clock func() time.Time) *LocationService {
	s.clock = clock
	return s
}

// RecordLocation appends a sample for the renter's active booking. The owner
// is notified when the bike crosses out of its geofence.
func (s *LocationService) RecordLocation(ctx context.Context, actor domain.Actor, bookingID string, lat, lng float64) (*domain.LocationSample, error) {
	if !validCoordinates(lat, lng) {
		return nil, ErrInvalidLocation
	}

	var sample *domain.LocationSample
	var booking *domain.Booking
	var exited bool
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		b, err := getBooking(ctx, repos, bookingID)
		if err != nil {
			return err
		}
		if b.RenterID != actor.UserID {
			return ErrNotRenter
		}
		if b.Status != domain.BookingStatusActive {
			return ErrWrongState
		}

		var fence domain.Geofence
		bike, err := repos.Bikes.GetByID(ctx, b.BikeID)
		switch {
		case err == nil:
			fence = bike.Geofence
		case !errors.Is(err, repository.ErrNotFound):
			return err
		}

		prev, err := repos.Locations.Latest(ctx, b.ID)
		if err != nil {
			return err
		}

		sample = &domain.LocationSample{
			ID:              uuid.New().String(),
			BookingID:       b.ID,
			Lat:             lat,
			Lng:             lng,
			OutsideGeofence: outsideGeofence(fence, lat, lng),
			RecordedAt:      s.clock(),
		}
		exited = sample.OutsideGeofence && (prev == nil || !prev.OutsideGeofence)
		booking = b
		return repos.Locations.Append(ctx, sample)
	})
	if err != nil {
		return nil, err
	}

	if s.liveIndex != nil {
		if err := s.liveIndex.UpdateRental(ctx, booking.ID, lat, lng); err != nil {
			s.logger.Warn("failed to update live rental index", zap.String("booking_id", booking.ID), zap.Error(err))
		}
	}
	if exited {
		s.logger.Info("bike left geofence", zap.String("booking_id", booking.ID))
		s.notifier.NotifyGeofenceExit(ctx, booking, sample)
	}

	return sample, nil
}

// LocationHistory returns samples recorded in [from, to]. A zero to means now.
func (s *LocationService) LocationHistory(ctx context.Context, actor domain.Actor, bookingID string, from, to time.Time) ([]*domain.LocationSample, error) {
	repos := s.store.Repos()

	b, err := getBooking(ctx, repos, bookingID)
	if err != nil {
		return nil, err
	}
	if !b.IsParty(actor.UserID) && !actor.IsAdmin() {
		return nil, ErrNotParty
	}

	if to.IsZero() {
		to = s.clock()
	}
	if to.Before(from) {
		return nil, ErrInvalidDuration
	}
	return repos.Locations.ListInRange(ctx, b.ID, from, to)
}

// NearbyRentals lists active rentals last seen within radiusKm of a point.
func (s *LocationService) NearbyRentals(ctx context.Context, actor domain.Actor, lat, lng, radiusKm float64) ([]redis.RentalLocation, error) {
	if !actor.IsAdmin() {
		return nil, ErrNotAdmin
	}
	if !validCoordinates(lat, lng) || radiusKm <= 0 {
		return nil, ErrInvalidLocation
	}
	if s.liveIndex == nil {
		return nil, ErrLiveIndexUnavailable
	}
	return s.liveIndex.FindNearbyRentals(ctx, lat, lng, radiusKm)
}

func validCoordinates(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

func outsideGeofence(fence domain.Geofence, lat, lng float64) bool {
	if !fence.Enabled() {
		return false
	}
	return distanceKm(fence.Lat, fence.Lng, lat, lng) > fence.RadiusKm
}

// distanceKm is the great-circle distance between two points.
func distanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := rad(lat2 - lat1)
	dLng := rad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
