package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bikerental/internal/domain"
	"bikerental/internal/repository"
)

// BikeService manages bike listings.
type BikeService struct {
	store  repository.Store
	logger *zap.Logger
	clock  func() time.Time
}

// NewBikeService creates a new BikeService.
func NewBikeService(store repository.Store, logger *zap.Logger) *BikeService {
	return &BikeService{
		store:  store,
		logger: logger,
		clock:  time.Now,
	}
}

// CreateBikeRequest describes a new listing.
type CreateBikeRequest struct {
	Name       string
	BikeTypeID string
	HourlyRate decimal.Decimal
	DailyRate  decimal.Decimal
	Quantity   int
	Geofence   domain.Geofence
}

// CreateBike lists a bike for the calling owner.
func (s *BikeService) CreateBike(ctx context.Context, actor domain.Actor, req CreateBikeRequest) (*domain.Bike, error) {
	if !actor.Has(domain.RoleOwner) {
		return nil, ErrNotOwner
	}
	if strings.TrimSpace(req.Name) == "" || !req.HourlyRate.IsPositive() || req.DailyRate.IsNegative() {
		return nil, ErrInvalidListing
	}
	if req.Quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	if req.Geofence.RadiusKm < 0 || !validCoordinates(req.Geofence.Lat, req.Geofence.Lng) {
		return nil, ErrInvalidLocation
	}

	bike := &domain.Bike{
		ID:         uuid.New().String(),
		OwnerID:    actor.UserID,
		BikeTypeID: req.BikeTypeID,
		Name:       strings.TrimSpace(req.Name),
		HourlyRate: req.HourlyRate,
		DailyRate:  req.DailyRate,
		Quantity:   req.Quantity,
		Status:     domain.ListingListed,
		Geofence:   req.Geofence,
		CreatedAt:  s.clock(),
	}
	if err := s.store.Repos().Bikes.Create(ctx, bike); err != nil {
		return nil, err
	}

	s.logger.Info("bike listed", zap.String("bike_id", bike.ID), zap.String("owner_id", bike.OwnerID), zap.Int("quantity", bike.Quantity))
	return bike, nil
}

// GetBike returns a listing with its live availability.
func (s *BikeService) GetBike(ctx context.Context, bikeID string) (*domain.Bike, *Availability, error) {
	repos := s.store.Repos()

	bike, err := repos.Bikes.GetByID(ctx, bikeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrBikeNotFound
		}
		return nil, nil, err
	}

	avail, err := describe(ctx, repos, bike)
	if err != nil {
		return nil, nil, err
	}
	return bike, avail, nil
}

// UpdateListingRequest carries the listing fields to change. Nil fields are kept.
type UpdateListingRequest struct {
	Status     *domain.ListingStatus
	Quantity   *int
	HourlyRate *decimal.Decimal
	DailyRate  *decimal.Decimal
}

// UpdateListing changes an owner's listing. Quantity cannot drop below the
// units currently reserved or lost.
func (s *BikeService) UpdateListing(ctx context.Context, actor domain.Actor, bikeID string, req UpdateListingRequest) (*domain.Bike, error) {
	var bike *domain.Bike
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		b, err := s.ownedBikeForUpdate(ctx, repos, actor, bikeID)
		if err != nil {
			return err
		}

		if req.Status != nil {
			if !req.Status.Valid() {
				return ErrInvalidListing
			}
			b.Status = *req.Status
		}
		if req.HourlyRate != nil {
			if !req.HourlyRate.IsPositive() {
				return ErrInvalidListing
			}
			b.HourlyRate = *req.HourlyRate
		}
		if req.DailyRate != nil {
			if req.DailyRate.IsNegative() {
				return ErrInvalidListing
			}
			b.DailyRate = *req.DailyRate
		}
		if req.Quantity != nil {
			if *req.Quantity < 1 {
				return ErrInvalidQuantity
			}
			res, err := repos.Bookings.ReservationFor(ctx, b.ID)
			if err != nil {
				return err
			}
			if held := res.Reserved + res.Lost; *req.Quantity < held {
				return fmt.Errorf("%w: %d units are reserved or lost", ErrInsufficientInventory, held)
			}
			b.Quantity = *req.Quantity
		}

		bike = b
		return repos.Bikes.Update(ctx, b)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("bike listing updated", zap.String("bike_id", bike.ID), zap.String("status", string(bike.Status)))
	return bike, nil
}

// DeleteBike soft-deletes a listing that has no reserved units.
func (s *BikeService) DeleteBike(ctx context.Context, actor domain.Actor, bikeID string) error {
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		b, err := s.ownedBikeForUpdate(ctx, repos, actor, bikeID)
		if err != nil {
			return err
		}

		res, err := repos.Bookings.ReservationFor(ctx, b.ID)
		if err != nil {
			return err
		}
		if res.Reserved > 0 {
			return ErrWrongState
		}

		b.IsDeleted = true
		return repos.Bikes.Update(ctx, b)
	})
	if err != nil {
		return err
	}

	s.logger.Info("bike deleted", zap.String("bike_id", bikeID), zap.String("by", actor.UserID))
	return nil
}

func (s *BikeService) ownedBikeForUpdate(ctx context.Context, repos repository.Repositories, actor domain.Actor, bikeID string) (*domain.Bike, error) {
	b, err := repos.Bikes.GetForUpdate(ctx, bikeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBikeNotFound
		}
		return nil, err
	}
	if b.OwnerID != actor.UserID && !actor.IsAdmin() {
		return nil, ErrNotOwner
	}
	return b, nil
}
