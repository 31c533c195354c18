package service

import (
	"context"
	"errors"

	"bikerental/internal/domain"
	"bikerental/internal/repository"
)

// Availability is the derived inventory state of a bike listing.
type Availability struct {
	BikeID    string
	Quantity  int
	Reserved  int
	Lost      int
	Available int
	Bookable  bool
}

// AvailabilityService derives free units from live booking aggregates. The
// listing status never contributes to the count.
type AvailabilityService struct {
	store repository.Store
}

// NewAvailabilityService creates a new AvailabilityService.
func NewAvailabilityService(store repository.Store) *AvailabilityService {
	return &AvailabilityService{store: store}
}

// Available returns the number of free units of a bike.
func (s *AvailabilityService) Available(ctx context.Context, bikeID string) (int, error) {
	a, err := s.Describe(ctx, bikeID)
	if err != nil {
		return 0, err
	}
	return a.Available, nil
}

// Describe returns the full inventory breakdown of a bike.
func (s *AvailabilityService) Describe(ctx context.Context, bikeID string) (*Availability, error) {
	repos := s.store.Repos()

	bike, err := repos.Bikes.GetByID(ctx, bikeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBikeNotFound
		}
		return nil, err
	}

	return describe(ctx, repos, bike)
}

// describe computes availability through repos, which may be bound to a
// transaction holding the bike row lock.
func describe(ctx context.Context, repos repository.Repositories, bike *domain.Bike) (*Availability, error) {
	res, err := repos.Bookings.ReservationFor(ctx, bike.ID)
	if err != nil {
		return nil, err
	}

	return &Availability{
		BikeID:    bike.ID,
		Quantity:  bike.Quantity,
		Reserved:  res.Reserved,
		Lost:      res.Lost,
		Available: availableUnits(bike.Quantity, res),
		Bookable:  bike.Bookable(),
	}, nil
}

// availableUnits clamps quantity - reserved - lost to [0, quantity].
func availableUnits(quantity int, res repository.Reservation) int {
	free := quantity - res.Reserved - res.Lost
	if free < 0 {
		return 0
	}
	if free > quantity {
		return quantity
	}
	return free
}
