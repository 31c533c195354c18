package repository

import (
	"context"

	"bikerental/internal/domain"
)

// BikeRepository defines the persistence operations for bike listings.
// Soft-deleted bikes are invisible to every read.
type BikeRepository interface {
	// Create persists a new bike listing.
	Create(ctx context.Context, bike *domain.Bike) error

	// GetByID retrieves a bike by ID.
	GetByID(ctx context.Context, id string) (*domain.Bike, error)

	// GetForUpdate retrieves a bike and locks its row until the surrounding
	// transaction ends.
	GetForUpdate(ctx context.Context, id string) (*domain.Bike, error)

	// Update overwrites the listing fields of a bike, including the
	// soft-delete flag.
	Update(ctx context.Context, bike *domain.Bike) error
}
