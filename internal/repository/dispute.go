package repository

import (
	"context"
	"time"

	"bikerental/internal/domain"
)

// DamageRepository defines the persistence operations for damage claims.
type DamageRepository interface {
	Create(ctx context.Context, damage *domain.BikeDamage) error
	GetByID(ctx context.Context, id string) (*domain.BikeDamage, error)
	GetForUpdate(ctx context.Context, id string) (*domain.BikeDamage, error)
	Update(ctx context.Context, damage *domain.BikeDamage) error
	ListByBooking(ctx context.Context, bookingID string) ([]*domain.BikeDamage, error)
}

// FlagRepository defines the persistence operations for renter flags and red tags.
type FlagRepository interface {
	CreateFlag(ctx context.Context, flag *domain.RenterFlag) error
	ListFlagsByRenter(ctx context.Context, renterID string) ([]*domain.RenterFlag, error)

	CreateRedTag(ctx context.Context, tag *domain.RenterRedTag) error
	GetRedTagForUpdate(ctx context.Context, id string) (*domain.RenterRedTag, error)
	UpdateRedTag(ctx context.Context, tag *domain.RenterRedTag) error

	// ListActiveRedTags returns active tags for the renter across all owners.
	ListActiveRedTags(ctx context.Context, renterID string) ([]*domain.RenterRedTag, error)
}

// LocationRepository stores append-only GPS samples.
type LocationRepository interface {
	Append(ctx context.Context, sample *domain.LocationSample) error

	// Latest returns the most recent sample of a booking, or nil.
	Latest(ctx context.Context, bookingID string) (*domain.LocationSample, error)

	// ListInRange returns samples recorded within [from, to], oldest first.
	ListInRange(ctx context.Context, bookingID string, from, to time.Time) ([]*domain.LocationSample, error)
}
