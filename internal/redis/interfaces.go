package redis

import (
	"context"
	"time"

	"bikerental/internal/domain"
)

// LocationStoreInterface defines the live rental position index.
type LocationStoreInterface interface {
	UpdateRental(ctx context.Context, bookingID string, lat, lng float64) error
	FindNearbyRentals(ctx context.Context, lat, lng, radiusKm float64) ([]RentalLocation, error)
	RemoveRental(ctx context.Context, bookingID string) error
}

// LockStoreInterface defines the interface for distributed bike locks.
type LockStoreInterface interface {
	AcquireBikeLock(ctx context.Context, bikeID string, ttl time.Duration) (string, bool, error)
	ReleaseBikeLock(ctx context.Context, bikeID, token string) error
}

// DraftStoreInterface defines storage for expiring booking drafts.
type DraftStoreInterface interface {
	Save(ctx context.Context, draft *domain.BookingDraft) error
	Get(ctx context.Context, token string) (*domain.BookingDraft, error)
	// Take removes and returns a draft atomically.
	Take(ctx context.Context, token string) (*domain.BookingDraft, error)
	Delete(ctx context.Context, token string) error
}

// Ensure concrete types implement interfaces.
var (
	_ LocationStoreInterface = (*LocationStore)(nil)
	_ LockStoreInterface     = (*LockStore)(nil)
	_ DraftStoreInterface    = (*DraftStore)(nil)
)
