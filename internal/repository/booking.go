package repository

import (
	"context"

	"bikerental/internal/domain"
)

// Reservation is the aggregated inventory held by bookings of one bike.
type Reservation struct {
	// Reserved is the quantity held by PENDING or ACTIVE bookings that are not lost.
	Reserved int
	// Lost is the quantity held by bookings currently reported lost.
	Lost int
}

// BookingRepository defines the persistence operations for bookings.
type BookingRepository interface {
	// Create persists a new booking.
	Create(ctx context.Context, booking *domain.Booking) error

	// GetByID retrieves a booking by ID.
	GetByID(ctx context.Context, id string) (*domain.Booking, error)

	// GetForUpdate retrieves a booking and locks its row.
	GetForUpdate(ctx context.Context, id string) (*domain.Booking, error)

	// Update overwrites the mutable fields of a booking.
	Update(ctx context.Context, booking *domain.Booking) error

	// ListByRenter returns the renter's bookings, newest first.
	ListByRenter(ctx context.Context, renterID string, limit int) ([]*domain.Booking, error)

	// ListByOwner returns bookings of the owner's bikes, newest first.
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]*domain.Booking, error)

	// ReservationFor aggregates the inventory held against a bike.
	ReservationFor(ctx context.Context, bikeID string) (Reservation, error)

	// HasCompletedBooking reports whether the renter has ever completed a booking.
	HasCompletedBooking(ctx context.Context, renterID string) (bool, error)
}
