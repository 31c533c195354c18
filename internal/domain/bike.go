package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ListingStatus controls whether a bike listing can be booked at all.
// Free unit counts are never read from it.
type ListingStatus string

const (
	ListingListed      ListingStatus = "LISTED"
	ListingUnlisted    ListingStatus = "UNLISTED"
	ListingMaintenance ListingStatus = "MAINTENANCE"
)

// Valid reports whether s is a known listing status.
func (s ListingStatus) Valid() bool {
	switch s {
	case ListingListed, ListingUnlisted, ListingMaintenance:
		return true
	}
	return false
}

// Geofence is a circular area a rented bike is expected to stay within.
type Geofence struct {
	Lat      float64
	Lng      float64
	RadiusKm float64
}

// Enabled reports whether the geofence is configured.
func (g Geofence) Enabled() bool {
	return g.RadiusKm > 0
}

// Bike is a rentable listing of one or more identical units.
type Bike struct {
	ID         string
	OwnerID    string
	BikeTypeID string
	Name       string
	HourlyRate decimal.Decimal
	DailyRate  decimal.Decimal
	Quantity   int
	Status     ListingStatus
	Geofence   Geofence
	IsDeleted  bool
	CreatedAt  time.Time
}

// Bookable reports whether new bookings may be placed against the listing.
func (b *Bike) Bookable() bool {
	return !b.IsDeleted && b.Status == ListingListed
}
