package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// activeRentalsGeoKey holds one member per ACTIVE booking. Members are booking
// ids, not bikes or users, so a renter with two rentals shows up twice.
const activeRentalsGeoKey = "rentals:active:geo"

// maxNearbyRentals caps an admin nearby query.
const maxNearbyRentals = 200

// RentalLocation is the last position a renter reported for an active booking,
// with its distance from the query point.
type RentalLocation struct {
	BookingID  string
	Lat        float64
	Lng        float64
	DistanceKm float64
}

// LocationStore is the live map of bikes currently out on rent. The durable
// location history lives in Postgres; this index only answers "which rentals
// are near here right now" for the admin map. A booking enters it on its first
// location report while ACTIVE and leaves it when the owner confirms the
// return or marks a lost bike found. Losing an entry is harmless: the next
// report from the renter restores it.
type LocationStore struct {
	client *redis.Client
}

// NewLocationStore creates a new LocationStore.
func NewLocationStore(client *redis.Client) *LocationStore {
	return &LocationStore{client: client}
}

// UpdateRental moves the booking's marker to the reported coordinates,
// adding it on the first report.
func (s *LocationStore) UpdateRental(ctx context.Context, bookingID string, lat, lng float64) error {
	return s.client.GeoAdd(ctx, activeRentalsGeoKey, &redis.GeoLocation{
		Name:      bookingID,
		Longitude: lng,
		Latitude:  lat,
	}).Err()
}

// FindNearbyRentals lists active rentals within radiusKm of the point, nearest
// first and at most maxNearbyRentals of them.
func (s *LocationStore) FindNearbyRentals(ctx context.Context, lat, lng, radiusKm float64) ([]RentalLocation, error) {
	found, err := s.client.GeoSearchLocation(ctx, activeRentalsGeoKey, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  lng,
			Latitude:   lat,
			Radius:     radiusKm,
			RadiusUnit: "km",
			Sort:       "ASC",
			Count:      maxNearbyRentals,
		},
		WithCoord: true,
		WithDist:  true,
	}).Result()
	if err != nil {
		return nil, err
	}

	rentals := make([]RentalLocation, len(found))
	for i, loc := range found {
		rentals[i] = RentalLocation{
			BookingID:  loc.Name,
			Lat:        loc.Latitude,
			Lng:        loc.Longitude,
			DistanceKm: loc.Dist,
		}
	}
	return rentals, nil
}

// RemoveRental drops the booking's marker when the rental ends. Removing a
// booking that never reported a position is not an error.
func (s *LocationStore) RemoveRental(ctx context.Context, bookingID string) error {
	return s.client.ZRem(ctx, activeRentalsGeoKey, bookingID).Err()
}
