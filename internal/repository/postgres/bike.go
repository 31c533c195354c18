package postgres

import (
	"context"

	"bikerental/internal/domain"
)

// BikeRepository is a PostgreSQL implementation of repository.BikeRepository.
type BikeRepository struct {
	q Querier
}

const bikeColumns = `id, owner_id, bike_type_id, name, hourly_rate, daily_rate, quantity, listing_status,
	geofence_lat, geofence_lng, geofence_radius_km, is_deleted, created_at`

// Create persists a new bike listing.
func (r *BikeRepository) Create(ctx context.Context, bike *domain.Bike) error {
	query := `
		INSERT INTO bikes (` + bikeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.q.ExecContext(ctx, query,
		bike.ID,
		bike.OwnerID,
		bike.BikeTypeID,
		bike.Name,
		bike.HourlyRate,
		bike.DailyRate,
		bike.Quantity,
		bike.Status,
		bike.Geofence.Lat,
		bike.Geofence.Lng,
		bike.Geofence.RadiusKm,
		bike.IsDeleted,
		bike.CreatedAt,
	)

	return mapError(err)
}

// GetByID retrieves a bike by ID.
func (r *BikeRepository) GetByID(ctx context.Context, id string) (*domain.Bike, error) {
	query := `SELECT ` + bikeColumns + ` FROM bikes WHERE id = $1 AND NOT is_deleted`
	return scanBike(r.q.QueryRowContext(ctx, query, id))
}

// GetForUpdate retrieves a bike and locks its row. Concurrent booking
// requests for the same bike queue behind this lock.
func (r *BikeRepository) GetForUpdate(ctx context.Context, id string) (*domain.Bike, error) {
	query := `SELECT ` + bikeColumns + ` FROM bikes WHERE id = $1 AND NOT is_deleted FOR UPDATE`
	return scanBike(r.q.QueryRowContext(ctx, query, id))
}

// Update overwrites the listing fields of a bike.
func (r *BikeRepository) Update(ctx context.Context, bike *domain.Bike) error {
	query := `
		UPDATE bikes
		SET name = $1, hourly_rate = $2, daily_rate = $3, quantity = $4, listing_status = $5,
			geofence_lat = $6, geofence_lng = $7, geofence_radius_km = $8, is_deleted = $9
		WHERE id = $10 AND NOT is_deleted
	`

	return mustAffect(r.q.ExecContext(ctx, query,
		bike.Name,
		bike.HourlyRate,
		bike.DailyRate,
		bike.Quantity,
		bike.Status,
		bike.Geofence.Lat,
		bike.Geofence.Lng,
		bike.Geofence.RadiusKm,
		bike.IsDeleted,
		bike.ID,
	))
}

func scanBike(row rowScanner) (*domain.Bike, error) {
	var bike domain.Bike
	err := row.Scan(
		&bike.ID,
		&bike.OwnerID,
		&bike.BikeTypeID,
		&bike.Name,
		&bike.HourlyRate,
		&bike.DailyRate,
		&bike.Quantity,
		&bike.Status,
		&bike.Geofence.Lat,
		&bike.Geofence.Lng,
		&bike.Geofence.RadiusKm,
		&bike.IsDeleted,
		&bike.CreatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return &bike, nil
}
