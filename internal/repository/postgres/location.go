package postgres

import (
	"context"
	"errors"
	"time"

	"bikerental/internal/domain"
	"bikerental/internal/repository"
)

// LocationRepository is a PostgreSQL implementation of repository.LocationRepository.
type LocationRepository struct {
	q Querier
}

// Append stores a GPS sample.
func (r *LocationRepository) Append(ctx context.Context, s *domain.LocationSample) error {
	query := `
		INSERT INTO location_tracking (id, booking_id, lat, lng, outside_geofence, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.q.ExecContext(ctx, query, s.ID, s.BookingID, s.Lat, s.Lng, s.OutsideGeofence, s.RecordedAt)
	return mapError(err)
}

// Latest returns the most recent sample of a booking, or nil.
func (r *LocationRepository) Latest(ctx context.Context, bookingID string) (*domain.LocationSample, error) {
	query := `
		SELECT id, booking_id, lat, lng, outside_geofence, recorded_at
		FROM location_tracking WHERE booking_id = $1
		ORDER BY recorded_at DESC LIMIT 1
	`

	var s domain.LocationSample
	err := r.q.QueryRowContext(ctx, query, bookingID).Scan(&s.ID, &s.BookingID, &s.Lat, &s.Lng, &s.OutsideGeofence, &s.RecordedAt)
	if err != nil {
		if err = mapError(err); errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// ListInRange returns samples recorded within [from, to], oldest first.
func (r *LocationRepository) ListInRange(ctx context.Context, bookingID string, from, to time.Time) ([]*domain.LocationSample, error) {
	query := `
		SELECT id, booking_id, lat, lng, outside_geofence, recorded_at
		FROM location_tracking
		WHERE booking_id = $1 AND recorded_at BETWEEN $2 AND $3
		ORDER BY recorded_at ASC
	`

	rows, err := r.q.QueryContext(ctx, query, bookingID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []*domain.LocationSample
	for rows.Next() {
		var s domain.LocationSample
		if err := rows.Scan(&s.ID, &s.BookingID, &s.Lat, &s.Lng, &s.OutsideGeofence, &s.RecordedAt); err != nil {
			return nil, err
		}
		samples = append(samples, &s)
	}
	return samples, rows.Err()
}
