package postgres

import (
	"context"
	"database/sql"

	"bikerental/internal/domain"
	"bikerental/internal/repository"
)

// BookingRepository is a PostgreSQL implementation of repository.BookingRepository.
type BookingRepository struct {
	q Querier
}

const bookingColumns = `id, renter_id, bike_id, owner_id, quantity, start_date, end_date, rate_type, hours,
	base_rate, service_fee, total_amount, status, accepted_at, actual_return_date, is_reported_lost,
	reported_lost_at, cancelled_at, cancelled_by, cancel_reason, created_at, updated_at`

// Create persists a new booking.
func (r *BookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`

	_, err := r.q.ExecContext(ctx, query,
		b.ID,
		b.RenterID,
		b.BikeID,
		b.OwnerID,
		b.Quantity,
		b.StartDate,
		b.EndDate,
		b.RateType,
		b.Hours,
		b.BaseRate,
		b.ServiceFee,
		b.TotalAmount,
		b.Status,
		nullTime(b.AcceptedAt),
		nullTime(b.ActualReturnDate),
		b.IsReportedLost,
		nullTime(b.ReportedLostAt),
		nullTime(b.CancelledAt),
		nullString(b.CancelledBy),
		nullString(b.CancelReason),
		b.CreatedAt,
		b.UpdatedAt,
	)

	return mapError(err)
}

// GetByID retrieves a booking by ID.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	return scanBooking(r.q.QueryRowContext(ctx, query, id))
}

// GetForUpdate retrieves a booking and locks its row.
func (r *BookingRepository) GetForUpdate(ctx context.Context, id string) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1 FOR UPDATE`
	return scanBooking(r.q.QueryRowContext(ctx, query, id))
}

// Update overwrites the mutable fields of a booking.
func (r *BookingRepository) Update(ctx context.Context, b *domain.Booking) error {
	query := `
		UPDATE bookings
		SET status = $1, accepted_at = $2, actual_return_date = $3, is_reported_lost = $4, reported_lost_at = $5,
			cancelled_at = $6, cancelled_by = $7, cancel_reason = $8, updated_at = $9
		WHERE id = $10
	`

	return mustAffect(r.q.ExecContext(ctx, query,
		b.Status,
		nullTime(b.AcceptedAt),
		nullTime(b.ActualReturnDate),
		b.IsReportedLost,
		nullTime(b.ReportedLostAt),
		nullTime(b.CancelledAt),
		nullString(b.CancelledBy),
		nullString(b.CancelReason),
		b.UpdatedAt,
		b.ID,
	))
}

// ListByRenter returns the renter's bookings, newest first.
func (r *BookingRepository) ListByRenter(ctx context.Context, renterID string, limit int) ([]*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE renter_id = $1 ORDER BY created_at DESC LIMIT $2`
	return r.list(ctx, query, renterID, limitOrDefault(limit))
}

// ListByOwner returns bookings of the owner's bikes, newest first.
func (r *BookingRepository) ListByOwner(ctx context.Context, ownerID string, limit int) ([]*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE owner_id = $1 ORDER BY created_at DESC LIMIT $2`
	return r.list(ctx, query, ownerID, limitOrDefault(limit))
}

func (r *BookingRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Booking, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []*domain.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}
	return bookings, rows.Err()
}

// ReservationFor aggregates the inventory held against a bike. A lost booking
// is counted once, in Lost, regardless of its status.
func (r *BookingRepository) ReservationFor(ctx context.Context, bikeID string) (repository.Reservation, error) {
	query := `
		SELECT
			COALESCE(SUM(quantity) FILTER (WHERE status IN ('PENDING', 'ACTIVE') AND NOT is_reported_lost), 0),
			COALESCE(SUM(quantity) FILTER (WHERE is_reported_lost), 0)
		FROM bookings WHERE bike_id = $1
	`

	var res repository.Reservation
	if err := r.q.QueryRowContext(ctx, query, bikeID).Scan(&res.Reserved, &res.Lost); err != nil {
		return repository.Reservation{}, mapError(err)
	}
	return res, nil
}

// HasCompletedBooking reports whether the renter has ever completed a booking.
func (r *BookingRepository) HasCompletedBooking(ctx context.Context, renterID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM bookings WHERE renter_id = $1 AND status = 'COMPLETED')`

	var exists bool
	if err := r.q.QueryRowContext(ctx, query, renterID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func scanBooking(row rowScanner) (*domain.Booking, error) {
	var b domain.Booking
	var acceptedAt, returnedAt, lostAt, cancelledAt sql.NullTime
	var cancelledBy, cancelReason sql.NullString

	err := row.Scan(
		&b.ID,
		&b.RenterID,
		&b.BikeID,
		&b.OwnerID,
		&b.Quantity,
		&b.StartDate,
		&b.EndDate,
		&b.RateType,
		&b.Hours,
		&b.BaseRate,
		&b.ServiceFee,
		&b.TotalAmount,
		&b.Status,
		&acceptedAt,
		&returnedAt,
		&b.IsReportedLost,
		&lostAt,
		&cancelledAt,
		&cancelledBy,
		&cancelReason,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}

	b.AcceptedAt = timeOf(acceptedAt)
	b.ActualReturnDate = timeOf(returnedAt)
	b.ReportedLostAt = timeOf(lostAt)
	b.CancelledAt = timeOf(cancelledAt)
	b.CancelledBy = stringOf(cancelledBy)
	b.CancelReason = stringOf(cancelReason)

	return &b, nil
}
