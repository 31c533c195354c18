package postgres

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"bikerental/internal/domain"
)

// DamageRepository is a PostgreSQL implementation of repository.DamageRepository.
type DamageRepository struct {
	q Querier
}

const damageColumns = `id, booking_id, bike_id, owner_id, renter_id, cost, description, photo_urls, status,
	payment_method, dispute_reason, resolution_note, resolved_by, paid_at, created_at, updated_at`

// Create persists a new damage claim.
func (r *DamageRepository) Create(ctx context.Context, d *domain.BikeDamage) error {
	query := `
		INSERT INTO bike_damages (` + damageColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err := r.q.ExecContext(ctx, query,
		d.ID,
		d.BookingID,
		d.BikeID,
		d.OwnerID,
		d.RenterID,
		d.Cost,
		d.Description,
		pq.Array(d.PhotoURLs),
		d.Status,
		nullString(string(d.PaymentMethod)),
		nullString(d.DisputeReason),
		nullString(d.ResolutionNote),
		nullString(d.ResolvedBy),
		nullTime(d.PaidAt),
		d.CreatedAt,
		d.UpdatedAt,
	)

	return mapError(err)
}

// GetByID retrieves a damage claim by ID.
func (r *DamageRepository) GetByID(ctx context.Context, id string) (*domain.BikeDamage, error) {
	query := `SELECT ` + damageColumns + ` FROM bike_damages WHERE id = $1`
	return scanDamage(r.q.QueryRowContext(ctx, query, id))
}

// GetForUpdate retrieves a damage claim and locks its row.
func (r *DamageRepository) GetForUpdate(ctx context.Context, id string) (*domain.BikeDamage, error) {
	query := `SELECT ` + damageColumns + ` FROM bike_damages WHERE id = $1 FOR UPDATE`
	return scanDamage(r.q.QueryRowContext(ctx, query, id))
}

// Update overwrites the mutable fields of a damage claim.
func (r *DamageRepository) Update(ctx context.Context, d *domain.BikeDamage) error {
	query := `
		UPDATE bike_damages
		SET status = $1, payment_method = $2, dispute_reason = $3, resolution_note = $4, resolved_by = $5,
			paid_at = $6, updated_at = $7
		WHERE id = $8
	`

	return mustAffect(r.q.ExecContext(ctx, query,
		d.Status,
		nullString(string(d.PaymentMethod)),
		nullString(d.DisputeReason),
		nullString(d.ResolutionNote),
		nullString(d.ResolvedBy),
		nullTime(d.PaidAt),
		d.UpdatedAt,
		d.ID,
	))
}

// ListByBooking returns the damage claims of a booking, oldest first.
func (r *DamageRepository) ListByBooking(ctx context.Context, bookingID string) ([]*domain.BikeDamage, error) {
	query := `SELECT ` + damageColumns + ` FROM bike_damages WHERE booking_id = $1 ORDER BY created_at ASC`

	rows, err := r.q.QueryContext(ctx, query, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var damages []*domain.BikeDamage
	for rows.Next() {
		damage, err := scanDamage(rows)
		if err != nil {
			return nil, err
		}
		damages = append(damages, damage)
	}
	return damages, rows.Err()
}

func scanDamage(row rowScanner) (*domain.BikeDamage, error) {
	var d domain.BikeDamage
	var method, disputeReason, resolutionNote, resolvedBy sql.NullString
	var paidAt sql.NullTime

	err := row.Scan(
		&d.ID,
		&d.BookingID,
		&d.BikeID,
		&d.OwnerID,
		&d.RenterID,
		&d.Cost,
		&d.Description,
		pq.Array(&d.PhotoURLs),
		&d.Status,
		&method,
		&disputeReason,
		&resolutionNote,
		&resolvedBy,
		&paidAt,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}

	d.PaymentMethod = domain.PaymentMethod(stringOf(method))
	d.DisputeReason = stringOf(disputeReason)
	d.ResolutionNote = stringOf(resolutionNote)
	d.ResolvedBy = stringOf(resolvedBy)
	d.PaidAt = timeOf(paidAt)

	return &d, nil
}
