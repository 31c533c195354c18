package postgres

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"bikerental/internal/domain"
)

// FlagRepository is a PostgreSQL implementation of repository.FlagRepository.
type FlagRepository struct {
	q Querier
}

// CreateFlag persists a renter flag.
func (r *FlagRepository) CreateFlag(ctx context.Context, f *domain.RenterFlag) error {
	query := `
		INSERT INTO renter_flags (id, booking_id, owner_id, renter_id, reason, description, cost, photo_urls, damage_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.q.ExecContext(ctx, query,
		f.ID,
		f.BookingID,
		f.OwnerID,
		f.RenterID,
		f.Reason,
		f.Description,
		f.Cost,
		pq.Array(f.PhotoURLs),
		nullString(f.DamageID),
		f.CreatedAt,
	)

	return mapError(err)
}

// ListFlagsByRenter returns every flag left against a renter.
func (r *FlagRepository) ListFlagsByRenter(ctx context.Context, renterID string) ([]*domain.RenterFlag, error) {
	query := `
		SELECT id, booking_id, owner_id, renter_id, reason, description, cost, photo_urls, damage_id, created_at
		FROM renter_flags WHERE renter_id = $1 ORDER BY created_at DESC
	`

	rows, err := r.q.QueryContext(ctx, query, renterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var flags []*domain.RenterFlag
	for rows.Next() {
		var f domain.RenterFlag
		var damageID sql.NullString
		if err := rows.Scan(
			&f.ID,
			&f.BookingID,
			&f.OwnerID,
			&f.RenterID,
			&f.Reason,
			&f.Description,
			&f.Cost,
			pq.Array(&f.PhotoURLs),
			&damageID,
			&f.CreatedAt,
		); err != nil {
			return nil, err
		}
		f.DamageID = stringOf(damageID)
		flags = append(flags, &f)
	}
	return flags, rows.Err()
}

const redTagColumns = `id, booking_id, owner_id, renter_id, reason, is_active, resolved_by, resolved_at, resolution_note, created_at`

// CreateRedTag persists a red tag.
func (r *FlagRepository) CreateRedTag(ctx context.Context, t *domain.RenterRedTag) error {
	query := `
		INSERT INTO renter_red_tags (` + redTagColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.q.ExecContext(ctx, query,
		t.ID,
		t.BookingID,
		t.OwnerID,
		t.RenterID,
		t.Reason,
		t.IsActive,
		nullString(t.ResolvedBy),
		nullTime(t.ResolvedAt),
		nullString(t.ResolutionNote),
		t.CreatedAt,
	)

	return mapError(err)
}

// GetRedTagForUpdate retrieves a red tag and locks its row.
func (r *FlagRepository) GetRedTagForUpdate(ctx context.Context, id string) (*domain.RenterRedTag, error) {
	query := `SELECT ` + redTagColumns + ` FROM renter_red_tags WHERE id = $1 FOR UPDATE`
	return scanRedTag(r.q.QueryRowContext(ctx, query, id))
}

// UpdateRedTag stores the resolution of a red tag.
func (r *FlagRepository) UpdateRedTag(ctx context.Context, t *domain.RenterRedTag) error {
	query := `
		UPDATE renter_red_tags
		SET is_active = $1, resolved_by = $2, resolved_at = $3, resolution_note = $4
		WHERE id = $5
	`

	return mustAffect(r.q.ExecContext(ctx, query,
		t.IsActive,
		nullString(t.ResolvedBy),
		nullTime(t.ResolvedAt),
		nullString(t.ResolutionNote),
		t.ID,
	))
}

// ListActiveRedTags returns active tags for the renter across all owners.
func (r *FlagRepository) ListActiveRedTags(ctx context.Context, renterID string) ([]*domain.RenterRedTag, error) {
	query := `SELECT ` + redTagColumns + ` FROM renter_red_tags WHERE renter_id = $1 AND is_active ORDER BY created_at DESC`

	rows, err := r.q.QueryContext(ctx, query, renterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []*domain.RenterRedTag
	for rows.Next() {
		tag, err := scanRedTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

func scanRedTag(row rowScanner) (*domain.RenterRedTag, error) {
	var t domain.RenterRedTag
	var resolvedBy, note sql.NullString
	var resolvedAt sql.NullTime

	err := row.Scan(
		&t.ID,
		&t.BookingID,
		&t.OwnerID,
		&t.RenterID,
		&t.Reason,
		&t.IsActive,
		&resolvedBy,
		&resolvedAt,
		&note,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}

	t.ResolvedBy = stringOf(resolvedBy)
	t.ResolvedAt = timeOf(resolvedAt)
	t.ResolutionNote = stringOf(note)

	return &t, nil
}
