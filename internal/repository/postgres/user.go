package postgres

import (
	"context"

	"bikerental/internal/domain"
)

// UserRepository is a PostgreSQL implementation of repository.UserRepository.
type UserRepository struct {
	q Querier
}

// Create persists a new user.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, name, email, phone, phone_verified, verification_status, is_renter, is_owner, is_admin, is_suspended, is_deleted, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	verification := user.Verification
	if verification == "" {
		verification = domain.VerificationUnverified
	}

	_, err := r.q.ExecContext(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.Phone,
		user.PhoneVerified,
		verification,
		user.IsRenter,
		user.IsOwner,
		user.IsAdmin,
		user.IsSuspended,
		user.IsDeleted,
		user.CreatedAt,
	)

	return mapError(err)
}

// Update overwrites the mutable fields of a user.
func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users
		SET name = $1, email = $2, phone = $3, phone_verified = $4, verification_status = $5,
			is_renter = $6, is_owner = $7, is_admin = $8, is_suspended = $9, is_deleted = $10
		WHERE id = $11 AND NOT is_deleted
	`

	return mustAffect(r.q.ExecContext(ctx, query,
		user.Name,
		user.Email,
		user.Phone,
		user.PhoneVerified,
		user.Verification,
		user.IsRenter,
		user.IsOwner,
		user.IsAdmin,
		user.IsSuspended,
		user.IsDeleted,
		user.ID,
	))
}

// GetByID retrieves a user by ID. Soft-deleted users are not returned.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `
		SELECT id, name, email, phone, phone_verified, verification_status, is_renter, is_owner, is_admin, is_suspended, is_deleted, created_at
		FROM users WHERE id = $1 AND NOT is_deleted
	`

	var user domain.User
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Phone,
		&user.PhoneVerified,
		&user.Verification,
		&user.IsRenter,
		&user.IsOwner,
		&user.IsAdmin,
		&user.IsSuspended,
		&user.IsDeleted,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}

	return &user, nil
}
