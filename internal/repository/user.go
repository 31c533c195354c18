package repository

import (
	"context"

	"bikerental/internal/domain"
)

// UserRepository defines the persistence operations for users.
// Soft-deleted users are invisible to every read.
type UserRepository interface {
	// Create persists a new user.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// Update overwrites the mutable fields of a user, including the
	// soft-delete flag.
	Update(ctx context.Context, user *domain.User) error
}
