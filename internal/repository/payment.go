package repository

import (
	"context"

	"bikerental/internal/domain"
)

// PaymentRepository defines the persistence operations for payments.
type PaymentRepository interface {
	// Create persists a new payment.
	Create(ctx context.Context, payment *domain.Payment) error

	// GetByID retrieves a payment by ID.
	GetByID(ctx context.Context, id string) (*domain.Payment, error)

	// GetByReferenceForUpdate retrieves the payment holding the given gateway
	// reference and locks its row.
	GetByReferenceForUpdate(ctx context.Context, reference string) (*domain.Payment, error)

	// GetByReference retrieves the payment holding the given gateway reference.
	GetByReference(ctx context.Context, reference string) (*domain.Payment, error)

	// ListByTarget returns every attempt for a target, oldest first.
	ListByTarget(ctx context.Context, target domain.PaymentTarget, targetID string) ([]*domain.Payment, error)

	// Update overwrites the mutable fields of a payment.
	Update(ctx context.Context, payment *domain.Payment) error
}
