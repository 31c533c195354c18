package postgres

import (
	"context"
	"database/sql"

	"bikerental/internal/domain"
)

// PaymentRepository is a PostgreSQL implementation of repository.PaymentRepository.
type PaymentRepository struct {
	q Querier
}

const paymentColumns = `id, target_type, target_id, payer_id, method, amount, status, transaction_reference,
	failure_reason, refund_amount, refunded_at, completed_at, created_at, updated_at`

// Create persists a new payment.
func (r *PaymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.q.ExecContext(ctx, query,
		p.ID,
		p.TargetType,
		p.TargetID,
		p.PayerID,
		p.Method,
		p.Amount,
		p.Status,
		nullString(p.TransactionReference),
		nullString(p.FailureReason),
		p.RefundAmount,
		nullTime(p.RefundedAt),
		nullTime(p.CompletedAt),
		p.CreatedAt,
		p.UpdatedAt,
	)

	return mapError(err)
}

// GetByID retrieves a payment by ID.
func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	return scanPayment(r.q.QueryRowContext(ctx, query, id))
}

// GetByReference retrieves the payment holding a gateway reference.
func (r *PaymentRepository) GetByReference(ctx context.Context, reference string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE transaction_reference = $1`
	return scanPayment(r.q.QueryRowContext(ctx, query, reference))
}

// GetByReferenceForUpdate retrieves the payment holding a gateway reference
// and locks its row, serializing concurrent confirmations.
func (r *PaymentRepository) GetByReferenceForUpdate(ctx context.Context, reference string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE transaction_reference = $1 FOR UPDATE`
	return scanPayment(r.q.QueryRowContext(ctx, query, reference))
}

// ListByTarget returns every attempt for a target, oldest first.
func (r *PaymentRepository) ListByTarget(ctx context.Context, target domain.PaymentTarget, targetID string) ([]*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE target_type = $1 AND target_id = $2 ORDER BY created_at ASC`

	rows, err := r.q.QueryContext(ctx, query, target, targetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*domain.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	return payments, rows.Err()
}

// Update overwrites the mutable fields of a payment.
func (r *PaymentRepository) Update(ctx context.Context, p *domain.Payment) error {
	query := `
		UPDATE payments
		SET status = $1, transaction_reference = $2, failure_reason = $3, refund_amount = $4,
			refunded_at = $5, completed_at = $6, updated_at = $7
		WHERE id = $8
	`

	return mustAffect(r.q.ExecContext(ctx, query,
		p.Status,
		nullString(p.TransactionReference),
		nullString(p.FailureReason),
		p.RefundAmount,
		nullTime(p.RefundedAt),
		nullTime(p.CompletedAt),
		p.UpdatedAt,
		p.ID,
	))
}

func scanPayment(row rowScanner) (*domain.Payment, error) {
	var p domain.Payment
	var reference, failure sql.NullString
	var refundedAt, completedAt sql.NullTime

	err := row.Scan(
		&p.ID,
		&p.TargetType,
		&p.TargetID,
		&p.PayerID,
		&p.Method,
		&p.Amount,
		&p.Status,
		&reference,
		&failure,
		&p.RefundAmount,
		&refundedAt,
		&completedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}

	p.TransactionReference = stringOf(reference)
	p.FailureReason = stringOf(failure)
	p.RefundedAt = timeOf(refundedAt)
	p.CompletedAt = timeOf(completedAt)

	return &p, nil
}
