package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"bikerental/internal/domain"
	"bikerental/internal/repository"
)

// PointsRepository is a PostgreSQL implementation of repository.PointsRepository.
type PointsRepository struct {
	q Querier
}

// GetOrCreateForUpdate returns the user's points row and locks it.
func (r *PointsRepository) GetOrCreateForUpdate(ctx context.Context, userID string) (*domain.Points, error) {
	insert := `INSERT INTO points (id, user_id, balance) VALUES ($1, $2, 0) ON CONFLICT (user_id) DO NOTHING`
	if _, err := r.q.ExecContext(ctx, insert, uuid.New().String(), userID); err != nil {
		return nil, mapError(err)
	}

	query := `SELECT id, user_id, balance, updated_at FROM points WHERE user_id = $1 FOR UPDATE`
	return scanPoints(r.q.QueryRowContext(ctx, query, userID))
}

// GetByUserID retrieves the user's points row.
func (r *PointsRepository) GetByUserID(ctx context.Context, userID string) (*domain.Points, error) {
	query := `SELECT id, user_id, balance, updated_at FROM points WHERE user_id = $1`
	return scanPoints(r.q.QueryRowContext(ctx, query, userID))
}

// UpdateBalance stores a new balance for a locked points row.
func (r *PointsRepository) UpdateBalance(ctx context.Context, points *domain.Points) error {
	query := `UPDATE points SET balance = $1, updated_at = $2 WHERE id = $3`
	return mustAffect(r.q.ExecContext(ctx, query, points.Balance, points.UpdatedAt, points.ID))
}

// AppendHistory appends a points ledger entry.
func (r *PointsRepository) AppendHistory(ctx context.Context, e *domain.PointsHistory) error {
	query := `
		INSERT INTO points_history (id, points_id, user_id, amount, balance_before, balance_after, reason, reference_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.q.ExecContext(ctx, query,
		e.ID, e.PointsID, e.UserID, e.Amount, e.BalanceBefore, e.BalanceAfter, e.Reason, e.ReferenceID, e.CreatedAt,
	)
	return mapError(err)
}

// FindHistory returns the entry with the given reason and reference, or nil.
func (r *PointsRepository) FindHistory(ctx context.Context, pointsID string, reason domain.PointsReason, referenceID string) (*domain.PointsHistory, error) {
	query := `
		SELECT id, points_id, user_id, amount, balance_before, balance_after, reason, reference_id, created_at
		FROM points_history WHERE points_id = $1 AND reason = $2 AND reference_id = $3
	`

	entry, err := scanPointsHistory(r.q.QueryRowContext(ctx, query, pointsID, reason, referenceID))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return entry, err
}

// ListHistory returns the entries, newest first.
func (r *PointsRepository) ListHistory(ctx context.Context, pointsID string, limit int) ([]*domain.PointsHistory, error) {
	query := `
		SELECT id, points_id, user_id, amount, balance_before, balance_after, reason, reference_id, created_at
		FROM points_history WHERE points_id = $1
		ORDER BY created_at DESC LIMIT $2
	`

	rows, err := r.q.QueryContext(ctx, query, pointsID, limitOrDefault(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.PointsHistory
	for rows.Next() {
		entry, err := scanPointsHistory(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanPoints(row rowScanner) (*domain.Points, error) {
	var p domain.Points
	if err := row.Scan(&p.ID, &p.UserID, &p.Balance, &p.UpdatedAt); err != nil {
		return nil, mapError(err)
	}
	return &p, nil
}

func scanPointsHistory(row rowScanner) (*domain.PointsHistory, error) {
	var e domain.PointsHistory
	err := row.Scan(&e.ID, &e.PointsID, &e.UserID, &e.Amount, &e.BalanceBefore, &e.BalanceAfter, &e.Reason, &e.ReferenceID, &e.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &e, nil
}
