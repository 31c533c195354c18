package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"bikerental/internal/domain"
	"bikerental/internal/repository"
)

// WalletRepository is a PostgreSQL implementation of repository.WalletRepository.
type WalletRepository struct {
	q Querier
}

// GetOrCreateForUpdate returns the user's wallet and locks its row. Debits and
// credits against one wallet serialize on this lock, so balance snapshots
// never interleave.
func (r *WalletRepository) GetOrCreateForUpdate(ctx context.Context, userID string) (*domain.Wallet, error) {
	insert := `
		INSERT INTO wallets (id, user_id, balance)
		VALUES ($1, $2, 0)
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := r.q.ExecContext(ctx, insert, uuid.New().String(), userID); err != nil {
		return nil, mapError(err)
	}

	query := `SELECT id, user_id, balance, created_at, updated_at FROM wallets WHERE user_id = $1 FOR UPDATE`
	return scanWallet(r.q.QueryRowContext(ctx, query, userID))
}

// GetByUserID retrieves the user's wallet.
func (r *WalletRepository) GetByUserID(ctx context.Context, userID string) (*domain.Wallet, error) {
	query := `SELECT id, user_id, balance, created_at, updated_at FROM wallets WHERE user_id = $1`
	return scanWallet(r.q.QueryRowContext(ctx, query, userID))
}

// UpdateBalance stores a new balance for a locked wallet.
func (r *WalletRepository) UpdateBalance(ctx context.Context, wallet *domain.Wallet) error {
	query := `UPDATE wallets SET balance = $1, updated_at = $2 WHERE id = $3`
	return mustAffect(r.q.ExecContext(ctx, query, wallet.Balance, wallet.UpdatedAt, wallet.ID))
}

// AppendTransaction appends a ledger entry.
func (r *WalletRepository) AppendTransaction(ctx context.Context, tx *domain.CreditTransaction) error {
	query := `
		INSERT INTO credit_transactions (id, wallet_id, user_id, amount, balance_before, balance_after, type, reference_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.q.ExecContext(ctx, query,
		tx.ID,
		tx.WalletID,
		tx.UserID,
		tx.Amount,
		tx.BalanceBefore,
		tx.BalanceAfter,
		tx.Type,
		tx.ReferenceID,
		tx.CreatedAt,
	)

	return mapError(err)
}

// FindTransaction returns the entry with the given type and reference, or nil.
func (r *WalletRepository) FindTransaction(ctx context.Context, walletID string, txType domain.TransactionType, referenceID string) (*domain.CreditTransaction, error) {
	query := `
		SELECT id, wallet_id, user_id, amount, balance_before, balance_after, type, reference_id, created_at
		FROM credit_transactions WHERE wallet_id = $1 AND type = $2 AND reference_id = $3
	`

	tx, err := scanCreditTransaction(r.q.QueryRowContext(ctx, query, walletID, txType, referenceID))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return tx, err
}

// ListTransactions returns the wallet's entries, newest first.
func (r *WalletRepository) ListTransactions(ctx context.Context, walletID string, limit int) ([]*domain.CreditTransaction, error) {
	query := `
		SELECT id, wallet_id, user_id, amount, balance_before, balance_after, type, reference_id, created_at
		FROM credit_transactions WHERE wallet_id = $1
		ORDER BY created_at DESC LIMIT $2
	`

	rows, err := r.q.QueryContext(ctx, query, walletID, limitOrDefault(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []*domain.CreditTransaction
	for rows.Next() {
		tx, err := scanCreditTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func scanWallet(row rowScanner) (*domain.Wallet, error) {
	var w domain.Wallet
	if err := row.Scan(&w.ID, &w.UserID, &w.Balance, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, mapError(err)
	}
	return &w, nil
}

func scanCreditTransaction(row rowScanner) (*domain.CreditTransaction, error) {
	var tx domain.CreditTransaction
	err := row.Scan(
		&tx.ID,
		&tx.WalletID,
		&tx.UserID,
		&tx.Amount,
		&tx.BalanceBefore,
		&tx.BalanceAfter,
		&tx.Type,
		&tx.ReferenceID,
		&tx.CreatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return &tx, nil
}
