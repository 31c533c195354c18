package repository

import (
	"context"

	"bikerental/internal/domain"
)

// WalletRepository defines the persistence operations for wallets and their
// append-only transaction log.
type WalletRepository interface {
	// GetOrCreateForUpdate returns the user's wallet, creating an empty one if
	// needed, and locks its row.
	GetOrCreateForUpdate(ctx context.Context, userID string) (*domain.Wallet, error)

	// GetByUserID retrieves the user's wallet.
	GetByUserID(ctx context.Context, userID string) (*domain.Wallet, error)

	// UpdateBalance stores a new balance for a locked wallet.
	UpdateBalance(ctx context.Context, wallet *domain.Wallet) error

	// AppendTransaction appends a ledger entry. Entries are never updated.
	AppendTransaction(ctx context.Context, tx *domain.CreditTransaction) error

	// FindTransaction returns the entry with the given type and reference, or nil.
	FindTransaction(ctx context.Context, walletID string, txType domain.TransactionType, referenceID string) (*domain.CreditTransaction, error)

	// ListTransactions returns the wallet's entries, newest first.
	ListTransactions(ctx context.Context, walletID string, limit int) ([]*domain.CreditTransaction, error)
}

// PointsRepository defines the persistence operations for loyalty points.
type PointsRepository interface {
	// GetOrCreateForUpdate returns the user's points row and locks it.
	GetOrCreateForUpdate(ctx context.Context, userID string) (*domain.Points, error)

	// GetByUserID retrieves the user's points row.
	GetByUserID(ctx context.Context, userID string) (*domain.Points, error)

	// UpdateBalance stores a new balance for a locked points row.
	UpdateBalance(ctx context.Context, points *domain.Points) error

	// AppendHistory appends a points ledger entry.
	AppendHistory(ctx context.Context, entry *domain.PointsHistory) error

	// FindHistory returns the entry with the given reason and reference, or nil.
	FindHistory(ctx context.Context, pointsID string, reason domain.PointsReason, referenceID string) (*domain.PointsHistory, error)

	// ListHistory returns the entries, newest first.
	ListHistory(ctx context.Context, pointsID string, limit int) ([]*domain.PointsHistory, error)
}
