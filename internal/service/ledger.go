package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bikerental/internal/domain"
	"bikerental/internal/repository"
)

// LedgerService owns wallet and loyalty point balances. Balances change only
// by appending an entry under the owning row's lock.
type LedgerService struct {
	store repository.Store
	clock func() time.Time
}

// NewLedgerService creates a new LedgerService.
func NewLedgerService(store repository.Store) *LedgerService {
	return &LedgerService{store: store, clock: time.Now}
}

// WithClock replaces the time source.
func (s *LedgerService) WithClock(clock func() time.Time) *LedgerService {
	s.clock = clock
	return s
}

// Credit adds amount to the user's wallet.
func (s *LedgerService) Credit(ctx context.Context, userID string, amount decimal.Decimal, txType domain.TransactionType, referenceID string) (*domain.CreditTransaction, error) {
	if err := validateEntry(amount, txType, referenceID); err != nil {
		return nil, err
	}

	var entry *domain.CreditTransaction
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		entry, err = postEntry(ctx, repos, s.clock(), userID, amount, txType, referenceID)
		return err
	})
	return entry, err
}

// Debit removes amount from the user's wallet. It is rejected, with nothing
// written, if the balance would go negative.
func (s *LedgerService) Debit(ctx context.Context, userID string, amount decimal.Decimal, txType domain.TransactionType, referenceID string) (*domain.CreditTransaction, error) {
	if err := validateEntry(amount, txType, referenceID); err != nil {
		return nil, err
	}

	var entry *domain.CreditTransaction
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		entry, err = postEntry(ctx, repos, s.clock(), userID, amount.Neg(), txType, referenceID)
		return err
	})
	return entry, err
}

func validateEntry(amount decimal.Decimal, txType domain.TransactionType, referenceID string) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !txType.Valid() {
		return fmt.Errorf("%w: unknown transaction type %q", ErrInvalidAmount, txType)
	}
	if referenceID == "" {
		return ErrInvalidReference
	}
	return nil
}

// postEntry applies a signed amount to a wallet inside the caller's
// transaction. A repeated (wallet, type, reference) returns the original entry
// and changes nothing.
func postEntry(ctx context.Context, repos repository.Repositories, now time.Time, userID string, amount decimal.Decimal, txType domain.TransactionType, referenceID string) (*domain.CreditTransaction, error) {
	wallet, err := repos.Wallets.GetOrCreateForUpdate(ctx, userID)
	if err != nil {
		return nil, err
	}

	existing, err := repos.Wallets.FindTransaction(ctx, wallet.ID, txType, referenceID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	before := wallet.Balance
	after := before.Add(amount)
	if after.IsNegative() {
		return nil, fmt.Errorf("%w: balance %s, required %s", ErrInsufficientFunds, before.StringFixed(2), amount.Neg().StringFixed(2))
	}

	entry := &domain.CreditTransaction{
		ID:            uuid.New().String(),
		WalletID:      wallet.ID,
		UserID:        userID,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		Type:          txType,
		ReferenceID:   referenceID,
		CreatedAt:     now,
	}

	wallet.Balance = after
	wallet.UpdatedAt = now
	if err := repos.Wallets.UpdateBalance(ctx, wallet); err != nil {
		return nil, err
	}
	if err := repos.Wallets.AppendTransaction(ctx, entry); err != nil {
		return nil, err
	}

	return entry, nil
}

// transfer moves amount between two wallets as a pair of entries sharing a
// reference. Both wallets are locked up front in user id order so opposite
// transfers between the same pair cannot deadlock.
func transfer(ctx context.Context, repos repository.Repositories, now time.Time, fromUserID, toUserID string, amount decimal.Decimal, debitType, creditType domain.TransactionType, referenceID string) error {
	first, second := fromUserID, toUserID
	if second < first {
		first, second = second, first
	}
	for _, userID := range []string{first, second} {
		if _, err := repos.Wallets.GetOrCreateForUpdate(ctx, userID); err != nil {
			return err
		}
	}

	if _, err := postEntry(ctx, repos, now, fromUserID, amount.Neg(), debitType, referenceID); err != nil {
		return err
	}
	_, err := postEntry(ctx, repos, now, toUserID, amount, creditType, referenceID)
	return err
}

// Balance returns the user's wallet balance. Users without a wallet have zero.
func (s *LedgerService) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	wallet, err := s.store.Repos().Wallets.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return wallet.Balance, nil
}

// Transactions returns the user's wallet entries, newest first.
func (s *LedgerService) Transactions(ctx context.Context, userID string, limit int) ([]*domain.CreditTransaction, error) {
	repos := s.store.Repos()

	wallet, err := repos.Wallets.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return []*domain.CreditTransaction{}, nil
		}
		return nil, err
	}
	return repos.Wallets.ListTransactions(ctx, wallet.ID, limit)
}

// ──────────────────────────────────────────────
// LOYALTY POINTS
// ──────────────────────────────────────────────

// Points returns the user's loyalty balance.
func (s *LedgerService) Points(ctx context.Context, userID string) (int64, error) {
	points, err := s.store.Repos().Points.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return points.Balance, nil
}

// PointsHistory returns the user's points entries, newest first.
func (s *LedgerService) PointsHistory(ctx context.Context, userID string, limit int) ([]*domain.PointsHistory, error) {
	repos := s.store.Repos()

	points, err := repos.Points.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return []*domain.PointsHistory{}, nil
		}
		return nil, err
	}
	return repos.Points.ListHistory(ctx, points.ID, limit)
}

// AwardPoints adds points to the user's balance.
func (s *LedgerService) AwardPoints(ctx context.Context, userID string, amount int64, reason domain.PointsReason, referenceID string) (*domain.PointsHistory, error) {
	if amount <= 0 || !reason.Valid() {
		return nil, ErrInvalidAmount
	}
	if referenceID == "" {
		return nil, ErrInvalidReference
	}

	var entry *domain.PointsHistory
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		entry, err = postPoints(ctx, repos, s.clock(), userID, amount, reason, referenceID)
		return err
	})
	return entry, err
}

// RedeemPoints spends points. It never drives the balance negative.
func (s *LedgerService) RedeemPoints(ctx context.Context, userID string, amount int64, referenceID string) (*domain.PointsHistory, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if referenceID == "" {
		return nil, ErrInvalidReference
	}

	var entry *domain.PointsHistory
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		entry, err = postPoints(ctx, repos, s.clock(), userID, -amount, domain.PointsRedemption, referenceID)
		return err
	})
	return entry, err
}

func postPoints(ctx context.Context, repos repository.Repositories, now time.Time, userID string, amount int64, reason domain.PointsReason, referenceID string) (*domain.PointsHistory, error) {
	points, err := repos.Points.GetOrCreateForUpdate(ctx, userID)
	if err != nil {
		return nil, err
	}

	existing, err := repos.Points.FindHistory(ctx, points.ID, reason, referenceID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	before := points.Balance
	after := before + amount
	if after < 0 {
		return nil, fmt.Errorf("%w: balance %d, required %d", ErrInsufficientPoints, before, -amount)
	}

	entry := &domain.PointsHistory{
		ID:            uuid.New().String(),
		PointsID:      points.ID,
		UserID:        userID,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		Reason:        reason,
		ReferenceID:   referenceID,
		CreatedAt:     now,
	}

	points.Balance = after
	points.UpdatedAt = now
	if err := repos.Points.UpdateBalance(ctx, points); err != nil {
		return nil, err
	}
	if err := repos.Points.AppendHistory(ctx, entry); err != nil {
		return nil, err
	}

	return entry, nil
}
