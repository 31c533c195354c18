package postgres

import (
	"context"
	"database/sql"
	"time"

	"bikerental/internal/repository"
)

// Store is a PostgreSQL implementation of repository.Store.
type Store struct {
	db *sql.DB
}

// NewStore creates a new PostgreSQL store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Repos returns repositories bound to the connection pool.
func (s *Store) Repos() repository.Repositories {
	return reposFor(s.db)
}

const (
	txAttempts   = 3
	txRetryDelay = 20 * time.Millisecond
)

// WithinTx runs fn in a READ COMMITTED transaction. Invariants that span rows
// are protected with explicit row locks taken by the *ForUpdate reads, always
// in the order target row, payment rows, wallets by user id. A transaction
// that still loses a deadlock is rerun; fn must not have side effects outside
// the transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	var err error
	for attempt := 1; attempt <= txAttempts; attempt++ {
		err = s.runTx(ctx, fn)
		if err == nil || !isConflict(err) {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * txRetryDelay):
		}
	}
	return mapError(err)
}

func (s *Store) runTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) (err error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(ctx, reposFor(tx)); err != nil {
		return err
	}

	return tx.Commit()
}

func reposFor(q Querier) repository.Repositories {
	return repository.Repositories{
		Users:     &UserRepository{q: q},
		Bikes:     &BikeRepository{q: q},
		Bookings:  &BookingRepository{q: q},
		Payments:  &PaymentRepository{q: q},
		Wallets:   &WalletRepository{q: q},
		Points:    &PointsRepository{q: q},
		Damages:   &DamageRepository{q: q},
		Flags:     &FlagRepository{q: q},
		Locations: &LocationRepository{q: q},
	}
}

// Ensure interfaces are satisfied.
var _ repository.Store = (*Store)(nil)
