// Package memory is an in-process implementation of repository.Store.
//
// Transactions are serialized by a single mutex and run against a copy of the
// state that replaces the live state on commit, which gives the same
// all-or-nothing and row-lock guarantees as the PostgreSQL store. Code running
// inside WithinTx must only use the repositories it is handed; calling Repos()
// or WithinTx again from inside a transaction deadlocks.
package memory

import (
	"context"
	"sync"

	"bikerental/internal/domain"
	"bikerental/internal/repository"
)

type row[T any] struct {
	v   T
	seq int64
}

type state struct {
	seq           int64
	users         map[string]row[domain.User]
	bikes         map[string]row[domain.Bike]
	bookings      map[string]row[domain.Booking]
	payments      map[string]row[domain.Payment]
	wallets       map[string]row[domain.Wallet] // keyed by user id
	walletTxs     map[string][]domain.CreditTransaction
	points        map[string]row[domain.Points] // keyed by user id
	pointsHistory map[string][]domain.PointsHistory
	damages       map[string]row[domain.BikeDamage]
	flags         []domain.RenterFlag
	redTags       map[string]row[domain.RenterRedTag]
	locations     map[string][]domain.LocationSample
}

func newState() *state {
	return &state{
		users:         make(map[string]row[domain.User]),
		bikes:         make(map[string]row[domain.Bike]),
		bookings:      make(map[string]row[domain.Booking]),
		payments:      make(map[string]row[domain.Payment]),
		wallets:       make(map[string]row[domain.Wallet]),
		walletTxs:     make(map[string][]domain.CreditTransaction),
		points:        make(map[string]row[domain.Points]),
		pointsHistory: make(map[string][]domain.PointsHistory),
		damages:       make(map[string]row[domain.BikeDamage]),
		redTags:       make(map[string]row[domain.RenterRedTag]),
		locations:     make(map[string][]domain.LocationSample),
	}
}

func (s *state) next() int64 {
	s.seq++
	return s.seq
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneLog[K comparable, V any](m map[K][]V) map[K][]V {
	out := make(map[K][]V, len(m))
	for k, v := range m {
		out[k] = append([]V(nil), v...)
	}
	return out
}

func (s *state) clone() *state {
	return &state{
		seq:           s.seq,
		users:         cloneMap(s.users),
		bikes:         cloneMap(s.bikes),
		bookings:      cloneMap(s.bookings),
		payments:      cloneMap(s.payments),
		wallets:       cloneMap(s.wallets),
		walletTxs:     cloneLog(s.walletTxs),
		points:        cloneMap(s.points),
		pointsHistory: cloneLog(s.pointsHistory),
		damages:       cloneMap(s.damages),
		flags:         append([]domain.RenterFlag(nil), s.flags...),
		redTags:       cloneMap(s.redTags),
		locations:     cloneLog(s.locations),
	}
}

// Store is an in-memory repository.Store.
type Store struct {
	mu sync.Mutex
	st *state
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{st: newState()}
}

// Repos returns repositories that lock the store for each call.
func (s *Store) Repos() repository.Repositories {
	return reposFor(&view{store: s})
}

// WithinTx runs fn against a private copy of the state and publishes the copy
// only when fn succeeds.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	working := s.st.clone()
	if err := fn(ctx, reposFor(&view{store: s, st: working, inTx: true})); err != nil {
		return err
	}

	s.st = working
	return nil
}

// view resolves which state a repository call operates on.
type view struct {
	store *Store
	st    *state
	inTx  bool
}

func (v *view) do(fn func(st *state) error) error {
	if v.inTx {
		return fn(v.st)
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	return fn(v.store.st)
}

func reposFor(v *view) repository.Repositories {
	return repository.Repositories{
		Users:     &userRepo{v: v},
		Bikes:     &bikeRepo{v: v},
		Bookings:  &bookingRepo{v: v},
		Payments:  &paymentRepo{v: v},
		Wallets:   &walletRepo{v: v},
		Points:    &pointsRepo{v: v},
		Damages:   &damageRepo{v: v},
		Flags:     &flagRepo{v: v},
		Locations: &locationRepo{v: v},
	}
}

// Ensure interfaces are satisfied.
var _ repository.Store = (*Store)(nil)
