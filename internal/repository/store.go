package repository

import "context"

// Repositories groups the per-entity repositories bound to one connection or
// one transaction.
type Repositories struct {
	Users     UserRepository
	Bikes     BikeRepository
	Bookings  BookingRepository
	Payments  PaymentRepository
	Wallets   WalletRepository
	Points    PointsRepository
	Damages   DamageRepository
	Flags     FlagRepository
	Locations LocationRepository
}

// Store is the unit-of-work boundary of the persistence layer.
type Store interface {
	// Repos returns repositories that run each call on its own.
	Repos() Repositories

	// WithinTx runs fn inside a single transaction. The transaction commits
	// when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
