package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"bikerental/internal/domain"
	"bikerental/internal/repository"
)

func limitOrDefault(limit int) int {
	if limit <= 0 || limit > 500 {
		return 100
	}
	return limit
}

// newestFirst sorts rows by descending insertion order and truncates to limit.
func newestFirst[T any](rows []row[T], limit int) []*T {
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })
	if len(rows) > limit {
		rows = rows[:limit]
	}
	out := make([]*T, 0, len(rows))
	for i := range rows {
		v := rows[i].v
		out = append(out, &v)
	}
	return out
}

func oldestFirst[T any](rows []row[T]) []*T {
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	out := make([]*T, 0, len(rows))
	for i := range rows {
		v := rows[i].v
		out = append(out, &v)
	}
	return out
}

// ──────────────────────────────────────────────
// USERS
// ──────────────────────────────────────────────

type userRepo struct{ v *view }

func (r *userRepo) Create(ctx context.Context, user *domain.User) error {
	return r.v.do(func(st *state) error {
		if _, ok := st.users[user.ID]; ok {
			return fmt.Errorf("%w: duplicate user %s", repository.ErrConstraint, user.ID)
		}
		st.users[user.ID] = row[domain.User]{v: *user, seq: st.next()}
		return nil
	})
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var out *domain.User
	err := r.v.do(func(st *state) error {
		u, ok := st.users[id]
		if !ok || u.v.IsDeleted {
			return repository.ErrNotFound
		}
		user := u.v
		out = &user
		return nil
	})
	return out, err
}

func (r *userRepo) Update(ctx context.Context, user *domain.User) error {
	return r.v.do(func(st *state) error {
		existing, ok := st.users[user.ID]
		if !ok || existing.v.IsDeleted {
			return repository.ErrNotFound
		}
		st.users[user.ID] = row[domain.User]{v: *user, seq: existing.seq}
		return nil
	})
}

// ──────────────────────────────────────────────
// BIKES
// ──────────────────────────────────────────────

type bikeRepo struct{ v *view }

func (r *bikeRepo) Create(ctx context.Context, bike *domain.Bike) error {
	return r.v.do(func(st *state) error {
		if _, ok := st.bikes[bike.ID]; ok {
			return fmt.Errorf("%w: duplicate bike %s", repository.ErrConstraint, bike.ID)
		}
		if bike.Quantity < 1 {
			return fmt.Errorf("%w: bike quantity must be positive", repository.ErrConstraint)
		}
		st.bikes[bike.ID] = row[domain.Bike]{v: *bike, seq: st.next()}
		return nil
	})
}

func (r *bikeRepo) GetByID(ctx context.Context, id string) (*domain.Bike, error) {
	var out *domain.Bike
	err := r.v.do(func(st *state) error {
		b, ok := st.bikes[id]
		if !ok || b.v.IsDeleted {
			return repository.ErrNotFound
		}
		bike := b.v
		out = &bike
		return nil
	})
	return out, err
}

// GetForUpdate is GetByID; the store-wide transaction lock already excludes
// concurrent writers.
func (r *bikeRepo) GetForUpdate(ctx context.Context, id string) (*domain.Bike, error) {
	return r.GetByID(ctx, id)
}

func (r *bikeRepo) Update(ctx context.Context, bike *domain.Bike) error {
	return r.v.do(func(st *state) error {
		existing, ok := st.bikes[bike.ID]
		if !ok || existing.v.IsDeleted {
			return repository.ErrNotFound
		}
		if bike.Quantity < 1 {
			return fmt.Errorf("%w: bike quantity must be positive", repository.ErrConstraint)
		}
		st.bikes[bike.ID] = row[domain.Bike]{v: *bike, seq: existing.seq}
		return nil
	})
}

// ──────────────────────────────────────────────
// BOOKINGS
// ──────────────────────────────────────────────

type bookingRepo struct{ v *view }

func (r *bookingRepo) Create(ctx context.Context, booking *domain.Booking) error {
	return r.v.do(func(st *state) error {
		if _, ok := st.bookings[booking.ID]; ok {
			return fmt.Errorf("%w: duplicate booking %s", repository.ErrConstraint, booking.ID)
		}
		if !booking.TotalAmount.Equal(booking.BaseRate.Add(booking.ServiceFee)) {
			return fmt.Errorf("%w: total amount mismatch", repository.ErrConstraint)
		}
		st.bookings[booking.ID] = row[domain.Booking]{v: *booking, seq: st.next()}
		return nil
	})
}

func (r *bookingRepo) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	var out *domain.Booking
	err := r.v.do(func(st *state) error {
		b, ok := st.bookings[id]
		if !ok {
			return repository.ErrNotFound
		}
		booking := b.v
		out = &booking
		return nil
	})
	return out, err
}

func (r *bookingRepo) GetForUpdate(ctx context.Context, id string) (*domain.Booking, error) {
	return r.GetByID(ctx, id)
}

func (r *bookingRepo) Update(ctx context.Context, booking *domain.Booking) error {
	return r.v.do(func(st *state) error {
		existing, ok := st.bookings[booking.ID]
		if !ok {
			return repository.ErrNotFound
		}
		st.bookings[booking.ID] = row[domain.Booking]{v: *booking, seq: existing.seq}
		return nil
	})
}

func (r *bookingRepo) ListByRenter(ctx context.Context, renterID string, limit int) ([]*domain.Booking, error) {
	return r.list(func(b *domain.Booking) bool { return b.RenterID == renterID }, limit)
}

func (r *bookingRepo) ListByOwner(ctx context.Context, ownerID string, limit int) ([]*domain.Booking, error) {
	return r.list(func(b *domain.Booking) bool { return b.OwnerID == ownerID }, limit)
}

func (r *bookingRepo) list(match func(*domain.Booking) bool, limit int) ([]*domain.Booking, error) {
	var out []*domain.Booking
	err := r.v.do(func(st *state) error {
		var rows []row[domain.Booking]
		for _, b := range st.bookings {
			if match(&b.v) {
				rows = append(rows, b)
			}
		}
		out = newestFirst(rows, limitOrDefault(limit))
		return nil
	})
	return out, err
}

func (r *bookingRepo) ReservationFor(ctx context.Context, bikeID string) (repository.Reservation, error) {
	var res repository.Reservation
	err := r.v.do(func(st *state) error {
		for _, b := range st.bookings {
			if b.v.BikeID != bikeID {
				continue
			}
			switch {
			case b.v.IsReportedLost:
				res.Lost += b.v.Quantity
			case b.v.Status.Reserving():
				res.Reserved += b.v.Quantity
			}
		}
		return nil
	})
	return res, err
}

func (r *bookingRepo) HasCompletedBooking(ctx context.Context, renterID string) (bool, error) {
	var found bool
	err := r.v.do(func(st *state) error {
		for _, b := range st.bookings {
			if b.v.RenterID == renterID && b.v.Status == domain.BookingStatusCompleted {
				found = true
				return nil
			}
		}
		return nil
	})
	return found, err
}

// ──────────────────────────────────────────────
// PAYMENTS
// ──────────────────────────────────────────────

type paymentRepo struct{ v *view }

func (r *paymentRepo) Create(ctx context.Context, payment *domain.Payment) error {
	return r.v.do(func(st *state) error {
		if _, ok := st.payments[payment.ID]; ok {
			return fmt.Errorf("%w: duplicate payment %s", repository.ErrConstraint, payment.ID)
		}
		if err := checkPaymentUniqueness(st, payment); err != nil {
			return err
		}
		st.payments[payment.ID] = row[domain.Payment]{v: *payment, seq: st.next()}
		return nil
	})
}

// checkPaymentUniqueness mirrors the partial unique indexes of the SQL schema.
func checkPaymentUniqueness(st *state, payment *domain.Payment) error {
	for id, p := range st.payments {
		if id == payment.ID {
			continue
		}
		if payment.TransactionReference != "" && p.v.TransactionReference == payment.TransactionReference {
			return fmt.Errorf("%w: duplicate transaction reference", repository.ErrConstraint)
		}
		if payment.Status == domain.PaymentStatusCompleted && p.v.Status == domain.PaymentStatusCompleted &&
			p.v.TargetType == payment.TargetType && p.v.TargetID == payment.TargetID {
			return fmt.Errorf("%w: target already has a completed payment", repository.ErrConstraint)
		}
	}
	return nil
}

func (r *paymentRepo) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	var out *domain.Payment
	err := r.v.do(func(st *state) error {
		p, ok := st.payments[id]
		if !ok {
			return repository.ErrNotFound
		}
		payment := p.v
		out = &payment
		return nil
	})
	return out, err
}

func (r *paymentRepo) GetByReference(ctx context.Context, reference string) (*domain.Payment, error) {
	var out *domain.Payment
	err := r.v.do(func(st *state) error {
		for _, p := range st.payments {
			if reference != "" && p.v.TransactionReference == reference {
				payment := p.v
				out = &payment
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r *paymentRepo) GetByReferenceForUpdate(ctx context.Context, reference string) (*domain.Payment, error) {
	return r.GetByReference(ctx, reference)
}

func (r *paymentRepo) ListByTarget(ctx context.Context, target domain.PaymentTarget, targetID string) ([]*domain.Payment, error) {
	var out []*domain.Payment
	err := r.v.do(func(st *state) error {
		var rows []row[domain.Payment]
		for _, p := range st.payments {
			if p.v.TargetType == target && p.v.TargetID == targetID {
				rows = append(rows, p)
			}
		}
		out = oldestFirst(rows)
		return nil
	})
	return out, err
}

func (r *paymentRepo) Update(ctx context.Context, payment *domain.Payment) error {
	return r.v.do(func(st *state) error {
		existing, ok := st.payments[payment.ID]
		if !ok {
			return repository.ErrNotFound
		}
		if err := checkPaymentUniqueness(st, payment); err != nil {
			return err
		}
		st.payments[payment.ID] = row[domain.Payment]{v: *payment, seq: existing.seq}
		return nil
	})
}

// ──────────────────────────────────────────────
// WALLETS
// ──────────────────────────────────────────────

type walletRepo struct{ v *view }

func (r *walletRepo) GetOrCreateForUpdate(ctx context.Context, userID string) (*domain.Wallet, error) {
	var out *domain.Wallet
	err := r.v.do(func(st *state) error {
		w, ok := st.wallets[userID]
		if !ok {
			now := time.Now()
			w = row[domain.Wallet]{
				v:   domain.Wallet{ID: uuid.New().String(), UserID: userID, CreatedAt: now, UpdatedAt: now},
				seq: st.next(),
			}
			st.wallets[userID] = w
		}
		wallet := w.v
		out = &wallet
		return nil
	})
	return out, err
}

func (r *walletRepo) GetByUserID(ctx context.Context, userID string) (*domain.Wallet, error) {
	var out *domain.Wallet
	err := r.v.do(func(st *state) error {
		w, ok := st.wallets[userID]
		if !ok {
			return repository.ErrNotFound
		}
		wallet := w.v
		out = &wallet
		return nil
	})
	return out, err
}

func (r *walletRepo) UpdateBalance(ctx context.Context, wallet *domain.Wallet) error {
	return r.v.do(func(st *state) error {
		existing, ok := st.wallets[wallet.UserID]
		if !ok || existing.v.ID != wallet.ID {
			return repository.ErrNotFound
		}
		if wallet.Balance.IsNegative() {
			return fmt.Errorf("%w: wallet balance cannot be negative", repository.ErrConstraint)
		}
		existing.v.Balance = wallet.Balance
		existing.v.UpdatedAt = wallet.UpdatedAt
		st.wallets[wallet.UserID] = existing
		return nil
	})
}

func (r *walletRepo) AppendTransaction(ctx context.Context, tx *domain.CreditTransaction) error {
	return r.v.do(func(st *state) error {
		for _, existing := range st.walletTxs[tx.WalletID] {
			if existing.Type == tx.Type && existing.ReferenceID == tx.ReferenceID {
				return fmt.Errorf("%w: duplicate ledger reference", repository.ErrConstraint)
			}
		}
		if !tx.BalanceAfter.Equal(tx.BalanceBefore.Add(tx.Amount)) {
			return fmt.Errorf("%w: ledger snapshot mismatch", repository.ErrConstraint)
		}
		st.walletTxs[tx.WalletID] = append(st.walletTxs[tx.WalletID], *tx)
		return nil
	})
}

func (r *walletRepo) FindTransaction(ctx context.Context, walletID string, txType domain.TransactionType, referenceID string) (*domain.CreditTransaction, error) {
	var out *domain.CreditTransaction
	err := r.v.do(func(st *state) error {
		for _, existing := range st.walletTxs[walletID] {
			if existing.Type == txType && existing.ReferenceID == referenceID {
				tx := existing
				out = &tx
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r *walletRepo) ListTransactions(ctx context.Context, walletID string, limit int) ([]*domain.CreditTransaction, error) {
	var out []*domain.CreditTransaction
	err := r.v.do(func(st *state) error {
		log := st.walletTxs[walletID]
		limit = limitOrDefault(limit)
		for i := len(log) - 1; i >= 0 && len(out) < limit; i-- {
			tx := log[i]
			out = append(out, &tx)
		}
		return nil
	})
	return out, err
}

// ──────────────────────────────────────────────
// POINTS
// ──────────────────────────────────────────────

type pointsRepo struct{ v *view }

func (r *pointsRepo) GetOrCreateForUpdate(ctx context.Context, userID string) (*domain.Points, error) {
	var out *domain.Points
	err := r.v.do(func(st *state) error {
		p, ok := st.points[userID]
		if !ok {
			p = row[domain.Points]{
				v:   domain.Points{ID: uuid.New().String(), UserID: userID, UpdatedAt: time.Now()},
				seq: st.next(),
			}
			st.points[userID] = p
		}
		points := p.v
		out = &points
		return nil
	})
	return out, err
}

func (r *pointsRepo) GetByUserID(ctx context.Context, userID string) (*domain.Points, error) {
	var out *domain.Points
	err := r.v.do(func(st *state) error {
		p, ok := st.points[userID]
		if !ok {
			return repository.ErrNotFound
		}
		points := p.v
		out = &points
		return nil
	})
	return out, err
}

func (r *pointsRepo) UpdateBalance(ctx context.Context, points *domain.Points) error {
	return r.v.do(func(st *state) error {
		existing, ok := st.points[points.UserID]
		if !ok || existing.v.ID != points.ID {
			return repository.ErrNotFound
		}
		if points.Balance < 0 {
			return fmt.Errorf("%w: points balance cannot be negative", repository.ErrConstraint)
		}
		existing.v.Balance = points.Balance
		existing.v.UpdatedAt = points.UpdatedAt
		st.points[points.UserID] = existing
		return nil
	})
}

func (r *pointsRepo) AppendHistory(ctx context.Context, entry *domain.PointsHistory) error {
	return r.v.do(func(st *state) error {
		for _, existing := range st.pointsHistory[entry.PointsID] {
			if existing.Reason == entry.Reason && existing.ReferenceID == entry.ReferenceID {
				return fmt.Errorf("%w: duplicate points reference", repository.ErrConstraint)
			}
		}
		st.pointsHistory[entry.PointsID] = append(st.pointsHistory[entry.PointsID], *entry)
		return nil
	})
}

func (r *pointsRepo) FindHistory(ctx context.Context, pointsID string, reason domain.PointsReason, referenceID string) (*domain.PointsHistory, error) {
	var out *domain.PointsHistory
	err := r.v.do(func(st *state) error {
		for _, existing := range st.pointsHistory[pointsID] {
			if existing.Reason == reason && existing.ReferenceID == referenceID {
				entry := existing
				out = &entry
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r *pointsRepo) ListHistory(ctx context.Context, pointsID string, limit int) ([]*domain.PointsHistory, error) {
	var out []*domain.PointsHistory
	err := r.v.do(func(st *state) error {
		log := st.pointsHistory[pointsID]
		limit = limitOrDefault(limit)
		for i := len(log) - 1; i >= 0 && len(out) < limit; i-- {
			entry := log[i]
			out = append(out, &entry)
		}
		return nil
	})
	return out, err
}

// ──────────────────────────────────────────────
// DAMAGES
// ──────────────────────────────────────────────

type damageRepo struct{ v *view }

func (r *damageRepo) Create(ctx context.Context, damage *domain.BikeDamage) error {
	return r.v.do(func(st *state) error {
		if _, ok := st.damages[damage.ID]; ok {
			return fmt.Errorf("%w: duplicate damage %s", repository.ErrConstraint, damage.ID)
		}
		if !damage.Cost.IsPositive() {
			return fmt.Errorf("%w: damage cost must be positive", repository.ErrConstraint)
		}
		st.damages[damage.ID] = row[domain.BikeDamage]{v: *damage, seq: st.next()}
		return nil
	})
}

func (r *damageRepo) GetByID(ctx context.Context, id string) (*domain.BikeDamage, error) {
	var out *domain.BikeDamage
	err := r.v.do(func(st *state) error {
		d, ok := st.damages[id]
		if !ok {
			return repository.ErrNotFound
		}
		damage := d.v
		out = &damage
		return nil
	})
	return out, err
}

func (r *damageRepo) GetForUpdate(ctx context.Context, id string) (*domain.BikeDamage, error) {
	return r.GetByID(ctx, id)
}

func (r *damageRepo) Update(ctx context.Context, damage *domain.BikeDamage) error {
	return r.v.do(func(st *state) error {
		existing, ok := st.damages[damage.ID]
		if !ok {
			return repository.ErrNotFound
		}
		st.damages[damage.ID] = row[domain.BikeDamage]{v: *damage, seq: existing.seq}
		return nil
	})
}

func (r *damageRepo) ListByBooking(ctx context.Context, bookingID string) ([]*domain.BikeDamage, error) {
	var out []*domain.BikeDamage
	err := r.v.do(func(st *state) error {
		var rows []row[domain.BikeDamage]
		for _, d := range st.damages {
			if d.v.BookingID == bookingID {
				rows = append(rows, d)
			}
		}
		out = oldestFirst(rows)
		return nil
	})
	return out, err
}

// ──────────────────────────────────────────────
// FLAGS AND RED TAGS
// ──────────────────────────────────────────────

type flagRepo struct{ v *view }

func (r *flagRepo) CreateFlag(ctx context.Context, flag *domain.RenterFlag) error {
	return r.v.do(func(st *state) error {
		st.flags = append(st.flags, *flag)
		return nil
	})
}

func (r *flagRepo) ListFlagsByRenter(ctx context.Context, renterID string) ([]*domain.RenterFlag, error) {
	var out []*domain.RenterFlag
	err := r.v.do(func(st *state) error {
		for i := len(st.flags) - 1; i >= 0; i-- {
			if st.flags[i].RenterID == renterID {
				flag := st.flags[i]
				out = append(out, &flag)
			}
		}
		return nil
	})
	return out, err
}

func (r *flagRepo) CreateRedTag(ctx context.Context, tag *domain.RenterRedTag) error {
	return r.v.do(func(st *state) error {
		if tag.IsActive {
			for _, t := range st.redTags {
				if t.v.IsActive && t.v.OwnerID == tag.OwnerID && t.v.RenterID == tag.RenterID {
					return fmt.Errorf("%w: active red tag already exists", repository.ErrConstraint)
				}
			}
		}
		st.redTags[tag.ID] = row[domain.RenterRedTag]{v: *tag, seq: st.next()}
		return nil
	})
}

func (r *flagRepo) GetRedTagForUpdate(ctx context.Context, id string) (*domain.RenterRedTag, error) {
	var out *domain.RenterRedTag
	err := r.v.do(func(st *state) error {
		t, ok := st.redTags[id]
		if !ok {
			return repository.ErrNotFound
		}
		tag := t.v
		out = &tag
		return nil
	})
	return out, err
}

func (r *flagRepo) UpdateRedTag(ctx context.Context, tag *domain.RenterRedTag) error {
	return r.v.do(func(st *state) error {
		existing, ok := st.redTags[tag.ID]
		if !ok {
			return repository.ErrNotFound
		}
		st.redTags[tag.ID] = row[domain.RenterRedTag]{v: *tag, seq: existing.seq}
		return nil
	})
}

func (r *flagRepo) ListActiveRedTags(ctx context.Context, renterID string) ([]*domain.RenterRedTag, error) {
	var out []*domain.RenterRedTag
	err := r.v.do(func(st *state) error {
		var rows []row[domain.RenterRedTag]
		for _, t := range st.redTags {
			if t.v.RenterID == renterID && t.v.IsActive {
				rows = append(rows, t)
			}
		}
		out = newestFirst(rows, len(rows)+1)
		return nil
	})
	return out, err
}

// ──────────────────────────────────────────────
// LOCATIONS
// ──────────────────────────────────────────────

type locationRepo struct{ v *view }

func (r *locationRepo) Append(ctx context.Context, sample *domain.LocationSample) error {
	return r.v.do(func(st *state) error {
		st.locations[sample.BookingID] = append(st.locations[sample.BookingID], *sample)
		return nil
	})
}

func (r *locationRepo) Latest(ctx context.Context, bookingID string) (*domain.LocationSample, error) {
	var out *domain.LocationSample
	err := r.v.do(func(st *state) error {
		for _, s := range st.locations[bookingID] {
			if out == nil || !s.RecordedAt.Before(out.RecordedAt) {
				sample := s
				out = &sample
			}
		}
		return nil
	})
	return out, err
}

func (r *locationRepo) ListInRange(ctx context.Context, bookingID string, from, to time.Time) ([]*domain.LocationSample, error) {
	var out []*domain.LocationSample
	err := r.v.do(func(st *state) error {
		for _, s := range st.locations[bookingID] {
			if s.RecordedAt.Before(from) || s.RecordedAt.After(to) {
				continue
			}
			sample := s
			out = append(out, &sample)
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i].RecordedAt.Before(out[j].RecordedAt) })
		return nil
	})
	return out, err
}
