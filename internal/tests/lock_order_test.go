package tests

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bikerental/internal/domain"
	"bikerental/internal/repository"
	"bikerental/internal/service"
)

// lockRecorder records every row lock taken inside its transactions as
// "kind:id" in acquisition order.
type lockRecorder struct {
	repository.Store

	mu    sync.Mutex
	locks []string
}

func (r *lockRecorder) record(kind, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locks = append(r.locks, kind+":"+id)
}

func (r *lockRecorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locks = nil
}

func (r *lockRecorder) taken() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.locks...)
}

func (r *lockRecorder) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	return r.Store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		repos.Bookings = recordingBookings{BookingRepository: repos.Bookings, rec: r}
		repos.Payments = recordingPayments{PaymentRepository: repos.Payments, rec: r}
		repos.Wallets = recordingWallets{WalletRepository: repos.Wallets, rec: r}
		return fn(ctx, repos)
	})
}

type recordingBookings struct {
	repository.BookingRepository
	rec *lockRecorder
}

func (b recordingBookings) GetForUpdate(ctx context.Context, id string) (*domain.Booking, error) {
	b.rec.record("booking", id)
	return b.BookingRepository.GetForUpdate(ctx, id)
}

type recordingPayments struct {
	repository.PaymentRepository
	rec *lockRecorder
}

func (p recordingPayments) GetByReferenceForUpdate(ctx context.Context, reference string) (*domain.Payment, error) {
	p.rec.record("payment", reference)
	return p.PaymentRepository.GetByReferenceForUpdate(ctx, reference)
}

type recordingWallets struct {
	repository.WalletRepository
	rec *lockRecorder
}

func (w recordingWallets) GetOrCreateForUpdate(ctx context.Context, userID string) (*domain.Wallet, error) {
	w.rec.record("wallet", userID)
	return w.WalletRepository.GetOrCreateForUpdate(ctx, userID)
}

func indexOf(locks []string, lock string) int {
	for i, l := range locks {
		if l == lock {
			return i
		}
	}
	return -1
}

func TestLockOrder_GatewayConfirmLocksBookingBeforePayment(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	owner := h.addUser("owner-1", domain.RoleOwner)
	renter := h.addUser("renter-1")
	bike := h.addBike(owner, 1, 100)
	b := h.book(renter, bike.ID, 1, 2)
	checkout := h.startGateway(renter, b)

	rec := &lockRecorder{Store: h.store}
	notifier := service.NewNotificationService(h.sink, zap.NewNop())
	payments := service.NewPaymentService(rec, h.gw, notifier, h.policy, zap.NewNop()).
		WithClock(func() time.Time { return h.now })

	result, err := payments.ConfirmGatewayPayment(h.ctx, checkout.IntentID)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentStatusCompleted, result.Payment.Status)

	locks := rec.taken()
	bookingAt := indexOf(locks, "booking:"+b.ID)
	paymentAt := indexOf(locks, "payment:"+checkout.IntentID)
	require.NotEqual(t, -1, bookingAt, "locks: %v", locks)
	require.NotEqual(t, -1, paymentAt, "locks: %v", locks)
	require.Less(t, bookingAt, paymentAt, "locks: %v", locks)
}

func TestLockOrder_TransferLocksWalletsByUserID(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	// escrow -> owner on return, and "owner-1" sorts before the escrow user.
	owner := h.addUser("owner-1", domain.RoleOwner)
	renter := h.addUser("renter-1")
	require.Less(t, owner.UserID, h.policy.EscrowUserID)
	bike := h.addBike(owner, 1, 100)
	b := h.activeBooking(renter, owner, bike.ID, 1, 2)

	rec := &lockRecorder{Store: h.store}
	notifier := service.NewNotificationService(h.sink, zap.NewNop())
	bookings := service.NewBookingService(rec, h.locks, h.live, notifier, h.policy, zap.NewNop()).
		WithClock(func() time.Time { return h.now })

	rec.reset()
	_, err := bookings.ConfirmReturn(h.ctx, owner, b.ID)
	require.NoError(t, err)

	var wallets []string
	for _, l := range rec.taken() {
		if userID, ok := strings.CutPrefix(l, "wallet:"); ok {
			wallets = append(wallets, userID)
		}
	}
	require.NotEmpty(t, wallets)
	require.Equal(t, owner.UserID, wallets[0], "wallet locks: %v", wallets)
	require.True(t, h.balance(owner.UserID).Equal(dec("200")))
}
