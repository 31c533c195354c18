package tests

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bikerental/internal/domain"
	"bikerental/internal/repository/memory"
	"bikerental/internal/service"
)

// harness wires every service against one in-memory store and a fixed clock.
type harness struct {
	t   *testing.T
	ctx context.Context
	now time.Time

	store *memory.Store
	sink  *RecordingSink
	gw    *MockGateway
	locks *MockLockStore
	live  *MockLocationStore

	policy    service.Policy
	bookings  *service.BookingService
	payments  *service.PaymentService
	ledger    *service.LedgerService
	avail     *service.AvailabilityService
	disputes  *service.DisputeService
	drafts    *service.DraftService
	locations *service.LocationService
	receipts  *service.ReceiptService
	bikes     *service.BikeService
	users     *service.UserService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		t:     t,
		ctx:   context.Background(),
		now:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		store: memory.NewStore(),
		sink:  NewRecordingSink(),
		gw:    NewMockGateway(),
		locks: NewMockLockStore(),
		live:  NewMockLocationStore(),
	}
	clock := func() time.Time { return h.now }

	logger := zap.NewNop()
	h.policy = service.DefaultPolicy()
	h.policy.BikeLockRetryDelay = time.Millisecond
	notifier := service.NewNotificationService(h.sink, logger)

	h.bookings = service.NewBookingService(h.store, h.locks, h.live, notifier, h.policy, logger).WithClock(clock)
	h.payments = service.NewPaymentService(h.store, h.gw, notifier, h.policy, logger).WithClock(clock)
	h.ledger = service.NewLedgerService(h.store).WithClock(clock)
	h.avail = service.NewAvailabilityService(h.store)
	h.disputes = service.NewDisputeService(h.store, notifier, logger).WithClock(clock)
	h.drafts = service.NewDraftService(h.store, service.NewMemoryDraftStore(), h.bookings, h.policy, logger).WithClock(clock)
	h.locations = service.NewLocationService(h.store, h.live, notifier, logger).WithClock(clock)
	h.receipts = service.NewReceiptService(h.store).WithClock(clock)
	h.bikes = service.NewBikeService(h.store, logger)
	h.users = service.NewUserService(h.store, logger, false)

	return h
}

var admin = domain.Actor{UserID: "admin-1", Roles: []domain.Role{domain.RoleAdmin}}

// addUser stores a user with a verified phone and returns its actor.
func (h *harness) addUser(id string, roles ...domain.Role) domain.Actor {
	h.t.Helper()

	u := &domain.User{
		ID:            id,
		Name:          id,
		Email:         id + "@example.com",
		PhoneVerified: true,
		Verification:  domain.VerificationVerified,
		IsRenter:      true,
		CreatedAt:     h.now,
	}
	for _, r := range roles {
		switch r {
		case domain.RoleOwner:
			u.IsOwner = true
		case domain.RoleAdmin:
			u.IsAdmin = true
		}
	}
	require.NoError(h.t, h.store.Repos().Users.Create(h.ctx, u))
	return domain.Actor{UserID: id, Roles: service.Roles(u)}
}

func (h *harness) addBike(owner domain.Actor, quantity int, hourlyRate int64) *domain.Bike {
	h.t.Helper()

	bike, err := h.bikes.CreateBike(h.ctx, owner, service.CreateBikeRequest{
		Name:       "City Bike",
		HourlyRate: decimal.NewFromInt(hourlyRate),
		DailyRate:  decimal.NewFromInt(hourlyRate * 10),
		Quantity:   quantity,
	})
	require.NoError(h.t, err)
	return bike
}

func (h *harness) fund(userID string, amount int64) {
	h.t.Helper()

	_, err := h.ledger.Credit(h.ctx, userID, decimal.NewFromInt(amount), domain.TxLoad, "seed-"+uuid.New().String())
	require.NoError(h.t, err)
}

func (h *harness) balance(userID string) decimal.Decimal {
	h.t.Helper()

	b, err := h.ledger.Balance(h.ctx, userID)
	require.NoError(h.t, err)
	return b
}

func (h *harness) bookingRequest(bikeID string, quantity, hours int) service.CreateBookingRequest {
	start := h.now.Add(time.Hour)
	return service.CreateBookingRequest{
		BikeID:    bikeID,
		Quantity:  quantity,
		StartDate: start,
		EndDate:   start.Add(time.Duration(hours) * time.Hour),
		RateType:  domain.RateHourly,
	}
}

func (h *harness) book(renter domain.Actor, bikeID string, quantity, hours int) *domain.Booking {
	h.t.Helper()

	b, err := h.bookings.CreateBooking(h.ctx, renter, h.bookingRequest(bikeID, quantity, hours))
	require.NoError(h.t, err)
	return b
}

func (h *harness) payWithWallet(renter domain.Actor, b *domain.Booking) *domain.Payment {
	h.t.Helper()

	p, err := h.payments.ProcessPayment(h.ctx, renter, service.PaymentRequest{
		Target:   domain.PaymentTargetBooking,
		TargetID: b.ID,
		Method:   domain.PaymentMethodWallet,
		Amount:   b.TotalAmount,
	})
	require.NoError(h.t, err)
	return p
}

// activeBooking funds the renter, books, pays by wallet and accepts.
func (h *harness) activeBooking(renter, owner domain.Actor, bikeID string, quantity, hours int) *domain.Booking {
	h.t.Helper()

	b := h.book(renter, bikeID, quantity, hours)
	h.fund(renter.UserID, b.TotalAmount.IntPart()+1)
	h.payWithWallet(renter, b)

	accepted, err := h.bookings.AcceptBooking(h.ctx, owner, b.ID)
	require.NoError(h.t, err)
	require.Equal(h.t, domain.BookingStatusActive, accepted.Status)
	return accepted
}

func (h *harness) reload(bookingID string) *domain.Booking {
	h.t.Helper()

	b, err := h.store.Repos().Bookings.GetByID(h.ctx, bookingID)
	require.NoError(h.t, err)
	return b
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
