package tests

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bikerental/internal/domain"
	"bikerental/internal/service"
)

// ──────────────────────────────────────────────
// 9. BOOKING DRAFTS
// ──────────────────────────────────────────────

func TestDraft_QuoteThenCommit(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	owner := h.addUser("owner-1", domain.RoleOwner)
	renter := h.addUser("renter-1")
	bike := h.addBike(owner, 3, 100)

	draft, err := h.drafts.StartDraft(h.ctx, renter, h.bookingRequest(bike.ID, 2, 3))
	require.NoError(t, err)
	require.NotEmpty(t, draft.Token)
	require.True(t, draft.TotalAmount.Equal(dec("660")))
	require.Equal(t, h.now.Add(h.policy.DraftTTL), draft.ExpiresAt)

	// A draft reserves nothing.
	available, err := h.avail.Available(h.ctx, bike.ID)
	require.NoError(t, err)
	require.Equal(t, 3, available)

	other := h.addUser("renter-2")
	_, err = h.drafts.GetDraft(h.ctx, other, draft.Token)
	require.ErrorIs(t, err, service.ErrInvalidDraft)

	b, err := h.drafts.CommitDraft(h.ctx, renter, draft.Token)
	require.NoError(t, err)
	require.True(t, b.TotalAmount.Equal(draft.TotalAmount))

	_, err = h.drafts.CommitDraft(h.ctx, renter, draft.Token)
	require.ErrorIs(t, err, service.ErrInvalidDraft, "a draft is consumed by its commit")
}

// gatedDraftStore holds every Take until all expected callers have arrived,
// so the commits race on the store itself.
type gatedDraftStore struct {
	*service.MemoryDraftStore
	arrived sync.WaitGroup
}

func (g *gatedDraftStore) Take(ctx context.Context, token string) (*domain.BookingDraft, error) {
	g.arrived.Done()
	g.arrived.Wait()
	return g.MemoryDraftStore.Take(ctx, token)
}

func TestDraft_ConcurrentCommitsYieldOneBooking(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	owner := h.addUser("owner-1", domain.RoleOwner)
	renter := h.addUser("renter-1")
	bike := h.addBike(owner, 5, 100)

	const commits = 4
	store := &gatedDraftStore{MemoryDraftStore: service.NewMemoryDraftStore()}
	store.arrived.Add(commits)
	drafts := service.NewDraftService(h.store, store, h.bookings, h.policy, zap.NewNop()).
		WithClock(func() time.Time { return h.now })

	draft, err := drafts.StartDraft(h.ctx, renter, h.bookingRequest(bike.ID, 1, 2))
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < commits; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := drafts.CommitDraft(h.ctx, renter, draft.Token); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, succeeded)
	bookings, err := h.bookings.ListRenterBookings(h.ctx, renter, 10)
	require.NoError(t, err)
	require.Len(t, bookings, 1)
}

func TestDraft_SurvivesRetryableCommitFailure(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	owner := h.addUser("owner-1", domain.RoleOwner)
	renter := h.addUser("renter-1")
	rival := h.addUser("renter-2")
	bike := h.addBike(owner, 1, 100)

	draft, err := h.drafts.StartDraft(h.ctx, renter, h.bookingRequest(bike.ID, 1, 2))
	require.NoError(t, err)

	taken := h.book(rival, bike.ID, 1, 2)
	_, err = h.drafts.CommitDraft(h.ctx, renter, draft.Token)
	require.ErrorIs(t, err, service.ErrInsufficientInventory)

	_, err = h.drafts.GetDraft(h.ctx, renter, draft.Token)
	require.NoError(t, err, "the draft is kept while the unit may free up")

	_, err = h.bookings.CancelBooking(h.ctx, rival, taken.ID, "changed plans")
	require.NoError(t, err)

	b, err := h.drafts.CommitDraft(h.ctx, renter, draft.Token)
	require.NoError(t, err)
	require.Equal(t, domain.BookingStatusPending, b.Status)
}

func TestDraft_CommitByAnotherRenterKeepsDraft(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	owner := h.addUser("owner-1", domain.RoleOwner)
	renter := h.addUser("renter-1")
	other := h.addUser("renter-2")
	bike := h.addBike(owner, 1, 100)

	draft, err := h.drafts.StartDraft(h.ctx, renter, h.bookingRequest(bike.ID, 1, 2))
	require.NoError(t, err)

	_, err = h.drafts.CommitDraft(h.ctx, other, draft.Token)
	require.ErrorIs(t, err, service.ErrInvalidDraft)

	_, err = h.drafts.CommitDraft(h.ctx, renter, draft.Token)
	require.NoError(t, err)
}

func TestDraft_Expires(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	owner := h.addUser("owner-1", domain.RoleOwner)
	renter := h.addUser("renter-1")
	bike := h.addBike(owner, 1, 100)

	req := h.bookingRequest(bike.ID, 1, 2)
	req.StartDate = h.now.Add(2 * time.Hour)
	req.EndDate = req.StartDate.Add(2 * time.Hour)
	draft, err := h.drafts.StartDraft(h.ctx, renter, req)
	require.NoError(t, err)

	h.now = h.now.Add(h.policy.DraftTTL)

	_, err = h.drafts.CommitDraft(h.ctx, renter, draft.Token)
	require.ErrorIs(t, err, service.ErrInvalidDraft)
}

func TestDraft_ValidatesLikeABooking(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	owner := h.addUser("owner-1", domain.RoleOwner)
	bike := h.addBike(owner, 1, 100)

	_, err := h.drafts.StartDraft(h.ctx, owner, h.bookingRequest(bike.ID, 1, 1))
	require.ErrorIs(t, err, service.ErrOwnBike)

	renter := h.addUser("renter-1")
	_, err = h.drafts.StartDraft(h.ctx, renter, h.bookingRequest(bike.ID, 1, 200))
	require.ErrorIs(t, err, service.ErrInvalidDuration)
}

// ──────────────────────────────────────────────
// 10. LOCATION TRACKING
// ──────────────────────────────────────────────

func TestLocation_GeofenceExitNotifiesOwnerOnce(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	owner := h.addUser("owner-1", domain.RoleOwner)
	renter := h.addUser("renter-1")
	bike, err := h.bikes.CreateBike(h.ctx, owner, service.CreateBikeRequest{
		Name:       "Fenced Bike",
		HourlyRate: dec("100"),
		Quantity:   1,
		Geofence:   domain.Geofence{Lat: 14.5995, Lng: 120.9842, RadiusKm: 2},
	})
	require.NoError(t, err)
	b := h.activeBooking(renter, owner, bike.ID, 1, 2)

	inside, err := h.locations.RecordLocation(h.ctx, renter, b.ID, 14.6000, 120.9850)
	require.NoError(t, err)
	require.False(t, inside.OutsideGeofence)

	// Roughly 11 km north.
	h.now = h.now.Add(time.Minute)
	outside, err := h.locations.RecordLocation(h.ctx, renter, b.ID, 14.7000, 120.9842)
	require.NoError(t, err)
	require.True(t, outside.OutsideGeofence)

	h.now = h.now.Add(time.Minute)
	_, err = h.locations.RecordLocation(h.ctx, renter, b.ID, 14.7100, 120.9842)
	require.NoError(t, err)

	require.Equal(t, 1, h.sink.Count(owner.UserID, string(service.NotificationGeofenceExit)))
	require.True(t, h.live.HasRental(b.ID))

	history, err := h.locations.LocationHistory(h.ctx, owner, b.ID, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, history, 3)

	nearby, err := h.locations.NearbyRentals(h.ctx, admin, 14.7, 120.98, 5)
	require.NoError(t, err)
	require.Len(t, nearby, 1)

	_, err = h.locations.NearbyRentals(h.ctx, owner, 14.7, 120.98, 5)
	require.ErrorIs(t, err, service.ErrNotAdmin)

	_, err = h.bookings.ConfirmReturn(h.ctx, owner, b.ID)
	require.NoError(t, err)
	require.False(t, h.live.HasRental(b.ID), "returned rentals leave the live index")
}

func TestLocation_OnlyRenterOfActiveBooking(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	owner := h.addUser("owner-1", domain.RoleOwner)
	renter := h.addUser("renter-1")
	bike := h.addBike(owner, 1, 100)
	b := h.book(renter, bike.ID, 1, 1)

	_, err := h.locations.RecordLocation(h.ctx, renter, b.ID, 14.6, 121.0)
	require.ErrorIs(t, err, service.ErrWrongState)

	_, err = h.locations.RecordLocation(h.ctx, owner, b.ID, 14.6, 121.0)
	require.ErrorIs(t, err, service.ErrNotRenter)

	_, err = h.locations.RecordLocation(h.ctx, renter, b.ID, 91, 0)
	require.ErrorIs(t, err, service.ErrInvalidLocation)
}

func TestLocation_LiveIndexFailureDoesNotLoseSample(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.live.UpdateRentalError = ErrMockRedisDown

	owner := h.addUser("owner-1", domain.RoleOwner)
	renter := h.addUser("renter-1")
	bike := h.addBike(owner, 1, 100)
	b := h.activeBooking(renter, owner, bike.ID, 1, 1)

	_, err := h.locations.RecordLocation(h.ctx, renter, b.ID, 14.6, 121.0)
	require.NoError(t, err)

	history, err := h.locations.LocationHistory(h.ctx, renter, b.ID, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, history, 1)
}

// ──────────────────────────────────────────────
// 11. RECEIPTS AND NOTIFICATION FAILURES
// ──────────────────────────────────────────────

func TestReceipt_SummarizesSettlement(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	owner := h.addUser("owner-1", domain.RoleOwner)
	renter := h.addUser("renter-1")
	b := h.completedBooking(renter, owner)
	h.reportDamage(owner, b.ID, "45.50")

	receipt, err := h.receipts.GenerateReceipt(h.ctx, owner, b.ID)
	require.NoError(t, err)
	require.Equal(t, "City Bike", receipt.BikeName)
	require.True(t, receipt.AmountPaid.Equal(b.TotalAmount))
	require.True(t, receipt.AmountRefunded.IsZero())
	require.True(t, receipt.DamageCharges.Equal(dec("45.5")))
	require.Len(t, receipt.Payments, 1)
	require.Equal(t, domain.BookingStatusCompleted, receipt.Status)

	stranger := h.addUser("stranger-1")
	_, err = h.receipts.GenerateReceipt(h.ctx, stranger, b.ID)
	require.ErrorIs(t, err, service.ErrNotParty)
}

func TestNotification_SinkFailureDoesNotRollBack(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.sink.SendError = ErrMockTimeout

	owner := h.addUser("owner-1", domain.RoleOwner)
	renter := h.addUser("renter-1")
	bike := h.addBike(owner, 1, 100)

	b, err := h.bookings.CreateBooking(h.ctx, renter, h.bookingRequest(bike.ID, 1, 1))
	require.NoError(t, err)
	require.Equal(t, domain.BookingStatusPending, h.reload(b.ID).Status)
	require.Equal(t, 1, h.sink.Count(owner.UserID, string(service.NotificationBookingCreated)))
}
