package tests

import (
	"testing"

	"github.com/stretchr/testify/require"

	"bikerental/internal/domain"
	"bikerental/internal/service"
)

// ──────────────────────────────────────────────
// 7. DAMAGE CLAIMS
// ──────────────────────────────────────────────

func (h *harness) completedBooking(renter, owner domain.Actor) *domain.Booking {
	h.t.Helper()

	bike := h.addBike(owner, 1, 100)
	b := h.activeBooking(renter, owner, bike.ID, 1, 2)
	done, err := h.bookings.ConfirmReturn(h.ctx, owner, b.ID)
	require.NoError(h.t, err)
	return done
}

func (h *harness) reportDamage(owner domain.Actor, bookingID string, cost string) *domain.BikeDamage {
	h.t.Helper()

	d, err := h.disputes.ReportDamage(h.ctx, owner, service.ReportDamageRequest{
		BookingID:   bookingID,
		Cost:        dec(cost),
		Description: "bent front wheel",
		PhotoURLs:   []string{"https://img.example.com/wheel.jpg"},
	})
	require.NoError(h.t, err)
	return d
}

func TestDamage_WalletPaymentWithoutFundsKeepsPending(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	owner := h.addUser("owner-1", domain.RoleOwner)
	renter := h.addUser("renter-1")
	b := h.completedBooking(renter, owner)
	d := h.reportDamage(owner, b.ID, "200")

	// Leave the renter with exactly 150.
	spare := h.balance(renter.UserID)
	h.fund(renter.UserID, 150-spare.IntPart())
	require.True(t, h.balance(renter.UserID).Equal(dec("150")))

	_, err := h.payments.ProcessPayment(h.ctx, renter, service.PaymentRequest{
		Target:   domain.PaymentTargetDamage,
		TargetID: d.ID,
		Method:   domain.PaymentMethodWallet,
		Amount:   dec("200"),
	})
	require.ErrorIs(t, err, service.ErrInsufficientFunds)

	got, err := h.disputes.GetDamage(h.ctx, renter, d.ID)
	require.NoError(t, err)
	require.Equal(t, domain.DamageStatusPending, got.Status)
	require.True(t, h.balance(renter.UserID).Equal(dec("150")))
}

func TestDamage_WalletPaymentSettlesToOwner(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	owner := h.addUser("owner-1", domain.RoleOwner)
	renter := h.addUser("renter-1")
	b := h.completedBooking(renter, owner)
	d := h.reportDamage(owner, b.ID, "200")

	ownerBefore := h.balance(owner.UserID)
	h.fund(renter.UserID, 200)

	_, err := h.payments.ProcessPayment(h.ctx, renter, service.PaymentRequest{
		Target:   domain.PaymentTargetDamage,
		TargetID: d.ID,
		Method:   domain.PaymentMethodWallet,
		Amount:   dec("200"),
	})
	require.NoError(t, err)

	got, err := h.disputes.GetDamage(h.ctx, owner, d.ID)
	require.NoError(t, err)
	require.Equal(t, domain.DamageStatusPaid, got.Status)
	require.Equal(t, domain.PaymentMethodWallet, got.PaymentMethod)
	require.False(t, got.PaidAt.IsZero())
	require.True(t, h.balance(owner.UserID).Equal(ownerBefore.Add(dec("200"))))

	_, err = h.disputes.DisputeDamage(h.ctx, renter, d.ID, "already paid")
	require.ErrorIs(t, err, service.ErrDamageWrongState)
}

func TestDamage_ReportGuards(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	owner := h.addUser("owner-1", domain.RoleOwner)
	renter := h.addUser("renter-1")
	bike := h.addBike(owner, 1, 100)
	active := h.activeBooking(renter, owner, bike.ID, 1, 1)

	req := service.ReportDamageRequest{BookingID: active.ID, Cost: dec("50"), Description: "scratch"}
	_, err := h.disputes.ReportDamage(h.ctx, owner, req)
	require.ErrorIs(t, err, service.ErrWrongState)

	done, err := h.bookings.ConfirmReturn(h.ctx, owner, active.ID)
	require.NoError(t, err)
	req.BookingID = done.ID

	_, err = h.disputes.ReportDamage(h.ctx, renter, req)
	require.ErrorIs(t, err, service.ErrNotOwner)

	req.Cost = dec("0")
	_, err = h.disputes.ReportDamage(h.ctx, owner, req)
	require.ErrorIs(t, err, service.ErrInvalidAmount)
}

func TestDamage_DisputeAndAdminResolution(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	owner := h.addUser("owner-1", domain.RoleOwner)
	renter := h.addUser("renter-1")
	b := h.completedBooking(renter, owner)
	d := h.reportDamage(owner, b.ID, "120")

	_, err := h.disputes.DisputeDamage(h.ctx, renter, d.ID, "")
	require.ErrorIs(t, err, service.ErrReasonRequired)

	disputed, err := h.disputes.DisputeDamage(h.ctx, renter, d.ID, "scratch was already there")
	require.NoError(t, err)
	require.Equal(t, domain.DamageStatusDisputed, disputed.Status)
	require.Equal(t, 1, h.sink.Count(owner.UserID, string(service.NotificationDamageDisputed)))

	_, err = h.disputes.ResolveDispute(h.ctx, owner, d.ID, domain.DamageStatusWaived, "")
	require.ErrorIs(t, err, service.ErrNotAdmin)

	_, err = h.disputes.WaiveDamage(h.ctx, owner, d.ID, "")
	require.ErrorIs(t, err, service.ErrDamageWrongState, "only PENDING may be waived by the owner")

	resolved, err := h.disputes.ResolveDispute(h.ctx, admin, d.ID, domain.DamageStatusWaived, "photos predate rental")
	require.NoError(t, err)
	require.Equal(t, domain.DamageStatusWaived, resolved.Status)
	require.Equal(t, admin.UserID, resolved.ResolvedBy)

	_, err = h.disputes.ResolveDispute(h.ctx, admin, d.ID, domain.DamageStatusPaid, "")
	require.ErrorIs(t, err, service.ErrDamageWrongState)
}

func TestDamage_OwnerWaivesPending(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	owner := h.addUser("owner-1", domain.RoleOwner)
	renter := h.addUser("renter-1")
	b := h.completedBooking(renter, owner)
	d := h.reportDamage(owner, b.ID, "80")

	waived, err := h.disputes.WaiveDamage(h.ctx, owner, d.ID, "goodwill")
	require.NoError(t, err)
	require.Equal(t, domain.DamageStatusWaived, waived.Status)

	receipt, err := h.receipts.GenerateReceipt(h.ctx, renter, b.ID)
	require.NoError(t, err)
	require.Len(t, receipt.Damages, 1)
	require.True(t, receipt.DamageCharges.IsZero())
}

// ──────────────────────────────────────────────
// 8. FLAGS AND RED TAGS
// ──────────────────────────────────────────────

func TestFlag_DamageReasonCreatesDamageRecord(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	owner := h.addUser("owner-1", domain.RoleOwner)
	renter := h.addUser("renter-1")
	b := h.completedBooking(renter, owner)

	_, _, err := h.disputes.FlagRenter(h.ctx, owner, service.FlagRenterRequest{
		BookingID: b.ID,
		Reason:    domain.FlagReasonDamage,
		Cost:      dec("90"),
	})
	require.ErrorIs(t, err, service.ErrPhotoEvidenceRequired)

	flag, damage, err := h.disputes.FlagRenter(h.ctx, owner, service.FlagRenterRequest{
		BookingID:   b.ID,
		Reason:      domain.FlagReasonDamage,
		Description: "broken chain",
		Cost:        dec("90"),
		PhotoURLs:   []string{"https://img.example.com/chain.jpg"},
	})
	require.NoError(t, err)
	require.NotNil(t, damage)
	require.Equal(t, damage.ID, flag.DamageID)
	require.Equal(t, domain.DamageStatusPending, damage.Status)
	require.True(t, damage.Cost.Equal(dec("90")))

	standing, err := h.disputes.RenterStanding(h.ctx, renter.UserID)
	require.NoError(t, err)
	require.Equal(t, 1, standing.FlagCount)
	require.False(t, standing.IsRedTagged)
}

func TestFlag_NonDamageReasonNeedsNoEvidence(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	owner := h.addUser("owner-1", domain.RoleOwner)
	renter := h.addUser("renter-1")
	bike := h.addBike(owner, 1, 100)
	b := h.book(renter, bike.ID, 1, 1)

	flag, damage, err := h.disputes.FlagRenter(h.ctx, owner, service.FlagRenterRequest{
		BookingID: b.ID,
		Reason:    domain.FlagReasonNoShow,
	})
	require.NoError(t, err)
	require.Nil(t, damage)
	require.Empty(t, flag.DamageID)

	_, _, err = h.disputes.FlagRenter(h.ctx, owner, service.FlagRenterRequest{BookingID: b.ID, Reason: "RUDE"})
	require.ErrorIs(t, err, service.ErrInvalidFlagReason)
}

func TestRedTag_PlatformWideAndOwnerScopedResolution(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	ownerA := h.addUser("owner-a", domain.RoleOwner)
	ownerB := h.addUser("owner-b", domain.RoleOwner)
	renter := h.addUser("renter-1")
	bikeA := h.addBike(ownerA, 1, 100)
	bikeB := h.addBike(ownerB, 1, 100)
	bookingA := h.book(renter, bikeA.ID, 1, 1)
	bookingB := h.book(renter, bikeB.ID, 1, 1)

	tagA, err := h.disputes.RedTagRenter(h.ctx, ownerA, bookingA.ID, "damaged and hid it")
	require.NoError(t, err)
	require.True(t, tagA.IsActive)

	_, err = h.disputes.RedTagRenter(h.ctx, ownerA, bookingA.ID, "again")
	require.ErrorIs(t, err, service.ErrAlreadyRedTagged)

	tagB, err := h.disputes.RedTagRenter(h.ctx, ownerB, bookingB.ID, "never returned calls")
	require.NoError(t, err)

	tagged, err := h.disputes.IsRedTagged(h.ctx, renter.UserID)
	require.NoError(t, err)
	require.True(t, tagged)

	// Owner B cannot resolve owner A's tag.
	_, err = h.disputes.ResolveRedTag(h.ctx, ownerB, tagA.ID, "")
	require.ErrorIs(t, err, service.ErrNotOwner)

	_, err = h.disputes.ResolveRedTag(h.ctx, ownerA, tagA.ID, "settled")
	require.NoError(t, err)

	tagged, err = h.disputes.IsRedTagged(h.ctx, renter.UserID)
	require.NoError(t, err)
	require.True(t, tagged, "owner B's tag is still active")

	resolved, err := h.disputes.ResolveRedTag(h.ctx, admin, tagB.ID, "appeal accepted")
	require.NoError(t, err)
	require.False(t, resolved.IsActive)
	require.Equal(t, admin.UserID, resolved.ResolvedBy)

	_, err = h.disputes.ResolveRedTag(h.ctx, admin, tagB.ID, "")
	require.ErrorIs(t, err, service.ErrRedTagResolved)

	standing, err := h.disputes.RenterStanding(h.ctx, renter.UserID)
	require.NoError(t, err)
	require.False(t, standing.IsRedTagged)
	require.Equal(t, 0, standing.ActiveRedTags)

	// A resolved tag no longer blocks a new one.
	_, err = h.disputes.RedTagRenter(h.ctx, ownerA, bookingA.ID, "repeat offence")
	require.NoError(t, err)
}
