package service

import (
	"errors"

	"bikerental/internal/repository"
)

// Kind classifies a service error by how the caller should react to it.
type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation is bad input shape. Never retried.
	KindValidation
	// KindNotFound is a missing or invisible entity.
	KindNotFound
	// KindForbidden is an actor acting outside their role.
	KindForbidden
	// KindStateConflict is a request that is valid but not in the current state.
	KindStateConflict
	// KindGatewayTransient is a non-terminal payment intent. The caller may poll.
	KindGatewayTransient
	// KindGatewayFailed is a terminal gateway decline.
	KindGatewayFailed
	// KindIntegrity is a storage-level invariant violation.
	KindIntegrity
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindStateConflict:
		return "state_conflict"
	case KindGatewayTransient:
		return "gateway_transient"
	case KindGatewayFailed:
		return "gateway_failed"
	case KindIntegrity:
		return "integrity_violation"
	}
	return "unknown"
}

// Error is a typed rejection returned by every service operation.
// Two errors match under errors.Is when their codes are equal.
type Error struct {
	Kind Kind
	Code string
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg}
}

// KindOf returns the kind of err, looking through wrapping.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return KindNotFound
	case errors.Is(err, repository.ErrConstraint):
		return KindIntegrity
	case errors.Is(err, repository.ErrConflict):
		return KindStateConflict
	}
	return KindUnknown
}

// CodeOf returns the machine-readable code of err, or "internal".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	switch KindOf(err) {
	case KindNotFound:
		return "not_found"
	case KindIntegrity:
		return "integrity_violation"
	case KindStateConflict:
		return "concurrent_update"
	}
	return "internal"
}

var (
	// ErrInvalidQuantity is returned when a booking quantity is outside the allowed range.
	ErrInvalidQuantity = newError(KindValidation, "invalid_quantity", "invalid quantity")

	// ErrInvalidDuration is returned when a rental window is empty or too long.
	ErrInvalidDuration = newError(KindValidation, "invalid_duration", "invalid rental duration")

	// ErrStartInPast is returned when a rental would start before now.
	ErrStartInPast = newError(KindValidation, "start_in_past", "rental cannot start in the past")

	// ErrInvalidRateType is returned for unknown rate types or a bike without a daily rate.
	ErrInvalidRateType = newError(KindValidation, "invalid_rate_type", "invalid rate type")

	// ErrInvalidAmount is returned when a money amount is not positive.
	ErrInvalidAmount = newError(KindValidation, "invalid_amount", "invalid amount")

	// ErrInvalidPaymentMethod is returned when a method is unknown or not allowed for the operation.
	ErrInvalidPaymentMethod = newError(KindValidation, "invalid_payment_method", "invalid payment method")

	// ErrInvalidTarget is returned for an unknown payment target.
	ErrInvalidTarget = newError(KindValidation, "invalid_target", "invalid payment target")

	// ErrReasonRequired is returned when a cancellation, dispute or tag has no reason.
	ErrReasonRequired = newError(KindValidation, "reason_required", "reason is required")

	// ErrDescriptionRequired is returned when a damage report has no description.
	ErrDescriptionRequired = newError(KindValidation, "description_required", "description is required")

	// ErrPhotoEvidenceRequired is returned when a damage flag has no photos.
	ErrPhotoEvidenceRequired = newError(KindValidation, "photo_evidence_required", "photo evidence is required")

	// ErrInvalidFlagReason is returned for an unknown flag reason.
	ErrInvalidFlagReason = newError(KindValidation, "invalid_flag_reason", "invalid flag reason")

	// ErrInvalidLocation is returned when coordinates are out of range.
	ErrInvalidLocation = newError(KindValidation, "invalid_location", "invalid location")

	// ErrInvalidReference is returned when a ledger reference id is empty.
	ErrInvalidReference = newError(KindValidation, "invalid_reference", "reference id is required")

	// ErrInvalidUser is returned when registration data is incomplete.
	ErrInvalidUser = newError(KindValidation, "invalid_user", "name and email are required")

	// ErrInvalidListing is returned when a bike listing has missing or out-of-range fields.
	ErrInvalidListing = newError(KindValidation, "invalid_listing", "invalid bike listing")

	// ErrInvalidDraft is returned when a draft token is unknown or expired.
	ErrInvalidDraft = newError(KindNotFound, "draft_not_found", "draft not found or expired")

	// ErrBikeNotFound is returned when a bike does not exist or is deleted.
	ErrBikeNotFound = newError(KindNotFound, "bike_not_found", "bike not found")

	// ErrBookingNotFound is returned when a booking does not exist.
	ErrBookingNotFound = newError(KindNotFound, "booking_not_found", "booking not found")

	// ErrPaymentNotFound is returned when a payment does not exist.
	ErrPaymentNotFound = newError(KindNotFound, "payment_not_found", "payment not found")

	// ErrDamageNotFound is returned when a damage record does not exist.
	ErrDamageNotFound = newError(KindNotFound, "damage_not_found", "damage record not found")

	// ErrRedTagNotFound is returned when a red tag does not exist.
	ErrRedTagNotFound = newError(KindNotFound, "red_tag_not_found", "red tag not found")

	// ErrUserNotFound is returned when a user does not exist or is deleted.
	ErrUserNotFound = newError(KindNotFound, "user_not_found", "user not found")

	// ErrNotOwner is returned when an owner-only action is attempted by someone else.
	ErrNotOwner = newError(KindForbidden, "not_owner", "only the bike owner can do this")

	// ErrNotRenter is returned when a renter-only action is attempted by someone else.
	ErrNotRenter = newError(KindForbidden, "not_renter", "only the renter can do this")

	// ErrNotAdmin is returned when an admin-only action is attempted by someone else.
	ErrNotAdmin = newError(KindForbidden, "not_admin", "only an administrator can do this")

	// ErrNotParty is returned when a caller is neither renter, owner nor admin.
	ErrNotParty = newError(KindForbidden, "not_party", "not a party to this booking")

	// ErrRenterSuspended is returned when a suspended user tries to book.
	ErrRenterSuspended = newError(KindForbidden, "renter_suspended", "renter account is suspended")

	// ErrOwnBike is returned when an owner tries to rent their own listing.
	ErrOwnBike = newError(KindForbidden, "own_bike", "cannot book your own bike")

	// ErrPhoneVerificationRequired defers a first booking until the phone is verified.
	ErrPhoneVerificationRequired = newError(KindForbidden, "phone_verification_required", "phone verification required before the first booking")

	// ErrBikeNotBookable is returned when a listing is unlisted or in maintenance.
	ErrBikeNotBookable = newError(KindStateConflict, "bike_not_bookable", "bike is not available for booking")

	// ErrInsufficientInventory is returned when not enough units are free.
	ErrInsufficientInventory = newError(KindStateConflict, "insufficient_inventory", "not enough units available")

	// ErrWrongState is returned when a booking is not in the state a transition requires.
	ErrWrongState = newError(KindStateConflict, "wrong_state", "booking is not in the required state")

	// ErrAlreadyAccepted is returned when a booking was already accepted.
	ErrAlreadyAccepted = newError(KindStateConflict, "already_accepted", "booking already accepted")

	// ErrBookingReportedLost is returned when a lost booking is returned normally or reported twice.
	ErrBookingReportedLost = newError(KindStateConflict, "booking_reported_lost", "booking is reported lost")

	// ErrBookingNotLost is returned when marking found a booking that is not lost.
	ErrBookingNotLost = newError(KindStateConflict, "booking_not_lost", "booking is not reported lost")

	// ErrInsufficientFunds is returned when a debit would drive a balance negative.
	ErrInsufficientFunds = newError(KindStateConflict, "insufficient_funds", "insufficient funds")

	// ErrInsufficientPoints is returned when a redemption exceeds the points balance.
	ErrInsufficientPoints = newError(KindStateConflict, "insufficient_points", "insufficient points")

	// ErrAlreadyPaid is returned when a target already has a completed payment.
	ErrAlreadyPaid = newError(KindStateConflict, "already_paid", "already paid")

	// ErrAmountMismatch is returned when a payment amount differs from the amount due.
	ErrAmountMismatch = newError(KindValidation, "amount_mismatch", "amount does not match the amount due")

	// ErrNotPayable is returned when a target is not in a payable state.
	ErrNotPayable = newError(KindStateConflict, "not_payable", "target is not payable in its current state")

	// ErrDamageWrongState is returned for an illegal damage status transition.
	ErrDamageWrongState = newError(KindStateConflict, "damage_wrong_state", "damage record is not in the required state")

	// ErrAlreadyRedTagged is returned when the owner already has an active tag on the renter.
	ErrAlreadyRedTagged = newError(KindStateConflict, "already_red_tagged", "renter already red-tagged by this owner")

	// ErrRedTagResolved is returned when resolving an inactive tag.
	ErrRedTagResolved = newError(KindStateConflict, "red_tag_resolved", "red tag already resolved")

	// ErrBikeBusy is returned when the bike lock could not be taken within the retry budget.
	ErrBikeBusy = newError(KindStateConflict, "bike_busy", "bike is being booked by another request, retry")

	// ErrLiveIndexUnavailable is returned when the live location index is not configured.
	ErrLiveIndexUnavailable = newError(KindStateConflict, "live_index_unavailable", "live location index unavailable")

	// ErrGatewayTransient is returned while an intent is still processing.
	ErrGatewayTransient = newError(KindGatewayTransient, "gateway_pending", "payment is still processing")

	// ErrGatewayFailed is returned when the gateway declines an intent.
	ErrGatewayFailed = newError(KindGatewayFailed, "gateway_failed", "payment failed at the gateway")
)
