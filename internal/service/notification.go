package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bikerental/internal/domain"
	"bikerental/internal/notify"
)

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationBookingCreated   NotificationType = "BOOKING_CREATED"
	NotificationBookingAccepted  NotificationType = "BOOKING_ACCEPTED"
	NotificationBookingActive    NotificationType = "BOOKING_ACTIVE"
	NotificationBookingRejected  NotificationType = "BOOKING_REJECTED"
	NotificationBookingCancelled NotificationType = "BOOKING_CANCELLED"
	NotificationBookingReturned  NotificationType = "BOOKING_RETURNED"
	NotificationBikeReportedLost NotificationType = "BIKE_REPORTED_LOST"
	NotificationBikeFound        NotificationType = "BIKE_FOUND"
	NotificationPaymentSuccess   NotificationType = "PAYMENT_SUCCESS"
	NotificationPaymentFailed    NotificationType = "PAYMENT_FAILED"
	NotificationRefundIssued     NotificationType = "REFUND_ISSUED"
	NotificationDamageReported   NotificationType = "DAMAGE_REPORTED"
	NotificationDamageDisputed   NotificationType = "DAMAGE_DISPUTED"
	NotificationDamageResolved   NotificationType = "DAMAGE_RESOLVED"
	NotificationRenterRedTagged  NotificationType = "RENTER_RED_TAGGED"
	NotificationGeofenceExit     NotificationType = "GEOFENCE_EXIT"
)

// NotificationService turns domain events into user notifications. Delivery
// failures are logged and swallowed so they never undo a committed change.
type NotificationService struct {
	sink   notify.Sink
	logger *zap.Logger
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(sink notify.Sink, logger *zap.Logger) *NotificationService {
	return &NotificationService{sink: sink, logger: logger}
}

// Notify sends one notification, fire-and-forget.
func (s *NotificationService) Notify(ctx context.Context, userID string, typ NotificationType, title, message, actionURL string, data map[string]any) {
	if s == nil || s.sink == nil || userID == "" {
		return
	}

	msg := notify.Message{
		ID:        uuid.New().String(),
		Type:      string(typ),
		UserID:    userID,
		Title:     title,
		Message:   message,
		ActionURL: actionURL,
		Data:      data,
		CreatedAt: time.Now(),
	}

	if err := s.sink.Send(ctx, msg); err != nil {
		s.logger.Warn("notification delivery failed",
			zap.String("type", msg.Type),
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}

func bookingURL(id string) string { return "/v1/bookings/" + id }
func damageURL(id string) string  { return "/v1/damages/" + id }

func money(d decimal.Decimal) string { return d.StringFixed(2) }

// NotifyBookingCreated tells the owner a renter requested their bike.
func (s *NotificationService) NotifyBookingCreated(ctx context.Context, b *domain.Booking) {
	s.Notify(ctx, b.OwnerID, NotificationBookingCreated, "New Booking Request",
		fmt.Sprintf("A renter requested %d unit(s) for %d hour(s). Total %s", b.Quantity, b.Hours, money(b.TotalAmount)),
		bookingURL(b.ID), map[string]any{"booking_id": b.ID, "bike_id": b.BikeID})
}

// NotifyBookingAccepted tells the renter the owner accepted.
func (s *NotificationService) NotifyBookingAccepted(ctx context.Context, b *domain.Booking) {
	s.Notify(ctx, b.RenterID, NotificationBookingAccepted, "Booking Accepted",
		"The owner accepted your booking.", bookingURL(b.ID), map[string]any{"booking_id": b.ID})
}

// NotifyBookingActive tells both parties the rental is on.
func (s *NotificationService) NotifyBookingActive(ctx context.Context, b *domain.Booking) {
	for _, userID := range []string{b.RenterID, b.OwnerID} {
		s.Notify(ctx, userID, NotificationBookingActive, "Rental Active",
			"The booking is accepted and paid.", bookingURL(b.ID), map[string]any{"booking_id": b.ID})
	}
}

// NotifyBookingRejected tells the renter the owner declined.
func (s *NotificationService) NotifyBookingRejected(ctx context.Context, b *domain.Booking) {
	s.Notify(ctx, b.RenterID, NotificationBookingRejected, "Booking Rejected",
		"The owner declined your booking.", bookingURL(b.ID), map[string]any{"booking_id": b.ID, "reason": b.CancelReason})
}

// NotifyBookingCancelled tells the owner the renter cancelled.
func (s *NotificationService) NotifyBookingCancelled(ctx context.Context, b *domain.Booking) {
	s.Notify(ctx, b.OwnerID, NotificationBookingCancelled, "Booking Cancelled",
		"The renter cancelled the booking: "+b.CancelReason, bookingURL(b.ID), map[string]any{"booking_id": b.ID})
}

// NotifyBookingReturned tells the renter the return was confirmed.
func (s *NotificationService) NotifyBookingReturned(ctx context.Context, b *domain.Booking, points int64) {
	s.Notify(ctx, b.RenterID, NotificationBookingReturned, "Rental Completed",
		fmt.Sprintf("Return confirmed. You earned %d point(s).", points), bookingURL(b.ID),
		map[string]any{"booking_id": b.ID, "points": points})
}

// NotifyBikeReportedLost tells the renter the owner reported the bike lost.
func (s *NotificationService) NotifyBikeReportedLost(ctx context.Context, b *domain.Booking) {
	s.Notify(ctx, b.RenterID, NotificationBikeReportedLost, "Bike Reported Lost",
		"The owner reported the rented bike as lost. Please contact them.", bookingURL(b.ID), map[string]any{"booking_id": b.ID})
}

// NotifyBikeFound tells the renter the lost report was cleared.
func (s *NotificationService) NotifyBikeFound(ctx context.Context, b *domain.Booking, points int64) {
	s.Notify(ctx, b.RenterID, NotificationBikeFound, "Bike Found",
		fmt.Sprintf("The owner marked the bike as found. The rental is complete. You earned %d point(s).", points),
		bookingURL(b.ID), map[string]any{"booking_id": b.ID, "points": points})
}

// NotifyPaymentSuccess tells the payer a payment completed.
func (s *NotificationService) NotifyPaymentSuccess(ctx context.Context, p *domain.Payment) {
	s.Notify(ctx, p.PayerID, NotificationPaymentSuccess, "Payment Successful",
		fmt.Sprintf("Payment of %s via %s was successful.", money(p.Amount), p.Method), "",
		map[string]any{"payment_id": p.ID, "target_type": string(p.TargetType), "target_id": p.TargetID})
}

// NotifyPaymentFailed tells the payer a payment failed.
func (s *NotificationService) NotifyPaymentFailed(ctx context.Context, p *domain.Payment) {
	s.Notify(ctx, p.PayerID, NotificationPaymentFailed, "Payment Failed",
		fmt.Sprintf("Payment of %s failed. Please try again.", money(p.Amount)), "",
		map[string]any{"payment_id": p.ID, "reason": p.FailureReason})
}

// NotifyRefundIssued tells the payer money went back to their wallet.
func (s *NotificationService) NotifyRefundIssued(ctx context.Context, p *domain.Payment) {
	s.Notify(ctx, p.PayerID, NotificationRefundIssued, "Refund Issued",
		fmt.Sprintf("%s was refunded to your wallet.", money(p.RefundAmount)), "",
		map[string]any{"payment_id": p.ID, "amount": money(p.RefundAmount)})
}

// NotifyDamageReported tells the renter about a damage charge.
func (s *NotificationService) NotifyDamageReported(ctx context.Context, d *domain.BikeDamage) {
	s.Notify(ctx, d.RenterID, NotificationDamageReported, "Damage Reported",
		fmt.Sprintf("The owner reported damage costing %s.", money(d.Cost)), damageURL(d.ID),
		map[string]any{"damage_id": d.ID, "booking_id": d.BookingID})
}

// NotifyDamageDisputed tells the owner the renter disputed a charge.
func (s *NotificationService) NotifyDamageDisputed(ctx context.Context, d *domain.BikeDamage) {
	s.Notify(ctx, d.OwnerID, NotificationDamageDisputed, "Damage Disputed",
		"The renter disputed your damage report: "+d.DisputeReason, damageURL(d.ID), map[string]any{"damage_id": d.ID})
}

// NotifyDamageResolved tells both parties the final state of a charge.
func (s *NotificationService) NotifyDamageResolved(ctx context.Context, d *domain.BikeDamage) {
	for _, userID := range []string{d.RenterID, d.OwnerID} {
		s.Notify(ctx, userID, NotificationDamageResolved, "Damage Claim "+string(d.Status),
			fmt.Sprintf("The damage claim is now %s.", d.Status), damageURL(d.ID), map[string]any{"damage_id": d.ID})
	}
}

// NotifyRenterRedTagged tells the renter they were red-tagged.
func (s *NotificationService) NotifyRenterRedTagged(ctx context.Context, t *domain.RenterRedTag) {
	s.Notify(ctx, t.RenterID, NotificationRenterRedTagged, "Account Flagged",
		"An owner red-tagged your account: "+t.Reason, "", map[string]any{"red_tag_id": t.ID, "booking_id": t.BookingID})
}

// NotifyGeofenceExit tells the owner a rented bike left its area.
func (s *NotificationService) NotifyGeofenceExit(ctx context.Context, b *domain.Booking, sample *domain.LocationSample) {
	s.Notify(ctx, b.OwnerID, NotificationGeofenceExit, "Bike Left Geofence",
		fmt.Sprintf("A rented bike was seen outside its area at (%.5f, %.5f).", sample.Lat, sample.Lng), bookingURL(b.ID),
		map[string]any{"booking_id": b.ID, "lat": sample.Lat, "lng": sample.Lng})
}
