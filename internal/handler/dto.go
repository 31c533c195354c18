package handler

import (
	"github.com/shopspring/decimal"

	"bikerental/internal/domain"
	"bikerental/internal/redis"
	"bikerental/internal/service"
)

// Money amounts are rendered as decimal strings ("120.00") so clients never
// see binary floating point.

// UserResponse is the HTTP representation of a user.
type UserResponse struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Email         string   `json:"email"`
	Phone         string   `json:"phone,omitempty"`
	PhoneVerified bool     `json:"phone_verified"`
	Roles         []string `json:"roles"`
	IsSuspended   bool     `json:"is_suspended"`
	CreatedAt     string   `json:"created_at"`
}

func toUserResponse(u *domain.User) UserResponse {
	roles := make([]string, 0, 3)
	for _, r := range service.Roles(u) {
		roles = append(roles, string(r))
	}
	return UserResponse{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		Phone:         u.Phone,
		PhoneVerified: u.PhoneVerified,
		Roles:         roles,
		IsSuspended:   u.IsSuspended,
		CreatedAt:     formatTime(u.CreatedAt),
	}
}

// GeofenceBody is a circular area, used in requests and responses.
type GeofenceBody struct {
	Lat      float64 `json:"lat" binding:"gte=-90,lte=90"`
	Lng      float64 `json:"lng" binding:"gte=-180,lte=180"`
	RadiusKm float64 `json:"radius_km" binding:"gte=0"`
}

// AvailabilityResponse is the derived inventory of a listing.
type AvailabilityResponse struct {
	Quantity  int  `json:"quantity"`
	Reserved  int  `json:"reserved"`
	Lost      int  `json:"lost"`
	Available int  `json:"available"`
	Bookable  bool `json:"bookable"`
}

// BikeResponse is the HTTP representation of a bike listing.
type BikeResponse struct {
	ID           string                `json:"id"`
	OwnerID      string                `json:"owner_id"`
	BikeTypeID   string                `json:"bike_type_id,omitempty"`
	Name         string                `json:"name"`
	HourlyRate   string                `json:"hourly_rate"`
	DailyRate    string                `json:"daily_rate,omitempty"`
	Quantity     int                   `json:"quantity"`
	Status       string                `json:"status"`
	Geofence     *GeofenceBody         `json:"geofence,omitempty"`
	Availability *AvailabilityResponse `json:"availability,omitempty"`
	CreatedAt    string                `json:"created_at"`
}

func toBikeResponse(b *domain.Bike, avail *service.Availability) BikeResponse {
	resp := BikeResponse{
		ID:         b.ID,
		OwnerID:    b.OwnerID,
		BikeTypeID: b.BikeTypeID,
		Name:       b.Name,
		HourlyRate: moneyString(b.HourlyRate),
		Quantity:   b.Quantity,
		Status:     string(b.Status),
		CreatedAt:  formatTime(b.CreatedAt),
	}
	if b.DailyRate.IsPositive() {
		resp.DailyRate = moneyString(b.DailyRate)
	}
	if b.Geofence.RadiusKm > 0 {
		resp.Geofence = &GeofenceBody{Lat: b.Geofence.Lat, Lng: b.Geofence.Lng, RadiusKm: b.Geofence.RadiusKm}
	}
	if avail != nil {
		resp.Availability = &AvailabilityResponse{
			Quantity:  avail.Quantity,
			Reserved:  avail.Reserved,
			Lost:      avail.Lost,
			Available: avail.Available,
			Bookable:  avail.Bookable,
		}
	}
	return resp
}

// BookingResponse is the HTTP representation of a booking.
type BookingResponse struct {
	ID               string `json:"id"`
	RenterID         string `json:"renter_id"`
	OwnerID          string `json:"owner_id"`
	BikeID           string `json:"bike_id"`
	Quantity         int    `json:"quantity"`
	StartDate        string `json:"start_date"`
	EndDate          string `json:"end_date"`
	RateType         string `json:"rate_type"`
	Hours            int    `json:"hours"`
	BaseRate         string `json:"base_rate"`
	ServiceFee       string `json:"service_fee"`
	TotalAmount      string `json:"total_amount"`
	Status           string `json:"status"`
	Accepted         bool   `json:"accepted"`
	AcceptedAt       string `json:"accepted_at,omitempty"`
	ActualReturnDate string `json:"actual_return_date,omitempty"`
	IsReportedLost   bool   `json:"is_reported_lost"`
	ReportedLostAt   string `json:"reported_lost_at,omitempty"`
	CancelledAt      string `json:"cancelled_at,omitempty"`
	CancelledBy      string `json:"cancelled_by,omitempty"`
	CancelReason     string `json:"cancel_reason,omitempty"`
	CreatedAt        string `json:"created_at"`
}

func toBookingResponse(b *domain.Booking) BookingResponse {
	return BookingResponse{
		ID:               b.ID,
		RenterID:         b.RenterID,
		OwnerID:          b.OwnerID,
		BikeID:           b.BikeID,
		Quantity:         b.Quantity,
		StartDate:        formatTime(b.StartDate),
		EndDate:          formatTime(b.EndDate),
		RateType:         string(b.RateType),
		Hours:            b.Hours,
		BaseRate:         moneyString(b.BaseRate),
		ServiceFee:       moneyString(b.ServiceFee),
		TotalAmount:      moneyString(b.TotalAmount),
		Status:           string(b.Status),
		Accepted:         !b.AcceptedAt.IsZero(),
		AcceptedAt:       formatTime(b.AcceptedAt),
		ActualReturnDate: formatTime(b.ActualReturnDate),
		IsReportedLost:   b.IsReportedLost,
		ReportedLostAt:   formatTime(b.ReportedLostAt),
		CancelledAt:      formatTime(b.CancelledAt),
		CancelledBy:      b.CancelledBy,
		CancelReason:     b.CancelReason,
		CreatedAt:        formatTime(b.CreatedAt),
	}
}

func toBookingResponses(bs []*domain.Booking) []BookingResponse {
	out := make([]BookingResponse, 0, len(bs))
	for _, b := range bs {
		out = append(out, toBookingResponse(b))
	}
	return out
}

// DraftResponse is the HTTP representation of a booking draft.
type DraftResponse struct {
	Token       string `json:"token"`
	BikeID      string `json:"bike_id"`
	Quantity    int    `json:"quantity"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	RateType    string `json:"rate_type"`
	Hours       int    `json:"hours"`
	BaseRate    string `json:"base_rate"`
	ServiceFee  string `json:"service_fee"`
	TotalAmount string `json:"total_amount"`
	ExpiresAt   string `json:"expires_at"`
}

func toDraftResponse(d *domain.BookingDraft) DraftResponse {
	return DraftResponse{
		Token:       d.Token,
		BikeID:      d.BikeID,
		Quantity:    d.Quantity,
		StartDate:   formatTime(d.StartDate),
		EndDate:     formatTime(d.EndDate),
		RateType:    string(d.RateType),
		Hours:       d.Hours,
		BaseRate:    moneyString(d.BaseRate),
		ServiceFee:  moneyString(d.ServiceFee),
		TotalAmount: moneyString(d.TotalAmount),
		ExpiresAt:   formatTime(d.ExpiresAt),
	}
}

// PaymentResponse is the HTTP representation of a payment.
type PaymentResponse struct {
	ID                   string `json:"id"`
	TargetType           string `json:"target_type"`
	TargetID             string `json:"target_id"`
	PayerID              string `json:"payer_id"`
	Method               string `json:"method"`
	Amount               string `json:"amount"`
	Status               string `json:"status"`
	TransactionReference string `json:"transaction_reference,omitempty"`
	FailureReason        string `json:"failure_reason,omitempty"`
	RefundAmount         string `json:"refund_amount,omitempty"`
	RefundedAt           string `json:"refunded_at,omitempty"`
	CompletedAt          string `json:"completed_at,omitempty"`
	CreatedAt            string `json:"created_at"`
}

func toPaymentResponse(p *domain.Payment) PaymentResponse {
	resp := PaymentResponse{
		ID:                   p.ID,
		TargetType:           string(p.TargetType),
		TargetID:             p.TargetID,
		PayerID:              p.PayerID,
		Method:               string(p.Method),
		Amount:               moneyString(p.Amount),
		Status:               string(p.Status),
		TransactionReference: p.TransactionReference,
		FailureReason:        p.FailureReason,
		RefundedAt:           formatTime(p.RefundedAt),
		CompletedAt:          formatTime(p.CompletedAt),
		CreatedAt:            formatTime(p.CreatedAt),
	}
	if p.RefundAmount.IsPositive() {
		resp.RefundAmount = moneyString(p.RefundAmount)
	}
	return resp
}

func toPaymentResponses(ps []*domain.Payment) []PaymentResponse {
	out := make([]PaymentResponse, 0, len(ps))
	for _, p := range ps {
		out = append(out, toPaymentResponse(p))
	}
	return out
}

// CheckoutResponse is returned when a gateway payment is started.
type CheckoutResponse struct {
	Payment      PaymentResponse `json:"payment"`
	IntentID     string          `json:"intent_id"`
	ClientKey    string          `json:"client_key,omitempty"`
	RedirectURL  string          `json:"redirect_url,omitempty"`
	IntentStatus string          `json:"intent_status"`
}

func toCheckoutResponse(co *service.GatewayCheckout) CheckoutResponse {
	return CheckoutResponse{
		Payment:      toPaymentResponse(co.Payment),
		IntentID:     co.IntentID,
		ClientKey:    co.ClientKey,
		RedirectURL:  co.RedirectURL,
		IntentStatus: string(co.Status),
	}
}

// ConfirmResponse is returned by gateway reconciliation.
type ConfirmResponse struct {
	Payment          PaymentResponse `json:"payment"`
	IntentStatus     string          `json:"intent_status"`
	AlreadyProcessed bool            `json:"already_processed"`
}

// TransactionResponse is one ledger entry.
type TransactionResponse struct {
	ID            string `json:"id"`
	Amount        string `json:"amount"`
	BalanceBefore string `json:"balance_before"`
	BalanceAfter  string `json:"balance_after"`
	Type          string `json:"type"`
	ReferenceID   string `json:"reference_id"`
	CreatedAt     string `json:"created_at"`
}

func toTransactionResponses(txs []*domain.CreditTransaction) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, TransactionResponse{
			ID:            tx.ID,
			Amount:        moneyString(tx.Amount),
			BalanceBefore: moneyString(tx.BalanceBefore),
			BalanceAfter:  moneyString(tx.BalanceAfter),
			Type:          string(tx.Type),
			ReferenceID:   tx.ReferenceID,
			CreatedAt:     formatTime(tx.CreatedAt),
		})
	}
	return out
}

// PointsEntryResponse is one points history entry.
type PointsEntryResponse struct {
	ID            string `json:"id"`
	Amount        int64  `json:"amount"`
	BalanceBefore int64  `json:"balance_before"`
	BalanceAfter  int64  `json:"balance_after"`
	Reason        string `json:"reason"`
	ReferenceID   string `json:"reference_id"`
	CreatedAt     string `json:"created_at"`
}

func toPointsEntryResponse(e *domain.PointsHistory) PointsEntryResponse {
	return PointsEntryResponse{
		ID:            e.ID,
		Amount:        e.Amount,
		BalanceBefore: e.BalanceBefore,
		BalanceAfter:  e.BalanceAfter,
		Reason:        string(e.Reason),
		ReferenceID:   e.ReferenceID,
		CreatedAt:     formatTime(e.CreatedAt),
	}
}

// DamageResponse is the HTTP representation of a damage claim.
type DamageResponse struct {
	ID             string   `json:"id"`
	BookingID      string   `json:"booking_id"`
	BikeID         string   `json:"bike_id"`
	OwnerID        string   `json:"owner_id"`
	RenterID       string   `json:"renter_id"`
	Cost           string   `json:"cost"`
	Description    string   `json:"description"`
	PhotoURLs      []string `json:"photo_urls"`
	Status         string   `json:"status"`
	PaymentMethod  string   `json:"payment_method,omitempty"`
	DisputeReason  string   `json:"dispute_reason,omitempty"`
	ResolutionNote string   `json:"resolution_note,omitempty"`
	ResolvedBy     string   `json:"resolved_by,omitempty"`
	PaidAt         string   `json:"paid_at,omitempty"`
	CreatedAt      string   `json:"created_at"`
}

func toDamageResponse(d *domain.BikeDamage) DamageResponse {
	photos := d.PhotoURLs
	if photos == nil {
		photos = []string{}
	}
	return DamageResponse{
		ID:             d.ID,
		BookingID:      d.BookingID,
		BikeID:         d.BikeID,
		OwnerID:        d.OwnerID,
		RenterID:       d.RenterID,
		Cost:           moneyString(d.Cost),
		Description:    d.Description,
		PhotoURLs:      photos,
		Status:         string(d.Status),
		PaymentMethod:  string(d.PaymentMethod),
		DisputeReason:  d.DisputeReason,
		ResolutionNote: d.ResolutionNote,
		ResolvedBy:     d.ResolvedBy,
		PaidAt:         formatTime(d.PaidAt),
		CreatedAt:      formatTime(d.CreatedAt),
	}
}

// FlagResponse is the HTTP representation of a renter flag.
type FlagResponse struct {
	ID          string          `json:"id"`
	BookingID   string          `json:"booking_id"`
	RenterID    string          `json:"renter_id"`
	Reason      string          `json:"reason"`
	Description string          `json:"description,omitempty"`
	Damage      *DamageResponse `json:"damage,omitempty"`
	CreatedAt   string          `json:"created_at"`
}

// RedTagResponse is the HTTP representation of a red tag.
type RedTagResponse struct {
	ID             string `json:"id"`
	BookingID      string `json:"booking_id"`
	OwnerID        string `json:"owner_id"`
	RenterID       string `json:"renter_id"`
	Reason         string `json:"reason"`
	IsActive       bool   `json:"is_active"`
	ResolvedBy     string `json:"resolved_by,omitempty"`
	ResolvedAt     string `json:"resolved_at,omitempty"`
	ResolutionNote string `json:"resolution_note,omitempty"`
	CreatedAt      string `json:"created_at"`
}

func toRedTagResponse(t *domain.RenterRedTag) RedTagResponse {
	return RedTagResponse{
		ID:             t.ID,
		BookingID:      t.BookingID,
		OwnerID:        t.OwnerID,
		RenterID:       t.RenterID,
		Reason:         t.Reason,
		IsActive:       t.IsActive,
		ResolvedBy:     t.ResolvedBy,
		ResolvedAt:     formatTime(t.ResolvedAt),
		ResolutionNote: t.ResolutionNote,
		CreatedAt:      formatTime(t.CreatedAt),
	}
}

// LocationResponse is one recorded position.
type LocationResponse struct {
	Lat             float64 `json:"lat"`
	Lng             float64 `json:"lng"`
	OutsideGeofence bool    `json:"outside_geofence"`
	RecordedAt      string  `json:"recorded_at"`
}

func toLocationResponse(s *domain.LocationSample) LocationResponse {
	return LocationResponse{
		Lat:             s.Lat,
		Lng:             s.Lng,
		OutsideGeofence: s.OutsideGeofence,
		RecordedAt:      formatTime(s.RecordedAt),
	}
}

// NearbyRentalResponse is an active rental near a point.
type NearbyRentalResponse struct {
	BookingID  string  `json:"booking_id"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	DistanceKm float64 `json:"distance_km"`
}

func toNearbyRentalResponses(ls []redis.RentalLocation) []NearbyRentalResponse {
	out := make([]NearbyRentalResponse, 0, len(ls))
	for _, l := range ls {
		out = append(out, NearbyRentalResponse{BookingID: l.BookingID, Lat: l.Lat, Lng: l.Lng, DistanceKm: l.DistanceKm})
	}
	return out
}

// ReceiptResponse is the HTTP representation of a booking receipt.
type ReceiptResponse struct {
	BookingID        string            `json:"booking_id"`
	RenterID         string            `json:"renter_id"`
	OwnerID          string            `json:"owner_id"`
	BikeID           string            `json:"bike_id"`
	BikeName         string            `json:"bike_name,omitempty"`
	Quantity         int               `json:"quantity"`
	RateType         string            `json:"rate_type"`
	Hours            int               `json:"hours"`
	BaseRate         string            `json:"base_rate"`
	ServiceFee       string            `json:"service_fee"`
	TotalAmount      string            `json:"total_amount"`
	AmountPaid       string            `json:"amount_paid"`
	AmountRefunded   string            `json:"amount_refunded"`
	DamageCharges    string            `json:"damage_charges"`
	Payments         []PaymentResponse `json:"payments"`
	Damages          []DamageResponse  `json:"damages"`
	Status           string            `json:"status"`
	StartDate        string            `json:"start_date"`
	EndDate          string            `json:"end_date"`
	ActualReturnDate string            `json:"actual_return_date,omitempty"`
	GeneratedAt      string            `json:"generated_at"`
}

func toReceiptResponse(r *domain.Receipt) ReceiptResponse {
	resp := ReceiptResponse{
		BookingID:        r.BookingID,
		RenterID:         r.RenterID,
		OwnerID:          r.OwnerID,
		BikeID:           r.BikeID,
		BikeName:         r.BikeName,
		Quantity:         r.Quantity,
		RateType:         string(r.RateType),
		Hours:            r.Hours,
		BaseRate:         moneyString(r.BaseRate),
		ServiceFee:       moneyString(r.ServiceFee),
		TotalAmount:      moneyString(r.TotalAmount),
		AmountPaid:       moneyString(r.AmountPaid),
		AmountRefunded:   moneyString(r.AmountRefunded),
		DamageCharges:    moneyString(r.DamageCharges),
		Payments:         make([]PaymentResponse, 0, len(r.Payments)),
		Damages:          make([]DamageResponse, 0, len(r.Damages)),
		Status:           string(r.Status),
		StartDate:        formatTime(r.StartDate),
		EndDate:          formatTime(r.EndDate),
		ActualReturnDate: formatTime(r.ActualReturnDate),
		GeneratedAt:      formatTime(r.GeneratedAt),
	}
	for i := range r.Payments {
		resp.Payments = append(resp.Payments, toPaymentResponse(&r.Payments[i]))
	}
	for i := range r.Damages {
		resp.Damages = append(resp.Damages, toDamageResponse(&r.Damages[i]))
	}
	return resp
}

func moneyString(d decimal.Decimal) string {
	return d.StringFixed(2)
}
