package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"bikerental/internal/domain"
	"bikerental/internal/service"
)

// BookingHandler handles HTTP requests for bookings, their receipts and
// their location trail.
type BookingHandler struct {
	bookingService  *service.BookingService
	receiptService  *service.ReceiptService
	locationService *service.LocationService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(
	bookingService *service.BookingService,
	receiptService *service.ReceiptService,
	locationService *service.LocationService,
) *BookingHandler {
	return &BookingHandler{
		bookingService:  bookingService,
		receiptService:  receiptService,
		locationService: locationService,
	}
}

// CreateBookingRequest is the HTTP request body for creating a booking or a
// booking draft.
type CreateBookingRequest struct {
	BikeID    string    `json:"bike_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required"`
	StartDate time.Time `json:"start_date" binding:"required"`
	EndDate   time.Time `json:"end_date" binding:"required"`
	RateType  string    `json:"rate_type" binding:"omitempty,rate_type"`
}

func (r CreateBookingRequest) toService() service.CreateBookingRequest {
	rateType := domain.RateType(r.RateType)
	if rateType == "" {
		rateType = domain.RateHourly
	}
	return service.CreateBookingRequest{
		BikeID:    r.BikeID,
		Quantity:  r.Quantity,
		StartDate: r.StartDate,
		EndDate:   r.EndDate,
		RateType:  rateType,
	}
}

// ReasonRequest carries a free-text reason for a rejection or cancellation.
type ReasonRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// RecordLocationRequest is a position report from the renter's device.
type RecordLocationRequest struct {
	Lat float64 `json:"lat" binding:"gte=-90,lte=90"`
	Lng float64 `json:"lng" binding:"gte=-180,lte=180"`
}

// CreateBooking handles POST /v1/bookings
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}

	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	booking, err := h.bookingService.CreateBooking(c.Request.Context(), actor, req.toService())
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toBookingResponse(booking))
}

// GetBooking handles GET /v1/bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}

	booking, err := h.bookingService.GetBooking(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toBookingResponse(booking))
}

// ListBookings handles GET /v1/bookings?as=renter|owner&limit=n
func (h *BookingHandler) ListBookings(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}

	limit := limitParam(c, 50)

	var (
		bookings []*domain.Booking
		err      error
	)
	switch c.DefaultQuery("as", "renter") {
	case "renter":
		bookings, err = h.bookingService.ListRenterBookings(c.Request.Context(), actor, limit)
	case "owner":
		bookings, err = h.bookingService.ListOwnerBookings(c.Request.Context(), actor, limit)
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "as must be renter or owner", Code: "invalid_request"})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"bookings": toBookingResponses(bookings)})
}

// AcceptBooking handles POST /v1/bookings/:id/accept
func (h *BookingHandler) AcceptBooking(c *gin.Context) {
	h.transition(c, h.bookingService.AcceptBooking)
}

// RejectBooking handles POST /v1/bookings/:id/reject
func (h *BookingHandler) RejectBooking(c *gin.Context) {
	h.transitionWithReason(c, h.bookingService.RejectBooking)
}

// CancelBooking handles POST /v1/bookings/:id/cancel
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	h.transitionWithReason(c, h.bookingService.CancelBooking)
}

// ConfirmReturn handles POST /v1/bookings/:id/return
func (h *BookingHandler) ConfirmReturn(c *gin.Context) {
	h.transition(c, h.bookingService.ConfirmReturn)
}

// ReportLost handles POST /v1/bookings/:id/lost
func (h *BookingHandler) ReportLost(c *gin.Context) {
	h.transition(c, h.bookingService.ReportLost)
}

// MarkFound handles POST /v1/bookings/:id/found
func (h *BookingHandler) MarkFound(c *gin.Context) {
	h.transition(c, h.bookingService.MarkFound)
}

type bookingTransition func(ctx context.Context, actor domain.Actor, bookingID string) (*domain.Booking, error)

func (h *BookingHandler) transition(c *gin.Context, fn bookingTransition) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}

	booking, err := fn(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toBookingResponse(booking))
}

func (h *BookingHandler) transitionWithReason(c *gin.Context, fn func(ctx context.Context, actor domain.Actor, bookingID, reason string) (*domain.Booking, error)) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}

	var req ReasonRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondBindError(c, err)
		return
	}

	booking, err := fn(c.Request.Context(), actor, c.Param("id"), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toBookingResponse(booking))
}

// GetReceipt handles GET /v1/bookings/:id/receipt
func (h *BookingHandler) GetReceipt(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}

	receipt, err := h.receiptService.GenerateReceipt(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toReceiptResponse(receipt))
}

// RecordLocation handles POST /v1/bookings/:id/locations
func (h *BookingHandler) RecordLocation(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}

	var req RecordLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	sample, err := h.locationService.RecordLocation(c.Request.Context(), actor, c.Param("id"), req.Lat, req.Lng)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toLocationResponse(sample))
}

// LocationHistory handles GET /v1/bookings/:id/locations?from=&to=
// Both bounds are RFC 3339 timestamps; from defaults to the zero time and
// to defaults to now.
func (h *BookingHandler) LocationHistory(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}

	from, err := timeQuery(c, "from")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "from must be an RFC 3339 timestamp", Code: "invalid_request"})
		return
	}
	to, err := timeQuery(c, "to")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "to must be an RFC 3339 timestamp", Code: "invalid_request"})
		return
	}

	samples, err := h.locationService.LocationHistory(c.Request.Context(), actor, c.Param("id"), from, to)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]LocationResponse, 0, len(samples))
	for _, s := range samples {
		out = append(out, toLocationResponse(s))
	}
	respondJSON(c, http.StatusOK, gin.H{"locations": out})
}

func timeQuery(c *gin.Context, key string) (time.Time, error) {
	v := c.Query(key)
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, v)
}
