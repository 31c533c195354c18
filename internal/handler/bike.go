package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"bikerental/internal/domain"
	"bikerental/internal/service"
)

// BikeHandler handles HTTP requests for bike listings.
type BikeHandler struct {
	bikeService  *service.BikeService
	availability *service.AvailabilityService
}

// NewBikeHandler creates a new BikeHandler.
func NewBikeHandler(bikeService *service.BikeService, availability *service.AvailabilityService) *BikeHandler {
	return &BikeHandler{bikeService: bikeService, availability: availability}
}

// CreateBikeRequest is the HTTP request body for listing a bike.
type CreateBikeRequest struct {
	Name       string          `json:"name" binding:"required,max=120"`
	BikeTypeID string          `json:"bike_type_id"`
	HourlyRate decimal.Decimal `json:"hourly_rate" binding:"gt=0"`
	DailyRate  decimal.Decimal `json:"daily_rate" binding:"gte=0"`
	Quantity   int             `json:"quantity" binding:"required,gte=1"`
	Geofence   *GeofenceBody   `json:"geofence"`
}

// UpdateListingRequest is the HTTP request body for changing a listing.
// Omitted fields are left unchanged.
type UpdateListingRequest struct {
	Status     *domain.ListingStatus `json:"status" binding:"omitempty,listing_status"`
	Quantity   *int                  `json:"quantity" binding:"omitempty,gte=1"`
	HourlyRate *decimal.Decimal      `json:"hourly_rate" binding:"omitempty,gt=0"`
	DailyRate  *decimal.Decimal      `json:"daily_rate" binding:"omitempty,gte=0"`
}

// CreateBike handles POST /v1/bikes
func (h *BikeHandler) CreateBike(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}

	var req CreateBikeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	in := service.CreateBikeRequest{
		Name:       req.Name,
		BikeTypeID: req.BikeTypeID,
		HourlyRate: req.HourlyRate,
		DailyRate:  req.DailyRate,
		Quantity:   req.Quantity,
	}
	if req.Geofence != nil {
		in.Geofence = domain.Geofence{Lat: req.Geofence.Lat, Lng: req.Geofence.Lng, RadiusKm: req.Geofence.RadiusKm}
	}

	bike, err := h.bikeService.CreateBike(c.Request.Context(), actor, in)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toBikeResponse(bike, nil))
}

// GetBike handles GET /v1/bikes/:id
func (h *BikeHandler) GetBike(c *gin.Context) {
	bike, avail, err := h.bikeService.GetBike(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toBikeResponse(bike, avail))
}

// GetAvailability handles GET /v1/bikes/:id/availability
func (h *BikeHandler) GetAvailability(c *gin.Context) {
	a, err := h.availability.Describe(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, AvailabilityResponse{
		Quantity:  a.Quantity,
		Reserved:  a.Reserved,
		Lost:      a.Lost,
		Available: a.Available,
		Bookable:  a.Bookable,
	})
}

// UpdateListing handles PATCH /v1/bikes/:id
func (h *BikeHandler) UpdateListing(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}

	var req UpdateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	bike, err := h.bikeService.UpdateListing(c.Request.Context(), actor, c.Param("id"), service.UpdateListingRequest{
		Status:     req.Status,
		Quantity:   req.Quantity,
		HourlyRate: req.HourlyRate,
		DailyRate:  req.DailyRate,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toBikeResponse(bike, nil))
}

// DeleteBike handles DELETE /v1/bikes/:id
func (h *BikeHandler) DeleteBike(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}

	if err := h.bikeService.DeleteBike(c.Request.Context(), actor, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
