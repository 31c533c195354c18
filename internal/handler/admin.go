package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"bikerental/internal/service"
)

// AdminHandler handles operator-only views.
type AdminHandler struct {
	locationService *service.LocationService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(locationService *service.LocationService) *AdminHandler {
	return &AdminHandler{locationService: locationService}
}

// NearbyRentals handles GET /v1/admin/rentals/nearby?lat=&lng=&radius_km=
func (h *AdminHandler) NearbyRentals(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}

	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	if errLat != nil || errLng != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "lat and lng are required", Code: "invalid_request"})
		return
	}
	radius := 5.0
	if v := c.Query("radius_km"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil || r <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "radius_km must be positive", Code: "invalid_request"})
			return
		}
		radius = r
	}

	rentals, err := h.locationService.NearbyRentals(c.Request.Context(), actor, lat, lng, radius)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"rentals": toNearbyRentalResponses(rentals)})
}
