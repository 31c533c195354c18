package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bikerental/internal/service"
)

// DraftHandler handles the two-step booking flow: quote a draft, then
// commit it into a real booking.
type DraftHandler struct {
	draftService *service.DraftService
}

// NewDraftHandler creates a new DraftHandler.
func NewDraftHandler(draftService *service.DraftService) *DraftHandler {
	return &DraftHandler{draftService: draftService}
}

// StartDraft handles POST /v1/drafts
func (h *DraftHandler) StartDraft(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}

	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	draft, err := h.draftService.StartDraft(c.Request.Context(), actor, req.toService())
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toDraftResponse(draft))
}

// GetDraft handles GET /v1/drafts/:token
func (h *DraftHandler) GetDraft(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}

	draft, err := h.draftService.GetDraft(c.Request.Context(), actor, c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toDraftResponse(draft))
}

// CommitDraft handles POST /v1/drafts/:token/commit
func (h *DraftHandler) CommitDraft(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}

	booking, err := h.draftService.CommitDraft(c.Request.Context(), actor, c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toBookingResponse(booking))
}
