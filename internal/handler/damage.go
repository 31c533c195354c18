package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"bikerental/internal/domain"
	"bikerental/internal/service"
)

// DamageHandler handles damage claims, renter flags and red tags.
type DamageHandler struct {
	disputeService *service.DisputeService
	paymentService *service.PaymentService
}

// NewDamageHandler creates a new DamageHandler.
func NewDamageHandler(disputeService *service.DisputeService, paymentService *service.PaymentService) *DamageHandler {
	return &DamageHandler{disputeService: disputeService, paymentService: paymentService}
}

// ReportDamageRequest is the HTTP request body for an owner's damage claim.
type ReportDamageRequest struct {
	BookingID   string          `json:"booking_id" binding:"required"`
	Cost        decimal.Decimal `json:"cost" binding:"gt=0"`
	Description string          `json:"description" binding:"required,max=2000"`
	PhotoURLs   []string        `json:"photo_urls" binding:"omitempty,dive,url"`
}

// NoteRequest carries a free-text reason or resolution note.
type NoteRequest struct {
	Note string `json:"note" binding:"max=2000"`
}

// ResolveDisputeRequest is the HTTP request body for an admin ruling.
type ResolveDisputeRequest struct {
	Outcome domain.DamageStatus `json:"outcome" binding:"required,oneof=PAID WAIVED"`
	Note    string              `json:"note" binding:"max=2000"`
}

// PayDamageRequest is the HTTP request body for settling a damage charge.
type PayDamageRequest struct {
	Method          domain.PaymentMethod `json:"method" binding:"required,payment_method"`
	Amount          decimal.Decimal      `json:"amount" binding:"gt=0"`
	PaymentMethodID string               `json:"payment_method_id"`
}

// FlagRenterRequest is the HTTP request body for flagging a renter.
type FlagRenterRequest struct {
	BookingID   string            `json:"booking_id" binding:"required"`
	Reason      domain.FlagReason `json:"reason" binding:"required,flag_reason"`
	Description string            `json:"description" binding:"max=2000"`
	Cost        decimal.Decimal   `json:"cost" binding:"gte=0"`
	PhotoURLs   []string          `json:"photo_urls" binding:"omitempty,dive,url"`
}

// RedTagRequest is the HTTP request body for red-tagging a renter.
type RedTagRequest struct {
	BookingID string `json:"booking_id" binding:"required"`
	Reason    string `json:"reason" binding:"required,max=500"`
}

// ReportDamage handles POST /v1/damages
func (h *DamageHandler) ReportDamage(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}

	var req ReportDamageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	damage, err := h.disputeService.ReportDamage(c.Request.Context(), actor, service.ReportDamageRequest{
		BookingID:   req.BookingID,
		Cost:        req.Cost,
		Description: req.Description,
		PhotoURLs:   req.PhotoURLs,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toDamageResponse(damage))
}

// GetDamage handles GET /v1/damages/:id
func (h *DamageHandler) GetDamage(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}

	damage, err := h.disputeService.GetDamage(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toDamageResponse(damage))
}

// DisputeDamage handles POST /v1/damages/:id/dispute
func (h *DamageHandler) DisputeDamage(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}

	var req NoteRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondBindError(c, err)
		return
	}

	damage, err := h.disputeService.DisputeDamage(c.Request.Context(), actor, c.Param("id"), req.Note)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toDamageResponse(damage))
}

// WaiveDamage handles POST /v1/damages/:id/waive
func (h *DamageHandler) WaiveDamage(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}

	var req NoteRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondBindError(c, err)
		return
	}

	damage, err := h.disputeService.WaiveDamage(c.Request.Context(), actor, c.Param("id"), req.Note)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toDamageResponse(damage))
}

// ResolveDispute handles POST /v1/damages/:id/resolve
func (h *DamageHandler) ResolveDispute(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}

	var req ResolveDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	damage, err := h.disputeService.ResolveDispute(c.Request.Context(), actor, c.Param("id"), req.Outcome, req.Note)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toDamageResponse(damage))
}

// PayDamage handles POST /v1/damages/:id/pay. Wallet and cash settle
// immediately; card and e-wallet methods start a gateway checkout.
func (h *DamageHandler) PayDamage(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}

	var req PayDamageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	in := service.PaymentRequest{
		Target:          domain.PaymentTargetDamage,
		TargetID:        c.Param("id"),
		Method:          req.Method,
		Amount:          req.Amount,
		PaymentMethodID: req.PaymentMethodID,
	}

	if req.Method.IsGateway() {
		checkout, err := h.paymentService.CreateGatewayPayment(c.Request.Context(), actor, in)
		respondCheckout(c, checkout, err)
		return
	}

	payment, err := h.paymentService.ProcessPayment(c.Request.Context(), actor, in)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, toPaymentResponse(payment))
}

// FlagRenter handles POST /v1/flags
func (h *DamageHandler) FlagRenter(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}

	var req FlagRenterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	flag, damage, err := h.disputeService.FlagRenter(c.Request.Context(), actor, service.FlagRenterRequest{
		BookingID:   req.BookingID,
		Reason:      req.Reason,
		Description: req.Description,
		Cost:        req.Cost,
		PhotoURLs:   req.PhotoURLs,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	resp := FlagResponse{
		ID:          flag.ID,
		BookingID:   flag.BookingID,
		RenterID:    flag.RenterID,
		Reason:      string(flag.Reason),
		Description: flag.Description,
		CreatedAt:   formatTime(flag.CreatedAt),
	}
	if damage != nil {
		d := toDamageResponse(damage)
		resp.Damage = &d
	}
	respondJSON(c, http.StatusCreated, resp)
}

// RedTagRenter handles POST /v1/red-tags
func (h *DamageHandler) RedTagRenter(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}

	var req RedTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	tag, err := h.disputeService.RedTagRenter(c.Request.Context(), actor, req.BookingID, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toRedTagResponse(tag))
}

// ResolveRedTag handles POST /v1/red-tags/:id/resolve
func (h *DamageHandler) ResolveRedTag(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}

	var req NoteRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondBindError(c, err)
		return
	}

	tag, err := h.disputeService.ResolveRedTag(c.Request.Context(), actor, c.Param("id"), req.Note)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRedTagResponse(tag))
}

// RenterStanding handles GET /v1/renters/:id/standing
func (h *DamageHandler) RenterStanding(c *gin.Context) {
	standing, err := h.disputeService.RenterStanding(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{
		"renter_id":       standing.RenterID,
		"flag_count":      standing.FlagCount,
		"active_red_tags": standing.ActiveRedTags,
		"is_red_tagged":   standing.IsRedTagged,
	})
}
