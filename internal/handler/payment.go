package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"bikerental/internal/domain"
	"bikerental/internal/service"
)

// PaymentHandler handles HTTP requests for payments.
type PaymentHandler struct {
	paymentService *service.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentService *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// ProcessPaymentRequest is the HTTP request body for a wallet or cash payment.
type ProcessPaymentRequest struct {
	Target   domain.PaymentTarget `json:"target" binding:"required,payment_target"`
	TargetID string               `json:"target_id" binding:"required"`
	Method   domain.PaymentMethod `json:"method" binding:"required,payment_method"`
	Amount   decimal.Decimal      `json:"amount" binding:"gt=0"`
}

// GatewayPaymentRequest is the HTTP request body for a card or e-wallet payment.
type GatewayPaymentRequest struct {
	Target          domain.PaymentTarget `json:"target" binding:"required,payment_target"`
	TargetID        string               `json:"target_id" binding:"required"`
	Method          domain.PaymentMethod `json:"method" binding:"required,gateway_method"`
	Amount          decimal.Decimal      `json:"amount" binding:"gt=0"`
	PaymentMethodID string               `json:"payment_method_id"`
}

// ProcessPayment handles POST /v1/payments
func (h *PaymentHandler) ProcessPayment(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}

	var req ProcessPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	payment, err := h.paymentService.ProcessPayment(c.Request.Context(), actor, service.PaymentRequest{
		Target:   req.Target,
		TargetID: req.TargetID,
		Method:   req.Method,
		Amount:   req.Amount,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toPaymentResponse(payment))
}

// CreateGatewayPayment handles POST /v1/payments/gateway
func (h *PaymentHandler) CreateGatewayPayment(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}

	var req GatewayPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	checkout, err := h.paymentService.CreateGatewayPayment(c.Request.Context(), actor, service.PaymentRequest{
		Target:          req.Target,
		TargetID:        req.TargetID,
		Method:          req.Method,
		Amount:          req.Amount,
		PaymentMethodID: req.PaymentMethodID,
	})
	respondCheckout(c, checkout, err)
}

// respondCheckout reports a started gateway payment. A declined or still
// processing intent still carries the recorded payment, so the body is the
// checkout with the error attached.
func respondCheckout(c *gin.Context, checkout *service.GatewayCheckout, err error) {
	if err != nil && (checkout == nil || checkout.Payment == nil) {
		respondError(c, err)
		return
	}

	body := gin.H{"checkout": toCheckoutResponse(checkout)}
	if err != nil {
		body["error"] = err.Error()
		body["code"] = service.CodeOf(err)
		respondJSON(c, mapErrorToHTTPStatus(err), body)
		return
	}
	respondJSON(c, http.StatusCreated, body)
}

// ConfirmGatewayPayment handles POST /v1/payments/gateway/:intent_id/confirm
// and the provider redirect GET /v1/payments/return?payment_intent_id=.
func (h *PaymentHandler) ConfirmGatewayPayment(c *gin.Context) {
	intentID := c.Param("intent_id")
	if intentID == "" {
		intentID = c.Query("payment_intent_id")
	}

	result, err := h.paymentService.ConfirmGatewayPayment(c.Request.Context(), intentID)
	if err != nil && (result == nil || result.Payment == nil) {
		respondError(c, err)
		return
	}

	resp := ConfirmResponse{
		Payment:          toPaymentResponse(result.Payment),
		IntentStatus:     string(result.Status),
		AlreadyProcessed: result.AlreadyProcessed,
	}
	if err != nil {
		respondJSON(c, mapErrorToHTTPStatus(err), gin.H{
			"result": resp,
			"error":  err.Error(),
			"code":   service.CodeOf(err),
		})
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"result": resp})
}

// GetPayment handles GET /v1/payments/:id
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}

	payment, err := h.paymentService.GetPayment(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toPaymentResponse(payment))
}

// ListPayments handles GET /v1/payments?target=BOOKING&target_id=
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}

	target := domain.PaymentTarget(c.Query("target"))
	targetID := c.Query("target_id")
	if targetID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "target_id is required", Code: "invalid_request"})
		return
	}

	payments, err := h.paymentService.ListPayments(c.Request.Context(), actor, target, targetID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"payments": toPaymentResponses(payments)})
}
