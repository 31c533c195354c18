package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bikerental/internal/domain"
	"bikerental/internal/service"
)

// WalletHandler handles the caller's wallet and loyalty points.
type WalletHandler struct {
	ledgerService  *service.LedgerService
	paymentService *service.PaymentService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(ledgerService *service.LedgerService, paymentService *service.PaymentService) *WalletHandler {
	return &WalletHandler{ledgerService: ledgerService, paymentService: paymentService}
}

// TopUpRequest is the HTTP request body for loading the wallet.
type TopUpRequest struct {
	Method          domain.PaymentMethod `json:"method" binding:"required,gateway_method"`
	Amount          decimal.Decimal      `json:"amount" binding:"gt=0"`
	PaymentMethodID string               `json:"payment_method_id"`
}

// RedeemRequest is the HTTP request body for spending points. A repeated
// reference_id is applied once.
type RedeemRequest struct {
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	ReferenceID string `json:"reference_id" binding:"max=64"`
}

// walletOwner resolves whose ledger is read: the caller, or the user named by
// ?user_id= when the caller is an admin.
func walletOwner(c *gin.Context) (string, bool) {
	actor, ok := actorOf(c)
	if !ok {
		return "", false
	}
	userID := c.Query("user_id")
	if userID == "" || userID == actor.UserID {
		return actor.UserID, true
	}
	if !actor.IsAdmin() {
		respondError(c, service.ErrNotAdmin)
		return "", false
	}
	return userID, true
}

// Balance handles GET /v1/wallet
func (h *WalletHandler) Balance(c *gin.Context) {
	userID, ok := walletOwner(c)
	if !ok {
		return
	}

	balance, err := h.ledgerService.Balance(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"user_id": userID, "balance": moneyString(balance)})
}

// Transactions handles GET /v1/wallet/transactions
func (h *WalletHandler) Transactions(c *gin.Context) {
	userID, ok := walletOwner(c)
	if !ok {
		return
	}

	txs, err := h.ledgerService.Transactions(c.Request.Context(), userID, limitParam(c, 50))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"transactions": toTransactionResponses(txs)})
}

// TopUp handles POST /v1/wallet/top-up
func (h *WalletHandler) TopUp(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}

	var req TopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	checkout, err := h.paymentService.TopUp(c.Request.Context(), actor, req.Method, req.Amount, req.PaymentMethodID)
	respondCheckout(c, checkout, err)
}

// Points handles GET /v1/points
func (h *WalletHandler) Points(c *gin.Context) {
	userID, ok := walletOwner(c)
	if !ok {
		return
	}

	balance, err := h.ledgerService.Points(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"user_id": userID, "balance": balance})
}

// PointsHistory handles GET /v1/points/history
func (h *WalletHandler) PointsHistory(c *gin.Context) {
	userID, ok := walletOwner(c)
	if !ok {
		return
	}

	entries, err := h.ledgerService.PointsHistory(c.Request.Context(), userID, limitParam(c, 50))
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]PointsEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toPointsEntryResponse(e))
	}
	respondJSON(c, http.StatusOK, gin.H{"history": out})
}

// RedeemPoints handles POST /v1/points/redeem
func (h *WalletHandler) RedeemPoints(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}

	var req RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if req.ReferenceID == "" {
		req.ReferenceID = uuid.NewString()
	}

	entry, err := h.ledgerService.RedeemPoints(c.Request.Context(), actor.UserID, req.Amount, req.ReferenceID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toPointsEntryResponse(entry))
}
