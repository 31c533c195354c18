package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bikerental/internal/app"
	"bikerental/internal/domain"
	"bikerental/internal/gateway"
	"bikerental/internal/handler"
	"bikerental/internal/middleware"
)

// api drives the full router against the harness services.
type api struct {
	*harness
	router *gin.Engine
	auth   *middleware.Authenticator
}

func newAPI(t *testing.T) *api {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := newHarness(t)
	logger := zap.NewNop()
	auth := middleware.NewAuthenticator("test-secret", time.Hour, logger)

	router := app.NewRouter(app.RouterDeps{
		UserHandler:      handler.NewUserHandler(h.users, auth, logger),
		BikeHandler:      handler.NewBikeHandler(h.bikes, h.avail),
		BookingHandler:   handler.NewBookingHandler(h.bookings, h.receipts, h.locations),
		DraftHandler:     handler.NewDraftHandler(h.drafts),
		PaymentHandler:   handler.NewPaymentHandler(h.payments),
		WalletHandler:    handler.NewWalletHandler(h.ledger, h.payments),
		DamageHandler:    handler.NewDamageHandler(h.disputes, h.payments),
		AdminHandler:     handler.NewAdminHandler(h.locations),
		Auth:             auth,
		IdempotencyCache: middleware.NewMemoryResponseCache(),
		AllowedOrigins:   []string{"*"},
		Logger:           logger,
	})

	return &api{harness: h, router: router, auth: auth}
}

func (a *api) token(actor domain.Actor) string {
	a.t.Helper()
	tok, err := a.auth.Issue(actor.UserID, actor.Roles)
	require.NoError(a.t, err)
	return tok
}

func (a *api) do(method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	a.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHTTP_Health(t *testing.T) {
	a := newAPI(t)

	w := a.do(http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHTTP_RequiresBearerToken(t *testing.T) {
	a := newAPI(t)

	w := a.do(http.MethodGet, "/v1/bookings", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = a.do(http.MethodGet, "/v1/bookings", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	forged := middleware.NewAuthenticator("other-secret", time.Hour, zap.NewNop())
	tok, err := forged.Issue("renter-1", []domain.Role{domain.RoleAdmin})
	require.NoError(t, err)
	w = a.do(http.MethodGet, "/v1/bookings", tok, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHTTP_RegisterIssuesUsableToken(t *testing.T) {
	a := newAPI(t)

	w := a.do(http.MethodPost, "/v1/users/register", "", map[string]any{
		"name":  "Ana",
		"email": "ana@example.com",
		"roles": []string{"OWNER", "ADMIN"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	resp := decode[handler.AuthResponse](t, w)
	assert.ElementsMatch(t, []string{"RENTER", "OWNER"}, resp.User.Roles, "admin signup is disabled")
	require.NotEmpty(t, resp.Token)

	w = a.do(http.MethodGet, "/v1/users/me", resp.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[handler.UserResponse](t, w)
	assert.Equal(t, resp.User.ID, me.ID)
}

func TestHTTP_RegisterValidation(t *testing.T) {
	a := newAPI(t)

	w := a.do(http.MethodPost, "/v1/users/register", "", map[string]any{
		"name":  "Ana",
		"email": "not-an-email",
		"roles": []string{"PILOT"},
	})

	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode[handler.ErrorResponse](t, w)
	assert.Equal(t, "invalid_request", resp.Code)
	assert.NotEmpty(t, resp.Fields)
}

func TestHTTP_RentalLifecycle(t *testing.T) {
	a := newAPI(t)
	owner := a.addUser("owner-1", domain.RoleOwner)
	renter := a.addUser("renter-1")
	ownerTok, renterTok := a.token(owner), a.token(renter)

	// Owner lists a bike.
	w := a.do(http.MethodPost, "/v1/bikes", ownerTok, map[string]any{
		"name":        "Trail Bike",
		"hourly_rate": "100",
		"quantity":    2,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	bike := decode[handler.BikeResponse](t, w)

	// Renter books 3 hours.
	start := a.now.Add(time.Hour)
	w = a.do(http.MethodPost, "/v1/bookings", renterTok, map[string]any{
		"bike_id":    bike.ID,
		"quantity":   1,
		"start_date": start.Format(time.RFC3339),
		"end_date":   start.Add(3 * time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	booking := decode[handler.BookingResponse](t, w)
	assert.Equal(t, "PENDING", booking.Status)
	assert.Equal(t, "300.00", booking.BaseRate)
	assert.Equal(t, "30.00", booking.ServiceFee)
	assert.Equal(t, "330.00", booking.TotalAmount)

	// Availability reflects the reservation.
	w = a.do(http.MethodGet, "/v1/bikes/"+bike.ID, renterTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[handler.BikeResponse](t, w)
	require.NotNil(t, got.Availability)
	assert.Equal(t, 1, got.Availability.Available)

	w = a.do(http.MethodGet, "/v1/bikes/"+bike.ID+"/availability", ownerTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[handler.AvailabilityResponse](t, w).Reserved)

	// Renter pays from the wallet.
	a.fund(renter.UserID, 500)
	w = a.do(http.MethodPost, "/v1/payments", renterTok, map[string]any{
		"target":    "BOOKING",
		"target_id": booking.ID,
		"method":    "WALLET",
		"amount":    "330.00",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	payment := decode[handler.PaymentResponse](t, w)
	assert.Equal(t, "COMPLETED", payment.Status)

	// Owner accepts; the paid booking goes live.
	w = a.do(http.MethodPost, "/v1/bookings/"+booking.ID+"/accept", ownerTok, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "ACTIVE", decode[handler.BookingResponse](t, w).Status)

	// Owner confirms the return.
	w = a.do(http.MethodPost, "/v1/bookings/"+booking.ID+"/return", ownerTok, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "COMPLETED", decode[handler.BookingResponse](t, w).Status)

	// Owner earned the base rate; renter earned points.
	w = a.do(http.MethodGet, "/v1/wallet", ownerTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "300.00", decode[map[string]any](t, w)["balance"])

	w = a.do(http.MethodGet, "/v1/points", renterTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 3, decode[map[string]any](t, w)["balance"])

	w = a.do(http.MethodGet, "/v1/bookings/"+booking.ID+"/receipt", renterTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	receipt := decode[handler.ReceiptResponse](t, w)
	assert.Equal(t, "330.00", receipt.AmountPaid)
	assert.Len(t, receipt.Payments, 1)

	w = a.do(http.MethodGet, "/v1/wallet/transactions", renterTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[map[string][]handler.TransactionResponse](t, w)["transactions"], 2)
}

func TestHTTP_ErrorMapping(t *testing.T) {
	a := newAPI(t)
	owner := a.addUser("owner-1", domain.RoleOwner)
	renter := a.addUser("renter-1")
	stranger := a.addUser("stranger-1")
	bike := a.addBike(owner, 1, 100)
	b := a.book(renter, bike.ID, 1, 2)

	tests := []struct {
		name   string
		method string
		path   string
		actor  domain.Actor
		body   any
		status int
		code   string
	}{
		{"unknown booking", http.MethodGet, "/v1/bookings/missing", renter, nil, http.StatusNotFound, "booking_not_found"},
		{"renter cannot accept", http.MethodPost, "/v1/bookings/" + b.ID + "/accept", renter, nil, http.StatusForbidden, "not_owner"},
		{"stranger cannot read", http.MethodGet, "/v1/bookings/" + b.ID, stranger, nil, http.StatusForbidden, "not_party"},
		{"wrong amount", http.MethodPost, "/v1/payments", renter, map[string]any{
			"target": "BOOKING", "target_id": b.ID, "method": "WALLET", "amount": "1.00",
		}, http.StatusBadRequest, "amount_mismatch"},
		{"unknown method", http.MethodPost, "/v1/payments", renter, map[string]any{
			"target": "BOOKING", "target_id": b.ID, "method": "BITCOIN", "amount": "220.00",
		}, http.StatusBadRequest, "invalid_request"},
		{"non-positive amount", http.MethodPost, "/v1/payments", renter, map[string]any{
			"target": "BOOKING", "target_id": b.ID, "method": "WALLET", "amount": "0",
		}, http.StatusBadRequest, "invalid_request"},
		{"insufficient funds", http.MethodPost, "/v1/payments", renter, map[string]any{
			"target": "BOOKING", "target_id": b.ID, "method": "WALLET", "amount": "220.00",
		}, http.StatusConflict, "insufficient_funds"},
		{"return before active", http.MethodPost, "/v1/bookings/" + b.ID + "/return", owner, nil, http.StatusConflict, "wrong_state"},
		{"non-admin nearby", http.MethodGet, "/v1/admin/rentals/nearby?lat=14.5&lng=121.0", renter, nil, http.StatusForbidden, "not_admin"},
		{"bad listing", http.MethodPost, "/v1/bikes", owner, map[string]any{
			"name": "x", "hourly_rate": "-5", "quantity": 1,
		}, http.StatusBadRequest, "invalid_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := a.do(tt.method, tt.path, a.token(tt.actor), tt.body)

			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, decode[handler.ErrorResponse](t, w).Code)
		})
	}
}

func TestHTTP_IdempotencyKeyReplaysPayment(t *testing.T) {
	a := newAPI(t)
	owner := a.addUser("owner-1", domain.RoleOwner)
	renter := a.addUser("renter-1")
	bike := a.addBike(owner, 1, 100)
	b := a.book(renter, bike.ID, 1, 2)
	a.fund(renter.UserID, 1000)
	tok := a.token(renter)

	body := map[string]any{
		"target": "BOOKING", "target_id": b.ID, "method": "WALLET", "amount": b.TotalAmount.StringFixed(2),
	}

	first := a.do(http.MethodPost, "/v1/payments", tok, body, "Idempotency-Key", "pay-1")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	second := a.do(http.MethodPost, "/v1/payments", tok, body, "Idempotency-Key", "pay-1")
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	// A fresh key reaches the service, which refuses the double payment.
	third := a.do(http.MethodPost, "/v1/payments", tok, body, "Idempotency-Key", "pay-2")
	assert.Equal(t, http.StatusConflict, third.Code)
	assert.Equal(t, "already_paid", decode[handler.ErrorResponse](t, third).Code)

	assert.True(t, a.balance(renter.UserID).Equal(dec("1000").Sub(b.TotalAmount)))
}

func TestHTTP_GatewayTopUpAndConfirm(t *testing.T) {
	a := newAPI(t)
	renter := a.addUser("renter-1")
	tok := a.token(renter)

	w := a.do(http.MethodPost, "/v1/wallet/top-up", tok, map[string]any{
		"method": "GCASH",
		"amount": "250.00",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	checkout := decode[map[string]handler.CheckoutResponse](t, w)["checkout"]
	assert.Equal(t, "PENDING", checkout.Payment.Status)
	require.NotEmpty(t, checkout.IntentID)
	assert.NotEmpty(t, checkout.RedirectURL)

	w = a.do(http.MethodPost, "/v1/payments/gateway/"+checkout.IntentID+"/confirm", tok, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := decode[map[string]handler.ConfirmResponse](t, w)["result"]
	assert.Equal(t, "COMPLETED", result.Payment.Status)
	assert.False(t, result.AlreadyProcessed)

	// The browser redirect lands on the same reconciliation.
	w = a.do(http.MethodGet, "/v1/payments/return?payment_intent_id="+checkout.IntentID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[map[string]handler.ConfirmResponse](t, w)["result"].AlreadyProcessed)

	assert.True(t, a.balance(renter.UserID).Equal(dec("250")))
}

func TestHTTP_GatewayPendingIsAccepted(t *testing.T) {
	a := newAPI(t)
	renter := a.addUser("renter-1")
	tok := a.token(renter)
	a.gw.SettleStatus = gateway.StatusProcessing

	w := a.do(http.MethodPost, "/v1/wallet/top-up", tok, map[string]any{"method": "PAYMAYA", "amount": "100"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	intentID := decode[map[string]handler.CheckoutResponse](t, w)["checkout"].IntentID

	w = a.do(http.MethodPost, "/v1/payments/gateway/"+intentID+"/confirm", tok, nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "gateway_pending", decode[handler.ErrorResponse](t, w).Code)
	assert.True(t, a.balance(renter.UserID).IsZero())
}

func TestHTTP_DraftFlow(t *testing.T) {
	a := newAPI(t)
	owner := a.addUser("owner-1", domain.RoleOwner)
	renter := a.addUser("renter-1")
	bike := a.addBike(owner, 1, 80)
	tok := a.token(renter)

	start := a.now.Add(2 * time.Hour)
	w := a.do(http.MethodPost, "/v1/drafts", tok, map[string]any{
		"bike_id":    bike.ID,
		"quantity":   1,
		"start_date": start.Format(time.RFC3339),
		"end_date":   start.Add(2 * time.Hour).Format(time.RFC3339),
		"rate_type":  "HOURLY",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	draft := decode[handler.DraftResponse](t, w)
	assert.Equal(t, "176.00", draft.TotalAmount)

	w = a.do(http.MethodGet, "/v1/drafts/"+draft.Token, a.token(owner), nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "drafts are private to the renter")

	w = a.do(http.MethodPost, "/v1/drafts/"+draft.Token+"/commit", tok, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "176.00", decode[handler.BookingResponse](t, w).TotalAmount)

	w = a.do(http.MethodPost, "/v1/drafts/"+draft.Token+"/commit", tok, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHTTP_DamageDisputeFlow(t *testing.T) {
	a := newAPI(t)
	owner := a.addUser("owner-1", domain.RoleOwner)
	renter := a.addUser("renter-1")
	bike := a.addBike(owner, 1, 100)
	b := a.activeBooking(renter, owner, bike.ID, 1, 2)
	_, err := a.bookings.ConfirmReturn(a.ctx, owner, b.ID)
	require.NoError(t, err)

	w := a.do(http.MethodPost, "/v1/damages", a.token(owner), map[string]any{
		"booking_id":  b.ID,
		"cost":        "150.00",
		"description": "bent rim",
		"photo_urls":  []string{"https://img.example/rim.jpg"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	damage := decode[handler.DamageResponse](t, w)
	assert.Equal(t, "PENDING", damage.Status)

	w = a.do(http.MethodPost, "/v1/damages/"+damage.ID+"/dispute", a.token(renter), map[string]any{"note": "was already bent"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "DISPUTED", decode[handler.DamageResponse](t, w).Status)

	w = a.do(http.MethodPost, "/v1/damages/"+damage.ID+"/resolve", a.token(owner), map[string]any{"outcome": "WAIVED"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(http.MethodPost, "/v1/damages/"+damage.ID+"/resolve", a.token(admin), map[string]any{"outcome": "WAIVED", "note": "photos predate rental"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "WAIVED", decode[handler.DamageResponse](t, w).Status)

	w = a.do(http.MethodPost, "/v1/red-tags", a.token(owner), map[string]any{"booking_id": b.ID, "reason": "argued at pickup"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = a.do(http.MethodGet, "/v1/renters/"+renter.UserID+"/standing", a.token(owner), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode[map[string]any](t, w)["is_red_tagged"])
}

func TestHTTP_AdminUserManagement(t *testing.T) {
	a := newAPI(t)
	a.addUser(admin.UserID, domain.RoleAdmin)
	renter := a.addUser("renter-1")

	w := a.do(http.MethodPost, "/v1/admin/users/"+renter.UserID+"/suspension", a.token(renter), map[string]any{"suspended": true})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(http.MethodPost, "/v1/admin/users/"+renter.UserID+"/suspension", a.token(admin), map[string]any{"suspended": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decode[handler.UserResponse](t, w).IsSuspended)

	w = a.do(http.MethodDelete, "/v1/admin/users/"+renter.UserID, a.token(admin), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = a.do(http.MethodGet, "/v1/users/"+renter.UserID, a.token(admin), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
