package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bikerental/internal/domain"
)

func TestHTTPClient_CreateAttachAndPoll(t *testing.T) {
	t.Parallel()

	var created map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/payment_intents", func(w http.ResponseWriter, r *http.Request) {
		user, _, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "sk_test", user)

		var body envelope
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		created = body.Data.Attributes

		_, _ = w.Write([]byte(`{"data":{"id":"pi_1","attributes":{"status":"awaiting_payment_method","client_key":"ck"}}}`))
	})
	mux.HandleFunc("/v1/payment_methods", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"id":"pm_1"}}`))
	})
	mux.HandleFunc("/v1/payment_intents/pi_1/attach", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"id":"pi_1","attributes":{"status":"awaiting_next_action","next_action":{"redirect":{"url":"https://pay.example/auth"}}}}}`))
	})
	mux.HandleFunc("/v1/payment_intents/pi_1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"id":"pi_1","attributes":{"status":"succeeded","payment_method":"pm_1"}}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewHTTPClient(HTTPConfig{BaseURL: srv.URL, SecretKey: "sk_test"})
	ctx := context.Background()

	intent, err := client.CreatePaymentIntent(ctx, IntentRequest{
		Amount: decimal.RequireFromString("660.50"),
		Method: domain.PaymentMethodGCash,
	})
	require.NoError(t, err)
	require.Equal(t, "pi_1", intent.ID)
	require.EqualValues(t, 66050, created["amount"])
	require.Equal(t, "PHP", created["currency"])

	attached, err := client.AttachPaymentMethod(ctx, AttachRequest{IntentID: "pi_1", Method: domain.PaymentMethodGCash})
	require.NoError(t, err)
	require.Equal(t, StatusAwaitingNextAction, attached.Status)
	require.Equal(t, "https://pay.example/auth", attached.RedirectURL)
	require.Equal(t, "pm_1", attached.PaymentMethodID)

	status, err := client.GetIntentStatus(ctx, "pi_1")
	require.NoError(t, err)
	require.True(t, status.Success)
}

func TestHTTPClient_AttachDeclined(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":[{"code":"parameter_invalid","detail":"card declined"}]}`))
	}))
	defer srv.Close()

	client := NewHTTPClient(HTTPConfig{BaseURL: srv.URL, SecretKey: "sk"})
	result, err := client.AttachPaymentMethod(context.Background(), AttachRequest{
		IntentID:        "pi_x",
		Method:          domain.PaymentMethodCard,
		PaymentMethodID: "pm_card",
	})
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, StatusPaymentFailed, result.Status)
	require.Equal(t, "card declined", result.ErrorMessage)
}

func TestHTTPClient_CardNeedsToken(t *testing.T) {
	t.Parallel()

	client := NewHTTPClient(HTTPConfig{BaseURL: "http://unused"})
	_, err := client.AttachPaymentMethod(context.Background(), AttachRequest{IntentID: "pi", Method: domain.PaymentMethodCard})
	require.ErrorIs(t, err, ErrCardTokenRequired)
}

func TestHTTPClient_UnknownIntent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	client := NewHTTPClient(HTTPConfig{BaseURL: srv.URL})
	_, err := client.GetIntentStatus(context.Background(), "pi_missing")
	require.ErrorIs(t, err, ErrIntentNotFound)
}

func TestSandbox_SettlesAfterAttach(t *testing.T) {
	t.Parallel()

	sb := NewSandbox()
	ctx := context.Background()

	intent, err := sb.CreatePaymentIntent(ctx, IntentRequest{Amount: decimal.NewFromInt(10), Method: domain.PaymentMethodCard})
	require.NoError(t, err)

	status, err := sb.GetIntentStatus(ctx, intent.ID)
	require.NoError(t, err)
	require.Equal(t, StatusAwaitingPaymentMethod, status.Status)

	_, err = sb.AttachPaymentMethod(ctx, AttachRequest{IntentID: intent.ID, Method: domain.PaymentMethodCard, PaymentMethodID: "pm"})
	require.NoError(t, err)

	status, err = sb.GetIntentStatus(ctx, intent.ID)
	require.NoError(t, err)
	require.True(t, status.Success)

	sb.SetStatus(intent.ID, StatusProcessing)
	status, err = sb.GetIntentStatus(ctx, intent.ID)
	require.NoError(t, err)
	require.Equal(t, StatusProcessing, status.Status)
}

func TestSandbox_RejectsWalletMethod(t *testing.T) {
	t.Parallel()

	_, err := NewSandbox().CreatePaymentIntent(context.Background(), IntentRequest{Method: domain.PaymentMethodWallet})
	require.ErrorIs(t, err, ErrUnsupportedMethod)
}

func TestParseStatus(t *testing.T) {
	t.Parallel()

	require.Equal(t, StatusProcessing, ParseStatus("processing"))
	require.Equal(t, StatusUnknown, ParseStatus("refunded"))
	require.True(t, StatusPaymentFailed.Terminal())
	require.False(t, StatusAwaitingNextAction.Terminal())
}
