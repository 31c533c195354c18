package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPConfig configures the provider HTTP client.
type HTTPConfig struct {
	BaseURL   string
	SecretKey string
	Timeout   time.Duration
}

// HTTPClient is a JSON:API client for a PayMongo-style provider.
type HTTPClient struct {
	baseURL   string
	secretKey string
	http      *http.Client
}

// NewHTTPClient creates a provider client.
func NewHTTPClient(cfg HTTPConfig) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPClient{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		secretKey: cfg.SecretKey,
		http:      &http.Client{Timeout: timeout},
	}
}

type envelope struct {
	Data resource `json:"data"`
}

type resource struct {
	ID         string         `json:"id,omitempty"`
	Type       string         `json:"type,omitempty"`
	Attributes map[string]any `json:"attributes"`
}

type intentAttributes struct {
	Status     string `json:"status"`
	ClientKey  string `json:"client_key"`
	NextAction *struct {
		Redirect struct {
			URL string `json:"url"`
		} `json:"redirect"`
	} `json:"next_action"`
	LastPaymentError *struct {
		FailedMessage string `json:"failed_message"`
	} `json:"last_payment_error"`
	PaymentMethod string `json:"payment_method"`
}

type intentResponse struct {
	Data struct {
		ID         string           `json:"id"`
		Attributes intentAttributes `json:"attributes"`
	} `json:"data"`
}

type apiErrors struct {
	Errors []struct {
		Code   string `json:"code"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

// APIError is a non-2xx provider response.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway responded %d: %s", e.StatusCode, e.Detail)
}

func (c *HTTPClient) CreatePaymentIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	pmType, err := providerType(req.Method)
	if err != nil {
		return nil, err
	}
	currency := req.Currency
	if currency == "" {
		currency = "PHP"
	}

	body := envelope{Data: resource{Attributes: map[string]any{
		"amount":                 minorUnits(req.Amount),
		"currency":               currency,
		"description":            req.Description,
		"payment_method_allowed": []string{pmType},
		"capture_type":           "automatic",
	}}}

	var resp intentResponse
	if err := c.do(ctx, http.MethodPost, "/v1/payment_intents", body, &resp); err != nil {
		return nil, err
	}

	return &Intent{
		ID:        resp.Data.ID,
		ClientKey: resp.Data.Attributes.ClientKey,
		Status:    ParseStatus(resp.Data.Attributes.Status),
	}, nil
}

func (c *HTTPClient) AttachPaymentMethod(ctx context.Context, req AttachRequest) (*Result, error) {
	pmID := req.PaymentMethodID
	if pmID == "" {
		pmType, err := providerType(req.Method)
		if err != nil {
			return nil, err
		}
		if pmType == "card" {
			return nil, ErrCardTokenRequired
		}

		var created struct {
			Data struct {
				ID string `json:"id"`
			} `json:"data"`
		}
		body := envelope{Data: resource{Attributes: map[string]any{"type": pmType}}}
		if err := c.do(ctx, http.MethodPost, "/v1/payment_methods", body, &created); err != nil {
			return failedResult(err)
		}
		pmID = created.Data.ID
	}

	body := envelope{Data: resource{Attributes: map[string]any{
		"payment_method": pmID,
		"return_url":     req.ReturnURL,
	}}}

	var resp intentResponse
	path := "/v1/payment_intents/" + req.IntentID + "/attach"
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return failedResult(err)
	}

	result := toResult(resp.Data.Attributes)
	result.PaymentMethodID = pmID
	return result, nil
}

func (c *HTTPClient) GetIntentStatus(ctx context.Context, intentID string) (*Result, error) {
	var resp intentResponse
	if err := c.do(ctx, http.MethodGet, "/v1/payment_intents/"+intentID, nil, &resp); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, ErrIntentNotFound
		}
		return nil, err
	}
	return toResult(resp.Data.Attributes), nil
}

// failedResult turns a provider rejection into a declined result. Transport
// errors are returned as errors.
func failedResult(err error) (*Result, error) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError {
		return &Result{Status: StatusPaymentFailed, ErrorMessage: apiErr.Detail}, nil
	}
	return nil, err
}

func toResult(attrs intentAttributes) *Result {
	result := &Result{
		Status:          ParseStatus(attrs.Status),
		PaymentMethodID: attrs.PaymentMethod,
	}
	result.Success = result.Status == StatusSucceeded
	if attrs.NextAction != nil {
		result.RedirectURL = attrs.NextAction.Redirect.URL
	}
	if attrs.LastPaymentError != nil {
		result.ErrorMessage = attrs.LastPaymentError.FailedMessage
	}
	return result
}

func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.secretKey, "")
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Detail: http.StatusText(resp.StatusCode)}
		var parsed apiErrors
		if json.Unmarshal(data, &parsed) == nil && len(parsed.Errors) > 0 {
			apiErr.Detail = parsed.Errors[0].Detail
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}
