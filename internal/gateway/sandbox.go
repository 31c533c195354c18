package gateway

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Sandbox is an in-process provider for development and tests. Attached
// intents settle to SettleStatus on the next status check unless a status was
// forced with SetStatus.
type Sandbox struct {
	mu      sync.Mutex
	intents map[string]*sandboxIntent

	// SettleStatus is what an attached intent reports. Defaults to succeeded.
	SettleStatus IntentStatus
	// RedirectBase prefixes the redirect URL returned on attach.
	RedirectBase string
}

type sandboxIntent struct {
	status   IntentStatus
	forced   bool
	attached bool
	method   string
}

// NewSandbox creates a sandbox provider.
func NewSandbox() *Sandbox {
	return &Sandbox{
		intents:      make(map[string]*sandboxIntent),
		SettleStatus: StatusSucceeded,
		RedirectBase: "https://sandbox.invalid/authorize/",
	}
}

func (s *Sandbox) CreatePaymentIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	if _, err := providerType(req.Method); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := "pi_" + uuid.New().String()
	s.intents[id] = &sandboxIntent{status: StatusAwaitingPaymentMethod}
	return &Intent{ID: id, ClientKey: id + "_client", Status: StatusAwaitingPaymentMethod}, nil
}

func (s *Sandbox) AttachPaymentMethod(ctx context.Context, req AttachRequest) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	intent, ok := s.intents[req.IntentID]
	if !ok {
		return nil, ErrIntentNotFound
	}

	pmID := req.PaymentMethodID
	if pmID == "" {
		pmID = "pm_" + uuid.New().String()
	}
	intent.attached = true
	intent.method = pmID
	if !intent.forced {
		intent.status = StatusAwaitingNextAction
	}

	return &Result{
		Success:         intent.status == StatusSucceeded,
		Status:          intent.status,
		PaymentMethodID: pmID,
		RedirectURL:     s.RedirectBase + req.IntentID,
	}, nil
}

func (s *Sandbox) GetIntentStatus(ctx context.Context, intentID string) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	intent, ok := s.intents[intentID]
	if !ok {
		return nil, ErrIntentNotFound
	}
	if intent.attached && !intent.forced {
		intent.status = s.SettleStatus
	}

	result := &Result{
		Success:         intent.status == StatusSucceeded,
		Status:          intent.status,
		PaymentMethodID: intent.method,
	}
	if intent.status == StatusPaymentFailed {
		result.ErrorMessage = "declined by sandbox"
	}
	return result, nil
}

// SetStatus pins the status an intent reports from now on.
func (s *Sandbox) SetStatus(intentID string, status IntentStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if intent, ok := s.intents[intentID]; ok {
		intent.status = status
		intent.forced = true
	}
}
