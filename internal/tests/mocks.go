package tests

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"bikerental/internal/gateway"
	"bikerental/internal/notify"
	"bikerental/internal/redis"
)

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is a mock implementation of LockStore.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]mockLock

	// Counters
	AcquireCallCount int32
	ReleaseCallCount int32

	// Error injection
	AcquireError error

	// Force lock failure
	ForceAcquireFailure bool
}

type mockLock struct {
	token  string
	expiry time.Time
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{
		locks: make(map[string]mockLock),
	}
}

func (m *MockLockStore) AcquireBikeLock(ctx context.Context, bikeID string, ttl time.Duration) (string, bool, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	if m.AcquireError != nil {
		return "", false, m.AcquireError
	}
	if m.ForceAcquireFailure {
		return "", false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := "lock:bike:" + bikeID
	if held, exists := m.locks[key]; exists && time.Now().Before(held.expiry) {
		return "", false, nil // Lock still held.
	}

	token := uuid.New().String()
	m.locks[key] = mockLock{token: token, expiry: time.Now().Add(ttl)}
	return token, true, nil
}

func (m *MockLockStore) ReleaseBikeLock(ctx context.Context, bikeID, token string) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()

	key := "lock:bike:" + bikeID
	if held, ok := m.locks[key]; ok && held.token == token {
		delete(m.locks, key)
	}
	return nil
}

// IsLocked checks if a bike is locked (for test assertions).
func (m *MockLockStore) IsLocked(bikeID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	held, exists := m.locks["lock:bike:"+bikeID]
	return exists && time.Now().Before(held.expiry)
}

// ──────────────────────────────────────────────
// MOCK LOCATION STORE
// ──────────────────────────────────────────────

// MockLocationStore is a mock implementation of the live rental index.
type MockLocationStore struct {
	mu        sync.RWMutex
	locations []redis.RentalLocation

	// Counters
	UpdateRentalCallCount int32

	// Error injection
	UpdateRentalError error
	FindNearbyError   error
}

// NewMockLocationStore creates a new mock location store.
func NewMockLocationStore() *MockLocationStore {
	return &MockLocationStore{
		locations: make([]redis.RentalLocation, 0),
	}
}

func (m *MockLocationStore) UpdateRental(ctx context.Context, bookingID string, lat, lng float64) error {
	atomic.AddInt32(&m.UpdateRentalCallCount, 1)
	if m.UpdateRentalError != nil {
		return m.UpdateRentalError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	// Update existing or add new.
	for i, loc := range m.locations {
		if loc.BookingID == bookingID {
			m.locations[i].Lat = lat
			m.locations[i].Lng = lng
			return nil
		}
	}
	m.locations = append(m.locations, redis.RentalLocation{
		BookingID: bookingID,
		Lat:       lat,
		Lng:       lng,
	})
	return nil
}

func (m *MockLocationStore) FindNearbyRentals(ctx context.Context, lat, lng, radiusKm float64) ([]redis.RentalLocation, error) {
	if m.FindNearbyError != nil {
		return nil, m.FindNearbyError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	// Return all locations (mock doesn't do real geo filtering).
	result := make([]redis.RentalLocation, len(m.locations))
	copy(result, m.locations)
	return result, nil
}

func (m *MockLocationStore) RemoveRental(ctx context.Context, bookingID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, loc := range m.locations {
		if loc.BookingID == bookingID {
			m.locations = append(m.locations[:i], m.locations[i+1:]...)
			return nil
		}
	}
	return nil
}

// HasRental checks if a booking has a live position.
func (m *MockLocationStore) HasRental(bookingID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, loc := range m.locations {
		if loc.BookingID == bookingID {
			return true
		}
	}
	return false
}

// ──────────────────────────────────────────────
// RECORDING NOTIFICATION SINK
// ──────────────────────────────────────────────

// RecordingSink captures every notification it is sent.
type RecordingSink struct {
	mu       sync.Mutex
	messages []notify.Message

	// Error injection; messages are still recorded.
	SendError error
}

// NewRecordingSink creates an empty recording sink.
func NewRecordingSink() *RecordingSink {
	return &RecordingSink{}
}

func (r *RecordingSink) Send(ctx context.Context, msg notify.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return r.SendError
}

// Count returns how many notifications of a type went to a user. An empty
// userID matches everyone.
func (r *RecordingSink) Count(userID, typ string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.messages {
		if m.Type == typ && (userID == "" || m.UserID == userID) {
			n++
		}
	}
	return n
}

// ──────────────────────────────────────────────
// MOCK GATEWAY
// ──────────────────────────────────────────────

// MockGateway wraps the sandbox provider with call counters and error
// injection.
type MockGateway struct {
	*gateway.Sandbox

	// Counters
	CreateCallCount int32
	AttachCallCount int32
	StatusCallCount int32

	// Error injection
	CreateError error
	StatusError error
}

// NewMockGateway creates a gateway whose intents settle to succeeded.
func NewMockGateway() *MockGateway {
	return &MockGateway{Sandbox: gateway.NewSandbox()}
}

func (m *MockGateway) CreatePaymentIntent(ctx context.Context, req gateway.IntentRequest) (*gateway.Intent, error) {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return nil, m.CreateError
	}
	return m.Sandbox.CreatePaymentIntent(ctx, req)
}

func (m *MockGateway) AttachPaymentMethod(ctx context.Context, req gateway.AttachRequest) (*gateway.Result, error) {
	atomic.AddInt32(&m.AttachCallCount, 1)
	return m.Sandbox.AttachPaymentMethod(ctx, req)
}

func (m *MockGateway) GetIntentStatus(ctx context.Context, intentID string) (*gateway.Result, error) {
	atomic.AddInt32(&m.StatusCallCount, 1)
	if m.StatusError != nil {
		return nil, m.StatusError
	}
	return m.Sandbox.GetIntentStatus(ctx, intentID)
}

// ──────────────────────────────────────────────
// HELPER ERRORS
// ──────────────────────────────────────────────

var (
	ErrMockRedisDown = errors.New("mock: redis unavailable")
	ErrMockTimeout   = errors.New("mock: operation timeout")
)

var (
	_ redis.LockStoreInterface     = (*MockLockStore)(nil)
	_ redis.LocationStoreInterface = (*MockLocationStore)(nil)
	_ notify.Sink                  = (*RecordingSink)(nil)
	_ gateway.Client               = (*MockGateway)(nil)
)
