package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bikerental/internal/domain"
	"bikerental/internal/redis"
	"bikerental/internal/repository"
)

// DraftService keeps quoted booking requests server-side between the quote
// and the commit. A draft reserves nothing.
type DraftService struct {
	store    repository.Store
	drafts   redis.DraftStoreInterface
	bookings *BookingService
	policy   Policy
	logger   *zap.Logger
	clock    func() time.Time
}

// NewDraftService creates a new DraftService.
func NewDraftService(
	store repository.Store,
	drafts redis.DraftStoreInterface,
	bookings *BookingService,
	policy Policy,
	logger *zap.Logger,
) *DraftService {
	return &DraftService{
		store:    store,
		drafts:   drafts,
		bookings: bookings,
		policy:   policy,
		logger:   logger,
		clock:    time.Now,
	}
}

// WithClock replaces the time source.
func (s *DraftService) WithClock(clock func() time.Time) *DraftService {
	s.clock = clock
	return s
}

// StartDraft validates and prices a booking request and stores it under a
// fresh token.
func (s *DraftService) StartDraft(ctx context.Context, actor domain.Actor, req CreateBookingRequest) (*domain.BookingDraft, error) {
	now := s.clock()
	repos := s.store.Repos()

	bike, err := repos.Bikes.GetByID(ctx, req.BikeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBikeNotFound
		}
		return nil, err
	}
	if bike.OwnerID == actor.UserID {
		return nil, ErrOwnBike
	}
	if !bike.Bookable() {
		return nil, ErrBikeNotBookable
	}

	quote, err := s.policy.Quote(bike, req.Quantity, req.StartDate, req.EndDate, now, req.RateType)
	if err != nil {
		return nil, err
	}

	draft := &domain.BookingDraft{
		Token:       uuid.NewString(),
		RenterID:    actor.UserID,
		BikeID:      bike.ID,
		Quantity:    req.Quantity,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		RateType:    quote.RateType,
		Hours:       quote.Hours,
		BaseRate:    quote.BaseRate,
		ServiceFee:  quote.ServiceFee,
		TotalAmount: quote.TotalAmount,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.policy.DraftTTL),
	}
	if err := s.drafts.Save(ctx, draft); err != nil {
		return nil, err
	}
	return draft, nil
}

// GetDraft returns a live draft owned by the actor.
func (s *DraftService) GetDraft(ctx context.Context, actor domain.Actor, token string) (*domain.BookingDraft, error) {
	if token == "" {
		return nil, ErrInvalidDraft
	}

	draft, err := s.drafts.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if draft == nil || draft.RenterID != actor.UserID {
		return nil, ErrInvalidDraft
	}
	if draft.Expired(s.clock()) {
		_ = s.drafts.Delete(ctx, token)
		return nil, ErrInvalidDraft
	}
	return draft, nil
}

// CommitDraft turns a draft into a PENDING booking. Availability and pricing
// are checked again at commit time. The draft is taken out of the store
// before the booking is created, so concurrent commits of one token yield at
// most one booking; it is put back only when the failure may clear on retry.
func (s *DraftService) CommitDraft(ctx context.Context, actor domain.Actor, token string) (*domain.Booking, error) {
	if token == "" {
		return nil, ErrInvalidDraft
	}

	draft, err := s.drafts.Take(ctx, token)
	if err != nil {
		return nil, err
	}
	if draft == nil {
		return nil, ErrInvalidDraft
	}
	if draft.RenterID != actor.UserID {
		s.restoreDraft(ctx, draft)
		return nil, ErrInvalidDraft
	}
	if draft.Expired(s.clock()) {
		return nil, ErrInvalidDraft
	}

	booking, err := s.bookings.CreateBooking(ctx, actor, CreateBookingRequest{
		BikeID:    draft.BikeID,
		Quantity:  draft.Quantity,
		StartDate: draft.StartDate,
		EndDate:   draft.EndDate,
		RateType:  draft.RateType,
	})
	if err != nil {
		if retryableCommitError(err) {
			s.restoreDraft(ctx, draft)
		}
		return nil, err
	}
	return booking, nil
}

// retryableCommitError reports whether a failed commit may succeed later
// with the same draft: lock contention, inventory taken by others, or an
// infrastructure error.
func retryableCommitError(err error) bool {
	switch KindOf(err) {
	case KindStateConflict, KindUnknown:
		return true
	}
	return false
}

func (s *DraftService) restoreDraft(ctx context.Context, draft *domain.BookingDraft) {
	if err := s.drafts.Save(context.WithoutCancel(ctx), draft); err != nil {
		s.logger.Warn("failed to restore draft", zap.String("token", draft.Token), zap.Error(err))
	}
}

// MemoryDraftStore keeps drafts in process memory for single-instance
// deployments without Redis. Expiry is enforced by DraftService.
type MemoryDraftStore struct {
	mu     sync.Mutex
	drafts map[string]domain.BookingDraft
}

// NewMemoryDraftStore creates an empty MemoryDraftStore.
func NewMemoryDraftStore() *MemoryDraftStore {
	return &MemoryDraftStore{
		drafts: make(map[string]domain.BookingDraft),
	}
}

func (m *MemoryDraftStore) Save(_ context.Context, draft *domain.BookingDraft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drafts[draft.Token] = *draft
	return nil
}

func (m *MemoryDraftStore) Get(_ context.Context, token string) (*domain.BookingDraft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.drafts[token]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (m *MemoryDraftStore) Take(_ context.Context, token string) (*domain.BookingDraft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.drafts[token]
	if !ok {
		return nil, nil
	}
	delete(m.drafts, token)
	return &d, nil
}

func (m *MemoryDraftStore) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drafts, token)
	return nil
}

var _ redis.DraftStoreInterface = (*MemoryDraftStore)(nil)
