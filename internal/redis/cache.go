package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"bikerental/internal/domain"
)

const draftKeyPrefix = "draft:booking:"

// DraftStore keeps booking drafts as JSON with a TTL equal to their remaining
// lifetime.
type DraftStore struct {
	client *redis.Client
}

// NewDraftStore creates a new DraftStore.
func NewDraftStore(client *redis.Client) *DraftStore {
	return &DraftStore{client: client}
}

// cachedDraft is the JSON shape of a stored draft.
type cachedDraft struct {
	Token       string          `json:"token"`
	RenterID    string          `json:"renter_id"`
	BikeID      string          `json:"bike_id"`
	Quantity    int             `json:"quantity"`
	StartDate   time.Time       `json:"start_date"`
	EndDate     time.Time       `json:"end_date"`
	RateType    string          `json:"rate_type"`
	Hours       int             `json:"hours"`
	BaseRate    decimal.Decimal `json:"base_rate"`
	ServiceFee  decimal.Decimal `json:"service_fee"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	CreatedAt   time.Time       `json:"created_at"`
	ExpiresAt   time.Time       `json:"expires_at"`
}

// Save stores a draft until its ExpiresAt.
func (s *DraftStore) Save(ctx context.Context, draft *domain.BookingDraft) error {
	ttl := time.Until(draft.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(cachedDraft{
		Token:       draft.Token,
		RenterID:    draft.RenterID,
		BikeID:      draft.BikeID,
		Quantity:    draft.Quantity,
		StartDate:   draft.StartDate,
		EndDate:     draft.EndDate,
		RateType:    string(draft.RateType),
		Hours:       draft.Hours,
		BaseRate:    draft.BaseRate,
		ServiceFee:  draft.ServiceFee,
		TotalAmount: draft.TotalAmount,
		CreatedAt:   draft.CreatedAt,
		ExpiresAt:   draft.ExpiresAt,
	})
	if err != nil {
		return err
	}

	return s.client.Set(ctx, draftKeyPrefix+draft.Token, data, ttl).Err()
}

// Get retrieves a draft. Returns nil, nil when the token is unknown or expired.
func (s *DraftStore) Get(ctx context.Context, token string) (*domain.BookingDraft, error) {
	data, err := s.client.Get(ctx, draftKeyPrefix+token).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return decodeDraft(data)
}

// Take reads and deletes a draft in one GETDEL, so at most one caller
// receives it. Returns nil, nil when the token is unknown or expired.
func (s *DraftStore) Take(ctx context.Context, token string) (*domain.BookingDraft, error) {
	data, err := s.client.GetDel(ctx, draftKeyPrefix+token).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return decodeDraft(data)
}

func decodeDraft(data []byte) (*domain.BookingDraft, error) {
	var c cachedDraft
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}

	return &domain.BookingDraft{
		Token:       c.Token,
		RenterID:    c.RenterID,
		BikeID:      c.BikeID,
		Quantity:    c.Quantity,
		StartDate:   c.StartDate,
		EndDate:     c.EndDate,
		RateType:    domain.RateType(c.RateType),
		Hours:       c.Hours,
		BaseRate:    c.BaseRate,
		ServiceFee:  c.ServiceFee,
		TotalAmount: c.TotalAmount,
		CreatedAt:   c.CreatedAt,
		ExpiresAt:   c.ExpiresAt,
	}, nil
}

// Delete removes a draft.
func (s *DraftStore) Delete(ctx context.Context, token string) error {
	return s.client.Del(ctx, draftKeyPrefix+token).Err()
}
