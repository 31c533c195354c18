package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"bikerental/internal/domain"
	"bikerental/internal/repository"
)

// ReceiptService handles receipt generation.
type ReceiptService struct {
	store repository.Store
	clock func() time.Time
}

// NewReceiptService creates a new ReceiptService.
func NewReceiptService(store repository.Store) *ReceiptService {
	return &ReceiptService{
		store: store,
		clock: time.Now,
	}
}

// WithClock replaces the time source.
func (s *ReceiptService) WithClock(clock func() time.Time) *ReceiptService {
	s.clock = clock
	return s
}

// GenerateReceipt summarizes what a booking cost and how it was settled.
func (s *ReceiptService) GenerateReceipt(ctx context.Context, actor domain.Actor, bookingID string) (*domain.Receipt, error) {
	repos := s.store.Repos()

	b, err := getBooking(ctx, repos, bookingID)
	if err != nil {
		return nil, err
	}
	if !b.IsParty(actor.UserID) && !actor.IsAdmin() {
		return nil, ErrNotParty
	}

	receipt := &domain.Receipt{
		BookingID:        b.ID,
		RenterID:         b.RenterID,
		OwnerID:          b.OwnerID,
		BikeID:           b.BikeID,
		Quantity:         b.Quantity,
		RateType:         b.RateType,
		Hours:            b.Hours,
		BaseRate:         b.BaseRate,
		ServiceFee:       b.ServiceFee,
		TotalAmount:      b.TotalAmount,
		AmountPaid:       decimal.Zero,
		AmountRefunded:   decimal.Zero,
		DamageCharges:    decimal.Zero,
		Status:           b.Status,
		StartDate:        b.StartDate,
		EndDate:          b.EndDate,
		ActualReturnDate: b.ActualReturnDate,
		GeneratedAt:      s.clock(),
	}

	// The listing may have been removed since; the receipt stays valid.
	bike, err := repos.Bikes.GetByID(ctx, b.BikeID)
	switch {
	case err == nil:
		receipt.BikeName = bike.Name
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	payments, err := repos.Payments.ListByTarget(ctx, domain.PaymentTargetBooking, b.ID)
	if err != nil {
		return nil, err
	}
	for _, p := range payments {
		switch p.Status {
		case domain.PaymentStatusCompleted:
			receipt.AmountPaid = receipt.AmountPaid.Add(p.Amount)
		case domain.PaymentStatusRefunded:
			receipt.AmountPaid = receipt.AmountPaid.Add(p.Amount)
			receipt.AmountRefunded = receipt.AmountRefunded.Add(p.RefundAmount)
		}
		receipt.Payments = append(receipt.Payments, *p)
	}

	damages, err := repos.Damages.ListByBooking(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	for _, d := range damages {
		if d.Status != domain.DamageStatusWaived {
			receipt.DamageCharges = receipt.DamageCharges.Add(d.Cost)
		}
		receipt.Damages = append(receipt.Damages, *d)
	}

	return receipt, nil
}
