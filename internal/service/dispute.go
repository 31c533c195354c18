package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bikerental/internal/domain"
	"bikerental/internal/repository"
)

// DisputeService manages damage claims, renter flags and red tags.
type DisputeService struct {
	store    repository.Store
	notifier *NotificationService
	logger   *zap.Logger
	clock    func() time.Time
}

// NewDisputeService creates a new DisputeService.
func NewDisputeService(store repository.Store, notifier *NotificationService, logger *zap.Logger) *DisputeService {
	return &DisputeService{
		store:    store,
		notifier: notifier,
		logger:   logger,
		clock:    time.Now,
	}
}

// WithClock replaces the time source.
func (s *DisputeService) WithClock(clock func() time.Time) *DisputeService {
	s.clock = clock
	return s
}

// ReportDamageRequest describes an owner's damage claim.
type ReportDamageRequest struct {
	BookingID   string
	Cost        decimal.Decimal
	Description string
	PhotoURLs   []string
}

// ReportDamage records a PENDING damage charge against the renter of a
// completed booking.
func (s *DisputeService) ReportDamage(ctx context.Context, actor domain.Actor, req ReportDamageRequest) (*domain.BikeDamage, error) {
	var damage *domain.BikeDamage
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		damage, err = createDamage(ctx, repos, s.clock(), actor, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("damage reported",
		zap.String("damage_id", damage.ID),
		zap.String("booking_id", damage.BookingID),
		zap.String("cost", damage.Cost.StringFixed(2)),
	)
	s.notifier.NotifyDamageReported(ctx, damage)
	return damage, nil
}

func createDamage(ctx context.Context, repos repository.Repositories, now time.Time, actor domain.Actor, req ReportDamageRequest) (*domain.BikeDamage, error) {
	if !req.Cost.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if strings.TrimSpace(req.Description) == "" {
		return nil, ErrDescriptionRequired
	}

	b, err := getBooking(ctx, repos, req.BookingID)
	if err != nil {
		return nil, err
	}
	if b.OwnerID != actor.UserID {
		return nil, ErrNotOwner
	}
	if b.Status != domain.BookingStatusCompleted {
		return nil, ErrWrongState
	}

	damage := &domain.BikeDamage{
		ID:          uuid.New().String(),
		BookingID:   b.ID,
		BikeID:      b.BikeID,
		OwnerID:     b.OwnerID,
		RenterID:    b.RenterID,
		Cost:        req.Cost,
		Description: req.Description,
		PhotoURLs:   req.PhotoURLs,
		Status:      domain.DamageStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := repos.Damages.Create(ctx, damage); err != nil {
		return nil, err
	}
	return damage, nil
}

// DisputeDamage lets the renter contest a PENDING charge.
func (s *DisputeService) DisputeDamage(ctx context.Context, actor domain.Actor, damageID, reason string) (*domain.BikeDamage, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, ErrReasonRequired
	}

	damage, err := s.transitionDamage(ctx, damageID, domain.DamageStatusDisputed, func(d *domain.BikeDamage) error {
		if d.RenterID != actor.UserID {
			return ErrNotRenter
		}
		if d.Status != domain.DamageStatusPending {
			return ErrDamageWrongState
		}
		d.DisputeReason = reason
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyDamageDisputed(ctx, damage)
	return damage, nil
}

// ResolveDispute is the admin decision on a DISPUTED charge. Resolving to
// PAID records that the charge was settled outside the platform.
func (s *DisputeService) ResolveDispute(ctx context.Context, actor domain.Actor, damageID string, outcome domain.DamageStatus, note string) (*domain.BikeDamage, error) {
	if !actor.IsAdmin() {
		return nil, ErrNotAdmin
	}
	if outcome != domain.DamageStatusPaid && outcome != domain.DamageStatusWaived {
		return nil, ErrDamageWrongState
	}

	damage, err := s.transitionDamage(ctx, damageID, outcome, func(d *domain.BikeDamage) error {
		if d.Status != domain.DamageStatusDisputed {
			return ErrDamageWrongState
		}
		d.ResolutionNote = note
		d.ResolvedBy = actor.UserID
		if outcome == domain.DamageStatusPaid {
			d.PaidAt = s.clock()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyDamageResolved(ctx, damage)
	return damage, nil
}

// WaiveDamage drops a PENDING charge. Allowed for the claiming owner or an admin.
func (s *DisputeService) WaiveDamage(ctx context.Context, actor domain.Actor, damageID, note string) (*domain.BikeDamage, error) {
	damage, err := s.transitionDamage(ctx, damageID, domain.DamageStatusWaived, func(d *domain.BikeDamage) error {
		if d.OwnerID != actor.UserID && !actor.IsAdmin() {
			return ErrNotOwner
		}
		if d.Status != domain.DamageStatusPending {
			return ErrDamageWrongState
		}
		d.ResolutionNote = note
		d.ResolvedBy = actor.UserID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyDamageResolved(ctx, damage)
	return damage, nil
}

func (s *DisputeService) transitionDamage(ctx context.Context, damageID string, next domain.DamageStatus, check func(*domain.BikeDamage) error) (*domain.BikeDamage, error) {
	var damage *domain.BikeDamage
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		d, err := repos.Damages.GetForUpdate(ctx, damageID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrDamageNotFound
			}
			return err
		}
		if err := check(d); err != nil {
			return err
		}
		if !d.Status.CanTransitionTo(next) {
			return ErrDamageWrongState
		}

		d.Status = next
		d.UpdatedAt = s.clock()
		damage = d
		return repos.Damages.Update(ctx, d)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("damage status changed",
		zap.String("damage_id", damage.ID),
		zap.String("status", string(damage.Status)),
	)
	return damage, nil
}

// GetDamage returns a damage record visible to its parties or an admin.
func (s *DisputeService) GetDamage(ctx context.Context, actor domain.Actor, damageID string) (*domain.BikeDamage, error) {
	d, err := getDamage(ctx, s.store.Repos(), damageID)
	if err != nil {
		return nil, err
	}
	if d.RenterID != actor.UserID && d.OwnerID != actor.UserID && !actor.IsAdmin() {
		return nil, ErrNotParty
	}
	return d, nil
}

func getDamage(ctx context.Context, repos repository.Repositories, id string) (*domain.BikeDamage, error) {
	d, err := repos.Damages.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDamageNotFound
		}
		return nil, err
	}
	return d, nil
}

// FlagRenterRequest describes an owner's flag against a renter.
type FlagRenterRequest struct {
	BookingID   string
	Reason      domain.FlagReason
	Description string
	Cost        decimal.Decimal
	PhotoURLs   []string
}

// FlagRenter records a flag against the renter of one of the owner's
// bookings. A DAMAGE flag also opens a damage claim in the same transaction.
func (s *DisputeService) FlagRenter(ctx context.Context, actor domain.Actor, req FlagRenterRequest) (*domain.RenterFlag, *domain.BikeDamage, error) {
	if !req.Reason.Valid() {
		return nil, nil, ErrInvalidFlagReason
	}
	if req.Reason == domain.FlagReasonDamage {
		if !req.Cost.IsPositive() {
			return nil, nil, ErrInvalidAmount
		}
		if len(req.PhotoURLs) == 0 {
			return nil, nil, ErrPhotoEvidenceRequired
		}
	}

	var flag *domain.RenterFlag
	var damage *domain.BikeDamage
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		now := s.clock()

		b, err := getBooking(ctx, repos, req.BookingID)
		if err != nil {
			return err
		}
		if b.OwnerID != actor.UserID {
			return ErrNotOwner
		}

		flag = &domain.RenterFlag{
			ID:          uuid.New().String(),
			BookingID:   b.ID,
			OwnerID:     b.OwnerID,
			RenterID:    b.RenterID,
			Reason:      req.Reason,
			Description: req.Description,
			PhotoURLs:   req.PhotoURLs,
			CreatedAt:   now,
		}

		if req.Reason == domain.FlagReasonDamage {
			description := req.Description
			if strings.TrimSpace(description) == "" {
				description = "Damage reported with renter flag"
			}
			damage, err = createDamage(ctx, repos, now, actor, ReportDamageRequest{
				BookingID:   b.ID,
				Cost:        req.Cost,
				Description: description,
				PhotoURLs:   req.PhotoURLs,
			})
			if err != nil {
				return err
			}
			flag.Cost = req.Cost
			flag.DamageID = damage.ID
		}

		return repos.Flags.CreateFlag(ctx, flag)
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("renter flagged",
		zap.String("flag_id", flag.ID),
		zap.String("renter_id", flag.RenterID),
		zap.String("reason", string(flag.Reason)),
	)
	if damage != nil {
		s.notifier.NotifyDamageReported(ctx, damage)
	}
	return flag, damage, nil
}

// RedTagRenter places an active red tag on the renter of one of the owner's
// bookings. An owner holds at most one active tag per renter.
func (s *DisputeService) RedTagRenter(ctx context.Context, actor domain.Actor, bookingID, reason string) (*domain.RenterRedTag, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, ErrReasonRequired
	}

	var tag *domain.RenterRedTag
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		b, err := getBooking(ctx, repos, bookingID)
		if err != nil {
			return err
		}
		if b.OwnerID != actor.UserID {
			return ErrNotOwner
		}

		active, err := repos.Flags.ListActiveRedTags(ctx, b.RenterID)
		if err != nil {
			return err
		}
		for _, t := range active {
			if t.OwnerID == actor.UserID {
				return ErrAlreadyRedTagged
			}
		}

		tag = &domain.RenterRedTag{
			ID:        uuid.New().String(),
			BookingID: b.ID,
			OwnerID:   b.OwnerID,
			RenterID:  b.RenterID,
			Reason:    reason,
			IsActive:  true,
			CreatedAt: s.clock(),
		}
		err = repos.Flags.CreateRedTag(ctx, tag)
		if errors.Is(err, repository.ErrConstraint) {
			return ErrAlreadyRedTagged
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("renter red-tagged",
		zap.String("red_tag_id", tag.ID),
		zap.String("renter_id", tag.RenterID),
		zap.String("owner_id", tag.OwnerID),
	)
	s.notifier.NotifyRenterRedTagged(ctx, tag)
	return tag, nil
}

// ResolveRedTag deactivates a tag. Only an admin or the tagging owner may.
func (s *DisputeService) ResolveRedTag(ctx context.Context, actor domain.Actor, tagID, note string) (*domain.RenterRedTag, error) {
	var tag *domain.RenterRedTag
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		t, err := repos.Flags.GetRedTagForUpdate(ctx, tagID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrRedTagNotFound
			}
			return err
		}
		if t.OwnerID != actor.UserID && !actor.IsAdmin() {
			return ErrNotOwner
		}
		if !t.IsActive {
			return ErrRedTagResolved
		}

		t.IsActive = false
		t.ResolvedBy = actor.UserID
		t.ResolvedAt = s.clock()
		t.ResolutionNote = note
		tag = t
		return repos.Flags.UpdateRedTag(ctx, t)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("red tag resolved", zap.String("red_tag_id", tag.ID), zap.String("resolved_by", tag.ResolvedBy))
	return tag, nil
}

// IsRedTagged reports whether any owner holds an active tag on the renter.
func (s *DisputeService) IsRedTagged(ctx context.Context, renterID string) (bool, error) {
	active, err := s.store.Repos().Flags.ListActiveRedTags(ctx, renterID)
	if err != nil {
		return false, err
	}
	return len(active) > 0, nil
}

// RenterStanding summarizes a renter's moderation record.
func (s *DisputeService) RenterStanding(ctx context.Context, renterID string) (*domain.RenterStanding, error) {
	repos := s.store.Repos()

	if _, err := repos.Users.GetByID(ctx, renterID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	flags, err := repos.Flags.ListFlagsByRenter(ctx, renterID)
	if err != nil {
		return nil, err
	}
	active, err := repos.Flags.ListActiveRedTags(ctx, renterID)
	if err != nil {
		return nil, err
	}

	return &domain.RenterStanding{
		RenterID:      renterID,
		FlagCount:     len(flags),
		ActiveRedTags: len(active),
		IsRedTagged:   len(active) > 0,
	}, nil
}
