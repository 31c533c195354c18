package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bikerental/internal/domain"
	"bikerental/internal/gateway"
	"bikerental/internal/repository"
)

// PaymentService settles bookings, damage charges and wallet top-ups. Every
// settlement is all-or-nothing: the payment row, its ledger entries and the
// target's state change commit together.
type PaymentService struct {
	store    repository.Store
	gateway  gateway.Client
	notifier *NotificationService
	policy   Policy
	logger   *zap.Logger
	clock    func() time.Time
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(
	store repository.Store,
	gw gateway.Client,
	notifier *NotificationService,
	policy Policy,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		store:    store,
		gateway:  gw,
		notifier: notifier,
		policy:   policy,
		logger:   logger,
		clock:    time.Now,
	}
}

// WithClock replaces the time source.
func (s *PaymentService) WithClock(clock func() time.Time) *PaymentService {
	s.clock = clock
	return s
}

// PaymentRequest contains the parameters for paying a target.
type PaymentRequest struct {
	Target   domain.PaymentTarget
	TargetID string
	Method   domain.PaymentMethod
	Amount   decimal.Decimal

	// PaymentMethodID is a client-side tokenized gateway method, required for cards.
	PaymentMethodID string
}

// GatewayCheckout is the result of starting a gateway payment.
type GatewayCheckout struct {
	Payment     *domain.Payment
	IntentID    string
	ClientKey   string
	RedirectURL string
	Status      gateway.IntentStatus
}

// ConfirmResult is the outcome of reconciling a gateway intent.
type ConfirmResult struct {
	Payment *domain.Payment
	Status  gateway.IntentStatus
	// AlreadyProcessed is true when an earlier call already settled the payment.
	AlreadyProcessed bool
}

// payable is a locked payment target and the amount it is owed.
type payable struct {
	target  domain.PaymentTarget
	id      string
	due     decimal.Decimal
	booking *domain.Booking
	damage  *domain.BikeDamage
}

// ProcessPayment settles a target with the payer's wallet or with cash.
func (s *PaymentService) ProcessPayment(ctx context.Context, actor domain.Actor, req PaymentRequest) (*domain.Payment, error) {
	if req.Method != domain.PaymentMethodWallet && req.Method != domain.PaymentMethodCash {
		return nil, ErrInvalidPaymentMethod
	}
	if req.Target != domain.PaymentTargetBooking && req.Target != domain.PaymentTargetDamage {
		return nil, ErrInvalidTarget
	}
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var payment *domain.Payment
	var booking *domain.Booking
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		now := s.clock()

		p, err := resolvePayable(ctx, repos, actor, req.Target, req.TargetID)
		if err != nil {
			return err
		}
		if err := checkPayable(ctx, repos, p, req.Amount); err != nil {
			return err
		}
		if err := supersedeAttempts(ctx, repos, now, p.target, p.id); err != nil {
			return err
		}

		payment = &domain.Payment{
			ID:          uuid.New().String(),
			TargetType:  p.target,
			TargetID:    p.id,
			PayerID:     actor.UserID,
			Method:      req.Method,
			Amount:      req.Amount,
			Status:      domain.PaymentStatusCompleted,
			CompletedAt: now,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := repos.Payments.Create(ctx, payment); err != nil {
			return err
		}

		booking = p.booking
		return s.settle(ctx, repos, now, payment, p)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment completed",
		zap.String("payment_id", payment.ID),
		zap.String("target", string(payment.TargetType)),
		zap.String("target_id", payment.TargetID),
		zap.String("method", string(payment.Method)),
		zap.String("amount", payment.Amount.StringFixed(2)),
	)
	s.afterCompletion(ctx, payment, booking)
	return payment, nil
}

// CreateGatewayPayment opens a gateway intent for a target and records it as
// a PENDING payment. Earlier open attempts for the target are cancelled.
func (s *PaymentService) CreateGatewayPayment(ctx context.Context, actor domain.Actor, req PaymentRequest) (*GatewayCheckout, error) {
	if !req.Method.IsGateway() {
		return nil, ErrInvalidPaymentMethod
	}
	if !req.Target.Valid() {
		return nil, ErrInvalidTarget
	}
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if req.Target == domain.PaymentTargetWalletTopUp {
		req.TargetID = uuid.New().String()
	}

	// Validate before talking to the gateway; no transaction is held across
	// the external call.
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		p, err := resolvePayable(ctx, repos, actor, req.Target, req.TargetID)
		if err != nil {
			return err
		}
		if req.Target == domain.PaymentTargetWalletTopUp {
			p.due = req.Amount
		}
		return checkPayable(ctx, repos, p, req.Amount)
	})
	if err != nil {
		return nil, err
	}

	intent, err := s.gateway.CreatePaymentIntent(ctx, gateway.IntentRequest{
		Amount:      req.Amount,
		Currency:    s.policy.Currency,
		Description: fmt.Sprintf("%s %s", req.Target, req.TargetID),
		Method:      req.Method,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	attached, err := s.gateway.AttachPaymentMethod(ctx, gateway.AttachRequest{
		IntentID:        intent.ID,
		Method:          req.Method,
		PaymentMethodID: req.PaymentMethodID,
		ReturnURL:       s.policy.ReturnURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to attach payment method: %w", err)
	}

	checkout := &GatewayCheckout{
		IntentID:    intent.ID,
		ClientKey:   intent.ClientKey,
		RedirectURL: attached.RedirectURL,
		Status:      attached.Status,
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		now := s.clock()

		p, err := resolvePayable(ctx, repos, actor, req.Target, req.TargetID)
		if err != nil {
			return err
		}
		if req.Target == domain.PaymentTargetWalletTopUp {
			p.due = req.Amount
		}
		if err := checkPayable(ctx, repos, p, req.Amount); err != nil {
			return err
		}
		if err := supersedeAttempts(ctx, repos, now, p.target, p.id); err != nil {
			return err
		}

		payment := &domain.Payment{
			ID:                   uuid.New().String(),
			TargetType:           p.target,
			TargetID:             p.id,
			PayerID:              actor.UserID,
			Method:               req.Method,
			Amount:               req.Amount,
			Status:               domain.PaymentStatusPending,
			TransactionReference: intent.ID,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		if attached.Status == gateway.StatusPaymentFailed {
			payment.Status = domain.PaymentStatusFailed
			payment.FailureReason = attached.ErrorMessage
		}

		checkout.Payment = payment
		return repos.Payments.Create(ctx, payment)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("gateway payment created",
		zap.String("payment_id", checkout.Payment.ID),
		zap.String("intent_id", intent.ID),
		zap.String("status", string(attached.Status)),
	)

	switch {
	case checkout.Payment.Status == domain.PaymentStatusFailed:
		s.notifier.NotifyPaymentFailed(ctx, checkout.Payment)
		return checkout, fmt.Errorf("%w: %s", ErrGatewayFailed, attached.ErrorMessage)
	case attached.Success:
		// Some methods settle without a redirect.
		result, err := s.ConfirmGatewayPayment(ctx, intent.ID)
		if err != nil {
			return checkout, err
		}
		checkout.Payment = result.Payment
		checkout.Status = result.Status
	}

	return checkout, nil
}

// TopUp loads money into the caller's wallet through the gateway.
func (s *PaymentService) TopUp(ctx context.Context, actor domain.Actor, method domain.PaymentMethod, amount decimal.Decimal, paymentMethodID string) (*GatewayCheckout, error) {
	return s.CreateGatewayPayment(ctx, actor, PaymentRequest{
		Target:          domain.PaymentTargetWalletTopUp,
		Method:          method,
		Amount:          amount,
		PaymentMethodID: paymentMethodID,
	})
}

// ConfirmGatewayPayment reconciles a payment with its intent. It is safe to
// call concurrently and repeatedly: the first caller to observe success
// settles the payment, later callers get AlreadyProcessed.
func (s *PaymentService) ConfirmGatewayPayment(ctx context.Context, intentID string) (*ConfirmResult, error) {
	if intentID == "" {
		return nil, ErrPaymentNotFound
	}

	current, err := s.store.Repos().Payments.GetByReference(ctx, intentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	if current.Status == domain.PaymentStatusCompleted || current.Status == domain.PaymentStatusRefunded {
		return &ConfirmResult{Payment: current, Status: gateway.StatusSucceeded, AlreadyProcessed: true}, nil
	}

	status, err := s.gateway.GetIntentStatus(ctx, intentID)
	if err != nil {
		return nil, fmt.Errorf("failed to check payment intent: %w", err)
	}

	switch status.Status {
	case gateway.StatusSucceeded:
		return s.completeGatewayPayment(ctx, intentID)
	case gateway.StatusPaymentFailed:
		return s.failGatewayPayment(ctx, intentID, status.ErrorMessage)
	default:
		return &ConfirmResult{Payment: current, Status: status.Status},
			fmt.Errorf("%w: intent status %s", ErrGatewayTransient, status.Status)
	}
}

func (s *PaymentService) completeGatewayPayment(ctx context.Context, intentID string) (*ConfirmResult, error) {
	result := &ConfirmResult{Status: gateway.StatusSucceeded}
	var booking *domain.Booking
	var refunded bool

	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		now := s.clock()

		// Target row first, then the payment row, matching the order used
		// by cancellation and payment creation.
		ref, err := repos.Payments.GetByReference(ctx, intentID)
		if err != nil {
			return err
		}
		p, err := lockPayable(ctx, repos, ref.TargetType, ref.TargetID)
		if err != nil {
			return err
		}

		payment, err := repos.Payments.GetByReferenceForUpdate(ctx, intentID)
		if err != nil {
			return err
		}
		result.Payment = payment

		switch payment.Status {
		case domain.PaymentStatusCompleted, domain.PaymentStatusRefunded:
			result.AlreadyProcessed = true
			return nil
		case domain.PaymentStatusCancelled:
			refunded = true
			return refundToWallet(ctx, repos, now, payment)
		}

		if payment.TargetType == domain.PaymentTargetWalletTopUp {
			p.due = payment.Amount
		}
		if err := checkPayable(ctx, repos, p, payment.Amount); err != nil {
			// The target moved on while the payer was at the gateway. The
			// money is kept for the payer in their wallet.
			s.logger.Warn("gateway payment no longer applicable, crediting wallet",
				zap.String("payment_id", payment.ID), zap.Error(err))
			refunded = true
			return refundToWallet(ctx, repos, now, payment)
		}

		payment.Status = domain.PaymentStatusCompleted
		payment.FailureReason = ""
		payment.CompletedAt = now
		payment.UpdatedAt = now
		if err := repos.Payments.Update(ctx, payment); err != nil {
			return err
		}

		booking = p.booking
		return s.settle(ctx, repos, now, payment, p)
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}

	switch {
	case result.AlreadyProcessed:
	case refunded:
		s.notifier.NotifyRefundIssued(ctx, result.Payment)
	default:
		s.logger.Info("gateway payment completed",
			zap.String("payment_id", result.Payment.ID),
			zap.String("intent_id", intentID),
		)
		s.afterCompletion(ctx, result.Payment, booking)
	}
	return result, nil
}

func (s *PaymentService) failGatewayPayment(ctx context.Context, intentID, reason string) (*ConfirmResult, error) {
	result := &ConfirmResult{Status: gateway.StatusPaymentFailed}
	var changed bool

	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		payment, err := repos.Payments.GetByReferenceForUpdate(ctx, intentID)
		if err != nil {
			return err
		}
		result.Payment = payment

		if payment.Status != domain.PaymentStatusPending {
			return nil
		}
		payment.Status = domain.PaymentStatusFailed
		payment.FailureReason = reason
		payment.UpdatedAt = s.clock()
		changed = true
		return repos.Payments.Update(ctx, payment)
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}

	if changed {
		s.notifier.NotifyPaymentFailed(ctx, result.Payment)
	}
	if result.Payment.Status == domain.PaymentStatusFailed {
		return result, fmt.Errorf("%w: %s", ErrGatewayFailed, result.Payment.FailureReason)
	}
	return result, nil
}

// settle applies the ledger effects of a completed payment and advances its
// target.
func (s *PaymentService) settle(ctx context.Context, repos repository.Repositories, now time.Time, payment *domain.Payment, p *payable) error {
	escrow := s.policy.EscrowUserID

	switch p.target {
	case domain.PaymentTargetBooking:
		switch {
		case payment.Method == domain.PaymentMethodWallet:
			err := transfer(ctx, repos, now, payment.PayerID, escrow, payment.Amount,
				domain.TxRentalPayment, domain.TxEscrowHold, payment.ID)
			if err != nil {
				return err
			}
		case payment.Method.IsGateway():
			if _, err := postEntry(ctx, repos, now, escrow, payment.Amount, domain.TxEscrowHold, payment.ID); err != nil {
				return err
			}
		}

		b := p.booking
		if b.Accepted() && b.Status.CanTransitionTo(domain.BookingStatusActive) {
			b.Status = domain.BookingStatusActive
		}
		b.UpdatedAt = now
		return repos.Bookings.Update(ctx, b)

	case domain.PaymentTargetDamage:
		d := p.damage
		switch {
		case payment.Method == domain.PaymentMethodWallet:
			err := transfer(ctx, repos, now, payment.PayerID, d.OwnerID, payment.Amount,
				domain.TxDamagePayment, domain.TxDamageSettlement, payment.ID)
			if err != nil {
				return err
			}
		case payment.Method.IsGateway():
			if _, err := postEntry(ctx, repos, now, d.OwnerID, payment.Amount, domain.TxDamageSettlement, payment.ID); err != nil {
				return err
			}
		}

		d.Status = domain.DamageStatusPaid
		d.PaymentMethod = payment.Method
		d.PaidAt = now
		d.UpdatedAt = now
		return repos.Damages.Update(ctx, d)

	case domain.PaymentTargetWalletTopUp:
		_, err := postEntry(ctx, repos, now, payment.PayerID, payment.Amount, domain.TxLoad, payment.ID)
		return err
	}

	return ErrInvalidTarget
}

func (s *PaymentService) afterCompletion(ctx context.Context, payment *domain.Payment, booking *domain.Booking) {
	s.notifier.NotifyPaymentSuccess(ctx, payment)
	if booking != nil && booking.Status == domain.BookingStatusActive {
		s.notifier.NotifyBookingActive(ctx, booking)
	}
}

// GetPayment returns a payment visible to its payer or an admin.
func (s *PaymentService) GetPayment(ctx context.Context, actor domain.Actor, paymentID string) (*domain.Payment, error) {
	if paymentID == "" {
		return nil, ErrPaymentNotFound
	}

	payment, err := s.store.Repos().Payments.GetByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	if payment.PayerID != actor.UserID && !actor.IsAdmin() {
		return nil, ErrNotParty
	}
	return payment, nil
}

// ListPayments returns every attempt against a target, oldest first.
func (s *PaymentService) ListPayments(ctx context.Context, actor domain.Actor, target domain.PaymentTarget, targetID string) ([]*domain.Payment, error) {
	if !target.Valid() {
		return nil, ErrInvalidTarget
	}

	repos := s.store.Repos()
	if !actor.IsAdmin() {
		if err := authorizeTargetRead(ctx, repos, actor, target, targetID); err != nil {
			return nil, err
		}
	}
	return repos.Payments.ListByTarget(ctx, target, targetID)
}

func authorizeTargetRead(ctx context.Context, repos repository.Repositories, actor domain.Actor, target domain.PaymentTarget, targetID string) error {
	switch target {
	case domain.PaymentTargetBooking:
		b, err := getBooking(ctx, repos, targetID)
		if err != nil {
			return err
		}
		if !b.IsParty(actor.UserID) {
			return ErrNotParty
		}
	case domain.PaymentTargetDamage:
		d, err := getDamage(ctx, repos, targetID)
		if err != nil {
			return err
		}
		if d.RenterID != actor.UserID && d.OwnerID != actor.UserID {
			return ErrNotParty
		}
	case domain.PaymentTargetWalletTopUp:
		payments, err := repos.Payments.ListByTarget(ctx, target, targetID)
		if err != nil {
			return err
		}
		for _, p := range payments {
			if p.PayerID != actor.UserID {
				return ErrNotParty
			}
		}
	}
	return nil
}

// ──────────────────────────────────────────────
// SHARED SETTLEMENT HELPERS
// ──────────────────────────────────────────────

// resolvePayable locks the target and checks the actor may pay it.
func resolvePayable(ctx context.Context, repos repository.Repositories, actor domain.Actor, target domain.PaymentTarget, targetID string) (*payable, error) {
	p, err := lockPayable(ctx, repos, target, targetID)
	if err != nil {
		return nil, err
	}

	switch target {
	case domain.PaymentTargetBooking:
		if p.booking.RenterID != actor.UserID {
			return nil, ErrNotRenter
		}
	case domain.PaymentTargetDamage:
		if p.damage.RenterID != actor.UserID {
			return nil, ErrNotRenter
		}
	}
	return p, nil
}

func lockPayable(ctx context.Context, repos repository.Repositories, target domain.PaymentTarget, targetID string) (*payable, error) {
	p := &payable{target: target, id: targetID}

	switch target {
	case domain.PaymentTargetBooking:
		b, err := getBookingForUpdate(ctx, repos, targetID)
		if err != nil {
			return nil, err
		}
		p.booking = b
		p.due = b.TotalAmount
	case domain.PaymentTargetDamage:
		d, err := repos.Damages.GetForUpdate(ctx, targetID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrDamageNotFound
			}
			return nil, err
		}
		p.damage = d
		p.due = d.Cost
	case domain.PaymentTargetWalletTopUp:
		if targetID == "" {
			return nil, ErrInvalidTarget
		}
	default:
		return nil, ErrInvalidTarget
	}
	return p, nil
}

// checkPayable verifies the target accepts a payment of amount now.
func checkPayable(ctx context.Context, repos repository.Repositories, p *payable, amount decimal.Decimal) error {
	switch p.target {
	case domain.PaymentTargetBooking:
		if p.booking.Status != domain.BookingStatusPending {
			return ErrNotPayable
		}
	case domain.PaymentTargetDamage:
		if !p.damage.Status.CanTransitionTo(domain.DamageStatusPaid) {
			return ErrNotPayable
		}
	}

	if !amount.Equal(p.due) {
		return fmt.Errorf("%w: due %s, got %s", ErrAmountMismatch, p.due.StringFixed(2), amount.StringFixed(2))
	}

	paid, err := hasCompletedPayment(ctx, repos, p.target, p.id)
	if err != nil {
		return err
	}
	if paid {
		return ErrAlreadyPaid
	}
	return nil
}

// supersedeAttempts cancels PENDING and FAILED attempts for a target.
func supersedeAttempts(ctx context.Context, repos repository.Repositories, now time.Time, target domain.PaymentTarget, targetID string) error {
	payments, err := repos.Payments.ListByTarget(ctx, target, targetID)
	if err != nil {
		return err
	}
	for _, p := range payments {
		if !p.Status.Supersedable() {
			continue
		}
		p.Status = domain.PaymentStatusCancelled
		p.UpdatedAt = now
		if err := repos.Payments.Update(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func completedPayment(ctx context.Context, repos repository.Repositories, target domain.PaymentTarget, targetID string) (*domain.Payment, error) {
	payments, err := repos.Payments.ListByTarget(ctx, target, targetID)
	if err != nil {
		return nil, err
	}
	for _, p := range payments {
		if p.Status == domain.PaymentStatusCompleted {
			return p, nil
		}
	}
	return nil, nil
}

func hasCompletedPayment(ctx context.Context, repos repository.Repositories, target domain.PaymentTarget, targetID string) (bool, error) {
	p, err := completedPayment(ctx, repos, target, targetID)
	return p != nil, err
}

// refundBookingPayments refunds the completed payment of a booking from
// escrow and cancels open attempts. Cash is marked refunded with no ledger
// effect since it never entered the platform.
func refundBookingPayments(ctx context.Context, repos repository.Repositories, now time.Time, escrowUserID, bookingID string) ([]*domain.Payment, error) {
	payments, err := repos.Payments.ListByTarget(ctx, domain.PaymentTargetBooking, bookingID)
	if err != nil {
		return nil, err
	}

	var refunded []*domain.Payment
	for _, p := range payments {
		switch {
		case p.Status == domain.PaymentStatusCompleted:
			if p.Method != domain.PaymentMethodCash {
				err := transfer(ctx, repos, now, escrowUserID, p.PayerID, p.Amount,
					domain.TxRefund, domain.TxRefund, p.ID)
				if err != nil {
					return nil, err
				}
			}
			p.Status = domain.PaymentStatusRefunded
			p.RefundAmount = p.Amount
			p.RefundedAt = now
			refunded = append(refunded, p)
		case p.Status.Supersedable():
			p.Status = domain.PaymentStatusCancelled
		default:
			continue
		}

		p.UpdatedAt = now
		if err := repos.Payments.Update(ctx, p); err != nil {
			return nil, err
		}
	}
	return refunded, nil
}

// refundToWallet credits a gateway payment that can no longer be applied to
// its target back to the payer's wallet.
func refundToWallet(ctx context.Context, repos repository.Repositories, now time.Time, payment *domain.Payment) error {
	if _, err := postEntry(ctx, repos, now, payment.PayerID, payment.Amount, domain.TxRefund, payment.ID); err != nil {
		return err
	}

	payment.Status = domain.PaymentStatusRefunded
	payment.RefundAmount = payment.Amount
	payment.RefundedAt = now
	payment.UpdatedAt = now
	return repos.Payments.Update(ctx, payment)
}
