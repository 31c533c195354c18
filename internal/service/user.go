package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bikerental/internal/domain"
	"bikerental/internal/repository"
)

// UserService handles the account operations the booking flow depends on.
type UserService struct {
	store            repository.Store
	logger           *zap.Logger
	allowAdminSignup bool
	clock            func() time.Time
}

// NewUserService creates a new UserService. allowAdminSignup lets
// registration grant the ADMIN role and is meant for development only.
func NewUserService(store repository.Store, logger *zap.Logger, allowAdminSignup bool) *UserService {
	return &UserService{
		store:            store,
		logger:           logger,
		allowAdminSignup: allowAdminSignup,
		clock:            time.Now,
	}
}

// RegisterRequest contains the parameters for creating an account.
type RegisterRequest struct {
	Name  string
	Email string
	Phone string
	Roles []domain.Role
}

// Register creates a user. Every account can rent.
func (s *UserService) Register(ctx context.Context, req RegisterRequest) (*domain.User, error) {
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" {
		return nil, ErrInvalidUser
	}

	user := &domain.User{
		ID:           uuid.New().String(),
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:        req.Phone,
		Verification: domain.VerificationUnverified,
		IsRenter:     true,
		CreatedAt:    s.clock(),
	}
	for _, r := range req.Roles {
		switch r {
		case domain.RoleOwner:
			user.IsOwner = true
		case domain.RoleAdmin:
			user.IsAdmin = s.allowAdminSignup
		}
	}

	if err := s.store.Repos().Users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.Bool("owner", user.IsOwner))
	return user, nil
}

// Roles lists the roles carried by a user.
func Roles(u *domain.User) []domain.Role {
	var roles []domain.Role
	if u.IsRenter {
		roles = append(roles, domain.RoleRenter)
	}
	if u.IsOwner {
		roles = append(roles, domain.RoleOwner)
	}
	if u.IsAdmin {
		roles = append(roles, domain.RoleAdmin)
	}
	return roles
}

// GetUser returns a user to themselves or to an admin.
func (s *UserService) GetUser(ctx context.Context, actor domain.Actor, userID string) (*domain.User, error) {
	if actor.UserID != userID && !actor.IsAdmin() {
		return nil, ErrNotParty
	}

	user, err := s.store.Repos().Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// VerifyPhone records that a user's phone number was confirmed.
func (s *UserService) VerifyPhone(ctx context.Context, actor domain.Actor, userID string) (*domain.User, error) {
	return s.updateUser(ctx, actor, userID, func(u *domain.User) {
		u.PhoneVerified = true
	})
}

// SetSuspended suspends or reinstates a user.
func (s *UserService) SetSuspended(ctx context.Context, actor domain.Actor, userID string, suspended bool) (*domain.User, error) {
	return s.updateUser(ctx, actor, userID, func(u *domain.User) {
		u.IsSuspended = suspended
	})
}

// DeleteUser soft-deletes a user. The row stays for the ledger history.
func (s *UserService) DeleteUser(ctx context.Context, actor domain.Actor, userID string) error {
	_, err := s.updateUser(ctx, actor, userID, func(u *domain.User) {
		u.IsDeleted = true
	})
	return err
}

func (s *UserService) updateUser(ctx context.Context, actor domain.Actor, userID string, mutate func(*domain.User)) (*domain.User, error) {
	if !actor.IsAdmin() {
		return nil, ErrNotAdmin
	}

	var user *domain.User
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		u, err := repos.Users.GetByID(ctx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		mutate(u)
		user = u
		return repos.Users.Update(ctx, u)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user updated",
		zap.String("user_id", user.ID),
		zap.String("by", actor.UserID),
		zap.Bool("suspended", user.IsSuspended),
		zap.Bool("deleted", user.IsDeleted),
	)
	return user, nil
}
