package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bikerental/internal/domain"
	"bikerental/internal/middleware"
	"bikerental/internal/service"
)

// UserHandler handles HTTP requests for users.
type UserHandler struct {
	userService *service.UserService
	auth        *middleware.Authenticator
	logger      *zap.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userService *service.UserService, auth *middleware.Authenticator, logger *zap.Logger) *UserHandler {
	return &UserHandler{userService: userService, auth: auth, logger: logger}
}

// RegisterRequest is the HTTP request body for user registration.
type RegisterRequest struct {
	Name  string        `json:"name" binding:"required,max=120"`
	Email string        `json:"email" binding:"required,email"`
	Phone string        `json:"phone" binding:"omitempty,max=32"`
	Roles []domain.Role `json:"roles" binding:"omitempty,dive,role"`
}

// AuthResponse carries a user and a bearer token for them.
type AuthResponse struct {
	User  UserResponse `json:"user"`
	Token string       `json:"token"`
}

// SuspendRequest is the HTTP request body for suspending a user.
type SuspendRequest struct {
	Suspended bool `json:"suspended"`
}

// Register handles POST /v1/users/register
func (h *UserHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	user, err := h.userService.Register(c.Request.Context(), service.RegisterRequest{
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
		Roles: req.Roles,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	h.respondWithToken(c, http.StatusCreated, user)
}

// RefreshToken handles POST /v1/users/me/token. The new token reflects the
// user's current roles.
func (h *UserHandler) RefreshToken(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}

	user, err := h.userService.GetUser(c.Request.Context(), actor, actor.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	h.respondWithToken(c, http.StatusOK, user)
}

func (h *UserHandler) respondWithToken(c *gin.Context, status int, user *domain.User) {
	token, err := h.auth.Issue(user.ID, service.Roles(user))
	if err != nil {
		h.logger.Error("failed to sign token", zap.String("user_id", user.ID), zap.Error(err))
		respondError(c, err)
		return
	}
	respondJSON(c, status, AuthResponse{User: toUserResponse(user), Token: token})
}

// Me handles GET /v1/users/me
func (h *UserHandler) Me(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	h.getUser(c, actor, actor.UserID)
}

// GetUser handles GET /v1/users/:id
func (h *UserHandler) GetUser(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	h.getUser(c, actor, c.Param("id"))
}

func (h *UserHandler) getUser(c *gin.Context, actor domain.Actor, userID string) {
	user, err := h.userService.GetUser(c.Request.Context(), actor, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toUserResponse(user))
}

// VerifyPhone handles POST /v1/admin/users/:id/verify-phone
func (h *UserHandler) VerifyPhone(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}

	user, err := h.userService.VerifyPhone(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toUserResponse(user))
}

// SetSuspended handles POST /v1/admin/users/:id/suspension
func (h *UserHandler) SetSuspended(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}

	var req SuspendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	user, err := h.userService.SetSuspended(c.Request.Context(), actor, c.Param("id"), req.Suspended)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toUserResponse(user))
}

// DeleteUser handles DELETE /v1/admin/users/:id
func (h *UserHandler) DeleteUser(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}

	if err := h.userService.DeleteUser(c.Request.Context(), actor, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
