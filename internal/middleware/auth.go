package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"bikerental/internal/domain"
)

const actorKey = "actor"

var (
	errMissingToken = errors.New("missing or invalid Authorization header")
	errInvalidToken = errors.New("invalid token")
)

// Claims is the bearer token payload. The subject is the user id.
type Claims struct {
	Roles []domain.Role `json:"roles"`
	jwt.RegisteredClaims
}

// Authenticator issues and verifies HS256 bearer tokens.
type Authenticator struct {
	secret []byte
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(secret string, ttl time.Duration, logger *zap.Logger) *Authenticator {
	return &Authenticator{secret: []byte(secret), ttl: ttl, logger: logger, now: time.Now}
}

// Issue signs a token for the user carrying the given roles.
func (a *Authenticator) Issue(userID string, roles []domain.Role) (string, error) {
	now := a.now()
	claims := Claims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Parse verifies a raw token and returns the actor it identifies.
func (a *Authenticator) Parse(raw string) (domain.Actor, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return domain.Actor{}, fmt.Errorf("%w: %v", errInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return domain.Actor{}, errInvalidToken
	}

	roles := make([]domain.Role, 0, len(claims.Roles))
	for _, r := range claims.Roles {
		if r.Valid() {
			roles = append(roles, r)
		}
	}
	return domain.Actor{UserID: claims.Subject, Roles: roles}, nil
}

// Middleware rejects requests without a valid bearer token and stores the
// caller's actor on the gin context.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errMissingToken.Error(), "code": "unauthorized"})
			return
		}

		actor, err := a.Parse(strings.TrimSpace(header[7:]))
		if err != nil {
			a.logger.Debug("rejected bearer token", zap.Error(err), zap.String("path", c.FullPath()))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidToken.Error(), "code": "unauthorized"})
			return
		}

		c.Set(actorKey, actor)
		c.Next()
	}
}

// SetActor stores actor on the context. Used by Middleware and by tests that
// bypass token parsing.
func SetActor(c *gin.Context, actor domain.Actor) {
	c.Set(actorKey, actor)
}

// ActorFrom returns the authenticated actor, if any.
func ActorFrom(c *gin.Context) (domain.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return domain.Actor{}, false
	}
	actor, ok := v.(domain.Actor)
	return actor, ok
}
