// Package middleware provides authentication and request-scoped middleware for the application.
package middleware

import (
	"context"
	"fmt"
	"strings"
	"time"

	"twitsnap/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// IdentityLocal is the Fiber locals key holding the authenticated models.Identity.
const IdentityLocal = "identity"

// outboundTokenTTL bounds tokens minted for calls to collaborator services.
const outboundTokenTTL = 5 * time.Minute

// Claims is the JWT payload shared with the users service.
type Claims struct {
	Type     models.IdentityType `json:"type"`
	UserID   int64               `json:"userId,omitempty"`
	Email    string              `json:"email"`
	Username string              `json:"username"`
	jwt.RegisteredClaims
}

// TokenService verifies incoming bearer tokens and signs tokens on behalf of a caller.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService using an HMAC secret.
func NewTokenService(secret string) *TokenService {
	return &TokenService{secret: []byte(secret)}
}

// Parse verifies token and returns the identity it carries.
func (s *TokenService) Parse(token string) (models.Identity, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return models.Identity{}, models.NewUnauthorizedError()
	}

	switch claims.Type {
	case models.IdentityUser:
		if claims.UserID == 0 || claims.Username == "" {
			return models.Identity{}, models.NewUnauthorizedError()
		}
	case models.IdentityAdmin:
	default:
		return models.Identity{}, models.NewUnauthorizedError()
	}

	return models.Identity{
		Type:     claims.Type,
		UserID:   claims.UserID,
		Email:    claims.Email,
		Username: claims.Username,
	}, nil
}

// Sign mints a token for id, used to authenticate as the caller against collaborators.
func (s *TokenService) Sign(id models.Identity) (string, error) {
	now := time.Now()
	claims := Claims{
		Type:     id.Type,
		UserID:   id.UserID,
		Email:    id.Email,
		Username: id.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(outboundTokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// BlockChecker rejects callers whose account has been blocked.
type BlockChecker interface {
	CheckBlocked(ctx context.Context, id models.Identity) error
}

// AuthRequired verifies the bearer token, rejects blocked users and stores the
// caller identity in Fiber locals and the request context.
func AuthRequired(tokens *TokenService, blocked BlockChecker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return models.NewUnauthorizedError()
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return models.NewUnauthorizedError()
		}

		id, err := tokens.Parse(parts[1])
		if err != nil {
			return err
		}

		ctx := models.ContextWithIdentity(c.UserContext(), id)
		if id.Type == models.IdentityUser {
			ctx = context.WithValue(ctx, UserIDKey, id.UserID)
			if blocked != nil {
				if err := blocked.CheckBlocked(ctx, id); err != nil {
					return err
				}
			}
		}

		c.Locals(IdentityLocal, id)
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// CurrentIdentity returns the identity stored by AuthRequired.
func CurrentIdentity(c *fiber.Ctx) (models.Identity, error) {
	id, ok := c.Locals(IdentityLocal).(models.Identity)
	if !ok {
		return models.Identity{}, models.NewUnauthorizedError()
	}
	return id, nil
}

// RequireUser rejects admin identities on routes that act on behalf of a user account.
func RequireUser(c *fiber.Ctx) (models.Identity, error) {
	id, err := CurrentIdentity(c)
	if err != nil {
		return id, err
	}
	if id.Type != models.IdentityUser {
		return id, models.NewValidationError("type", "This action requires a user account.")
	}
	return id, nil
}
