// Package auth provides bearer-token authentication for API routes.
//
// Session management and identity federation live in the platform's auth
// service; this package only verifies the HS256 access tokens that service
// issues and exposes the tenant identity to handlers.
package auth

import (
	"log/slog"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"github.com/voxlane/voxlane-core/internal/config"
	"github.com/voxlane/voxlane-core/pkg/apperror"
	"github.com/voxlane/voxlane-core/pkg/logger"
)

var Module = fx.Module("auth",
	fx.Provide(NewMiddleware),
)

const identityContextKey = "auth_identity"

// Claims are the JWT claims carried by platform access tokens.
type Claims struct {
	UserID    string `json:"user_id"`
	CompanyID string `json:"company_id"`
	jwt.RegisteredClaims
}

// Identity is the authenticated caller attached to the request context.
type Identity struct {
	UserID    string
	CompanyID string
}

// Middleware verifies bearer tokens on protected routes.
type Middleware struct {
	secret []byte
	log    *slog.Logger
}

// NewMiddleware creates the auth middleware.
func NewMiddleware(cfg *config.Config, log *slog.Logger) *Middleware {
	m := &Middleware{
		secret: []byte(cfg.Auth.JWTSecret),
		log:    log.With(logger.Scope("auth")),
	}
	if cfg.Auth.JWTSecret == "" {
		m.log.Warn("AUTH_JWT_SECRET not set - all authenticated requests will be rejected")
	}
	return m
}

// RequireAuth returns middleware that requires a valid bearer token and
// stores the caller identity in the Echo context.
func (m *Middleware) RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := extractToken(c)
			if raw == "" {
				return apperror.ErrMissingToken
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return m.secret, nil
			})
			if err != nil || !token.Valid {
				return apperror.ErrInvalidToken.WithInternal(err)
			}
			if claims.UserID == "" || claims.CompanyID == "" {
				return apperror.ErrInvalidToken.WithMessage("token is missing tenant claims")
			}

			c.Set(identityContextKey, &Identity{
				UserID:    claims.UserID,
				CompanyID: claims.CompanyID,
			})
			return next(c)
		}
	}
}

// GetIdentity returns the authenticated identity, or nil outside RequireAuth.
func GetIdentity(c echo.Context) *Identity {
	id, _ := c.Get(identityContextKey).(*Identity)
	return id
}

func extractToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return after
	}
	return ""
}
