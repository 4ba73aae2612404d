package auth

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxlane/voxlane-core/internal/config"
	"github.com/voxlane/voxlane-core/pkg/apperror"
)

func signToken(t *testing.T, secret string, claims *Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func newTestMiddleware(secret string) *Middleware {
	cfg := &config.Config{}
	cfg.Auth.JWTSecret = secret
	return NewMiddleware(cfg, slog.Default())
}

func invoke(m *Middleware, authHeader string) (*Identity, error) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set(echo.HeaderAuthorization, authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var got *Identity
	handler := m.RequireAuth()(func(c echo.Context) error {
		got = GetIdentity(c)
		return c.NoContent(http.StatusOK)
	})
	return got, handler(c)
}

func TestRequireAuth_ValidToken(t *testing.T) {
	m := newTestMiddleware("test-secret")
	token := signToken(t, "test-secret", &Claims{
		UserID:    "user-1",
		CompanyID: "company-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	id, err := invoke(m, "Bearer "+token)
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, "user-1", id.UserID)
	assert.Equal(t, "company-1", id.CompanyID)
}

func TestRequireAuth_Rejections(t *testing.T) {
	m := newTestMiddleware("test-secret")

	expired := signToken(t, "test-secret", &Claims{
		UserID: "u", CompanyID: "c",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	wrongKey := signToken(t, "other-secret", &Claims{UserID: "u", CompanyID: "c"})
	noTenant := signToken(t, "test-secret", &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	tests := []struct {
		name     string
		header   string
		wantCode string
	}{
		{"missing header", "", "missing_token"},
		{"not bearer", "Basic abc", "missing_token"},
		{"garbage token", "Bearer not-a-jwt", "invalid_token"},
		{"expired", "Bearer " + expired, "invalid_token"},
		{"wrong key", "Bearer " + wrongKey, "invalid_token"},
		{"missing tenant claims", "Bearer " + noTenant, "invalid_token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := invoke(m, tt.header)
			require.Error(t, err)
			assert.Nil(t, id)
			appErr, ok := err.(*apperror.Error)
			require.True(t, ok, "expected apperror.Error, got %T", err)
			assert.Equal(t, tt.wantCode, appErr.Code)
		})
	}
}
