package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg, err := NewConfig(slog.Default())
	require.NoError(t, err)

	assert.Equal(t, 4100, cfg.ServerPort)
	assert.Equal(t, 500, cfg.Sync.BatchSize)
	assert.Equal(t, 3, cfg.Sync.MaxRetries)
	assert.Equal(t, 60*time.Second, cfg.Sync.TokenExpiryMargin)
	assert.Equal(t, 30*time.Minute, cfg.Sync.StaleWindow())
	assert.Equal(t, time.Hour, cfg.Sync.ScheduledInterval())
}

func TestNewConfig_Overrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9999")
	t.Setenv("SYNC_BATCH_SIZE", "100")
	t.Setenv("SYNC_RUN_STALE_MINUTES", "5")
	t.Setenv("SYNC_HTTP_TIMEOUT", "3s")

	cfg, err := NewConfig(slog.Default())
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.ServerPort)
	assert.Equal(t, 100, cfg.Sync.BatchSize)
	assert.Equal(t, 5*time.Minute, cfg.Sync.StaleWindow())
	assert.Equal(t, 3*time.Second, cfg.Sync.HTTPTimeout)
}

func TestDatabaseDSN(t *testing.T) {
	d := &DatabaseConfig{
		Host: "db.internal", Port: 5433, User: "svc", Password: "pw",
		Database: "voxlane", SSLMode: "require",
	}
	assert.Equal(t, "postgres://svc:pw@db.internal:5433/voxlane?sslmode=require", d.DSN())
}

func TestCallbackURL(t *testing.T) {
	o := &OAuthConfig{RedirectBaseURL: "https://api.voxlane.io"}
	assert.Equal(t, "https://api.voxlane.io/api/oauth/hubspot/callback", o.CallbackURL("hubspot"))
}
