package tokens

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/voxlane/voxlane-core/domain/integrations"
	"github.com/voxlane/voxlane-core/internal/config"
	"github.com/voxlane/voxlane-core/pkg/logger"
	"github.com/voxlane/voxlane-core/pkg/syncerr"
)

// CredentialSource reads and writes stored tokens for an integration.
type CredentialSource interface {
	Get(ctx context.Context, integrationID string) (*integrations.Token, error)
	Put(ctx context.Context, integrationID string, tok *integrations.Token) error
}

// IntegrationDirectory resolves integrations and deactivates the ones whose
// grant has been revoked upstream.
type IntegrationDirectory interface {
	GetByIDUnscoped(ctx context.Context, id string) (*integrations.Integration, error)
	Deactivate(ctx context.Context, id string) error
}

// refreshFunc exchanges a refresh token for a new access token.
type refreshFunc func(ctx context.Context, client *oauth2.Config, refreshToken string) (*oauth2.Token, error)

// Manager guarantees callers a valid access token. Refresh happens lazily on
// use; concurrent callers for the same integration share one refresh through
// a singleflight group so the provider sees at most one refresh request.
type Manager struct {
	creds   CredentialSource
	dir     IntegrationDirectory
	oauth   *config.OAuthConfig
	margin  time.Duration
	refresh refreshFunc
	group   singleflight.Group
	log     *slog.Logger
}

func NewManager(creds *integrations.CredentialStore, repo *integrations.Repository, cfg *config.Config, log *slog.Logger) *Manager {
	return &Manager{
		creds:   creds,
		dir:     repo,
		oauth:   &cfg.OAuth,
		margin:  cfg.Sync.TokenExpiryMargin,
		refresh: refreshViaEndpoint,
		log:     log.With(logger.Scope("tokens.manager")),
	}
}

// WithValidToken resolves a non-expired access token for the integration and
// invokes fn with it. A token within the expiry margin is refreshed and
// persisted before fn runs, so fn never holds a token that expires mid-call.
func (m *Manager) WithValidToken(ctx context.Context, integrationID string, fn func(ctx context.Context, accessToken string) error) error {
	tok, err := m.creds.Get(ctx, integrationID)
	if err != nil {
		if errors.Is(err, integrations.ErrCredentialNotFound) {
			return syncerr.ReauthRequired(integrationID, "no stored credential")
		}
		return fmt.Errorf("loading credential: %w", err)
	}

	if tok.Expired(m.margin) {
		tok, err = m.refreshShared(ctx, integrationID)
		if err != nil {
			return err
		}
	}

	return fn(ctx, tok.AccessToken)
}

// refreshShared collapses concurrent refreshes for one integration into a
// single provider round trip.
func (m *Manager) refreshShared(ctx context.Context, integrationID string) (*integrations.Token, error) {
	v, err, _ := m.group.Do(integrationID, func() (any, error) {
		// A concurrent flight may have refreshed while this caller waited.
		tok, err := m.creds.Get(ctx, integrationID)
		if err != nil {
			return nil, fmt.Errorf("loading credential: %w", err)
		}
		if !tok.Expired(m.margin) {
			return tok, nil
		}
		return m.doRefresh(ctx, integrationID, tok)
	})
	if err != nil {
		return nil, err
	}
	return v.(*integrations.Token), nil
}

func (m *Manager) doRefresh(ctx context.Context, integrationID string, tok *integrations.Token) (*integrations.Token, error) {
	integration, err := m.dir.GetByIDUnscoped(ctx, integrationID)
	if err != nil {
		return nil, fmt.Errorf("resolving integration: %w", err)
	}

	if tok.RefreshToken == "" {
		// Expired with nothing to refresh with. Only reconnect can fix it.
		m.deactivate(ctx, integrationID, "access token expired without refresh token")
		return nil, syncerr.ReauthRequired(integrationID, "access token expired and no refresh token stored")
	}

	client := integrations.OAuthClient(m.oauth, integration.Provider)
	fresh, err := m.refresh(ctx, client, tok.RefreshToken)
	if err != nil {
		if isInvalidGrant(err) {
			m.deactivate(ctx, integrationID, "refresh token revoked by provider")
			return nil, syncerr.ReauthRequired(integrationID, "refresh token rejected by provider")
		}
		return nil, syncerr.Transient("refreshing token", err)
	}

	next := &integrations.Token{
		AccessToken:  fresh.AccessToken,
		RefreshToken: fresh.RefreshToken,
		ExpiresAt:    fresh.Expiry,
		Scopes:       tok.Scopes,
	}
	if next.RefreshToken == "" {
		// Some providers rotate the refresh token only occasionally; keep
		// the previous one when the response omits it.
		next.RefreshToken = tok.RefreshToken
	}
	if next.ExpiresAt.IsZero() {
		next.ExpiresAt = time.Now().Add(time.Hour)
	}

	if err := m.creds.Put(ctx, integrationID, next); err != nil {
		return nil, fmt.Errorf("persisting refreshed token: %w", err)
	}

	m.log.Info("access token refreshed",
		slog.String("integration_id", integrationID),
		slog.String("provider", string(integration.Provider)),
		slog.Time("expires_at", next.ExpiresAt))
	return next, nil
}

func (m *Manager) deactivate(ctx context.Context, integrationID, reason string) {
	if err := m.dir.Deactivate(ctx, integrationID); err != nil {
		m.log.Error("failed to deactivate integration after auth failure",
			slog.String("integration_id", integrationID), logger.Error(err))
		return
	}
	m.log.Warn("integration deactivated",
		slog.String("integration_id", integrationID),
		slog.String("reason", reason))
}

// refreshViaEndpoint performs the real refresh grant against the provider.
func refreshViaEndpoint(ctx context.Context, client *oauth2.Config, refreshToken string) (*oauth2.Token, error) {
	src := client.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	return src.Token()
}

// isInvalidGrant reports whether a refresh failure is a terminal grant
// rejection rather than a transport problem.
func isInvalidGrant(err error) bool {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		if re.ErrorCode == "invalid_grant" {
			return true
		}
		return strings.Contains(string(re.Body), "invalid_grant")
	}
	return false
}
