package integrations

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/uptrace/bun"
	"golang.org/x/oauth2"

	"github.com/voxlane/voxlane-core/internal/config"
	"github.com/voxlane/voxlane-core/pkg/logger"
)

// Service owns the OAuth connect/callback/disconnect lifecycle.
type Service struct {
	db          *bun.DB
	repo        *Repository
	credentials *CredentialStore
	oauth       *config.OAuthConfig
	log         *slog.Logger
}

func NewService(db *bun.DB, repo *Repository, credentials *CredentialStore, cfg *config.Config, log *slog.Logger) *Service {
	return &Service{
		db:          db,
		repo:        repo,
		credentials: credentials,
		oauth:       &cfg.OAuth,
		log:         log.With(logger.Scope("integrations.service")),
	}
}

// ConnectURL builds the provider consent URL for a connect attempt. The
// authenticated identity is captured in the state parameter so the callback
// can attribute the grant.
func (s *Service) ConnectURL(p Provider, userID, companyID, returnTo string) (string, error) {
	client := OAuthClient(s.oauth, p)
	if client.ClientID == "" {
		return "", fmt.Errorf("provider %s has no OAuth client configured", p)
	}

	state := EncodeState(State{
		UserID:    userID,
		CompanyID: companyID,
		Provider:  string(p),
		ReturnTo:  returnTo,
	})
	return client.AuthCodeURL(state, extraAuthOptions(p)...), nil
}

// HandleCallback completes the OAuth code exchange and persists the
// integration. Connecting a provider that already has an active integration
// for the company deactivates the old one; the new connection wins.
func (s *Service) HandleCallback(ctx context.Context, p Provider, code string, state *State) (*Integration, error) {
	client := OAuthClient(s.oauth, p)

	tok, err := client.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code with %s: %w", p, err)
	}

	identity := accountIdentity(p, tok)

	integration := &Integration{
		CompanyID:               state.CompanyID,
		Provider:                p,
		OwningUserID:            state.UserID,
		ProviderAccountIdentity: identity,
		IsActive:                true,
	}

	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		replaced, err := s.repo.DeactivateActiveTx(ctx, tx, state.CompanyID, p)
		if err != nil {
			return err
		}
		for _, id := range replaced {
			s.log.Info("replacing active integration",
				slog.String("integration_id", id),
				slog.String("provider", string(p)))
		}
		return s.repo.CreateTx(ctx, tx, integration)
	})
	if err != nil {
		return nil, fmt.Errorf("persisting integration: %w", err)
	}

	expires := tok.Expiry
	if expires.IsZero() {
		// Providers that omit expires_in get a nominal one hour lifetime.
		expires = time.Now().Add(time.Hour)
	}
	if err := s.credentials.Put(ctx, integration.ID, &Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    expires,
		Scopes:       providerScopes[p],
	}); err != nil {
		return nil, fmt.Errorf("storing credential: %w", err)
	}

	s.log.Info("integration connected",
		slog.String("integration_id", integration.ID),
		slog.String("provider", string(p)),
		slog.String("company_id", state.CompanyID))
	return integration, nil
}

// Disconnect deactivates an integration and revokes its stored credential.
// The integration row and its sync history survive the disconnect.
func (s *Service) Disconnect(ctx context.Context, companyID, integrationID string) error {
	integration, err := s.repo.GetByID(ctx, companyID, integrationID)
	if err != nil {
		return err
	}

	if err := s.repo.Deactivate(ctx, integration.ID); err != nil {
		return err
	}
	if err := s.credentials.Revoke(ctx, integration.ID); err != nil {
		return err
	}

	s.log.Info("integration disconnected",
		slog.String("integration_id", integration.ID),
		slog.String("provider", string(integration.Provider)))
	return nil
}

// List returns a company's integrations, active and historical.
func (s *Service) List(ctx context.Context, companyID string) ([]*Integration, error) {
	return s.repo.List(ctx, companyID)
}

// Get returns a single integration scoped to the company.
func (s *Service) Get(ctx context.Context, companyID, id string) (*Integration, error) {
	return s.repo.GetByID(ctx, companyID, id)
}

// accountIdentity extracts a human-readable account identifier from the token
// response, used to show which external account an integration is bound to.
func accountIdentity(p Provider, tok *oauth2.Token) string {
	// Google and Microsoft return an OIDC id_token alongside the access
	// token. The claims are read without signature verification because the
	// token arrived over the direct TLS exchange with the provider, not from
	// the user.
	if raw, ok := tok.Extra("id_token").(string); ok && raw != "" {
		claims := jwt.MapClaims{}
		if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err == nil {
			if email, ok := claims["email"].(string); ok && email != "" {
				return email
			}
			if sub, ok := claims["sub"].(string); ok {
				return sub
			}
		}
	}

	switch p {
	case ProviderHubSpot:
		if hub, ok := tok.Extra("hub_id").(float64); ok {
			return fmt.Sprintf("hub:%.0f", hub)
		}
	case ProviderPipedrive:
		if domain, ok := tok.Extra("api_domain").(string); ok {
			return domain
		}
	case ProviderSalesforce:
		if instance, ok := tok.Extra("instance_url").(string); ok {
			return instance
		}
	case ProviderSlack:
		if team, ok := tok.Extra("team").(map[string]any); ok {
			if id, ok := team["id"].(string); ok {
				return id
			}
		}
	}
	return ""
}
