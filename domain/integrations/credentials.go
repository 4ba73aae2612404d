package integrations

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/uptrace/bun"

	"github.com/voxlane/voxlane-core/pkg/encryption"
	"github.com/voxlane/voxlane-core/pkg/logger"
)

// ErrCredentialNotFound is returned when an integration has no stored
// credential: it was never authorized or has been revoked.
var ErrCredentialNotFound = errors.New("credential not found")

// CredentialStore owns Credential rows. Tokens are encrypted at rest; Put
// overwrites the whole row atomically so concurrent readers never observe a
// partial update.
type CredentialStore struct {
	db  *bun.DB
	enc *encryption.Service
	log *slog.Logger
}

// NewCredentialStore creates a CredentialStore.
func NewCredentialStore(db *bun.DB, enc *encryption.Service, log *slog.Logger) *CredentialStore {
	return &CredentialStore{
		db:  db,
		enc: enc,
		log: log.With(logger.Scope("integrations.credentials")),
	}
}

// Get returns the decrypted token for an integration.
func (s *CredentialStore) Get(ctx context.Context, integrationID string) (*Token, error) {
	cred := &Credential{}
	err := s.db.NewSelect().
		Model(cred).
		Where("integration_id = ?", integrationID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCredentialNotFound
		}
		return nil, err
	}
	return s.decrypt(cred)
}

// Put stores a token, replacing any previous credential in a single upsert.
func (s *CredentialStore) Put(ctx context.Context, integrationID string, tok *Token) error {
	cred, err := s.encrypt(integrationID, tok)
	if err != nil {
		return err
	}

	_, err = s.db.NewInsert().
		Model(cred).
		On("CONFLICT (integration_id) DO UPDATE").
		Set("access_token_encrypted = EXCLUDED.access_token_encrypted").
		Set("refresh_token_encrypted = EXCLUDED.refresh_token_encrypted").
		Set("expires_at = EXCLUDED.expires_at").
		Set("scopes = EXCLUDED.scopes").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return err
	}

	s.log.Debug("stored credential",
		slog.String("integration_id", integrationID),
		slog.Time("expires_at", tok.ExpiresAt))
	return nil
}

// Revoke deletes the credential for an integration.
func (s *CredentialStore) Revoke(ctx context.Context, integrationID string) error {
	_, err := s.db.NewDelete().
		Model((*Credential)(nil)).
		Where("integration_id = ?", integrationID).
		Exec(ctx)
	if err != nil {
		return err
	}
	s.log.Info("credential revoked", slog.String("integration_id", integrationID))
	return nil
}

func (s *CredentialStore) encrypt(integrationID string, tok *Token) (*Credential, error) {
	access, err := s.enc.EncryptString(tok.AccessToken)
	if err != nil {
		return nil, err
	}

	cred := &Credential{
		IntegrationID:        integrationID,
		AccessTokenEncrypted: access,
		ExpiresAt:            tok.ExpiresAt,
		Scopes:               tok.Scopes,
		UpdatedAt:            time.Now(),
	}

	if tok.RefreshToken != "" {
		refresh, err := s.enc.EncryptString(tok.RefreshToken)
		if err != nil {
			return nil, err
		}
		cred.RefreshTokenEncrypted = &refresh
	}

	return cred, nil
}

func (s *CredentialStore) decrypt(cred *Credential) (*Token, error) {
	access, err := s.enc.DecryptString(cred.AccessTokenEncrypted)
	if err != nil {
		return nil, err
	}

	tok := &Token{
		AccessToken: access,
		ExpiresAt:   cred.ExpiresAt,
		Scopes:      cred.Scopes,
	}

	if cred.RefreshTokenEncrypted != nil && *cred.RefreshTokenEncrypted != "" {
		refresh, err := s.enc.DecryptString(*cred.RefreshTokenEncrypted)
		if err != nil {
			return nil, err
		}
		tok.RefreshToken = refresh
	}

	return tok, nil
}
