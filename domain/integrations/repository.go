package integrations

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/uptrace/bun"

	"github.com/voxlane/voxlane-core/pkg/logger"
)

// Common errors for integrations
var (
	ErrIntegrationNotFound = errors.New("integration not found")
)

// Repository handles integration persistence.
type Repository struct {
	db  *bun.DB
	log *slog.Logger
}

// NewRepository creates a new integrations Repository
func NewRepository(db *bun.DB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("integrations.repository")),
	}
}

// List returns all integrations for a company, most recent first.
func (r *Repository) List(ctx context.Context, companyID string) ([]*Integration, error) {
	var out []*Integration
	err := r.db.NewSelect().
		Model(&out).
		Where("company_id = ?", companyID).
		OrderExpr("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetByID retrieves an integration scoped to a company.
func (r *Repository) GetByID(ctx context.Context, companyID, id string) (*Integration, error) {
	integration := &Integration{}
	err := r.db.NewSelect().
		Model(integration).
		Where("id = ?", id).
		Where("company_id = ?", companyID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrIntegrationNotFound
		}
		return nil, err
	}
	return integration, nil
}

// GetByIDUnscoped retrieves an integration by ID without a company
// constraint. Used by internal operations like the scheduled sync sweep.
func (r *Repository) GetByIDUnscoped(ctx context.Context, id string) (*Integration, error) {
	integration := &Integration{}
	err := r.db.NewSelect().
		Model(integration).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrIntegrationNotFound
		}
		return nil, err
	}
	return integration, nil
}

// GetActiveByProvider returns the single active integration for a
// (company, provider) pair, if any.
func (r *Repository) GetActiveByProvider(ctx context.Context, companyID string, p Provider) (*Integration, error) {
	integration := &Integration{}
	err := r.db.NewSelect().
		Model(integration).
		Where("company_id = ?", companyID).
		Where("provider = ?", p).
		Where("is_active").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrIntegrationNotFound
		}
		return nil, err
	}
	return integration, nil
}

// ListActiveDueForSync returns active integrations whose last sync is older
// than the given interval.
func (r *Repository) ListActiveDueForSync(ctx context.Context, olderThan time.Duration) ([]*Integration, error) {
	cutoff := time.Now().Add(-olderThan)
	var out []*Integration
	err := r.db.NewSelect().
		Model(&out).
		Where("is_active").
		Where("last_synced_at IS NULL OR last_synced_at < ?", cutoff).
		OrderExpr("last_synced_at ASC NULLS FIRST").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreateTx inserts an integration inside an existing transaction.
func (r *Repository) CreateTx(ctx context.Context, idb bun.IDB, integration *Integration) error {
	_, err := idb.NewInsert().Model(integration).Exec(ctx)
	if err != nil {
		return err
	}
	r.log.Debug("created integration",
		slog.String("id", integration.ID),
		slog.String("provider", string(integration.Provider)))
	return nil
}

// DeactivateActiveTx soft-deletes any active integration for the
// (company, provider) pair inside an existing transaction. Returns the ids
// that were deactivated.
func (r *Repository) DeactivateActiveTx(ctx context.Context, idb bun.IDB, companyID string, p Provider) ([]string, error) {
	var ids []string
	err := idb.NewUpdate().
		Model((*Integration)(nil)).
		Set("is_active = FALSE").
		Set("updated_at = now()").
		Where("company_id = ?", companyID).
		Where("provider = ?", p).
		Where("is_active").
		Returning("id").
		Scan(ctx, &ids)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return ids, nil
}

// Deactivate soft-deletes a single integration.
func (r *Repository) Deactivate(ctx context.Context, id string) error {
	res, err := r.db.NewUpdate().
		Model((*Integration)(nil)).
		Set("is_active = FALSE").
		Set("updated_at = now()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return ErrIntegrationNotFound
	}
	r.log.Info("integration deactivated", slog.String("id", id))
	return nil
}

// TouchLastSynced records a completed sync on the integration.
func (r *Repository) TouchLastSynced(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.NewUpdate().
		Model((*Integration)(nil)).
		Set("last_synced_at = ?", at).
		Set("updated_at = now()").
		Where("id = ?", id).
		Exec(ctx)
	return err
}
