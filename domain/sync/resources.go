package sync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/uptrace/bun"

	"github.com/voxlane/voxlane-core/pkg/logger"
)

var ErrResourceNotFound = errors.New("linked resource not found")

// ResourceStore owns the linked_resources table.
type ResourceStore struct {
	db  *bun.DB
	log *slog.Logger
}

func NewResourceStore(db *bun.DB, log *slog.Logger) *ResourceStore {
	return &ResourceStore{db: db, log: log.With(logger.Scope("sync.resources"))}
}

// ValidateFieldMapping rejects mappings that would write two external fields
// into the same internal field.
func ValidateFieldMapping(mapping map[string]string) error {
	if len(mapping) == 0 {
		return errors.New("field mapping must not be empty")
	}
	seen := make(map[string]string, len(mapping))
	for external, internal := range mapping {
		if external == "" || internal == "" {
			return errors.New("field mapping keys and values must be non-empty")
		}
		if prev, dup := seen[internal]; dup {
			return fmt.Errorf("field mapping targets %q from both %q and %q", internal, prev, external)
		}
		seen[internal] = external
	}
	return nil
}

func (s *ResourceStore) List(ctx context.Context, integrationID string) ([]*LinkedResource, error) {
	var out []*LinkedResource
	err := s.db.NewSelect().
		Model(&out).
		Where("lr.integration_id = ?", integrationID).
		Order("lr.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ResourceStore) Get(ctx context.Context, integrationID, id string) (*LinkedResource, error) {
	r := &LinkedResource{}
	err := s.db.NewSelect().
		Model(r).
		Where("lr.id = ?", id).
		Where("lr.integration_id = ?", integrationID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrResourceNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *ResourceStore) Create(ctx context.Context, r *LinkedResource) error {
	if err := ValidateFieldMapping(r.FieldMapping); err != nil {
		return err
	}
	if _, err := ParseDirection(string(r.SyncDirection)); err != nil {
		return err
	}
	_, err := s.db.NewInsert().Model(r).Returning("*").Exec(ctx)
	return err
}

func (s *ResourceStore) Update(ctx context.Context, r *LinkedResource) error {
	if err := ValidateFieldMapping(r.FieldMapping); err != nil {
		return err
	}
	if _, err := ParseDirection(string(r.SyncDirection)); err != nil {
		return err
	}
	res, err := s.db.NewUpdate().
		Model(r).
		Column("external_resource_name", "field_mapping", "sync_direction").
		WherePK().
		Where("lr.integration_id = ?", r.IntegrationID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrResourceNotFound
	}
	return nil
}

// Delete unlinks a resource.
func (s *ResourceStore) Delete(ctx context.Context, integrationID, id string) error {
	res, err := s.db.NewDelete().
		Model((*LinkedResource)(nil)).
		Where("lr.id = ?", id).
		Where("lr.integration_id = ?", integrationID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrResourceNotFound
	}
	return nil
}
