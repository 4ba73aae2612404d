package sync

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/uptrace/bun"

	"github.com/voxlane/voxlane-core/pkg/logger"
)

var ErrMappingNotFound = errors.New("record mapping not found")

// MappingStore owns the record_mappings table.
type MappingStore struct {
	db  *bun.DB
	log *slog.Logger
}

func NewMappingStore(db *bun.DB, log *slog.Logger) *MappingStore {
	return &MappingStore{db: db, log: log.With(logger.Scope("sync.mappings"))}
}

// GetByExternalID resolves the local record mapped to an external record.
func (s *MappingStore) GetByExternalID(ctx context.Context, integrationID, externalRecordID string) (*RecordMapping, error) {
	m := &RecordMapping{}
	err := s.db.NewSelect().
		Model(m).
		Where("rm.integration_id = ?", integrationID).
		Where("rm.external_record_id = ?", externalRecordID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMappingNotFound
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// GetByLocalID resolves the external record mapped to a local record.
func (s *MappingStore) GetByLocalID(ctx context.Context, integrationID, localRecordID string) (*RecordMapping, error) {
	m := &RecordMapping{}
	err := s.db.NewSelect().
		Model(m).
		Where("rm.integration_id = ?", integrationID).
		Where("rm.local_record_id = ?", localRecordID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMappingNotFound
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Upsert creates the mapping on first sight of an external record and
// refreshes last_synced_at on every later sync of the same pair. The upsert
// keys on (integration_id, external_record_id), so re-running a sync can
// never produce a second mapping for the same remote record.
func (s *MappingStore) Upsert(ctx context.Context, m *RecordMapping) error {
	if m.LastSyncedAt.IsZero() {
		m.LastSyncedAt = time.Now()
	}
	_, err := s.db.NewInsert().
		Model(m).
		On("CONFLICT (integration_id, external_record_id) DO UPDATE").
		Set("local_record_id = EXCLUDED.local_record_id").
		Set("last_synced_at = EXCLUDED.last_synced_at").
		Returning("*").
		Exec(ctx)
	return err
}

// Touch refreshes last_synced_at after a successful sync of the pair.
func (s *MappingStore) Touch(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.NewUpdate().
		Model((*RecordMapping)(nil)).
		Set("last_synced_at = ?", at).
		Where("rm.id = ?", id).
		Exec(ctx)
	return err
}

// DeleteForIntegration removes every mapping for an integration. Only the
// explicit unlink path calls this; sync never deletes mappings.
func (s *MappingStore) DeleteForIntegration(ctx context.Context, integrationID string) (int, error) {
	res, err := s.db.NewDelete().
		Model((*RecordMapping)(nil)).
		Where("rm.integration_id = ?", integrationID).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
