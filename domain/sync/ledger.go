package sync

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"github.com/voxlane/voxlane-core/pkg/logger"
	"github.com/voxlane/voxlane-core/pkg/syncerr"
)

var ErrRunNotFound = errors.New("sync run not found")

const pgUniqueViolation = "23505"

// Ledger owns the sync_runs table. A partial unique index allows at most one
// live (pending or running) row per integration, so two racing starts cannot
// both proceed: the loser's insert fails and is surfaced as
// ErrRunAlreadyInProgress.
type Ledger struct {
	db  *bun.DB
	log *slog.Logger
}

func NewLedger(db *bun.DB, log *slog.Logger) *Ledger {
	return &Ledger{db: db, log: log.With(logger.Scope("sync.ledger"))}
}

// Start inserts the run row in running state and claims the integration's
// live-run slot.
func (l *Ledger) Start(ctx context.Context, integrationID string, syncType Type) (*SyncRun, error) {
	run := &SyncRun{
		IntegrationID: integrationID,
		SyncType:      syncType,
		Status:        StatusRunning,
		StartedAt:     time.Now(),
		Errors:        []RunError{},
	}
	_, err := l.db.NewInsert().Model(run).Returning("*").Exec(ctx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, syncerr.ErrRunAlreadyInProgress
		}
		return nil, fmt.Errorf("starting sync run: %w", err)
	}
	return run, nil
}

// RecordBatch adds one batch's outcome to the run. Counts accumulate; prior
// batches are never overwritten.
func (l *Ledger) RecordBatch(ctx context.Context, runID string, created, updated, skipped int, errs []RunError) error {
	q := l.db.NewUpdate().
		Model((*SyncRun)(nil)).
		Set("records_created = records_created + ?", created).
		Set("records_updated = records_updated + ?", updated).
		Set("records_skipped = records_skipped + ?", skipped).
		Where("sr.id = ?", runID)

	if len(errs) > 0 {
		encoded, err := json.Marshal(errs)
		if err != nil {
			return fmt.Errorf("encoding run errors: %w", err)
		}
		q = q.Set("errors = errors || ?::jsonb", string(encoded))
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRunNotFound
	}
	return nil
}

// Finish finalizes a run exactly once. A run that is already finalized is
// left untouched, so a crash-recovery reap and a late Finish cannot fight.
func (l *Ledger) Finish(ctx context.Context, runID string, status RunStatus, errs []RunError) error {
	q := l.db.NewUpdate().
		Model((*SyncRun)(nil)).
		Set("status = ?", status).
		Set("completed_at = now()").
		Where("sr.id = ?", runID).
		Where("sr.status IN (?)", bun.In([]RunStatus{StatusPending, StatusRunning}))

	if len(errs) > 0 {
		encoded, err := json.Marshal(errs)
		if err != nil {
			return fmt.Errorf("encoding run errors: %w", err)
		}
		q = q.Set("errors = errors || ?::jsonb", string(encoded))
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		l.log.Warn("finish skipped, run already finalized", slog.String("run_id", runID))
	}
	return nil
}

// ReapStale fails every live run older than the staleness window. Runs this
// old belong to processes that died between Start and Finish.
func (l *Ledger) ReapStale(ctx context.Context, olderThan time.Duration) (int, error) {
	staleErr, err := json.Marshal([]RunError{{
		Kind:    "stale_run",
		Message: "run did not complete within the staleness window",
	}})
	if err != nil {
		return 0, err
	}

	res, err := l.db.NewUpdate().
		Model((*SyncRun)(nil)).
		Set("status = ?", StatusFailed).
		Set("completed_at = now()").
		Set("errors = errors || ?::jsonb", string(staleErr)).
		Where("sr.status IN (?)", bun.In([]RunStatus{StatusPending, StatusRunning})).
		Where("sr.started_at < ?", time.Now().Add(-olderThan)).
		Exec(ctx)
	if err != nil {
		return 0, err
	}

	n, _ := res.RowsAffected()
	if n > 0 {
		l.log.Warn("reaped stale sync runs", slog.Int64("count", n))
	}
	return int(n), nil
}

// RequestCancel flags the integration's live run for cancellation. The
// engine honors the flag at the next batch boundary.
func (l *Ledger) RequestCancel(ctx context.Context, integrationID, runID string) error {
	res, err := l.db.NewUpdate().
		Model((*SyncRun)(nil)).
		Set("cancel_requested = TRUE").
		Where("sr.id = ?", runID).
		Where("sr.integration_id = ?", integrationID).
		Where("sr.status IN (?)", bun.In([]RunStatus{StatusPending, StatusRunning})).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRunNotFound
	}
	return nil
}

// CancelRequested reads the run's cancellation flag.
func (l *Ledger) CancelRequested(ctx context.Context, runID string) (bool, error) {
	var cancelled bool
	err := l.db.NewSelect().
		Model((*SyncRun)(nil)).
		Column("cancel_requested").
		Where("sr.id = ?", runID).
		Scan(ctx, &cancelled)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrRunNotFound
	}
	return cancelled, err
}

// GetRun returns one run by id, scoped to the integration.
func (l *Ledger) GetRun(ctx context.Context, integrationID, runID string) (*SyncRun, error) {
	run := &SyncRun{}
	err := l.db.NewSelect().
		Model(run).
		Where("sr.id = ?", runID).
		Where("sr.integration_id = ?", integrationID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns the integration's run history, newest first.
func (l *Ledger) ListRuns(ctx context.Context, integrationID string, limit int) ([]*SyncRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var out []*SyncRun
	err := l.db.NewSelect().
		Model(&out).
		Where("sr.integration_id = ?", integrationID).
		Order("sr.started_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// LatestRun returns the integration's most recent run.
func (l *Ledger) LatestRun(ctx context.Context, integrationID string) (*SyncRun, error) {
	run := &SyncRun{}
	err := l.db.NewSelect().
		Model(run).
		Where("sr.integration_id = ?", integrationID).
		Order("sr.started_at DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}
