package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voxlane/voxlane-core/domain/integrations"
	syncdomain "github.com/voxlane/voxlane-core/domain/sync"
	"github.com/voxlane/voxlane-core/pkg/logger"
	"github.com/voxlane/voxlane-core/pkg/syncerr"
)

// ScheduledSyncSweepTask finds active integrations whose last sync is older
// than the scheduled interval and runs them. Runs for different integrations
// proceed in parallel up to a bound; the ledger's one-live-run rule keeps a
// sweep from doubling up with a manual sync.
type ScheduledSyncSweepTask struct {
	repo          *integrations.Repository
	service       *syncdomain.Service
	interval      time.Duration
	maxConcurrent int
	log           *slog.Logger
}

func NewScheduledSyncSweepTask(repo *integrations.Repository, service *syncdomain.Service, interval time.Duration, maxConcurrent int, log *slog.Logger) *ScheduledSyncSweepTask {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &ScheduledSyncSweepTask{
		repo:          repo,
		service:       service,
		interval:      interval,
		maxConcurrent: maxConcurrent,
		log:           log.With(logger.Scope("scheduler.sync_sweep")),
	}
}

// Run executes one sweep.
func (t *ScheduledSyncSweepTask) Run(ctx context.Context) error {
	due, err := t.repo.ListActiveDueForSync(ctx, t.interval)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		t.log.Debug("no integrations due for scheduled sync")
		return nil
	}

	t.log.Info("sweeping integrations due for sync", slog.Int("count", len(due)))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(t.maxConcurrent)
	for _, integration := range due {
		g.Go(func() error {
			run, err := t.service.Run(ctx, integration.CompanyID, integration.ID, syncdomain.TypeScheduled, nil)
			switch {
			case err == nil:
				t.log.Info("scheduled sync finished",
					slog.String("integration_id", integration.ID),
					slog.String("run_id", run.ID),
					slog.String("status", string(run.Status)))
			case benignSweepError(err):
				t.log.Debug("scheduled sync skipped",
					slog.String("integration_id", integration.ID),
					logger.Error(err))
			default:
				// One failed integration must not stop the sweep.
				t.log.Error("scheduled sync failed",
					slog.String("integration_id", integration.ID),
					logger.Error(err))
			}
			return nil
		})
	}
	return g.Wait()
}

// benignSweepError reports sweep outcomes that are expected under normal
// operation and not worth an error log.
func benignSweepError(err error) bool {
	return errors.Is(err, syncerr.ErrRunAlreadyInProgress) || errors.Is(err, syncerr.ErrNotConnected)
}

// StaleRunReaperTask fails sync runs whose process died between start and
// finish, freeing the integration's live-run slot.
type StaleRunReaperTask struct {
	ledger      *syncdomain.Ledger
	staleWindow time.Duration
	log         *slog.Logger
}

func NewStaleRunReaperTask(ledger *syncdomain.Ledger, staleWindow time.Duration, log *slog.Logger) *StaleRunReaperTask {
	return &StaleRunReaperTask{
		ledger:      ledger,
		staleWindow: staleWindow,
		log:         log.With(logger.Scope("scheduler.stale_run_reaper")),
	}
}

// Run executes one reap pass.
func (t *StaleRunReaperTask) Run(ctx context.Context) error {
	start := time.Now()
	reaped, err := t.ledger.ReapStale(ctx, t.staleWindow)
	if err != nil {
		return err
	}
	if reaped > 0 {
		t.log.Info("reaped stale sync runs",
			slog.Int("count", reaped),
			slog.Duration("duration", time.Since(start)))
	}
	return nil
}
