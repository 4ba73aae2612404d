package scheduler

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/voxlane/voxlane-core/domain/integrations"
	syncdomain "github.com/voxlane/voxlane-core/domain/sync"
	"github.com/voxlane/voxlane-core/internal/config"
)

// Module provides scheduled task functionality
var Module = fx.Module("scheduler",
	fx.Provide(NewScheduler),
	fx.Invoke(
		RegisterTasks,
		RegisterSchedulerLifecycle,
	),
)

// TaskParams contains dependencies for creating scheduled tasks
type TaskParams struct {
	fx.In
	Scheduler *Scheduler
	Repo      *integrations.Repository
	Service   *syncdomain.Service
	Ledger    *syncdomain.Ledger
	Log       *slog.Logger
	Cfg       *config.Config
}

// RegisterTasks registers all scheduled tasks
func RegisterTasks(p TaskParams) error {
	if !p.Cfg.Sync.SchedulerEnabled {
		p.Log.Info("scheduler disabled, skipping task registration")
		return nil
	}

	sweep := NewScheduledSyncSweepTask(p.Repo, p.Service,
		p.Cfg.Sync.ScheduledInterval(), p.Cfg.Sync.MaxConcurrentRuns, p.Log)
	if err := p.Scheduler.AddCronTask("scheduled_sync_sweep", p.Cfg.Sync.SweepCron, sweep.Run); err != nil {
		return err
	}

	reaper := NewStaleRunReaperTask(p.Ledger, p.Cfg.Sync.StaleWindow(), p.Log)
	if err := p.Scheduler.AddIntervalTask("stale_run_reaper", p.Cfg.Sync.StaleWindow()/2, reaper.Run); err != nil {
		return err
	}

	p.Log.Info("registered scheduled tasks",
		slog.Any("tasks", p.Scheduler.ListTasks()))
	return nil
}

// RegisterSchedulerLifecycle registers the scheduler with fx lifecycle
func RegisterSchedulerLifecycle(lc fx.Lifecycle, scheduler *Scheduler, cfg *config.Config) {
	if !cfg.Sync.SchedulerEnabled {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return scheduler.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return scheduler.Stop(ctx)
		},
	})
}
