package sync

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/voxlane/voxlane-core/domain/integrations"
	"github.com/voxlane/voxlane-core/internal/config"
	"github.com/voxlane/voxlane-core/pkg/logger"
	"github.com/voxlane/voxlane-core/pkg/syncerr"
)

// RunLedger is the service's view of the ledger.
type RunLedger interface {
	RunState
	Start(ctx context.Context, integrationID string, syncType Type) (*SyncRun, error)
	Finish(ctx context.Context, runID string, status RunStatus, errs []RunError) error
	ReapStale(ctx context.Context, olderThan time.Duration) (int, error)
	RequestCancel(ctx context.Context, integrationID, runID string) error
	GetRun(ctx context.Context, integrationID, runID string) (*SyncRun, error)
	ListRuns(ctx context.Context, integrationID string, limit int) ([]*SyncRun, error)
	LatestRun(ctx context.Context, integrationID string) (*SyncRun, error)
}

// IntegrationSource resolves integrations for run admission.
type IntegrationSource interface {
	GetByID(ctx context.Context, companyID, id string) (*integrations.Integration, error)
	TouchLastSynced(ctx context.Context, id string, at time.Time) error
}

// Resources lists the linked resources a run covers.
type Resources interface {
	List(ctx context.Context, integrationID string) ([]*LinkedResource, error)
}

// ResourceRunner executes the reconciliation for one linked resource.
type ResourceRunner interface {
	SyncResource(ctx context.Context, integration *integrations.Integration, resource *LinkedResource, run *SyncRun, state RunState, opts Options) error
}

// Service admits, executes, and finalizes sync runs.
type Service struct {
	integrations IntegrationSource
	resources    Resources
	ledger       RunLedger
	engine       ResourceRunner
	metrics      *Metrics
	staleWindow  time.Duration
	log          *slog.Logger
}

func NewService(repo *integrations.Repository, resources *ResourceStore, ledger *Ledger, engine *Engine, metrics *Metrics, cfg *config.Config, log *slog.Logger) *Service {
	return &Service{
		integrations: repo,
		resources:    resources,
		ledger:       ledger,
		engine:       engine,
		metrics:      metrics,
		staleWindow:  cfg.Sync.StaleWindow(),
		log:          log.With(logger.Scope("sync.service")),
	}
}

// Run executes one sync for the integration and returns the finalized run.
// The summary always comes back structured, counts plus error list, even
// when the run partially failed; only admission problems return a bare
// error.
func (s *Service) Run(ctx context.Context, companyID, integrationID string, syncType Type, externalIDs []string) (*SyncRun, error) {
	integration, err := s.integrations.GetByID(ctx, companyID, integrationID)
	if err != nil {
		return nil, err
	}
	if !integration.IsActive {
		return nil, syncerr.ErrNotConnected
	}

	// Orphaned runs from a dead process must not block this integration
	// forever; fail them before claiming the live-run slot.
	if _, err := s.ledger.ReapStale(ctx, s.staleWindow); err != nil {
		return nil, err
	}

	run, err := s.ledger.Start(ctx, integrationID, syncType)
	if err != nil {
		return nil, err
	}

	s.log.Info("sync run started",
		slog.String("run_id", run.ID),
		slog.String("integration_id", integrationID),
		slog.String("provider", string(integration.Provider)),
		slog.String("sync_type", string(syncType)))

	s.execute(ctx, integration, run, Options{ExternalIDs: externalIDs})

	final, err := s.ledger.GetRun(ctx, integrationID, run.ID)
	if err != nil {
		return nil, err
	}
	s.metrics.observeRun(string(integration.Provider), final)

	s.log.Info("sync run finalized",
		slog.String("run_id", final.ID),
		slog.String("status", string(final.Status)),
		slog.Int("created", final.RecordsCreated),
		slog.Int("updated", final.RecordsUpdated),
		slog.Int("skipped", final.RecordsSkipped),
		slog.Int("errors", len(final.Errors)))
	return final, nil
}

// execute processes every linked resource and finalizes the run exactly
// once. Run-level failures finalize as failed; record-level errors
// accumulated along the way downgrade success to completed_with_errors.
func (s *Service) execute(ctx context.Context, integration *integrations.Integration, run *SyncRun, opts Options) {
	resources, err := s.resources.List(ctx, integration.ID)
	if err != nil {
		s.finish(ctx, run, StatusFailed, []RunError{{Kind: "run_failed", Message: err.Error()}})
		return
	}
	if len(resources) == 0 {
		s.finish(ctx, run, StatusFailed, []RunError{{
			Kind:    "no_resources",
			Message: "integration has no linked resources to sync",
		}})
		return
	}

	for _, resource := range resources {
		if err := s.engine.SyncResource(ctx, integration, resource, run, s.ledger, opts); err != nil {
			s.finish(ctx, run, StatusFailed, []RunError{runLevelError(err)})
			return
		}
	}

	status := StatusCompleted
	if final, err := s.ledger.GetRun(ctx, integration.ID, run.ID); err == nil && len(final.Errors) > 0 {
		status = StatusCompletedWithErrors
	}
	s.finish(ctx, run, status, nil)

	if err := s.integrations.TouchLastSynced(ctx, integration.ID, time.Now()); err != nil {
		s.log.Error("failed to update last_synced_at",
			slog.String("integration_id", integration.ID), logger.Error(err))
	}
}

func (s *Service) finish(ctx context.Context, run *SyncRun, status RunStatus, errs []RunError) {
	if err := s.ledger.Finish(ctx, run.ID, status, errs); err != nil {
		s.log.Error("failed to finalize sync run",
			slog.String("run_id", run.ID), logger.Error(err))
	}
}

// Cancel flags a live run; the engine stops at the next batch boundary.
func (s *Service) Cancel(ctx context.Context, companyID, integrationID, runID string) error {
	if _, err := s.integrations.GetByID(ctx, companyID, integrationID); err != nil {
		return err
	}
	return s.ledger.RequestCancel(ctx, integrationID, runID)
}

// GetRun returns one run, scoped to the company.
func (s *Service) GetRun(ctx context.Context, companyID, integrationID, runID string) (*SyncRun, error) {
	if _, err := s.integrations.GetByID(ctx, companyID, integrationID); err != nil {
		return nil, err
	}
	return s.ledger.GetRun(ctx, integrationID, runID)
}

// ListRuns returns the integration's run history, scoped to the company.
func (s *Service) ListRuns(ctx context.Context, companyID, integrationID string, limit int) ([]*SyncRun, error) {
	if _, err := s.integrations.GetByID(ctx, companyID, integrationID); err != nil {
		return nil, err
	}
	return s.ledger.ListRuns(ctx, integrationID, limit)
}

// LatestRun returns the integration's most recent run, scoped to the
// company.
func (s *Service) LatestRun(ctx context.Context, companyID, integrationID string) (*SyncRun, error) {
	if _, err := s.integrations.GetByID(ctx, companyID, integrationID); err != nil {
		return nil, err
	}
	return s.ledger.LatestRun(ctx, integrationID)
}

// runLevelError classifies a terminal failure for the ledger.
func runLevelError(err error) RunError {
	kind := "run_failed"
	switch {
	case errors.Is(err, syncerr.ErrRunCancelled):
		kind = "cancelled"
	case syncerr.IsReauthRequired(err):
		kind = "reauth_required"
	case syncerr.IsRetryable(err):
		kind = "retries_exhausted"
	}
	return RunError{Kind: kind, Message: err.Error()}
}
