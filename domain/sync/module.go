package sync

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/voxlane/voxlane-core/domain/contacts"
	"github.com/voxlane/voxlane-core/domain/providers"
	"github.com/voxlane/voxlane-core/domain/tokens"
	"github.com/voxlane/voxlane-core/internal/config"
)

// Module provides the reconciliation engine, run ledger, and sync HTTP
// surface.
var Module = fx.Module("sync",
	fx.Provide(
		NewLedger,
		NewMappingStore,
		NewResourceStore,
		NewMetrics,
		NewEngineFromParams,
		NewService,
		NewHandler,
	),
	fx.Invoke(RegisterRoutes),
)

// EngineParams for dependency injection
type EngineParams struct {
	fx.In
	Registry *providers.Registry
	Tokens   *tokens.Manager
	Contacts *contacts.Repository
	Mappings *MappingStore
	Cfg      *config.Config
	Log      *slog.Logger
}

// NewEngineFromParams creates an Engine from fx params
func NewEngineFromParams(p EngineParams) *Engine {
	return NewEngine(p.Registry, p.Tokens, p.Contacts, p.Mappings, p.Cfg.Sync.BatchSize, p.Log)
}
