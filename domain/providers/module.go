package providers

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/voxlane/voxlane-core/internal/config"
)

// Module provides the adapter registry with every supported provider
// registered.
var Module = fx.Module("providers",
	fx.Provide(NewRegistry),
	fx.Invoke(RegisterAdapters),
)

// RegisterAdapters wires up one adapter per supported provider.
func RegisterAdapters(registry *Registry, cfg *config.Config, log *slog.Logger) {
	registry.Register(NewGoogleCalendar(&cfg.Sync, log))
	registry.Register(NewGoogleSheets(&cfg.Sync, log))
	registry.Register(NewOutlook(&cfg.Sync, log))
	registry.Register(NewHubSpot(&cfg.Sync, log))
	registry.Register(NewPipedrive(&cfg.Sync, log))
	registry.Register(NewSalesforce(&cfg.OAuth, &cfg.Sync, log))
	registry.Register(NewSlack(&cfg.Sync, log))

	log.Info("registered provider adapters", slog.Int("count", len(registry.Providers())))
}
