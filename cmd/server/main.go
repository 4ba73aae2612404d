// Package main is the entry point for the Voxlane sync API server.
package main

import (
	"log/slog"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/voxlane/voxlane-core/domain/contacts"
	"github.com/voxlane/voxlane-core/domain/health"
	"github.com/voxlane/voxlane-core/domain/integrations"
	"github.com/voxlane/voxlane-core/domain/providers"
	"github.com/voxlane/voxlane-core/domain/scheduler"
	"github.com/voxlane/voxlane-core/domain/sync"
	"github.com/voxlane/voxlane-core/domain/tokens"
	"github.com/voxlane/voxlane-core/internal/config"
	"github.com/voxlane/voxlane-core/internal/database"
	"github.com/voxlane/voxlane-core/internal/migrate"
	"github.com/voxlane/voxlane-core/internal/server"
	"github.com/voxlane/voxlane-core/pkg/auth"
	"github.com/voxlane/voxlane-core/pkg/logger"
)

func main() {
	// Load .env files if present (for local development). Load() won't
	// overwrite existing vars, Overload() will.
	_ = godotenv.Load("../../.env")
	_ = godotenv.Overload("../../.env.local")

	fx.New(
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log}
		}),

		// Infrastructure modules
		logger.Module,
		config.Module,
		database.Module,
		migrate.Module,
		server.Module,

		// Auth module
		auth.Module,

		// Domain modules
		health.Module,
		integrations.Module,
		tokens.Module,
		providers.Module,
		contacts.Module,
		sync.Module,

		// Scheduler module (recurring sync sweep and stale-run reaper)
		scheduler.Module,
	).Run()
}
