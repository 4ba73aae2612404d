package integrations

import (
	"go.uber.org/fx"

	"github.com/voxlane/voxlane-core/internal/config"
	"github.com/voxlane/voxlane-core/pkg/encryption"
)

// Module provides the integration lifecycle: OAuth connect flows, encrypted
// credential storage, and the integrations HTTP surface.
var Module = fx.Module("integrations",
	fx.Provide(
		NewEncryptionService,
		NewRepository,
		NewCredentialStore,
		NewService,
		NewHandler,
	),
	fx.Invoke(RegisterRoutes),
)

// NewEncryptionService builds the credential cipher from configuration.
func NewEncryptionService(cfg *config.Config) (*encryption.Service, error) {
	return encryption.New(cfg.Encryption.Key)
}
