package contacts

import "go.uber.org/fx"

// Module provides the contact repository.
var Module = fx.Module("contacts",
	fx.Provide(NewRepository),
)
