package tokens

import "go.uber.org/fx"

// Module provides the token lifecycle manager.
var Module = fx.Module("tokens",
	fx.Provide(NewManager),
)
