package validation

import "go.uber.org/fx"

var Module = fx.Module("claim.validation",
	fx.Provide(New),
)
