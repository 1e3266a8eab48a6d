package pipeline

import "go.uber.org/fx"

var Module = fx.Module("claim.pipeline",
	fx.Provide(New),
)
