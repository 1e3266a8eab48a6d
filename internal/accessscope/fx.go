package accessscope

import "go.uber.org/fx"

var Module = fx.Module("accessscope",
	fx.Provide(New),
)
