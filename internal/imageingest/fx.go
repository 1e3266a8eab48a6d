package imageingest

import "go.uber.org/fx"

var Module = fx.Module("imageingest",
	fx.Provide(New),
)
