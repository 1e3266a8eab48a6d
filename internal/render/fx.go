package render

import (
	"github.com/smallbiznis/nanolite/internal/export"
	"go.uber.org/fx"
)

var Module = fx.Module("render",
	fx.Provide(New),
	fx.Provide(func(r *DocumentRenderer) Renderer { return r }),
	fx.Provide(func(r *DocumentRenderer) *export.Assembler { return r.Assembler() }),
)
