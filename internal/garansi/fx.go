package garansi

import (
	"github.com/smallbiznis/nanolite/internal/garansi/repository"
	"github.com/smallbiznis/nanolite/internal/garansi/service"
	"go.uber.org/fx"
)

var Module = fx.Module("garansi.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
