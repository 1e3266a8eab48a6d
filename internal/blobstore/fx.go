package blobstore

import "go.uber.org/fx"

var Module = fx.Module("blobstore",
	fx.Provide(NewLocalStore),
	fx.Provide(func(s *LocalStore) Store { return s }),
)
