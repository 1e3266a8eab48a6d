package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/nanolite/internal/accessscope"
	"github.com/smallbiznis/nanolite/internal/artifact"
	"github.com/smallbiznis/nanolite/internal/audit"
	"github.com/smallbiznis/nanolite/internal/authorization"
	"github.com/smallbiznis/nanolite/internal/blobstore"
	"github.com/smallbiznis/nanolite/internal/cache"
	"github.com/smallbiznis/nanolite/internal/claim/pipeline"
	"github.com/smallbiznis/nanolite/internal/claim/validation"
	"github.com/smallbiznis/nanolite/internal/clock"
	"github.com/smallbiznis/nanolite/internal/config"
	"github.com/smallbiznis/nanolite/internal/garansi"
	"github.com/smallbiznis/nanolite/internal/imageingest"
	"github.com/smallbiznis/nanolite/internal/observability"
	"github.com/smallbiznis/nanolite/internal/order"
	"github.com/smallbiznis/nanolite/internal/ratelimit"
	"github.com/smallbiznis/nanolite/internal/reference"
	"github.com/smallbiznis/nanolite/internal/render"
	"github.com/smallbiznis/nanolite/internal/scheduler"
	"github.com/smallbiznis/nanolite/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// Record services the backfill job drives.
		authorization.Module,
		audit.Module,
		reference.Module,
		accessscope.Module,
		validation.Module,
		imageingest.Module,
		blobstore.Module,
		render.Module,
		artifact.Module,
		pipeline.Module,
		garansi.Module,
		order.Module,

		// Redis lock keeps replicas from sweeping the same rows.
		cache.Module,
		ratelimit.Module,

		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(3)
	if err != nil {
		panic(err)
	}
	return node
}
