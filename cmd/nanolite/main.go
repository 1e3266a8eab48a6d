package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/nanolite/internal/clock"
	"github.com/smallbiznis/nanolite/internal/config"
	"github.com/smallbiznis/nanolite/internal/migration"
	"github.com/smallbiznis/nanolite/internal/observability"
	"github.com/smallbiznis/nanolite/internal/scheduler"
	"github.com/smallbiznis/nanolite/internal/server"
	"github.com/smallbiznis/nanolite/pkg/db"
	"go.uber.org/fx"
)

// Single binary: HTTP API, artifact backfill and startup migrations.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		server.Module,
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
