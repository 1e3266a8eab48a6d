package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/nanolite/internal/clock"
	"github.com/smallbiznis/nanolite/internal/config"
	"github.com/smallbiznis/nanolite/internal/observability"
	"github.com/smallbiznis/nanolite/internal/server"
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
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(2)
	if err != nil {
		panic(err)
	}
	return node
}
