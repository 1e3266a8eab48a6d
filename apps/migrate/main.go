package main

import (
	"context"
	"os"
	"time"

	"github.com/smallbiznis/nanolite/internal/config"
	"github.com/smallbiznis/nanolite/internal/migration"
	"github.com/smallbiznis/nanolite/internal/observability"
	"github.com/smallbiznis/nanolite/internal/observability/logger"
	"github.com/smallbiznis/nanolite/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Applies migrations and bootstrap seed data, then exits.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		db.Module,
		migration.Module,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		zap.L().Error("migrate failed", zap.Error(err))
		logger.Flush(time.Second)
		os.Exit(1)
	}
	if err := app.Stop(ctx); err != nil {
		os.Exit(1)
	}
}
