package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rollcall/internal/clock"
	"github.com/smallbiznis/rollcall/internal/config"
	"github.com/smallbiznis/rollcall/internal/metricspush"
	"github.com/smallbiznis/rollcall/internal/migration"
	"github.com/smallbiznis/rollcall/internal/observability"
	"github.com/smallbiznis/rollcall/internal/server"
	"github.com/smallbiznis/rollcall/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// HTTP surface and the domains behind it
		server.Module,

		metricspush.Module,
	)
	app.Run()
}

func RegisterSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
