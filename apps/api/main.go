package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/stillpoint/sona/internal/audio"
	"github.com/stillpoint/sona/internal/billing"
	"github.com/stillpoint/sona/internal/clock"
	"github.com/stillpoint/sona/internal/config"
	"github.com/stillpoint/sona/internal/entitlement"
	"github.com/stillpoint/sona/internal/meditation"
	"github.com/stillpoint/sona/internal/migration"
	"github.com/stillpoint/sona/internal/observability"
	"github.com/stillpoint/sona/internal/providers/objectstore"
	"github.com/stillpoint/sona/internal/providers/script"
	"github.com/stillpoint/sona/internal/providers/speech"
	"github.com/stillpoint/sona/internal/ratelimit"
	"github.com/stillpoint/sona/internal/server"
	"github.com/stillpoint/sona/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		script.Module,
		speech.Module,
		objectstore.Module,
		audio.Module,

		entitlement.Module,
		meditation.Module,
		billing.Module,
		ratelimit.Module,

		server.Module,
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
