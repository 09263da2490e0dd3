package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/tollgate-ai/tollgate/internal/apikey"
	"github.com/tollgate-ai/tollgate/internal/audit"
	"github.com/tollgate-ai/tollgate/internal/clock"
	"github.com/tollgate-ai/tollgate/internal/config"
	"github.com/tollgate-ai/tollgate/internal/engine"
	"github.com/tollgate-ai/tollgate/internal/migration"
	"github.com/tollgate-ai/tollgate/internal/observability/metrics"
	"github.com/tollgate-ai/tollgate/internal/payment"
	"github.com/tollgate-ai/tollgate/internal/policy"
	"github.com/tollgate-ai/tollgate/internal/proof"
	"github.com/tollgate-ai/tollgate/internal/quote"
	"github.com/tollgate-ai/tollgate/internal/ratelimit"
	"github.com/tollgate-ai/tollgate/internal/rates"
	"github.com/tollgate-ai/tollgate/internal/server"
	"github.com/tollgate-ai/tollgate/internal/settlement"
	"github.com/tollgate-ai/tollgate/internal/swap"
	"github.com/tollgate-ai/tollgate/internal/treasury"
	"github.com/tollgate-ai/tollgate/pkg/db"
	"github.com/tollgate-ai/tollgate/pkg/log"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		log.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		metrics.Module,
		ratelimit.Module,

		// Payment domains
		apikey.Module,
		audit.Module,
		policy.Module,
		rates.Module,
		treasury.Module,
		quote.Module,
		payment.Module,
		proof.Module,
		swap.Module,
		settlement.Module,
		engine.Module,

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
