package rates

import (
	"github.com/tollgate-ai/tollgate/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("rates",
	fx.Provide(provideSource),
	fx.Provide(provideResolver),
)

func provideSource(cfg config.Config) Source {
	return NewStaticSource(cfg.FXRates)
}

func provideResolver(log *zap.Logger, source Source, cfg config.Config) *Resolver {
	return NewResolver(log, source, cfg.TreasuryToken)
}
