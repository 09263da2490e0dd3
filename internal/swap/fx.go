package swap

import (
	"github.com/tollgate-ai/tollgate/internal/config"
	"github.com/tollgate-ai/tollgate/internal/rates"
	"go.uber.org/fx"
)

var Module = fx.Module("swap",
	fx.Provide(provideAdapter),
)

func provideAdapter(source rates.Source, cfg config.Config) Adapter {
	return NewMockAdapter(source, cfg.SwapFeeBps, true)
}
