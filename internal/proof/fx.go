package proof

import (
	"github.com/tollgate-ai/tollgate/internal/clock"
	"github.com/tollgate-ai/tollgate/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("proof",
	fx.Provide(provideCodec),
)

func provideCodec(cfg config.Config, clk clock.Clock) *Codec {
	secret := cfg.ProofSecret
	if secret == "" {
		secret = "dev-proof-secret"
	}
	return NewCodec(secret, cfg.ProofValidity, clk)
}
