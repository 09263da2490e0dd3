package quote

import (
	"github.com/tollgate-ai/tollgate/internal/quote/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("quote",
	fx.Provide(repository.Provide),
)
