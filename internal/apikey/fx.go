package apikey

import (
	"github.com/tollgate-ai/tollgate/internal/apikey/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("apikey",
	fx.Provide(repository.Provide),
)
