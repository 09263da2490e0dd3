package treasury

import (
	"github.com/tollgate-ai/tollgate/internal/treasury/repository"
	"github.com/tollgate-ai/tollgate/internal/treasury/service"
	"go.uber.org/fx"
)

var Module = fx.Module("treasury",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
