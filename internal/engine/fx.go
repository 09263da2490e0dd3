package engine

import (
	"github.com/tollgate-ai/tollgate/internal/engine/service"
	"go.uber.org/fx"
)

var Module = fx.Module("engine",
	fx.Provide(service.New),
)
