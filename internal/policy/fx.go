package policy

import (
	"github.com/tollgate-ai/tollgate/internal/policy/service"
	"go.uber.org/fx"
)

var Module = fx.Module("policy",
	fx.Provide(service.New),
)
