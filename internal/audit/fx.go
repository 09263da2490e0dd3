package audit

import (
	"github.com/tollgate-ai/tollgate/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit",
	fx.Provide(service.New),
)
