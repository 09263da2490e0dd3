package payment

import (
	"github.com/tollgate-ai/tollgate/internal/payment/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("payment",
	fx.Provide(repository.Provide),
)
