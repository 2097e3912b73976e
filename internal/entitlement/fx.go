package entitlement

import (
	"github.com/stillpoint/sona/internal/entitlement/repository"
	"github.com/stillpoint/sona/internal/entitlement/service"
	"go.uber.org/fx"
)

var Module = fx.Module("entitlement",
	fx.Provide(
		repository.Provide,
		service.NewService,
	),
)
