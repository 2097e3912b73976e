package meditation

import (
	"github.com/stillpoint/sona/internal/meditation/repository"
	"github.com/stillpoint/sona/internal/meditation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("meditation",
	fx.Provide(
		repository.Provide,
		service.NewService,
	),
)
