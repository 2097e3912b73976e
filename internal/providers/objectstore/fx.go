package objectstore

import "go.uber.org/fx"

var Module = fx.Module("providers.objectstore",
	fx.Provide(NewGCSStore),
)
