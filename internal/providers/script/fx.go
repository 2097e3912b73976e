package script

import "go.uber.org/fx"

var Module = fx.Module("providers.script",
	fx.Provide(NewOpenAIGenerator),
)
