package speech

import "go.uber.org/fx"

var Module = fx.Module("providers.speech",
	fx.Provide(NewElevenLabs),
)
