package billing

import (
	billingdomain "github.com/stillpoint/sona/internal/billing/domain"
	"github.com/stillpoint/sona/internal/billing/repository"
	"github.com/stillpoint/sona/internal/billing/stripe"
	"github.com/stillpoint/sona/internal/billing/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("billing",
	fx.Provide(
		repository.Provide,
		stripe.NewAdapter,
		provideAdapter,
		webhook.NewService,
	),
)

func provideAdapter(adapter *stripe.Adapter) billingdomain.WebhookAdapter {
	return adapter
}
