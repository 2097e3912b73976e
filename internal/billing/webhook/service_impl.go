package webhook

import (
	"context"
	"net/http"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/stillpoint/sona/internal/billing/domain"
	"github.com/stillpoint/sona/internal/clock"
	entitlementdomain "github.com/stillpoint/sona/internal/entitlement/domain"
	"github.com/stillpoint/sona/internal/observability/logger"
	"github.com/stillpoint/sona/internal/observability/metrics"
	"github.com/stillpoint/sona/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Adapter     billingdomain.WebhookAdapter
	Repo        billingdomain.Repository
	Entitlement entitlementdomain.Service
	Metrics     *metrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	adapter     billingdomain.WebhookAdapter
	repo        billingdomain.Repository
	entitlement entitlementdomain.Service
	metrics     *metrics.Metrics
	seen        *EventCache
}

func NewService(p ServiceParam) billingdomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("billing.webhook"),
		genID:       p.GenID,
		clock:       p.Clock,
		adapter:     p.Adapter,
		repo:        p.Repo,
		entitlement: p.Entitlement,
		metrics:     p.Metrics,
		seen:        NewEventCache(defaultEventCacheCapacity),
	}
}

// HandleWebhook verifies, dedupes, and applies one webhook delivery.
// Replayed events surface ErrEventAlreadyProcessed, which the transport layer
// acknowledges with a success status so the provider stops retrying.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, headers http.Header) error {
	if err := s.adapter.Verify(ctx, payload, headers); err != nil {
		return err
	}

	event, err := s.adapter.Parse(ctx, payload)
	if err != nil {
		return err
	}

	if s.seen.Contains(event.ProviderEventID) {
		s.log.Info("duplicate billing event skipped", zap.String("event_id", event.ProviderEventID))
		return billingdomain.ErrEventAlreadyProcessed
	}

	record := &billingdomain.EventRecord{
		ID:              s.genID.Generate().Int64(),
		Provider:        event.Provider,
		ProviderEventID: event.ProviderEventID,
		EventType:       event.Type,
		UserID:          event.UserID,
		Payload:         datatypes.JSON(event.RawPayload),
		ReceivedAt:      s.clock.Now(),
	}
	if err := s.repo.InsertEvent(ctx, s.db, record); err != nil {
		if !db.IsDuplicateKeyErr(err) {
			return err
		}
		// The unique index on (provider, provider_event_id) catches replays
		// that arrived after a restart emptied the in-process cache. Only
		// deliveries whose effects were applied short-circuit: an earlier
		// delivery that failed mid-dispatch left processed_at empty and the
		// redelivery must run the dispatch again.
		existing, findErr := s.repo.FindEvent(ctx, s.db, event.Provider, event.ProviderEventID)
		if findErr != nil {
			return findErr
		}
		if existing == nil {
			return err
		}
		if existing.ProcessedAt != nil {
			s.seen.Add(event.ProviderEventID)
			return billingdomain.ErrEventAlreadyProcessed
		}
		record = existing
	}

	if err := s.dispatch(ctx, event); err != nil {
		return err
	}

	if err := s.repo.MarkProcessed(ctx, s.db, record.ID, s.clock.Now()); err != nil {
		s.log.Error("billing event mark processed failed",
			zap.String("event_id", event.ProviderEventID),
			zap.Error(err),
		)
	}
	s.seen.Add(event.ProviderEventID)
	s.metrics.RecordBillingEvent(ctx, event.Type)
	return nil
}

func (s *Service) dispatch(ctx context.Context, event *billingdomain.Event) error {
	switch event.Type {
	case billingdomain.EventTypeSubscriptionCreated:
		return s.activate(ctx, event)
	case billingdomain.EventTypeSubscriptionDeleted:
		return s.deactivate(ctx, event)
	case billingdomain.EventTypeSubscriptionUpdated:
		return s.applyStatus(ctx, event)
	case billingdomain.EventTypeSetupCompleted:
		// Payment method saved; entitlement changes arrive with the
		// subsequent subscription events.
		s.log.Info("billing setup completed",
			logger.SafeUserID(event.UserID),
			zap.String("event_id", event.ProviderEventID),
		)
		return nil
	default:
		s.log.Info("unhandled billing event type", zap.String("event_type", event.Type))
		return nil
	}
}

func (s *Service) applyStatus(ctx context.Context, event *billingdomain.Event) error {
	switch event.Status {
	case billingdomain.StatusActive:
		return s.activate(ctx, event)
	case billingdomain.StatusCanceled, billingdomain.StatusIncompleteExpired, billingdomain.StatusUnpaid:
		return s.deactivate(ctx, event)
	case billingdomain.StatusIncomplete, billingdomain.StatusTrialing:
		// Wait for payment to settle.
		return nil
	default:
		s.log.Info("unhandled subscription status",
			zap.String("status", event.Status),
			zap.String("event_id", event.ProviderEventID),
		)
		return nil
	}
}

func (s *Service) activate(ctx context.Context, event *billingdomain.Event) error {
	current, err := s.entitlement.Get(ctx, event.UserID)
	if err != nil {
		return err
	}

	update := entitlementdomain.BillingUpdate{
		IsPremium: true,
		// A fresh upgrade starts a new usage period. Renewals and other
		// subscription changes arrive as active updates too and must keep
		// the running counter.
		ResetPeriod: !current.IsPremium,
	}
	if event.CustomerID != "" {
		update.StripeCustomerID = &event.CustomerID
	}
	if event.SubscriptionID != "" {
		update.StripeSubscriptionID = &event.SubscriptionID
	}
	return s.entitlement.ApplyBillingUpdate(ctx, event.UserID, update)
}

// deactivate drops the user to the free tier. The customer reference is kept
// so a later re-subscribe reuses the same provider customer.
func (s *Service) deactivate(ctx context.Context, event *billingdomain.Event) error {
	return s.entitlement.ApplyBillingUpdate(ctx, event.UserID, entitlementdomain.BillingUpdate{
		IsPremium:         false,
		ClearSubscription: true,
	})
}
