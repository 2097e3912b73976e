package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	billingdomain "github.com/stillpoint/sona/internal/billing/domain"
	"github.com/stillpoint/sona/internal/billing/repository"
	"github.com/stillpoint/sona/internal/billing/stripe"
	"github.com/stillpoint/sona/internal/clock"
	"github.com/stillpoint/sona/internal/config"
	entitlementdomain "github.com/stillpoint/sona/internal/entitlement/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testSecret = "whsec_test"

type recordedUpdate struct {
	userID string
	update entitlementdomain.BillingUpdate
}

type fakeEntitlement struct {
	premium   bool
	applyErrs []error
	updates   []recordedUpdate
}

func (f *fakeEntitlement) Get(context.Context, string) (entitlementdomain.Entitlement, error) {
	return entitlementdomain.Entitlement{IsPremium: f.premium}, nil
}

func (f *fakeEntitlement) CanGenerate(context.Context, string) (bool, error) { return true, nil }

func (f *fakeEntitlement) Increment(context.Context, string) error { return nil }

func (f *fakeEntitlement) ApplyBillingUpdate(_ context.Context, userID string, update entitlementdomain.BillingUpdate) error {
	if len(f.applyErrs) > 0 {
		err := f.applyErrs[0]
		f.applyErrs = f.applyErrs[1:]
		if err != nil {
			return err
		}
	}
	f.updates = append(f.updates, recordedUpdate{userID: userID, update: update})
	f.premium = update.IsPremium
	return nil
}

func newWebhookDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&billingdomain.EventRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS uq_billing_events_provider_event ON billing_events(provider, provider_event_id)")
	return db
}

func newWebhookService(t *testing.T, db *gorm.DB, entitlement *fakeEntitlement) billingdomain.Service {
	t.Helper()

	adapter, err := stripe.NewAdapter(config.Config{Stripe: config.StripeConfig{WebhookSecret: testSecret}})
	if err != nil {
		t.Fatalf("adapter: %v", err)
	}
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}
	return NewService(ServiceParam{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       clock.NewFakeClock(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)),
		Adapter:     adapter,
		Repo:        repository.Provide(),
		Entitlement: entitlement,
	})
}

func sign(payload []byte) http.Header {
	timestamp := "1700000000"
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(timestamp + "." + string(payload)))

	headers := http.Header{}
	headers.Set("Stripe-Signature", fmt.Sprintf("t=%s,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil))))
	return headers
}

func subscriptionPayload(eventID, eventType, status string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": %q,
		"type": %q,
		"created": 1700000000,
		"data": {
			"object": {
				"id": "sub_123",
				"customer": "cus_456",
				"status": %q,
				"metadata": {"userId": "user-1"}
			}
		}
	}`, eventID, eventType, status))
}

func TestHandleWebhookActivatesSubscription(t *testing.T) {
	entitlement := &fakeEntitlement{}
	svc := newWebhookService(t, newWebhookDB(t), entitlement)

	payload := subscriptionPayload("evt_1", "customer.subscription.created", "active")
	if err := svc.HandleWebhook(context.Background(), payload, sign(payload)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if len(entitlement.updates) != 1 {
		t.Fatalf("expected one entitlement update, got %d", len(entitlement.updates))
	}
	got := entitlement.updates[0]
	if got.userID != "user-1" {
		t.Fatalf("unexpected user: %s", got.userID)
	}
	if !got.update.IsPremium {
		t.Fatal("expected premium activation")
	}
	if got.update.StripeCustomerID == nil || *got.update.StripeCustomerID != "cus_456" {
		t.Fatal("expected customer reference set")
	}
	if got.update.StripeSubscriptionID == nil || *got.update.StripeSubscriptionID != "sub_123" {
		t.Fatal("expected subscription reference set")
	}
	if !got.update.ResetPeriod {
		t.Fatal("expected fresh upgrade to start a new usage period")
	}
}

func TestHandleWebhookRenewalKeepsUsageCounter(t *testing.T) {
	entitlement := &fakeEntitlement{premium: true}
	svc := newWebhookService(t, newWebhookDB(t), entitlement)

	payload := subscriptionPayload("evt_renewal", "customer.subscription.updated", "active")
	if err := svc.HandleWebhook(context.Background(), payload, sign(payload)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if len(entitlement.updates) != 1 {
		t.Fatalf("expected one update, got %d", len(entitlement.updates))
	}
	got := entitlement.updates[0].update
	if !got.IsPremium {
		t.Fatal("expected premium kept")
	}
	if got.ResetPeriod {
		t.Fatal("expected renewal to keep the running counter")
	}
}

func TestHandleWebhookFailedDispatchIsRetriedOnRedelivery(t *testing.T) {
	entitlement := &fakeEntitlement{applyErrs: []error{errors.New("entitlement db unavailable")}}
	svc := newWebhookService(t, newWebhookDB(t), entitlement)

	payload := subscriptionPayload("evt_flaky", "customer.subscription.created", "active")
	if err := svc.HandleWebhook(context.Background(), payload, sign(payload)); err == nil {
		t.Fatal("expected first delivery to surface the dispatch failure")
	}
	if len(entitlement.updates) != 0 {
		t.Fatalf("expected no update applied on failed dispatch, got %d", len(entitlement.updates))
	}

	// Stripe redelivers on non-2xx. The stored row has no processed_at yet,
	// so the redelivery must run the dispatch instead of short-circuiting.
	if err := svc.HandleWebhook(context.Background(), payload, sign(payload)); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if len(entitlement.updates) != 1 {
		t.Fatalf("expected redelivery to apply the update, got %d", len(entitlement.updates))
	}

	err := svc.HandleWebhook(context.Background(), payload, sign(payload))
	if !errors.Is(err, billingdomain.ErrEventAlreadyProcessed) {
		t.Fatalf("expected replay after success to dedupe, got %v", err)
	}
	if len(entitlement.updates) != 1 {
		t.Fatalf("expected single update after replay, got %d", len(entitlement.updates))
	}
}

func TestHandleWebhookReplayIsIdempotent(t *testing.T) {
	entitlement := &fakeEntitlement{}
	svc := newWebhookService(t, newWebhookDB(t), entitlement)

	payload := subscriptionPayload("evt_1", "customer.subscription.created", "active")
	if err := svc.HandleWebhook(context.Background(), payload, sign(payload)); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	err := svc.HandleWebhook(context.Background(), payload, sign(payload))
	if !errors.Is(err, billingdomain.ErrEventAlreadyProcessed) {
		t.Fatalf("expected ErrEventAlreadyProcessed, got %v", err)
	}
	if len(entitlement.updates) != 1 {
		t.Fatalf("expected single update after replay, got %d", len(entitlement.updates))
	}
}

func TestHandleWebhookReplaySurvivesRestart(t *testing.T) {
	entitlement := &fakeEntitlement{}
	db := newWebhookDB(t)

	svc := newWebhookService(t, db, entitlement)
	payload := subscriptionPayload("evt_1", "customer.subscription.created", "active")
	if err := svc.HandleWebhook(context.Background(), payload, sign(payload)); err != nil {
		t.Fatalf("first delivery: %v", err)
	}

	// A fresh service instance has an empty in-process cache; the database
	// unique index still catches the replay.
	restarted := newWebhookService(t, db, entitlement)
	err := restarted.HandleWebhook(context.Background(), payload, sign(payload))
	if !errors.Is(err, billingdomain.ErrEventAlreadyProcessed) {
		t.Fatalf("expected ErrEventAlreadyProcessed after restart, got %v", err)
	}
	if len(entitlement.updates) != 1 {
		t.Fatalf("expected single update, got %d", len(entitlement.updates))
	}
}

func TestHandleWebhookCancelKeepsCustomerReference(t *testing.T) {
	entitlement := &fakeEntitlement{}
	svc := newWebhookService(t, newWebhookDB(t), entitlement)

	payload := subscriptionPayload("evt_2", "customer.subscription.deleted", "canceled")
	if err := svc.HandleWebhook(context.Background(), payload, sign(payload)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if len(entitlement.updates) != 1 {
		t.Fatalf("expected one update, got %d", len(entitlement.updates))
	}
	got := entitlement.updates[0].update
	if got.IsPremium {
		t.Fatal("expected downgrade to free tier")
	}
	if !got.ClearSubscription {
		t.Fatal("expected subscription reference cleared")
	}
	if got.StripeCustomerID != nil {
		t.Fatal("expected customer reference left untouched")
	}
}

func TestHandleWebhookPendingStatusesAreNoOps(t *testing.T) {
	entitlement := &fakeEntitlement{}
	svc := newWebhookService(t, newWebhookDB(t), entitlement)

	for i, status := range []string{"incomplete", "trialing"} {
		payload := subscriptionPayload(fmt.Sprintf("evt_pending_%d", i), "customer.subscription.updated", status)
		if err := svc.HandleWebhook(context.Background(), payload, sign(payload)); err != nil {
			t.Fatalf("status %s: %v", status, err)
		}
	}
	if len(entitlement.updates) != 0 {
		t.Fatalf("expected no entitlement updates, got %d", len(entitlement.updates))
	}
}

func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	entitlement := &fakeEntitlement{}
	svc := newWebhookService(t, newWebhookDB(t), entitlement)

	payload := subscriptionPayload("evt_3", "customer.subscription.created", "active")
	headers := http.Header{}
	headers.Set("Stripe-Signature", "t=1700000000,v1=deadbeef")

	err := svc.HandleWebhook(context.Background(), payload, headers)
	if !errors.Is(err, billingdomain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if len(entitlement.updates) != 0 {
		t.Fatal("expected no updates on rejected delivery")
	}
}
