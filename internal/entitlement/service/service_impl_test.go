package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stillpoint/sona/internal/clock"
	"github.com/stillpoint/sona/internal/config"
	entitlementdomain "github.com/stillpoint/sona/internal/entitlement/domain"
	"github.com/stillpoint/sona/internal/entitlement/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&entitlementdomain.Entitlement{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T, fakeClock *clock.FakeClock, limits config.Limits) entitlementdomain.Service {
	t.Helper()
	return NewService(ServiceParam{
		DB:     newTestDB(t),
		Log:    zap.NewNop(),
		Clock:  fakeClock,
		Limits: config.NewStaticLimitsHolder(limits),
		Repo:   repository.Provide(),
	})
}

func TestGetCreatesDefaultEntitlement(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, clock.NewFakeClock(now), config.DefaultLimits())

	ent, err := svc.Get(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ent.IsPremium {
		t.Fatal("expected default entitlement to be free tier")
	}
	if ent.MeditationCount != 0 {
		t.Fatalf("expected zero count, got %d", ent.MeditationCount)
	}
	if !ent.LastYearlyReset.Equal(now) {
		t.Fatalf("expected reset anchored at creation time, got %v", ent.LastYearlyReset)
	}
}

func TestGetRejectsEmptyUser(t *testing.T) {
	svc := newTestService(t, clock.NewFakeClock(time.Now()), config.DefaultLimits())
	if _, err := svc.Get(context.Background(), "  "); err != entitlementdomain.ErrInvalidUser {
		t.Fatalf("expected ErrInvalidUser, got %v", err)
	}
}

func TestFreeTierQuota(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, clock.NewFakeClock(time.Now()), config.DefaultLimits())

	for i := 0; i < 2; i++ {
		allowed, err := svc.CanGenerate(ctx, "user-1")
		if err != nil {
			t.Fatalf("can generate: %v", err)
		}
		if !allowed {
			t.Fatalf("expected generation %d to be allowed", i+1)
		}
		if err := svc.Increment(ctx, "user-1"); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}

	allowed, err := svc.CanGenerate(ctx, "user-1")
	if err != nil {
		t.Fatalf("can generate: %v", err)
	}
	if allowed {
		t.Fatal("expected third free generation to be denied")
	}
}

func TestPremiumYearlyReset(t *testing.T) {
	ctx := context.Background()
	fakeClock := clock.NewFakeClock(time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC))
	svc := newTestService(t, fakeClock, config.DefaultLimits())

	if _, err := svc.Get(ctx, "user-1"); err != nil {
		t.Fatalf("get: %v", err)
	}
	sub := "sub_123"
	cust := "cus_123"
	if err := svc.ApplyBillingUpdate(ctx, "user-1", entitlementdomain.BillingUpdate{
		IsPremium:            true,
		StripeCustomerID:     &cust,
		StripeSubscriptionID: &sub,
		ResetPeriod:          true,
	}); err != nil {
		t.Fatalf("apply billing update: %v", err)
	}

	// Burn the whole premium allowance.
	for i := 0; i < 50; i++ {
		if err := svc.Increment(ctx, "user-1"); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}
	allowed, err := svc.CanGenerate(ctx, "user-1")
	if err != nil {
		t.Fatalf("can generate: %v", err)
	}
	if allowed {
		t.Fatal("expected premium quota to be exhausted")
	}

	// A year later the counter resets on the next check.
	fakeClock.Advance(366 * 24 * time.Hour)
	allowed, err = svc.CanGenerate(ctx, "user-1")
	if err != nil {
		t.Fatalf("can generate after a year: %v", err)
	}
	if !allowed {
		t.Fatal("expected quota to reset after a year")
	}
	ent, err := svc.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ent.MeditationCount != 0 {
		t.Fatalf("expected count reset to zero, got %d", ent.MeditationCount)
	}
}

func TestBillingUpdatePreservesCustomerOnCancel(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, clock.NewFakeClock(time.Now()), config.DefaultLimits())

	sub := "sub_123"
	cust := "cus_123"
	if err := svc.ApplyBillingUpdate(ctx, "user-1", entitlementdomain.BillingUpdate{
		IsPremium:            true,
		StripeCustomerID:     &cust,
		StripeSubscriptionID: &sub,
	}); err != nil {
		t.Fatalf("activate: %v", err)
	}

	if err := svc.ApplyBillingUpdate(ctx, "user-1", entitlementdomain.BillingUpdate{
		IsPremium:         false,
		ClearSubscription: true,
	}); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	ent, err := svc.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ent.IsPremium {
		t.Fatal("expected free tier after cancel")
	}
	if ent.StripeSubscriptionID != nil {
		t.Fatalf("expected subscription reference cleared, got %v", *ent.StripeSubscriptionID)
	}
	if ent.StripeCustomerID == nil || *ent.StripeCustomerID != "cus_123" {
		t.Fatal("expected customer reference preserved after cancel")
	}
}
