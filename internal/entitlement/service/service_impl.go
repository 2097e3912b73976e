package service

import (
	"context"
	"strings"

	"github.com/stillpoint/sona/internal/clock"
	"github.com/stillpoint/sona/internal/config"
	entitlementdomain "github.com/stillpoint/sona/internal/entitlement/domain"
	"github.com/stillpoint/sona/internal/observability/logger"
	"github.com/stillpoint/sona/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Clock  clock.Clock
	Limits *config.LimitsHolder
	Repo   entitlementdomain.Repository
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	clock  clock.Clock
	limits *config.LimitsHolder
	repo   entitlementdomain.Repository
}

func NewService(p ServiceParam) entitlementdomain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("entitlement.service"),
		clock:  p.Clock,
		limits: p.Limits,
		repo:   p.Repo,
	}
}

// Get returns the user's entitlement, creating the default free record on
// first contact so that later updates always have a row to merge into.
func (s *Service) Get(ctx context.Context, userID string) (entitlementdomain.Entitlement, error) {
	ent, err := s.getOrCreate(ctx, userID)
	if err != nil {
		return entitlementdomain.Entitlement{}, err
	}
	return *ent, nil
}

func (s *Service) CanGenerate(ctx context.Context, userID string) (bool, error) {
	ent, err := s.getOrCreate(ctx, userID)
	if err != nil {
		return false, err
	}

	limits := s.limits.Get()
	now := s.clock.Now()

	if !ent.IsPremium {
		return ent.MeditationCount < limits.FreeGenerations, nil
	}

	// Premium counters reset on a rolling period. The reset happens lazily on
	// the first check past the boundary rather than by a background job.
	periodStart := now.AddDate(0, -limits.ResetPeriodMonths, 0)
	if ent.LastYearlyReset.Before(periodStart) {
		if err := s.repo.ResetPeriod(ctx, s.db, userID, now); err != nil {
			return false, err
		}
		s.log.Info("premium usage period reset",
			logger.SafeUserID(userID),
			zap.Time("previous_reset", ent.LastYearlyReset),
		)
		return true, nil
	}

	return ent.MeditationCount < limits.PremiumYearly, nil
}

func (s *Service) Increment(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return entitlementdomain.ErrInvalidUser
	}
	return s.repo.IncrementCount(ctx, s.db, userID, s.clock.Now())
}

func (s *Service) ApplyBillingUpdate(ctx context.Context, userID string, update entitlementdomain.BillingUpdate) error {
	if _, err := s.getOrCreate(ctx, userID); err != nil {
		return err
	}
	return s.repo.ApplyBillingUpdate(ctx, s.db, userID, update, s.clock.Now())
}

func (s *Service) getOrCreate(ctx context.Context, userID string) (*entitlementdomain.Entitlement, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, entitlementdomain.ErrInvalidUser
	}

	ent, err := s.repo.FindByUserID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if ent != nil {
		return ent, nil
	}

	now := s.clock.Now()
	fresh := &entitlementdomain.Entitlement{
		UserID:          userID,
		IsPremium:       false,
		MeditationCount: 0,
		LastYearlyReset: now,
		UpdatedAt:       now,
	}
	if err := s.repo.Insert(ctx, s.db, fresh); err != nil {
		// A concurrent first request may have inserted the row already.
		if db.IsDuplicateKeyErr(err) {
			return s.repo.FindByUserID(ctx, s.db, userID)
		}
		return nil, err
	}
	return fresh, nil
}
