package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stillpoint/sona/internal/audio"
	"github.com/stillpoint/sona/internal/clock"
	entitlementdomain "github.com/stillpoint/sona/internal/entitlement/domain"
	meditationdomain "github.com/stillpoint/sona/internal/meditation/domain"
	"github.com/stillpoint/sona/internal/observability/logger"
	"github.com/stillpoint/sona/internal/observability/metrics"
	"github.com/stillpoint/sona/internal/providers/script"
	"github.com/stillpoint/sona/internal/providers/speech"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Entitlement entitlementdomain.Service
	Scripts     script.Generator
	Speech      speech.Synthesizer
	Finalizer   audio.Finalizer
	Repo        meditationdomain.Repository
	Metrics     *metrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	entitlement entitlementdomain.Service
	scripts     script.Generator
	speech      speech.Synthesizer
	finalizer   audio.Finalizer
	repo        meditationdomain.Repository
	metrics     *metrics.Metrics
}

func NewService(p ServiceParam) meditationdomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("meditation.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		entitlement: p.Entitlement,
		scripts:     p.Scripts,
		speech:      p.Speech,
		finalizer:   p.Finalizer,
		repo:        p.Repo,
		metrics:     p.Metrics,
	}
}

// Generate runs the full pipeline: quota check, script generation, speech
// synthesis, audio publication, then persistence. The usage counter is only
// incremented after the record is durably saved; a failed increment is logged
// and swallowed so the user still receives their finished meditation.
func (s *Service) Generate(ctx context.Context, req meditationdomain.GenerateRequest) (*meditationdomain.Meditation, error) {
	started := s.clock.Now()

	req.Feeling = strings.TrimSpace(req.Feeling)
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	allowed, err := s.entitlement.CanGenerate(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		s.recordOutcome(ctx, req.DurationMinutes, "quota_exceeded", started)
		return nil, meditationdomain.ErrQuotaExceeded
	}

	text, err := s.scripts.GenerateScript(ctx, req.Feeling, req.DurationMinutes)
	if err != nil {
		s.recordOutcome(ctx, req.DurationMinutes, "script_failed", started)
		return nil, meditationdomain.NewUpstreamError(meditationdomain.StageScript, err)
	}

	audioBytes, err := s.speech.Synthesize(ctx, text)
	if err != nil {
		s.recordOutcome(ctx, req.DurationMinutes, "synthesis_failed", started)
		return nil, meditationdomain.NewUpstreamError(meditationdomain.StageSynthesis, err)
	}

	finalized, err := s.finalizer.Finalize(ctx, audioBytes)
	if err != nil {
		s.recordOutcome(ctx, req.DurationMinutes, "storage_failed", started)
		return nil, meditationdomain.NewUpstreamError(meditationdomain.StageStorage, err)
	}

	meditation := &meditationdomain.Meditation{
		ID:              s.genID.Generate().Int64(),
		UserID:          req.UserID,
		Feeling:         req.Feeling,
		DurationMinutes: req.DurationMinutes,
		MeditationText:  text,
		AudioURL:        finalized.AudioURL,
		AudioDuration:   finalized.DurationSeconds,
		CreatedAt:       s.clock.Now(),
	}
	if err := s.repo.Insert(ctx, s.db, meditation); err != nil {
		s.recordOutcome(ctx, req.DurationMinutes, "persistence_failed", started)
		return nil, meditationdomain.NewUpstreamError(meditationdomain.StagePersistence, err)
	}

	if err := s.entitlement.Increment(ctx, req.UserID); err != nil {
		s.log.Error("usage increment failed after save",
			logger.SafeUserID(req.UserID),
			zap.Int64("meditation_id", meditation.ID),
			zap.Error(err),
		)
	}

	s.recordOutcome(ctx, req.DurationMinutes, "success", started)
	s.log.Info("meditation generated",
		logger.SafeUserID(req.UserID),
		zap.Int64("meditation_id", meditation.ID),
		zap.Int("duration_minutes", req.DurationMinutes),
		zap.Float64("audio_seconds", finalized.DurationSeconds),
	)
	return meditation, nil
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]meditationdomain.Summary, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, entitlementdomain.ErrInvalidUser
	}
	summaries, err := s.repo.ListByUser(ctx, s.db, userID, 50)
	if err != nil {
		return nil, err
	}
	if summaries == nil {
		summaries = []meditationdomain.Summary{}
	}
	return summaries, nil
}

func validateRequest(req meditationdomain.GenerateRequest) error {
	if strings.TrimSpace(req.UserID) == "" {
		return entitlementdomain.ErrInvalidUser
	}
	if req.Feeling == "" {
		return meditationdomain.ErrInvalidFeeling
	}
	for _, d := range meditationdomain.SupportedDurations {
		if req.DurationMinutes == d {
			return nil
		}
	}
	return meditationdomain.ErrInvalidDuration
}

func (s *Service) recordOutcome(ctx context.Context, durationMinutes int, status string, started time.Time) {
	s.metrics.RecordGeneration(ctx, durationMinutes, status)
	s.metrics.RecordGenerationTime(ctx, s.clock.Now().Sub(started).Seconds())
}
