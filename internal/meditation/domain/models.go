package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// SupportedDurations lists the session lengths, in minutes, the generation
// pipeline can produce.
var SupportedDurations = []int{3, 6}

// Meditation is a fully generated session: script, published audio, and the
// measured audio length.
type Meditation struct {
	ID              int64     `gorm:"primaryKey" json:"id,string"`
	UserID          string    `json:"userId"`
	Feeling         string    `json:"feeling"`
	DurationMinutes int       `gorm:"column:duration_minutes" json:"duration"`
	MeditationText  string    `json:"meditationText"`
	AudioURL        string    `gorm:"column:audio_url" json:"audioUrl"`
	AudioDuration   float64   `json:"audioDuration"`
	CreatedAt       time.Time `json:"createdAt"`
}

func (Meditation) TableName() string { return "meditations" }

// Summary is the listing projection: enough to render a history entry and
// start playback, without shipping the full script.
type Summary struct {
	ID        int64     `json:"id,string"`
	Feeling   string    `json:"feeling"`
	AudioURL  string    `gorm:"column:audio_url" json:"audioUrl"`
	CreatedAt time.Time `json:"createdAt"`
}

type GenerateRequest struct {
	UserID          string `json:"-"`
	Feeling         string `json:"feeling"`
	DurationMinutes int    `json:"duration"`
}

type Service interface {
	Generate(ctx context.Context, req GenerateRequest) (*Meditation, error)
	ListByUser(ctx context.Context, userID string) ([]Summary, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, meditation *Meditation) error
	ListByUser(ctx context.Context, db *gorm.DB, userID string, limit int) ([]Summary, error)
}

var (
	ErrInvalidFeeling  = errors.New("invalid_feeling")
	ErrInvalidDuration = errors.New("invalid_duration")
	ErrQuotaExceeded   = errors.New("quota_exceeded")
	ErrRateLimited     = errors.New("rate_limited")
)

// Pipeline stages, used to attribute upstream failures.
const (
	StageScript      = "script_generation"
	StageSynthesis   = "speech_synthesis"
	StageStorage     = "audio_storage"
	StagePersistence = "persistence"
)

// UpstreamError marks a generation failure at a specific pipeline stage so
// the transport layer can report which dependency failed.
type UpstreamError struct {
	Stage string
	Err   error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func NewUpstreamError(stage string, err error) *UpstreamError {
	return &UpstreamError{Stage: stage, Err: err}
}
