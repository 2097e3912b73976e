package repository

import (
	"context"

	meditationdomain "github.com/stillpoint/sona/internal/meditation/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() meditationdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, meditation *meditationdomain.Meditation) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO meditations
		 (id, user_id, feeling, duration_minutes, meditation_text, audio_url, audio_duration, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		meditation.ID,
		meditation.UserID,
		meditation.Feeling,
		meditation.DurationMinutes,
		meditation.MeditationText,
		meditation.AudioURL,
		meditation.AudioDuration,
		meditation.CreatedAt,
	).Error
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID string, limit int) ([]meditationdomain.Summary, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []meditationdomain.Summary
	err := db.WithContext(ctx).Raw(
		`SELECT id, feeling, audio_url, created_at
		 FROM meditations
		 WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		userID,
		limit,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
