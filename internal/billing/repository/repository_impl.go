package repository

import (
	"context"
	"time"

	billingdomain "github.com/stillpoint/sona/internal/billing/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() billingdomain.Repository {
	return &repo{}
}

func (r *repo) InsertEvent(ctx context.Context, db *gorm.DB, record *billingdomain.EventRecord) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO billing_events
		 (id, provider, provider_event_id, event_type, user_id, payload, received_at, processed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, NULL)`,
		record.ID,
		record.Provider,
		record.ProviderEventID,
		record.EventType,
		record.UserID,
		record.Payload,
		record.ReceivedAt,
	).Error
}

func (r *repo) FindEvent(ctx context.Context, db *gorm.DB, provider, providerEventID string) (*billingdomain.EventRecord, error) {
	var rows []billingdomain.EventRecord
	err := db.WithContext(ctx).Raw(
		`SELECT id, provider, provider_event_id, event_type, user_id, payload, received_at, processed_at
		 FROM billing_events
		 WHERE provider = ? AND provider_event_id = ?
		 LIMIT 1`,
		provider,
		providerEventID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *repo) MarkProcessed(ctx context.Context, db *gorm.DB, id int64, processedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE billing_events
		 SET processed_at = ?
		 WHERE id = ?`,
		processedAt,
		id,
	).Error
}
