package domain

import (
	"context"
	"errors"
	"net/http"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Event is a provider-neutral billing event extracted from a webhook payload.
type Event struct {
	Provider        string
	ProviderEventID string
	Type            string
	UserID          string
	CustomerID      string
	SubscriptionID  string
	Status          string
	OccurredAt      time.Time
	RawPayload      []byte
}

// Billing event types after provider mapping.
const (
	EventTypeSubscriptionCreated = "subscription.created"
	EventTypeSubscriptionUpdated = "subscription.updated"
	EventTypeSubscriptionDeleted = "subscription.deleted"
	EventTypeSetupCompleted      = "setup.completed"
)

// Subscription statuses as reported by the provider.
const (
	StatusActive            = "active"
	StatusCanceled          = "canceled"
	StatusIncomplete        = "incomplete"
	StatusIncompleteExpired = "incomplete_expired"
	StatusTrialing          = "trialing"
	StatusUnpaid            = "unpaid"
)

// EventRecord is the durable dedupe row for a processed webhook event.
type EventRecord struct {
	ID              int64          `gorm:"primaryKey"`
	Provider        string         `gorm:"column:provider"`
	ProviderEventID string         `gorm:"column:provider_event_id"`
	EventType       string         `gorm:"column:event_type"`
	UserID          string         `gorm:"column:user_id"`
	Payload         datatypes.JSON `gorm:"column:payload"`
	ReceivedAt      time.Time      `gorm:"column:received_at"`
	ProcessedAt     *time.Time     `gorm:"column:processed_at"`
}

func (EventRecord) TableName() string { return "billing_events" }

// WebhookAdapter verifies and parses a provider webhook delivery.
type WebhookAdapter interface {
	Provider() string
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) (*Event, error)
}

// Service processes verified billing events into entitlement updates.
type Service interface {
	HandleWebhook(ctx context.Context, payload []byte, headers http.Header) error
}

type Repository interface {
	InsertEvent(ctx context.Context, db *gorm.DB, record *EventRecord) error
	FindEvent(ctx context.Context, db *gorm.DB, provider, providerEventID string) (*EventRecord, error)
	MarkProcessed(ctx context.Context, db *gorm.DB, id int64, processedAt time.Time) error
}

var (
	ErrInvalidSignature      = errors.New("invalid_signature")
	ErrInvalidPayload        = errors.New("invalid_payload")
	ErrInvalidEvent          = errors.New("invalid_event")
	ErrEventIgnored          = errors.New("event_ignored")
	ErrEventAlreadyProcessed = errors.New("event_already_processed")
	ErrMissingUser           = errors.New("missing_user_reference")
)
