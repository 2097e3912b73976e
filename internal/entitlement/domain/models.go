package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// Entitlement tracks a user's tier and generation usage for the current period.
type Entitlement struct {
	UserID               string    `gorm:"primaryKey" json:"userId"`
	IsPremium            bool      `json:"isPremium"`
	MeditationCount      int       `json:"meditationCount"`
	StripeCustomerID     *string   `json:"stripeCustomerId,omitempty"`
	StripeSubscriptionID *string   `json:"stripeSubscriptionId,omitempty"`
	LastYearlyReset      time.Time `json:"lastYearlyReset"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

func (Entitlement) TableName() string { return "user_entitlements" }

// BillingUpdate merges billing-provider state into an entitlement. Nil pointer
// fields are left untouched; ClearSubscription removes the subscription
// reference while preserving the customer reference.
type BillingUpdate struct {
	IsPremium            bool
	StripeCustomerID     *string
	StripeSubscriptionID *string
	ClearSubscription    bool
	ResetPeriod          bool
}

type Service interface {
	Get(ctx context.Context, userID string) (Entitlement, error)
	CanGenerate(ctx context.Context, userID string) (bool, error)
	Increment(ctx context.Context, userID string) error
	ApplyBillingUpdate(ctx context.Context, userID string, update BillingUpdate) error
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entitlement *Entitlement) error
	FindByUserID(ctx context.Context, db *gorm.DB, userID string) (*Entitlement, error)
	IncrementCount(ctx context.Context, db *gorm.DB, userID string, now time.Time) error
	ResetPeriod(ctx context.Context, db *gorm.DB, userID string, now time.Time) error
	ApplyBillingUpdate(ctx context.Context, db *gorm.DB, userID string, update BillingUpdate, now time.Time) error
}

var (
	ErrInvalidUser = errors.New("invalid_user")
	ErrNotFound    = errors.New("not_found")
)
