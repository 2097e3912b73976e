package repository

import (
	"context"
	"time"

	entitlementdomain "github.com/stillpoint/sona/internal/entitlement/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() entitlementdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entitlement *entitlementdomain.Entitlement) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO user_entitlements
		 (user_id, is_premium, meditation_count, stripe_customer_id, stripe_subscription_id, last_yearly_reset, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entitlement.UserID,
		entitlement.IsPremium,
		entitlement.MeditationCount,
		entitlement.StripeCustomerID,
		entitlement.StripeSubscriptionID,
		entitlement.LastYearlyReset,
		entitlement.UpdatedAt,
	).Error
}

func (r *repo) FindByUserID(ctx context.Context, db *gorm.DB, userID string) (*entitlementdomain.Entitlement, error) {
	var rows []entitlementdomain.Entitlement
	err := db.WithContext(ctx).Raw(
		`SELECT user_id, is_premium, meditation_count, stripe_customer_id, stripe_subscription_id, last_yearly_reset, updated_at
		 FROM user_entitlements
		 WHERE user_id = ?
		 LIMIT 1`,
		userID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *repo) IncrementCount(ctx context.Context, db *gorm.DB, userID string, now time.Time) error {
	res := db.WithContext(ctx).Exec(
		`UPDATE user_entitlements
		 SET meditation_count = meditation_count + 1,
		     updated_at = ?
		 WHERE user_id = ?`,
		now,
		userID,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return entitlementdomain.ErrNotFound
	}
	return nil
}

func (r *repo) ResetPeriod(ctx context.Context, db *gorm.DB, userID string, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE user_entitlements
		 SET meditation_count = 0,
		     last_yearly_reset = ?,
		     updated_at = ?
		 WHERE user_id = ?`,
		now,
		now,
		userID,
	).Error
}

func (r *repo) ApplyBillingUpdate(ctx context.Context, db *gorm.DB, userID string, update entitlementdomain.BillingUpdate, now time.Time) error {
	query := `UPDATE user_entitlements SET is_premium = ?, updated_at = ?`
	args := []any{update.IsPremium, now}

	if update.StripeCustomerID != nil {
		query += `, stripe_customer_id = ?`
		args = append(args, *update.StripeCustomerID)
	}
	if update.ClearSubscription {
		query += `, stripe_subscription_id = NULL`
	} else if update.StripeSubscriptionID != nil {
		query += `, stripe_subscription_id = ?`
		args = append(args, *update.StripeSubscriptionID)
	}
	if update.ResetPeriod {
		query += `, meditation_count = 0, last_yearly_reset = ?`
		args = append(args, now)
	}

	query += ` WHERE user_id = ?`
	args = append(args, userID)

	res := db.WithContext(ctx).Exec(query, args...)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return entitlementdomain.ErrNotFound
	}
	return nil
}
