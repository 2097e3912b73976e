package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/stillpoint/sona/internal/config"
)

const keyGenerationUser = "generation:user:%s"

// GenerationLimiter throttles generation requests per user. Nil when rate
// limiting is disabled; all methods treat nil as allow-everything.
type GenerationLimiter struct {
	enabled bool

	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewGenerationLimiter(cfg config.Config) (*GenerationLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.GenerateRate <= 0 || limitCfg.GenerateBurst <= 0 {
		return nil, errors.New("generation rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return &GenerationLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		rate:    limitCfg.GenerateRate,
		burst:   limitCfg.GenerateBurst,
	}, nil
}

func (l *GenerationLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *GenerationLimiter) AllowUser(ctx context.Context, userID string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyGenerationUser, strings.TrimSpace(userID)), l.rate, l.burst)
}
