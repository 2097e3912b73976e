package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Limits controls how many generations each tier is allowed.
type Limits struct {
	FreeGenerations   int `mapstructure:"freeGenerations"`
	PremiumYearly     int `mapstructure:"premiumYearly"`
	ResetPeriodMonths int `mapstructure:"resetPeriodMonths"`
}

func DefaultLimits() Limits {
	return Limits{
		FreeGenerations:   2,
		PremiumYearly:     50,
		ResetPeriodMonths: 12,
	}
}

// LimitsHolder exposes the current entitlement limits and hot-reloads them
// when the backing config file changes.
type LimitsHolder struct {
	current atomic.Value // holds Limits
}

func NewLimitsHolder() (*LimitsHolder, error) {
	v := viper.New()

	v.SetConfigName("limits")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/sona/config")
	v.AddConfigPath("/etc/sona")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SONA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultLimits()
		v.SetDefault("limits.freeGenerations", defaults.FreeGenerations)
		v.SetDefault("limits.premiumYearly", defaults.PremiumYearly)
		v.SetDefault("limits.resetPeriodMonths", defaults.ResetPeriodMonths)
	}

	var limits Limits
	if err := v.UnmarshalKey("limits", &limits); err != nil {
		return nil, err
	}
	if err := validateLimits(limits); err != nil {
		return nil, err
	}

	holder := &LimitsHolder{}
	holder.current.Store(limits)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated Limits
		if err := v.UnmarshalKey("limits", &updated); err != nil {
			log.Printf("[limits-config] reload failed: %v", err)
			return
		}
		if err := validateLimits(updated); err != nil {
			log.Printf("[limits-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[limits-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticLimitsHolder returns a holder pinned to the given limits, for tests.
func NewStaticLimitsHolder(limits Limits) *LimitsHolder {
	holder := &LimitsHolder{}
	holder.current.Store(limits)
	return holder
}

func (h *LimitsHolder) Get() Limits {
	return h.current.Load().(Limits)
}

func validateLimits(limits Limits) error {
	if limits.FreeGenerations < 0 {
		return errors.New("limits.freeGenerations cannot be negative")
	}
	if limits.PremiumYearly <= 0 {
		return errors.New("limits.premiumYearly must be positive")
	}
	if limits.ResetPeriodMonths <= 0 {
		return errors.New("limits.resetPeriodMonths must be positive")
	}
	return nil
}
