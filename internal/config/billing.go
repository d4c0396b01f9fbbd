package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// BillingPolicy is the hot-reloadable part of billing configuration. It is read
// from billing.yml when present and falls back to the environment settings.
type BillingPolicy struct {
	DefaultDueDay   int    `mapstructure:"defaultDueDay"`
	DefaultCurrency string `mapstructure:"defaultCurrency"`
	Workers         int    `mapstructure:"workers"`
	// SkipLeaseIDs excludes leases from automated rent generation.
	SkipLeaseIDs []int64 `mapstructure:"skipLeaseIds"`
}

func DefaultBillingPolicy(cfg Config) BillingPolicy {
	return BillingPolicy{
		DefaultDueDay:   cfg.Billing.DefaultDueDay,
		DefaultCurrency: cfg.Billing.DefaultCurrency,
		Workers:         cfg.Billing.Workers,
	}
}

type BillingConfigHolder struct {
	current atomic.Value // holds BillingPolicy
}

// NewStaticBillingConfigHolder returns a holder that never reloads.
func NewStaticBillingConfigHolder(policy BillingPolicy) *BillingConfigHolder {
	holder := &BillingConfigHolder{}
	holder.current.Store(policy)
	return holder
}

func NewBillingConfigHolder(cfg Config, log *zap.Logger) (*BillingConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.billing")

	v := viper.New()
	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/rentledger")
	v.AddConfigPath(".")

	v.SetEnvPrefix("RENTLEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBillingPolicy(cfg)
	v.SetDefault("billing.defaultDueDay", defaults.DefaultDueDay)
	v.SetDefault("billing.defaultCurrency", defaults.DefaultCurrency)
	v.SetDefault("billing.workers", defaults.Workers)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var policy BillingPolicy
	if err := v.UnmarshalKey("billing", &policy); err != nil {
		return nil, err
	}
	policy.DefaultCurrency = strings.ToUpper(strings.TrimSpace(policy.DefaultCurrency))
	if err := validateBillingPolicy(policy); err != nil {
		return nil, err
	}

	holder := NewStaticBillingConfigHolder(policy)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BillingPolicy
		if err := v.UnmarshalKey("billing", &updated); err != nil {
			log.Warn("billing.policy.reload_failed", zap.Error(err))
			return
		}
		updated.DefaultCurrency = strings.ToUpper(strings.TrimSpace(updated.DefaultCurrency))
		if err := validateBillingPolicy(updated); err != nil {
			log.Warn("billing.policy.invalid", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("billing.policy.reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *BillingConfigHolder) Get() BillingPolicy {
	return h.current.Load().(BillingPolicy)
}

// Skips reports whether automated billing is disabled for the lease.
func (p BillingPolicy) Skips(leaseID int64) bool {
	for _, id := range p.SkipLeaseIDs {
		if id == leaseID {
			return true
		}
	}
	return false
}

func validateBillingPolicy(p BillingPolicy) error {
	if p.DefaultDueDay < 1 || p.DefaultDueDay > 31 {
		return errors.New("billing.defaultDueDay must be between 1 and 31")
	}
	if len(p.DefaultCurrency) != 3 {
		return errors.New("billing.defaultCurrency must be an ISO 4217 code")
	}
	if p.Workers <= 0 {
		return errors.New("billing.workers must be positive")
	}
	return nil
}
