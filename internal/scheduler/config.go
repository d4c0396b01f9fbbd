package scheduler

import (
	"time"

	"github.com/smallbiznis/rentledger/internal/config"
)

// Config controls scheduler intervals and batch sizes.
type Config struct {
	RunInterval  time.Duration
	RunTimeout   time.Duration
	LeaseTimeout time.Duration
	LockTTL      time.Duration
	LeasePage    int
	OverdueBatch int
	RetryBatch   int
	// EnabledJobs restricts RunOnce to the named jobs. Empty enables all.
	EnabledJobs []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval:  time.Hour,
		RunTimeout:   10 * time.Minute,
		LeaseTimeout: 30 * time.Second,
		LockTTL:      15 * time.Minute,
		LeasePage:    200,
		OverdueBatch: 500,
		RetryBatch:   100,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval:  cfg.Scheduler.Interval,
		RunTimeout:   cfg.Scheduler.RunTimeout,
		LeaseTimeout: cfg.Billing.LeaseTimeout,
		LockTTL:      cfg.Scheduler.LockTTL,
		LeasePage:    cfg.Scheduler.LeasePage,
		OverdueBatch: cfg.Scheduler.OverdueBatch,
		RetryBatch:   cfg.Billing.RetryBatchSize,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = defaults.RunTimeout
	}
	if c.LeaseTimeout <= 0 {
		c.LeaseTimeout = defaults.LeaseTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	if c.LeasePage <= 0 {
		c.LeasePage = defaults.LeasePage
	}
	if c.OverdueBatch <= 0 {
		c.OverdueBatch = defaults.OverdueBatch
	}
	if c.RetryBatch <= 0 {
		c.RetryBatch = defaults.RetryBatch
	}
	return c
}
