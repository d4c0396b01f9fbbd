package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds process configuration resolved from the environment and an
// optional .env file.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	LogLevel  string
	LogFormat string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
	DBSlowQuery       time.Duration
	DBAutoMigrate     bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	OTLPEnabled     bool
	OTLPEndpoint    string
	OTLPProtocol    string
	OTLPSampleRatio float64

	Billing   BillingSettings
	Scheduler SchedulerSettings
	Bootstrap BootstrapSettings
}

// BillingSettings are the static billing knobs. Policy values that may change at
// runtime live in BillingConfigHolder.
type BillingSettings struct {
	DefaultCurrency string
	DefaultDueDay   int
	CronSecret      string
	ReversalTimeout time.Duration
	PaymentTimeout  time.Duration
	LeaseTimeout    time.Duration
	Workers         int
	RetryBatchSize  int
	TxRetries       int
}

type SchedulerSettings struct {
	Enabled      bool
	Interval     time.Duration
	RunTimeout   time.Duration
	LockTTL      time.Duration
	LeasePage    int
	OverdueBatch int
}

// BootstrapSettings seed a financial entity with the default chart of accounts on
// start when OrgID is set.
type BootstrapSettings struct {
	OrgID    int64
	OrgName  string
	Currency string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_service", "rentledger")
	v.SetDefault("app_version", "0.1.0")
	v.SetDefault("environment", "development")
	v.SetDefault("http_addr", ":8080")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	v.SetDefault("database_type", "postgres")
	v.SetDefault("database_host", "localhost")
	v.SetDefault("database_port", "5432")
	v.SetDefault("database_name", "rentledger")
	v.SetDefault("database_user", "postgres")
	v.SetDefault("database_password", "")
	v.SetDefault("database_sslmode", "disable")
	v.SetDefault("database_max_idle_conn", 10)
	v.SetDefault("database_max_open_conn", 50)
	v.SetDefault("database_conn_max_lifetime", 3600)
	v.SetDefault("database_conn_max_idle_time", 300)
	v.SetDefault("database_slow_query", "500ms")
	v.SetDefault("database_auto_migrate", false)

	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)

	v.SetDefault("otlp_enabled", false)
	v.SetDefault("otlp_endpoint", "localhost:4317")
	v.SetDefault("otlp_protocol", "grpc")
	v.SetDefault("otlp_sample_ratio", 0.1)

	v.SetDefault("billing_default_currency", "KES")
	v.SetDefault("billing_default_due_day", 5)
	v.SetDefault("billing_cron_secret", "")
	v.SetDefault("billing_reversal_timeout", "15s")
	v.SetDefault("billing_payment_timeout", "10s")
	v.SetDefault("billing_lease_timeout", "30s")
	v.SetDefault("billing_workers", 4)
	v.SetDefault("billing_retry_batch_size", 100)
	v.SetDefault("billing_tx_retries", 3)

	v.SetDefault("scheduler_enabled", false)
	v.SetDefault("scheduler_interval", "1h")
	v.SetDefault("scheduler_run_timeout", "10m")
	v.SetDefault("scheduler_lock_ttl", "15m")
	v.SetDefault("scheduler_lease_page", 200)
	v.SetDefault("scheduler_overdue_batch", 500)

	v.SetDefault("bootstrap_org_id", 0)
	v.SetDefault("bootstrap_org_name", "")
	v.SetDefault("bootstrap_currency", "")
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	return fromViper(v)
}

func fromViper(v *viper.Viper) Config {
	cfg := Config{
		AppName:     v.GetString("app_service"),
		AppVersion:  v.GetString("app_version"),
		Environment: v.GetString("environment"),
		HTTPAddr:    v.GetString("http_addr"),

		LogLevel:  strings.ToLower(strings.TrimSpace(v.GetString("log_level"))),
		LogFormat: strings.ToLower(strings.TrimSpace(v.GetString("log_format"))),

		DBType:            strings.ToLower(v.GetString("database_type")),
		DBHost:            v.GetString("database_host"),
		DBPort:            v.GetString("database_port"),
		DBName:            v.GetString("database_name"),
		DBUser:            v.GetString("database_user"),
		DBPassword:        v.GetString("database_password"),
		DBSSLMode:         v.GetString("database_sslmode"),
		DBMaxIdleConn:     v.GetInt("database_max_idle_conn"),
		DBMaxOpenConn:     v.GetInt("database_max_open_conn"),
		DBConnMaxLifetime: v.GetInt("database_conn_max_lifetime"),
		DBConnMaxIdleTime: v.GetInt("database_conn_max_idle_time"),
		DBSlowQuery:       v.GetDuration("database_slow_query"),
		DBAutoMigrate:     v.GetBool("database_auto_migrate"),

		RedisAddr:     strings.TrimSpace(v.GetString("redis_addr")),
		RedisPassword: v.GetString("redis_password"),
		RedisDB:       v.GetInt("redis_db"),

		OTLPEnabled:     v.GetBool("otlp_enabled"),
		OTLPEndpoint:    v.GetString("otlp_endpoint"),
		OTLPProtocol:    v.GetString("otlp_protocol"),
		OTLPSampleRatio: v.GetFloat64("otlp_sample_ratio"),

		Billing: BillingSettings{
			DefaultCurrency: strings.ToUpper(strings.TrimSpace(v.GetString("billing_default_currency"))),
			DefaultDueDay:   v.GetInt("billing_default_due_day"),
			CronSecret:      strings.TrimSpace(v.GetString("billing_cron_secret")),
			ReversalTimeout: v.GetDuration("billing_reversal_timeout"),
			PaymentTimeout:  v.GetDuration("billing_payment_timeout"),
			LeaseTimeout:    v.GetDuration("billing_lease_timeout"),
			Workers:         v.GetInt("billing_workers"),
			RetryBatchSize:  v.GetInt("billing_retry_batch_size"),
			TxRetries:       v.GetInt("billing_tx_retries"),
		},
		Scheduler: SchedulerSettings{
			Enabled:      v.GetBool("scheduler_enabled"),
			Interval:     v.GetDuration("scheduler_interval"),
			RunTimeout:   v.GetDuration("scheduler_run_timeout"),
			LockTTL:      v.GetDuration("scheduler_lock_ttl"),
			LeasePage:    v.GetInt("scheduler_lease_page"),
			OverdueBatch: v.GetInt("scheduler_overdue_batch"),
		},
		Bootstrap: BootstrapSettings{
			OrgID:    v.GetInt64("bootstrap_org_id"),
			OrgName:  strings.TrimSpace(v.GetString("bootstrap_org_name")),
			Currency: strings.ToUpper(strings.TrimSpace(v.GetString("bootstrap_currency"))),
		},
	}
	cfg.normalize()
	return cfg
}

func (c *Config) normalize() {
	if c.Billing.DefaultCurrency == "" {
		c.Billing.DefaultCurrency = "KES"
	}
	if c.Billing.DefaultDueDay < 1 || c.Billing.DefaultDueDay > 31 {
		c.Billing.DefaultDueDay = 5
	}
	if c.Billing.Workers <= 0 {
		c.Billing.Workers = 1
	}
	if c.Billing.RetryBatchSize <= 0 {
		c.Billing.RetryBatchSize = 100
	}
	if c.Billing.TxRetries <= 0 {
		c.Billing.TxRetries = 1
	}
	if c.Scheduler.LeasePage <= 0 {
		c.Scheduler.LeasePage = 200
	}
	if c.Scheduler.OverdueBatch <= 0 {
		c.Scheduler.OverdueBatch = 500
	}
	if c.Bootstrap.Currency == "" {
		c.Bootstrap.Currency = c.Billing.DefaultCurrency
	}
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}
