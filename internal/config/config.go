package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Addr           string        `yaml:"addr"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
}

type AdminConfig struct {
	APIKey     string        `yaml:"api_key"`
	JWTSecret  string        `yaml:"jwt_secret"`
	TokenTTL   time.Duration `yaml:"token_ttl"`
	RateLimit  int           `yaml:"rate_limit"` // per caller and route per RateWindow; 0 disables, needs redis
	RateWindow time.Duration `yaml:"rate_window"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"` // ledger cache entry lifetime
}

func (r RedisConfig) Enabled() bool { return r.URL != "" }

type StripeConfig struct {
	SecretKey         string        `yaml:"secret_key"`
	WebhookSecret     string        `yaml:"webhook_secret"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	CallTimeout       time.Duration `yaml:"call_timeout"`
}

type ReferralConfig struct {
	BatchSize      int           `yaml:"batch_size"`
	BatchDelay     time.Duration `yaml:"batch_delay"`
	Throttle       string        `yaml:"throttle"` // fixed|token_bucket|none
	ThrottleBurst  int           `yaml:"throttle_burst"`
	MaxReferrals   int           `yaml:"max_referrals"`
	DiscountAmount string        `yaml:"discount_amount"` // major units, e.g. "5.00"
	Currency       string        `yaml:"currency"`
	LockTTL        time.Duration `yaml:"lock_ttl"`
	VerifyInvoice  bool          `yaml:"verify_invoice"`
}

// AmountMinor converts DiscountAmount to minor currency units (cents).
func (r ReferralConfig) AmountMinor() (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(r.DiscountAmount))
	if err != nil {
		return 0, fmt.Errorf("referral.discount_amount: %w", err)
	}
	if !d.IsPositive() {
		return 0, errors.New("referral.discount_amount must be positive")
	}
	minor := d.Shift(2)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, errors.New("referral.discount_amount has more than two decimals")
	}
	return minor.IntPart(), nil
}

type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
	Multiplier      float64       `yaml:"multiplier"`
}

type SchedulerConfig struct {
	ReferralEnabled   bool          `yaml:"referral_enabled"`
	ReferralInterval  time.Duration `yaml:"referral_interval"`
	PoolStatsInterval time.Duration `yaml:"pool_stats_interval"`
}

type TelegramConfig struct {
	Token        string  `yaml:"token"`
	AdminChatIDs []int64 `yaml:"admin_chat_ids"`
}

func (t TelegramConfig) Enabled() bool { return t.Token != "" && len(t.AdminChatIDs) > 0 }

type DevConfig struct {
	SeedFile string `yaml:"seed_file"`
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
	Admin     AdminConfig     `yaml:"admin"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Stripe    StripeConfig    `yaml:"stripe"`
	Referral  ReferralConfig  `yaml:"referral"`
	Retry     RetryConfig     `yaml:"retry"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Dev       DevConfig       `yaml:"dev"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, applies defaults and environment overrides,
// and validates the result. Dev mode relaxes the requirements on external services.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, dev)
}

func Parse(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Runtime.Dev = dev
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	env := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	env("DATABASE_URL", &c.Database.URL)
	env("REDIS_URL", &c.Redis.URL)
	env("STRIPE_SECRET_KEY", &c.Stripe.SecretKey)
	env("STRIPE_WEBHOOK_SECRET", &c.Stripe.WebhookSecret)
	env("ADMIN_API_KEY", &c.Admin.APIKey)
	env("ADMIN_JWT_SECRET", &c.Admin.JWTSecret)
	env("TELEGRAM_BOT_TOKEN", &c.Telegram.Token)
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.ReadTimeout <= 0 {
		c.HTTP.ReadTimeout = 10 * time.Second
	}
	if c.HTTP.WriteTimeout <= 0 {
		c.HTTP.WriteTimeout = 5 * time.Minute
	}
	if c.HTTP.RequestTimeout <= 0 {
		c.HTTP.RequestTimeout = 30 * time.Second
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		c.HTTP.MaxBodyBytes = 1 << 20
	}
	if c.Admin.TokenTTL <= 0 {
		c.Admin.TokenTTL = 12 * time.Hour
	}
	if c.Admin.RateWindow <= 0 {
		c.Admin.RateWindow = time.Minute
	}
	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = 10
	}
	c.Redis.TTL = normalizeTTL(c.Redis.TTL)
	if c.Stripe.RequestsPerSecond <= 0 {
		c.Stripe.RequestsPerSecond = 20
	}
	if c.Stripe.Burst <= 0 {
		c.Stripe.Burst = 5
	}
	if c.Stripe.CallTimeout <= 0 {
		c.Stripe.CallTimeout = 15 * time.Second
	}
	if c.Referral.BatchSize <= 0 {
		c.Referral.BatchSize = 10
	}
	if c.Referral.BatchDelay <= 0 {
		c.Referral.BatchDelay = time.Second
	}
	if c.Referral.Throttle == "" {
		c.Referral.Throttle = "fixed"
	}
	if c.Referral.MaxReferrals <= 0 {
		c.Referral.MaxReferrals = 12
	}
	if c.Referral.DiscountAmount == "" {
		c.Referral.DiscountAmount = "5.00"
	}
	if c.Referral.Currency == "" {
		c.Referral.Currency = "usd"
	}
	c.Referral.Currency = strings.ToLower(c.Referral.Currency)
	if c.Referral.LockTTL <= 0 {
		c.Referral.LockTTL = 30 * time.Minute
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.InitialInterval <= 0 {
		c.Retry.InitialInterval = 200 * time.Millisecond
	}
	if c.Retry.MaxInterval <= 0 {
		c.Retry.MaxInterval = 5 * time.Second
	}
	if c.Retry.Multiplier < 1 {
		c.Retry.Multiplier = 2
	}
	if c.Scheduler.ReferralInterval <= 0 {
		c.Scheduler.ReferralInterval = 24 * time.Hour
	}
	if c.Scheduler.PoolStatsInterval <= 0 {
		c.Scheduler.PoolStatsInterval = 30 * time.Second
	}
}

// Validate checks required settings. Outside dev mode the service needs a database and
// real provider credentials; the admin API needs at least one way to authenticate.
func (c *Config) Validate() error {
	if _, err := c.Referral.AmountMinor(); err != nil {
		return err
	}
	switch c.Referral.Throttle {
	case "fixed", "token_bucket", "none":
	default:
		return fmt.Errorf("referral.throttle: unknown mode %q", c.Referral.Throttle)
	}
	if c.Runtime.Dev {
		return nil
	}
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if c.Stripe.SecretKey == "" {
		return errors.New("stripe.secret_key is required")
	}
	if c.Stripe.WebhookSecret == "" {
		return errors.New("stripe.webhook_secret is required")
	}
	if c.Admin.APIKey == "" && c.Admin.JWTSecret == "" {
		return errors.New("admin.api_key or admin.jwt_secret is required")
	}
	return nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
