// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type HTTPConfig struct {
	Port           int           `yaml:"port" env:"HTTP_PORT"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// WebhookTimeout bounds how long a callback reconciliation may run in the background.
	WebhookTimeout time.Duration `yaml:"webhook_timeout"`
}

type LogConfig struct {
	Level    string `yaml:"level" env:"LOG_LEVEL"`   // trace|debug|info|warn|error
	Format   string `yaml:"format" env:"LOG_FORMAT"` // json|console
	Sampling bool   `yaml:"sampling"`                // enable sampling in prod
}

type AdminConfig struct {
	APIKey     string        `yaml:"api_key" env:"ADMIN_API_KEY"`
	JWTSecret  string        `yaml:"jwt_secret" env:"ADMIN_JWT_SECRET"`
	SessionTTL time.Duration `yaml:"session_ttl"`
	Secure     bool          `yaml:"secure_cookie"`
	Domain     string        `yaml:"cookie_domain"`
}

// UsersConfig verifies storefront user tokens. The storefront signs an HS256
// JWT whose subject is the user id; the secret is shared out of band.
type UsersConfig struct {
	JWTSecret string `yaml:"-" env:"USER_JWT_SECRET"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url" env:"DATABASE_URL"`
	MaxConns int32  `yaml:"max_conns"`
	Migrate  bool   `yaml:"migrate"` // apply embedded migrations on start
}

type RedisConfig struct {
	URL      string        `yaml:"url" env:"REDIS_URL"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// GatewayConfig carries the PhonePe merchant credentials. It is filled from the
// environment (secret store) at process start and handed to the gateway constructor.
type GatewayConfig struct {
	Provider    string        `yaml:"provider"` // phonepe | noop
	BaseURL     string        `yaml:"base_url" env:"PHONEPE_BASE_URL"`
	MerchantID  string        `yaml:"merchant_id" env:"PHONEPE_MERCHANT_ID"`
	SaltKey     string        `yaml:"-" env:"PHONEPE_SALT_KEY"`
	SaltIndex   string        `yaml:"salt_index" env:"PHONEPE_SALT_INDEX"`
	RedirectURL string        `yaml:"redirect_url" env:"PHONEPE_REDIRECT_URL"`
	CallbackURL string        `yaml:"callback_url" env:"PHONEPE_CALLBACK_URL"`
	Timeout     time.Duration `yaml:"timeout"`
}

type ReconcileConfig struct {
	ValidityDays int           `yaml:"validity_days"`
	LockTTL      time.Duration `yaml:"lock_ttl"`
	PollInterval time.Duration `yaml:"poll_interval"`
	StaleAfter   time.Duration `yaml:"stale_after"`
	GiveUpAfter  time.Duration `yaml:"give_up_after"`   // orders older than this are no longer polled
	PollLimit    int           `yaml:"poll_rate_limit"` // polls per order per minute
	Workers      int           `yaml:"workers"`
}

type OutboxConfig struct {
	Interval    time.Duration `yaml:"interval"`
	BatchSize   int           `yaml:"batch_size"`
	MaxAttempts int           `yaml:"max_attempts"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" envSeparator:","`
	Topic   string   `yaml:"topic"`
}

type TelegramConfig struct {
	Token        string  `yaml:"-" env:"TELEGRAM_BOT_TOKEN"`
	AdminChatIDs []int64 `yaml:"admin_chat_ids"`
}

type NotifyConfig struct {
	Kafka    KafkaConfig    `yaml:"kafka"`
	Telegram TelegramConfig `yaml:"telegram"`
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"-" env:"ENCRYPTION_KEY"`
}

type I18nConfig struct {
	Lang string `yaml:"lang"`
}

type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`
	Admin     AdminConfig     `yaml:"admin"`
	Users     UsersConfig     `yaml:"users"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Outbox    OutboxConfig    `yaml:"outbox"`
	Notify    NotifyConfig    `yaml:"notify"`
	Security  SecurityConfig  `yaml:"security"`
	I18n      I18nConfig      `yaml:"i18n"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, overlays secrets from the environment
// and applies defaults. The yaml file never carries credentials.
func LoadConfig(path string, dev bool) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !(dev && errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.Runtime.Dev = dev
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 15 * time.Second
	}
	if cfg.HTTP.WebhookTimeout <= 0 {
		cfg.HTTP.WebhookTimeout = 20 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Admin.SessionTTL <= 0 {
		cfg.Admin.SessionTTL = 30 * time.Minute
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	if cfg.Gateway.Provider == "" {
		cfg.Gateway.Provider = "phonepe"
	}
	cfg.Gateway.Provider = strings.ToLower(cfg.Gateway.Provider)
	if cfg.Gateway.BaseURL == "" {
		cfg.Gateway.BaseURL = "https://api.phonepe.com/apis/hermes"
	}
	if cfg.Gateway.SaltIndex == "" {
		cfg.Gateway.SaltIndex = "1"
	}
	if cfg.Gateway.Timeout <= 0 {
		cfg.Gateway.Timeout = 10 * time.Second
	}

	if cfg.Reconcile.ValidityDays <= 0 {
		cfg.Reconcile.ValidityDays = 30
	}
	if cfg.Reconcile.LockTTL <= 0 {
		cfg.Reconcile.LockTTL = 30 * time.Second
	}
	if cfg.Reconcile.PollInterval <= 0 {
		cfg.Reconcile.PollInterval = time.Minute
	}
	if cfg.Reconcile.StaleAfter <= 0 {
		cfg.Reconcile.StaleAfter = 10 * time.Minute
	}
	if cfg.Reconcile.GiveUpAfter <= cfg.Reconcile.StaleAfter {
		cfg.Reconcile.GiveUpAfter = 72 * time.Hour
	}
	if cfg.Reconcile.PollLimit <= 0 {
		cfg.Reconcile.PollLimit = 30
	}
	if cfg.Reconcile.Workers <= 0 {
		cfg.Reconcile.Workers = 8
	}

	if cfg.Outbox.Interval <= 0 {
		cfg.Outbox.Interval = 2 * time.Second
	}
	if cfg.Outbox.BatchSize <= 0 {
		cfg.Outbox.BatchSize = 100
	}
	if cfg.Outbox.MaxAttempts <= 0 {
		cfg.Outbox.MaxAttempts = 10
	}
	if cfg.Notify.Kafka.Topic == "" {
		cfg.Notify.Kafka.Topic = "rankblaze.entitlements"
	}
	if cfg.I18n.Lang == "" {
		cfg.I18n.Lang = "en"
	}
}

// Validate enforces the settings the service cannot run without. Dev mode
// tolerates missing infrastructure and falls back to in-memory adapters.
func (c *Config) Validate() error {
	if c.Runtime.Dev {
		return nil
	}
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if c.Redis.URL == "" {
		return errors.New("redis.url is required")
	}
	if c.Gateway.Provider == "phonepe" {
		if c.Gateway.MerchantID == "" || c.Gateway.SaltKey == "" {
			return errors.New("gateway merchant id and salt key are required (PHONEPE_MERCHANT_ID, PHONEPE_SALT_KEY)")
		}
	}
	if c.Admin.JWTSecret == "" || c.Admin.APIKey == "" {
		return errors.New("admin api key and jwt secret are required")
	}
	if c.Users.JWTSecret == "" {
		return errors.New("user jwt secret is required (USER_JWT_SECRET)")
	}
	if n := len(c.Security.EncryptionKey); n != 16 && n != 24 && n != 32 {
		return errors.New("security encryption key must be 16, 24 or 32 bytes (ENCRYPTION_KEY)")
	}
	return nil
}

// ValidityWindow is the entitlement lifetime granted per successful order.
func (c *Config) ValidityWindow() time.Duration {
	return time.Duration(c.Reconcile.ValidityDays) * 24 * time.Hour
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
