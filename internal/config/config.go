// Package config loads the store configuration from YAML, .env and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is used when no path is given on the command line or in PIXSTORE_CONFIG.
	DefaultConfigPath = "config.yaml"
	// ConfigPathEnv overrides the config file location.
	ConfigPathEnv = "PIXSTORE_CONFIG"
)

// AppConfig carries process level options from the command line.
type AppConfig struct {
	ConfigPath string
}

// Config is the full store configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Telegram TelegramConfig `yaml:"telegram"`
	HTTP     HTTPConfig     `yaml:"http"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Payment  PaymentConfig  `yaml:"payment"`
	Store    StoreConfig    `yaml:"store"`
	Redis    RedisConfig    `yaml:"redis"`
	Log      LogConfig      `yaml:"log"`
}

// DatabaseConfig selects the data store.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// TelegramConfig holds bot credentials and the fixed chat ids.
type TelegramConfig struct {
	Token   string `yaml:"token"`
	AdminID int64  `yaml:"admin-id"`
	GroupID int64  `yaml:"group-id"`
	Debug   bool   `yaml:"debug"`
}

// HTTPConfig configures the webhook listener.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// WebhookConfig holds the secret used to verify webhook bearer tokens.
type WebhookConfig struct {
	Secret string `yaml:"secret"`
}

// PaymentConfig configures the PIX provider and the charge watcher.
type PaymentConfig struct {
	BaseURL      string          `yaml:"base-url"`
	APIKey       string          `yaml:"api-key"`
	MinAmount    decimal.Decimal `yaml:"min-amount"`
	PollInterval time.Duration   `yaml:"poll-interval"`
	PollWindow   time.Duration   `yaml:"poll-window"`
	PixExpiresIn time.Duration   `yaml:"pix-expires-in"`
}

// StoreConfig holds catalogue level options.
type StoreConfig struct {
	MixPrice   decimal.Decimal `yaml:"mix-price"`
	SessionTTL time.Duration   `yaml:"session-ttl"`
	PageSize   int             `yaml:"page-size"`
	// SupportContact is shown by /support, e.g. "@storehelp" or an email address.
	SupportContact string `yaml:"support-contact"`
}

// RedisConfig enables the Redis session store when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LogConfig configures logrus and file rotation.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max-size-mb"`
	MaxBackups int    `yaml:"max-backups"`
	MaxAgeDays int    `yaml:"max-age-days"`
	JSON       bool   `yaml:"json"`
}

// Defaults.
var (
	DefaultMinAmount    = decimal.NewFromInt(10)
	DefaultMixPrice     = decimal.NewFromInt(5)
	DefaultPollInterval = 5 * time.Second
	DefaultPollWindow   = 30 * time.Minute
	DefaultPixExpiresIn = 2 * time.Hour
	DefaultSessionTTL   = 30 * time.Minute
)

// ResolveConfigPath picks the explicit path, then PIXSTORE_CONFIG, then the default.
func ResolveConfigPath(path string) string {
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		return trimmed
	}
	if env := strings.TrimSpace(os.Getenv(ConfigPathEnv)); env != "" {
		return env
	}
	return DefaultConfigPath
}

// ConfigExists reports whether the config file is present.
func ConfigExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Load reads the config file (optional), a .env file next to the working
// directory (optional) and environment overrides, then applies defaults.
func Load(path string) (*Config, error) {
	if errEnv := godotenv.Load(); errEnv != nil && !errors.Is(errEnv, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", errEnv)
	}

	cfg := &Config{}
	data, errRead := os.ReadFile(path)
	switch {
	case errRead == nil:
		if errUnmarshal := yaml.Unmarshal(data, cfg); errUnmarshal != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, errUnmarshal)
		}
	case errors.Is(errRead, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("config: read %s: %w", path, errRead)
	}

	if errEnv := cfg.applyEnv(); errEnv != nil {
		return nil, errEnv
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadDatabaseDSN loads only what is needed to reach the database.
func LoadDatabaseDSN(path string) (string, error) {
	cfg, err := Load(path)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return "", fmt.Errorf("config: database.dsn is required")
	}
	return cfg.Database.DSN, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Database.DSN, "DATABASE_URL")
	setString(&c.Telegram.Token, "TELEGRAM_TOKEN")
	setString(&c.Payment.APIKey, "PAGARME_API_KEY")
	setString(&c.Payment.BaseURL, "PAGARME_BASE_URL")
	setString(&c.Webhook.Secret, "WEBHOOK_SECRET")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.HTTP.Addr, "HTTP_ADDR")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Store.SupportContact, "SUPPORT_CONTACT")
	if errParse := setInt64(&c.Telegram.AdminID, "ADMIN_ID"); errParse != nil {
		return errParse
	}
	return setInt64(&c.Telegram.GroupID, "GROUP_ID")
}

func (c *Config) applyDefaults() {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.Payment.BaseURL == "" {
		c.Payment.BaseURL = "https://api.pagar.me/core/v5"
	}
	if !c.Payment.MinAmount.IsPositive() {
		c.Payment.MinAmount = DefaultMinAmount
	}
	if c.Payment.PollInterval <= 0 {
		c.Payment.PollInterval = DefaultPollInterval
	}
	if c.Payment.PollWindow <= 0 {
		c.Payment.PollWindow = DefaultPollWindow
	}
	if c.Payment.PixExpiresIn <= 0 {
		c.Payment.PixExpiresIn = DefaultPixExpiresIn
	}
	if !c.Store.MixPrice.IsPositive() {
		c.Store.MixPrice = DefaultMixPrice
	}
	if c.Store.SessionTTL <= 0 {
		c.Store.SessionTTL = DefaultSessionTTL
	}
	if c.Store.PageSize <= 0 {
		c.Store.PageSize = 50
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSizeMB <= 0 {
		c.Log.MaxSizeMB = 50
	}
	if c.Log.MaxBackups <= 0 {
		c.Log.MaxBackups = 5
	}
	if c.Log.MaxAgeDays <= 0 {
		c.Log.MaxAgeDays = 30
	}
}

// Validate reports the first missing value required to serve.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Database.DSN) == "":
		return fmt.Errorf("config: database.dsn is required")
	case strings.TrimSpace(c.Telegram.Token) == "":
		return fmt.Errorf("config: telegram.token is required")
	case c.Telegram.AdminID == 0:
		return fmt.Errorf("config: telegram.admin-id is required")
	case strings.TrimSpace(c.Payment.APIKey) == "":
		return fmt.Errorf("config: payment.api-key is required")
	}
	return nil
}

func setString(dst *string, key string) {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		*dst = strings.TrimSpace(value)
	}
}

func setInt64(dst *int64, key string) error {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	parsed, errParse := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if errParse != nil {
		return fmt.Errorf("config: %s: %w", key, errParse)
	}
	*dst = parsed
	return nil
}
