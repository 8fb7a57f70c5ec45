package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if errWrite := os.WriteFile(path, []byte(content), 0o600); errWrite != nil {
		t.Fatalf("write config: %v", errWrite)
	}
	return path
}

func TestLoadParsesYAMLAndAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  dsn: "file:data/store.db"
telegram:
  token: "bot-token"
  admin-id: 42
payment:
  api-key: "sk_test"
  min-amount: "15.50"
  poll-interval: 2s
store:
  mix-price: 7
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.DSN != "file:data/store.db" {
		t.Fatalf("unexpected dsn %q", cfg.Database.DSN)
	}
	if cfg.Telegram.AdminID != 42 {
		t.Fatalf("unexpected admin id %d", cfg.Telegram.AdminID)
	}
	if !cfg.Payment.MinAmount.Equal(decimal.RequireFromString("15.5")) {
		t.Fatalf("unexpected min amount %s", cfg.Payment.MinAmount)
	}
	if cfg.Payment.PollInterval != 2*time.Second {
		t.Fatalf("unexpected poll interval %s", cfg.Payment.PollInterval)
	}
	if cfg.Payment.PollWindow != DefaultPollWindow {
		t.Fatalf("expected default poll window, got %s", cfg.Payment.PollWindow)
	}
	if !cfg.Store.MixPrice.Equal(decimal.NewFromInt(7)) {
		t.Fatalf("unexpected mix price %s", cfg.Store.MixPrice)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Fatalf("unexpected http addr %q", cfg.HTTP.Addr)
	}
	if errValidate := cfg.Validate(); errValidate != nil {
		t.Fatalf("validate: %v", errValidate)
	}
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, `
database:
  dsn: "file:data/store.db"
telegram:
  admin-id: 1
`)
	t.Setenv("DATABASE_URL", "postgres://store@localhost/store")
	t.Setenv("ADMIN_ID", "99")
	t.Setenv("WEBHOOK_SECRET", "s3cret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.DSN != "postgres://store@localhost/store" {
		t.Fatalf("expected env dsn, got %q", cfg.Database.DSN)
	}
	if cfg.Telegram.AdminID != 99 {
		t.Fatalf("expected env admin id, got %d", cfg.Telegram.AdminID)
	}
	if cfg.Webhook.Secret != "s3cret" {
		t.Fatalf("expected env webhook secret, got %q", cfg.Webhook.Secret)
	}
}

func TestLoadRejectsInvalidAdminID(t *testing.T) {
	t.Setenv("ADMIN_ID", "not-a-number")
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for invalid ADMIN_ID")
	}
}

func TestValidateReportsMissingToken(t *testing.T) {
	cfg := &Config{Database: DatabaseConfig{DSN: "store.db"}}
	cfg.applyDefaults()
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv(ConfigPathEnv, "")
	if got := ResolveConfigPath(""); got != DefaultConfigPath {
		t.Fatalf("expected default path, got %q", got)
	}
	t.Setenv(ConfigPathEnv, "/etc/pixstore.yaml")
	if got := ResolveConfigPath(""); got != "/etc/pixstore.yaml" {
		t.Fatalf("expected env path, got %q", got)
	}
	if got := ResolveConfigPath("local.yaml"); got != "local.yaml" {
		t.Fatalf("expected explicit path, got %q", got)
	}
}
