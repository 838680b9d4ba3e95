package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.HTTP.Addr != ":8080" {
		t.Fatalf("default addr = %s", cfg.HTTP.Addr)
	}
	if cfg.Database.Path != "instance/dashboard.db" {
		t.Fatalf("default db path = %s", cfg.Database.Path)
	}
	if cfg.Scheduler.CronExpression != "0 21 * * *" {
		t.Fatalf("default cron = %s", cfg.Scheduler.CronExpression)
	}
	if cfg.Ingest.MaxArticles != 500 {
		t.Fatalf("default max articles = %d", cfg.Ingest.MaxArticles)
	}
	if cfg.Auth.SessionTTL != 24*time.Hour {
		t.Fatalf("default session ttl = %s", cfg.Auth.SessionTTL)
	}
	if cfg.Scheduler.Location() != time.UTC {
		t.Fatalf("default location = %v", cfg.Scheduler.Location())
	}
	if cfg.LLM.Endpoint != "https://api.anthropic.com/v1/messages" {
		t.Fatalf("default llm endpoint = %s", cfg.LLM.Endpoint)
	}
	if cfg.LLM.MaxTokens != 2048 {
		t.Fatalf("default llm max tokens = %d", cfg.LLM.MaxTokens)
	}
	if cfg.LLM.APIKey != "" {
		t.Fatalf("llm api key should default empty, got %s", cfg.LLM.APIKey)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("MAX_ARTICLES", "42")
	t.Setenv("SCRAPE_CRON", "30 5 * * *")
	t.Setenv("ADMIN_USERNAME", "ops")
	t.Setenv("VAPID_PUBLIC_KEY", "pub")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	cfg := Load()

	if cfg.HTTP.Addr != ":9000" {
		t.Fatalf("addr override = %s", cfg.HTTP.Addr)
	}
	if cfg.Ingest.MaxArticles != 42 {
		t.Fatalf("max articles override = %d", cfg.Ingest.MaxArticles)
	}
	if cfg.Scheduler.CronExpression != "30 5 * * *" {
		t.Fatalf("cron override = %s", cfg.Scheduler.CronExpression)
	}
	if cfg.Auth.AdminUsername != "ops" {
		t.Fatalf("admin username override = %s", cfg.Auth.AdminUsername)
	}
	if cfg.Push.PublicKey != "pub" {
		t.Fatalf("vapid key override = %s", cfg.Push.PublicKey)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Fatalf("llm api key override = %s", cfg.LLM.APIKey)
	}
}

func TestLoadIgnoresInvalidMaxArticles(t *testing.T) {
	t.Setenv("MAX_ARTICLES", "not-a-number")

	cfg := Load()
	if cfg.Ingest.MaxArticles != 500 {
		t.Fatalf("invalid override changed max articles to %d", cfg.Ingest.MaxArticles)
	}
}

func TestLoadMergesYAMLFile(t *testing.T) {
	raw := []byte(`
http:
  addr: ":7070"
scheduler:
  cronExpression: "0 6 * * *"
  timezone: "Asia/Seoul"
ingest:
  maxArticles: 200
auth:
  adminUsername: fileadmin
`)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("NEWSDASH_CONFIG", path)

	cfg := Load()

	if cfg.HTTP.Addr != ":7070" {
		t.Fatalf("file addr = %s", cfg.HTTP.Addr)
	}
	if cfg.Scheduler.CronExpression != "0 6 * * *" {
		t.Fatalf("file cron = %s", cfg.Scheduler.CronExpression)
	}
	if cfg.Ingest.MaxArticles != 200 {
		t.Fatalf("file max articles = %d", cfg.Ingest.MaxArticles)
	}
	if cfg.Auth.AdminUsername != "fileadmin" {
		t.Fatalf("file admin = %s", cfg.Auth.AdminUsername)
	}
	if cfg.Scheduler.Location().String() != "Asia/Seoul" {
		t.Fatalf("file timezone = %v", cfg.Scheduler.Location())
	}
	// Defaults survive for keys the file does not set.
	if cfg.Database.Path != "instance/dashboard.db" {
		t.Fatalf("db path changed to %s", cfg.Database.Path)
	}
}

func TestEnvOverridesBeatFile(t *testing.T) {
	raw := []byte("http:\n  addr: \":7070\"\n")
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("NEWSDASH_CONFIG", path)
	t.Setenv("HTTP_ADDR", ":9999")

	cfg := Load()
	if cfg.HTTP.Addr != ":9999" {
		t.Fatalf("env should beat file, got %s", cfg.HTTP.Addr)
	}
}
