package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "UTC"
	configPathEnv   = "NEWSDASH_CONFIG"

	httpAddrEnv        = "HTTP_ADDR"
	secretKeyEnv       = "SECRET_KEY"
	databasePathEnv    = "DATABASE_PATH"
	maxArticlesEnv     = "MAX_ARTICLES"
	logLevelEnv        = "LOG_LEVEL"
	scrapeCronEnv      = "SCRAPE_CRON"
	adminUsernameEnv   = "ADMIN_USERNAME"
	adminPasswordEnv   = "ADMIN_PASSWORD"
	vapidPublicKeyEnv  = "VAPID_PUBLIC_KEY"
	vapidPrivateKeyEnv = "VAPID_PRIVATE_KEY"
	vapidSubscriberEnv = "VAPID_CLAIM_EMAIL"
	llmAPIKeyEnv       = "ANTHROPIC_API_KEY"
	llmModelEnv        = "LLM_MODEL"
)

// Config holds high-level settings required across the application.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Auth      AuthConfig      `yaml:"auth"`
	Push      PushConfig      `yaml:"push"`
	LLM       LLMConfig       `yaml:"llm"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// HTTPConfig describes the web listener.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// DatabaseConfig describes the SQLite file location.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SchedulerConfig defines when the daily scrape pass runs.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// IngestConfig carries ingestion-engine tunables.
type IngestConfig struct {
	// MaxArticles caps live rows per append-type source. The cap throttles
	// inserts; it never evicts already-stored rows.
	MaxArticles int `yaml:"maxArticles"`
}

// AuthConfig wires session signing and the seeded admin account.
type AuthConfig struct {
	SecretKey     string        `yaml:"secretKey"`
	SessionTTL    time.Duration `yaml:"sessionTTL"`
	AdminUsername string        `yaml:"adminUsername"`
	AdminPassword string        `yaml:"adminPassword"`
}

// PushConfig carries VAPID keys for web-push delivery. Empty keys disable
// the notification channel.
type PushConfig struct {
	PublicKey  string `yaml:"publicKey"`
	PrivateKey string `yaml:"privateKey"`
	Subscriber string `yaml:"subscriber"`
}

// LLMConfig defines how to reach the completion API behind the book
// recommender. An empty key disables recommendation generation.
type LLMConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Model     string `yaml:"model"`
	APIKey    string `yaml:"apiKey"`
	MaxTokens int    `yaml:"maxTokens"`
}

// LoggingConfig selects the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(httpAddrEnv); v != "" {
		c.HTTP.Addr = v
	}

	if v := os.Getenv(databasePathEnv); v != "" {
		c.Database.Path = v
	}

	if v := os.Getenv(secretKeyEnv); v != "" {
		c.Auth.SecretKey = v
	}

	if v := os.Getenv(adminUsernameEnv); v != "" {
		c.Auth.AdminUsername = v
	}

	if v := os.Getenv(adminPasswordEnv); v != "" {
		c.Auth.AdminPassword = v
	}

	if v := os.Getenv(maxArticlesEnv); v != "" {
		if n, err := strconv.Atoi(v); err != nil || n <= 0 {
			log.Printf("config: invalid %s=%q, keeping %d", maxArticlesEnv, v, c.Ingest.MaxArticles)
		} else {
			c.Ingest.MaxArticles = n
		}
	}

	if v := os.Getenv(scrapeCronEnv); v != "" {
		c.Scheduler.CronExpression = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(vapidPublicKeyEnv); v != "" {
		c.Push.PublicKey = v
	}

	if v := os.Getenv(vapidPrivateKeyEnv); v != "" {
		c.Push.PrivateKey = v
	}

	if v := os.Getenv(vapidSubscriberEnv); v != "" {
		c.Push.Subscriber = v
	}

	if v := os.Getenv(llmAPIKeyEnv); v != "" {
		c.LLM.APIKey = v
	}

	if v := os.Getenv(llmModelEnv); v != "" {
		c.LLM.Model = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.HTTP.Addr != "" {
		base.HTTP = override.HTTP
	}

	if override.Database.Path != "" {
		base.Database = override.Database
	}

	if override.Scheduler.CronExpression != "" {
		base.Scheduler.CronExpression = override.Scheduler.CronExpression
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Ingest.MaxArticles > 0 {
		base.Ingest.MaxArticles = override.Ingest.MaxArticles
	}

	if override.Auth.SecretKey != "" {
		base.Auth.SecretKey = override.Auth.SecretKey
	}
	if override.Auth.SessionTTL > 0 {
		base.Auth.SessionTTL = override.Auth.SessionTTL
	}
	if override.Auth.AdminUsername != "" {
		base.Auth.AdminUsername = override.Auth.AdminUsername
	}
	if override.Auth.AdminPassword != "" {
		base.Auth.AdminPassword = override.Auth.AdminPassword
	}

	if override.Push.PublicKey != "" {
		base.Push.PublicKey = override.Push.PublicKey
	}
	if override.Push.PrivateKey != "" {
		base.Push.PrivateKey = override.Push.PrivateKey
	}
	if override.Push.Subscriber != "" {
		base.Push.Subscriber = override.Push.Subscriber
	}

	if override.LLM.Endpoint != "" {
		base.LLM.Endpoint = override.LLM.Endpoint
	}
	if override.LLM.Model != "" {
		base.LLM.Model = override.LLM.Model
	}
	if override.LLM.APIKey != "" {
		base.LLM.APIKey = override.LLM.APIKey
	}
	if override.LLM.MaxTokens > 0 {
		base.LLM.MaxTokens = override.LLM.MaxTokens
	}

	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		HTTP:     HTTPConfig{Addr: ":8080"},
		Database: DatabaseConfig{Path: "instance/dashboard.db"},
		Scheduler: SchedulerConfig{
			// 21:00 UTC = 06:00 KST, one pass per day.
			CronExpression: "0 21 * * *",
			Timezone:       defaultTimezone,
			location:       tz,
		},
		Ingest: IngestConfig{MaxArticles: 500},
		Auth: AuthConfig{
			SessionTTL:    24 * time.Hour,
			AdminUsername: "admin",
		},
		LLM: LLMConfig{
			Endpoint:  "https://api.anthropic.com/v1/messages",
			Model:     "claude-sonnet-4-5-20250929",
			MaxTokens: 2048,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}
