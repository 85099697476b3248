package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot related settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// DatabaseConfig describes the Postgres connection.
type DatabaseConfig struct {
	DSN           string `yaml:"dsn" envconfig:"DATABASE_DSN"`
	MigrationsDir string `yaml:"migrations_dir" envconfig:"DATABASE_MIGRATIONS_DIR"`
	MaxOpenConns  int    `yaml:"max_open_conns" envconfig:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns  int    `yaml:"max_idle_conns" envconfig:"DATABASE_MAX_IDLE_CONNS"`
}

// PermitsConfig carries the circulation-permit business settings. Entidad is
// the short entity code stamped on records; DisplayName is what users see.
type PermitsConfig struct {
	Entidad           string `yaml:"entidad" envconfig:"PERMITS_ENTIDAD"`
	DisplayName       string `yaml:"display_name" envconfig:"PERMITS_DISPLAY_NAME"`
	FolioPrefix       string `yaml:"folio_prefix" envconfig:"PERMITS_FOLIO_PREFIX"`
	FolioSuffixStart  int    `yaml:"folio_suffix_start" envconfig:"PERMITS_FOLIO_SUFFIX_START"`
	PendingTTLMinutes int    `yaml:"pending_ttl_minutes" envconfig:"PERMITS_PENDING_TTL_MINUTES"`
	ValidityDays      int    `yaml:"validity_days" envconfig:"PERMITS_VALIDITY_DAYS"`
	AdminMarker       string `yaml:"admin_marker" envconfig:"PERMITS_ADMIN_MARKER"`
	PriceMXN          int    `yaml:"price_mxn" envconfig:"PERMITS_PRICE_MXN"`
	Timezone          string `yaml:"timezone" envconfig:"PERMITS_TIMEZONE"`
	OutputDir         string `yaml:"output_dir" envconfig:"PERMITS_OUTPUT_DIR"`
}

// WebConfig configures the public status-page server.
type WebConfig struct {
	Listen  string `yaml:"listen" envconfig:"WEB_LISTEN"`
	BaseURL string `yaml:"base_url" envconfig:"WEB_BASE_URL"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	File        string `yaml:"file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// UpdateCallback identifies callback updates for rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
	// UpdateInlineQuery identifies inline query updates for rate limit exclusions.
	UpdateInlineQuery = "inline_query"
)

// RateLimitConfig holds settings for rate limiting.
// ExcludeUpdates accepts update types to bypass limiting:
// - "callback": Telegram callback button presses
// - "message": standard text messages
// - "inline_query": inline query updates
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Config aggregates the service configuration.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Database  DatabaseConfig  `yaml:"database"`
	Permits   PermitsConfig   `yaml:"permits"`
	Web       WebConfig       `yaml:"web"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" {
		rm = RunModeLongpoll
	}
	if rm == "polling" { // accept alias
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if cfg.Database.MaxOpenConns < 0 || cfg.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database connection limits must be >= 0")
	}
	if strings.TrimSpace(cfg.Database.MigrationsDir) == "" {
		cfg.Database.MigrationsDir = "migrations"
	}

	if err := normalizePermits(&cfg.Permits); err != nil {
		return err
	}

	if strings.TrimSpace(cfg.Web.Listen) == "" {
		cfg.Web.Listen = ":8080"
	}
	cfg.Web.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Web.BaseURL), "/")

	allowed := map[string]struct{}{
		UpdateCallback:    {},
		UpdateMessage:     {},
		UpdateInlineQuery: {},
	}
	for i, v := range cfg.RateLimit.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message, inline_query", v)
		}
		cfg.RateLimit.ExcludeUpdates[i] = key
	}
	return nil
}

func normalizePermits(p *PermitsConfig) error {
	if strings.TrimSpace(p.Entidad) == "" {
		p.Entidad = "ags"
	}
	if strings.TrimSpace(p.DisplayName) == "" {
		p.DisplayName = "Aguascalientes"
	}
	p.FolioPrefix = strings.TrimSpace(p.FolioPrefix)
	if p.FolioPrefix == "" {
		p.FolioPrefix = "129"
	}
	for _, r := range p.FolioPrefix {
		if r < '0' || r > '9' {
			return fmt.Errorf("permits.folio_prefix must be numeric, got %q", p.FolioPrefix)
		}
	}
	if p.FolioSuffixStart < 0 {
		return fmt.Errorf("permits.folio_suffix_start must be >= 0")
	}
	if p.FolioSuffixStart == 0 {
		p.FolioSuffixStart = 2
	}
	if p.PendingTTLMinutes < 0 {
		return fmt.Errorf("permits.pending_ttl_minutes must be >= 0")
	}
	if p.PendingTTLMinutes == 0 {
		p.PendingTTLMinutes = 12 * 60
	}
	if p.ValidityDays < 0 {
		return fmt.Errorf("permits.validity_days must be >= 0")
	}
	if p.ValidityDays == 0 {
		p.ValidityDays = 30
	}
	if strings.TrimSpace(p.AdminMarker) == "" {
		p.AdminMarker = "SERO"
	}
	p.AdminMarker = strings.ToUpper(strings.TrimSpace(p.AdminMarker))
	if p.PriceMXN <= 0 {
		p.PriceMXN = 180
	}
	if strings.TrimSpace(p.Timezone) == "" {
		p.Timezone = "America/Mexico_City"
	}
	if strings.TrimSpace(p.OutputDir) == "" {
		p.OutputDir = "documents"
	}
	return nil
}
