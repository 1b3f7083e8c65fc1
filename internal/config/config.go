// Package config handles configuration loading for IBEX AI.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	LLM      LLMConfig      `mapstructure:"llm"      yaml:"llm"`
	Market   MarketConfig   `mapstructure:"market"   yaml:"market"`
	Analysis AnalysisConfig `mapstructure:"analysis" yaml:"analysis"`
	Session  SessionConfig  `mapstructure:"session"  yaml:"session"`
	Email    EmailConfig    `mapstructure:"email"    yaml:"email"`
	API      APIConfig      `mapstructure:"api"      yaml:"api"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"`
}

// LLMConfig holds language-model backend configuration.
type LLMConfig struct {
	Primary       string  `mapstructure:"primary"        yaml:"primary"` // "groq", "openai", "ollama"
	GroqKey       string  `mapstructure:"groq_key"       yaml:"groq_key"`
	GroqBaseURL   string  `mapstructure:"groq_base_url"  yaml:"groq_base_url"`
	OpenAIKey     string  `mapstructure:"openai_key"     yaml:"openai_key"`
	OllamaURL     string  `mapstructure:"ollama_url"     yaml:"ollama_url"`
	Model         string  `mapstructure:"model"          yaml:"model"`
	FallbackModel string  `mapstructure:"fallback_model" yaml:"fallback_model"`
	Temperature   float64 `mapstructure:"temperature"    yaml:"temperature"`
	MaxTokens     int     `mapstructure:"max_tokens"     yaml:"max_tokens"`
	TimeoutSec    int     `mapstructure:"timeout_sec"    yaml:"timeout_sec"`
}

// Timeout returns the per-call backend timeout.
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// MarketConfig holds market data and snapshot settings.
type MarketConfig struct {
	YahooBaseURL      string   `mapstructure:"yahoo_base_url"      yaml:"yahoo_base_url"`
	SnapshotTTLSec    int      `mapstructure:"snapshot_ttl"        yaml:"snapshot_ttl"` // seconds
	RequestsPerSecond float64  `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	HTTPTimeoutSec    int      `mapstructure:"http_timeout_sec"    yaml:"http_timeout_sec"`
	NewsFeeds         []string `mapstructure:"news_feeds"          yaml:"news_feeds"`
	NewsLimit         int      `mapstructure:"news_limit"          yaml:"news_limit"`
}

// SnapshotTTL returns the market snapshot validity window.
func (c MarketConfig) SnapshotTTL() time.Duration {
	return time.Duration(c.SnapshotTTLSec) * time.Second
}

// AnalysisConfig holds analysis engine settings.
type AnalysisConfig struct {
	ConcurrentFetches   int `mapstructure:"concurrent_fetches"    yaml:"concurrent_fetches"`
	HistoryDays         int `mapstructure:"history_days"          yaml:"history_days"`
	ForecastHorizonDays int `mapstructure:"forecast_horizon_days" yaml:"forecast_horizon_days"`
	RSIPeriod           int `mapstructure:"rsi_period"            yaml:"rsi_period"`
}

// SessionConfig holds per-user session settings.
type SessionConfig struct {
	Backend       string `mapstructure:"backend"        yaml:"backend"` // "memory" or "redis"
	RedisAddr     string `mapstructure:"redis_addr"     yaml:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"       yaml:"redis_db"`
	IdleMinutes   int    `mapstructure:"idle_minutes"   yaml:"idle_minutes"`
	HistoryWindow int    `mapstructure:"history_window" yaml:"history_window"`
	CookieName    string `mapstructure:"cookie_name"    yaml:"cookie_name"`
}

// IdleTTL returns how long an untouched session survives.
func (c SessionConfig) IdleTTL() time.Duration {
	return time.Duration(c.IdleMinutes) * time.Minute
}

// EmailConfig holds outbound email settings for the daily digest.
type EmailConfig struct {
	Transport     string `mapstructure:"transport"      yaml:"transport"` // "log", "mailgun", "smtp"
	From          string `mapstructure:"from"           yaml:"from"`
	To            string `mapstructure:"to"             yaml:"to"`
	MailgunDomain string `mapstructure:"mailgun_domain" yaml:"mailgun_domain"`
	MailgunKey    string `mapstructure:"mailgun_key"    yaml:"mailgun_key"`
	SMTPHost      string `mapstructure:"smtp_host"      yaml:"smtp_host"`
	SMTPPort      int    `mapstructure:"smtp_port"      yaml:"smtp_port"`
	SMTPUser      string `mapstructure:"smtp_user"      yaml:"smtp_user"`
	SMTPPassword  string `mapstructure:"smtp_password"  yaml:"smtp_password"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host              string   `mapstructure:"host"                yaml:"host"`
	Port              int      `mapstructure:"port"                yaml:"port"`
	CORSOrigins       []string `mapstructure:"cors_origins"        yaml:"cors_origins"`
	RequestTimeoutSec int      `mapstructure:"request_timeout_sec" yaml:"request_timeout_sec"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"        yaml:"level"`  // "debug", "info", "warn", "error"
	Format     string `mapstructure:"format"       yaml:"format"` // "console" or "json"
	File       string `mapstructure:"file"         yaml:"file"`   // empty disables file output
	MaxSizeMB  int    `mapstructure:"max_size_mb"  yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"  yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.ibexai/config.yaml (home directory)
//  3. /etc/ibexai/config.yaml (system)
//
// Environment variables override config file values.
// Format: IBEXAI_<SECTION>_<KEY>, e.g., IBEXAI_LLM_GROQ_KEY
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".ibexai"))
	v.AddConfigPath("/etc/ibexai")
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// no config file: defaults + env vars
	}

	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return decode(v)
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("IBEXAI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	overrideFromEnv(&cfg)
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// LLM defaults
	v.SetDefault("llm.primary", "groq")
	v.SetDefault("llm.groq_base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("llm.ollama_url", "http://localhost:11434")
	v.SetDefault("llm.model", "gemma2-9b-it")
	v.SetDefault("llm.temperature", 0.5)
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("llm.timeout_sec", 60)

	// Market defaults
	v.SetDefault("market.yahoo_base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("market.snapshot_ttl", 3600) // 1 hour
	v.SetDefault("market.requests_per_second", 5.0)
	v.SetDefault("market.http_timeout_sec", 15)
	v.SetDefault("market.news_feeds", []string{})
	v.SetDefault("market.news_limit", 8)

	// Analysis defaults
	v.SetDefault("analysis.concurrent_fetches", 5)
	v.SetDefault("analysis.history_days", 730)
	v.SetDefault("analysis.forecast_horizon_days", 365)
	v.SetDefault("analysis.rsi_period", 14)

	// Session defaults
	v.SetDefault("session.backend", "memory")
	v.SetDefault("session.redis_addr", "localhost:6379")
	v.SetDefault("session.idle_minutes", 120)
	v.SetDefault("session.history_window", 5)
	v.SetDefault("session.cookie_name", "ibexai_session")

	// Email defaults
	v.SetDefault("email.transport", "log")
	v.SetDefault("email.from", "IBEX35 IA <noreply@localhost>")
	v.SetDefault("email.smtp_port", 587)

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:8080"})
	v.SetDefault("api.request_timeout_sec", 180)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
// The bare provider variables (GROQ_API_KEY, OPENAI_API_KEY) are honoured too.
func overrideFromEnv(cfg *Config) {
	if key := firstEnv("IBEXAI_LLM_GROQ_KEY", "GROQ_API_KEY"); key != "" {
		cfg.LLM.GroqKey = key
	}
	if key := firstEnv("IBEXAI_LLM_OPENAI_KEY", "OPENAI_API_KEY"); key != "" {
		cfg.LLM.OpenAIKey = key
	}
	if key := os.Getenv("IBEXAI_EMAIL_MAILGUN_KEY"); key != "" {
		cfg.Email.MailgunKey = key
	}
	if pw := os.Getenv("IBEXAI_EMAIL_SMTP_PASSWORD"); pw != "" {
		cfg.Email.SMTPPassword = pw
	}
	if pw := os.Getenv("IBEXAI_SESSION_REDIS_PASSWORD"); pw != "" {
		cfg.Session.RedisPassword = pw
	}
}

func firstEnv(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
