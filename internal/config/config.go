// Package config loads and validates audit service configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	DB        DBConfig        `mapstructure:"db"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	PageSpeed PageSpeedConfig `mapstructure:"pagespeed"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Email     EmailConfig     `mapstructure:"email"`
	Report    ReportConfig    `mapstructure:"report"`
	Storage   StorageConfig   `mapstructure:"storage"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                   int `mapstructure:"port"`
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
}

// AuthConfig holds the bearer token guarding operator endpoints.
type AuthConfig struct {
	SetupToken string `mapstructure:"setup_token"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// DBConfig controls access to the relational database. An empty DSN selects the in-memory store.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// HeadlessConfig configures the browser used for collection and printing.
type HeadlessConfig struct {
	ExecPath             string `mapstructure:"exec_path"`
	UserAgent            string `mapstructure:"user_agent"`
	NavTimeoutSeconds    int    `mapstructure:"nav_timeout_seconds"`
	RenderTimeoutSeconds int    `mapstructure:"render_timeout_seconds"`
}

// PageSpeedConfig points at the performance measurement service.
type PageSpeedConfig struct {
	BaseURL           string  `mapstructure:"base_url"`
	APIKey            string  `mapstructure:"api_key"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// LLMConfig configures the language model client.
type LLMConfig struct {
	APIKey            string `mapstructure:"api_key"`
	BaseURL           string `mapstructure:"base_url"`
	Model             string `mapstructure:"model"`
	PresenceMaxTokens int64  `mapstructure:"presence_max_tokens"`
	ReportMaxTokens   int64  `mapstructure:"report_max_tokens"`
}

// EmailConfig configures the transactional email service.
type EmailConfig struct {
	APIKey        string `mapstructure:"api_key"`
	From          string `mapstructure:"from"`
	TeamRecipient string `mapstructure:"team_recipient"`
}

// ReportConfig controls branding and language of generated documents.
type ReportConfig struct {
	Brand     string `mapstructure:"brand"`
	Language  string `mapstructure:"language"`
	LangCode  string `mapstructure:"lang_code"`
	Direction string `mapstructure:"direction"`
	Contact   string `mapstructure:"contact"`
}

// StorageConfig selects where rendered reports are archived.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	LocalDir  string `mapstructure:"local_dir"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for lifecycle event notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// PipelineConfig bounds the best-effort status writes.
type PipelineConfig struct {
	IntakeTimeoutSeconds int `mapstructure:"intake_timeout_seconds"`
	StoreTimeoutSeconds  int `mapstructure:"store_timeout_seconds"`
}

// Storage backends.
const (
	StorageNone   = "none"
	StorageMemory = "memory"
	StorageLocal  = "local"
	StorageGCS    = "gcs"
)

// Load reads configuration with Read and validates it.
func Load(path string) (Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Read builds a Config from disk/environment without validating it. A .env
// file in the working directory is loaded first when present.
func Read(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("AUDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout_seconds", 300)
	v.SetDefault("auth.setup_token", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("headless.exec_path", "")
	v.SetDefault("headless.user_agent", "")
	v.SetDefault("headless.nav_timeout_seconds", 30)
	v.SetDefault("headless.render_timeout_seconds", 30)
	v.SetDefault("pagespeed.base_url", "https://www.googleapis.com/pagespeedonline/v5/runPagespeed")
	v.SetDefault("pagespeed.api_key", "")
	v.SetDefault("pagespeed.timeout_seconds", 90)
	v.SetDefault("pagespeed.requests_per_second", 4.0)
	v.SetDefault("pagespeed.burst", 4)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.model", "claude-sonnet-4-20250514")
	v.SetDefault("llm.presence_max_tokens", 1024)
	v.SetDefault("llm.report_max_tokens", 4096)
	v.SetDefault("email.api_key", "")
	v.SetDefault("email.from", "")
	v.SetDefault("email.team_recipient", "")
	v.SetDefault("report.brand", "Site Audit")
	v.SetDefault("report.language", "English")
	v.SetDefault("report.lang_code", "en")
	v.SetDefault("report.direction", "ltr")
	v.SetDefault("report.contact", "")
	v.SetDefault("storage.backend", StorageNone)
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.local_dir", "")
	v.SetDefault("storage.prefix", "reports")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("pipeline.intake_timeout_seconds", 5)
	v.SetDefault("pipeline.store_timeout_seconds", 10)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Headless.NavTimeoutSeconds <= 0 {
		return fmt.Errorf("headless.nav_timeout_seconds must be > 0")
	}
	if c.Headless.RenderTimeoutSeconds <= 0 {
		return fmt.Errorf("headless.render_timeout_seconds must be > 0")
	}
	if c.PageSpeed.TimeoutSeconds <= 0 {
		return fmt.Errorf("pagespeed.timeout_seconds must be > 0")
	}
	if c.PageSpeed.RequestsPerSecond < 0 {
		return fmt.Errorf("pagespeed.requests_per_second must be >= 0")
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required")
	}
	if c.LLM.PresenceMaxTokens <= 0 || c.LLM.ReportMaxTokens <= 0 {
		return fmt.Errorf("llm.presence_max_tokens and llm.report_max_tokens must be > 0")
	}
	if c.Email.APIKey == "" || c.Email.From == "" {
		return fmt.Errorf("email.api_key and email.from are required")
	}
	if c.Email.TeamRecipient == "" {
		return fmt.Errorf("email.team_recipient is required")
	}
	switch c.Storage.Backend {
	case StorageNone, StorageMemory:
	case StorageLocal:
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir must be set when storage.backend is local")
		}
	case StorageGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set when storage.backend is gcs")
		}
	default:
		return fmt.Errorf("storage.backend %q is not supported", c.Storage.Backend)
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	return nil
}

// NavTimeout is the per-navigation budget for the site collector.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Headless.NavTimeoutSeconds) * time.Second
}

// RenderTimeout is the budget for printing the report document.
func (c Config) RenderTimeout() time.Duration {
	return time.Duration(c.Headless.RenderTimeoutSeconds) * time.Second
}

// StoreTimeout bounds each best-effort status write.
func (c Config) StoreTimeout() time.Duration {
	return time.Duration(c.Pipeline.StoreTimeoutSeconds) * time.Second
}

// IntakeTimeout bounds record creation before the background run starts.
func (c Config) IntakeTimeout() time.Duration {
	return time.Duration(c.Pipeline.IntakeTimeoutSeconds) * time.Second
}

// ShutdownTimeout bounds how long serve waits for in-flight audits.
func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}
