package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Config holds the configuration for the chatbot backend.
// Environment variables are automatically parsed from the CHATBOT_ prefix.
type Config struct {
	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`

	// HTTP Configuration
	HTTPPort           int      `envconfig:"HTTP_PORT" default:"8080"`
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`

	// Store Configuration. DBDriver "auto" resolves to postgres when a DSN is
	// set, sqlite otherwise.
	DBDriver    string `envconfig:"DB_DRIVER" default:"auto"`
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"data/chatbot.db"`
	AutoMigrate bool   `envconfig:"AUTO_MIGRATE" default:"true"`

	// Completion provider
	OpenAIAPIKey            string  `envconfig:"OPENAI_API_KEY" default:""`
	OpenAIBaseURL           string  `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com"`
	OpenAIModel             string  `envconfig:"OPENAI_MODEL" default:"gpt-3.5-turbo"`
	ProviderTimeoutSeconds  int     `envconfig:"PROVIDER_TIMEOUT_SECONDS" default:"60"`
	ReplyMaxTokens          int     `envconfig:"REPLY_MAX_TOKENS" default:"150"`
	SummaryMaxTokens        int     `envconfig:"SUMMARY_MAX_TOKENS" default:"200"`
	CompletionTemperature   float32 `envconfig:"COMPLETION_TEMPERATURE" default:"0.7"`
	CannedResponsesDisabled bool    `envconfig:"CANNED_RESPONSES_DISABLED" default:"false"`

	// Health checking
	HealthIntervalSeconds     int `envconfig:"HEALTH_INTERVAL_SECONDS" default:"30"`
	HealthProbeTimeoutSeconds int `envconfig:"HEALTH_PROBE_TIMEOUT_SECONDS" default:"2"`
}

// ResolveDefaults validates the configured DB driver and derives it when set
// to "auto" or empty.
func (c *Config) ResolveDefaults() error {
	if c.DBDriver == "" || c.DBDriver == "auto" {
		if c.PostgresDSN != "" {
			c.DBDriver = "postgres"
		} else {
			c.DBDriver = "sqlite"
		}
	}

	allowedDB := map[string]bool{"postgres": true, "sqlite": true}
	if !allowedDB[c.DBDriver] {
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}
	if c.DBDriver == "postgres" && c.PostgresDSN == "" {
		return fmt.Errorf("DB_DRIVER=postgres requires POSTGRES_DSN")
	}
	if len(c.CORSAllowedOrigins) == 0 {
		c.CORSAllowedOrigins = []string{"*"}
	}
	return nil
}

// New creates a new Config by parsing environment variables.
// Environment variables should be prefixed with CHATBOT_
// Example: CHATBOT_HTTP_PORT, CHATBOT_OPENAI_API_KEY
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("CHATBOT", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("environment", string(cfg.Environment)).
		Str("db_driver", cfg.DBDriver).
		Int("port", cfg.HTTPPort).
		Str("openai_model", cfg.OpenAIModel).
		Str("cors_allowed_origins", strings.Join(cfg.CORSAllowedOrigins, ",")).
		Bool("postgres_dsn_present", cfg.PostgresDSN != "").
		Bool("openai_key_present", cfg.OpenAIAPIKey != "").
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting creates a config specifically for testing.
func NewForTesting() *Config {
	cfg := &Config{
		Environment: EnvTesting,

		HTTPPort:           8080,
		CORSAllowedOrigins: []string{"*"},

		DBDriver:   "sqlite",
		SQLitePath: ":memory:",

		OpenAIBaseURL:          "http://localhost:0",
		OpenAIModel:            "gpt-3.5-turbo",
		ProviderTimeoutSeconds: 5,
		ReplyMaxTokens:         150,
		SummaryMaxTokens:       200,
		CompletionTemperature:  0.7,

		HealthIntervalSeconds:     1,
		HealthProbeTimeoutSeconds: 1,
	}
	return cfg
}

// IsTesting returns true if the environment is set to testing
func (c *Config) IsTesting() bool {
	return c.Environment == EnvTesting
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
