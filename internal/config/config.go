// Package config loads process configuration from defaults, an optional YAML
// file and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Vovarama1992/waterdrop-support-agent/internal/ai"
	"github.com/Vovarama1992/waterdrop-support-agent/internal/dialogue"
	"github.com/Vovarama1992/waterdrop-support-agent/internal/knowledge"
	"github.com/Vovarama1992/waterdrop-support-agent/internal/support"
)

type Config struct {
	Server   ServerConfig           `mapstructure:"server"`
	Logging  LoggingConfig          `mapstructure:"logging"`
	OpenAI   ai.Config              `mapstructure:"openai"`
	Qdrant   knowledge.QdrantConfig `mapstructure:"qdrant"`
	Redis    knowledge.CacheConfig  `mapstructure:"redis"`
	Database DatabaseConfig         `mapstructure:"database"`
	Policy   dialogue.PolicyConfig  `mapstructure:"policy"`
	Support  support.Config         `mapstructure:"support"`
	Handoff  support.HandoffConfig  `mapstructure:"handoff"`
	Sessions SessionsConfig         `mapstructure:"sessions"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	MetricsEnabled  bool          `mapstructure:"metrics_enabled"`
}

type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type DatabaseConfig struct {
	// empty disables the transcript archive
	URL             string `mapstructure:"url"`
	AutoMigrate     bool   `mapstructure:"auto_migrate"`
	MigrationsTable string `mapstructure:"migrations_table"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
}

type SessionsConfig struct {
	// zero means unlimited
	MaxActive int `mapstructure:"max_active"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.metrics_enabled", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.embedding_model", "text-embedding-3-large")
	v.SetDefault("openai.temperature", 0.3)
	v.SetDefault("openai.json_mode", true)
	v.SetDefault("openai.requests_per_second", 5)
	v.SetDefault("openai.burst", 5)
	v.SetDefault("openai.max_history_tokens", 3000)

	v.SetDefault("qdrant.base_url", "")
	v.SetDefault("qdrant.api_key", "")
	v.SetDefault("qdrant.collection", "waterdrop_faq")
	v.SetDefault("qdrant.timeout", "10s")
	v.SetDefault("qdrant.score_threshold", 0)
	v.SetDefault("qdrant.content_field", "page_content")
	v.SetDefault("qdrant.metadata_field", "metadata")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "10m")
	v.SetDefault("redis.key_prefix", "kb:search:")
	v.SetDefault("redis.search_timeout", "15s")

	v.SetDefault("database.url", "")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.migrations_table", "schema_migrations")
	v.SetDefault("database.max_open_conns", 10)

	def := dialogue.DefaultPolicyConfig()
	v.SetDefault("policy.escalation_threshold", def.EscalationThreshold)
	v.SetDefault("policy.contact.email", def.Contact.Email)
	v.SetDefault("policy.contact.phone", def.Contact.Phone)

	v.SetDefault("support.top_k", 4)
	v.SetDefault("support.greeting", support.DefaultGreeting)
	v.SetDefault("support.handoff_tail", 10)
	v.SetDefault("support.archive_timeout", "3s")

	v.SetDefault("handoff.url", "")
	v.SetDefault("handoff.token", "")
	v.SetDefault("handoff.timeout", "10s")

	v.SetDefault("sessions.max_active", 0)
}

// Load reads configuration. An empty path searches for config.yaml in the
// working directory; a missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if err := v.BindEnv("server.port", "PORT"); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	cfg.Support.MaxActive = cfg.Sessions.MaxActive
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.OpenAI.APIKey) == "" {
		errs = append(errs, ai.ErrMissingAPIKey)
	}
	if c.Policy.EscalationThreshold <= 0 {
		errs = append(errs, errors.New("policy.escalation_threshold must be > 0"))
	}
	if c.Support.TopK <= 0 {
		errs = append(errs, errors.New("support.top_k must be > 0"))
	}
	if c.Sessions.MaxActive < 0 {
		errs = append(errs, errors.New("sessions.max_active must be >= 0"))
	}
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	return errors.Join(errs...)
}

// RetrievalEnabled reports whether a knowledge base is configured.
func (c *Config) RetrievalEnabled() bool { return strings.TrimSpace(c.Qdrant.BaseURL) != "" }
