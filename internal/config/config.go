package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/tradingpro/pulse/internal/core"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Scoring  ScoringConfig  `mapstructure:"scoring"`
	Signals  SignalsConfig  `mapstructure:"signals"`
	Delivery DeliveryConfig `mapstructure:"delivery"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"` // "memory" or "sqlite"
	DSN    string `mapstructure:"dsn"`    // sqlite file path
}

type ArchiveConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Type    string   `mapstructure:"type"` // "localfs" or "s3"
	Path    string   `mapstructure:"path"` // For localfs
	S3      S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

type LLMConfig struct {
	Provider string       `mapstructure:"provider"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Claude   ClaudeConfig `mapstructure:"claude"`
	OpenAI   OpenAIConfig `mapstructure:"openai"`
}

type ClaudeConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// ScoringConfig controls the news scoring adapter.
type ScoringConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// SignalsConfig controls signal generation and lifecycle.
type SignalsConfig struct {
	ArticleWindowDays int           `mapstructure:"article_window_days"`
	ArticleLimit      int           `mapstructure:"article_limit"`
	HistoryDays       int           `mapstructure:"history_days"`
	ExpiryWindow      time.Duration `mapstructure:"expiry_window"`
	ExpiryInterval    time.Duration `mapstructure:"expiry_interval"`
}

// DeliveryConfig controls the webhook delivery engine.
type DeliveryConfig struct {
	MaxAttempts   int           `mapstructure:"max_attempts"`
	BackoffSecs   []int         `mapstructure:"backoff_secs"`
	Timeout       time.Duration `mapstructure:"timeout"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from file
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Driver: "memory",
		},
		Archive: ArchiveConfig{
			Enabled: false,
			Type:    "localfs",
		},
		LLM: LLMConfig{
			Timeout: 30 * time.Second,
		},
		Scoring: ScoringConfig{
			CacheTTL: time.Hour,
		},
		Signals: SignalsConfig{
			ArticleWindowDays: 7,
			ArticleLimit:      10,
			HistoryDays:       30,
			ExpiryWindow:      24 * time.Hour,
			ExpiryInterval:    5 * time.Minute,
		},
		Delivery: DeliveryConfig{
			MaxAttempts:   5,
			BackoffSecs:   []int{1, 5, 15, 60, 300},
			Timeout:       30 * time.Second,
			SweepInterval: time.Minute,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}

	switch c.Storage.Driver {
	case "memory":
	case "sqlite":
		if c.Storage.DSN == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("storage dsn required when driver is sqlite"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown storage driver: %s", c.Storage.Driver))
	}

	if c.Delivery.MaxAttempts < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("delivery max_attempts must be positive, got %d", c.Delivery.MaxAttempts))
	}
	if len(c.Delivery.BackoffSecs) < c.Delivery.MaxAttempts-1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("delivery backoff schedule has %d entries for %d attempts",
				len(c.Delivery.BackoffSecs), c.Delivery.MaxAttempts))
	}

	if c.Scoring.CacheTTL < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("scoring cache_ttl cannot be negative"))
	}

	// LLM validation - if provider set, check config exists
	if c.LLM.Provider != "" {
		switch c.LLM.Provider {
		case "claude":
			if c.LLM.Claude.APIKey == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("claude api_key required when provider is claude"))
			}
		case "openai":
			if c.LLM.OpenAI.APIKey == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("openai api_key required when provider is openai"))
			}
		default:
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("unknown LLM provider: %s", c.LLM.Provider))
		}
	}

	return nil
}
