// Package config loads and validates the application configuration from
// file and environment.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/finsheet/internal/evaluate"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig         `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig     `yaml:"anthropic" mapstructure:"anthropic"`
	Thresholds evaluate.Thresholds `yaml:"thresholds" mapstructure:"thresholds"`
	Schema     SchemaConfig        `yaml:"schema" mapstructure:"schema"`
	Documents  DocumentsConfig     `yaml:"documents" mapstructure:"documents"`
	Index      IndexConfig         `yaml:"index" mapstructure:"index"`
	Jina       JinaConfig          `yaml:"jina" mapstructure:"jina"`
	Log        LogConfig           `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the correction store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key               string  `yaml:"key" mapstructure:"key"`
	Model             string  `yaml:"model" mapstructure:"model"`
	MaxTokens         int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// SchemaConfig points at an optional field schema file; empty means the
// built-in schema.
type SchemaConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// DocumentsConfig configures document chunking.
type DocumentsConfig struct {
	ChunkSize    int `yaml:"chunk_size" mapstructure:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap" mapstructure:"chunk_overlap"`
}

// IndexConfig configures the vector index.
type IndexConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
	TopK int    `yaml:"top_k" mapstructure:"top_k"`
}

// JinaConfig holds the Jina embedding API settings used by the index.
type JinaConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment and validates it.
// Invalid configuration fails here, before any pipeline runs.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FINSHEET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "finsheet.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("anthropic.requests_per_second", 2)
	v.SetDefault("thresholds.require_validation_below", 0.6)
	v.SetDefault("thresholds.auto_validate_above", 0.9)
	v.SetDefault("thresholds.missing_field_threshold", 3)
	v.SetDefault("documents.chunk_size", 1000)
	v.SetDefault("documents.chunk_overlap", 200)
	v.SetDefault("index.path", ".finsheet-index")
	v.SetDefault("index.top_k", 5)
	v.SetDefault("jina.model", "jina-embeddings-v2-base-en")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configuration the pipelines cannot run with.
func (c *Config) Validate() error {
	if err := c.Thresholds.Validate(); err != nil {
		return err
	}
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		return eris.New("config: postgres driver requires store.database_url")
	}
	if c.Documents.ChunkOverlap >= c.Documents.ChunkSize {
		return eris.Errorf("config: chunk overlap %d must be smaller than chunk size %d",
			c.Documents.ChunkOverlap, c.Documents.ChunkSize)
	}
	if c.Index.TopK <= 0 {
		return eris.Errorf("config: index.top_k must be positive, got %d", c.Index.TopK)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
