package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Listings  ListingsConfig  `yaml:"listings" mapstructure:"listings"`
	Match     MatchConfig     `yaml:"match" mapstructure:"match"`
	Upload    UploadConfig    `yaml:"upload" mapstructure:"upload"`
	Normalize NormalizeConfig `yaml:"normalize" mapstructure:"normalize"`
	Metrics   MetricsConfig   `yaml:"metrics" mapstructure:"metrics"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver          string  `yaml:"driver" mapstructure:"driver"`
	DatabaseURL     string  `yaml:"database_url" mapstructure:"database_url"`
	Table           string  `yaml:"table" mapstructure:"table"`
	ConnectRetries  int     `yaml:"connect_retries" mapstructure:"connect_retries"`
	MaxWritesPerSec float64 `yaml:"max_writes_per_sec" mapstructure:"max_writes_per_sec"`
}

// ListingsConfig locates the scraped listing files.
type ListingsConfig struct {
	Files         []string `yaml:"files" mapstructure:"files"`
	CityCacheSize int      `yaml:"city_cache_size" mapstructure:"city_cache_size"`
}

// MatchConfig configures the matching run.
type MatchConfig struct {
	Field         string  `yaml:"field" mapstructure:"field"`
	Threshold     float64 `yaml:"threshold" mapstructure:"threshold"`
	PostalBonus   float64 `yaml:"postal_bonus" mapstructure:"postal_bonus"`
	Workers       int     `yaml:"workers" mapstructure:"workers"`
	ErrorLogLimit int     `yaml:"error_log_limit" mapstructure:"error_log_limit"`
}

// UploadConfig configures bulk uploads of exported results.
type UploadConfig struct {
	ChunkSize int `yaml:"chunk_size" mapstructure:"chunk_size"`
	Workers   int `yaml:"workers" mapstructure:"workers"`
}

// NormalizeConfig extends the name normalizer.
type NormalizeConfig struct {
	LegalFormsFile string `yaml:"legal_forms_file" mapstructure:"legal_forms_file"`
}

// MetricsConfig configures the Prometheus endpoint. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ENRICH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.table", "businesses")
	v.SetDefault("store.connect_retries", 5)
	v.SetDefault("store.max_writes_per_sec", 0)
	v.SetDefault("listings.files", []string{})
	v.SetDefault("listings.city_cache_size", 2048)
	v.SetDefault("match.field", "phone")
	v.SetDefault("match.threshold", 0.35)
	v.SetDefault("match.postal_bonus", 0.15)
	v.SetDefault("match.workers", 4)
	v.SetDefault("match.error_log_limit", 3)
	v.SetDefault("upload.chunk_size", 500)
	v.SetDefault("upload.workers", 4)
	v.SetDefault("normalize.legal_forms_file", "")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. All problems are
// reported together.
func (c *Config) Validate(mode string) error {
	var problems []string
	requireDB := func() {
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
		switch strings.ToLower(c.Store.Driver) {
		case "", "postgres", "postgresql", "pgx", "sqlite", "sqlite3":
		default:
			problems = append(problems, "store.driver must be postgres or sqlite")
		}
		if c.Store.ConnectRetries < 0 {
			problems = append(problems, "store.connect_retries must be >= 0")
		}
	}

	switch mode {
	case "match":
		requireDB()
		if len(c.Listings.Files) == 0 {
			problems = append(problems, "listings.files is required")
		}
		if f := strings.ToLower(c.Match.Field); f != "phone" && f != "rating" {
			problems = append(problems, "match.field must be phone or rating")
		}
		if c.Match.Threshold <= 0 || c.Match.Threshold > 1 {
			problems = append(problems, "match.threshold must be in (0, 1]")
		}
		if c.Match.PostalBonus < 0 || c.Match.PostalBonus > 1 {
			problems = append(problems, "match.postal_bonus must be in [0, 1]")
		}
		if c.Match.Workers < 1 || c.Match.Workers > 64 {
			problems = append(problems, "match.workers must be between 1 and 64")
		}
		if c.Store.MaxWritesPerSec < 0 {
			problems = append(problems, "store.max_writes_per_sec must be >= 0")
		}
	case "upload":
		requireDB()
		if c.Upload.ChunkSize < 1 {
			problems = append(problems, "upload.chunk_size must be > 0")
		}
		if c.Upload.Workers < 1 || c.Upload.Workers > 64 {
			problems = append(problems, "upload.workers must be between 1 and 64")
		}
	case "migrate":
		requireDB()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid %s configuration: %s", mode, strings.Join(problems, "; "))
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
