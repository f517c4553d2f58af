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
	Engine EngineConfig `yaml:"engine" mapstructure:"engine"`
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Costs  CostsConfig  `yaml:"costs" mapstructure:"costs"`
	Retry  RetryConfig  `yaml:"retry" mapstructure:"retry"`
	Batch  BatchConfig  `yaml:"batch" mapstructure:"batch"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// EngineConfig holds the search, margin, and viability settings passed to
// the estimation engine on every call.
type EngineConfig struct {
	MaxRadiusM      float64 `yaml:"max_radius_m" mapstructure:"max_radius_m"`
	MinComparables  int     `yaml:"min_comparables" mapstructure:"min_comparables"`
	TargetMarginPct float64 `yaml:"target_margin_pct" mapstructure:"target_margin_pct"`
	RecencyDays     int     `yaml:"recency_days" mapstructure:"recency_days"`
	MaxResults      int     `yaml:"max_results" mapstructure:"max_results"`
	ReformCategory  string  `yaml:"reform_category" mapstructure:"reform_category"`
	ReformQuality   string  `yaml:"reform_quality" mapstructure:"reform_quality"`
	MinProfit       float64 `yaml:"min_profit" mapstructure:"min_profit"`
	MinROIPct       float64 `yaml:"min_roi_pct" mapstructure:"min_roi_pct"`
	MinConfidence   int     `yaml:"min_confidence" mapstructure:"min_confidence"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"` // postgres only
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// CostsConfig points at an optional reform cost table override.
type CostsConfig struct {
	TablePath string `yaml:"table_path" mapstructure:"table_path"`
}

// RetryConfig configures retries of store reads.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
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
	v.SetEnvPrefix("FLIP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("engine.max_radius_m", 2000)
	v.SetDefault("engine.min_comparables", 5)
	v.SetDefault("engine.target_margin_pct", 7)
	v.SetDefault("engine.recency_days", 365)
	v.SetDefault("engine.max_results", 10)
	v.SetDefault("engine.reform_category", "integral")
	v.SetDefault("engine.reform_quality", "medium")
	v.SetDefault("engine.min_profit", 20000)
	v.SetDefault("engine.min_roi_pct", 15)
	v.SetDefault("engine.min_confidence", 50)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "flip.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("costs.table_path", "")
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 200)
	v.SetDefault("retry.max_backoff_ms", 5000)
	v.SetDefault("batch.max_concurrent", 4)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
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

// Validate checks the settings a command mode depends on. Engine ranges are
// always checked. Modes: estimate, reform, analyze, batch, import, migrate, serve.
func (c *Config) Validate(mode string) error {
	var errs []string

	e := c.Engine
	if e.MaxRadiusM <= 0 {
		errs = append(errs, "engine.max_radius_m must be > 0")
	}
	if e.MinComparables < 1 {
		errs = append(errs, "engine.min_comparables must be >= 1")
	}
	if e.TargetMarginPct <= 0 || e.TargetMarginPct >= 100 {
		errs = append(errs, "engine.target_margin_pct must be between 0 and 100")
	}
	if e.RecencyDays < 1 {
		errs = append(errs, "engine.recency_days must be >= 1")
	}
	if e.MaxResults < 1 {
		errs = append(errs, "engine.max_results must be >= 1")
	}
	if e.MinConfidence < 0 || e.MinConfidence > 100 {
		errs = append(errs, "engine.min_confidence must be between 0 and 100")
	}

	needsStore := false
	switch mode {
	case "estimate", "reform":
	case "analyze", "import", "migrate":
		needsStore = true
	case "batch":
		needsStore = true
		if c.Batch.MaxConcurrent < 1 || c.Batch.MaxConcurrent > 50 {
			errs = append(errs, "batch.max_concurrent must be between 1 and 50")
		}
	case "serve":
		needsStore = true
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if needsStore {
		switch c.Store.Driver {
		case "sqlite", "postgres":
		default:
			errs = append(errs, "store.driver must be sqlite or postgres")
		}
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
		if c.Store.MaxConns < 0 || c.Store.MinConns < 0 {
			errs = append(errs, "store.max_conns and store.min_conns must be >= 0")
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
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
