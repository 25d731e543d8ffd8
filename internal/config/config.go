package config

import (
	"runtime"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Engine EngineConfig `yaml:"engine" mapstructure:"engine"`
	Output OutputConfig `yaml:"output" mapstructure:"output"`
}

// StoreConfig configures the run ledger backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// EngineConfig tunes block-parallel evaluation.
type EngineConfig struct {
	Workers            int     `yaml:"workers" mapstructure:"workers"`
	BlockRows          int     `yaml:"block_rows" mapstructure:"block_rows"`
	SampleCount        int     `yaml:"sample_count" mapstructure:"sample_count"`
	NoDataPolicy       string  `yaml:"nodata_policy" mapstructure:"nodata_policy"`
	NoDataSubstitute   float64 `yaml:"nodata_substitute" mapstructure:"nodata_substitute"`
	MaxAttempts        int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs   int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs       int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	FailureThreshold   int     `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ProgressIntervalMs int     `yaml:"progress_interval_ms" mapstructure:"progress_interval_ms"`
}

// OutputConfig controls what a scoring run writes.
type OutputConfig struct {
	Dir         string  `yaml:"dir" mapstructure:"dir"`
	NoDataValue float64 `yaml:"nodata_value" mapstructure:"nodata_value"`
	WriteTally  bool    `yaml:"write_tally" mapstructure:"write_tally"`
	WriteMax    bool    `yaml:"write_max" mapstructure:"write_max"`
	MaxPrefix   string  `yaml:"max_prefix" mapstructure:"max_prefix"`
	SummaryXLSX bool    `yaml:"summary_xlsx" mapstructure:"summary_xlsx"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PESCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "pe-score.db")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("engine.workers", runtime.NumCPU())
	v.SetDefault("engine.block_rows", 64)
	v.SetDefault("engine.sample_count", 1000)
	v.SetDefault("engine.nodata_policy", "propagate")
	v.SetDefault("engine.max_attempts", 3)
	v.SetDefault("engine.initial_backoff_ms", 100)
	v.SetDefault("engine.max_backoff_ms", 5000)
	v.SetDefault("engine.failure_threshold", 5)
	v.SetDefault("engine.progress_interval_ms", 2000)
	v.SetDefault("output.dir", "out")
	v.SetDefault("output.nodata_value", -99999.0)
	v.SetDefault("output.write_tally", true)
	v.SetDefault("output.write_max", true)
	v.SetDefault("output.max_prefix", "PE_")
	v.SetDefault("output.summary_xlsx", false)

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

// Validate checks the settings a command needs. Mode is the command group:
// "score", "serve" or "ledger". Every problem is reported at once.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, "store.driver must be sqlite or postgres")
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	switch mode {
	case "score":
		e := c.Engine
		if e.Workers < 1 {
			errs = append(errs, "engine.workers must be >= 1")
		}
		if e.BlockRows < 0 {
			errs = append(errs, "engine.block_rows must be >= 0")
		}
		if e.SampleCount < 2 {
			errs = append(errs, "engine.sample_count must be >= 2")
		}
		switch strings.ToLower(e.NoDataPolicy) {
		case "", "propagate", "passthrough", "ignore", "substitute":
		default:
			errs = append(errs, "engine.nodata_policy must be propagate, ignore or substitute")
		}
		if e.MaxAttempts < 1 {
			errs = append(errs, "engine.max_attempts must be >= 1")
		}
		if c.Output.Dir == "" {
			errs = append(errs, "output.dir is required")
		}
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be between 1 and 65535")
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
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
