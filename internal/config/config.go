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
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Detectors  DetectorsConfig  `yaml:"detectors" mapstructure:"detectors"`
	Classifier ClassifierConfig `yaml:"classifier" mapstructure:"classifier"`
	Source     SourceConfig     `yaml:"source" mapstructure:"source"`
	Run        RunConfig        `yaml:"run" mapstructure:"run"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Path        string `yaml:"path" mapstructure:"path"`
}

// DetectorsConfig locates the detector configuration documents.
type DetectorsConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// ClassifierConfig tunes the headline model-server transport; the model
// endpoint itself lives in each detector document.
type ClassifierConfig struct {
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
	MaxLength   int     `yaml:"max_length" mapstructure:"max_length"`
}

// SourceConfig configures where raw records come from.
type SourceConfig struct {
	Kind       string  `yaml:"kind" mapstructure:"kind"`
	Path       string  `yaml:"path" mapstructure:"path"`
	Sheet      string  `yaml:"sheet" mapstructure:"sheet"`
	BaseURL    string  `yaml:"base_url" mapstructure:"base_url"`
	RatePerSec float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	PageSize   int     `yaml:"page_size" mapstructure:"page_size"`
}

// RunConfig bounds detector fan-out in a detection run.
type RunConfig struct {
	MaxConcurrentDetectors int `yaml:"max_concurrent_detectors" mapstructure:"max_concurrent_detectors"`
}

// ServerConfig configures the detection API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("SHOCKWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "shockwatch.db")
	v.SetDefault("detectors.dir", "detectors")
	v.SetDefault("classifier.timeout_secs", 30)
	v.SetDefault("classifier.rate_per_sec", 4)
	v.SetDefault("classifier.max_retries", 3)
	v.SetDefault("classifier.max_length", 64)
	v.SetDefault("source.kind", "jsonl")
	v.SetDefault("source.rate_per_sec", 4)
	v.SetDefault("source.page_size", 200)
	v.SetDefault("run.max_concurrent_detectors", 4)
	v.SetDefault("server.port", 8080)
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
