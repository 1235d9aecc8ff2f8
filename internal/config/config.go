// Package config loads application configuration from file and environment.
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
	Input  InputConfig  `yaml:"input" mapstructure:"input"`
	Derive DeriveConfig `yaml:"derive" mapstructure:"derive"`
	Fetch  FetchConfig  `yaml:"fetch" mapstructure:"fetch"`
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// InputConfig names the identifier columns of the long panel table.
type InputConfig struct {
	SubjectColumn string `yaml:"subject_column" mapstructure:"subject_column"`
	WaveColumn    string `yaml:"wave_column" mapstructure:"wave_column"`
}

// DeriveConfig names the study variables the derivation step operates on.
// Defaults match the ECLS-K food security extract; other studies override
// these in config.yaml.
type DeriveConfig struct {
	ScaleColumn     string         `yaml:"scale_column" mapstructure:"scale_column"`
	StatusColumn    string         `yaml:"status_column" mapstructure:"status_column"`
	StatusThreshold float64        `yaml:"status_threshold" mapstructure:"status_threshold"`
	ClosenessColumn string         `yaml:"closeness_column" mapstructure:"closeness_column"`
	ConflictColumn  string         `yaml:"conflict_column" mapstructure:"conflict_column"`
	RankColumn      string         `yaml:"rank_column" mapstructure:"rank_column"`
	BaselineWave    int            `yaml:"baseline_wave" mapstructure:"baseline_wave"`
	WaveTimes       map[string]int `yaml:"wave_times" mapstructure:"wave_times"`
}

// FetchConfig configures remote input downloads.
type FetchConfig struct {
	UserAgent         string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the read-only API server.
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
	v.SetEnvPrefix("PANEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("input.subject_column", "childid")
	v.SetDefault("input.wave_column", "wave")
	v.SetDefault("derive.scale_column", "fs_scale")
	v.SetDefault("derive.status_column", "fs_status")
	v.SetDefault("derive.status_threshold", 2)
	v.SetDefault("derive.closeness_column", "tch_close")
	v.SetDefault("derive.conflict_column", "tch_conflict")
	v.SetDefault("derive.rank_column", "ses")
	v.SetDefault("derive.baseline_wave", 2)
	v.SetDefault("derive.wave_times", map[string]int{"2": 0, "4": 1, "9": 2})
	v.SetDefault("fetch.user_agent", "panel-cli/1.0")
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("fetch.requests_per_second", 5)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "panel.db")
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
