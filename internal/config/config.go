package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string           `mapstructure:"environment"`
	LogLevel    string           `mapstructure:"log_level"`
	Database    DatabaseConfig   `mapstructure:"database"`
	Redis       RedisConfig      `mapstructure:"redis"`
	Analysis    AnalysisConfig   `mapstructure:"analysis"`
	Scoring     ScoringConfig    `mapstructure:"scoring"`
	Cache       CacheConfig      `mapstructure:"cache"`
	Validation  ValidationConfig `mapstructure:"validation"`
	Resources   ResourcesConfig  `mapstructure:"resources"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	DBName       string `mapstructure:"dbname"`
	SSLMode      string `mapstructure:"sslmode"`
	DatabaseURL  string `mapstructure:"database_url"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AnalysisConfig carries the minimum-draw floors for each operation.
type AnalysisConfig struct {
	MinDrawsForTrend       int `mapstructure:"min_draws_for_trend"`
	MinDrawsForCombination int `mapstructure:"min_draws_for_combination"`
	TopTransitions         int `mapstructure:"top_transitions"`
	DueValuesPerPosition   int `mapstructure:"due_values_per_position"`
}

// ScoringConfig sets the composite score weights. The engine normalizes
// them, so they need not sum to exactly 1 in the file.
type ScoringConfig struct {
	DueWeight         float64 `mapstructure:"due_weight"`
	ParityWeight      float64 `mapstructure:"parity_weight"`
	HotColdWeight     float64 `mapstructure:"hot_cold_weight"`
	TransitionWeight  float64 `mapstructure:"transition_weight"`
	CorrelationWeight float64 `mapstructure:"correlation_weight"`
}

type CacheConfig struct {
	MaxEntries      int    `mapstructure:"max_entries"`
	MaxMemoryBytes  int64  `mapstructure:"max_memory_bytes"`
	TTL             string `mapstructure:"ttl"`
	StaleWindow     string `mapstructure:"stale_window"`
	LargeEntryBytes int64  `mapstructure:"large_entry_bytes"`
	ReportTTL       string `mapstructure:"report_ttl"`
}

type ValidationConfig struct {
	ConfidenceLevel float64 `mapstructure:"confidence_level"`
	DefaultFolds    int     `mapstructure:"default_folds"`
}

type ResourcesConfig struct {
	MemoryPressurePercent float64 `mapstructure:"memory_pressure_percent"`
}

// Load reads config.yaml (if present), applies defaults and environment
// overrides, and validates the result.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.Environment = strings.ToLower(config.Environment)

	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) validate() error {
	if c.Validation.ConfidenceLevel <= 0 || c.Validation.ConfidenceLevel >= 1 {
		return fmt.Errorf("validation confidence level must be in (0,1), got %f", c.Validation.ConfidenceLevel)
	}
	if c.Validation.DefaultFolds < 2 {
		return fmt.Errorf("validation default folds must be >= 2, got %d", c.Validation.DefaultFolds)
	}
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache max entries must be positive, got %d", c.Cache.MaxEntries)
	}
	if c.Cache.MaxMemoryBytes <= 0 {
		return fmt.Errorf("cache max memory must be positive, got %d", c.Cache.MaxMemoryBytes)
	}
	for name, raw := range map[string]string{
		"cache.ttl":          c.Cache.TTL,
		"cache.stale_window": c.Cache.StaleWindow,
		"cache.report_ttl":   c.Cache.ReportTTL,
	} {
		if _, err := time.ParseDuration(raw); err != nil {
			return fmt.Errorf("invalid duration for %s: %w", name, err)
		}
	}
	weightSum := c.Scoring.DueWeight + c.Scoring.ParityWeight + c.Scoring.HotColdWeight +
		c.Scoring.TransitionWeight + c.Scoring.CorrelationWeight
	if weightSum <= 0 {
		return fmt.Errorf("scoring weights must sum to a positive value, got %f", weightSum)
	}
	return nil
}

// CacheTTL returns the parsed entry TTL. Call after Load has validated.
func (c *Config) CacheTTL() time.Duration {
	d, _ := time.ParseDuration(c.Cache.TTL)
	return d
}

// CacheStaleWindow returns the parsed optimize stale window.
func (c *Config) CacheStaleWindow() time.Duration {
	d, _ := time.ParseDuration(c.Cache.StaleWindow)
	return d
}

// ReportTTL returns the parsed persisted-report TTL.
func (c *Config) ReportTTL() time.Duration {
	d, _ := time.ParseDuration(c.Cache.ReportTTL)
	return d
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "drawlytics")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.database_url", "")
	viper.SetDefault("database.max_open_conns", 10)

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("analysis.min_draws_for_trend", 3)
	viper.SetDefault("analysis.min_draws_for_combination", 20)
	viper.SetDefault("analysis.top_transitions", 5)
	viper.SetDefault("analysis.due_values_per_position", 3)

	viper.SetDefault("scoring.due_weight", 0.30)
	viper.SetDefault("scoring.parity_weight", 0.10)
	viper.SetDefault("scoring.hot_cold_weight", 0.20)
	viper.SetDefault("scoring.transition_weight", 0.25)
	viper.SetDefault("scoring.correlation_weight", 0.15)

	viper.SetDefault("cache.max_entries", 1000)
	viper.SetDefault("cache.max_memory_bytes", 32<<20)
	viper.SetDefault("cache.ttl", "10m")
	viper.SetDefault("cache.stale_window", "5m")
	viper.SetDefault("cache.large_entry_bytes", 64<<10)
	viper.SetDefault("cache.report_ttl", "24h")

	viper.SetDefault("validation.confidence_level", 0.95)
	viper.SetDefault("validation.default_folds", 5)

	viper.SetDefault("resources.memory_pressure_percent", 85.0)
}

// WeightValues returns the raw configured scoring weights.
func (c *Config) WeightValues() (due, parity, hotCold, transition, correlation float64) {
	return c.Scoring.DueWeight, c.Scoring.ParityWeight, c.Scoring.HotColdWeight,
		c.Scoring.TransitionWeight, c.Scoring.CorrelationWeight
}
