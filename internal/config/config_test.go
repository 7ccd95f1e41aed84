package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loadClean resets viper's global state so each test sees only defaults
// plus its own environment overrides.
func loadClean(t *testing.T) (*Config, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	return Load()
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := loadClean(t)
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)

	assert.Equal(t, 3, cfg.Analysis.MinDrawsForTrend)
	assert.Equal(t, 20, cfg.Analysis.MinDrawsForCombination)
	assert.Equal(t, 5, cfg.Analysis.TopTransitions)
	assert.Equal(t, 3, cfg.Analysis.DueValuesPerPosition)

	assert.InDelta(t, 0.30, cfg.Scoring.DueWeight, 1e-12)
	assert.InDelta(t, 0.10, cfg.Scoring.ParityWeight, 1e-12)
	assert.InDelta(t, 0.20, cfg.Scoring.HotColdWeight, 1e-12)
	assert.InDelta(t, 0.25, cfg.Scoring.TransitionWeight, 1e-12)
	assert.InDelta(t, 0.15, cfg.Scoring.CorrelationWeight, 1e-12)

	assert.Equal(t, 1000, cfg.Cache.MaxEntries)
	assert.Equal(t, int64(32<<20), cfg.Cache.MaxMemoryBytes)
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL())
	assert.Equal(t, 5*time.Minute, cfg.CacheStaleWindow())
	assert.Equal(t, 24*time.Hour, cfg.ReportTTL())

	assert.InDelta(t, 0.95, cfg.Validation.ConfidenceLevel, 1e-12)
	assert.Equal(t, 5, cfg.Validation.DefaultFolds)
	assert.InDelta(t, 85.0, cfg.Resources.MemoryPressurePercent, 1e-12)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "Production")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ANALYSIS_MIN_DRAWS_FOR_COMBINATION", "50")
	t.Setenv("VALIDATION_DEFAULT_FOLDS", "10")
	t.Setenv("CACHE_TTL", "1h")

	cfg, err := loadClean(t)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment, "environment is lower-cased")
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 50, cfg.Analysis.MinDrawsForCombination)
	assert.Equal(t, 10, cfg.Validation.DefaultFolds)
	assert.Equal(t, time.Hour, cfg.CacheTTL())
}

func TestLoad_RejectsInvalidConfidenceLevel(t *testing.T) {
	t.Setenv("VALIDATION_CONFIDENCE_LEVEL", "1.5")

	_, err := loadClean(t)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "confidence level")
}

func TestLoad_RejectsTooFewFolds(t *testing.T) {
	t.Setenv("VALIDATION_DEFAULT_FOLDS", "1")

	_, err := loadClean(t)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "folds")
}

func TestLoad_RejectsBadCacheBounds(t *testing.T) {
	t.Setenv("CACHE_MAX_ENTRIES", "0")

	_, err := loadClean(t)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max entries")
}

func TestLoad_RejectsBadDuration(t *testing.T) {
	t.Setenv("CACHE_STALE_WINDOW", "soon")

	_, err := loadClean(t)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stale_window")
}

func TestLoad_RejectsZeroWeights(t *testing.T) {
	t.Setenv("SCORING_DUE_WEIGHT", "0")
	t.Setenv("SCORING_PARITY_WEIGHT", "0")
	t.Setenv("SCORING_HOT_COLD_WEIGHT", "0")
	t.Setenv("SCORING_TRANSITION_WEIGHT", "0")
	t.Setenv("SCORING_CORRELATION_WEIGHT", "0")

	_, err := loadClean(t)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weights")
}

func TestWeightValues(t *testing.T) {
	cfg, err := loadClean(t)
	require.NoError(t, err)

	due, parity, hotCold, transition, correlation := cfg.WeightValues()
	assert.InDelta(t, 1.0, due+parity+hotCold+transition+correlation, 1e-9)
}
