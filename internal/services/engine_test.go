package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drawlytics/drawlytics-go/internal/cache"
	"github.com/drawlytics/drawlytics-go/internal/config"
	"github.com/drawlytics/drawlytics-go/internal/models"
)

func testConfig() *config.Config {
	return &config.Config{
		Analysis: config.AnalysisConfig{
			MinDrawsForTrend:       3,
			MinDrawsForCombination: 20,
			TopTransitions:         5,
			DueValuesPerPosition:   3,
		},
		Scoring: config.ScoringConfig{
			DueWeight:         0.30,
			ParityWeight:      0.10,
			HotColdWeight:     0.20,
			TransitionWeight:  0.25,
			CorrelationWeight: 0.15,
		},
		Validation: config.ValidationConfig{
			ConfidenceLevel: 0.95,
			DefaultFolds:    5,
		},
	}
}

func newTestEngine(t *testing.T, snap *models.Snapshot) *AnalysisEngine {
	t.Helper()
	resultCache := cache.NewResultCache(cache.DefaultResultCacheConfig())
	return NewAnalysisEngine(testConfig(), snap, resultCache, testLogger())
}

func TestEngine_GetPositionStatsMemoized(t *testing.T) {
	engine := newTestEngine(t, scoringSnapshot())

	first := engine.GetPositionStats(0)
	require.NotEmpty(t, first)
	assert.Equal(t, int64(1), engine.GetCacheStats().Misses)

	second := engine.GetPositionStats(0)
	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), engine.GetCacheStats().Hits, "repeat call must come from cache")
}

func TestEngine_SnapshotScopedKeys(t *testing.T) {
	shared := cache.NewResultCache(cache.DefaultResultCacheConfig())
	cfg := testConfig()
	logger := testLogger()

	snapA := scoringSnapshot()
	snapB := validationSnapshot()
	engineA := NewAnalysisEngine(cfg, snapA, shared, logger)
	engineB := NewAnalysisEngine(cfg, snapB, shared, logger)

	statsA := engineA.GetPositionStats(0)
	statsB := engineB.GetPositionStats(0)

	assert.NotEqual(t, statsA, statsB, "snapshots must not share cached results")
	assert.Equal(t, 2, shared.Len())
}

func TestEngine_ScoreCombinationCached(t *testing.T) {
	engine := newTestEngine(t, scoringSnapshot())

	first, err := engine.ScoreCombination([]int{1, 4, 7})
	require.NoError(t, err)
	second, err := engine.ScoreCombination([]int{1, 4, 7})
	require.NoError(t, err)

	assert.Same(t, first, second, "second call returns the cached score")
	assert.True(t, first.Total.Equal(second.Total))
}

func TestEngine_ScoreCombinationInvalid(t *testing.T) {
	engine := newTestEngine(t, scoringSnapshot())
	_, err := engine.ScoreCombination([]int{1, 2})
	assert.ErrorIs(t, err, models.ErrInvalidCombination)
}

func TestEngine_GetTransitions(t *testing.T) {
	engine := newTestEngine(t, scoringSnapshot())

	predictions := engine.GetTransitions(0, 1, 3)
	assert.LessOrEqual(t, len(predictions), 3)
	for i := 1; i < len(predictions); i++ {
		assert.GreaterOrEqual(t, predictions[i-1].AdjustedProbability, predictions[i].AdjustedProbability)
	}

	again := engine.GetTransitions(0, 1, 3)
	assert.Equal(t, predictions, again)
	assert.Equal(t, int64(1), engine.GetCacheStats().Hits)
}

func TestEngine_GetCorrelations(t *testing.T) {
	engine := newTestEngine(t, scoringSnapshot())

	correlations, err := engine.GetCorrelations(context.Background())
	require.NoError(t, err)
	assert.Len(t, correlations, 3, "three positions form three pairs")

	again, err := engine.GetCorrelations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, correlations, again)
}

func TestEngine_GetTopCombinations(t *testing.T) {
	engine := newTestEngine(t, scoringSnapshot())

	top, err := engine.GetTopCombinations(context.Background(), 5)
	require.NoError(t, err)
	require.NotEmpty(t, top)
	assert.LessOrEqual(t, len(top), 5)

	for i := 1; i < len(top); i++ {
		assert.True(t, top[i-1].Total.GreaterThanOrEqual(top[i].Total),
			"results must be sorted best first")
	}
	for _, candidate := range top {
		assert.NoError(t, engine.Snapshot().ValidateCombination(candidate.Combination))
	}

	// Determinism: an identical engine over the same draws ranks identically.
	rerun := newTestEngine(t, scoringSnapshot())
	top2, err := rerun.GetTopCombinations(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, top2, len(top))
	for i := range top {
		assert.Equal(t, top[i].Combination, top2[i].Combination)
		assert.True(t, top[i].Total.Equal(top2[i].Total))
	}
}

func TestEngine_GetTopCombinationsBelowFloor(t *testing.T) {
	rows := [][]int{{1, 2}, {3, 4}, {5, 6}}
	snap := snapshotFromRows(rows, []models.ValueRange{{Min: 0, Max: 9}, {Min: 0, Max: 9}})
	engine := newTestEngine(t, snap)

	top, err := engine.GetTopCombinations(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, top, "sparse history yields no combinations")
}

func TestEngine_GetTopCombinationsCancelled(t *testing.T) {
	engine := newTestEngine(t, scoringSnapshot())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.GetTopCombinations(ctx, 5)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_GetDueCombinations(t *testing.T) {
	engine := newTestEngine(t, scoringSnapshot())

	due, err := engine.GetDueCombinations(context.Background())
	require.NoError(t, err)

	for _, candidate := range due {
		for pos, value := range candidate.Combination {
			stat := engine.GetPositionStats(pos)[value]
			require.NotNil(t, stat)
			assert.True(t, stat.IsDue() || stat.TotalAppearances == 0,
				"due combinations only use overdue values (pos %d value %d)", pos, value)
		}
	}
}

func TestEngine_DuePredictorCrossValidates(t *testing.T) {
	engine := newTestEngine(t, validationSnapshot())

	report, err := engine.CrossValidate(context.Background(), engine.DuePredictor(), 5)
	require.NoError(t, err)

	require.Len(t, report.Folds, 5)
	for _, fold := range report.Folds {
		assert.False(t, fold.Invalid)
		assert.True(t, fold.Result.IsValid)
	}
	assert.GreaterOrEqual(t, report.MeanAccuracy, 0.0)
	assert.LessOrEqual(t, report.MeanAccuracy, 1.0)
}

func TestEngine_PerformABTest(t *testing.T) {
	engine := newTestEngine(t, validationSnapshot())

	result, err := engine.PerformABTest(context.Background(),
		engine.DuePredictor(), constantPredictor([]int{0, 0}), 10)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.PValue, 0.0)
	assert.LessOrEqual(t, result.PValue, 1.0)

	_, err = engine.PerformABTest(context.Background(),
		engine.DuePredictor(), engine.DuePredictor(), 0)
	assert.ErrorIs(t, err, models.ErrInsufficientData)
}

func TestEngine_CacheMaintenance(t *testing.T) {
	engine := newTestEngine(t, scoringSnapshot())

	engine.GetPositionStats(0)
	engine.GetPositionStats(1)
	require.Equal(t, 2, engine.GetCacheStats().Size)

	removed := engine.OptimizeCache()
	assert.Zero(t, removed, "fresh entries survive optimization")

	engine.ClearCache()
	assert.Zero(t, engine.GetCacheStats().Size)
}
