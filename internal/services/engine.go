package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/drawlytics/drawlytics-go/internal/cache"
	"github.com/drawlytics/drawlytics-go/internal/config"
	"github.com/drawlytics/drawlytics-go/internal/models"
	"github.com/drawlytics/drawlytics-go/internal/telemetry"
)

// Cache key kinds. Keys embed the snapshot ID so results from different
// snapshots never collide.
const (
	kindPositionStats = "position_stats"
	kindTransitions   = "transitions"
	kindCorrelations  = "correlations"
	kindScore         = "score"
)

// AnalysisEngine is the façade over the statistics/scoring/validation
// services for one snapshot. It owns no global state: callers construct an
// engine per snapshot, which keeps parallel fold evaluation and multiple
// concurrent histories independent.
type AnalysisEngine struct {
	cfg         *config.Config
	snap        *models.Snapshot
	analyzer    *PositionAnalyzer
	transitions *TransitionModel
	correlator  *Correlator
	scorer      *ScoringEngine
	validator   *ValidationService
	cache       *cache.ResultCache
	weights     models.ScoringWeights
	logger      *logrus.Logger
	tracer      trace.Tracer
}

// NewAnalysisEngine wires the engine for a snapshot. The result cache is
// shared across engines by design; snapshot-scoped keys keep entries
// distinct.
func NewAnalysisEngine(cfg *config.Config, snap *models.Snapshot, resultCache *cache.ResultCache, logger *logrus.Logger) *AnalysisEngine {
	analyzer := NewPositionAnalyzer(logger)
	transitions := NewTransitionModel(logger)
	correlator := NewCorrelator(logger)

	return &AnalysisEngine{
		cfg:         cfg,
		snap:        snap,
		analyzer:    analyzer,
		transitions: transitions,
		correlator:  correlator,
		scorer:      NewScoringEngine(analyzer, transitions, correlator, cfg.Analysis.MinDrawsForCombination, logger),
		validator:   NewValidationService(cfg.Validation.ConfidenceLevel, logger),
		cache:       resultCache,
		weights: models.ScoringWeights{
			Due:         decimal.NewFromFloat(cfg.Scoring.DueWeight),
			Parity:      decimal.NewFromFloat(cfg.Scoring.ParityWeight),
			HotCold:     decimal.NewFromFloat(cfg.Scoring.HotColdWeight),
			Transition:  decimal.NewFromFloat(cfg.Scoring.TransitionWeight),
			Correlation: decimal.NewFromFloat(cfg.Scoring.CorrelationWeight),
		},
		logger: logger,
		tracer: telemetry.Tracer(),
	}
}

// Snapshot returns the engine's snapshot.
func (e *AnalysisEngine) Snapshot() *models.Snapshot {
	return e.snap
}

// GetPositionStats returns the per-value gap statistics for a position,
// memoized per snapshot.
func (e *AnalysisEngine) GetPositionStats(position int) map[int]*models.PositionStat {
	key := cache.Key(kindPositionStats, struct {
		Snapshot string `json:"snapshot"`
		Position int    `json:"position"`
	}{e.snap.ID, position})

	if cached, ok := e.cache.Get(key); ok {
		if stats, ok := cached.(map[int]*models.PositionStat); ok {
			return stats
		}
	}
	stats := e.analyzer.AnalyzePosition(position, e.snap)
	e.cache.Set(kindPositionStats, key, stats)
	return stats
}

// GetTransitions returns up to topK ranked next-value predictions for a
// position conditioned on the current value.
func (e *AnalysisEngine) GetTransitions(position, currentValue, topK int) []models.PredictedTransition {
	if topK <= 0 {
		topK = e.cfg.Analysis.TopTransitions
	}
	key := cache.Key(kindTransitions, struct {
		Snapshot string `json:"snapshot"`
		Position int    `json:"position"`
		Value    int    `json:"value"`
		TopK     int    `json:"top_k"`
	}{e.snap.ID, position, currentValue, topK})

	if cached, ok := e.cache.Get(key); ok {
		if predictions, ok := cached.([]models.PredictedTransition); ok {
			return predictions
		}
	}
	predictions := e.transitions.PredictNext(position, currentValue, topK, e.snap)
	e.cache.Set(kindTransitions, key, predictions)
	return predictions
}

// GetCorrelations returns every pairwise position correlation, memoized per
// snapshot.
func (e *AnalysisEngine) GetCorrelations(ctx context.Context) ([]models.Correlation, error) {
	ctx, span := e.tracer.Start(ctx, "engine.GetCorrelations",
		trace.WithAttributes(attribute.Int("positions", e.snap.Positions())))
	defer span.End()

	key := cache.Key(kindCorrelations, struct {
		Snapshot string `json:"snapshot"`
	}{e.snap.ID})

	if cached, ok := e.cache.Get(key); ok {
		if correlations, ok := cached.([]models.Correlation); ok {
			return correlations, nil
		}
	}
	correlations, err := e.correlator.CorrelationMatrix(ctx, e.snap)
	if err != nil {
		return nil, err
	}
	e.cache.Set(kindCorrelations, key, correlations)
	return correlations, nil
}

// ScoreCombination scores one combination under the configured weights.
func (e *AnalysisEngine) ScoreCombination(combination []int) (*models.CandidateScore, error) {
	key := cache.Key(kindScore, struct {
		Snapshot    string                `json:"snapshot"`
		Combination []int                 `json:"combination"`
		Weights     models.ScoringWeights `json:"weights"`
	}{e.snap.ID, combination, e.weights})

	if cached, ok := e.cache.Get(key); ok {
		if score, ok := cached.(*models.CandidateScore); ok {
			return score, nil
		}
	}
	score, err := e.scorer.ScoreCombination(combination, e.snap, e.weights)
	if err != nil {
		return nil, err
	}
	e.cache.Set(kindScore, key, score)
	return score, nil
}

// GetTopCombinations scores the cartesian product of the most-due values
// per position and returns the limit best by total, ties broken by
// combination order for determinism. Below the combination-analysis floor
// it returns an empty slice.
func (e *AnalysisEngine) GetTopCombinations(ctx context.Context, limit int) ([]models.CandidateScore, error) {
	ctx, span := e.tracer.Start(ctx, "engine.GetTopCombinations",
		trace.WithAttributes(attribute.Int("limit", limit)))
	defer span.End()

	if e.snap.TotalDraws() < e.cfg.Analysis.MinDrawsForCombination {
		return nil, nil
	}
	candidates := e.candidateValues(false)
	return e.scoreCandidates(ctx, candidates, limit)
}

// GetDueCombinations scores every combination assembled purely from due
// values (current gap above historical average) and returns them best
// first. Positions with no due value yield no combinations.
func (e *AnalysisEngine) GetDueCombinations(ctx context.Context) ([]models.CandidateScore, error) {
	ctx, span := e.tracer.Start(ctx, "engine.GetDueCombinations")
	defer span.End()

	if e.snap.TotalDraws() < e.cfg.Analysis.MinDrawsForCombination {
		return nil, nil
	}
	candidates := e.candidateValues(true)
	return e.scoreCandidates(ctx, candidates, 0)
}

// candidateValues picks, per position, the values most overdue relative to
// their average gap, capped at the configured width. dueOnly restricts the
// pick to values that are actually due.
func (e *AnalysisEngine) candidateValues(dueOnly bool) [][]int {
	width := e.cfg.Analysis.DueValuesPerPosition
	if width <= 0 {
		width = 3
	}

	out := make([][]int, e.snap.Positions())
	for pos := 0; pos < e.snap.Positions(); pos++ {
		stats := e.GetPositionStats(pos)
		values := make([]*models.PositionStat, 0, len(stats))
		for _, stat := range stats {
			if dueOnly && !stat.IsDue() {
				continue
			}
			values = append(values, stat)
		}
		sort.Slice(values, func(i, j int) bool {
			ei := gapExcess(values[i])
			ej := gapExcess(values[j])
			if ei != ej {
				return ei > ej
			}
			return values[i].Value < values[j].Value
		})
		if len(values) > width {
			values = values[:width]
		}
		picked := make([]int, len(values))
		for i, stat := range values {
			picked[i] = stat.Value
		}
		sort.Ints(picked)
		out[pos] = picked
	}
	return out
}

func gapExcess(stat *models.PositionStat) float64 {
	if stat.AverageGap <= 0 {
		return float64(stat.CurrentGap)
	}
	return (float64(stat.CurrentGap) - stat.AverageGap) / stat.AverageGap
}

// scoreCandidates walks the cartesian product of candidate values, scoring
// each combination and yielding to ctx between combinations. limit <= 0
// returns everything.
func (e *AnalysisEngine) scoreCandidates(ctx context.Context, candidates [][]int, limit int) ([]models.CandidateScore, error) {
	for _, values := range candidates {
		if len(values) == 0 {
			return nil, nil
		}
	}

	var scored []models.CandidateScore
	combination := make([]int, len(candidates))

	var walk func(pos int) error
	walk = func(pos int) error {
		if pos == len(candidates) {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("combination scan cancelled: %w", err)
			}
			score, err := e.ScoreCombination(combination)
			if err != nil {
				return err
			}
			scored = append(scored, *score)
			return nil
		}
		for _, v := range candidates[pos] {
			combination[pos] = v
			if err := walk(pos + 1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(0); err != nil {
		return nil, err
	}

	sort.SliceStable(scored, func(i, j int) bool {
		cmp := scored[i].Total.Cmp(scored[j].Total)
		if cmp != 0 {
			return cmp > 0
		}
		return lessCombination(scored[i].Combination, scored[j].Combination)
	})
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func lessCombination(a, b []int) bool {
	for i := range a {
		if i >= len(b) {
			return false
		}
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// CrossValidate grades a prediction function over the engine's snapshot.
func (e *AnalysisEngine) CrossValidate(ctx context.Context, predictFn PredictFunc, k int) (*models.CrossValidationReport, error) {
	ctx, span := e.tracer.Start(ctx, "engine.CrossValidate",
		trace.WithAttributes(
			attribute.Int("folds", k),
			attribute.Int("draws", e.snap.TotalDraws()),
		))
	defer span.End()

	return e.validator.CrossValidate(ctx, predictFn, k, e.snap)
}

// PerformABTest compares two prediction functions on the same held-out
// slice of the snapshot. holdout is the number of trailing draws excluded
// from training.
func (e *AnalysisEngine) PerformABTest(ctx context.Context, algorithmA, algorithmB PredictFunc, holdout int) (*models.ABTestResult, error) {
	n := e.snap.TotalDraws()
	if holdout <= 0 || holdout >= n {
		return nil, fmt.Errorf("%w: holdout %d outside (0,%d)", models.ErrInsufficientData, holdout, n)
	}
	train := e.snap.Draws[:n-holdout]
	test := e.snap.Draws[n-holdout:]
	return e.validator.PerformABTest(ctx, algorithmA, algorithmB, train, test, e.snap)
}

// DuePredictor returns a prediction function that, for each requested
// prediction, picks the most overdue value per position from the training
// slice. It gives cross-validation a concrete engine-native baseline.
func (e *AnalysisEngine) DuePredictor() PredictFunc {
	ranges := e.snap.Ranges
	analyzer := e.analyzer
	return func(train []models.Draw, testSize int) ([]models.Prediction, error) {
		if len(train) == 0 {
			return nil, fmt.Errorf("%w: empty training slice", models.ErrInsufficientData)
		}
		trainSnap := models.NewSnapshot(train, ranges)
		numbers := make([]int, len(ranges))
		for pos := range ranges {
			stats := analyzer.AnalyzePosition(pos, trainSnap)
			bestValue := ranges[pos].Min
			bestExcess := float64(-1)
			for value := ranges[pos].Min; value <= ranges[pos].Max; value++ {
				if excess := gapExcess(stats[value]); excess > bestExcess {
					bestExcess = excess
					bestValue = value
				}
			}
			numbers[pos] = bestValue
		}
		predictions := make([]models.Prediction, testSize)
		for i := range predictions {
			predictions[i] = models.Prediction{Numbers: append([]int(nil), numbers...), ExpectedHits: 1}
		}
		return predictions, nil
	}
}

// GetCacheStats exposes the result-cache statistics.
func (e *AnalysisEngine) GetCacheStats() cache.Stats {
	return e.cache.Stats()
}

// ClearCache drops every cached result.
func (e *AnalysisEngine) ClearCache() {
	e.cache.Clear()
}

// OptimizeCache sweeps expired and stale-large entries, returning how many
// were removed.
func (e *AnalysisEngine) OptimizeCache() int {
	return e.cache.Optimize()
}
