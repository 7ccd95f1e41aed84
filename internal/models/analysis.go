package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trend classifies the direction of a value's recent gap lengths.
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
)

// PositionStat holds the gap/skip profile of a single (position, value)
// pair, derived from one snapshot.
type PositionStat struct {
	Position         int     `json:"position"`
	Value            int     `json:"value"`
	TotalAppearances int     `json:"total_appearances"`
	CurrentGap       int     `json:"current_gap"`
	AverageGap       float64 `json:"average_gap"`
	MaxGap           int     `json:"max_gap"`
	MinGap           int     `json:"min_gap"`
	LastSeenIndex    int     `json:"last_seen_index"` // -1 when never seen
	SkipHistory      []int   `json:"skip_history"`
	IsHot            bool    `json:"is_hot"`
	IsCold           bool    `json:"is_cold"`
	Trend            Trend   `json:"trend"`
}

// IsDue reports whether the value's current gap exceeds its historical
// average gap.
func (p *PositionStat) IsDue() bool {
	return p.AverageGap > 0 && float64(p.CurrentGap) > p.AverageGap
}

// CorrelationStrength buckets the absolute value of a correlation
// coefficient.
type CorrelationStrength string

const (
	CorrelationWeak     CorrelationStrength = "weak"
	CorrelationModerate CorrelationStrength = "moderate"
	CorrelationStrong   CorrelationStrength = "strong"
)

// Correlation is the pairwise relationship between two positions' value
// sequences. Pairs are unordered: PositionA < PositionB.
type Correlation struct {
	PositionA    int                 `json:"position_a"`
	PositionB    int                 `json:"position_b"`
	Coefficient  float64             `json:"coefficient"`
	Strength     CorrelationStrength `json:"strength"`
	Significance float64             `json:"significance"` // 1 - pValue, in [0,1]
	SampleSize   int                 `json:"sample_size"`
}

// Transition is one observed value→value step for a position across
// consecutive draws.
type Transition struct {
	FromValue     int     `json:"from_value"`
	ToValue       int     `json:"to_value"`
	Count         int     `json:"count"`
	Probability   float64 `json:"probability"`
	LastSeenIndex int     `json:"last_seen_index"`
}

// PredictedTransition is a ranked next-value candidate, with the raw
// transition probability down-weighted for persistent source states.
type PredictedTransition struct {
	Transition
	AdjustedProbability float64 `json:"adjusted_probability"`
}

// CandidateScore is the composite score of a candidate combination. All
// components are in [0,1] before weighting; Total is the weighted sum under
// normalized weights. Recomputing with identical inputs yields an identical
// score.
type CandidateScore struct {
	Combination          []int           `json:"combination"`
	DueComponent         decimal.Decimal `json:"due_component"`
	ParityComponent      decimal.Decimal `json:"parity_component"`
	HotColdComponent     decimal.Decimal `json:"hot_cold_component"`
	TransitionComponent  decimal.Decimal `json:"transition_component"`
	CorrelationComponent decimal.Decimal `json:"correlation_component"`
	Total                decimal.Decimal `json:"total"`
	Confidence           decimal.Decimal `json:"confidence"`
}

// ScoringWeights configures the composite scorer. The engine normalizes the
// set so it sums to 1 before use.
type ScoringWeights struct {
	Due         decimal.Decimal `json:"due"`
	Parity      decimal.Decimal `json:"parity"`
	HotCold     decimal.Decimal `json:"hot_cold"`
	Transition  decimal.Decimal `json:"transition"`
	Correlation decimal.Decimal `json:"correlation"`
}

// Sum returns the unnormalized weight total.
func (w ScoringWeights) Sum() decimal.Decimal {
	return w.Due.Add(w.Parity).Add(w.HotCold).Add(w.Transition).Add(w.Correlation)
}

// Normalized returns a weight set scaled to sum to 1. A zero set falls back
// to uniform weights so scoring stays defined.
func (w ScoringWeights) Normalized() ScoringWeights {
	sum := w.Sum()
	if sum.IsZero() {
		uniform := decimal.New(2, -1) // 0.2
		return ScoringWeights{Due: uniform, Parity: uniform, HotCold: uniform, Transition: uniform, Correlation: uniform}
	}
	return ScoringWeights{
		Due:         w.Due.Div(sum),
		Parity:      w.Parity.Div(sum),
		HotCold:     w.HotCold.Div(sum),
		Transition:  w.Transition.Div(sum),
		Correlation: w.Correlation.Div(sum),
	}
}

// DefaultScoringWeights returns the stock weighting used when a caller
// supplies none.
func DefaultScoringWeights() ScoringWeights {
	return ScoringWeights{
		Due:         decimal.NewFromFloat(0.30),
		Parity:      decimal.NewFromFloat(0.10),
		HotCold:     decimal.NewFromFloat(0.20),
		Transition:  decimal.NewFromFloat(0.25),
		Correlation: decimal.NewFromFloat(0.15),
	}
}

// Prediction is a caller- or engine-produced guess at a future draw.
// ExpectedHits is the positional-match threshold the prediction counts as a
// success; zero or negative means full match.
type Prediction struct {
	Numbers      []int `json:"numbers"`
	ExpectedHits int   `json:"expected_hits"`
}

// ConfidenceInterval is a Wilson-score interval on a binomial proportion.
type ConfidenceInterval struct {
	Lower float64 `json:"lower"`
	Mean  float64 `json:"mean"`
	Upper float64 `json:"upper"`
	Level float64 `json:"level"`
}

// ValidationResult grades a set of predictions against actual draws.
type ValidationResult struct {
	IsValid            bool               `json:"is_valid"`
	Accuracy           float64            `json:"accuracy"`
	Confidence         float64            `json:"confidence"`
	Comparisons        int                `json:"comparisons"`
	Successes          int                `json:"successes"`
	HitRateBreakdown   map[int]float64    `json:"hit_rate_breakdown"` // min hits → rate of comparisons reaching it
	ConfidenceInterval ConfidenceInterval `json:"confidence_interval"`
	PValue             float64            `json:"p_value"`
	ChiSquarePValue    float64            `json:"chi_square_p_value"`
	IsSignificant      bool               `json:"is_significant"`
	RandomBaseline     float64            `json:"random_baseline"`
}

// FoldResult is one fold of a cross-validation run.
type FoldResult struct {
	Index      int              `json:"index"`
	TrainSize  int              `json:"train_size"`
	TestSize   int              `json:"test_size"`
	Invalid    bool             `json:"invalid"`
	FailReason string           `json:"fail_reason,omitempty"`
	Result     ValidationResult `json:"result"`
}

// TemporalStability diagnoses how fold accuracies behave over time.
type TemporalStability struct {
	Autocorrelation  float64 `json:"autocorrelation"` // lag-1 over fold accuracies
	TrendSlope       float64 `json:"trend_slope"`
	TrendPValue      float64 `json:"trend_p_value"`
	TrendSignificant bool    `json:"trend_significant"`
	Volatility       float64 `json:"volatility"` // stddev of successive accuracy deltas
}

// CrossValidationReport aggregates a full k-fold run. Best/worst indexes are
// -1 when every fold was invalid.
type CrossValidationReport struct {
	ID             string            `json:"id"`
	GeneratedAt    time.Time         `json:"generated_at"`
	Folds          []FoldResult      `json:"folds"`
	MeanAccuracy   float64           `json:"mean_accuracy"`
	StdDevAccuracy float64           `json:"std_dev_accuracy"`
	BestFoldIndex  int               `json:"best_fold_index"`
	WorstFoldIndex int               `json:"worst_fold_index"`
	Stability      TemporalStability `json:"stability"`
}

// ABTestResult compares two prediction algorithms on the same held-out
// draws via a two-proportion z-test.
type ABTestResult struct {
	AccuracyA  float64 `json:"accuracy_a"`
	AccuracyB  float64 `json:"accuracy_b"`
	ZScore     float64 `json:"z_score"`
	PValue     float64 `json:"p_value"`
	Winner     string  `json:"winner"` // "A", "B", or "" when not significant
	Confidence float64 `json:"confidence"`
}
