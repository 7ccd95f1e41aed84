package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/drawlytics/drawlytics-go/internal/models"
	"github.com/drawlytics/drawlytics-go/internal/stats"
)

// ValidationService grades prediction functions against held-out history:
// k-fold cross-validation, Wilson confidence intervals, significance tests
// against the random baseline, and A/B comparison of two algorithms.
type ValidationService struct {
	confidenceLevel float64
	logger          *logrus.Logger
}

// NewValidationService creates a validation service. confidenceLevel
// outside (0,1) falls back to 0.95.
func NewValidationService(confidenceLevel float64, logger *logrus.Logger) *ValidationService {
	if confidenceLevel <= 0 || confidenceLevel >= 1 {
		confidenceLevel = 0.95
	}
	return &ValidationService{confidenceLevel: confidenceLevel, logger: logger}
}

// CrossValidate splits the snapshot into k contiguous chronological folds
// and grades predictFn on each. A failing fold (error or panic inside
// predictFn) is recorded invalid with accuracy 0: it stays in the mean and
// stddev denominators but is excluded from best/worst selection. The
// context is checked between folds so long runs cancel cooperatively.
func (v *ValidationService) CrossValidate(ctx context.Context, predictFn PredictFunc, k int, snap *models.Snapshot) (*models.CrossValidationReport, error) {
	n := snap.TotalDraws()
	if k < 2 {
		return nil, fmt.Errorf("cross-validation requires k >= 2, got %d", k)
	}
	if n < 2*k {
		return nil, fmt.Errorf("%w: %d draws cannot support %d folds (need >= %d)",
			models.ErrInsufficientData, n, k, 2*k)
	}

	report := &models.CrossValidationReport{
		ID:             uuid.New().String(),
		GeneratedAt:    time.Now(),
		Folds:          make([]models.FoldResult, 0, k),
		BestFoldIndex:  -1,
		WorstFoldIndex: -1,
	}

	foldSize := n / k
	for i := 0; i < k; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("cross-validation cancelled before fold %d: %w", i, err)
		}

		start := i * foldSize
		end := start + foldSize
		if i == k-1 {
			end = n // last fold absorbs the remainder
		}
		test := snap.Draws[start:end]

		train := make([]models.Draw, 0, n-len(test))
		train = append(train, snap.Draws[:start]...)
		train = append(train, snap.Draws[end:]...)

		fold := models.FoldResult{Index: i, TrainSize: len(train), TestSize: len(test)}
		predictions, err := runPrediction(predictFn, train, len(test))
		if err != nil {
			fold.Invalid = true
			fold.FailReason = err.Error()
			v.logger.WithFields(logrus.Fields{
				"fold":  i,
				"error": err.Error(),
			}).Warn("Fold prediction failed, marking fold invalid")
		} else {
			fold.Result = v.ValidatePredictions(predictions, test, snap)
		}
		report.Folds = append(report.Folds, fold)
	}

	v.aggregate(report)

	v.logger.WithFields(logrus.Fields{
		"report_id":     report.ID,
		"folds":         k,
		"mean_accuracy": report.MeanAccuracy,
		"best_fold":     report.BestFoldIndex,
		"worst_fold":    report.WorstFoldIndex,
	}).Info("Cross-validation complete")

	return report, nil
}

// runPrediction invokes a caller-supplied prediction function, converting
// panics into fold errors so one bad fold never aborts the run.
func runPrediction(predictFn PredictFunc, train []models.Draw, testSize int) (predictions []models.Prediction, err error) {
	defer func() {
		if r := recover(); r != nil {
			predictions = nil
			err = fmt.Errorf("prediction function panicked: %v", r)
		}
	}()
	return predictFn(train, testSize)
}

// ValidatePredictions grades predictions against actual draws. Every
// (prediction, actual) pair is compared positionally; a comparison succeeds
// when the match count reaches the prediction's expected-hit threshold
// (full match when unset). Empty inputs are a controlled validity failure,
// not an error.
func (v *ValidationService) ValidatePredictions(predictions []models.Prediction, actual []models.Draw, snap *models.Snapshot) models.ValidationResult {
	result := models.ValidationResult{HitRateBreakdown: map[int]float64{}}
	if len(predictions) == 0 || len(actual) == 0 {
		return result
	}
	result.IsValid = true

	positions := snap.Positions()
	comparisons := 0
	successes := 0
	reached := make([]int, positions+1)      // reached[t] = comparisons with >= t matches
	observed := make([]float64, positions+1) // exact match-count histogram

	for _, pred := range predictions {
		threshold := pred.ExpectedHits
		if threshold <= 0 {
			threshold = len(pred.Numbers)
		}
		for _, draw := range actual {
			matches := positionalMatches(pred.Numbers, draw.Numbers)
			comparisons++
			observed[matches]++
			for t := 1; t <= matches; t++ {
				reached[t]++
			}
			if matches >= threshold {
				successes++
			}
		}
	}

	result.Comparisons = comparisons
	result.Successes = successes
	result.Accuracy = float64(successes) / float64(comparisons)
	for t := 1; t <= positions; t++ {
		result.HitRateBreakdown[t] = float64(reached[t]) / float64(comparisons)
	}

	result.ConfidenceInterval = stats.WilsonInterval(successes, comparisons, v.confidenceLevel)

	// Random baseline: chance of a uniform guess reaching the (majority)
	// threshold, with the per-position hit probability averaged over ranges.
	p := perPositionHitProbability(snap)
	threshold := majorityThreshold(predictions)
	result.RandomBaseline = stats.BinomialTail(positions, threshold, p)
	result.PValue = stats.ProportionPValue(successes, comparisons, result.RandomBaseline)

	expected := make([]float64, positions+1)
	for m := 0; m <= positions; m++ {
		expected[m] = stats.BinomialPMF(positions, m, p) * float64(comparisons)
	}
	_, result.ChiSquarePValue = stats.ChiSquareGoodnessOfFit(observed, expected)

	alpha := 1 - v.confidenceLevel
	result.IsSignificant = result.PValue < alpha
	result.Confidence = 1 - result.PValue
	if result.Confidence < 0 {
		result.Confidence = 0
	}

	return result
}

// PerformABTest runs two predictors over the same train/test split and
// compares their accuracies with a pooled two-proportion z-test. A winner
// is declared only when the difference is significant at p < 0.05;
// otherwise the result carries no winner and confidence 0.
func (v *ValidationService) PerformABTest(ctx context.Context, algorithmA, algorithmB PredictFunc, train, test []models.Draw, snap *models.Snapshot) (*models.ABTestResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("a/b test cancelled: %w", err)
	}
	if len(test) == 0 {
		return nil, fmt.Errorf("%w: a/b test requires held-out draws", models.ErrInsufficientData)
	}

	resultA := v.runArm(algorithmA, train, test, snap, "A")
	resultB := v.runArm(algorithmB, train, test, snap, "B")

	z, p := stats.TwoProportionZ(resultA.Successes, resultA.Comparisons, resultB.Successes, resultB.Comparisons)

	out := &models.ABTestResult{
		AccuracyA: resultA.Accuracy,
		AccuracyB: resultB.Accuracy,
		ZScore:    z,
		PValue:    p,
	}
	if p < 0.05 {
		if resultA.Accuracy >= resultB.Accuracy {
			out.Winner = "A"
		} else {
			out.Winner = "B"
		}
		out.Confidence = 1 - p
	}
	return out, nil
}

func (v *ValidationService) runArm(fn PredictFunc, train, test []models.Draw, snap *models.Snapshot, name string) models.ValidationResult {
	predictions, err := runPrediction(fn, train, len(test))
	if err != nil {
		v.logger.WithFields(logrus.Fields{
			"arm":   name,
			"error": err.Error(),
		}).Warn("A/B arm prediction failed, scoring it zero")
		return models.ValidationResult{HitRateBreakdown: map[int]float64{}}
	}
	return v.ValidatePredictions(predictions, test, snap)
}

// aggregate fills the report's summary fields from its folds.
func (v *ValidationService) aggregate(report *models.CrossValidationReport) {
	accuracies := make([]float64, 0, len(report.Folds))
	for _, fold := range report.Folds {
		acc := 0.0
		if !fold.Invalid {
			acc = fold.Result.Accuracy
		}
		accuracies = append(accuracies, acc)
	}

	report.MeanAccuracy = stats.Mean(accuracies)
	report.StdDevAccuracy = stats.StdDev(accuracies)

	best := math.Inf(-1)
	worst := math.Inf(1)
	for _, fold := range report.Folds {
		if fold.Invalid {
			continue
		}
		if fold.Result.Accuracy > best {
			best = fold.Result.Accuracy
			report.BestFoldIndex = fold.Index
		}
		if fold.Result.Accuracy < worst {
			worst = fold.Result.Accuracy
			report.WorstFoldIndex = fold.Index
		}
	}

	slope, trendP := stats.TrendTest(accuracies)
	report.Stability = models.TemporalStability{
		Autocorrelation:  stats.Autocorrelation(accuracies, 1),
		TrendSlope:       slope,
		TrendPValue:      trendP,
		TrendSignificant: trendP < 1-v.confidenceLevel,
		Volatility:       stats.Volatility(accuracies),
	}
}

func positionalMatches(prediction, actual []int) int {
	n := len(prediction)
	if len(actual) < n {
		n = len(actual)
	}
	matches := 0
	for i := 0; i < n; i++ {
		if prediction[i] == actual[i] {
			matches++
		}
	}
	return matches
}

// perPositionHitProbability averages 1/rangeSize over positions.
func perPositionHitProbability(snap *models.Snapshot) float64 {
	positions := snap.Positions()
	if positions == 0 {
		return 0
	}
	sum := 0.0
	for i := 0; i < positions; i++ {
		sum += 1 / float64(snap.Range(i).Size())
	}
	return sum / float64(positions)
}

// majorityThreshold picks the most common expected-hit threshold across
// predictions, defaulting each unset threshold to full arity.
func majorityThreshold(predictions []models.Prediction) int {
	counts := make(map[int]int)
	for _, p := range predictions {
		t := p.ExpectedHits
		if t <= 0 {
			t = len(p.Numbers)
		}
		counts[t]++
	}
	best, bestCount := 0, -1
	for t, c := range counts {
		if c > bestCount || (c == bestCount && t < best) {
			best, bestCount = t, c
		}
	}
	return best
}
