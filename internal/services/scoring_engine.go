package services

import (
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/drawlytics/drawlytics-go/internal/models"
)

// ScoringEngine combines due-ness, parity balance, hot/cold counts and
// transition/correlation signals into a single composite score per
// combination. Scoring is a pure function of (combination, snapshot,
// weights): identical inputs always produce identical totals.
type ScoringEngine struct {
	analyzer    *PositionAnalyzer
	transitions *TransitionModel
	correlator  *Correlator
	minDraws    int
	logger      *logrus.Logger
}

// anti-correlation threshold for the correlation penalty
const antiCorrelationCutoff = -0.3

// NewScoringEngine creates a scoring engine. minDraws is the combination
// analysis floor; snapshots below it score neutrally rather than erroring.
func NewScoringEngine(analyzer *PositionAnalyzer, transitions *TransitionModel, correlator *Correlator, minDraws int, logger *logrus.Logger) *ScoringEngine {
	if minDraws <= 0 {
		minDraws = 20
	}
	return &ScoringEngine{
		analyzer:    analyzer,
		transitions: transitions,
		correlator:  correlator,
		minDraws:    minDraws,
		logger:      logger,
	}
}

// ScoreCombination scores a full combination. The combination must already
// be validated against the snapshot; a malformed one returns
// ErrInvalidCombination. Snapshots below the analysis floor yield a neutral
// zero score with confidence 0.
func (e *ScoringEngine) ScoreCombination(combination []int, snap *models.Snapshot, weights models.ScoringWeights) (*models.CandidateScore, error) {
	if err := snap.ValidateCombination(combination); err != nil {
		return nil, err
	}

	score := &models.CandidateScore{Combination: append([]int(nil), combination...)}
	if snap.TotalDraws() < e.minDraws {
		e.logger.WithFields(logrus.Fields{
			"draws":     snap.TotalDraws(),
			"min_draws": e.minDraws,
		}).Debug("Snapshot below combination-analysis floor, returning neutral score")
		return score, nil
	}

	w := weights.Normalized()

	var (
		dueSum        decimal.Decimal
		hotColdSum    decimal.Decimal
		transitionSum decimal.Decimal
		matching      int
		possible      int
	)

	positions := snap.Positions()
	for pos, value := range combination {
		positionStats := e.analyzer.AnalyzePosition(pos, snap)
		stat := positionStats[value]

		due := dueness(stat)
		dueSum = dueSum.Add(due)
		possible++
		if due.IsPositive() {
			matching++
		}

		hc := hotColdScore(stat)
		hotColdSum = hotColdSum.Add(hc)
		possible++
		if hc.IsPositive() {
			matching++
		}

		tp := e.transitionProbability(pos, value, snap)
		transitionSum = transitionSum.Add(tp)
		possible++
		if tp.IsPositive() {
			matching++
		}
	}

	count := decimal.NewFromInt(int64(positions))
	score.DueComponent = dueSum.Div(count)
	score.HotColdComponent = hotColdSum.Div(count)
	score.TransitionComponent = transitionSum.Div(count)

	score.ParityComponent = parityBalance(combination)
	possible++
	if balanced(combination) {
		matching++
	}

	corr, clean := e.correlationScore(combination, snap)
	score.CorrelationComponent = corr
	possible++
	if clean {
		matching++
	}

	score.Total = score.DueComponent.Mul(w.Due).
		Add(score.ParityComponent.Mul(w.Parity)).
		Add(score.HotColdComponent.Mul(w.HotCold)).
		Add(score.TransitionComponent.Mul(w.Transition)).
		Add(score.CorrelationComponent.Mul(w.Correlation))

	confidence := decimal.NewFromInt(int64(matching)).Div(decimal.NewFromInt(int64(possible)))
	one := decimal.NewFromInt(1)
	if confidence.GreaterThan(one) {
		confidence = one
	}
	score.Confidence = confidence

	return score, nil
}

// dueness is the normalized gap excess over the historical average, clamped
// to [0,1]. A value never seen in the snapshot is maximally due.
func dueness(stat *models.PositionStat) decimal.Decimal {
	if stat.AverageGap <= 0 {
		if stat.TotalAppearances == 0 && stat.CurrentGap > 0 {
			return decimal.NewFromInt(1)
		}
		return decimal.Zero
	}
	excess := (float64(stat.CurrentGap) - stat.AverageGap) / stat.AverageGap
	return clampUnit(decimal.NewFromFloat(excess))
}

// hotColdScore awards full weight to hot values and half weight to values
// that are cold but overdue; anything else contributes nothing.
func hotColdScore(stat *models.PositionStat) decimal.Decimal {
	switch {
	case stat.IsHot:
		return decimal.NewFromInt(1)
	case stat.IsCold && stat.IsDue():
		return decimal.NewFromFloat(0.5)
	default:
		return decimal.Zero
	}
}

// transitionProbability is the observed probability of value at position
// given the latest draw's value there, 0 when no transition was recorded.
func (e *ScoringEngine) transitionProbability(position, value int, snap *models.Snapshot) decimal.Decimal {
	n := snap.TotalDraws()
	if n == 0 {
		return decimal.Zero
	}
	current := snap.Draws[n-1].Numbers[position]
	table := e.transitions.BuildTransitions(position, snap)
	for _, t := range table[current] {
		if t.ToValue == value {
			return clampUnit(decimal.NewFromFloat(t.Probability))
		}
	}
	return decimal.Zero
}

// parityBalance rewards combinations whose odd/even split is even:
// 1 - |odds - evens| / positions.
func parityBalance(combination []int) decimal.Decimal {
	odds := 0
	for _, v := range combination {
		if v%2 != 0 {
			odds++
		}
	}
	evens := len(combination) - odds
	diff := odds - evens
	if diff < 0 {
		diff = -diff
	}
	return decimal.NewFromInt(1).Sub(
		decimal.NewFromInt(int64(diff)).Div(decimal.NewFromInt(int64(len(combination)))))
}

func balanced(combination []int) bool {
	odds := 0
	for _, v := range combination {
		if v%2 != 0 {
			odds++
		}
	}
	diff := odds - (len(combination) - odds)
	return diff >= -1 && diff <= 1
}

// correlationScore penalizes combinations spanning positions whose joint
// history anti-correlates. Returns the component and whether the
// combination is free of anti-correlated pairs.
func (e *ScoringEngine) correlationScore(combination []int, snap *models.Snapshot) (decimal.Decimal, bool) {
	positions := len(combination)
	pairs := 0
	anti := 0
	for a := 0; a < positions; a++ {
		for b := a + 1; b < positions; b++ {
			pairs++
			if e.correlator.Correlate(a, b, snap).Coefficient < antiCorrelationCutoff {
				anti++
			}
		}
	}
	if pairs == 0 {
		return decimal.NewFromInt(1), true
	}
	component := decimal.NewFromInt(1).Sub(
		decimal.NewFromInt(int64(anti)).Div(decimal.NewFromInt(int64(pairs))))
	return component, anti == 0
}

func clampUnit(d decimal.Decimal) decimal.Decimal {
	one := decimal.NewFromInt(1)
	if d.LessThan(decimal.Zero) {
		return decimal.Zero
	}
	if d.GreaterThan(one) {
		return one
	}
	return d
}
