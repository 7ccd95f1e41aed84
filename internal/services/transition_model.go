package services

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/drawlytics/drawlytics-go/internal/models"
)

// TransitionModel builds per-position value→value transition tables over
// consecutive draws and ranks next-value candidates conditioned on the
// current value.
type TransitionModel struct {
	logger *logrus.Logger
}

// NewTransitionModel creates a transition model.
func NewTransitionModel(logger *logrus.Logger) *TransitionModel {
	return &TransitionModel{logger: logger}
}

// BuildTransitions walks every consecutive draw pair and returns, per
// fromValue, the observed transitions with counts normalized to
// probabilities. For any fromValue with at least one observation the
// probabilities sum to 1.
func (m *TransitionModel) BuildTransitions(position int, snap *models.Snapshot) map[int][]models.Transition {
	type key struct{ from, to int }
	counts := make(map[key]*models.Transition)
	totals := make(map[int]int)

	for i := 1; i < snap.TotalDraws(); i++ {
		from := snap.Draws[i-1].Numbers[position]
		to := snap.Draws[i].Numbers[position]
		k := key{from, to}
		t, ok := counts[k]
		if !ok {
			t = &models.Transition{FromValue: from, ToValue: to}
			counts[k] = t
		}
		t.Count++
		t.LastSeenIndex = i
		totals[from]++
	}

	table := make(map[int][]models.Transition, len(totals))
	for k, t := range counts {
		t.Probability = float64(t.Count) / float64(totals[k.from])
		table[k.from] = append(table[k.from], *t)
	}
	for from := range table {
		bucket := table[from]
		sort.Slice(bucket, func(i, j int) bool {
			return bucket[i].ToValue < bucket[j].ToValue
		})
		table[from] = bucket
	}

	m.logger.WithFields(logrus.Fields{
		"position":    position,
		"from_values": len(table),
		"pairs":       snap.TotalDraws() - 1,
	}).Debug("Built transition table")

	return table
}

// PredictNext returns up to topK next-value candidates from currentValue,
// sorted descending by skip-adjusted probability. Ties go to the transition
// seen most recently, then to the smaller toValue. A current value with no
// recorded transitions yields an empty list; callers fall back to due-ness.
func (m *TransitionModel) PredictNext(position, currentValue, topK int, snap *models.Snapshot) []models.PredictedTransition {
	table := m.BuildTransitions(position, snap)
	bucket, ok := table[currentValue]
	if !ok || topK <= 0 {
		return nil
	}

	adjust := skipAdjustment(skipCount(position, currentValue, snap))
	ranked := make([]models.PredictedTransition, 0, len(bucket))
	for _, t := range bucket {
		ranked = append(ranked, models.PredictedTransition{
			Transition:          t,
			AdjustedProbability: t.Probability * adjust,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].AdjustedProbability != ranked[j].AdjustedProbability {
			return ranked[i].AdjustedProbability > ranked[j].AdjustedProbability
		}
		if ranked[i].LastSeenIndex != ranked[j].LastSeenIndex {
			return ranked[i].LastSeenIndex > ranked[j].LastSeenIndex
		}
		return ranked[i].ToValue < ranked[j].ToValue
	})

	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	return ranked
}

// skipCount is the number of consecutive prior draws the position stayed on
// value before (and including up to) the latest draw. A latest draw holding
// a different value yields 0.
func skipCount(position, value int, snap *models.Snapshot) int {
	n := snap.TotalDraws()
	if n == 0 || snap.Draws[n-1].Numbers[position] != value {
		return 0
	}
	count := 0
	for i := n - 1; i > 0; i-- {
		if snap.Draws[i-1].Numbers[position] != value {
			break
		}
		count++
	}
	return count
}

// skipAdjustment down-weights persistent states: confidence in a transition
// out of a value decays the longer the position has sat on that value,
// floored at 0.1.
func skipAdjustment(skips int) float64 {
	w := 1 - float64(skips)*0.1
	if w < 0.1 {
		return 0.1
	}
	return w
}
