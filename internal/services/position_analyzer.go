package services

import (
	"github.com/sirupsen/logrus"

	"github.com/drawlytics/drawlytics-go/internal/models"
)

// PositionAnalyzer derives per-value gap/skip statistics for a single
// position of the draw tuple. All methods are pure over the snapshot; the
// analyzer never returns an error and degrades to defaults for sparse data.
type PositionAnalyzer struct {
	logger *logrus.Logger
}

// NewPositionAnalyzer creates a position analyzer.
func NewPositionAnalyzer(logger *logrus.Logger) *PositionAnalyzer {
	return &PositionAnalyzer{logger: logger}
}

// AnalyzePosition computes a PositionStat for every value in the position's
// range. A value with zero occurrences yields a stat with the current gap
// equal to the snapshot size and a stable trend.
func (a *PositionAnalyzer) AnalyzePosition(position int, snap *models.Snapshot) map[int]*models.PositionStat {
	r := snap.Range(position)
	total := snap.TotalDraws()
	stats := make(map[int]*models.PositionStat, r.Size())

	hotThreshold := hotGapThreshold(total)
	coldThreshold := coldGapThreshold(total)

	// One chronological pass collects occurrence indices for every value.
	occurrences := make(map[int][]int, r.Size())
	for i, draw := range snap.Draws {
		v := draw.Numbers[position]
		occurrences[v] = append(occurrences[v], i)
	}

	for value := r.Min; value <= r.Max; value++ {
		stats[value] = a.buildStat(position, value, occurrences[value], total, hotThreshold, coldThreshold)
	}

	a.logger.WithFields(logrus.Fields{
		"position":       position,
		"values":         r.Size(),
		"total_draws":    total,
		"hot_threshold":  hotThreshold,
		"cold_threshold": coldThreshold,
	}).Debug("Analyzed position")

	return stats
}

func (a *PositionAnalyzer) buildStat(position, value int, indices []int, total, hotThreshold, coldThreshold int) *models.PositionStat {
	stat := &models.PositionStat{
		Position:      position,
		Value:         value,
		LastSeenIndex: -1,
		Trend:         models.TrendStable,
	}

	if len(indices) == 0 {
		stat.CurrentGap = total
		stat.IsCold = total > 0 && stat.CurrentGap >= coldThreshold
		return stat
	}

	stat.TotalAppearances = len(indices)
	stat.LastSeenIndex = indices[len(indices)-1]
	stat.CurrentGap = (total - 1) - stat.LastSeenIndex

	// Skip history: gaps between consecutive occurrences, then the trailing
	// gap from the last occurrence to the end of the snapshot.
	gaps := make([]int, 0, len(indices))
	for i := 1; i < len(indices); i++ {
		gaps = append(gaps, indices[i]-indices[i-1])
	}
	gaps = append(gaps, stat.CurrentGap)
	stat.SkipHistory = gaps

	sum := 0
	stat.MinGap = gaps[0]
	stat.MaxGap = gaps[0]
	for _, g := range gaps {
		sum += g
		if g < stat.MinGap {
			stat.MinGap = g
		}
		if g > stat.MaxGap {
			stat.MaxGap = g
		}
	}
	stat.AverageGap = float64(sum) / float64(len(gaps))

	stat.IsHot = stat.CurrentGap <= hotThreshold
	if !stat.IsHot {
		stat.IsCold = stat.CurrentGap >= coldThreshold
	}
	stat.Trend = gapTrend(gaps)

	return stat
}

// hotGapThreshold: a value is hot when its current gap is at most
// max(3, 10% of the snapshot size).
func hotGapThreshold(totalDraws int) int {
	t := totalDraws / 10
	if t < 3 {
		t = 3
	}
	return t
}

// coldGapThreshold: a value is cold when its current gap is at least
// max(5, 20% of the snapshot size).
func coldGapThreshold(totalDraws int) int {
	t := totalDraws / 5
	if t < 5 {
		t = 5
	}
	return t
}

// gapTrend compares the mean of the most recent three gaps against the
// preceding three. A relative change of at least 20% selects
// increasing/decreasing; fewer than six recorded gaps forces stable.
func gapTrend(gaps []int) models.Trend {
	if len(gaps) < 6 {
		return models.TrendStable
	}
	recent := meanInts(gaps[len(gaps)-3:])
	previous := meanInts(gaps[len(gaps)-6 : len(gaps)-3])
	if previous == 0 {
		return models.TrendStable
	}
	change := (recent - previous) / previous
	switch {
	case change >= 0.2:
		return models.TrendIncreasing
	case change <= -0.2:
		return models.TrendDecreasing
	default:
		return models.TrendStable
	}
}

func meanInts(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}
