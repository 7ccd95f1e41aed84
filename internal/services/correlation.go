package services

import (
	"context"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/drawlytics/drawlytics-go/internal/models"
	"github.com/drawlytics/drawlytics-go/internal/stats"
)

// Correlator computes pairwise correlation between positions' value
// sequences. Pairs are unordered and computed once.
type Correlator struct {
	logger *logrus.Logger
}

// NewCorrelator creates a correlator.
func NewCorrelator(logger *logrus.Logger) *Correlator {
	return &Correlator{logger: logger}
}

// Correlate returns the correlation between two positions over the full
// snapshot. Zero-variance sequences are guarded: coefficient 0, weak
// strength, significance 0.
func (c *Correlator) Correlate(positionA, positionB int, snap *models.Snapshot) models.Correlation {
	if positionA > positionB {
		positionA, positionB = positionB, positionA
	}

	n := snap.TotalDraws()
	x := make([]float64, n)
	y := make([]float64, n)
	for i, draw := range snap.Draws {
		x[i] = float64(draw.Numbers[positionA])
		y[i] = float64(draw.Numbers[positionB])
	}

	r := stats.Pearson(x, y)
	cor := models.Correlation{
		PositionA:   positionA,
		PositionB:   positionB,
		Coefficient: r,
		Strength:    correlationStrength(r),
		SampleSize:  n,
	}
	if r != 0 {
		cor.Significance = stats.CorrelationSignificance(r, n)
	}
	return cor
}

// CorrelationMatrix computes every unordered position pair, yielding to ctx
// between pairs so long scans over many positions stay cancellable.
func (c *Correlator) CorrelationMatrix(ctx context.Context, snap *models.Snapshot) ([]models.Correlation, error) {
	positions := snap.Positions()
	out := make([]models.Correlation, 0, positions*(positions-1)/2)
	for a := 0; a < positions; a++ {
		for b := a + 1; b < positions; b++ {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("correlation matrix cancelled at pair (%d,%d): %w", a, b, err)
			}
			out = append(out, c.Correlate(a, b, snap))
		}
	}

	c.logger.WithFields(logrus.Fields{
		"positions": positions,
		"pairs":     len(out),
	}).Debug("Computed correlation matrix")

	return out, nil
}

func correlationStrength(r float64) models.CorrelationStrength {
	abs := math.Abs(r)
	switch {
	case abs < 0.3:
		return models.CorrelationWeak
	case abs < 0.7:
		return models.CorrelationModerate
	default:
		return models.CorrelationStrong
	}
}
