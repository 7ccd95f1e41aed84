package services

import (
	"context"

	"github.com/drawlytics/drawlytics-go/internal/models"
)

// SequenceStore supplies the ordered draw history. Implementations must
// return draws sorted ascending by date. The engine never mutates what it
// receives.
type SequenceStore interface {
	GetDraws(ctx context.Context, filter models.DrawFilter) ([]models.Draw, error)
}

// PredictFunc produces predictions from a training slice. Cross-validation
// isolates failures (errors and panics) per fold, so implementations may be
// supplied by callers outside this module.
type PredictFunc func(train []models.Draw, testSize int) ([]models.Prediction, error)

// MemorySequenceStore is an in-process SequenceStore over a fixed slice.
// It backs tests and one-shot analysis runs where draws are already loaded.
type MemorySequenceStore struct {
	draws []models.Draw
}

// NewMemorySequenceStore wraps draws, assumed sorted ascending by date.
func NewMemorySequenceStore(draws []models.Draw) *MemorySequenceStore {
	return &MemorySequenceStore{draws: draws}
}

// GetDraws returns draws matching the filter, preserving order.
func (m *MemorySequenceStore) GetDraws(_ context.Context, filter models.DrawFilter) ([]models.Draw, error) {
	out := make([]models.Draw, 0, len(m.draws))
	for _, d := range m.draws {
		if !filter.Since.IsZero() && d.Date.Before(filter.Since) {
			continue
		}
		if !filter.Until.IsZero() && d.Date.After(filter.Until) {
			continue
		}
		out = append(out, d)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}
