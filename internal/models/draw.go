package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors shared across the analysis services.
var (
	// ErrInsufficientData indicates fewer draws than an operation's stated
	// minimum. Most operations degrade to neutral defaults instead of
	// returning it; cross-validation treats it as a hard failure.
	ErrInsufficientData = errors.New("insufficient draw data")

	// ErrInvalidCombination indicates a combination with the wrong arity or
	// an out-of-range value.
	ErrInvalidCombination = errors.New("invalid combination format")
)

// ValueRange is the closed integer range a position draws from.
type ValueRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Size returns the number of distinct values in the range.
func (r ValueRange) Size() int {
	return r.Max - r.Min + 1
}

// Contains reports whether v falls inside the range.
func (r ValueRange) Contains(v int) bool {
	return v >= r.Min && v <= r.Max
}

// Draw is a single multi-slot draw: an ordered tuple of positional values
// recorded at a point in time. Draws are immutable once recorded.
type Draw struct {
	Date    time.Time `json:"date"`
	Numbers []int     `json:"numbers"`
}

// Snapshot is an immutable, chronologically ordered view of the draw
// sequence together with the per-position value ranges. All analysis
// operations take a snapshot; none of them mutate it. The ID scopes cache
// keys so results from different snapshots never collide.
type Snapshot struct {
	ID     string       `json:"id"`
	Draws  []Draw       `json:"draws"`
	Ranges []ValueRange `json:"ranges"`
}

// NewSnapshot builds a snapshot over draws with the given per-position
// ranges. The draws slice is assumed sorted ascending by date; the snapshot
// takes ownership and callers must not mutate it afterwards.
func NewSnapshot(draws []Draw, ranges []ValueRange) *Snapshot {
	return &Snapshot{
		ID:     uuid.New().String(),
		Draws:  draws,
		Ranges: ranges,
	}
}

// Positions returns the number of positions per draw.
func (s *Snapshot) Positions() int {
	return len(s.Ranges)
}

// TotalDraws returns the number of draws in the snapshot.
func (s *Snapshot) TotalDraws() int {
	return len(s.Draws)
}

// Range returns the value range for a position.
func (s *Snapshot) Range(position int) ValueRange {
	return s.Ranges[position]
}

// ValidateCombination checks arity and per-position bounds against the
// snapshot's ranges. Callers are expected to validate before scoring;
// violations are caller misuse and surface as ErrInvalidCombination.
func (s *Snapshot) ValidateCombination(combination []int) error {
	if len(combination) != len(s.Ranges) {
		return fmt.Errorf("%w: expected %d values, got %d",
			ErrInvalidCombination, len(s.Ranges), len(combination))
	}
	for i, v := range combination {
		if !s.Ranges[i].Contains(v) {
			return fmt.Errorf("%w: position %d value %d outside [%d,%d]",
				ErrInvalidCombination, i, v, s.Ranges[i].Min, s.Ranges[i].Max)
		}
	}
	return nil
}

// CombinationSpaceSize returns the number of distinct straight combinations
// the snapshot's ranges admit.
func (s *Snapshot) CombinationSpaceSize() int64 {
	size := int64(1)
	for _, r := range s.Ranges {
		size *= int64(r.Size())
	}
	return size
}

// DrawFilter narrows a sequence-store query. Zero values mean "no bound".
type DrawFilter struct {
	Since time.Time `json:"since"`
	Until time.Time `json:"until"`
	Limit int       `json:"limit"`
}
