package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drawlytics/drawlytics-go/internal/models"
)

func TestMemorySequenceStore_GetDraws(t *testing.T) {
	base := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	draws := make([]models.Draw, 0, 10)
	for i := 0; i < 10; i++ {
		draws = append(draws, models.Draw{
			Date:    base.AddDate(0, 0, i),
			Numbers: []int{i, i},
		})
	}
	store := NewMemorySequenceStore(draws)
	ctx := context.Background()

	all, err := store.GetDraws(ctx, models.DrawFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 10)

	since, err := store.GetDraws(ctx, models.DrawFilter{Since: base.AddDate(0, 0, 7)})
	require.NoError(t, err)
	require.Len(t, since, 3)
	assert.Equal(t, []int{7, 7}, since[0].Numbers)

	until, err := store.GetDraws(ctx, models.DrawFilter{Until: base.AddDate(0, 0, 2)})
	require.NoError(t, err)
	assert.Len(t, until, 3)

	limited, err := store.GetDraws(ctx, models.DrawFilter{Limit: 4})
	require.NoError(t, err)
	require.Len(t, limited, 4)
	assert.Equal(t, []int{0, 0}, limited[0].Numbers, "limit keeps the earliest draws in order")

	window, err := store.GetDraws(ctx, models.DrawFilter{
		Since: base.AddDate(0, 0, 2),
		Until: base.AddDate(0, 0, 5),
		Limit: 2,
	})
	require.NoError(t, err)
	require.Len(t, window, 2)
	assert.Equal(t, []int{2, 2}, window[0].Numbers)
	assert.Equal(t, []int{3, 3}, window[1].Numbers)
}
