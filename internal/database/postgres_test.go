package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drawlytics/drawlytics-go/internal/models"
)

func TestDrawRepository_GetDraws(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	first := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	second := first.AddDate(0, 0, 1)

	mock.ExpectQuery("SELECT draw_date, numbers FROM draws ORDER BY draw_date ASC").
		WillReturnRows(pgxmock.NewRows([]string{"draw_date", "numbers"}).
			AddRow(first, []int{1, 2, 3, 4}).
			AddRow(second, []int{5, 6, 7, 8}))

	repo := NewDrawRepository(mock)
	draws, err := repo.GetDraws(context.Background(), models.DrawFilter{})
	require.NoError(t, err)

	require.Len(t, draws, 2)
	assert.Equal(t, first, draws[0].Date)
	assert.Equal(t, []int{1, 2, 3, 4}, draws[0].Numbers)
	assert.Equal(t, []int{5, 6, 7, 8}, draws[1].Numbers)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDrawRepository_GetDrawsWithFilter(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	since := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT draw_date, numbers FROM draws WHERE draw_date >= \$1 AND draw_date <= \$2 ORDER BY draw_date ASC LIMIT \$3`).
		WithArgs(since, until, 5).
		WillReturnRows(pgxmock.NewRows([]string{"draw_date", "numbers"}).
			AddRow(since.AddDate(0, 1, 0), []int{9, 0, 1, 2}))

	repo := NewDrawRepository(mock)
	draws, err := repo.GetDraws(context.Background(), models.DrawFilter{
		Since: since,
		Until: until,
		Limit: 5,
	})
	require.NoError(t, err)

	require.Len(t, draws, 1)
	assert.Equal(t, []int{9, 0, 1, 2}, draws[0].Numbers)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDrawRepository_GetDrawsQueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT draw_date, numbers FROM draws").
		WillReturnError(errors.New("connection reset"))

	repo := NewDrawRepository(mock)
	_, err = repo.GetDraws(context.Background(), models.DrawFilter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to query draws")
}
