package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/drawlytics/drawlytics-go/internal/config"
	"github.com/drawlytics/drawlytics-go/internal/models"
)

// PostgresDB wraps the pgx connection pool.
type PostgresDB struct {
	Pool *pgxpool.Pool
}

// NewPostgresConnection builds a pooled connection from config. A non-empty
// DatabaseURL wins over the discrete fields.
func NewPostgresConnection(ctx context.Context, cfg *config.DatabaseConfig) (*PostgresDB, error) {
	dsn := cfg.DatabaseURL
	if dsn == "" {
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName, cfg.SSLMode)
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresDB{Pool: pool}, nil
}

// Close releases the pool.
func (db *PostgresDB) Close() {
	db.Pool.Close()
}

// Querier is the subset of pgx the draw repository needs; pgxmock
// implements it in tests.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// DrawRepository reads the ordered draw history from postgres. It
// implements the engine's sequence-store contract; the engine itself never
// sees the driver.
type DrawRepository struct {
	db Querier
}

// NewDrawRepository creates a repository over a pgx pool or mock.
func NewDrawRepository(db Querier) *DrawRepository {
	return &DrawRepository{db: db}
}

// GetDraws returns draws matching the filter, ordered ascending by date.
func (r *DrawRepository) GetDraws(ctx context.Context, filter models.DrawFilter) ([]models.Draw, error) {
	query := `SELECT draw_date, numbers FROM draws`
	var (
		conds []string
		args  []any
	)
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		conds = append(conds, fmt.Sprintf("draw_date >= $%d", len(args)))
	}
	if !filter.Until.IsZero() {
		args = append(args, filter.Until)
		conds = append(conds, fmt.Sprintf("draw_date <= $%d", len(args)))
	}
	for i, cond := range conds {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY draw_date ASC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query draws: %w", err)
	}
	defer rows.Close()

	var draws []models.Draw
	for rows.Next() {
		var (
			date    time.Time
			numbers []int
		)
		if err := rows.Scan(&date, &numbers); err != nil {
			return nil, fmt.Errorf("failed to scan draw row: %w", err)
		}
		draws = append(draws, models.Draw{Date: date, Numbers: numbers})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate draw rows: %w", err)
	}
	return draws, nil
}
