package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/drawlytics/drawlytics-go/internal/models"
)

// RedisReportStore persists finished cross-validation reports and cache-stat
// snapshots to Redis with a TTL. The analysis core never reads through it;
// only the shell uses it so operators can inspect past runs.
type RedisReportStore struct {
	redis  *redis.Client
	ttl    time.Duration
	prefix string
	logger *logrus.Logger
}

// NewRedisReportStore creates a report store writing under "drawlytics:".
func NewRedisReportStore(client *redis.Client, ttl time.Duration, logger *logrus.Logger) *RedisReportStore {
	return &RedisReportStore{
		redis:  client,
		ttl:    ttl,
		prefix: "drawlytics:",
		logger: logger,
	}
}

// SaveReport stores a cross-validation report under its ID.
func (s *RedisReportStore) SaveReport(ctx context.Context, report *models.CrossValidationReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize report %s: %w", report.ID, err)
	}
	key := s.prefix + "report:" + report.ID
	if err := s.redis.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store report %s: %w", report.ID, err)
	}
	s.logger.WithFields(logrus.Fields{
		"report_id": report.ID,
		"folds":     len(report.Folds),
		"ttl":       s.ttl,
	}).Info("Stored cross-validation report")
	return nil
}

// LoadReport fetches a report by ID. A missing or expired report returns
// (nil, false, nil).
func (s *RedisReportStore) LoadReport(ctx context.Context, id string) (*models.CrossValidationReport, bool, error) {
	data, err := s.redis.Get(ctx, s.prefix+"report:"+id).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load report %s: %w", id, err)
	}
	var report models.CrossValidationReport
	if err := json.Unmarshal([]byte(data), &report); err != nil {
		return nil, false, fmt.Errorf("failed to deserialize report %s: %w", id, err)
	}
	return &report, true, nil
}

// ListReportIDs returns the IDs of all stored reports.
func (s *RedisReportStore) ListReportIDs(ctx context.Context) ([]string, error) {
	pattern := s.prefix + "report:*"
	var ids []string
	iter := s.redis.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		ids = append(ids, key[len(s.prefix)+len("report:"):])
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan report keys: %w", err)
	}
	return ids, nil
}

// SaveCacheStats stores the latest result-cache statistics snapshot.
func (s *RedisReportStore) SaveCacheStats(ctx context.Context, stats Stats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to serialize cache stats: %w", err)
	}
	if err := s.redis.Set(ctx, s.prefix+"cache:stats", data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store cache stats: %w", err)
	}
	return nil
}

// LoadCacheStats fetches the last stored cache-stat snapshot.
func (s *RedisReportStore) LoadCacheStats(ctx context.Context) (Stats, bool, error) {
	data, err := s.redis.Get(ctx, s.prefix+"cache:stats").Result()
	if err == redis.Nil {
		return Stats{}, false, nil
	}
	if err != nil {
		return Stats{}, false, fmt.Errorf("failed to load cache stats: %w", err)
	}
	var stats Stats
	if err := json.Unmarshal([]byte(data), &stats); err != nil {
		return Stats{}, false, fmt.Errorf("failed to deserialize cache stats: %w", err)
	}
	return stats, true, nil
}
