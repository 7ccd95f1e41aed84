package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/drawlytics/drawlytics-go/internal/cache"
	"github.com/drawlytics/drawlytics-go/internal/config"
	"github.com/drawlytics/drawlytics-go/internal/database"
	"github.com/drawlytics/drawlytics-go/internal/logging"
	"github.com/drawlytics/drawlytics-go/internal/models"
	"github.com/drawlytics/drawlytics-go/internal/services"
	"github.com/drawlytics/drawlytics-go/internal/telemetry"
)

// Per-position value ranges of the analyzed game. The draw history in the
// database must respect these bounds.
var drawRanges = []models.ValueRange{
	{Min: 0, Max: 9},
	{Min: 0, Max: 9},
	{Min: 0, Max: 9},
	{Min: 0, Max: 9},
}

func main() {
	// Load .env before config so local runs pick up overrides
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.Environment)

	shutdownTracing, err := telemetry.Init(cfg.Environment == "development")
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize tracing")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("Shutdown signal received, cancelling analysis")
		cancel()
	}()

	db, err := database.NewPostgresConnection(ctx, &cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	redisClient, err := database.NewRedisConnection(ctx, cfg.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to redis")
	}
	defer redisClient.Close()

	repo := database.NewDrawRepository(db.Pool)
	draws, err := repo.GetDraws(ctx, models.DrawFilter{})
	if err != nil {
		logger.WithError(err).Fatal("Failed to load draw history")
	}
	if len(draws) == 0 {
		logger.Fatal("Draw history is empty, nothing to analyze")
	}

	snap := models.NewSnapshot(draws, drawRanges)
	resultCache := cache.NewResultCache(cache.ResultCacheConfig{
		MaxEntries:      cfg.Cache.MaxEntries,
		MaxMemoryBytes:  cfg.Cache.MaxMemoryBytes,
		TTL:             cfg.CacheTTL(),
		StaleWindow:     cfg.CacheStaleWindow(),
		LargeEntryBytes: cfg.Cache.LargeEntryBytes,
	})
	engine := services.NewAnalysisEngine(cfg, snap, resultCache, logger)
	monitor := services.NewResourceMonitor(cfg.Resources.MemoryPressurePercent, logger)

	logger.WithFields(logrus.Fields{
		"snapshot":  snap.ID,
		"draws":     snap.TotalDraws(),
		"positions": snap.Positions(),
	}).Info("Starting analysis run")

	reportHotValues(engine, snap, logger)

	top, err := engine.GetTopCombinations(ctx, 10)
	if err != nil {
		logger.WithError(err).Fatal("Top-combination scan failed")
	}
	for rank, score := range top {
		logger.WithFields(logrus.Fields{
			"rank":        rank + 1,
			"combination": score.Combination,
			"total":       score.Total.String(),
			"confidence":  score.Confidence.String(),
		}).Info("Top combination")
	}

	report, err := engine.CrossValidate(ctx, engine.DuePredictor(), cfg.Validation.DefaultFolds)
	if err != nil {
		logger.WithError(err).Fatal("Cross-validation failed")
	}
	logger.WithFields(logrus.Fields{
		"report_id":     report.ID,
		"mean_accuracy": report.MeanAccuracy,
		"stddev":        report.StdDevAccuracy,
		"best_fold":     report.BestFoldIndex,
		"worst_fold":    report.WorstFoldIndex,
	}).Info("Cross-validation of due-ness predictor")

	reportStore := cache.NewRedisReportStore(redisClient, cfg.ReportTTL(), logger)
	if err := reportStore.SaveReport(ctx, report); err != nil {
		logger.WithError(err).Warn("Failed to persist cross-validation report")
	}

	if _, err := monitor.CheckAndOptimize(ctx, resultCache); err != nil {
		logger.WithError(err).Warn("Resource check failed")
	}

	stats := engine.GetCacheStats()
	if err := reportStore.SaveCacheStats(ctx, stats); err != nil {
		logger.WithError(err).Warn("Failed to persist cache stats")
	}
	logger.WithFields(logrus.Fields{
		"entries":        stats.Size,
		"memory_bytes":   stats.MemoryUsage,
		"memory_percent": stats.MemoryPercent,
		"hit_rate":       stats.HitRate,
	}).Info("Analysis run complete")

	if err := shutdownTracing(context.Background()); err != nil {
		logger.WithError(err).Warn("Tracer shutdown failed")
	}
}

func reportHotValues(engine *services.AnalysisEngine, snap *models.Snapshot, logger *logrus.Logger) {
	for pos := 0; pos < snap.Positions(); pos++ {
		stats := engine.GetPositionStats(pos)
		var hot []int
		for value, stat := range stats {
			if stat.IsHot {
				hot = append(hot, value)
			}
		}
		sort.Ints(hot)
		logger.WithFields(logrus.Fields{
			"position":   pos,
			"hot_values": hot,
		}).Info("Position hot values")
	}
}
