package services

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"

	"github.com/drawlytics/drawlytics-go/internal/cache"
)

// MemorySnapshot captures system memory state at a point in time.
type MemorySnapshot struct {
	Timestamp   time.Time `json:"timestamp"`
	UsedPercent float64   `json:"used_percent"`
	HeapBytes   uint64    `json:"heap_bytes"`
	Goroutines  int       `json:"goroutines"`
}

// ResourceMonitor samples system memory and shrinks the result cache when
// the host comes under pressure. The cache's own budget bounds it in steady
// state; the monitor bounds the long tail when the whole process is
// squeezed.
type ResourceMonitor struct {
	mu              sync.RWMutex
	pressurePercent float64
	history         []MemorySnapshot
	maxHistory      int
	lastUsedPercent float64
	logger          *logrus.Logger
}

// NewResourceMonitor creates a monitor that treats system memory usage at
// or above pressurePercent as pressure. Out-of-range thresholds fall back
// to 85%.
func NewResourceMonitor(pressurePercent float64, logger *logrus.Logger) *ResourceMonitor {
	if pressurePercent <= 0 || pressurePercent >= 100 {
		pressurePercent = 85
	}
	return &ResourceMonitor{
		pressurePercent: pressurePercent,
		maxHistory:      100,
		logger:          logger,
	}
}

// Sample records the current memory state.
func (r *ResourceMonitor) Sample(ctx context.Context) (MemorySnapshot, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return MemorySnapshot{}, fmt.Errorf("failed to read system memory: %w", err)
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	snapshot := MemorySnapshot{
		Timestamp:   time.Now(),
		UsedPercent: vm.UsedPercent,
		HeapBytes:   ms.HeapAlloc,
		Goroutines:  runtime.NumGoroutine(),
	}

	r.mu.Lock()
	r.lastUsedPercent = vm.UsedPercent
	r.history = append(r.history, snapshot)
	if len(r.history) > r.maxHistory {
		r.history = r.history[1:]
	}
	r.mu.Unlock()

	return snapshot, nil
}

// UnderPressure reports whether the last sample crossed the threshold.
func (r *ResourceMonitor) UnderPressure() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastUsedPercent >= r.pressurePercent
}

// CheckAndOptimize samples memory and, under pressure, runs the cache's
// optimize sweep. Returns how many entries were dropped.
func (r *ResourceMonitor) CheckAndOptimize(ctx context.Context, c *cache.ResultCache) (int, error) {
	snapshot, err := r.Sample(ctx)
	if err != nil {
		return 0, err
	}
	if snapshot.UsedPercent < r.pressurePercent {
		return 0, nil
	}

	removed := c.Optimize()
	r.logger.WithFields(logrus.Fields{
		"used_percent": snapshot.UsedPercent,
		"threshold":    r.pressurePercent,
		"removed":      removed,
	}).Info("Memory pressure detected, optimized result cache")
	return removed, nil
}

// History returns up to limit recent snapshots, newest last.
func (r *ResourceMonitor) History(limit int) []MemorySnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if limit <= 0 || limit > len(r.history) {
		limit = len(r.history)
	}
	out := make([]MemorySnapshot, limit)
	copy(out, r.history[len(r.history)-limit:])
	return out
}
