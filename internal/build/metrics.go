package build

import (
	"sync"
	"time"
)

// BuildMetrics tracks build performance
type BuildMetrics struct {
	totalBuilds      int64
	successfulBuilds int64
	failedBuilds     int64
	cacheHits        int64
	totalDuration    time.Duration
	mutex            sync.RWMutex
}

// MetricsSnapshot is a copy of BuildMetrics suitable for JSON encoding.
type MetricsSnapshot struct {
	TotalBuilds      int64         `json:"total_builds"`
	SuccessfulBuilds int64         `json:"successful_builds"`
	FailedBuilds     int64         `json:"failed_builds"`
	CacheHits        int64         `json:"cache_hits"`
	AverageDuration  time.Duration `json:"average_duration_ns"`
	TotalDuration    time.Duration `json:"total_duration_ns"`
	CacheHitRate     float64       `json:"cache_hit_rate"`
	SuccessRate      float64       `json:"success_rate"`
}

// NewBuildMetrics creates a new build metrics tracker
func NewBuildMetrics() *BuildMetrics {
	return &BuildMetrics{}
}

// RecordBuild records a build result in the metrics
func (bm *BuildMetrics) RecordBuild(result BuildResult) {
	bm.mutex.Lock()
	defer bm.mutex.Unlock()

	bm.totalBuilds++
	bm.totalDuration += result.Duration

	if result.CacheHit {
		bm.cacheHits++
	}

	if result.Error != nil {
		bm.failedBuilds++
	} else {
		bm.successfulBuilds++
	}
}

// Snapshot returns a copy of the current metrics.
func (bm *BuildMetrics) Snapshot() MetricsSnapshot {
	bm.mutex.RLock()
	defer bm.mutex.RUnlock()

	snap := MetricsSnapshot{
		TotalBuilds:      bm.totalBuilds,
		SuccessfulBuilds: bm.successfulBuilds,
		FailedBuilds:     bm.failedBuilds,
		CacheHits:        bm.cacheHits,
		TotalDuration:    bm.totalDuration,
	}

	if bm.totalBuilds > 0 {
		snap.AverageDuration = bm.totalDuration / time.Duration(bm.totalBuilds)
		snap.CacheHitRate = float64(bm.cacheHits) / float64(bm.totalBuilds) * 100.0
		snap.SuccessRate = float64(bm.successfulBuilds) / float64(bm.totalBuilds) * 100.0
	}

	return snap
}

// Reset resets all metrics
func (bm *BuildMetrics) Reset() {
	bm.mutex.Lock()
	defer bm.mutex.Unlock()

	bm.totalBuilds = 0
	bm.successfulBuilds = 0
	bm.failedBuilds = 0
	bm.cacheHits = 0
	bm.totalDuration = 0
}
