package interceptors

import (
	"sync"
	"time"
)

// Counters is an in-memory MetricsCollector
type Counters struct {
	mu         sync.RWMutex
	directives map[string]int64
	errors     map[string]map[string]int64
	durations  map[string]time.Duration
	started    time.Time
}

// NewCounters creates an empty collector
func NewCounters() *Counters {
	return &Counters{
		directives: make(map[string]int64),
		errors:     make(map[string]map[string]int64),
		durations:  make(map[string]time.Duration),
		started:    time.Now(),
	}
}

// IncrementDirectiveCount implements MetricsCollector
func (c *Counters) IncrementDirectiveCount(directiveType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.directives[directiveType]++
}

// RecordProcessingTime implements MetricsCollector
func (c *Counters) RecordProcessingTime(directiveType string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.durations[directiveType] += duration
}

// IncrementErrorCount implements MetricsCollector
func (c *Counters) IncrementErrorCount(directiveType string, errorType string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	byType, ok := c.errors[directiveType]
	if !ok {
		byType = make(map[string]int64)
		c.errors[directiveType] = byType
	}
	byType[errorType]++
}

// DirectiveStats is the snapshot of one directive type
type DirectiveStats struct {
	Count             int64            `json:"count"`
	Errors            map[string]int64 `json:"errors,omitempty"`
	AverageDurationMs float64          `json:"averageDurationMs"`
}

// CountersSnapshot is a point-in-time copy of the counters
type CountersSnapshot struct {
	Uptime     string                    `json:"uptime"`
	Total      int64                     `json:"total"`
	Failed     int64                     `json:"failed"`
	Directives map[string]DirectiveStats `json:"directives"`
}

// Snapshot returns a copy of the current counters
func (c *Counters) Snapshot() CountersSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snapshot := CountersSnapshot{
		Uptime:     time.Since(c.started).Round(time.Second).String(),
		Directives: make(map[string]DirectiveStats, len(c.directives)),
	}

	for directiveType, count := range c.directives {
		stats := DirectiveStats{Count: count}
		if count > 0 {
			stats.AverageDurationMs = float64(c.durations[directiveType].Microseconds()) / 1000 / float64(count)
		}
		if byType := c.errors[directiveType]; len(byType) > 0 {
			stats.Errors = make(map[string]int64, len(byType))
			for errorType, n := range byType {
				stats.Errors[errorType] = n
				snapshot.Failed += n
			}
		}
		snapshot.Total += count
		snapshot.Directives[directiveType] = stats
	}

	return snapshot
}
