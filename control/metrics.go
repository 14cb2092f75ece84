// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Runtime counters for the wait engine and the one-shot wait.
// A nil *MetricsRegistry accepts every call and records nothing.

package control

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metric keys published by this module.
const (
	MetricAdds          = "engine.adds"
	MetricRemoves       = "engine.removes"
	MetricCompletions   = "engine.completions"
	MetricRearmFailures = "engine.rearm_failures"
	MetricStale         = "engine.stale"
	MetricTimeouts      = "engine.timeouts"
	MetricAlerts        = "engine.alerts"
	MetricDeferred      = "engine.deferred"
	MetricSlots         = "engine.slots"
	MetricOneShotWaits  = "oneshot.waits"
	MetricOneShotFired  = "oneshot.fired"
)

// MetricsRegistry holds monotonic counters and last-value gauges.
type MetricsRegistry struct {
	mu       sync.RWMutex
	counters map[string]*atomic.Int64
	gauges   map[string]any
	updated  time.Time
}

// NewMetricsRegistry creates an empty registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		counters: make(map[string]*atomic.Int64),
		gauges:   make(map[string]any),
	}
}

// Add increments counter key by delta.
func (mr *MetricsRegistry) Add(key string, delta int64) {
	if mr == nil {
		return
	}
	mr.mu.RLock()
	c, ok := mr.counters[key]
	mr.mu.RUnlock()
	if !ok {
		mr.mu.Lock()
		if c, ok = mr.counters[key]; !ok {
			c = new(atomic.Int64)
			mr.counters[key] = c
		}
		mr.mu.Unlock()
	}
	c.Add(delta)
}

// Inc increments counter key by one.
func (mr *MetricsRegistry) Inc(key string) { mr.Add(key, 1) }

// Counter returns the current value of counter key.
func (mr *MetricsRegistry) Counter(key string) int64 {
	if mr == nil {
		return 0
	}
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	if c, ok := mr.counters[key]; ok {
		return c.Load()
	}
	return 0
}

// Set sets or updates a gauge.
func (mr *MetricsRegistry) Set(key string, value any) {
	if mr == nil {
		return
	}
	mr.mu.Lock()
	mr.gauges[key] = value
	mr.updated = time.Now()
	mr.mu.Unlock()
}

// GetSnapshot returns counters and gauges in one map.
func (mr *MetricsRegistry) GetSnapshot() map[string]any {
	if mr == nil {
		return map[string]any{}
	}
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	out := make(map[string]any, len(mr.counters)+len(mr.gauges))
	for k, v := range mr.gauges {
		out[k] = v
	}
	for k, c := range mr.counters {
		out[k] = c.Load()
	}
	return out
}

// Updated returns the time of the last gauge update.
func (mr *MetricsRegistry) Updated() time.Time {
	if mr == nil {
		return time.Time{}
	}
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return mr.updated
}
