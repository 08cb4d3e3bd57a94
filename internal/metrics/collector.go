// Package metrics aggregates latency and outcome counts for backend calls.
package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Collector records per-call metrics in a thread-safe manner.
type Collector struct {
	mu         sync.Mutex
	hist       *hdrhistogram.Histogram
	successes  int64
	failures   int64
	byOp       map[string]*opCounts
	start      time.Time
}

type opCounts struct {
	calls    int64
	failures int64
	byKind   map[string]int64
}

// Stats is an aggregated snapshot.
type Stats struct {
	Total          int64
	Successes      int64
	Failures       int64
	P50Latency     time.Duration
	P90Latency     time.Duration
	P99Latency     time.Duration
	Duration       time.Duration
	RequestsPerSec float64
	Operations     []OpStats
}

type OpStats struct {
	Operation string
	Calls     int64
	Failures  int64
	ByKind    map[string]int64
}

func NewCollector() *Collector {
	// Track latencies from 1µs up to 60s with 3 significant figures.
	h := hdrhistogram.New(1, 60_000_000, 3)
	return &Collector{
		hist:  h,
		byOp:  make(map[string]*opCounts),
		start: time.Now(),
	}
}

// RecordCall records one backend call. kind is empty for success, otherwise
// the outcome classification (rate_limited, transport, ...).
func (c *Collector) RecordCall(op string, latency time.Duration, kind string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.hist.RecordValue(latency.Microseconds())

	counts, ok := c.byOp[op]
	if !ok {
		counts = &opCounts{byKind: make(map[string]int64)}
		c.byOp[op] = counts
	}
	counts.calls++

	if kind == "" {
		c.successes++
		return
	}
	c.failures++
	counts.failures++
	counts.byKind[kind]++
}

// Snapshot returns aggregated stats since the collector was created.
func (c *Collector) Snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	elapsed := time.Since(c.start)
	total := c.successes + c.failures

	stats := Stats{
		Total:      total,
		Successes:  c.successes,
		Failures:   c.failures,
		P50Latency: time.Duration(c.hist.ValueAtQuantile(50)) * time.Microsecond,
		P90Latency: time.Duration(c.hist.ValueAtQuantile(90)) * time.Microsecond,
		P99Latency: time.Duration(c.hist.ValueAtQuantile(99)) * time.Microsecond,
		Duration:   elapsed,
	}
	if elapsed > 0 {
		stats.RequestsPerSec = float64(total) / elapsed.Seconds()
	}

	ops := make([]string, 0, len(c.byOp))
	for op := range c.byOp {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	for _, op := range ops {
		counts := c.byOp[op]
		byKind := make(map[string]int64, len(counts.byKind))
		for k, v := range counts.byKind {
			byKind[k] = v
		}
		stats.Operations = append(stats.Operations, OpStats{
			Operation: op,
			Calls:     counts.calls,
			Failures:  counts.failures,
			ByKind:    byKind,
		})
	}
	return stats
}
