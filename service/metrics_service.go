package service

import (
	"fanshare/database"
	"runtime"
	"time"
)

// RuntimeStats is a small subset of runtime.MemStats plus process uptime.
type RuntimeStats struct {
	Goroutines    int    `json:"goroutines"`
	HeapAllocMB   uint64 `json:"heap_alloc_mb"`
	SysMB         uint64 `json:"sys_mb"`
	NumGC         uint32 `json:"num_gc"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// Metrics is the payload served by /api/metrics.
type Metrics struct {
	Statements database.StatementStats `json:"statements"`
	Runtime    RuntimeStats            `json:"runtime"`
}

// MetricsService reports database statement counters and runtime stats
type MetricsService struct {
	counter *database.StatementCounter
	started time.Time
}

// NewMetricsService constructs a metrics service
func NewMetricsService(counter *database.StatementCounter) *MetricsService {
	return &MetricsService{counter: counter, started: time.Now()}
}

// Snapshot collects the current metrics
func (s *MetricsService) Snapshot() Metrics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return Metrics{
		Statements: s.counter.Snapshot(),
		Runtime: RuntimeStats{
			Goroutines:    runtime.NumGoroutine(),
			HeapAllocMB:   m.HeapAlloc / 1024 / 1024,
			SysMB:         m.Sys / 1024 / 1024,
			NumGC:         m.NumGC,
			UptimeSeconds: int64(time.Since(s.started).Seconds()),
		},
	}
}
