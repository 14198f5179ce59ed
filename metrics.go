package memdisk

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordTransfer is called after each submitted request.
	// op is the request direction, bytes is the number of payload bytes of
	// completed segments, duration is the total time taken, err is nil if
	// all segments completed.
	RecordTransfer(op Op, bytes int, duration time.Duration, err error)

	// RecordCreate is called after each create or probe operation.
	RecordCreate(duration time.Duration, err error)

	// RecordDestroy is called after each destroy operation.
	// pagesFreed is the number of pages released during teardown.
	RecordDestroy(pagesFreed uint64, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordTransfer(Op, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordCreate(time.Duration, error)            {}
func (NoopMetricsCollector) RecordDestroy(uint64, time.Duration, error)   {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	ReadCount         atomic.Int64
	ReadBytes         atomic.Int64
	ReadErrors        atomic.Int64
	ReadTotalNanos    atomic.Int64
	WriteCount        atomic.Int64
	WriteBytes        atomic.Int64
	WriteErrors       atomic.Int64
	WriteTotalNanos   atomic.Int64
	CreateCount       atomic.Int64
	CreateErrors      atomic.Int64
	DestroyCount      atomic.Int64
	DestroyErrors     atomic.Int64
	DestroyPagesFreed atomic.Int64
}

// RecordTransfer implements MetricsCollector.
func (b *BasicMetricsCollector) RecordTransfer(op Op, bytes int, duration time.Duration, err error) {
	if op == OpWrite {
		b.WriteCount.Add(1)
		b.WriteBytes.Add(int64(bytes))
		b.WriteTotalNanos.Add(duration.Nanoseconds())
		if err != nil {
			b.WriteErrors.Add(1)
		}
		return
	}
	b.ReadCount.Add(1)
	b.ReadBytes.Add(int64(bytes))
	b.ReadTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ReadErrors.Add(1)
	}
}

// RecordCreate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCreate(duration time.Duration, err error) {
	b.CreateCount.Add(1)
	if err != nil {
		b.CreateErrors.Add(1)
	}
}

// RecordDestroy implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDestroy(pagesFreed uint64, duration time.Duration, err error) {
	b.DestroyCount.Add(1)
	b.DestroyPagesFreed.Add(int64(pagesFreed))
	if err != nil {
		b.DestroyErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		ReadCount:         b.ReadCount.Load(),
		ReadBytes:         b.ReadBytes.Load(),
		ReadErrors:        b.ReadErrors.Load(),
		ReadAvgNanos:      avgNanos(&b.ReadTotalNanos, &b.ReadCount),
		WriteCount:        b.WriteCount.Load(),
		WriteBytes:        b.WriteBytes.Load(),
		WriteErrors:       b.WriteErrors.Load(),
		WriteAvgNanos:     avgNanos(&b.WriteTotalNanos, &b.WriteCount),
		CreateCount:       b.CreateCount.Load(),
		CreateErrors:      b.CreateErrors.Load(),
		DestroyCount:      b.DestroyCount.Load(),
		DestroyErrors:     b.DestroyErrors.Load(),
		DestroyPagesFreed: b.DestroyPagesFreed.Load(),
	}
}

func avgNanos(total, count *atomic.Int64) int64 {
	n := count.Load()
	if n == 0 {
		return 0
	}
	return total.Load() / n
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	ReadCount         int64
	ReadBytes         int64
	ReadErrors        int64
	ReadAvgNanos      int64
	WriteCount        int64
	WriteBytes        int64
	WriteErrors       int64
	WriteAvgNanos     int64
	CreateCount       int64
	CreateErrors      int64
	DestroyCount      int64
	DestroyErrors     int64
	DestroyPagesFreed int64
}
