package memdisk

import "log/slog"

type options struct {
	sectorSize      int
	pageSize        int
	defaultCapacity uint64 // sectors, used by Probe and initial devices
	initialDevices  int
	memoryLimit     int64 // bytes of page memory across all devices, 0 = unlimited
	teardownWorkers int64
	teardownRate    int64 // bytes/sec page release pacing, 0 = unlimited
	metrics         MetricsCollector
	logger          *Logger
}

// Option configures registry construction.
type Option func(*options)

// WithSectorSize configures the addressing unit in bytes. Must be a power of
// two of at least MinSectorSize and no larger than the page size.
func WithSectorSize(n int) Option {
	return func(o *options) {
		o.sectorSize = n
	}
}

// WithPageSize configures the allocation unit in bytes. Must be a power-of-two
// multiple of the sector size. Larger pages amortize store overhead for dense
// workloads; smaller pages waste less memory on scattered writes.
func WithPageSize(n int) Option {
	return func(o *options) {
		o.pageSize = n
	}
}

// WithDefaultCapacity configures the capacity in sectors given to devices
// created by Probe and to the initial device population.
func WithDefaultCapacity(sectors uint64) Option {
	return func(o *options) {
		o.defaultCapacity = sectors
	}
}

// WithInitialDevices pre-creates devices 0..n-1 at registry construction,
// each at the default capacity. Further devices can still be created
// explicitly or on demand via Probe.
func WithInitialDevices(n int) Option {
	return func(o *options) {
		o.initialDevices = n
	}
}

// WithMemoryLimit caps the total bytes of page memory held across all
// devices. Writes that would exceed the cap fail with ErrNoSpace.
// Zero means unlimited (usage is still tracked).
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithTeardownWorkers bounds how many devices Close tears down concurrently.
// Defaults to 1.
func WithTeardownWorkers(n int64) Option {
	return func(o *options) {
		o.teardownWorkers = n
	}
}

// WithTeardownRate paces bulk page release during destroy to the given
// bytes per second, keeping very large teardowns from monopolizing memory
// bandwidth. Zero means unpaced; teardown still yields between batches.
func WithTeardownRate(bytesPerSec int64) Option {
	return func(o *options) {
		o.teardownRate = bytesPerSec
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
//
// Example with BasicMetricsCollector:
//
//	metrics := &memdisk.BasicMetricsCollector{}
//	reg, _ := memdisk.New(memdisk.WithMetricsCollector(metrics))
//	// ... use reg ...
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metrics = mc
	}
}

// WithLogger configures structured logging for operations.
//
// Example with JSON logging:
//
//	logger := memdisk.NewJSONLogger(slog.LevelInfo)
//	reg, _ := memdisk.New(memdisk.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		sectorSize:      DefaultSectorSize,
		pageSize:        DefaultPageSize,
		defaultCapacity: DefaultCapacitySectors,
		teardownWorkers: 1,
		metrics:         NoopMetricsCollector{},
		logger:          NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
