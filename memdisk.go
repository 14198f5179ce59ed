package memdisk

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/hupe1980/memdisk/internal/pagestore"
	"github.com/hupe1980/memdisk/internal/resource"
)

// DefaultCapacitySectors is the default device capacity used by Probe and
// the initial device population: 4MiB at 512-byte sectors.
const DefaultCapacitySectors = 8192

// Registry owns the set of attached devices, keyed by numeric id. It is the
// process's handle to the storage engine: construct one with New, pass it by
// reference, and shut it down with Close. All registry mutation is
// serialized by one coarse lock; device creation and destruction are rare
// next to per-page operations.
type Registry struct {
	mu      sync.Mutex
	devices map[int]*Device
	closed  bool

	geo             geometry
	defaultCapacity uint64
	ctrl            *resource.Controller
	logger          *Logger
	metrics         MetricsCollector
}

// New creates a registry. With WithInitialDevices(n), devices 0..n-1 are
// created up front at the default capacity; a failure rolls the partially
// built population back and returns the error.
func New(optFns ...Option) (*Registry, error) {
	opts := applyOptions(optFns)

	geo, err := newGeometry(opts.sectorSize, opts.pageSize)
	if err != nil {
		return nil, err
	}
	if opts.defaultCapacity == 0 {
		return nil, fmt.Errorf("default capacity must be positive")
	}

	r := &Registry{
		devices:         make(map[int]*Device),
		geo:             geo,
		defaultCapacity: opts.defaultCapacity,
		ctrl: resource.NewController(resource.Config{
			MemoryLimitBytes:        opts.memoryLimit,
			MaxTeardownWorkers:      opts.teardownWorkers,
			ReleaseLimitBytesPerSec: opts.teardownRate,
		}),
		logger:  opts.logger,
		metrics: opts.metrics,
	}

	for i := 0; i < opts.initialDevices; i++ {
		if _, err := r.Create(context.Background(), i, opts.defaultCapacity); err != nil {
			_ = r.Close(context.Background())
			return nil, fmt.Errorf("populate device %d: %w", i, err)
		}
	}

	return r, nil
}

// Create attaches a device with the given id and capacity in sectors and
// returns it. Idempotent by id: if the device already exists it is returned
// unchanged, its original capacity kept. A failed create leaves the registry
// unchanged.
func (r *Registry) Create(ctx context.Context, id int, capacitySectors uint64) (*Device, error) {
	start := time.Now()

	dev, existed, err := r.initOne(id, capacitySectors)

	r.metrics.RecordCreate(time.Since(start), err)
	r.logger.LogCreate(ctx, id, capacitySectors, existed, err)

	return dev, err
}

// Probe resolves a device id on behalf of the naming layer, creating the
// device at the registry's default capacity if it is not attached yet.
// Returns ErrNotFound for ids the registry cannot serve.
func (r *Registry) Probe(ctx context.Context, id int) (*Device, error) {
	start := time.Now()

	dev, existed, err := r.initOne(id, r.defaultCapacity)
	if err != nil {
		err = fmt.Errorf("%w: probe id %d: %w", ErrNotFound, id, err)
	}

	r.metrics.RecordCreate(time.Since(start), err)
	r.logger.LogProbe(ctx, id, err == nil && !existed, err)

	return dev, err
}

// initOne returns the device with the given id, creating it with the given
// capacity if absent. The bool reports whether the device already existed.
func (r *Registry) initOne(id int, capacitySectors uint64) (*Device, bool, error) {
	if id < 0 {
		return nil, false, fmt.Errorf("%w: negative device id %d", ErrNotFound, id)
	}
	if capacitySectors == 0 {
		return nil, false, fmt.Errorf("capacity must be positive")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, false, ErrClosed
	}
	if dev, ok := r.devices[id]; ok {
		return dev, true, nil
	}

	dev := &Device{
		id:       id,
		capacity: capacitySectors,
		geo:      r.geo,
		store:    pagestore.New(r.geo.pageSize, r.ctrl),
		logger:   r.logger,
		metrics:  r.metrics,
	}
	r.devices[id] = dev

	return dev, false, nil
}

// Get returns the attached device with the given id, or ErrNotFound.
// It never creates a device.
func (r *Registry) Get(id int) (*Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	dev, ok := r.devices[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return dev, nil
}

// Capacity returns the capacity in sectors of the device with the given id.
func (r *Registry) Capacity(id int) (uint64, error) {
	dev, err := r.Get(id)
	if err != nil {
		return 0, err
	}
	return dev.Capacity(), nil
}

// Destroy detaches the device with the given id and releases all its pages,
// then the device itself. The caller must guarantee no transfer is in flight
// against the device once Destroy begins. A failed destroy (unknown id)
// leaves the registry unchanged.
func (r *Registry) Destroy(ctx context.Context, id int) error {
	start := time.Now()

	r.mu.Lock()
	dev, ok := r.devices[id]
	if ok {
		delete(r.devices, id)
	}
	closed := r.closed
	r.mu.Unlock()

	var err error
	var freed uint64
	switch {
	case closed && !ok:
		err = ErrClosed
	case !ok:
		err = fmt.Errorf("%w: id %d", ErrNotFound, id)
	default:
		// Detached: no new transfers can resolve the device. Quiescence for
		// in-flight ones is the caller's contract.
		freed = dev.store.DropAll(ctx)
	}

	r.metrics.RecordDestroy(freed, time.Since(start), err)
	r.logger.LogDestroy(ctx, id, freed, err)

	return err
}

// IDs returns the attached device ids in ascending order.
func (r *Registry) IDs() []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]int, 0, len(r.devices))
	for id := range r.devices {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of attached devices.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.devices)
}

// MemoryUsage returns the bytes of page memory currently held across all
// devices.
func (r *Registry) MemoryUsage() int64 {
	return r.ctrl.MemoryUsage()
}
