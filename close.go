package memdisk

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Close destroys every attached device and marks the registry closed.
// Subsequent operations fail with ErrClosed. Teardown of the remaining
// devices runs concurrently, bounded by the configured teardown workers.
//
// The caller must guarantee no transfer is in flight against any device
// once Close begins.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil {
		return nil
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	remaining := make([]*Device, 0, len(r.devices))
	for _, dev := range r.devices {
		remaining = append(remaining, dev)
	}
	clear(r.devices)
	r.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, dev := range remaining {
		dev := dev
		g.Go(func() error {
			if err := r.ctrl.AcquireTeardown(ctx); err != nil {
				return err
			}
			defer r.ctrl.ReleaseTeardown()

			freed := dev.store.DropAll(ctx)
			r.logger.LogDestroy(ctx, dev.id, freed, nil)
			return nil
		})
	}
	return g.Wait()
}
