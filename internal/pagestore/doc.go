// Package pagestore implements the sparse page store backing a memdisk device.
//
// The store maps page indices to fixed-size zero-initialized pages. Pages are
// allocated lazily on first write and are never removed while the owning
// device is attached; the only deletion path is DropAll during full-device
// teardown. That no-delete invariant is what makes the lock-free lookup path
// safe: a lookup racing with an insert observes either the old state or the
// new entry, never a dangling page.
//
// Inserts allocate outside any lock (allocation may have to wait on the
// memory budget, and must not hold up concurrent lookups), then register the
// page atomically; the loser of a concurrent insert race discards its
// speculative page and adopts the winner's.
//
// DropAll releases pages in bounded batches with a voluntary yield between
// batches, so tearing down a store with a very large page population does not
// stall the calling goroutine's thread.
package pagestore
