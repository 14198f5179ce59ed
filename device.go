package memdisk

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/memdisk/internal/pagestore"
)

// Op is the direction of a transfer.
type Op int

const (
	// OpRead copies bytes from the device into the caller's buffer.
	// Regions never written read as zeros without allocating pages.
	OpRead Op = iota

	// OpWrite copies bytes from the caller's buffer into the device,
	// allocating backing pages on first touch.
	OpWrite
)

func (op Op) String() string {
	if op == OpWrite {
		return "write"
	}
	return "read"
}

// Segment is one contiguous unit of a transfer request: a slice of the
// caller's buffer bound to a starting sector on the device.
type Segment struct {
	Buf    []byte // caller buffer
	Off    int    // byte offset into Buf where the payload starts
	Len    int    // payload length in bytes; at most one page
	Op     Op     // transfer direction
	Sector uint64 // starting sector on the device
}

// Device is a fixed-capacity logical block device whose contents live in
// lazily-allocated memory pages. Safe for concurrent transfers; distinct
// devices share no state.
type Device struct {
	id       int
	capacity uint64 // sectors, fixed at creation
	geo      geometry
	store    *pagestore.Store
	logger   *Logger
	metrics  MetricsCollector

	alignWarn sync.Once
}

// ID returns the device's numeric id, unique within its registry.
func (d *Device) ID() int { return d.id }

// Capacity returns the device capacity in sectors.
func (d *Device) Capacity() uint64 { return d.capacity }

// SizeBytes returns the addressable capacity in bytes.
func (d *Device) SizeBytes() uint64 { return d.capacity << d.geo.sectorShift }

// Pages returns the number of pages currently backed by memory.
func (d *Device) Pages() uint64 { return d.store.Len() }

// AllocatedBytes returns the bytes of page memory currently held.
func (d *Device) AllocatedBytes() uint64 { return d.store.Bytes() }

// Extents returns the allocated page runs in ascending order. Exact when no
// write is concurrently in flight.
func (d *Device) Extents() []pagestore.Extent { return d.store.Extents() }

// Submit processes a request as an ordered list of segments. Each segment's
// sector range is checked against the device capacity before any of its
// bytes move; on the first failing segment the remaining segments are
// abandoned. Returns the number of segments that completed and the first
// error, if any. Already-completed segments stay committed.
//
// A submitted segment runs to completion or failure; ctx is consulted only
// by logging and metrics, never to cancel a copy in progress.
func (d *Device) Submit(ctx context.Context, segments []Segment) (int, error) {
	start := time.Now()

	var (
		op    Op
		bytes int
		err   error
	)
	completed := 0
	for _, seg := range segments {
		op = seg.Op
		if err = d.checkSegment(seg); err != nil {
			break
		}
		if err = d.transfer(seg.Buf[seg.Off:seg.Off+seg.Len], seg.Op, seg.Sector); err != nil {
			break
		}
		bytes += seg.Len
		completed++
	}

	err = translateError(err)
	d.metrics.RecordTransfer(op, bytes, time.Since(start), err)
	d.logger.LogTransfer(ctx, d.id, len(segments), completed, err)

	return completed, err
}

// ReadSectors fills p from the device starting at sector, chunking the
// transfer into page-bounded segments. Regions never written read as zeros.
func (d *Device) ReadSectors(ctx context.Context, sector uint64, p []byte) error {
	return d.chunked(ctx, OpRead, sector, p)
}

// WriteSectors copies p to the device starting at sector, chunking the
// transfer into page-bounded segments. Completed chunks stay committed if a
// later chunk fails.
func (d *Device) WriteSectors(ctx context.Context, sector uint64, p []byte) error {
	return d.chunked(ctx, OpWrite, sector, p)
}

// chunked splits an arbitrary-length transfer into segments that each honor
// the one-boundary-crossing contract, advancing the sector cursor.
func (d *Device) chunked(ctx context.Context, op Op, sector uint64, p []byte) error {
	var segments []Segment
	for off := 0; off < len(p); {
		n := min(len(p)-off, d.geo.pageSize)
		segments = append(segments, Segment{
			Buf:    p,
			Off:    off,
			Len:    n,
			Op:     op,
			Sector: sector,
		})
		off += n
		sector += d.geo.sectorSpan(n)
	}
	_, err := d.Submit(ctx, segments)
	return err
}

// checkSegment validates buffer bounds and the capacity of the implied
// sector range. Pure; performs no I/O.
func (d *Device) checkSegment(seg Segment) error {
	if seg.Off < 0 || seg.Len < 0 || seg.Off+seg.Len > len(seg.Buf) {
		return fmt.Errorf("%w: segment bounds [%d, +%d) exceed buffer of %d bytes",
			ErrUnsupported, seg.Off, seg.Len, len(seg.Buf))
	}
	if seg.Sector > d.capacity || d.geo.sectorSpan(seg.Len) > d.capacity-seg.Sector {
		return &RangeError{Sector: seg.Sector, Length: seg.Len, Capacity: d.capacity}
	}
	if seg.Len&(d.geo.sectorSize-1) != 0 || seg.Off&(d.geo.sectorSize-1) != 0 {
		d.alignWarn.Do(func() {
			d.logger.Warn("unaligned segment buffer",
				"device", d.id,
				"off", seg.Off,
				"len", seg.Len,
				"sector_size", d.geo.sectorSize,
			)
		})
	}
	return nil
}

// transfer moves len(b) bytes between b and the device at sector. A single
// call spans at most two pages: the segment must fit in one page so the copy
// crosses at most one page boundary.
func (d *Device) transfer(b []byte, op Op, sector uint64) error {
	if len(b) > d.geo.pageSize {
		return fmt.Errorf("%w: segment of %d bytes exceeds page size %d",
			ErrUnsupported, len(b), d.geo.pageSize)
	}

	if op == OpWrite {
		if err := d.prepareWrite(sector, len(b)); err != nil {
			return err
		}
		d.copyToDevice(b, sector)
		return nil
	}

	d.copyFromDevice(b, sector)
	return nil
}

// prepareWrite ensures backing pages exist for a write of n bytes at sector,
// including the next page when the write crosses into it. It fails before
// any bytes are copied.
func (d *Device) prepareWrite(sector uint64, n int) error {
	offset := d.geo.inPageOffset(sector)
	copyLen := min(n, d.geo.pageSize-offset)
	if _, err := d.store.InsertOrGet(d.geo.pageIndex(sector)); err != nil {
		return err
	}
	if copyLen < n {
		sector += uint64(copyLen) >> d.geo.sectorShift
		if _, err := d.store.InsertOrGet(d.geo.pageIndex(sector)); err != nil {
			return err
		}
	}
	return nil
}

// copyToDevice copies len(b) bytes into pages starting at sector. The pages
// were established by prepareWrite; their absence here is corruption.
func (d *Device) copyToDevice(b []byte, sector uint64) {
	offset := d.geo.inPageOffset(sector)
	copyLen := min(len(b), d.geo.pageSize-offset)

	page, ok := d.store.Lookup(d.geo.pageIndex(sector))
	if !ok {
		panic(fmt.Sprintf("memdisk: page %d missing after write setup", d.geo.pageIndex(sector)))
	}
	copy(page.Data()[offset:], b[:copyLen])

	if copyLen < len(b) {
		sector += uint64(copyLen) >> d.geo.sectorShift
		page, ok = d.store.Lookup(d.geo.pageIndex(sector))
		if !ok {
			panic(fmt.Sprintf("memdisk: page %d missing after write setup", d.geo.pageIndex(sector)))
		}
		copy(page.Data(), b[copyLen:])
	}
}

// copyFromDevice copies len(b) bytes from pages starting at sector into b.
// A page that was never written yields zeros without being allocated.
func (d *Device) copyFromDevice(b []byte, sector uint64) {
	offset := d.geo.inPageOffset(sector)
	copyLen := min(len(b), d.geo.pageSize-offset)

	if page, ok := d.store.Lookup(d.geo.pageIndex(sector)); ok {
		copy(b[:copyLen], page.Data()[offset:])
	} else {
		clear(b[:copyLen])
	}

	if copyLen < len(b) {
		sector += uint64(copyLen) >> d.geo.sectorShift
		if page, ok := d.store.Lookup(d.geo.pageIndex(sector)); ok {
			copy(b[copyLen:], page.Data())
		} else {
			clear(b[copyLen:])
		}
	}
}
