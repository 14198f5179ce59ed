// Package memdisk provides a sparse, page-granular, in-memory block storage
// engine for Go.
//
// A memdisk device is a logical block device with a fixed addressable
// capacity whose contents live entirely in lazily-allocated memory pages:
//
//   - Sparse: only regions actually written consume memory; unwritten
//     regions read as zeros without backing allocation
//   - Concurrent: lock-free page lookup on the read path; first-writer-wins
//     allocation on the write path
//   - Bounded: an optional engine-wide memory budget turns allocation
//     pressure into ErrNoSpace instead of unbounded growth
//   - Responsive teardown: bulk page release works in small batches and
//     yields between them, so destroying huge devices stays cooperative
//
// # Quick Start
//
// Create a registry, attach a device and transfer data:
//
//	ctx := context.Background()
//	reg, err := memdisk.New(
//	    memdisk.WithMemoryLimit(1 << 30), // 1GiB of page memory
//	)
//	if err != nil {
//	    panic(err)
//	}
//	defer reg.Close(ctx)
//
//	dev, err := reg.Create(ctx, 0, 1<<21) // 1GiB at 512-byte sectors
//	if err != nil {
//	    panic(err)
//	}
//
//	buf := []byte("hello, block device")
//	if err := dev.WriteSectors(ctx, 2048, buf); err != nil {
//	    panic(err)
//	}
//
//	out := make([]byte, len(buf))
//	if err := dev.ReadSectors(ctx, 2048, out); err != nil {
//	    panic(err)
//	}
//
// Lower-level callers submit page-bounded segments directly:
//
//	completed, err := dev.Submit(ctx, []memdisk.Segment{
//	    {Buf: buf, Off: 0, Len: 4096, Op: memdisk.OpWrite, Sector: 0},
//	    {Buf: buf, Off: 4096, Len: 4096, Op: memdisk.OpWrite, Sector: 8},
//	})
//
// Each segment carries its own buffer window, direction and starting sector,
// and may span at most one page boundary; Submit reports how many segments
// completed alongside the first error.
//
// # Device Naming
//
// memdisk does not create device nodes or mount filesystems. A naming layer
// sitting above it resolves ids through Registry.Probe, which attaches a
// device on first reference the way on-demand ramdisk instantiation does.
package memdisk
