package memdisk

import (
	"errors"
	"fmt"

	"github.com/hupe1980/memdisk/internal/resource"
)

var (
	// ErrNoSpace is returned when page allocation fails during a write.
	// No bytes of the failing segment have been copied.
	ErrNoSpace = errors.New("no space")

	// ErrOutOfRange is returned when a segment's sector range exceeds the
	// device capacity. The request is rejected before any I/O.
	ErrOutOfRange = errors.New("sector range out of range")

	// ErrUnsupported is returned when a transfer exceeds what a single
	// dispatcher call can represent (more than one page per segment) or a
	// segment's buffer bounds are invalid.
	ErrUnsupported = errors.New("unsupported transfer")

	// ErrNotFound is returned when no device with the requested id is attached.
	ErrNotFound = errors.New("device not found")

	// ErrClosed is returned when the registry has been shut down.
	ErrClosed = errors.New("registry closed")
)

// RangeError indicates a segment whose sector range exceeds the device
// capacity. It unwraps to ErrOutOfRange.
type RangeError struct {
	Sector   uint64 // starting sector of the offending segment
	Length   int    // transfer length in bytes
	Capacity uint64 // device capacity in sectors
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("sector range [%d, +%dB) exceeds capacity %d sectors", e.Sector, e.Length, e.Capacity)
}

func (e *RangeError) Unwrap() error { return ErrOutOfRange }

// GeometryError indicates an invalid sector/page size configuration.
type GeometryError struct {
	SectorSize int
	PageSize   int
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("invalid geometry: sector size %d, page size %d (both must be powers of two, sector size in [%d, page size])",
		e.SectorSize, e.PageSize, MinSectorSize)
}

// translateError maps internal errors onto the public taxonomy.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, resource.ErrMemoryLimitExceeded) {
		return fmt.Errorf("%w: %w", ErrNoSpace, err)
	}

	return err
}
