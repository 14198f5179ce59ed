package memdisk

import "math/bits"

const (
	// MinSectorSize is the smallest supported addressing unit.
	MinSectorSize = 512

	// DefaultSectorSize is the default addressing unit in bytes.
	DefaultSectorSize = 512

	// DefaultPageSize is the default allocation unit in bytes.
	DefaultPageSize = 4096
)

// geometry holds the fixed sector/page layout shared by every device of a
// registry. Page size is a power-of-two multiple of sector size, so sector
// to page-index and in-page-offset conversions are shift/mask operations.
type geometry struct {
	sectorSize  int
	pageSize    int
	sectorShift uint
	pageShift   uint
}

func newGeometry(sectorSize, pageSize int) (geometry, error) {
	if sectorSize < MinSectorSize || pageSize < sectorSize ||
		bits.OnesCount(uint(sectorSize)) != 1 || bits.OnesCount(uint(pageSize)) != 1 {
		return geometry{}, &GeometryError{SectorSize: sectorSize, PageSize: pageSize}
	}
	return geometry{
		sectorSize:  sectorSize,
		pageSize:    pageSize,
		sectorShift: uint(bits.TrailingZeros(uint(sectorSize))),
		pageShift:   uint(bits.TrailingZeros(uint(pageSize))),
	}, nil
}

// sectorsPerPage returns the number of sectors composing one page.
func (g geometry) sectorsPerPage() uint64 {
	return 1 << (g.pageShift - g.sectorShift)
}

// pageIndex returns the page containing sector.
func (g geometry) pageIndex(sector uint64) uint64 {
	return sector >> (g.pageShift - g.sectorShift)
}

// inPageOffset returns the byte offset of sector within its page.
func (g geometry) inPageOffset(sector uint64) int {
	return int(sector&(g.sectorsPerPage()-1)) << g.sectorShift
}

// sectorSpan returns the number of sectors covered by n bytes starting at a
// sector boundary, rounding up partial sectors.
func (g geometry) sectorSpan(n int) uint64 {
	return (uint64(n) + uint64(g.sectorSize) - 1) >> g.sectorShift
}
