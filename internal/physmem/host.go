//go:build !riscv64

package physmem

import (
	"fmt"

	"github.com/ncw/directio"

	"github.com/31core/rv39kernel/internal/platform"
)

// NewArena allocates a page-aligned, heap-backed arena standing in for
// physical memory. It panics if pageCount is zero, the one case
// directio.AlignedBlock cannot satisfy.
func NewArena(pageCount uint64) *Arena {
	if pageCount == 0 {
		panic("physmem: NewArena requires at least one page")
	}
	size := int(pageCount * platform.PageSize)
	buf := directio.AlignedBlock(size)
	return &Arena{buf: buf, base: addrOf(buf), pages: pageCount}
}

// PageBytes returns the byte slice backing the page at the given page
// number (absolute, matching buddy.Allocator's page-number space when the
// allocator was initialized at the arena's base page).
func (a *Arena) PageBytes(pageNum uint64) ([]byte, error) {
	if pageNum >= a.pages {
		return nil, fmt.Errorf("physmem: page %d out of range (arena has %d pages)", pageNum, a.pages)
	}
	off := pageNum * platform.PageSize
	return a.buf[off : off+platform.PageSize], nil
}

// Bytes returns a byte slice view over n bytes starting at addr, for
// callers (like internal/slab's consumers) that hold an address rather
// than a page number.
func (a *Arena) Bytes(addr uintptr, n int) ([]byte, error) {
	if addr < a.base || n < 0 {
		return nil, fmt.Errorf("physmem: address 0x%x out of range", addr)
	}
	off := addr - a.base
	if off+uintptr(n) > uintptr(len(a.buf)) {
		return nil, fmt.Errorf("physmem: range [0x%x, +%d) exceeds the arena", addr, n)
	}
	return a.buf[off : off+uintptr(n)], nil
}
