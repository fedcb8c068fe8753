// Package physmem provides the flat, page-aligned backing store the rest of
// the kernel's memory subsystem maps and allocates over. On a real riscv64
// target this is simply physical DRAM, addressed directly from the page
// number the buddy allocator was seeded with (riscv64.go); on the
// host it is a heap-backed arena, sized and aligned the same way, so the
// buddy allocator, slab cache, and SV39 manager can all run identical code
// paths under `go test` and under QEMU (host.go).
//
// Grounded on spec.md §8 ("host-testable with a stub backend that returns
// page-aligned addresses from a large flat buffer") and the teacher's own
// `allPagesArrayBase`-style flat memory view in
// mazboot/golang/main/page.go.
package physmem

import "github.com/31core/rv39kernel/internal/platform"

// Arena is a page-aligned window over physical memory, either a real one
// (riscv64) or a heap-backed stand-in (host). Base is the address of page
// 0 in the allocator's page-number space: AddrOfPage/PageOfAddr translate
// directly against it with no further offset, so callers can initialize
// their buddy.Allocator at any startPage and still get consistent
// addresses back.
type Arena struct {
	buf   []byte
	base  uintptr
	pages uint64
}

// NewArenaAt wraps an already-addressed span of pageCount pages starting at
// base with no allocation of its own: the riscv64 boot path uses this
// directly over physical DRAM, base set to the linker's heap_start symbol.
func NewArenaAt(base uintptr, pageCount uint64) *Arena {
	return &Arena{base: base, pages: pageCount}
}

// Base returns the arena's starting address.
func (a *Arena) Base() uintptr { return a.base }

// Pages returns the arena's capacity in pages.
func (a *Arena) Pages() uint64 { return a.pages }

// AddrOfPage returns the address corresponding to a page number, the way
// the SV39 manager and slab cache both need to turn an allocator's
// page-number space into a pointer.
func (a *Arena) AddrOfPage(pageNum uint64) uintptr {
	return a.base + uintptr(pageNum*platform.PageSize)
}

// PageOfAddr is AddrOfPage's inverse.
func (a *Arena) PageOfAddr(addr uintptr) uint64 {
	return uint64(addr-a.base) / platform.PageSize
}
