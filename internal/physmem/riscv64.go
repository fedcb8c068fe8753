//go:build riscv64

package physmem

import (
	"fmt"
	"unsafe"

	"github.com/31core/rv39kernel/internal/platform"
)

// PageBytes returns a slice over the live physical page at pageNum,
// reconstructed directly from the arena's base address: there is no
// backing Go slice to index into, since the arena here is physical DRAM
// rather than something the runtime allocated.
func (a *Arena) PageBytes(pageNum uint64) ([]byte, error) {
	if pageNum >= a.pages {
		return nil, fmt.Errorf("physmem: page %d out of range (arena has %d pages)", pageNum, a.pages)
	}
	ptr := (*byte)(unsafe.Pointer(a.AddrOfPage(pageNum)))
	return unsafe.Slice(ptr, platform.PageSize), nil
}

// Bytes returns a byte slice view over n bytes of physical memory starting
// at addr, reconstructed the same way PageBytes is.
func (a *Arena) Bytes(addr uintptr, n int) ([]byte, error) {
	if addr < a.base || n < 0 {
		return nil, fmt.Errorf("physmem: address 0x%x out of range", addr)
	}
	if off := addr - a.base; off+uintptr(n) > uintptr(a.pages)*platform.PageSize {
		return nil, fmt.Errorf("physmem: range [0x%x, +%d) exceeds the arena", addr, n)
	}
	ptr := (*byte)(unsafe.Pointer(addr))
	return unsafe.Slice(ptr, n), nil
}
