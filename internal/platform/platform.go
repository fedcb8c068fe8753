// Package platform holds the compile-time layout constants shared by every
// memory-subsystem package. Nothing here is architecture-specific; the
// riscv64-only constants (CSR bit layouts, CLINT addresses) live next to the
// code that uses them instead.
package platform

const (
	// PageSize is the universal unit of physical allocation.
	PageSize = 4096

	// PageShift is log2(PageSize), used to convert between addresses and
	// page numbers without a division.
	PageShift = 12

	// MemSize is the span of the physical heap managed by the buddy
	// allocator, starting at the linker's heap_start symbol.
	MemSize = 128 * 1024 * 1024

	// KernelHeapPages is MemSize expressed in pages, the value C1.init is
	// seeded with at boot.
	KernelHeapPages = MemSize / PageSize
)
