package physmem

import "unsafe"

// addrOf returns the address of a slice's backing array. This is the one
// place the memory subsystem reaches past Go's type system to talk about
// raw addresses, the same seam the teacher's page/heap code builds on.
func addrOf(buf []byte) uintptr {
	if len(buf) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&buf[0]))
}
