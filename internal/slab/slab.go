// Package slab implements the kernel's general-purpose object allocator: a
// ladder of fixed-size object caches backed by buddy-allocated pages, with
// the buddy allocator itself serving requests too large for any cache
// class.
//
// Grounded on original_source/src/mcache.rs (CachePage, CacheManager,
// to_objsize, the GlobalAlloc impl). The Rust version threads an intrusive
// singly-linked free list through the unused objects themselves (the first
// machine word of a free object holds the address of the next free object,
// 0 terminating the list); this port keeps that exact representation,
// reading and writing the link word directly through unsafe.Pointer over
// the same backing arena the buddy allocator serves pages from.
package slab

import (
	"fmt"
	"unsafe"

	"github.com/31core/rv39kernel/internal/buddy"
	kpanic "github.com/31core/rv39kernel/internal/panic"
	"github.com/31core/rv39kernel/internal/physmem"
	"github.com/31core/rv39kernel/internal/platform"
)

const (
	// cacheCapacity bounds how many distinct CachePages a single Manager
	// tier tracks before chaining to another tier, matching the Rust
	// CACHE_NUM.
	cacheCapacity = 1024

	// objPerPage is the target object count per freshly grown cache,
	// matching the Rust CACHE_OBJ_COUNT.
	objPerPage = 512
)

// objSizeClasses is the Rust to_objsize ladder: 64B up to 4MB, doubling at
// every step except 4KB to 16KB (there is no 8KB class), as an allocation
// request rounds up to the first class that fits.
var objSizeClasses = [16]uint64{
	64, 128, 256, 512,
	1024, 2048, 4096, 16384,
	32768, 65536, 131072, 262144,
	524288, 1024 * 1024, 2 * 1024 * 1024, 4 * 1024 * 1024,
}

// toObjSize returns the smallest cache class that fits size, and false if
// size is too large for any class (the caller should fall back to the
// buddy allocator directly).
func toObjSize(size uint64) (uint64, bool) {
	for _, class := range objSizeClasses {
		if class >= size {
			return class, true
		}
	}
	return 0, false
}

// ceilPow2 rounds n up to the next power of two (n must be > 0).
func ceilPow2(n uint64) uint64 {
	if n == 0 {
		return 1
	}
	p := uint64(1)
	for p < n {
		p <<= 1
	}
	return p
}

// cachePage is one page-run dedicated to fixed-size objects of obj_size,
// with an intrusive free list threaded through the unallocated objects.
type cachePage struct {
	pageBase uint64 // buddy page number
	pageNum  uint64
	objSize  uint64
	objFree  uint64
	objAlloc uint64
	objStart uintptr
}

// readLink/writeLink access the free-list next pointer stored in the first
// word of a free object.
func readLink(addr uintptr) uintptr {
	return uintptr(*(*uint64)(unsafe.Pointer(addr)))
}

func writeLink(addr uintptr, next uintptr) {
	*(*uint64)(unsafe.Pointer(addr)) = uint64(next)
}

// init threads the free list through every object in the page run, in
// ascending address order, terminated by a 0 link.
func (c *cachePage) init() {
	for i := uint64(0); i < c.objFree-1; i++ {
		cur := c.objStart + uintptr(i*c.objSize)
		next := c.objStart + uintptr((i+1)*c.objSize)
		writeLink(cur, next)
	}
	last := c.objStart + uintptr((c.objFree-1)*c.objSize)
	writeLink(last, 0)
}

// allocObj pops the head of the free list, or reports false if none remain.
func (c *cachePage) allocObj() (uintptr, bool) {
	if c.objFree == 0 {
		return 0, false
	}
	c.objFree--
	c.objAlloc++

	head := c.objStart
	c.objStart = readLink(head)
	return head, true
}

// freeObj reinserts ptr into the free list, keeping it address-ordered so
// coalescing checks (and debugging) stay simple, exactly as the Rust
// version does.
func (c *cachePage) freeObj(ptr uintptr) {
	c.objAlloc--

	if c.objFree == 0 {
		c.objFree++
		c.objStart = ptr
		writeLink(ptr, 0)
		return
	}
	c.objFree++

	if ptr < c.objStart {
		writeLink(ptr, c.objStart)
		c.objStart = ptr
		return
	}

	cur := c.objStart
	for {
		next := readLink(cur)
		if cur < ptr && (next == 0 || next > ptr) {
			writeLink(ptr, next)
			writeLink(cur, ptr)
			return
		}
		cur = next
	}
}

// contains reports whether addr falls within this cache's page run.
func (c *cachePage) contains(addr, base uintptr) bool {
	start := base
	end := base + uintptr(c.pageNum*platform.PageSize)
	return addr >= start && addr < end
}

// Manager is a tier of the slab allocator: a fixed table of live cache
// pages plus a chained overflow tier, mirroring CacheManager's
// singly-linked list of Self.
type Manager struct {
	buddy *buddy.Allocator
	arena *physmem.Arena

	caches [cacheCapacity]*cachePage
	full   bool
	next   *Manager
}

// Bytes returns a byte slice view over n bytes at addr within the
// manager's backing arena, for callers that want to treat a slab-allocated
// region as an ordinary []byte rather than a raw address.
func (m *Manager) Bytes(addr uintptr, n int) ([]byte, error) {
	return m.arena.Bytes(addr, n)
}

// global is the process-wide slab singleton installed by Init, mirroring
// the Rust build's `static mut GLOBAL_ALLOCATOR` — the "global allocator
// façade" spec.md §4.2 describes. Like the other process-wide instances
// spec.md §9 calls out (buddy, rng, vfs, task), it is initialized once
// from the boot sequence before traps are enabled and must not be touched
// from a trap handler afterward.
var global *Manager

// Init installs the process-wide slab singleton over b/arena. Must be
// called once, from boot, before any call to Default/Alloc/Free.
func Init(b *buddy.Allocator, arena *physmem.Arena) {
	global = New(b, arena)
}

// Default returns the process-wide slab singleton installed by Init, or
// nil if Init has not run yet (host tests that want an allocator construct
// their own Manager via New instead of relying on the singleton).
func Default() *Manager { return global }

// Alloc and Free are the package-level GlobalAlloc-style façade bound to
// the singleton installed by Init.
func Alloc(size uint64) (uintptr, error) { return global.Alloc(size) }
func Free(addr uintptr, size uint64)     { global.Free(addr, size) }

// New constructs a slab manager over the given page allocator and arena.
// Both must already be initialized.
func New(b *buddy.Allocator, arena *physmem.Arena) *Manager {
	return &Manager{buddy: b, arena: arena}
}

func (m *Manager) addCache(c *cachePage) {
	for i := range m.caches {
		if m.caches[i] == nil {
			m.caches[i] = c
			m.full = true
			for _, slot := range m.caches {
				if slot == nil {
					m.full = false
					break
				}
			}
			return
		}
	}
	kpanic.Fatalf("slab: addCache called on a full manager")
}

// Alloc returns size bytes of freshly allocated memory. Requests that fit
// a cache class are served by the slab allocator; larger requests go
// straight to the buddy allocator as a run of whole pages.
func (m *Manager) Alloc(size uint64) (uintptr, error) {
	if size == 0 {
		return 0, fmt.Errorf("slab: Alloc(0) is invalid")
	}

	objSize, fits := toObjSize(size)
	if !fits {
		pageCount := ceilPow2((size + platform.PageSize - 1) / platform.PageSize)
		base := m.buddy.AllocPages(pageCount)
		return m.arena.AddrOfPage(base), nil
	}

	for {
		for _, c := range m.caches {
			if c != nil && c.objSize == objSize {
				if addr, ok := c.allocObj(); ok {
					return addr, nil
				}
			}
		}
		if !m.full {
			return m.growCache(objSize), nil
		}
		if m.next == nil {
			m.next = New(m.buddy, m.arena)
		}
		m = m.next
	}
}

// growCache allocates a fresh page run and carves it entirely into
// obj_size objects. The Rust version reserves a leading slice of the page
// run for the CachePage header itself, since it has no separate heap to
// keep bookkeeping in; the Go port keeps cachePage as an ordinary
// GC-managed value off to the side (in Manager.caches) and so can devote
// every object slot in the run to real objects.
func (m *Manager) growCache(objSize uint64) uintptr {
	pageCount := ceilPow2(objPerPage * objSize / platform.PageSize)
	if pageCount == 0 {
		pageCount = 1
	}
	base := m.buddy.AllocPages(pageCount)
	pageAddr := m.arena.AddrOfPage(base)
	totalObjs := pageCount * platform.PageSize / objSize

	c := &cachePage{
		pageBase: base,
		pageNum:  pageCount,
		objSize:  objSize,
		objAlloc: 0,
		objFree:  totalObjs,
		objStart: pageAddr,
	}
	c.init()
	addr, _ := c.allocObj()
	m.addCache(c)
	return addr
}

// Free releases memory previously returned by Alloc. size must match the
// original allocation size.
func (m *Manager) Free(addr uintptr, size uint64) {
	if size == 0 {
		kpanic.Fatalf("slab: Free with size 0")
	}

	objSize, fits := toObjSize(size)
	if !fits {
		pageCount := ceilPow2((size + platform.PageSize - 1) / platform.PageSize)
		m.buddy.FreePages(m.arena.PageOfAddr(addr), pageCount)
		return
	}

	for mgr := m; mgr != nil; mgr = mgr.next {
		for i, c := range mgr.caches {
			if c == nil {
				continue
			}
			base := mgr.arena.AddrOfPage(c.pageBase)
			if c.objSize == objSize && c.contains(addr, base) {
				c.freeObj(addr)
				if c.objAlloc == 0 {
					mgr.buddy.FreePages(c.pageBase, c.pageNum)
					mgr.caches[i] = nil
					mgr.full = false
				}
				return
			}
		}
	}
	kpanic.Fatalf("slab: Free(0x%x, %d) does not match any live allocation", addr, size)
}
