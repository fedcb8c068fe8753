package slab_test

import (
	"testing"

	"github.com/31core/rv39kernel/internal/buddy"
	"github.com/31core/rv39kernel/internal/physmem"
	"github.com/31core/rv39kernel/internal/slab"
)

func newManager(t *testing.T, pages uint64) (*slab.Manager, *buddy.Allocator, *physmem.Arena) {
	t.Helper()
	arena := physmem.NewArena(pages)
	var b buddy.Allocator
	b.Init(0, pages)
	return slab.New(&b, arena), &b, arena
}

// TestClassing checks that a request is rounded up to the next cache
// class, not served at its exact size.
func TestClassing(t *testing.T) {
	m, _, _ := newManager(t, 1024)
	addr, err := m.Alloc(200)
	if err != nil {
		t.Fatal(err)
	}
	if addr == 0 {
		t.Fatal("Alloc returned a nil address")
	}
	second, err := m.Alloc(200)
	if err != nil {
		t.Fatal(err)
	}
	if second-addr != 256 {
		t.Fatalf("consecutive Alloc(200) objects are %d bytes apart, want 256 (the 256-byte class)", second-addr)
	}
	m.Free(second, 200)
	m.Free(addr, 200)
}

// TestSlabRoundTrip allocates and frees a handful of objects in the same
// class, checking that freed addresses are reused rather than leaking a
// fresh page run on every call.
func TestSlabRoundTrip(t *testing.T) {
	m, _, _ := newManager(t, 1024)

	var addrs []uintptr
	for i := 0; i < 8; i++ {
		a, err := m.Alloc(64)
		if err != nil {
			t.Fatal(err)
		}
		addrs = append(addrs, a)
	}

	seen := map[uintptr]bool{}
	for _, a := range addrs {
		if seen[a] {
			t.Fatalf("address 0x%x allocated twice", a)
		}
		seen[a] = true
	}

	for _, a := range addrs {
		m.Free(a, 64)
	}

	again, err := m.Alloc(64)
	if err != nil {
		t.Fatal(err)
	}
	if !seen[again] {
		t.Fatalf("expected Alloc after freeing to reuse a freed address, got fresh 0x%x", again)
	}
}

// TestConcreteScenario reproduces spec.md §8: 1000 allocations of size 200
// round to class 256, need two cache entries (each holding up to 512
// objects), and freeing everything collapses both entries back to the
// buddy allocator.
func TestConcreteScenario(t *testing.T) {
	m, b, _ := newManager(t, 4096)
	freeBefore := b.Free()

	const n = 1000
	addrs := make([]uintptr, 0, n)
	for i := 0; i < n; i++ {
		a, err := m.Alloc(200)
		if err != nil {
			t.Fatalf("Alloc #%d: %v", i, err)
		}
		addrs = append(addrs, a)
	}

	seen := map[uintptr]bool{}
	for _, a := range addrs {
		if seen[a] {
			t.Fatalf("duplicate address 0x%x", a)
		}
		seen[a] = true
	}

	if b.Free() == freeBefore {
		t.Fatal("expected the buddy allocator to have handed out pages for the slab growth")
	}

	for _, a := range addrs {
		m.Free(a, 200)
	}

	if b.Free() != freeBefore {
		t.Fatalf("free pages after releasing all objects = %d, want %d (full collapse)", b.Free(), freeBefore)
	}
}

// TestLargeRequestFallsThroughToBuddy checks that a request too large for
// any cache class goes straight to the page allocator.
func TestLargeRequestFallsThroughToBuddy(t *testing.T) {
	m, b, _ := newManager(t, 4096)
	freeBefore := b.Free()

	const size = 5 * 1024 * 1024
	addr, err := m.Alloc(size)
	if err != nil {
		t.Fatal(err)
	}
	if b.Free() == freeBefore {
		t.Fatal("expected a large allocation to consume buddy pages directly")
	}

	m.Free(addr, size)
	if b.Free() != freeBefore {
		t.Fatalf("free pages after releasing large object = %d, want %d", b.Free(), freeBefore)
	}
}

// TestSingletonRoundTrip checks the package-level Init/Default/Alloc/Free
// façade: Init installs a usable singleton, Default returns it, and
// Alloc/Free route through it exactly like a method call on the same
// Manager would.
func TestSingletonRoundTrip(t *testing.T) {
	arena := physmem.NewArena(256)
	var b buddy.Allocator
	b.Init(0, 256)

	slab.Init(&b, arena)

	if slab.Default() == nil {
		t.Fatal("expected Default() to return the installed singleton")
	}

	addr, err := slab.Alloc(64)
	if err != nil {
		t.Fatal(err)
	}
	buf, err := slab.Default().Bytes(addr, 64)
	if err != nil {
		t.Fatal(err)
	}
	buf[0] = 0x7a

	slab.Free(addr, 64)
}
