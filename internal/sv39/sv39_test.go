package sv39_test

import (
	"testing"

	"github.com/31core/rv39kernel/internal/buddy"
	"github.com/31core/rv39kernel/internal/physmem"
	"github.com/31core/rv39kernel/internal/sv39"
)

func newManager(t *testing.T) (*sv39.Manager, *buddy.Allocator) {
	t.Helper()
	arena := physmem.NewArena(256)
	var b buddy.Allocator
	b.Init(0, 256)
	return sv39.New(&b, arena), &b
}

// TestConcreteScenario reproduces spec.md §8: map(0x1000, 0x5000, {R,X})
// then walk yields leaf PTE = (0x5000<<10) | 0b1011 (R,X,V).
func TestConcreteScenario(t *testing.T) {
	m, _ := newManager(t)

	if err := m.Map(0x1000, 0x5000, []sv39.ACL{sv39.Read, sv39.Execute}); err != nil {
		t.Fatal(err)
	}

	pte, ok := m.Walk(0x1000)
	if !ok {
		t.Fatal("expected the mapping to be present")
	}
	if !pte.R || !pte.X || pte.W || pte.U {
		t.Fatalf("flags = %+v, want R,X only", pte)
	}
	if pte.PPN != 0x5000 {
		t.Fatalf("PPN = 0x%x, want 0x5000", pte.PPN)
	}
}

// TestWalkRoundTrip checks P-Walk-Round-Trip: after map(v, p, acl), a walk
// returns a leaf PTE whose PPN equals p and whose flags equal acl ∪ {V}
// (V is implicit in this API since Walk only ever returns present PTEs).
func TestWalkRoundTrip(t *testing.T) {
	m, _ := newManager(t)

	cases := []struct {
		vpn, ppn uint64
		acl      []sv39.ACL
	}{
		{0x10, 0x20, []sv39.ACL{sv39.Read}},
		{0x11, 0x21, []sv39.ACL{sv39.Read, sv39.Write}},
		{0x12, 0x22, []sv39.ACL{sv39.Read, sv39.Execute}},
		// Shares the same v1/v2 directories as the first three but a
		// different v3 slot, exercising the lazily-allocated directory
		// reuse path.
		{0x13, 0x23, []sv39.ACL{sv39.Read, sv39.Write, sv39.Execute}},
	}

	for _, c := range cases {
		if err := m.Map(c.vpn, c.ppn, c.acl); err != nil {
			t.Fatalf("Map(0x%x): %v", c.vpn, err)
		}
	}

	for _, c := range cases {
		pte, ok := m.Walk(c.vpn)
		if !ok {
			t.Fatalf("Walk(0x%x): expected a present mapping", c.vpn)
		}
		if pte.PPN != c.ppn {
			t.Fatalf("Walk(0x%x): PPN = 0x%x, want 0x%x", c.vpn, pte.PPN, c.ppn)
		}
		wantR, wantW, wantX := false, false, false
		for _, a := range c.acl {
			switch a {
			case sv39.Read:
				wantR = true
			case sv39.Write:
				wantW = true
			case sv39.Execute:
				wantX = true
			}
		}
		if pte.R != wantR || pte.W != wantW || pte.X != wantX {
			t.Fatalf("Walk(0x%x): flags = %+v, want R=%v W=%v X=%v", c.vpn, pte, wantR, wantW, wantX)
		}
	}
}

// TestCollapse checks P-Collapse: after map(v,p,{R}) then unmap(v) on an
// otherwise empty table, the root contains only zero entries and both
// intermediate directories were returned to the allocator.
func TestCollapse(t *testing.T) {
	m, b := newManager(t)
	freeBefore := b.Free()

	if err := m.Map(0x1000, 0x5000, []sv39.ACL{sv39.Read}); err != nil {
		t.Fatal(err)
	}
	if b.Free() == freeBefore {
		t.Fatal("expected Map to have consumed pages for intermediate directories")
	}

	if err := m.Unmap(0x1000); err != nil {
		t.Fatal(err)
	}

	if _, ok := m.Walk(0x1000); ok {
		t.Fatal("expected the mapping to be gone after Unmap")
	}

	// Both intermediate directories allocated by Map must have been
	// released; only the (already-accounted-for) root directory remains.
	if b.Free() != freeBefore {
		t.Fatalf("free pages = %d, want %d (intermediate directories released)", b.Free(), freeBefore)
	}
}

// TestMapKernelRegionAppliesPerSegmentACLs checks spec.md §4.3's
// four-segment scheme: .text is R+X, .rodata is R only, .data and .bss are
// R+W, and each segment's every page lands at the expected ACL (not the
// whole kernel image collapsed into one range).
func TestMapKernelRegionAppliesPerSegmentACLs(t *testing.T) {
	m, _ := newManager(t)

	region := sv39.KernelRegion{
		TextStartPage: 0, TextPages: 2,
		RodataStartPage: 2, RodataPages: 1,
		DataStartPage: 3, DataPages: 1,
		BssStartPage: 4, BssPages: 2,
	}
	if err := m.MapKernelRegion(region); err != nil {
		t.Fatal(err)
	}

	checkACL := func(page uint64, wantR, wantW, wantX bool) {
		t.Helper()
		pte, ok := m.Walk(page)
		if !ok {
			t.Fatalf("page 0x%x: expected a mapping", page)
		}
		if pte.R != wantR || pte.W != wantW || pte.X != wantX {
			t.Fatalf("page 0x%x: flags = %+v, want R=%v W=%v X=%v", page, pte, wantR, wantW, wantX)
		}
		if pte.PPN != page {
			t.Fatalf("page 0x%x: PPN = 0x%x, want identity mapping", page, pte.PPN)
		}
	}

	checkACL(0, true, false, true)
	checkACL(1, true, false, true)
	checkACL(2, true, false, false)
	checkACL(3, true, true, false)
	checkACL(4, true, true, false)
	checkACL(5, true, true, false)
}

// TestCollapseKeepsSiblingDirectory checks that unmapping one leaf does
// not release an intermediate directory still serving a sibling mapping.
func TestCollapseKeepsSiblingDirectory(t *testing.T) {
	m, b := newManager(t)

	if err := m.Map(0x10, 0x20, []sv39.ACL{sv39.Read}); err != nil {
		t.Fatal(err)
	}
	if err := m.Map(0x11, 0x21, []sv39.ACL{sv39.Read}); err != nil {
		t.Fatal(err)
	}
	freeAfterBoth := b.Free()

	if err := m.Unmap(0x10); err != nil {
		t.Fatal(err)
	}
	if b.Free() != freeAfterBoth {
		t.Fatalf("unmapping one of two siblings released a shared directory: free = %d, want %d", b.Free(), freeAfterBoth)
	}

	if _, ok := m.Walk(0x11); !ok {
		t.Fatal("expected the sibling mapping to survive")
	}
}
