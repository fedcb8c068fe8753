package physmem_test

import (
	"testing"

	"github.com/31core/rv39kernel/internal/physmem"
	"github.com/31core/rv39kernel/internal/platform"
)

func TestArenaIsPageAligned(t *testing.T) {
	a := physmem.NewArena(8)
	if a.Base()%platform.PageSize != 0 {
		t.Fatalf("arena base 0x%x is not page-aligned", a.Base())
	}
	if a.Pages() != 8 {
		t.Fatalf("Pages() = %d, want 8", a.Pages())
	}
}

func TestAddrPageRoundTrip(t *testing.T) {
	a := physmem.NewArena(4)
	for page := uint64(0); page < 4; page++ {
		addr := a.AddrOfPage(page)
		if got := a.PageOfAddr(addr); got != page {
			t.Fatalf("PageOfAddr(AddrOfPage(%d)) = %d", page, got)
		}
	}
}

func TestPageBytesDisjoint(t *testing.T) {
	a := physmem.NewArena(2)
	p0, err := a.PageBytes(0)
	if err != nil {
		t.Fatal(err)
	}
	p1, err := a.PageBytes(1)
	if err != nil {
		t.Fatal(err)
	}
	p0[0] = 0xAA
	if p1[0] == 0xAA {
		t.Fatal("writing page 0 leaked into page 1")
	}

	if _, err := a.PageBytes(2); err == nil {
		t.Fatal("expected an out-of-range error for page 2 of a 2-page arena")
	}
}

func TestBytesViewMatchesPageBytes(t *testing.T) {
	a := physmem.NewArena(2)
	page, err := a.PageBytes(1)
	if err != nil {
		t.Fatal(err)
	}
	page[3] = 0x42

	view, err := a.Bytes(a.AddrOfPage(1), platform.PageSize)
	if err != nil {
		t.Fatal(err)
	}
	if view[3] != 0x42 {
		t.Fatalf("Bytes view did not alias PageBytes's slice")
	}

	if _, err := a.Bytes(a.AddrOfPage(0), 2*platform.PageSize+1); err == nil {
		t.Fatal("expected an out-of-range error spanning past the arena")
	}
}
