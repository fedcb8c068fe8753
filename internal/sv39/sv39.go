// Package sv39 implements the RISC-V SV39 three-level page-table manager:
// building and editing page directories, installing SATP, and identity
// mapping the kernel's own segments.
//
// Grounded on original_source/src/arch/riscv64/page.rs (PageTableEntry,
// PageDtrectory, PageManager) and src/page.rs (the PageManagement trait and
// its default map_rodata/map_data/map_text/map_kernel_region helpers). Page
// directories are allocated as whole pages from internal/buddy, exactly as
// alloc_page_dir does via the global allocator in the Rust source — this is
// the second of the two buddy-backed consumers spec.md calls out (the slab
// cache being the first).
package sv39

import (
	"fmt"
	"unsafe"

	"github.com/31core/rv39kernel/internal/bitfield"
	"github.com/31core/rv39kernel/internal/buddy"
	kpanic "github.com/31core/rv39kernel/internal/panic"
	"github.com/31core/rv39kernel/internal/physmem"
	"github.com/31core/rv39kernel/internal/platform"
)

// ModeSV39 is the SATP mode field value selecting 39-bit virtual
// addressing.
const ModeSV39 = 8

// rawPTE is the tagged field layout of one 64-bit SV39 PTE word, packed and
// unpacked via internal/bitfield the way the teacher's own ARM64 page-flags
// type does, low field first: V, R, W, X, U, then the reserved RSW+A/D/G
// run, then the 44-bit PPN.
type rawPTE struct {
	Valid    bool   `bitfield:",1"`
	R        bool   `bitfield:",1"`
	W        bool   `bitfield:",1"`
	X        bool   `bitfield:",1"`
	U        bool   `bitfield:",1"`
	Reserved uint8  `bitfield:",5"`
	PPN      uint64 `bitfield:",44"`
}

// entriesPerDir is the number of 8-byte PTEs in one 4KiB directory page.
const entriesPerDir = platform.PageSize / 8

// ACL is one access right a mapping can carry. Read/Write/Execute mirror
// the Rust PageACL enum.
type ACL int

const (
	Read ACL = iota
	Write
	Execute
)

// PageTableEntry is the decoded form of one 64-bit SV39 PTE: the four
// permission flags plus the physical page number it points at. The V bit
// is implicit — a PageTableEntry is only ever materialized for a present
// entry.
type PageTableEntry struct {
	R, W, X, U bool
	PPN        uint64
}

func decodePTE(raw uint64) PageTableEntry {
	var p rawPTE
	if err := bitfield.Unpack(raw, &p, nil); err != nil {
		kpanic.Fatalf("sv39: decodePTE: %v", err)
	}
	return PageTableEntry{R: p.R, W: p.W, X: p.X, U: p.U, PPN: p.PPN}
}

func encodePTE(pte PageTableEntry) uint64 {
	p := rawPTE{Valid: true, R: pte.R, W: pte.W, X: pte.X, U: pte.U, PPN: pte.PPN}
	raw, err := bitfield.Pack(&p, nil)
	if err != nil {
		kpanic.Fatalf("sv39: encodePTE: %v", err)
	}
	return raw
}

// PageManagement is the capability-set interface every address-space
// implementation in this kernel satisfies: map/unmap a single page,
// install the table, and identity-map the kernel's own segments. Kept as
// an interface (rather than a concrete type) so task.Task can hold
// whichever backing implementation a build targets, per spec.md §9's
// "dynamic dispatch for filesystems and page managers" note.
type PageManagement interface {
	Map(vpn, ppn uint64, acl []ACL) error
	MapRodata(vpn, ppn uint64) error
	MapData(vpn, ppn uint64) error
	MapText(vpn, ppn uint64) error
	Unmap(vpn uint64) error
	SwitchTo()
	MapKernelRegion(region KernelRegion) error
	RootPPN() uint64
}

// KernelRegion describes the four linker segments map_kernel_region
// identity-maps, each given as [startPage, count): .text (R+X), .rodata
// (R), .data and .bss (R+W), exactly the four-segment scheme spec.md
// §4.3 specifies, rather than collapsing rodata/data into the text range.
type KernelRegion struct {
	TextStartPage, TextPages     uint64
	RodataStartPage, RodataPages uint64
	DataStartPage, DataPages     uint64
	BssStartPage, BssPages       uint64
}

// directory is a view over one 4KiB page of 512 raw PTE words.
type directory struct {
	addr uintptr
}

func (d directory) pte(i uint64) uint64 {
	return *(*uint64)(unsafe.Pointer(d.addr + uintptr(i*8)))
}

func (d directory) setPTE(i uint64, raw uint64) {
	*(*uint64)(unsafe.Pointer(d.addr + uintptr(i*8))) = raw
}

func (d directory) isEmpty() bool {
	for i := uint64(0); i < entriesPerDir; i++ {
		if d.pte(i) != 0 {
			return false
		}
	}
	return true
}

// Manager is a single address space's SV39 page table. The zero value is
// not ready to use — call New.
type Manager struct {
	buddy *buddy.Allocator
	arena *physmem.Arena
	root  directory

	// switchFn receives the root PPN on SwitchTo. New sets it to a no-op
	// and nothing replaces it, on the host or on riscv64.
	switchFn func(rootPPN uint64)
}

// New allocates a fresh, zeroed root directory and returns a Manager over
// it.
func New(b *buddy.Allocator, arena *physmem.Arena) *Manager {
	m := &Manager{buddy: b, arena: arena, switchFn: func(uint64) {}}
	m.root = directory{addr: m.allocPageDir()}
	return m
}

// allocPageDir takes one zeroed page from the buddy allocator to serve as
// a page directory, mirroring alloc_page_dir's alloc_zeroed call.
func (m *Manager) allocPageDir() uintptr {
	pageNum := m.buddy.AllocPages(1)
	addr := m.arena.AddrOfPage(pageNum)
	buf, err := m.arena.PageBytes(pageNum)
	if err != nil {
		kpanic.Fatalf("sv39: allocPageDir: %v", err)
	}
	for i := range buf {
		buf[i] = 0
	}
	return addr
}

func (m *Manager) releasePageDir(d directory) {
	pageNum := m.arena.PageOfAddr(d.addr)
	m.buddy.FreePages(pageNum, 1)
}

// RootPPN returns the physical page number of the root directory, the
// value SwitchTo would (eventually) write into SATP's PPN field.
func (m *Manager) RootPPN() uint64 {
	return m.arena.PageOfAddr(m.root.addr)
}

func aclMask(acl []ACL) (r, w, x bool) {
	for _, a := range acl {
		switch a {
		case Read:
			r = true
		case Write:
			w = true
		case Execute:
			x = true
		}
	}
	return
}

// splitVPN breaks a 27-bit virtual page number into its three 9-bit level
// indices, per SV39's v1/v2/v3 walk.
func splitVPN(vpn uint64) (v1, v2, v3 uint64) {
	return vpn >> 18, (vpn >> 9) & 0x1ff, vpn & 0x1ff
}

// Map installs a leaf mapping from vpn to ppn with the given access
// rights, lazily allocating any missing intermediate directory along the
// way, exactly as PageManager::map does.
func (m *Manager) Map(vpn, ppn uint64, acl []ACL) error {
	if vpn >= 1<<27 {
		return fmt.Errorf("sv39: vpn 0x%x exceeds the SV39 address space", vpn)
	}
	r, w, x := aclMask(acl)

	v1, v2, v3 := splitVPN(vpn)

	v1Raw := m.root.pte(v1)
	var v1PPN uint64
	if v1Raw == 0 {
		v1PPN = m.arena.PageOfAddr(m.allocPageDir())
		m.root.setPTE(v1, encodePTE(PageTableEntry{PPN: v1PPN}))
	} else {
		v1PPN = decodePTE(v1Raw).PPN
	}
	v2dir := directory{addr: m.arena.AddrOfPage(v1PPN)}

	v2Raw := v2dir.pte(v2)
	var v2PPN uint64
	if v2Raw == 0 {
		v2PPN = m.arena.PageOfAddr(m.allocPageDir())
		v2dir.setPTE(v2, encodePTE(PageTableEntry{PPN: v2PPN}))
	} else {
		v2PPN = decodePTE(v2Raw).PPN
	}
	v3dir := directory{addr: m.arena.AddrOfPage(v2PPN)}

	v3dir.setPTE(v3, encodePTE(PageTableEntry{R: r, W: w, X: x, PPN: ppn}))
	return nil
}

func (m *Manager) MapRodata(vpn, ppn uint64) error { return m.Map(vpn, ppn, []ACL{Read}) }
func (m *Manager) MapData(vpn, ppn uint64) error   { return m.Map(vpn, ppn, []ACL{Read, Write}) }
func (m *Manager) MapText(vpn, ppn uint64) error   { return m.Map(vpn, ppn, []ACL{Read, Execute}) }

// Walk returns the decoded leaf PTE for vpn, for tests and other callers
// that need to inspect a mapping. ok is false if any level of the walk is
// unmapped.
func (m *Manager) Walk(vpn uint64) (pte PageTableEntry, ok bool) {
	v1, v2, v3 := splitVPN(vpn)

	v1Raw := m.root.pte(v1)
	if v1Raw == 0 {
		return PageTableEntry{}, false
	}
	v2dir := directory{addr: m.arena.AddrOfPage(decodePTE(v1Raw).PPN)}

	v2Raw := v2dir.pte(v2)
	if v2Raw == 0 {
		return PageTableEntry{}, false
	}
	v3dir := directory{addr: m.arena.AddrOfPage(decodePTE(v2Raw).PPN)}

	v3Raw := v3dir.pte(v3)
	if v3Raw == 0 {
		return PageTableEntry{}, false
	}
	return decodePTE(v3Raw), true
}

// Unmap clears the leaf PTE for vpn and releases intermediate directories
// bottom-up, once each is confirmed empty (I11 — never on a non-empty
// parent, matching the spec's correction to release_page_dir).
func (m *Manager) Unmap(vpn uint64) error {
	v1, v2, v3 := splitVPN(vpn)

	v1Raw := m.root.pte(v1)
	if v1Raw == 0 {
		return fmt.Errorf("sv39: Unmap(0x%x): v1 directory unmapped", vpn)
	}
	v1PTE := decodePTE(v1Raw)
	v2dir := directory{addr: m.arena.AddrOfPage(v1PTE.PPN)}

	v2Raw := v2dir.pte(v2)
	if v2Raw == 0 {
		return fmt.Errorf("sv39: Unmap(0x%x): v2 directory unmapped", vpn)
	}
	v2PTE := decodePTE(v2Raw)
	v3dir := directory{addr: m.arena.AddrOfPage(v2PTE.PPN)}

	v3dir.setPTE(v3, 0)

	if v3dir.isEmpty() {
		m.releasePageDir(v3dir)
		v2dir.setPTE(v2, 0)
	}

	if v2dir.isEmpty() {
		m.releasePageDir(v2dir)
		m.root.setPTE(v1, 0)
	}

	return nil
}

// SwitchTo passes the root PPN to switchFn, which is a no-op in every
// build: SATP is not written and no sfence.vma is issued, so this table
// does not become the active address space.
func (m *Manager) SwitchTo() {
	m.switchFn(m.RootPPN())
}

// MapKernelRegion identity-maps each of the kernel's own linker segments
// with its own access rights — .text read-execute, .rodata read-only,
// .data and .bss read-write — iterating per-page over
// [segment_start, segment_end), mirroring map_kernel_region's default
// implementation exactly (spec.md §4.3).
func (m *Manager) MapKernelRegion(region KernelRegion) error {
	for i := uint64(0); i < region.TextPages; i++ {
		page := region.TextStartPage + i
		if err := m.MapText(page, page); err != nil {
			return err
		}
	}
	for i := uint64(0); i < region.RodataPages; i++ {
		page := region.RodataStartPage + i
		if err := m.MapRodata(page, page); err != nil {
			return err
		}
	}
	for i := uint64(0); i < region.DataPages; i++ {
		page := region.DataStartPage + i
		if err := m.MapData(page, page); err != nil {
			return err
		}
	}
	for i := uint64(0); i < region.BssPages; i++ {
		page := region.BssStartPage + i
		if err := m.MapData(page, page); err != nil {
			return err
		}
	}
	return nil
}

var _ PageManagement = (*Manager)(nil)
