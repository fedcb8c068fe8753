// Package buddy implements the kernel's physical page allocator: a classic
// binary-buddy scheme over a contiguous run of pages, with eager coalescing
// on free.
//
// Grounded on original_source/src/buddy_allocator.rs (BuddyAllocator,
// FreeNode). The Rust version represents free-list cells as an arena
// (`free_nodes: [FreeNode; NODE_CAPACITY]`) linked by `Option<usize>`
// indices rather than pointers, specifically so the allocator never has to
// allocate memory to track its own free lists (spec.md §9's "no recursive
// allocation" invariant). This port keeps that shape exactly: freeNode.next
// is an int index, -1 standing in for None.
package buddy

import (
	kpanic "github.com/31core/rv39kernel/internal/panic"
)

const (
	// maxOrder bounds the pows table; a run can never exceed 2^maxOrder-1
	// pages, which is far larger than any real heap this kernel manages.
	maxOrder = 64

	// nodeCapacity is the size of the pre-allocated free-node arena. It
	// must be large enough that init's greedy power-of-two decomposition
	// plus any sequence of splits never needs more live cells than this;
	// 8196 matches the Rust NODE_COMPATIBILITY constant.
	nodeCapacity = 8196
)

const none = -1

// freeNode is one cell of the free-list arena. addr is a page number
// relative to Allocator.start; next is either the index of the following
// cell in the same pows[order] list, or none.
type freeNode struct {
	addr uint64
	next int
}

// Allocator is the kernel's buddy page allocator. The zero value is not
// ready to use — call Init first. A single instance is meant to be a
// process-wide singleton with init-once lifetime (spec.md §9); nothing here
// is safe for concurrent use, matching §5's "not reentrant" contract.
type Allocator struct {
	start uint64
	free  uint64

	// pows[p] is the index of the head cell of the free list for order p,
	// or none if no run of that order is free.
	pows [maxOrder]int

	// freeNodes is the cell arena; freeStart heads the sub-list of cells
	// not currently attached to any pows[p] list.
	freeNodes [nodeCapacity]freeNode
	freeStart int
}

// Free reports the number of pages currently available for allocation.
func (a *Allocator) Free() uint64 { return a.free }

// Start returns the base page number the allocator was initialized with.
func (a *Allocator) Start() uint64 { return a.start }

// floorPow2 returns the largest p such that 2^p <= n (n must be > 0).
func floorPow2(n uint64) uint {
	var p uint
	for shift := uint(maxOrder - 1); ; shift-- {
		if (n>>shift)&1 == 1 {
			p = shift
			break
		}
		if shift == 0 {
			break
		}
	}
	return p
}

// isPow2 reports whether n is an exact power of two (n must be > 0).
func isPow2(n uint64) bool { return n&(n-1) == 0 }

// Init seeds the allocator over [startPage, startPage+pageCount). It
// decomposes pageCount into a descending sum of powers of two (greedy
// floor-log2 peeling, per spec.md §4.1) and parks the rest of the arena on
// the free-cell pool.
func (a *Allocator) Init(startPage, pageCount uint64) {
	a.start = startPage
	a.free = pageCount

	for i := range a.pows {
		a.pows[i] = none
	}

	for i := range a.freeNodes {
		if i < nodeCapacity-1 {
			a.freeNodes[i] = freeNode{next: i + 1}
		} else {
			a.freeNodes[i] = freeNode{next: none}
		}
	}
	a.freeStart = 0

	if pageCount == 0 {
		return
	}

	var relAddr uint64
	remaining := pageCount
	for {
		order := floorPow2(remaining)
		a.addNode(order, freeNode{addr: relAddr})

		runSize := uint64(1) << order
		remaining -= runSize
		relAddr += runSize

		if remaining == 0 {
			break
		}
	}
}

// addNode takes a cell off the free-cell pool, populates it, and pushes it
// onto pows[order].
func (a *Allocator) addNode(order uint, node freeNode) {
	if a.freeStart == none {
		kpanic.Fatalf("buddy: free-node arena exhausted")
	}
	cellIndex := a.freeStart
	a.freeStart = a.freeNodes[cellIndex].next

	node.next = a.pows[order]
	a.pows[order] = cellIndex
	a.freeNodes[cellIndex] = node
}

// addFreeNode returns a cell to the free-cell pool (not to any pows list).
func (a *Allocator) addFreeNode(cellIndex int) {
	a.freeNodes[cellIndex].next = a.freeStart
	a.freeStart = cellIndex
}

// popNode detaches and returns the head cell of pows[order], recycling its
// slot to the free-cell pool. Callers must have already checked pows[order]
// is non-empty.
func (a *Allocator) popNode(order uint) freeNode {
	cellIndex := a.pows[order]
	node := a.freeNodes[cellIndex]
	a.pows[order] = node.next
	a.addFreeNode(cellIndex)
	return node
}

// AllocPages returns the base page number (absolute, i.e. relative to 0,
// not to Start()) of a run of exactly n pages. n must be a power of two;
// exhaustion and a non-power-of-two request are both fatal per spec.md §7.
func (a *Allocator) AllocPages(n uint64) uint64 {
	if n == 0 || !isPow2(n) {
		kpanic.Fatalf("buddy: AllocPages(%d) is not a power of two", n)
	}

	for order := uint(0); order < maxOrder; order++ {
		found := uint64(1) << order
		if a.pows[order] == none {
			continue
		}

		if found == n {
			a.free -= n
			return a.start + a.popNode(order).addr
		}

		if found > n {
			node := a.popNode(order)
			base := node.addr
			size := found

			// Split the run one order at a time: the upper half at each
			// successive order is re-inserted as a new free run, until the
			// remaining lower half equals n.
			for step := uint(1); step <= order; step++ {
				size /= 2
				upperHalf := base + size
				a.addNode(order-step, freeNode{addr: upperHalf})

				if size == n {
					a.free -= n
					return a.start + base
				}
			}
		}
	}

	kpanic.Fatalf("buddy: out of memory allocating %d pages (free=%d)", n, a.free)
	return 0 // unreachable: Fatalf never returns in production
}

// FreePages returns a previously allocated n-page run starting at base
// (absolute page number, as returned by AllocPages) to the allocator,
// merging with its buddy at every order where the buddy is also free.
func (a *Allocator) FreePages(base, n uint64) {
	if n == 0 || !isPow2(n) {
		kpanic.Fatalf("buddy: FreePages(_, %d) is not a power of two", n)
	}

	relBase := base - a.start
	order := uint(0)
	for p := uint(0); p < maxOrder; p++ {
		if uint64(1)<<p == n {
			order = p
			break
		}
	}

	// freed is the page count actually transitioning from allocated to
	// free; n itself doubles below as runs merge into successively larger
	// orders, so a.free must be credited with freed, not the final n.
	freed := n

	for p := order; p < maxOrder; p++ {
		runSize := uint64(1) << p
		head := a.pows[p]

		var merged bool
		if head != none {
			// The buddy of [relBase, relBase+n) at this order is the
			// adjacent run of the same size: to our left if relBase is the
			// upper half of a 2*runSize-aligned pair, to our right
			// otherwise.
			isLeftBuddy := (relBase/runSize)%2 == 0

			if isLeftBuddy {
				if a.freeNodes[head].addr == relBase+runSize {
					a.pows[p] = a.freeNodes[head].next
					a.addFreeNode(head)
					merged = true
				} else {
					cur := head
					for a.freeNodes[cur].next != none {
						next := a.freeNodes[cur].next
						if a.freeNodes[next].addr == relBase+runSize {
							a.freeNodes[cur].next = a.freeNodes[next].next
							a.addFreeNode(next)
							merged = true
							break
						}
						cur = next
					}
				}
			} else {
				if a.freeNodes[head].addr+runSize == relBase {
					a.pows[p] = a.freeNodes[head].next
					a.addFreeNode(head)
					relBase -= runSize
					merged = true
				} else {
					cur := head
					for a.freeNodes[cur].next != none {
						next := a.freeNodes[cur].next
						if a.freeNodes[next].addr+runSize == relBase {
							a.freeNodes[cur].next = a.freeNodes[next].next
							a.addFreeNode(next)
							relBase -= runSize
							merged = true
							break
						}
						cur = next
					}
				}
			}
		}

		if !merged {
			a.addNode(p, freeNode{addr: relBase})
			a.free += freed
			return
		}
		n *= 2
	}

	// Walked off the top order without inserting: this only happens if n
	// already spans the whole managed region, which addNode handles at
	// maxOrder-1 in practice; insert at the last order as a fallback.
	a.addNode(maxOrder-1, freeNode{addr: relBase})
	a.free += freed
}
