package dynablock

import (
	"sort"
	"sync"

	"github.com/xyproto/b86arm/internal/execmem"
)

// List owns the set of dynablocks covering one tracked guest window
// (normally one 64 KiB page; the context's global/untracked list uses
// a zero-sized window, i.e. "bootstrapping" per spec §3). Blocks are
// kept sorted by GuestStart so Lookup can binary search; the spec's
// external contract only promises "the block covering guest_addr, or
// null" and is indifferent to this internal representation (spec §4.2).
type List struct {
	mu     sync.RWMutex
	base   uint32
	size   uint32 // 0 means "untracked", used by the global list
	blocks []*Block
	pool   *execmem.Pool
}

// NewList creates a list covering [base, base+size). size == 0 marks
// the global/untracked list used for bootstrapping (spec §3).
func NewList(base, size uint32, pool *execmem.Pool) *List {
	return &List{base: base, size: size, pool: pool}
}

// Start returns the lowest guest address any contained block starts
// at, or the list's base window start if empty; box86's
// StartDynablockList.
func (l *List) Start() uint32 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.blocks) == 0 {
		return l.base
	}
	return l.blocks[0].GuestStart
}

// End returns the end of the list's window (base+size) for a tracked
// list; for the untracked list (size 0) it returns the highest guest
// address any contained block ends at, or base if empty; box86's
// EndDynablockList.
func (l *List) End() uint32 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.size != 0 {
		return l.base + l.size
	}
	end := l.base
	for _, b := range l.blocks {
		if b.GuestEnd > end {
			end = b.GuestEnd
		}
	}
	return end
}

// Lookup returns the block whose guest range covers addr, or nil
// (spec §4.2, §8 invariant: never a block that does not contain addr).
func (l *List) Lookup(addr uint32) *Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lookupLocked(addr)
}

func (l *List) lookupLocked(addr uint32) *Block {
	// blocks is sorted by GuestStart; find the last block whose
	// GuestStart <= addr and check containment.
	i := sort.Search(len(l.blocks), func(i int) bool {
		return l.blocks[i].GuestStart > addr
	})
	if i == 0 {
		return nil
	}
	b := l.blocks[i-1]
	if b.Contains(addr) {
		return b
	}
	return nil
}

// Insert adds a block, keeping blocks sorted by GuestStart.
func (l *List) Insert(b *Block) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := sort.Search(len(l.blocks), func(i int) bool {
		return l.blocks[i].GuestStart >= b.GuestStart
	})
	l.blocks = append(l.blocks, nil)
	copy(l.blocks[i+1:], l.blocks[i:])
	l.blocks[i] = b
}

// FreeRange drops every block that overlaps [lo, hi) by even one byte
// (spec §4.2's tie-break: "any host instruction in the block may have
// inlined a constant derived from the now-stale guest byte"). Blocks
// obtained from the execmem nolinker path are unmapped; pool-backed
// blocks are simply unlinked, matching "slab-backed code is simply
// unlinked (memory stays)".
func (l *List) FreeRange(lo, hi uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.blocks[:0]
	for _, b := range l.blocks {
		if b.Overlaps(lo, hi) {
			l.releaseLocked(b)
			continue
		}
		kept = append(kept, b)
	}
	l.blocks = kept
}

// FreeAll drops every block in the list.
func (l *List) FreeAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, b := range l.blocks {
		l.releaseLocked(b)
	}
	l.blocks = nil
}

func (l *List) releaseLocked(b *Block) {
	if b.Origin == OriginStandalone && l.pool != nil {
		_ = l.pool.FreeStandalone(b.HostAddr, b.HostSize)
	}
}

// Len reports the number of blocks currently tracked, for tests.
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.blocks)
}
