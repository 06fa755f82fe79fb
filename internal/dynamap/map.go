// Package dynamap implements the dynamic map of spec §4.2: a fixed-size
// sparse array of 2^16 slots indexed by the top 16 bits of a guest
// address, each slot lazily owning a dynablock list covering one 64 KiB
// guest page.
package dynamap

import (
	"sync"

	"github.com/xyproto/b86arm/internal/dynablock"
	"github.com/xyproto/b86arm/internal/execmem"
)

const (
	slotBits  = 16
	slotCount = 1 << slotBits
	pageSize  = 1 << (32 - slotBits)
)

// Map is the guest-address-indexed slot array. Slot creation is lazy,
// on the first AddRange call that touches it.
type Map struct {
	mu    sync.RWMutex
	slots [slotCount]*dynablock.List
	pool  *execmem.Pool
}

// New creates an empty dynamic map backed by pool for any standalone
// host memory its blocks may own.
func New(pool *execmem.Pool) *Map {
	return &Map{pool: pool}
}

func slotOf(addr uint32) uint32 {
	return addr >> (32 - slotBits)
}

func pageBase(slot uint32) uint32 {
	return slot << (32 - slotBits)
}

// Lookup returns the block covering addr, or nil if the page is
// untracked or no block there covers addr.
func (m *Map) Lookup(addr uint32) *dynablock.Block {
	slot := slotOf(addr)
	m.mu.RLock()
	l := m.slots[slot]
	m.mu.RUnlock()
	if l == nil {
		return nil
	}
	return l.Lookup(addr)
}

// ListFor returns the dynablock list owning addr's page, creating it
// if necessary; the path the translator uses to install a freshly
// built block (spec §4.2/§4.3).
func (m *Map) ListFor(addr uint32) *dynablock.List {
	slot := slotOf(addr)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ensureLocked(slot)
}

func (m *Map) ensureLocked(slot uint32) *dynablock.List {
	if m.slots[slot] == nil {
		m.slots[slot] = dynablock.NewList(pageBase(slot), pageSize, m.pool)
	}
	return m.slots[slot]
}

// AddRange lazily creates an empty dynablock list for every page
// intersecting [lo, lo+size) that is currently empty. Idempotent
// (spec §4.2/§5): pages that already own a list are left untouched.
func (m *Map) AddRange(lo uint32, size uint32) {
	if size == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, slot := range slotsTouched(lo, size) {
		m.ensureLocked(slot)
	}
}

// CleanRange invalidates every dynablock intersecting [lo, lo+size).
// For a page whose tracked window is fully covered by the invalidated
// range, the page's list is dropped wholesale and its slot cleared;
// otherwise the list's own FreeRange is used to drop only the
// intersecting blocks (spec §4.2, grounded on cleanDBFromAddressRange's
// two-path behavior).
func (m *Map) CleanRange(lo uint32, size uint32) {
	if size == 0 {
		return
	}
	hi := rangeEnd(lo, size)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, slot := range slotsTouched(lo, size) {
		l := m.slots[slot]
		if l == nil {
			continue
		}
		pLo, pHi := pageBase(slot), pageBase(slot)+pageSize
		if lo <= pLo && hi >= pHi {
			l.FreeAll()
			m.slots[slot] = nil
			continue
		}
		l.FreeRange(lo, hi)
	}
}

// rangeEnd computes lo+size saturating at 2^32-1 so that
// clean_range(0, 0xffffffff); spec §8 scenario 3; covers the entire
// address space without wrapping.
func rangeEnd(lo, size uint32) uint32 {
	hi := lo + size
	if hi < lo {
		return 0xffffffff
	}
	return hi
}

// slotsTouched enumerates every slot index intersecting [lo, lo+size).
func slotsTouched(lo, size uint32) []uint32 {
	hi := rangeEnd(lo, size)
	first := slotOf(lo)
	var last uint32
	if hi == 0 {
		last = first
	} else {
		last = slotOf(hi - 1)
	}
	out := make([]uint32, 0, last-first+1)
	for s := first; ; s++ {
		out = append(out, s)
		if s == last {
			break
		}
	}
	return out
}
