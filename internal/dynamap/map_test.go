package dynamap

import (
	"testing"

	"github.com/xyproto/b86arm/internal/dynablock"
)

func mkBlock(lo, hi uint32) *dynablock.Block {
	return &dynablock.Block{GuestStart: lo, GuestEnd: hi, HostAddr: uintptr(lo), HostSize: int(hi - lo)}
}

// Scenario 2 from spec §8: add_range(0x8048000, 0x4000) populates slot
// 0x804 only; neighboring slots stay empty.
func TestAddRangePopulatesOnlyTouchedSlots(t *testing.T) {
	m := New(nil)
	m.AddRange(0x8048000, 0x4000)

	if m.slots[0x804] == nil {
		t.Fatalf("slot 0x804 should be populated")
	}
	if m.slots[0x803] != nil {
		t.Fatalf("slot 0x803 should remain empty")
	}
	if m.slots[0x805] != nil {
		t.Fatalf("slot 0x805 should remain empty")
	}
}

func TestAddRangeIdempotent(t *testing.T) {
	m := New(nil)
	m.AddRange(0x1000, 0x10000)
	l := m.ListFor(0x1000)
	l.Insert(mkBlock(0x1000, 0x1010))
	m.AddRange(0x1000, 0x10000)
	if got := m.ListFor(0x1000); got != l {
		t.Fatalf("AddRange replaced an already-populated slot's list")
	}
	if got := m.Lookup(0x1005); got == nil {
		t.Fatalf("existing block lost after idempotent AddRange")
	}
}

// Scenario 3 from spec §8: clean_range(0, 0xffffffff) empties every
// populated slot regardless of how many there are.
func TestCleanRangeFullSpanEmptiesAllSlots(t *testing.T) {
	m := New(nil)
	for _, base := range []uint32{0x1000, 0x8048000, 0xffff0000} {
		m.AddRange(base, 1)
		m.ListFor(base).Insert(mkBlock(base, base+0x10))
	}
	m.CleanRange(0, 0xffffffff)

	for i := range m.slots {
		if m.slots[i] != nil {
			t.Fatalf("slot %d still populated after full-span CleanRange", i)
		}
	}
}

func TestCleanRangePartialPageUsesListFreeRange(t *testing.T) {
	m := New(nil)
	m.AddRange(0x10000, 0x10000) // exactly one page: slot 1
	l := m.ListFor(0x10000)
	l.Insert(mkBlock(0x10010, 0x10020))
	l.Insert(mkBlock(0x1f000, 0x1f010))

	// Invalidate only the first block's range, not the whole page.
	m.CleanRange(0x10010, 0x10)

	if m.slots[1] == nil {
		t.Fatalf("partial clean should not drop the whole page's list")
	}
	if got := m.Lookup(0x10015); got != nil {
		t.Fatalf("invalidated block should be gone")
	}
	if got := m.Lookup(0x1f005); got == nil {
		t.Fatalf("block outside the cleaned sub-range should survive")
	}
}

// add_range then clean_range over the same range returns the map to
// its prior empty-slot state (spec §4.2 round-trip invariant).
func TestAddThenCleanSameRangeRestoresEmptyState(t *testing.T) {
	m := New(nil)
	m.AddRange(0x20000, 0x10000)
	m.CleanRange(0x20000, 0x10000)
	if m.slots[2] != nil {
		t.Fatalf("slot should be empty again after add_range;clean_range over the same full page")
	}
}

func TestLookupOnUntrackedPageReturnsNil(t *testing.T) {
	m := New(nil)
	if got := m.Lookup(0x12345678); got != nil {
		t.Fatalf("lookup on untouched slot must return nil, got %v", got)
	}
}
