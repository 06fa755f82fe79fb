package dynablock

import "testing"

func mkBlock(lo, hi uint32) *Block {
	return &Block{GuestStart: lo, GuestEnd: hi, HostAddr: uintptr(lo), HostSize: int(hi - lo)}
}

func TestLookupFindsCoveringBlockOnly(t *testing.T) {
	l := NewList(0, 0x10000, nil)
	b1 := mkBlock(0x100, 0x110)
	b2 := mkBlock(0x200, 0x210)
	l.Insert(b1)
	l.Insert(b2)

	if got := l.Lookup(0x105); got != b1 {
		t.Fatalf("Lookup(0x105) = %v, want b1", got)
	}
	if got := l.Lookup(0x205); got != b2 {
		t.Fatalf("Lookup(0x205) = %v, want b2", got)
	}
	if got := l.Lookup(0x180); got != nil {
		t.Fatalf("Lookup(0x180) = %v, want nil (gap between blocks)", got)
	}
	if got := l.Lookup(0x110); got != nil {
		t.Fatalf("Lookup(0x110) = %v, want nil (end is exclusive)", got)
	}
}

func TestSamePageInvariant(t *testing.T) {
	ok := mkBlock(0x8048000, 0x8048010)
	if !ok.SamePage() {
		t.Fatalf("block within one page should satisfy SamePage")
	}
	bad := &Block{GuestStart: 0xfff0, GuestEnd: 0x10010}
	if bad.SamePage() {
		t.Fatalf("block crossing a 64KiB boundary must fail SamePage")
	}
}

// Scenario / invariant from spec §8: after FreeRange(lo,hi), every
// address in [lo,hi) must miss.
func TestFreeRangeClearsCoveredAddresses(t *testing.T) {
	l := NewList(0, 0x10000, nil)
	l.Insert(mkBlock(0x10, 0x20))
	l.Insert(mkBlock(0x30, 0x40))
	l.Insert(mkBlock(0x1000, 0x1010))

	l.FreeRange(0x15, 0x1005)

	for _, a := range []uint32{0x15, 0x18, 0x30, 0x35, 0x1000, 0x1004} {
		if got := l.Lookup(a); got != nil {
			t.Fatalf("Lookup(%#x) = %v after FreeRange, want nil", a, got)
		}
	}
	// Blocks entirely outside the invalidated range survive.
	l2 := NewList(0, 0x10000, nil)
	keep := mkBlock(0x2000, 0x2010)
	l2.Insert(keep)
	l2.Insert(mkBlock(0x10, 0x20))
	l2.FreeRange(0x0, 0x1000)
	if got := l2.Lookup(0x2005); got != keep {
		t.Fatalf("block outside invalidated range should survive FreeRange")
	}
}

func TestFreeRangePartialOverlapStillRemoves(t *testing.T) {
	l := NewList(0, 0x10000, nil)
	l.Insert(mkBlock(0x10, 0x30))
	// Invalidate just one byte inside the block.
	l.FreeRange(0x1f, 0x20)
	if got := l.Lookup(0x15); got != nil {
		t.Fatalf("block overlapping invalidation range by one byte must be removed entirely")
	}
}

func TestFreeAllEmptiesList(t *testing.T) {
	l := NewList(0, 0x10000, nil)
	l.Insert(mkBlock(0x10, 0x20))
	l.Insert(mkBlock(0x30, 0x40))
	l.FreeAll()
	if l.Len() != 0 {
		t.Fatalf("FreeAll left %d blocks", l.Len())
	}
}
