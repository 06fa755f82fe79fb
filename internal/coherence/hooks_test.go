package coherence

import "testing"

type fakeTracker struct {
	added   [][2]uint32
	cleaned [][2]uint32
}

func (f *fakeTracker) AddRange(lo, size uint32)   { f.added = append(f.added, [2]uint32{lo, size}) }
func (f *fakeTracker) CleanRange(lo, size uint32) { f.cleaned = append(f.cleaned, [2]uint32{lo, size}) }

func TestOnMapForwardsToAddRange(t *testing.T) {
	ft := &fakeTracker{}
	h := New(ft)
	h.OnMap(0x8048000, 0x4000)
	if len(ft.added) != 1 || ft.added[0] != [2]uint32{0x8048000, 0x4000} {
		t.Fatalf("expected OnMap to forward to AddRange, got %v", ft.added)
	}
}

func TestOnUnmapForwardsToCleanRange(t *testing.T) {
	ft := &fakeTracker{}
	h := New(ft)
	h.OnUnmap(0x8048000, 0x4000)
	if len(ft.cleaned) != 1 || ft.cleaned[0] != [2]uint32{0x8048000, 0x4000} {
		t.Fatalf("expected OnUnmap to forward to CleanRange, got %v", ft.cleaned)
	}
}

func TestOnWriteForwardsToCleanRange(t *testing.T) {
	ft := &fakeTracker{}
	h := New(ft)
	h.OnWrite(0x1000, 0x10)
	if len(ft.cleaned) != 1 || ft.cleaned[0] != [2]uint32{0x1000, 0x10} {
		t.Fatalf("expected OnWrite to forward to CleanRange, got %v", ft.cleaned)
	}
}
