package translate

import "testing"

func TestFPUPushPopRotatesTop(t *testing.T) {
	c := NewFPUCache()
	r0, needsLoad := c.Get(0)
	if !needsLoad {
		t.Fatalf("first touch of ST(0) must request a guest-state load")
	}
	c.Push()
	r1, needsLoad := c.Get(0)
	if !needsLoad {
		t.Fatalf("ST(0) after Push should be a fresh slot needing a load")
	}
	if r1 == r0 {
		t.Fatalf("pushed ST(0) should not alias the pre-push ST(0)'s register")
	}
}

func TestPurgeClearsCacheAndReportsDirty(t *testing.T) {
	c := NewFPUCache()
	c.Get(0)
	c.MarkDirty(0)
	c.Get(1)

	dirty := c.Purge()
	if len(dirty) != 1 || dirty[0] != 0 {
		t.Fatalf("Purge should report only ST(0) as dirty, got %v", dirty)
	}
	// After purge the cache must be empty: next touch needs a load again.
	_, needsLoad := c.Get(0)
	if !needsLoad {
		t.Fatalf("ST(0) must need a reload after Purge")
	}
}
