package context

import (
	"testing"

	"github.com/xyproto/b86arm/internal/archinfo"
)

func newTestContext() *Context {
	return New(archinfo.Platform{Guest: archinfo.GuestX86, Host: archinfo.HostARM64}, 1<<16)
}

func TestNewContextInitializesCanaryAndCollaborators(t *testing.T) {
	c := newTestContext()
	defer c.Free()

	zeros := 0
	for _, b := range c.Canary() {
		if b == 0 {
			zeros++
		}
	}
	if zeros != 1 {
		t.Fatalf("expected exactly one zero canary byte, got %d", zeros)
	}
	if c.Pool() == nil || c.DynamicMap() == nil || c.GlobalList() == nil {
		t.Fatalf("expected pool, dynamic map, and global list to be created eagerly")
	}
}

// Scenario from spec §8: Fork twice, then Free three times. The first
// two Frees must be no-ops (forked stays >= 0 after decrementing); only
// the third actually tears the context down.
func TestFreeIsNoOpWhileForkedNonNegative(t *testing.T) {
	c := newTestContext()
	c.Fork()
	c.Fork()

	if err := c.Free(); err != nil {
		t.Fatalf("first Free: %v", err)
	}
	if c.closed {
		t.Fatalf("first Free must not tear down the context")
	}

	if err := c.Free(); err != nil {
		t.Fatalf("second Free: %v", err)
	}
	if c.closed {
		t.Fatalf("second Free must not tear down the context")
	}

	if err := c.Free(); err != nil {
		t.Fatalf("third Free: %v", err)
	}
	if !c.closed {
		t.Fatalf("third Free must perform the full teardown")
	}
}

func TestFreeWithoutForkTearsDownImmediately(t *testing.T) {
	c := newTestContext()
	if err := c.Free(); err != nil {
		t.Fatalf("Free: %v", err)
	}
	if !c.closed {
		t.Fatalf("expected immediate teardown with no prior Fork calls")
	}
	// idempotent: a second Free on an already-closed context is a no-op.
	if err := c.Free(); err != nil {
		t.Fatalf("second Free: %v", err)
	}
}

func TestAddRangeThenCleanRangeRoundTrip(t *testing.T) {
	c := newTestContext()
	defer c.Free()

	c.AddRange(0x8048000, 0x4000)
	if c.DynamicMap().Lookup(0x8048000) != nil {
		t.Fatalf("AddRange must not itself insert a block")
	}
	c.CleanRange(0, 0xffffffff)
}
