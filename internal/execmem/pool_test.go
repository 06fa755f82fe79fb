package execmem

import (
	"testing"

	"github.com/xyproto/b86arm/internal/archinfo"
)

func testPlatform() archinfo.Platform {
	return archinfo.Platform{Guest: archinfo.GuestX86, Host: archinfo.HostARM}
}

// Scenario 1 from spec §8: allocating 100 bytes twice returns
// addresses 112 bytes apart ((100+15)&~15 = 112), both 16-byte aligned.
func TestAllocAlignmentAndBumping(t *testing.T) {
	p := New(1<<20, testPlatform())
	defer p.Close()

	a, err := p.Alloc(100, false)
	if err != nil {
		t.Fatalf("first alloc: %v", err)
	}
	if a%align != 0 {
		t.Fatalf("first alloc not 16-byte aligned: %#x", a)
	}

	b, err := p.Alloc(100, false)
	if err != nil {
		t.Fatalf("second alloc: %v", err)
	}
	if want := a + 112; b != want {
		t.Fatalf("second alloc = %#x, want %#x (first + 112)", b, want)
	}
}

func TestAllocNeverSpansSlabBoundary(t *testing.T) {
	const slabSize = 256
	p := New(slabSize, testPlatform())
	defer p.Close()

	a, err := p.Alloc(200, false)
	if err != nil {
		t.Fatalf("alloc 1: %v", err)
	}
	b, err := p.Alloc(200, false)
	if err != nil {
		t.Fatalf("alloc 2: %v", err)
	}
	if p.SlabCount() != 2 {
		t.Fatalf("expected a second slab to be appended, got %d slabs", p.SlabCount())
	}
	if b < a && b+200 > a {
		t.Fatalf("allocation spans slab boundary: a=%#x b=%#x", a, b)
	}
}

func TestNolinkerBypassesPool(t *testing.T) {
	p := New(1<<20, testPlatform())
	defer p.Close()

	addr, err := p.Alloc(4096, true)
	if err != nil {
		t.Fatalf("nolinker alloc: %v", err)
	}
	if p.SlabCount() != 0 {
		t.Fatalf("nolinker alloc should not touch the slab pool, got %d slabs", p.SlabCount())
	}
	if err := p.FreeStandalone(addr, 4096); err != nil {
		t.Fatalf("free standalone: %v", err)
	}
}

func TestConcurrentAllocsDoNotOverlap(t *testing.T) {
	p := New(1<<20, testPlatform())
	defer p.Close()

	const n = 64
	results := make(chan [2]uintptr, n)
	for i := 0; i < n; i++ {
		go func() {
			addr, err := p.Alloc(48, false)
			if err != nil {
				t.Error(err)
				results <- [2]uintptr{}
				return
			}
			results <- [2]uintptr{addr, addr + 48}
		}()
	}

	var ranges [][2]uintptr
	for i := 0; i < n; i++ {
		ranges = append(ranges, <-results)
	}
	for i := range ranges {
		for j := range ranges {
			if i == j {
				continue
			}
			a, b := ranges[i], ranges[j]
			if a[0] < b[1] && b[0] < a[1] {
				t.Fatalf("overlapping allocations: %v and %v", a, b)
			}
		}
	}
}
