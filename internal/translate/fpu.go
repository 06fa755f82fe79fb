package translate

import "github.com/xyproto/b86arm/internal/emit"

// fpuSlot tracks one cached x87 stack entry's host register and
// dirtiness, per the FPU mirror described in spec §4.3.
type fpuSlot struct {
	reg   emit.FReg
	valid bool
	dirty bool
}

// FPUCache is the per-block x87/SSE host-register cache. It never
// survives a control transfer: fpu_purgecache must run first so the
// guest CPU state struct stays canonical across block boundaries.
type FPUCache struct {
	slots [8]fpuSlot
	top   uint8
	next  emit.FReg // next unused FP scratch register to hand out
}

// NewFPUCache returns an empty cache starting allocation at v0.
func NewFPUCache() *FPUCache {
	return &FPUCache{next: 0}
}

func (c *FPUCache) stIndex(i int) int {
	return (int(c.top) + i) & 7
}

// Get returns the host FP register currently caching ST(i), allocating
// and marking it for a guest-state load on first touch (x87_get_st).
func (c *FPUCache) Get(i int) (reg emit.FReg, needsLoad bool) {
	idx := c.stIndex(i)
	s := &c.slots[idx]
	if s.valid {
		return s.reg, false
	}
	s.reg = c.alloc()
	s.valid = true
	return s.reg, true
}

func (c *FPUCache) alloc() emit.FReg {
	r := c.next
	c.next++
	return r
}

// MarkDirty flags ST(i)'s cached register as needing a writeback.
func (c *FPUCache) MarkDirty(i int) {
	c.slots[c.stIndex(i)].dirty = true
}

// Push rotates the virtual stack top back one slot, evicting whatever
// cache entry previously lived there (x87_do_push).
func (c *FPUCache) Push() {
	c.top = (c.top - 1) & 7
	c.slots[c.top] = fpuSlot{}
}

// Pop rotates the virtual stack top forward one slot (x87_do_pop).
func (c *FPUCache) Pop() {
	c.top = (c.top + 1) & 7
}

// Dirty reports which of the 8 logical ST slots need a writeback,
// without evicting them (x87_refresh writes these back but keeps them
// cached).
func (c *FPUCache) Dirty() []int {
	var out []int
	for i := 0; i < 8; i++ {
		if c.slots[c.stIndex(i)].dirty {
			out = append(out, i)
		}
	}
	return out
}

// Forget evicts every cached entry, clearing the cache; it emits no
// writeback stores (Dirty and Purge report which slots need one). Used
// as the last step of Purge.
func (c *FPUCache) Forget() {
	for i := range c.slots {
		c.slots[i] = fpuSlot{}
	}
}

// Purge is fpu_purgecache: every block must call this before any
// control transfer (branch to another block, epilog, host call) so
// the emulator's guest-state struct is canonical on entry to whatever
// runs next. Returns the ST indices that needed a writeback so the
// caller can emit the corresponding stores before evicting.
func (c *FPUCache) Purge() []int {
	dirty := c.Dirty()
	c.Forget()
	return dirty
}
