// Package execmem implements the slab allocator over W+X anonymous
// mappings that backs translated code (spec §4.1). The bump-allocation
// strategy is grounded on the teacher's Arena ("bump current, return
// old value", arena.go's generateArenaAlloc), and the underlying
// mmap/munmap calls are grounded on the teacher's only genuine
// syscall dependency, golang.org/x/sys/unix (filewatcher_unix.go).
package execmem

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/xyproto/b86arm/internal/archinfo"
	"github.com/xyproto/b86arm/internal/dlog"
	"github.com/xyproto/b86arm/internal/xerrors"
)

const align = 16

// slab is one large anonymous W+X mapping with a bump offset, box86's
// mmaplist_t entry.
type slab struct {
	mem    []byte
	offset int
}

// Pool is the executable memory pool (spec §4.1). Zero value is not
// usable; construct with New.
type Pool struct {
	mu       sync.Mutex
	slabs    []*slab
	slabSize int
	platform archinfo.Platform
}

// New creates a Pool that allocates slabSize-byte slabs on demand
// (box86's MMAPSIZE, default 4 MiB; see config.DefaultSlabSize).
func New(slabSize int, platform archinfo.Platform) *Pool {
	return &Pool{slabSize: slabSize, platform: platform}
}

// Alloc satisfies the pool contract of spec §4.1: alloc(size, nolinker).
//
// When nolinker is true, a fresh standalone RWX mapping of exactly size
// bytes is created and returned; the caller owns it and must call
// FreeStandalone when done (used for blocks invalidated independently
// of the slab's all-or-nothing lifetime).
//
// Otherwise size is rounded up to a 16-byte boundary and satisfied from
// the first slab with enough remaining capacity, appending a new slab
// if none fits. All allocation decisions are serialized by mu, matching
// the spec's pool-mutex guarantee.
func (p *Pool) Alloc(size int, nolinker bool) (uintptr, error) {
	if nolinker {
		mem, err := mapRWX(size)
		if err != nil {
			return 0, xerrors.New(xerrors.KindOutOfMemory, "nolinker mmap of %d bytes: %v", size, err)
		}
		dlog.Debug("execmem: nolinker alloc of %d bytes at %#x\n", size, addrOf(mem))
		return addrOf(mem), nil
	}

	size = (size + align - 1) &^ (align - 1)

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, s := range p.slabs {
		if s.offset+size <= len(s.mem) {
			ret := addrOf(s.mem) + uintptr(s.offset)
			s.offset += size
			return ret, nil
		}
	}

	// No slab fits: grow the slab list first, then attempt the mmap,
	// rolling back the list growth if the mapping fails (spec §4.1,
	// and original_source/box86context.c's AllocDynarecMap ordering).
	p.slabs = append(p.slabs, nil)
	idx := len(p.slabs) - 1
	dlog.Debug("execmem: allocating slab #%d of %d bytes\n", idx, p.slabSize)

	mem, err := mapRWX(p.slabSize)
	if err != nil {
		p.slabs = p.slabs[:idx]
		return 0, xerrors.New(xerrors.KindOutOfMemory, "slab mmap of %d bytes: %v", p.slabSize, err)
	}

	s := &slab{mem: mem, offset: size}
	p.slabs[idx] = s
	return addrOf(mem), nil
}

// CopyIn writes data into a region previously returned by Alloc, the
// step between reserving host memory and handing finished code to a
// dynablock.
func (p *Pool) CopyIn(addr uintptr, data []byte) {
	copy(bytesAt(addr, len(data)), data)
}

// FreeStandalone unmaps a nolinker allocation. Per the open question in
// spec §9, the caller is responsible for ensuring no guest thread is
// still executing in the range before calling this.
func (p *Pool) FreeStandalone(addr uintptr, size int) error {
	mem := bytesAt(addr, size)
	return unix.Munmap(mem)
}

// Close unmaps every slab. Called from context teardown (spec §4.5);
// the pool never frees individual allocations, only all-or-nothing.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for _, s := range p.slabs {
		if s == nil {
			continue
		}
		if err := unix.Munmap(s.mem); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.slabs = nil
	return firstErr
}

// SlabCount reports the number of slabs currently allocated, for tests.
func (p *Pool) SlabCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slabs)
}

func mapRWX(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
}
