// Package context implements the emulator context of spec §4.5: the
// process-wide container that uniquely owns the dynamic map, the
// executable memory pool, the global dynablock list, the TLS
// partition table, the coarse mutexes, the canary, and the signal
// table, and that threads this state through every running translation.
package context

import (
	"sync"

	"github.com/xyproto/b86arm/internal/archinfo"
	"github.com/xyproto/b86arm/internal/dynablock"
	"github.com/xyproto/b86arm/internal/dynamap"
	"github.com/xyproto/b86arm/internal/execmem"
	"github.com/xyproto/b86arm/internal/tls"
)

// Librarian resolves guest imports to host symbols. Out of scope here
// (spec §1); Context only holds the interface so lifecycle ordering
// can be expressed without a concrete resolver.
type Librarian interface {
	Close() error
}

// Bridge turns a guest call into a host call (syscalls, host-provided
// libc symbols). Out of scope here; same role as Librarian.
type Bridge interface {
	Close() error
}

// Callback is an entry in the guest callback registry (host-side
// trampolines registered by the guest for later host-initiated calls).
type Callback struct {
	GuestAddr uint32
	HostFn    uintptr
}

// SignalDisposition mirrors the sentinel values used by the signal
// table: 0 = default action, 1 = ignored, anything else = a guest
// handler address (spec §4.5 teardown rule).
type SignalDisposition uintptr

const (
	SigDefault SignalDisposition = 0
	SigIgnore  SignalDisposition = 1
)

// Context is the emulator-wide container described in spec §4.5.
type Context struct {
	// once-style init guards and the general-purpose lock (spec §5).
	muOnce   sync.Mutex
	muOnce2  sync.Mutex
	muTrace  sync.Mutex
	muLock   sync.Mutex
	muBlocks sync.Mutex // guards dynamic-map block mutation (AddRange/CleanRange)
	muMmap   sync.Mutex // declared for guest mmap bookkeeping; no code path locks it

	platform archinfo.Platform
	pool     *execmem.Pool
	dmap     *dynamap.Map
	global   *dynablock.List // untracked/bootstrap list (spec §3)
	tlsTable tls.Partitions

	librarian Librarian
	bridge    Bridge

	callbacks []Callback
	argv      []string
	envp      []string

	signals [64]SignalDisposition

	canary [4]byte
	forked int // spec §8 scenario 6: Free is a no-op while forked >= 0 after decrement

	closed bool
}

// Option configures a Context at creation time.
type Option func(*Context)

// WithArgv snapshots argv (spec §4.5: "argv of size argc+1").
func WithArgv(argv []string) Option {
	return func(c *Context) { c.argv = append([]string(nil), argv...) }
}

// WithEnvp snapshots envp.
func WithEnvp(envp []string) Option {
	return func(c *Context) { c.envp = append([]string(nil), envp...) }
}

// WithLibrarian/WithBridge install the external collaborators; both
// are optional since they are out of scope internally (spec §1).
func WithLibrarian(l Librarian) Option { return func(c *Context) { c.librarian = l } }
func WithBridge(br Bridge) Option      { return func(c *Context) { c.bridge = br } }

// New allocates a context (spec §4.5 "Creation"): the executable
// memory pool, dynamic map, and global untracked dynablock list are
// created eagerly (dynarec assumed enabled); the canary is seeded.
func New(platform archinfo.Platform, slabSize int, opts ...Option) *Context {
	pool := execmem.New(slabSize, platform)
	c := &Context{
		platform: platform,
		pool:     pool,
		dmap:     dynamap.New(pool),
		global:   dynablock.NewList(0, 0, pool),
		canary:   newCanary(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Pool returns the executable memory pool.
func (c *Context) Pool() *execmem.Pool { return c.pool }

// DynamicMap returns the dynamic map.
func (c *Context) DynamicMap() *dynamap.Map { return c.dmap }

// GlobalList returns the untracked/bootstrap dynablock list.
func (c *Context) GlobalList() *dynablock.List { return c.global }

// TLS returns the TLS partition table.
func (c *Context) TLS() *tls.Partitions { return &c.tlsTable }

// Canary returns the four-byte stack-protector fingerprint.
func (c *Context) Canary() [4]byte { return c.canary }

// Fork increments the fork-depth counter: a forked child keeps
// sharing this context until as many Frees as Forks have run (spec
// §4.5, §8 scenario 6).
func (c *Context) Fork() {
	c.forked++
}

// AddCallback registers a guest callback.
func (c *Context) AddCallback(cb Callback) {
	c.callbacks = append(c.callbacks, cb)
}

// SetSignal installs a disposition for signal number sig.
func (c *Context) SetSignal(sig int, d SignalDisposition) {
	if sig >= 0 && sig < len(c.signals) {
		c.signals[sig] = d
	}
}

// AddRange and CleanRange are the coherence hooks' entry points into
// this context's dynamic map (spec §4.7); internal/coherence wraps
// these with the guest-mmap/unmap-triggered call sites.
func (c *Context) AddRange(guestLo, guestSize uint32) {
	c.muBlocks.Lock()
	defer c.muBlocks.Unlock()
	c.dmap.AddRange(guestLo, guestSize)
}

func (c *Context) CleanRange(guestLo, guestSize uint32) {
	c.muBlocks.Lock()
	defer c.muBlocks.Unlock()
	c.dmap.CleanRange(guestLo, guestSize)
}

// Free implements spec §4.5's "Destruction": refcount-like teardown.
// Decrementing forked below zero triggers the real teardown; while it
// stays >= 0 (a forked child still shares the context) Free is a
// no-op (spec §8 scenario 6).
func (c *Context) Free() error {
	c.forked--
	if c.forked >= 0 {
		return nil
	}
	if c.closed {
		return nil
	}
	c.closed = true

	if c.librarian != nil {
		_ = c.librarian.Close()
	}
	c.global.FreeAll()
	if err := c.pool.Close(); err != nil {
		return err
	}
	// Range-invalidate the full 32-bit guest address space so every
	// per-page list still held by the dynamic map is reclaimed.
	c.dmap.CleanRange(0, 0xffffffff)

	if c.bridge != nil {
		_ = c.bridge.Close()
	}
	c.callbacks = nil
	c.argv = nil
	c.envp = nil

	for sig, d := range c.signals {
		if d != SigDefault && d != SigIgnore {
			c.signals[sig] = SigDefault
		}
	}
	return nil
}
