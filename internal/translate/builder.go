// Package translate implements the four-pass block builder of spec
// §4.3: it walks a guest x86 instruction stream and produces a
// dynablock.Block of host instructions plus the per-instruction
// metadata table the linker and invalidator rely on.
package translate

import (
	"fmt"

	"github.com/xyproto/b86arm/internal/context"
	"github.com/xyproto/b86arm/internal/dynablock"
	"github.com/xyproto/b86arm/internal/dynamap"
	"github.com/xyproto/b86arm/internal/emit"
	"github.com/xyproto/b86arm/internal/linker"
	"github.com/xyproto/b86arm/internal/xerrors"
)

// maxHostBytesPerInst bounds the pool reservation Translate makes for
// a block before it knows the exact emitted size: the worst single
// guest instruction (a Jcc, whose both arms reach the linker) emits at
// most 52 host bytes, so this leaves comfortable headroom.
const maxHostBytesPerInst = 96

// Pass identifies one of the builder's four passes.
type Pass int

const (
	PassSizing    Pass = iota // pass 0: instruction count, flag liveness, barriers
	PassLayout                // pass 1: assign host offsets per guest instruction
	PassEmission              // pass 2: emit real host code
	PassFixup                 // pass 3: patch late-resolved references
)

// CodeSource abstracts reading guest instruction bytes, standing in
// for the ELF-loader-backed guest address space (out of scope here).
type CodeSource interface {
	ReadByte(addr uint32) (byte, error)
}

// ByteSliceSource is a CodeSource over an in-memory guest code buffer,
// used by tests and by callers that have already faulted the guest
// page in.
type ByteSliceSource struct {
	Base uint32
	Code []byte
}

func (s *ByteSliceSource) ReadByte(addr uint32) (byte, error) {
	off := int(addr - s.Base)
	if off < 0 || off >= len(s.Code) {
		return 0, fmt.Errorf("translate: guest read out of bounds at %#x", addr)
	}
	return s.Code[off], nil
}

// instState is the pass-0/pass-1 analysis accumulated for one guest
// instruction before it is emitted.
type instState struct {
	guestAddr  uint32
	size       int
	hostOffset int
	meta       dynablock.InstMeta
}

// pendingLink is a call/jump site recorded during PassEmission whose
// target may already have a translation; PassFixup resolves it against
// the dynamic map and, on a hit, turns the JumpToLinker call site into
// a direct branch (spec §4.4).
type pendingLink struct {
	target      uint32
	patchOffset int
}

// Builder holds one translation's transient state. It borrows the
// context rather than owning it (spec §9's cyclic-state note).
type Builder struct {
	src   CodeSource
	regs  *RegCache
	fpu   *FPUCache
	pass  Pass
	em    *emit.Emitter
	insts []instState

	maxInsts int // pass's size budget (spec §4.3 termination rule e)

	epilogAddr uintptr // fixed host address of the shared epilog stub
	linkerAddr uintptr // fixed host address of the shared linker stub

	trampolines *linker.Trampolines
	dmap        *dynamap.Map
	hostAddr    uintptr
	epilogRel   int32 // epilogAddr, relative to this block's hostAddr
	linkerRel   int32 // linkerAddr, relative to this block's hostAddr
	pending     []pendingLink
}

// NewBuilder returns a builder reading guest bytes from src. epilogAddr
// and linkerAddr are the fixed host addresses of the shared trampoline
// stubs (spec §4.4); they are expected to come from the same pool every
// translated block does, so the branches JumpToEpilog/JumpToLinker emit
// stay within ARM64's ±128MB PC-relative range.
func NewBuilder(src CodeSource, epilogAddr, linkerAddr uintptr) *Builder {
	return &Builder{
		src:        src,
		regs:       NewRegCache(),
		fpu:        NewFPUCache(),
		maxInsts:   512,
		epilogAddr: epilogAddr,
		linkerAddr: linkerAddr,
	}
}

// Translate runs all four passes starting at guestPC and returns the
// resulting block (spec §4.3). Unlike a sizing-only builder, Translate
// itself owns placement: it reserves host memory from ctx's pool before
// emission (so branch targets can be encoded directly), resolves every
// pending call/jump site against ctx's dynamic map, copies the finished
// code into place, and links the block into the map.
func (b *Builder) Translate(ctx *context.Context, guestPC uint32) (*dynablock.Block, error) {
	if err := b.runPass(PassSizing, guestPC); err != nil {
		return nil, err
	}
	if err := b.runPass(PassLayout, guestPC); err != nil {
		return nil, err
	}
	if len(b.insts) == 0 {
		return nil, xerrors.New(xerrors.KindUntranslatable, "empty block at %#x", guestPC)
	}

	hostAddr, err := ctx.Pool().Alloc(len(b.insts)*maxHostBytesPerInst, false)
	if err != nil {
		return nil, err
	}
	b.hostAddr = hostAddr
	b.dmap = ctx.DynamicMap()
	b.trampolines = linker.New(b.regs.Emu(), b.regs.Scratch(3), b.dmap)
	b.epilogRel = int32(int64(b.epilogAddr) - int64(hostAddr))
	b.linkerRel = int32(int64(b.linkerAddr) - int64(hostAddr))
	b.pending = nil

	b.em = emit.New()
	if err := b.runPass(PassEmission, guestPC); err != nil {
		return nil, err
	}
	if err := b.runPass(PassFixup, guestPC); err != nil {
		return nil, err
	}

	guestEnd := b.insts[len(b.insts)-1].guestAddr + uint32(b.insts[len(b.insts)-1].size)
	block := &dynablock.Block{
		GuestStart: guestPC,
		GuestEnd:   guestEnd,
		HostAddr:   hostAddr,
		HostSize:   b.em.Offset(),
		Origin:     dynablock.OriginPool,
		Insts:      make([]dynablock.InstMeta, len(b.insts)),
	}
	for i, is := range b.insts {
		block.Insts[i] = is.meta
	}
	if !block.SamePage() {
		return nil, xerrors.New(xerrors.KindUntranslatable, "block [%#x,%#x) crosses a 64KiB page", guestPC, guestEnd)
	}

	ctx.Pool().CopyIn(hostAddr, b.em.Bytes())
	ctx.DynamicMap().ListFor(guestPC).Insert(block)
	return block, nil
}

// resolvePending is PassFixup's real work (spec §4.4): for every call
// or jump site JumpToLinker recorded, look the guest target up in the
// dynamic map and, on a hit, patch the call site into a direct branch
// to the target block's now-known host address.
func (b *Builder) resolvePending() error {
	for _, p := range b.pending {
		blk := b.dmap.Lookup(p.target)
		if blk == nil {
			continue // unresolved: the call site keeps its JumpToLinker branch
		}
		rel := int(blk.HostAddr) - int(b.hostAddr)
		if _, err := b.trampolines.ResolveAndPatch(b.em, p.patchOffset, p.target, rel); err != nil {
			return err
		}
	}
	return nil
}

// emitLinkTransfer emits the per-call-site sequence that reaches the
// linker stub for target, recording the branch's offset so PassFixup
// can later try to patch it into a direct branch (spec §4.4).
func (b *Builder) emitLinkTransfer(target uint32) error {
	if err := b.trampolines.JumpToLinker(b.em, target, b.linkerRel); err != nil {
		return err
	}
	// JumpToLinker always ends with its Branch instruction, so the last
	// 4 bytes just emitted are always the patchable call site.
	b.pending = append(b.pending, pendingLink{target: target, patchOffset: b.em.Offset() - 4})
	return nil
}

// emitConditionalTransfer implements a Jcc terminator: both arms leave
// the block via the linker (spec §4.3 rule b), so a placeholder
// conditional branch is emitted first, the not-taken arm's transfer is
// emitted and measured, the placeholder is patched to skip exactly
// that many bytes, and finally the taken arm's transfer is emitted.
func (b *Builder) emitConditionalTransfer(cond emit.Cond, taken, notTaken uint32) error {
	condOff := b.em.Offset()
	if err := b.em.BranchCond(cond, 0); err != nil {
		return err
	}
	notTakenStart := b.em.Offset()
	if err := b.emitLinkTransfer(notTaken); err != nil {
		return err
	}
	skip := int32(b.em.Offset() - notTakenStart)
	if err := b.em.PatchCond(condOff, cond, skip); err != nil {
		return err
	}
	return b.emitLinkTransfer(taken)
}

// runPass walks the guest stream once, dispatching each instruction to
// its handler. Handlers emit host code only in PassEmission; passes 0
// and 1 emit nothing, so the offset PassLayout records for every
// instruction is the emitter's offset before emission (0 on a builder's
// first Translate). PassEmission records each instruction's real entry
// offset in meta.Entry. PassFixup does not walk the stream; it only
// resolves the pending linker call sites.
func (b *Builder) runPass(pass Pass, guestPC uint32) error {
	b.pass = pass
	if pass == PassSizing {
		b.insts = nil
	}
	if pass == PassFixup {
		return b.resolvePending()
	}
	addr := guestPC
	idx := 0
	for {
		if len(b.insts) >= b.maxInsts && pass == PassSizing {
			break
		}
		if pass != PassSizing && idx >= len(b.insts) {
			break
		}

		startOffset := 0
		if b.em != nil {
			startOffset = b.em.Offset()
		}

		next, needEpilog, err := dispatch(b, addr)
		if err != nil {
			return err
		}

		switch pass {
		case PassSizing:
			b.insts = append(b.insts, instState{guestAddr: addr, size: int(next - addr)})
		case PassLayout:
			b.insts[idx].hostOffset = startOffset
			b.insts[idx].meta.Entry = uintptr(startOffset)
		case PassEmission:
			b.insts[idx].meta.Entry = uintptr(startOffset)
		}

		idx++
		addr = next
		if needEpilog {
			break
		}
	}
	return nil
}

func (b *Builder) fetch(addr uint32) (byte, error) {
	return b.src.ReadByte(addr)
}

func (b *Builder) emitting() bool {
	return b.pass == PassEmission
}

// recordBarrier marks the instruction currently being processed as a
// barrier (spec §4.3 termination rule d / glossary "Barrier").
func (b *Builder) recordBarrier(idx int, level int) {
	if idx < len(b.insts) {
		b.insts[idx].meta.Barrier = level
	}
}
