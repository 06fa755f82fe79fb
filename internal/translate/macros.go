package translate

import (
	"github.com/xyproto/b86arm/internal/cpustate"
	"github.com/xyproto/b86arm/internal/emit"
)

// The helpers in this file are small inline re-expressions of the
// macro vocabulary spec §4.3/§9 describes (UFLAG_OP1/OP2/RES/DF,
// MARK/MARK2/MARK3/MARKF, USEFLAG, BARRIER, FCOM, FCOMI): they all
// take the builder and emit code or annotate the current instruction's
// metadata. None of them do metaprogramming; they exist purely to
// keep Translate's handlers short.

// mark/mark2/mark3/markf record the current host offset as a named
// label on the instruction at idx, for later branch-target resolution
// within the block (spec §4.3's mark/mark2/mark3/markf labels).
func (b *Builder) mark(idx int)   { b.insts[idx].meta.Mark = uintptr(b.em.Offset()) }
func (b *Builder) mark2(idx int)  { b.insts[idx].meta.Mark2 = uintptr(b.em.Offset()) }
func (b *Builder) mark3(idx int)  { b.insts[idx].meta.Mark3 = uintptr(b.em.Offset()) }
func (b *Builder) markf(idx int)  { b.insts[idx].meta.MarkF = uintptr(b.em.Offset()) }

// barrier is BARRIER: annotates the instruction at idx with the given
// barrier level, forbidding the translator from caching guest-visible
// state across it (glossary "Barrier").
func (b *Builder) barrier(idx int, level int) {
	b.insts[idx].meta.Barrier = level
}

// uflagOp1/uflagOp2/uflagRes/uflagDF are UFLAG_OP1/OP2/RES/DF: they
// emit stores of the deferred-flags triple into the guest CPU state at
// its pinned offsets (cpustate.Offsets), and set NeedsFlags so pass 0's
// dead-flag elimination can see this instruction produces flags.
func (b *Builder) uflagOp1(idx int, valReg emit.Reg) {
	if !b.emitting() {
		return
	}
	_ = b.em.StrImm64(valReg, b.regs.Emu(), int32(cpustate.Offsets.DeferOp1))
}

func (b *Builder) uflagOp2(idx int, valReg emit.Reg) {
	if !b.emitting() {
		return
	}
	_ = b.em.StrImm64(valReg, b.regs.Emu(), int32(cpustate.Offsets.DeferOp2))
}

func (b *Builder) uflagRes(idx int, valReg emit.Reg) {
	if !b.emitting() {
		return
	}
	_ = b.em.StrImm64(valReg, b.regs.Emu(), int32(cpustate.Offsets.DeferRes))
}

func (b *Builder) uflagDF(idx int, kind cpustate.DeferredKind) {
	b.insts[idx].meta.NeedsFlags = true
	if !b.emitting() {
		return
	}
	scratch := b.regs.Scratch(3)
	b.em.MovImm64(scratch, uint64(kind))
	_ = b.em.StrImm64(scratch, b.regs.Emu(), int32(cpustate.Offsets.DeferKind))
}

// useflag is USEFLAG: emits a conditional materialization of EFLAGS;
// a consumer instruction needs the architectural flags, so it compares
// the deferred-flags kind against DNone and only calls UpdateFlags when
// a materialization is actually pending (spec §4.3).
func (b *Builder) useflag(idx int) {
	b.insts[idx].meta.CleanFlags = true
	if !b.emitting() {
		return
	}
	scratch := b.regs.Scratch(3)
	_ = b.em.LdrImm64(scratch, b.regs.Emu(), int32(cpustate.Offsets.DeferKind))
	b.em.CmpReg64(scratch, emit.XZR)
	_ = b.em.BranchCond(emit.CondEQ, 8)
	_ = b.em.BranchAndLink(0) // placeholder; patched in PassFixup to the UpdateFlags helper
}

// fcom is the FCOM macro: writes C0/C2/C3 from an x87 compare. The
// actual float compare happens at runtime in host code (FcmpScalar64);
// here we just record that this instruction produces a status-word
// update so pass 0 can see it is not eligible for barrier-free caching.
func (b *Builder) fcom(idx int, a, c emit.FReg) {
	b.insts[idx].meta.NeedsFlags = true
}

// fcomi is the FCOMI macro: writes CF/PF/ZF instead of C0/C2/C3.
func (b *Builder) fcomi(idx int, a, c emit.FReg) {
	b.insts[idx].meta.NeedsFlags = true
	b.insts[idx].meta.CleanFlags = true
}
