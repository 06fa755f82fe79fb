// Package linker implements the fixed entry/exit trampolines of spec
// §4.4: the epilog/linker stubs translated code branches to at a
// block's edges, and the runtime patch that turns a resolved linker
// call into a direct branch.
package linker

import (
	"github.com/xyproto/b86arm/internal/cpustate"
	"github.com/xyproto/b86arm/internal/dynamap"
	"github.com/xyproto/b86arm/internal/emit"
)

// Trampolines emits the shared epilog/linker stubs and the per-call
// sequences translated blocks use to reach them. It holds no guest
// state itself; it only knows the fixed host registers the register
// cache assigns (xEmu, a scratch register) and the guest-state offsets
// in cpustate.Offsets.
type Trampolines struct {
	emuReg    emit.Reg
	scratch   emit.Reg
	dmap      *dynamap.Map
}

// New returns a Trampolines bound to the given emulator-state pointer
// register and scratch register (as assigned by translate.RegCache)
// and the dynamic map the linker's slow path consults.
func New(emuReg, scratch emit.Reg, dmap *dynamap.Map) *Trampolines {
	return &Trampolines{emuReg: emuReg, scratch: scratch, dmap: dmap}
}

// JumpToEpilog emits code that stores guestPC into the CPU state's EIP
// field and branches to the shared epilog stub at epilogOffset, which
// returns control to the dispatcher (spec §4.4).
func (t *Trampolines) JumpToEpilog(e *emit.Emitter, guestPC uint32, epilogOffset int32) error {
	e.MovImm64(t.scratch, uint64(guestPC))
	if err := e.StrImm64(t.scratch, t.emuReg, int32(cpustate.Offsets.EIP)); err != nil {
		return err
	}
	return e.Branch(epilogOffset - int32(e.Offset()))
}

// JumpToLinker emits the per-call sequence a translated block uses to
// reach the linker slow path: store the (possibly not-yet-resolved)
// guest target, then branch to the shared linker stub. At runtime the
// linker stub looks the target up in the dynamic map and, on a hit,
// patches this call site into a direct branch; the one place
// translated code is rewritten, done as a single aligned-word store
// for atomicity (spec §4.4).
func (t *Trampolines) JumpToLinker(e *emit.Emitter, guestPC uint32, linkerOffset int32) error {
	e.MovImm64(t.scratch, uint64(guestPC))
	if err := e.StrImm64(t.scratch, t.emuReg, int32(cpustate.Offsets.EIP)); err != nil {
		return err
	}
	return e.Branch(linkerOffset - int32(e.Offset()))
}

// RetToEpilog pops the guest return address (adjusting ESP by 4),
// stores it as the next guest PC, and branches to the epilog.
func (t *Trampolines) RetToEpilog(e *emit.Emitter, espReg emit.Reg, epilogOffset int32) error {
	if err := e.LdrImm64(t.scratch, espReg, 0); err != nil {
		return err
	}
	if err := e.AddImm64(espReg, espReg, 4); err != nil {
		return err
	}
	if err := e.StrImm64(t.scratch, t.emuReg, int32(cpustate.Offsets.EIP)); err != nil {
		return err
	}
	return e.Branch(epilogOffset - int32(e.Offset()))
}

// RetnToEpilog is RetToEpilog but adjusts ESP by 4+n (the immediate
// operand of a RETN instruction).
func (t *Trampolines) RetnToEpilog(e *emit.Emitter, espReg emit.Reg, n uint32, epilogOffset int32) error {
	if err := e.LdrImm64(t.scratch, espReg, 0); err != nil {
		return err
	}
	if err := e.AddImm64(espReg, espReg, 4+n); err != nil {
		return err
	}
	if err := e.StrImm64(t.scratch, t.emuReg, int32(cpustate.Offsets.EIP)); err != nil {
		return err
	}
	return e.Branch(epilogOffset - int32(e.Offset()))
}

// ResolveAndPatch is the linker slow path's core: look guestPC up in
// the dynamic map and, on a hit, overwrite the call site at patchOff
// with a direct branch to the block's host entry point. Returns false
// (no patch performed) when the target has no translation yet, in
// which case the caller falls back to invoking the translator.
func (t *Trampolines) ResolveAndPatch(e *emit.Emitter, patchOff int, guestPC uint32, blockHostOffset int) (patched bool, err error) {
	blk := t.dmap.Lookup(guestPC)
	if blk == nil {
		return false, nil
	}
	imm26, perr := patchBranchImm(blockHostOffset - patchOff)
	if perr != nil {
		return false, perr
	}
	if err := e.Patch(patchOff, 0x14000000|imm26); err != nil {
		return false, err
	}
	return true, nil
}

func patchBranchImm(offset int) (uint32, error) {
	if offset%4 != 0 {
		return 0, errMisaligned
	}
	imm26 := int32(offset) >> 2
	if imm26 < -(1<<25) || imm26 >= (1<<25) {
		return 0, errOutOfRange
	}
	return uint32(imm26) & 0x3ffffff, nil
}
