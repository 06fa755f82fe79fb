package translate

import (
	"github.com/xyproto/b86arm/internal/cpustate"
	"github.com/xyproto/b86arm/internal/emit"
)

// baseHandlers and group0FHandlers are the dispatch tables spec §4.3
// calls for, populated with the minimal handler set (MOV/ALU/Jcc/CALL/
// RET/LOCK) needed to exercise the pipeline end to end; every other
// opcode byte falls through to Untranslatable (spec §7).
var baseHandlers map[byte]handler
var group0FHandlers map[byte]handler

func init() {
	baseHandlers = map[byte]handler{
		0x89: handleMovEvGv,
		0x8b: handleMovGvEv,
		0x01: aluHandler(cpustate.DAdd32, (*emit.Emitter).AddReg64, false),
		0x03: aluHandler(cpustate.DAdd32, (*emit.Emitter).AddReg64, true),
		0x29: aluHandler(cpustate.DSub32, (*emit.Emitter).SubReg64, false),
		0x2b: aluHandler(cpustate.DSub32, (*emit.Emitter).SubReg64, true),
		0x21: aluHandler(cpustate.DAnd32, (*emit.Emitter).AndReg64, false),
		0x23: aluHandler(cpustate.DAnd32, (*emit.Emitter).AndReg64, true),
		0x09: aluHandler(cpustate.DOr32, (*emit.Emitter).OrrReg64, false),
		0x0b: aluHandler(cpustate.DOr32, (*emit.Emitter).OrrReg64, true),
		0x31: aluHandler(cpustate.DXor32, (*emit.Emitter).EorReg64, false),
		0x33: aluHandler(cpustate.DXor32, (*emit.Emitter).EorReg64, true),
		0x39: handleCmp,
		0xe8: handleCallRel32,
		0xc3: handleRet,
		0xc2: handleRetn,
	}
	for op := byte(0x70); op <= 0x7f; op++ {
		baseHandlers[op] = handleJccRel8(emit.Cond(op & 0xf))
	}
	for _, r := range []byte{0, 1, 2, 3, 4, 5, 6, 7} {
		baseHandlers[0xb8+r] = handleMovImm32(int(r))
	}

	group0FHandlers = map[byte]handler{}
	for op := byte(0x80); op <= 0x8f; op++ {
		group0FHandlers[op] = handleJccRel32(emit.Cond(op & 0xf))
	}
}

// handleMovEvGv implements MOV r/m32, r32 (0x89): store the register
// operand into the decoded r/m location.
func handleMovEvGv(b *Builder, idx int, addr uint32) (uint32, bool, error) {
	op, regField, next, err := b.geted(addr + 1)
	if err != nil {
		return 0, false, err
	}
	srcReg := b.regs.Host(regField)
	if op.isMem {
		b.wback(op, srcReg)
	} else if b.emitting() {
		b.em.MovReg64(op.reg, srcReg)
	}
	return next, false, nil
}

// handleMovGvEv implements MOV r32, r/m32 (0x8B): load the decoded r/m
// value into the reg-field register.
func handleMovGvEv(b *Builder, idx int, addr uint32) (uint32, bool, error) {
	op, regField, next, err := b.geted(addr + 1)
	if err != nil {
		return 0, false, err
	}
	dst := b.regs.Host(regField)
	if b.emitting() {
		if op.isMem {
			_ = b.em.LdrImm64(dst, op.reg, 0)
		} else {
			b.em.MovReg64(dst, op.reg)
		}
	}
	return next, false, nil
}

// handleMovImm32 implements MOV r32, imm32 (0xB8+r).
func handleMovImm32(regIdx int) handler {
	return func(b *Builder, idx int, addr uint32) (uint32, bool, error) {
		imm, err := b.readDisp32(addr + 1)
		if err != nil {
			return 0, false, err
		}
		if b.emitting() {
			b.em.MovImm64(b.regs.Host(regIdx), uint64(uint32(imm)))
		}
		return addr + 5, false, nil
	}
}

// aluEmitFunc matches the signature shared by Emitter's three-operand
// 64-bit register ALU ops (AddReg64, SubReg64, AndReg64, OrrReg64, EorReg64).
type aluEmitFunc func(e *emit.Emitter, rd, rn, rm emit.Reg)

// aluHandler builds a handler for one ALU opcode variant. toReg selects
// Gv,Ev (result in the reg field) vs Ev,Gv (result in r/m); both forms
// record the deferred-flags triple via the UFLAG_OP1/OP2/RES/DF macros
// so a later consumer can materialize EFLAGS lazily (spec §4.3).
func aluHandler(kind cpustate.DeferredKind, emitOp aluEmitFunc, toReg bool) handler {
	return func(b *Builder, idx int, addr uint32) (uint32, bool, error) {
		op, regField, next, err := b.geted(addr + 1)
		if err != nil {
			return 0, false, err
		}
		regHost := b.regs.Host(regField)
		scratch := b.regs.Scratch(1)

		// toReg selects Gv,Ev (result lands in the reg field); the
		// Ev,Gv form writes back through op, which for a direct
		// register operand IS the destination register already (no
		// separate store needed). A memory operand's value is first
		// loaded into scratch from the address in op.reg; the Ev,Gv
		// form then computes into scratch and stores through wback.
		var dst, lhs, rhs emit.Reg
		needsWback := false
		switch {
		case toReg && op.isMem:
			dst, lhs, rhs = regHost, regHost, scratch
		case toReg:
			dst, lhs, rhs = regHost, regHost, op.reg
		case op.isMem:
			dst, lhs, rhs = scratch, scratch, regHost
			needsWback = true
		default:
			dst, lhs, rhs = op.reg, op.reg, regHost
		}

		if b.emitting() {
			if op.isMem {
				_ = b.em.LdrImm64(scratch, op.reg, 0)
			}
			b.uflagOp1(idx, lhs)
			b.uflagOp2(idx, rhs)
			emitOp(b.em, dst, lhs, rhs)
			b.uflagRes(idx, dst)
			b.uflagDF(idx, kind)
			if needsWback {
				b.wback(op, dst)
			}
		} else {
			b.uflagDF(idx, kind)
		}
		return next, false, nil
	}
}

// handleCmp implements CMP r/m32, r32 (0x39): like SUB but discards
// the result, only updating flags. It records the DSub32 deferred
// kind, so UpdateFlags computes SUB's flags for it.
func handleCmp(b *Builder, idx int, addr uint32) (uint32, bool, error) {
	op, regField, next, err := b.geted(addr + 1)
	if err != nil {
		return 0, false, err
	}
	regHost := b.regs.Host(regField)
	scratch := b.regs.Scratch(1)
	if b.emitting() {
		lhs := op.reg
		if op.isMem {
			_ = b.em.LdrImm64(scratch, op.reg, 0)
			lhs = scratch
		}
		b.uflagOp1(idx, lhs)
		b.uflagOp2(idx, regHost)
		b.em.SubReg64(scratch, lhs, regHost)
		b.uflagRes(idx, scratch)
		b.uflagDF(idx, cpustate.DSub32)
	} else {
		b.uflagDF(idx, cpustate.DSub32)
	}
	return next, false, nil
}

// handleJccRel8 implements the short Jcc family (0x70-0x7F): always a
// block terminator since it is a conditional branch (spec §4.3 rule b
// treats any branch whose continuation is data-dependent as ending
// the block here, rather than speculatively translating both arms).
// Both the taken and not-taken arms leave the block through the linker
// (spec §4.4); which one actually runs is decided by the conditional
// branch emitConditionalTransfer wraps around them.
func handleJccRel8(cond emit.Cond) handler {
	return func(b *Builder, idx int, addr uint32) (uint32, bool, error) {
		disp, err := b.fetch(addr + 1)
		if err != nil {
			return 0, false, err
		}
		next := addr + 2
		taken := uint32(int32(next) + int32(int8(disp)))
		b.useflag(idx)
		if b.emitting() {
			if err := b.emitConditionalTransfer(cond, taken, next); err != nil {
				return 0, false, err
			}
		}
		return next, true, nil
	}
}

// handleJccRel32 implements the near Jcc family (0x0F 0x80-0x8F).
func handleJccRel32(cond emit.Cond) handler {
	return func(b *Builder, idx int, addr uint32) (uint32, bool, error) {
		disp, err := b.readDisp32(addr + 1)
		if err != nil {
			return 0, false, err
		}
		next := addr + 5
		taken := uint32(int32(next) + disp)
		b.useflag(idx)
		if b.emitting() {
			if err := b.emitConditionalTransfer(cond, taken, next); err != nil {
				return 0, false, err
			}
		}
		return next, true, nil
	}
}

// handleCallRel32 implements CALL rel32 (0xE8): a terminator per spec
// §4.3 rule; control leaves the current block's guest range through
// the linker trampoline, after purging the FPU mirror (spec §4.4).
func handleCallRel32(b *Builder, idx int, addr uint32) (uint32, bool, error) {
	disp, err := b.readDisp32(addr + 1)
	if err != nil {
		return 0, false, err
	}
	next := addr + 5
	target := uint32(int32(next) + disp)
	if b.emitting() {
		b.fpu.Purge()
		if err := b.emitLinkTransfer(target); err != nil {
			return 0, false, err
		}
	}
	return next, true, nil
}

// handleRet implements RET (0xC3): pops the guest return address,
// stores it as the next guest PC, and branches to the epilog
// (ret_to_epilog, spec §4.4).
func handleRet(b *Builder, idx int, addr uint32) (uint32, bool, error) {
	if b.emitting() {
		b.fpu.Purge()
		esp := b.regs.Host(cpustate.RegESP)
		if err := b.trampolines.RetToEpilog(b.em, esp, b.epilogRel); err != nil {
			return 0, false, err
		}
	}
	return addr + 1, true, nil
}

// handleRetn implements RETN imm16 (0xC2): as RET, but ESP is adjusted
// by 4+n (retn_to_epilog, spec §4.4).
func handleRetn(b *Builder, idx int, addr uint32) (uint32, bool, error) {
	n, err := b.fetch(addr + 1)
	if err != nil {
		return 0, false, err
	}
	n2, err := b.fetch(addr + 2)
	if err != nil {
		return 0, false, err
	}
	imm16 := uint32(n) | uint32(n2)<<8
	if b.emitting() {
		b.fpu.Purge()
		esp := b.regs.Host(cpustate.RegESP)
		if err := b.trampolines.RetnToEpilog(b.em, esp, imm16, b.epilogRel); err != nil {
			return 0, false, err
		}
	}
	return addr + 3, true, nil
}
