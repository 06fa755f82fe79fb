package translate

import (
	"github.com/xyproto/b86arm/internal/emit"
	"github.com/xyproto/b86arm/internal/xerrors"
)

// operand is the result of decoding a ModR/M (+SIB +disp) byte
// sequence: geted in the original macro vocabulary (spec §4.3).
type operand struct {
	reg       emit.Reg // direct operand: its cached host register; memory operand: the register holding the effective address
	writeback emit.Reg // valid only when isMem is true
	isMem     bool     // false for a direct register operand (no store needed)
	size      int      // bytes consumed by ModR/M+SIB+disp
}

// geted decodes the ModR/M byte at addr and resolves the r/m operand.
// When mod==3 the operand is a direct x86 register and is aliased to
// its permanently cached host register (isMem false, no writeback).
// Otherwise the effective address is materialized into a scratch
// register and writeback names that same register, signaling the
// caller must store results back through it (spec §4.3 policy).
func (b *Builder) geted(addr uint32) (op operand, regField int, next uint32, err error) {
	modrm, err := b.fetch(addr)
	if err != nil {
		return operand{}, 0, 0, err
	}
	mod := modrm >> 6
	reg := int(modrm>>3) & 7
	rm := int(modrm & 7)
	cur := addr + 1

	if mod == 3 {
		return operand{reg: b.regs.Host(rm), isMem: false, size: 1}, reg, cur, nil
	}

	if rm == 4 {
		return operand{}, 0, 0, xerrors.New(xerrors.KindUntranslatable, "SIB addressing not handled at %#x", addr)
	}

	base := b.regs.Host(rm)
	scratch := b.regs.Scratch(0)
	var disp int32
	size := 1

	switch {
	case mod == 0 && rm == 5:
		// disp32, no base register (absolute address).
		d, derr := b.readDisp32(cur)
		if derr != nil {
			return operand{}, 0, 0, derr
		}
		disp = d
		size += 4
		if b.emitting() {
			b.em.MovImm64(scratch, uint64(uint32(disp)))
		}
	case mod == 1:
		d, derr := b.fetch(cur)
		if derr != nil {
			return operand{}, 0, 0, derr
		}
		disp = int32(int8(d))
		size++
		if b.emitting() {
			if err := b.em.AddImm64(scratch, base, uint32(disp)); err != nil {
				b.em.MovImm64(scratch, uint64(uint32(disp)))
				b.em.AddReg64(scratch, scratch, base)
			}
		}
	case mod == 2:
		d, derr := b.readDisp32(cur)
		if derr != nil {
			return operand{}, 0, 0, derr
		}
		disp = d
		size += 4
		if b.emitting() {
			b.em.MovImm64(scratch, uint64(uint32(disp)))
			b.em.AddReg64(scratch, scratch, base)
		}
	default: // mod == 0, rm != 4, rm != 5: [base]
		if b.emitting() {
			b.em.MovReg64(scratch, base)
		}
	}

	return operand{reg: scratch, writeback: scratch, isMem: true, size: size}, reg, cur + uint32(size) - 1, nil
}

func (b *Builder) readDisp32(addr uint32) (int32, error) {
	var v uint32
	for i := uint32(0); i < 4; i++ {
		by, err := b.fetch(addr + i)
		if err != nil {
			return 0, err
		}
		v |= uint32(by) << (8 * i)
	}
	return int32(v), nil
}

// wback is WBACK: when the operand carries a writeback register (i.e.
// it named a memory location), store valReg through it; direct
// register operands are already the cached register itself and need
// no store.
func (b *Builder) wback(op operand, valReg emit.Reg) {
	if !op.isMem {
		return
	}
	if !b.emitting() {
		return
	}
	_ = b.em.StrImm64(valReg, op.writeback, 0)
}
