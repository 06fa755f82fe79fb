// Package emit provides the low-level ARM64 instruction encoder the
// translator's passes call into. ARM64 instructions are fixed 32-bit
// little-endian words; Emitter just assembles and appends them to a
// growing code buffer, leaving the higher-level macro vocabulary
// (GETED/WBACK/FCOM and friends) to internal/translate.
package emit

import (
	"encoding/binary"
	"fmt"
)

// Reg is an ARM64 general-purpose register number, 0..30, plus the
// aliases for the zero register and stack pointer (both encode as 31;
// which one a given instruction means depends on the instruction).
type Reg uint32

const (
	X0 Reg = iota
	X1
	X2
	X3
	X4
	X5
	X6
	X7
	X8
	X9
	X10
	X11
	X12
	X13
	X14
	X15
	X16
	X17
	X18
	X19
	X20
	X21
	X22
	X23
	X24
	X25
	X26
	X27
	X28
	FP
	LR
	XZR Reg = 31
	SP  Reg = 31
)

// FReg is an ARM64 FP/SIMD register number, 0..31.
type FReg uint32

// Emitter accumulates a stream of encoded ARM64 instructions. It has
// no notion of labels; callers track offsets themselves (the
// translator's InstMeta table does this) and patch branches with Patch.
type Emitter struct {
	buf []byte
}

// New returns an empty Emitter.
func New() *Emitter {
	return &Emitter{}
}

// Offset returns the current write offset, i.e. the byte position the
// next emitted instruction will land at.
func (e *Emitter) Offset() int {
	return len(e.buf)
}

// Bytes returns the accumulated instruction stream.
func (e *Emitter) Bytes() []byte {
	return e.buf
}

func (e *Emitter) word(instr uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], instr)
	e.buf = append(e.buf, b[:]...)
}

// Patch overwrites the 32-bit instruction at offset off; the linker's
// single aligned-word store that atomically redirects a dynablock to
// its target (spec §4.4).
func (e *Emitter) Patch(off int, instr uint32) error {
	if off < 0 || off+4 > len(e.buf) || off%4 != 0 {
		return fmt.Errorf("emit: patch offset %d out of range or misaligned", off)
	}
	binary.LittleEndian.PutUint32(e.buf[off:off+4], instr)
	return nil
}

// AddImm64 emits ADD Xd, Xn, #imm (imm <= 0xfff).
func (e *Emitter) AddImm64(rd, rn Reg, imm uint32) error {
	if imm > 0xfff {
		return fmt.Errorf("emit: ADD immediate too large: %d", imm)
	}
	e.word(0x91000000 | (imm << 10) | (uint32(rn) << 5) | uint32(rd))
	return nil
}

// SubImm64 emits SUB Xd, Xn, #imm (imm <= 0xfff).
func (e *Emitter) SubImm64(rd, rn Reg, imm uint32) error {
	if imm > 0xfff {
		return fmt.Errorf("emit: SUB immediate too large: %d", imm)
	}
	e.word(0xd1000000 | (imm << 10) | (uint32(rn) << 5) | uint32(rd))
	return nil
}

// MovReg64 emits MOV Xd, Xn (alias for ORR Xd, XZR, Xn).
func (e *Emitter) MovReg64(rd, rn Reg) {
	e.word(0xaa0003e0 | (uint32(rn) << 16) | uint32(rd))
}

// MovImm64 emits a MOVZ/MOVK sequence loading a 64-bit immediate.
func (e *Emitter) MovImm64(rd Reg, imm uint64) {
	e.word(0xd2800000 | (uint32(imm&0xffff) << 5) | uint32(rd))
	for shift := uint(16); shift < 64; shift += 16 {
		chunk := uint32((imm >> shift) & 0xffff)
		if chunk == 0 {
			continue
		}
		hw := uint32(shift / 16)
		e.word(0xf2800000 | (hw << 21) | (chunk << 5) | uint32(rd))
	}
}

// LdrImm64 emits LDR Xt, [Xn, #offset]. offset must be 8-byte aligned;
// non-negative offsets use the scaled unsigned form, negative ones (down
// to -256) the unscaled LDUR form.
func (e *Emitter) LdrImm64(rt, rn Reg, offset int32) error {
	if offset%8 != 0 {
		return fmt.Errorf("emit: LDR offset not 8-byte aligned: %d", offset)
	}
	if offset < 0 {
		return e.ldurImm(0xf8400000, rt, rn, offset)
	}
	if offset >= (1<<12)*8 {
		return fmt.Errorf("emit: LDR offset out of range: %d", offset)
	}
	e.word(0xf9400000 | (uint32(offset/8) << 10) | (uint32(rn) << 5) | uint32(rt))
	return nil
}

// StrImm64 emits STR Xt, [Xn, #offset]. offset must be 8-byte aligned;
// non-negative offsets use the scaled unsigned form, negative ones (down
// to -256) the unscaled STUR form.
func (e *Emitter) StrImm64(rt, rn Reg, offset int32) error {
	if offset%8 != 0 {
		return fmt.Errorf("emit: STR offset not 8-byte aligned: %d", offset)
	}
	if offset < 0 {
		return e.ldurImm(0xf8000000, rt, rn, offset)
	}
	if offset >= (1<<12)*8 {
		return fmt.Errorf("emit: STR offset out of range: %d", offset)
	}
	e.word(0xf9000000 | (uint32(offset/8) << 10) | (uint32(rn) << 5) | uint32(rt))
	return nil
}

func (e *Emitter) ldurImm(base uint32, rt, rn Reg, offset int32) error {
	if offset < -256 || offset > 255 {
		return fmt.Errorf("emit: unscaled offset out of range: %d", offset)
	}
	imm9 := uint32(offset) & 0x1ff
	e.word(base | (imm9 << 12) | (uint32(rn) << 5) | uint32(rt))
	return nil
}

// Branch emits B <offset> (PC-relative, word-aligned, ±128MB).
func (e *Emitter) Branch(offset int32) error {
	imm26, err := branchImm(offset)
	if err != nil {
		return err
	}
	e.word(0x14000000 | imm26)
	return nil
}

// BranchAndLink emits BL <offset>.
func (e *Emitter) BranchAndLink(offset int32) error {
	imm26, err := branchImm(offset)
	if err != nil {
		return err
	}
	e.word(0x94000000 | imm26)
	return nil
}

func branchImm(offset int32) (uint32, error) {
	if offset%4 != 0 {
		return 0, fmt.Errorf("emit: branch offset must be word-aligned: %d", offset)
	}
	imm26 := offset >> 2
	if imm26 < -(1<<25) || imm26 >= (1<<25) {
		return 0, fmt.Errorf("emit: branch offset out of range: %d", offset)
	}
	return uint32(imm26) & 0x3ffffff, nil
}

// Return emits RET Xn; Return(LR) is the usual RET X30.
func (e *Emitter) Return(rn Reg) {
	e.word(0xd65f0000 | (uint32(rn) << 5))
}

// CondBranch condition codes.
type Cond uint32

const (
	CondEQ Cond = 0x0
	CondNE Cond = 0x1
	CondCS Cond = 0x2
	CondCC Cond = 0x3
	CondMI Cond = 0x4
	CondPL Cond = 0x5
	CondVS Cond = 0x6
	CondVC Cond = 0x7
	CondHI Cond = 0x8
	CondLS Cond = 0x9
	CondGE Cond = 0xa
	CondLT Cond = 0xb
	CondGT Cond = 0xc
	CondLE Cond = 0xd
	CondAL Cond = 0xe
)

// BranchCond emits B.cond <offset>.
func (e *Emitter) BranchCond(cond Cond, offset int32) error {
	if offset%4 != 0 {
		return fmt.Errorf("emit: branch offset must be word-aligned: %d", offset)
	}
	imm19 := offset >> 2
	if imm19 < -(1<<18) || imm19 >= (1<<18) {
		return fmt.Errorf("emit: branch offset out of range: %d", offset)
	}
	e.word(0x54000000 | (uint32(imm19)&0x7ffff)<<5 | uint32(cond))
	return nil
}

// PatchCond overwrites the conditional branch at offset off with a new
// skip distance; the Jcc counterpart to Patch, needed because a Jcc's
// not-taken arm has a length only known once it has actually been
// emitted (MovImm64's MOVK count is data-dependent).
func (e *Emitter) PatchCond(off int, cond Cond, offset int32) error {
	if offset%4 != 0 {
		return fmt.Errorf("emit: branch offset must be word-aligned: %d", offset)
	}
	imm19 := offset >> 2
	if imm19 < -(1<<18) || imm19 >= (1<<18) {
		return fmt.Errorf("emit: branch offset out of range: %d", offset)
	}
	return e.Patch(off, 0x54000000|(uint32(imm19)&0x7ffff)<<5|uint32(cond))
}

// CmpReg64 emits CMP Xn, Xm (SUBS with Rd=XZR), setting NZCV.
func (e *Emitter) CmpReg64(rn, rm Reg) {
	e.word(0xeb00001f | (uint32(rm) << 16) | (uint32(rn) << 5))
}

// AndReg64, OrrReg64, EorReg64, SubReg64 emit the 64-bit shifted-register form.
func (e *Emitter) AndReg64(rd, rn, rm Reg) { e.word(0x8a000000 | (uint32(rm) << 16) | (uint32(rn) << 5) | uint32(rd)) }
func (e *Emitter) OrrReg64(rd, rn, rm Reg) { e.word(0xaa000000 | (uint32(rm) << 16) | (uint32(rn) << 5) | uint32(rd)) }
func (e *Emitter) EorReg64(rd, rn, rm Reg) { e.word(0xca000000 | (uint32(rm) << 16) | (uint32(rn) << 5) | uint32(rd)) }
func (e *Emitter) SubReg64(rd, rn, rm Reg) { e.word(0xcb000000 | (uint32(rm) << 16) | (uint32(rn) << 5) | uint32(rd)) }
func (e *Emitter) AddReg64(rd, rn, rm Reg) { e.word(0x8b000000 | (uint32(rm) << 16) | (uint32(rn) << 5) | uint32(rd)) }

// StpImm64 emits STP Xt1, Xt2, [Xn, #offset] (pre-indexed writeback flag is
// not modeled; callers needing writeback use AddImm64/SubImm64 explicitly).
func (e *Emitter) StpImm64(rt1, rt2, rn Reg, offset int32) error {
	if offset%8 != 0 {
		return fmt.Errorf("emit: STP offset not 8-byte aligned: %d", offset)
	}
	imm7 := offset / 8
	if imm7 < -64 || imm7 >= 64 {
		return fmt.Errorf("emit: STP offset out of range: %d", offset)
	}
	e.word(0xa9000000 | (uint32(imm7&0x7f) << 15) | (uint32(rt2) << 10) | (uint32(rn) << 5) | uint32(rt1))
	return nil
}

// LdpImm64 emits LDP Xt1, Xt2, [Xn, #offset].
func (e *Emitter) LdpImm64(rt1, rt2, rn Reg, offset int32) error {
	if offset%8 != 0 {
		return fmt.Errorf("emit: LDP offset not 8-byte aligned: %d", offset)
	}
	imm7 := offset / 8
	if imm7 < -64 || imm7 >= 64 {
		return fmt.Errorf("emit: LDP offset out of range: %d", offset)
	}
	e.word(0xa9400000 | (uint32(imm7&0x7f) << 15) | (uint32(rt2) << 10) | (uint32(rn) << 5) | uint32(rt1))
	return nil
}

// Nop emits a NOP, used by the builder to pad alignment or reserve a
// slot for later patching.
func (e *Emitter) Nop() {
	e.word(0xd503201f)
}
