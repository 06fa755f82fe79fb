package cpustate

// DeferredKind enumerates the "last arithmetic op" a deferred-flags
// record can carry. Numeric values are significant (spec §6): none is
// 0, unknown is last, and the order matches box86's defered_flags_t
// enum exactly so a ported helper table would not need renumbering.
type DeferredKind int

const (
	DNone DeferredKind = iota
	DAdd8
	DAdd16
	DAdd32
	DAnd8
	DAnd16
	DAnd32
	DDec8
	DDec16
	DDec32
	DInc8
	DInc16
	DInc32
	DImul8
	DImul16
	DImul32
	DOr8
	DOr16
	DOr32
	DMul8
	DMul16
	DMul32
	DNeg8
	DNeg16
	DNeg32
	DShl8
	DShl16
	DShl32
	DShr8
	DShr16
	DShr32
	DSar8
	DSar16
	DSar32
	DSub8
	DSub16
	DSub32
	DXor8
	DXor16
	DXor32
	DUnknown
)

// FlagBit names the EFLAGS bit positions (spec §6), bit-exact with x86.
type FlagBit int

const (
	FCF  FlagBit = 0
	FPF  FlagBit = 2
	FAF  FlagBit = 4
	FZF  FlagBit = 6
	FSF  FlagBit = 7
	FTF  FlagBit = 8
	FIF  FlagBit = 9
	FDF  FlagBit = 10
	FOF  FlagBit = 11
	FNT  FlagBit = 14
	FRF  FlagBit = 16
	FVM  FlagBit = 17
	FAC  FlagBit = 18
	FVIF FlagBit = 19
	FVIP FlagBit = 20
	FID  FlagBit = 21
	// FIOPLLow/FIOPLHigh are the two bits of the IOPL field (12..13).
	FIOPLLow  FlagBit = 12
	FIOPLHigh FlagBit = 13

	flagCount = 22
)

// DeferredFlags is the "last op" record used to avoid computing EFLAGS
// on every ALU instruction (spec §4.3). Invariant (spec §3): either
// EFLAGS is materialized and Kind == DNone, or Kind != DNone and EFLAGS
// may be stale.
type DeferredFlags struct {
	Kind DeferredKind
	Op1  uint32
	Op2  uint32
	Res  uint32
}

// Flags holds the per-bit EFLAGS array the way box86 stores it
// (emu->flags[F]), plus the deferred-flags record. Each element of
// Bits is 0 or 1; this matches the ACCESS_FLAG/SET_FLAG/CLEAR_FLAG
// macro vocabulary of regs.h, which indexes emu->flags[F] rather than
// a bitfield.
type Flags struct {
	Bits     [flagCount]uint8
	Deferred DeferredFlags
}

// Get reads a single flag bit, materializing EFLAGS first whenever a
// deferred record is pending.
func (f *Flags) Get(b FlagBit) uint8 {
	if f.Deferred.Kind != DNone {
		UpdateFlags(f)
	}
	return f.Bits[b]
}

// Set forces a single flag bit, bypassing deferred-flags materialization.
// Used by instructions (CLC/STC/CLD/STD and FCOMI) that write one flag
// directly rather than through the deferred mechanism.
func (f *Flags) Set(b FlagBit, v uint8) {
	f.Bits[b] = v & 1
}

// IOPL reads the 2-bit I/O privilege level field.
func (f *Flags) IOPL() uint8 {
	return f.Bits[FIOPLLow] | (f.Bits[FIOPLHigh] << 1)
}

// MaterializeEFLAGS packs Bits into a 32-bit EFLAGS word, after first
// resolving any pending deferred-flags record. This is the Go-side
// equivalent of reading R_EFLAGS after UpdateFlags has run.
func (f *Flags) MaterializeEFLAGS() uint32 {
	if f.Deferred.Kind != DNone {
		UpdateFlags(f)
	}
	var v uint32
	for i, bit := range f.Bits {
		if bit != 0 {
			v |= 1 << uint(i)
		}
	}
	v |= 1 << 1 // bit 1 of EFLAGS is always set on real x86
	return v
}

// LoadEFLAGS unpacks a 32-bit EFLAGS word into Bits and clears any
// pending deferred-flags record (EFLAGS is now authoritative).
func (f *Flags) LoadEFLAGS(v uint32) {
	for i := range f.Bits {
		f.Bits[i] = uint8((v >> uint(i)) & 1)
	}
	f.Deferred = DeferredFlags{}
}
