package cpustate

import "unsafe"

// Offsets pins the byte offsets of the State fields emitted host
// instructions address directly (spec §6: "host code generation
// embeds numeric byte offsets... any reimplementation must pin these
// offsets as part of the ABI"). Design note §9 calls for "a single
// generated constants table so a layout change cannot silently desync
// emitters and helpers"; computing these with unsafe.Offsetof against
// the real State type is that table: it can never drift out of sync
// with the struct definition the way a hand-copied constant could.
var Offsets = struct {
	EIP       uintptr
	FlagsBits uintptr // base of Flags.Bits; index by FlagBit for flags[F]
	DeferKind uintptr
	DeferOp1  uintptr
	DeferOp2  uintptr
	DeferRes  uintptr
	X87Top    uintptr
	X87SW     uintptr
}{
	EIP:       unsafe.Offsetof(State{}.EIP),
	FlagsBits: unsafe.Offsetof(State{}.Flags) + unsafe.Offsetof(Flags{}.Bits),
	DeferKind: unsafe.Offsetof(State{}.Flags) + unsafe.Offsetof(Flags{}.Deferred) + unsafe.Offsetof(DeferredFlags{}.Kind),
	DeferOp1:  unsafe.Offsetof(State{}.Flags) + unsafe.Offsetof(Flags{}.Deferred) + unsafe.Offsetof(DeferredFlags{}.Op1),
	DeferOp2:  unsafe.Offsetof(State{}.Flags) + unsafe.Offsetof(Flags{}.Deferred) + unsafe.Offsetof(DeferredFlags{}.Op2),
	DeferRes:  unsafe.Offsetof(State{}.Flags) + unsafe.Offsetof(Flags{}.Deferred) + unsafe.Offsetof(DeferredFlags{}.Res),
	X87Top:    unsafe.Offsetof(State{}.X87) + unsafe.Offsetof(X87State{}.Top),
	X87SW:     unsafe.Offsetof(State{}.X87) + unsafe.Offsetof(X87State{}.SW),
}

// FlagOffset returns the byte offset of a single flags[F] slot, the
// Go-side equivalent of offsetof(x86emu_t, flags[F_DF]) etc.
func FlagOffset(b FlagBit) uintptr {
	return Offsets.FlagsBits + uintptr(b)
}
