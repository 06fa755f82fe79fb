package cpustate

// State is the guest CPU state (spec §3): it is embedded, by pointer,
// in every translated-code invocation as xEmu and is also the single
// state the interpreter fallback steps. Field layout is part of the
// translated-code ABI; see Offsets in offsets.go for the numeric
// byte offsets emitted host instructions rely on.
type State struct {
	Regs [RegCount]Reg32
	Segs [SegCount]uint16
	EIP  uint32

	Flags Flags

	X87 X87State
	MMX [8]MMXReg
	SSE [8]SSEReg
}

// New returns a zeroed guest CPU state.
func New() *State {
	return &State{}
}

// EAX and friends are convenience accessors matching box86's
// R_EAX/R_EBX/... macro vocabulary (regs.h), used by Go-side helpers
// that need to read/write guest registers without spelling out the
// index every time.
func (s *State) EAX() *Reg32 { return &s.Regs[RegEAX] }
func (s *State) ECX() *Reg32 { return &s.Regs[RegECX] }
func (s *State) EDX() *Reg32 { return &s.Regs[RegEDX] }
func (s *State) EBX() *Reg32 { return &s.Regs[RegEBX] }
func (s *State) ESP() *Reg32 { return &s.Regs[RegESP] }
func (s *State) EBP() *Reg32 { return &s.Regs[RegEBP] }
func (s *State) ESI() *Reg32 { return &s.Regs[RegESI] }
func (s *State) EDI() *Reg32 { return &s.Regs[RegEDI] }
