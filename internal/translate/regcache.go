package translate

import (
	"github.com/xyproto/b86arm/internal/cpustate"
	"github.com/xyproto/b86arm/internal/emit"
)

// RegCache is the translator's permanent x86-to-host register
// assignment (spec §4.3): every x86 integer register lives in a fixed
// host register for the lifetime of a block, never spilled.
type RegCache struct {
	x86     [cpustate.RegCount]emit.Reg
	xEmu    emit.Reg
	scratch [4]emit.Reg // x1, x2, x3, x12
}

// NewRegCache returns the fixed assignment used by every block.
func NewRegCache() *RegCache {
	return &RegCache{
		x86: [cpustate.RegCount]emit.Reg{
			cpustate.RegEAX: emit.X0,
			cpustate.RegECX: emit.X1,
			cpustate.RegEDX: emit.X2,
			cpustate.RegEBX: emit.X3,
			cpustate.RegESP: emit.X4,
			cpustate.RegEBP: emit.X5,
			cpustate.RegESI: emit.X6,
			cpustate.RegEDI: emit.X7,
		},
		xEmu:    emit.X8,
		scratch: [4]emit.Reg{emit.X9, emit.X10, emit.X11, emit.X12},
	}
}

// Host returns the host register permanently caching x86 register r.
func (rc *RegCache) Host(r int) emit.Reg {
	return rc.x86[r]
}

// Emu returns the host register holding the pointer to the guest CPU state.
func (rc *RegCache) Emu() emit.Reg {
	return rc.xEmu
}

// Scratch returns scratch register index i (0..3, named x1/x2/x3/x12 in
// the original macro vocabulary).
func (rc *RegCache) Scratch(i int) emit.Reg {
	return rc.scratch[i]
}
