package translate

import "github.com/xyproto/b86arm/internal/xerrors"

// OpGroup names one of the opcode-group dispatch buckets spec §4.3
// enumerates by first-byte value: base, 0F-prefixed, operand/address
// size overrides, segment override, the x87 escapes, LOCK, and the
// three SSE prefix groups.
type OpGroup int

const (
	GroupBase OpGroup = iota
	Group0F
	Group66
	Group67
	GroupGS
	GroupX87
	GroupLock
	Group66x0F
	GroupF20F
	GroupF30F
)

// handler decodes and (on PassEmission) emits one guest instruction
// starting at addr, returning the address just past it and whether the
// block must terminate here (spec §4.3 termination rules).
type handler func(b *Builder, idx int, addr uint32) (next uint32, needEpilog bool, err error)

// dispatch peeks prefix bytes to classify the instruction, then calls
// the handler registered for its opcode. Only the minimal handler set
// named in spec §4.3 (MOV/ALU/Jcc/CALL/RET/LOCK) is implemented; any
// other opcode is Untranslatable, matching the real translator's
// interpreter-fallback contract (spec §7).
func dispatch(b *Builder, addr uint32) (uint32, bool, error) {
	idx := len(b.insts)
	if b.pass != PassSizing {
		// idx must name the instruction currently being processed in
		// this pass, which pass 0 already counted.
		idx = currentInstIndex(b, addr)
	}

	cur := addr
	group := GroupBase
	lock := false

	for {
		by, err := b.fetch(cur)
		if err != nil {
			return 0, false, err
		}
		switch by {
		case 0xf0:
			lock = true
			cur++
			continue
		case 0x66:
			group = Group66
			cur++
			continue
		case 0x67:
			group = Group67
			cur++
			continue
		case 0x65:
			group = GroupGS
			cur++
			continue
		case 0xf2:
			group = GroupF20F
			cur++
			continue
		case 0xf3:
			group = GroupF30F
			cur++
			continue
		}
		break
	}

	if lock {
		b.barrier(idx, 1)
	}

	opcode, err := b.fetch(cur)
	if err != nil {
		return 0, false, err
	}

	if opcode == 0x0f {
		cur++
		if group == Group66 {
			group = Group66x0F
		} else {
			group = Group0F
		}
		opcode, err = b.fetch(cur)
		if err != nil {
			return 0, false, err
		}
	}
	if opcode >= 0xd8 && opcode <= 0xdf && group == GroupBase {
		group = GroupX87
	}

	h, ok := lookupHandler(group, opcode)
	if !ok {
		return 0, false, xerrors.New(xerrors.KindUntranslatable, "unhandled opcode group=%d op=%#x at %#x", group, opcode, addr)
	}
	return h(b, idx, cur)
}

// currentInstIndex finds the index of the instruction starting at addr
// among the instructions pass 0 already enumerated.
func currentInstIndex(b *Builder, addr uint32) int {
	for i, is := range b.insts {
		if is.guestAddr == addr {
			return i
		}
	}
	return len(b.insts)
}

func lookupHandler(group OpGroup, opcode byte) (handler, bool) {
	if group == GroupBase {
		if h, ok := baseHandlers[opcode]; ok {
			return h, true
		}
	}
	if group == Group0F {
		if h, ok := group0FHandlers[opcode]; ok {
			return h, true
		}
	}
	return nil, false
}
