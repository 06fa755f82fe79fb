package cpustate

import "testing"

// Scenario 4 from spec §8: EAX=5,EBX=3, SUB EAX,EBX -> ZF=0; then
// EAX=3,EBX=3, SUB EAX,EBX -> ZF=1. Deferred kind must read DSub32
// between the SUB and the ZF read.
func TestDeferredFlagsSub32RoundTrip(t *testing.T) {
	st := New()
	st.EAX().SetDword(5)
	st.EBX().SetDword(3)

	doSub32(st)
	if st.Flags.Deferred.Kind != DSub32 {
		t.Fatalf("df = %v, want DSub32", st.Flags.Deferred.Kind)
	}
	if got := st.Flags.Get(FZF); got != 0 {
		t.Fatalf("ZF = %d, want 0", got)
	}

	st.EAX().SetDword(3)
	st.EBX().SetDword(3)
	doSub32(st)
	if got := st.Flags.Get(FZF); got != 1 {
		t.Fatalf("ZF = %d, want 1", got)
	}
}

// doSub32 performs the guest-visible effect of SUB EAX, EBX the way a
// translated block would: compute the result, record the deferred
// triple, and leave EFLAGS unmaterialized.
func doSub32(st *State) {
	a := st.EAX().Dword()
	b := st.EBX().Dword()
	res := a - b
	st.EAX().SetDword(res)
	st.Flags.Deferred = DeferredFlags{Kind: DSub32, Op1: a, Op2: b, Res: res}
}

func TestMaterializeEFLAGSRoundTrip(t *testing.T) {
	st := New()
	st.EAX().SetDword(3)
	st.EBX().SetDword(3)
	doSub32(st)

	packed := st.Flags.MaterializeEFLAGS()
	if packed&(1<<uint(FZF)) == 0 {
		t.Fatalf("materialized EFLAGS missing ZF: %#x", packed)
	}
	if st.Flags.Deferred.Kind != DNone {
		t.Fatalf("materialize left deferred kind = %v, want DNone", st.Flags.Deferred.Kind)
	}
}

func TestReg32Views(t *testing.T) {
	var r Reg32
	r.SetDword(0x11223344)
	if r.Word() != 0x3344 {
		t.Fatalf("Word() = %#x, want 0x3344", r.Word())
	}
	if r.Byte(0) != 0x44 || r.Byte(1) != 0x33 {
		t.Fatalf("Byte(0)/Byte(1) = %#x/%#x, want 0x44/0x33", r.Byte(0), r.Byte(1))
	}
	r.SetByte(0, 0xff)
	if r.Dword() != 0x112233ff {
		t.Fatalf("Dword() after SetByte = %#x, want 0x112233ff", r.Dword())
	}
}

func TestX87PushPop(t *testing.T) {
	var x X87State
	x.ST[0].D = 1.5
	top0 := x.StIndex(0)
	x.Push()
	if x.StIndex(1) != top0 {
		t.Fatalf("after push, ST(1) should alias the old ST(0) slot")
	}
	x.Pop()
	if x.StIndex(0) != top0 {
		t.Fatalf("pop did not restore original top")
	}
}

func TestFCOMResult(t *testing.T) {
	if c0, c2, c3 := FCOMResult(1, 2); c0 != 1 || c2 != 0 || c3 != 0 {
		t.Fatalf("less: got %d,%d,%d", c0, c2, c3)
	}
	if c0, c2, c3 := FCOMResult(2, 2); c0 != 0 || c2 != 0 || c3 != 1 {
		t.Fatalf("equal: got %d,%d,%d", c0, c2, c3)
	}
}
