package emit

import "testing"

func TestMovImm64SmallValueSingleMOVZ(t *testing.T) {
	e := New()
	e.MovImm64(X0, 5)
	if e.Offset() != 4 {
		t.Fatalf("expected a single instruction for a 16-bit immediate, got %d bytes", e.Offset())
	}
}

func TestMovImm64LargeValueUsesMovk(t *testing.T) {
	e := New()
	e.MovImm64(X1, 0x1_0002_0003)
	if e.Offset() <= 4 {
		t.Fatalf("expected MOVZ+MOVK sequence for a >16-bit immediate, got %d bytes", e.Offset())
	}
}

func TestAddImmRejectsOversizedImmediate(t *testing.T) {
	e := New()
	if err := e.AddImm64(X0, X1, 0x1000); err == nil {
		t.Fatalf("expected an error for an immediate exceeding 12 bits")
	}
}

func TestPatchOverwritesExistingInstruction(t *testing.T) {
	e := New()
	e.Nop()
	off := e.Offset()
	e.Nop()
	if err := e.Branch(0); err != nil {
		t.Fatalf("unexpected error computing a zero-offset branch: %v", err)
	}
	if err := e.Patch(off, 0xd503201f); err != nil {
		t.Fatalf("patch failed: %v", err)
	}
	if len(e.Bytes()) != 12 {
		t.Fatalf("patch must not change the buffer length, got %d", len(e.Bytes()))
	}
}

func TestBranchOffsetMustBeAligned(t *testing.T) {
	e := New()
	if err := e.Branch(3); err == nil {
		t.Fatalf("expected an error for a non-word-aligned branch offset")
	}
}

func TestLdrStrRoundTripOffsetEncoding(t *testing.T) {
	e := New()
	if err := e.StrImm64(X0, SP, 16); err != nil {
		t.Fatalf("STR: %v", err)
	}
	if err := e.LdrImm64(X0, SP, -8); err != nil {
		t.Fatalf("negative-offset LDR (LDUR) should be accepted: %v", err)
	}
	if e.Offset() != 8 {
		t.Fatalf("expected two instructions, got %d bytes", e.Offset())
	}
}
