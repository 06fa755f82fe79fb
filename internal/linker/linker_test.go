package linker

import (
	"testing"

	"github.com/xyproto/b86arm/internal/dynablock"
	"github.com/xyproto/b86arm/internal/dynamap"
	"github.com/xyproto/b86arm/internal/emit"
)

func TestJumpToEpilogEmitsStoreAndBranch(t *testing.T) {
	tr := New(emit.X8, emit.X9, dynamap.New(nil))
	e := emit.New()
	if err := tr.JumpToEpilog(e, 0x1000, 64); err != nil {
		t.Fatalf("JumpToEpilog: %v", err)
	}
	if e.Offset() == 0 {
		t.Fatalf("expected emitted bytes")
	}
}

func TestRetToEpilogAdjustsStackByFour(t *testing.T) {
	tr := New(emit.X8, emit.X9, dynamap.New(nil))
	e := emit.New()
	if err := tr.RetToEpilog(e, emit.X4, 128); err != nil {
		t.Fatalf("RetToEpilog: %v", err)
	}
	if e.Offset() != 16 {
		t.Fatalf("expected 4 instructions (load, add, store, branch), got %d bytes", e.Offset())
	}
}

func TestResolveAndPatchMissReturnsFalse(t *testing.T) {
	m := dynamap.New(nil)
	tr := New(emit.X8, emit.X9, m)
	e := emit.New()
	e.Nop()

	patched, err := tr.ResolveAndPatch(e, 0, 0x8048000, 4)
	if err != nil {
		t.Fatalf("ResolveAndPatch: %v", err)
	}
	if patched {
		t.Fatalf("expected no patch when the target has no translation yet")
	}
}

func TestResolveAndPatchHitRewritesBranch(t *testing.T) {
	m := dynamap.New(nil)
	m.AddRange(0x8048000, 0x10)
	m.ListFor(0x8048000).Insert(&dynablock.Block{GuestStart: 0x8048000, GuestEnd: 0x8048010})

	tr := New(emit.X8, emit.X9, m)
	e := emit.New()
	e.Nop() // the call site to be patched, at offset 0
	e.Nop()
	e.Nop()

	patched, err := tr.ResolveAndPatch(e, 0, 0x8048000, 8)
	if err != nil {
		t.Fatalf("ResolveAndPatch: %v", err)
	}
	if !patched {
		t.Fatalf("expected a patch once the target has a translation")
	}
	if len(e.Bytes()) != 12 {
		t.Fatalf("patching must not change the buffer length")
	}
}
