package octmem

import (
	"encoding/binary"
	"testing"
)

func TestPushPopRoundTrip(t *testing.T) {
	tm := New(128, 0)
	if r := tm.Push8(0x42); r < 0 {
		t.Fatalf("unexpected overflow: %d", r)
	}
	p := tm.Pop8()
	if !p.Valid || p.Value != 0x42 {
		t.Fatalf("Pop8 = %+v, want valid 0x42", p)
	}
	if tm.StackIdx() != 0 {
		t.Fatalf("expected stack_idx restored to 0, got %d", tm.StackIdx())
	}
}

func TestScenarioF_StackUnderflow(t *testing.T) {
	tm := New(8, 0)
	p := tm.Pop8()
	if p.Valid || p.Value != 1 {
		t.Fatalf("empty-stack Pop8 = %+v, want {1,false}", p)
	}
	tm.Push8(0x42)
	p = tm.Pop8()
	if !p.Valid || p.Value != 0x42 {
		t.Fatalf("Pop8 after push = %+v, want {0x42,true}", p)
	}
	p = tm.Pop8()
	if p.Valid || p.Value != 1 {
		t.Fatalf("second Pop8 = %+v, want {1,false}", p)
	}
}

func TestBoundaryPushExact(t *testing.T) {
	tm := New(4, 0)
	r := tm.Push32(0xdeadbeef)
	if r != 0 {
		t.Fatalf("exact-fit push should return remaining=0, got %d", r)
	}
	r = tm.Push8(1)
	if r >= 0 {
		t.Fatalf("one more byte should overflow, got %d", r)
	}
	if tm.StackIdx() != 4 {
		t.Fatalf("overflowed push must not mutate the stack, stack_idx=%d", tm.StackIdx())
	}
}

func TestStackMerge(t *testing.T) {
	a := New(64, 0)
	b := New(64, 0)
	b.Push32(0xCAFEBABE)

	r := a.StackMerge(b, 4)
	if r < 0 {
		t.Fatalf("merge failed unexpectedly: %d", r)
	}
	p := a.Pop32()
	if !p.Valid || uint32(p.Value) != 0xCAFEBABE {
		t.Fatalf("merged value mismatch: %+v", p)
	}
	if b.StackIdx() != 0 {
		t.Fatalf("source stack should be drained, idx=%d", b.StackIdx())
	}
}

func TestStackMergeFailureLeavesBothUntouched(t *testing.T) {
	a := New(64, 0)
	b := New(64, 0) // empty source
	before := a.StackIdx()
	r := a.StackMerge(b, 4)
	if r != MergeFailure {
		t.Fatalf("expected MergeFailure, got %d", r)
	}
	if a.StackIdx() != before || b.StackIdx() != 0 {
		t.Fatalf("failed merge must not mutate either stack")
	}
}

func TestScenarioD_LocalArenaFrames(t *testing.T) {
	tm := New(128, 128)
	if !tm.NewFrame() {
		t.Fatalf("NewFrame failed")
	}
	b := tm.RequestBytes(4)
	if b == nil {
		t.Fatalf("RequestBytes failed")
	}
	binary.LittleEndian.PutUint32(b, 0xABCDEF98)

	if got := binary.LittleEndian.Uint32(tm.GetAt(0, 4)); got != 0xABCDEF98 {
		t.Fatalf("GetAt(0) = %x, want 0xABCDEF98", got)
	}

	if !tm.NewFrame() {
		t.Fatalf("second NewFrame failed")
	}
	b2 := tm.RequestBytes(4)
	binary.LittleEndian.PutUint32(b2, 0xCAFEBEEF)
	if got := binary.LittleEndian.Uint32(tm.GetAt(0, 4)); got != 0xCAFEBEEF {
		t.Fatalf("GetAt(0) in inner frame = %x, want 0xCAFEBEEF", got)
	}

	if !tm.DropFrame() {
		t.Fatalf("DropFrame should report a previous frame remains")
	}
	if got := binary.LittleEndian.Uint32(tm.GetAt(0, 4)); got != 0xABCDEF98 {
		t.Fatalf("GetAt(0) after drop = %x, want 0xABCDEF98 again", got)
	}
}

func TestFrameDropWithNoPrevious(t *testing.T) {
	tm := New(0, 64)
	tm.NewFrame()
	if tm.DropFrame() {
		t.Fatalf("DropFrame should report no previous frame remains")
	}
	if tm.RequestBytes(1) != nil {
		t.Fatalf("RequestBytes must fail with no current frame")
	}
}

func TestResetStackAndLocalAreIndependent(t *testing.T) {
	tm := New(16, 64)
	tm.Push32(1)
	tm.NewFrame()
	tm.RequestBytes(4)

	tm.ResetStack()
	if tm.StackIdx() != 0 {
		t.Fatalf("ResetStack must zero stack_idx")
	}
	if tm.GetAt(0, 4) == nil {
		t.Fatalf("ResetStack must not disturb the local arena")
	}

	tm.ResetLocal()
	if tm.RequestBytes(1) != nil {
		t.Fatalf("ResetLocal must drop the current frame")
	}
}
