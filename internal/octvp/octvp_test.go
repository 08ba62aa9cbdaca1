package octvp

import (
	"testing"

	"github.com/google/uuid"
)

func TestRegisterConversionsRoundTrip(t *testing.T) {
	if got := RegFromI64(-7).AsI64(); got != -7 {
		t.Fatalf("AsI64 round trip = %d, want -7", got)
	}
	if got := RegFromU64(0xDEADBEEF).AsU64(); got != 0xDEADBEEF {
		t.Fatalf("AsU64 round trip = %#x, want 0xDEADBEEF", got)
	}
	if got := RegFromF32(3.5).AsF32(); got != 3.5 {
		t.Fatalf("AsF32 round trip = %v, want 3.5", got)
	}
	if got := RegFromF64(-2.25).AsF64(); got != -2.25 {
		t.Fatalf("AsF64 round trip = %v, want -2.25", got)
	}
}

func TestNewClearsRegisters(t *testing.T) {
	vp := New(64, 64)
	for i, r := range vp.Regs {
		if r != 0 {
			t.Fatalf("register %d = %d on a fresh VP, want 0", i, r)
		}
	}
}

func TestClearZeroesAfterUse(t *testing.T) {
	vp := New(64, 64)
	vp.Regs[0] = RegFromU64(1)
	vp.Regs[15] = RegFromU64(2)
	vp.Clear()
	for i, r := range vp.Regs {
		if r != 0 {
			t.Fatalf("register %d = %d after Clear, want 0", i, r)
		}
	}
}

func TestIsMainThread(t *testing.T) {
	vp := New(16, 16)
	if !vp.IsMainThread(vp.ID) {
		t.Fatalf("expected vp to be its own main thread")
	}
	if vp.IsMainThread(uuid.New()) {
		t.Fatalf("expected a random id to not match")
	}
}
