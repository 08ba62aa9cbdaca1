package octfunc

import (
	"testing"

	"github.com/octanevm/octane/internal/octalloc"
	"github.com/octanevm/octane/internal/octisa"
)

func TestNewBytecodePadsWithRet(t *testing.T) {
	alloc := octalloc.NewAllocator(0)
	fn, code := NewBytecode(alloc, nil, 2, 0)
	if code != octalloc.Ok {
		t.Fatalf("NewBytecode failed: %v", code)
	}
	defer fn.Release()

	if len(fn.Code()) != 8 {
		t.Fatalf("Code length = %d, want 8", len(fn.Code()))
	}
	padded := fn.CodeWithPadding()
	if len(padded) <= len(fn.Code()) {
		t.Fatalf("CodeWithPadding length = %d, want more than Code length %d", len(padded), len(fn.Code()))
	}
	for i := len(fn.Code()); i < len(padded); i++ {
		if padded[i] != byte(octisa.OpRet) {
			t.Fatalf("padding byte %d = %#x, want ret opcode %#x", i, padded[i], byte(octisa.OpRet))
		}
	}
}

func TestSharedRegionSizedAndDisjoint(t *testing.T) {
	alloc := octalloc.NewAllocator(0)
	fn, code := NewBytecode(alloc, nil, 1, 16)
	if code != octalloc.Ok {
		t.Fatalf("NewBytecode failed: %v", code)
	}
	defer fn.Release()

	if len(fn.Shared()) != 16 {
		t.Fatalf("Shared length = %d, want 16", len(fn.Shared()))
	}
	fn.Shared()[0] = 0xFF
	for _, b := range fn.Code() {
		if b == 0xFF {
			t.Fatalf("writing Shared leaked into Code")
		}
	}
}

func TestObserveRunFiresOnce(t *testing.T) {
	fn := NewNative(func(args []uint64) (uint64, error) { return 0, nil })
	if !fn.FirstRun {
		t.Fatalf("expected FirstRun true on a fresh function")
	}
	if !fn.ObserveRun() {
		t.Fatalf("expected the first ObserveRun to report true")
	}
	if fn.ObserveRun() {
		t.Fatalf("expected a second ObserveRun to report false")
	}
	if fn.FirstRun {
		t.Fatalf("expected FirstRun false after ObserveRun")
	}
}

func TestNativeFunctionHasNoBytecodeRegions(t *testing.T) {
	fn := NewNative(func(args []uint64) (uint64, error) { return 0, nil })
	if fn.Code() != nil || fn.CodeWithPadding() != nil || fn.Shared() != nil {
		t.Fatalf("expected nil bytecode regions on a native function")
	}
	if fn.NativeFunc() == nil {
		t.Fatalf("expected NativeFunc to be set")
	}
}

func TestReleaseIsNoopForNative(t *testing.T) {
	fn := NewNative(func(args []uint64) (uint64, error) { return 0, nil })
	fn.Release() // must not panic without an allocator
}
