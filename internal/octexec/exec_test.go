package octexec

import (
	"testing"

	"github.com/octanevm/octane/internal/octalloc"
	"github.com/octanevm/octane/internal/octfunc"
	"github.com/octanevm/octane/internal/octisa"
	"github.com/octanevm/octane/internal/octsym"
	"github.com/octanevm/octane/internal/octvp"
)

type fakeVM struct {
	alloc *octalloc.Allocator
	store *octsym.Store
}

func newFakeVM() *fakeVM {
	return &fakeVM{alloc: octalloc.NewAllocator(0), store: octsym.NewStore()}
}

func (f *fakeVM) Allocator() *octalloc.Allocator { return f.alloc }
func (f *fakeVM) Symbols() *octsym.Store         { return f.store }

func assemble(t *testing.T, ins ...octisa.Instruction) []byte {
	t.Helper()
	var out []byte
	for _, i := range ins {
		out = append(out, octisa.Encode(i)...)
	}
	return out
}

func buildFunc(t *testing.T, vm *fakeVM, reloc *octsym.RelocationTable, ins ...octisa.Instruction) *octfunc.Function {
	t.Helper()
	code := assemble(t, ins...)
	count := uint16(len(code) / 4)
	fn, code2 := octfunc.NewBytecode(vm.alloc, reloc, count, 0)
	if code2 != octalloc.Ok {
		t.Fatalf("NewBytecode failed: %v", code2)
	}
	copy(fn.Code(), code)
	return fn
}

func TestBareRetReturnsZero(t *testing.T) {
	vm := newFakeVM()
	vp := octvp.New(256, 256)
	fn := buildFunc(t, vm, nil, octisa.Instruction{Op: octisa.OpRet})

	s := Run(vm, vp, fn)
	if !s.Halted || s.Faulted {
		t.Fatalf("expected halted, not faulted: %+v", s)
	}
	if s.Result != 0 {
		t.Fatalf("Result = %d, want 0", s.Result)
	}
}

func TestMovImmAndMovIntoReturnRegister(t *testing.T) {
	vm := newFakeVM()
	vp := octvp.New(256, 256)
	fn := buildFunc(t, vm, nil,
		octisa.Instruction{Op: octisa.OpMovImm, RX: 1, Imm16: 42},
		octisa.Instruction{Op: octisa.OpMov, RX: 1, RY: 0},
		octisa.Instruction{Op: octisa.OpRet},
	)

	s := Run(vm, vp, fn)
	if s.Faulted {
		t.Fatalf("unexpected fault: %+v", s)
	}
	if s.Result.AsU64() != 42 {
		t.Fatalf("Result = %d, want 42", s.Result.AsU64())
	}
}

func TestAddThreeRegister(t *testing.T) {
	vm := newFakeVM()
	vp := octvp.New(256, 256)
	fn := buildFunc(t, vm, nil,
		octisa.Instruction{Op: octisa.OpMovImm, RX: 0, Imm16: 5},
		octisa.Instruction{Op: octisa.OpMovImm, RX: 1, Imm16: 7},
		octisa.Instruction{Op: octisa.OpAdd, RX: 0, RY: 1, RZ: 2},
		octisa.Instruction{Op: octisa.OpMov, RX: 2, RY: 0},
		octisa.Instruction{Op: octisa.OpRet},
	)

	s := Run(vm, vp, fn)
	if s.Faulted {
		t.Fatalf("unexpected fault: %+v", s)
	}
	if s.Result.AsU64() != 12 {
		t.Fatalf("Result = %d, want 12", s.Result.AsU64())
	}
}

func TestDivByZeroIsFatalByDefault(t *testing.T) {
	vm := newFakeVM()
	vp := octvp.New(256, 256)
	fn := buildFunc(t, vm, nil,
		octisa.Instruction{Op: octisa.OpMovImm, RX: 0, Imm16: 5},
		octisa.Instruction{Op: octisa.OpMovImm, RX: 1, Imm16: 0},
		octisa.Instruction{Op: octisa.OpDiv, RX: 0, RY: 1, RZ: 2},
		octisa.Instruction{Op: octisa.OpRet},
	)

	s := Run(vm, vp, fn)
	if !s.Faulted || !s.Halted {
		t.Fatalf("expected fatal halt on divide by zero: %+v", s)
	}
}

func TestHandledResultKeepsRunning(t *testing.T) {
	vm := newFakeVM()
	vp := octvp.New(256, 256)
	fn := buildFunc(t, vm, nil,
		octisa.Instruction{Op: octisa.OpMovImm, RX: 0, Imm16: 5},
		octisa.Instruction{Op: octisa.OpMovImm, RX: 1, Imm16: 0},
		octisa.Instruction{Op: octisa.OpDiv, RX: 0, RY: 1, RZ: 2},
		octisa.Instruction{Op: octisa.OpMovImm, RX: 2, Imm16: 99},
		octisa.Instruction{Op: octisa.OpMov, RX: 2, RY: 0},
		octisa.Instruction{Op: octisa.OpRet},
	)

	handler := func(exc Exception, state *State) HandlerResult {
		if exc.Kind == KindNone {
			return NoException
		}
		return Handled
	}
	s := RunWithHandler(vm, vp, fn, handler)

	if s.Faulted {
		t.Fatalf("handled exception should not fault: %+v", s)
	}
	if s.Result.AsU64() != 99 {
		t.Fatalf("Result = %d, want 99 (execution continued past the handled fault)", s.Result.AsU64())
	}
}

func TestOverrunIntoPaddingYieldsRet(t *testing.T) {
	vm := newFakeVM()
	vp := octvp.New(256, 256)
	fn := buildFunc(t, vm, nil, octisa.Instruction{Op: octisa.OpNop})

	s := Run(vm, vp, fn)
	if s.Faulted {
		t.Fatalf("running into padding should not fault: %+v", s)
	}
	if !s.Halted {
		t.Fatalf("expected halted after decoding padding as ret")
	}
}

func TestConditionalJumpSkipsInstruction(t *testing.T) {
	vm := newFakeVM()
	vp := octvp.New(256, 256)
	// r0 = 0; jmpis0 r0, +1 (skip the next movimm); movimm r1, 111; movimm r1, 222; mov r1, r0; ret
	fn := buildFunc(t, vm, nil,
		octisa.Instruction{Op: octisa.OpJmpIs0, RX: 0, RY: octisa.UnusedReg, Imm16: 1},
		octisa.Instruction{Op: octisa.OpMovImm, RX: 1, Imm16: 111},
		octisa.Instruction{Op: octisa.OpMovImm, RX: 1, Imm16: 222},
		octisa.Instruction{Op: octisa.OpMov, RX: 1, RY: 0},
		octisa.Instruction{Op: octisa.OpRet},
	)

	s := Run(vm, vp, fn)
	if s.Faulted {
		t.Fatalf("unexpected fault: %+v", s)
	}
	if s.Result.AsU64() != 222 {
		t.Fatalf("Result = %d, want 222 (jump should have skipped the movimm 111)", s.Result.AsU64())
	}
}

func TestCallResolvesNativeThroughRelocationTable(t *testing.T) {
	vm := newFakeVM()
	vp := octvp.New(256, 256)

	callee := octfunc.NewNative(func(args []uint64) (uint64, error) {
		return 7, nil
	})
	if _, code := vm.store.Assign(octsym.Request{Type: octsym.TypeFunc, Key: "helper", Value: callee}); code != octsym.Ok {
		t.Fatalf("Assign failed: %v", code)
	}
	reloc := octsym.NewRelocationTable(vm.store, 1)
	if !reloc.AssignIDX(0, "helper", true) {
		t.Fatalf("AssignIDX failed")
	}

	// r0 is already 0 after Clear, which is the relocation index we bound.
	fn := buildFunc(t, vm, reloc,
		octisa.Instruction{Op: octisa.OpCall, RX: 0},
		octisa.Instruction{Op: octisa.OpRet},
	)

	s := Run(vm, vp, fn)
	if s.Faulted {
		t.Fatalf("unexpected fault: %+v", s)
	}
	if s.Result.AsU64() != 7 {
		t.Fatalf("Result = %d, want 7", s.Result.AsU64())
	}
}

func TestStackPushPopRoundTripThroughOpcodes(t *testing.T) {
	vm := newFakeVM()
	vp := octvp.New(256, 256)
	fn := buildFunc(t, vm, nil,
		octisa.Instruction{Op: octisa.OpMovImm, RX: 0, Imm16: 123},
		octisa.Instruction{Op: octisa.OpPushReg, RX: 0},
		octisa.Instruction{Op: octisa.OpMovImm, RX: 0, Imm16: 0},
		octisa.Instruction{Op: octisa.OpPopReg, RX: 0},
		octisa.Instruction{Op: octisa.OpRet},
	)

	s := Run(vm, vp, fn)
	if s.Faulted {
		t.Fatalf("unexpected fault: %+v", s)
	}
	if s.Result.AsU64() != 123 {
		t.Fatalf("Result = %d, want 123", s.Result.AsU64())
	}
}

func TestStackUnderflowFaultsByDefault(t *testing.T) {
	vm := newFakeVM()
	vp := octvp.New(256, 256)
	fn := buildFunc(t, vm, nil,
		octisa.Instruction{Op: octisa.OpPopReg, RX: 0},
		octisa.Instruction{Op: octisa.OpRet},
	)

	s := Run(vm, vp, fn)
	if !s.Faulted {
		t.Fatalf("expected fault on empty-stack pop: %+v", s)
	}
}
