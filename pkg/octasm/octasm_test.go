package octasm

import (
	"testing"

	"github.com/octanevm/octane/internal/octalloc"
	"github.com/octanevm/octane/internal/octexec"
	"github.com/octanevm/octane/internal/octisa"
	"github.com/octanevm/octane/internal/octsym"
	"github.com/octanevm/octane/internal/octvp"
)

type fakeVM struct {
	alloc *octalloc.Allocator
	store *octsym.Store
}

func (f *fakeVM) Allocator() *octalloc.Allocator { return f.alloc }
func (f *fakeVM) Symbols() *octsym.Store          { return f.store }

func newFakeVM() *fakeVM {
	return &fakeVM{alloc: octalloc.NewAllocator(0), store: octsym.NewStore()}
}

func TestAssembleUnknownMnemonic(t *testing.T) {
	_, err := Assemble([]Line{{Mnemonic: "bogus"}})
	if err == nil {
		t.Fatalf("expected an error for an unknown mnemonic")
	}
}

func TestAssembleUndefinedLabel(t *testing.T) {
	lines := []Line{JumpTo("jmp", octvp.UnusedReg, octvp.UnusedReg, "nowhere")}
	_, err := Assemble(lines)
	if err == nil {
		t.Fatalf("expected an error for an undefined label")
	}
}

func TestBuildAndRunLoop(t *testing.T) {
	// r0 = 3; loop: dec r0; jmpnot0 r0 -> loop; ret
	vm := newFakeVM()
	lines := []Line{
		Imm16Line("movimm", 0, 3),
		Labeled("loop", Reg1("dec", 0)),
		JumpTo("jmpnot0", 0, octvp.UnusedReg, "loop"),
		{Mnemonic: "ret"},
	}
	fn, err := Build(vm.alloc, nil, lines, 0)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer fn.Release()

	vp := octvp.New(256, 256)
	state := octexec.Run(vm, vp, fn)
	if !state.Halted || state.Faulted {
		t.Fatalf("expected clean halt, got halted=%v faulted=%v", state.Halted, state.Faulted)
	}
	if vp.Regs[0] != 0 {
		t.Fatalf("expected r0 == 0 after loop, got %d", vp.Regs[0])
	}
}

func TestJumpOffsetIsRelativeToNextInstruction(t *testing.T) {
	// jmp forward over one "dec r0", landing exactly on ret.
	lines := []Line{
		JumpTo("jmp", octvp.UnusedReg, octvp.UnusedReg, "end"),
		Reg1("dec", 0),
		Labeled("end", Line{Mnemonic: "ret"}),
	}
	code, err := Assemble(lines)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	ins, ok := octisa.Decode(code)
	if !ok {
		t.Fatalf("decode failed")
	}
	if ins.Op != octisa.OpJmp {
		t.Fatalf("expected first instruction to be jmp")
	}
	if int16(ins.Imm16) != 1 {
		t.Fatalf("expected jmp offset of 1 word (skip one word), got %d", int16(ins.Imm16))
	}
}

func TestInstructionCountCountsWideWords(t *testing.T) {
	lines := []Line{
		{Mnemonic: "movimm64", RX: 0, Imm: 0xDEADBEEF},
		{Mnemonic: "ret"},
	}
	count, err := InstructionCount(lines)
	if err != nil {
		t.Fatalf("InstructionCount failed: %v", err)
	}
	if count != 4 { // movimm64 is 3 words + ret is 1 word
		t.Fatalf("expected 4 words, got %d", count)
	}
}
