package octasm

import (
	"fmt"

	"github.com/octanevm/octane/internal/octalloc"
	"github.com/octanevm/octane/internal/octfunc"
	"github.com/octanevm/octane/internal/octsym"
)

// Build assembles lines and allocates a bytecode octfunc.Function sized to
// hold exactly the result, with sharedSize bytes of shared data following
// it. reloc may be nil for programs that never call/eload/spawn.
func Build(alloc *octalloc.Allocator, reloc *octsym.RelocationTable, lines []Line, sharedSize uint16) (*octfunc.Function, error) {
	count, err := InstructionCount(lines)
	if err != nil {
		return nil, err
	}
	fn, code := octfunc.NewBytecode(alloc, reloc, count, sharedSize)
	if code != octalloc.Ok {
		return nil, fmt.Errorf("octasm: allocate function region: %v", code)
	}
	body, err := Assemble(lines)
	if err != nil {
		fn.Release()
		return nil, err
	}
	copy(fn.Code(), body)
	return fn, nil
}
