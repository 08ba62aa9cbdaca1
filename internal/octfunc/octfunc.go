// Package octfunc implements the function object: either a native callable
// or a bytecode body owning one allocation holding
// [code][padding >= 4, all `ret` opcode bytes][shared data]
// (spec.md §4.5, grounded on Headers/Functions.hpp / Functions.cpp).
package octfunc

import (
	"github.com/octanevm/octane/internal/octalloc"
	"github.com/octanevm/octane/internal/octisa"
	"github.com/octanevm/octane/internal/octsym"
	"github.com/octanevm/octane/internal/octutil"
)

// basePaddingBytes mirrors the original's BASE_PADDING_BYTES.
const basePaddingBytes = 4

// Native is a callable implemented outside the bytecode.
type Native func(args []uint64) (uint64, error)

// Function is the sum type: exactly one of Native or the bytecode fields is
// meaningful, selected by IsBytecode.
type Function struct {
	alloc *octalloc.Allocator

	IsBytecode       bool
	InstructionCount uint16
	SharedSize       uint16
	PaddingBytes     uint8
	SharedOffset     uint32
	FirstRun         bool

	region octalloc.Address // owns [code][padding][shared] when IsBytecode
	native Native

	Reloc *octsym.RelocationTable
}

// NewNative wraps a native callable. first_run is retained for uniform
// tracking even though it's meaningless for natives (spec.md §4.5).
func NewNative(fn Native) *Function {
	return &Function{native: fn, FirstRun: true}
}

// NewBytecode allocates a bytecode function region: count instructions
// (4 bytes each) followed by padding (>= 4 bytes, every byte the `ret`
// opcode) followed by sharedSize bytes of per-function shared data.
// Padding is computed so SharedOffset lands pointer-aligned.
func NewBytecode(alloc *octalloc.Allocator, reloc *octsym.RelocationTable, count uint16, sharedSize uint16) (*Function, octalloc.ErrCode) {
	codeBytes := uint32(count) * 4
	padding := basePaddingBytes + computeExtraPadding(codeBytes+basePaddingBytes)
	sharedOffset := codeBytes + uint32(padding)
	total := sharedOffset + uint32(sharedSize)

	addr, code := alloc.Request(total, 0)
	if code != octalloc.Ok {
		return nil, code
	}

	buf := addr.Bytes()
	for i := codeBytes; i < sharedOffset; i++ {
		buf[i] = byte(octisa.OpRet)
	}

	f := &Function{
		alloc:            alloc,
		IsBytecode:       true,
		InstructionCount: count,
		SharedSize:       sharedSize,
		PaddingBytes:     uint8(padding),
		SharedOffset:     sharedOffset,
		FirstRun:         true,
		region:           addr,
		Reloc:            reloc,
	}
	return f, octalloc.Ok
}

func computeExtraPadding(size uint32) uint16 {
	align := uint32(octutil.PointerAlign)
	return uint16((align - (size % align)) % align)
}

// Code returns the instruction-word region.
func (f *Function) Code() []byte {
	if !f.IsBytecode {
		return nil
	}
	return f.region.Bytes()[:uint32(f.InstructionCount)*4]
}

// CodeWithPadding returns the code region followed immediately by the
// padding region, every padding byte being the `ret` opcode. The executor
// fetches from this (not Code alone) so an instruction pointer that runs
// off the end of real code deterministically decodes as `ret` instead of
// running out of bytes (spec.md §4.6).
func (f *Function) CodeWithPadding() []byte {
	if !f.IsBytecode {
		return nil
	}
	return f.region.Bytes()[:f.SharedOffset]
}

// Shared returns the per-function shared-data region.
func (f *Function) Shared() []byte {
	if !f.IsBytecode {
		return nil
	}
	return f.region.Bytes()[f.SharedOffset:]
}

// NativeFunc returns the native callable (nil for bytecode functions).
func (f *Function) NativeFunc() Native { return f.native }

// Release frees the bytecode region with a single allocator call; a no-op
// for native functions (spec.md §4.5: "Release: one call to the allocator
// with the region pointer; the allocation is managed as a single block").
func (f *Function) Release() {
	if f.IsBytecode {
		f.alloc.Release(f.region)
	}
}

// ObserveRun clears FirstRun the first time the executor observes this
// function, gating the one-time validation pass spec.md §4.5 mentions but
// does not itself specify. Returns whether this was indeed the first
// observation.
func (f *Function) ObserveRun() bool {
	if !f.FirstRun {
		return false
	}
	f.FirstRun = false
	return true
}
