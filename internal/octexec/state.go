package octexec

import (
	"github.com/octanevm/octane/internal/octalloc"
	"github.com/octanevm/octane/internal/octfunc"
	"github.com/octanevm/octane/internal/octsym"
	"github.com/octanevm/octane/internal/octvp"
)

// VM is the minimal surface State needs from the owning VM: shared
// allocator/symbol-store access. A narrow interface here (rather than
// importing octvm directly) keeps octexec free of a dependency on the
// package that in turn depends on it.
type VM interface {
	Allocator() *octalloc.Allocator
	Symbols() *octsym.Store
}

// State is the execution-state bundle threaded through every instruction
// handler (spec.md §3's "Execution state"): a reference to the owning VM,
// the instruction pointer, the virtual processor supplying registers and
// thread memory, the function currently executing, and the installed
// fault handler.
type State struct {
	VM      VM
	IP      uint32
	VP      *octvp.VP
	Func    *octfunc.Function
	Handler Handler

	// Halted is set once the dispatch loop leaves the running state,
	// whether by ret (Returned) or by a Fatal handler result (Faulted).
	Halted  bool
	Faulted bool
	Result  octvp.Register
}

// NewState builds a fresh execution state for running fn on vp, installing
// DefaultHandler (spec.md §4.7: "the executor installs a default handler
// that treats every runtime exception as fatal").
func NewState(vm VM, vp *octvp.VP, fn *octfunc.Function) *State {
	return &State{
		VM:      vm,
		VP:      vp,
		Func:    fn,
		Handler: DefaultHandler,
	}
}

// Reg reads register idx, or 0 for UnusedReg (spec.md §4.6: an encoded
// 0xFF register field means absent, never "register 255").
func (s *State) Reg(idx byte) octvp.Register {
	if idx == octvp.UnusedReg {
		return 0
	}
	return s.VP.Regs[idx]
}

// SetReg writes register idx unless it is UnusedReg, in which case the
// write is silently dropped.
func (s *State) SetReg(idx byte, v octvp.Register) {
	if idx == octvp.UnusedReg {
		return
	}
	s.VP.Regs[idx] = v
}

// fault raises exc through the installed handler and folds the result into
// the running/faulted/returned state machine (spec.md §4.6/§4.7): Fatal
// halts the state machine in the faulted terminal state, Handled/Ignored
// let the caller decide how to proceed (Ignored still advances the
// instruction pointer past the offending instruction).
func (s *State) fault(exc Exception) HandlerResult {
	result := s.Handler(exc, s)
	if result == Fatal {
		s.Halted = true
		s.Faulted = true
	}
	return result
}
