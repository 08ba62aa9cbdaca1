// Package octvp implements the virtual processor: sixteen 64-bit untagged
// registers, its own thread memory, and the function it's currently
// executing (spec.md §3's "Register" and "Execution state" data model,
// grounded on Headers/VPCore.hpp's VPCore/Register union).
package octvp

import (
	"math"

	"github.com/google/uuid"
	"github.com/octanevm/octane/internal/octmem"
)

// RegisterCount is the number of general-purpose registers per virtual
// processor.
const RegisterCount = 16

// UnusedReg is the register index meaning "unused/absent" in instruction
// encodings (spec.md §3).
const UnusedReg = 0xFF

// Register is a 64-bit untagged union. Spec.md §9 says to model this as a
// plain integer store with typed accessors rather than a polymorphic
// field — the executor chooses the interpretation per opcode.
type Register uint64

func (r Register) AsU64() uint64 { return uint64(r) }
func (r Register) AsI64() int64  { return int64(r) }
func (r Register) AsF32() float32 {
	return math.Float32frombits(uint32(r))
}
func (r Register) AsF64() float64 { return math.Float64frombits(uint64(r)) }

func RegFromU64(v uint64) Register  { return Register(v) }
func RegFromI64(v int64) Register   { return Register(uint64(v)) }
func RegFromF32(v float32) Register { return Register(uint64(math.Float32bits(v))) }
func RegFromF64(v float64) Register { return Register(math.Float64bits(v)) }

// VP is one execution context: registers + thread memory + identity. A
// spawned VP runs on its own goroutine (see octvm.Spawn); nothing here
// locks it to an OS thread, and its thread memory takes no lock.
type VP struct {
	ID   uuid.UUID
	Regs [RegisterCount]Register

	Thread *octmem.ThreadMemory
}

// New creates a virtual processor with the given stack/local byte sizes,
// registers cleared.
func New(stackBytes, localBytes int) *VP {
	return &VP{
		ID:     uuid.New(),
		Thread: octmem.New(stackBytes, localBytes),
	}
}

// Clear zeroes every register, the state an activation starts in (spec.md
// §4.6's state machine: "Initial state is running with the instruction
// pointer at code offset 0 and the 16 registers cleared").
func (v *VP) Clear() {
	for i := range v.Regs {
		v.Regs[i] = 0
	}
}

// IsMainThread reports whether this VP is the VM's initial processor. Kept
// as a VPCore-parity accessor; OctaneVM treats every VP identically at the
// execution-core level, the distinction matters only to a caller's
// bookkeeping.
func (v *VP) IsMainThread(mainID uuid.UUID) bool {
	return v.ID == mainID
}
