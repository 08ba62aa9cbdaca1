// Package octasm is a minimal in-memory bytecode assembler: just enough of
// one to build and label-link small OctaneVM programs for tests and the
// cmd/octvm harness, without inventing the full host assembler spec.md §1
// explicitly puts out of scope ("the host compiler/assembler that produces
// bytecode... not re-specified"). It plays the role the teacher's
// pkg/embed plays alongside its CLI: an embeddable helper surface, not a
// general-purpose tool.
package octasm

import (
	"fmt"

	"github.com/octanevm/octane/internal/octisa"
)

// Line is one assembly statement: a mnemonic plus whichever operand fields
// its shape needs. JumpLabel, when set, overrides Imm16 once addresses are
// known — the offset is computed relative to the address of the
// instruction following this one, matching octexec's branchTarget
// convention (DESIGN.md: "a jmp with offset 0 is a no-op").
type Line struct {
	Label     string // defines a label at this instruction's address, if non-empty
	Mnemonic  string
	RX, RY, RZ byte
	Scale     byte
	Imm16     uint16
	Imm       uint64
	JumpLabel string
}

// Reg1 builds a one-register-shaped line (e.g. "inc r0").
func Reg1(mnemonic string, rx byte) Line {
	return Line{Mnemonic: mnemonic, RX: rx}
}

// Reg2 builds a two-register-shaped line (e.g. "mov r1, r2").
func Reg2(mnemonic string, rx, ry byte) Line {
	return Line{Mnemonic: mnemonic, RX: rx, RY: ry}
}

// Reg3 builds a three-register-shaped line (e.g. "add r1, r2, r3").
func Reg3(mnemonic string, rx, ry, rz byte) Line {
	return Line{Mnemonic: mnemonic, RX: rx, RY: ry, RZ: rz}
}

// Imm16Line builds an imm16-shaped line (e.g. "movimm r0, 42").
func Imm16Line(mnemonic string, rx byte, imm uint16) Line {
	return Line{Mnemonic: mnemonic, RX: rx, Imm16: imm}
}

// JumpTo builds an imm16-alt-shaped branch targeting label, resolved by
// Assemble.
func JumpTo(mnemonic string, rx, ry byte, label string) Line {
	return Line{Mnemonic: mnemonic, RX: rx, RY: ry, JumpLabel: label}
}

// Mem builds a mem-access-shaped line (e.g. memset/memcpy).
func Mem(mnemonic string, rx, ry, rz, scale byte) Line {
	return Line{Mnemonic: mnemonic, RX: rx, RY: ry, RZ: rz, Scale: scale}
}

// Labeled attaches a label to an existing line, so a later JumpTo can
// target the instruction it was built from.
func Labeled(label string, l Line) Line {
	l.Label = label
	return l
}

// Assemble two-pass links and encodes lines into a flat byte buffer:
// pass one computes each line's byte address (since shapes vary in word
// count) and records label positions; pass two resolves JumpLabel offsets
// and encodes every instruction. Returns an error naming the offending
// mnemonic if it isn't recognized or a JumpLabel is never defined.
func Assemble(lines []Line) ([]byte, error) {
	addrs := make([]uint32, len(lines))
	labels := make(map[string]uint32)

	var cursor uint32
	for i, ln := range lines {
		op, ok := octisa.FromMnemonic(ln.Mnemonic)
		if !ok {
			return nil, fmt.Errorf("octasm: unknown mnemonic %q at line %d", ln.Mnemonic, i)
		}
		addrs[i] = cursor
		if ln.Label != "" {
			labels[ln.Label] = cursor
		}
		cursor += uint32(octisa.ShapeOf(op).WordCount()) * 4
	}

	out := make([]byte, 0, cursor)
	for i, ln := range lines {
		op, _ := octisa.FromMnemonic(ln.Mnemonic)
		imm16 := ln.Imm16
		if ln.JumpLabel != "" {
			target, ok := labels[ln.JumpLabel]
			if !ok {
				return nil, fmt.Errorf("octasm: undefined label %q referenced at line %d", ln.JumpLabel, i)
			}
			nextAddr := addrs[i] + uint32(octisa.ShapeOf(op).WordCount())*4
			// octexec's branchTarget treats Imm16 as a signed *word* offset
			// relative to the instruction following the branch, not a byte
			// offset — addresses here are always word-aligned, so this
			// division is exact.
			imm16 = uint16(int16((int32(target) - int32(nextAddr)) / 4))
		}
		ins := octisa.Instruction{
			Op:    op,
			RX:    ln.RX,
			RY:    ln.RY,
			RZ:    ln.RZ,
			Scale: ln.Scale,
			Imm16: imm16,
			Imm:   ln.Imm,
		}
		out = append(out, octisa.Encode(ins)...)
	}
	return out, nil
}

// InstructionCount returns how many 4-byte words lines assembles into,
// the instruction_count NewBytecode needs before the code exists.
func InstructionCount(lines []Line) (uint16, error) {
	var words int
	for i, ln := range lines {
		op, ok := octisa.FromMnemonic(ln.Mnemonic)
		if !ok {
			return 0, fmt.Errorf("octasm: unknown mnemonic %q at line %d", ln.Mnemonic, i)
		}
		words += octisa.ShapeOf(op).WordCount()
	}
	return uint16(words), nil
}
