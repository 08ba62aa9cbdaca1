package octisa

import (
	"fmt"
	"strings"
)

// Disassemble renders code as human-readable text, one line per
// instruction, grounded on the teacher's Disassemble/disassembleInstruction
// pair (internal/vm/disasm.go, deleted file — see DESIGN.md): a
// strings.Builder accumulator and an offset-returning per-instruction
// formatter, adapted here to OctaneVM's fixed-shape words instead of
// funxy's variable-length stack-machine encoding. This is the debug-dump
// pretty-printing convenience spec.md §7 allows, not a contract.
func Disassemble(code []byte) string {
	var b strings.Builder
	offset := 0
	for offset < len(code) {
		ins, ok := Decode(code[offset:])
		if !ok {
			fmt.Fprintf(&b, "%04d <truncated>\n", offset)
			break
		}
		fmt.Fprintf(&b, "%04d %s\n", offset, formatInstruction(ins))
		offset += 4 * ins.Words
	}
	return b.String()
}

func formatInstruction(ins Instruction) string {
	name := ins.Op.String()
	switch ShapeOf(ins.Op) {
	case ShapeNone:
		return name
	case ShapeOneReg:
		return fmt.Sprintf("%-14s r%d", name, ins.RX)
	case ShapeTwoReg:
		return fmt.Sprintf("%-14s r%d, r%d", name, ins.RX, ins.RY)
	case ShapeThreeReg:
		return fmt.Sprintf("%-14s r%d, r%d, r%d", name, ins.RX, ins.RY, ins.RZ)
	case ShapeImm16:
		return fmt.Sprintf("%-14s r%d, %d", name, ins.RX, ins.Imm16)
	case ShapeImm16Alt:
		return fmt.Sprintf("%-14s r%d, r%d, %d", name, ins.RX, ins.RY, ins.Imm16)
	case ShapeMemAccess:
		return fmt.Sprintf("%-14s [r%d + r%d*%d]", name, ins.RX, ins.RY, ins.Scale)
	case ShapeMemAccessPriv:
		return fmt.Sprintf("%-14s r%d, r%d, %d", name, ins.RX, ins.RY, ins.Scale)
	case ShapeOpt32, ShapeImm32:
		return fmt.Sprintf("%-14s %d", name, uint32(ins.Imm))
	case ShapeImm64:
		return fmt.Sprintf("%-14s %d", name, ins.Imm)
	default:
		return name
	}
}
