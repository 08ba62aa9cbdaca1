// Package octisa implements OctaneVM's instruction set: a frozen 140-entry
// opcode enumeration, the fixed 32-bit instruction word and its shape
// variants, and a mnemonic <-> opcode table (spec.md §4.6, grounded on
// Source/Instructions.cpp's OpcodeNames[] table, transcribed byte-for-byte
// in the exact order given there — this order is frozen wire format and
// must never be reordered).
package octisa

// Opcode is the low byte of every instruction word.
type Opcode byte

// The opcode enumeration, in frozen order: byte value == position in this
// list. Grouped by blank lines the same way the canonical list in spec.md
// §4.6 groups its lines, purely as a reading aid — the order itself is what
// matters, not the grouping.
const (
	OpNop Opcode = iota
	OpChrono

	OpSeek
	OpJmp
	OpJmpIs0
	OpJmpNot0
	OpJmpEq
	OpJmpNeq
	OpJmpLt
	OpJmpGt
	OpJmpLtEq
	OpJmpGtEq

	OpCall
	OpCoreCall
	OpSpawn
	OpSpawnAnon
	OpMerge
	OpMuop
	OpCvop
	OpRet

	OpClr
	OpMov
	OpMovImm
	OpMovImm32
	OpMovImm64
	OpMovImmF
	OpMovImmD

	OpPushReg
	OpPushGen
	OpPushArg
	OpPushAll
	OpPushMem

	OpPopReg
	OpPopGen
	OpPopArg
	OpPopAll
	OpPopMem

	OpMemset
	OpMemcpy
	OpOffset
	OpRequestBytes
	OpReleaseBytes
	OpRequestLocal
	OpDropLocal
	OpEload
	OpP2G

	OpGLoad8
	OpGLoad16
	OpGLoad32
	OpGLoad64
	OpGSave8
	OpGSave16
	OpGSave32
	OpGSave64

	OpPLoad8
	OpPLoad16
	OpPLoad32
	OpPLoad64
	OpPSave8
	OpPSave16
	OpPSave32
	OpPSave64

	OpCmpIs0
	OpCmpNot0
	OpCmpEq
	OpCmpNeq
	OpCmpLt
	OpCmpGt
	OpCmpLtEq
	OpCmpGtEq

	OpCmpLtI
	OpCmpGtI
	OpCmpLtEqI
	OpCmpGtEqI

	OpCmpLtF
	OpCmpGtF
	OpCmpLtEqF
	OpCmpGtEqF

	OpCmpLtD
	OpCmpGtD
	OpCmpLtEqD
	OpCmpGtEqD

	OpLAnd
	OpLOr
	OpLNot

	OpInc
	OpDec
	OpI2F
	OpU2F
	OpI2D
	OpU2D
	OpF2I
	OpF2U
	OpF2D
	OpD2I
	OpD2U
	OpD2F

	OpPow
	OpPowI
	OpPowF
	OpPowD
	OpSqrt
	OpSqrtF
	OpSqrtD

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpAddImm
	OpSubImm
	OpMulImm
	OpDivImm
	OpModImm

	OpIDiv
	OpIMod
	OpIDivImm
	OpIModImm

	OpFAdd
	OpFSub
	OpFMul
	OpFDiv
	OpFMod

	OpDAdd
	OpDSub
	OpDMul
	OpDDiv
	OpDMod

	OpAnd
	OpOr
	OpXor
	OpNot
	OpShl
	OpShr
	OpAndImm
	OpOrImm
	OpXorImm
	OpNotImm
	OpShlImm
	OpShrImm

	opcodeCount
)

// Count is the number of defined opcodes (140, one per entry of the frozen list).
const Count = int(opcodeCount)

// opcodeNames is the frozen mnemonic table, index == opcode byte value.
// Transcribed verbatim from Source/Instructions.cpp's OpcodeNames[]; the
// "and/or/xor/not" entries keep the unprefixed OctASM mnemonics the
// original comments call out, not the "b"-prefixed C++ identifiers used
// internally to dodge reserved words.
var opcodeNames = [...]string{
	"nop", "chrono",
	"seek", "jmp", "jmpis0", "jmpnot0", "jmpeq", "jmpneq", "jmplt", "jmpgt", "jmplteq", "jmpgteq",
	"call", "corecall", "spawn", "spawnanon", "merge", "muop", "cvop", "ret",
	"clr", "mov", "movimm", "movimm32", "movimm64", "movimmf", "movimmd",
	"pushreg", "pushgen", "pusharg", "pushall", "pushmem",
	"popreg", "popgen", "poparg", "popall", "popmem",
	"memset", "memcpy", "offset", "requestbytes", "releasebytes", "requestlocal", "droplocal", "eload", "p2g",
	"gload8", "gload16", "gload32", "gload64", "gsave8", "gsave16", "gsave32", "gsave64",
	"pload8", "pload16", "pload32", "pload64", "psave8", "psave16", "psave32", "psave64",
	"cmpis0", "cmpnot0", "cmpeq", "cmpneq", "cmplt", "cmpgt", "cmplteq", "cmpgteq",
	"cmplti", "cmpgti", "cmplteqi", "cmpgteqi",
	"cmpltf", "cmpgtf", "cmplteqf", "cmpgteqf",
	"cmpltd", "cmpgtd", "cmplteqd", "cmpgteqd",
	"land", "lor", "lnot",
	"inc", "dec", "i2f", "u2f", "i2d", "u2d", "f2i", "f2u", "f2d", "d2i", "d2u", "d2f",
	"pow", "powi", "powf", "powd", "sqrt", "sqrtf", "sqrtd",
	"add", "sub", "mul", "div", "mod", "addimm", "subimm", "mulimm", "divimm", "modimm",
	"idiv", "imod", "idivimm", "imodimm",
	"fadd", "fsub", "fmul", "fdiv", "fmod",
	"dadd", "dsub", "dmul", "ddiv", "dmod",
	"and", "or", "xor", "not", "shl", "shr", "andimm", "orimm", "xorimm", "notimm", "shlimm", "shrimm",
}

func init() {
	if len(opcodeNames) != Count {
		panic("octisa: opcodeNames length must match opcodeCount")
	}
}

// String returns the mnemonic for op, or "INVALID" if op is out of range —
// spec.md §4.6: "an invalid opcode id maps to the literal INVALID".
func (op Opcode) String() string {
	if int(op) >= Count {
		return "INVALID"
	}
	return opcodeNames[op]
}

// FromMnemonic is the inverse of String: it returns the Opcode for name and
// true, or (0, false) if name isn't a recognized mnemonic. Opcode -> string
// -> Opcode is the identity over all 140 opcodes (spec.md §8 round-trip
// law); string -> Opcode -> string is the identity for every valid
// mnemonic.
func FromMnemonic(name string) (Opcode, bool) {
	for i, n := range opcodeNames {
		if n == name {
			return Opcode(i), true
		}
	}
	return 0, false
}

func init() {
	// Guard against silent drift in the frozen order (spec.md §9: "guard
	// the enumeration with a compile-time or test-time assertion that the
	// numeric value of every opcode matches the position in the canonical
	// list"). OpRet in particular is load-bearing: octfunc fills bytecode
	// padding with its byte value.
	if opcodeNames[OpRet] != "ret" {
		panic("octisa: OpRet drifted from the frozen opcode table")
	}
}
