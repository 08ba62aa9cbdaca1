package octexec

import (
	"math"

	"github.com/octanevm/octane/internal/octfunc"
	"github.com/octanevm/octane/internal/octisa"
	"github.com/octanevm/octane/internal/octsym"
	"github.com/octanevm/octane/internal/octvp"
)

// Run executes fn on vp to completion under the default fault handler
// (spec.md §4.7: "the executor installs a default handler that treats
// every runtime exception as fatal").
func Run(vm VM, vp *octvp.VP, fn *octfunc.Function) *State {
	return RunWithHandler(vm, vp, fn, DefaultHandler)
}

// RunWithHandler is Run with a caller-installed handler, for the
// function-granularity override spec.md §4.7 describes ("users install
// alternatives at function granularity").
func RunWithHandler(vm VM, vp *octvp.VP, fn *octfunc.Function, handler Handler) *State {
	s := NewState(vm, vp, fn)
	s.Handler = handler

	if !fn.IsBytecode {
		vp.Clear()
		v, err := fn.NativeFunc()(nil)
		s.Halted = true
		if err != nil {
			s.Faulted = true
			return s
		}
		s.Result = octvp.RegFromU64(v)
		return s
	}

	fn.ObserveRun()
	vp.Clear()
	code := fn.CodeWithPadding()

	for !s.Halted {
		if int(s.IP) >= len(code) {
			// Running off the end entirely (not just into padding) behaves
			// like an instruction_overflow fault rather than reading past
			// the allocation.
			s.fault(Exception{Kind: KindInstructionOverflow})
			break
		}

		ins, ok := octisa.Decode(code[s.IP:])
		if !ok {
			s.fault(Exception{Kind: KindInstructionOverflow})
			break
		}

		nextIP := s.IP + uint32(ins.Words)*4
		branched := s.step(ins)
		if s.Halted {
			break
		}
		if !branched {
			s.IP = nextIP
		}
	}

	return s
}

// step executes one decoded instruction against s, returning true if it set
// IP itself (a taken branch or seek) so Run should not also advance past
// it.
func (s *State) step(ins octisa.Instruction) (branched bool) {
	switch ins.Op {

	case octisa.OpNop:
		// no-op

	case octisa.OpChrono:
		// no wall-clock surface in this core; reserved opcode, no-op

	// --- control flow ---

	case octisa.OpSeek:
		s.IP = uint32(s.Reg(ins.RX).AsU64())
		branched = true

	case octisa.OpJmp:
		s.IP = s.branchTarget(ins)
		branched = true

	case octisa.OpJmpIs0:
		branched = s.condJump(ins, s.Reg(ins.RX).AsU64() == 0)
	case octisa.OpJmpNot0:
		branched = s.condJump(ins, s.Reg(ins.RX).AsU64() != 0)
	case octisa.OpJmpEq:
		branched = s.condJump(ins, s.Reg(ins.RX).AsU64() == s.Reg(ins.RY).AsU64())
	case octisa.OpJmpNeq:
		branched = s.condJump(ins, s.Reg(ins.RX).AsU64() != s.Reg(ins.RY).AsU64())
	case octisa.OpJmpLt:
		branched = s.condJump(ins, s.Reg(ins.RX).AsU64() < s.Reg(ins.RY).AsU64())
	case octisa.OpJmpGt:
		branched = s.condJump(ins, s.Reg(ins.RX).AsU64() > s.Reg(ins.RY).AsU64())
	case octisa.OpJmpLtEq:
		branched = s.condJump(ins, s.Reg(ins.RX).AsU64() <= s.Reg(ins.RY).AsU64())
	case octisa.OpJmpGtEq:
		branched = s.condJump(ins, s.Reg(ins.RX).AsU64() >= s.Reg(ins.RY).AsU64())

	case octisa.OpCall:
		s.call(ins.RX, false)
	case octisa.OpCoreCall:
		s.call(ins.RX, true)
	case octisa.OpSpawn:
		s.spawn(ins.RX)
	case octisa.OpSpawnAnon:
		// no bytecode-embedded target: nothing to resolve without a
		// relocation index; reserved for a caller-installed native spawn
		// hook, currently a no-op.
	case octisa.OpMerge:
		// merge is implemented at octvm's VM level, where spawned VPs are
		// tracked; the core dispatch loop has no VP registry to join
		// against, so this is a no-op here.
	case octisa.OpMuop, octisa.OpCvop:
		// reserved multi-op / convert-op escape hatches; no-op until a
		// concrete extension defines them.

	case octisa.OpRet:
		s.Result = s.Reg(0)
		s.Halted = true

	// --- data movement ---

	case octisa.OpClr:
		s.SetReg(ins.RX, 0)
	case octisa.OpMov:
		s.SetReg(ins.RY, s.Reg(ins.RX))
	case octisa.OpMovImm:
		s.SetReg(ins.RX, octvp.RegFromU64(uint64(ins.Imm16)))
	case octisa.OpMovImm32:
		s.SetReg(ins.RX, octvp.RegFromU64(ins.Imm))
	case octisa.OpMovImm64:
		s.SetReg(ins.RX, octvp.RegFromU64(ins.Imm))
	case octisa.OpMovImmF:
		s.SetReg(ins.RX, octvp.RegFromF32(math.Float32frombits(uint32(ins.Imm))))
	case octisa.OpMovImmD:
		s.SetReg(ins.RX, octvp.RegFromF64(math.Float64frombits(ins.Imm)))

	// --- stack ---

	case octisa.OpPushReg:
		s.checkStack(s.VP.Thread.Push64(s.Reg(ins.RX).AsU64()))
	case octisa.OpPushGen:
		s.checkStack(s.VP.Thread.Push64(0))
	case octisa.OpPushArg:
		s.checkStack(s.VP.Thread.Push64(s.Reg(ins.RX).AsU64()))
	case octisa.OpPushAll:
		for i := 0; i < octvp.RegisterCount; i++ {
			if s.checkStack(s.VP.Thread.Push64(s.VP.Regs[i].AsU64())) {
				break
			}
		}
	case octisa.OpPushMem:
		addr := int(s.Reg(ins.RX).AsU64())
		size := int(ins.Scale)
		if buf := s.VP.Thread.StackAt(addr, size); buf != nil {
			s.checkStack(s.VP.Thread.PushMem(buf))
		} else {
			s.fault(Exception{Kind: KindStackUnset})
		}

	case octisa.OpPopReg:
		s.popInto(ins.RX)
	case octisa.OpPopGen:
		s.popDiscard()
	case octisa.OpPopArg:
		s.popInto(ins.RX)
	case octisa.OpPopAll:
		for i := octvp.RegisterCount - 1; i >= 0; i-- {
			s.popInto(byte(i))
		}
	case octisa.OpPopMem:
		dst := make([]byte, int(ins.Scale))
		r := s.VP.Thread.PopMem(dst)
		if !r.Valid {
			s.fault(Exception{Kind: KindStackUnderflow})
		}

	// --- memory / local arena ---

	case octisa.OpMemset:
		s.memset(ins)
	case octisa.OpMemcpy:
		s.memcpy(ins)
	case octisa.OpOffset:
		s.SetReg(ins.RY, octvp.RegFromU64(s.Reg(ins.RX).AsU64()+uint64(ins.Scale)))
	case octisa.OpRequestBytes:
		buf := s.VP.Thread.RequestBytes(int(s.Reg(ins.RX).AsU64()))
		if buf == nil {
			s.fault(Exception{Kind: KindLocalOutOfMemory})
		}
	case octisa.OpReleaseBytes:
		if s.VP.Thread.DropBytes(int(s.Reg(ins.RX).AsU64())) < 0 {
			s.fault(Exception{Kind: KindLocalAccessUnderflow})
		}
	case octisa.OpRequestLocal:
		if !s.VP.Thread.NewFrame() {
			s.fault(Exception{Kind: KindLocalOutOfMemory})
		}
	case octisa.OpDropLocal:
		s.VP.Thread.DropFrame()
	case octisa.OpEload:
		s.eload(ins.RX)
	case octisa.OpP2G:
		// private-to-global promotion: no separate global heap in this
		// core's addressing model (see DESIGN.md), so this is a
		// same-value move for register-resident values.
		s.SetReg(ins.RX, s.Reg(ins.RX))

	// --- global (flat stack-addressed) load/store ---

	case octisa.OpGLoad8:
		s.gload(ins, 1)
	case octisa.OpGLoad16:
		s.gload(ins, 2)
	case octisa.OpGLoad32:
		s.gload(ins, 4)
	case octisa.OpGLoad64:
		s.gload(ins, 8)
	case octisa.OpGSave8:
		s.gsave(ins, 1)
	case octisa.OpGSave16:
		s.gsave(ins, 2)
	case octisa.OpGSave32:
		s.gsave(ins, 4)
	case octisa.OpGSave64:
		s.gsave(ins, 8)

	// --- private (frame-relative) load/store ---

	case octisa.OpPLoad8:
		s.pload(ins, 1)
	case octisa.OpPLoad16:
		s.pload(ins, 2)
	case octisa.OpPLoad32:
		s.pload(ins, 4)
	case octisa.OpPLoad64:
		s.pload(ins, 8)
	case octisa.OpPSave8:
		s.psave(ins, 1)
	case octisa.OpPSave16:
		s.psave(ins, 2)
	case octisa.OpPSave32:
		s.psave(ins, 4)
	case octisa.OpPSave64:
		s.psave(ins, 8)

	// --- comparisons (write 1/0 into RX) ---

	case octisa.OpCmpIs0:
		s.setBool(ins.RX, s.Reg(ins.RX).AsU64() == 0)
	case octisa.OpCmpNot0:
		s.setBool(ins.RX, s.Reg(ins.RX).AsU64() != 0)
	case octisa.OpCmpEq:
		s.setBool(ins.RX, s.Reg(ins.RX).AsU64() == s.Reg(ins.RY).AsU64())
	case octisa.OpCmpNeq:
		s.setBool(ins.RX, s.Reg(ins.RX).AsU64() != s.Reg(ins.RY).AsU64())
	case octisa.OpCmpLt:
		s.setBool(ins.RX, s.Reg(ins.RX).AsU64() < s.Reg(ins.RY).AsU64())
	case octisa.OpCmpGt:
		s.setBool(ins.RX, s.Reg(ins.RX).AsU64() > s.Reg(ins.RY).AsU64())
	case octisa.OpCmpLtEq:
		s.setBool(ins.RX, s.Reg(ins.RX).AsU64() <= s.Reg(ins.RY).AsU64())
	case octisa.OpCmpGtEq:
		s.setBool(ins.RX, s.Reg(ins.RX).AsU64() >= s.Reg(ins.RY).AsU64())

	case octisa.OpCmpLtI:
		s.setBool(ins.RX, s.Reg(ins.RX).AsI64() < s.Reg(ins.RY).AsI64())
	case octisa.OpCmpGtI:
		s.setBool(ins.RX, s.Reg(ins.RX).AsI64() > s.Reg(ins.RY).AsI64())
	case octisa.OpCmpLtEqI:
		s.setBool(ins.RX, s.Reg(ins.RX).AsI64() <= s.Reg(ins.RY).AsI64())
	case octisa.OpCmpGtEqI:
		s.setBool(ins.RX, s.Reg(ins.RX).AsI64() >= s.Reg(ins.RY).AsI64())

	case octisa.OpCmpLtF:
		s.setBool(ins.RX, s.Reg(ins.RX).AsF32() < s.Reg(ins.RY).AsF32())
	case octisa.OpCmpGtF:
		s.setBool(ins.RX, s.Reg(ins.RX).AsF32() > s.Reg(ins.RY).AsF32())
	case octisa.OpCmpLtEqF:
		s.setBool(ins.RX, s.Reg(ins.RX).AsF32() <= s.Reg(ins.RY).AsF32())
	case octisa.OpCmpGtEqF:
		s.setBool(ins.RX, s.Reg(ins.RX).AsF32() >= s.Reg(ins.RY).AsF32())

	case octisa.OpCmpLtD:
		s.setBool(ins.RX, s.Reg(ins.RX).AsF64() < s.Reg(ins.RY).AsF64())
	case octisa.OpCmpGtD:
		s.setBool(ins.RX, s.Reg(ins.RX).AsF64() > s.Reg(ins.RY).AsF64())
	case octisa.OpCmpLtEqD:
		s.setBool(ins.RX, s.Reg(ins.RX).AsF64() <= s.Reg(ins.RY).AsF64())
	case octisa.OpCmpGtEqD:
		s.setBool(ins.RX, s.Reg(ins.RX).AsF64() >= s.Reg(ins.RY).AsF64())

	// --- logical ---

	case octisa.OpLAnd:
		s.setBool(ins.RX, s.Reg(ins.RX).AsU64() != 0 && s.Reg(ins.RY).AsU64() != 0)
	case octisa.OpLOr:
		s.setBool(ins.RX, s.Reg(ins.RX).AsU64() != 0 || s.Reg(ins.RY).AsU64() != 0)
	case octisa.OpLNot:
		s.setBool(ins.RX, s.Reg(ins.RX).AsU64() == 0)

	// --- inc/dec/conversions ---

	case octisa.OpInc:
		s.SetReg(ins.RX, octvp.RegFromU64(s.Reg(ins.RX).AsU64()+1))
	case octisa.OpDec:
		s.SetReg(ins.RX, octvp.RegFromU64(s.Reg(ins.RX).AsU64()-1))
	case octisa.OpI2F:
		s.SetReg(ins.RX, octvp.RegFromF32(float32(s.Reg(ins.RX).AsI64())))
	case octisa.OpU2F:
		s.SetReg(ins.RX, octvp.RegFromF32(float32(s.Reg(ins.RX).AsU64())))
	case octisa.OpI2D:
		s.SetReg(ins.RX, octvp.RegFromF64(float64(s.Reg(ins.RX).AsI64())))
	case octisa.OpU2D:
		s.SetReg(ins.RX, octvp.RegFromF64(float64(s.Reg(ins.RX).AsU64())))
	case octisa.OpF2I:
		s.SetReg(ins.RX, octvp.RegFromI64(int64(s.Reg(ins.RX).AsF32())))
	case octisa.OpF2U:
		s.SetReg(ins.RX, octvp.RegFromU64(uint64(s.Reg(ins.RX).AsF32())))
	case octisa.OpF2D:
		s.SetReg(ins.RX, octvp.RegFromF64(float64(s.Reg(ins.RX).AsF32())))
	case octisa.OpD2I:
		s.SetReg(ins.RX, octvp.RegFromI64(int64(s.Reg(ins.RX).AsF64())))
	case octisa.OpD2U:
		s.SetReg(ins.RX, octvp.RegFromU64(uint64(s.Reg(ins.RX).AsF64())))
	case octisa.OpD2F:
		s.SetReg(ins.RX, octvp.RegFromF32(float32(s.Reg(ins.RX).AsF64())))

	// --- power / sqrt ---

	case octisa.OpPow:
		s.SetReg(ins.RX, octvp.RegFromU64(uint64(math.Pow(float64(s.Reg(ins.RX).AsU64()), float64(s.Reg(ins.RY).AsU64())))))
	case octisa.OpPowI:
		s.SetReg(ins.RX, octvp.RegFromI64(int64(math.Pow(float64(s.Reg(ins.RX).AsI64()), float64(s.Reg(ins.RY).AsI64())))))
	case octisa.OpPowF:
		s.SetReg(ins.RX, octvp.RegFromF32(float32(math.Pow(float64(s.Reg(ins.RX).AsF32()), float64(s.Reg(ins.RY).AsF32())))))
	case octisa.OpPowD:
		s.SetReg(ins.RX, octvp.RegFromF64(math.Pow(s.Reg(ins.RX).AsF64(), s.Reg(ins.RY).AsF64())))
	case octisa.OpSqrt:
		s.SetReg(ins.RX, octvp.RegFromU64(uint64(math.Sqrt(float64(s.Reg(ins.RX).AsU64())))))
	case octisa.OpSqrtF:
		s.SetReg(ins.RX, octvp.RegFromF32(float32(math.Sqrt(float64(s.Reg(ins.RX).AsF32())))))
	case octisa.OpSqrtD:
		s.SetReg(ins.RX, octvp.RegFromF64(math.Sqrt(s.Reg(ins.RX).AsF64())))

	// --- unsigned arithmetic ---

	case octisa.OpAdd:
		s.SetReg(ins.RZ, octvp.RegFromU64(s.Reg(ins.RX).AsU64()+s.Reg(ins.RY).AsU64()))
	case octisa.OpSub:
		s.SetReg(ins.RZ, octvp.RegFromU64(s.Reg(ins.RX).AsU64()-s.Reg(ins.RY).AsU64()))
	case octisa.OpMul:
		s.SetReg(ins.RZ, octvp.RegFromU64(s.Reg(ins.RX).AsU64()*s.Reg(ins.RY).AsU64()))
	case octisa.OpDiv:
		if !s.checkedDivU(ins, KindDivideByZeroU) {
			break
		}
		s.SetReg(ins.RZ, octvp.RegFromU64(s.Reg(ins.RX).AsU64()/s.Reg(ins.RY).AsU64()))
	case octisa.OpMod:
		if !s.checkedDivU(ins, KindDivideByZeroU) {
			break
		}
		s.SetReg(ins.RZ, octvp.RegFromU64(s.Reg(ins.RX).AsU64()%s.Reg(ins.RY).AsU64()))
	case octisa.OpAddImm:
		s.SetReg(ins.RX, octvp.RegFromU64(s.Reg(ins.RX).AsU64()+uint64(ins.Imm16)))
	case octisa.OpSubImm:
		s.SetReg(ins.RX, octvp.RegFromU64(s.Reg(ins.RX).AsU64()-uint64(ins.Imm16)))
	case octisa.OpMulImm:
		s.SetReg(ins.RX, octvp.RegFromU64(s.Reg(ins.RX).AsU64()*uint64(ins.Imm16)))
	case octisa.OpDivImm:
		if ins.Imm16 == 0 {
			s.fault(Exception{Kind: KindDivideByZeroU, IsBytecode: true, Offender: ins})
			break
		}
		s.SetReg(ins.RX, octvp.RegFromU64(s.Reg(ins.RX).AsU64()/uint64(ins.Imm16)))
	case octisa.OpModImm:
		if ins.Imm16 == 0 {
			s.fault(Exception{Kind: KindDivideByZeroU, IsBytecode: true, Offender: ins})
			break
		}
		s.SetReg(ins.RX, octvp.RegFromU64(s.Reg(ins.RX).AsU64()%uint64(ins.Imm16)))

	// --- signed integer division ---

	case octisa.OpIDiv:
		if !s.checkedDivI(ins, KindDivideByZeroI) {
			break
		}
		s.SetReg(ins.RZ, octvp.RegFromI64(s.Reg(ins.RX).AsI64()/s.Reg(ins.RY).AsI64()))
	case octisa.OpIMod:
		if !s.checkedDivI(ins, KindDivideByZeroI) {
			break
		}
		s.SetReg(ins.RZ, octvp.RegFromI64(s.Reg(ins.RX).AsI64()%s.Reg(ins.RY).AsI64()))
	case octisa.OpIDivImm:
		if ins.Imm16 == 0 {
			s.fault(Exception{Kind: KindDivideByZeroI, IsBytecode: true, Offender: ins})
			break
		}
		s.SetReg(ins.RX, octvp.RegFromI64(s.Reg(ins.RX).AsI64()/int64(ins.Imm16)))
	case octisa.OpIModImm:
		if ins.Imm16 == 0 {
			s.fault(Exception{Kind: KindDivideByZeroI, IsBytecode: true, Offender: ins})
			break
		}
		s.SetReg(ins.RX, octvp.RegFromI64(s.Reg(ins.RX).AsI64()%int64(ins.Imm16)))

	// --- float32 arithmetic ---

	case octisa.OpFAdd:
		s.SetReg(ins.RZ, octvp.RegFromF32(s.Reg(ins.RX).AsF32()+s.Reg(ins.RY).AsF32()))
	case octisa.OpFSub:
		s.SetReg(ins.RZ, octvp.RegFromF32(s.Reg(ins.RX).AsF32()-s.Reg(ins.RY).AsF32()))
	case octisa.OpFMul:
		s.SetReg(ins.RZ, octvp.RegFromF32(s.Reg(ins.RX).AsF32()*s.Reg(ins.RY).AsF32()))
	case octisa.OpFDiv:
		if s.Reg(ins.RY).AsF32() == 0 {
			s.fault(Exception{Kind: KindDivideByZeroF, IsBytecode: true, Offender: ins})
			break
		}
		s.SetReg(ins.RZ, octvp.RegFromF32(s.Reg(ins.RX).AsF32()/s.Reg(ins.RY).AsF32()))
	case octisa.OpFMod:
		if s.Reg(ins.RY).AsF32() == 0 {
			s.fault(Exception{Kind: KindDivideByZeroF, IsBytecode: true, Offender: ins})
			break
		}
		s.SetReg(ins.RZ, octvp.RegFromF32(float32(math.Mod(float64(s.Reg(ins.RX).AsF32()), float64(s.Reg(ins.RY).AsF32())))))

	// --- float64 arithmetic ---

	case octisa.OpDAdd:
		s.SetReg(ins.RZ, octvp.RegFromF64(s.Reg(ins.RX).AsF64()+s.Reg(ins.RY).AsF64()))
	case octisa.OpDSub:
		s.SetReg(ins.RZ, octvp.RegFromF64(s.Reg(ins.RX).AsF64()-s.Reg(ins.RY).AsF64()))
	case octisa.OpDMul:
		s.SetReg(ins.RZ, octvp.RegFromF64(s.Reg(ins.RX).AsF64()*s.Reg(ins.RY).AsF64()))
	case octisa.OpDDiv:
		if s.Reg(ins.RY).AsF64() == 0 {
			s.fault(Exception{Kind: KindDivideByZeroD, IsBytecode: true, Offender: ins})
			break
		}
		s.SetReg(ins.RZ, octvp.RegFromF64(s.Reg(ins.RX).AsF64()/s.Reg(ins.RY).AsF64()))
	case octisa.OpDMod:
		if s.Reg(ins.RY).AsF64() == 0 {
			s.fault(Exception{Kind: KindDivideByZeroD, IsBytecode: true, Offender: ins})
			break
		}
		s.SetReg(ins.RZ, octvp.RegFromF64(math.Mod(s.Reg(ins.RX).AsF64(), s.Reg(ins.RY).AsF64())))

	// --- bitwise ---

	case octisa.OpAnd:
		s.SetReg(ins.RZ, octvp.RegFromU64(s.Reg(ins.RX).AsU64()&s.Reg(ins.RY).AsU64()))
	case octisa.OpOr:
		s.SetReg(ins.RZ, octvp.RegFromU64(s.Reg(ins.RX).AsU64()|s.Reg(ins.RY).AsU64()))
	case octisa.OpXor:
		s.SetReg(ins.RZ, octvp.RegFromU64(s.Reg(ins.RX).AsU64()^s.Reg(ins.RY).AsU64()))
	case octisa.OpNot:
		s.SetReg(ins.RX, octvp.RegFromU64(^s.Reg(ins.RX).AsU64()))
	case octisa.OpShl:
		s.SetReg(ins.RZ, octvp.RegFromU64(s.Reg(ins.RX).AsU64()<<(s.Reg(ins.RY).AsU64()&63)))
	case octisa.OpShr:
		s.SetReg(ins.RZ, octvp.RegFromU64(s.Reg(ins.RX).AsU64()>>(s.Reg(ins.RY).AsU64()&63)))
	case octisa.OpAndImm:
		s.SetReg(ins.RX, octvp.RegFromU64(s.Reg(ins.RX).AsU64()&uint64(ins.Imm16)))
	case octisa.OpOrImm:
		s.SetReg(ins.RX, octvp.RegFromU64(s.Reg(ins.RX).AsU64()|uint64(ins.Imm16)))
	case octisa.OpXorImm:
		s.SetReg(ins.RX, octvp.RegFromU64(s.Reg(ins.RX).AsU64()^uint64(ins.Imm16)))
	case octisa.OpNotImm:
		s.SetReg(ins.RX, octvp.RegFromU64(^uint64(ins.Imm16)))
	case octisa.OpShlImm:
		s.SetReg(ins.RX, octvp.RegFromU64(s.Reg(ins.RX).AsU64()<<(uint64(ins.Imm16)&63)))
	case octisa.OpShrImm:
		s.SetReg(ins.RX, octvp.RegFromU64(s.Reg(ins.RX).AsU64()>>(uint64(ins.Imm16)&63)))

	default:
		s.fault(Exception{Kind: KindInvalidRegisterAccess, IsBytecode: true, Offender: ins})
	}

	return branched
}

// branchTarget computes the absolute word-aligned target for a branch
// carrying a signed 16-bit word-offset relative to the instruction
// immediately following it.
func (s *State) branchTarget(ins octisa.Instruction) uint32 {
	offset := int32(int16(ins.Imm16))
	base := int64(s.IP) + int64(ins.Words)*4
	return uint32(base + int64(offset)*4)
}

func (s *State) condJump(ins octisa.Instruction, cond bool) bool {
	if !cond {
		return false
	}
	s.IP = s.branchTarget(ins)
	return true
}

func (s *State) setBool(reg byte, v bool) {
	if v {
		s.SetReg(reg, 1)
	} else {
		s.SetReg(reg, 0)
	}
}

// checkStack folds a push()'s remaining-space result into the exception
// model; true means it faulted.
func (s *State) checkStack(remaining int) bool {
	if remaining < 0 {
		s.fault(Exception{Kind: KindStackOverflow})
		return true
	}
	return false
}

func (s *State) popInto(reg byte) {
	r := s.VP.Thread.Pop64()
	if !r.Valid {
		s.fault(Exception{Kind: KindStackUnderflow})
		return
	}
	s.SetReg(reg, octvp.RegFromU64(r.Value))
}

func (s *State) popDiscard() {
	if r := s.VP.Thread.Pop64(); !r.Valid {
		s.fault(Exception{Kind: KindStackUnderflow})
	}
}

func (s *State) checkedDivU(ins octisa.Instruction, kind Kind) bool {
	if s.Reg(ins.RY).AsU64() == 0 {
		s.fault(Exception{Kind: kind, IsBytecode: true, Offender: ins})
		return false
	}
	return true
}

func (s *State) checkedDivI(ins octisa.Instruction, kind Kind) bool {
	if s.Reg(ins.RY).AsI64() == 0 {
		s.fault(Exception{Kind: kind, IsBytecode: true, Offender: ins})
		return false
	}
	return true
}

// gload/gsave address the stack region as flat global storage by absolute
// byte offset (rX holds the offset, scale is unused, rY is the
// value/destination register) — see DESIGN.md for why "global" is read
// this way rather than through a separate heap.
func (s *State) gload(ins octisa.Instruction, width int) {
	buf := s.VP.Thread.StackAt(int(s.Reg(ins.RX).AsU64()), width)
	if buf == nil {
		s.fault(Exception{Kind: KindStackUnset, IsBytecode: true, Offender: ins})
		return
	}
	s.SetReg(ins.RX, octvp.RegFromU64(readLE(buf)))
}

func (s *State) gsave(ins octisa.Instruction, width int) {
	buf := s.VP.Thread.StackAt(int(s.Reg(ins.RX).AsU64()), width)
	if buf == nil {
		s.fault(Exception{Kind: KindStackUnset, IsBytecode: true, Offender: ins})
		return
	}
	writeLE(buf, s.Reg(ins.RX).AsU64())
}

// pload/psave address the current local frame's used bytes by a
// frame-relative offset (rY), loading into or storing from rX.
func (s *State) pload(ins octisa.Instruction, width int) {
	buf := s.VP.Thread.GetAt(int(s.Reg(ins.RY).AsU64()), width)
	if buf == nil {
		s.fault(Exception{Kind: KindLocalUnset, IsBytecode: true, Offender: ins})
		return
	}
	s.SetReg(ins.RX, octvp.RegFromU64(readLE(buf)))
}

func (s *State) psave(ins octisa.Instruction, width int) {
	buf := s.VP.Thread.GetAt(int(s.Reg(ins.RY).AsU64()), width)
	if buf == nil {
		s.fault(Exception{Kind: KindLocalUnset, IsBytecode: true, Offender: ins})
		return
	}
	writeLE(buf, s.Reg(ins.RX).AsU64())
}

// memset/memcpy operate over the current local frame, addressed by
// base(rX) + index(rY) * scale, rZ supplying a packed (value<<32 | count)
// word for memset or a byte count for memcpy's "copy from frame top" source
// (see DESIGN.md).
func (s *State) memset(ins octisa.Instruction) {
	addr := int(s.Reg(ins.RX).AsU64() + s.Reg(ins.RY).AsU64()*uint64(ins.Scale))
	packed := s.Reg(ins.RZ).AsU64()
	value := byte(packed >> 32)
	count := int(uint32(packed))
	buf := s.VP.Thread.GetAt(addr, count)
	if buf == nil {
		s.fault(Exception{Kind: KindLocalAccessOverflow, IsBytecode: true, Offender: ins})
		return
	}
	for i := range buf {
		buf[i] = value
	}
}

func (s *State) memcpy(ins octisa.Instruction) {
	dst := int(s.Reg(ins.RX).AsU64() + s.Reg(ins.RY).AsU64()*uint64(ins.Scale))
	count := int(s.Reg(ins.RZ).AsU64())
	src := s.VP.Thread.StackIdx() - count
	srcBuf := s.VP.Thread.StackAt(src, count)
	dstBuf := s.VP.Thread.GetAt(dst, count)
	if srcBuf == nil || dstBuf == nil {
		s.fault(Exception{Kind: KindLocalAccessOverflow, IsBytecode: true, Offender: ins})
		return
	}
	copy(dstBuf, srcBuf)
}

// eload resolves reg's value as a relocation-table index into a data or
// metadata symbol and loads its identity back into reg: registers can't
// hold an any-typed Go value directly, so what comes back is the symbol's
// numeric Value when one is stored (spec.md leaves the exact encoding of a
// loaded external symbol to the caller's convention).
func (s *State) eload(reg byte) {
	if s.Func.Reloc == nil {
		s.fault(Exception{Kind: KindInvalidRegisterAccess})
		return
	}
	sym := s.Func.Reloc.RetrieveIDX(int(s.Reg(reg).AsU64()))
	if sym == nil {
		s.fault(Exception{Kind: KindInvalidRegisterAccess})
		return
	}
	if v, ok := sym.Value.(uint64); ok {
		s.SetReg(reg, octvp.RegFromU64(v))
	}
}

// call resolves reg as a relocation-table index and runs the target to
// completion on the current virtual processor (registers are overwritten
// by the callee, caller-save is the caller's responsibility — see
// DESIGN.md). isCore does not change behaviour: a miss is reported as
// invalid_register_access for both call and corecall, and the installed
// handler decides whether that is fatal.
func (s *State) call(reg byte, isCore bool) {
	sym := s.resolveCallTarget(reg)
	if sym == nil || sym.Type != octsym.TypeFunc {
		kind := KindInvalidRegisterAccess
		s.fault(Exception{Kind: kind})
		return
	}
	fn, ok := sym.Value.(*octfunc.Function)
	if !ok {
		s.fault(Exception{Kind: KindInvalidRegisterAccess})
		return
	}
	callee := Run(s.VM, s.VP, fn)
	s.SetReg(0, callee.Result)
	if callee.Faulted {
		s.fault(Exception{Kind: KindInvalidRegisterAccess})
	}
}

func (s *State) resolveCallTarget(reg byte) *octsym.Symbol {
	if s.Func.Reloc == nil {
		return nil
	}
	return s.Func.Reloc.RetrieveIDX(int(s.Reg(reg).AsU64()))
}

// spawn resolves reg the same way call does but is handled at octvm's VM
// level, where new virtual processors are registered and scheduled; the
// core dispatch loop only validates the target resolves.
func (s *State) spawn(reg byte) {
	sym := s.resolveCallTarget(reg)
	if sym == nil || sym.Type != octsym.TypeFunc {
		s.fault(Exception{Kind: KindInvalidRegisterAccess})
	}
}

func readLE(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func writeLE(b []byte, v uint64) {
	for i := range b {
		b[i] = byte(v)
		v >>= 8
	}
}
