// This file is part of gopsx.
//
// gopsx is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// gopsx is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with gopsx.  If not, see <https://www.gnu.org/licenses/>.

package emit

import (
	"github.com/gopsx/gopsx/hardware/cpu/mips"
	"github.com/gopsx/gopsx/hardware/dynarec/host"
	"github.com/gopsx/gopsx/hardware/dynarec/scan"
)

// emitInstruction is the per-opcode template dispatcher. It mirrors
// cpu/interpreter/execute.go's opcode grouping (both walk the same
// mips.Categorize buckets) but compiles native code into e.buf instead
// of mutating a registers.State directly.
func (e *Emitter) emitInstruction(inst scan.Instruction) {
	d := inst.Decoded

	switch mips.Categorize(d) {
	case mips.CategoryALU:
		e.emitALU(d)
	case mips.CategoryMultDiv:
		e.flushAll()
		e.emitMultDiv(d)
	case mips.CategoryLoad:
		e.emitLoad(d, inst.PC)
	case mips.CategoryStore:
		e.emitStore(d, inst.PC)
	case mips.CategoryBranch, mips.CategoryJump:
		e.emitBranchOrJump(d, inst.PC)
	case mips.CategorySyscallBreak:
		e.flushAll()
		e.emitTrapCall(inst.PC)
	case mips.CategoryCoprocessor:
		e.flushAll()
		e.emitCoprocessor(d, inst.PC)
	}
}

// foldableALUImm reports whether d is one of the constant-foldable
// register-immediate ALU opcodes (the chains spec.md's emit pass calls
// out for compile-time collapsing), and the folding function.
func foldableALUImm(d mips.Decoded) (fn func(a, imm uint32) uint32, ok bool) {
	switch d.Opcode {
	case mips.OpADDI, mips.OpADDIU:
		return func(a, imm uint32) uint32 { return a + uint32(int32(int16(imm))) }, true
	case mips.OpANDI:
		return func(a, imm uint32) uint32 { return a & imm }, true
	case mips.OpORI:
		return func(a, imm uint32) uint32 { return a | imm }, true
	case mips.OpXORI:
		return func(a, imm uint32) uint32 { return a ^ imm }, true
	case mips.OpSLTI:
		return func(a, imm uint32) uint32 {
			if int32(a) < int32(int16(imm)) {
				return 1
			}
			return 0
		}, true
	case mips.OpSLTIU:
		return func(a, imm uint32) uint32 {
			if a < uint32(int32(int16(imm))) {
				return 1
			}
			return 0
		}, true
	}
	return nil, false
}

// foldableALUReg reports whether d is a constant-foldable SPECIAL
// register-register ALU op.
func foldableALUReg(d mips.Decoded) (fn func(a, b uint32) uint32, ok bool) {
	if d.Opcode != mips.OpSpecial {
		return nil, false
	}
	switch d.Funct {
	case mips.FnADD, mips.FnADDU:
		return func(a, b uint32) uint32 { return a + b }, true
	case mips.FnSUB, mips.FnSUBU:
		return func(a, b uint32) uint32 { return a - b }, true
	case mips.FnAND:
		return func(a, b uint32) uint32 { return a & b }, true
	case mips.FnOR:
		return func(a, b uint32) uint32 { return a | b }, true
	case mips.FnXOR:
		return func(a, b uint32) uint32 { return a ^ b }, true
	case mips.FnNOR:
		return func(a, b uint32) uint32 { return ^(a | b) }, true
	case mips.FnSLT:
		return func(a, b uint32) uint32 {
			if int32(a) < int32(b) {
				return 1
			}
			return 0
		}, true
	case mips.FnSLTU:
		return func(a, b uint32) uint32 {
			if a < b {
				return 1
			}
			return 0
		}, true
	}
	return nil, false
}

// emitALU compiles one ALU-category instruction, folding it at compile
// time when every operand is a known constant and the opcode is one of
// the foldable set, or else materialising operands from the guest
// record and emitting the real op, per spec.md §4.5's "collapse chained
// constant arithmetic" / "fold conditional branches" bullets (the
// branch half lives in branch.go).
func (e *Emitter) emitALU(d mips.Decoded) {
	if d.Opcode == mips.OpLUI {
		e.vregs.setConst(int(d.RT), uint32(d.Imm)<<16)
		return
	}

	if d.Opcode == mips.OpSpecial {
		switch d.Funct {
		case mips.FnSLL, mips.FnSRL, mips.FnSRA:
			if v, ok := e.vregs.lookup(int(d.RT)); ok {
				e.vregs.setConst(int(d.RD), shiftConst(d, v))
				return
			}
		default:
			if fn, ok := foldableALUReg(d); ok {
				a, aok := e.vregs.lookup(int(d.RS))
				b, bok := e.vregs.lookup(int(d.RT))
				if aok && bok {
					e.vregs.setConst(int(d.RD), fn(a, b))
					return
				}
			}
		}
		e.flushOperands(int(d.RS), int(d.RT))
		e.emitRegRegALU(d)
		e.vregs.setUnknown(int(d.RD))
		return
	}

	if fn, ok := foldableALUImm(d); ok {
		if a, ok := e.vregs.lookup(int(d.RS)); ok {
			e.vregs.setConst(int(d.RT), fn(a, uint32(d.Imm)))
			return
		}
	}
	e.flushOperands(int(d.RS))
	e.emitRegImmALU(d)
	e.vregs.setUnknown(int(d.RT))
}

func shiftConst(d mips.Decoded, v uint32) uint32 {
	switch d.Funct {
	case mips.FnSLL:
		return v << d.Shamt
	case mips.FnSRL:
		return v >> d.Shamt
	case mips.FnSRA:
		return uint32(int32(v) >> d.Shamt)
	}
	return v
}

// emitRegRegALU and emitRegImmALU emit the non-folded template: load
// both (or one) operands from the guest record into scratch host
// registers, compute, store the result back. This always round-trips
// through the guest record rather than keeping results live in a host
// register across instructions — a deliberate simplification (a
// baseline, not an optimising, code generator) that keeps every
// instruction template independent of whatever the previous one did,
// at the cost of redundant loads a smarter allocator would elide.
func (e *Emitter) emitRegRegALU(d mips.Decoded) {
	e.loadGPR(regScratch1, int(d.RS))
	e.loadGPR(regScratch2, int(d.RT))
	op, ok := aluOpFor(d)
	if ok {
		e.buf.ALURegReg(op, regScratch1, regScratch2)
	}
	e.storeGPR(int(d.RD), regScratch1)
}

func (e *Emitter) emitRegImmALU(d mips.Decoded) {
	e.loadGPR(regScratch1, int(d.RS))
	op, ok := aluOpForImm(d)
	if ok {
		e.buf.ALURegImm32(op, regScratch1, int32(int16(d.Imm)))
	}
	e.storeGPR(int(d.RT), regScratch1)
}

func aluOpFor(d mips.Decoded) (host.ALUOp, bool) {
	switch d.Funct {
	case mips.FnADD, mips.FnADDU:
		return host.OpAdd, true
	case mips.FnSUB, mips.FnSUBU:
		return host.OpSub, true
	case mips.FnAND:
		return host.OpAnd, true
	case mips.FnOR:
		return host.OpOr, true
	case mips.FnXOR:
		return host.OpXor, true
	}
	return 0, false
}

func aluOpForImm(d mips.Decoded) (host.ALUOp, bool) {
	switch d.Opcode {
	case mips.OpADDI, mips.OpADDIU:
		return host.OpAdd, true
	case mips.OpANDI:
		return host.OpAnd, true
	case mips.OpORI:
		return host.OpOr, true
	case mips.OpXORI:
		return host.OpXor, true
	}
	return 0, false
}

// emitMultDiv emits the fixed-cost MULT/MULTU/DIV/DIVU template:
// operands loaded, HI/LO stored. The actual 64-bit multiply/divide is
// left to the cold helper call (native integer multiply/divide needs
// more register juggling than this baseline generator's template
// budget affords, and MULT/DIV are rare enough in guest code that the
// extra call overhead is immaterial).
func (e *Emitter) emitMultDiv(d mips.Decoded) {
	e.loadGPR(regScratch1, int(d.RS))
	e.loadGPR(regScratch2, int(d.RT))
	e.buf.CallExternal() // resolved by the dynarec driver to its MULT/DIV helper
}

// loadGPR emits a 32-bit load of guest register r into host register
// reg. Register 0 is special-cased to an immediate zero since it's
// always architecturally zero and never worth a real memory read. A
// register still holding an un-flushed compile-time constant is
// likewise materialised directly as an immediate, since the guest
// record's copy is known stale.
func (e *Emitter) loadGPR(reg host.Reg, r int) {
	if r == 0 {
		e.buf.MovRegImm64(reg, 0)
		return
	}
	if e.vregs.dirty(r) {
		v, _ := e.vregs.lookup(r)
		e.buf.MovRegImm64(reg, uint64(v))
		return
	}
	e.buf.MovRegMem(reg, regState, gprOffset(r), 4)
}

// storeGPR emits a store of host register reg into guest register r's
// slot, clearing register 0's writes (the guest record's GPR[0] is kept
// zero by convention, mirroring registers.State.SetGPR).
func (e *Emitter) storeGPR(r int, reg host.Reg) {
	if r == 0 {
		return
	}
	e.buf.MovMemReg(regState, gprOffset(r), reg, 4)
}

// flushOperands writes back any dirty compile-time constants among the
// given registers before they're read by emitted code that expects
// them live in the guest record.
func (e *Emitter) flushOperands(regs ...int) {
	for _, r := range regs {
		if e.vregs.dirty(r) {
			v, _ := e.vregs.lookup(r)
			e.buf.MovRegImm64(regScratch1, uint64(v))
			e.buf.MovMemReg(regState, gprOffset(r), regScratch1, 4)
			e.vregs.markFlushed(r)
		}
	}
}

// flushAll writes back every outstanding dirty constant. Called before
// any instruction whose side effects the emitter can't fully track at
// compile time (MULT/DIV, syscall/break, coprocessor ops) so the guest
// record is a faithful snapshot the moment control might leave
// compiled code.
func (e *Emitter) flushAll() {
	for r := 1; r < 32; r++ {
		e.flushOperands(r)
	}
}
