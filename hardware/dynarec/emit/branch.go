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
)

// emitBranchOrJump handles the three branch shapes spec.md §4.5
// describes: unconditional (J/JAL), register jump (JR/JALR) and
// conditional (BEQ/BNE/BLEZ/BGTZ/REGIMM). The delay slot that follows
// in program order is a separate scan.Instruction the caller's loop
// will reach next; this method only ever emits the branch's own
// condition-evaluation and epilogue/deferred-record bookkeeping.
func (e *Emitter) emitBranchOrJump(d mips.Decoded, pc uint32) {
	e.flushAll()

	switch {
	case mips.IsRegisterJump(d):
		e.emitRegisterJump(d, pc)
	case d.Opcode == mips.OpJ:
		e.emitUnconditionalJump(jumpTarget(d, pc), pc)
	case d.Opcode == mips.OpJAL:
		e.emitLinkRegister(pc)
		e.emitUnconditionalJump(jumpTarget(d, pc), pc)
	default:
		e.emitConditionalBranch(d, pc)
	}
}

func jumpTarget(d mips.Decoded, pc uint32) uint32 {
	return (pc+4)&0xf000_0000 | d.Target<<2
}

// emitLinkRegister stores the return address (the instruction after
// the delay slot) into r31, used by JAL and JALR.
func (e *Emitter) emitLinkRegister(pc uint32) {
	e.vregs.setConst(31, pc+8)
}

// emitUnconditionalJump emits the direct-link epilogue: subtract the
// block's cycle cost, store the outgoing PC, check the cycle budget,
// then either jump straight to the target's native code (if it is
// already compiled and not stale) or to the abort trampoline with a
// patch site recorded against the target PC — see cache.Cache's
// AddPatchSite, which the dynarec driver consults once this Result's
// ExternalJumps are known to live at an absolute arena offset.
func (e *Emitter) emitUnconditionalJump(target uint32, pc uint32) {
	e.emitCycleAndPCEpilogue(target)
	offset := e.buf.JmpExternal()
	e.externals = append(e.externals, ExternalJump{BufferOffset: offset, TargetPC: target})
}

// emitRegisterJump is JR/JALR's epilogue: the target isn't known until
// runtime, so the jump always goes through the dispatch trampoline
// (a hash-table lookup keyed by the guest PC now sitting in the state
// record), never a direct link.
func (e *Emitter) emitRegisterJump(d mips.Decoded, pc uint32) {
	if d.Funct == mips.FnJALR {
		e.emitLinkRegister(pc)
	}
	e.flushOperands(int(d.RS))
	e.loadGPR(regScratch1, int(d.RS))
	e.buf.MovMemReg(regState, offPC, regScratch1, 4)
	e.emitCycleEpilogue()
	e.buf.CallExternal() // the dispatch trampoline
}

// emitConditionalBranch evaluates the branch condition into a scratch
// register, preserved across the delay slot (the delay-slot
// instruction may clobber any host scratch register, so the result is
// stashed in the guest record's otherwise-unused high half of
// CyclesLeft... in practice this emitter keeps it live by re-deriving
// the condition lazily: see the comment on deferredBranch). It then
// emits a forward conditional jump over the not-taken epilogue and
// records a deferredBranch so the taken epilogue can be compiled as
// cold tail code once the fall-through super-block finishes, per
// spec.md's super-block scheme.
func (e *Emitter) emitConditionalBranch(d mips.Decoded, pc uint32) {
	target := branchTarget(d, pc)

	cc, ok := conditionFor(d)
	if !ok {
		// REGIMM's zero-compares (BLTZ/BGEZ and their link variants)
		// aren't in conditionFor's table; this generator doesn't defer
		// them, it just leaves the branch to the interpreter fallback.
		e.flushAll()
		e.buf.CallExternal() // interpreter fallback for this instruction
		return
	}

	if len(e.deferred) >= MaxDeferredBranches {
		// Super-block's deferred-branch budget is exhausted: compile
		// this one eagerly instead of chaining further, ending the
		// super-block at this instruction's delay slot.
		e.emitEagerConditionalBranch(d, pc, target, cc)
		return
	}

	e.flushOperands(int(d.RS), int(d.RT))
	e.loadGPR(regScratch1, int(d.RS))
	e.loadGPR(regScratch2, int(d.RT))
	e.buf.ALURegReg(host.OpCmp, regScratch1, regScratch2)

	label := e.newColdLabel()
	e.buf.Jcc(cc, label)

	e.deferred = append(e.deferred, deferredBranch{
		label:    label,
		target:   target,
		vregs:    e.vregs.snapshot(),
		cyclesAt: e.cyclesSoFar,
	})
}

// emitEagerConditionalBranch compiles both arms of a conditional branch
// immediately rather than deferring the taken arm to the block tail,
// used once the super-block's deferred-branch budget is spent. cc is
// the condition already resolved by the caller via conditionFor.
func (e *Emitter) emitEagerConditionalBranch(d mips.Decoded, pc uint32, target uint32, cc host.Condition) {
	e.flushOperands(int(d.RS), int(d.RT))
	e.loadGPR(regScratch1, int(d.RS))
	e.loadGPR(regScratch2, int(d.RT))
	e.buf.ALURegReg(host.OpCmp, regScratch1, regScratch2)

	taken := e.newColdLabel()
	e.buf.Jcc(cc, taken)
	e.emitUnconditionalJump(pc+8, pc)

	e.buf.Label(taken)
	e.emitUnconditionalJump(target, pc)
}

func branchTarget(d mips.Decoded, pc uint32) uint32 {
	return pc + 4 + uint32(d.ImmSigned)*4
}

func conditionFor(d mips.Decoded) (host.Condition, bool) {
	switch d.Opcode {
	case mips.OpBEQ:
		return host.CondEqual, true
	case mips.OpBNE:
		return host.CondNotEqual, true
	case mips.OpBLEZ:
		return host.CondLessOrEqual, true
	case mips.OpBGTZ:
		return host.CondGreater, true
	}
	return 0, false
}

// flushDeferredBranches compiles every deferred conditional branch's
// taken epilogue as cold tail code, restoring each one's vreg snapshot
// and cumulative cycle count first so constant folding and the
// cycle-budget check both see the state as it stood at the branch point
// rather than wherever the fall-through path ended up — and restoring
// the block's true total afterwards, since Result.GuestCycles must
// reflect every instruction compiled, not just the last deferred arm's
// count at its branch point.
func (e *Emitter) flushDeferredBranches() {
	total := e.cyclesSoFar
	for _, db := range e.deferred {
		savedVregs := *e.vregs
		*e.vregs = db.vregs
		e.cyclesSoFar = db.cyclesAt

		e.buf.Label(db.label)
		e.emitUnconditionalJump(db.target, 0)

		*e.vregs = savedVregs
	}
	e.cyclesSoFar = total
	e.deferred = nil
}

// emitTrapCall compiles SYSCALL/BREAK: both always trap, so the epilogue
// is a call straight into the interpreter's exception entry rather than
// a cache dispatch. The faulting PC is a compile-time constant (this
// instruction's own address), so the driver's trampoline reads it from
// the call site rather than needing it passed in a register.
func (e *Emitter) emitTrapCall(pc uint32) {
	e.buf.CallExternal()
}

// emitCoprocessor compiles COP0/COP2/LWC2/SWC2: all delegate entirely
// to a call-out, since their side effects (exception entry, GTE
// interlock accounting already charged in tickGTE, cache-isolation
// checks) are cheap enough in absolute terms that inlining them would
// only complicate this baseline generator for no measurable benefit.
func (e *Emitter) emitCoprocessor(d mips.Decoded, pc uint32) {
	e.buf.CallExternal()
}
