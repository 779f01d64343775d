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
	"github.com/gopsx/gopsx/hardware/gte"
)

// emitCycleEpilogue subtracts the block's accumulated guest-cycle cost
// from the pinned cycles-left counter and checks the budget, jumping to
// the abort trampoline if it has been exhausted. Direct-link and
// dispatch-trampoline exits go through this first; a SYSCALL/BREAK trap
// call (emitTrapCall) does not.
func (e *Emitter) emitCycleEpilogue() {
	e.buf.ALURegImm32(host.OpSub, regCycles, int32(e.cyclesSoFar))
	pastAbort := e.newColdLabel()
	e.buf.Jcc(host.CondGreaterOrEqual, pastAbort)
	e.buf.CallExternal() // the abort trampoline: returns control to the host run loop
	e.buf.Label(pastAbort)
}

// emitCycleAndPCEpilogue is emitCycleEpilogue plus storing the outgoing
// guest PC to the state record, the shape every control-flow exit
// (taken branch, jump, fall-through past the block's natural end)
// shares before it decides how to leave compiled code.
func (e *Emitter) emitCycleAndPCEpilogue(outgoingPC uint32) {
	e.buf.MovRegImm64(regScratch1, uint64(outgoingPC))
	e.buf.MovMemReg(regState, offPC, regScratch1, 4)
	e.emitCycleEpilogue()
}

// epilogue compiles blk's block-termination exit: a syscall/break block
// already emitted its trap call as its last instruction and needs
// nothing further; an unconditional jump likewise already emitted its
// own terminal transfer in branch.go. Anything else — the
// instruction-cap case, or a conditional branch whose not-taken arm
// simply falls through — exits to whatever guest PC follows the
// block's last instruction, with any deferred "taken" arms flushed as
// cold tail code afterwards.
func (e *Emitter) epilogue(blk scan.Block) {
	switch {
	case blk.EndsInSyscall, blk.EndsInBranch && terminatesUnconditionally(blk):
		// SYSCALL/BREAK already emitted its own trap call, and J/JAL/JR/
		// JALR already emitted their own terminal transfer — neither
		// needs a fall-through exit. Any conditional branch deferred by
		// an *earlier* sub-block in this chain still needs its taken
		// arm compiled, regardless of how the chain's last sub-block
		// itself ended.
	default:
		fallthroughPC := blk.DelaySlotPC + 4
		if !blk.EndsInBranch {
			last := blk.Instructions[len(blk.Instructions)-1]
			fallthroughPC = last.PC + 4
		}
		e.emitUnconditionalJump(fallthroughPC, 0)
	}

	e.flushDeferredBranches()
}

// terminatesUnconditionally reports whether blk's terminating
// instruction (the one before its delay slot) is J/JAL/JR/JALR, which
// already emitted its own control transfer and needs no fall-through
// epilogue.
func terminatesUnconditionally(blk scan.Block) bool {
	if len(blk.Instructions) < 2 {
		return false
	}
	branch := blk.Instructions[len(blk.Instructions)-2]
	return mips.IsUnconditional(branch.Decoded)
}

// CompileSuperBlock assembles a chain of scan.Blocks glued at
// fall-through conditional branches into one super-block, up to
// spec.md's 200-instruction cap and three-deferred-branch limit,
// stopping early at any unconditional jump, register jump or
// syscall/break boundary (none of those have a fall-through successor
// to chain). fetch is reused for every sub-block's scan.
func CompileSuperBlock(buf *host.Buffer, pipeline *gte.Pipeline, fetch scan.Fetcher, startPC uint32) Result {
	e := New(buf, pipeline)

	pc := startPC
	total := 0
	var lastBlock scan.Block

	for total < MaxSuperBlockInstructions {
		remaining := MaxSuperBlockInstructions - total
		subCap := remaining
		if subCap > scan.MaxBlockInstructions {
			subCap = scan.MaxBlockInstructions
		}
		blk, err := scan.Scan(fetch, pc, subCap)
		if err != nil {
			break
		}
		e.compileInstructions(blk)
		lastBlock = blk
		total += len(blk.Instructions)

		if blk.EndsInSyscall || (blk.EndsInBranch && terminatesUnconditionally(blk)) {
			break
		}
		if blk.EndsInBranch && len(e.deferred) < MaxDeferredBranches {
			pc = blk.DelaySlotPC + 4
			continue
		}
		break
	}

	e.epilogue(lastBlock)
	return Result{
		Code:          e.buf.Bytes(),
		ExternalJumps: e.externals,
		GuestCycles:   e.cyclesSoFar,
	}
}
