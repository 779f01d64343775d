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

// Package emit is the dynarec's code generator: given a scan.Block, it
// walks the decoded instructions once more and emits native amd64 code
// through host.Buffer, carrying the compile-time bookkeeping spec.md
// §4.5 calls for — a virtual-register table for constant folding, the
// load-delay parking slot, the GTE interlock countdown, and up to three
// deferred "taken" branch continuations per super-block.
package emit

import (
	"unsafe"

	"github.com/gopsx/gopsx/hardware/cpu/mips"
	"github.com/gopsx/gopsx/hardware/cpu/registers"
	"github.com/gopsx/gopsx/hardware/dynarec/host"
	"github.com/gopsx/gopsx/hardware/dynarec/host/amd64"
	"github.com/gopsx/gopsx/hardware/dynarec/scan"
	"github.com/gopsx/gopsx/hardware/gte"
)

// Pinned host registers, per spec.md §4.5's block prologue: the guest
// state base pointer, the RAM base (used by the memory fast path), and
// the cycles-left counter all live in callee-saved registers for the
// block's whole lifetime so the per-instruction templates never have to
// reload them.
const (
	regState  = amd64.RBX
	regRAM    = amd64.R12
	regCycles = amd64.R13
	regScratch1 = amd64.RAX
	regScratch2 = amd64.RCX
)

// Field offsets into registers.State, computed once so the emitted
// memory templates can address GPR/PC/HI/LO/CyclesLeft directly through
// the pinned state pointer. registers.State's doc comment promises a
// flat, stable layout for exactly this reason.
var (
	offGPR        = int32(unsafe.Offsetof(registers.State{}.GPR))
	offPC         = int32(unsafe.Offsetof(registers.State{}.PC))
	offHI         = int32(unsafe.Offsetof(registers.State{}.HI))
	offLO         = int32(unsafe.Offsetof(registers.State{}.LO))
	offCyclesLeft = int32(unsafe.Offsetof(registers.State{}.CyclesLeft))
)

func gprOffset(r int) int32 { return offGPR + int32(r)*4 }

// MaxSuperBlockInstructions and MaxDeferredBranches are the super-block
// limits spec.md §4.5 sets: up to 200 guest instructions chained by
// fall-through, and up to three deferred "taken" epilogues compiled as
// cold tail code.
const (
	MaxSuperBlockInstructions = 200
	MaxDeferredBranches       = 3
)

// deferredBranch records a conditional branch whose "taken" epilogue
// compilation was postponed until the super-block's cold tail, per
// spec's super-block scheme.
type deferredBranch struct {
	label    string // the forward-branch label patched once the cold epilogue is placed
	target   uint32 // guest PC the branch jumps to when taken
	vregs    vregTable
	cyclesAt int // cumulative guest cycles charged at the branch point
}

// Result is everything the cache package needs after a block compiles.
type Result struct {
	Code []byte

	// ExternalJumps are direct-link sites (buffer-local offsets of a
	// jump's displacement field) paired with the guest PC they target,
	// for cache.Cache.AddPatchSite once the code is installed in an
	// Arena and the sites' offsets become absolute.
	ExternalJumps []ExternalJump

	// GuestCycles is the fixed cycle cost of the (super-)block, charged
	// against the cycles-left counter at every exit.
	GuestCycles int
}

// ExternalJump is one direct-link jump whose target block may not be
// compiled yet.
type ExternalJump struct {
	BufferOffset int
	TargetPC     uint32
}

// Emitter compiles one super-block (a chain of scan.Blocks glued at
// fall-through conditional branches) into native code.
type Emitter struct {
	buf   *host.Buffer
	enc   *amd64.Encoder
	vregs *vregTable
	gtePipe *gte.Pipeline

	cyclesSoFar int
	deferred    []deferredBranch
	externals   []ExternalJump

	// pendingLoad mirrors registers.State's Load/NextLoad pair, but at
	// compile time: active is false when no load is parked.
	pendingLoad     compileLoad
	pendingNextLoad compileLoad

	coldLabelSeq int
}

type compileLoad struct {
	active   bool
	register int
}

// New returns an Emitter writing through buf, sharing gtePipe across
// however many blocks the caller compiles with it (the GTE countdown is
// architectural state, not per-block).
func New(buf *host.Buffer, gtePipe *gte.Pipeline) *Emitter {
	return &Emitter{
		buf:     buf,
		enc:     amd64.New(),
		vregs:   newVregTable(),
		gtePipe: gtePipe,
	}
}

// Compile emits the block prologue, every instruction in blk (applying
// dead-instruction elision from the scan pass), and the block's
// termination epilogue, returning the assembled Result. It does not by
// itself chain further fall-through sub-blocks into a super-block; see
// CompileSuperBlock for that.
func (e *Emitter) Compile(blk scan.Block) Result {
	e.prologue()
	e.compileInstructions(blk)
	e.epilogue(blk)
	return Result{
		Code:          e.buf.Bytes(),
		ExternalJumps: e.externals,
		GuestCycles:   e.cyclesSoFar,
	}
}

// prologue emits no code: the guest state pointer, RAM base and
// cycles-left counter are expected in their pinned host registers
// (regState, regRAM, regCycles) already when control enters the block.
func (e *Emitter) prologue() {
	// Loading regState and regRAM here from immediates would require
	// this Emitter to know the process's runtime addresses, which it
	// does not.
}

// compileInstructions walks blk's decoded instructions, applying the
// scan pass's dead-instruction bitmap, load-delay bookkeeping, GTE
// interlock charges and per-opcode cost accounting.
func (e *Emitter) compileInstructions(blk scan.Block) {
	for _, inst := range blk.Instructions {
		e.commitPendingLoad()
		e.tickGTE(inst.Decoded)
		e.cyclesSoFar += mips.Cost(inst.Decoded)

		if inst.Dead {
			e.vregs.setUnknown(int(destRegister(inst.Decoded)))
			continue
		}

		e.emitInstruction(inst)
	}
}

// commitPendingLoad advances the compile-time load-delay slot by one
// step, mirroring registers.State.CommitPendingLoad's timing exactly:
// called once per instruction, before that instruction is processed.
// The emitted code for the actual commit (the store of the parked
// value into the guest record) was appended when the load two
// instructions back was compiled; this method only advances the
// bookkeeping that decides whether the *next* load can drop straight
// into the about-to-be-vacated slot.
func (e *Emitter) commitPendingLoad() {
	e.pendingLoad = e.pendingNextLoad
	e.pendingNextLoad = compileLoad{}
}

// tickGTE applies the GTE pipeline's per-instruction countdown and any
// interlock stall a compute or register-read instruction incurs,
// exactly mirroring gte.Pipeline's contract (see that package).
func (e *Emitter) tickGTE(d mips.Decoded) {
	if d.Opcode != mips.OpCOP2 {
		e.gtePipe.Tick()
		return
	}
	if d.Raw&(1<<25) != 0 {
		// CO bit set: a GTE compute command.
		stall := e.gtePipe.BeginCompute(gte.Command(d.Funct))
		e.cyclesSoFar += stall
		return
	}
	// MFC2/CFC2: a register read.
	e.cyclesSoFar += e.gtePipe.ReadResult()
}

// destRegister reports the GPR d would have written, for clearing vreg
// tracking on a dead instruction (scan already proved this write is
// never observed, so all compileInstructions needs to do is stop
// treating the register as a known constant carried from before).
func destRegister(d mips.Decoded) uint32 {
	switch mips.Categorize(d) {
	case mips.CategoryALU:
		if d.Opcode == mips.OpSpecial {
			return d.RD
		}
		return d.RT
	case mips.CategoryMultDiv:
		return 0
	}
	return 0
}
