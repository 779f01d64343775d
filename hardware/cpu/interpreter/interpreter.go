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

// Package interpreter is the single-step reference implementation of
// every guest opcode: correct load-delay, branch-delay and coprocessor-0
// exception semantics, traded for speed. The dynarec delegates to it for
// any opcode it doesn't specialise and for any state its inline fast
// paths can't preserve; it is also the oracle the dynarec's per-opcode
// equivalence tests run against.
package interpreter

import (
	"github.com/gopsx/gopsx/curated"
	"github.com/gopsx/gopsx/hardware/cpu/mips"
	"github.com/gopsx/gopsx/hardware/cpu/registers"
	"github.com/gopsx/gopsx/hardware/gte"
	"github.com/gopsx/gopsx/hardware/memory"
	"github.com/gopsx/gopsx/hardware/memory/bus"
)

// Exception codes as they appear in COP0.Cause bits 6:2. Named after the
// architecture manual's own mnemonics so a reader can cross-reference.
const (
	ExcInterrupt    = 0x00
	ExcAddressLoad  = 0x04 // AdEL: address error, load or instruction fetch
	ExcAddressStore = 0x05 // AdES: address error, store
	ExcSyscall      = 0x08
	ExcBreak        = 0x09
	ExcReserved     = 0x0a // RI: reserved (unrecognised) instruction
	ExcCopUnusable  = 0x0b
	ExcOverflow     = 0x0c
)

// Exception-vector physical addresses, selected by COP0.SR's BEV bit.
const (
	vectorNormal = 0x8000_0080
	vectorBoot   = 0xbfc0_0180
)

// causeExcCodeShift is where Cause's 5-bit ExcCode field begins.
const causeExcCodeShift = 2
const causeExcCodeMask = 0x1f << causeExcCodeShift
const causeBD = 1 << 31 // set when EPC points at a branch, not its delay slot

// guestException is a recovered panic value: the clean way to unwind an
// in-progress instruction's partial effects back to Step, which is the
// only place that knows whether the faulting instruction was itself a
// branch-delay slot.
type guestException struct {
	code uint32
	addr uint32 // faulting address, for BadVAddr; 0 if not address-related
}

// Interpreter runs one guest instruction at a time against a shared
// register file, bus and GTE pipeline. It owns no state the dynarec
// doesn't also see through registers.State, so control can bounce
// between the two without any handoff beyond the shared pointers.
type Interpreter struct {
	state *registers.State
	bus   bus.Bus
	gte   *gte.Pipeline

	pc uint32

	// pendingBranch holds a taken branch/jump's target until its delay
	// slot has executed, per the guest's branch-delay semantics: the
	// instruction right after a branch always runs with the pre-branch
	// architectural state, and only afterwards does control transfer.
	pendingBranch struct {
		active bool
		target uint32
	}
}

// New returns an interpreter positioned to fetch its first instruction
// from state.PC.
func New(state *registers.State, b bus.Bus, g *gte.Pipeline) *Interpreter {
	return &Interpreter{state: state, bus: b, gte: g, pc: state.PC}
}

// PC reports the address of the instruction the next Step call will
// execute.
func (in *Interpreter) PC() uint32 {
	return in.pc
}

// SetPC redirects execution, clearing any in-flight branch delay. Used
// when a caller installs a new entry point (reset, exception return).
func (in *Interpreter) SetPC(pc uint32) {
	in.pc = pc
	in.pendingBranch.active = false
}

// Step executes exactly one guest instruction, including committing
// whatever load-delay slot is due this step. It returns the number of
// guest cycles the instruction (plus any GTE interlock stall) consumed.
func (in *Interpreter) Step() int {
	currentPC := in.pc
	in.state.CurrentPC = currentPC
	in.state.CommitPendingLoad()

	consumingBranch := in.pendingBranch.active
	var fallthroughPC uint32
	if consumingBranch {
		fallthroughPC = in.pendingBranch.target
		in.pendingBranch.active = false
	} else {
		fallthroughPC = currentPC + 4
	}

	var cycles int
	defer func() {
		if r := recover(); r != nil {
			exc, ok := r.(guestException)
			if !ok {
				panic(r)
			}
			in.enterException(exc, currentPC, consumingBranch)
			in.pc = in.entryPC()
			return
		}
		in.pc = fallthroughPC
	}()

	word, err := in.bus.ReadWord(currentPC)
	if err != nil {
		in.raiseMemoryFault(err, currentPC, false)
	}

	d := mips.Decode(word)
	cycles = mips.Cost(d)
	cycles += in.execute(d, currentPC)

	return cycles
}

// entryPC computes the exception-vector target from the current BEV
// bit, called after an exception has already been latched into COP0.
func (in *Interpreter) entryPC() uint32 {
	if in.state.COP0.SR&registers.SRBootExceptionVectors != 0 {
		return vectorBoot
	}
	return vectorNormal
}

// enterException performs the coprocessor-0 exception-entry sequence:
// EPC, Cause and the interrupt-enable stack are all updated per spec,
// with EPC backed up one instruction and Cause's BD bit set if the
// faulting instruction was itself a branch-delay slot.
func (in *Interpreter) enterException(exc guestException, pc uint32, inDelaySlot bool) {
	epc := pc
	cause := (exc.code << causeExcCodeShift) & causeExcCodeMask
	if inDelaySlot {
		epc = pc - 4
		cause |= causeBD
	}
	in.state.COP0.EPC = epc
	in.state.COP0.Cause = (in.state.COP0.Cause &^ (causeExcCodeMask | causeBD)) | cause
	in.state.COP0.BadVAddr = exc.addr

	old := in.state.COP0.SR & 0x3f
	in.state.COP0.SR = (in.state.COP0.SR &^ 0x3f) | ((old << 2) & 0x3f)
}

// raiseMemoryFault classifies a bus error and unwinds to Step via
// panic/recover: a curated.UnalignedAccess becomes a guest-recoverable
// address-error exception, anything else (a missing register handler)
// is a host-side bug and is allowed to propagate as a real Go panic.
func (in *Interpreter) raiseMemoryFault(err error, addr uint32, store bool) {
	if curated.Has(err, memory.UnalignedAccess) {
		code := uint32(ExcAddressLoad)
		if store {
			code = ExcAddressStore
		}
		panic(guestException{code: code, addr: addr})
	}
	panic(err)
}

func (in *Interpreter) takeBranch(target uint32) {
	in.pendingBranch.active = true
	in.pendingBranch.target = target
}

func signExtend16(v uint16) uint32 {
	return uint32(int32(int16(v)))
}
