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

// Package registers holds the guest CPU's packed architectural state:
// the 32 general-purpose registers, HI/LO, the coprocessor-0 control
// bank, and the bookkeeping the interpreter and dynarec both need to
// get load-delay and exceptions right. One instance lives for the
// process; translated code addresses it through a base pointer pinned
// in a host register (see the emit package), so its field layout is
// deliberately flat and stable.
package registers

// COP0 is the subset of the coprocessor-0 control registers this
// emulator models. Real hardware has more; these are the ones consulted
// by the exception path and by BIOS/kernel code probing the CPU.
type COP0 struct {
	// BadVAddr (register 8) holds the faulting address after an
	// address-error exception.
	BadVAddr uint32

	// SR (register 12, "status") holds the interrupt-enable stack and
	// the cache-isolation bit the memory package watches.
	SR uint32

	// Cause (register 13) records the exception code and pending
	// interrupt bits.
	Cause uint32

	// EPC (register 14) holds the guest PC to resume at after an
	// exception handler returns via RFE.
	EPC uint32
}

// COP0 status register bits this emulator inspects directly.
const (
	SRIsolateCache           = 1 << 16
	SRBootExceptionVectors   = 1 << 22 // BEV: selects the exception vector base
	SRInterruptEnableCurrent = 1 << 0
)

// PendingLoad models one stage of the guest's load-delay pipeline: a
// load result that has been computed but is not yet visible to its
// destination register.
type PendingLoad struct {
	Active   bool
	Register int
	Value    uint32
}

// State is the guest CPU's complete architectural state.
type State struct {
	// GPR holds the 32 general-purpose registers. GPR[0] is kept
	// hard-wired to zero by SetGPR; direct field access must not bypass
	// it, which is why every caller outside this package goes through
	// the accessor methods.
	GPR [32]uint32

	PC uint32
	HI uint32
	LO uint32

	COP0 COP0

	// CurrentPC latches the PC of the instruction currently executing,
	// so an exception raised mid-instruction can report the right EPC
	// even once PC itself has been advanced speculatively.
	CurrentPC uint32

	// IStat and IMask mirror the interrupt controller's status/mask
	// register pair; kept alongside CPU state because every exception
	// check reads both together with COP0.SR.
	IStat uint16
	IMask uint16

	// Load is the pending load due to commit at the top of the next
	// instruction step; NextLoad is the one due to commit the step after
	// that. Two stages are needed, not one: a load's result only becomes
	// visible to the instruction two positions after it (the immediately
	// following instruction still reads the stale value), per
	// CommitPendingLoad's ordering.
	Load     PendingLoad
	NextLoad PendingLoad

	// CyclesLeft is the guest-cycle budget remaining in the current
	// dispatch; the scheduler's next deadline minus cycles consumed so
	// far determines when the dynarec must return control to the host
	// loop.
	CyclesLeft int64
}

// NewState returns a zeroed State, as the guest CPU is left on reset
// before the BIOS or a loaded executable takes over.
func NewState() *State {
	return &State{}
}

// GetGPR returns register i's value. Register 0 always reads zero.
func (s *State) GetGPR(i int) uint32 {
	return s.GPR[i]
}

// SetGPR writes v directly to register i (the non-delayed path used by
// every instruction except a load), silently eliding writes to register
// 0 so the hard-zero invariant can never be violated. A direct write
// cancels any pending delayed load still aimed at i, so a load whose
// destination is overwritten by a later, unrelated instruction can't
// resurrect its stale value once its turn to commit comes around.
func (s *State) SetGPR(i int, v uint32) {
	if i == 0 {
		return
	}
	if s.Load.Active && s.Load.Register == i {
		s.Load.Active = false
	}
	if s.NextLoad.Active && s.NextLoad.Register == i {
		s.NextLoad.Active = false
	}
	s.GPR[i] = v
}

// CommitPendingLoad advances the load-delay pipeline by one instruction
// step. It must run once at the top of every instruction, before that
// instruction is decoded: it writes the value of whatever load is due
// this step into its destination register, then promotes the
// next-due load into its place. Calling it before decode (rather than
// after execute) is what gives a load's own value one full instruction
// of invisibility to the register it targets.
func (s *State) CommitPendingLoad() {
	if s.Load.Active && s.Load.Register != 0 {
		s.GPR[s.Load.Register] = s.Load.Value
	}
	s.Load = s.NextLoad
	s.NextLoad = PendingLoad{}
}

// ScheduleLoad installs the result of a load instruction into the
// delay pipeline. If a load already due next step targets the same
// register, its value is simply replaced in place rather than pushed
// back a stage: two consecutive loads to the same destination behave
// as if only the second had been issued, so the instruction right
// after them sees its value with no extra delay, matching hardware.
// Otherwise the new load takes the two-steps-away slot, same as any
// other load.
func (s *State) ScheduleLoad(register int, value uint32) {
	if s.Load.Active && s.Load.Register == register {
		s.Load.Value = value
		return
	}
	s.NextLoad = PendingLoad{Active: true, Register: register, Value: value}
}

// InterruptPending reports whether COP0.SR's current interrupt-enable
// bit is set and IStat&IMask is non-zero: the condition the dispatcher
// checks between blocks to decide whether to divert to the interrupt
// exception vector.
func (s *State) InterruptPending() bool {
	if s.COP0.SR&SRInterruptEnableCurrent == 0 {
		return false
	}
	return s.IStat&s.IMask != 0
}
