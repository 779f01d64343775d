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

package registers_test

import (
	"testing"

	"github.com/gopsx/gopsx/hardware/cpu/registers"
	"github.com/gopsx/gopsx/test"
)

func TestRegisterZeroIsHardWired(t *testing.T) {
	s := registers.NewState()
	s.SetGPR(0, 0xffff_ffff)
	test.ExpectEquality(t, s.GetGPR(0), uint32(0))
}

func TestSetGPR(t *testing.T) {
	s := registers.NewState()
	s.SetGPR(1, 0x1234)
	test.ExpectEquality(t, s.GetGPR(1), uint32(0x1234))
}

// TestLoadDelay models "lw rt, 0(rs); add rd, rt, rt": the instruction
// immediately following a load must still see the pre-load value, and
// only the instruction after that sees the loaded one.
func TestLoadDelay(t *testing.T) {
	s := registers.NewState()
	s.SetGPR(2, 0xaaaa)

	// instr1 (the load): top-of-step commit is a no-op, then it issues
	// the load.
	s.CommitPendingLoad()
	s.ScheduleLoad(2, 0xbbbb)

	// instr2 (immediately following the load): top-of-step commit only
	// promotes the load into the one-step-away slot, it does not write
	// the register yet, so the old value is still visible here.
	s.CommitPendingLoad()
	test.ExpectEquality(t, s.GetGPR(2), uint32(0xaaaa))

	// instr3: this step's commit finally writes the loaded value, before
	// instr3 itself is decoded.
	s.CommitPendingLoad()
	test.ExpectEquality(t, s.GetGPR(2), uint32(0xbbbb))
}

// TestBackToBackLoadsSkipExtraDelay models "lw rt, 0(rs); lw rt, 4(rs);
// add rd, rt, rt": the second load's value is visible to the
// instruction immediately following it, because it replaced the first
// load in the slot already due to commit next step rather than queuing
// behind it.
func TestBackToBackLoadsSkipExtraDelay(t *testing.T) {
	s := registers.NewState()

	s.CommitPendingLoad() // instr1 top
	s.ScheduleLoad(3, 0x1111)

	s.CommitPendingLoad() // instr2 top: promotes, doesn't commit yet
	s.ScheduleLoad(3, 0x2222)

	s.CommitPendingLoad() // instr3 top: commits 0x2222, not 0x1111
	test.ExpectEquality(t, s.GetGPR(3), uint32(0x2222))
}

// TestUnrelatedWriteCancelsPendingLoad checks that a direct write to a
// register with a load still in flight for it prevents the stale loaded
// value from resurrecting the register later.
func TestUnrelatedWriteCancelsPendingLoad(t *testing.T) {
	s := registers.NewState()

	s.CommitPendingLoad()
	s.ScheduleLoad(4, 0xdead)

	s.CommitPendingLoad() // promotes the load into the one-away slot
	s.SetGPR(4, 0x9999)   // unrelated instruction overwrites r4 directly

	s.CommitPendingLoad() // would have written 0xdead here; must not
	test.ExpectEquality(t, s.GetGPR(4), uint32(0x9999))
}

func TestInterruptPending(t *testing.T) {
	s := registers.NewState()
	test.ExpectEquality(t, s.InterruptPending(), false)

	s.COP0.SR = registers.SRInterruptEnableCurrent
	s.IMask = 0x01
	test.ExpectEquality(t, s.InterruptPending(), false)

	s.IStat = 0x01
	test.ExpectEquality(t, s.InterruptPending(), true)

	s.COP0.SR = 0
	test.ExpectEquality(t, s.InterruptPending(), false)
}
