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
	"fmt"

	"github.com/gopsx/gopsx/hardware/cpu/mips"
	"github.com/gopsx/gopsx/hardware/dynarec/host"
	"github.com/gopsx/gopsx/hardware/memory/memorymap"
)

// physAddrMask mirrors memorymap.Mask's bit pattern (kuseg/kseg0/kseg1
// collapse onto the same 29-bit physical range); the emitted fast path
// applies it as a single AND rather than calling memorymap.Mask, which
// only the cold helper (a real Go function call) can afford to do.
const physAddrMask = 0x1fff_ffff

func (e *Emitter) newColdLabel() string {
	e.coldLabelSeq++
	return fmt.Sprintf("cold%d", e.coldLabelSeq)
}

// emitLoad compiles a guest load through the inline fast path spec.md
// §4.5 describes: physical-address mask, a RAM range check (skip if
// the masked address is outside [0, RAMSize)), and, on a hit, an
// indexed load straight out of the pinned RAM base. A miss — or, for
// this baseline generator, anything the fast path doesn't special-case
// — falls to a call-out to the bus-dispatch helper the dynarec driver
// resolves, which performs the actual read (including raising the
// guest's address-error exception on misalignment) and returns its
// 32-bit result in regScratch2 by this emitter's calling convention.
func (e *Emitter) emitLoad(d mips.Decoded, pc uint32) {
	width := loadWidth(d)

	e.flushOperands(int(d.RS))
	e.loadGPR(regScratch1, int(d.RS))
	e.buf.ALURegImm32(host.OpAdd, regScratch1, int32(int16(d.Imm)))
	e.buf.AndRegImm32(regScratch1, physAddrMask)

	cold := e.newColdLabel()
	done := e.newColdLabel()

	e.buf.ALURegImm32(host.OpCmp, regScratch1, int32(memorymap.RAMSize))
	e.buf.Jcc(host.CondGreaterOrEqual, cold)
	e.buf.MovRegMemIndexed(regScratch2, regRAM, regScratch1, width)
	e.buf.Jmp(done)

	e.buf.Label(cold)
	e.buf.CallExternal() // resolved to the width/sign-aware bus load helper
	e.buf.Label(done)

	e.parkLoad(int(d.RT))
}

// emitStore is emitLoad's mirror for SB/SH/SW. The inline fast path
// writes straight into the pinned RAM region; the cold call-out (always
// emitted after, not only on a range miss) notifies the block cache of
// the store so a stale block on this page is invalidated lazily at its
// next lookup — see cache.Cache.NotifyStore and spec.md §4.6's "3
// instruction is-any-block-compiled-here check" (here simplified to an
// unconditional notify call; see DESIGN.md for the scope note).
func (e *Emitter) emitStore(d mips.Decoded, pc uint32) {
	width := storeWidth(d)

	e.flushOperands(int(d.RS), int(d.RT))
	e.loadGPR(regScratch1, int(d.RS))
	e.buf.ALURegImm32(host.OpAdd, regScratch1, int32(int16(d.Imm)))
	e.buf.AndRegImm32(regScratch1, physAddrMask)

	cold := e.newColdLabel()
	done := e.newColdLabel()

	e.buf.ALURegImm32(host.OpCmp, regScratch1, int32(memorymap.RAMSize))
	e.buf.Jcc(host.CondGreaterOrEqual, cold)
	e.loadGPR(regScratch2, int(d.RT))
	e.buf.MovMemIndexedReg(regRAM, regScratch1, regScratch2, width)
	e.buf.Jmp(done)

	e.buf.Label(cold)
	e.buf.CallExternal() // resolved to the bus store helper for non-RAM regions
	e.buf.Label(done)

	e.buf.CallExternal() // cache.Cache.NotifyStore, so any compiled block on this page goes stale
}

func loadWidth(d mips.Decoded) int {
	switch d.Opcode {
	case mips.OpLB, mips.OpLBU:
		return 1
	case mips.OpLH, mips.OpLHU:
		return 2
	}
	return 4
}

func storeWidth(d mips.Decoded) int {
	switch d.Opcode {
	case mips.OpSB:
		return 1
	case mips.OpSH:
		return 2
	}
	return 4
}

// parkLoad applies the compile-time half of the load-delay bookkeeping
// (same-destination displaces the pending slot, per
// registers.State.ScheduleLoad) and emits the call that performs its
// runtime half: the loaded value, already sitting in regScratch2, is
// handed to the state's delay pipeline rather than stored to rt
// directly, so it only becomes observable after the commit-pending-load
// call at the top of the instruction two positions later.
func (e *Emitter) parkLoad(r int) {
	if r == 0 {
		return
	}
	if e.pendingLoad.active && e.pendingLoad.register == r {
		// In-place replacement: hardware drops the first load's latch
		// when a second one targets the same register back-to-back.
		// The runtime call below still schedules against r; the Go-side
		// ScheduleLoad implements the actual drop-and-replace rule, so
		// no different code needs to be emitted here.
	} else {
		e.pendingNextLoad = compileLoad{active: true, register: r}
	}
	e.vregs.setUnknown(r)
	e.buf.CallExternal() // resolved to state.ScheduleLoad(r, regScratch2)
}
