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

// vreg tracks what the emitter currently knows, at compile time, about
// one guest GPR's value within the block being compiled. When Const is
// true and Dirty is true, the guest record's copy of this register is
// stale: no code has been emitted to store Value into it yet, because
// nothing has needed to observe it from memory so far.
type vreg struct {
	Const bool
	Value uint32
	Dirty bool
}

// vregTable is the per-block constant-tracking state for all 32 GPRs.
// Register 0 is never stored: every method treats it as the constant
// zero, same as registers.State.SetGPR's convention.
type vregTable struct {
	regs [32]vreg
}

// newVregTable returns a table with every register unknown (not a
// compile-time constant) — the safe starting assumption at the top of
// any block, since the emitter doesn't track state across blocks.
func newVregTable() *vregTable {
	return &vregTable{}
}

// setConst records that register r now holds the compile-time-known
// value v, not yet flushed to the guest record.
func (t *vregTable) setConst(r int, v uint32) {
	if r == 0 {
		return
	}
	t.regs[r] = vreg{Const: true, Value: v, Dirty: true}
}

// setUnknown records that register r's value is no longer known at
// compile time (it was computed by emitted code that stores straight
// to the guest record, so there is nothing left to flush for it).
func (t *vregTable) setUnknown(r int) {
	if r == 0 {
		return
	}
	t.regs[r] = vreg{}
}

// lookup reports r's compile-time constant value, if any. Register 0 is
// always the constant zero.
func (t *vregTable) lookup(r int) (uint32, bool) {
	if r == 0 {
		return 0, true
	}
	v := t.regs[r]
	return v.Value, v.Const
}

// dirty reports whether r is a compile-time constant whose value has
// not yet been written back to the guest record.
func (t *vregTable) dirty(r int) bool {
	if r == 0 {
		return false
	}
	return t.regs[r].Const && t.regs[r].Dirty
}

// markFlushed clears r's dirty bit once the emitter has actually
// written its constant value to the guest record (the value is still
// known at compile time; only the "needs a store" flag changes).
func (t *vregTable) markFlushed(r int) {
	if r == 0 {
		return
	}
	t.regs[r].Dirty = false
}

// snapshot returns a copy of the table, used to restore compile-time
// constant knowledge at the start of a deferred "taken" branch's cold
// code, which is compiled after the fall-through path and so needs the
// table as it stood at the branch point, not as it ended up after the
// fall-through continued folding constants further.
func (t *vregTable) snapshot() vregTable {
	return *t
}
