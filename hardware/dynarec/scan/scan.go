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

// Package scan performs the dynarec's first pass over a run of guest
// code: finding the block's natural boundary, decoding every instruction
// once so the emitter doesn't have to, and computing the register
// liveness the emitter needs to elide dead instructions safely.
package scan

import "github.com/gopsx/gopsx/hardware/cpu/mips"

// MaxBlockInstructions is the sub-block size cap applied when no natural
// boundary (branch, jump, syscall/break) is reached first.
const MaxBlockInstructions = 64

// Fetcher reads one guest instruction word at a physical address. The
// scan pass never writes, so it only needs this much of bus.Bus.
type Fetcher func(address uint32) (uint32, error)

// Instruction is one decoded, positioned instruction within a block.
type Instruction struct {
	PC      uint32
	Decoded mips.Decoded
	Dead    bool // flagged by the backward liveness pass
}

// Block is the scan pass's output: the instructions between PC and the
// block's natural boundary (inclusive of a branch's delay slot), plus
// the register masks the emitter's prologue/epilogue need.
type Block struct {
	PC           uint32
	Instructions []Instruction

	// ReadMask and WriteMask are the union, over every instruction in
	// the block, of registers read and registers written (bit i set
	// means register i). Register 0 is never set: it is hardwired and
	// never a real read or write.
	ReadMask  uint32
	WriteMask uint32

	// EndsInBranch is true when the block was truncated by a branch or
	// jump (as opposed to the instruction-count cap). DelaySlotPC is
	// the PC of that terminating instruction's delay slot, valid only
	// when EndsInBranch is true.
	EndsInBranch bool
	DelaySlotPC  uint32

	// EndsInSyscall is true when the block was truncated by a
	// syscall/break instruction (which always traps, so nothing past
	// it in program order can execute as part of this block).
	EndsInSyscall bool
}

// Scan decodes guest code starting at pc until a natural block boundary,
// a syscall/break, or cap instructions have been consumed — whichever
// comes first. cap should be MaxBlockInstructions for an ordinary block,
// or a larger figure when called as part of assembling a super-block of
// chained sub-blocks (see spec's 200-instruction super-block limit).
func Scan(fetch Fetcher, pc uint32, cap int) (Block, error) {
	b := Block{PC: pc}

	addr := pc
	for len(b.Instructions) < cap {
		word, err := fetch(addr)
		if err != nil {
			return Block{}, err
		}
		d := mips.Decode(word)
		inst := Instruction{PC: addr, Decoded: d}

		markMasks(&b, d)

		category := mips.Categorize(d)
		isTerminal := category == mips.CategoryBranch || category == mips.CategoryJump
		isTrap := category == mips.CategorySyscallBreak

		if isTerminal {
			b.Instructions = append(b.Instructions, inst)
			// the delay slot belongs to this block too
			delayPC := addr + 4
			delayWord, err := fetch(delayPC)
			if err != nil {
				return Block{}, err
			}
			delayDecoded := mips.Decode(delayWord)
			markMasks(&b, delayDecoded)
			b.Instructions = append(b.Instructions, Instruction{PC: delayPC, Decoded: delayDecoded})
			b.EndsInBranch = true
			b.DelaySlotPC = delayPC
			break
		}

		b.Instructions = append(b.Instructions, inst)

		if isTrap {
			b.EndsInSyscall = true
			break
		}

		addr += 4
	}

	markDeadInstructions(&b)
	return b, nil
}

// markMasks folds d's register reads and write into the block's running
// masks. Register 0 is excluded: GPR 0 is hardwired to zero and never a
// meaningful read or write target.
func markMasks(b *Block, d mips.Decoded) {
	reads, write := registerUses(d)
	for _, r := range reads {
		if r != 0 {
			b.ReadMask |= 1 << r
		}
	}
	if write != 0 {
		b.WriteMask |= 1 << write
	}
}

// registerUses reports which GPRs d reads and the single GPR it writes
// (0 meaning "writes nothing" — note this is ambiguous with "writes
// r0", which is intentional since writing r0 has no observable effect).
func registerUses(d mips.Decoded) (reads []uint32, write uint32) {
	switch mips.Categorize(d) {
	case mips.CategoryALU:
		if d.Opcode == mips.OpSpecial {
			if d.Funct == mips.FnSLL || d.Funct == mips.FnSRL || d.Funct == mips.FnSRA {
				return []uint32{d.RT}, d.RD
			}
			return []uint32{d.RS, d.RT}, d.RD
		}
		if d.Opcode == mips.OpLUI {
			return nil, d.RT
		}
		return []uint32{d.RS}, d.RT
	case mips.CategoryMultDiv:
		return []uint32{d.RS, d.RT}, 0
	case mips.CategoryLoad:
		return []uint32{d.RS}, d.RT
	case mips.CategoryStore:
		return []uint32{d.RS, d.RT}, 0
	case mips.CategoryBranch:
		if d.Opcode == mips.OpBEQ || d.Opcode == mips.OpBNE {
			return []uint32{d.RS, d.RT}, 0
		}
		if d.Opcode == mips.OpRegimm && (d.RT == mips.RtBLTZAL || d.RT == mips.RtBGEZAL) {
			return []uint32{d.RS}, 31
		}
		return []uint32{d.RS}, 0
	case mips.CategoryJump:
		if mips.IsRegisterJump(d) {
			if d.Funct == mips.FnJALR {
				return []uint32{d.RS}, d.RD
			}
			return []uint32{d.RS}, 0
		}
		if d.Opcode == mips.OpJAL {
			return nil, 31
		}
		return nil, 0
	case mips.CategoryCoprocessor:
		if d.Opcode == mips.OpCOP0 {
			switch d.RS {
			case mips.Cop0MF:
				return nil, d.RT
			case mips.Cop0MT:
				return []uint32{d.RT}, 0
			}
			return nil, 0
		}
		// COP2 (GTE): treated opaquely, neither reads nor writes a GPR.
		return nil, 0
	}
	return nil, 0
}

// sideEffectFree reports whether d, besides writing its destination
// register, has no other observable effect — i.e. it is safe to skip
// entirely when its result is dead. Loads are deliberately excluded even
// though a dead load's value is never read: the load still commits
// through the one-cycle delayed-load latch, and removing it would shift
// the timing of whatever *does* read that latch on a subsequent
// same-register load (see registers.State.ScheduleLoad).
func sideEffectFree(d mips.Decoded) bool {
	switch mips.Categorize(d) {
	case mips.CategoryALU:
		return true
	case mips.CategoryMultDiv:
		return d.Funct == mips.FnMFHI || d.Funct == mips.FnMFLO
	}
	return false
}

// markDeadInstructions runs a backward liveness scan over b, flagging
// every side-effect-free instruction whose destination is not read by
// anything downstream (including the implicit "live at exit" register
// set, which this pass conservatively takes to be every register, since
// the block's successor is not known at scan time).
func markDeadInstructions(b *Block) {
	var live uint32 = 0xffff_fffe // every GPR except r0 is live at exit

	for i := len(b.Instructions) - 1; i >= 0; i-- {
		inst := &b.Instructions[i]
		d := inst.Decoded
		reads, write := registerUses(d)

		destLive := write == 0 || live&(1<<write) != 0
		if !destLive && sideEffectFree(d) {
			inst.Dead = true
		} else if write != 0 {
			live &^= 1 << write
		}

		if !inst.Dead {
			for _, r := range reads {
				if r != 0 {
					live |= 1 << r
				}
			}
		}
	}
}
