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

package interpreter

import (
	"github.com/gopsx/gopsx/hardware/cpu/mips"
	"github.com/gopsx/gopsx/hardware/gte"
)

// execute dispatches one decoded instruction and returns any extra
// cycles beyond its base opcode cost (presently just GTE interlock
// stalls; mips.Cost already covers everything else).
func (in *Interpreter) execute(d mips.Decoded, pc uint32) int {
	s := in.state

	switch d.Opcode {
	case mips.OpSpecial:
		return in.executeSpecial(d)
	case mips.OpRegimm:
		in.executeRegimm(d, pc)
		return 0
	case mips.OpJ:
		in.takeBranch((pc & 0xf000_0000) | (d.Target << 2))
		return 0
	case mips.OpJAL:
		s.SetGPR(31, pc+8)
		in.takeBranch((pc & 0xf000_0000) | (d.Target << 2))
		return 0
	case mips.OpBEQ:
		if s.GetGPR(int(d.RS)) == s.GetGPR(int(d.RT)) {
			in.takeBranch(branchTarget(pc, d))
		}
		return 0
	case mips.OpBNE:
		if s.GetGPR(int(d.RS)) != s.GetGPR(int(d.RT)) {
			in.takeBranch(branchTarget(pc, d))
		}
		return 0
	case mips.OpBLEZ:
		if int32(s.GetGPR(int(d.RS))) <= 0 {
			in.takeBranch(branchTarget(pc, d))
		}
		return 0
	case mips.OpBGTZ:
		if int32(s.GetGPR(int(d.RS))) > 0 {
			in.takeBranch(branchTarget(pc, d))
		}
		return 0
	case mips.OpADDI:
		r, v := int32(s.GetGPR(int(d.RS))), d.ImmSigned
		result := r + v
		if overflowsAdd(r, v, result) {
			panic(guestException{code: ExcOverflow})
		}
		s.SetGPR(int(d.RT), uint32(result))
		return 0
	case mips.OpADDIU:
		s.SetGPR(int(d.RT), s.GetGPR(int(d.RS))+uint32(d.ImmSigned))
		return 0
	case mips.OpSLTI:
		s.SetGPR(int(d.RT), boolToWord(int32(s.GetGPR(int(d.RS))) < d.ImmSigned))
		return 0
	case mips.OpSLTIU:
		s.SetGPR(int(d.RT), boolToWord(s.GetGPR(int(d.RS)) < uint32(d.ImmSigned)))
		return 0
	case mips.OpANDI:
		s.SetGPR(int(d.RT), s.GetGPR(int(d.RS))&uint32(d.Imm))
		return 0
	case mips.OpORI:
		s.SetGPR(int(d.RT), s.GetGPR(int(d.RS))|uint32(d.Imm))
		return 0
	case mips.OpXORI:
		s.SetGPR(int(d.RT), s.GetGPR(int(d.RS))^uint32(d.Imm))
		return 0
	case mips.OpLUI:
		s.SetGPR(int(d.RT), uint32(d.Imm)<<16)
		return 0
	case mips.OpCOP0:
		in.executeCOP0(d)
		return 0
	case mips.OpCOP2:
		return in.executeCOP2(d)
	case mips.OpLB:
		in.load(d, 1, true)
		return 0
	case mips.OpLH:
		in.load(d, 2, true)
		return 0
	case mips.OpLW:
		in.load(d, 4, true)
		return 0
	case mips.OpLBU:
		in.load(d, 1, false)
		return 0
	case mips.OpLHU:
		in.load(d, 2, false)
		return 0
	case mips.OpLWL:
		in.loadUnaligned(d, true)
		return 0
	case mips.OpLWR:
		in.loadUnaligned(d, false)
		return 0
	case mips.OpSB:
		in.store(d, 1)
		return 0
	case mips.OpSH:
		in.store(d, 2)
		return 0
	case mips.OpSW:
		in.store(d, 4)
		return 0
	case mips.OpSWL:
		in.storeUnaligned(d, true)
		return 0
	case mips.OpSWR:
		in.storeUnaligned(d, false)
		return 0
	case mips.OpLWC2:
		// GTE data-register load: fetched into the GTE's register file,
		// which this repository doesn't model (see package doc); the
		// memory side effect (and its fault behaviour) still happens.
		addr := s.GetGPR(int(d.RS)) + uint32(d.ImmSigned)
		if _, err := in.bus.ReadWord(addr); err != nil {
			in.raiseMemoryFault(err, addr, false)
		}
		return 0
	case mips.OpSWC2:
		addr := s.GetGPR(int(d.RS)) + uint32(d.ImmSigned)
		if err := in.bus.WriteWord(addr, 0); err != nil {
			in.raiseMemoryFault(err, addr, true)
		}
		return 0
	}

	panic(guestException{code: ExcReserved})
}

func branchTarget(pc uint32, d mips.Decoded) uint32 {
	return pc + 4 + (uint32(d.ImmSigned) << 2)
}

func boolToWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func overflowsAdd(a, b, result int32) bool {
	return (a > 0 && b > 0 && result < 0) || (a < 0 && b < 0 && result >= 0)
}

func overflowsSub(a, b, result int32) bool {
	return (a >= 0 && b < 0 && result < 0) || (a < 0 && b >= 0 && result >= 0)
}

func (in *Interpreter) executeSpecial(d mips.Decoded) int {
	s := in.state

	switch d.Funct {
	case mips.FnSLL:
		s.SetGPR(int(d.RD), s.GetGPR(int(d.RT))<<d.Shamt)
	case mips.FnSRL:
		s.SetGPR(int(d.RD), s.GetGPR(int(d.RT))>>d.Shamt)
	case mips.FnSRA:
		s.SetGPR(int(d.RD), uint32(int32(s.GetGPR(int(d.RT)))>>d.Shamt))
	case mips.FnSLLV:
		s.SetGPR(int(d.RD), s.GetGPR(int(d.RT))<<(s.GetGPR(int(d.RS))&0x1f))
	case mips.FnSRLV:
		s.SetGPR(int(d.RD), s.GetGPR(int(d.RT))>>(s.GetGPR(int(d.RS))&0x1f))
	case mips.FnSRAV:
		s.SetGPR(int(d.RD), uint32(int32(s.GetGPR(int(d.RT)))>>(s.GetGPR(int(d.RS))&0x1f)))
	case mips.FnJR:
		in.takeBranch(s.GetGPR(int(d.RS)))
	case mips.FnJALR:
		target := s.GetGPR(int(d.RS))
		linkReg := int(d.RD)
		if linkReg == 0 {
			linkReg = 31
		}
		s.SetGPR(linkReg, in.pc+8)
		in.takeBranch(target)
	case mips.FnSYSCALL:
		panic(guestException{code: ExcSyscall})
	case mips.FnBREAK:
		panic(guestException{code: ExcBreak})
	case mips.FnMFHI:
		s.SetGPR(int(d.RD), s.HI)
	case mips.FnMTHI:
		s.HI = s.GetGPR(int(d.RS))
	case mips.FnMFLO:
		s.SetGPR(int(d.RD), s.LO)
	case mips.FnMTLO:
		s.LO = s.GetGPR(int(d.RS))
	case mips.FnMULT:
		result := int64(int32(s.GetGPR(int(d.RS)))) * int64(int32(s.GetGPR(int(d.RT))))
		s.LO, s.HI = uint32(result), uint32(result>>32)
	case mips.FnMULTU:
		result := uint64(s.GetGPR(int(d.RS))) * uint64(s.GetGPR(int(d.RT)))
		s.LO, s.HI = uint32(result), uint32(result>>32)
	case mips.FnDIV:
		n, dd := int32(s.GetGPR(int(d.RS))), int32(s.GetGPR(int(d.RT)))
		if dd == 0 {
			// guest division by zero has defined, if unusual, quotient/
			// remainder values on real hardware; no exception is raised.
			s.HI = uint32(n)
			if n >= 0 {
				s.LO = 0xffff_ffff
			} else {
				s.LO = 1
			}
		} else {
			s.LO, s.HI = uint32(n/dd), uint32(n%dd)
		}
	case mips.FnDIVU:
		n, dd := s.GetGPR(int(d.RS)), s.GetGPR(int(d.RT))
		if dd == 0 {
			s.LO, s.HI = 0xffff_ffff, n
		} else {
			s.LO, s.HI = n/dd, n%dd
		}
	case mips.FnADD:
		a, b := int32(s.GetGPR(int(d.RS))), int32(s.GetGPR(int(d.RT)))
		result := a + b
		if overflowsAdd(a, b, result) {
			panic(guestException{code: ExcOverflow})
		}
		s.SetGPR(int(d.RD), uint32(result))
	case mips.FnADDU:
		s.SetGPR(int(d.RD), s.GetGPR(int(d.RS))+s.GetGPR(int(d.RT)))
	case mips.FnSUB:
		a, b := int32(s.GetGPR(int(d.RS))), int32(s.GetGPR(int(d.RT)))
		result := a - b
		if overflowsSub(a, b, result) {
			panic(guestException{code: ExcOverflow})
		}
		s.SetGPR(int(d.RD), uint32(result))
	case mips.FnSUBU:
		s.SetGPR(int(d.RD), s.GetGPR(int(d.RS))-s.GetGPR(int(d.RT)))
	case mips.FnAND:
		s.SetGPR(int(d.RD), s.GetGPR(int(d.RS))&s.GetGPR(int(d.RT)))
	case mips.FnOR:
		s.SetGPR(int(d.RD), s.GetGPR(int(d.RS))|s.GetGPR(int(d.RT)))
	case mips.FnXOR:
		s.SetGPR(int(d.RD), s.GetGPR(int(d.RS))^s.GetGPR(int(d.RT)))
	case mips.FnNOR:
		s.SetGPR(int(d.RD), ^(s.GetGPR(int(d.RS)) | s.GetGPR(int(d.RT))))
	case mips.FnSLT:
		s.SetGPR(int(d.RD), boolToWord(int32(s.GetGPR(int(d.RS))) < int32(s.GetGPR(int(d.RT)))))
	case mips.FnSLTU:
		s.SetGPR(int(d.RD), boolToWord(s.GetGPR(int(d.RS)) < s.GetGPR(int(d.RT))))
	default:
		panic(guestException{code: ExcReserved})
	}
	return 0
}

func (in *Interpreter) executeRegimm(d mips.Decoded, pc uint32) {
	s := in.state
	rs := int32(s.GetGPR(int(d.RS)))

	link := d.RT == mips.RtBLTZAL || d.RT == mips.RtBGEZAL
	if link {
		s.SetGPR(31, pc+8)
	}

	switch d.RT {
	case mips.RtBLTZ, mips.RtBLTZAL:
		if rs < 0 {
			in.takeBranch(branchTarget(pc, d))
		}
	case mips.RtBGEZ, mips.RtBGEZAL:
		if rs >= 0 {
			in.takeBranch(branchTarget(pc, d))
		}
	}
}

// executeCOP0 handles MFC0/MTC0/RFE. Only the control registers this
// repository models (registers.COP0) are addressable; any other
// register number is accepted as a silent no-op/zero-read, matching how
// little guest code actually probes coprocessor-0 outside the registers
// this emulator tracks.
func (in *Interpreter) executeCOP0(d mips.Decoded) {
	s := in.state

	if d.RS == mips.Cop0RFE {
		old := s.COP0.SR & 0x3f
		s.COP0.SR = (s.COP0.SR &^ 0x3f) | (old >> 2)
		return
	}

	switch d.RS {
	case mips.Cop0MF:
		s.SetGPR(int(d.RT), in.readCOP0(int(d.RD)))
	case mips.Cop0MT:
		in.writeCOP0(int(d.RD), s.GetGPR(int(d.RT)))
	}
}

func (in *Interpreter) readCOP0(reg int) uint32 {
	switch reg {
	case 8:
		return in.state.COP0.BadVAddr
	case 12:
		return in.state.COP0.SR
	case 13:
		return in.state.COP0.Cause
	case 14:
		return in.state.COP0.EPC
	}
	return 0
}

func (in *Interpreter) writeCOP0(reg int, v uint32) {
	switch reg {
	case 8:
		in.state.COP0.BadVAddr = v
	case 12:
		in.state.COP0.SR = v
	case 13:
		in.state.COP0.Cause = v
	case 14:
		in.state.COP0.EPC = v
	}
}

// executeCOP2 handles the GTE dispatch: a compute command (CO bit set)
// charges and begins the pipeline countdown; MFC2/CFC2 charge the
// interlock stall if the previous compute hasn't finished; MTC2/CTC2
// write through to nothing, since no GTE register file is modeled (see
// package doc). Returns the extra interlock cycles, if any.
func (in *Interpreter) executeCOP2(d mips.Decoded) int {
	const coBit = 1 << 25
	if d.Raw&coBit != 0 {
		return in.gte.BeginCompute(gte.Command(d.Raw & 0x3f))
	}

	const rsMFC2, rsCFC2, rsMTC2, rsCTC2 = 0x00, 0x02, 0x04, 0x06
	switch d.RS {
	case rsMFC2, rsCFC2: // move/control-move from: share the same interlock rule
		stall := in.gte.ReadResult()
		in.state.SetGPR(int(d.RT), 0)
		return stall
	case rsMTC2, rsCTC2: // move/control-move to
		return 0
	}
	return 0
}

func (in *Interpreter) load(d mips.Decoded, width int, signed bool) {
	addr := in.state.GetGPR(int(d.RS)) + uint32(d.ImmSigned)

	var value uint32
	var err error
	switch width {
	case 1:
		var b uint8
		b, err = in.bus.ReadByte(addr)
		if signed {
			value = uint32(int32(int8(b)))
		} else {
			value = uint32(b)
		}
	case 2:
		var h uint16
		h, err = in.bus.ReadHalf(addr)
		if signed {
			value = signExtend16(h)
		} else {
			value = uint32(h)
		}
	case 4:
		value, err = in.bus.ReadWord(addr)
	}
	if err != nil {
		in.raiseMemoryFault(err, addr, false)
	}
	in.state.ScheduleLoad(int(d.RT), value)
}

func (in *Interpreter) store(d mips.Decoded, width int) {
	addr := in.state.GetGPR(int(d.RS)) + uint32(d.ImmSigned)
	value := in.state.GetGPR(int(d.RT))

	var err error
	switch width {
	case 1:
		err = in.bus.WriteByte(addr, uint8(value))
	case 2:
		err = in.bus.WriteHalf(addr, uint16(value))
	case 4:
		err = in.bus.WriteWord(addr, value)
	}
	if err != nil {
		in.raiseMemoryFault(err, addr, true)
	}
}

// loadUnaligned implements LWL (left, most-significant bytes) and LWR
// (right, least-significant bytes): the pair lets guest code read a
// word that straddles an alignment boundary two halves at a time. Both
// read the aligned word containing addr and merge a subset of its
// bytes into rt, so unlike a plain load this never faults on
// misalignment.
func (in *Interpreter) loadUnaligned(d mips.Decoded, left bool) {
	addr := in.state.GetGPR(int(d.RS)) + uint32(d.ImmSigned)
	aligned := addr &^ 3
	word, err := in.bus.ReadWord(aligned)
	if err != nil {
		in.raiseMemoryFault(err, aligned, false)
	}

	shift := (addr & 3) * 8
	rt := in.state.GetGPR(int(d.RT))

	var merged uint32
	if left {
		merged = (rt & (0x00ff_ffff >> shift)) | (word << (24 - shift))
	} else {
		merged = (rt & (0xffff_ff00 << (24 - shift))) | (word >> shift)
	}
	in.state.ScheduleLoad(int(d.RT), merged)
}

func (in *Interpreter) storeUnaligned(d mips.Decoded, left bool) {
	addr := in.state.GetGPR(int(d.RS)) + uint32(d.ImmSigned)
	aligned := addr &^ 3
	word, err := in.bus.ReadWord(aligned)
	if err != nil {
		in.raiseMemoryFault(err, aligned, true)
	}

	shift := (addr & 3) * 8
	rt := in.state.GetGPR(int(d.RT))

	var merged uint32
	if left {
		merged = (word & (0xffff_ff00 << shift)) | (rt >> (24 - shift))
	} else {
		merged = (word & (0x00ff_ffff >> (24 - shift))) | (rt << shift)
	}
	if err := in.bus.WriteWord(aligned, merged); err != nil {
		in.raiseMemoryFault(err, aligned, true)
	}
}
