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

package mips_test

import (
	"testing"

	"github.com/gopsx/gopsx/hardware/cpu/mips"
	"github.com/gopsx/gopsx/test"
)

func TestDecodeLUI(t *testing.T) {
	// lui r1, 0x8001
	d := mips.Decode(0x3c01_8001)
	test.ExpectEquality(t, d.Opcode, uint32(mips.OpLUI))
	test.ExpectEquality(t, d.RT, uint32(1))
	test.ExpectEquality(t, d.Imm, uint16(0x8001))
}

func TestDecodeADDIU(t *testing.T) {
	// addiu r1, r1, 4
	d := mips.Decode(0x2421_0004)
	test.ExpectEquality(t, d.Opcode, uint32(mips.OpADDIU))
	test.ExpectEquality(t, d.RS, uint32(1))
	test.ExpectEquality(t, d.RT, uint32(1))
	test.ExpectEquality(t, d.ImmSigned, int32(4))
}

func TestDecodeJR(t *testing.T) {
	// jr r1
	d := mips.Decode(0x0020_0008)
	test.ExpectEquality(t, d.Opcode, uint32(mips.OpSpecial))
	test.ExpectEquality(t, d.Funct, uint32(mips.FnJR))
	test.ExpectEquality(t, d.RS, uint32(1))
	test.ExpectEquality(t, mips.IsUnconditional(d), true)
	test.ExpectEquality(t, mips.IsRegisterJump(d), true)
}

func TestNegativeImmediateSignExtends(t *testing.T) {
	// addi r1, r0, -1
	d := mips.Decode(0x2001_ffff)
	test.ExpectEquality(t, d.ImmSigned, int32(-1))
}

func TestCosts(t *testing.T) {
	add := mips.Decode(0x0000_0020 | (1 << 11)) // add r1, r0, r0
	test.ExpectEquality(t, mips.Cost(add), mips.CostALU)

	mult := mips.Decode((1 << 21) | (2 << 16) | mips.FnMULT) // mult r1, r2
	test.ExpectEquality(t, mips.Cost(mult), mips.CostMult)

	div := mips.Decode((1 << 21) | (2 << 16) | mips.FnDIV)
	test.ExpectEquality(t, mips.Cost(div), mips.CostDiv)

	lw := mips.Decode(uint32(mips.OpLW) << 26)
	test.ExpectEquality(t, mips.Cost(lw), mips.CostLoad)
	test.ExpectEquality(t, mips.IsLoad(lw), true)

	sw := mips.Decode(uint32(mips.OpSW) << 26)
	test.ExpectEquality(t, mips.Cost(sw), mips.CostStore)

	beq := mips.Decode(uint32(mips.OpBEQ) << 26)
	test.ExpectEquality(t, mips.Cost(beq), mips.CostBranch)
	test.ExpectEquality(t, mips.IsBranchOrJump(beq), true)
}
