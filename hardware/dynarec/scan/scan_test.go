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

package scan_test

import (
	"testing"

	"github.com/gopsx/gopsx/hardware/dynarec/scan"
	"github.com/gopsx/gopsx/test"
)

func fetcherOf(words map[uint32]uint32) scan.Fetcher {
	return func(addr uint32) (uint32, error) {
		return words[addr], nil
	}
}

func TestScanStopsAtBranchDelaySlot(t *testing.T) {
	words := map[uint32]uint32{
		0x1000: 0x2001_0001, // addi r1, r0, 1
		0x1004: 0x1020_0001, // beq r1, r0, +1
		0x1008: 0x0000_0000, // delay slot (nop)
		0x100c: 0x2002_0002, // addi r2, r0, 2 (must not be included)
	}
	b, err := scan.Scan(fetcherOf(words), 0x1000, scan.MaxBlockInstructions)
	test.ExpectSuccess(t, err == nil)
	test.ExpectEquality(t, len(b.Instructions), 3)
	test.ExpectEquality(t, b.EndsInBranch, true)
	test.ExpectEquality(t, b.DelaySlotPC, uint32(0x1008))
}

func TestScanStopsAtSyscall(t *testing.T) {
	words := map[uint32]uint32{
		0x2000: 0x2001_0005, // addi r1, r0, 5
		0x2004: 0x0000_000c, // syscall
		0x2008: 0x2002_0002, // addi r2, r0, 2 (must not be included)
	}
	b, err := scan.Scan(fetcherOf(words), 0x2000, scan.MaxBlockInstructions)
	test.ExpectSuccess(t, err == nil)
	test.ExpectEquality(t, len(b.Instructions), 2)
	test.ExpectEquality(t, b.EndsInSyscall, true)
}

func TestScanHonoursCap(t *testing.T) {
	words := map[uint32]uint32{}
	addr := uint32(0x3000)
	for i := 0; i < 10; i++ {
		words[addr] = 0x2001_0001 // addi r1, r0, 1 (never terminal)
		addr += 4
	}
	b, err := scan.Scan(fetcherOf(words), 0x3000, 5)
	test.ExpectSuccess(t, err == nil)
	test.ExpectEquality(t, len(b.Instructions), 5)
	test.ExpectEquality(t, b.EndsInBranch, false)
}

func TestDeadALUInstructionIsFlagged(t *testing.T) {
	words := map[uint32]uint32{
		// r2 is written twice; the first write is dead since nothing
		// reads r2 before the second write clobbers it.
		0x4000: 0x2002_0001, // addi r2, r0, 1  (dead: overwritten below)
		0x4004: 0x2002_0002, // addi r2, r0, 2  (live: used by beq below)
		0x4008: 0x1040_0001, // beq r2, r0, +1
		0x400c: 0x0000_0000, // delay slot
	}
	b, err := scan.Scan(fetcherOf(words), 0x4000, scan.MaxBlockInstructions)
	test.ExpectSuccess(t, err == nil)
	test.ExpectEquality(t, b.Instructions[0].Dead, true)
	test.ExpectEquality(t, b.Instructions[1].Dead, false)
}

func TestDeadLoadIsNeverFlagged(t *testing.T) {
	words := map[uint32]uint32{
		// r2 is loaded but never subsequently read anywhere in the
		// block; it must still not be flagged dead, since the load
		// commits through the delayed-load latch regardless.
		0x5000: 0x8c02_0000, // lw r2, 0(r0)
		0x5004: 0x2003_0007, // addi r3, r0, 7
	}
	b, err := scan.Scan(fetcherOf(words), 0x5000, scan.MaxBlockInstructions)
	test.ExpectSuccess(t, err == nil)
	test.ExpectEquality(t, b.Instructions[0].Dead, false)
}

func TestRegisterMasks(t *testing.T) {
	words := map[uint32]uint32{
		0x6000: 0x0043_1820, // add r3, r2, r3
	}
	b, err := scan.Scan(fetcherOf(words), 0x6000, scan.MaxBlockInstructions)
	test.ExpectSuccess(t, err == nil)
	test.ExpectEquality(t, b.ReadMask, uint32(1<<2|1<<3))
	test.ExpectEquality(t, b.WriteMask, uint32(1<<3))
}
