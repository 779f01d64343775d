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

package host_test

import (
	"testing"

	"github.com/gopsx/gopsx/hardware/dynarec/host"
	"github.com/gopsx/gopsx/hardware/dynarec/host/amd64"
	"github.com/gopsx/gopsx/test"
)

func TestJmpToAlreadyDefinedLabel(t *testing.T) {
	b := host.NewBuffer(amd64.New())
	b.Label("top")
	b.Nop()
	b.Nop()
	b.Jmp("top")

	code := b.Bytes()
	// Jmp to "top" (offset 0) from an instruction starting at offset 2:
	// rel = 0 - (2+1+4) = -7.
	dispStart := len(code) - 4
	got := int32(uint32(code[dispStart]) | uint32(code[dispStart+1])<<8 | uint32(code[dispStart+2])<<16 | uint32(code[dispStart+3])<<24)
	test.ExpectEquality(t, got, int32(-7))
}

func TestJccToForwardLabelResolvesOnDefine(t *testing.T) {
	b := host.NewBuffer(amd64.New())
	b.Jcc(host.CondEqual, "target")
	b.Nop()
	b.Nop()
	b.Label("target")

	code := b.Bytes()
	// Jcc instruction is 6 bytes starting at 0; disp field at offset 2.
	rel := int32(uint32(code[2]) | uint32(code[3])<<8 | uint32(code[4])<<16 | uint32(code[5])<<24)
	test.ExpectEquality(t, rel, int32(2)) // target at offset 8 minus instruction end at 6
}

func TestJmpExternalReturnsPatchableOffset(t *testing.T) {
	b := host.NewBuffer(amd64.New())
	b.Nop()
	off := b.JmpExternal()
	test.ExpectEquality(t, off, 2) // nop(1) + opcode byte(1) = disp starts at 2
}
