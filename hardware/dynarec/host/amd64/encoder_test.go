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

package amd64_test

import (
	"testing"

	"github.com/gopsx/gopsx/hardware/dynarec/host"
	"github.com/gopsx/gopsx/hardware/dynarec/host/amd64"
	"github.com/gopsx/gopsx/test"
)

func TestMovRegImm64(t *testing.T) {
	e := amd64.New()
	code := e.MovRegImm64(amd64.RAX, 0x1122_3344_5566_7788)
	// REX.W (48) + B8 + imm64 little-endian.
	want := []byte{0x48, 0xb8, 0x88, 0x77, 0x66, 0x55, 0x44, 0x33, 0x22, 0x11}
	test.ExpectEquality(t, len(code), len(want))
	for i := range want {
		test.ExpectEquality(t, code[i], want[i])
	}
}

func TestMovRegImm64ExtendedRegisterSetsREXB(t *testing.T) {
	e := amd64.New()
	code := e.MovRegImm64(amd64.R9, 1)
	test.ExpectEquality(t, code[0], byte(0x49)) // REX.W | REX.B
	test.ExpectEquality(t, code[1], byte(0xb9)) // B8 + (R9 & 7)
}

func TestALURegRegAdd(t *testing.T) {
	e := amd64.New()
	code := e.ALURegReg(host.OpAdd, amd64.RAX, amd64.RCX)
	test.ExpectEquality(t, len(code), 3)
	test.ExpectEquality(t, code[1], byte(0x01)) // ADD /r opcode
}

func TestJmpPlaceholder(t *testing.T) {
	e := amd64.New()
	code, off := e.Jmp()
	test.ExpectEquality(t, code[0], byte(0xe9))
	test.ExpectEquality(t, off, 1)
	test.ExpectEquality(t, len(code), 5)
}

func TestRet(t *testing.T) {
	e := amd64.New()
	test.ExpectEquality(t, e.Ret()[0], byte(0xc3))
}
