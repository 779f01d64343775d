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

package psxexe_test

import (
	"encoding/binary"
	"testing"

	"github.com/gopsx/gopsx/psxexe"
	"github.com/gopsx/gopsx/test"
)

func header(pc0, gp0, textAddr, textSize, spAddr, spSize uint32, body []byte) []byte {
	h := make([]byte, 2048+len(body))
	copy(h, "PS-X EXE")
	binary.LittleEndian.PutUint32(h[0x10:], pc0)
	binary.LittleEndian.PutUint32(h[0x14:], gp0)
	binary.LittleEndian.PutUint32(h[0x18:], textAddr)
	binary.LittleEndian.PutUint32(h[0x1c:], textSize)
	binary.LittleEndian.PutUint32(h[0x30:], spAddr)
	binary.LittleEndian.PutUint32(h[0x34:], spSize)
	copy(h[2048:], body)
	return h
}

func TestParseRejectsBadMagic(t *testing.T) {
	data := make([]byte, 2048)
	_, err := psxexe.Parse(data)
	test.ExpectFailure(t, err)
}

func TestParseRejectsTooShort(t *testing.T) {
	_, err := psxexe.Parse(make([]byte, 10))
	test.ExpectFailure(t, err)
}

func TestParseDecodesHeaderFields(t *testing.T) {
	data := header(0x8001_0000, 0x0, 0x8001_0000, 4, 0, 0, []byte{1, 2, 3, 4})
	e, err := psxexe.Parse(data)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, e.PC0, uint32(0x8001_0000))
	test.ExpectEquality(t, e.TextAddr, uint32(0x8001_0000))
	test.ExpectEquality(t, e.TextSize, uint32(4))
	test.ExpectEquality(t, e.Text, []byte{1, 2, 3, 4})
}

type fakeLoader struct {
	ram  []byte
	gpr  [32]uint32
	pc   uint32
}

func (f *fakeLoader) RAM() []byte          { return f.ram }
func (f *fakeLoader) SetGPR(i int, v uint32) { f.gpr[i] = v }
func (f *fakeLoader) SetPC(pc uint32)        { f.pc = pc }

func TestLoadCopiesTextAndPrimesRegisters(t *testing.T) {
	data := header(0x8001_0000, 0x1234, 0x8001_0000, 4, 0x8010_0000, 0x1000, []byte{0xde, 0xad, 0xbe, 0xef})
	e, err := psxexe.Parse(data)
	test.ExpectSuccess(t, err)

	l := &fakeLoader{ram: make([]byte, 2*1024*1024)}
	err = psxexe.Load(e, l)
	test.ExpectSuccess(t, err)

	test.ExpectEquality(t, l.ram[0x10000], byte(0xde))
	test.ExpectEquality(t, l.pc, uint32(0x8001_0000))
	test.ExpectEquality(t, l.gpr[28], uint32(0x1234))
	test.ExpectEquality(t, l.gpr[29], uint32(0x8010_0000+0x1000))
	test.ExpectEquality(t, l.gpr[4], uint32(0))
}

func TestLoadRejectsTextLargerThanRAM(t *testing.T) {
	data := header(0, 0, 0x8000_0000, 8, 0, 0, make([]byte, 8))
	e, err := psxexe.Parse(data)
	test.ExpectSuccess(t, err)

	l := &fakeLoader{ram: make([]byte, 4)}
	err = psxexe.Load(e, l)
	test.ExpectFailure(t, err)
}
