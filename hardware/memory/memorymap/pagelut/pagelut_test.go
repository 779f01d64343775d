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

package pagelut_test

import (
	"testing"

	"github.com/gopsx/gopsx/hardware/memory/memorymap/pagelut"
	"github.com/gopsx/gopsx/test"
)

func TestLookupMiss(t *testing.T) {
	l := pagelut.New()
	_, _, ok := l.Lookup(0x1f80_1070)
	test.ExpectFailure(t, ok)
}

func TestSetAndLookup(t *testing.T) {
	l := pagelut.New()
	base := make([]byte, pagelut.PageSize)
	base[4] = 0xaa

	l.Set(0x0000, base)

	page, offset, ok := l.Lookup(0x0000_0004)
	test.ExpectSuccess(t, ok)
	test.ExpectEquality(t, offset, uint32(4))
	test.ExpectEquality(t, page[offset], byte(0xaa))
}

func TestClear(t *testing.T) {
	l := pagelut.New()
	base := make([]byte, pagelut.PageSize)
	l.Set(0x0010, base)

	_, _, ok := l.Lookup(0x0010_0000)
	test.ExpectSuccess(t, ok)

	l.Clear(0x0010)

	_, _, ok = l.Lookup(0x0010_0000)
	test.ExpectFailure(t, ok)
}
