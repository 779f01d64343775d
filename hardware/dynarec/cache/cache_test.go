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

package cache_test

import (
	"testing"

	"github.com/gopsx/gopsx/hardware/dynarec/cache"
	"github.com/gopsx/gopsx/hardware/dynarec/host"
	"github.com/gopsx/gopsx/test"
)

func newTestArena(t *testing.T) *host.Arena {
	t.Helper()
	a, err := host.NewArena(64 * 1024)
	test.ExpectSuccess(t, err == nil)
	return a
}

func TestInsertAndLookup(t *testing.T) {
	a := newTestArena(t)
	defer a.Close()
	c := cache.New(a)

	e := c.Insert(0x1000, 0, 16)
	test.ExpectEquality(t, e.PC, uint32(0x1000))

	got, ok := c.Lookup(0x1000)
	test.ExpectSuccess(t, ok)
	test.ExpectEquality(t, got.Offset, 0)
}

func TestLookupMiss(t *testing.T) {
	a := newTestArena(t)
	defer a.Close()
	c := cache.New(a)

	_, ok := c.Lookup(0x2000)
	test.ExpectFailure(t, ok)
}

func TestStoreInvalidatesEntry(t *testing.T) {
	a := newTestArena(t)
	defer a.Close()
	c := cache.New(a)

	c.Insert(0x1000, 0, 16)
	c.NotifyStore(0x1000) // same page as 0x1000's block

	_, ok := c.Lookup(0x1000)
	test.ExpectFailure(t, ok)
}

func TestStoreOnDifferentPageDoesNotInvalidate(t *testing.T) {
	a := newTestArena(t)
	defer a.Close()
	c := cache.New(a)

	c.Insert(0x1000, 0, 16)
	c.NotifyStore(0x1000 + cache.PageSize) // different 4 KiB page

	_, ok := c.Lookup(0x1000)
	test.ExpectSuccess(t, ok)
}

func TestPageHasCode(t *testing.T) {
	a := newTestArena(t)
	defer a.Close()
	c := cache.New(a)

	test.ExpectFailure(t, c.PageHasCode(0x1000))
	c.Insert(0x1000, 0, 16)
	test.ExpectSuccess(t, c.PageHasCode(0x1000))
}

func TestPatchSiteResolvesOnLateInsert(t *testing.T) {
	a := newTestArena(t)
	defer a.Close()
	c := cache.New(a)

	// Install two tiny jump stubs in the arena so patching has real
	// bytes to overwrite.
	siteA, _ := a.Install([]byte{0xe9, 0, 0, 0, 0})
	a.Install([]byte{0xe9, 0, 0, 0, 0}) // target block's bytes, offset recorded by Insert below

	c.AddPatchSite(0x1000, siteA+1, 0x2000) // displacement field starts at +1

	targetOffset := 5 // second Install landed at offset 5
	c.Insert(0x2000, targetOffset, 5)

	// siteA+1's bytes should now encode rel = targetOffset - (siteA+1+4).
	want := int32(targetOffset - (siteA + 1 + 4))
	field := a.Peek(siteA+1, 4)
	got := int32(uint32(field[0]) | uint32(field[1])<<8 | uint32(field[2])<<16 | uint32(field[3])<<24)
	test.ExpectEquality(t, got, want)
}
