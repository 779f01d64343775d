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

package texcache_test

import (
	"testing"

	"github.com/gopsx/gopsx/hardware/gpu/texcache"
	"github.com/gopsx/gopsx/test"
)

type fakeGens struct {
	global   uint32
	combined uint32
}

func (g *fakeGens) GlobalGeneration() uint32                      { return g.global }
func (g *fakeGens) CombinedGeneration(_ texcache.Key) uint32 { return g.combined }

func TestLookupMissesWhenEmpty(t *testing.T) {
	c := texcache.New()
	_, ok := c.Lookup(texcache.Key{TPage: 1}, &fakeGens{})
	test.ExpectEquality(t, ok, false)
}

func TestInsertThenLookupHits(t *testing.T) {
	c := texcache.New()
	gens := &fakeGens{global: 1, combined: 7}
	key := texcache.Key{Format: texcache.FormatIndexed8, TPage: 3, CLUT: 9}

	c.Insert(texcache.Entry{Key: key, CombinedGen: 7, TBP: 100}, gens.global)
	e, ok := c.Lookup(key, gens)
	test.ExpectSuccess(t, ok)
	test.ExpectEquality(t, e.TBP, uint32(100))

	hits, misses := c.Stats()
	test.ExpectEquality(t, hits, 1)
	test.ExpectEquality(t, misses, 0)
}

func TestWriteOverlappingCachedPageMisses(t *testing.T) {
	c := texcache.New()
	gens := &fakeGens{global: 1, combined: 7}
	key := texcache.Key{TPage: 3}
	c.Insert(texcache.Entry{Key: key, CombinedGen: 7}, gens.global)

	// a write bumps the overlapping block's generation and the global
	// counter; the MRU shortcut must not short-circuit past that.
	gens.global = 2
	gens.combined = 8
	_, ok := c.Lookup(key, gens)
	test.ExpectEquality(t, ok, false)

	_, misses := c.Stats()
	test.ExpectEquality(t, misses, 1)
}

func TestUnrelatedWriteLeavesMRUHitIntact(t *testing.T) {
	c := texcache.New()
	gens := &fakeGens{global: 1, combined: 7}
	key := texcache.Key{TPage: 3}
	c.Insert(texcache.Entry{Key: key, CombinedGen: 7}, gens.global)

	// global generation unchanged: MRU shortcut should still fire.
	_, ok := c.Lookup(key, gens)
	test.ExpectSuccess(t, ok)

	hits, _ := c.Stats()
	test.ExpectEquality(t, hits, 1)
}

func TestInsertEvictsLeastRecentlyUsedWhenFull(t *testing.T) {
	c := texcache.New()
	gens := &fakeGens{global: 1}

	for i := 0; i < 16; i++ {
		key := texcache.Key{TPage: uint16(i)}
		gens.combined = uint32(i)
		c.Insert(texcache.Entry{Key: key, CombinedGen: gens.combined, TBP: uint32(i)}, gens.global)
	}

	// touch slot for TPage=1 so it's no longer the oldest.
	gens.combined = 1
	_, ok := c.Lookup(texcache.Key{TPage: 1}, gens)
	test.ExpectSuccess(t, ok)

	// a 17th insert should evict TPage=0 (the true least-recently-used),
	// not TPage=1.
	gens.combined = 99
	c.Insert(texcache.Entry{Key: texcache.Key{TPage: 100}, CombinedGen: 99}, gens.global)

	gens.combined = 1
	_, stillThere := c.Lookup(texcache.Key{TPage: 1}, gens)
	test.ExpectSuccess(t, stillThere)
}

func TestWindowActiveReportsNonZero(t *testing.T) {
	test.ExpectEquality(t, texcache.Window{}.Active(), false)
	test.ExpectEquality(t, texcache.Window{MaskX: 1}.Active(), true)
}

func TestFormatIndexedClassifiesCorrectly(t *testing.T) {
	test.ExpectEquality(t, texcache.FormatIndexed4.Indexed(), true)
	test.ExpectEquality(t, texcache.FormatIndexed8.Indexed(), true)
	test.ExpectEquality(t, texcache.FormatDirect15.Indexed(), false)
}
