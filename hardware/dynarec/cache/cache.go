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

// Package cache owns the dynarec's compiled-block index: the two-level
// page table that maps a guest physical PC to its native code, the
// small hash table that makes the common lookup path constant-time, the
// self-modifying-code detection that invalidates stale entries when the
// guest stores into their page, and direct-link patch bookkeeping for
// block-to-block jumps resolved after the fact. None of this package
// emits native code itself (see the emit package); it only indexes code
// that's already been installed in a host.Arena.
package cache

import "github.com/gopsx/gopsx/hardware/dynarec/host"

// PageShift and PageSize define the page-table's L1 granularity: 4 KiB,
// matching the guest's conventional RAM page size and the unit at which
// the SMC generation counter is tracked.
const (
	PageShift = 12
	PageSize  = 1 << PageShift
	wordsPerPage = PageSize / 4
)

// HashWays and HashSlots size the N-way hash table spec.md calls for
// ("2-way, >= 8K entries").
const (
	HashWays  = 2
	HashSlots = 8192
)

// Entry is one compiled block's index record.
type Entry struct {
	PC         uint32
	Offset     int // byte offset within the Arena
	Length     int
	Generation uint32 // page generation snapshotted at insert time
}

// page is one 4 KiB page's worth of block-table slots plus its own
// generation counter, which every store into the page bumps.
type page struct {
	slots      [wordsPerPage]*Entry
	generation uint32
}

// patchSite is an unresolved direct-link jump waiting on target to
// compile: siteOffset is the buffer-local offset within the block at
// fromPC that emitted the external jump, to be patched once target is
// installed.
type patchSite struct {
	fromPC     uint32
	siteOffset int
	target     uint32
}

type hashSlot struct {
	valid bool
	pc    uint32
	entry *Entry
}

// Cache is the dynarec's block index. The zero value is not usable;
// construct with New.
type Cache struct {
	arena *host.Arena

	pages map[uint32]*page // keyed by PC >> PageShift

	hash [HashSlots][HashWays]hashSlot

	patches map[uint32][]patchSite // keyed by the awaited target PC
}

// New creates an empty Cache backed by arena.
func New(arena *host.Arena) *Cache {
	return &Cache{
		arena:   arena,
		pages:   make(map[uint32]*page),
		patches: make(map[uint32][]patchSite),
	}
}

func pageOf(pc uint32) uint32    { return pc >> PageShift }
func wordOf(pc uint32) uint32    { return (pc & (PageSize - 1)) / 4 }
func hashIndex(pc uint32) uint32 { return (pc >> 2) % HashSlots }

func (c *Cache) getPage(pc uint32, create bool) *page {
	key := pageOf(pc)
	p, ok := c.pages[key]
	if !ok {
		if !create {
			return nil
		}
		p = &page{}
		c.pages[key] = p
	}
	return p
}

// Lookup returns the compiled entry for pc, or ok=false if there is
// none, or the one on record has gone stale (its snapshotted generation
// no longer matches its page's live counter — see NotifyStore).
func (c *Cache) Lookup(pc uint32) (*Entry, bool) {
	if e, ok := c.lookupHash(pc); ok {
		return e, true
	}
	return c.lookupPageTable(pc)
}

func (c *Cache) lookupHash(pc uint32) (*Entry, bool) {
	idx := hashIndex(pc)
	for w := 0; w < HashWays; w++ {
		s := &c.hash[idx][w]
		if s.valid && s.pc == pc {
			if c.stale(s.entry) {
				s.valid = false
				return nil, false
			}
			return s.entry, true
		}
	}
	return nil, false
}

func (c *Cache) lookupPageTable(pc uint32) (*Entry, bool) {
	p := c.getPage(pc, false)
	if p == nil {
		return nil, false
	}
	e := p.slots[wordOf(pc)]
	if e == nil {
		return nil, false
	}
	if c.stale(e) {
		p.slots[wordOf(pc)] = nil
		return nil, false
	}
	c.insertHash(pc, e)
	return e, true
}

func (c *Cache) stale(e *Entry) bool {
	p := c.getPage(e.PC, false)
	return p == nil || p.generation != e.Generation
}

func (c *Cache) insertHash(pc uint32, e *Entry) {
	idx := hashIndex(pc)
	for w := 0; w < HashWays; w++ {
		if !c.hash[idx][w].valid {
			c.hash[idx][w] = hashSlot{valid: true, pc: pc, entry: e}
			return
		}
	}
	// both ways occupied: evict way 0, least-recently-installed wins by
	// convention (no access-time tracking; spec doesn't ask for LRU
	// here, only O(1) average dispatch).
	c.hash[idx][0] = hashSlot{valid: true, pc: pc, entry: e}
}

// Insert records a newly compiled block's index entry and resolves any
// patch sites that were waiting on pc, by overwriting each site's
// displacement field with a direct jump to the block's native offset.
func (c *Cache) Insert(pc uint32, offset, length int) *Entry {
	p := c.getPage(pc, true)
	e := &Entry{PC: pc, Offset: offset, Length: length, Generation: p.generation}
	p.slots[wordOf(pc)] = e
	c.insertHash(pc, e)

	for _, site := range c.patches[pc] {
		c.arena.PatchRel32(site.siteOffset, offset)
	}
	delete(c.patches, pc)

	return e
}

// AddPatchSite records that the instruction whose displacement field
// lives at siteOffset (within the arena) is an unresolved direct jump
// to target. If target is already compiled, it resolves immediately;
// otherwise it waits for a future Insert(target, ...).
func (c *Cache) AddPatchSite(fromPC uint32, siteOffset int, target uint32) {
	if e, ok := c.Lookup(target); ok {
		c.arena.PatchRel32(siteOffset, e.Offset)
		return
	}
	c.patches[target] = append(c.patches[target], patchSite{fromPC: fromPC, siteOffset: siteOffset, target: target})
}

// NotifyStore is called by the emitter's inline SMC check (or the slow
// memory path) whenever the guest writes addr, which falls within
// page-aligned RAM. It bumps that page's generation counter, which
// lazily invalidates every block entry snapshotted against the old
// value the next time it's looked up — no scan over existing entries is
// needed.
func (c *Cache) NotifyStore(addr uint32) {
	p := c.getPage(addr, true)
	p.generation++
}

// PageHasCode reports whether any block is currently indexed on addr's
// page. The emitter's store template does not consult it: it emits the
// NotifyStore call after every store.
func (c *Cache) PageHasCode(addr uint32) bool {
	p := c.getPage(addr, false)
	if p == nil {
		return false
	}
	for _, e := range p.slots {
		if e != nil {
			return true
		}
	}
	return false
}

// Flush invalidates the entire cache: every index structure is cleared
// and the backing arena's cursor is rewound, per spec.md §4.6's
// whole-cache-flush behaviour (triggered when the arena runs low on
// free space). The guest's physical-to-generation state is not guest
// architectural state, so nothing outside this package needs to be told
// — the next Lookup for any PC will simply miss and recompile.
func (c *Cache) Flush() {
	c.pages = make(map[uint32]*page)
	c.hash = [HashSlots][HashWays]hashSlot{}
	c.patches = make(map[uint32][]patchSite)
	c.arena.Reset()
}

// ShouldFlush reports whether the arena has dropped below the
// low-water mark that should trigger Flush before the next compile.
func (c *Cache) ShouldFlush(nextBlockEstimate int) bool {
	return c.arena.Free() < nextBlockEstimate
}
