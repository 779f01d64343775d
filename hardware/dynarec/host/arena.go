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

package host

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Arena is the code cache's backing store: a single mmap'd region the
// dynarec fills with compiled blocks and occasionally, wholesale,
// resets. It is never partially freed; see spec's cache-flush behaviour
// (hardware/dynarec/cache), which resets Arena.Reset rather than
// tracking per-block frees.
type Arena struct {
	mem      []byte
	cursor   int
	writable bool
}

// NewArena mmaps size bytes of anonymous memory, initially writable and
// non-executable (the W in W^X). Callers must call MakeExecutable
// before jumping into installed code, and SetWritable again before the
// next Install.
func NewArena(size int) (*Arena, error) {
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("dynarec: mmap arena: %w", err)
	}
	return &Arena{mem: mem, writable: true}, nil
}

// Close unmaps the arena. Not safe to call while any installed code
// might still be executing.
func (a *Arena) Close() error {
	return unix.Munmap(a.mem)
}

// Base returns the arena's backing address as a plain integer, for
// computing PC-relative displacements between two installed sites.
func (a *Arena) Base() uintptr {
	if len(a.mem) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&a.mem[0]))
}

// Cap reports the arena's total capacity in bytes.
func (a *Arena) Cap() int { return len(a.mem) }

// Free reports how many bytes remain before the arena is exhausted.
func (a *Arena) Free() int { return len(a.mem) - a.cursor }

// Install copies code into the arena at the current cursor and advances
// it, returning the byte offset the code was installed at. The arena
// must be writable (MakeExecutable not yet called since the last
// SetWritable, or never called).
func (a *Arena) Install(code []byte) (offset int, ok bool) {
	if !a.writable {
		panic("dynarec: Install called on a non-writable arena")
	}
	if len(code) > a.Free() {
		return 0, false
	}
	offset = a.cursor
	copy(a.mem[offset:], code)
	a.cursor += len(code)
	return offset, true
}

// PatchRel32 overwrites the 4-byte relative displacement field at
// siteOffset so that it jumps to targetOffset, computed the way every
// Jmp/Call/Jcc encoding in the amd64 package lays its field out: as the
// trailing 4 bytes of the instruction, so the instruction's end address
// is siteOffset+4.
func (a *Arena) PatchRel32(siteOffset, targetOffset int) {
	rel := int32(targetOffset - (siteOffset + 4))
	a.mem[siteOffset+0] = byte(rel)
	a.mem[siteOffset+1] = byte(rel >> 8)
	a.mem[siteOffset+2] = byte(rel >> 16)
	a.mem[siteOffset+3] = byte(rel >> 24)
}

// MakeExecutable flips the arena's protection to read+execute (and
// drops write), completing the W^X transition. The host instruction
// cache does not need an explicit flush call on amd64 (its pipeline is
// self-snooping); other architectures would need one here.
func (a *Arena) MakeExecutable() error {
	if err := unix.Mprotect(a.mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return fmt.Errorf("dynarec: mprotect +x: %w", err)
	}
	a.writable = false
	return nil
}

// SetWritable flips the arena back to read+write ahead of the next
// Install, dropping execute permission.
func (a *Arena) SetWritable() error {
	if err := unix.Mprotect(a.mem, unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return fmt.Errorf("dynarec: mprotect +w: %w", err)
	}
	a.writable = true
	return nil
}

// Peek returns a read-only view of length bytes starting at offset,
// used by the cache's test suite and the debug overlay's disassembly
// view. It never copies, so callers must not retain the slice past a
// Reset.
func (a *Arena) Peek(offset, length int) []byte {
	return a.mem[offset : offset+length]
}

// Reset rewinds the cursor to zero without unmapping, implementing the
// cache's whole-arena flush. Callers are responsible for also clearing
// every other index (page tables, hash table, patch lists) that pointed
// into the old contents.
func (a *Arena) Reset() {
	a.cursor = 0
}
