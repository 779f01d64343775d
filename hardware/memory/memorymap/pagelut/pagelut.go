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

// Package pagelut implements the dynarec's fast-path memory lookup: a
// 65536-entry table of host byte slices, indexed by the upper 16 bits of
// a guest virtual address. A non-nil entry means the whole 64 KiB page is
// backed directly by host memory (RAM, BIOS) and emitted loads/stores can
// index into it with three host instructions; a nil entry forces the slow
// path through the bus's register dispatch.
//
// Pages that mix a directly-addressable region with register-dispatched
// space (the scratchpad/hardware-register page) are deliberately left
// nil: the LUT's granularity can't split a page, and that shared page is
// small and cold enough that the slow path costs nothing measurable.
package pagelut

// PageShift is the number of low bits ignored when indexing the LUT.
const PageShift = 16

// PageSize is the number of bytes a single LUT entry covers.
const PageSize = 1 << PageShift

// LUT is the fast-path page table. The zero value is ready to use, with
// every entry nil (forcing the slow path everywhere).
type LUT struct {
	pages [1 << (32 - PageShift)][]byte
}

// New creates an empty LUT.
func New() *LUT {
	return &LUT{}
}

// Set installs base as the direct host backing for every address whose
// upper 16 bits equal page. base must be exactly PageSize bytes long.
func (l *LUT) Set(page uint16, base []byte) {
	l.pages[page] = base
}

// Clear removes any direct mapping for page, forcing the slow path.
func (l *LUT) Clear(page uint16) {
	l.pages[page] = nil
}

// Lookup returns the host slice backing address's page, and the byte
// offset of address within that slice. ok is false if the page has no
// direct mapping.
func (l *LUT) Lookup(address uint32) (page []byte, offset uint32, ok bool) {
	idx := address >> PageShift
	page = l.pages[idx]
	if page == nil {
		return nil, 0, false
	}
	return page, address & (PageSize - 1), true
}
