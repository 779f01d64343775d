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

// Package psxexe parses and loads the PS-X EXE executable format
// spec.md §6 describes: an 8-byte magic, a fixed little-endian header
// occupying the file's first 2048 bytes, and a code body that follows.
package psxexe

import (
	"encoding/binary"

	"github.com/gopsx/gopsx/curated"
	"github.com/gopsx/gopsx/hardware/memory/memorymap"
)

// Fatal-startup error patterns, surfaced to cmd/gopsx per SPEC_FULL.md
// §4.0/§7.
const (
	ErrTooShort      = "psxexe: file too short to contain a header"
	ErrBadMagic      = "psxexe: missing PS-X EXE magic"
	ErrTextTooLarge  = "psxexe: text segment exceeds guest RAM"
)

const (
	magic      = "PS-X EXE"
	headerSize = 2048

	offPC0      = 0x10
	offGP0      = 0x14
	offTextAddr = 0x18
	offTextSize = 0x1c
	offSP       = 0x30
)

// Executable is a parsed PS-X EXE header plus its code body.
type Executable struct {
	PC0      uint32
	GP0      uint32
	TextAddr uint32
	TextSize uint32
	SPAddr   uint32
	SPSize   uint32

	Text []byte
}

// Parse validates data's magic and decodes its header and code body.
// data is the whole file contents; the code body is whatever follows
// the fixed 2048-byte header, truncated (or zero-extended, if short)
// to TextSize.
func Parse(data []byte) (Executable, error) {
	if len(data) < headerSize {
		return Executable{}, curated.Errorf(ErrTooShort)
	}
	if string(data[:len(magic)]) != magic {
		return Executable{}, curated.Errorf(ErrBadMagic)
	}

	e := Executable{
		PC0:      binary.LittleEndian.Uint32(data[offPC0:]),
		GP0:      binary.LittleEndian.Uint32(data[offGP0:]),
		TextAddr: binary.LittleEndian.Uint32(data[offTextAddr:]),
		TextSize: binary.LittleEndian.Uint32(data[offTextSize:]),
		SPAddr:   binary.LittleEndian.Uint32(data[offSP:]),
		SPSize:   binary.LittleEndian.Uint32(data[offSP+4:]),
	}

	body := data[headerSize:]
	text := make([]byte, e.TextSize)
	n := copy(text, body)
	_ = n
	e.Text = text

	return e, nil
}

// Loader is the minimal guest-memory surface Load needs: a RAM slice
// to copy the text segment into, and GPR/PC setters matching
// registers.State's accessor shape.
type Loader interface {
	RAM() []byte
	SetGPR(i int, v uint32)
	SetPC(pc uint32)
}

// Load copies e's text segment into RAM at its (29-bit masked) load
// address and primes the guest's entry registers, per spec.md §6: PC
// to pc0, gp to gp0, sp to s_addr+s_size (left untouched if both are
// zero), and a0/a1 zeroed.
func Load(e Executable, l Loader) error {
	base := memorymap.Mask(e.TextAddr)
	if int(base)+len(e.Text) > len(l.RAM()) {
		return curated.Errorf(ErrTextTooLarge)
	}
	copy(l.RAM()[base:], e.Text)

	l.SetPC(e.PC0)
	l.SetGPR(28, e.GP0) // gp
	if e.SPAddr != 0 || e.SPSize != 0 {
		l.SetGPR(29, e.SPAddr+e.SPSize) // sp
	}
	l.SetGPR(4, 0) // a0
	l.SetGPR(5, 0) // a1

	return nil
}
