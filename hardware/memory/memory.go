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

// Package memory is the guest's physical address space: 2 MiB of main
// RAM, 512 KiB of BIOS ROM, a 1 KiB scratchpad, and a sparse
// hardware-register aperture dispatched to attached device handlers. It
// satisfies bus.Bus for the interpreter and the dynarec's slow path, and
// owns the page LUT the dynarec's fast path consults directly.
package memory

import (
	"encoding/binary"

	"github.com/gopsx/gopsx/curated"
	"github.com/gopsx/gopsx/hardware/memory/bus"
	"github.com/gopsx/gopsx/hardware/memory/memorymap"
	"github.com/gopsx/gopsx/hardware/memory/memorymap/pagelut"
)

// RegisterHandler services reads and writes that fall within a range of
// the hardware-register aperture. width is the access size in bytes (1,
// 2 or 4); address is the full, unmasked address the CPU issued.
type RegisterHandler interface {
	ReadRegister(address uint32, width int) (uint32, error)
	WriteRegister(address uint32, width int, value uint32) error
}

type handlerEntry struct {
	first, last uint32
	handler     RegisterHandler
}

// Memory is the guest's entire physical address space.
type Memory struct {
	ram        []byte
	bios       []byte
	scratchpad []byte

	handlers []handlerEntry

	// isolateCache mirrors COP0 SR bit 16: while set, writes into RAM are
	// dropped silently, matching the guest's cache-flush idiom (§4.1).
	isolateCache bool

	lut *pagelut.LUT
}

// NewMemory creates an empty guest address space and populates the page
// LUT with every page that's fully backed by direct host memory.
func NewMemory() *Memory {
	m := &Memory{
		ram:        make([]byte, memorymap.RAMSize),
		bios:       make([]byte, memorymap.BIOSSize),
		scratchpad: make([]byte, memorymap.ScratchpadSize),
		lut:        pagelut.New(),
	}
	m.populateLUT()
	return m
}

// populateLUT installs direct host mappings for RAM and BIOS, mirrored
// across kuseg/kseg0/kseg1. The scratchpad/register page is left
// unmapped: it mixes directly-addressable and dispatched space and the
// LUT can't split a single 64 KiB entry.
func (m *Memory) populateLUT() {
	const ramPages = memorymap.RAMSize / pagelut.PageSize
	for i := uint32(0); i < ramPages; i++ {
		base := m.ram[i*pagelut.PageSize : (i+1)*pagelut.PageSize]
		m.lut.Set(uint16(i), base)               // kuseg
		m.lut.Set(uint16(0x8000+i), base)         // kseg0
		m.lut.Set(uint16(0xa000+i), base)         // kseg1
	}

	const biosPageBase = memorymap.BIOSOrigin >> pagelut.PageShift // 0x1fc0, the kuseg page
	const biosPages = memorymap.BIOSSize / pagelut.PageSize
	for i := uint32(0); i < biosPages; i++ {
		base := m.bios[i*pagelut.PageSize : (i+1)*pagelut.PageSize]
		m.lut.Set(uint16(biosPageBase+i), base)          // kuseg:  0x1fc0_xxxx
		m.lut.Set(uint16(biosPageBase+i+0x8000), base)   // kseg0:  0x9fc0_xxxx
		m.lut.Set(uint16(biosPageBase+i+0xa000), base)   // kseg1:  0xbfc0_xxxx
	}
}

// LUT returns the page LUT the dynarec's fast path consults.
func (m *Memory) LUT() *pagelut.LUT {
	return m.lut
}

// BIOS returns the BIOS ROM backing slice, for the loader to populate at
// boot.
func (m *Memory) BIOS() []byte {
	return m.bios
}

// RAM returns the main RAM backing slice, for the PS-X EXE loader to copy
// a boot executable's text segment into.
func (m *Memory) RAM() []byte {
	return m.ram
}

// SetCacheIsolation mirrors the guest's COP0 SR "isolate cache" bit.
func (m *Memory) SetCacheIsolation(isolated bool) {
	m.isolateCache = isolated
}

// Attach registers h to service every address in [first, last], inclusive,
// within the hardware-register aperture.
func (m *Memory) Attach(first, last uint32, h RegisterHandler) error {
	if first > last {
		return curated.Errorf("memory: invalid handler range %#08x-%#08x", first, last)
	}
	m.handlers = append(m.handlers, handlerEntry{first: first, last: last, handler: h})
	return nil
}

func (m *Memory) handlerFor(address uint32) RegisterHandler {
	phys := memorymap.Mask(address)
	for _, e := range m.handlers {
		if phys >= e.first && phys <= e.last {
			return e.handler
		}
	}
	return nil
}

func checkAlign(address uint32, width uint32) error {
	if address%width != 0 {
		return curated.Errorf(UnalignedAccess, address)
	}
	return nil
}

// ReadByte implements bus.Bus.
func (m *Memory) ReadByte(address uint32) (uint8, error) {
	phys := memorymap.Mask(address)
	switch memorymap.Classify(address) {
	case memorymap.RAM:
		return m.ram[phys-memorymap.RAMOrigin], nil
	case memorymap.BIOS:
		return m.bios[phys-memorymap.BIOSOrigin], nil
	case memorymap.Scratchpad:
		return m.scratchpad[phys-memorymap.ScratchpadOrigin], nil
	case memorymap.Registers:
		if h := m.handlerFor(address); h != nil {
			v, err := h.ReadRegister(address, 1)
			return uint8(v), err
		}
		return 0, curated.Errorf(Unmapped, address)
	case memorymap.ParallelPort:
		return 0xff, nil
	}
	return 0, curated.Errorf(Unmapped, address)
}

// ReadHalf implements bus.Bus.
func (m *Memory) ReadHalf(address uint32) (uint16, error) {
	if err := checkAlign(address, 2); err != nil {
		return 0, err
	}
	phys := memorymap.Mask(address)
	switch memorymap.Classify(address) {
	case memorymap.RAM:
		o := phys - memorymap.RAMOrigin
		return binary.LittleEndian.Uint16(m.ram[o : o+2]), nil
	case memorymap.BIOS:
		o := phys - memorymap.BIOSOrigin
		return binary.LittleEndian.Uint16(m.bios[o : o+2]), nil
	case memorymap.Scratchpad:
		o := phys - memorymap.ScratchpadOrigin
		return binary.LittleEndian.Uint16(m.scratchpad[o : o+2]), nil
	case memorymap.Registers:
		if h := m.handlerFor(address); h != nil {
			v, err := h.ReadRegister(address, 2)
			return uint16(v), err
		}
		return 0, curated.Errorf(Unmapped, address)
	case memorymap.ParallelPort:
		return 0xffff, nil
	}
	return 0, curated.Errorf(Unmapped, address)
}

// ReadWord implements bus.Bus.
func (m *Memory) ReadWord(address uint32) (uint32, error) {
	if err := checkAlign(address, 4); err != nil {
		return 0, err
	}
	phys := memorymap.Mask(address)
	switch memorymap.Classify(address) {
	case memorymap.RAM:
		o := phys - memorymap.RAMOrigin
		return binary.LittleEndian.Uint32(m.ram[o : o+4]), nil
	case memorymap.BIOS:
		o := phys - memorymap.BIOSOrigin
		return binary.LittleEndian.Uint32(m.bios[o : o+4]), nil
	case memorymap.Scratchpad:
		o := phys - memorymap.ScratchpadOrigin
		return binary.LittleEndian.Uint32(m.scratchpad[o : o+4]), nil
	case memorymap.Registers:
		if h := m.handlerFor(address); h != nil {
			return h.ReadRegister(address, 4)
		}
		return 0, curated.Errorf(Unmapped, address)
	case memorymap.ParallelPort:
		return 0xffff_ffff, nil
	}
	return 0, curated.Errorf(Unmapped, address)
}

// WriteByte implements bus.Bus.
func (m *Memory) WriteByte(address uint32, data uint8) error {
	phys := memorymap.Mask(address)
	switch memorymap.Classify(address) {
	case memorymap.RAM:
		if m.isolateCache {
			return nil
		}
		m.ram[phys-memorymap.RAMOrigin] = data
		return nil
	case memorymap.BIOS:
		return nil // ROM: writes are no-ops
	case memorymap.Scratchpad:
		m.scratchpad[phys-memorymap.ScratchpadOrigin] = data
		return nil
	case memorymap.Registers:
		if h := m.handlerFor(address); h != nil {
			return h.WriteRegister(address, 1, uint32(data))
		}
		return curated.Errorf(Unmapped, address)
	case memorymap.ParallelPort:
		return nil
	}
	return curated.Errorf(Unmapped, address)
}

// WriteHalf implements bus.Bus.
func (m *Memory) WriteHalf(address uint32, data uint16) error {
	if err := checkAlign(address, 2); err != nil {
		return err
	}
	phys := memorymap.Mask(address)
	switch memorymap.Classify(address) {
	case memorymap.RAM:
		if m.isolateCache {
			return nil
		}
		o := phys - memorymap.RAMOrigin
		binary.LittleEndian.PutUint16(m.ram[o:o+2], data)
		return nil
	case memorymap.BIOS:
		return nil
	case memorymap.Scratchpad:
		o := phys - memorymap.ScratchpadOrigin
		binary.LittleEndian.PutUint16(m.scratchpad[o:o+2], data)
		return nil
	case memorymap.Registers:
		if h := m.handlerFor(address); h != nil {
			return h.WriteRegister(address, 2, uint32(data))
		}
		return curated.Errorf(Unmapped, address)
	case memorymap.ParallelPort:
		return nil
	}
	return curated.Errorf(Unmapped, address)
}

// WriteWord implements bus.Bus.
func (m *Memory) WriteWord(address uint32, data uint32) error {
	if err := checkAlign(address, 4); err != nil {
		return err
	}
	phys := memorymap.Mask(address)
	switch memorymap.Classify(address) {
	case memorymap.RAM:
		if m.isolateCache {
			return nil
		}
		o := phys - memorymap.RAMOrigin
		binary.LittleEndian.PutUint32(m.ram[o:o+4], data)
		return nil
	case memorymap.BIOS:
		return nil
	case memorymap.Scratchpad:
		o := phys - memorymap.ScratchpadOrigin
		binary.LittleEndian.PutUint32(m.scratchpad[o:o+4], data)
		return nil
	case memorymap.Registers:
		if h := m.handlerFor(address); h != nil {
			return h.WriteRegister(address, 4, data)
		}
		return curated.Errorf(Unmapped, address)
	case memorymap.ParallelPort:
		return nil
	}
	return curated.Errorf(Unmapped, address)
}

// PeekWord implements bus.DebuggerBus: a word read that ignores alignment
// and dispatches directly to RAM/BIOS/scratchpad, bypassing registers.
func (m *Memory) PeekWord(address uint32) (uint32, error) {
	phys := memorymap.Mask(address) &^ 3
	switch memorymap.Classify(phys) {
	case memorymap.RAM:
		o := phys - memorymap.RAMOrigin
		return binary.LittleEndian.Uint32(m.ram[o : o+4]), nil
	case memorymap.BIOS:
		o := phys - memorymap.BIOSOrigin
		return binary.LittleEndian.Uint32(m.bios[o : o+4]), nil
	case memorymap.Scratchpad:
		o := phys - memorymap.ScratchpadOrigin
		return binary.LittleEndian.Uint32(m.scratchpad[o : o+4]), nil
	}
	return 0, curated.Errorf(Unmapped, address)
}

// PokeWord implements bus.DebuggerBus.
func (m *Memory) PokeWord(address uint32, data uint32) error {
	phys := memorymap.Mask(address) &^ 3
	switch memorymap.Classify(phys) {
	case memorymap.RAM:
		o := phys - memorymap.RAMOrigin
		binary.LittleEndian.PutUint32(m.ram[o:o+4], data)
		return nil
	case memorymap.Scratchpad:
		o := phys - memorymap.ScratchpadOrigin
		binary.LittleEndian.PutUint32(m.scratchpad[o:o+4], data)
		return nil
	}
	return curated.Errorf(Unmapped, address)
}

var (
	_ bus.Bus         = (*Memory)(nil)
	_ bus.DebuggerBus = (*Memory)(nil)
)
