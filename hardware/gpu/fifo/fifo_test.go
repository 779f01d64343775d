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

package fifo_test

import (
	"testing"

	"github.com/gopsx/gopsx/hardware/gpu/fifo"
	"github.com/gopsx/gopsx/test"
)

type fakeVRAM struct {
	pixels [512][1024]uint16
}

func (v *fakeVRAM) ReadPixel(x, y int) uint16   { return v.pixels[y][x] }
func (v *fakeVRAM) WritePixel(x, y int, p uint16) { v.pixels[y][x] = p }

type fakeGens struct {
	bumps       int
	globalBumps int
	lastRect    [4]int
}

func (g *fakeGens) Bump(x0, y0, x1, y1 int) {
	g.bumps++
	g.lastRect = [4]int{x0, y0, x1, y1}
}
func (g *fakeGens) BumpGlobal() { g.globalBumps++ }

type fakeDispatcher struct {
	polygons     [][]uint32
	rectangles   [][]uint32
	lines        [][]uint32
	polylines      [][]uint32
	polylineBegins int
	environments []struct {
		opcode byte
		word   uint32
	}
	flushes int
}

func (d *fakeDispatcher) Polygon(words []uint32)   { d.polygons = append(d.polygons, words) }
func (d *fakeDispatcher) Rectangle(words []uint32) { d.rectangles = append(d.rectangles, words) }
func (d *fakeDispatcher) Line(words []uint32)      { d.lines = append(d.lines, words) }
func (d *fakeDispatcher) PolylineBegin()           { d.polylineBegins++ }
func (d *fakeDispatcher) Polyline(words []uint32)  { d.polylines = append(d.polylines, words) }
func (d *fakeDispatcher) Environment(opcode byte, word uint32) {
	d.environments = append(d.environments, struct {
		opcode byte
		word   uint32
	}{opcode, word})
}
func (d *fakeDispatcher) TextureCacheFlush() { d.flushes++ }

// TestCPUToVRAMAppliesMaskSetRule is testable property/scenario B from
// spec.md §8: every pixel written by a CPU->VRAM transfer has its top
// bit forced, regardless of the incoming colour value.
func TestCPUToVRAMAppliesMaskSetRule(t *testing.T) {
	vram := &fakeVRAM{}
	gens := &fakeGens{}
	disp := &fakeDispatcher{}
	f := fifo.New(vram, gens, disp)

	f.Push(0xa000_0000)                 // GP0(0xA0)
	f.Push(uint32(16) | uint32(16)<<16) // dest (16,16)
	f.Push(uint32(4) | uint32(1)<<16)   // size (4,1)
	f.Push(0x7fff_0000)
	f.Push(0x0000_7fff)

	test.ExpectEquality(t, vram.pixels[16][16], uint16(0x8000))
	test.ExpectEquality(t, vram.pixels[16][17], uint16(0xffff))
	test.ExpectEquality(t, vram.pixels[16][18], uint16(0xffff))
	test.ExpectEquality(t, vram.pixels[16][19], uint16(0x8000))
	test.ExpectEquality(t, disp.flushes, 1)
	test.ExpectEquality(t, gens.bumps, 1)
}

// TestEnvironmentCommandsForwardedDirectly is scenario C: GP0(0xE3)/
// GP0(0xE4) reach the dispatcher untouched so the caller can compute
// the scissor rectangle itself.
func TestEnvironmentCommandsForwardedDirectly(t *testing.T) {
	vram := &fakeVRAM{}
	disp := &fakeDispatcher{}
	f := fifo.New(vram, &fakeGens{}, disp)

	f.Push(0xe3a00040) // GP0(0xE3), drawing-area top-left
	f.Push(0xe40000c0) // GP0(0xE4), drawing-area bottom-right

	test.ExpectEquality(t, len(disp.environments), 2)
	test.ExpectEquality(t, disp.environments[0].opcode, byte(0xe3))
	test.ExpectEquality(t, disp.environments[1].opcode, byte(0xe4))
}

func TestVRAMToCPUTransferDeliversShadowPixels(t *testing.T) {
	vram := &fakeVRAM{}
	vram.pixels[5][10] = 0x1111
	vram.pixels[5][11] = 0x2222
	disp := &fakeDispatcher{}
	f := fifo.New(vram, &fakeGens{}, disp)

	f.Push(0xc000_0000)
	f.Push(uint32(10) | uint32(5)<<16)
	f.Push(uint32(2) | uint32(1)<<16)

	test.ExpectEquality(t, f.TransferActive(), true)
	word := f.ReadTransfer()
	test.ExpectEquality(t, uint16(word), uint16(0x1111))
	test.ExpectEquality(t, uint16(word>>16), uint16(0x2222))
	test.ExpectEquality(t, f.TransferActive(), false)
}

func TestVRAMToVRAMCopiesPixelByPixel(t *testing.T) {
	vram := &fakeVRAM{}
	vram.pixels[0][0] = 0xabcd
	vram.pixels[0][1] = 0xbeef
	disp := &fakeDispatcher{}
	gens := &fakeGens{}
	f := fifo.New(vram, gens, disp)

	f.Push(0x8000_0000)
	f.Push(0) // src (0,0)
	f.Push(uint32(100) | uint32(200)<<16) // dst (100,200)
	f.Push(uint32(2) | uint32(1)<<16)     // size (2,1)

	test.ExpectEquality(t, vram.pixels[200][100], uint16(0xabcd))
	test.ExpectEquality(t, vram.pixels[200][101], uint16(0xbeef))
	test.ExpectEquality(t, disp.flushes, 1)
	test.ExpectEquality(t, gens.bumps, 1)
}

func TestPolylineEndsOnSentinel(t *testing.T) {
	vram := &fakeVRAM{}
	disp := &fakeDispatcher{}
	f := fifo.New(vram, &fakeGens{}, disp)

	f.Push(0x4800_ff00) // line, polyline bit set (0x08), unshaded
	f.Push(0x0001_0001) // vertex 1
	f.Push(0x0002_0002) // vertex 2
	f.Push(0x5000_5000) // sentinel

	test.ExpectEquality(t, len(disp.polylines), 2)
}

func TestQuadPolygonCommandLength(t *testing.T) {
	vram := &fakeVRAM{}
	disp := &fakeDispatcher{}
	f := fifo.New(vram, &fakeGens{}, disp)

	// opcode 0x28: polygon, quad(0x08), unshaded, untextured -> 1 + 4 = 5 words
	f.Push(0x2800_00ff)
	for i := 0; i < 3; i++ {
		test.ExpectEquality(t, len(disp.polygons), 0)
		f.Push(uint32(i))
	}
	f.Push(0x0000_0004)
	test.ExpectEquality(t, len(disp.polygons), 1)
	test.ExpectEquality(t, len(disp.polygons[0]), 5)
}
