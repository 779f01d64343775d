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

// Package primitive implements spec.md §4.8's translator: it takes the
// complete GP0 command word arrays fifo.FIFO buffers and turns them into
// rasterizer.Primitive values, consulting the texture cache for every
// textured draw and tracking the handful of GP0(0xEx) environment
// commands that bias every vertex and select the active texture page.
package primitive

import (
	"github.com/gopsx/gopsx/hardware/gpu/rasterizer"
	"github.com/gopsx/gopsx/hardware/gpu/texcache"
)

// VRAM is the read-only view of guest VRAM the software-decode path
// needs to expand an indexed texture itself instead of handing raw
// CLUT data to the rasterizer.
type VRAM interface {
	ReadPixel(x, y int) uint16
}

// environment bundles every GP0(0xEx) draw-mode register this package
// tracks between primitives.
type environment struct {
	scissor        rasterizer.Scissor
	offsetX, offsetY int32
	tpage          uint16
	window         texcache.Window
	maskSet        bool
}

// Translator is a fifo.Dispatcher that turns buffered GP0 command words
// into rasterizer submissions.
type Translator struct {
	backend rasterizer.Backend
	cache   *texcache.Cache
	gens    texcache.GenerationSource
	vram    VRAM

	env environment

	polylinePrevValid bool
	polylinePrevX     int32
	polylinePrevY     int32
	polylinePrevR     uint8
	polylinePrevG     uint8
	polylinePrevB     uint8
}

// New returns a Translator submitting to backend, consulting cache
// (validated against gens) for every textured draw, with vram available
// for the software-decode fallback path.
func New(backend rasterizer.Backend, cache *texcache.Cache, gens texcache.GenerationSource, vram VRAM) *Translator {
	return &Translator{backend: backend, cache: cache, gens: gens, vram: vram}
}

func decodeColour(word uint32) (r, g, b uint8) {
	return uint8(word), uint8(word >> 8), uint8(word >> 16)
}

// decodeVertexXY unpacks a vertex word's two 11-bit signed fields.
func decodeVertexXY(word uint32) (x, y int32) {
	x = signExtend11(uint16(word))
	y = signExtend11(uint16(word >> 16))
	return
}

func signExtend11(v uint16) int32 {
	v &= 0x07ff
	x := int32(v)
	if x&0x0400 != 0 {
		x -= 0x0800
	}
	return x
}

// decodeUV unpacks a textured vertex's UV word: low byte U, next byte V,
// and the upper 16 bits (CLUT on the first vertex, texpage on the
// second, per spec.md §4.8).
func decodeUV(word uint32) (u, v uint8, aux uint16) {
	return uint8(word), uint8(word >> 8), uint16(word >> 16)
}

// biasX and biasY apply the command's guest coordinate to spec.md
// §4.8's fixed 2048-pixel origin bias and convert to the rasterizer's
// 12.4 fixed-point space.
func (t *Translator) biasX(x int32) int32 {
	return (x + t.env.offsetX + 2048) << 4
}

func (t *Translator) biasY(y int32) int32 {
	return (y + t.env.offsetY + 2048) << 4
}

func (t *Translator) blendMode(semiTransparent bool) rasterizer.BlendMode {
	if !semiTransparent {
		return rasterizer.BlendNone
	}
	// The actual equation (half/add/subtract/quarter-add) is selected by
	// the draw-mode register's semi-transparency bits, set via
	// GP0(0xE1) and tracked in env; absent that extra bit-twiddling this
	// package has not been asked to model yet, every semi-transparent
	// primitive uses the BlendHalf default.
	return rasterizer.BlendHalf
}

// Polygon handles GP0(0x20-0x3F): flat or Gouraud-shaded, textured or
// untextured, triangles or quads.
func (t *Translator) Polygon(words []uint32) {
	opcode := byte(words[0] >> 24)
	shaded := opcode&0x10 != 0
	textured := opcode&0x04 != 0
	quad := opcode&0x08 != 0
	semiTransparent := opcode&0x02 != 0

	verts := 3
	if quad {
		verts = 4
	}

	cmdR, cmdG, cmdB := decodeColour(words[0])
	vertices := make([]rasterizer.Vertex, 0, verts)

	idx := 1
	var clut, tpage uint16
	for i := 0; i < verts; i++ {
		r, g, b := cmdR, cmdG, cmdB
		if shaded && i > 0 {
			r, g, b = decodeColour(words[idx])
			idx++
		}

		x, y := decodeVertexXY(words[idx])
		idx++

		var u, v uint8
		if textured {
			var aux uint16
			u, v, aux = decodeUV(words[idx])
			idx++
			switch i {
			case 0:
				clut = aux
			case 1:
				tpage = aux
			}
		}

		vertices = append(vertices, rasterizer.Vertex{
			X: t.biasX(x), Y: t.biasY(y), R: r, G: g, B: b, U: u, V: v,
		})
	}

	if textured && tpage == 0 {
		tpage = t.env.tpage
	}

	prim := rasterizer.Primitive{
		Kind:     rasterizer.KindTriangles,
		Vertices: vertices,
		Textured: textured,
		TPage:    tpage,
		CLUT:     clut,
		Blend:    t.blendMode(semiTransparent),
	}
	if textured {
		t.resolveTexture(&prim, tpage, clut)
	}
	t.backend.Submit(prim)
}

// Rectangle handles GP0(0x60-0x7F): the fixed-size (1x1/8x8/16x16) and
// variable-size sprite commands.
func (t *Translator) Rectangle(words []uint32) {
	opcode := byte(words[0] >> 24)
	textured := opcode&0x04 != 0
	semiTransparent := opcode&0x02 != 0
	sizeMode := (opcode >> 3) & 0x03

	r, g, b := decodeColour(words[0])
	idx := 1
	x, y := decodeVertexXY(words[idx])
	idx++

	var u, v uint8
	var clut uint16
	if textured {
		u, v, clut = decodeUV(words[idx])
		idx++
	}

	var w, h int32
	switch sizeMode {
	case 1:
		w, h = 1, 1
	case 2:
		w, h = 8, 8
	case 3:
		w, h = 16, 16
	default:
		size := words[idx]
		idx++
		w = int32(size & 0xffff)
		h = int32((size >> 16) & 0xffff)
	}

	x0, y0 := t.biasX(x), t.biasY(y)
	vertices := []rasterizer.Vertex{
		{X: x0, Y: y0, R: r, G: g, B: b, U: u, V: v},
		{X: x0 + w<<4, Y: y0, R: r, G: g, B: b, U: u + uint8(w), V: v},
		{X: x0, Y: y0 + h<<4, R: r, G: g, B: b, U: u, V: v + uint8(h)},
		{X: x0 + w<<4, Y: y0 + h<<4, R: r, G: g, B: b, U: u + uint8(w), V: v + uint8(h)},
	}

	prim := rasterizer.Primitive{
		Kind:     rasterizer.KindSprite,
		Vertices: vertices,
		Textured: textured,
		TPage:    t.env.tpage,
		CLUT:     clut,
		Blend:    t.blendMode(semiTransparent),
	}
	if textured {
		t.resolveTexture(&prim, t.env.tpage, clut)
	}
	t.backend.Submit(prim)
}

// Line handles GP0(0x40-0x4F)'s non-polyline, flat or shaded two-point
// lines.
func (t *Translator) Line(words []uint32) {
	opcode := byte(words[0] >> 24)
	shaded := opcode&0x10 != 0
	semiTransparent := opcode&0x02 != 0

	r0, g0, b0 := decodeColour(words[0])
	idx := 1
	x0, y0 := decodeVertexXY(words[idx])
	idx++

	r1, g1, b1 := r0, g0, b0
	if shaded {
		r1, g1, b1 = decodeColour(words[idx])
		idx++
	}
	x1, y1 := decodeVertexXY(words[idx])

	prim := rasterizer.Primitive{
		Kind: rasterizer.KindLine,
		Vertices: []rasterizer.Vertex{
			{X: t.biasX(x0), Y: t.biasY(y0), R: r0, G: g0, B: b0},
			{X: t.biasX(x1), Y: t.biasY(y1), R: r1, G: g1, B: b1},
		},
		Blend: t.blendMode(semiTransparent),
	}
	t.backend.Submit(prim)
}

// PolylineBegin drops any running vertex left over from a previous
// polyline so the first segment of a new one is never drawn against it.
func (t *Translator) PolylineBegin() {
	t.polylinePrevValid = false
}

// Polyline handles one (colour, vertex) pair of a multi-segment
// GP0(0x48/0x4C) polyline, drawing a line from the previous vertex (if
// any) to this one.
func (t *Translator) Polyline(words []uint32) {
	colour := words[0]
	r, g, b := decodeColour(colour)
	x, y := decodeVertexXY(words[1])
	bx, by := t.biasX(x), t.biasY(y)

	if t.polylinePrevValid {
		t.backend.Submit(rasterizer.Primitive{
			Kind: rasterizer.KindLine,
			Vertices: []rasterizer.Vertex{
				{X: t.polylinePrevX, Y: t.polylinePrevY, R: t.polylinePrevR, G: t.polylinePrevG, B: t.polylinePrevB},
				{X: bx, Y: by, R: r, G: g, B: b},
			},
		})
	}

	t.polylinePrevValid = true
	t.polylinePrevX, t.polylinePrevY = bx, by
	t.polylinePrevR, t.polylinePrevG, t.polylinePrevB = r, g, b
}

// Environment handles the GP0(0xE0-0xE6) draw-mode register writes.
func (t *Translator) Environment(opcode byte, word uint32) {
	switch opcode {
	case 0xe1:
		// draw-mode setting: texture page select lives in the low bits,
		// matching the vertex UV word's texpage encoding so both paths
		// agree on a page.
		t.env.tpage = uint16(word & 0x1ff)
	case 0xe2:
		t.env.window = texcache.Window{
			MaskX: uint8(word) & 0x1f,
			MaskY: uint8(word>>5) & 0x1f,
			OffX:  uint8(word>>10) & 0x1f,
			OffY:  uint8(word>>15) & 0x1f,
		}
	case 0xe3:
		t.env.scissor.X0 = int(word & 0x3ff)
		t.env.scissor.Y0 = int((word >> 10) & 0x1ff)
		t.backend.SetScissor(t.env.scissor)
	case 0xe4:
		t.env.scissor.X1 = int(word & 0x3ff)
		t.env.scissor.Y1 = int((word >> 10) & 0x1ff)
		t.backend.SetScissor(t.env.scissor)
	case 0xe5:
		t.env.offsetX = signExtend11At(word, 0, 11)
		t.env.offsetY = signExtend11At(word, 11, 11)
	case 0xe6:
		t.env.maskSet = word&0x01 != 0
	}
}

// signExtend11At extracts a width-bit signed field starting at bit and
// sign-extends it; GP0(0xE5)'s drawing offset uses two 11-bit fields.
func signExtend11At(word uint32, bit, width uint) int32 {
	mask := uint32(1)<<width - 1
	v := (word >> bit) & mask
	x := int32(v)
	sign := int32(1) << (width - 1)
	if x&sign != 0 {
		x -= int32(1) << width
	}
	return x
}

// TextureCacheFlush invalidates every resident texture-cache entry,
// forwarded from a VRAM transfer that touched texture data.
func (t *Translator) TextureCacheFlush() {
	t.cache.Invalidate()
}

// resolveTexture looks up (tpage, clut, window) in the texture cache
// and, on a miss, inserts a fresh entry stamped with the current
// combined and global generations; either way it threads the entry's
// page and CLUT into the primitive. It uploads no texel or palette data:
// neither a hit nor a miss calls the backend's Upload, and the VRAM view
// given to New is not read here.
func (t *Translator) resolveTexture(p *rasterizer.Primitive, tpage, clut uint16) {
	format := texcache.FormatDirect15
	if tpage&0x80 != 0 {
		format = texcache.FormatIndexed4
	} else if tpage&0x180 == 0x80 {
		format = texcache.FormatIndexed8
	}

	key := texcache.Key{Format: format, TPage: tpage, CLUT: clut, Window: t.env.window}
	entry, ok := t.cache.Lookup(key, t.gens)
	if !ok {
		entry = texcache.Entry{Key: key, CombinedGen: t.gens.CombinedGeneration(key)}
		t.cache.Insert(entry, t.gens.GlobalGeneration())
	}

	p.TPage = entry.Key.TPage
	p.CLUT = entry.Key.CLUT
	p.STMode = t.env.window.Active()
}
