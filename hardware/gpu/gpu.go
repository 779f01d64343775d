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

// Package gpu owns the GTE's sibling coprocessor-by-DMA: the guest VRAM
// shadow, the GP0/GP1 register aperture, and the wiring between
// hardware/gpu's four leaf packages (fifo, primitive, texcache, gif)
// and a host rasterizer.Backend. It is the part of SPEC_FULL.md's data
// model that owns gpu.Shadow and gpu.BlockGen; fifo/texcache/primitive
// only see the narrow interfaces they declared themselves.
package gpu

import (
	"github.com/gopsx/gopsx/curated"
	"github.com/gopsx/gopsx/hardware/gpu/fifo"
	"github.com/gopsx/gopsx/hardware/gpu/gif"
	"github.com/gopsx/gopsx/hardware/gpu/primitive"
	"github.com/gopsx/gopsx/hardware/gpu/rasterizer"
	"github.com/gopsx/gopsx/hardware/gpu/texcache"
)

const (
	vramWidth  = 1024
	vramHeight = 512

	// the 1024x512 shadow is partitioned into a 8x4 grid of 128x128
	// blocks for generation tracking: fine enough that an unrelated
	// transfer elsewhere in VRAM doesn't needlessly invalidate every
	// cached texture, coarse enough that BlockGen fits in 32 slots.
	blocksX  = 8
	blocksY  = 4
	blockW   = vramWidth / blocksX
	blockH   = vramHeight / blocksY
)

// RegisterFirst and RegisterLast bound the GP0/GP1 register aperture
// this package attaches to hardware/memory.
const (
	RegisterFirst = 0x1f80_1810
	RegisterLast  = 0x1f80_1817

	gp0Register = 0x1f80_1810 // write: command FIFO; read: GPUREAD
	gp1Register = 0x1f80_1814 // write: display control; read: GPUSTAT
)

// GPUSTAT bits this package models; the rest read back as the
// power-on-reset value's corresponding bit, since nothing here emulates
// interlacing, video timing or the display-enable signal itself.
const (
	statReadyCmd      = 1 << 26
	statReadyDMABlock = 1 << 28
	statReadyVRAMSend = 1 << 27
)

// Shadow is the host-side mirror of guest VRAM's 1024x512 16bpp pixel
// grid, named for SPEC_FULL.md's data model.
type Shadow [vramHeight][vramWidth]uint16

// BlockGen is the per-block dirty-generation counter array backing
// texcache.GenerationSource.
type BlockGen [32]uint32

// Engine is the complete GPU: command decode, VRAM shadow, texture
// cache and the host rasterizer, wired together and exposed to the rest
// of the machine only as a memory.RegisterHandler.
type Engine struct {
	shadow   Shadow
	blockGen BlockGen
	tick     uint32
	global   uint32

	fifo       *fifo.FIFO
	cache      *texcache.Cache
	translator *primitive.Translator
	batcher    *gif.Batcher
	backend    rasterizer.Backend

	gpustat uint32
}

// New returns an Engine submitting to backend.
func New(backend rasterizer.Backend) *Engine {
	e := &Engine{backend: backend, cache: texcache.New()}
	e.translator = primitive.New(backend, e.cache, e, e)
	e.batcher = gif.New(backend)
	e.fifo = fifo.New(e, e, dispatcherBatching{e})
	e.gpustat = statReadyCmd | statReadyDMABlock
	return e
}

// dispatcherBatching adapts Engine's Translator calls onto the GIF
// batcher, so every completed primitive/environment/flush command is
// queued rather than submitted straight through, matching spec.md
// §4.10's batched-retirement model.
type dispatcherBatching struct {
	e *Engine
}

func (d dispatcherBatching) Polygon(words []uint32) {
	w := append([]uint32(nil), words...)
	d.e.batcher.Append(func(rasterizer.Backend) { d.e.translator.Polygon(w) })
}

func (d dispatcherBatching) Rectangle(words []uint32) {
	w := append([]uint32(nil), words...)
	d.e.batcher.Append(func(rasterizer.Backend) { d.e.translator.Rectangle(w) })
}

func (d dispatcherBatching) Line(words []uint32) {
	w := append([]uint32(nil), words...)
	d.e.batcher.Append(func(rasterizer.Backend) { d.e.translator.Line(w) })
}

func (d dispatcherBatching) PolylineBegin() {
	d.e.batcher.Append(func(rasterizer.Backend) { d.e.translator.PolylineBegin() })
}

func (d dispatcherBatching) Polyline(words []uint32) {
	w := append([]uint32(nil), words...)
	d.e.batcher.Append(func(rasterizer.Backend) { d.e.translator.Polyline(w) })
}

func (d dispatcherBatching) Environment(opcode byte, word uint32) {
	d.e.batcher.Append(func(rasterizer.Backend) { d.e.translator.Environment(opcode, word) })
}

func (d dispatcherBatching) TextureCacheFlush() {
	d.e.batcher.Append(func(rasterizer.Backend) { d.e.translator.TextureCacheFlush() })
}

// ReadPixel implements fifo.VRAM and primitive.VRAM.
func (e *Engine) ReadPixel(x, y int) uint16 {
	return e.shadow[y%vramHeight][x%vramWidth]
}

// WritePixel implements fifo.VRAM.
func (e *Engine) WritePixel(x, y int, v uint16) {
	e.shadow[y%vramHeight][x%vramWidth] = v
}

// Bump implements fifo.Generations.
func (e *Engine) Bump(x0, y0, x1, y1 int) {
	e.tick++
	for by := y0 / blockH; by <= y1/blockH && by < blocksY; by++ {
		for bx := x0 / blockW; bx <= x1/blockW && bx < blocksX; bx++ {
			e.blockGen[by*blocksX+bx] = e.tick
		}
	}
}

// BumpGlobal implements fifo.Generations.
func (e *Engine) BumpGlobal() {
	e.global = e.tick
}

// GlobalGeneration implements texcache.GenerationSource.
func (e *Engine) GlobalGeneration() uint32 {
	return e.global
}

// CombinedGeneration implements texcache.GenerationSource.
func (e *Engine) CombinedGeneration(key texcache.Key) uint32 {
	x0, y0, x1, y1 := texturePageRect(key.TPage)
	max := e.maxGenOverRect(x0, y0, x1, y1)
	if key.Format.Indexed() {
		cx0, cy0, cx1, cy1 := clutRect(key.CLUT, key.Format)
		if g := e.maxGenOverRect(cx0, cy0, cx1, cy1); g > max {
			max = g
		}
	}
	return max
}

func (e *Engine) maxGenOverRect(x0, y0, x1, y1 int) uint32 {
	var max uint32
	for by := y0 / blockH; by <= y1/blockH && by < blocksY; by++ {
		for bx := x0 / blockW; bx <= x1/blockW && bx < blocksX; bx++ {
			if g := e.blockGen[by*blocksX+bx]; g > max {
				max = g
			}
		}
	}
	return max
}

// texturePageRect returns the 256x256 VRAM rectangle a GP0(0xE1)
// texture-page selector addresses.
func texturePageRect(tpage uint16) (x0, y0, x1, y1 int) {
	x0 = int(tpage&0xf) * 64
	y0 = int((tpage>>4)&0x1) * 256
	return x0, y0, x0 + 255, y0 + 255
}

// clutRect returns the VRAM rectangle a CLUT selector addresses: 16
// entries wide for 4bpp, 256 wide for 8bpp, always a single row.
func clutRect(clut uint16, format texcache.Format) (x0, y0, x1, y1 int) {
	x0 = int(clut&0x3f) * 16
	y0 = int((clut >> 6) & 0x1ff)
	width := 16
	if format == texcache.FormatIndexed8 {
		width = 256
	}
	return x0, y0, x0 + width - 1, y0
}

// ReadRegister implements memory.RegisterHandler.
func (e *Engine) ReadRegister(address uint32, width int) (uint32, error) {
	switch address &^ 3 {
	case gp0Register:
		return e.fifo.ReadTransfer(), nil
	case gp1Register:
		stat := e.gpustat
		if e.fifo.TransferActive() {
			stat |= statReadyVRAMSend
		}
		return stat, nil
	}
	return 0, curated.Errorf("gpu: no register at %#08x", address)
}

// WriteRegister implements memory.RegisterHandler.
func (e *Engine) WriteRegister(address uint32, width int, value uint32) error {
	switch address &^ 3 {
	case gp0Register:
		e.fifo.Push(value)
		return nil
	case gp1Register:
		e.handleGP1(value)
		return nil
	}
	return curated.Errorf("gpu: no register at %#08x", address)
}

// handleGP1 decodes the small subset of GP1 display-control commands
// this emulator models: reset and DMA-direction selection influence
// GPUSTAT's guest-visible bits; display timing and output enable are
// accepted but not modelled (SPEC_FULL.md's Non-goals exclude NTSC/PAL
// video timing).
func (e *Engine) handleGP1(word uint32) {
	opcode := byte(word >> 24)
	switch opcode {
	case 0x00: // reset GPU
		e.gpustat = statReadyCmd | statReadyDMABlock
		e.cache.Invalidate()
	case 0x04: // DMA direction / data request
		e.gpustat = e.gpustat&^(0x3<<29) | (word&0x3)<<29
	}
}

// CacheStats reports the texture cache's lifetime hit/miss counts, for
// cmd/gopsx's debug overlay.
func (e *Engine) CacheStats() (hits, misses int) {
	return e.cache.Stats()
}

// Flush drains any GIF operations queued by completed GP0 commands
// against the rasterizer backend; the guest never observes this
// directly, but the emulation loop calls it once per scanline/frame
// boundary so drawing keeps pace with the guest's own batching.
func (e *Engine) Flush() {
	e.batcher.Flush()
}

// ReadShadow copies a w x h rectangle of the CPU-visible VRAM shadow
// into out, used by the VRAM->CPU transfer's debug dump path
// (cmd/gopsx's -vramdump flag) without requiring a live rasterizer
// fence: the shadow is authoritative for every pixel a CPU transfer
// could have written, independent of whatever the host GPU has drawn.
func (e *Engine) ReadShadow(x, y, w, h int, out []uint16) {
	i := 0
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			out[i] = e.shadow[(y+row)%vramHeight][(x+col)%vramWidth]
			i++
		}
	}
}

var _ texcache.GenerationSource = (*Engine)(nil)
