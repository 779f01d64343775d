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

// Package rasterizer defines the host drawing surface the GPU
// translator packages (gif, primitive, texcache) target: a small
// interface, Backend, with an OpenGL 3.2 core-profile implementation
// (gl.go) used by cmd/gopsx and a headless recording implementation
// (record.go) that lets the translator packages be unit tested without
// a live GL context.
package rasterizer

// Vertex is one rasterizer-space vertex: 12.4 fixed-point position
// biased by spec.md §4.8's fixed 2048-pixel origin offset, 24-bit
// colour, fixed alpha/Q, and (for textured primitives) a UV pair plus
// floating-point ST coordinates for the wrap-around sprite case.
type Vertex struct {
	X, Y       int32 // 12.4 fixed point, origin-biased
	R, G, B    uint8
	U, V       uint8
	S, T       float32 // used only when ST mode is requested
}

// PrimitiveKind tags the shape a Submit call draws.
type PrimitiveKind int

const (
	KindTriangles PrimitiveKind = iota
	KindSprite
	KindLine
)

// BlendMode mirrors spec.md §4.8's four semi-transparency equations
// plus BlendNone, which draws opaque.
type BlendMode int

const (
	BlendNone BlendMode = iota
	BlendHalf           // 1/2*src + 1/2*dst
	BlendAdd            // src + dst
	BlendSubtract       // dst - src
	BlendQuarterAdd     // dst + 1/4*src
)

// BlendHalfFactor is the FIX=0x58 non-standard 88/128 ≈ 0.69 alpha
// factor the source author calibrated against reference screenshots
// for BlendHalf, instead of the textbook 0.5. Kept verbatim per
// spec.md §9's open question; isolated here so nothing else hardcodes
// the magic number.
const BlendHalfFactor = 88.0 / 128.0

// Primitive is one packed draw command, the host-side analogue of
// spec.md §4.8's "packed primitive command with vertex-count tag".
type Primitive struct {
	Kind     PrimitiveKind
	Vertices []Vertex
	Textured bool
	TPage    uint16
	CLUT     uint16
	STMode   bool // true: use Vertex.S/T with REPEAT wrap instead of U/V
	Blend    BlendMode
}

// Scissor is the drawing-area clip rectangle, inclusive, in VRAM pixel
// coordinates.
type Scissor struct {
	X0, Y0, X1, Y1 int
}

// TextureUpload describes one texture-cache miss's upload to host
// graphics memory (see texcache's hardware-CLUT and software-decode
// paths).
type TextureUpload struct {
	// Indexed is true for a hardware-CLUT upload (raw 4/8bpp texel
	// data plus a separate palette upload); false for a fully
	// expanded 16bpp software-decode upload.
	Indexed bool

	TBP, CBP uint32 // reserved host-memory region handles

	TexelData []byte
	Palette   []uint16

	Width, Height int
}

// Backend is the host rasterizer surface the GPU engine packages
// submit to. Every call happens on the single guest-execution
// goroutine (spec.md §5's concurrency model); there is no internal
// synchronisation.
type Backend interface {
	// SetScissor installs the active drawing-area clip rectangle.
	SetScissor(s Scissor)

	// Submit draws one primitive.
	Submit(p Primitive)

	// Upload installs a texture-cache entry's pixel/palette data into
	// host graphics memory, returning nothing: the caller already
	// knows {tbp, cbp} from TextureUpload and threads it back through
	// subsequent Submit calls' TPage/CLUT fields.
	Upload(u TextureUpload)

	// ReadVRAM reads a rectangle back from host graphics memory into
	// out (len(out) must equal w*h 16-bit pixels), used by the
	// CPU<-VRAM transfer path and the debug VRAM dump.
	ReadVRAM(x, y, w, h int, out []uint16)

	// Fence blocks until every Submit/Upload call issued so far has
	// retired, required before any ReadVRAM or other direct
	// host-memory access per spec.md §4.10/§5.
	Fence()
}
