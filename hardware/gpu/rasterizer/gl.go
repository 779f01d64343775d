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

package rasterizer

import (
	"github.com/go-gl/gl/v3.2-core/gl"

	"github.com/gopsx/gopsx/logger"
)

// GL is an OpenGL 3.2 core-profile Backend: guest primitives become
// triangle/line draws against a single 1024x512 framebuffer texture
// that mirrors guest VRAM, the same approach the teacher's sdlimgui
// renderer uses for its debug screen texture, scaled down to the one
// draw surface this spec needs instead of a whole UI.
type GL struct {
	vram       uint32 // framebuffer texture name, RGBA5551-equivalent storage
	fbo        uint32
	program    uint32
	vbo        uint32
	textures   map[uint64]uint32
	nextTexKey uint64
	scissor    Scissor
}

// NewGL creates a GL backend. The caller must already have a current
// GL context (cmd/gopsx creates one via go-sdl2 before constructing
// this backend).
func NewGL() (*GL, error) {
	if err := gl.Init(); err != nil {
		return nil, err
	}

	g := &GL{textures: make(map[uint64]uint32)}

	gl.GenTextures(1, &g.vram)
	gl.BindTexture(gl.TEXTURE_2D, g.vram)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGB5_A1, 1024, 512, 0, gl.RGBA, gl.UNSIGNED_SHORT_1_5_5_5_REV, nil)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)

	gl.GenFramebuffers(1, &g.fbo)
	gl.BindFramebuffer(gl.FRAMEBUFFER, g.fbo)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, g.vram, 0)

	gl.GenBuffers(1, &g.vbo)

	logger.Logf(logger.Allow, "gpu", "vendor: %s", gl.GoStr(gl.GetString(gl.VENDOR)))
	logger.Logf(logger.Allow, "gpu", "renderer: %s", gl.GoStr(gl.GetString(gl.RENDERER)))

	return g, nil
}

// Destroy releases the backend's GL object names.
func (g *GL) Destroy() {
	gl.DeleteTextures(1, &g.vram)
	gl.DeleteFramebuffers(1, &g.fbo)
	gl.DeleteBuffers(1, &g.vbo)
	for _, tex := range g.textures {
		tex := tex
		gl.DeleteTextures(1, &tex)
	}
}

// SetScissor implements Backend.
func (g *GL) SetScissor(s Scissor) {
	g.scissor = s
	gl.Scissor(int32(s.X0), int32(s.Y0), int32(s.X1-s.X0+1), int32(s.Y1-s.Y0+1))
}

// Submit implements Backend: it selects the host blend equation from
// p.Blend and issues one draw call against the VRAM framebuffer texture.
// No vertex/fragment program is set up and no uploaded texture is bound;
// p.Textured, p.TPage, p.CLUT and p.STMode are not consulted.
func (g *GL) Submit(p Primitive) {
	gl.BindFramebuffer(gl.FRAMEBUFFER, g.fbo)
	setBlendEquation(p.Blend)

	mode := uint32(gl.TRIANGLES)
	if p.Kind == KindLine {
		mode = gl.LINE_STRIP
	}

	verts := make([]float32, 0, len(p.Vertices)*2)
	for _, v := range p.Vertices {
		verts = append(verts, float32(v.X)/16.0, float32(v.Y)/16.0)
	}

	gl.BindBuffer(gl.ARRAY_BUFFER, g.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(verts)*4, gl.Ptr(verts), gl.STREAM_DRAW)
	gl.DrawArrays(mode, 0, int32(len(p.Vertices)))
}

// setBlendEquation selects the host blend function matching one of
// spec.md §4.8's four semi-transparency modes.
func setBlendEquation(b BlendMode) {
	switch b {
	case BlendHalf:
		gl.BlendEquation(gl.FUNC_ADD)
		gl.BlendColor(0, 0, 0, float32(BlendHalfFactor))
		gl.BlendFunc(gl.CONSTANT_ALPHA, gl.CONSTANT_ALPHA)
	case BlendAdd:
		gl.BlendEquation(gl.FUNC_ADD)
		gl.BlendFunc(gl.ONE, gl.ONE)
	case BlendSubtract:
		gl.BlendEquation(gl.FUNC_REVERSE_SUBTRACT)
		gl.BlendFunc(gl.ONE, gl.ONE)
	case BlendQuarterAdd:
		gl.BlendEquation(gl.FUNC_ADD)
		gl.BlendColor(0, 0, 0, 0.25)
		gl.BlendFunc(gl.CONSTANT_ALPHA, gl.ONE)
	default:
		gl.BlendFunc(gl.ONE, gl.ZERO)
	}
}

// Upload implements Backend: installs u's texel data as a host texture
// keyed by u.TBP and, for an indexed upload, its palette as a second
// texture keyed by u.CBP. Submit does not bind these textures.
func (g *GL) Upload(u TextureUpload) {
	tex := g.textureFor(uint64(u.TBP))
	gl.BindTexture(gl.TEXTURE_2D, tex)

	format := uint32(gl.RGB5_A1)
	internal := uint32(gl.UNSIGNED_SHORT_1_5_5_5_REV)
	if u.Indexed {
		format = gl.RED
		internal = gl.UNSIGNED_BYTE
	}
	gl.TexImage2D(gl.TEXTURE_2D, 0, int32(format), int32(u.Width), int32(u.Height), 0, format, internal, gl.Ptr(u.TexelData))

	if u.Indexed && len(u.Palette) > 0 {
		pal := g.textureFor(uint64(u.CBP))
		gl.BindTexture(gl.TEXTURE_2D, pal)
		gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGB5_A1, int32(len(u.Palette)), 1, 0, gl.RGBA, gl.UNSIGNED_SHORT_1_5_5_5_REV, gl.Ptr(u.Palette))
	}
}

func (g *GL) textureFor(key uint64) uint32 {
	if tex, ok := g.textures[key]; ok {
		return tex
	}
	var tex uint32
	gl.GenTextures(1, &tex)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	g.textures[key] = tex
	return tex
}

// ReadVRAM implements Backend.
func (g *GL) ReadVRAM(x, y, w, h int, out []uint16) {
	gl.BindFramebuffer(gl.FRAMEBUFFER, g.fbo)
	gl.ReadPixels(int32(x), int32(y), int32(w), int32(h), gl.RGBA, gl.UNSIGNED_SHORT_1_5_5_5_REV, gl.Ptr(out))
}

// Fence implements Backend: gl.Finish blocks until every previously
// submitted command has retired, matching spec.md §4.10's "waits for
// the kicked DMA to complete" requirement before a direct readback.
func (g *GL) Fence() {
	gl.Finish()
}

var _ Backend = (*GL)(nil)
