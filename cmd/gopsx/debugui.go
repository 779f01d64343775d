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

package main

import (
	"fmt"

	"github.com/go-gl/gl/v3.2-core/gl"
	"github.com/inkyblackness/imgui-go/v4"
	"github.com/veandco/go-sdl2/sdl"

	"github.com/gopsx/gopsx/emulation"
)

// debugUI is a minimal always-available stats overlay: frame counter,
// guest PC and GPU texture-cache hit rate, rendered with dear imgui, mirroring the
// teacher's gui/sdlimgui debug-window convention at a far smaller scale
// appropriate to this spec's "glue" budget (SPEC_FULL.md DOMAIN STACK).
// It owns no emulation state of its own; every frame's numbers are
// pulled fresh from the Machine passed to render.
type debugUI struct {
	window *sdl.Window
	ctx    *imgui.Context

	fontTexture uint32
	vao, vbo, ibo uint32
	shader        uint32
	uProjection   int32

	frames uint64
}

// newDebugUI creates an imgui context and uploads its default font
// atlas as a GL texture. The caller must already have a current GL
// context on window.
func newDebugUI(window *sdl.Window) (*debugUI, error) {
	ctx := imgui.CreateContext(nil)
	io := imgui.CurrentIO()

	dbg := &debugUI{window: window, ctx: ctx}

	pixels, width, height := io.Fonts().TextureDataRGBA32()
	gl.GenTextures(1, &dbg.fontTexture)
	gl.BindTexture(gl.TEXTURE_2D, dbg.fontTexture)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA, int32(width), int32(height), 0, gl.RGBA, gl.UNSIGNED_BYTE, pixels)
	io.Fonts().SetTextureID(imgui.TextureID(dbg.fontTexture))

	gl.GenVertexArrays(1, &dbg.vao)
	gl.GenBuffers(1, &dbg.vbo)
	gl.GenBuffers(1, &dbg.ibo)

	prog, err := newOverlayShader()
	if err != nil {
		return nil, err
	}
	dbg.shader = prog
	dbg.uProjection = gl.GetUniformLocation(prog, gl.Str("uProjection\x00"))

	return dbg, nil
}

func (d *debugUI) destroy() {
	gl.DeleteTextures(1, &d.fontTexture)
	gl.DeleteVertexArrays(1, &d.vao)
	gl.DeleteBuffers(1, &d.vbo)
	gl.DeleteBuffers(1, &d.ibo)
	gl.DeleteProgram(d.shader)
	d.ctx.Destroy()
}

// render draws one frame of the overlay against m's current state,
// compositing on top of whatever the GL rasterizer backend already
// drew into the default framebuffer this frame.
func (d *debugUI) render(m *emulation.Machine) {
	d.frames++

	w, h := d.window.GetSize()
	io := imgui.CurrentIO()
	io.SetDisplaySize(imgui.Vec2{X: float32(w), Y: float32(h)})
	io.SetDeltaTime(1.0 / 60.0)

	imgui.NewFrame()
	imgui.Begin("gopsx stats")
	imgui.Text(fmt.Sprintf("frame %d  pc %#08x", d.frames, m.PC()))
	hits, misses := m.GPU().CacheStats()
	total := hits + misses
	rate := 0.0
	if total > 0 {
		rate = 100.0 * float64(hits) / float64(total)
	}
	imgui.Text(fmt.Sprintf("texcache hit rate %.1f%% (%d/%d)", rate, hits, total))
	imgui.End()
	imgui.Render()

	d.draw(imgui.RenderedDrawData(), w, h)
}

// draw walks dd's per-frame vertex/index buffers and issues one GL draw
// call per imgui draw command, the same translation the teacher's
// gui/sdlimgui renderer performs at a larger scale; texture binding
// beyond the font atlas (imgui widgets referencing a guest texture) is
// not needed by this overlay's Text-only content.
func (d *debugUI) draw(dd imgui.DrawData, displayW, displayH int) {
	if displayW <= 0 || displayH <= 0 {
		return
	}

	gl.Enable(gl.BLEND)
	gl.BlendEquation(gl.FUNC_ADD)
	gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
	gl.Disable(gl.CULL_FACE)
	gl.Disable(gl.DEPTH_TEST)
	gl.Enable(gl.SCISSOR_TEST)
	gl.Viewport(0, 0, int32(displayW), int32(displayH))

	ortho := orthoProjection(float32(displayW), float32(displayH))
	gl.UseProgram(d.shader)
	gl.UniformMatrix4fv(d.uProjection, 1, false, &ortho[0])

	gl.BindVertexArray(d.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, d.vbo)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, d.ibo)
	gl.EnableVertexAttribArray(0)
	gl.EnableVertexAttribArray(1)
	gl.EnableVertexAttribArray(2)
	vertexSize, vertexOffsetPos, vertexOffsetUV, vertexOffsetCol := imgui.VertexBufferLayout()
	gl.VertexAttribPointer(0, 2, gl.FLOAT, false, int32(vertexSize), gl.PtrOffset(vertexOffsetPos))
	gl.VertexAttribPointer(1, 2, gl.FLOAT, false, int32(vertexSize), gl.PtrOffset(vertexOffsetUV))
	gl.VertexAttribPointer(2, 4, gl.UNSIGNED_BYTE, true, int32(vertexSize), gl.PtrOffset(vertexOffsetCol))

	indexSize := imgui.IndexBufferLayout()

	for _, cmdList := range dd.CommandLists() {
		vbData, vbLen := cmdList.VertexBuffer()
		gl.BufferData(gl.ARRAY_BUFFER, vbLen, vbData, gl.STREAM_DRAW)
		ibData, ibLen := cmdList.IndexBuffer()
		gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, ibLen, ibData, gl.STREAM_DRAW)

		indexOffset := 0
		for _, cmd := range cmdList.Commands() {
			if cmd.HasUserCallback() {
				continue
			}
			clip := cmd.ClipRect()
			gl.Scissor(int32(clip.X), int32(float32(displayH)-clip.W), int32(clip.Z-clip.X), int32(clip.W-clip.Y))
			gl.BindTexture(gl.TEXTURE_2D, uint32(cmd.TextureID()))
			gl.DrawElements(gl.TRIANGLES, int32(cmd.ElementCount()), gl.UNSIGNED_SHORT, gl.PtrOffset(indexOffset))
			indexOffset += cmd.ElementCount() * indexSize
		}
	}

	gl.Disable(gl.SCISSOR_TEST)
	gl.BindVertexArray(0)
}

// orthoProjection builds the pixel-space orthographic matrix dear
// imgui's vertex positions are specified in.
func orthoProjection(w, h float32) [16]float32 {
	return [16]float32{
		2 / w, 0, 0, 0,
		0, -2 / h, 0, 0,
		0, 0, -1, 0,
		-1, 1, 0, 1,
	}
}

const overlayVertexShader = `#version 150
uniform mat4 uProjection;
in vec2 Position;
in vec2 UV;
in vec4 Color;
out vec2 fragUV;
out vec4 fragColor;
void main() {
	fragUV = UV;
	fragColor = Color;
	gl_Position = uProjection * vec4(Position.xy, 0, 1);
}
` + "\x00"

const overlayFragmentShader = `#version 150
uniform sampler2D Texture;
in vec2 fragUV;
in vec4 fragColor;
out vec4 outColor;
void main() {
	outColor = fragColor * texture(Texture, fragUV.st);
}
` + "\x00"

func newOverlayShader() (uint32, error) {
	compile := func(src string, kind uint32) (uint32, error) {
		s := gl.CreateShader(kind)
		csrc, free := gl.Strs(src)
		defer free()
		length := int32(len(src) - 1)
		gl.ShaderSource(s, 1, csrc, &length)
		gl.CompileShader(s)
		var status int32
		gl.GetShaderiv(s, gl.COMPILE_STATUS, &status)
		if status == gl.FALSE {
			var logLen int32
			gl.GetShaderiv(s, gl.INFO_LOG_LENGTH, &logLen)
			log := make([]byte, logLen+1)
			gl.GetShaderInfoLog(s, logLen, nil, &log[0])
			return 0, fmt.Errorf("gopsx: overlay shader compile failed: %s", string(log))
		}
		return s, nil
	}

	vs, err := compile(overlayVertexShader, gl.VERTEX_SHADER)
	if err != nil {
		return 0, err
	}
	fs, err := compile(overlayFragmentShader, gl.FRAGMENT_SHADER)
	if err != nil {
		return 0, err
	}

	prog := gl.CreateProgram()
	gl.AttachShader(prog, vs)
	gl.AttachShader(prog, fs)
	gl.BindAttribLocation(prog, 0, gl.Str("Position\x00"))
	gl.BindAttribLocation(prog, 1, gl.Str("UV\x00"))
	gl.BindAttribLocation(prog, 2, gl.Str("Color\x00"))
	gl.LinkProgram(prog)
	gl.DeleteShader(vs)
	gl.DeleteShader(fs)

	var status int32
	gl.GetProgramiv(prog, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		return 0, fmt.Errorf("gopsx: overlay shader link failed")
	}
	return prog, nil
}
