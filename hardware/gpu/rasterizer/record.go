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

// Record is a headless Backend that keeps its own 1024x512 pixel
// buffer in host memory and records every call it receives, so the
// texture-cache and primitive-translator packages can be exercised by
// package tests with no live GL context (see SPEC_FULL.md §4.9).
type Record struct {
	Scissors  []Scissor
	Primitives []Primitive
	Uploads   []TextureUpload
	Fences    int

	pixels [512][1024]uint16
}

// NewRecord returns an empty Record.
func NewRecord() *Record {
	return &Record{}
}

// SetScissor implements Backend.
func (r *Record) SetScissor(s Scissor) {
	r.Scissors = append(r.Scissors, s)
}

// Submit implements Backend.
func (r *Record) Submit(p Primitive) {
	r.Primitives = append(r.Primitives, p)
}

// Upload implements Backend, recording u for inspection. It does not
// touch Record's pixel buffer: callers that need ReadVRAM to see
// specific pixel values should use WritePixel directly.
func (r *Record) Upload(u TextureUpload) {
	r.Uploads = append(r.Uploads, u)
}

// WritePixel directly pokes the recording backend's host pixel buffer,
// the moral equivalent of a prior Submit having landed there; tests
// use this to set up ReadVRAM fixtures without decoding a Primitive.
func (r *Record) WritePixel(x, y int, v uint16) {
	r.pixels[y%512][x%1024] = v
}

// ReadVRAM implements Backend.
func (r *Record) ReadVRAM(x, y, w, h int, out []uint16) {
	i := 0
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			out[i] = r.pixels[(y+row)%512][(x+col)%1024]
			i++
		}
	}
}

// Fence implements Backend.
func (r *Record) Fence() {
	r.Fences++
}

var _ Backend = (*Record)(nil)
