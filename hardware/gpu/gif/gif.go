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

// Package gif is the command interface between the emitted packet
// stream (primitive/texcache) and the host rasterizer: a
// double-buffered ring per spec.md §4.10, so the CPU can keep appending
// operations to one ring while the "DMA" (in this single-threaded
// emulator, a synchronous drain against the rasterizer backend) retires
// the other.
package gif

import "github.com/gopsx/gopsx/hardware/gpu/rasterizer"

// Operation is one queued unit of rasterizer work: a primitive submit,
// a texture upload, or a scissor change, closed over its arguments so
// the ring can hold a single homogeneous slice.
type Operation func(rasterizer.Backend)

// Ring is a single packet buffer.
type Ring struct {
	ops []Operation
}

// Append queues op.
func (r *Ring) Append(op Operation) {
	r.ops = append(r.ops, op)
}

// Len reports the number of queued operations.
func (r *Ring) Len() int {
	return len(r.ops)
}

// drain runs every queued operation against b and empties the ring.
func (r *Ring) drain(b rasterizer.Backend) {
	for _, op := range r.ops {
		op(b)
	}
	r.ops = r.ops[:0]
}

// Batcher owns the two rings and the backend they target.
type Batcher struct {
	rings   [2]Ring
	active  int
	backend rasterizer.Backend

	Flushes     int
	SyncFlushes int
}

// New returns a Batcher appending to ring 0, draining against backend.
func New(backend rasterizer.Backend) *Batcher {
	return &Batcher{backend: backend}
}

// Append queues op on the currently-active ring.
func (g *Batcher) Append(op Operation) {
	g.rings[g.active].Append(op)
}

// Pending reports how many operations are queued on the active ring.
func (g *Batcher) Pending() int {
	return g.rings[g.active].Len()
}

// Flush drains the active ring against the backend (the "kick", and,
// since this emulator has no real asynchronous DMA engine, also the
// "wait for it to drain") and swaps to the other ring. A real
// CPU-cache writeback of the filled region has no analogue here: the
// guest's packet data already lives in the host Go slice the Operation
// closures captured, so there is nothing stale to flush back.
func (g *Batcher) Flush() {
	g.rings[g.active].drain(g.backend)
	g.active = 1 - g.active
	g.Flushes++
}

// FlushSync is Flush plus a backend Fence, required before any direct
// rasterizer-memory readback per spec.md §4.10 (CPU<-VRAM transfers,
// the debug VRAM dump).
func (g *Batcher) FlushSync() {
	g.Flush()
	g.backend.Fence()
	g.SyncFlushes++
}
