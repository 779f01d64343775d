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

package gif_test

import (
	"testing"

	"github.com/gopsx/gopsx/hardware/gpu/gif"
	"github.com/gopsx/gopsx/hardware/gpu/rasterizer"
	"github.com/gopsx/gopsx/test"
)

func TestAppendQueuesOnActiveRing(t *testing.T) {
	b := rasterizer.NewRecord()
	g := gif.New(b)

	g.Append(func(rasterizer.Backend) {})
	test.ExpectEquality(t, g.Pending(), 1)
}

func TestFlushDrainsAndSwapsRing(t *testing.T) {
	b := rasterizer.NewRecord()
	g := gif.New(b)

	ran := false
	g.Append(func(rasterizer.Backend) { ran = true })
	g.Flush()

	test.ExpectSuccess(t, ran)
	test.ExpectEquality(t, g.Pending(), 0)
	test.ExpectEquality(t, g.Flushes, 1)
}

func TestFlushSyncFencesBackend(t *testing.T) {
	b := rasterizer.NewRecord()
	g := gif.New(b)

	g.Append(func(backend rasterizer.Backend) {
		backend.Submit(rasterizer.Primitive{})
	})
	g.FlushSync()

	test.ExpectEquality(t, len(b.Primitives), 1)
	test.ExpectEquality(t, b.Fences, 1)
	test.ExpectEquality(t, g.SyncFlushes, 1)
}

func TestSwappedRingIsIndependentOfPriorFill(t *testing.T) {
	b := rasterizer.NewRecord()
	g := gif.New(b)

	g.Append(func(rasterizer.Backend) {})
	g.Flush()

	// the ring now active is the other one, and starts empty.
	test.ExpectEquality(t, g.Pending(), 0)
	g.Append(func(rasterizer.Backend) {})
	test.ExpectEquality(t, g.Pending(), 1)
}
