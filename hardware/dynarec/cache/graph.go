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

package cache

import (
	"io"

	"github.com/bradleyjkemp/memviz"
)

// DumpGraph renders the cache's page table, hash table and pending
// patch sites as a Graphviz .dot file. It exists purely as a developer
// aid for chasing down direct-link bugs (a patch site that never
// resolves, a page whose generation is bumped more than the stores
// into it would explain); nothing in the emulator's normal run loop
// calls it.
func (c *Cache) DumpGraph(w io.Writer) {
	memviz.Map(w, c)
}
