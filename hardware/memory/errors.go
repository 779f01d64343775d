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

package memory

// Curated error patterns. Callers match against these with curated.Is to
// tell an address-error (which the guest-recoverable exception path
// reifies as an exception) from a genuine host-side bug.
const (
	UnalignedAccess = "memory: unaligned access at address %#08x"
	Unmapped        = "memory: no handler for address %#08x"
)
