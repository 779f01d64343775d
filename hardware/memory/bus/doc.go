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

// Package bus defines the access patterns shared by everything that
// touches guest memory: the interpreter, the dynarec-emitted fast and
// slow paths, and DMA. Restricting every caller to the Bus interface
// means the CPU, the dynarec and DMA never need to know whether a given
// address resolves to RAM, BIOS, scratchpad or a hardware register.
//
// DebuggerBus is for the exclusive use of the debug overlay and the
// "-vramdump"-style tooling; it bypasses cache-isolation and alignment
// checks that the normal Bus methods enforce.
package bus
