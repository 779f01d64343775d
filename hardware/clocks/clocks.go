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

// Package clocks defines the constant values that define the speed of
// the guest's clock domains. The scheduler and the dynarec's cycle
// accounting are both expressed in CPU clocks; these constants let the
// glue layer convert that to wall-clock and video timing without every
// package carrying its own copy of the numbers.
package clocks

// CPU is the MIPS core clock rate, in MHz.
const CPU = 33.8688

// GPUDotClockNTSC and GPUDotClockPAL are the GPU's pixel clock rates, in
// MHz, for the two video standards. The ratio of CPU clocks to GPU dot
// clocks governs VBlank/HBlank scheduling.
const (
	GPUDotClockNTSC = 53.69
	GPUDotClockPAL  = 53.2032
)

// CyclesPerScanline and ScanlinesPerFrame approximate the guest's video
// timing closely enough to drive the scheduler's VBlank event; the
// dynarec's cycle-accurate budget comes from per-opcode cost tables, not
// from this package.
const (
	CyclesPerScanlineNTSC = CPU * 1_000_000 / (15734) // NTSC horizontal rate, Hz
	ScanlinesPerFrameNTSC = 263
	CyclesPerScanlinePAL  = CPU * 1_000_000 / (15625) // PAL horizontal rate, Hz
	ScanlinesPerFramePAL  = 314
)
