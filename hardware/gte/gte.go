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

// Package gte models the timing behaviour of the guest's coprocessor-2
// geometry engine: a pipelined functional unit separate from the
// integer core whose results aren't available to MFC2/CFC2 for a
// fixed, opcode-dependent number of cycles. The dynarec's emitter and
// the reference interpreter both consult this package to charge the
// same interlock stalls; neither actually implements the engine's
// floating-point-in-fixed-point matrix/vector math, since nothing in
// this repository renders the perspective-correct geometry that math
// would feed.
package gte

// Command is a GTE compute opcode's 6-bit "real command number" (the
// low 6 bits of a COP2 instruction word whose CO bit, bit 25, is set).
type Command uint32

// Recognised GTE compute commands and their pipeline latency in guest
// cycles. Reused verbatim from the hardware test harness the spec
// traces to: latencies are empirical, not derived from a model of the
// engine's internal stages, and re-deriving them would only introduce
// drift from real hardware.
const (
	CmdRTPS  Command = 0x01
	CmdNCLIP Command = 0x06
	CmdOP    Command = 0x0c
	CmdDPCS  Command = 0x10
	CmdINTPL Command = 0x11
	CmdMVMVA Command = 0x12
	CmdNCDS  Command = 0x13
	CmdCDP   Command = 0x14
	CmdNCDT  Command = 0x16
	CmdNCCS  Command = 0x1b
	CmdCC    Command = 0x1c
	CmdNCS   Command = 0x1e
	CmdNCT   Command = 0x20
	CmdSQR   Command = 0x28
	CmdDCPL  Command = 0x29
	CmdDPCT  Command = 0x2a
	CmdAVSZ3 Command = 0x2d
	CmdAVSZ4 Command = 0x2e
	CmdRTPT  Command = 0x30
	CmdGPF   Command = 0x3d
	CmdGPL   Command = 0x3e
	CmdNCCT  Command = 0x3f
)

var latency = map[Command]int{
	CmdRTPS:  15,
	CmdNCLIP: 8,
	CmdOP:    6,
	CmdDPCS:  8,
	CmdINTPL: 8,
	CmdMVMVA: 8,
	CmdNCDS:  19,
	CmdCDP:   13,
	CmdNCDT:  44,
	CmdNCCS:  17,
	CmdCC:    11,
	CmdNCS:   14,
	CmdNCT:   30,
	CmdSQR:   5,
	CmdDCPL:  8,
	CmdDPCT:  17,
	CmdAVSZ3: 5,
	CmdAVSZ4: 6,
	CmdRTPT:  23,
	CmdGPF:   5,
	CmdGPL:   5,
	CmdNCCT:  39,
}

// Latency reports the pipeline latency of a GTE compute command. An
// unrecognised command (one the table has no entry for) returns 0,
// false; callers should treat that as "not a GTE compute opcode", not
// "a free one".
func Latency(c Command) (int, bool) {
	l, ok := latency[c]
	return l, ok
}

// Pipeline tracks the guest-cycle countdown until the GTE's
// in-progress computation's result becomes safe to read, per spec:
// a register read issued while the countdown is still positive stalls
// the CPU for countdown+1 cycles and then clears it, and a new compute
// issued while busy stalls the same way before starting the new one.
type Pipeline struct {
	Countdown int
}

// NewPipeline returns an idle pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{}
}

// Tick decrements the countdown by one instruction's worth, floored at
// zero. Call once per non-GTE-issuing instruction the block executes.
func (p *Pipeline) Tick() {
	if p.Countdown > 0 {
		p.Countdown--
	}
}

// BeginCompute starts command c, returning any interlock stall
// incurred because a previous compute was still in flight. The
// pipeline's countdown is set to c's latency regardless of whether c
// is recognised (an unrecognised command contributes no stall and no
// delay, per Latency's false-ok contract).
func (p *Pipeline) BeginCompute(c Command) int {
	stall := p.drain()
	l, _ := Latency(c)
	p.Countdown = l
	return stall
}

// ReadResult reports the interlock stall incurred by a register read
// (move-from or control-move-from) issued right now, and drains the
// pipeline so a second read in a row costs nothing further.
func (p *Pipeline) ReadResult() int {
	return p.drain()
}

// drain charges and clears an in-flight compute's remaining countdown,
// per spec's "add countdown+1 to cumulative cycles and zero it".
func (p *Pipeline) drain() int {
	if p.Countdown <= 0 {
		return 0
	}
	stall := p.Countdown + 1
	p.Countdown = 0
	return stall
}
