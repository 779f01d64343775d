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

// Package emulation is the owning container: it wires the CPU
// interpreter, GTE pipeline, guest memory, GPU engine, controller and
// scheduler into one Machine and drives them forward one host frame at
// a time. It plays the role the teacher's hardware.VCS played for the
// Atari 2600, restructured around the PSX's boot sequence (a BIOS ROM
// plus an optional disc- or file-loaded PS-X EXE) and its VBlank/GIF-flush
// cadence rather than a per-scanline TIA tick.
package emulation

import (
	"os"

	"github.com/gopsx/gopsx/controller"
	"github.com/gopsx/gopsx/curated"
	"github.com/gopsx/gopsx/disc/image"
	"github.com/gopsx/gopsx/disc/iso9660"
	"github.com/gopsx/gopsx/hardware/clocks"
	"github.com/gopsx/gopsx/hardware/cpu/interpreter"
	"github.com/gopsx/gopsx/hardware/cpu/registers"
	"github.com/gopsx/gopsx/hardware/gpu"
	"github.com/gopsx/gopsx/hardware/gpu/rasterizer"
	"github.com/gopsx/gopsx/hardware/gte"
	"github.com/gopsx/gopsx/hardware/memory"
	"github.com/gopsx/gopsx/hardware/sched"
	"github.com/gopsx/gopsx/psxexe"
)

// State indicates the emulation's current run state.
type State int

// List of possible emulation states.
const (
	Initialising State = iota
	Running
	Paused
	Ending
)

// biosEntry is the guest reset vector: kseg1's uncached mirror of the
// BIOS ROM's first byte, where real hardware starts fetching after
// power-on.
const biosEntry = 0xbfc0_0000

// vblankSlot names the scheduler slot this package installs for its
// once-per-frame GPU flush.
const vblankSlot = "vblank"

// framesCycles is the guest-cycle budget of one NTSC video frame, the
// unit RunFrame steps against, truncated to whole cycles.
var framesCycles = func() uint64 {
	exact := clocks.CyclesPerScanlineNTSC * clocks.ScanlinesPerFrameNTSC
	return uint64(exact)
}()

// ErrNoBootExecutable reports a disc whose SYSTEM.CNF could not be
// resolved to a loadable boot executable.
const ErrNoBootExecutable = "emulation: could not determine boot executable from %s"

// Machine is the complete PSX emulation: every subsystem spec.md's
// [MODULE] blocks name, wired together and exposed as the single API
// cmd/gopsx drives.
type Machine struct {
	mem         *memory.Memory
	state       *registers.State
	gtePipeline *gte.Pipeline
	interp      *interpreter.Interpreter
	gpu         *gpu.Engine
	pad1        *controller.Pad
	sched       *sched.Scheduler

	runState State
	cycles   uint64
}

// New returns a reset Machine submitting GPU draws to backend.
func New(backend rasterizer.Backend) *Machine {
	m := &Machine{
		mem:         memory.NewMemory(),
		state:       registers.NewState(),
		gtePipeline: gte.NewPipeline(),
		gpu:         gpu.New(backend),
		pad1:        controller.NewPad(),
		sched:       sched.NewScheduler(),
		runState:    Initialising,
	}
	m.interp = interpreter.New(m.state, m.mem, m.gtePipeline)

	// an overlapping register range here would be a wiring bug in this
	// constructor, not a runtime condition a caller could recover from.
	if err := m.mem.Attach(gpu.RegisterFirst, gpu.RegisterLast, m.gpu); err != nil {
		panic(err)
	}
	if err := m.mem.Attach(controller.RegisterFirst, controller.RegisterLast, controller.New(m.pad1)); err != nil {
		panic(err)
	}

	m.Reset()
	m.scheduleVBlank()
	return m
}

// Reset restores the CPU to the guest's power-on entry point, leaving
// RAM, BIOS and the GPU's resident state untouched: a BIOS boot always
// re-initialises its own RAM on the way through POST.
func (m *Machine) Reset() {
	m.SetPC(biosEntry)
	m.runState = Running
}

// LoadBIOS copies data into the guest's BIOS ROM, truncating or
// zero-padding to the ROM's fixed size.
func (m *Machine) LoadBIOS(data []byte) {
	copy(m.mem.BIOS(), data)
}

// LoadBIOSFile reads path and installs it as the BIOS image.
func (m *Machine) LoadBIOSFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return curated.Errorf("emulation: failed to read BIOS file %s", path)
	}
	m.LoadBIOS(data)
	return nil
}

// RAM implements psxexe.Loader.
func (m *Machine) RAM() []byte {
	return m.mem.RAM()
}

// SetGPR implements psxexe.Loader.
func (m *Machine) SetGPR(i int, v uint32) {
	m.state.SetGPR(i, v)
}

// SetPC implements psxexe.Loader, keeping registers.State's PC field
// (inspected by the debug UI) and the interpreter's own fetch cursor in
// lockstep.
func (m *Machine) SetPC(pc uint32) {
	m.state.PC = pc
	m.interp.SetPC(pc)
}

// BootFile loads a bare PS-X EXE file at path directly, bypassing any
// disc image entirely, per spec.md §6's supplementary boot path for
// running a homebrew/test executable without a disc.
func (m *Machine) BootFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return curated.Errorf("emulation: failed to read executable %s", path)
	}
	exe, err := psxexe.Parse(data)
	if err != nil {
		return err
	}
	return psxexe.Load(exe, m)
}

// BootDisc opens the disc image at path, locates its SYSTEM.CNF boot
// executable via ISO-9660, loads the PS-X EXE it names and primes the
// CPU to start executing it, per spec.md §6's disc-boot sequence.
//
// This bypasses the BIOS's own disc-boot shell and CD-ROM BIOS calls
// entirely, the same simplification the teacher's cartridge loader made
// for the 2600 by skipping the "insert cartridge, let the 6507 reset
// vector do the rest" step the real hardware also goes through.
func (m *Machine) BootDisc(path string) error {
	img, err := image.Open(path)
	if err != nil {
		return err
	}

	vol, err := iso9660.Open(img)
	if err != nil {
		return err
	}

	cnfEntry, err := vol.Find("SYSTEM.CNF")
	if err != nil {
		return curated.Errorf(ErrNoBootExecutable, path)
	}
	cnf, err := iso9660.ReadFile(img, cnfEntry)
	if err != nil {
		return err
	}

	bootPath, err := iso9660.BootPath(cnf)
	if err != nil {
		return err
	}

	exeEntry, err := vol.Find(bootPath)
	if err != nil {
		return err
	}
	exeData, err := iso9660.ReadFile(img, exeEntry)
	if err != nil {
		return err
	}

	exe, err := psxexe.Parse(exeData)
	if err != nil {
		return err
	}
	return psxexe.Load(exe, m)
}

// Pad1 returns the first controller's button-state sink, for
// cmd/gopsx's input handling to drive.
func (m *Machine) Pad1() *controller.Pad {
	return m.pad1
}

// State reports the emulation's current run state.
func (m *Machine) State() State {
	return m.runState
}

// Pause sets or clears the paused run state.
func (m *Machine) Pause(set bool) {
	if set {
		m.runState = Paused
	} else {
		m.runState = Running
	}
}

// PC reports the guest program counter the interpreter will execute
// next, for the debug UI.
func (m *Machine) PC() uint32 {
	return m.interp.PC()
}

// Registers exposes the CPU's architectural state for the debug UI; it
// is not copied, so a caller must not mutate it concurrently with Step.
func (m *Machine) Registers() *registers.State {
	return m.state
}

// GPU exposes the GPU engine for the debug UI's VRAM dump.
func (m *Machine) GPU() *gpu.Engine {
	return m.gpu
}

// Memory exposes the guest address space for bus.DebuggerBus-style
// peek/poke inspection.
func (m *Machine) Memory() *memory.Memory {
	return m.mem
}

// Step executes exactly one guest instruction and advances the
// scheduler by the cycles it consumed, dispatching any device whose
// deadline has now been reached (currently just VBlank's GIF flush).
func (m *Machine) Step() int {
	m.gtePipeline.Tick()
	cycles := m.interp.Step()
	m.cycles += uint64(cycles)
	m.sched.Dispatch(m.cycles)
	return cycles
}

// RunFrame steps the CPU until a full video frame's worth of guest
// cycles have run (at least one VBlank will have been dispatched along
// the way); this is the unit cmd/gopsx's run loop drives once per host
// frame.
func (m *Machine) RunFrame() {
	target := m.cycles + framesCycles
	for m.cycles < target && m.runState == Running {
		m.Step()
	}
}

// scheduleVBlank installs the recurring VBlank slot that flushes the
// GPU's batched draw commands once per video frame, per spec.md §4.10:
// without a GIF flush boundary, primitives would queue forever and
// never reach the rasterizer.
func (m *Machine) scheduleVBlank() {
	var tick sched.Callback
	tick = func() {
		m.gpu.Flush()
		_ = m.sched.Schedule(vblankSlot, m.cycles+framesCycles, tick)
	}
	_ = m.sched.Schedule(vblankSlot, framesCycles, tick)
}

var _ psxexe.Loader = (*Machine)(nil)
