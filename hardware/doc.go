// Package hardware collects the guest PSX subsystems: the CPU (cpu/mips
// decode, cpu/registers state, cpu/interpreter and dynarec execution),
// the GTE coprocessor, the GPU, the physical memory map and the
// scheduler. emulation.Machine is the owning container that wires these
// packages together and drives them from one goroutine; this package
// and its sub-packages hold no machine-level state of their own.
package hardware

