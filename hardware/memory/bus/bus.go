package bus

// Bus defines the operations for the memory system when accessed from the
// CPU: the interpreter and the dynarec-emitted slow path both go through
// it, and memory.Memory implements it for the whole address space (RAM,
// BIOS, scratchpad and the register dispatch table). Misaligned half/word
// accesses return an error built from memory.UnalignedAccess rather than
// silently truncating the address, so callers can raise the guest's
// address-error exception.
type Bus interface {
	ReadByte(address uint32) (uint8, error)
	ReadHalf(address uint32) (uint16, error)
	ReadWord(address uint32) (uint32, error)

	WriteByte(address uint32, data uint8) error
	WriteHalf(address uint32, data uint16) error
	WriteWord(address uint32, data uint32) error
}

// DebuggerBus defines the meta-operations used by the debug overlay and
// VRAM-dump tooling: operations outside of the normal operation of the
// machine that bypass alignment and cache-isolation checks.
type DebuggerBus interface {
	PeekWord(address uint32) (uint32, error)
	PokeWord(address uint32, data uint32) error
}
