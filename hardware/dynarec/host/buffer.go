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

// Package host is the dynarec's arch-facing layer: a growable code
// buffer that collects native instruction bytes as the emitter walks a
// scanned block, the executable-memory arena those bytes eventually
// live in, and the amd64 encoder (see the amd64 subpackage) that turns
// instruction-level calls into bytes. The emit package never pokes at
// raw bytes directly; it calls Buffer's typed helpers, which forward to
// the architecture encoder so a second host architecture could be added
// without touching emit.
package host

// Encoder is the architecture-specific instruction encoder a Buffer
// writes through. The amd64 package is the only implementation.
type Encoder interface {
	// MovRegImm64 loads a 64-bit constant into reg.
	MovRegImm64(reg Reg, imm uint64) []byte
	// MovRegMem loads width bytes from [base+disp] into reg, zero-extended.
	MovRegMem(reg, base Reg, disp int32, width int) []byte
	// MovMemReg stores the low width bytes of reg to [base+disp].
	MovMemReg(base Reg, disp int32, reg Reg, width int) []byte
	// MovRegMemIndexed loads width bytes from [base+index] (scale 1,
	// no displacement) into reg, zero-extended. Used for the dynarec's
	// memory fast path, where the guest address is only known at
	// runtime.
	MovRegMemIndexed(reg, base, index Reg, width int) []byte
	// MovMemIndexedReg stores the low width bytes of reg to
	// [base+index] (scale 1, no displacement).
	MovMemIndexedReg(base, index Reg, reg Reg, width int) []byte
	// ALURegReg emits op(dst, src) -> dst for a two-operand integer op.
	ALURegReg(op ALUOp, dst, src Reg) []byte
	// ALURegImm32 emits op(dst, imm) -> dst.
	ALURegImm32(op ALUOp, dst Reg, imm int32) []byte
	// AndRegImm32 masks reg with a 32-bit immediate (used for the
	// guest's 29-bit physical-address mask and similar constants).
	AndRegImm32(reg Reg, imm uint32) []byte
	// Jmp emits a relative jump with a 32-bit displacement placeholder,
	// returning the bytes and the offset within them of the
	// displacement field (for later patching).
	Jmp() (code []byte, dispOffset int)
	// Jcc is Jmp's conditional counterpart.
	Jcc(cc Condition) (code []byte, dispOffset int)
	// Call is Jmp's call counterpart (pushes a return address).
	Call() (code []byte, dispOffset int)
	// Ret emits a near return.
	Ret() []byte
	// Nop emits a single-byte no-op, used to pad patch sites to a
	// fixed, atomically-overwritable width.
	Nop() []byte
}

// Reg is an architecture register number. Its meaning is defined by the
// Encoder implementation in use; emit only ever passes values it got
// back from that same Encoder's register-allocation constants.
type Reg int

// ALUOp names an encoder-independent two-operand integer operation.
type ALUOp int

const (
	OpAdd ALUOp = iota
	OpSub
	OpAnd
	OpOr
	OpXor
	OpCmp
)

// Condition names an encoder-independent branch condition, mapped by
// the encoder onto its native condition codes.
type Condition int

const (
	CondEqual Condition = iota
	CondNotEqual
	CondLess
	CondLessOrEqual
	CondGreater
	CondGreaterOrEqual
	CondBelow // unsigned less-than
)

// Buffer accumulates native code for one translated block. Appended
// bytes are not executable until an Arena copies them in and flips its
// protection (see arena.go); Buffer itself is just a byte-growing
// convenience plus label/patch bookkeeping so the emitter can reference
// forward addresses (block-tail cold paths, deferred-branch targets)
// before it knows their final offset.
type Buffer struct {
	enc  Encoder
	code []byte

	// labels maps a name to the offset within code it was defined at.
	// Names are block-local (e.g. "cold0", "exit") and never escape the
	// Buffer.
	labels map[string]int

	// pending holds patch sites recorded before their label was
	// defined: the byte offset of a 32-bit relative displacement field
	// that must be rewritten once the label resolves.
	pending []pendingPatch
}

type pendingPatch struct {
	label     string
	siteOff   int // offset of the displacement field
	afterInst int // offset of the byte immediately after the instruction
}

// NewBuffer returns an empty Buffer that encodes through enc.
func NewBuffer(enc Encoder) *Buffer {
	return &Buffer{enc: enc, labels: make(map[string]int)}
}

// Len reports the number of bytes emitted so far.
func (b *Buffer) Len() int { return len(b.code) }

// Bytes returns the accumulated code. Valid only after every label
// targeted by Jmp, Jcc or Call has been defined via Label.
func (b *Buffer) Bytes() []byte { return b.code }

func (b *Buffer) emit(code []byte) int {
	off := len(b.code)
	b.code = append(b.code, code...)
	return off
}

// Label records that name refers to the buffer's current write
// position (the next byte to be emitted), and resolves any patch sites
// that were waiting on it.
func (b *Buffer) Label(name string) {
	pos := len(b.code)
	b.labels[name] = pos
	kept := b.pending[:0]
	for _, p := range b.pending {
		if p.label == name {
			rel := int32(pos - p.afterInst)
			putInt32(b.code, p.siteOff, rel)
			continue
		}
		kept = append(kept, p)
	}
	b.pending = kept
}

// jumpTo emits a jump-family instruction (code, with its displacement
// field at dispOffset) targeting label, patching immediately if the label is already defined or
// recording a pending patch otherwise.
func (b *Buffer) jumpTo(label string, code []byte, dispOffset int) {
	instStart := b.emit(code)
	siteOff := instStart + dispOffset
	afterInst := instStart + len(code)
	if pos, ok := b.labels[label]; ok {
		putInt32(b.code, siteOff, int32(pos-afterInst))
		return
	}
	b.pending = append(b.pending, pendingPatch{label: label, siteOff: siteOff, afterInst: afterInst})
}

// Jmp emits an unconditional jump to label.
func (b *Buffer) Jmp(label string) {
	code, off := b.enc.Jmp()
	b.jumpTo(label, code, off)
}

// Jcc emits a conditional jump to label.
func (b *Buffer) Jcc(cc Condition, label string) {
	code, off := b.enc.Jcc(cc)
	b.jumpTo(label, code, off)
}

// Call emits a call to label.
func (b *Buffer) Call(label string) {
	code, off := b.enc.Call()
	b.jumpTo(label, code, off)
}

// MovRegImm64 appends a 64-bit immediate load.
func (b *Buffer) MovRegImm64(reg Reg, imm uint64) { b.emit(b.enc.MovRegImm64(reg, imm)) }

// MovRegMem appends a load.
func (b *Buffer) MovRegMem(reg, base Reg, disp int32, width int) {
	b.emit(b.enc.MovRegMem(reg, base, disp, width))
}

// MovMemReg appends a store.
func (b *Buffer) MovMemReg(base Reg, disp int32, reg Reg, width int) {
	b.emit(b.enc.MovMemReg(base, disp, reg, width))
}

// MovRegMemIndexed appends an indexed load.
func (b *Buffer) MovRegMemIndexed(reg, base, index Reg, width int) {
	b.emit(b.enc.MovRegMemIndexed(reg, base, index, width))
}

// MovMemIndexedReg appends an indexed store.
func (b *Buffer) MovMemIndexedReg(base, index Reg, reg Reg, width int) {
	b.emit(b.enc.MovMemIndexedReg(base, index, reg, width))
}

// ALURegReg appends a register-register ALU op.
func (b *Buffer) ALURegReg(op ALUOp, dst, src Reg) { b.emit(b.enc.ALURegReg(op, dst, src)) }

// ALURegImm32 appends a register-immediate ALU op.
func (b *Buffer) ALURegImm32(op ALUOp, dst Reg, imm int32) {
	b.emit(b.enc.ALURegImm32(op, dst, imm))
}

// AndRegImm32 appends a mask operation.
func (b *Buffer) AndRegImm32(reg Reg, imm uint32) { b.emit(b.enc.AndRegImm32(reg, imm)) }

// Ret appends a return.
func (b *Buffer) Ret() { b.emit(b.enc.Ret()) }

// Nop appends a single no-op byte.
func (b *Buffer) Nop() { b.emit(b.enc.Nop()) }

// JmpExternal emits an unconditional jump whose target is not yet known
// (the target block may not be compiled yet). It returns the
// buffer-local byte offset of the instruction's trailing 32-bit
// displacement field; the cache package retains that offset, and once
// both this block and the target are installed in an Arena, resolves it
// with Arena.PatchRel32.
func (b *Buffer) JmpExternal() (dispOffset int) {
	code, off := b.enc.Jmp()
	instStart := b.emit(code)
	return instStart + off
}

// CallExternal is JmpExternal's call counterpart, used for the abort
// and dispatch trampolines.
func (b *Buffer) CallExternal() (dispOffset int) {
	code, off := b.enc.Call()
	instStart := b.emit(code)
	return instStart + off
}

func putInt32(buf []byte, off int, v int32) {
	buf[off+0] = byte(v)
	buf[off+1] = byte(v >> 8)
	buf[off+2] = byte(v >> 16)
	buf[off+3] = byte(v >> 24)
}
