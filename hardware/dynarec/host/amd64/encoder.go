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

// Package amd64 is the dynarec's only host.Encoder implementation: a
// minimal System-V amd64 instruction encoder covering exactly the
// instruction shapes the emitter needs (register-width load/store,
// two-operand integer ALU ops, masking, and the jump/call/ret family
// used for block epilogues and trampolines). It is not a general
// assembler; instructions outside that set have no encoding here.
package amd64

import "github.com/gopsx/gopsx/hardware/dynarec/host"

// General-purpose register numbers, in the Intel encoding order
// extended registers come after (requiring a REX.B/.R/.X bit). All
// sixteen are named here; the emitter's calling convention uses only a
// few of them.
const (
	RAX host.Reg = 0
	RCX host.Reg = 1
	RDX host.Reg = 2
	RBX host.Reg = 3
	RSP host.Reg = 4
	RBP host.Reg = 5
	RSI host.Reg = 6
	RDI host.Reg = 7
	R8  host.Reg = 8
	R9  host.Reg = 9
	R10 host.Reg = 10
	R11 host.Reg = 11
	R12 host.Reg = 12
	R13 host.Reg = 13
	R14 host.Reg = 14
	R15 host.Reg = 15
)

// Encoder implements host.Encoder for amd64.
type Encoder struct{}

// New returns an amd64 Encoder. Stateless: every method is a pure
// function of its arguments.
func New() *Encoder { return &Encoder{} }

// rex builds a REX prefix byte. w selects the 64-bit operand size; r,
// x, b are the high bit of the reg/index/rm fields respectively.
func rex(w bool, r, x, b host.Reg) byte {
	var p byte = 0x40
	if w {
		p |= 0x08
	}
	if r&0x8 != 0 {
		p |= 0x04
	}
	if x&0x8 != 0 {
		p |= 0x02
	}
	if b&0x8 != 0 {
		p |= 0x01
	}
	return p
}

// modrm builds a ModRM byte for mod=mode, reg field = reg, rm field = rm
// (low 3 bits of each register operand; the REX prefix supplies the
// high bit separately).
func modrm(mode byte, reg, rm host.Reg) byte {
	return mode<<6 | byte(reg&7)<<3 | byte(rm&7)
}

func le32(v int32) []byte {
	u := uint32(v)
	return []byte{byte(u), byte(u >> 8), byte(u >> 16), byte(u >> 24)}
}

func le64(v uint64) []byte {
	return []byte{
		byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24),
		byte(v >> 32), byte(v >> 40), byte(v >> 48), byte(v >> 56),
	}
}

// MovRegImm64 encodes `movabs reg, imm64` (REX.W + B8+r + imm64).
func (Encoder) MovRegImm64(reg host.Reg, imm uint64) []byte {
	code := []byte{rex(true, 0, 0, reg), 0xb8 + byte(reg&7)}
	return append(code, le64(imm)...)
}

// sibNeeded reports whether base needs a SIB byte in a [base+disp32]
// operand. Such operands always use the disp32 form (mod=10) for
// simplicity: a disp8 form would save bytes but the emitter never needs
// the code to be minimal-size, only correct and easy to reason about.
// RSP/R12 as a base require a SIB byte (their rm encoding is overloaded
// to mean "SIB follows"), which the callers append when this is true.
func sibNeeded(base host.Reg) bool {
	return base&7 == 4 // RSP or R12
}

// MovRegMem encodes a load of width bytes from [base+disp] into reg,
// zero-extending to the full register width. width must be 1, 2, or 4.
func (Encoder) MovRegMem(reg, base host.Reg, disp int32, width int) []byte {
	var code []byte
	switch width {
	case 1:
		// movzx reg32, byte [base+disp32]: 0F B6 /r
		code = append(code, rex(false, reg, 0, base), 0x0f, 0xb6)
	case 2:
		// movzx reg32, word [base+disp32]: 0F B7 /r
		code = append(code, rex(false, reg, 0, base), 0x0f, 0xb7)
	case 4:
		// mov reg32, dword [base+disp32]: 8B /r
		code = append(code, rex(false, reg, 0, base), 0x8b)
	default:
		panic("amd64: unsupported load width")
	}
	code = append(code, modrm(0x02, reg, base))
	if sibNeeded(base) {
		code = append(code, 0x24) // SIB: scale=0, index=none, base=base
	}
	code = append(code, le32(disp)...)
	return code
}

// MovMemReg encodes a store of the low width bytes of reg to
// [base+disp]. width must be 1, 2, or 4.
func (Encoder) MovMemReg(base host.Reg, disp int32, reg host.Reg, width int) []byte {
	var code []byte
	switch width {
	case 1:
		code = append(code, rex(false, reg, 0, base), 0x88) // mov byte [m], r8
	case 2:
		code = append(code, 0x66, rex(false, reg, 0, base), 0x89) // operand-size prefix + mov word
	case 4:
		code = append(code, rex(false, reg, 0, base), 0x89) // mov dword [m], r32
	default:
		panic("amd64: unsupported store width")
	}
	code = append(code, modrm(0x02, reg, base))
	if sibNeeded(base) {
		code = append(code, 0x24)
	}
	code = append(code, le32(disp)...)
	return code
}

// sibIndexed builds a [base+index*1] ModRM+SIB pair (mod=00, rm=100
// "SIB follows", SIB scale=00, index=index, base=base). This addressing
// mode has no disp8/disp32 field, matching every dynarec memory-fast-path
// access: the guest address is always computed into index beforehand,
// with base fixed at the pinned RAM-region host register.
func sibIndexed(reg, base, index host.Reg) []byte {
	return []byte{modrm(0x00, reg, 4), byte(0)<<6 | byte(index&7)<<3 | byte(base&7)}
}

// MovRegMemIndexed encodes a zero-extending load from [base+index].
func (Encoder) MovRegMemIndexed(reg, base, index host.Reg, width int) []byte {
	var code []byte
	switch width {
	case 1:
		code = append(code, rex(false, reg, index, base), 0x0f, 0xb6)
	case 2:
		code = append(code, rex(false, reg, index, base), 0x0f, 0xb7)
	case 4:
		code = append(code, rex(false, reg, index, base), 0x8b)
	default:
		panic("amd64: unsupported load width")
	}
	return append(code, sibIndexed(reg, base, index)...)
}

// MovMemIndexedReg encodes a store to [base+index].
func (Encoder) MovMemIndexedReg(base, index, reg host.Reg, width int) []byte {
	var code []byte
	switch width {
	case 1:
		code = append(code, rex(false, reg, index, base), 0x88)
	case 2:
		code = append(code, 0x66, rex(false, reg, index, base), 0x89)
	case 4:
		code = append(code, rex(false, reg, index, base), 0x89)
	default:
		panic("amd64: unsupported store width")
	}
	return append(code, sibIndexed(reg, base, index)...)
}

var aluOpcode = map[host.ALUOp]byte{
	host.OpAdd: 0x01,
	host.OpSub: 0x29,
	host.OpAnd: 0x21,
	host.OpOr:  0x09,
	host.OpXor: 0x31,
	host.OpCmp: 0x39,
}

var aluOpcodeImm = map[host.ALUOp]byte{
	host.OpAdd: 0x00,
	host.OpSub: 0x05,
	host.OpAnd: 0x04,
	host.OpOr:  0x01,
	host.OpXor: 0x06,
	host.OpCmp: 0x07,
}

// ALURegReg encodes `op dst, src` (32-bit operand size): ADD/SUB/AND/OR/
// XOR/CMP /r, dst <- dst op src.
func (Encoder) ALURegReg(op host.ALUOp, dst, src host.Reg) []byte {
	opcode, ok := aluOpcode[op]
	if !ok {
		panic("amd64: unsupported ALU op")
	}
	return []byte{rex(false, src, 0, dst), opcode, modrm(0x03, src, dst)}
}

// ALURegImm32 encodes `op dst, imm32` (81 /n id form).
func (Encoder) ALURegImm32(op host.ALUOp, dst host.Reg, imm int32) []byte {
	ext, ok := aluOpcodeImm[op]
	if !ok {
		panic("amd64: unsupported ALU op")
	}
	code := []byte{rex(false, 0, 0, dst), 0x81, modrm(0x03, host.Reg(ext), dst)}
	return append(code, le32(imm)...)
}

// AndRegImm32 encodes `and reg, imm32`.
func (e Encoder) AndRegImm32(reg host.Reg, imm uint32) []byte {
	return e.ALURegImm32(host.OpAnd, reg, int32(imm))
}

// Jmp encodes a near relative jump (E9 rel32) with a zero placeholder
// displacement; the 4-byte field starts at offset 1.
func (Encoder) Jmp() ([]byte, int) {
	return []byte{0xe9, 0, 0, 0, 0}, 1
}

var ccCode = map[host.Condition]byte{
	host.CondEqual:          0x84,
	host.CondNotEqual:       0x85,
	host.CondLess:           0x8c,
	host.CondLessOrEqual:    0x8e,
	host.CondGreater:        0x8f,
	host.CondGreaterOrEqual: 0x8d,
	host.CondBelow:          0x82,
}

// Jcc encodes a near conditional jump (0F 8x rel32); the 4-byte field
// starts at offset 2.
func (Encoder) Jcc(cc host.Condition) ([]byte, int) {
	code, ok := ccCode[cc]
	if !ok {
		panic("amd64: unsupported condition")
	}
	return []byte{0x0f, code, 0, 0, 0, 0}, 2
}

// Call encodes a near relative call (E8 rel32); the 4-byte field starts
// at offset 1.
func (Encoder) Call() ([]byte, int) {
	return []byte{0xe8, 0, 0, 0, 0}, 1
}

// Ret encodes a near return (C3).
func (Encoder) Ret() []byte { return []byte{0xc3} }

// Nop encodes a single-byte no-op (90).
func (Encoder) Nop() []byte { return []byte{0x90} }
