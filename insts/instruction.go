package insts

import (
	"encoding/binary"
	"fmt"
)

// Op is an 8-bit opcode.
type Op uint8

// Opcodes. 0x00 is deliberately unassigned so that zeroed memory never
// decodes to a valid instruction.
const (
	OpAdd     Op = 0x01
	OpSub     Op = 0x02
	OpMul     Op = 0x03
	OpAnd     Op = 0x04
	OpOr      Op = 0x05
	OpXor     Op = 0x06
	OpShl     Op = 0x07
	OpShr     Op = 0x08
	OpShrA    Op = 0x09
	OpAddI    Op = 0x0A
	OpLui     Op = 0x0B
	OpLi      Op = 0x0C
	OpLw      Op = 0x0D
	OpSw      Op = 0x0E
	OpSyscall Op = 0x0F
	OpLh      Op = 0x10
	OpLhu     Op = 0x11
	OpLb      Op = 0x12
	OpLbu     Op = 0x13
	OpSh      Op = 0x14
	OpSb      Op = 0x15
)

// InstructionSize is the size of an encoded instruction in bytes.
const InstructionSize = 4

// String returns the mnemonic of the opcode.
func (op Op) String() string {
	if l, ok := LayoutOf(op); ok {
		return l.Mnemonic
	}
	return fmt.Sprintf("op(0x%02x)", uint8(op))
}

// Instruction is a decoded instruction. Only the fields named by the
// opcode's layout are meaningful; the others stay at their zero value.
//
// For stores Dest is the base address register and Src1 the value stored,
// so that Sw(SP, T0, 0), written `sw t0, 0(sp)`, stores t0 at [sp+0].
type Instruction struct {
	Op   Op
	Dest Register
	Src1 Register
	Src2 Register
	Imm  Immediate
}

// The constructors below panic, like MustImm14 and MustImm19, when an
// operand does not fit the op's layout: an invalid register, or an immediate
// whose width differs from the op's immediate field.

func mustValid(inst Instruction) Instruction {
	if err := inst.Validate(); err != nil {
		panic(err)
	}
	return inst
}

func rrr(op Op, dest, src1, src2 Register) Instruction {
	return mustValid(Instruction{Op: op, Dest: dest, Src1: src1, Src2: src2})
}

func rri(op Op, dest, src Register, imm Immediate) Instruction {
	return mustValid(Instruction{Op: op, Dest: dest, Src1: src, Imm: imm})
}

// Add returns dest = src1 + src2.
func Add(dest, src1, src2 Register) Instruction { return rrr(OpAdd, dest, src1, src2) }

// Sub returns dest = src1 - src2.
func Sub(dest, src1, src2 Register) Instruction { return rrr(OpSub, dest, src1, src2) }

// Mul returns dest = src1 * src2.
func Mul(dest, src1, src2 Register) Instruction { return rrr(OpMul, dest, src1, src2) }

// And returns dest = src1 & src2.
func And(dest, src1, src2 Register) Instruction { return rrr(OpAnd, dest, src1, src2) }

// Or returns dest = src1 | src2.
func Or(dest, src1, src2 Register) Instruction { return rrr(OpOr, dest, src1, src2) }

// Xor returns dest = src1 ^ src2.
func Xor(dest, src1, src2 Register) Instruction { return rrr(OpXor, dest, src1, src2) }

// Shl returns dest = src1 << src2.
func Shl(dest, src1, src2 Register) Instruction { return rrr(OpShl, dest, src1, src2) }

// Shr returns dest = src1 >> src2 (logical).
func Shr(dest, src1, src2 Register) Instruction { return rrr(OpShr, dest, src1, src2) }

// ShrA returns dest = src1 >> src2 (arithmetic).
func ShrA(dest, src1, src2 Register) Instruction { return rrr(OpShrA, dest, src1, src2) }

// AddI returns dest = src + imm.
func AddI(dest, src Register, imm Immediate) Instruction { return rri(OpAddI, dest, src, imm) }

// Lui loads the 19-bit field of imm, zero-extended, into dest.
func Lui(dest Register, imm Immediate) Instruction {
	return mustValid(Instruction{Op: OpLui, Dest: dest, Imm: imm})
}

// Li loads imm, sign-extended, into dest.
func Li(dest Register, imm Immediate) Instruction {
	return mustValid(Instruction{Op: OpLi, Dest: dest, Imm: imm})
}

// Lw loads the word at base+offset into dest.
func Lw(dest, base Register, offset Immediate) Instruction { return rri(OpLw, dest, base, offset) }

// Lh loads the sign-extended halfword at base+offset into dest.
func Lh(dest, base Register, offset Immediate) Instruction { return rri(OpLh, dest, base, offset) }

// Lhu loads the zero-extended halfword at base+offset into dest.
func Lhu(dest, base Register, offset Immediate) Instruction { return rri(OpLhu, dest, base, offset) }

// Lb loads the sign-extended byte at base+offset into dest.
func Lb(dest, base Register, offset Immediate) Instruction { return rri(OpLb, dest, base, offset) }

// Lbu loads the zero-extended byte at base+offset into dest.
func Lbu(dest, base Register, offset Immediate) Instruction { return rri(OpLbu, dest, base, offset) }

// Sw stores src to the word at base+offset.
func Sw(base, src Register, offset Immediate) Instruction { return rri(OpSw, base, src, offset) }

// Sh stores the low halfword of src at base+offset.
func Sh(base, src Register, offset Immediate) Instruction { return rri(OpSh, base, src, offset) }

// Sb stores the low byte of src at base+offset.
func Sb(base, src Register, offset Immediate) Instruction { return rri(OpSb, base, src, offset) }

// Syscall halts the machine.
func Syscall() Instruction { return Instruction{Op: OpSyscall} }

// IsLoad reports whether the instruction reads data memory.
func (inst Instruction) IsLoad() bool {
	switch inst.Op {
	case OpLw, OpLh, OpLhu, OpLb, OpLbu:
		return true
	}
	return false
}

// IsStore reports whether the instruction writes data memory.
func (inst Instruction) IsStore() bool {
	switch inst.Op {
	case OpSw, OpSh, OpSb:
		return true
	}
	return false
}

// AccessSize returns the width in bytes of a load or store, or 0.
func (inst Instruction) AccessSize() uint32 {
	switch inst.Op {
	case OpLw, OpSw:
		return 4
	case OpLh, OpLhu, OpSh:
		return 2
	case OpLb, OpLbu, OpSb:
		return 1
	}
	return 0
}

// BaseRegister returns the register holding the base address of a load or
// store.
func (inst Instruction) BaseRegister() Register {
	if inst.IsStore() {
		return inst.Dest
	}
	return inst.Src1
}

// String disassembles the instruction.
func (inst Instruction) String() string {
	l, ok := LayoutOf(inst.Op)
	if !ok {
		return fmt.Sprintf(".word 0x%08x", uint32(inst.Op))
	}

	switch {
	case inst.IsLoad():
		return fmt.Sprintf("%s %v, %d(%v)", l.Mnemonic, inst.Dest, inst.Imm.Value(), inst.Src1)
	case inst.IsStore():
		return fmt.Sprintf("%s %v, %d(%v)", l.Mnemonic, inst.Src1, inst.Imm.Value(), inst.Dest)
	}

	text := l.Mnemonic
	for i, f := range l.Fields {
		sep := ", "
		if i == 0 {
			sep = " "
		}
		text += sep + inst.operand(f.Slot)
	}
	return text
}

func (inst Instruction) operand(slot Slot) string {
	switch slot {
	case SlotDest:
		return inst.Dest.String()
	case SlotSrc1:
		return inst.Src1.String()
	case SlotSrc2:
		return inst.Src2.String()
	default:
		return inst.Imm.String()
	}
}

// EncodeProgram encodes instructions as consecutive little-endian words. It
// panics on an instruction Validate rejects; the constructors never build one.
func EncodeProgram(program ...Instruction) []byte {
	out := make([]byte, 0, len(program)*InstructionSize)
	for _, inst := range program {
		out = binary.LittleEndian.AppendUint32(out, MustEncode(inst))
	}
	return out
}

// ImmediateWidthError reports an immediate whose width differs from the
// immediate field of its op.
type ImmediateWidthError struct {
	Op   Op
	Want uint8
	Got  uint8
}

func (e *ImmediateWidthError) Error() string {
	return fmt.Sprintf("%v takes a %d-bit immediate, got %d bits", e.Op, e.Want, e.Got)
}

func (e *ImmediateWidthError) Unwrap() error {
	return ErrImmediateWidth
}

// Validate reports whether inst encodes to a word that decodes back to inst:
// its op has a layout, every register field names a machine register, the
// immediate has exactly the layout's width, and fields outside the layout
// are zero.
func (inst Instruction) Validate() error {
	return inst.validate(layouts[inst.Op])
}

func (inst Instruction) validate(l *Layout) error {
	if l == nil {
		return &UnknownOpcodeError{Opcode: uint8(inst.Op)}
	}

	var used [SlotImm + 1]bool
	var immWidth uint8
	for _, f := range l.Fields {
		used[f.Slot] = true
		if f.Kind == FieldImmediate {
			immWidth = f.Width
		}
	}

	regs := [...]struct {
		slot Slot
		reg  Register
	}{{SlotDest, inst.Dest}, {SlotSrc1, inst.Src1}, {SlotSrc2, inst.Src2}}
	for _, r := range regs {
		switch {
		case used[r.slot] && !r.reg.Valid():
			return fmt.Errorf("%w: %v register %d", ErrInvalidOperand, inst.Op, uint8(r.reg))
		case !used[r.slot] && r.reg != Zero:
			return fmt.Errorf("%w: %v has no %v operand", ErrInvalidOperand, inst.Op, r.slot)
		}
	}

	if inst.Imm.Width() != immWidth {
		if immWidth == 0 {
			return fmt.Errorf("%w: %v takes no immediate", ErrInvalidOperand, inst.Op)
		}
		return &ImmediateWidthError{Op: inst.Op, Want: immWidth, Got: inst.Imm.Width()}
	}

	return nil
}
