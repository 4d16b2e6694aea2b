package emu

import "github.com/sarchlab/r32vm/insts"

// ALU implements r32 arithmetic and logic operations. All arithmetic wraps
// modulo 2^32.
type ALU struct {
	regs *Registers
}

// NewALU creates a new ALU connected to the given register file.
func NewALU(regs *Registers) *ALU {
	return &ALU{regs: regs}
}

// Execute runs an arithmetic, logic or immediate-load instruction. It returns
// false if the op is not handled by the ALU.
func (a *ALU) Execute(inst insts.Instruction) bool {
	switch inst.Op {
	case insts.OpAdd:
		a.binary(inst, func(x, y uint32) uint32 { return x + y })
	case insts.OpSub:
		a.binary(inst, func(x, y uint32) uint32 { return x - y })
	case insts.OpMul:
		a.binary(inst, func(x, y uint32) uint32 { return x * y })
	case insts.OpAnd:
		a.binary(inst, func(x, y uint32) uint32 { return x & y })
	case insts.OpOr:
		a.binary(inst, func(x, y uint32) uint32 { return x | y })
	case insts.OpXor:
		a.binary(inst, func(x, y uint32) uint32 { return x ^ y })
	case insts.OpShl:
		a.binary(inst, ShiftLeft)
	case insts.OpShr:
		a.binary(inst, ShiftRight)
	case insts.OpShrA:
		a.binary(inst, ShiftRightArith)
	case insts.OpAddI:
		a.AddImm(inst.Dest, inst.Src1, inst.Imm.Value())
	case insts.OpLui:
		a.regs.WriteReg(inst.Dest, inst.Imm.Bits())
	case insts.OpLi:
		a.regs.WriteReg(inst.Dest, uint32(inst.Imm.Value()))
	default:
		return false
	}
	return true
}

func (a *ALU) binary(inst insts.Instruction, op func(x, y uint32) uint32) {
	x := a.regs.ReadReg(inst.Src1)
	y := a.regs.ReadReg(inst.Src2)
	a.regs.WriteReg(inst.Dest, op(x, y))
}

// AddImm performs rd = rn + imm.
func (a *ALU) AddImm(rd, rn insts.Register, imm int32) {
	a.regs.WriteReg(rd, a.regs.ReadReg(rn)+uint32(imm))
}

// ShiftLeft shifts x left by the low five bits of amount.
func ShiftLeft(x, amount uint32) uint32 {
	return x << (amount & 31)
}

// ShiftRight shifts x right logically by the low five bits of amount.
func ShiftRight(x, amount uint32) uint32 {
	return x >> (amount & 31)
}

// ShiftRightArith shifts x right, replicating the sign bit, by the low five
// bits of amount.
func ShiftRightArith(x, amount uint32) uint32 {
	return uint32(int32(x) >> (amount & 31))
}
