// Package emu provides functional r32 emulation.
package emu

import "github.com/sarchlab/r32vm/insts"

// Registers is the r32 register file, indexed by register ordinal.
// Zero is hardwired: it always reads as 0 and writes to it are discarded.
type Registers [insts.NumRegisters]uint32

// ReadReg reads a register value. Zero and out-of-range registers return 0.
func (r *Registers) ReadReg(reg insts.Register) uint32 {
	if reg == insts.Zero || !reg.Valid() {
		return 0
	}
	return r[reg]
}

// WriteReg writes a register value. Writes to Zero are ignored.
func (r *Registers) WriteReg(reg insts.Register, value uint32) {
	if reg == insts.Zero || !reg.Valid() {
		return
	}
	r[reg] = value
}

// Flags is the processor status word. No instruction writes it yet.
type Flags uint32

// CPU holds the architectural state.
type CPU struct {
	// Regs holds the general-purpose registers.
	Regs Registers

	// PC is the byte address of the next instruction.
	PC uint32

	// Flags is reserved.
	Flags Flags
}

// Reset zeroes the state and points SP at sp. The VM passes
// StackStart() &^ 3 so that word pushes stay inside the stack.
func (c *CPU) Reset(sp uint32) {
	*c = CPU{}
	c.Regs.WriteReg(insts.SP, sp)
}
