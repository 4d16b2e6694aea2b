package emu

import (
	"fmt"

	"github.com/sarchlab/r32vm/insts"
	"github.com/sarchlab/r32vm/mem"
)

// LoadStoreUnit implements r32 load and store operations. Every access is
// alignment checked for its width before the permission-checked memory
// access.
type LoadStoreUnit struct {
	regs   *Registers
	memory *mem.Manager
}

// NewLoadStoreUnit creates a new LoadStoreUnit connected to the given
// register file and memory.
func NewLoadStoreUnit(regs *Registers, memory *mem.Manager) *LoadStoreUnit {
	return &LoadStoreUnit{
		regs:   regs,
		memory: memory,
	}
}

// EffectiveAddress returns base + offset with wraparound.
func (lsu *LoadStoreUnit) EffectiveAddress(base insts.Register, offset int32) uint32 {
	return lsu.regs.ReadReg(base) + uint32(offset)
}

// Execute runs a load or store instruction.
func (lsu *LoadStoreUnit) Execute(inst insts.Instruction) error {
	addr := lsu.EffectiveAddress(inst.BaseRegister(), inst.Imm.Value())

	switch inst.Op {
	case insts.OpLw:
		v, err := load[uint32](lsu, addr)
		lsu.writeBack(inst.Dest, v, err)
		return err
	case insts.OpLh:
		v, err := load[uint16](lsu, addr)
		lsu.writeBack(inst.Dest, uint32(int32(int16(v))), err)
		return err
	case insts.OpLhu:
		v, err := load[uint16](lsu, addr)
		lsu.writeBack(inst.Dest, uint32(v), err)
		return err
	case insts.OpLb:
		v, err := load[uint8](lsu, addr)
		lsu.writeBack(inst.Dest, uint32(int32(int8(v))), err)
		return err
	case insts.OpLbu:
		v, err := load[uint8](lsu, addr)
		lsu.writeBack(inst.Dest, uint32(v), err)
		return err
	case insts.OpSw:
		return store(lsu, addr, lsu.regs.ReadReg(inst.Src1))
	case insts.OpSh:
		return store(lsu, addr, uint16(lsu.regs.ReadReg(inst.Src1)))
	case insts.OpSb:
		return store(lsu, addr, uint8(lsu.regs.ReadReg(inst.Src1)))
	}

	return fmt.Errorf("%w: %v is not a load or store", ErrUnimplemented, inst.Op)
}

// writeBack leaves rd untouched when the load failed.
func (lsu *LoadStoreUnit) writeBack(rd insts.Register, value uint32, err error) {
	if err == nil {
		lsu.regs.WriteReg(rd, value)
	}
}

func widthOf[T mem.Word]() uint32 {
	var v T
	switch any(v).(type) {
	case uint8:
		return 1
	case uint16:
		return 2
	}
	return 4
}

func load[T mem.Word](lsu *LoadStoreUnit, addr uint32) (T, error) {
	if err := lsu.memory.AlignmentCheck(widthOf[T](), addr); err != nil {
		return 0, err
	}
	return mem.Read[T](lsu.memory, addr)
}

func store[T mem.Word](lsu *LoadStoreUnit, addr uint32, value T) error {
	if err := lsu.memory.AlignmentCheck(widthOf[T](), addr); err != nil {
		return err
	}
	return mem.Write(lsu.memory, addr, value)
}
