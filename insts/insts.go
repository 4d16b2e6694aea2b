// Package insts provides the r32 instruction set: registers, immediates,
// instruction definitions and the fixed-width codec.
//
// Every instruction is one 32-bit word. Bits [7:0] hold the opcode, which
// selects a layout; the remaining operand fields are packed upward from bit 8
// in layout order. Register fields are 5 bits wide, immediates 14 or 19 bits
// in two's complement.
//
// Usage:
//
//	word, err := insts.Encode(insts.AddI(insts.T2, insts.Zero, insts.MustImm14(5)))
//	inst, err := insts.Decode(word)
//	fmt.Println(inst) // addi t2, zero, 5
package insts
