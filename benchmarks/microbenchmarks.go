package benchmarks

import (
	"github.com/sarchlab/r32vm/emu"
	"github.com/sarchlab/r32vm/insts"
	"github.com/sarchlab/r32vm/mem"
)

// The instruction set has no branches, so every benchmark is straight-line
// code ending in a halting syscall. Results are left in a0.

// GetMicrobenchmarks returns the standard set of microbenchmarks.
// Each benchmark targets a specific timing characteristic.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		arithmeticSequential(),
		dependencyChain(),
		multiplyChain(),
		memorySequential(),
		stridedMemory(),
		subwordAccess(),
		heapSum(),
		mixedOperations(),
	}
}

// GetCoreBenchmarks returns a minimal set for quick validation: ALU,
// memory with misses, and a mix.
func GetCoreBenchmarks() []Benchmark {
	return []Benchmark{
		arithmeticSequential(),
		stridedMemory(),
		mixedOperations(),
	}
}

func imm14(v int64) insts.Immediate { return insts.MustImm14(v) }

func imm19(v int64) insts.Immediate { return insts.MustImm19(v) }

func build(program ...insts.Instruction) []byte {
	return insts.EncodeProgram(append(program, insts.Syscall())...)
}

// 1. Arithmetic Sequential - ALU throughput with independent operations
func arithmeticSequential() Benchmark {
	regs := []insts.Register{insts.A0, insts.T0, insts.T1, insts.T2, insts.T3}

	var program []insts.Instruction
	for i := 0; i < 4; i++ {
		for _, r := range regs {
			program = append(program, insts.AddI(r, r, imm14(1)))
		}
	}

	return Benchmark{
		Name:           "arithmetic_sequential",
		Description:    "20 independent ADDI operations - measures ALU throughput",
		Program:        build(program...),
		ExpectedResult: 4,
	}
}

// 2. Dependency Chain - every instruction reads the previous result
func dependencyChain() Benchmark {
	program := make([]insts.Instruction, 20)
	for i := range program {
		program[i] = insts.AddI(insts.A0, insts.A0, imm14(1))
	}

	return Benchmark{
		Name:           "dependency_chain",
		Description:    "20 dependent ADDIs (a0 = a0 + 1) - measures serial ALU latency",
		Program:        build(program...),
		ExpectedResult: 20,
	}
}

// 3. Multiply Chain - multi-cycle ALU latency
func multiplyChain() Benchmark {
	program := []insts.Instruction{
		insts.Li(insts.A0, imm19(1)),
		insts.Li(insts.T0, imm19(3)),
	}
	for i := 0; i < 5; i++ {
		program = append(program, insts.Mul(insts.A0, insts.A0, insts.T0))
	}

	return Benchmark{
		Name:           "multiply_chain",
		Description:    "5 dependent MULs (a0 = a0 * 3) - measures multiply latency",
		Program:        build(program...),
		ExpectedResult: 243,
	}
}

// 4. Memory Sequential - stores and loads within one cache line
func memorySequential() Benchmark {
	var program []insts.Instruction
	for i := int64(1); i <= 8; i++ {
		program = append(program,
			insts.AddI(insts.T0, insts.Zero, imm14(i)),
			insts.Sw(insts.SP, insts.T0, imm14(-4*i)),
		)
	}
	for i := int64(1); i <= 8; i++ {
		program = append(program,
			insts.Lw(insts.T1, insts.SP, imm14(-4*i)),
			insts.Add(insts.A0, insts.A0, insts.T1),
		)
	}

	return Benchmark{
		Name:           "memory_sequential",
		Description:    "8 stores then 8 loads to adjacent words - measures cache hit latency",
		Program:        build(program...),
		ExpectedResult: 36,
	}
}

// 5. Strided Memory - one access per cache line, twice
func stridedMemory() Benchmark {
	const lines = 16

	var program []insts.Instruction
	for i := int64(1); i <= lines; i++ {
		program = append(program,
			insts.AddI(insts.T0, insts.Zero, imm14(i)),
			insts.Sw(insts.SP, insts.T0, imm14(-64*i)),
		)
	}
	for i := int64(1); i <= lines; i++ {
		program = append(program,
			insts.Lw(insts.T1, insts.SP, imm14(-64*i)),
			insts.Add(insts.A0, insts.A0, insts.T1),
		)
	}

	return Benchmark{
		Name:           "strided_memory",
		Description:    "16 stores then 16 loads 64 bytes apart - measures cache miss latency",
		Program:        build(program...),
		ExpectedResult: 136,
	}
}

// 6. Subword Access - halfword and byte loads and stores
func subwordAccess() Benchmark {
	return Benchmark{
		Name:        "subword_access",
		Description: "halfword store, byte loads and stores - measures narrow access handling",
		Program: build(
			insts.Li(insts.T0, imm19(0x1234)),
			insts.Sh(insts.SP, insts.T0, imm14(-2)),
			insts.Lbu(insts.T1, insts.SP, imm14(-2)),
			insts.Lb(insts.T2, insts.SP, imm14(-1)),
			insts.Sb(insts.SP, insts.T1, imm14(-3)),
			insts.Lhu(insts.T3, insts.SP, imm14(-4)),
			insts.Add(insts.A0, insts.T1, insts.T2),
			insts.Add(insts.A0, insts.A0, insts.T3),
		),
		// 0x34 + 0x12 + 0x3400
		ExpectedResult: 0x3446,
	}
}

// 7. Heap Sum - reads a table prepared in the heap before the run
func heapSum() Benchmark {
	const words = 16

	var program []insts.Instruction
	for i := int64(0); i < words; i++ {
		program = append(program,
			insts.Lw(insts.T0, insts.GP, imm14(4*i)),
			insts.Add(insts.A0, insts.A0, insts.T0),
		)
	}

	return Benchmark{
		Name:        "heap_sum",
		Description: "16 loads from a heap table - measures loads over preloaded data",
		Setup: func(vm *emu.VM) error {
			base, err := vm.Memory().GrowHeap(4 * words)
			if err != nil {
				return err
			}
			for i := uint32(0); i < words; i++ {
				if err := mem.Write(vm.Memory(), base+4*i, i+1); err != nil {
					return err
				}
			}
			vm.CPU().Regs.WriteReg(insts.GP, base)
			return nil
		},
		Program:        build(program...),
		ExpectedResult: 136,
	}
}

// 8. Mixed Operations - multiply, memory round trip, shift and logic
func mixedOperations() Benchmark {
	return Benchmark{
		Name:        "mixed_operations",
		Description: "MUL, store/load round trip, shift and XOR - a balanced mix",
		Program: build(
			insts.Li(insts.T0, imm19(6)),
			insts.Li(insts.T1, imm19(7)),
			insts.Mul(insts.T2, insts.T0, insts.T1),
			insts.Sw(insts.SP, insts.T2, imm14(-4)),
			insts.Lw(insts.T3, insts.SP, imm14(-4)),
			insts.AddI(insts.T3, insts.T3, imm14(-2)),
			insts.Li(insts.S0, imm19(2)),
			insts.Shl(insts.A0, insts.T3, insts.S0),
			insts.Xor(insts.A0, insts.A0, insts.T1),
		),
		ExpectedResult: 167,
	}
}
