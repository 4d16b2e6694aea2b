package emu_test

import (
	"bytes"
	"context"
	"errors"
	"log"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/r32vm/emu"
	"github.com/sarchlab/r32vm/insts"
	"github.com/sarchlab/r32vm/mem"
)

var testConfig = mem.Config{AllocatedMemory: 0x10000, StackSize: 0x1000}

func imm14(v int64) insts.Immediate { return insts.MustImm14(v) }

func newVM(opts ...emu.Option) *emu.VM {
	vm, err := emu.NewVM(testConfig, opts...)
	Expect(err).NotTo(HaveOccurred())
	return vm
}

func load(vm *emu.VM, program ...insts.Instruction) {
	Expect(vm.LoadProgram(insts.EncodeProgram(program...))).To(Succeed())
}

var _ = Describe("VM", func() {
	var vm *emu.VM

	BeforeEach(func() {
		vm = newVM()
	})

	Describe("NewVM", func() {
		It("should start in the Ready state", func() {
			Expect(vm.CPU().PC).To(BeZero())
			Expect(vm.Halted()).To(BeFalse())
			Expect(vm.InstructionCount()).To(BeZero())
		})

		It("should point SP at the highest word-aligned stack slot", func() {
			regs := vm.Registers()
			Expect(regs.ReadReg(insts.SP)).To(Equal(uint32(0xFFFC)))
			for r := insts.Zero; r < insts.NumRegisters; r++ {
				if r != insts.SP {
					Expect(regs.ReadReg(r)).To(BeZero(), r.String())
				}
			}
		})

		It("should round SP down to a word boundary", func() {
			odd, err := emu.NewVM(mem.Config{AllocatedMemory: 0x1003, StackSize: 0x100})
			Expect(err).NotTo(HaveOccurred())

			Expect(odd.Memory().StackStart()).To(Equal(uint32(0x1002)))
			regs := odd.Registers()
			Expect(regs.ReadReg(insts.SP)).To(Equal(uint32(0x1000)))

			odd.Reset()
			regs = odd.Registers()
			Expect(regs.ReadReg(insts.SP)).To(Equal(uint32(0x1000)))
		})

		It("should reject an invalid memory configuration", func() {
			_, err := emu.NewVM(mem.Config{AllocatedMemory: 4, StackSize: 8})
			Expect(errors.Is(err, mem.ErrInvalidConfig)).To(BeTrue())
		})
	})

	Describe("Run", func() {
		It("should add immediates and halt on syscall", func() {
			load(vm,
				insts.AddI(insts.T2, insts.Zero, imm14(5)),
				insts.AddI(insts.T3, insts.T2, imm14(7)),
				insts.Syscall(),
			)

			Expect(vm.Run()).To(Succeed())

			regs := vm.Registers()
			Expect(regs.ReadReg(insts.T3)).To(Equal(uint32(12)))
			Expect(vm.Halted()).To(BeTrue())
			Expect(vm.InstructionCount()).To(Equal(uint64(3)))
			Expect(vm.CPU().PC).To(Equal(uint32(12)))
		})

		It("should round trip a word through the stack", func() {
			load(vm,
				insts.Lui(insts.T0, insts.MustImm19(43)),
				insts.Sw(insts.SP, insts.T0, imm14(0)),
				insts.Lw(insts.T1, insts.SP, imm14(0)),
				insts.Syscall(),
			)

			Expect(vm.Run()).To(Succeed())

			regs := vm.Registers()
			Expect(regs.ReadReg(insts.T1)).To(Equal(uint32(43)))
			Expect(mem.Read[uint32](vm.Memory(), 0xFFFC)).To(Equal(uint32(43)))
		})

		It("should stop with an error when running off the program", func() {
			load(vm, insts.AddI(insts.T0, insts.Zero, imm14(1)))

			err := vm.Run()

			Expect(errors.Is(err, mem.ErrInvalidAddress)).To(BeTrue())
			var execErr *emu.ExecError
			Expect(errors.As(err, &execErr)).To(BeTrue())
			Expect(execErr.PC).To(Equal(uint32(4)))
			Expect(vm.InstructionCount()).To(Equal(uint64(1)))
		})

		It("should honor the instruction limit", func() {
			vm = newVM(emu.WithMaxInstructions(2))
			load(vm,
				insts.AddI(insts.T0, insts.Zero, imm14(1)),
				insts.AddI(insts.T0, insts.T0, imm14(1)),
				insts.AddI(insts.T0, insts.T0, imm14(1)),
				insts.Syscall(),
			)

			Expect(vm.Run()).To(MatchError(emu.ErrInstructionLimit))
			Expect(vm.InstructionCount()).To(Equal(uint64(2)))
			regs := vm.Registers()
			Expect(regs.ReadReg(insts.T0)).To(Equal(uint32(2)))
		})

		It("should stop when the context is cancelled", func() {
			load(vm, insts.Syscall())
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			Expect(vm.RunContext(ctx)).To(MatchError(context.Canceled))
			Expect(vm.InstructionCount()).To(BeZero())
		})
	})

	Describe("Step", func() {
		It("should refuse to step once halted", func() {
			load(vm, insts.Syscall())

			Expect(vm.Step()).To(Succeed())
			Expect(vm.Step()).To(MatchError(emu.ErrHalted))
		})

		It("should report an unknown opcode with its pc", func() {
			Expect(vm.LoadProgram([]byte{0x0A, 0, 0, 0, 0xFF, 0, 0, 0})).To(Succeed())

			Expect(vm.Step()).To(Succeed())
			err := vm.Step()

			Expect(errors.Is(err, insts.ErrUnknownOpcode)).To(BeTrue())
			var execErr *emu.ExecError
			Expect(errors.As(err, &execErr)).To(BeTrue())
			Expect(execErr.PC).To(Equal(uint32(4)))
			var opErr *insts.UnknownOpcodeError
			Expect(errors.As(err, &opErr)).To(BeTrue())
			Expect(opErr.Opcode).To(Equal(uint8(0xFF)))
		})

		It("should reject an unaligned store", func() {
			load(vm, insts.Sw(insts.SP, insts.T0, imm14(-2)))

			err := vm.Step()

			Expect(errors.Is(err, mem.ErrUnalignedAccess)).To(BeTrue())
			var accessErr *mem.AccessError
			Expect(errors.As(err, &accessErr)).To(BeTrue())
			Expect(accessErr.Addr).To(Equal(uint32(0xFFFA)))
			Expect(accessErr.Size).To(Equal(uint32(4)))
		})

		It("should refuse to write the code region", func() {
			load(vm,
				insts.Li(insts.T0, insts.MustImm19(-1)),
				insts.Sw(insts.Zero, insts.T0, imm14(0)),
			)

			Expect(vm.Step()).To(Succeed())
			err := vm.Step()

			Expect(errors.Is(err, mem.ErrPermissionDenied)).To(BeTrue())
			Expect(mem.Read[uint32](vm.Memory(), 0)).To(Equal(insts.MustEncode(insts.Li(insts.T0, insts.MustImm19(-1)))))
		})

		It("should not count a faulting instruction", func() {
			load(vm, insts.Lw(insts.T0, insts.Zero, imm14(0x100)))

			Expect(vm.Step()).NotTo(Succeed())
			Expect(vm.InstructionCount()).To(BeZero())
		})
	})

	Describe("Fetch", func() {
		It("should decode without executing", func() {
			load(vm, insts.AddI(insts.T0, insts.Zero, imm14(9)))

			inst, err := vm.Fetch()

			Expect(err).NotTo(HaveOccurred())
			Expect(inst.Op).To(Equal(insts.OpAddI))
			Expect(vm.CPU().PC).To(BeZero())
			regs := vm.Registers()
			Expect(regs.ReadReg(insts.T0)).To(BeZero())
		})
	})

	Describe("Reset", func() {
		It("should return to the Ready state", func() {
			load(vm,
				insts.AddI(insts.T0, insts.Zero, imm14(1)),
				insts.Syscall(),
			)
			Expect(vm.Run()).To(Succeed())

			vm.Reset()

			Expect(vm.Halted()).To(BeFalse())
			Expect(vm.InstructionCount()).To(BeZero())
			Expect(vm.CPU().PC).To(BeZero())
			regs := vm.Registers()
			Expect(regs.ReadReg(insts.T0)).To(BeZero())
			Expect(regs.ReadReg(insts.SP)).To(Equal(uint32(0xFFFC)))
			Expect(errors.Is(vm.Step(), mem.ErrInvalidAddress)).To(BeTrue())
		})

		It("should run a program loaded after reset", func() {
			load(vm, insts.Syscall())
			Expect(vm.Run()).To(Succeed())

			vm.Reset()
			load(vm, insts.AddI(insts.A0, insts.Zero, imm14(3)), insts.Syscall())

			Expect(vm.Run()).To(Succeed())
			regs := vm.Registers()
			Expect(regs.ReadReg(insts.A0)).To(Equal(uint32(3)))
		})
	})

	Describe("Syscall handlers", func() {
		It("should let a custom handler decide when to halt", func() {
			calls := 0
			handler := emu.SyscallHandlerFunc(func(cpu *emu.CPU, _ *mem.Manager) (emu.SyscallResult, error) {
				calls++
				cpu.Regs.WriteReg(insts.A0, uint32(calls))
				return emu.SyscallResult{Halted: cpu.Regs.ReadReg(insts.A7) == 93}, nil
			})
			vm = newVM(emu.WithSyscallHandler(handler))
			load(vm,
				insts.Syscall(),
				insts.AddI(insts.A7, insts.Zero, imm14(93)),
				insts.Syscall(),
			)

			Expect(vm.Run()).To(Succeed())
			Expect(calls).To(Equal(2))
			regs := vm.Registers()
			Expect(regs.ReadReg(insts.A0)).To(Equal(uint32(2)))
		})

		It("should surface handler errors with the pc", func() {
			boom := errors.New("boom")
			vm = newVM(emu.WithSyscallHandler(emu.SyscallHandlerFunc(
				func(*emu.CPU, *mem.Manager) (emu.SyscallResult, error) {
					return emu.SyscallResult{}, boom
				})))
			load(vm, insts.Syscall())

			err := vm.Run()

			Expect(errors.Is(err, boom)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("pc=0x00000000"))
			Expect(vm.Halted()).To(BeFalse())
		})
	})

	Describe("Tracing", func() {
		It("should log each instruction when verbose", func() {
			buf := &bytes.Buffer{}
			vm = newVM(emu.WithLogger(log.New(buf, "", 0)), emu.WithVerbose(true))
			load(vm, insts.AddI(insts.T2, insts.Zero, imm14(5)), insts.Syscall())

			Expect(vm.Run()).To(Succeed())

			Expect(buf.String()).To(ContainSubstring("addi t2, zero, 5"))
			Expect(buf.String()).To(ContainSubstring("syscall"))
			Expect(buf.String()).To(ContainSubstring("halted after 2 instructions"))
		})

		It("should stay quiet otherwise", func() {
			buf := &bytes.Buffer{}
			vm = newVM(emu.WithLogger(log.New(buf, "", 0)))
			load(vm, insts.Syscall())

			Expect(vm.Run()).To(Succeed())
			Expect(buf.Len()).To(BeZero())
		})
	})
})
