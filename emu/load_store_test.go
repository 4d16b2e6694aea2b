package emu_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/r32vm/emu"
	"github.com/sarchlab/r32vm/insts"
	"github.com/sarchlab/r32vm/mem"
)

var _ = Describe("LoadStoreUnit", func() {
	const sp = 0x8000

	var (
		regs   *emu.Registers
		memory *mem.Manager
		lsu    *emu.LoadStoreUnit
	)

	BeforeEach(func() {
		var err error
		memory, err = mem.NewManager(mem.Config{AllocatedMemory: 0x10000, StackSize: 0x8000})
		Expect(err).NotTo(HaveOccurred())

		regs = &emu.Registers{}
		regs.WriteReg(insts.SP, sp)
		lsu = emu.NewLoadStoreUnit(regs, memory)
	})

	It("should compute base plus signed offset", func() {
		Expect(lsu.EffectiveAddress(insts.SP, -4)).To(Equal(uint32(sp - 4)))
		Expect(lsu.EffectiveAddress(insts.Zero, -1)).To(Equal(uint32(0xFFFFFFFF)))
	})

	Describe("sub-word loads", func() {
		BeforeEach(func() {
			Expect(mem.Write(memory, sp, uint32(0x8001FFFE))).To(Succeed())
		})

		DescribeTable("extension",
			func(build func(d, b insts.Register, off insts.Immediate) insts.Instruction, off int64, want uint32) {
				Expect(lsu.Execute(build(insts.T0, insts.SP, insts.MustImm14(off)))).To(Succeed())
				Expect(regs.ReadReg(insts.T0)).To(Equal(want))
			},
			Entry("lw", insts.Lw, int64(0), uint32(0x8001FFFE)),
			Entry("lb sign-extends", insts.Lb, int64(0), uint32(0xFFFFFFFE)),
			Entry("lbu zero-extends", insts.Lbu, int64(0), uint32(0xFE)),
			Entry("lh sign-extends", insts.Lh, int64(2), uint32(0xFFFF8001)),
			Entry("lhu zero-extends", insts.Lhu, int64(2), uint32(0x8001)),
			Entry("lb of a positive byte", insts.Lb, int64(2), uint32(0x01)),
		)
	})

	It("should store the low bits of the source", func() {
		regs.WriteReg(insts.T0, 0x11223344)

		Expect(lsu.Execute(insts.Sb(insts.SP, insts.T0, insts.MustImm14(1)))).To(Succeed())
		Expect(lsu.Execute(insts.Sh(insts.SP, insts.T0, insts.MustImm14(2)))).To(Succeed())

		Expect(mem.Read[uint32](memory, sp)).To(Equal(uint32(0x33444400)))
	})

	DescribeTable("alignment",
		func(inst insts.Instruction, size uint32) {
			err := lsu.Execute(inst)

			Expect(errors.Is(err, mem.ErrUnalignedAccess)).To(BeTrue())
			var accessErr *mem.AccessError
			Expect(errors.As(err, &accessErr)).To(BeTrue())
			Expect(accessErr.Size).To(Equal(size))
		},
		Entry("lw", insts.Lw(insts.T0, insts.SP, insts.MustImm14(2)), uint32(4)),
		Entry("sw", insts.Sw(insts.SP, insts.T0, insts.MustImm14(-1)), uint32(4)),
		Entry("lh", insts.Lh(insts.T0, insts.SP, insts.MustImm14(1)), uint32(2)),
		Entry("sh", insts.Sh(insts.SP, insts.T0, insts.MustImm14(3)), uint32(2)),
	)

	It("should leave the destination untouched on a failed load", func() {
		regs.WriteReg(insts.T0, 99)

		err := lsu.Execute(insts.Lw(insts.T0, insts.Zero, insts.MustImm14(0x100)))

		Expect(errors.Is(err, mem.ErrInvalidAddress)).To(BeTrue())
		Expect(regs.ReadReg(insts.T0)).To(Equal(uint32(99)))
	})

	It("should reject non-memory ops", func() {
		err := lsu.Execute(insts.Add(insts.T0, insts.T1, insts.T2))
		Expect(errors.Is(err, emu.ErrUnimplemented)).To(BeTrue())
	})
})
