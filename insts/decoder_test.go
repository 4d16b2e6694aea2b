package insts_test

import (
	"encoding/binary"
	"errors"

	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/r32vm/insts"
)

var _ = Describe("Decoder", func() {
	var decoder *insts.Decoder

	BeforeEach(func() {
		decoder = insts.NewDecoder()
	})

	encode := func(inst insts.Instruction) uint32 {
		word, err := decoder.Encode(inst)
		ExpectWithOffset(1, err).NotTo(HaveOccurred())
		return word
	}

	Describe("Encode", func() {
		// addi t2, zero, 5 -> opcode 0x0A | t2(7)<<8 | zero<<13 | 5<<18
		It("should pack addi t2, zero, 5", func() {
			word := encode(insts.AddI(insts.T2, insts.Zero, insts.MustImm14(5)))
			Expect(word).To(Equal(uint32(0x0014070A)))
		})

		// add t0, t1, t2 -> 0x01 | 5<<8 | 6<<13 | 7<<18
		It("should pack add t0, t1, t2", func() {
			word := encode(insts.Add(insts.T0, insts.T1, insts.T2))
			Expect(word).To(Equal(uint32(0x001CC501)))
		})

		// lui t0, 43 -> 0x0B | 5<<8 | 43<<13
		It("should pack lui t0, 43", func() {
			word := encode(insts.Lui(insts.T0, insts.MustImm19(43)))
			Expect(word).To(Equal(uint32(0x0005650B)))
		})

		// sw t0, 0(sp) -> 0x0E | sp(2)<<8 | t0(5)<<13
		It("should pack sw with the base register first", func() {
			word := encode(insts.Sw(insts.SP, insts.T0, insts.MustImm14(0)))
			Expect(word).To(Equal(uint32(0x0000A20E)))
		})

		It("should pack a negative immediate into the top bits", func() {
			word := encode(insts.AddI(insts.T0, insts.T1, insts.MustImm14(-1)))
			Expect(word).To(Equal(uint32(0xFFFCC50A)))
		})

		It("should encode syscall as its bare opcode", func() {
			Expect(encode(insts.Syscall())).To(Equal(uint32(0x0F)))
		})

		DescribeTable("should refuse an immediate of the wrong width",
			func(inst insts.Instruction, want, got uint8) {
				_, err := decoder.Encode(inst)

				Expect(errors.Is(err, insts.ErrImmediateWidth)).To(BeTrue(), "got %v", err)
				var widthErr *insts.ImmediateWidthError
				Expect(errors.As(err, &widthErr)).To(BeTrue())
				Expect(widthErr.Op).To(Equal(inst.Op))
				Expect(widthErr.Want).To(Equal(want))
				Expect(widthErr.Got).To(Equal(got))
			},
			Entry("addi with a 19-bit immediate",
				insts.Instruction{Op: insts.OpAddI, Dest: insts.T0, Src1: insts.T1, Imm: insts.MustImm19(100000)},
				uint8(14), uint8(19)),
			Entry("lw with a 19-bit offset",
				insts.Instruction{Op: insts.OpLw, Dest: insts.T0, Src1: insts.SP, Imm: insts.MustImm19(4)},
				uint8(14), uint8(19)),
			Entry("lui with a 14-bit immediate",
				insts.Instruction{Op: insts.OpLui, Dest: insts.T0, Imm: insts.MustImm14(43)},
				uint8(19), uint8(14)),
			Entry("li with no immediate",
				insts.Instruction{Op: insts.OpLi, Dest: insts.T0},
				uint8(19), uint8(0)),
		)

		DescribeTable("should refuse operands the layout cannot carry",
			func(inst insts.Instruction, kind error) {
				_, err := decoder.Encode(inst)
				Expect(errors.Is(err, kind)).To(BeTrue(), "got %v", err)
			},
			Entry("unassigned opcode", insts.Instruction{Op: insts.Op(0x16)}, insts.ErrUnknownOpcode),
			Entry("register beyond a7",
				insts.Instruction{Op: insts.OpAdd, Dest: insts.Register(20)}, insts.ErrInvalidOperand),
			Entry("immediate on a register op",
				insts.Instruction{Op: insts.OpAdd, Imm: insts.MustImm14(1)}, insts.ErrInvalidOperand),
			Entry("src2 on lui",
				insts.Instruction{Op: insts.OpLui, Src2: insts.T0, Imm: insts.MustImm19(1)}, insts.ErrInvalidOperand),
		)

		It("should keep a 19-bit addi immediate from turning into another program", func() {
			word, err := insts.Encode(insts.Instruction{
				Op: insts.OpAddI, Dest: insts.T0, Src1: insts.T1, Imm: insts.MustImm19(100000),
			})

			Expect(err).To(HaveOccurred())
			Expect(word).To(BeZero())
		})
	})

	Describe("Constructors", func() {
		It("should panic on an immediate of the wrong width", func() {
			Expect(func() {
				insts.AddI(insts.T0, insts.T1, insts.MustImm19(100000))
			}).To(PanicWith(MatchError(insts.ErrImmediateWidth)))
			Expect(func() {
				insts.Lui(insts.T0, insts.MustImm14(43))
			}).To(PanicWith(MatchError(insts.ErrImmediateWidth)))
			Expect(func() {
				insts.Sw(insts.SP, insts.T0, insts.MustImm19(0))
			}).To(PanicWith(MatchError(insts.ErrImmediateWidth)))
		})

		It("should panic on a register outside the machine", func() {
			Expect(func() {
				insts.Add(insts.T0, insts.Register(31), insts.T1)
			}).To(PanicWith(MatchError(insts.ErrInvalidOperand)))
		})

		It("should build only instructions that validate", func() {
			Expect(insts.Li(insts.A0, insts.MustImm19(-1)).Validate()).To(Succeed())
			Expect(insts.Lbu(insts.A0, insts.GP, insts.MustImm14(-1)).Validate()).To(Succeed())
			Expect(insts.Syscall().Validate()).To(Succeed())
		})
	})

	Describe("Decode", func() {
		It("should decode addi t2, zero, 5", func() {
			inst, err := decoder.Decode(0x0014070A)

			Expect(err).NotTo(HaveOccurred())
			Expect(inst.Op).To(Equal(insts.OpAddI))
			Expect(inst.Dest).To(Equal(insts.T2))
			Expect(inst.Src1).To(Equal(insts.Zero))
			Expect(inst.Imm.Value()).To(Equal(int32(5)))
			Expect(inst.Imm.Width()).To(Equal(uint8(14)))
		})

		It("should sign-extend a negative 14-bit offset", func() {
			inst, err := decoder.Decode(0xFFFCC50A)

			Expect(err).NotTo(HaveOccurred())
			Expect(inst.Imm.Value()).To(Equal(int32(-1)))
		})

		It("should decode a 19-bit immediate", func() {
			word := uint32(insts.OpLi) | uint32(insts.A0)<<8 | 0x7FFFF<<13
			inst, err := decoder.Decode(word)

			Expect(err).NotTo(HaveOccurred())
			Expect(inst.Op).To(Equal(insts.OpLi))
			Expect(inst.Dest).To(Equal(insts.A0))
			Expect(inst.Imm.Value()).To(Equal(int32(-1)))
		})

		It("should clamp an out-of-range register field to Zero", func() {
			// add with dest field 31, src1 field 17, src2 field 16
			word := uint32(insts.OpAdd) | 31<<8 | 17<<13 | 16<<18
			inst, err := decoder.Decode(word)

			Expect(err).NotTo(HaveOccurred())
			Expect(inst.Dest).To(Equal(insts.Zero))
			Expect(inst.Src1).To(Equal(insts.Zero))
			Expect(inst.Src2).To(Equal(insts.A7))
		})

		It("should ignore bits above the layout", func() {
			inst, err := decoder.Decode(0xFFFFFF0F)

			Expect(err).NotTo(HaveOccurred())
			Expect(inst).To(Equal(insts.Syscall()))
		})

		DescribeTable("unknown opcodes",
			func(word uint32, opcode uint8) {
				_, err := decoder.Decode(word)

				Expect(errors.Is(err, insts.ErrUnknownOpcode)).To(BeTrue())
				var opErr *insts.UnknownOpcodeError
				Expect(errors.As(err, &opErr)).To(BeTrue())
				Expect(opErr.Opcode).To(Equal(opcode))
			},
			Entry("zero word", uint32(0x00000000), uint8(0x00)),
			Entry("first unassigned", uint32(0x12345616), uint8(0x16)),
			Entry("all ones", uint32(0xFFFFFFFF), uint8(0xFF)),
		)
	})

	Describe("Round trip", func() {
		imm14 := insts.MustImm14
		imm19 := insts.MustImm19

		program := []insts.Instruction{
			insts.Add(insts.T0, insts.T1, insts.T2),
			insts.Sub(insts.A7, insts.S3, insts.Zero),
			insts.Mul(insts.S0, insts.S1, insts.S2),
			insts.And(insts.RA, insts.SP, insts.GP),
			insts.Or(insts.TP, insts.T3, insts.A0),
			insts.Xor(insts.A1, insts.A2, insts.A7),
			insts.Shl(insts.T0, insts.T0, insts.T1),
			insts.Shr(insts.T1, insts.T2, insts.T3),
			insts.ShrA(insts.T2, insts.T3, insts.T0),
			insts.AddI(insts.T2, insts.Zero, imm14(5)),
			insts.AddI(insts.T3, insts.T2, imm14(-8192)),
			insts.AddI(insts.T3, insts.T2, imm14(8191)),
			insts.Lui(insts.T0, imm19(262143)),
			insts.Li(insts.T0, imm19(-262144)),
			insts.Lw(insts.T1, insts.SP, imm14(-4)),
			insts.Sw(insts.SP, insts.T0, imm14(8)),
			insts.Lh(insts.A0, insts.GP, imm14(2)),
			insts.Lhu(insts.A0, insts.GP, imm14(-2)),
			insts.Lb(insts.A1, insts.GP, imm14(1)),
			insts.Lbu(insts.A1, insts.GP, imm14(-1)),
			insts.Sh(insts.GP, insts.A2, imm14(6)),
			insts.Sb(insts.GP, insts.A2, imm14(3)),
			insts.Syscall(),
		}

		It("should decode every encoded instruction back to itself", func() {
			for _, want := range program {
				got, err := decoder.Decode(encode(want))
				Expect(err).NotTo(HaveOccurred())
				Expect(cmp.Diff(want, got, cmp.AllowUnexported(insts.Immediate{}))).To(BeEmpty(), want.String())
			}
		})

		It("should pack a program as little-endian words", func() {
			data := insts.EncodeProgram(program...)

			Expect(data).To(HaveLen(len(program) * insts.InstructionSize))
			for i, want := range program {
				word := binary.LittleEndian.Uint32(data[i*4:])
				Expect(word).To(Equal(encode(want)))
			}
		})
	})

	Describe("Layouts", func() {
		It("should fit every layout in 32 bits", func() {
			for _, l := range insts.Layouts() {
				Expect(l.Width()).To(BeNumerically("<=", 32), l.Mnemonic)
			}
		})

		It("should place fields after the opcode in declaration order", func() {
			l, ok := insts.LayoutOf(insts.OpAddI)
			Expect(ok).To(BeTrue())
			Expect(l.Offsets()).To(Equal([]uint8{8, 13, 18}))

			l, ok = insts.LayoutOf(insts.OpLui)
			Expect(ok).To(BeTrue())
			Expect(l.Offsets()).To(Equal([]uint8{8, 13}))
		})

		It("should look layouts up by mnemonic", func() {
			l, ok := insts.LookupMnemonic("shra")
			Expect(ok).To(BeTrue())
			Expect(l.Op).To(Equal(insts.OpShrA))

			_, ok = insts.LookupMnemonic("jmp")
			Expect(ok).To(BeFalse())
		})
	})

	Describe("String", func() {
		DescribeTable("disassembly",
			func(inst insts.Instruction, text string) {
				Expect(inst.String()).To(Equal(text))
			},
			Entry("rrr", insts.Add(insts.T0, insts.T1, insts.T2), "add t0, t1, t2"),
			Entry("rri", insts.AddI(insts.T2, insts.Zero, insts.MustImm14(5)), "addi t2, zero, 5"),
			Entry("ri", insts.Li(insts.A7, insts.MustImm19(-3)), "li a7, -3"),
			Entry("load", insts.Lw(insts.T1, insts.SP, insts.MustImm14(0)), "lw t1, 0(sp)"),
			Entry("store", insts.Sw(insts.SP, insts.T0, insts.MustImm14(-4)), "sw t0, -4(sp)"),
			Entry("syscall", insts.Syscall(), "syscall"),
		)
	})
})
