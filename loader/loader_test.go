package loader_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/r32vm/emu"
	"github.com/sarchlab/r32vm/insts"
	"github.com/sarchlab/r32vm/loader"
	"github.com/sarchlab/r32vm/mem"
)

var sumProgram = []insts.Instruction{
	insts.AddI(insts.T2, insts.Zero, insts.MustImm14(5)),
	insts.AddI(insts.T3, insts.T2, insts.MustImm14(7)),
	insts.Syscall(),
}

var _ = Describe("Loader", func() {
	var tempDir string

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "loader-test")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = os.RemoveAll(tempDir)
	})

	writeFile := func(name, contents string) string {
		path := filepath.Join(tempDir, name)
		ExpectWithOffset(1, os.WriteFile(path, []byte(contents), 0644)).To(Succeed())
		return path
	}

	Describe("FormatOf", func() {
		DescribeTable("extensions",
			func(path string, want loader.Format) {
				Expect(loader.FormatOf(path)).To(Equal(want))
			},
			Entry("bin", "a/prog.bin", loader.FormatBinary),
			Entry("hex", "prog.HEX", loader.FormatHex),
			Entry("assembly", "prog.s", loader.FormatAssembly),
			Entry("asm", "prog.asm", loader.FormatAssembly),
		)

		It("should reject unknown extensions", func() {
			_, err := loader.FormatOf("prog.elf")
			Expect(errors.Is(err, loader.ErrUnknownFormat)).To(BeTrue())
		})
	})

	Describe("Load", func() {
		It("should load a raw binary", func() {
			path := writeFile("sum.bin", string(insts.EncodeProgram(sumProgram...)))

			prog, err := loader.Load(path)

			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Code).To(Equal(insts.EncodeProgram(sumProgram...)))
			Expect(prog.Instructions()).To(Equal(3))
			Expect(prog.Data).To(BeEmpty())
		})

		It("should reject a binary that is not whole words", func() {
			path := writeFile("short.bin", "\x01\x02\x03")

			_, err := loader.Load(path)

			Expect(err).To(MatchError(ContainSubstring("not whole words")))
		})

		It("should load a hex listing with a data segment", func() {
			path := writeFile("sum.hex", strings.Join([]string{
				"# sum",
				"0x0014070A   # addi t2, zero, 5",
				"0x001CE80A",
				"",
				"0x0000000F",
				".data",
				"0xDEADBEEF",
			}, "\n"))

			prog, err := loader.Load(path)

			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Code).To(Equal(insts.EncodeProgram(
				insts.AddI(insts.T2, insts.Zero, insts.MustImm14(5)),
				insts.AddI(insts.T3, insts.T2, insts.MustImm14(7)),
				insts.Syscall(),
			)))
			Expect(prog.Data).To(Equal([]byte{0xEF, 0xBE, 0xAD, 0xDE}))
		})

		DescribeTable("malformed hex listings",
			func(contents, message string) {
				path := writeFile("bad.hex", contents)

				_, err := loader.Load(path)

				Expect(err).To(MatchError(ContainSubstring(message)))
				Expect(err.Error()).To(ContainSubstring("bad.hex"))
			},
			Entry("missing prefix", "0x0000000F\n0014070A", "line 2"),
			Entry("not hex", "0xZZ", "line 1"),
			Entry("too wide", "0x100000000", "line 1"),
		)

		It("should assemble a source file", func() {
			path := writeFile("sum.s", `
				addi t2, zero, 5
				addi t3, t2, 7
				syscall
			`)

			prog, err := loader.Load(path)

			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Code).To(Equal(insts.EncodeProgram(sumProgram...)))
		})

		It("should report assembly errors with the file name", func() {
			path := writeFile("bad.s", "frob t0")

			_, err := loader.Load(path)

			Expect(err).To(MatchError(ContainSubstring("bad.s")))
		})

		It("should report a missing file", func() {
			_, err := loader.Load(filepath.Join(tempDir, "missing.bin"))
			Expect(errors.Is(err, os.ErrNotExist)).To(BeTrue())
		})
	})

	Describe("LoadInto", func() {
		It("should load code and data into a VM", func() {
			vm, err := emu.NewVM(mem.Config{AllocatedMemory: 0x1000, StackSize: 0x100})
			Expect(err).NotTo(HaveOccurred())
			prog := &loader.Program{
				Code: insts.EncodeProgram(
					insts.Lw(insts.T0, insts.Zero, insts.MustImm14(8)),
					insts.Syscall(),
				),
				Data: []byte{42, 0, 0, 0},
			}

			Expect(prog.LoadInto(vm)).To(Succeed())
			Expect(vm.Run()).To(Succeed())

			regs := vm.Registers()
			Expect(regs.ReadReg(insts.T0)).To(Equal(uint32(42)))
		})
	})
})
