package translate_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/r32vm/internal/translate"
)

var _ = Describe("Printer", func() {
	It("should group digits for en-US", func() {
		p := translate.NewPrinter("en-US")
		Expect(p.Sprintf("%d cycles", 1234567)).To(Equal("1,234,567 cycles"))
	})

	It("should fall back to a usable printer for unknown locales", func() {
		p := translate.NewPrinter("xx-invalid")
		Expect(p.Sprintf("pc=0x%08x", 0x40)).To(Equal("pc=0x00000040"))
	})

	It("should leave hex formatting alone", func() {
		Expect(translate.From("0x%08x", 0xDEADBEEF)).To(Equal("0xdeadbeef"))
	})

	It("should write to a writer", func() {
		buf := &bytes.Buffer{}
		_, err := translate.Fprintf(buf, "halted: %v\n", true)
		Expect(err).NotTo(HaveOccurred())
		Expect(buf.String()).To(Equal("halted: true\n"))
	})
})
