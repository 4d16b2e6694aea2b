package insts

// Register identifies one of the 17 machine registers. Its value is the
// 5-bit encoding used in instruction words.
type Register uint8

// Machine registers.
const (
	Zero Register = iota // hardwired zero
	RA                   // return address
	SP                   // stack pointer
	GP                   // global pointer
	TP                   // thread pointer
	T0
	T1
	T2
	T3
	S0
	S1
	S2
	S3
	A0
	A1
	A2
	A7 // syscall number
)

// NumRegisters is the number of addressable registers.
const NumRegisters = 17

// RegisterBits is the width of a register field in an instruction word.
const RegisterBits = 5

var registerNames = [NumRegisters]string{
	"zero", "ra", "sp", "gp", "tp",
	"t0", "t1", "t2", "t3",
	"s0", "s1", "s2", "s3",
	"a0", "a1", "a2", "a7",
}

// DecodeRegister maps a raw register field to a Register.
// Values outside 1..16 (including 0) decode to Zero. A garbage field and an
// explicit zero field are therefore indistinguishable after decoding.
func DecodeRegister(bits uint32) Register {
	if bits >= 1 && bits < NumRegisters {
		return Register(bits)
	}
	return Zero
}

// Encode returns the register's machine encoding.
func (r Register) Encode() uint32 {
	return uint32(r)
}

// Valid reports whether r names one of the machine registers.
func (r Register) Valid() bool {
	return r < NumRegisters
}

// String returns the assembler name of the register.
func (r Register) String() string {
	if !r.Valid() {
		return "reg?"
	}
	return registerNames[r]
}

// ParseRegister looks up a register by its assembler name.
func ParseRegister(name string) (Register, bool) {
	for i, n := range registerNames {
		if n == name {
			return Register(i), true
		}
	}
	return Zero, false
}
