package insts

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownOpcode is matched by every UnknownOpcodeError.
	ErrUnknownOpcode = errors.New("unknown opcode")
	// ErrInvalidOperand is returned for an operand the op's layout cannot
	// carry.
	ErrInvalidOperand = errors.New("invalid operand")
)

// UnknownOpcodeError reports a word whose opcode has no registered layout.
type UnknownOpcodeError struct {
	Opcode uint8
}

func (e *UnknownOpcodeError) Error() string {
	return fmt.Sprintf("unknown opcode 0x%02x", e.Opcode)
}

func (e *UnknownOpcodeError) Is(target error) bool {
	return target == ErrUnknownOpcode
}

// Decoder converts between instruction words and Instructions using the
// layout table.
type Decoder struct {
	layouts *[256]*Layout
}

// NewDecoder creates a decoder over the r32 layout table.
func NewDecoder() *Decoder {
	return &Decoder{layouts: &layouts}
}

var defaultDecoder = NewDecoder()

// Decode decodes a 32-bit instruction word.
func Decode(word uint32) (Instruction, error) {
	return defaultDecoder.Decode(word)
}

// Encode encodes an instruction into a 32-bit word.
func Encode(inst Instruction) (uint32, error) {
	return defaultDecoder.Encode(inst)
}

// MustEncode is like Encode but panics on an invalid instruction.
func MustEncode(inst Instruction) uint32 {
	word, err := Encode(inst)
	if err != nil {
		panic(err)
	}
	return word
}

// Decode decodes a 32-bit instruction word.
func (d *Decoder) Decode(word uint32) (Instruction, error) {
	opcode := uint8(word & 0xFF)

	l := d.layouts[opcode]
	if l == nil {
		return Instruction{}, &UnknownOpcodeError{Opcode: opcode}
	}

	inst := Instruction{Op: Op(opcode)}
	offset := uint8(OpcodeBits)
	for _, f := range l.Fields {
		bits := (word >> offset) & fieldMask(f.Width)
		offset += f.Width

		if f.Kind == FieldImmediate {
			inst.Imm = ImmediateFromBits(bits, f.Width)
			continue
		}

		reg := DecodeRegister(bits)
		switch f.Slot {
		case SlotDest:
			inst.Dest = reg
		case SlotSrc1:
			inst.Src1 = reg
		case SlotSrc2:
			inst.Src2 = reg
		}
	}

	return inst, nil
}

// Encode encodes an instruction into a 32-bit word. Instructions Validate
// rejects are refused rather than truncated, so every word Encode returns
// decodes back to inst.
func (d *Decoder) Encode(inst Instruction) (uint32, error) {
	l := d.layouts[inst.Op]
	if err := inst.validate(l); err != nil {
		return 0, err
	}

	word := uint32(inst.Op)
	offset := uint8(OpcodeBits)
	for _, f := range l.Fields {
		var bits uint32
		switch f.Slot {
		case SlotDest:
			bits = inst.Dest.Encode()
		case SlotSrc1:
			bits = inst.Src1.Encode()
		case SlotSrc2:
			bits = inst.Src2.Encode()
		case SlotImm:
			bits = inst.Imm.Bits()
		}
		word |= bits << offset
		offset += f.Width
	}

	return word, nil
}
