package insts

import (
	"errors"
	"fmt"
)

// Immediate field widths.
const (
	Imm14Bits = 14
	Imm19Bits = 19
)

var (
	// ErrImmediateRange is returned when a value does not fit its field.
	ErrImmediateRange = errors.New("immediate out of range")
	// ErrImmediateWidth is returned for a field width the ISA does not use.
	ErrImmediateWidth = errors.New("unsupported immediate width")
)

// RangeError reports a value that cannot be represented in Width bits.
type RangeError struct {
	Width uint8
	Value int64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("immediate %d does not fit in %d bits [%d, %d]",
		e.Value, e.Width, MinImmediate(e.Width), MaxImmediate(e.Width))
}

func (e *RangeError) Unwrap() error {
	return ErrImmediateRange
}

// Immediate is a signed operand constrained to a fixed two's-complement width.
// The zero value is an empty immediate used by layouts that carry none.
type Immediate struct {
	value int32
	width uint8
}

// MinImmediate returns the smallest value representable in width bits.
func MinImmediate(width uint8) int32 {
	return -(1 << (width - 1))
}

// MaxImmediate returns the largest value representable in width bits.
func MaxImmediate(width uint8) int32 {
	return 1<<(width-1) - 1
}

// NewImmediate constructs an immediate of the given width.
func NewImmediate(width uint8, value int64) (Immediate, error) {
	if width != Imm14Bits && width != Imm19Bits {
		return Immediate{}, fmt.Errorf("%w: %d", ErrImmediateWidth, width)
	}
	if value < int64(MinImmediate(width)) || value > int64(MaxImmediate(width)) {
		return Immediate{}, &RangeError{Width: width, Value: value}
	}
	return Immediate{value: int32(value), width: width}, nil
}

// NewImm14 constructs a 14-bit immediate.
func NewImm14(value int64) (Immediate, error) {
	return NewImmediate(Imm14Bits, value)
}

// NewImm19 constructs a 19-bit immediate.
func NewImm19(value int64) (Immediate, error) {
	return NewImmediate(Imm19Bits, value)
}

// MustImm14 is like NewImm14 but panics if value is out of range.
func MustImm14(value int64) Immediate {
	imm, err := NewImm14(value)
	if err != nil {
		panic(err)
	}
	return imm
}

// MustImm19 is like NewImm19 but panics if value is out of range.
func MustImm19(value int64) Immediate {
	imm, err := NewImm19(value)
	if err != nil {
		panic(err)
	}
	return imm
}

// Value returns the signed value.
func (i Immediate) Value() int32 {
	return i.value
}

// Width returns the field width in bits, or 0 for an empty immediate.
func (i Immediate) Width() uint8 {
	return i.width
}

// Bits returns the low Width bits of the two's-complement representation.
func (i Immediate) Bits() uint32 {
	return uint32(i.value) & fieldMask(i.width)
}

// FromBits reconstructs a signed value from a width-bit two's-complement
// field. Bits above the field are ignored.
func FromBits(bits uint32, width uint8) int32 {
	bits &= fieldMask(width)
	if bits&(1<<(width-1)) != 0 {
		return int32(int64(bits) - int64(1)<<width)
	}
	return int32(bits)
}

// ImmediateFromBits decodes a raw field into an Immediate of the given width.
func ImmediateFromBits(bits uint32, width uint8) Immediate {
	return Immediate{value: FromBits(bits, width), width: width}
}

func (i Immediate) String() string {
	return fmt.Sprintf("%d", i.value)
}

func fieldMask(width uint8) uint32 {
	if width >= 32 {
		return 0xFFFFFFFF
	}
	return uint32(1)<<width - 1
}
