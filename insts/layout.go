package insts

import "fmt"

// OpcodeBits is the width of the opcode field at the bottom of every word.
const OpcodeBits = 8

// FieldKind distinguishes register fields from immediate fields.
type FieldKind uint8

// Field kinds.
const (
	FieldRegister FieldKind = iota
	FieldImmediate
)

// Slot names the Instruction member a field is stored in.
type Slot uint8

// Instruction slots.
const (
	SlotDest Slot = iota
	SlotSrc1
	SlotSrc2
	SlotImm
)

var slotNames = [...]string{"dest", "src1", "src2", "imm"}

func (s Slot) String() string {
	if int(s) < len(slotNames) {
		return slotNames[s]
	}
	return fmt.Sprintf("slot(%d)", uint8(s))
}

// Field is one operand field of a layout.
type Field struct {
	Slot  Slot
	Kind  FieldKind
	Width uint8
}

// Layout declares how an opcode's operands are packed. Fields occupy
// consecutive bit ranges starting at OpcodeBits, in order.
type Layout struct {
	Op       Op
	Mnemonic string
	Fields   []Field
}

// Width returns the total number of bits the layout uses, opcode included.
func (l Layout) Width() int {
	w := OpcodeBits
	for _, f := range l.Fields {
		w += int(f.Width)
	}
	return w
}

// Offsets returns the bit offset of each field.
func (l Layout) Offsets() []uint8 {
	offsets := make([]uint8, len(l.Fields))
	offset := uint8(OpcodeBits)
	for i, f := range l.Fields {
		offsets[i] = offset
		offset += f.Width
	}
	return offsets
}

var (
	dest  = Field{Slot: SlotDest, Kind: FieldRegister, Width: RegisterBits}
	src1  = Field{Slot: SlotSrc1, Kind: FieldRegister, Width: RegisterBits}
	src2  = Field{Slot: SlotSrc2, Kind: FieldRegister, Width: RegisterBits}
	imm14 = Field{Slot: SlotImm, Kind: FieldImmediate, Width: Imm14Bits}
	imm19 = Field{Slot: SlotImm, Kind: FieldImmediate, Width: Imm19Bits}

	formatRRR = []Field{dest, src1, src2}
	formatRRI = []Field{dest, src1, imm14}
	formatRI  = []Field{dest, imm19}
)

var layoutList = []Layout{
	{OpAdd, "add", formatRRR},
	{OpSub, "sub", formatRRR},
	{OpMul, "mul", formatRRR},
	{OpAnd, "and", formatRRR},
	{OpOr, "or", formatRRR},
	{OpXor, "xor", formatRRR},
	{OpShl, "shl", formatRRR},
	{OpShr, "shr", formatRRR},
	{OpShrA, "shra", formatRRR},
	{OpAddI, "addi", formatRRI},
	{OpLui, "lui", formatRI},
	{OpLi, "li", formatRI},
	{OpLw, "lw", formatRRI},
	{OpSw, "sw", formatRRI},
	{OpSyscall, "syscall", nil},
	{OpLh, "lh", formatRRI},
	{OpLhu, "lhu", formatRRI},
	{OpLb, "lb", formatRRI},
	{OpLbu, "lbu", formatRRI},
	{OpSh, "sh", formatRRI},
	{OpSb, "sb", formatRRI},
}

// layouts is indexed by opcode; nil entries are unassigned opcodes.
var layouts = buildLayouts(layoutList)

func buildLayouts(list []Layout) (table [256]*Layout) {
	for i := range list {
		l := &list[i]
		if l.Width() > 32 {
			panic(fmt.Sprintf("insts: layout %s is %d bits wide", l.Mnemonic, l.Width()))
		}
		if table[l.Op] != nil {
			panic(fmt.Sprintf("insts: opcode 0x%02x assigned twice", uint8(l.Op)))
		}
		table[l.Op] = l
	}
	return
}

// LayoutOf returns the layout registered for op.
func LayoutOf(op Op) (Layout, bool) {
	l := layouts[op]
	if l == nil {
		return Layout{}, false
	}
	return *l, true
}

// Layouts returns all registered layouts in opcode order.
func Layouts() []Layout {
	var out []Layout
	for _, l := range layouts {
		if l != nil {
			out = append(out, *l)
		}
	}
	return out
}

// LookupMnemonic finds the layout for an assembler mnemonic.
func LookupMnemonic(mnemonic string) (Layout, bool) {
	for _, l := range layoutList {
		if l.Mnemonic == mnemonic {
			return l, true
		}
	}
	return Layout{}, false
}
